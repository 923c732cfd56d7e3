package models

import (
	"time"
)

type ContestStatus string

const (
	ContestUpcoming  ContestStatus = "UPCOMING"
	ContestLive      ContestStatus = "LIVE"
	ContestCompleted ContestStatus = "COMPLETED"
)

// Rewards are display strings, e.g. "₹500".
type Rewards struct {
	First  string `json:"first"`
	Second string `json:"second"`
	Third  string `json:"third"`
}

// ContestResults is filled in across the LIVE and COMPLETED transitions.
type ContestResults struct {
	Winner             *string    `json:"winner,omitempty"`
	KillPoints         *int       `json:"killPoints,omitempty"`
	MatchStartedAt     *time.Time `json:"matchStartedAt,omitempty"`
	CompletionPromptAt *time.Time `json:"completionPromptAt,omitempty" gorm:"index"`
	CompletedAt        *time.Time `json:"completedAt,omitempty"`
}

// Contest is a scheduled match with an entry fee and a bounded roster.
// ParticipantCount and LastSlot are maintained by the join path only.
type Contest struct {
	ID               string         `json:"id" gorm:"primaryKey"`
	Slug             string         `json:"slug" gorm:"uniqueIndex;not null"`
	Title            string         `json:"title" gorm:"not null"`
	EntryFee         float64        `json:"entryFee" gorm:"not null;default:0"`
	MaxPlayers       int            `json:"maxPlayers" gorm:"not null"`
	ImageURL         string         `json:"image"`
	Rewards          Rewards        `json:"rewards" gorm:"embedded;embeddedPrefix:reward_"`
	MatchTime        time.Time      `json:"matchTime" gorm:"not null;index"`
	Status           ContestStatus  `json:"status" gorm:"type:varchar(16);not null;default:'UPCOMING';index"`
	RoomID           *string        `json:"roomId,omitempty"`
	RoomPass         *string        `json:"roomPass,omitempty"`
	ParticipantCount int            `json:"participantCount" gorm:"not null;default:0"`
	LastSlot         int            `json:"-" gorm:"not null;default:0"`
	Results          ContestResults `json:"results" gorm:"embedded;embeddedPrefix:results_"`
	PromptSent       bool           `json:"-" gorm:"not null;default:false"`
	CreatedAt        time.Time      `json:"createdAt" gorm:"autoCreateTime;index"`
	UpdatedAt        time.Time      `json:"updatedAt" gorm:"autoUpdateTime"`

	Participants []Participant `json:"participants,omitempty" gorm:"foreignKey:ContestID"`
}

// IsFull reports whether the roster has reached MaxPlayers.
func (c *Contest) IsFull() bool {
	return c.ParticipantCount >= c.MaxPlayers
}

// IsPaid reports whether joining requires an approved payment.
func (c *Contest) IsPaid() bool {
	return c.EntryFee > 0
}

// Public returns a copy safe for unauthenticated listings: room credentials
// and participant contact references are stripped.
func (c Contest) Public() Contest {
	c.RoomID = nil
	c.RoomPass = nil
	if len(c.Participants) > 0 {
		ps := make([]Participant, len(c.Participants))
		for i, p := range c.Participants {
			p.ContactRef = ""
			p.PaymentID = nil
			ps[i] = p
		}
		c.Participants = ps
	}
	return c
}

// Participant is one occupied roster slot. A user appears at most once per
// contest and a slot index is never handed out twice.
type Participant struct {
	ID         string    `json:"id" gorm:"primaryKey"`
	ContestID  string    `json:"contestId" gorm:"not null;uniqueIndex:idx_participant_contest_user;uniqueIndex:idx_participant_contest_slot"`
	UserID     string    `json:"userId" gorm:"not null;uniqueIndex:idx_participant_contest_user;index"`
	SlotIndex  int       `json:"slotIndex" gorm:"not null;uniqueIndex:idx_participant_contest_slot"`
	InGameName string    `json:"inGameName" gorm:"not null"`
	InGameID   string    `json:"inGameId" gorm:"not null"`
	ContactRef string    `json:"contactRef,omitempty"`
	PaymentID  *string   `json:"paymentId,omitempty"`
	JoinedAt   time.Time `json:"joinedAt" gorm:"autoCreateTime"`
}

// JoinRecord is the user's own history of joined contests. Unlike
// Participant rows it survives the contest being finished.
type JoinRecord struct {
	ID        string    `json:"id" gorm:"primaryKey"`
	UserID    string    `json:"userId" gorm:"not null;uniqueIndex:idx_join_record_user_contest"`
	ContestID string    `json:"contestId" gorm:"not null;uniqueIndex:idx_join_record_user_contest;index"`
	SlotIndex int       `json:"slotIndex"`
	JoinedAt  time.Time `json:"joinedAt" gorm:"autoCreateTime"`

	Contest *Contest `json:"contest,omitempty" gorm:"foreignKey:ContestID"`
}
