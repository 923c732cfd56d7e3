package services

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"strings"
	"time"

	"firecontest-backend/models"
	"firecontest-backend/utils"
	"firecontest-backend/utils/logger"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
	"gorm.io/gorm"
)

// completionPromptDelay is how long after going live admins are reminded to
// record results.
const completionPromptDelay = 10 * time.Minute

type ContestService struct {
	DB      *gorm.DB
	Storage utils.Uploader
	Metrics *Metrics
	now     func() time.Time
	when    *when.Parser
}

func NewContestService(db *gorm.DB, storage utils.Uploader, metrics *Metrics) *ContestService {
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	return &ContestService{
		DB:      db,
		Storage: storage,
		Metrics: metrics,
		now:     func() time.Time { return time.Now().UTC() },
		when:    w,
	}
}

// ParseMatchTime accepts RFC3339, the HTML datetime-local format, or a short
// English phrase such as "tomorrow 8pm".
func (s *ContestService) ParseMatchTime(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, validation("Match time is required")
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04", "2006-01-02 15:04"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		}
	}
	r, err := s.when.Parse(raw, s.now())
	if err != nil || r == nil {
		return time.Time{}, validation("Invalid match time")
	}
	return r.Time.UTC(), nil
}

func (s *ContestService) getContest(ctx context.Context, tx *gorm.DB, id string) (*models.Contest, error) {
	var contest models.Contest
	if err := tx.WithContext(ctx).First(&contest, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrContestNotFound
		}
		return nil, fmt.Errorf("failed to load contest: %w", err)
	}
	return &contest, nil
}

// ListContests returns all contests newest first with their rosters.
func (s *ContestService) ListContests(ctx context.Context) ([]models.Contest, error) {
	var contests []models.Contest
	err := s.DB.WithContext(ctx).
		Preload("Participants", func(db *gorm.DB) *gorm.DB { return db.Order("slot_index ASC") }).
		Order("created_at DESC").
		Find(&contests).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list contests: %w", err)
	}
	return contests, nil
}

func (s *ContestService) GetContest(ctx context.Context, id string) (*models.Contest, error) {
	var contest models.Contest
	err := s.DB.WithContext(ctx).
		Preload("Participants", func(db *gorm.DB) *gorm.DB { return db.Order("slot_index ASC") }).
		First(&contest, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrContestNotFound
		}
		return nil, fmt.Errorf("failed to load contest: %w", err)
	}
	return &contest, nil
}

// JoinedContests is the user's join history, newest first.
func (s *ContestService) JoinedContests(ctx context.Context, userID string) ([]models.JoinRecord, error) {
	var records []models.JoinRecord
	if err := s.DB.WithContext(ctx).Preload("Contest").
		Where("user_id = ?", userID).
		Order("joined_at DESC").
		Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to list joined contests: %w", err)
	}
	return records, nil
}

// RoomCredentials are visible only to the contest's participants.
type RoomCredentials struct {
	RoomID   string `json:"roomId"`
	RoomPass string `json:"roomPass"`
}

func (s *ContestService) RoomFor(ctx context.Context, contestID, userID string) (*RoomCredentials, error) {
	contest, err := s.getContest(ctx, s.DB, contestID)
	if err != nil {
		return nil, err
	}
	var count int64
	if err := s.DB.WithContext(ctx).Model(&models.Participant{}).
		Where("contest_id = ? AND user_id = ?", contestID, userID).
		Count(&count).Error; err != nil {
		return nil, fmt.Errorf("failed to check participant: %w", err)
	}
	if count == 0 {
		return nil, ErrNotParticipant
	}
	return &RoomCredentials{
		RoomID:   utils.OrZero(contest.RoomID),
		RoomPass: utils.OrZero(contest.RoomPass),
	}, nil
}

type CreateContestInput struct {
	Title      string
	EntryFee   float64
	MaxPlayers int
	MatchTime  string
	Rewards    models.Rewards
	Image      *multipart.FileHeader
}

func (s *ContestService) CreateContest(ctx context.Context, in CreateContestInput) (*models.Contest, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, validation("Title is required")
	}
	if in.EntryFee < 0 {
		return nil, validation("Entry fee cannot be negative")
	}
	if in.MaxPlayers < 1 {
		return nil, validation("Max players must be at least 1")
	}
	matchTime, err := s.ParseMatchTime(in.MatchTime)
	if err != nil {
		return nil, err
	}
	if in.Image == nil {
		return nil, validation("Image is required")
	}

	imageURL, err := s.Storage.Upload(ctx, in.Image, utils.ObjectKey("contests", in.Image.Filename))
	if err != nil {
		return nil, fmt.Errorf("failed to upload contest image: %w", err)
	}

	id := uuid.NewString()
	contest := &models.Contest{
		ID:         id,
		Slug:       slug.Make(title) + "-" + id[:8],
		Title:      title,
		EntryFee:   in.EntryFee,
		MaxPlayers: in.MaxPlayers,
		ImageURL:   imageURL,
		Rewards:    in.Rewards,
		MatchTime:  matchTime,
		Status:     models.ContestUpcoming,
	}
	if err := s.DB.WithContext(ctx).Create(contest).Error; err != nil {
		return nil, fmt.Errorf("failed to create contest: %w", err)
	}
	logger.Infof("contest created id=%s title=%q fee=%.2f max=%d", contest.ID, contest.Title, contest.EntryFee, contest.MaxPlayers)
	return contest, nil
}

// UpdateContestInput carries optional changes; nil fields are left alone.
type UpdateContestInput struct {
	Title      *string
	EntryFee   *float64
	MaxPlayers *int
	MatchTime  *string
	Rewards    *models.Rewards
	RoomID     *string
	RoomPass   *string
}

func (s *ContestService) UpdateContest(ctx context.Context, id string, in UpdateContestInput) (*models.Contest, error) {
	updates := map[string]interface{}{}
	if in.Title != nil {
		title := strings.TrimSpace(*in.Title)
		if title == "" {
			return nil, validation("Title cannot be empty")
		}
		updates["title"] = title
	}
	if in.EntryFee != nil {
		if *in.EntryFee < 0 {
			return nil, validation("Entry fee cannot be negative")
		}
		updates["entry_fee"] = *in.EntryFee
	}
	if in.MaxPlayers != nil {
		if *in.MaxPlayers < 1 {
			return nil, validation("Max players must be at least 1")
		}
		updates["max_players"] = *in.MaxPlayers
	}
	if in.MatchTime != nil {
		t, err := s.ParseMatchTime(*in.MatchTime)
		if err != nil {
			return nil, err
		}
		updates["match_time"] = t
	}
	if in.Rewards != nil {
		updates["reward_first"] = in.Rewards.First
		updates["reward_second"] = in.Rewards.Second
		updates["reward_third"] = in.Rewards.Third
	}
	if in.RoomID != nil {
		updates["room_id"] = utils.StringOrNil(*in.RoomID)
	}
	if in.RoomPass != nil {
		updates["room_pass"] = utils.StringOrNil(*in.RoomPass)
	}

	contest, err := s.getContest(ctx, s.DB, id)
	if err != nil {
		return nil, err
	}
	if contest.Status == models.ContestCompleted {
		return nil, ErrContestCompleted
	}
	if len(updates) == 0 {
		return contest, nil
	}

	q := s.DB.WithContext(ctx).Model(&models.Contest{}).
		Where("id = ? AND status <> ?", id, models.ContestCompleted)
	if in.MaxPlayers != nil {
		q = q.Where("participant_count <= ?", *in.MaxPlayers)
	}
	res := q.Updates(updates)
	if res.Error != nil {
		return nil, fmt.Errorf("failed to update contest: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		current, err := s.getContest(ctx, s.DB, id)
		if err != nil {
			return nil, err
		}
		if current.Status == models.ContestCompleted {
			return nil, ErrContestCompleted
		}
		return nil, validation("Max players cannot be below the current number of participants")
	}
	return s.getContest(ctx, s.DB, id)
}

// UpdateRoom sets the lobby credentials. Both are required.
func (s *ContestService) UpdateRoom(ctx context.Context, id, roomID, roomPass string) (*models.Contest, error) {
	roomID, roomPass = strings.TrimSpace(roomID), strings.TrimSpace(roomPass)
	if roomID == "" || roomPass == "" {
		return nil, validation("Room ID and password are required")
	}
	return s.UpdateContest(ctx, id, UpdateContestInput{RoomID: &roomID, RoomPass: &roomPass})
}

// transition moves a contest from one status to the next with a conditional
// update so concurrent admins cannot skip or repeat a step.
func (s *ContestService) transition(ctx context.Context, id string, from models.ContestStatus, apply func(tx *gorm.DB) error) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		contest, err := s.getContest(ctx, tx, id)
		if err != nil {
			return err
		}
		if contest.Status != from {
			return newError(KindInvalidState, fmt.Sprintf("Contest is %s, expected %s", contest.Status, from))
		}
		return apply(tx)
	})
}

// GoLive moves UPCOMING to LIVE and schedules the completion prompt.
func (s *ContestService) GoLive(ctx context.Context, id string) (*models.Contest, error) {
	now := s.now()
	prompt := now.Add(completionPromptDelay)
	err := s.transition(ctx, id, models.ContestUpcoming, func(tx *gorm.DB) error {
		res := tx.Model(&models.Contest{}).
			Where("id = ? AND status = ?", id, models.ContestUpcoming).
			Updates(map[string]interface{}{
				"status":                       models.ContestLive,
				"results_match_started_at":     now,
				"results_completion_prompt_at": prompt,
				"prompt_sent":                  false,
			})
		if res.Error != nil {
			return fmt.Errorf("failed to mark contest live: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrContestNotOpen
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	logger.Infof("contest live id=%s", id)
	return s.getContest(ctx, s.DB, id)
}

type FinishInput struct {
	Winner     string
	KillPoints *int
}

// Finish records results and moves LIVE to COMPLETED. The roster and room
// credentials are wiped; join history is kept.
func (s *ContestService) Finish(ctx context.Context, id string, in FinishInput) (*models.Contest, error) {
	winner := strings.TrimSpace(in.Winner)
	if winner == "" {
		return nil, validation("Winner is required")
	}
	if in.KillPoints != nil && *in.KillPoints < 0 {
		return nil, validation("Kill points cannot be negative")
	}

	now := s.now()
	err := s.transition(ctx, id, models.ContestLive, func(tx *gorm.DB) error {
		res := tx.Model(&models.Contest{}).
			Where("id = ? AND status = ?", id, models.ContestLive).
			Updates(map[string]interface{}{
				"status":               models.ContestCompleted,
				"results_winner":       winner,
				"results_kill_points":  in.KillPoints,
				"results_completed_at": now,
				"room_id":              nil,
				"room_pass":            nil,
				"participant_count":    0,
			})
		if res.Error != nil {
			return fmt.Errorf("failed to complete contest: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return newError(KindInvalidState, "Contest is not live")
		}
		if err := tx.Where("contest_id = ?", id).Delete(&models.Participant{}).Error; err != nil {
			return fmt.Errorf("failed to clear participants: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	logger.Infof("contest completed id=%s winner=%q", id, winner)
	return s.getContest(ctx, s.DB, id)
}

// DeleteContest removes the contest and its roster. Payments stay as ledger.
func (s *ContestService) DeleteContest(ctx context.Context, id string) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("contest_id = ?", id).Delete(&models.Participant{}).Error; err != nil {
			return fmt.Errorf("failed to delete participants: %w", err)
		}
		res := tx.Delete(&models.Contest{}, "id = ?", id)
		if res.Error != nil {
			return fmt.Errorf("failed to delete contest: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrContestNotFound
		}
		return nil
	})
}

// DueCompletionPrompts lists LIVE contests whose reminder time has passed and
// marks them so each is reported once.
func (s *ContestService) DueCompletionPrompts(ctx context.Context) ([]models.Contest, error) {
	var due []models.Contest
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("status = ? AND prompt_sent = ? AND results_completion_prompt_at <= ?",
			models.ContestLive, false, s.now()).
			Find(&due).Error; err != nil {
			return err
		}
		if len(due) == 0 {
			return nil
		}
		ids := make([]string, len(due))
		for i, c := range due {
			ids[i] = c.ID
		}
		return tx.Model(&models.Contest{}).Where("id IN ?", ids).Update("prompt_sent", true).Error
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load due completion prompts: %w", err)
	}
	return due, nil
}
