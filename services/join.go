package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"firecontest-backend/models"
	"firecontest-backend/utils"
	"firecontest-backend/utils/logger"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// JoinPayload is where a new participant's profile comes from. Free contests
// take it from the request (FreeJoin); paid contests take it from the user's
// approved payment (PaidJoin) and ignore whatever the client sent.
type JoinPayload interface {
	participant(contestID, userID string) models.Participant
}

type FreeJoin struct {
	InGameName string
	InGameID   string
	ContactRef string
}

func (f FreeJoin) participant(contestID, userID string) models.Participant {
	return models.Participant{
		ContestID:  contestID,
		UserID:     userID,
		InGameName: f.InGameName,
		InGameID:   f.InGameID,
		ContactRef: f.ContactRef,
	}
}

type PaidJoin struct {
	Payment *models.Payment
}

func (p PaidJoin) participant(contestID, userID string) models.Participant {
	return models.Participant{
		ContestID:  contestID,
		UserID:     userID,
		InGameName: p.Payment.FullName,
		InGameID:   p.Payment.FFID,
		ContactRef: utils.OrZero(p.Payment.UTR),
		PaymentID:  &p.Payment.ID,
	}
}

type JoinResult struct {
	SlotIndex   int                `json:"slotIndex"`
	Participant models.Participant `json:"participant"`
}

// JoinContest adds userID to the contest roster. Checks run in a fixed order
// and the first failure wins: ids, existence, status, capacity, duplicate,
// then the payment gate (paid) or profile fields (free).
func (s *ContestService) JoinContest(ctx context.Context, contestID, userID string, details FreeJoin) (*JoinResult, error) {
	res, err := s.joinContest(ctx, contestID, userID, details)
	s.Metrics.observeJoin(err)
	if err != nil {
		return nil, err
	}
	logger.Infof("contest joined contest=%s user=%s slot=%d", contestID, userID, res.SlotIndex)
	return res, nil
}

func (s *ContestService) joinContest(ctx context.Context, contestID, userID string, details FreeJoin) (*JoinResult, error) {
	if strings.TrimSpace(contestID) == "" || strings.TrimSpace(userID) == "" {
		return nil, validation("Contest and user are required")
	}

	var result *JoinResult
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		contest, err := s.getContest(ctx, tx, contestID)
		if err != nil {
			return err
		}
		if err := tx.Select("id").First(&models.User{}, "id = ?", userID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrUserNotFound
			}
			return fmt.Errorf("failed to load user: %w", err)
		}

		if contest.Status != models.ContestUpcoming {
			return ErrContestNotOpen
		}
		if contest.IsFull() {
			return ErrContestFull
		}

		var joined int64
		if err := tx.Model(&models.Participant{}).
			Where("contest_id = ? AND user_id = ?", contestID, userID).
			Count(&joined).Error; err != nil {
			return fmt.Errorf("failed to check participant: %w", err)
		}
		if joined > 0 {
			return ErrAlreadyJoined
		}

		payload, err := resolvePayload(tx, contest, userID, details)
		if err != nil {
			return err
		}

		slot, err := reserveSlot(tx, contestID)
		if err != nil {
			return err
		}

		p := payload.participant(contestID, userID)
		p.ID = uuid.NewString()
		p.SlotIndex = slot
		if err := tx.Create(&p).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrAlreadyJoined
			}
			return fmt.Errorf("failed to add participant: %w", err)
		}

		record := models.JoinRecord{ID: uuid.NewString(), UserID: userID, ContestID: contestID, SlotIndex: slot}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&record).Error; err != nil {
			return fmt.Errorf("failed to record join: %w", err)
		}

		result = &JoinResult{SlotIndex: slot, Participant: p}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func resolvePayload(tx *gorm.DB, contest *models.Contest, userID string, details FreeJoin) (JoinPayload, error) {
	if contest.IsPaid() {
		var payment models.Payment
		err := tx.Where("user_id = ? AND contest_id = ? AND status = ?", userID, contest.ID, models.PaymentSuccess).
			Order("created_at DESC").
			First(&payment).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrPaymentRequired
			}
			return nil, fmt.Errorf("failed to load payment: %w", err)
		}
		return PaidJoin{Payment: &payment}, nil
	}

	free := FreeJoin{
		InGameName: strings.TrimSpace(details.InGameName),
		InGameID:   strings.TrimSpace(details.InGameID),
		ContactRef: strings.TrimSpace(details.ContactRef),
	}
	if free.InGameName == "" || free.InGameID == "" || free.ContactRef == "" {
		return nil, validation("In-game name, in-game ID and contact are required")
	}
	return free, nil
}

// reserveSlot is the single guarded write that enforces status and capacity.
// Concurrent joiners serialize on the contest row; whoever finds the guard
// false gets the error that explains why.
func reserveSlot(tx *gorm.DB, contestID string) (int, error) {
	res := tx.Model(&models.Contest{}).
		Where("id = ? AND status = ? AND participant_count < max_players", contestID, models.ContestUpcoming).
		Updates(map[string]interface{}{
			"participant_count": gorm.Expr("participant_count + 1"),
			"last_slot":         gorm.Expr("last_slot + 1"),
		})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to reserve slot: %w", res.Error)
	}

	var current models.Contest
	if err := tx.Select("status", "last_slot").First(&current, "id = ?", contestID).Error; err != nil {
		return 0, fmt.Errorf("failed to read slot: %w", err)
	}
	if res.RowsAffected == 0 {
		if current.Status != models.ContestUpcoming {
			return 0, ErrContestNotOpen
		}
		return 0, ErrContestFull
	}
	return current.LastSlot, nil
}
