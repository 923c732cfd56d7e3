package services

import (
	"context"
	"fmt"

	"firecontest-backend/models"

	"gorm.io/gorm"
)

const recentContestLimit = 5

type DashboardService struct {
	DB *gorm.DB
}

func NewDashboardService(db *gorm.DB) *DashboardService {
	return &DashboardService{DB: db}
}

type PlayerPayment struct {
	Username string  `json:"username"`
	Amount   float64 `json:"amount"`
}

type ContestSummary struct {
	models.Contest
	TotalCollected float64         `json:"totalCollected"`
	PaidPlayers    int             `json:"paidPlayers"`
	FreePlayers    int             `json:"freePlayers"`
	PlayerPayments []PlayerPayment `json:"playerPayments"`
}

type DashboardStats struct {
	TotalUsers      int64            `json:"totalUsers"`
	ActiveContests  int64            `json:"activeContests"`
	TotalRevenue    float64          `json:"totalRevenue"`
	PendingPayments int64            `json:"pendingPayments"`
	RecentContests  []ContestSummary `json:"recentContests"`
}

// Stats aggregates the admin overview. Revenue only counts approved payments.
func (s *DashboardService) Stats(ctx context.Context) (*DashboardStats, error) {
	db := s.DB.WithContext(ctx)
	stats := &DashboardStats{RecentContests: []ContestSummary{}}

	if err := db.Model(&models.User{}).Count(&stats.TotalUsers).Error; err != nil {
		return nil, fmt.Errorf("failed to count users: %w", err)
	}
	if err := db.Model(&models.Contest{}).
		Where("status IN ?", []models.ContestStatus{models.ContestUpcoming, models.ContestLive}).
		Count(&stats.ActiveContests).Error; err != nil {
		return nil, fmt.Errorf("failed to count contests: %w", err)
	}
	if err := db.Model(&models.Payment{}).
		Where("status = ?", models.PaymentSuccess).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&stats.TotalRevenue).Error; err != nil {
		return nil, fmt.Errorf("failed to sum revenue: %w", err)
	}
	if err := db.Model(&models.Payment{}).
		Where("status = ?", models.PaymentPending).
		Count(&stats.PendingPayments).Error; err != nil {
		return nil, fmt.Errorf("failed to count pending payments: %w", err)
	}

	var recent []models.Contest
	if err := db.Preload("Participants", func(tx *gorm.DB) *gorm.DB {
		return tx.Order("slot_index ASC")
	}).Order("created_at DESC").Limit(recentContestLimit).Find(&recent).Error; err != nil {
		return nil, fmt.Errorf("failed to load recent contests: %w", err)
	}
	if len(recent) == 0 {
		return stats, nil
	}

	ids := make([]string, len(recent))
	for i, c := range recent {
		ids[i] = c.ID
	}
	var payments []models.Payment
	if err := db.Preload("User").
		Where("contest_id IN ? AND status = ?", ids, models.PaymentSuccess).
		Order("created_at ASC").
		Find(&payments).Error; err != nil {
		return nil, fmt.Errorf("failed to load contest payments: %w", err)
	}
	byContest := make(map[string][]models.Payment, len(recent))
	for _, p := range payments {
		byContest[p.ContestID] = append(byContest[p.ContestID], p)
	}

	for _, c := range recent {
		summary := ContestSummary{Contest: c, PlayerPayments: []PlayerPayment{}}
		for _, p := range c.Participants {
			if p.PaymentID != nil {
				summary.PaidPlayers++
			} else {
				summary.FreePlayers++
			}
		}
		for _, p := range byContest[c.ID] {
			summary.TotalCollected += p.Amount
			var username string
			if p.User != nil {
				username = p.User.Username
			}
			summary.PlayerPayments = append(summary.PlayerPayments, PlayerPayment{Username: username, Amount: p.Amount})
		}
		stats.RecentContests = append(stats.RecentContests, summary)
	}
	return stats, nil
}
