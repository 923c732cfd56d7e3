package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"strings"

	"firecontest-backend/models"
	"firecontest-backend/utils"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ContentService manages announcements, highlight videos and site settings.
type ContentService struct {
	DB      *gorm.DB
	Storage utils.Uploader
}

func NewContentService(db *gorm.DB, storage utils.Uploader) *ContentService {
	return &ContentService{DB: db, Storage: storage}
}

func (s *ContentService) ListAnnouncements(ctx context.Context) ([]models.Announcement, error) {
	var out []models.Announcement
	if err := s.DB.WithContext(ctx).Order("created_at DESC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("failed to list announcements: %w", err)
	}
	return out, nil
}

func (s *ContentService) CreateAnnouncement(ctx context.Context, message string) (*models.Announcement, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, validation("Message is required")
	}
	a := &models.Announcement{ID: uuid.NewString(), Message: message}
	if err := s.DB.WithContext(ctx).Create(a).Error; err != nil {
		return nil, fmt.Errorf("failed to create announcement: %w", err)
	}
	return a, nil
}

func (s *ContentService) DeleteAnnouncement(ctx context.Context, id string) error {
	res := s.DB.WithContext(ctx).Delete(&models.Announcement{}, "id = ?", id)
	if res.Error != nil {
		return fmt.Errorf("failed to delete announcement: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return notFound("Announcement not found")
	}
	return nil
}

func (s *ContentService) ListHighlights(ctx context.Context) ([]models.Highlight, error) {
	var out []models.Highlight
	if err := s.DB.WithContext(ctx).Order("created_at DESC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("failed to list highlights: %w", err)
	}
	return out, nil
}

// CreateHighlight stores a video link with a thumbnail derived from its
// YouTube id.
func (s *ContentService) CreateHighlight(ctx context.Context, title, videoURL, adminID string) (*models.Highlight, error) {
	title, videoURL = strings.TrimSpace(title), strings.TrimSpace(videoURL)
	if title == "" || videoURL == "" {
		return nil, validation("Title and Video URL are required")
	}
	h := &models.Highlight{
		ID:        uuid.NewString(),
		Title:     title,
		VideoURL:  videoURL,
		Thumbnail: utils.YouTubeThumbnail(videoURL),
		CreatedBy: utils.StringOrNil(adminID),
	}
	if err := s.DB.WithContext(ctx).Create(h).Error; err != nil {
		return nil, fmt.Errorf("failed to create highlight: %w", err)
	}
	return h, nil
}

func (s *ContentService) DeleteHighlight(ctx context.Context, id string) error {
	res := s.DB.WithContext(ctx).Delete(&models.Highlight{}, "id = ?", id)
	if res.Error != nil {
		return fmt.Errorf("failed to delete highlight: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return notFound("Highlight not found")
	}
	return nil
}

// PaymentQRCode returns the QR image URL shown on the manual payment screen,
// or "" when none has been uploaded.
func (s *ContentService) PaymentQRCode(ctx context.Context) (string, error) {
	var setting models.Setting
	if err := s.DB.WithContext(ctx).First(&setting, "key = ?", models.SettingPaymentQR).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil
		}
		return "", fmt.Errorf("failed to load settings: %w", err)
	}
	var url string
	if err := json.Unmarshal(setting.Value, &url); err != nil {
		return "", fmt.Errorf("failed to decode payment qr setting: %w", err)
	}
	return url, nil
}

// SetPaymentQRCode uploads a new QR image and replaces the setting.
func (s *ContentService) SetPaymentQRCode(ctx context.Context, image *multipart.FileHeader) (string, error) {
	if image == nil {
		return "", validation("QR code image is required")
	}
	url, err := s.Storage.Upload(ctx, image, utils.ObjectKey("settings", image.Filename))
	if err != nil {
		return "", fmt.Errorf("failed to upload qr code: %w", err)
	}
	value, err := json.Marshal(url)
	if err != nil {
		return "", err
	}

	setting := models.Setting{Key: models.SettingPaymentQR, Value: datatypes.JSON(value)}
	if err := s.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&setting).Error; err != nil {
		return "", fmt.Errorf("failed to save qr code setting: %w", err)
	}
	return url, nil
}
