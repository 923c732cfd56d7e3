package services

import (
	"bytes"
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
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
)

type PaymentService struct {
	DB       *gorm.DB
	Storage  utils.Uploader
	Notifier Notifier
	Metrics  *Metrics
	now      func() time.Time
}

func NewPaymentService(db *gorm.DB, storage utils.Uploader, notifier Notifier, metrics *Metrics) *PaymentService {
	return &PaymentService{
		DB:       db,
		Storage:  storage,
		Notifier: orNoop(notifier),
		Metrics:  metrics,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

type SubmitPaymentInput struct {
	UserID     string
	ContestID  string
	FullName   string
	FFID       string
	UTR        string
	Screenshot *multipart.FileHeader
}

func (in *SubmitPaymentInput) normalize() error {
	in.UserID = strings.TrimSpace(in.UserID)
	in.ContestID = strings.TrimSpace(in.ContestID)
	in.FullName = strings.TrimSpace(in.FullName)
	in.FFID = strings.TrimSpace(in.FFID)
	in.UTR = strings.TrimSpace(in.UTR)

	switch {
	case in.UserID == "":
		return validation("Missing userId")
	case in.ContestID == "":
		return validation("Missing contestId")
	case in.FullName == "":
		return validation("Full name is required")
	case in.FFID == "":
		return validation("Free Fire ID is required")
	case in.UTR == "":
		return validation("UTR is required")
	case in.Screenshot == nil:
		return validation("Screenshot is required")
	}
	return nil
}

// SubmitPayment records a manual payment proof as pending. A user may hold
// one pending or successful payment per contest and a UTR backs one record.
func (s *PaymentService) SubmitPayment(ctx context.Context, in SubmitPaymentInput) (*models.Payment, error) {
	payment, err := s.submitPayment(ctx, in)
	s.Metrics.observeSubmission(err)
	return payment, err
}

func (s *PaymentService) submitPayment(ctx context.Context, in SubmitPaymentInput) (*models.Payment, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}

	db := s.DB.WithContext(ctx)
	var contest models.Contest
	if err := db.Select("id", "entry_fee").First(&contest, "id = ?", in.ContestID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrContestNotFound
		}
		return nil, fmt.Errorf("failed to load contest: %w", err)
	}
	if err := s.checkSubmission(db, in.UserID, in.ContestID, in.UTR); err != nil {
		return nil, err
	}

	key := utils.ObjectKey("payments", in.Screenshot.Filename)
	screenshotURL, err := s.Storage.Upload(ctx, in.Screenshot, key)
	if err != nil {
		return nil, fmt.Errorf("failed to upload screenshot: %w", err)
	}

	utr := in.UTR
	payment := &models.Payment{
		ID:         uuid.NewString(),
		UserID:     in.UserID,
		ContestID:  in.ContestID,
		FullName:   in.FullName,
		FFID:       in.FFID,
		UTR:        &utr,
		Screenshot: screenshotURL,
		Amount:     contest.EntryFee,
		Method:     models.PaymentManual,
		Status:     models.PaymentPending,
	}
	if err := db.Create(payment).Error; err != nil {
		s.discardUpload(key)
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// Lost a race against another submission; report which rule tripped.
			if err := s.checkSubmission(db, in.UserID, in.ContestID, in.UTR); err != nil {
				return nil, err
			}
			return nil, ErrPaymentExists
		}
		return nil, fmt.Errorf("failed to create payment: %w", err)
	}

	logger.Infof("payment submitted id=%s user=%s contest=%s", payment.ID, payment.UserID, payment.ContestID)
	return payment, nil
}

// discardUpload removes a screenshot whose payment record was never saved.
func (s *PaymentService) discardUpload(key string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.Storage.Delete(ctx, key); err != nil {
		logger.Warnf("failed to remove orphaned screenshot %s: %v", key, err)
	}
}

func (s *PaymentService) checkSubmission(db *gorm.DB, userID, contestID, utr string) error {
	var active int64
	if err := db.Model(&models.Payment{}).
		Where("user_id = ? AND contest_id = ? AND status IN ?", userID, contestID, models.ActivePaymentStatuses).
		Count(&active).Error; err != nil {
		return fmt.Errorf("failed to check existing payment: %w", err)
	}
	if active > 0 {
		return ErrPaymentExists
	}

	if utr != "" {
		var used int64
		if err := db.Model(&models.Payment{}).Where("utr = ?", utr).Count(&used).Error; err != nil {
			return fmt.Errorf("failed to check utr: %w", err)
		}
		if used > 0 {
			return ErrUTRUsed
		}
	}
	return nil
}

// UpdatePaymentStatus is the admin decision on a manual payment proof. It never
// touches the contest roster; the user joins separately once approved. Gateway
// payments are settled by VerifyPayment alone.
func (s *PaymentService) UpdatePaymentStatus(ctx context.Context, paymentID string, status models.PaymentStatus, adminID string) (*models.Payment, error) {
	if status != models.PaymentSuccess && status != models.PaymentRejected {
		return nil, ErrInvalidStatus
	}

	db := s.DB.WithContext(ctx)
	var payment models.Payment
	if err := db.Preload("User").Preload("Contest").First(&payment, "id = ?", paymentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPaymentNotFound
		}
		return nil, fmt.Errorf("failed to load payment: %w", err)
	}
	if payment.Method != models.PaymentManual || payment.Status == models.PaymentCreated {
		return nil, ErrNotReviewable
	}

	now := s.now()
	if err := db.Model(&models.Payment{}).Where("id = ?", payment.ID).Updates(map[string]interface{}{
		"status":      status,
		"reviewed_by": utils.StringOrNil(adminID),
		"reviewed_at": now,
	}).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrPaymentExists
		}
		return nil, fmt.Errorf("failed to update payment: %w", err)
	}
	payment.Status = status
	payment.ReviewedBy = utils.StringOrNil(adminID)
	payment.ReviewedAt = &now

	s.Metrics.observeReview(string(status))
	logger.Infof("payment reviewed id=%s status=%s admin=%s", payment.ID, status, adminID)

	if payment.User != nil && payment.Contest != nil {
		subject, body := paymentReviewedEmail(payment.User.Username, payment.Contest, &payment)
		s.Notifier.Notify(payment.User.Email, subject, body)
	}
	return &payment, nil
}

// PendingPayments is the admin review queue, oldest first.
func (s *PaymentService) PendingPayments(ctx context.Context) ([]models.Payment, error) {
	var payments []models.Payment
	if err := s.DB.WithContext(ctx).
		Preload("User").Preload("Contest").
		Where("status = ?", models.PaymentPending).
		Order("created_at ASC").
		Find(&payments).Error; err != nil {
		return nil, fmt.Errorf("failed to list pending payments: %w", err)
	}
	return payments, nil
}

func (s *PaymentService) AllPayments(ctx context.Context) ([]models.Payment, error) {
	var payments []models.Payment
	if err := s.DB.WithContext(ctx).
		Preload("User").Preload("Contest").
		Order("created_at DESC").
		Find(&payments).Error; err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	return payments, nil
}

// History lists one user's payments newest first.
func (s *PaymentService) History(ctx context.Context, userID string) ([]models.Payment, error) {
	payments := []models.Payment{}
	if userID == "" || userID == "undefined" {
		return payments, nil
	}
	if err := s.DB.WithContext(ctx).
		Preload("Contest").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&payments).Error; err != nil {
		return nil, fmt.Errorf("failed to load payment history: %w", err)
	}
	return payments, nil
}

var exportHeader = []interface{}{
	"Payment ID", "Submitted", "Username", "Email", "Contest", "Full name", "FF ID",
	"UTR", "Method", "Amount", "Status", "Reviewed",
}

// ExportPayments renders every payment as an XLSX workbook for reconciliation
// against bank statements.
func (s *PaymentService) ExportPayments(ctx context.Context) ([]byte, error) {
	payments, err := s.AllPayments(ctx)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Payments"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, err
	}
	if err := f.SetSheetRow(sheet, "A1", &exportHeader); err != nil {
		return nil, err
	}

	for i, p := range payments {
		var username, email, contest, reviewed string
		if p.User != nil {
			username, email = p.User.Username, p.User.Email
		}
		if p.Contest != nil {
			contest = p.Contest.Title
		}
		if p.ReviewedAt != nil {
			reviewed = p.ReviewedAt.Format(time.RFC3339)
		}
		row := []interface{}{
			p.ID, p.CreatedAt.Format(time.RFC3339), username, email, contest, p.FullName, p.FFID,
			utils.OrZero(p.UTR), string(p.Method), utils.FormatINR(p.Amount), string(p.Status), reviewed,
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return nil, err
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}
