package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"firecontest-backend/models"
	"firecontest-backend/utils"
	"firecontest-backend/utils/logger"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// OrderGateway is the hosted checkout provider.
type OrderGateway interface {
	CreateOrder(ctx context.Context, amount int64, currency, receipt string) (*utils.GatewayOrder, error)
	VerifySignature(orderID, paymentID, signature string) bool
}

// GatewayService is the hosted-checkout alternative to manual UTR proofs. It
// writes into the same payment ledger, so the join gate is unchanged.
type GatewayService struct {
	DB       *gorm.DB
	Gateway  OrderGateway
	Payments *PaymentService
	Currency string
	KeyID    string
	now      func() time.Time
}

func NewGatewayService(db *gorm.DB, gateway OrderGateway, payments *PaymentService, currency, keyID string) *GatewayService {
	if currency == "" {
		currency = "INR"
	}
	return &GatewayService{
		DB:       db,
		Gateway:  gateway,
		Payments: payments,
		Currency: currency,
		KeyID:    keyID,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

type CreateOrderInput struct {
	UserID    string
	ContestID string
	FullName  string
	FFID      string
}

// CheckoutOrder is what the client needs to open the hosted checkout.
type CheckoutOrder struct {
	KeyID     string             `json:"key"`
	PaymentID string             `json:"paymentId"`
	Order     utils.GatewayOrder `json:"order"`
}

func (s *GatewayService) CreateOrder(ctx context.Context, in CreateOrderInput) (*CheckoutOrder, error) {
	in.FullName, in.FFID = strings.TrimSpace(in.FullName), strings.TrimSpace(in.FFID)
	switch {
	case in.UserID == "":
		return nil, validation("Missing userId")
	case in.ContestID == "":
		return nil, validation("Missing contestId")
	case in.FullName == "":
		return nil, validation("Full name is required")
	case in.FFID == "":
		return nil, validation("Free Fire ID is required")
	}

	db := s.DB.WithContext(ctx)
	var contest models.Contest
	if err := db.First(&contest, "id = ?", in.ContestID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrContestNotFound
		}
		return nil, fmt.Errorf("failed to load contest: %w", err)
	}
	if !contest.IsPaid() {
		return nil, validation("This contest is free to join")
	}
	if err := s.Payments.checkSubmission(db, in.UserID, in.ContestID, ""); err != nil {
		return nil, err
	}

	receipt := "order_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	order, err := s.Gateway.CreateOrder(ctx, utils.ToPaise(contest.EntryFee), s.Currency, receipt)
	if err != nil {
		return nil, fmt.Errorf("failed to create gateway order: %w", err)
	}

	orderID := order.ID
	payment := &models.Payment{
		ID:        uuid.NewString(),
		UserID:    in.UserID,
		ContestID: in.ContestID,
		FullName:  in.FullName,
		FFID:      in.FFID,
		Amount:    contest.EntryFee,
		Method:    models.PaymentGateway,
		OrderID:   &orderID,
		Status:    models.PaymentCreated,
	}
	if err := db.Create(payment).Error; err != nil {
		return nil, fmt.Errorf("failed to record gateway order: %w", err)
	}

	logger.Infof("gateway order created order=%s payment=%s", order.ID, payment.ID)
	return &CheckoutOrder{KeyID: s.KeyID, PaymentID: payment.ID, Order: *order}, nil
}

type VerifyInput struct {
	UserID    string
	OrderID   string
	PaymentID string
	Signature string
}

// VerifyPayment confirms a completed checkout for the order's owner. A bad
// signature is a hard rejection; on success the created order goes straight to
// success and the gateway payment id becomes the record's UTR.
func (s *GatewayService) VerifyPayment(ctx context.Context, in VerifyInput) (*models.Payment, error) {
	if in.UserID == "" {
		return nil, validation("Missing userId")
	}
	if in.OrderID == "" || in.PaymentID == "" || in.Signature == "" {
		return nil, validation("Payment details missing")
	}
	if !s.Gateway.VerifySignature(in.OrderID, in.PaymentID, in.Signature) {
		logger.Warnf("gateway signature mismatch order=%s", in.OrderID)
		return nil, ErrInvalidSignature
	}

	db := s.DB.WithContext(ctx)
	var payment models.Payment
	if err := db.First(&payment, "order_id = ? AND user_id = ?", in.OrderID, in.UserID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPaymentNotFound
		}
		return nil, fmt.Errorf("failed to load payment: %w", err)
	}
	switch payment.Status {
	case models.PaymentSuccess:
		return &payment, nil
	case models.PaymentCreated:
	default:
		return nil, newError(KindInvalidState, "Payment was rejected")
	}

	now := s.now()
	gatewayID := in.PaymentID
	res := db.Model(&models.Payment{}).
		Where("id = ? AND status = ?", payment.ID, models.PaymentCreated).
		Updates(map[string]interface{}{
			"status":             models.PaymentSuccess,
			"utr":                gatewayID,
			"gateway_payment_id": gatewayID,
			"reviewed_at":        now,
		})
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
			// Either the gateway id is already on file or another payment
			// for this contest became active since the order was opened.
			if err := s.Payments.checkSubmission(db, in.UserID, payment.ContestID, gatewayID); err != nil {
				return nil, err
			}
			return nil, ErrUTRUsed
		}
		return nil, fmt.Errorf("failed to confirm payment: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		// A concurrent verification settled it first.
		return s.settled(db, payment.ID)
	}

	payment.Status = models.PaymentSuccess
	payment.UTR = &gatewayID
	payment.GatewayPaymentID = &gatewayID
	payment.ReviewedAt = &now
	s.Payments.Metrics.observeReview(string(models.PaymentSuccess))
	return &payment, nil
}

func (s *GatewayService) settled(db *gorm.DB, paymentID string) (*models.Payment, error) {
	var payment models.Payment
	if err := db.First(&payment, "id = ?", paymentID).Error; err != nil {
		return nil, fmt.Errorf("failed to reload payment: %w", err)
	}
	if payment.Status != models.PaymentSuccess {
		return nil, newError(KindInvalidState, "Payment was rejected")
	}
	return &payment, nil
}
