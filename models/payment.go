package models

import (
	"time"
)

type PaymentStatus string

const (
	// PaymentCreated is a gateway order the customer has not paid yet. It
	// blocks nothing and is never reviewed by an admin.
	PaymentCreated  PaymentStatus = "created"
	PaymentPending  PaymentStatus = "pending"
	PaymentSuccess  PaymentStatus = "success"
	PaymentRejected PaymentStatus = "rejected"
)

type PaymentMethod string

const (
	PaymentManual  PaymentMethod = "manual"
	PaymentGateway PaymentMethod = "gateway"
)

// Payment is one attempt by a user to pay for a contest. UTR is unique across
// all records; gateway orders carry no UTR until the gateway confirms them.
// Gateway orders start as created and go straight to success on verification.
type Payment struct {
	ID               string         `json:"id" gorm:"primaryKey"`
	UserID           string         `json:"userId" gorm:"not null;index"`
	ContestID        string         `json:"contestId" gorm:"not null;index"`
	FullName         string         `json:"fullName" gorm:"not null"`
	FFID             string         `json:"ffid" gorm:"column:ffid;not null"`
	UTR              *string        `json:"utr,omitempty" gorm:"uniqueIndex"`
	Screenshot       string         `json:"screenshot,omitempty"`
	Amount           float64        `json:"amount" gorm:"not null;default:0"`
	Method           PaymentMethod  `json:"method" gorm:"type:varchar(16);not null;default:'manual'"`
	OrderID          *string        `json:"orderId,omitempty" gorm:"uniqueIndex"`
	GatewayPaymentID *string        `json:"gatewayPaymentId,omitempty"`
	Status           PaymentStatus  `json:"status" gorm:"type:varchar(16);not null;default:'pending';index"`
	ReviewedBy       *string        `json:"reviewedBy,omitempty"`
	ReviewedAt       *time.Time     `json:"reviewedAt,omitempty"`
	CreatedAt        time.Time      `json:"createdAt" gorm:"autoCreateTime;index"`
	UpdatedAt        time.Time      `json:"updatedAt" gorm:"autoUpdateTime"`

	User    *User    `json:"user,omitempty" gorm:"foreignKey:UserID"`
	Contest *Contest `json:"contest,omitempty" gorm:"foreignKey:ContestID"`
}

// ActivePaymentStatuses are the statuses that hold a user's one payment slot
// for a contest.
var ActivePaymentStatuses = []PaymentStatus{PaymentPending, PaymentSuccess}

// IsActive reports whether the payment still blocks a new submission for the
// same user and contest.
func (p *Payment) IsActive() bool {
	return p.Status == PaymentPending || p.Status == PaymentSuccess
}
