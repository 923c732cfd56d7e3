package models

import (
	"time"

	"gorm.io/datatypes"
)

type Announcement struct {
	ID        string    `json:"id" gorm:"primaryKey"`
	Message   string    `json:"message" gorm:"type:text;not null"`
	CreatedAt time.Time `json:"createdAt" gorm:"autoCreateTime;index"`
}

type Highlight struct {
	ID        string    `json:"id" gorm:"primaryKey"`
	Title     string    `json:"title" gorm:"not null"`
	VideoURL  string    `json:"videoUrl" gorm:"not null"`
	Thumbnail string    `json:"thumbnail"`
	CreatedBy *string   `json:"createdBy,omitempty"`
	CreatedAt time.Time `json:"createdAt" gorm:"autoCreateTime;index"`
}

// Setting is a keyed JSON value, e.g. the payment QR code URL.
type Setting struct {
	Key       string         `json:"key" gorm:"primaryKey"`
	Value     datatypes.JSON `json:"value"`
	UpdatedAt time.Time      `json:"updatedAt" gorm:"autoUpdateTime"`
}

const SettingPaymentQR = "payment_qr"
