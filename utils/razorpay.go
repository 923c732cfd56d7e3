package utils

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const razorpayBaseURL = "https://api.razorpay.com/v1"

// GatewayOrder is the subset of a Razorpay order the checkout needs.
type GatewayOrder struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
	Status   string `json:"status"`
}

// RazorpayClient talks to the Razorpay Orders API with basic auth.
type RazorpayClient struct {
	BaseURL   string
	KeyID     string
	KeySecret string
	Client    *http.Client
}

func NewRazorpayClient(keyID, keySecret string) *RazorpayClient {
	return &RazorpayClient{
		BaseURL:   razorpayBaseURL,
		KeyID:     keyID,
		KeySecret: keySecret,
		Client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// CreateOrder registers an order of amount (in paise) with the gateway.
func (c *RazorpayClient) CreateOrder(ctx context.Context, amount int64, currency, receipt string) (*GatewayOrder, error) {
	reqBody := map[string]interface{}{
		"amount":   amount,
		"currency": currency,
		"receipt":  receipt,
	}
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/orders", bytes.NewReader(jsonData))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(c.KeyID, c.KeySecret)

	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call razorpay: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("razorpay /orders returned %d: %s", resp.StatusCode, string(body))
	}

	var out GatewayOrder
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("failed to decode razorpay order: %w", err)
	}
	return &out, nil
}

// VerifySignature checks the checkout callback signature.
func (c *RazorpayClient) VerifySignature(orderID, paymentID, signature string) bool {
	return VerifyPaymentSignature(c.KeySecret, orderID, paymentID, signature)
}
