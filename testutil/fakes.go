package testutil

import (
	"context"
	"fmt"
	"mime/multipart"
	"sync"

	"firecontest-backend/utils"
)

// FakeUploader records keys and returns deterministic URLs.
type FakeUploader struct {
	mu      sync.Mutex
	Keys    []string
	Deleted []string
	Err     error
}

func (u *FakeUploader) Upload(_ context.Context, _ *multipart.FileHeader, key string) (string, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.Err != nil {
		return "", u.Err
	}
	u.Keys = append(u.Keys, key)
	return "https://cdn.test/" + key, nil
}

func (u *FakeUploader) Delete(_ context.Context, key string) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.Deleted = append(u.Deleted, key)
	return nil
}

type SentMail struct {
	To      string
	Subject string
	HTML    string
}

// FakeNotifier captures notifications instead of sending them.
type FakeNotifier struct {
	mu   sync.Mutex
	sent []SentMail
}

func (n *FakeNotifier) Notify(to, subject, html string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, SentMail{To: to, Subject: subject, HTML: html})
}

func (n *FakeNotifier) Sent() []SentMail {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]SentMail(nil), n.sent...)
}

// FakeGateway issues sequential order ids and verifies signatures with Secret.
type FakeGateway struct {
	mu     sync.Mutex
	Secret string
	Orders []utils.GatewayOrder
	Err    error
}

func (g *FakeGateway) CreateOrder(_ context.Context, amount int64, currency, receipt string) (*utils.GatewayOrder, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.Err != nil {
		return nil, g.Err
	}
	order := utils.GatewayOrder{
		ID:       fmt.Sprintf("order_%d", len(g.Orders)+1),
		Amount:   amount,
		Currency: currency,
		Receipt:  receipt,
		Status:   "created",
	}
	g.Orders = append(g.Orders, order)
	return &order, nil
}

func (g *FakeGateway) VerifySignature(orderID, paymentID, signature string) bool {
	return utils.VerifyPaymentSignature(g.Secret, orderID, paymentID, signature)
}
