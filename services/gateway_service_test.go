package services

import (
	"context"
	"testing"

	"firecontest-backend/models"
	"firecontest-backend/testutil"
	"firecontest-backend/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGatewayCheckoutFlow(t *testing.T) {
	f := setupPaymentService(t)
	ctx := context.Background()
	gateway := &testutil.FakeGateway{Secret: "rzp-secret"}
	svc := NewGatewayService(f.db, gateway, f.svc, "", "rzp_key")

	user := f.gen.User(t)
	contest := f.gen.Contest(t, testutil.ContestSpec{EntryFee: 49.5, MaxPlayers: 3})
	free := f.gen.Contest(t, testutil.ContestSpec{})

	_, err := svc.CreateOrder(ctx, CreateOrderInput{UserID: user.ID, ContestID: free.ID, FullName: "Al", FFID: "FF1"})
	assert.Equal(t, KindValidation, KindOf(err))

	checkout, err := svc.CreateOrder(ctx, CreateOrderInput{UserID: user.ID, ContestID: contest.ID, FullName: "Al", FFID: "FF1"})
	require.NoError(t, err)
	assert.Equal(t, "rzp_key", checkout.KeyID)
	assert.Equal(t, int64(4950), checkout.Order.Amount)
	assert.Equal(t, "INR", checkout.Order.Currency)
	assert.Regexp(t, `^order_[0-9a-f]{8}$`, checkout.Order.Receipt)

	var stored models.Payment
	require.NoError(t, f.db.First(&stored, "id = ?", checkout.PaymentID).Error)
	assert.Equal(t, models.PaymentCreated, stored.Status)
	assert.Equal(t, models.PaymentGateway, stored.Method)

	_, err = svc.VerifyPayment(ctx, VerifyInput{UserID: user.ID, OrderID: checkout.Order.ID, PaymentID: "pay_1"})
	assert.Equal(t, KindValidation, KindOf(err))

	_, err = svc.VerifyPayment(ctx, VerifyInput{UserID: user.ID, OrderID: checkout.Order.ID, PaymentID: "pay_1", Signature: "forged"})
	assert.ErrorIs(t, err, ErrInvalidSignature)

	sig := utils.SignPayment("rzp-secret", checkout.Order.ID, "pay_1")
	_, err = svc.VerifyPayment(ctx, VerifyInput{OrderID: checkout.Order.ID, PaymentID: "pay_1", Signature: sig})
	assert.Equal(t, KindValidation, KindOf(err))

	// Only the user who opened the order can settle it.
	stranger := f.gen.User(t)
	_, err = svc.VerifyPayment(ctx, VerifyInput{UserID: stranger.ID, OrderID: checkout.Order.ID, PaymentID: "pay_1", Signature: sig})
	assert.ErrorIs(t, err, ErrPaymentNotFound)

	payment, err := svc.VerifyPayment(ctx, VerifyInput{UserID: user.ID, OrderID: checkout.Order.ID, PaymentID: "pay_1", Signature: sig})
	require.NoError(t, err)
	assert.Equal(t, models.PaymentSuccess, payment.Status)
	assert.Equal(t, "pay_1", *payment.UTR)

	again, err := svc.VerifyPayment(ctx, VerifyInput{UserID: user.ID, OrderID: checkout.Order.ID, PaymentID: "pay_1", Signature: sig})
	require.NoError(t, err)
	assert.Equal(t, payment.ID, again.ID)

	res, err := f.contests.JoinContest(ctx, contest.ID, user.ID, FreeJoin{})
	require.NoError(t, err)
	assert.Equal(t, "FF1", res.Participant.InGameID)
	assert.Equal(t, "pay_1", res.Participant.ContactRef)

	unknown := utils.SignPayment("rzp-secret", "order_x", "pay_2")
	_, err = svc.VerifyPayment(ctx, VerifyInput{UserID: user.ID, OrderID: "order_x", PaymentID: "pay_2", Signature: unknown})
	assert.ErrorIs(t, err, ErrPaymentNotFound)

	_, err = f.svc.UpdatePaymentStatus(ctx, payment.ID, models.PaymentRejected, "admin-1")
	assert.ErrorIs(t, err, ErrNotReviewable)
}

func TestAbandonedCheckoutBlocksNothing(t *testing.T) {
	f := setupPaymentService(t)
	ctx := context.Background()
	gateway := &testutil.FakeGateway{Secret: "rzp-secret"}
	svc := NewGatewayService(f.db, gateway, f.svc, "INR", "rzp_key")

	user := f.gen.User(t)
	contest := f.gen.Contest(t, testutil.ContestSpec{EntryFee: 20, MaxPlayers: 4})
	order := CreateOrderInput{UserID: user.ID, ContestID: contest.ID, FullName: "Al", FFID: "FF1"}

	abandoned, err := svc.CreateOrder(ctx, order)
	require.NoError(t, err)

	pending, err := f.svc.PendingPayments(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending, "unpaid orders are not in the review queue")

	_, err = f.svc.UpdatePaymentStatus(ctx, abandoned.PaymentID, models.PaymentSuccess, "admin-1")
	assert.ErrorIs(t, err, ErrNotReviewable)

	_, err = f.contests.JoinContest(ctx, contest.ID, user.ID, FreeJoin{})
	assert.ErrorIs(t, err, ErrPaymentRequired)

	retry, err := svc.CreateOrder(ctx, order)
	require.NoError(t, err)
	assert.NotEqual(t, abandoned.Order.ID, retry.Order.ID)

	manual, err := f.svc.SubmitPayment(ctx, f.submission(t, user.ID, contest.ID, "TXN77"))
	require.NoError(t, err)
	assert.Equal(t, models.PaymentPending, manual.Status)

	// Paying the retry while the manual proof is still active would give the
	// user two live payments for one contest.
	sig := utils.SignPayment("rzp-secret", retry.Order.ID, "pay_9")
	_, err = svc.VerifyPayment(ctx, VerifyInput{UserID: user.ID, OrderID: retry.Order.ID, PaymentID: "pay_9", Signature: sig})
	assert.ErrorIs(t, err, ErrPaymentExists)

	_, err = f.svc.UpdatePaymentStatus(ctx, manual.ID, models.PaymentRejected, "admin-1")
	require.NoError(t, err)

	paid, err := svc.VerifyPayment(ctx, VerifyInput{UserID: user.ID, OrderID: retry.Order.ID, PaymentID: "pay_9", Signature: sig})
	require.NoError(t, err)
	assert.Equal(t, models.PaymentSuccess, paid.Status)

	res, err := f.contests.JoinContest(ctx, contest.ID, user.ID, FreeJoin{})
	require.NoError(t, err)
	assert.Equal(t, "pay_9", res.Participant.ContactRef)
}
