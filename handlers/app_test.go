package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"

	"firecontest-backend/models"
	"firecontest-backend/services"
	"firecontest-backend/testutil"
	"firecontest-backend/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type testServer struct {
	app      *fiber.App
	db       *gorm.DB
	gen      *testutil.DataGenerator
	tokens   *services.TokenService
	notifier *testutil.FakeNotifier
	gateway  *testutil.FakeGateway
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	db := testutil.NewDB(t)
	uploader := &testutil.FakeUploader{}
	notifier := &testutil.FakeNotifier{}
	gateway := &testutil.FakeGateway{Secret: "rzp-secret"}
	metrics := services.NewMetrics()
	tokens := services.NewTokenService("handler-secret", time.Hour, 6*time.Hour)

	auth := services.NewAuthService(db, tokens, notifier, time.Hour, "https://app.test")
	auth.BcryptCost = bcrypt.MinCost
	payments := services.NewPaymentService(db, uploader, notifier, metrics)

	app := NewApp(Deps{
		DB:        db,
		Tokens:    tokens,
		Auth:      auth,
		Contests:  services.NewContestService(db, uploader, metrics),
		Payments:  payments,
		Gateway:   services.NewGatewayService(db, gateway, payments, "INR", "rzp_key"),
		Content:   services.NewContentService(db, uploader),
		Dashboard: services.NewDashboardService(db),
		Metrics:   metrics,
	})
	return &testServer{
		app:      app,
		db:       db,
		gen:      testutil.NewDataGenerator(db, 11),
		tokens:   tokens,
		notifier: notifier,
		gateway:  gateway,
	}
}

func (s *testServer) userToken(t *testing.T, u *models.User) string {
	tok, err := s.tokens.Issue(u.ID, services.AudienceUser)
	require.NoError(t, err)
	return tok
}

func (s *testServer) adminToken(t *testing.T) string {
	tok, err := s.tokens.Issue(s.gen.Admin(t).ID, services.AudienceAdmin)
	require.NoError(t, err)
	return tok
}

type response struct {
	status int
	body   map[string]interface{}
	raw    []byte
}

func (r response) msg() string {
	m, _ := r.body["msg"].(string)
	return m
}

func (s *testServer) do(t *testing.T, req *http.Request, token string) response {
	t.Helper()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := response{status: resp.StatusCode, raw: raw}
	_ = json.Unmarshal(raw, &out.body)
	return out
}

func (s *testServer) json(t *testing.T, method, path, token string, body interface{}) response {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return s.do(t, req, token)
}

func (s *testServer) multipart(t *testing.T, method, path, token string, fields map[string]string, fileField string) response {
	t.Helper()
	body, contentType := testutil.MultipartBody(t, fields, fileField, "upload.png")
	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", contentType)
	return s.do(t, req, token)
}

func joinBody() map[string]string {
	return map[string]string{"inGameName": "Sniper", "inGameId": "FF42", "contact": "9999999999"}
}

func TestFreeContestFillsUp(t *testing.T) {
	s := newTestServer(t)
	contest := s.gen.Contest(t, testutil.ContestSpec{MaxPlayers: 2})
	a, b, c := s.gen.User(t), s.gen.User(t), s.gen.User(t)
	path := "/api/contests/" + contest.ID + "/join"

	res := s.json(t, http.MethodPost, path, s.userToken(t, a), joinBody())
	require.Equal(t, http.StatusOK, res.status, string(res.raw))
	assert.EqualValues(t, 1, res.body["slotIndex"])

	res = s.json(t, http.MethodPost, path, s.userToken(t, b), joinBody())
	require.Equal(t, http.StatusOK, res.status, string(res.raw))
	assert.EqualValues(t, 2, res.body["slotIndex"])

	res = s.json(t, http.MethodPost, path, s.userToken(t, c), joinBody())
	assert.Equal(t, http.StatusBadRequest, res.status)
	assert.Equal(t, "Contest is full", res.msg())

	res = s.json(t, http.MethodPost, path, s.userToken(t, a), joinBody())
	assert.Equal(t, http.StatusBadRequest, res.status)
	assert.Equal(t, "Contest is full", res.msg(), "capacity is checked before duplicates")
}

func TestJoinRequiresUserToken(t *testing.T) {
	s := newTestServer(t)
	contest := s.gen.Contest(t, testutil.ContestSpec{})
	path := "/api/contests/" + contest.ID + "/join"

	res := s.json(t, http.MethodPost, path, "", joinBody())
	assert.Equal(t, http.StatusUnauthorized, res.status)
	assert.Equal(t, "Missing Token", res.msg())

	res = s.json(t, http.MethodPost, path, s.adminToken(t), joinBody())
	assert.Equal(t, http.StatusUnauthorized, res.status)
}

func TestPaidContestJoinAfterApproval(t *testing.T) {
	s := newTestServer(t)
	contest := s.gen.Contest(t, testutil.ContestSpec{EntryFee: 50, MaxPlayers: 10})
	user := s.gen.User(t)
	userTok, adminTok := s.userToken(t, user), s.adminToken(t)
	joinPath := "/api/contests/" + contest.ID + "/join"

	res := s.json(t, http.MethodPost, joinPath, userTok, nil)
	assert.Equal(t, http.StatusForbidden, res.status)
	assert.Equal(t, "Payment required before joining this contest", res.msg())

	res = s.multipart(t, http.MethodPost, "/api/payments/submit", userTok, map[string]string{
		"contestId": contest.ID, "fullName": "Al Pacino", "ffid": "FF777", "utr": "TXN555",
	}, "screenshot")
	require.Equal(t, http.StatusCreated, res.status, string(res.raw))
	payment := res.body["payment"].(map[string]interface{})
	assert.Equal(t, "pending", payment["status"])
	assert.Equal(t, user.ID, payment["userId"])

	res = s.json(t, http.MethodPost, joinPath, userTok, nil)
	assert.Equal(t, http.StatusForbidden, res.status, "pending payments do not open the gate")

	res = s.json(t, http.MethodGet, "/api/payments/pending", userTok, nil)
	assert.Equal(t, http.StatusUnauthorized, res.status)

	res = s.json(t, http.MethodPut, "/api/payments/update/"+payment["id"].(string), adminTok,
		map[string]string{"status": "success"})
	require.Equal(t, http.StatusOK, res.status, string(res.raw))

	res = s.json(t, http.MethodPost, joinPath, userTok, joinBody())
	require.Equal(t, http.StatusOK, res.status, string(res.raw))
	participant := res.body["participant"].(map[string]interface{})
	assert.Equal(t, "Al Pacino", participant["inGameName"], "profile comes from the payment")
	assert.Equal(t, "FF777", participant["inGameId"])

	res = s.json(t, http.MethodGet, "/api/payments/history/"+user.ID, userTok, nil)
	require.Equal(t, http.StatusOK, res.status)
	var history []map[string]interface{}
	require.NoError(t, json.Unmarshal(res.raw, &history))
	require.Len(t, history, 1)

	other := s.gen.User(t)
	res = s.json(t, http.MethodGet, "/api/payments/history/"+user.ID, s.userToken(t, other), nil)
	assert.Equal(t, http.StatusForbidden, res.status)
}

func TestUTRReuseAcrossUsers(t *testing.T) {
	s := newTestServer(t)
	c1 := s.gen.Contest(t, testutil.ContestSpec{EntryFee: 10})
	c2 := s.gen.Contest(t, testutil.ContestSpec{EntryFee: 20})
	u1, u2 := s.gen.User(t), s.gen.User(t)
	fields := func(contestID string) map[string]string {
		return map[string]string{"contestId": contestID, "fullName": "Player", "ffid": "FF1", "utr": "TXN123"}
	}

	res := s.multipart(t, http.MethodPost, "/api/payments/submit", s.userToken(t, u1), fields(c1.ID), "screenshot")
	require.Equal(t, http.StatusCreated, res.status, string(res.raw))

	res = s.multipart(t, http.MethodPost, "/api/payments/submit", s.userToken(t, u2), fields(c2.ID), "screenshot")
	assert.Equal(t, http.StatusConflict, res.status)
	assert.Equal(t, "UTR already used", res.msg())

	res = s.multipart(t, http.MethodPost, "/api/payments/submit", s.userToken(t, u2), fields(c2.ID), "")
	assert.Equal(t, http.StatusBadRequest, res.status)
	assert.Equal(t, "Screenshot is required", res.msg())
}

var resetToken = regexp.MustCompile(`token=([0-9a-f]+)`)

func TestPasswordResetIsSingleUse(t *testing.T) {
	s := newTestServer(t)

	res := s.json(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"username": "ace", "email": "ace@example.com", "password": "secret1",
	})
	require.Equal(t, http.StatusCreated, res.status, string(res.raw))
	assert.NotEmpty(t, res.body["token"])

	unknown := s.json(t, http.MethodPost, "/api/auth/forgot-password", "", map[string]string{"email": "ghost@example.com"})
	known := s.json(t, http.MethodPost, "/api/auth/forgot-password", "", map[string]string{"email": "ace@example.com"})
	assert.Equal(t, unknown.status, known.status)
	assert.Equal(t, unknown.msg(), known.msg(), "responses must not reveal which emails exist")

	sent := s.notifier.Sent()
	require.Len(t, sent, 1)
	m := resetToken.FindStringSubmatch(sent[0].HTML)
	require.Len(t, m, 2)

	res = s.json(t, http.MethodPost, "/api/auth/reset-password/"+m[1], "", map[string]string{"password": "brand-new"})
	require.Equal(t, http.StatusOK, res.status, string(res.raw))

	res = s.json(t, http.MethodPost, "/api/auth/reset-password", "", map[string]string{"token": m[1], "password": "again-new"})
	assert.Equal(t, http.StatusBadRequest, res.status)
	assert.Equal(t, "Invalid or expired token", res.msg())

	res = s.json(t, http.MethodPost, "/api/auth/login", "", map[string]string{"email": "ace@example.com", "password": "brand-new"})
	assert.Equal(t, http.StatusOK, res.status)
	res = s.json(t, http.MethodPost, "/api/auth/login", "", map[string]string{"email": "ace@example.com", "password": "secret1"})
	assert.Equal(t, http.StatusBadRequest, res.status)
	assert.Equal(t, "Invalid credentials", res.msg())
}

func TestContestLifecycleOverHTTP(t *testing.T) {
	s := newTestServer(t)
	adminTok := s.adminToken(t)

	res := s.multipart(t, http.MethodPost, "/api/admin/contest", adminTok, map[string]string{
		"title": "Squad Royale", "entryFee": "0", "maxPlayers": "4", "matchTime": "2030-01-01T18:00",
		"rewards": `{"first":"₹500","second":"₹200","third":"₹100"}`,
	}, "image")
	require.Equal(t, http.StatusCreated, res.status, string(res.raw))
	id := res.body["contest"].(map[string]interface{})["id"].(string)

	res = s.multipart(t, http.MethodPost, "/api/admin/contest", adminTok, map[string]string{
		"title": "Bad", "maxPlayers": "many", "matchTime": "2030-01-01T18:00",
	}, "image")
	assert.Equal(t, http.StatusBadRequest, res.status)

	user := s.gen.User(t)
	userTok := s.userToken(t, user)
	res = s.json(t, http.MethodPost, "/api/contests/"+id+"/join", userTok, joinBody())
	require.Equal(t, http.StatusOK, res.status, string(res.raw))

	res = s.json(t, http.MethodPut, "/api/admin/contest/"+id+"/room", adminTok, map[string]string{"roomId": "R1", "roomPass": "P1"})
	require.Equal(t, http.StatusOK, res.status, string(res.raw))

	// Public views never carry room credentials or contact details.
	res = s.json(t, http.MethodGet, "/api/contests/"+id, "", nil)
	require.Equal(t, http.StatusOK, res.status)
	assert.NotContains(t, string(res.raw), "R1")
	assert.NotContains(t, string(res.raw), "9999999999")

	res = s.json(t, http.MethodGet, "/api/contests/"+id+"/room", userTok, nil)
	require.Equal(t, http.StatusOK, res.status)
	assert.Equal(t, "R1", res.body["roomId"])
	res = s.json(t, http.MethodGet, "/api/contests/"+id+"/room", s.userToken(t, s.gen.User(t)), nil)
	assert.Equal(t, http.StatusForbidden, res.status)

	res = s.json(t, http.MethodPost, "/api/admin/contest/"+id+"/finish", adminTok, map[string]string{"winner": "Sniper"})
	assert.Equal(t, http.StatusBadRequest, res.status, "cannot finish an upcoming contest")

	res = s.json(t, http.MethodPost, "/api/admin/contest/"+id+"/live", adminTok, nil)
	require.Equal(t, http.StatusOK, res.status, string(res.raw))

	res = s.json(t, http.MethodPost, "/api/contests/"+id+"/join", s.userToken(t, s.gen.User(t)), joinBody())
	assert.Equal(t, http.StatusBadRequest, res.status)
	assert.Equal(t, "Contest already started or finished", res.msg())

	res = s.json(t, http.MethodPost, "/api/admin/contest/"+id+"/finish", adminTok, map[string]interface{}{"winner": "Sniper", "killPoints": 12})
	require.Equal(t, http.StatusOK, res.status, string(res.raw))
	contest := res.body["contest"].(map[string]interface{})
	assert.Equal(t, "COMPLETED", contest["status"])
	assert.Nil(t, contest["roomId"])

	res = s.json(t, http.MethodGet, "/api/contests/joined", userTok, nil)
	require.Equal(t, http.StatusOK, res.status)
	var joined []map[string]interface{}
	require.NoError(t, json.Unmarshal(res.raw, &joined))
	require.Len(t, joined, 1, "join history survives completion")

	res = s.json(t, http.MethodGet, "/api/admin/dashboard-stats", adminTok, nil)
	require.Equal(t, http.StatusOK, res.status)
	assert.EqualValues(t, 3, res.body["totalUsers"])
}

func TestGatewayCheckoutOverHTTP(t *testing.T) {
	s := newTestServer(t)
	contest := s.gen.Contest(t, testutil.ContestSpec{EntryFee: 99})
	userTok := s.userToken(t, s.gen.User(t))

	res := s.json(t, http.MethodPost, "/api/payments/create-order", userTok, map[string]string{
		"contestId": contest.ID, "fullName": "Player", "ffid": "FF9",
	})
	require.Equal(t, http.StatusOK, res.status, string(res.raw))
	assert.Equal(t, "rzp_key", res.body["key"])
	orderID := res.body["order"].(map[string]interface{})["id"].(string)

	res = s.json(t, http.MethodPost, "/api/payments/verify", userTok, map[string]string{
		"razorpay_order_id": orderID, "razorpay_payment_id": "pay_1", "razorpay_signature": "forged",
	})
	assert.Equal(t, http.StatusBadRequest, res.status)
	assert.Equal(t, "Invalid signature", res.msg())

	// A validly signed callback posted by someone else does not settle the order.
	signed := map[string]string{
		"razorpay_order_id":   orderID,
		"razorpay_payment_id": "pay_1",
		"razorpay_signature":  utils.SignPayment(s.gateway.Secret, orderID, "pay_1"),
	}
	res = s.json(t, http.MethodPost, "/api/payments/verify", s.userToken(t, s.gen.User(t)), signed)
	assert.Equal(t, http.StatusNotFound, res.status)

	res = s.json(t, http.MethodPost, "/api/payments/verify", userTok, map[string]string{
		"razorpay_order_id":   orderID,
		"razorpay_payment_id": "pay_1",
		"razorpay_signature":  utils.SignPayment(s.gateway.Secret, orderID, "pay_1"),
	})
	require.Equal(t, http.StatusOK, res.status, string(res.raw))

	res = s.json(t, http.MethodPost, "/api/contests/"+contest.ID+"/join", userTok, nil)
	assert.Equal(t, http.StatusOK, res.status, string(res.raw))
}

func TestContentAndSettings(t *testing.T) {
	s := newTestServer(t)
	adminTok := s.adminToken(t)

	res := s.json(t, http.MethodPost, "/api/announcements", adminTok, map[string]string{"message": "Maintenance at 2am"})
	require.Equal(t, http.StatusCreated, res.status)
	res = s.json(t, http.MethodPost, "/api/announcements", "", map[string]string{"message": "spam"})
	assert.Equal(t, http.StatusUnauthorized, res.status)

	res = s.json(t, http.MethodPost, "/api/highlights", adminTok, map[string]string{
		"title": "Ace", "videoUrl": "https://www.youtube.com/watch?v=dQw4w9WgXcQ",
	})
	require.Equal(t, http.StatusCreated, res.status)
	assert.Equal(t, "https://img.youtube.com/vi/dQw4w9WgXcQ/mqdefault.jpg", res.body["thumbnail"])

	res = s.json(t, http.MethodGet, "/api/highlights", "", nil)
	require.Equal(t, http.StatusOK, res.status)
	assert.Contains(t, string(res.raw), "dQw4w9WgXcQ")

	res = s.multipart(t, http.MethodPut, "/api/admin/system-settings", adminTok, nil, "qrCode")
	require.Equal(t, http.StatusOK, res.status, string(res.raw))
	qr := res.body["paymentQrCode"].(string)
	assert.True(t, strings.HasPrefix(qr, "https://cdn.test/settings/"))

	res = s.json(t, http.MethodGet, "/api/admin/system-settings", "", nil)
	require.Equal(t, http.StatusOK, res.status)
	assert.Equal(t, qr, res.body["paymentQrCode"])
}

func TestExportAndOps(t *testing.T) {
	s := newTestServer(t)
	adminTok := s.adminToken(t)

	req := httptest.NewRequest(http.MethodGet, "/api/payments/export", nil)
	req.Header.Set("Authorization", "Bearer "+adminTok)
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Disposition"), ".xlsx")

	res := s.json(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, res.status)
	assert.Equal(t, "ok", res.body["status"])

	contest := s.gen.Contest(t, testutil.ContestSpec{MaxPlayers: 1})
	s.json(t, http.MethodPost, "/api/contests/"+contest.ID+"/join", s.userToken(t, s.gen.User(t)), joinBody())

	res = s.json(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, res.status)
	assert.Contains(t, string(res.raw), `firecontest_contest_joins_total{outcome="ok"} 1`)
}

func TestErrorHandlerHidesInternalErrors(t *testing.T) {
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	app.Get("/boom", func(c *fiber.Ctx) error { return errors.New("pq: connection refused") })
	app.Get("/missing", func(c *fiber.Ctx) error { return services.ErrContestNotFound })

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/boom", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.JSONEq(t, `{"msg":"Server error"}`, string(body))

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/missing", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/nowhere", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
