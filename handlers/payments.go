package handlers

import (
	"time"

	"firecontest-backend/middleware"
	"firecontest-backend/models"
	"firecontest-backend/services"

	"github.com/gofiber/fiber/v2"
)

type paymentHandler struct {
	svc     *services.PaymentService
	gateway *services.GatewayService
}

type orderRequest struct {
	ContestID string `json:"contestId" form:"contestId"`
	FullName  string `json:"fullName" form:"fullName"`
	FFID      string `json:"ffid" form:"ffid"`
}

// verifyRequest uses the field names the hosted checkout posts back.
type verifyRequest struct {
	OrderID   string `json:"razorpay_order_id" form:"razorpay_order_id"`
	PaymentID string `json:"razorpay_payment_id" form:"razorpay_payment_id"`
	Signature string `json:"razorpay_signature" form:"razorpay_signature"`
}

type statusRequest struct {
	Status models.PaymentStatus `json:"status" form:"status"`
}

var errGatewayDisabled = fiber.NewError(fiber.StatusServiceUnavailable, "Online payments are not configured")

func SetupPaymentRoutes(api fiber.Router, svc *services.PaymentService, gateway *services.GatewayService, user, admin fiber.Handler) {
	h := &paymentHandler{svc: svc, gateway: gateway}
	payments := api.Group("/payments")
	payments.Post("/submit", user, h.submit)
	payments.Post("/create-order", user, h.createOrder)
	payments.Post("/verify", user, h.verify)
	payments.Get("/history/:userId", user, h.history)

	payments.Get("/pending", admin, h.pending)
	payments.Get("/all", admin, h.all)
	payments.Put("/update/:id", admin, h.updateStatus)
	payments.Get("/export", admin, h.export)
}

func (h *paymentHandler) submit(c *fiber.Ctx) error {
	payment, err := h.svc.SubmitPayment(c.UserContext(), services.SubmitPaymentInput{
		UserID:     middleware.UserID(c),
		ContestID:  c.FormValue("contestId"),
		FullName:   c.FormValue("fullName"),
		FFID:       c.FormValue("ffid"),
		UTR:        c.FormValue("utr"),
		Screenshot: formFile(c, "screenshot"),
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"msg":     "Payment submitted, awaiting verification",
		"payment": payment,
	})
}

func (h *paymentHandler) createOrder(c *fiber.Ctx) error {
	if h.gateway == nil {
		return errGatewayDisabled
	}
	var req orderRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	order, err := h.gateway.CreateOrder(c.UserContext(), services.CreateOrderInput{
		UserID:    middleware.UserID(c),
		ContestID: req.ContestID,
		FullName:  req.FullName,
		FFID:      req.FFID,
	})
	if err != nil {
		return err
	}
	return c.JSON(order)
}

func (h *paymentHandler) verify(c *fiber.Ctx) error {
	if h.gateway == nil {
		return errGatewayDisabled
	}
	var req verifyRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	payment, err := h.gateway.VerifyPayment(c.UserContext(), services.VerifyInput{
		UserID:    middleware.UserID(c),
		OrderID:   req.OrderID,
		PaymentID: req.PaymentID,
		Signature: req.Signature,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"msg": "Payment verified", "payment": payment})
}

// history only shows the caller's own payments.
func (h *paymentHandler) history(c *fiber.Ctx) error {
	target := c.Params("userId")
	if target != "undefined" && target != middleware.UserID(c) {
		return services.ErrForbidden
	}
	payments, err := h.svc.History(c.UserContext(), target)
	if err != nil {
		return err
	}
	for i := range payments {
		if payments[i].Contest != nil {
			pub := payments[i].Contest.Public()
			payments[i].Contest = &pub
		}
	}
	return c.JSON(payments)
}

func (h *paymentHandler) pending(c *fiber.Ctx) error {
	payments, err := h.svc.PendingPayments(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(payments)
}

func (h *paymentHandler) all(c *fiber.Ctx) error {
	payments, err := h.svc.AllPayments(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(payments)
}

func (h *paymentHandler) updateStatus(c *fiber.Ctx) error {
	var req statusRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	payment, err := h.svc.UpdatePaymentStatus(c.UserContext(), c.Params("id"), req.Status, middleware.AdminID(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"msg": "Payment status updated", "payment": payment})
}

func (h *paymentHandler) export(c *fiber.Ctx) error {
	data, err := h.svc.ExportPayments(c.UserContext())
	if err != nil {
		return err
	}
	c.Attachment("payments-" + time.Now().UTC().Format("20060102") + ".xlsx")
	c.Set(fiber.HeaderContentType, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	return c.Send(data)
}
