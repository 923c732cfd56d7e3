package handlers

import (
	"firecontest-backend/services"

	"github.com/gofiber/fiber/v2"
)

type authHandler struct {
	svc *services.AuthService
}

type credentialsRequest struct {
	Username string `json:"username" form:"username"`
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
}

type resetRequest struct {
	Token    string `json:"token" form:"token"`
	UserID   string `json:"id" form:"id"`
	Password string `json:"password" form:"password"`
}

func SetupAuthRoutes(api fiber.Router, svc *services.AuthService, limit fiber.Handler) {
	h := &authHandler{svc: svc}
	auth := api.Group("/auth")
	auth.Post("/register", limit, h.register)
	auth.Post("/login", limit, h.login)
	auth.Post("/forgot-password", limit, h.forgotPassword)
	auth.Post("/reset-password", limit, h.resetPassword)
	auth.Post("/reset-password/:token", limit, h.resetPassword)
}

func (h *authHandler) register(c *fiber.Ctx) error {
	var req credentialsRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	res, err := h.svc.Register(c.UserContext(), services.RegisterInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(res)
}

func (h *authHandler) login(c *fiber.Ctx) error {
	var req credentialsRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	res, err := h.svc.Login(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(res)
}

func (h *authHandler) forgotPassword(c *fiber.Ctx) error {
	var req credentialsRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if err := h.svc.ForgotPassword(c.UserContext(), req.Email); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"msg": "If that email is registered, a reset link has been sent"})
}

// resetPassword takes the token from the path or the body.
func (h *authHandler) resetPassword(c *fiber.Ctx) error {
	var req resetRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	token := c.Params("token")
	if token == "" {
		token = req.Token
	}
	if err := h.svc.ResetPassword(c.UserContext(), token, req.UserID, req.Password); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"msg": "Password has been reset"})
}
