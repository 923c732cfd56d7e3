package handlers

import (
	"encoding/json"
	"strings"

	"firecontest-backend/middleware"
	"firecontest-backend/models"
	"firecontest-backend/services"
	"firecontest-backend/utils/logger"

	"github.com/gofiber/fiber/v2"
)

type adminHandler struct {
	auth      *services.AuthService
	contests  *services.ContestService
	content   *services.ContentService
	dashboard *services.DashboardService
}

type updateContestRequest struct {
	Title      *string         `json:"title"`
	EntryFee   *float64        `json:"entryFee"`
	MaxPlayers *int            `json:"maxPlayers"`
	MatchTime  *string         `json:"matchTime"`
	Rewards    *models.Rewards `json:"rewards"`
	RoomID     *string         `json:"roomId"`
	RoomPass   *string         `json:"roomPass"`
}

type roomRequest struct {
	RoomID   string `json:"roomId" form:"roomId"`
	RoomPass string `json:"roomPass" form:"roomPass"`
}

type finishRequest struct {
	Winner     string `json:"winner" form:"winner"`
	KillPoints *int   `json:"killPoints" form:"killPoints"`
}

func SetupAdminRoutes(api fiber.Router, d Deps, limit, admin fiber.Handler) {
	h := &adminHandler{auth: d.Auth, contests: d.Contests, content: d.Content, dashboard: d.Dashboard}
	r := api.Group("/admin")

	r.Post("/login", limit, h.login)
	// The QR code is shown to players on the payment screen.
	r.Get("/system-settings", h.settings)

	r.Put("/system-settings", admin, h.updateSettings)
	r.Post("/user", admin, h.createUser)
	r.Get("/users", admin, h.users)
	r.Get("/dashboard-stats", admin, h.stats)

	r.Get("/contests", admin, h.listContests)
	r.Post("/contest", admin, h.createContest)
	r.Get("/contest/:id", admin, h.getContest)
	r.Put("/contest/:id", admin, h.updateContest)
	r.Put("/contest/:id/details", admin, h.updateDetails)
	r.Put("/contest/:id/room", admin, h.updateRoom)
	r.Post("/contest/:id/live", admin, h.goLive)
	r.Post("/contest/:id/finish", admin, h.finish)
	r.Delete("/contest/:id", admin, h.deleteContest)
}

func (h *adminHandler) login(c *fiber.Ctx) error {
	var req credentialsRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	res, err := h.auth.AdminLogin(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"token": res.Token, "adminId": res.UserID})
}

func (h *adminHandler) createUser(c *fiber.Ctx) error {
	var req credentialsRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	user, err := h.auth.AdminCreateUser(c.UserContext(), services.RegisterInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"msg": "User created", "user": user})
}

func (h *adminHandler) users(c *fiber.Ctx) error {
	users, err := h.auth.ListUsers(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(users)
}

func (h *adminHandler) stats(c *fiber.Ctx) error {
	stats, err := h.dashboard.Stats(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(stats)
}

func (h *adminHandler) settings(c *fiber.Ctx) error {
	qr, err := h.content.PaymentQRCode(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"paymentQrCode": qr})
}

func (h *adminHandler) updateSettings(c *fiber.Ctx) error {
	qr, err := h.content.SetPaymentQRCode(c.UserContext(), formFile(c, "qrCode"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"msg": "Settings updated", "paymentQrCode": qr})
}

func (h *adminHandler) listContests(c *fiber.Ctx) error {
	contests, err := h.contests.ListContests(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(contests)
}

func (h *adminHandler) getContest(c *fiber.Ctx) error {
	contest, err := h.contests.GetContest(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(contest)
}

// createContest reads a multipart form; rewards arrive as a JSON object.
func (h *adminHandler) createContest(c *fiber.Ctx) error {
	fee, err := formFloat(c, "entryFee", "Entry fee must be a number")
	if err != nil {
		return err
	}
	maxPlayers, err := formInt(c, "maxPlayers", "Max players must be a whole number")
	if err != nil {
		return err
	}
	var rewards models.Rewards
	if raw := strings.TrimSpace(c.FormValue("rewards")); raw != "" {
		if err := json.Unmarshal([]byte(raw), &rewards); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Rewards must be a JSON object")
		}
	}

	contest, err := h.contests.CreateContest(c.UserContext(), services.CreateContestInput{
		Title:      c.FormValue("title"),
		EntryFee:   fee,
		MaxPlayers: maxPlayers,
		MatchTime:  c.FormValue("matchTime"),
		Rewards:    rewards,
		Image:      formFile(c, "image"),
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"msg": "Contest created", "contest": contest})
}

func (h *adminHandler) update(c *fiber.Ctx, in services.UpdateContestInput) error {
	contest, err := h.contests.UpdateContest(c.UserContext(), c.Params("id"), in)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"msg": "Contest updated", "contest": contest})
}

func (h *adminHandler) updateContest(c *fiber.Ctx) error {
	var req updateContestRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	return h.update(c, services.UpdateContestInput{
		Title:      req.Title,
		EntryFee:   req.EntryFee,
		MaxPlayers: req.MaxPlayers,
		MatchTime:  req.MatchTime,
		Rewards:    req.Rewards,
		RoomID:     req.RoomID,
		RoomPass:   req.RoomPass,
	})
}

// updateDetails edits the match settings only; room fields are ignored.
func (h *adminHandler) updateDetails(c *fiber.Ctx) error {
	var req updateContestRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	return h.update(c, services.UpdateContestInput{
		Title:      req.Title,
		EntryFee:   req.EntryFee,
		MaxPlayers: req.MaxPlayers,
		MatchTime:  req.MatchTime,
		Rewards:    req.Rewards,
	})
}

func (h *adminHandler) updateRoom(c *fiber.Ctx) error {
	var req roomRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	contest, err := h.contests.UpdateRoom(c.UserContext(), c.Params("id"), req.RoomID, req.RoomPass)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"msg": "Room details updated", "contest": contest})
}

func (h *adminHandler) goLive(c *fiber.Ctx) error {
	contest, err := h.contests.GoLive(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"msg": "Contest is now live", "contest": contest})
}

func (h *adminHandler) finish(c *fiber.Ctx) error {
	var req finishRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	contest, err := h.contests.Finish(c.UserContext(), c.Params("id"), services.FinishInput{
		Winner:     req.Winner,
		KillPoints: req.KillPoints,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"msg": "Contest completed", "contest": contest})
}

func (h *adminHandler) deleteContest(c *fiber.Ctx) error {
	if err := h.contests.DeleteContest(c.UserContext(), c.Params("id")); err != nil {
		return err
	}
	logger.Infof("contest %s deleted by admin %s", c.Params("id"), middleware.AdminID(c))
	return c.JSON(fiber.Map{"msg": "Contest deleted"})
}
