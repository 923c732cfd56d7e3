package handlers

import (
	"firecontest-backend/middleware"
	"firecontest-backend/models"
	"firecontest-backend/services"

	"github.com/gofiber/fiber/v2"
)

type contestHandler struct {
	svc *services.ContestService
}

type joinRequest struct {
	InGameName string `json:"inGameName" form:"inGameName"`
	InGameID   string `json:"inGameId" form:"inGameId"`
	Contact    string `json:"contact" form:"contact"`
}

func SetupContestRoutes(api fiber.Router, svc *services.ContestService, user fiber.Handler) {
	h := &contestHandler{svc: svc}
	contests := api.Group("/contests")
	contests.Get("/", h.list)
	contests.Get("/joined", user, h.joined)
	contests.Get("/:id", h.get)
	contests.Post("/:id/join", user, h.join)
	contests.Get("/:id/room", user, h.room)
}

func publicContests(in []models.Contest) []models.Contest {
	out := make([]models.Contest, len(in))
	for i, c := range in {
		out[i] = c.Public()
	}
	return out
}

func (h *contestHandler) list(c *fiber.Ctx) error {
	contests, err := h.svc.ListContests(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(publicContests(contests))
}

func (h *contestHandler) get(c *fiber.Ctx) error {
	contest, err := h.svc.GetContest(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(contest.Public())
}

func (h *contestHandler) joined(c *fiber.Ctx) error {
	records, err := h.svc.JoinedContests(c.UserContext(), middleware.UserID(c))
	if err != nil {
		return err
	}
	for i := range records {
		if records[i].Contest != nil {
			pub := records[i].Contest.Public()
			records[i].Contest = &pub
		}
	}
	return c.JSON(records)
}

// join takes the player's identity from the token, never from the body.
func (h *contestHandler) join(c *fiber.Ctx) error {
	var req joinRequest
	if err := parseOptionalBody(c, &req); err != nil {
		return err
	}
	res, err := h.svc.JoinContest(c.UserContext(), c.Params("id"), middleware.UserID(c), services.FreeJoin{
		InGameName: req.InGameName,
		InGameID:   req.InGameID,
		ContactRef: req.Contact,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"msg":         "Joined contest successfully",
		"slotIndex":   res.SlotIndex,
		"participant": res.Participant,
	})
}

func (h *contestHandler) room(c *fiber.Ctx) error {
	creds, err := h.svc.RoomFor(c.UserContext(), c.Params("id"), middleware.UserID(c))
	if err != nil {
		return err
	}
	return c.JSON(creds)
}
