package handlers

import (
	"firecontest-backend/middleware"
	"firecontest-backend/services"

	"github.com/gofiber/fiber/v2"
)

type contentHandler struct {
	svc *services.ContentService
}

type highlightRequest struct {
	Title    string `json:"title" form:"title"`
	VideoURL string `json:"videoUrl" form:"videoUrl"`
}

type announcementRequest struct {
	Message string `json:"message" form:"message"`
}

func SetupContentRoutes(api fiber.Router, svc *services.ContentService, admin fiber.Handler) {
	h := &contentHandler{svc: svc}

	api.Get("/highlights", h.highlights)
	api.Post("/highlights", admin, h.createHighlight)
	api.Delete("/highlights/:id", admin, h.deleteHighlight)

	api.Get("/announcements", h.announcements)
	api.Post("/announcements", admin, h.createAnnouncement)
	api.Delete("/announcements/:id", admin, h.deleteAnnouncement)
}

func (h *contentHandler) highlights(c *fiber.Ctx) error {
	list, err := h.svc.ListHighlights(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(list)
}

func (h *contentHandler) createHighlight(c *fiber.Ctx) error {
	var req highlightRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	hl, err := h.svc.CreateHighlight(c.UserContext(), req.Title, req.VideoURL, middleware.AdminID(c))
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(hl)
}

func (h *contentHandler) deleteHighlight(c *fiber.Ctx) error {
	if err := h.svc.DeleteHighlight(c.UserContext(), c.Params("id")); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"msg": "Highlight deleted"})
}

func (h *contentHandler) announcements(c *fiber.Ctx) error {
	list, err := h.svc.ListAnnouncements(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(list)
}

func (h *contentHandler) createAnnouncement(c *fiber.Ctx) error {
	var req announcementRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	a, err := h.svc.CreateAnnouncement(c.UserContext(), req.Message)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(a)
}

func (h *contentHandler) deleteAnnouncement(c *fiber.Ctx) error {
	if err := h.svc.DeleteAnnouncement(c.UserContext(), c.Params("id")); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"msg": "Announcement deleted"})
}
