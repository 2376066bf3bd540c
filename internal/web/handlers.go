package web

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"

	"ablevoice/internal/domain"
	"ablevoice/internal/usecase"
)

type commandRequest struct {
	Command string `json:"command"`
}

type modeRequest struct {
	Mode string `json:"mode"`
}

type routeRequest struct {
	Path string `json:"path"`
}

func (s *Server) handleStatus(c *fiber.Ctx) error {
	return c.JSON(s.session.Status())
}

func (s *Server) handleCommand(c *fiber.Ctx) error {
	var req commandRequest
	if err := c.BodyParser(&req); err != nil || strings.TrimSpace(req.Command) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "command is required"})
	}

	outcome, err := s.session.ManualCommand(req.Command)
	if err != nil {
		return sessionError(c, err)
	}
	return c.JSON(outcome)
}

func (s *Server) handleMode(c *fiber.Ctx) error {
	var req modeRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "mode is required"})
	}

	mode := domain.AccessibilityMode(strings.ToLower(strings.TrimSpace(req.Mode)))
	changed, err := s.session.SetMode(mode)
	if err != nil {
		return sessionError(c, err)
	}
	return c.JSON(fiber.Map{"mode": mode, "changed": changed})
}

func (s *Server) handleRoute(c *fiber.Ctx) error {
	var req routeRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "path is required"})
	}
	s.session.RouteChanged(req.Path)
	return c.JSON(fiber.Map{"route": s.session.Status().Route})
}

func (s *Server) handleSearch(c *fiber.Ctx) error {
	if err := s.session.VoiceSearch(c.UserContext()); err != nil {
		return sessionError(c, err)
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"listening": true})
}

func (s *Server) handlePermission(c *fiber.Ctx) error {
	perm := s.session.RetryPermission(c.UserContext())
	return c.JSON(fiber.Map{"permission": perm})
}

func sessionError(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	switch {
	case errors.Is(err, usecase.ErrInvalidMode):
		status = fiber.StatusBadRequest
	case errors.Is(err, usecase.ErrNotStarted):
		status = fiber.StatusConflict
	case errors.Is(err, usecase.ErrPermissionRequired):
		status = fiber.StatusForbidden
	case errors.Is(err, usecase.ErrCapabilityUnsupported):
		status = fiber.StatusNotImplemented
	}
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}
