package httpapi

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/bft-labs/go2relay/internal/domain"
)

type commandRequest struct {
	Command string `json:"command"`
}

type motionModeRequest struct {
	Mode string `json:"mode"`
}

type commandResponse struct {
	Command string `json:"command,omitempty"`
	Mode    string `json:"mode,omitempty"`
	domain.CommandResult
}

func (s *Server) postCommand(c *fiber.Ctx) error {
	var req commandRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	name := strings.TrimSpace(req.Command)
	if name == "" {
		return fiber.NewError(fiber.StatusBadRequest, "missing command")
	}

	res, err := s.commands.ExecuteCommand(c.UserContext(), name)
	switch {
	case errors.Is(err, domain.ErrUnknownCommand):
		names := make([]string, 0)
		for _, spec := range s.commands.Commands() {
			names = append(names, spec.Name)
		}
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":     "unknown command: " + name,
			"available": names,
		})
	case errors.Is(err, domain.ErrRequestTimeout):
		return c.Status(fiber.StatusGatewayTimeout).JSON(commandResponse{
			Command:       name,
			CommandResult: domain.CommandResult{ResultID: res.ResultID, Message: "command timed out"},
		})
	case err != nil:
		return err
	}

	return c.JSON(commandResponse{Command: name, CommandResult: res})
}

func (s *Server) postMotionMode(c *fiber.Ctx) error {
	var req motionModeRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	mode := strings.TrimSpace(req.Mode)
	if mode == "" {
		return fiber.NewError(fiber.StatusBadRequest, "missing mode")
	}

	res, err := s.commands.SetMotionMode(c.UserContext(), mode)
	switch {
	case errors.Is(err, domain.ErrUnknownMode):
		return fiber.NewError(fiber.StatusBadRequest, "unknown motion mode: "+mode)
	case errors.Is(err, domain.ErrRequestTimeout):
		return c.Status(fiber.StatusGatewayTimeout).JSON(commandResponse{
			Mode:          mode,
			CommandResult: domain.CommandResult{ResultID: res.ResultID, Message: "motion mode change timed out"},
		})
	case err != nil:
		return err
	}

	return c.JSON(commandResponse{Mode: mode, CommandResult: res})
}
