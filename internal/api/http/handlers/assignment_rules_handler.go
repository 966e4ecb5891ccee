package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/problem-desk/internal/api/dto"
	"github.com/spec-kit/problem-desk/internal/auth"
	"github.com/spec-kit/problem-desk/internal/domain"
	"github.com/spec-kit/problem-desk/internal/service"
	apperrors "github.com/spec-kit/problem-desk/pkg/util"
)

// AssignmentRulesHandler manages first-face and pre-assignment administration.
type AssignmentRulesHandler struct {
	assignments *service.AssignmentService
}

// NewAssignmentRulesHandler constructs handler.
func NewAssignmentRulesHandler(assignments *service.AssignmentService) *AssignmentRulesHandler {
	return &AssignmentRulesHandler{assignments: assignments}
}

// SetFirstFace PUT /assignment-rules/first-face.
func (h *AssignmentRulesHandler) SetFirstFace(c *fiber.Ctx) error {
	actor, ok := auth.UserFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("user required")
	}
	var req dto.SetRuleRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	rule, err := h.assignments.SetFirstFace(c.Context(), actor, req.Department, req.UserID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": firstFaceResponse(rule)})
}

// ListFirstFace GET /assignment-rules/first-face.
func (h *AssignmentRulesHandler) ListFirstFace(c *fiber.Ctx) error {
	actor, ok := auth.UserFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("user required")
	}
	rules, err := h.assignments.ListFirstFace(c.Context(), actor)
	if err != nil {
		return err
	}
	items := make([]dto.FirstFaceRuleResponse, 0, len(rules))
	for i := range rules {
		items = append(items, firstFaceResponse(&rules[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// RemoveFirstFace DELETE /assignment-rules/first-face/:department.
func (h *AssignmentRulesHandler) RemoveFirstFace(c *fiber.Ctx) error {
	actor, ok := auth.UserFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("user required")
	}
	if err := h.assignments.RemoveFirstFace(c.Context(), actor, c.Params("department")); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// SetPreAssignment PUT /assignment-rules/pre-assignments.
func (h *AssignmentRulesHandler) SetPreAssignment(c *fiber.Ctx) error {
	actor, ok := auth.UserFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("user required")
	}
	var req dto.SetRuleRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	rule, err := h.assignments.SetPreAssignment(c.Context(), actor, req.Department, req.UserID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": preAssignmentResponse(rule)})
}

// ListPreAssignments GET /assignment-rules/pre-assignments.
func (h *AssignmentRulesHandler) ListPreAssignments(c *fiber.Ctx) error {
	actor, ok := auth.UserFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("user required")
	}
	rules, err := h.assignments.ListPreAssignments(c.Context(), actor)
	if err != nil {
		return err
	}
	items := make([]dto.PreAssignmentRuleResponse, 0, len(rules))
	for i := range rules {
		items = append(items, preAssignmentResponse(&rules[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// RemovePreAssignment DELETE /assignment-rules/pre-assignments/:department.
func (h *AssignmentRulesHandler) RemovePreAssignment(c *fiber.Ctx) error {
	actor, ok := auth.UserFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("user required")
	}
	if err := h.assignments.RemovePreAssignment(c.Context(), actor, c.Params("department")); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

func firstFaceResponse(rule *domain.FirstFaceRule) dto.FirstFaceRuleResponse {
	return dto.FirstFaceRuleResponse{
		ID:         rule.ID,
		Department: rule.Department,
		UserID:     rule.UserID,
		UserName:   rule.UserName,
		Scope:      rule.Scope,
		AssignedBy: rule.AssignedBy,
		AssignedAt: rule.AssignedAt,
	}
}

func preAssignmentResponse(rule *domain.PreAssignmentRule) dto.PreAssignmentRuleResponse {
	return dto.PreAssignmentRuleResponse{
		ID:         rule.ID,
		Department: rule.Department,
		UserID:     rule.UserID,
		UserName:   rule.UserName,
		AssignedBy: rule.AssignedBy,
		AssignedAt: rule.AssignedAt,
	}
}
