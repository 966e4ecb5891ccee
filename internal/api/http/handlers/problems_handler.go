package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/problem-desk/internal/api/dto"
	"github.com/spec-kit/problem-desk/internal/auth"
	"github.com/spec-kit/problem-desk/internal/domain"
	"github.com/spec-kit/problem-desk/internal/service"
	apperrors "github.com/spec-kit/problem-desk/pkg/util"
)

// ProblemsHandler manages problem lifecycle endpoints.
type ProblemsHandler struct {
	problems    *service.ProblemService
	assignments *service.AssignmentService
}

// NewProblemsHandler constructs handler.
func NewProblemsHandler(problems *service.ProblemService, assignments *service.AssignmentService) *ProblemsHandler {
	return &ProblemsHandler{problems: problems, assignments: assignments}
}

// Create POST /problems.
func (h *ProblemsHandler) Create(c *fiber.Ctx) error {
	actor, ok := auth.UserFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("user required")
	}
	var req dto.CreateProblemRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	problem, err := h.problems.CreateProblem(c.Context(), actor, service.ProblemCreateInput{
		Department: req.Department,
		Service:    req.Service,
		Priority:   req.Priority,
		Statement:  req.Statement,
		Client:     req.Client,
		Images:     req.Images,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": problemSummary(problem)})
}

// List GET /problems.
func (h *ProblemsHandler) List(c *fiber.Ctx) error {
	actor, ok := auth.UserFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("user required")
	}
	problems, err := h.problems.ListProblems(c.Context(), actor, parseProblemQuery(c))
	if err != nil {
		return err
	}
	items := make([]dto.ProblemSummary, 0, len(problems))
	for i := range problems {
		items = append(items, problemSummary(&problems[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// Get GET /problems/:id.
func (h *ProblemsHandler) Get(c *fiber.Ctx) error {
	actor, ok := auth.UserFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("user required")
	}
	detail, err := h.problems.GetProblem(c.Context(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": problemDetail(detail)})
}

// SetStatus PATCH /problems/:id/status.
func (h *ProblemsHandler) SetStatus(c *fiber.Ctx) error {
	actor, ok := auth.UserFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("user required")
	}
	var req dto.SetStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	problem, err := h.problems.SetStatus(c.Context(), actor, c.Params("id"), req.Status, req.Comment)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": problemSummary(problem)})
}

// Approve POST /problems/:id/approve.
func (h *ProblemsHandler) Approve(c *fiber.Ctx) error {
	actor, ok := auth.UserFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("user required")
	}
	problem, err := h.problems.Approve(c.Context(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": problemSummary(problem)})
}

// Reject POST /problems/:id/reject.
func (h *ProblemsHandler) Reject(c *fiber.Ctx) error {
	actor, ok := auth.UserFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("user required")
	}
	var req dto.RejectRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	problem, err := h.problems.Reject(c.Context(), actor, c.Params("id"), req.Reason)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": problemSummary(problem)})
}

// Transfer POST /problems/:id/transfer.
func (h *ProblemsHandler) Transfer(c *fiber.Ctx) error {
	actor, ok := auth.UserFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("user required")
	}
	var req dto.TransferRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.TargetUserID == "" {
		return apperrors.NewValidationError("target_user_id required", nil)
	}
	problem, err := h.assignments.Transfer(c.Context(), actor, c.Params("id"), req.TargetUserID, req.Reason)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": problemSummary(problem)})
}

// Assign POST /problems/:id/assign.
func (h *ProblemsHandler) Assign(c *fiber.Ctx) error {
	actor, ok := auth.UserFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("user required")
	}
	var req dto.AssignRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.TargetUserID == "" {
		return apperrors.NewValidationError("target_user_id required", nil)
	}
	problem, err := h.assignments.Assign(c.Context(), actor, c.Params("id"), req.TargetUserID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": problemSummary(problem)})
}

// AddComment POST /problems/:id/comments.
func (h *ProblemsHandler) AddComment(c *fiber.Ctx) error {
	actor, ok := auth.UserFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("user required")
	}
	var req dto.CreateCommentRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	commentType := req.Type
	if commentType == "" {
		commentType = domain.CommentTypeGeneral
	}
	comment, err := h.problems.AddComment(c.Context(), actor, c.Params("id"), commentType, req.Text)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": commentResponse(comment)})
}

// Delete DELETE /problems/:id.
func (h *ProblemsHandler) Delete(c *fiber.Ctx) error {
	actor, ok := auth.UserFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("user required")
	}
	if err := h.problems.DeleteProblem(c.Context(), actor, c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

func parseProblemQuery(c *fiber.Ctx) service.ProblemListInput {
	input := service.ProblemListInput{}
	if dept := c.Query("department"); dept != "" {
		input.Department = &dept
	}
	if assignee := c.Query("assignee_id"); assignee != "" {
		input.AssigneeID = &assignee
	}
	if creator := c.Query("created_by_id"); creator != "" {
		input.CreatedByID = &creator
	}
	if statusStr := c.Query("status"); statusStr != "" {
		for _, part := range strings.Split(statusStr, ",") {
			input.Statuses = append(input.Statuses, domain.ProblemStatus(strings.TrimSpace(part)))
		}
	}
	if priorityStr := c.Query("priority"); priorityStr != "" {
		for _, part := range strings.Split(priorityStr, ",") {
			input.Priorities = append(input.Priorities, domain.ProblemPriority(strings.TrimSpace(part)))
		}
	}
	if search := c.Query("search"); search != "" {
		input.SearchTerm = &search
	}
	page := parseInt(c.Query("page"), 1)
	pageSize := parseInt(c.Query("page_size"), 20)
	input.Offset = (page - 1) * pageSize
	input.Limit = pageSize
	return input
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func problemSummary(problem *domain.Problem) dto.ProblemSummary {
	return dto.ProblemSummary{
		ID:             problem.ID,
		ExternalKey:    problem.ExternalKey,
		Department:     problem.Department,
		Service:        problem.Service,
		Priority:       problem.Priority,
		Status:         problem.Status,
		AssignmentType: problem.AssignmentType,
		CreatedByName:  problem.CreatedByName,
		AssigneeID:     problem.AssigneeID,
		AssigneeName:   problem.AssigneeName,
		CreatedAt:      problem.CreatedAt,
		UpdatedAt:      problem.UpdatedAt,
	}
}

func problemDetail(detail *service.ProblemDetail) dto.ProblemDetailResponse {
	problem := detail.Problem
	resp := dto.ProblemDetailResponse{
		ProblemSummary:         problemSummary(problem),
		Statement:              problem.Statement,
		Client:                 problem.Client,
		Images:                 problem.Images,
		SubmittedForApprovalBy: problem.SubmittedForApprovalBy,
		SubmittedForApprovalAt: problem.SubmittedForApprovalAt,
		ApprovedBy:             problem.ApprovedBy,
		ApprovedAt:             problem.ApprovedAt,
		RejectionReason:        problem.RejectionReason,
		RejectedBy:             problem.RejectedBy,
		RejectedAt:             problem.RejectedAt,
		ResolvedAt:             problem.ResolvedAt,
		Comments:               make([]dto.CommentResponse, 0, len(detail.Comments)),
		Transfers:              make([]dto.TransferResponse, 0, len(detail.Transfers)),
		Actions:                make([]dto.ActionResponse, 0, len(detail.Actions)),
		Assignments:            make([]dto.AssignmentEntryResponse, 0, len(detail.AssignmentEntries)),
	}
	for i := range detail.Comments {
		resp.Comments = append(resp.Comments, commentResponse(&detail.Comments[i]))
	}
	for _, t := range detail.Transfers {
		resp.Transfers = append(resp.Transfers, dto.TransferResponse{
			ID:        t.ID,
			FromID:    t.FromID,
			FromName:  t.FromName,
			ToID:      t.ToID,
			ToName:    t.ToName,
			ByID:      t.ByID,
			ByName:    t.ByName,
			Reason:    t.Reason,
			CreatedAt: t.CreatedAt,
		})
	}
	for _, a := range detail.Actions {
		resp.Actions = append(resp.Actions, dto.ActionResponse{
			ID:        a.ID,
			ActorID:   a.ActorID,
			ActorName: a.ActorName,
			Type:      a.Type,
			Detail:    a.Detail,
			CreatedAt: a.CreatedAt,
		})
	}
	for _, e := range detail.AssignmentEntries {
		resp.Assignments = append(resp.Assignments, dto.AssignmentEntryResponse{
			ID:           e.ID,
			AssigneeID:   e.AssigneeID,
			AssigneeName: e.AssigneeName,
			AssignedBy:   e.AssignedBy,
			CreatedAt:    e.CreatedAt,
		})
	}
	return resp
}

func commentResponse(comment *domain.Comment) dto.CommentResponse {
	return dto.CommentResponse{
		ID:         comment.ID,
		AuthorID:   comment.AuthorID,
		AuthorName: comment.AuthorName,
		AuthorRole: comment.AuthorRole,
		Type:       comment.Type,
		Text:       comment.Text,
		CreatedAt:  comment.CreatedAt,
	}
}
