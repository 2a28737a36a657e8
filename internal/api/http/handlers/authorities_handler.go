package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/civic-issue-service/internal/api/dto"
	"github.com/spec-kit/civic-issue-service/internal/domain"
	"github.com/spec-kit/civic-issue-service/internal/repository"
	"github.com/spec-kit/civic-issue-service/internal/service"
	apperrors "github.com/spec-kit/civic-issue-service/pkg/util"
)

// AuthoritiesHandler manages admin endpoints for responsible authorities.
type AuthoritiesHandler struct {
	assignment *service.AssignmentService
	issues     *service.IssueService
}

// NewAuthoritiesHandler constructs handler.
func NewAuthoritiesHandler(assignment *service.AssignmentService, issues *service.IssueService) *AuthoritiesHandler {
	return &AuthoritiesHandler{assignment: assignment, issues: issues}
}

// CreateAuthority POST /authorities.
func (h *AuthoritiesHandler) CreateAuthority(c *fiber.Ctx) error {
	var req dto.CreateAuthorityRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	authority, err := h.assignment.CreateAuthority(c.UserContext(), service.AuthorityInput{
		Name:         req.Name,
		Department:   req.Department,
		ContactEmail: req.ContactEmail,
		ContactPhone: req.ContactPhone,
		ServiceArea:  req.ServiceArea,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": authorityResponse(authority)})
}

// UpdateAuthority PUT /authorities/:id.
func (h *AuthoritiesHandler) UpdateAuthority(c *fiber.Ctx) error {
	var req dto.UpdateAuthorityRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	authority, err := h.assignment.UpdateAuthority(c.UserContext(), c.Params("id"), service.AuthorityInput{
		Name:         req.Name,
		Department:   req.Department,
		ContactEmail: req.ContactEmail,
		ContactPhone: req.ContactPhone,
		ServiceArea:  req.ServiceArea,
		Status:       req.Status,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": authorityResponse(authority)})
}

// GetAuthority GET /authorities/:id.
func (h *AuthoritiesHandler) GetAuthority(c *fiber.Ctx) error {
	authority, err := h.assignment.GetAuthority(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": authorityResponse(authority)})
}

// ListAuthorities GET /authorities.
func (h *AuthoritiesHandler) ListAuthorities(c *fiber.Ctx) error {
	filter := repository.AuthorityFilter{}
	if department := c.Query("department"); department != "" {
		dep := domain.IssueCategory(department)
		filter.Department = &dep
	}
	if status := c.Query("status"); status != "" {
		st := domain.AuthorityStatus(status)
		filter.Status = &st
	}
	if area := c.Query("service_area"); area != "" {
		filter.ServiceArea = &area
	}
	authorities, err := h.assignment.ListAuthorities(c.UserContext(), filter)
	if err != nil {
		return err
	}
	items := make([]dto.AuthorityResponse, 0, len(authorities))
	for i := range authorities {
		items = append(items, authorityResponse(&authorities[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// DeleteAuthority DELETE /authorities/:id.
func (h *AuthoritiesHandler) DeleteAuthority(c *fiber.Ctx) error {
	if err := h.assignment.DeleteAuthority(c.UserContext(), c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// Performance GET /authorities/:id/performance.
func (h *AuthoritiesHandler) Performance(c *fiber.Ctx) error {
	workload, err := h.assignment.AuthorityPerformance(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.AuthorityPerformanceResponse{
		AuthorityID:    workload.AuthorityID,
		OpenAssigned:   workload.OpenAssigned,
		ResolvedTotal:  workload.ResolvedTotal,
		AssignedTotal:  workload.AssignedTotal,
		ResolutionRate: workload.ResolutionRate(),
	}})
}

// Candidates GET /issues/:id/candidates. Ranks active authorities for an
// issue's category and service area.
func (h *AuthoritiesHandler) Candidates(c *fiber.Ctx) error {
	issue, err := h.issues.GetIssue(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	candidates, err := h.assignment.RankCandidates(c.UserContext(), issue)
	if err != nil {
		return err
	}
	items := make([]dto.AuthorityResponse, 0, len(candidates))
	for i := range candidates {
		items = append(items, authorityResponse(&candidates[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

func authorityResponse(authority *domain.Authority) dto.AuthorityResponse {
	return dto.AuthorityResponse{
		ID:           authority.ID,
		Name:         authority.Name,
		Department:   authority.Department,
		ContactEmail: authority.ContactEmail,
		ContactPhone: authority.ContactPhone,
		ServiceArea:  authority.ServiceArea,
		Status:       authority.Status,
		CreatedAt:    authority.CreatedAt,
		UpdatedAt:    authority.UpdatedAt,
	}
}
