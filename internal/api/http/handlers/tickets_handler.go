package handlers

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticket-lifecycle/internal/api/dto"
	"github.com/spec-kit/ticket-lifecycle/internal/domain"
	"github.com/spec-kit/ticket-lifecycle/internal/service"
	apperrors "github.com/spec-kit/ticket-lifecycle/pkg/util"
)

// ActorHeader carries the id of the user performing a change. Missing means
// no actor (0).
const ActorHeader = "X-Actor-ID"

// TicketsHandler exposes the lifecycle engine over HTTP.
type TicketsHandler struct {
	engine *service.LifecycleEngine
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(engine *service.LifecycleEngine) *TicketsHandler {
	return &TicketsHandler{engine: engine}
}

// CreateTicket POST /tickets.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	var req dto.CreateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.RequesterID <= 0 || req.CategoryID <= 0 || strings.TrimSpace(req.Description) == "" {
		return apperrors.NewValidationError("requester_id, category_id, description required", nil)
	}
	draft, err := req.Draft()
	if err != nil {
		return err
	}
	ticket, err := h.engine.Create(c.UserContext(), draft)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": dto.NewTicketResponse(ticket)})
}

// GetTicket GET /tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	id, err := ticketID(c)
	if err != nil {
		return err
	}
	ticket, err := h.engine.Get(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketResponse(ticket)})
}

// UpdateTicket PATCH /tickets/:id. An If-Match header carries the expected version.
func (h *TicketsHandler) UpdateTicket(c *fiber.Ctx) error {
	id, err := ticketID(c)
	if err != nil {
		return err
	}
	actor, err := actorID(c)
	if err != nil {
		return err
	}
	expected, err := expectedVersion(c)
	if err != nil {
		return err
	}
	var req dto.UpdateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	changes, err := req.Changes()
	if err != nil {
		return err
	}
	ticket, err := h.engine.UpdateTicket(c.UserContext(), id, changes, actor, expected)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketResponse(ticket)})
}

// DeleteTicket DELETE /tickets/:id.
func (h *TicketsHandler) DeleteTicket(c *fiber.Ctx) error {
	id, err := ticketID(c)
	if err != nil {
		return err
	}
	if err := h.engine.Delete(c.UserContext(), id); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// UpdateStatus POST /tickets/:id/status.
func (h *TicketsHandler) UpdateStatus(c *fiber.Ctx) error {
	id, err := ticketID(c)
	if err != nil {
		return err
	}
	actor, err := actorID(c)
	if err != nil {
		return err
	}
	var req dto.UpdateStatusRequest
	if err := c.BodyParser(&req); err != nil || req.StatusID <= 0 {
		return apperrors.NewValidationError("status_id required", nil)
	}
	ticket, err := h.engine.UpdateStatus(c.UserContext(), id, req.StatusID, actor)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketResponse(ticket)})
}

// Assign POST /tickets/:id/assign.
func (h *TicketsHandler) Assign(c *fiber.Ctx) error {
	id, err := ticketID(c)
	if err != nil {
		return err
	}
	actor, err := actorID(c)
	if err != nil {
		return err
	}
	var req dto.AssignRequest
	if err := c.BodyParser(&req); err != nil || req.AssigneeID <= 0 {
		return apperrors.NewValidationError("assignee_id required", nil)
	}
	ticket, err := h.engine.Assign(c.UserContext(), id, req.AssigneeID, actor)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketResponse(ticket)})
}

// Escalate POST /tickets/:id/escalate.
func (h *TicketsHandler) Escalate(c *fiber.Ctx) error {
	id, err := ticketID(c)
	if err != nil {
		return err
	}
	actor, err := actorID(c)
	if err != nil {
		return err
	}
	ticket, err := h.engine.Escalate(c.UserContext(), id, actor)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketResponse(ticket)})
}

// Close POST /tickets/:id/close.
func (h *TicketsHandler) Close(c *fiber.Ctx) error {
	id, err := ticketID(c)
	if err != nil {
		return err
	}
	actor, err := actorID(c)
	if err != nil {
		return err
	}
	var req dto.ResolutionRequest
	if err := c.BodyParser(&req); err != nil || strings.TrimSpace(req.Resolution) == "" {
		return apperrors.NewValidationError("resolution required", nil)
	}
	ticket, err := h.engine.Close(c.UserContext(), id, req.Resolution, actor)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketResponse(ticket)})
}

// AddResolution POST /tickets/:id/resolutions.
func (h *TicketsHandler) AddResolution(c *fiber.Ctx) error {
	id, err := ticketID(c)
	if err != nil {
		return err
	}
	var req dto.ResolutionRequest
	if err := c.BodyParser(&req); err != nil || strings.TrimSpace(req.Resolution) == "" {
		return apperrors.NewValidationError("resolution required", nil)
	}
	res, err := h.engine.AddResolution(c.UserContext(), id, req.Resolution)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": dto.NewResolutionResponse(res)})
}

// ListResolutions GET /tickets/:id/resolutions.
func (h *TicketsHandler) ListResolutions(c *fiber.Ctx) error {
	id, err := ticketID(c)
	if err != nil {
		return err
	}
	resolutions, err := h.engine.Resolutions(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewResolutionResponses(resolutions)})
}

// AuditTrail GET /tickets/:id/audit.
func (h *TicketsHandler) AuditTrail(c *fiber.Ctx) error {
	id, err := ticketID(c)
	if err != nil {
		return err
	}
	entries, err := h.engine.AuditTrail(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewAuditEntryResponses(entries)})
}

// SLA GET /tickets/:id/sla.
func (h *TicketsHandler) SLA(c *fiber.Ctx) error {
	id, err := ticketID(c)
	if err != nil {
		return err
	}
	snapshot, err := h.engine.SLA(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": snapshot})
}

func ticketID(c *fiber.Ctx) (int64, error) {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperrors.NewValidationError("invalid ticket id", map[string]any{"id": c.Params("id")})
	}
	return id, nil
}

func actorID(c *fiber.Ctx) (int64, error) {
	raw := strings.TrimSpace(c.Get(ActorHeader))
	if raw == "" {
		return domain.NoActor, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 0 {
		return 0, apperrors.NewValidationError("invalid actor id", map[string]any{"header": ActorHeader})
	}
	return id, nil
}

func expectedVersion(c *fiber.Ctx) (int64, error) {
	raw := strings.Trim(strings.TrimSpace(c.Get(fiber.HeaderIfMatch)), `"`)
	if raw == "" {
		return 0, nil
	}
	version, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || version <= 0 {
		return 0, apperrors.NewValidationError("invalid If-Match version", nil)
	}
	return version, nil
}
