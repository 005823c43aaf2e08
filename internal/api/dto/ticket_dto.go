package dto

import (
	"strings"
	"time"

	"github.com/spec-kit/ticket-lifecycle/internal/domain"
	apperrors "github.com/spec-kit/ticket-lifecycle/pkg/util"
)

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	RequesterID int64      `json:"requester_id"`
	PropertyID  *int64     `json:"property_id"`
	CategoryID  int64      `json:"category_id"`
	Description string     `json:"description"`
	Priority    string     `json:"priority"`
	StatusID    *int64     `json:"status_id"`
	AssigneeID  *int64     `json:"assignee_id"`
	ProviderID  *int64     `json:"provider_id"`
	CreatedAt   *time.Time `json:"created_at"`
	SLADue      *time.Time `json:"sla_due"`
}

// UpdateTicketRequest is a partial update; omitted fields stay unchanged.
type UpdateTicketRequest struct {
	Description *string    `json:"description"`
	PropertyID  *int64     `json:"property_id"`
	CategoryID  *int64     `json:"category_id"`
	ProviderID  *int64     `json:"provider_id"`
	Priority    *string    `json:"priority"`
	StatusID    *int64     `json:"status_id"`
	AssigneeID  *int64     `json:"assignee_id"`
	SLADue      *time.Time `json:"sla_due"`
}

// UpdateStatusRequest payload.
type UpdateStatusRequest struct {
	StatusID int64 `json:"status_id"`
}

// AssignRequest payload.
type AssignRequest struct {
	AssigneeID int64 `json:"assignee_id"`
}

// ResolutionRequest is used by both close and direct resolution insertion.
type ResolutionRequest struct {
	Resolution string `json:"resolution"`
}

// TicketResponse represents current ticket state.
type TicketResponse struct {
	ID          int64                 `json:"id"`
	RequesterID int64                 `json:"requester_id"`
	PropertyID  *int64                `json:"property_id"`
	CategoryID  int64                 `json:"category_id"`
	Description string                `json:"description"`
	Priority    domain.TicketPriority `json:"priority"`
	StatusID    int64                 `json:"status_id"`
	AssigneeID  *int64                `json:"assignee_id"`
	ProviderID  *int64                `json:"provider_id"`
	CreatedAt   time.Time             `json:"created_at"`
	SLADue      time.Time             `json:"sla_due"`
	UpdatedAt   time.Time             `json:"updated_at"`
	Version     int64                 `json:"version"`
}

// AuditEntryResponse is one audit trail line.
type AuditEntryResponse struct {
	ID          int64     `json:"id"`
	ActorID     int64     `json:"actor_id"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

// ResolutionResponse is one logged resolution.
type ResolutionResponse struct {
	ID          int64     `json:"id"`
	Description string    `json:"description"`
	ResolvedAt  time.Time `json:"resolved_at"`
}

// Draft converts the request into a creation draft. Priority names match
// case-insensitively; an empty priority takes the default.
func (r CreateTicketRequest) Draft() (domain.TicketDraft, error) {
	draft := domain.TicketDraft{
		RequesterID: r.RequesterID,
		PropertyID:  r.PropertyID,
		CategoryID:  r.CategoryID,
		Description: r.Description,
		StatusID:    r.StatusID,
		AssigneeID:  r.AssigneeID,
		ProviderID:  r.ProviderID,
	}
	if strings.TrimSpace(r.Priority) != "" {
		priority, err := parsePriority(r.Priority)
		if err != nil {
			return domain.TicketDraft{}, err
		}
		draft.Priority = priority
	}
	if r.CreatedAt != nil {
		draft.CreatedAt = r.CreatedAt.UTC()
	}
	if r.SLADue != nil {
		draft.SLADue = r.SLADue.UTC()
	}
	return draft, nil
}

// Changes converts the request into ticket changes.
func (r UpdateTicketRequest) Changes() (domain.TicketChanges, error) {
	changes := domain.TicketChanges{
		Description: r.Description,
		PropertyID:  r.PropertyID,
		CategoryID:  r.CategoryID,
		ProviderID:  r.ProviderID,
		StatusID:    r.StatusID,
		AssigneeID:  r.AssigneeID,
	}
	if r.Priority != nil {
		priority, err := parsePriority(*r.Priority)
		if err != nil {
			return domain.TicketChanges{}, err
		}
		changes.Priority = &priority
	}
	if r.SLADue != nil {
		due := r.SLADue.UTC()
		changes.SLADue = &due
	}
	return changes, nil
}

func parsePriority(raw string) (domain.TicketPriority, error) {
	priority, ok := domain.ParsePriority(raw)
	if !ok {
		return "", apperrors.NewValidationError("invalid priority", map[string]any{"priority": raw})
	}
	return priority, nil
}

// NewTicketResponse maps a ticket to its wire form.
func NewTicketResponse(ticket *domain.Ticket) TicketResponse {
	return TicketResponse{
		ID:          ticket.ID,
		RequesterID: ticket.RequesterID,
		PropertyID:  ticket.PropertyID,
		CategoryID:  ticket.CategoryID,
		Description: ticket.Description,
		Priority:    ticket.Priority,
		StatusID:    ticket.StatusID,
		AssigneeID:  ticket.AssigneeID,
		ProviderID:  ticket.ProviderID,
		CreatedAt:   ticket.CreatedAt,
		SLADue:      ticket.SLADue,
		UpdatedAt:   ticket.UpdatedAt,
		Version:     ticket.Version,
	}
}

// NewAuditEntryResponses maps audit entries in order.
func NewAuditEntryResponses(entries []domain.AuditEntry) []AuditEntryResponse {
	resp := make([]AuditEntryResponse, 0, len(entries))
	for _, entry := range entries {
		resp = append(resp, AuditEntryResponse{
			ID:          entry.ID,
			ActorID:     entry.ActorID,
			Description: entry.Description,
			CreatedAt:   entry.CreatedAt,
		})
	}
	return resp
}

// NewResolutionResponse maps one resolution.
func NewResolutionResponse(res *domain.Resolution) ResolutionResponse {
	return ResolutionResponse{ID: res.ID, Description: res.Description, ResolvedAt: res.ResolvedAt}
}

// NewResolutionResponses maps resolutions in order.
func NewResolutionResponses(resolutions []domain.Resolution) []ResolutionResponse {
	resp := make([]ResolutionResponse, 0, len(resolutions))
	for i := range resolutions {
		resp = append(resp, NewResolutionResponse(&resolutions[i]))
	}
	return resp
}
