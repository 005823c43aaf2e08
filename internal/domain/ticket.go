package domain

import "time"

// TicketPriority enumerates SLA urgency along the escalation ladder.
type TicketPriority string

const (
	TicketPriorityLow    TicketPriority = "Low"
	TicketPriorityMedium TicketPriority = "Medium"
	TicketPriorityHigh   TicketPriority = "High"
	TicketPriorityUrgent TicketPriority = "Urgent"
)

// NoActor is the actor recorded when a change has no user context.
const NoActor int64 = 0

// Ticket is the aggregate for property trouble tickets.
type Ticket struct {
	ID          int64
	RequesterID int64
	PropertyID  *int64
	CategoryID  int64
	Description string
	CreatedAt   time.Time
	Priority    TicketPriority
	SLADue      time.Time
	StatusID    int64
	AssigneeID  *int64
	ProviderID  *int64
	UpdatedAt   time.Time
	Version     int64
}

// Clone returns a deep copy so before/after snapshots do not share pointers.
func (t *Ticket) Clone() *Ticket {
	if t == nil {
		return nil
	}
	cp := *t
	cp.PropertyID = cloneID(t.PropertyID)
	cp.AssigneeID = cloneID(t.AssigneeID)
	cp.ProviderID = cloneID(t.ProviderID)
	return &cp
}

// AssigneeOrNoActor returns the assignee id, or NoActor when unassigned.
func (t *Ticket) AssigneeOrNoActor() int64 {
	if t == nil || t.AssigneeID == nil {
		return NoActor
	}
	return *t.AssigneeID
}

func cloneID(id *int64) *int64 {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}

// TicketDraft is the creation payload for a ticket.
type TicketDraft struct {
	RequesterID int64
	PropertyID  *int64
	CategoryID  int64
	Description string
	Priority    TicketPriority
	StatusID    *int64
	AssigneeID  *int64
	ProviderID  *int64
	// Zero values are filled from the clock and the category SLA policy.
	CreatedAt time.Time
	SLADue    time.Time
}

// TicketChanges lists the fields a direct update may set; nil leaves a field untouched.
type TicketChanges struct {
	Description *string
	PropertyID  *int64
	CategoryID  *int64
	ProviderID  *int64
	Priority    *TicketPriority
	StatusID    *int64
	AssigneeID  *int64
	SLADue      *time.Time
}

// Empty reports whether no field is set.
func (c TicketChanges) Empty() bool {
	return c.Description == nil && c.PropertyID == nil && c.CategoryID == nil &&
		c.ProviderID == nil && c.Priority == nil && c.StatusID == nil &&
		c.AssigneeID == nil && c.SLADue == nil
}

// Apply writes the set fields onto ticket.
func (c TicketChanges) Apply(ticket *Ticket) {
	if c.Description != nil {
		ticket.Description = *c.Description
	}
	if c.PropertyID != nil {
		ticket.PropertyID = cloneID(c.PropertyID)
	}
	if c.CategoryID != nil {
		ticket.CategoryID = *c.CategoryID
	}
	if c.ProviderID != nil {
		ticket.ProviderID = cloneID(c.ProviderID)
	}
	if c.Priority != nil {
		ticket.Priority = *c.Priority
	}
	if c.StatusID != nil {
		ticket.StatusID = *c.StatusID
	}
	if c.AssigneeID != nil {
		ticket.AssigneeID = cloneID(c.AssigneeID)
	}
	if c.SLADue != nil {
		ticket.SLADue = *c.SLADue
	}
}
