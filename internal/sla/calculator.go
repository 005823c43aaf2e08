// Package sla derives time metrics from stored ticket timestamps. Nothing
// is cached: every call reads the clock again.
package sla

import (
	"time"

	"github.com/spec-kit/ticket-lifecycle/internal/domain"
)

// Calculator computes ticket age and remaining SLA.
type Calculator struct {
	clock Clock
}

// Snapshot bundles the live SLA metrics of one ticket at one instant.
type Snapshot struct {
	TicketID       int64     `json:"ticket_id"`
	AgeHours       int64     `json:"age_hours"`
	RemainingHours int64     `json:"remaining_hours"`
	Breached       bool      `json:"breached"`
	ObservedAt     time.Time `json:"observed_at"`
}

// NewCalculator returns a Calculator reading time from clock.
func NewCalculator(clock Clock) *Calculator {
	if clock == nil {
		clock = RealClock()
	}
	return &Calculator{clock: clock}
}

// AgeHours returns whole hours elapsed since the ticket was created.
func (c *Calculator) AgeHours(ticket *domain.Ticket) int64 {
	return wholeHours(c.clock.Now().Sub(ticket.CreatedAt))
}

// RemainingSLA returns whole hours until the SLA is due. Negative means breached.
func (c *Calculator) RemainingSLA(ticket *domain.Ticket) int64 {
	return wholeHours(ticket.SLADue.Sub(c.clock.Now()))
}

// Snapshot reads the clock once and derives every metric from that instant.
func (c *Calculator) Snapshot(ticket *domain.Ticket) Snapshot {
	now := c.clock.Now()
	remaining := ticket.SLADue.Sub(now)
	return Snapshot{
		TicketID:       ticket.ID,
		AgeHours:       wholeHours(now.Sub(ticket.CreatedAt)),
		RemainingHours: wholeHours(remaining),
		Breached:       remaining < 0,
		ObservedAt:     now,
	}
}

// wholeHours truncates toward zero, so 90 minutes overdue is -1.
func wholeHours(d time.Duration) int64 {
	return int64(d / time.Hour)
}
