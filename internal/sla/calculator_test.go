package sla

import (
	"testing"
	"time"

	"github.com/spec-kit/ticket-lifecycle/internal/domain"
)

func TestCalculatorAgeHours(t *testing.T) {
	created := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	clock := NewFakeClock(created)
	calc := NewCalculator(clock)
	ticket := &domain.Ticket{CreatedAt: created, SLADue: created.Add(48 * time.Hour)}

	tests := []struct {
		name    string
		advance time.Duration
		want    int64
	}{
		{"just created", 0, 0},
		{"59 minutes", 59 * time.Minute, 0},
		{"one hour", time.Minute, 1},
		{"26 and a half hours", 25*time.Hour + 30*time.Minute, 26},
	}
	for _, tt := range tests {
		clock.Advance(tt.advance)
		if got := calc.AgeHours(ticket); got != tt.want {
			t.Errorf("%s: AgeHours = %d, want %d", tt.name, got, tt.want)
		}
	}
}

func TestCalculatorRemainingSLA(t *testing.T) {
	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	calc := NewCalculator(NewFakeClock(now))

	tests := []struct {
		name string
		due  time.Time
		want int64
	}{
		{"due in a day", now.Add(24 * time.Hour), 24},
		{"due in 90 minutes", now.Add(90 * time.Minute), 1},
		{"due now", now, 0},
		{"one hour overdue", now.Add(-time.Hour), -1},
		{"a minute past one hour overdue", now.Add(-61 * time.Minute), -1},
		{"three days overdue", now.Add(-72 * time.Hour), -72},
	}
	for _, tt := range tests {
		ticket := &domain.Ticket{CreatedAt: now.Add(-100 * time.Hour), SLADue: tt.due}
		if got := calc.RemainingSLA(ticket); got != tt.want {
			t.Errorf("%s: RemainingSLA = %d, want %d", tt.name, got, tt.want)
		}
	}
}

func TestCalculatorRecomputesOnEveryCall(t *testing.T) {
	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	clock := NewFakeClock(now)
	calc := NewCalculator(clock)
	ticket := &domain.Ticket{CreatedAt: now, SLADue: now.Add(2 * time.Hour)}

	if got := calc.RemainingSLA(ticket); got != 2 {
		t.Fatalf("RemainingSLA = %d, want 2", got)
	}
	clock.Advance(3 * time.Hour)
	if got := calc.RemainingSLA(ticket); got != -1 {
		t.Fatalf("RemainingSLA after advance = %d, want -1", got)
	}
}

func TestCalculatorSnapshot(t *testing.T) {
	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	calc := NewCalculator(NewFakeClock(now))
	ticket := &domain.Ticket{ID: 4, CreatedAt: now.Add(-5 * time.Hour), SLADue: now.Add(-time.Hour)}

	snap := calc.Snapshot(ticket)
	if snap.TicketID != 4 || snap.AgeHours != 5 || snap.RemainingHours != -1 || !snap.Breached {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
	if !snap.ObservedAt.Equal(now) {
		t.Fatalf("ObservedAt = %v, want %v", snap.ObservedAt, now)
	}
}
