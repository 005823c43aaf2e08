package domain

// Status is a reference row for ticket lifecycle states.
type Status struct {
	ID   int64
	Name string
}

// SLAPolicy holds the per-category time budget in hours.
type SLAPolicy struct {
	CategoryID      int64
	ResponseHours   int
	ResolutionHours int
	EscalationHours int
}

// ReferenceKind names the reference tables the engine reads but never owns.
type ReferenceKind string

const (
	ReferenceUser     ReferenceKind = "user"
	ReferenceProperty ReferenceKind = "property"
	ReferenceCategory ReferenceKind = "category"
	ReferenceProvider ReferenceKind = "provider"
	ReferenceStatus   ReferenceKind = "status"
)
