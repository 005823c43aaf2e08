package domain

import "strings"

var escalationLadder = map[TicketPriority]TicketPriority{
	TicketPriorityLow:    TicketPriorityMedium,
	TicketPriorityMedium: TicketPriorityHigh,
	TicketPriorityHigh:   TicketPriorityUrgent,
	TicketPriorityUrgent: TicketPriorityUrgent,
}

// Next returns the successor on the escalation ladder. Urgent is terminal.
func (p TicketPriority) Next() TicketPriority {
	if next, ok := escalationLadder[p]; ok {
		return next
	}
	return p
}

// Valid reports whether p is a rung of the ladder.
func (p TicketPriority) Valid() bool {
	_, ok := escalationLadder[p]
	return ok
}

// ParsePriority matches a priority name case-insensitively.
func ParsePriority(raw string) (TicketPriority, bool) {
	for p := range escalationLadder {
		if strings.EqualFold(string(p), strings.TrimSpace(raw)) {
			return p, true
		}
	}
	return "", false
}
