package types

import "strings"

// Status is the column a task sits in. Any status can move to any other.
type Status string

const (
	StatusBacklog    Status = "backlog"
	StatusInProgress Status = "in_progress"
	StatusReview     Status = "review"
	StatusDone       Status = "done"
)

// Statuses lists every status in board order.
var Statuses = []Status{StatusBacklog, StatusInProgress, StatusReview, StatusDone}

// Valid reports whether s is one of the four statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusBacklog, StatusInProgress, StatusReview, StatusDone:
		return true
	}
	return false
}

// ParseStatus validates a raw status string.
func ParseStatus(raw string) (Status, error) {
	s := Status(strings.TrimSpace(raw))
	if !s.Valid() {
		return "", NewValidationError("status", "invalid status %q: must be one of backlog, in_progress, review, done", raw)
	}
	return s, nil
}

// Priority is the optional urgency of a task.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Priorities lists every priority from least to most urgent.
var Priorities = []Priority{PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent}

// Valid reports whether p is a known priority.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// ParsePriority validates a raw priority string.
func ParsePriority(raw string) (Priority, error) {
	p := Priority(strings.TrimSpace(raw))
	if !p.Valid() {
		return "", NewValidationError("priority", "invalid priority %q: must be one of low, medium, high, urgent", raw)
	}
	return p, nil
}

// AssigneeType says whether a task is owned by an agent or a human.
type AssigneeType string

const (
	AssigneeAgent AssigneeType = "agent"
	AssigneeHuman AssigneeType = "human"
)

// Valid reports whether a is agent or human.
func (a AssigneeType) Valid() bool {
	return a == AssigneeAgent || a == AssigneeHuman
}

// ParseAssigneeType validates a raw assignee type string.
func ParseAssigneeType(raw string) (AssigneeType, error) {
	a := AssigneeType(strings.TrimSpace(raw))
	if !a.Valid() {
		return "", NewValidationError("assigned_to_type", "invalid assignee type %q: must be agent or human", raw)
	}
	return a, nil
}

// AnchorSource names the precedence step that produced a resolved anchor.
type AnchorSource string

const (
	AnchorSourceTask     AnchorSource = "task"
	AnchorSourceProject  AnchorSource = "project"
	AnchorSourceCategory AnchorSource = "category"
	AnchorSourceScratch  AnchorSource = "scratch"
)
