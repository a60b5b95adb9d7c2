// Package types defines the task board's domain model: tasks, projects, the
// closed status/priority/assignee variants, and the typed errors every layer
// above the store branches on.
package types

import (
	"encoding/json"
	"strings"
	"time"
)

// DateLayout is the calendar-date format accepted for due_date.
const DateLayout = "2006-01-02"

// Task is a work item on the board.
type Task struct {
	// ===== Identification =====
	ID int64 `json:"id"`

	// ===== Content =====
	Title         string    `json:"title"`
	Description   *string   `json:"description"`
	Status        Status    `json:"status"`
	Priority      *Priority `json:"priority"`
	DueDate       *string   `json:"due_date"`
	Tags          []string  `json:"tags"`
	BlockedReason *string   `json:"blocked_reason"`

	// ===== Assignment =====
	AssignedToType *AssigneeType `json:"assigned_to_type"`
	AssignedToID   *string       `json:"assigned_to_id"`
	NonAgent       bool          `json:"non_agent"`
	Anchor         *string       `json:"anchor"`

	// ===== Placement =====
	Position    int64   `json:"position"`
	ProjectID   *int64  `json:"project_id"`
	ContextKey  *string `json:"context_key"`
	ContextType *string `json:"context_type"`

	// ===== Timestamps =====
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at"`
	ArchivedAt  *time.Time `json:"archived_at"`

	// Derived on read by the anchor resolver, never stored.
	ResolvedAnchor *string       `json:"-"`
	AnchorSource   *AnchorSource `json:"-"`
	Enriched       bool          `json:"-"`
}

// MarshalJSON emits resolved_anchor and anchor_source only for enriched tasks.
func (t Task) MarshalJSON() ([]byte, error) {
	type plain Task
	if !t.Enriched {
		return json.Marshal(plain(t))
	}
	return json.Marshal(struct {
		plain
		ResolvedAnchor *string       `json:"resolved_anchor"`
		AnchorSource   *AnchorSource `json:"anchor_source"`
	}{plain(t), t.ResolvedAnchor, t.AnchorSource})
}

// IsArchived reports whether the task is hidden from default listings.
func (t *Task) IsArchived() bool {
	return t.ArchivedAt != nil
}

// TaskInput is the body of a create request.
type TaskInput struct {
	Title          string          `json:"title"`
	Description    *string         `json:"description,omitempty"`
	Status         Status          `json:"status,omitempty"`
	Priority       *Priority       `json:"priority,omitempty"`
	DueDate        *string         `json:"due_date,omitempty"`
	Tags           json.RawMessage `json:"tags,omitempty"`
	BlockedReason  *string         `json:"blocked_reason,omitempty"`
	AssignedToType *AssigneeType   `json:"assigned_to_type,omitempty"`
	AssignedToID   *string         `json:"assigned_to_id,omitempty"`
	NonAgent       bool            `json:"non_agent,omitempty"`
	Anchor         *string         `json:"anchor,omitempty"`
	Position       *int64          `json:"position,omitempty"`
	ProjectID      *int64          `json:"project_id,omitempty"`
	ContextKey     *string         `json:"context_key,omitempty"`
	ContextType    *string         `json:"context_type,omitempty"`
}

// SetDefaults fills omitted fields and trims the title.
func (in *TaskInput) SetDefaults() {
	in.Title = strings.TrimSpace(in.Title)
	if in.Status == "" {
		in.Status = StatusBacklog
	}
}

// Validate checks field values of a create request.
func (in *TaskInput) Validate() error {
	if strings.TrimSpace(in.Title) == "" {
		return NewValidationError("title", "title is required")
	}
	if !in.Status.Valid() {
		return NewValidationError("status", "invalid status %q: must be one of backlog, in_progress, review, done", in.Status)
	}
	if in.Priority != nil && !in.Priority.Valid() {
		return NewValidationError("priority", "invalid priority %q", *in.Priority)
	}
	if in.AssignedToType != nil && !in.AssignedToType.Valid() {
		return NewValidationError("assigned_to_type", "invalid assignee type %q", *in.AssignedToType)
	}
	if in.DueDate != nil {
		if err := ValidateDueDate(*in.DueDate); err != nil {
			return err
		}
	}
	if in.Position != nil && *in.Position < 0 {
		return NewValidationError("position", "position must be non-negative (got %d)", *in.Position)
	}
	if in.ProjectID != nil && *in.ProjectID <= 0 {
		return NewValidationError("project_id", "invalid project id %d", *in.ProjectID)
	}
	return nil
}

// ValidateDueDate checks that s is a calendar date without a time component.
func ValidateDueDate(s string) error {
	if _, err := time.Parse(DateLayout, s); err != nil {
		return NewValidationError("due_date", "due_date must be YYYY-MM-DD (got %q)", s)
	}
	return nil
}

// TaskPatch is a partial update. Only fields with Set=true change.
type TaskPatch struct {
	Title          Optional[string]          `json:"title"`
	Description    Optional[string]          `json:"description"`
	Status         Optional[Status]          `json:"status"`
	Priority       Optional[Priority]        `json:"priority"`
	DueDate        Optional[string]          `json:"due_date"`
	Tags           Optional[json.RawMessage] `json:"tags"`
	BlockedReason  Optional[string]          `json:"blocked_reason"`
	AssignedToType Optional[AssigneeType]    `json:"assigned_to_type"`
	AssignedToID   Optional[string]          `json:"assigned_to_id"`
	NonAgent       Optional[bool]            `json:"non_agent"`
	Anchor         Optional[string]          `json:"anchor"`
	Position       Optional[int64]           `json:"position"`
	ProjectID      Optional[int64]           `json:"project_id"`
	ContextKey     Optional[string]          `json:"context_key"`
	ContextType    Optional[string]          `json:"context_type"`
}

// IsEmpty reports whether no field is present.
func (p *TaskPatch) IsEmpty() bool {
	return !(p.Title.Set || p.Description.Set || p.Status.Set || p.Priority.Set ||
		p.DueDate.Set || p.Tags.Set || p.BlockedReason.Set || p.AssignedToType.Set ||
		p.AssignedToID.Set || p.NonAgent.Set || p.Anchor.Set || p.Position.Set ||
		p.ProjectID.Set || p.ContextKey.Set || p.ContextType.Set)
}

// Validate checks the present fields of a patch.
func (p *TaskPatch) Validate() error {
	if p.IsEmpty() {
		return ErrEmptyPatch
	}
	if p.Title.Set && (p.Title.Null || strings.TrimSpace(p.Title.Value) == "") {
		return NewValidationError("title", "title cannot be empty")
	}
	if p.Status.Set && (p.Status.Null || !p.Status.Value.Valid()) {
		return NewValidationError("status", "invalid status %q: must be one of backlog, in_progress, review, done", p.Status.Value)
	}
	if p.Priority.Set && !p.Priority.Null && !p.Priority.Value.Valid() {
		return NewValidationError("priority", "invalid priority %q", p.Priority.Value)
	}
	if p.AssignedToType.Set && !p.AssignedToType.Null && !p.AssignedToType.Value.Valid() {
		return NewValidationError("assigned_to_type", "invalid assignee type %q", p.AssignedToType.Value)
	}
	if p.DueDate.Set && !p.DueDate.Null {
		if err := ValidateDueDate(p.DueDate.Value); err != nil {
			return err
		}
	}
	if p.NonAgent.Set && p.NonAgent.Null {
		return NewValidationError("non_agent", "non_agent cannot be null")
	}
	if p.Position.Set && (p.Position.Null || p.Position.Value < 0) {
		return NewValidationError("position", "position must be a non-negative integer")
	}
	if p.ProjectID.Set && !p.ProjectID.Null && p.ProjectID.Value <= 0 {
		return NewValidationError("project_id", "invalid project id %d", p.ProjectID.Value)
	}
	return nil
}

// TaskFilter selects tasks for a listing. Zero-valued fields match everything.
type TaskFilter struct {
	Status          Status
	AssignedToType  AssigneeType
	AssignedToID    string
	ProjectID       *int64
	ContextKey      string
	ContextType     string
	IncludeArchived bool
}

// ReorderItem moves one task to a column and position.
type ReorderItem struct {
	ID       int64  `json:"id"`
	Status   Status `json:"status"`
	Position int64  `json:"position"`
}

// Stats counts tasks per column.
type Stats struct {
	Total    int            `json:"total"`
	ByStatus map[Status]int `json:"by_status"`
	Archived int            `json:"archived"`
}
