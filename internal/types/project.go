package types

import (
	"regexp"
	"strings"
	"time"
)

// Project groups tasks and carries a filesystem path used as an anchor.
type Project struct {
	ID          int64     `json:"id"`
	Slug        string    `json:"slug"`
	Name        string    `json:"name"`
	Path        string    `json:"path"`
	Description *string   `json:"description"`
	Icon        *string   `json:"icon"`
	Color       *string   `json:"color"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ProjectInput is the body of a project create request.
type ProjectInput struct {
	Slug        string  `json:"slug,omitempty"`
	Name        string  `json:"name"`
	Path        string  `json:"path"`
	Description *string `json:"description,omitempty"`
	Icon        *string `json:"icon,omitempty"`
	Color       *string `json:"color,omitempty"`
}

// ProjectPatch is a partial project update.
type ProjectPatch struct {
	Slug        Optional[string] `json:"slug"`
	Name        Optional[string] `json:"name"`
	Path        Optional[string] `json:"path"`
	Description Optional[string] `json:"description"`
	Icon        Optional[string] `json:"icon"`
	Color       Optional[string] `json:"color"`
}

var (
	slugPattern  = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)
	nonSlugChars = regexp.MustCompile(`[^a-z0-9]+`)
)

// Slugify derives a slug from a display name.
func Slugify(name string) string {
	s := nonSlugChars.ReplaceAllString(strings.ToLower(name), "-")
	return strings.Trim(s, "-")
}

// SetDefaults trims fields and derives a slug when none was given.
func (in *ProjectInput) SetDefaults() {
	in.Name = strings.TrimSpace(in.Name)
	in.Path = strings.TrimSpace(in.Path)
	in.Slug = strings.TrimSpace(in.Slug)
	if in.Slug == "" {
		in.Slug = Slugify(in.Name)
	}
}

// Validate checks a project create request.
func (in *ProjectInput) Validate() error {
	if in.Name == "" {
		return NewValidationError("name", "name is required")
	}
	if in.Path == "" {
		return NewValidationError("path", "path is required")
	}
	if !slugPattern.MatchString(in.Slug) {
		return NewValidationError("slug", "invalid slug %q", in.Slug)
	}
	return nil
}

// IsEmpty reports whether no field is present.
func (p *ProjectPatch) IsEmpty() bool {
	return !(p.Slug.Set || p.Name.Set || p.Path.Set || p.Description.Set || p.Icon.Set || p.Color.Set)
}

// Validate checks the present fields of a project patch.
func (p *ProjectPatch) Validate() error {
	if p.IsEmpty() {
		return ErrEmptyPatch
	}
	if p.Name.Set && (p.Name.Null || strings.TrimSpace(p.Name.Value) == "") {
		return NewValidationError("name", "name cannot be empty")
	}
	if p.Path.Set && (p.Path.Null || strings.TrimSpace(p.Path.Value) == "") {
		return NewValidationError("path", "path cannot be empty")
	}
	if p.Slug.Set && (p.Slug.Null || !slugPattern.MatchString(p.Slug.Value)) {
		return NewValidationError("slug", "invalid slug %q", p.Slug.Value)
	}
	return nil
}
