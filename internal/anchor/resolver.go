// Package anchor derives the working directory an agent should use for a task.
//
// Resolution walks a fixed precedence chain and the first step that yields a
// usable absolute path wins:
//
//  1. non_agent tasks never get an anchor
//  2. the task's own anchor expression
//  3. the linked project's path
//  4. the first tag with a category default
//  5. the scratch root, when the fallback is enabled
//
// Every expression goes through the same normalization: trim, expand a leading
// ~, substitute $VAR and ${VAR} from the environment, then make absolute. A
// step whose expression fails to normalize is skipped, never reported.
package anchor

import (
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/mschirtzinger/taskboard/internal/types"
)

// Config is an immutable anchor configuration snapshot.
// Category keys are lowercase and trimmed.
type Config struct {
	CategoryDefaults     map[string]string `json:"category_defaults" yaml:"category_defaults" toml:"category_defaults"`
	ScratchRoot          string            `json:"scratch_root" yaml:"scratch_root" toml:"scratch_root"`
	AllowScratchFallback bool              `json:"allow_scratch_fallback" yaml:"allow_scratch_fallback" toml:"allow_scratch_fallback"`
	ScratchPerTask       bool              `json:"scratch_per_task" yaml:"scratch_per_task" toml:"scratch_per_task"`
}

// ProjectLookup returns the project with the given id, or nil.
type ProjectLookup func(id int64) *types.Project

// LookupMap adapts a map of projects to a ProjectLookup.
func LookupMap(projects map[int64]*types.Project) ProjectLookup {
	return func(id int64) *types.Project {
		return projects[id]
	}
}

// Resolution is the outcome of Resolve. Both fields are nil when nothing applied.
type Resolution struct {
	Path   *string
	Source *types.AnchorSource
}

// Resolver holds the environment normalization reads from.
// It has no mutable state and is safe for concurrent use.
type Resolver struct {
	// Home replaces a leading ~. Empty makes ~ expressions fail.
	Home string
	// BaseDir anchors relative results (workspace-relative project paths).
	BaseDir string
	// LookupEnv resolves placeholders. Nil means no variable is set.
	LookupEnv func(key string) (string, bool)
}

// NewResolver returns a Resolver bound to the process environment, with
// relative paths resolved against baseDir (the working directory when empty).
func NewResolver(baseDir string) *Resolver {
	home, _ := os.UserHomeDir()
	if baseDir == "" {
		baseDir, _ = os.Getwd()
	} else if abs, err := filepath.Abs(baseDir); err == nil {
		baseDir = abs
	}
	return &Resolver{Home: home, BaseDir: baseDir, LookupEnv: os.LookupEnv}
}

// Resolve applies the precedence chain to task.
func (r *Resolver) Resolve(task *types.Task, projects ProjectLookup, cfg Config) Resolution {
	if task == nil || task.NonAgent {
		return Resolution{}
	}

	if task.Anchor != nil {
		if path, ok := r.Normalize(*task.Anchor); ok {
			return found(path, types.AnchorSourceTask)
		}
	}

	if task.ProjectID != nil && projects != nil {
		if p := projects(*task.ProjectID); p != nil {
			if path, ok := r.Normalize(p.Path); ok {
				return found(path, types.AnchorSourceProject)
			}
		}
	}

	for _, tag := range task.Tags {
		expr, ok := cfg.CategoryDefaults[strings.ToLower(strings.TrimSpace(tag))]
		if !ok {
			continue
		}
		if path, ok := r.Normalize(expr); ok {
			return found(path, types.AnchorSourceCategory)
		}
	}

	if cfg.AllowScratchFallback {
		root := strings.TrimSpace(cfg.ScratchRoot)
		if root != "" {
			if cfg.ScratchPerTask {
				root = strings.TrimRight(root, `/\`) + string(filepath.Separator) + "task-" + strconv.FormatInt(task.ID, 10)
			}
			if path, ok := r.Normalize(root); ok {
				return found(path, types.AnchorSourceScratch)
			}
		}
	}

	return Resolution{}
}

func found(path string, source types.AnchorSource) Resolution {
	return Resolution{Path: &path, Source: &source}
}

var placeholder = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}|\$([A-Za-z_][A-Za-z0-9_]*)`)

// Normalize turns a path expression into a clean absolute path.
// It reports false for blank input, an unexpandable ~, any unset variable,
// a leftover $ placeholder, or a result that is not absolute.
func (r *Resolver) Normalize(expr string) (string, bool) {
	s := strings.TrimSpace(expr)
	if s == "" {
		return "", false
	}

	if s == "~" || strings.HasPrefix(s, "~/") || strings.HasPrefix(s, `~\`) {
		if r.Home == "" {
			return "", false
		}
		s = r.Home + s[1:]
	}

	unresolved := false
	s = placeholder.ReplaceAllStringFunc(s, func(m string) string {
		name := strings.Trim(m, "${}")
		if r.LookupEnv != nil {
			if v, ok := r.LookupEnv(name); ok {
				return v
			}
		}
		unresolved = true
		return m
	})
	// Values are substituted once; a value that still carries a placeholder
	// is rejected rather than taken literally.
	if unresolved || strings.Contains(s, "${") || placeholder.MatchString(s) {
		return "", false
	}

	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}
	if !filepath.IsAbs(s) {
		if r.BaseDir == "" {
			return "", false
		}
		s = filepath.Join(r.BaseDir, s)
	}
	s = filepath.Clean(s)
	if !filepath.IsAbs(s) {
		return "", false
	}
	return s, true
}

// Enrich sets the derived anchor fields on task. Storage is never touched.
func (r *Resolver) Enrich(task *types.Task, projects ProjectLookup, cfg Config) *types.Task {
	if task == nil {
		return nil
	}
	res := r.Resolve(task, projects, cfg)
	task.ResolvedAnchor = res.Path
	task.AnchorSource = res.Source
	task.Enriched = true
	return task
}

// EnrichMany enriches every task in place and returns the same slice.
func (r *Resolver) EnrichMany(tasks []*types.Task, projects ProjectLookup, cfg Config) []*types.Task {
	for _, task := range tasks {
		r.Enrich(task, projects, cfg)
	}
	return tasks
}
