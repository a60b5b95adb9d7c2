package anchor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/mschirtzinger/taskboard/internal/types"
)

func testResolver(env map[string]string) *Resolver {
	return &Resolver{
		Home:    "/home/dev",
		BaseDir: "/work",
		LookupEnv: func(key string) (string, bool) {
			v, ok := env[key]
			return v, ok
		},
	}
}

func strp(s string) *string { return &s }

func projects(ps ...*types.Project) ProjectLookup {
	m := make(map[int64]*types.Project, len(ps))
	for _, p := range ps {
		m[p.ID] = p
	}
	return LookupMap(m)
}

func assertResolved(t *testing.T, res Resolution, path string, source types.AnchorSource) {
	t.Helper()
	require.NotNil(t, res.Path, "expected a resolved path")
	require.NotNil(t, res.Source, "expected a source")
	assert.Equal(t, path, *res.Path)
	assert.Equal(t, source, *res.Source)
}

func TestNormalize(t *testing.T) {
	r := testResolver(map[string]string{"REPO": "/src/repo", "EMPTY": "", "SUB": "nested", "CHAINED": "/a/$REPO", "BRACED": "/a/${REPO}"})

	tests := []struct {
		name   string
		expr   string
		want   string
		wantOK bool
	}{
		{"absolute", "/x/y", "/x/y", true},
		{"trimmed", "  /x/y/  ", "/x/y", true},
		{"tilde", "~/code", "/home/dev/code", true},
		{"bare tilde", "~", "/home/dev", true},
		{"tilde user form is relative", "~bob/x", "/work/~bob/x", true},
		{"braced var", "${REPO}/api", "/src/repo/api", true},
		{"bare var", "$REPO/api", "/src/repo/api", true},
		{"relative joins base", "projects/web", "/work/projects/web", true},
		{"relative via var", "$SUB/dir", "/work/nested/dir", true},
		{"empty var value", "/root$EMPTY/x", "/root/x", true},
		{"cleaned", "/a/./b/../c", "/a/c", true},
		{"blank", "   ", "", false},
		{"missing var", "$MISSING_ENV/path", "", false},
		{"missing braced var", "${MISSING_ENV}", "", false},
		{"malformed brace", "/x/${1bad}", "", false},
		{"value with bare placeholder", "$CHAINED/x", "", false},
		{"value with braced placeholder", "${BRACED}/x", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := r.Normalize(tt.expr)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalize_NoHomeOrBase(t *testing.T) {
	r := &Resolver{}
	_, ok := r.Normalize("~/x")
	assert.False(t, ok, "~ without a home directory must fail")
	_, ok = r.Normalize("relative")
	assert.False(t, ok, "relative path without a base must fail")
	got, ok := r.Normalize("/abs")
	assert.True(t, ok)
	assert.Equal(t, "/abs", got)
}

func TestResolve_TaskBeatsProject(t *testing.T) {
	r := testResolver(nil)
	pid := int64(1)
	lookup := projects(&types.Project{ID: 1, Path: "/y"})

	task := &types.Task{ID: 10, Anchor: strp("/x"), ProjectID: &pid}
	assertResolved(t, r.Resolve(task, lookup, Config{}), "/x", types.AnchorSourceTask)

	task.Anchor = nil
	assertResolved(t, r.Resolve(task, lookup, Config{}), "/y", types.AnchorSourceProject)
}

func TestResolve_UnsetVariableFallsToScratch(t *testing.T) {
	r := testResolver(nil)
	task := &types.Task{ID: 3, Anchor: strp("$MISSING_ENV/path"), Tags: []string{"none"}}
	cfg := Config{
		CategoryDefaults:     map[string]string{"backend": "/srv/backend"},
		ScratchRoot:          "/tmp/scratch",
		AllowScratchFallback: true,
	}

	assertResolved(t, r.Resolve(task, nil, cfg), "/tmp/scratch", types.AnchorSourceScratch)
}

func TestResolve_ScratchPerTask(t *testing.T) {
	r := testResolver(nil)
	task := &types.Task{ID: 42}
	cfg := Config{ScratchRoot: "~/scratch/", AllowScratchFallback: true, ScratchPerTask: true}

	assertResolved(t, r.Resolve(task, nil, cfg), "/home/dev/scratch/task-42", types.AnchorSourceScratch)
}

func TestResolve_ScratchDisabled(t *testing.T) {
	r := testResolver(nil)
	res := r.Resolve(&types.Task{ID: 1}, nil, Config{ScratchRoot: "/tmp/scratch"})
	assert.Nil(t, res.Path)
	assert.Nil(t, res.Source)
}

func TestResolve_CategoryFirstUsableTag(t *testing.T) {
	r := testResolver(map[string]string{"OPS": "/srv/ops"})
	cfg := Config{CategoryDefaults: map[string]string{
		"broken":  "$NOPE/x",
		"ops":     "$OPS",
		"backend": "/srv/backend",
	}}
	task := &types.Task{ID: 1, Tags: []string{"unknown", " Broken ", "OPS", "backend"}}

	assertResolved(t, r.Resolve(task, nil, cfg), "/srv/ops", types.AnchorSourceCategory)
}

func TestResolve_ProjectMissingOrBlank(t *testing.T) {
	r := testResolver(nil)
	pid := int64(9)
	task := &types.Task{ID: 1, ProjectID: &pid, Tags: []string{"web"}}
	cfg := Config{CategoryDefaults: map[string]string{"web": "/srv/web"}}

	assertResolved(t, r.Resolve(task, projects(), cfg), "/srv/web", types.AnchorSourceCategory)
	assertResolved(t, r.Resolve(task, projects(&types.Project{ID: 9, Path: "  "}), cfg), "/srv/web", types.AnchorSourceCategory)
}

func TestResolve_WorkspaceRelativeProject(t *testing.T) {
	r := testResolver(nil)
	pid := int64(2)
	task := &types.Task{ID: 1, ProjectID: &pid}

	assertResolved(t, r.Resolve(task, projects(&types.Project{ID: 2, Path: "apps/web"}), Config{}), "/work/apps/web", types.AnchorSourceProject)
}

func TestResolve_NonAgent(t *testing.T) {
	r := testResolver(nil)
	pid := int64(1)
	task := &types.Task{
		ID:        1,
		NonAgent:  true,
		Anchor:    strp("/x"),
		ProjectID: &pid,
		Tags:      []string{"ops"},
	}
	cfg := Config{
		CategoryDefaults:     map[string]string{"ops": "/srv/ops"},
		ScratchRoot:          "/tmp",
		AllowScratchFallback: true,
	}

	res := r.Resolve(task, projects(&types.Project{ID: 1, Path: "/y"}), cfg)
	assert.Nil(t, res.Path)
	assert.Nil(t, res.Source)
}

func TestEnrich(t *testing.T) {
	r := testResolver(nil)
	tasks := []*types.Task{
		{ID: 1, Anchor: strp("/a")},
		{ID: 2},
	}

	r.EnrichMany(tasks, nil, Config{})

	require.NotNil(t, tasks[0].ResolvedAnchor)
	assert.Equal(t, "/a", *tasks[0].ResolvedAnchor)
	assert.True(t, tasks[0].Enriched)
	assert.Nil(t, tasks[1].ResolvedAnchor)
	assert.Nil(t, tasks[1].AnchorSource)
	assert.True(t, tasks[1].Enriched)
}

func TestProperty_NonAgentNeverResolves(t *testing.T) {
	r := testResolver(map[string]string{"HOME_DIR": "/h"})
	rapid.Check(t, func(rt *rapid.T) {
		pid := rapid.Int64Range(1, 3).Draw(rt, "project")
		task := &types.Task{
			ID:        rapid.Int64Range(1, 1000).Draw(rt, "id"),
			NonAgent:  true,
			ProjectID: &pid,
			Tags:      rapid.SliceOfN(rapid.SampledFrom([]string{"ops", "web", "x"}), 0, 3).Draw(rt, "tags"),
		}
		if rapid.Bool().Draw(rt, "hasAnchor") {
			task.Anchor = strp(rapid.SampledFrom([]string{"/x", "~/y", "$HOME_DIR/z", "rel"}).Draw(rt, "anchor"))
		}
		cfg := Config{
			CategoryDefaults:     map[string]string{"ops": "/srv/ops", "web": "/srv/web"},
			ScratchRoot:          "/tmp/scratch",
			AllowScratchFallback: rapid.Bool().Draw(rt, "scratch"),
			ScratchPerTask:       rapid.Bool().Draw(rt, "perTask"),
		}

		res := r.Resolve(task, projects(&types.Project{ID: 1, Path: "/p1"}, &types.Project{ID: 2, Path: "p2"}), cfg)
		if res.Path != nil || res.Source != nil {
			rt.Fatalf("non-agent task resolved to %v", *res.Path)
		}
	})
}

func TestProperty_ResolveIsDeterministic(t *testing.T) {
	r := testResolver(map[string]string{"A": "/a"})
	rapid.Check(t, func(rt *rapid.T) {
		task := &types.Task{
			ID:   rapid.Int64Range(1, 50).Draw(rt, "id"),
			Tags: rapid.SliceOfN(rapid.SampledFrom([]string{"ops", "OPS ", "none"}), 0, 3).Draw(rt, "tags"),
		}
		if rapid.Bool().Draw(rt, "hasAnchor") {
			task.Anchor = strp(rapid.SampledFrom([]string{"$A/b", "$B/c", "  "}).Draw(rt, "anchor"))
		}
		cfg := Config{
			CategoryDefaults:     map[string]string{"ops": "/srv/ops"},
			ScratchRoot:          "/tmp/s",
			AllowScratchFallback: true,
			ScratchPerTask:       rapid.Bool().Draw(rt, "perTask"),
		}

		first := r.Resolve(task, nil, cfg)
		second := r.Resolve(task, nil, cfg)
		if first.Path == nil || second.Path == nil {
			rt.Fatalf("scratch fallback enabled but nothing resolved")
		}
		if *first.Path != *second.Path || *first.Source != *second.Source {
			rt.Fatalf("resolution changed between calls: %v vs %v", *first.Path, *second.Path)
		}
	})
}
