package store

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"pgregory.net/rapid"

	"github.com/mschirtzinger/taskboard/internal/clock"
	"github.com/mschirtzinger/taskboard/internal/types"
)

func newInput(title string) *types.TaskInput {
	return &types.TaskInput{Title: title}
}

func ptr[T any](v T) *T {
	return &v
}

func mustCreate(t *testing.T, s *TaskStore, in *types.TaskInput) *types.Task {
	t.Helper()
	task, err := s.Create(context.Background(), in)
	if err != nil {
		t.Fatalf("Create(%q) failed: %v", in.Title, err)
	}
	return task
}

func TestCreate_AppendsToColumn(t *testing.T) {
	db := testDB(t)
	s := db.Tasks()

	a := mustCreate(t, s, newInput("a"))
	b := mustCreate(t, s, newInput("b"))
	c := mustCreate(t, s, &types.TaskInput{Title: "c", Status: types.StatusReview})

	if a.Position != 0 || b.Position != 1 {
		t.Errorf("backlog positions = %d, %d; want 0, 1", a.Position, b.Position)
	}
	if c.Position != 0 {
		t.Errorf("first review position = %d, want 0", c.Position)
	}
	if a.Status != types.StatusBacklog {
		t.Errorf("default status = %q, want backlog", a.Status)
	}
	if a.CompletedAt != nil {
		t.Error("backlog task has completed_at")
	}
}

func TestCreate_ExplicitPosition(t *testing.T) {
	db := testDB(t)
	s := db.Tasks()

	task := mustCreate(t, s, &types.TaskInput{Title: "pinned", Position: ptr(int64(7))})
	if task.Position != 7 {
		t.Errorf("Position = %d, want 7", task.Position)
	}
	next := mustCreate(t, s, newInput("after"))
	if next.Position != 8 {
		t.Errorf("next Position = %d, want 8", next.Position)
	}
}

func TestCreate_IgnoresArchivedForPosition(t *testing.T) {
	db := testDB(t)
	s := db.Tasks()
	ctx := context.Background()

	mustCreate(t, s, newInput("a"))
	b := mustCreate(t, s, newInput("b"))
	if _, err := s.SetArchived(ctx, b.ID, true); err != nil {
		t.Fatalf("SetArchived() failed: %v", err)
	}

	c := mustCreate(t, s, newInput("c"))
	if c.Position != 1 {
		t.Errorf("Position = %d, want 1 (archived rows excluded)", c.Position)
	}
}

func TestCreate_DoneSetsCompletedAt(t *testing.T) {
	db := testDB(t)
	task := mustCreate(t, db.Tasks(), &types.TaskInput{Title: "shipped", Status: types.StatusDone})
	if task.CompletedAt == nil {
		t.Fatal("done task created without completed_at")
	}
}

func TestCreate_RejectsBlankTitle(t *testing.T) {
	db := testDB(t)
	_, err := db.Tasks().Create(context.Background(), newInput("   "))
	if !errors.Is(err, types.ErrValidation) {
		t.Errorf("Create() error = %v, want validation error", err)
	}
}

func TestCreate_NormalizesTags(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	task := mustCreate(t, db.Tasks(), &types.TaskInput{Title: "tagged", Tags: json.RawMessage(`"backend, ops ,"`)})
	if len(task.Tags) != 2 || task.Tags[0] != "backend" || task.Tags[1] != "ops" {
		t.Errorf("Tags = %v, want [backend ops]", task.Tags)
	}

	names, err := db.Tags().List(ctx)
	if err != nil {
		t.Fatalf("Tags().List() failed: %v", err)
	}
	if len(names) != 2 || names[0] != "backend" || names[1] != "ops" {
		t.Errorf("registry = %v, want [backend ops]", names)
	}
}

func TestUpdate_CompletedAtRule(t *testing.T) {
	db := testDB(t)
	s := db.Tasks()
	ctx := context.Background()
	task := mustCreate(t, s, newInput("work"))

	done, err := s.Update(ctx, task.ID, &types.TaskPatch{Status: types.Some(types.StatusDone)})
	if err != nil {
		t.Fatalf("Update(done) failed: %v", err)
	}
	if done.CompletedAt == nil {
		t.Fatal("completed_at not set on entering done")
	}
	first := *done.CompletedAt

	again, err := s.Update(ctx, task.ID, &types.TaskPatch{Status: types.Some(types.StatusDone)})
	if err != nil {
		t.Fatalf("Update(done again) failed: %v", err)
	}
	if again.CompletedAt == nil || !again.CompletedAt.Equal(first) {
		t.Errorf("re-affirming done changed completed_at: %v -> %v", first, again.CompletedAt)
	}

	reopened, err := s.Update(ctx, task.ID, &types.TaskPatch{Status: types.Some(types.StatusBacklog)})
	if err != nil {
		t.Fatalf("Update(backlog) failed: %v", err)
	}
	if reopened.CompletedAt != nil {
		t.Errorf("completed_at = %v after leaving done, want nil", reopened.CompletedAt)
	}
}

func TestUpdate_StatusChangeAppendsToNewColumn(t *testing.T) {
	db := testDB(t)
	s := db.Tasks()
	ctx := context.Background()

	mustCreate(t, s, &types.TaskInput{Title: "r0", Status: types.StatusReview})
	mustCreate(t, s, &types.TaskInput{Title: "r1", Status: types.StatusReview})
	task := mustCreate(t, s, newInput("moving"))

	moved, err := s.Update(ctx, task.ID, &types.TaskPatch{Status: types.Some(types.StatusReview)})
	if err != nil {
		t.Fatalf("Update() failed: %v", err)
	}
	if moved.Position != 2 {
		t.Errorf("Position = %d, want 2", moved.Position)
	}

	pinned, err := s.Update(ctx, task.ID, &types.TaskPatch{
		Status:   types.Some(types.StatusBacklog),
		Position: types.Some(int64(5)),
	})
	if err != nil {
		t.Fatalf("Update() failed: %v", err)
	}
	if pinned.Position != 5 {
		t.Errorf("explicit Position = %d, want 5", pinned.Position)
	}
}

func TestUpdate_OnlyPresentFieldsChange(t *testing.T) {
	db := testDB(t)
	s := db.Tasks()
	ctx := context.Background()
	task := mustCreate(t, s, &types.TaskInput{
		Title:       "keep",
		Description: ptr("original"),
		Priority:    ptr(types.PriorityHigh),
	})

	updated, err := s.Update(ctx, task.ID, &types.TaskPatch{
		Priority: types.Null[types.Priority](),
		DueDate:  types.Some("2026-03-01"),
	})
	if err != nil {
		t.Fatalf("Update() failed: %v", err)
	}
	if updated.Title != "keep" {
		t.Errorf("Title = %q, want keep", updated.Title)
	}
	if updated.Description == nil || *updated.Description != "original" {
		t.Errorf("Description = %v, want original", updated.Description)
	}
	if updated.Priority != nil {
		t.Errorf("Priority = %v, want nil", *updated.Priority)
	}
	if updated.DueDate == nil || *updated.DueDate != "2026-03-01" {
		t.Errorf("DueDate = %v, want 2026-03-01", updated.DueDate)
	}
	if !updated.UpdatedAt.After(task.UpdatedAt) {
		t.Errorf("UpdatedAt not advanced: %v -> %v", task.UpdatedAt, updated.UpdatedAt)
	}
}

func TestUpdate_Errors(t *testing.T) {
	db := testDB(t)
	s := db.Tasks()
	ctx := context.Background()
	task := mustCreate(t, s, newInput("x"))

	if _, err := s.Update(ctx, task.ID, &types.TaskPatch{}); !errors.Is(err, types.ErrValidation) {
		t.Errorf("empty patch error = %v, want validation", err)
	}
	if _, err := s.Update(ctx, 999, &types.TaskPatch{Title: types.Some("y")}); !errors.Is(err, types.ErrNotFound) {
		t.Errorf("missing id error = %v, want not found", err)
	}
	if _, err := s.Update(ctx, task.ID, &types.TaskPatch{Status: types.Some(types.Status("blocked"))}); !errors.Is(err, types.ErrValidation) {
		t.Errorf("bad status error = %v, want validation", err)
	}
}

func TestList_OrderAndFilters(t *testing.T) {
	db := testDB(t)
	s := db.Tasks()
	ctx := context.Background()

	older := mustCreate(t, s, &types.TaskInput{Title: "older", Position: ptr(int64(0))})
	newer := mustCreate(t, s, &types.TaskInput{Title: "newer", Position: ptr(int64(0))})
	last := mustCreate(t, s, &types.TaskInput{Title: "last", Position: ptr(int64(3)),
		AssignedToType: ptr(types.AssigneeAgent), AssignedToID: ptr("bot-1")})
	hidden := mustCreate(t, s, newInput("hidden"))
	if _, err := s.SetArchived(ctx, hidden.ID, true); err != nil {
		t.Fatalf("SetArchived() failed: %v", err)
	}

	tasks, err := s.List(ctx, types.TaskFilter{})
	if err != nil {
		t.Fatalf("List() failed: %v", err)
	}
	got := ids(tasks)
	want := []int64{newer.ID, older.ID, last.ID}
	if !equalIDs(got, want) {
		t.Errorf("List() ids = %v, want %v", got, want)
	}

	all, err := s.List(ctx, types.TaskFilter{IncludeArchived: true})
	if err != nil {
		t.Fatalf("List(all) failed: %v", err)
	}
	if len(all) != 4 {
		t.Errorf("List(all) len = %d, want 4", len(all))
	}

	agents, err := s.List(ctx, types.TaskFilter{AssignedToType: types.AssigneeAgent, AssignedToID: "bot-1"})
	if err != nil {
		t.Fatalf("List(agent) failed: %v", err)
	}
	if !equalIDs(ids(agents), []int64{last.ID}) {
		t.Errorf("List(agent) = %v, want [%d]", ids(agents), last.ID)
	}
}

func TestDelete(t *testing.T) {
	db := testDB(t)
	s := db.Tasks()
	ctx := context.Background()
	task := mustCreate(t, s, newInput("gone"))

	removed, err := s.Delete(ctx, task.ID)
	if err != nil || !removed {
		t.Fatalf("Delete() = %v, %v; want true, nil", removed, err)
	}
	removed, err = s.Delete(ctx, task.ID)
	if err != nil || removed {
		t.Errorf("second Delete() = %v, %v; want false, nil", removed, err)
	}
	if _, err := s.Get(ctx, task.ID); !errors.Is(err, types.ErrNotFound) {
		t.Errorf("Get() after delete error = %v, want not found", err)
	}
}

func TestBulkSetStatus_CountsChangedRows(t *testing.T) {
	db := testDB(t)
	s := db.Tasks()
	ctx := context.Background()

	a := mustCreate(t, s, newInput("a"))
	b := mustCreate(t, s, &types.TaskInput{Title: "b", Status: types.StatusInProgress})

	n, err := s.BulkSetStatus(ctx, []int64{a.ID, b.ID}, types.StatusDone)
	if err != nil {
		t.Fatalf("BulkSetStatus() failed: %v", err)
	}
	if n != 2 {
		t.Errorf("updated = %d, want 2", n)
	}
	for _, id := range []int64{a.ID, b.ID} {
		task, err := s.Get(ctx, id)
		if err != nil {
			t.Fatalf("Get(%d) failed: %v", id, err)
		}
		if task.Status != types.StatusDone || task.CompletedAt == nil {
			t.Errorf("task %d: status=%q completed_at=%v", id, task.Status, task.CompletedAt)
		}
	}

	n, err = s.BulkSetStatus(ctx, []int64{a.ID, b.ID}, types.StatusDone)
	if err != nil {
		t.Fatalf("BulkSetStatus() again failed: %v", err)
	}
	if n != 0 {
		t.Errorf("no-op bulk updated = %d, want 0", n)
	}
}

func TestBulkAssign_NullClears(t *testing.T) {
	db := testDB(t)
	s := db.Tasks()
	ctx := context.Background()
	task := mustCreate(t, s, newInput("owned"))

	n, err := s.BulkAssign(ctx, []int64{task.ID}, ptr(types.AssigneeHuman), ptr("ana"))
	if err != nil || n != 1 {
		t.Fatalf("BulkAssign() = %d, %v; want 1, nil", n, err)
	}
	n, err = s.BulkAssign(ctx, []int64{task.ID}, nil, ptr("ignored"))
	if err != nil || n != 1 {
		t.Fatalf("BulkAssign(nil) = %d, %v; want 1, nil", n, err)
	}
	got, _ := s.Get(ctx, task.ID)
	if got.AssignedToType != nil || got.AssignedToID != nil {
		t.Errorf("assignee = %v/%v, want nil/nil", got.AssignedToType, got.AssignedToID)
	}
}

func TestMove_AppliesCompletedAtRule(t *testing.T) {
	db := testDB(t)
	s := db.Tasks()
	ctx := context.Background()
	task := mustCreate(t, s, newInput("drag"))

	if err := s.Move(ctx, types.ReorderItem{ID: task.ID, Status: types.StatusDone, Position: 4}); err != nil {
		t.Fatalf("Move() failed: %v", err)
	}
	got, _ := s.Get(ctx, task.ID)
	if got.Status != types.StatusDone || got.Position != 4 || got.CompletedAt == nil {
		t.Errorf("after Move: status=%q position=%d completed_at=%v", got.Status, got.Position, got.CompletedAt)
	}

	if err := s.Move(ctx, types.ReorderItem{ID: 404, Status: types.StatusDone}); !errors.Is(err, types.ErrNotFound) {
		t.Errorf("Move(missing) error = %v, want not found", err)
	}
}

func TestArchiveDone(t *testing.T) {
	db := testDB(t)
	s := db.Tasks()
	ctx := context.Background()

	mustCreate(t, s, &types.TaskInput{Title: "d1", Status: types.StatusDone})
	mustCreate(t, s, &types.TaskInput{Title: "d2", Status: types.StatusDone})
	mustCreate(t, s, newInput("open"))

	n, err := s.ArchiveDone(ctx, nil)
	if err != nil {
		t.Fatalf("ArchiveDone() failed: %v", err)
	}
	if n != 2 {
		t.Errorf("archived = %d, want 2", n)
	}

	stats, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats() failed: %v", err)
	}
	if stats.Total != 3 || stats.Archived != 2 || stats.ByStatus[types.StatusBacklog] != 1 || stats.ByStatus[types.StatusDone] != 0 {
		t.Errorf("Stats() = %+v", stats)
	}
}

func TestMissingIDs(t *testing.T) {
	db := testDB(t)
	s := db.Tasks()
	task := mustCreate(t, s, newInput("here"))

	missing, err := s.MissingIDs(context.Background(), []int64{task.ID, 41, 42})
	if err != nil {
		t.Fatalf("MissingIDs() failed: %v", err)
	}
	if !equalIDs(missing, []int64{41, 42}) {
		t.Errorf("MissingIDs() = %v, want [41 42]", missing)
	}
}

func TestTags_BackfillFromTasks(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	now := formatTime(time.Now())

	_, err := db.conn.Exec(`INSERT INTO tasks (title, status, tags, position, created_at, updated_at)
		VALUES ('legacy', 'backlog', '["zeta","alpha","zeta"]', 0, ?, ?),
		       ('broken', 'backlog', 'not json', 1, ?, ?)`, now, now, now, now)
	if err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	names, err := db.Tags().List(ctx)
	if err != nil {
		t.Fatalf("List() failed: %v", err)
	}
	if len(names) != 2 || names[0] != "alpha" || names[1] != "zeta" {
		t.Errorf("List() = %v, want [alpha zeta]", names)
	}

	broken, err := db.Tasks().List(ctx, types.TaskFilter{})
	if err != nil {
		t.Fatalf("Tasks().List() failed: %v", err)
	}
	if len(broken[1].Tags) != 0 {
		t.Errorf("unparseable stored tags = %v, want empty", broken[1].Tags)
	}
}

func TestProperty_AppendedPositionsIncrease(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		path := filepath.Join(t.TempDir(), "prop.db")
		db, err := Open(path, WithClock(clock.NewStepping(time.Unix(0, 0), time.Millisecond)))
		if err != nil {
			rt.Fatalf("Open() failed: %v", err)
		}
		defer db.Close()
		s := db.Tasks()
		ctx := context.Background()

		statuses := rapid.SliceOfN(rapid.SampledFrom(types.Statuses), 1, 12).Draw(rt, "statuses")
		last := map[types.Status]int64{}
		for i, st := range statuses {
			task, err := s.Create(ctx, &types.TaskInput{Title: "t", Status: st})
			if err != nil {
				rt.Fatalf("Create() #%d failed: %v", i, err)
			}
			if prev, ok := last[st]; ok && task.Position <= prev {
				rt.Fatalf("position %d in %s not after %d", task.Position, st, prev)
			}
			last[st] = task.Position
		}
	})
}

func ids(tasks []*types.Task) []int64 {
	out := make([]int64, len(tasks))
	for i, task := range tasks {
		out[i] = task.ID
	}
	return out
}

func equalIDs(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
