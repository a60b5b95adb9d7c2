package store

import (
	"context"
	"errors"
	"testing"

	"github.com/mschirtzinger/taskboard/internal/types"
)

func TestProjects_CreateDerivesSlug(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	p, err := db.Projects().Create(ctx, &types.ProjectInput{Name: "Web App!", Path: "/srv/web"})
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}
	if p.Slug != "web-app" {
		t.Errorf("Slug = %q, want web-app", p.Slug)
	}

	_, err = db.Projects().Create(ctx, &types.ProjectInput{Name: "web app", Path: "/elsewhere"})
	if !errors.Is(err, types.ErrValidation) {
		t.Errorf("duplicate slug error = %v, want validation", err)
	}
}

func TestProjects_UpdateAndList(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	ps := db.Projects()

	b, err := ps.Create(ctx, &types.ProjectInput{Name: "beta", Path: "/b"})
	if err != nil {
		t.Fatalf("Create(beta) failed: %v", err)
	}
	a, err := ps.Create(ctx, &types.ProjectInput{Name: "alpha", Path: "/a"})
	if err != nil {
		t.Fatalf("Create(alpha) failed: %v", err)
	}

	list, err := ps.List(ctx)
	if err != nil {
		t.Fatalf("List() failed: %v", err)
	}
	if len(list) != 2 || list[0].ID != a.ID || list[1].ID != b.ID {
		t.Errorf("List() not ordered by name")
	}

	updated, err := ps.Update(ctx, b.ID, &types.ProjectPatch{Path: types.Some("/b2"), Color: types.Some("#ff0000")})
	if err != nil {
		t.Fatalf("Update() failed: %v", err)
	}
	if updated.Path != "/b2" || updated.Color == nil || *updated.Color != "#ff0000" {
		t.Errorf("Update() = %+v", updated)
	}

	if _, err := ps.Update(ctx, b.ID, &types.ProjectPatch{Slug: types.Some("alpha")}); !errors.Is(err, types.ErrValidation) {
		t.Errorf("slug collision error = %v, want validation", err)
	}
	if _, err := ps.Update(ctx, 999, &types.ProjectPatch{Name: types.Some("x")}); !errors.Is(err, types.ErrNotFound) {
		t.Errorf("missing project error = %v, want not found", err)
	}
}

func TestProjects_DetachAndDelete(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	p, err := db.Projects().Create(ctx, &types.ProjectInput{Name: "proj", Path: "/p"})
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}
	task := mustCreate(t, db.Tasks(), &types.TaskInput{Title: "linked", ProjectID: &p.ID})

	n, err := db.Tasks().DetachProject(ctx, p.ID)
	if err != nil || n != 1 {
		t.Fatalf("DetachProject() = %d, %v; want 1, nil", n, err)
	}
	if err := db.Projects().Delete(ctx, p.ID); err != nil {
		t.Fatalf("Delete() failed: %v", err)
	}

	got, err := db.Tasks().Get(ctx, task.ID)
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if got.ProjectID != nil {
		t.Errorf("ProjectID = %d, want nil", *got.ProjectID)
	}
	if err := db.Projects().Delete(ctx, p.ID); !errors.Is(err, types.ErrNotFound) {
		t.Errorf("second Delete() error = %v, want not found", err)
	}
}

func TestProjects_DeleteWithLinkedTasksFails(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	p, err := db.Projects().Create(ctx, &types.ProjectInput{Name: "fk", Path: "/fk"})
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}
	mustCreate(t, db.Tasks(), &types.TaskInput{Title: "linked", ProjectID: &p.ID})

	if err := db.Projects().Delete(ctx, p.ID); err == nil {
		t.Error("Delete() with linked tasks succeeded; foreign keys not enforced")
	}
}
