//go:build sqlite

package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"authgate/internal/registration"
	"authgate/internal/storage"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New("file::memory:?cache=shared")
	if err != nil {
		t.Fatalf("open sqlite store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func sampleRecord(id string) *storage.RegistrationRecord {
	tmplID := "google"
	now := time.Now().UTC().Truncate(time.Second)
	return &storage.RegistrationRecord{
		ID: id,
		Properties: registration.ClientProperties{
			ClientID:     "client-" + id,
			ClientSecret: "sealed-secret",
			TemplateID:   &tmplID,
			Scope:        []string{"openid", "email"},
		},
		Enabled:   true,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestSQLiteStore_CRUD(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	rec := sampleRecord("acme")
	if err := store.CreateRegistration(ctx, rec); err != nil {
		t.Fatalf("CreateRegistration: %v", err)
	}

	got, err := store.GetRegistration(ctx, "acme")
	if err != nil {
		t.Fatalf("GetRegistration: %v", err)
	}
	if got.Properties.ClientID != "client-acme" {
		t.Errorf("client id = %q", got.Properties.ClientID)
	}
	if got.Properties.TemplateID == nil || *got.Properties.TemplateID != "google" {
		t.Errorf("template-id not roundtripped: %v", got.Properties.TemplateID)
	}
	if len(got.Properties.Scope) != 2 {
		t.Errorf("scope not roundtripped: %v", got.Properties.Scope)
	}
	if !got.Enabled {
		t.Error("enabled flag lost")
	}

	got.Enabled = false
	got.UpdatedAt = time.Now().UTC()
	if err := store.UpdateRegistration(ctx, got); err != nil {
		t.Fatalf("UpdateRegistration: %v", err)
	}
	updated, _ := store.GetRegistration(ctx, "acme")
	if updated.Enabled {
		t.Error("update not persisted")
	}

	if err := store.DeleteRegistration(ctx, "acme"); err != nil {
		t.Fatalf("DeleteRegistration: %v", err)
	}
	if _, err := store.GetRegistration(ctx, "acme"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestSQLiteStore_DuplicateID(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	if err := store.CreateRegistration(ctx, sampleRecord("acme")); err != nil {
		t.Fatalf("CreateRegistration: %v", err)
	}
	if err := store.CreateRegistration(ctx, sampleRecord("acme")); !errors.Is(err, storage.ErrConflict) {
		t.Errorf("expected ErrConflict, got %v", err)
	}
}

func TestSQLiteStore_ListFilters(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	disabled := sampleRecord("b")
	disabled.Enabled = false
	for _, rec := range []*storage.RegistrationRecord{sampleRecord("c"), disabled, sampleRecord("a")} {
		if err := store.CreateRegistration(ctx, rec); err != nil {
			t.Fatalf("CreateRegistration(%s): %v", rec.ID, err)
		}
	}

	all, err := store.ListRegistrations(ctx)
	if err != nil {
		t.Fatalf("ListRegistrations: %v", err)
	}
	if len(all) != 3 || all[0].ID != "a" || all[2].ID != "c" {
		t.Errorf("unexpected list: %+v", all)
	}

	enabled, err := store.ListEnabledRegistrations(ctx)
	if err != nil {
		t.Fatalf("ListEnabledRegistrations: %v", err)
	}
	if len(enabled) != 2 {
		t.Errorf("enabled count = %d, want 2", len(enabled))
	}
	for _, rec := range enabled {
		if rec.ID == "b" {
			t.Error("disabled registration returned by ListEnabledRegistrations")
		}
	}
}

func TestSQLiteStore_MissingRows(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	if err := store.UpdateRegistration(ctx, sampleRecord("ghost")); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("update: expected ErrNotFound, got %v", err)
	}
	if err := store.DeleteRegistration(ctx, "ghost"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("delete: expected ErrNotFound, got %v", err)
	}
}
