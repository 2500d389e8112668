package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
)

// --- RecordLogin ---

func TestRecordLogin(t *testing.T) {
	requirePostgres(t)
	ctx := context.Background()

	t.Run("creates identity and login event", func(t *testing.T) {
		t.Cleanup(func() { cleanupIdentity(t, ctx, "github", "rec-1") })
		at := time.Now().UTC().Truncate(time.Millisecond)

		err := testStore.RecordLogin(ctx, LoginRecord{
			Provider:  "github",
			Subject:   "rec-1",
			Name:      "octo",
			AvatarURL: "https://avatars/u",
			Claims:    map[string]string{"login": "octo"},
			IPAddress: "203.0.113.7",
			UserAgent: "test-agent",
			At:        at,
		})
		if err != nil {
			t.Fatalf("RecordLogin failed: %v", err)
		}

		id, err := testStore.GetIdentity(ctx, "github", "rec-1")
		if err != nil {
			t.Fatalf("GetIdentity failed: %v", err)
		}
		if id.Email != nil {
			t.Errorf("Email: expected NULL for empty email, got %q", *id.Email)
		}
		if id.Name == nil || *id.Name != "octo" {
			t.Errorf("Name: expected %q, got %v", "octo", id.Name)
		}
		if id.Claims["login"] != "octo" {
			t.Errorf("Claims[login]: expected %q, got %q", "octo", id.Claims["login"])
		}
		if id.LoginCount != 1 {
			t.Errorf("LoginCount: expected 1, got %d", id.LoginCount)
		}

		n, err := testStore.CountLogins(ctx, id.ID)
		if err != nil {
			t.Fatalf("CountLogins failed: %v", err)
		}
		if n != 1 {
			t.Errorf("login events: expected 1, got %d", n)
		}
	})

	t.Run("repeat login updates profile and count", func(t *testing.T) {
		t.Cleanup(func() { cleanupIdentity(t, ctx, "google", "rec-2") })
		first := time.Now().UTC().Add(-time.Hour)
		second := time.Now().UTC()

		testStore.RecordLogin(ctx, LoginRecord{Provider: "google", Subject: "rec-2", Email: "old@x.com", At: first})
		if err := testStore.RecordLogin(ctx, LoginRecord{Provider: "google", Subject: "rec-2", Email: "new@x.com", IPAddress: "not-an-ip", At: second}); err != nil {
			t.Fatalf("second RecordLogin failed: %v", err)
		}

		id, err := testStore.GetIdentity(ctx, "google", "rec-2")
		if err != nil {
			t.Fatalf("GetIdentity failed: %v", err)
		}
		if id.Email == nil || *id.Email != "new@x.com" {
			t.Errorf("Email: expected %q, got %v", "new@x.com", id.Email)
		}
		if id.LoginCount != 2 {
			t.Errorf("LoginCount: expected 2, got %d", id.LoginCount)
		}
		if !id.LastLoginAt.After(id.FirstLoginAt) {
			t.Errorf("expected last_login_at after first_login_at, got %v / %v", id.LastLoginAt, id.FirstLoginAt)
		}
		n, _ := testStore.CountLogins(ctx, id.ID)
		if n != 2 {
			t.Errorf("login events: expected 2, got %d", n)
		}
	})
}

// --- GetIdentity ---

func TestGetIdentity_NotFound(t *testing.T) {
	requirePostgres(t)
	_, err := testStore.GetIdentity(context.Background(), "github", "does-not-exist")
	if !errors.Is(err, pgx.ErrNoRows) {
		t.Errorf("expected pgx.ErrNoRows, got %v", err)
	}
}

func TestPostgresCheckHealth(t *testing.T) {
	requirePostgres(t)
	if err := testStore.CheckHealth(context.Background()); err != nil {
		t.Errorf("expected healthy postgres, got %v", err)
	}
}
