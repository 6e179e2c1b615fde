package session

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestCreateAndGet(t *testing.T) {
	store := NewStore()

	sess := store.Create("orders")
	if sess.ID == uuid.Nil {
		t.Fatal("session id not set")
	}
	if sess.Table != "orders" {
		t.Errorf("table: got %q", sess.Table)
	}

	got, ok := store.Get(sess.ID)
	if !ok {
		t.Fatal("session not found")
	}
	if got.ID != sess.ID {
		t.Errorf("got %v, want %v", got.ID, sess.ID)
	}
}

func TestGetUnknownID(t *testing.T) {
	store := NewStore()
	if _, ok := store.Get(uuid.New()); ok {
		t.Error("unknown id should not resolve")
	}
}

func TestDelete(t *testing.T) {
	store := NewStore()
	sess := store.Create("orders")

	store.Delete(sess.ID)
	if _, ok := store.Get(sess.ID); ok {
		t.Error("deleted session still resolves")
	}
}

func TestSessionAgesOut(t *testing.T) {
	now := time.Now()
	store := NewStore()
	store.now = func() time.Time { return now }

	sess := store.Create("orders")

	// Still valid just inside the window.
	store.now = func() time.Time { return now.Add(maxAge - time.Minute) }
	if _, ok := store.Get(sess.ID); !ok {
		t.Fatal("session aged out too early")
	}

	store.now = func() time.Time { return now.Add(maxAge + time.Minute) }
	if _, ok := store.Get(sess.ID); ok {
		t.Error("session should have aged out")
	}

	// A later Create prunes the stale entry.
	store.Create("clients")
	store.mu.RLock()
	_, still := store.sessions[sess.ID]
	store.mu.RUnlock()
	if still {
		t.Error("stale session not pruned")
	}
}
