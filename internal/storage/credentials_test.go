package storage

import (
	"context"
	"sort"
	"testing"

	"github.com/alicebob/miniredis/v2"

	"github.com/thenexusengine/tne_mediation/internal/config"
	"github.com/thenexusengine/tne_mediation/pkg/redis"
)

func newTestCredentialStore(t *testing.T) (*CredentialStore, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client, err := redis.New("redis://" + mr.Addr())
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	t.Cleanup(func() { client.Close() })

	return NewCredentialStore(client), mr
}

func TestCredentialStore_PutGet(t *testing.T) {
	store, mr := newTestCredentialStore(t)
	ctx := context.Background()

	creds := map[string]string{"app_id": "app-1", "app_key": "secret"}
	if err := store.Put(ctx, "reference", creds); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	got, err := store.Get(ctx, "reference")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got["app_id"] != "app-1" || got["app_key"] != "secret" {
		t.Errorf("Unexpected credentials %v", got)
	}
	if v := mr.HGet(config.CredentialKeyPrefix+"reference", "app_id"); v != "app-1" {
		t.Errorf("Expected hash under credential prefix, got %q", v)
	}
}

func TestCredentialStore_PutReplaces(t *testing.T) {
	store, _ := newTestCredentialStore(t)
	ctx := context.Background()

	store.Put(ctx, "reference", map[string]string{"app_id": "old", "legacy": "x"})
	if err := store.Put(ctx, "reference", map[string]string{"app_id": "new"}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	got, _ := store.Get(ctx, "reference")
	if len(got) != 1 || got["app_id"] != "new" {
		t.Errorf("Expected replaced credentials, got %v", got)
	}
}

func TestCredentialStore_GetUnknown(t *testing.T) {
	store, _ := newTestCredentialStore(t)

	got, err := store.Get(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Expected empty credentials, got %v", got)
	}
}

func TestCredentialStore_Remove(t *testing.T) {
	store, _ := newTestCredentialStore(t)
	ctx := context.Background()

	store.Put(ctx, "reference", map[string]string{"app_id": "a", "app_key": "b"})
	if err := store.Remove(ctx, "reference", "app_key"); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if err := store.Remove(ctx, "reference"); err != nil {
		t.Errorf("Remove with no fields should be a no-op, got %v", err)
	}

	got, _ := store.Get(ctx, "reference")
	if _, ok := got["app_key"]; ok {
		t.Error("Expected app_key to be removed")
	}
	if got["app_id"] != "a" {
		t.Error("Expected app_id to remain")
	}
}

func TestCredentialStore_Partners(t *testing.T) {
	store, _ := newTestCredentialStore(t)
	ctx := context.Background()

	store.Put(ctx, "beta", map[string]string{"k": "v"})
	store.Put(ctx, "alpha", map[string]string{"k": "v"})
	store.Put(ctx, "alpha", map[string]string{"k": "v2"})

	partners, err := store.Partners(ctx)
	if err != nil {
		t.Fatalf("Partners failed: %v", err)
	}
	sort.Strings(partners)
	if len(partners) != 2 || partners[0] != "alpha" || partners[1] != "beta" {
		t.Errorf("Unexpected partners %v", partners)
	}
}

func TestCredentialStore_RedisDown(t *testing.T) {
	store, mr := newTestCredentialStore(t)
	mr.Close()

	if _, err := store.Get(context.Background(), "reference"); err == nil {
		t.Error("Expected error when Redis is unavailable")
	}
}
