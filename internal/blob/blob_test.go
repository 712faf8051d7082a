package blob

import (
	"context"
	"log/slog"
	"testing"

	appconfig "github.com/guitaripod/pixie/internal/config"
)

func TestNew_Disabled(t *testing.T) {
	cfg := &appconfig.Config{StorageEnabled: false}
	logger := slog.Default()

	store, err := New(cfg, logger)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if store == nil {
		t.Fatal("expected store, got nil")
	}
	if store.IsEnabled() {
		t.Error("expected storage to be disabled")
	}
}

func TestStore_Put_Disabled(t *testing.T) {
	cfg := &appconfig.Config{StorageEnabled: false}
	store, _ := New(cfg, slog.Default())

	err := store.Put(context.Background(), "user-1/img-1.png", []byte("data"))
	if err == nil {
		t.Error("expected error when storage is disabled")
	}
}

func TestKey(t *testing.T) {
	got := Key("user-1", "img-1")
	want := "user-1/img-1.png"
	if got != want {
		t.Errorf("Key() = %q, want %q", got, want)
	}
}

func TestStore_PublicURL(t *testing.T) {
	store := &Store{publicURLBase: "https://pixie.example.com/r2"}
	got := store.PublicURL("user-1/img-1.png")
	want := "https://pixie.example.com/r2/user-1/img-1.png"
	if got != want {
		t.Errorf("PublicURL() = %q, want %q", got, want)
	}
}
