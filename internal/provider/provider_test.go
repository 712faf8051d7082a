package provider

import (
	"context"
	"testing"

	"github.com/guitaripod/pixie/internal/apperror"
	"github.com/guitaripod/pixie/internal/config"
)

func TestResolveAPIKey_Official(t *testing.T) {
	cfg := &config.Config{DeploymentMode: config.DeploymentOfficial}

	key, err := ResolveAPIKey(cfg, "server-key", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if key != "server-key" {
		t.Errorf("key = %q, want server-key", key)
	}

	cfg.DeploymentMode = config.DeploymentOfficial
	if _, err := ResolveAPIKey(cfg, "", ""); err == nil {
		t.Error("expected error when server key is missing in official mode")
	}
}

func TestResolveAPIKey_SelfHosted(t *testing.T) {
	cfg := &config.Config{DeploymentMode: config.DeploymentSelfHosted}

	if _, err := ResolveAPIKey(cfg, "server-key", ""); err == nil {
		t.Error("expected error when request key is missing in self-hosted mode")
	} else if ae, ok := err.(*apperror.Error); !ok || ae.Kind != apperror.Unauthorized {
		t.Errorf("expected Unauthorized, got %v", err)
	}

	key, err := ResolveAPIKey(cfg, "server-key", "request-key")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if key != "request-key" {
		t.Errorf("key = %q, want request-key", key)
	}
}

func TestRegistry_Resolve(t *testing.T) {
	cfg := &config.Config{}
	openai := &fakeProvider{name: "openai"}
	gemini := &fakeProvider{name: "gemini"}
	reg := NewRegistry(cfg, openai, gemini)

	p, err := reg.Resolve("gpt-image-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Name() != "openai" {
		t.Errorf("resolved provider = %q, want openai", p.Name())
	}

	if _, err := reg.Resolve("unknown-model"); err == nil {
		t.Error("expected error for unknown model")
	}
}

type fakeProvider struct {
	name string
}

func (f *fakeProvider) Name() string { return f.name }
func (f *fakeProvider) GenerateImage(ctx context.Context, req GenerateRequest) (*Result, error) {
	return nil, nil
}
func (f *fakeProvider) EditImage(ctx context.Context, req EditRequest) (*Result, error) {
	return nil, nil
}
func (f *fakeProvider) SupportedFeatures() Features { return Features{} }
