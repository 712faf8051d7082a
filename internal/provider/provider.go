// Package provider dispatches image generation/edit requests to the
// upstream model backend (OpenAI, Gemini) named by the request's model field.
package provider

import (
	"context"
	"fmt"

	"github.com/guitaripod/pixie/internal/apperror"
	"github.com/guitaripod/pixie/internal/config"
)

// GenerateRequest is a model-agnostic image generation request.
type GenerateRequest struct {
	APIKey     string // caller-supplied key in self-hosted mode; empty in official mode
	Model      string
	Prompt     string
	N          int
	Size       string
	Quality    string
	Background string
}

// EditRequest is a model-agnostic image edit request.
type EditRequest struct {
	APIKey        string
	Model         string
	Prompt        string
	Images        [][]byte // raw decoded image bytes, 1 or more
	Mask          []byte   // optional
	N             int
	Size          string
	Quality       string
	InputFidelity string
}

// Image is one generated/edited image, always normalized to raw bytes.
type Image struct {
	Data []byte
}

// Usage carries token accounting for actual-cost billing.
type Usage struct {
	TotalTokens int
	InputTokens int
	OutputTokens int
	TextTokens  int
	ImageTokens int
}

// Result is returned by both GenerateImage and EditImage.
type Result struct {
	Images []Image
	Usage  Usage
}

// Features describes what a provider supports, for request validation.
type Features struct {
	Size            bool
	Quality         bool
	Background      bool
	Moderation      bool
	Edit            bool
	MultipleOutputs bool
	MaxOutputs      int
}

// ImageProvider is implemented by each upstream model backend.
type ImageProvider interface {
	Name() string
	GenerateImage(ctx context.Context, req GenerateRequest) (*Result, error)
	EditImage(ctx context.Context, req EditRequest) (*Result, error)
	SupportedFeatures() Features
}

// Registry dispatches by model name to the provider that serves it.
type Registry struct {
	cfg       *config.Config
	byModel   map[string]ImageProvider
}

// NewRegistry wires the known model -> provider mapping.
func NewRegistry(cfg *config.Config, openai, gemini ImageProvider) *Registry {
	r := &Registry{cfg: cfg, byModel: map[string]ImageProvider{}}
	r.byModel["gpt-image-1"] = openai
	r.byModel["gemini-2.5-flash-image"] = gemini
	r.byModel["gemini-2.5-flash"] = gemini
	return r
}

// Resolve returns the provider that serves model, or apperror.BadRequest if unknown.
func (r *Registry) Resolve(model string) (ImageProvider, error) {
	p, ok := r.byModel[model]
	if !ok {
		return nil, apperror.WithParam(apperror.BadRequest, fmt.Sprintf("unsupported model %q", model), "model")
	}
	return p, nil
}

// ResolveAPIKey returns the key a request should use for an upstream call:
// the server's own key in official deployment mode, or the caller-supplied
// key in self-hosted mode (where callers must always bring their own).
func ResolveAPIKey(cfg *config.Config, serverKey, requestKey string) (string, error) {
	if cfg.IsSelfHosted() {
		if requestKey == "" {
			return "", apperror.New(apperror.Unauthorized, "this deployment requires a provider API key in the request")
		}
		return requestKey, nil
	}
	if serverKey == "" {
		return "", apperror.New(apperror.Internal, "server is not configured with a provider API key")
	}
	return serverKey, nil
}
