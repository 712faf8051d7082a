// Package imagegen implements the image generation/edit pipeline: the single
// place that composes rate-gating, credit reservation, provider dispatch,
// blob persistence, cost reconciliation, and usage recording into the one
// state machine every /v1/images/* request runs through.
package imagegen

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/guitaripod/pixie/internal/apperror"
	"github.com/guitaripod/pixie/internal/blob"
	"github.com/guitaripod/pixie/internal/config"
	"github.com/guitaripod/pixie/internal/credit"
	"github.com/guitaripod/pixie/internal/models"
	"github.com/guitaripod/pixie/internal/provider"
	"github.com/guitaripod/pixie/internal/rategate"
	"github.com/guitaripod/pixie/internal/repository"
)

// maxImageBytes is the largest single source image an edit request may submit.
const maxImageBytes = 50 * 1024 * 1024

// Pipeline wires the components a generation/edit request passes through.
type Pipeline struct {
	cfg      *config.Config
	gate     *rategate.Gate
	ledger   *credit.Ledger
	registry *provider.Registry
	blob     *blob.Store
	images   repository.ImageRepository
	usage    repository.UsageRepository
	logger   *slog.Logger
}

// New builds a Pipeline.
func New(cfg *config.Config, gate *rategate.Gate, ledger *credit.Ledger, registry *provider.Registry, blobStore *blob.Store, images repository.ImageRepository, usage repository.UsageRepository, logger *slog.Logger) *Pipeline {
	return &Pipeline{cfg: cfg, gate: gate, ledger: ledger, registry: registry, blob: blobStore, images: images, usage: usage, logger: logger}
}

// GenerateParams is the gateway-normalized form of a POST /v1/images/generations body.
type GenerateParams struct {
	Model      string
	Prompt     string
	N          int
	Size       string
	Quality    string
	Background string
	APIKey     string // caller-supplied upstream key, self-hosted mode only
}

// EditParams is the gateway-normalized form of a POST /v1/images/edits body.
type EditParams struct {
	Model         string
	Prompt        string
	Images        [][]byte
	Mask          []byte
	N             int
	Size          string
	Quality       string
	InputFidelity string
	APIKey        string
}

// StoredImageResult is one successfully persisted image in a pipeline response.
type StoredImageResult struct {
	ID  string
	URL string
}

// Result is returned by both Generate and Edit.
type Result struct {
	Images         []StoredImageResult
	CreditsCharged int
	Balance        int
}

// Generate runs the full generation state machine for userID.
func (p *Pipeline) Generate(ctx context.Context, userID string, params GenerateParams) (*Result, error) {
	if params.N < 1 {
		params.N = 1
	}
	release, err := p.gate.Acquire(ctx, userID)
	if err != nil {
		return nil, err
	}
	defer release()

	prov, err := p.registry.Resolve(params.Model)
	if err != nil {
		return nil, err
	}

	estimate := credit.EstimateImageCreditsN(params.Quality, params.Size, false, params.N)
	if err := p.ledger.Reserve(ctx, userID, estimate); err != nil {
		return nil, err
	}

	start := time.Now()
	res, err := prov.GenerateImage(ctx, provider.GenerateRequest{
		APIKey:     params.APIKey,
		Model:      params.Model,
		Prompt:     params.Prompt,
		N:          params.N,
		Size:       params.Size,
		Quality:    params.Quality,
		Background: params.Background,
	})
	elapsed := time.Since(start)
	if err != nil {
		return nil, err
	}

	return p.settle(ctx, userID, prov.Name(), params.Model, params.Prompt, params.Size, params.Quality, models.RequestTypeGeneration, params.N, 0, res, elapsed)
}

// Edit runs the full edit state machine for userID.
func (p *Pipeline) Edit(ctx context.Context, userID string, params EditParams) (*Result, error) {
	if params.N < 1 {
		params.N = 1
	}
	for _, img := range params.Images {
		if len(img) > maxImageBytes {
			return nil, apperror.WithParam(apperror.BadRequest, "source image exceeds the 50MiB limit", "image")
		}
	}

	release, err := p.gate.Acquire(ctx, userID)
	if err != nil {
		return nil, err
	}
	defer release()

	prov, err := p.registry.Resolve(params.Model)
	if err != nil {
		return nil, err
	}
	if !prov.SupportedFeatures().Edit {
		return nil, apperror.WithParam(apperror.BadRequest, "model does not support image edits", "model")
	}

	estimate := credit.EstimateImageCreditsN(params.Quality, params.Size, true, params.N)
	if err := p.ledger.Reserve(ctx, userID, estimate); err != nil {
		return nil, err
	}

	start := time.Now()
	res, err := prov.EditImage(ctx, provider.EditRequest{
		APIKey:        params.APIKey,
		Model:         params.Model,
		Prompt:        params.Prompt,
		Images:        params.Images,
		Mask:          params.Mask,
		N:             params.N,
		Size:          params.Size,
		Quality:       params.Quality,
		InputFidelity: params.InputFidelity,
	})
	elapsed := time.Since(start)
	if err != nil {
		return nil, err
	}

	return p.settle(ctx, userID, prov.Name(), params.Model, params.Prompt, params.Size, params.Quality, models.RequestTypeEdit, params.N, len(params.Images), res, elapsed)
}

// settle persists whatever images the provider returned, reconciles the
// actual credit charge against how many of them were actually stored, and
// records the usage row. A per-image storage failure is logged and skipped
// rather than aborting the batch — the response and the charge both reflect
// only the images that made it into blob storage.
func (p *Pipeline) settle(ctx context.Context, userID, providerName, model, prompt, size, quality, requestType string, n, inputImages int, res *provider.Result, elapsed time.Duration) (*Result, error) {
	costUSD := credit.OpenAICostUSD(res.Usage.TextTokens, res.Usage.ImageTokens, res.Usage.OutputTokens)
	reconciled := credit.CreditsFromCostUSD(costUSD, p.cfg.CreditMultiplier)

	stored := make([]StoredImageResult, 0, len(res.Images))
	r2Keys := make([]string, 0, len(res.Images))
	now := time.Now().UTC()

	for _, img := range res.Images {
		imageID := uuid.New().String()
		key := blob.Key(userID, imageID)
		if err := p.blob.Put(ctx, key, img.Data); err != nil {
			p.logger.Error("failed to store generated image", "user_id", userID, "image_id", imageID, "error", err)
			continue
		}

		tokenUsage, _ := json.Marshal(res.Usage)
		row := &models.StoredImage{
			ID:              imageID,
			UserID:          userID,
			R2Key:           key,
			Prompt:          prompt,
			Provider:        providerName,
			Model:           model,
			Size:            size,
			Quality:         quality,
			CreatedAt:       now,
			ExpiresAt:       now.Add(7 * 24 * time.Hour),
			OpenAICostCents: costUSD * 100,
			TokenUsage:      string(tokenUsage),
		}
		if err := p.images.Create(ctx, row); err != nil {
			p.logger.Error("failed to persist image metadata", "user_id", userID, "image_id", imageID, "error", err)
			continue
		}

		stored = append(stored, StoredImageResult{ID: imageID, URL: p.blob.PublicURL(key)})
		r2Keys = append(r2Keys, key)
	}

	actual := credit.ReconcileCharge(reconciled, len(stored), n)

	var usageErr string
	balance, err := p.ledger.Deduct(ctx, userID, actual, models.TxTypeSpend, requestType+" via "+providerName+"/"+model, "")
	if err != nil {
		// Images are already persisted; never retroactively undo delivered work.
		// Log the failed deduction and let the request still report success.
		p.logger.Error("credit deduction failed after images were stored", "user_id", userID, "error", err)
		usageErr = err.Error()
		balance, _ = p.ledger.Balance(ctx, userID)
	}

	rec := &models.UsageRecord{
		ID:               uuid.New().String(),
		UserID:           userID,
		RequestType:      requestType,
		Provider:         providerName,
		Model:            model,
		Prompt:           prompt,
		Size:             size,
		Quality:          quality,
		ImageCount:       len(stored),
		InputImagesCount: inputImages,
		TokensTotal:      res.Usage.TotalTokens,
		TokensInput:      res.Usage.InputTokens,
		TokensOutput:     res.Usage.OutputTokens,
		TokensText:       res.Usage.TextTokens,
		TokensImage:      res.Usage.ImageTokens,
		R2Keys:           r2Keys,
		ResponseTimeMs:   elapsed.Milliseconds(),
		Error:            usageErr,
		CreditsCharged:   actual,
		CreatedAt:        now,
	}
	if err := p.usage.Create(ctx, rec); err != nil {
		p.logger.Error("failed to write usage record", "user_id", userID, "error", err)
	}

	return &Result{Images: stored, CreditsCharged: actual, Balance: balance}, nil
}
