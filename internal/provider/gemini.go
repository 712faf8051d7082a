package provider

import (
	"context"
	"log/slog"

	"google.golang.org/genai"

	"github.com/guitaripod/pixie/internal/apperror"
	"github.com/guitaripod/pixie/internal/config"
)

// GeminiProvider talks to Google's Gemini multimodal image model.
type GeminiProvider struct {
	cfg    *config.Config
	logger *slog.Logger
}

// NewGeminiProvider creates a new Gemini image provider.
func NewGeminiProvider(cfg *config.Config, logger *slog.Logger) *GeminiProvider {
	return &GeminiProvider{cfg: cfg, logger: logger}
}

func (p *GeminiProvider) Name() string { return "gemini" }

func (p *GeminiProvider) SupportedFeatures() Features {
	return Features{
		Size: false, Quality: false, Background: false, Moderation: false,
		Edit: true, MultipleOutputs: true, MaxOutputs: 4,
	}
}

func (p *GeminiProvider) client(ctx context.Context, requestKey string) (*genai.Client, error) {
	key, err := ResolveAPIKey(p.cfg, p.cfg.GeminiAPIKey, requestKey)
	if err != nil {
		return nil, err
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: key, Backend: genai.BackendGeminiAPI})
	if err != nil {
		return nil, apperror.WrapKind(apperror.Internal, "failed to reach image provider", err)
	}
	return client, nil
}

func (p *GeminiProvider) GenerateImage(ctx context.Context, req GenerateRequest) (*Result, error) {
	client, err := p.client(ctx, req.APIKey)
	if err != nil {
		return nil, err
	}

	n := defaultInt(req.N, 1)
	result := &Result{}
	for i := 0; i < n; i++ {
		resp, err := client.Models.GenerateContent(ctx, "gemini-2.5-flash-image",
			[]*genai.Content{{Role: "user", Parts: []*genai.Part{{Text: req.Prompt}}}},
			&genai.GenerateContentConfig{ResponseModalities: []string{"TEXT", "IMAGE"}})
		if err != nil {
			return nil, apperror.WrapKind(apperror.Internal, "the image provider returned an error", err)
		}

		images, usage, err := extractGeminiImages(resp)
		if err != nil {
			return nil, err
		}
		result.Images = append(result.Images, images...)
		result.Usage.TotalTokens += usage.TotalTokens
		result.Usage.InputTokens += usage.InputTokens
		result.Usage.OutputTokens += usage.OutputTokens
	}

	return result, nil
}

func (p *GeminiProvider) EditImage(ctx context.Context, req EditRequest) (*Result, error) {
	client, err := p.client(ctx, req.APIKey)
	if err != nil {
		return nil, err
	}

	parts := []*genai.Part{{Text: req.Prompt}}
	for _, img := range req.Images {
		parts = append(parts, &genai.Part{InlineData: &genai.Blob{MIMEType: "image/png", Data: img}})
	}

	resp, err := client.Models.GenerateContent(ctx, "gemini-2.5-flash-image",
		[]*genai.Content{{Role: "user", Parts: parts}},
		&genai.GenerateContentConfig{ResponseModalities: []string{"TEXT", "IMAGE"}})
	if err != nil {
		return nil, apperror.WrapKind(apperror.Internal, "the image provider returned an error", err)
	}

	images, usage, err := extractGeminiImages(resp)
	if err != nil {
		return nil, err
	}
	return &Result{Images: images, Usage: usage}, nil
}

func extractGeminiImages(resp *genai.GenerateContentResponse) ([]Image, Usage, error) {
	var images []Image
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, Usage{}, apperror.New(apperror.Internal, "the image provider returned no output")
	}

	for _, part := range resp.Candidates[0].Content.Parts {
		if part.InlineData != nil && len(part.InlineData.Data) > 0 {
			images = append(images, Image{Data: part.InlineData.Data})
		}
	}
	if len(images) == 0 {
		return nil, Usage{}, apperror.New(apperror.Internal, "the image provider returned no image data")
	}

	usage := Usage{}
	if resp.UsageMetadata != nil {
		usage.TotalTokens = int(resp.UsageMetadata.TotalTokenCount)
		usage.InputTokens = int(resp.UsageMetadata.PromptTokenCount)
		usage.OutputTokens = int(resp.UsageMetadata.CandidatesTokenCount)
	}
	return images, usage, nil
}
