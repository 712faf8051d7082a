package provider

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/guitaripod/pixie/internal/apperror"
	"github.com/guitaripod/pixie/internal/config"
)

const openAIImagesEndpoint = "https://api.openai.com/v1/images"

// OpenAIProvider talks to OpenAI's gpt-image-1 generations/edits endpoints.
type OpenAIProvider struct {
	cfg    *config.Config
	client *http.Client
	logger *slog.Logger
}

// NewOpenAIProvider creates a new OpenAI image provider.
func NewOpenAIProvider(cfg *config.Config, logger *slog.Logger) *OpenAIProvider {
	return &OpenAIProvider{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.UpstreamTimeout},
		logger: logger,
	}
}

func (p *OpenAIProvider) Name() string { return "openai" }

func (p *OpenAIProvider) SupportedFeatures() Features {
	return Features{
		Size: true, Quality: true, Background: true, Moderation: true,
		Edit: true, MultipleOutputs: true, MaxOutputs: 10,
	}
}

type openaiGenerateBody struct {
	Model      string `json:"model"`
	Prompt     string `json:"prompt"`
	N          int    `json:"n,omitempty"`
	Size       string `json:"size,omitempty"`
	Quality    string `json:"quality,omitempty"`
	Background string `json:"background,omitempty"`
	OutputFmt  string `json:"output_format,omitempty"`
	Stream     bool   `json:"stream"`
}

type openaiImageData struct {
	B64JSON string `json:"b64_json"`
	URL     string `json:"url"`
}

type openaiUsage struct {
	TotalTokens  int `json:"total_tokens"`
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	InputTokensDetails struct {
		TextTokens  int `json:"text_tokens"`
		ImageTokens int `json:"image_tokens"`
	} `json:"input_tokens_details"`
}

type openaiImageResponse struct {
	Data  []openaiImageData `json:"data"`
	Usage openaiUsage       `json:"usage"`
}

type openaiErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Code    string `json:"code"`
		Type    string `json:"type"`
	} `json:"error"`
}

func (p *OpenAIProvider) GenerateImage(ctx context.Context, req GenerateRequest) (*Result, error) {
	key, err := ResolveAPIKey(p.cfg, p.cfg.OpenAIAPIKey, req.APIKey)
	if err != nil {
		return nil, err
	}

	body := openaiGenerateBody{
		Model:      "gpt-image-1",
		Prompt:     req.Prompt,
		N:          defaultInt(req.N, 1),
		Size:       defaultStr(req.Size, "1024x1024"),
		Quality:    defaultStr(req.Quality, "auto"),
		Background: defaultStr(req.Background, "vivid"),
		OutputFmt:  "png",
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, apperror.Wrap(err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, openAIImagesEndpoint+"/generations", bytes.NewReader(payload))
	if err != nil {
		return nil, apperror.Wrap(err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+key)
	httpReq.Header.Set("Content-Type", "application/json")

	return p.doImageRequest(ctx, httpReq, false)
}

func (p *OpenAIProvider) EditImage(ctx context.Context, req EditRequest) (*Result, error) {
	key, err := ResolveAPIKey(p.cfg, p.cfg.OpenAIAPIKey, req.APIKey)
	if err != nil {
		return nil, err
	}

	boundary := "----WebKitFormBoundary" + strings.ReplaceAll(uuid.New().String(), "-", "")
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	if err := writer.SetBoundary(boundary); err != nil {
		return nil, apperror.Wrap(err)
	}

	imageField := "image"
	if len(req.Images) > 1 {
		imageField = "image[]"
	}
	for i, img := range req.Images {
		part, err := writer.CreateFormFile(imageField, fmt.Sprintf("image-%d.png", i))
		if err != nil {
			return nil, apperror.Wrap(err)
		}
		if _, err := part.Write(stripDataURLPrefix(img)); err != nil {
			return nil, apperror.Wrap(err)
		}
	}
	if len(req.Mask) > 0 {
		part, err := writer.CreateFormFile("mask", "mask.png")
		if err != nil {
			return nil, apperror.Wrap(err)
		}
		if _, err := part.Write(stripDataURLPrefix(req.Mask)); err != nil {
			return nil, apperror.Wrap(err)
		}
	}

	fields := map[string]string{
		"prompt":         req.Prompt,
		"model":          "gpt-image-1",
		"n":              strconv.Itoa(defaultInt(req.N, 1)),
		"size":           defaultStr(req.Size, "1024x1024"),
		"quality":        defaultStr(req.Quality, "auto"),
		"input_fidelity": defaultStr(req.InputFidelity, "medium"),
		"output_format":  "png",
	}
	for k, v := range fields {
		if err := writer.WriteField(k, v); err != nil {
			return nil, apperror.Wrap(err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, apperror.Wrap(err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, openAIImagesEndpoint+"/edits", &buf)
	if err != nil {
		return nil, apperror.Wrap(err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+key)
	httpReq.Header.Set("Content-Type", "multipart/form-data; boundary="+boundary)

	return p.doImageRequest(ctx, httpReq, true)
}

func (p *OpenAIProvider) doImageRequest(ctx context.Context, httpReq *http.Request, isEdit bool) (*Result, error) {
	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, apperror.WrapKind(apperror.Internal, "failed to reach image provider", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperror.Wrap(err)
	}

	if resp.StatusCode != http.StatusOK {
		var errResp openaiErrorResponse
		_ = json.Unmarshal(respBody, &errResp)

		p.logger.Error("openai image request failed",
			"status", resp.StatusCode, "edit", isEdit, "raw_error", errResp.Error.Message)

		if errResp.Error.Code == "content_policy_violation" || strings.Contains(errResp.Error.Message, "content_policy_violation") {
			msg := "Your request was rejected by OpenAI's content policy. Please try a different prompt."
			if isEdit {
				msg = "Your request was rejected by OpenAI's content policy. Please try a different prompt or image."
			}
			return nil, apperror.New(apperror.BadRequest, msg)
		}
		return nil, apperror.New(apperror.Internal, "the image provider returned an error")
	}

	var parsed openaiImageResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, apperror.Wrap(err)
	}

	images := make([]Image, 0, len(parsed.Data))
	for _, d := range parsed.Data {
		if d.B64JSON != "" {
			data, err := base64.StdEncoding.DecodeString(d.B64JSON)
			if err != nil {
				return nil, apperror.Wrap(err)
			}
			images = append(images, Image{Data: data})
			continue
		}
		if d.URL != "" {
			data, err := p.fetchURL(ctx, d.URL)
			if err != nil {
				return nil, apperror.Wrap(err)
			}
			images = append(images, Image{Data: data})
		}
	}

	return &Result{
		Images: images,
		Usage: Usage{
			TotalTokens:  parsed.Usage.TotalTokens,
			InputTokens:  parsed.Usage.InputTokens,
			OutputTokens: parsed.Usage.OutputTokens,
			TextTokens:   parsed.Usage.InputTokensDetails.TextTokens,
			ImageTokens:  parsed.Usage.InputTokensDetails.ImageTokens,
		},
	}, nil
}

func (p *OpenAIProvider) fetchURL(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	return io.ReadAll(resp.Body)
}

func stripDataURLPrefix(data []byte) []byte {
	for _, prefix := range []string{"data:image/png;base64,", "data:image/jpeg;base64,", "data:image/jpg;base64,"} {
		if bytes.HasPrefix(data, []byte(prefix)) {
			decoded, err := base64.StdEncoding.DecodeString(string(data[len(prefix):]))
			if err == nil {
				return decoded
			}
		}
	}
	return data
}

func defaultInt(v, fallback int) int {
	if v == 0 {
		return fallback
	}
	return v
}

func defaultStr(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
