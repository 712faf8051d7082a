package handlers

import (
	"context"
	"encoding/base64"
	"strings"
	"time"

	"github.com/guitaripod/pixie/internal/apperror"
	"github.com/guitaripod/pixie/internal/imagegen"
)

// ImagesHandler serves the generation/edit endpoints.
type ImagesHandler struct {
	pipeline *imagegen.Pipeline
}

// NewImagesHandler creates an images handler bound to pipeline.
func NewImagesHandler(pipeline *imagegen.Pipeline) *ImagesHandler {
	return &ImagesHandler{pipeline: pipeline}
}

// ImageObject is one image in a generation/edit response; bytes are never
// inlined, only a fetch URL pointing at the gateway's own blob route.
type ImageObject struct {
	URL string `json:"url"`
}

// GenerateInput is the body of POST /v1/images/generations.
type GenerateInput struct {
	Body struct {
		Prompt     string `json:"prompt" minLength:"1" doc:"Text description of the desired image"`
		Model      string `json:"model" doc:"Model to dispatch to, e.g. gpt-image-1 or gemini-2.5-flash-image"`
		N          int    `json:"n,omitempty" doc:"Number of images to generate, default 1"`
		Size       string `json:"size,omitempty" doc:"Image dimensions, e.g. 1024x1024"`
		Quality    string `json:"quality,omitempty" doc:"low | medium | high | auto"`
		Background string `json:"background,omitempty" doc:"transparent | opaque | auto"`
		APIKey     string `json:"api_key,omitempty" doc:"Upstream provider key, required in self-hosted deployments"`
		Stream     bool   `json:"stream,omitempty" doc:"Not supported; always rejected with bad_request"`
	}
}

// GenerateOutput is the response of POST /v1/images/generations.
type GenerateOutput struct {
	Body struct {
		Created        int64         `json:"created"`
		Data           []ImageObject `json:"data"`
		CreditsCharged int           `json:"credits_charged"`
		Balance        int           `json:"balance"`
	}
}

// Generate handles POST /v1/images/generations.
func (h *ImagesHandler) Generate(ctx context.Context, input *GenerateInput) (*GenerateOutput, error) {
	user := getUser(ctx)
	if user == nil {
		return nil, humaErr(apperror.New(apperror.Unauthorized, "missing or invalid API key"))
	}
	if input.Body.Stream {
		return nil, humaErr(apperror.WithParam(apperror.BadRequest, "streaming partial images is not supported", "stream"))
	}

	res, err := h.pipeline.Generate(ctx, user.ID, imagegen.GenerateParams{
		Model:      input.Body.Model,
		Prompt:     input.Body.Prompt,
		N:          input.Body.N,
		Size:       input.Body.Size,
		Quality:    input.Body.Quality,
		Background: input.Body.Background,
		APIKey:     input.Body.APIKey,
	})
	if err != nil {
		return nil, humaErr(err)
	}

	out := &GenerateOutput{}
	out.Body.Created = time.Now().Unix()
	out.Body.CreditsCharged = res.CreditsCharged
	out.Body.Balance = res.Balance
	out.Body.Data = make([]ImageObject, len(res.Images))
	for i, img := range res.Images {
		out.Body.Data[i] = ImageObject{URL: img.URL}
	}
	return out, nil
}

// EditInput is the body of POST /v1/images/edits.
type EditInput struct {
	Body struct {
		Prompt        string   `json:"prompt" minLength:"1" doc:"Edit instruction"`
		Model         string   `json:"model" doc:"Model to dispatch to"`
		Image         []string `json:"image" minItems:"1" doc:"Source image(s), each a data URL or raw base64 string"`
		Mask          string   `json:"mask,omitempty" doc:"Optional mask image, data URL or raw base64"`
		N             int      `json:"n,omitempty"`
		Size          string   `json:"size,omitempty"`
		Quality       string   `json:"quality,omitempty"`
		InputFidelity string   `json:"input_fidelity,omitempty"`
		APIKey        string   `json:"api_key,omitempty"`
		Stream        bool     `json:"stream,omitempty"`
	}
}

// EditOutput is the response of POST /v1/images/edits.
type EditOutput struct {
	Body struct {
		Created        int64         `json:"created"`
		Data           []ImageObject `json:"data"`
		CreditsCharged int           `json:"credits_charged"`
		Balance        int           `json:"balance"`
	}
}

// Edit handles POST /v1/images/edits.
func (h *ImagesHandler) Edit(ctx context.Context, input *EditInput) (*EditOutput, error) {
	user := getUser(ctx)
	if user == nil {
		return nil, humaErr(apperror.New(apperror.Unauthorized, "missing or invalid API key"))
	}
	if input.Body.Stream {
		return nil, humaErr(apperror.WithParam(apperror.BadRequest, "streaming partial images is not supported", "stream"))
	}

	images := make([][]byte, 0, len(input.Body.Image))
	for _, raw := range input.Body.Image {
		data, err := decodeImageData(raw)
		if err != nil {
			return nil, humaErr(apperror.WithParam(apperror.BadRequest, "invalid image data: "+err.Error(), "image"))
		}
		images = append(images, data)
	}

	var mask []byte
	if input.Body.Mask != "" {
		data, err := decodeImageData(input.Body.Mask)
		if err != nil {
			return nil, humaErr(apperror.WithParam(apperror.BadRequest, "invalid mask data: "+err.Error(), "mask"))
		}
		mask = data
	}

	res, err := h.pipeline.Edit(ctx, user.ID, imagegen.EditParams{
		Model:         input.Body.Model,
		Prompt:        input.Body.Prompt,
		Images:        images,
		Mask:          mask,
		N:             input.Body.N,
		Size:          input.Body.Size,
		Quality:       input.Body.Quality,
		InputFidelity: input.Body.InputFidelity,
		APIKey:        input.Body.APIKey,
	})
	if err != nil {
		return nil, humaErr(err)
	}

	out := &EditOutput{}
	out.Body.Created = time.Now().Unix()
	out.Body.CreditsCharged = res.CreditsCharged
	out.Body.Balance = res.Balance
	out.Body.Data = make([]ImageObject, len(res.Images))
	for i, img := range res.Images {
		out.Body.Data[i] = ImageObject{URL: img.URL}
	}
	return out, nil
}

// decodeImageData accepts either a "data:image/png;base64,...." data URL or a
// bare base64 string and returns the decoded bytes.
func decodeImageData(raw string) ([]byte, error) {
	if idx := strings.Index(raw, ","); strings.HasPrefix(raw, "data:") && idx >= 0 {
		raw = raw[idx+1:]
	}
	return base64.StdEncoding.DecodeString(raw)
}
