package gateway

import (
	"context"
	"fmt"

	"github.com/googleapis/gax-go/v2/apierror"
	"google.golang.org/genai"
)

// GenaiImageBackend serves the synchronous image path with the Gemini API.
type GenaiImageBackend struct {
	client *genai.Client
}

// NewGenaiImageBackend wraps an existing genai client.
func NewGenaiImageBackend(client *genai.Client) *GenaiImageBackend {
	return &GenaiImageBackend{client: client}
}

// GenerateImage implements ImageBackend.
func (b *GenaiImageBackend) GenerateImage(ctx context.Context, modelID, prompt string) ([]byte, string, error) {
	resp, err := b.client.Models.GenerateImages(ctx, modelID, prompt, &genai.GenerateImagesConfig{
		NumberOfImages: 1,
	})
	if err != nil {
		return nil, "", fmt.Errorf("imagen api error: %w", unwrapAPIError(err))
	}

	if len(resp.GeneratedImages) == 0 || resp.GeneratedImages[0].Image == nil {
		return nil, "", nil
	}

	img := resp.GeneratedImages[0].Image
	return img.ImageBytes, img.MIMEType, nil
}

// GenaiVideoBackend serves the long-running video path with the Gemini API.
type GenaiVideoBackend struct {
	client *genai.Client
}

// NewGenaiVideoBackend wraps an existing genai client.
func NewGenaiVideoBackend(client *genai.Client) *GenaiVideoBackend {
	return &GenaiVideoBackend{client: client}
}

// StartVideo implements VideoBackend.
func (b *GenaiVideoBackend) StartVideo(ctx context.Context, modelID, prompt string) (*VideoOperation, error) {
	op, err := b.client.Models.GenerateVideos(ctx, modelID, prompt, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("veo api error: %w", unwrapAPIError(err))
	}
	return convVideoOperation(op), nil
}

// PollVideo implements VideoBackend.
func (b *GenaiVideoBackend) PollVideo(ctx context.Context, op *VideoOperation) (*VideoOperation, error) {
	handle, ok := op.raw.(*genai.GenerateVideosOperation)
	if !ok {
		return nil, fmt.Errorf("operation %q was not started by this backend", op.Name)
	}

	updated, err := b.client.Operations.GetVideosOperation(ctx, handle, nil)
	if err != nil {
		return nil, fmt.Errorf("veo poll error: %w", unwrapAPIError(err))
	}
	return convVideoOperation(updated), nil
}

// convVideoOperation normalizes the SDK operation handle.
func convVideoOperation(op *genai.GenerateVideosOperation) *VideoOperation {
	out := &VideoOperation{
		Name: op.Name,
		Done: op.Done,
		raw:  op,
	}

	if len(op.Error) > 0 {
		if msg, ok := op.Error["message"].(string); ok && msg != "" {
			out.Failure = msg
		} else {
			out.Failure = fmt.Sprintf("%v", op.Error)
		}
	}
	if op.Response != nil {
		out.Response = op.Response
	}
	return out
}

// unwrapAPIError strips the gax wrapper so the backoff classifier sees the
// underlying status error.
func unwrapAPIError(err error) error {
	if e, ok := err.(*apierror.APIError); ok {
		return e.Unwrap()
	}
	return err
}
