package gateway

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/canopyai/canopy/backoff"
	"github.com/canopyai/canopy/internal/jsonutil"
)

// Media generation failure modes. All are fatal for the agent's turn; the
// engine substitutes a formatted message for the agent's output.
var (
	ErrMediaTimeout          = errors.New("media generation timed out")
	ErrMediaPayloadMissing   = errors.New("no media payload found")
	ErrMediaGenerationFailed = errors.New("media generation failed")
)

// Video poll schedule. Roughly 8 minutes of wall time when exhausted.
const (
	pollInitialInterval = 8 * time.Second
	pollGrowthFactor    = 1.5
	pollMaxInterval     = 60 * time.Second
	pollMaxAttempts     = 30
)

// ImageBackend performs one synchronous image generation.
type ImageBackend interface {
	GenerateImage(ctx context.Context, modelID, prompt string) (data []byte, mimeType string, err error)
}

// VideoOperation is a long-running video generation handle. Response holds
// the backend's completion payload in generic JSON form; its nesting varies
// between API revisions, so the gateway searches it rather than binding to a
// fixed shape.
type VideoOperation struct {
	Name     string
	Done     bool
	Failure  string // Non-empty when the operation completed with an error
	Response any

	raw any // Backend-native handle carried between polls
}

// VideoBackend starts and polls long-running video generations.
type VideoBackend interface {
	StartVideo(ctx context.Context, modelID, prompt string) (*VideoOperation, error)
	PollVideo(ctx context.Context, op *VideoOperation) (*VideoOperation, error)
}

// GenerateImage runs the synchronous image path. Missing image bytes in a
// successful response is a hard error.
func (g *Gateway) GenerateImage(ctx context.Context, modelID, prompt string) (*MediaResult, error) {
	if g.image == nil {
		return nil, fmt.Errorf("no image backend configured for model %q", modelID)
	}

	type imagePayload struct {
		data []byte
		mime string
	}

	payload, err := backoff.Execute(ctx, g.retry, "image:"+modelID,
		func(ctx context.Context) (imagePayload, error) {
			data, mime, err := g.image.GenerateImage(ctx, modelID, prompt)
			return imagePayload{data: data, mime: mime}, err
		})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMediaGenerationFailed, err)
	}
	if len(payload.data) == 0 {
		return nil, ErrMediaPayloadMissing
	}

	mime := payload.mime
	if mime == "" {
		mime = "image/png"
	}
	return &MediaResult{Data: payload.data, MIMEType: mime}, nil
}

// GenerateVideo runs the long-running video path: start the operation, poll
// it on a growing schedule until done or the attempt cap, then extract the
// media payload from the completion response.
func (g *Gateway) GenerateVideo(ctx context.Context, modelID, prompt string) (*MediaResult, error) {
	if g.video == nil {
		return nil, fmt.Errorf("no video backend configured for model %q", modelID)
	}

	op, err := backoff.Execute(ctx, g.retry, "video-start:"+modelID,
		func(ctx context.Context) (*VideoOperation, error) {
			return g.video.StartVideo(ctx, modelID, prompt)
		})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMediaGenerationFailed, err)
	}

	interval := pollInitialInterval
	for attempt := 0; !op.Done; attempt++ {
		if attempt >= pollMaxAttempts {
			g.logger.Warn("video operation timed out", "operation", op.Name, "attempts", attempt)
			return nil, ErrMediaTimeout
		}

		g.logger.Debug("polling video operation",
			"operation", op.Name, "attempt", attempt, "wait", interval)

		if err := g.sleep(ctx, interval); err != nil {
			return nil, err
		}

		op, err = backoff.Execute(ctx, g.retry, "video-poll:"+modelID,
			func(ctx context.Context) (*VideoOperation, error) {
				return g.video.PollVideo(ctx, op)
			})
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMediaGenerationFailed, err)
		}

		interval = time.Duration(float64(interval) * pollGrowthFactor)
		if interval > pollMaxInterval {
			interval = pollMaxInterval
		}
	}

	if op.Failure != "" {
		return nil, fmt.Errorf("%w: %s", ErrMediaGenerationFailed, op.Failure)
	}

	result, err := extractVideoPayload(op.Response)
	if err != nil {
		g.logger.Error("completed video operation carried no payload",
			"operation", op.Name, "response", op.Response)
		return nil, err
	}
	return result, nil
}

// extractVideoPayload searches a completion response depth-first for the
// first field shaped like a video payload (bytes or URI).
func extractVideoPayload(response any) (*MediaResult, error) {
	generic, err := jsonutil.ToGeneric(response)
	if err != nil {
		return nil, fmt.Errorf("%w: unreadable response: %v", ErrMediaPayloadMissing, err)
	}

	key, val, ok := jsonutil.FindFirst(generic, isVideoPayloadField)
	if !ok {
		return nil, ErrMediaPayloadMissing
	}

	s, _ := val.(string)
	if isBytesKey(key) {
		data, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return nil, fmt.Errorf("%w: undecodable bytes under %q: %v", ErrMediaPayloadMissing, key, err)
		}
		return &MediaResult{Data: data, MIMEType: "video/mp4"}, nil
	}
	return &MediaResult{URI: s, MIMEType: "video/mp4"}, nil
}

// isVideoPayloadField matches leaf fields that plausibly carry the generated
// video: explicit byte fields or URIs.
func isVideoPayloadField(key string, val any) bool {
	s, ok := val.(string)
	if !ok || s == "" {
		return false
	}

	if isBytesKey(key) {
		return true
	}

	lower := strings.ToLower(key)
	if lower == "uri" || lower == "url" || strings.Contains(lower, "videouri") || strings.Contains(lower, "videourl") {
		return strings.HasPrefix(s, "http") || strings.HasPrefix(s, "gs://") || strings.HasPrefix(s, "data:video/")
	}
	return false
}

func isBytesKey(key string) bool {
	lower := strings.ToLower(key)
	return strings.Contains(lower, "bytesbase64") || lower == "videobytes"
}
