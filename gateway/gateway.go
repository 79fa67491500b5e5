// Package gateway provides a uniform call surface over the heterogeneous
// backend operations an agent may need: conversational generation with tool
// calling, synchronous image generation, and long-running video generation.
// The model identifier alone selects the operation; every dispatch runs
// through the backoff controller and the gateway itself never retries.
package gateway

import (
	"context"
	"encoding/base64"
	"fmt"
	"regexp"
	"strings"

	"github.com/canopyai/canopy/backoff"
	"github.com/canopyai/canopy/core"
	"github.com/canopyai/canopy/logging"
	"github.com/canopyai/canopy/model"
)

// Operation identifies which backend path a model identifier requires.
type Operation int

const (
	// OperationText is conversational generation with optional tool calling.
	OperationText Operation = iota
	// OperationImage is a single synchronous image generation call.
	OperationImage
	// OperationVideo is long-running video generation driven by polling.
	OperationVideo
)

const (
	videoModelPrefix = "veo-"
	imageModelPrefix = "imagen-"
)

// OperationFor classifies a model identifier into the backend operation it
// requires.
func OperationFor(modelID string) Operation {
	switch {
	case strings.HasPrefix(modelID, videoModelPrefix):
		return OperationVideo
	case strings.HasPrefix(modelID, imageModelPrefix):
		return OperationImage
	default:
		return OperationText
	}
}

// openAIModelPattern matches gpt-* and the o-series reasoning identifiers.
var openAIModelPattern = regexp.MustCompile(`^(gpt-|o[0-9])`)

// TextResult is the normalized outcome of one conversational generation.
type TextResult struct {
	Text             string
	ToolCalls        []core.FunctionCall
	GroundingSources []model.GroundingSource
	InlineMedia      []core.InlineDataPart
}

// Render merges the textual answer, grounding citations and inline media
// into one renderable markdown string.
func (r *TextResult) Render() string {
	var b strings.Builder
	b.WriteString(r.Text)

	for _, m := range r.InlineMedia {
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		encoded := base64.StdEncoding.EncodeToString(m.Data)
		fmt.Fprintf(&b, "![generated image](data:%s;base64,%s)", m.MIMEType, encoded)
	}

	if len(r.GroundingSources) > 0 {
		b.WriteString("\n\nSources:\n")
		for i, s := range r.GroundingSources {
			title := s.Title
			if title == "" {
				title = s.URI
			}
			fmt.Fprintf(&b, "%d. [%s](%s)\n", i+1, title, s.URI)
		}
	}

	return b.String()
}

// MediaResult is the normalized outcome of an image or video generation:
// either a hosted URI or raw bytes plus MIME type.
type MediaResult struct {
	URI      string
	Data     []byte
	MIMEType string
}

// Render produces the markdown reference for the generated media.
func (r *MediaResult) Render() string {
	if r.URI != "" {
		if strings.HasPrefix(r.MIMEType, "image/") {
			return fmt.Sprintf("![generated image](%s)", r.URI)
		}
		return fmt.Sprintf("[Download video](%s)", r.URI)
	}

	encoded := base64.StdEncoding.EncodeToString(r.Data)
	if strings.HasPrefix(r.MIMEType, "image/") {
		return fmt.Sprintf("![generated image](data:%s;base64,%s)", r.MIMEType, encoded)
	}
	return fmt.Sprintf("[Download video](data:%s;base64,%s)", r.MIMEType, encoded)
}

// Options configures the Gateway.
type Options struct {
	Gemini    model.Model // Default conversational path
	OpenAI    model.Model // gpt-* / o-series identifiers
	Anthropic model.Model // claude-* identifiers

	Image ImageBackend
	Video VideoBackend

	Retry   *backoff.Controller
	Sleeper backoff.Sleeper // Used by the video poll loop
	Logger  logging.Logger
}

// Gateway routes requests by model identifier and normalizes results.
// Immutable after construction and safe for concurrent use.
type Gateway struct {
	gemini    model.Model
	openai    model.Model
	anthropic model.Model
	image     ImageBackend
	video     VideoBackend
	retry     *backoff.Controller
	sleep     backoff.Sleeper
	logger    logging.Logger
}

// New creates a Gateway. At minimum a Gemini conversational model should be
// configured; other paths fail with a descriptive error when unconfigured.
func New(optFns ...func(o *Options)) *Gateway {
	opts := Options{
		Logger: logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Retry == nil {
		opts.Retry = backoff.New(func(o *backoff.Options) {
			o.Logger = opts.Logger
		})
	}
	if opts.Sleeper == nil {
		opts.Sleeper = backoff.DefaultSleeper
	}

	return &Gateway{
		gemini:    opts.Gemini,
		openai:    opts.OpenAI,
		anthropic: opts.Anthropic,
		image:     opts.Image,
		video:     opts.Video,
		retry:     opts.Retry,
		sleep:     opts.Sleeper,
		logger:    opts.Logger,
	}
}

// resolve picks the conversational adapter for a model identifier.
func (g *Gateway) resolve(modelID string) (model.Model, error) {
	var m model.Model
	switch {
	case strings.HasPrefix(modelID, "claude-"):
		m = g.anthropic
	case openAIModelPattern.MatchString(modelID):
		m = g.openai
	default:
		m = g.gemini
	}

	if m == nil {
		return nil, fmt.Errorf("no adapter configured for model %q", modelID)
	}
	return m, nil
}

// SupportsGrounding reports whether the adapter serving the identifier can
// attach the web-search grounding directive.
func (g *Gateway) SupportsGrounding(modelID string) bool {
	if OperationFor(modelID) != OperationText {
		return false
	}
	m, err := g.resolve(modelID)
	if err != nil {
		return false
	}
	return m.Info().SupportsGrounding
}

// GenerateText runs one conversational generation through the backoff
// controller and normalizes the response.
func (g *Gateway) GenerateText(ctx context.Context, req *model.Request) (*TextResult, error) {
	m, err := g.resolve(req.Model)
	if err != nil {
		return nil, err
	}

	resp, err := backoff.Execute(ctx, g.retry, "generate:"+req.Model,
		func(ctx context.Context) (*model.Response, error) {
			return m.Generate(ctx, req)
		})
	if err != nil {
		return nil, err
	}

	result := &TextResult{
		Text:             resp.Content.Text(),
		ToolCalls:        resp.Content.FunctionCalls(),
		GroundingSources: resp.GroundingSources,
	}
	for _, p := range resp.Content.Parts {
		if inline, ok := p.(core.InlineDataPart); ok {
			result.InlineMedia = append(result.InlineMedia, inline)
		}
	}
	return result, nil
}
