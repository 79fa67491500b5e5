// Package canopy runs trees of cooperating AI agents against conversational
// input. A root Coordinator delegates work to specialized sub-agents through
// a synthesized delegation tool; leaf agents answer with text, call tools,
// or generate images and video.
//
// The package is a thin facade: it wires vendor clients into the model
// gateway and builds an engine.Runner. All behavior lives in the
// subpackages (agent, tool, gateway, backoff, history, engine, evaluation).
package canopy

import (
	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	openaisdk "github.com/openai/openai-go"
	"google.golang.org/genai"

	"github.com/canopyai/canopy/agent"
	"github.com/canopyai/canopy/engine"
	"github.com/canopyai/canopy/gateway"
	"github.com/canopyai/canopy/logging"
	"github.com/canopyai/canopy/model"
	"github.com/canopyai/canopy/model/anthropic"
	"github.com/canopyai/canopy/model/gemini"
	"github.com/canopyai/canopy/model/openai"
	"github.com/canopyai/canopy/tool"
)

// Options configures the facade. Provide the vendor clients your tree's
// model identifiers require; unconfigured providers fail with a descriptive
// error only when an agent actually routes to them.
type Options struct {
	// GeminiClient serves gemini-* conversational models plus the imagen-*
	// and veo-* media paths.
	GeminiClient *genai.Client

	// OpenAIClient serves gpt-* and o-series identifiers.
	OpenAIClient *openaisdk.Client

	// AnthropicClient serves claude-* identifiers.
	AnthropicClient *anthropicsdk.Client

	Registry  *tool.Registry
	Listeners []engine.Listener
	Logger    logging.Logger
	MaxTurns  int
}

// New builds a Runner for the given agent tree.
func New(root *agent.Node, optFns ...func(o *Options)) (*engine.Runner, error) {
	opts := Options{
		Registry: tool.NewRegistry(),
		Logger:   logging.NoOpLogger{},
		MaxTurns: engine.DefaultMaxTurns,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	var geminiModel, openaiModel, anthropicModel model.Model
	var imageBackend gateway.ImageBackend
	var videoBackend gateway.VideoBackend

	if opts.GeminiClient != nil {
		geminiModel = gemini.NewModel(opts.GeminiClient)
		imageBackend = gateway.NewGenaiImageBackend(opts.GeminiClient)
		videoBackend = gateway.NewGenaiVideoBackend(opts.GeminiClient)
	}
	if opts.OpenAIClient != nil {
		openaiModel = openai.NewModelFromClient(opts.OpenAIClient)
	}
	if opts.AnthropicClient != nil {
		anthropicModel = anthropic.NewModelFromClient(opts.AnthropicClient)
	}

	gw := gateway.New(func(o *gateway.Options) {
		o.Gemini = geminiModel
		o.OpenAI = openaiModel
		o.Anthropic = anthropicModel
		o.Image = imageBackend
		o.Video = videoBackend
		o.Logger = opts.Logger
	})

	return engine.NewRunner(root, gw, func(o *engine.Options) {
		o.Registry = opts.Registry
		o.Listeners = opts.Listeners
		o.Logger = opts.Logger
		o.MaxTurns = opts.MaxTurns
	})
}
