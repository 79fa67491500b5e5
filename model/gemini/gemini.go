// Package gemini adapts the Google Gemini API (google.golang.org/genai) to
// the generic model.Model interface. It is the full-featured conversational
// path: function calling, the web-search grounding directive and inline
// media parts are all supported here.
package gemini

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/googleapis/gax-go/v2/apierror"
	"google.golang.org/genai"

	"github.com/canopyai/canopy/core"
	"github.com/canopyai/canopy/internal/jsonutil"
	"github.com/canopyai/canopy/model"
)

// Options configures the Gemini model adapter.
type Options struct {
	Temperature     *float32
	MaxOutputTokens int32
}

// Model wraps the Gemini generateContent API behind the generic model.Model
// interface.
type Model struct {
	client *genai.Client
	opts   Options
}

// NewModel creates a new Gemini model from an existing client. The model
// identifier itself travels on each request, so a single adapter serves
// every gemini-* identifier.
func NewModel(client *genai.Client, optFns ...func(o *Options)) *Model {
	opts := Options{
		MaxOutputTokens: 8192,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Model{client: client, opts: opts}
}

// Generate implements model.Model using a single non-streaming
// generateContent round trip.
func (m *Model) Generate(ctx context.Context, req *model.Request) (*model.Response, error) {
	cfg, contents, err := m.buildRequest(req)
	if err != nil {
		return nil, err
	}

	resp, err := m.client.Models.GenerateContent(ctx, req.Model, contents, cfg)
	if err != nil {
		if e, ok := err.(*apierror.APIError); ok {
			err = e.Unwrap()
		}
		return nil, fmt.Errorf("gemini api error: %w", err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, fmt.Errorf("gemini returned no candidates")
	}

	return normalizeCandidate(resp.Candidates[0]), nil
}

// buildRequest converts the normalized request into genai config + contents.
func (m *Model) buildRequest(req *model.Request) (*genai.GenerateContentConfig, []*genai.Content, error) {
	cfg := &genai.GenerateContentConfig{
		MaxOutputTokens: m.opts.MaxOutputTokens,
		Temperature:     m.opts.Temperature,
	}

	if req.Instructions != "" {
		cfg.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{genai.NewPartFromText(req.Instructions)},
		}
	}

	// Declarations and the grounding directive never travel together; the
	// engine drops grounding before the request reaches an adapter.
	switch {
	case len(req.Tools) > 0:
		decls := make([]*genai.FunctionDeclaration, 0, len(req.Tools))
		for _, t := range req.Tools {
			decls = append(decls, &genai.FunctionDeclaration{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  convSchema(t.Parameters),
			})
		}
		cfg.Tools = []*genai.Tool{{FunctionDeclarations: decls}}
	case req.Grounding:
		cfg.Tools = []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}}
	}

	contents := make([]*genai.Content, 0, len(req.Contents))
	for _, c := range req.Contents {
		gc, err := convContent(c)
		if err != nil {
			return nil, nil, err
		}
		contents = append(contents, gc)
	}
	if len(contents) == 0 {
		return nil, nil, fmt.Errorf("no contents provided")
	}

	return cfg, contents, nil
}

// convContent maps one normalized content turn into genai wire format.
func convContent(c core.Content) (*genai.Content, error) {
	role := c.Role
	switch role {
	case "user", "tool":
		role = genai.RoleUser
	case "model", "assistant":
		role = genai.RoleModel
	default:
		role = genai.RoleUser
	}

	parts := make([]*genai.Part, 0, len(c.Parts))
	for _, p := range c.Parts {
		switch v := p.(type) {
		case core.TextPart:
			parts = append(parts, genai.NewPartFromText(v.Text))
		case core.InlineDataPart:
			parts = append(parts, genai.NewPartFromBytes(v.Data, v.MIMEType))
		case core.FunctionCallPart:
			var args map[string]any
			if v.FunctionCall.Arguments != "" {
				if err := jsonutil.Unmarshal([]byte(v.FunctionCall.Arguments), &args); err != nil {
					args = map[string]any{"text": v.FunctionCall.Arguments}
				}
			}
			parts = append(parts, genai.NewPartFromFunctionCall(v.FunctionCall.Name, args))
		case core.FunctionResponsePart:
			parts = append(parts, genai.NewPartFromFunctionResponse(
				v.FunctionResponse.Name,
				responseMap(v.FunctionResponse.Response),
			))
		default:
			return nil, fmt.Errorf("unexpected part type: %T", p)
		}
	}

	return &genai.Content{Role: role, Parts: parts}, nil
}

// responseMap coerces an arbitrary tool result into the map shape the
// function response part requires.
func responseMap(v any) map[string]any {
	if m, ok := v.(map[string]any); ok {
		return m
	}
	return map[string]any{"result": v}
}

// normalizeCandidate converts the selected candidate into the normalized
// response, preserving part order and extracting grounding citations.
func normalizeCandidate(cand *genai.Candidate) *model.Response {
	out := &model.Response{Content: core.Content{Role: "model"}}

	for _, p := range cand.Content.Parts {
		switch {
		case p.Text != "":
			out.Content.Parts = append(out.Content.Parts, core.TextPart{Text: p.Text})
		case p.InlineData != nil:
			out.Content.Parts = append(out.Content.Parts, core.InlineDataPart{
				MIMEType: p.InlineData.MIMEType,
				Data:     p.InlineData.Data,
			})
		case p.FunctionCall != nil:
			args := "{}"
			if len(p.FunctionCall.Args) > 0 {
				if b, err := json.Marshal(p.FunctionCall.Args); err == nil {
					args = string(b)
				}
			}
			out.Content.Parts = append(out.Content.Parts, core.FunctionCallPart{
				FunctionCall: core.FunctionCall{
					ID:        p.FunctionCall.ID,
					Name:      p.FunctionCall.Name,
					Arguments: args,
				},
			})
		}
	}

	if cand.GroundingMetadata != nil {
		for _, chunk := range cand.GroundingMetadata.GroundingChunks {
			if chunk.Web == nil {
				continue
			}
			out.GroundingSources = append(out.GroundingSources, model.GroundingSource{
				Title: chunk.Web.Title,
				URI:   chunk.Web.URI,
			})
		}
	}

	return out
}

// Info returns metadata describing this Gemini model implementation.
func (m *Model) Info() model.Info {
	return model.Info{
		Provider:          "gemini",
		SupportsTools:     true,
		SupportsGrounding: true,
	}
}

// convSchema translates a JSON schema into the genai schema subset.
func convSchema(schema *jsonschema.Schema) *genai.Schema {
	if schema == nil {
		return &genai.Schema{Type: genai.TypeObject}
	}

	enums := make([]string, 0, len(schema.Enum))
	for _, v := range schema.Enum {
		enums = append(enums, fmt.Sprintf("%v", v))
	}

	gs := genai.Schema{
		Format:      schema.Format,
		Description: schema.Description,
		Enum:        enums,
		Items:       nil,
		Required:    schema.Required,
	}
	if schema.Items != nil {
		gs.Items = convSchema(schema.Items)
	}

	if n := len(schema.Properties); n > 0 {
		gs.Properties = make(map[string]*genai.Schema, n)
		for k, prop := range schema.Properties {
			gs.Properties[k] = convSchema(prop)
		}
	}

	switch schema.Type {
	case "object":
		gs.Type = genai.TypeObject
	case "array":
		gs.Type = genai.TypeArray
	case "string":
		gs.Type = genai.TypeString
	case "number":
		gs.Type = genai.TypeNumber
	case "integer":
		gs.Type = genai.TypeInteger
	case "boolean":
		gs.Type = genai.TypeBoolean
	}

	return &gs
}
