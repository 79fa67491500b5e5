// Package model defines the provider-agnostic abstractions for conversational
// generation with tool calling. Requests and responses use the normalized
// core content types; only the adapters translate to wire formats:
//
//   - model/gemini: Google Gemini via google.golang.org/genai; the only
//     adapter supporting the grounding directive and inline media parts
//   - model/openai: OpenAI Chat Completions with function calling
//   - model/anthropic: Anthropic Messages API with tool use
//
// Adapters are stateless after construction and safe for concurrent use.
package model
