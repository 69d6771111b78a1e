package schemas

import (
	"context"
	"time"

	"golang.org/x/net/html"
)

// -- Document Interface --

// Document is the capability the agent needs from a host browser page. The core
// only reads the rendered tree and issues these verbs; browser lifecycle beyond
// acquiring and releasing the handle belongs to the implementation.
// Selectors are XPath expressions.
type Document interface {
	RenderedTree(ctx context.Context) (*html.Node, error)            // Parses the current DOM into a fresh tree.
	URL(ctx context.Context) (string, error)                          // Returns the current location.
	Navigate(ctx context.Context, url string) error                   // Navigates the page to a new URL.
	WaitLoad(ctx context.Context, timeout time.Duration) error        // Blocks until the document is ready.
	Click(ctx context.Context, selector string) error                 // Clicks the element matching the selector.
	Fill(ctx context.Context, selector string, value string) error    // Replaces the value of a form field.
	Type(ctx context.Context, selector string, text string) error     // Appends keystrokes to an element.
	Press(ctx context.Context, selector string, key string) error     // Dispatches a named key on an element.
	Screenshot(ctx context.Context, path string) error                // Writes a full page screenshot to path.
	Close(ctx context.Context) error                                  // Releases the page and its browser.
}

// -- LLM Client Schemas & Interface --

// GenerationOptions provides detailed parameters to control the text generation
// process of the LLM, such as creativity (temperature) and output format.
type GenerationOptions struct {
	Temperature     float64 `json:"temperature"`       // Controls randomness. Lower is more deterministic.
	ForceJSONFormat bool    `json:"force_json_format"` // If true, forces the model to output valid JSON.
	MaxTokens       int     `json:"max_tokens"`        // Upper bound on generated tokens, 0 uses the provider default.
}

// GenerationRequest encapsulates a complete request to the LLM, including the
// system and user prompts and generation options.
type GenerationRequest struct {
	SystemPrompt string            `json:"system_prompt"` // Instructions for the model's persona and task.
	UserPrompt   string            `json:"user_prompt"`   // The specific query or input from the user.
	Options      GenerationOptions `json:"options"`       // Advanced generation parameters.
}

// LLMClient defines a standard interface for interacting with a Large Language
// Model, abstracting the specifics of the underlying provider.
type LLMClient interface {
	// Generate produces a text completion based on the provided request.
	Generate(ctx context.Context, req GenerationRequest) (string, error)
	// Close cleans up any resources held by the client.
	Close() error
}
