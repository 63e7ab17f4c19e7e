package llm

import "context"

// Client abstracts LLM providers for part classification.
type Client interface {
	Classify(ctx context.Context, input ClassifyInput) (ClassifyResult, error)
}

// BatchItem is one key submitted for classification, with an optional
// brand/vendor hint that helps the model disambiguate catalog codes.
type BatchItem struct {
	Key         string `json:"key"`
	ContextHint string `json:"contextHint,omitempty"`
}

// ClassifyInput captures the inputs for one classification call.
type ClassifyInput struct {
	Items      []BatchItem
	Categories []string
}

// Usage reports token consumption for one call.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// ClassifyResult carries the raw message content returned by the provider.
// Content is expected to contain a JSON array but may be wrapped in prose;
// extracting and decoding it is the caller's concern.
type ClassifyResult struct {
	Content string
	Model   string
	Usage   *Usage
}

// PlaceholderClient is a stub implementation until provider wiring is added.
type PlaceholderClient struct{}

// Classify returns ErrNotImplemented.
func (PlaceholderClient) Classify(ctx context.Context, input ClassifyInput) (ClassifyResult, error) {
	_ = ctx
	_ = input
	return ClassifyResult{}, ErrNotImplemented
}
