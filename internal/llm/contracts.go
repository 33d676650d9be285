package llm

import "context"

// CompletionRequest is one request to a text-completion endpoint for a single model.
type CompletionRequest struct {
	Model        string
	SystemPrompt string
	UserPrompt   string
	Temperature  float32
	MaxTokens    int
	Credential   string
}

// Completer issues exactly one completion request. Implementations return an
// error wrapping common.ErrTransport or common.ErrEmptyResponse on failure and
// never return blank text with a nil error.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// TransformRequest carries everything needed to rewrite one chunk.
type TransformRequest struct {
	Text           string
	Models         []string // fallback order
	Credential     string
	SystemPrompt   string
	PromptTemplate string
	Temperature    float32
	MaxTokens      int
}

// Result is a successful transformation and the model that produced it.
type Result struct {
	Text  string
	Model string
}

// Transformer is what the scheduler depends on.
type Transformer interface {
	Transform(ctx context.Context, req TransformRequest) (Result, error)
}
