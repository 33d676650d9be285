package settings

import (
	"encoding/json"
	"time"

	"github.com/joseph-ayodele/cogniflow/internal/assemble"
	"github.com/joseph-ayodele/cogniflow/internal/common"
	"github.com/joseph-ayodele/cogniflow/internal/llm"
)

// Settings are the user-tunable knobs of a conversion. Field names match the
// stored JSON record.
type Settings struct {
	APIKey        string   `json:"apiKey"`
	ModelPriority []string `json:"modelPriority"`

	TurboMode      bool `json:"turboMode"`
	ParallelChunks int  `json:"parallelChunks"`
	BatchSize      int  `json:"batchSize"`   // tokens per chunk
	OverlapSize    int  `json:"overlapSize"` // tokens shared by neighbours

	MaxRetries     int `json:"maxRetries"`
	RetryDelay     int `json:"retryDelay"`     // ms, doubled per retry
	RequestTimeout int `json:"requestTimeout"` // ms per model attempt, 0 = none

	Temperature     float32 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens"`

	SystemPrompt        string `json:"systemPrompt"`
	TextTransformPrompt string `json:"textTransformPrompt"`

	PDFFontSize    float64 `json:"pdfFontSize"`
	PDFLineHeight  float64 `json:"pdfLineHeight"`
	PDFMargin      float64 `json:"pdfMargin"`
	PDFPageNumbers bool    `json:"pdfPageNumbers"`
}

// Model describes one entry of the Cerebras catalog.
type Model struct {
	Name        string
	DisplayName string
	Tier        string
}

// Catalog lists the models known to work with the default endpoint, best first.
var Catalog = []Model{
	{"zai-glm-4.6", "Zai GLM 4.6 (357B)", "Frontier Intelligence"},
	{"qwen-3-235b-a22b-instruct-2507", "Qwen-3 235B", "Heavy Reasoning"},
	{"gpt-oss-120b", "GPT-OSS (120B)", "General Purpose"},
	{"llama-3.3-70b", "Llama 3.3 (70B)", "Balanced Workhorse"},
	{"qwen-3-32b", "Qwen-3 (32B)", "Fast Inference"},
	{"llama3.1-8b", "Llama 3.1 (8B)", "Ultra-Fast"},
}

const defaultSystemPrompt = `You are an AI assistant specializing in transforming complex PDF documents into clear, accessible, and conversational text suitable for Text-to-Speech (TTS) systems. Your primary goal is to make technical or dense information easy to understand for a listening audience.
Key Directives:
- Simplify complex sentences without losing the core meaning.
- Expand all acronyms upon their first use.
- Convert tables, charts, and diagrams into descriptive narrative summaries.
- Describe the purpose and logic of code blocks in plain English; do not read the code itself.
- Translate mathematical formulas into spoken words (e.g., "E equals m c squared").
- Maintain a logical flow and use natural transitions.
- Remove citations, footnotes, and metadata.
- Ensure the final output is well-structured for listening, with clear paragraphs and pauses.`

const defaultTransformPrompt = `Based on the system instructions, transform the following text chunk into a clear, conversational, and TTS-friendly format.
--- TEXT CHUNK START ---
` + llm.ChunkPlaceholder + `
--- TEXT CHUNK END ---
Your transformed output must be clean, easy to read aloud, and contain only the processed text.`

// Defaults returns a fresh copy of the default settings.
func Defaults() Settings {
	return Settings{
		ModelPriority: []string{
			"zai-glm-4.6",
			"qwen-3-235b-a22b-instruct-2507",
			"llama-3.3-70b",
		},
		TurboMode:           true,
		ParallelChunks:      5,
		BatchSize:           12000,
		OverlapSize:         500,
		MaxRetries:          3,
		RetryDelay:          2000,
		RequestTimeout:      120000,
		Temperature:         0.7,
		MaxOutputTokens:     32768,
		SystemPrompt:        defaultSystemPrompt,
		TextTransformPrompt: defaultTransformPrompt,
		PDFFontSize:         12,
		PDFLineHeight:       1.5,
		PDFMargin:           25,
	}
}

// Merge overlays a stored record on the defaults, so fields missing from an
// older record keep their default. Empty input yields the defaults.
func Merge(stored []byte) (Settings, error) {
	s := Defaults()
	if len(stored) == 0 {
		return s, nil
	}
	if err := json.Unmarshal(stored, &s); err != nil {
		return Settings{}, common.ConfigErrorf("stored settings are not valid JSON: %v", err)
	}
	return s, nil
}

// Validate checks the record against the settings schema and the cross-field
// rules the schema cannot express.
func (s Settings) Validate() error {
	raw, err := json.Marshal(s)
	if err != nil {
		return common.WrapError(err, "encode settings")
	}
	if err := validateSchema(raw); err != nil {
		return common.ConfigErrorf("invalid settings: %v", err)
	}

	v := common.NewValidator()
	v.Field("modelPriority", s.ModelPriority, common.Required, common.UniqueStrings)
	v.Check(s.OverlapSize < s.BatchSize, "overlapSize", s.OverlapSize, "must be smaller than batchSize")
	if v.HasErrors() {
		return common.ConfigError(v.ErrorMessage())
	}
	return nil
}

// ConcurrencyLimit is the number of chunks allowed in flight.
func (s Settings) ConcurrencyLimit() int {
	if !s.TurboMode || s.ParallelChunks < 1 {
		return 1
	}
	return s.ParallelChunks
}

func (s Settings) RetryBaseDelay() time.Duration {
	return time.Duration(s.RetryDelay) * time.Millisecond
}

func (s Settings) RequestTimeoutDuration() time.Duration {
	return time.Duration(s.RequestTimeout) * time.Millisecond
}

// TransformRequest is the per-chunk request template; Text is set per chunk.
func (s Settings) TransformRequest(credential string) llm.TransformRequest {
	return llm.TransformRequest{
		Models:         append([]string(nil), s.ModelPriority...),
		Credential:     credential,
		SystemPrompt:   s.SystemPrompt,
		PromptTemplate: s.TextTransformPrompt,
		Temperature:    s.Temperature,
		MaxTokens:      s.MaxOutputTokens,
	}
}

func (s Settings) Style() assemble.Style {
	return assemble.Style{
		FontSize:    s.PDFFontSize,
		LineHeight:  s.PDFLineHeight,
		Margin:      s.PDFMargin,
		PageNumbers: s.PDFPageNumbers,
	}
}

// Redacted returns a copy safe to print.
func (s Settings) Redacted() Settings {
	out := s
	out.ModelPriority = append([]string(nil), s.ModelPriority...)
	if n := len(out.APIKey); n > 0 {
		if n > 4 {
			out.APIKey = "****" + out.APIKey[n-4:]
		} else {
			out.APIKey = "****"
		}
	}
	return out
}
