package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"golang.org/x/text/language"

	"github.com/solumlabs/aibridge/internal/ports"
)

// Analysis calls use a low temperature for consistent structured output and
// cap the token budget regardless of the configured maximum.
const (
	analysisTemperature  = 0.3
	analysisMaxTokens    = 600
	fallbackScore        = 0.5
	analysisPromptFormat = `Analyze the following text and respond with a single JSON object containing exactly these keys:
  "sentiment": one of "positive", "negative", "neutral", "mixed"
  "score": sentiment confidence between 0.0 and 1.0
  "keywords": up to 10 salient terms
  "categories": up to 5 broad topical labels
  "language": the BCP 47 language tag of the text

Respond with the JSON object only, no commentary.

Text:
%s`
)

// callOverrides tweak a single dispatch without mutating the client's
// immutable configuration.
type callOverrides struct {
	temperature *float64
	maxTokens   *int
}

// analysisOverrides returns the per-call parameters every Analyze uses.
func analysisOverrides(configuredMax int) callOverrides {
	temp := analysisTemperature
	tokens := configuredMax
	if tokens > analysisMaxTokens {
		tokens = analysisMaxTokens
	}
	return callOverrides{temperature: &temp, maxTokens: &tokens}
}

// chatFunc sends a conversation with per-call overrides and returns the
// assistant reply. Each provider variant supplies its own.
type chatFunc func(ctx context.Context, messages []ports.ChatMessage, ov callOverrides) (string, error)

// analyzeText runs the shared analysis protocol: build the fixed prompt,
// invoke the provider at low temperature, then parse the reply. Analysis is
// advisory, so a reply that cannot be parsed degrades to a neutral fallback
// carrying the original text instead of failing the call.
func analyzeText(ctx context.Context, text string, maxTokens int, chat chatFunc) (*ports.AnalysisResult, error) {
	if isBlank(text) {
		return nil, ErrEmptyInput
	}

	prompt := fmt.Sprintf(analysisPromptFormat, text)
	reply, err := chat(ctx, []ports.ChatMessage{{Role: ports.RoleUser, Content: prompt}}, analysisOverrides(maxTokens))
	if err != nil {
		return nil, err
	}

	return parseAnalysis(reply, text), nil
}

// rawAnalysis is the JSON shape requested from the model.
type rawAnalysis struct {
	Sentiment  string   `json:"sentiment"`
	Score      float64  `json:"score"`
	Keywords   []string `json:"keywords"`
	Categories []string `json:"categories"`
	Language   string   `json:"language"`
}

// parseAnalysis extracts the analysis object from a model reply. Replies
// wrapped in code fences or prose are tolerated by slicing from the first
// "{" to the last "}".
func parseAnalysis(reply, original string) *ports.AnalysisResult {
	body := extractJSONObject(reply)
	if body == "" {
		return fallbackAnalysis(original)
	}

	var raw rawAnalysis
	if err := json.Unmarshal([]byte(body), &raw); err != nil {
		return fallbackAnalysis(original)
	}

	result := &ports.AnalysisResult{
		Sentiment:  normalizeSentiment(raw.Sentiment),
		Score:      clampScore(raw.Score),
		Keywords:   raw.Keywords,
		Categories: raw.Categories,
		Language:   normalizeLanguage(raw.Language),
	}
	if result.Keywords == nil {
		result.Keywords = []string{}
	}
	if result.Categories == nil {
		result.Categories = []string{}
	}
	return result
}

// fallbackAnalysis is the best-effort record returned when the upstream
// reply is not valid JSON. Raw carries the original text so callers can
// recognize the degradation.
func fallbackAnalysis(original string) *ports.AnalysisResult {
	return &ports.AnalysisResult{
		Sentiment:  "neutral",
		Score:      fallbackScore,
		Keywords:   []string{},
		Categories: []string{},
		Language:   "unknown",
		Raw:        original,
	}
}

// extractJSONObject returns the outermost {...} slice of s, or "".
func extractJSONObject(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start == -1 || end <= start {
		return ""
	}
	return s[start : end+1]
}

func normalizeSentiment(s string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "positive":
		return "positive"
	case "negative":
		return "negative"
	case "mixed":
		return "mixed"
	default:
		return "neutral"
	}
}

func clampScore(score float64) float64 {
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

// normalizeLanguage canonicalizes whatever language identifier the model
// produced ("en-US", "english" won't parse, "EN" will) into a base BCP 47
// tag, or "unknown" when it cannot be parsed.
func normalizeLanguage(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "unknown"
	}
	tag, err := language.Parse(s)
	if err != nil {
		return "unknown"
	}
	base, _ := tag.Base()
	return base.String()
}
