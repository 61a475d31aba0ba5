package classifier

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/lawjfmiranda/jurbot1/platform/config"
	"github.com/lawjfmiranda/jurbot1/platform/logger"

	"google.golang.org/genai"
)

const geminiTimeout = 8 * time.Second

// GeminiClassifier classifies messages with a single-shot Gemini call that
// returns strict JSON restricted to the catalog's category names.
type GeminiClassifier struct {
	client  *genai.Client
	model   string
	allowed []string
	log     *logger.Logger
}

type geminiVerdict struct {
	Category   string  `json:"category"`
	Confidence float64 `json:"confidence"`
}

// NewGeminiClassifier creates the AI classifier. Returns nil when no API key
// is configured; the chain skips nil classifiers.
func NewGeminiClassifier(ctx context.Context, cfg config.AIConfig, allowed []string, log *logger.Logger) (*GeminiClassifier, error) {
	if !cfg.IsAIEnabled() {
		return nil, nil
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.GetGeminiAPIKey(),
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	return &GeminiClassifier{
		client:  client,
		model:   cfg.GetGeminiModel(),
		allowed: allowed,
		log:     log,
	}, nil
}

// Classify sends the message to Gemini. Any transport or parse failure maps
// to ErrUnavailable so the chain can fall back to keywords.
func (g *GeminiClassifier) Classify(ctx context.Context, text string) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, geminiTimeout)
	defer cancel()

	prompt := g.buildPrompt(text)
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
	})
	if err != nil {
		g.log.ExternalCallFailed("gemini", err)
		return Result{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	raw := strings.TrimSpace(resp.Text())
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")

	var verdict geminiVerdict
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &verdict); err != nil {
		g.log.ExternalCallFailed("gemini", fmt.Errorf("unparseable verdict: %w", err))
		return Result{}, fmt.Errorf("%w: bad verdict", ErrUnavailable)
	}

	for _, category := range g.allowed {
		if strings.EqualFold(strings.TrimSpace(verdict.Category), category) {
			return Result{Category: category, Confidence: verdict.Confidence}, nil
		}
	}

	// Valid response, but nothing in the catalog matched.
	return Result{Confidence: verdict.Confidence}, nil
}

func (g *GeminiClassifier) buildPrompt(text string) string {
	var b strings.Builder
	b.WriteString("Você é o triador de um escritório de advocacia brasileiro. ")
	b.WriteString("Classifique a mensagem do cliente em exatamente uma das áreas abaixo, ")
	b.WriteString("ou use \"desconhecido\" se nenhuma servir.\n\nÁreas:\n")
	for _, category := range g.allowed {
		fmt.Fprintf(&b, "- %s\n", category)
	}
	b.WriteString("\nResponda somente com JSON: {\"category\": \"...\", \"confidence\": 0.0}\n\nMensagem:\n")
	b.WriteString(text)
	return b.String()
}

var _ Classifier = (*GeminiClassifier)(nil)
