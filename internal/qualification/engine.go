package qualification

import (
	"fmt"
	"strings"
)

// UrgencyLevel grades how urgent a qualified lead is.
type UrgencyLevel string

const (
	UrgencyNormal   UrgencyLevel = "normal"
	UrgencyHigh     UrgencyLevel = "high"
	UrgencyCritical UrgencyLevel = "critical"
)

// Answer is one recorded answer keyed by the question it responds to.
type Answer struct {
	QuestionID string `json:"questionId"`
	Text       string `json:"text"`
}

// Result is the outcome of evaluating a set of answers for a category.
type Result struct {
	Score             int
	Urgent            bool
	Level             UrgencyLevel
	Reasons           []string
	Viability         string
	RecommendedAction string
}

// Record is the complete qualification outcome attached to a conversation
// and delivered to the operator.
type Record struct {
	Identity  string   `json:"identity"`
	Name      string   `json:"name,omitempty"`
	Category  string   `json:"category"`
	Answers   []Answer `json:"answers"`
	Score     int      `json:"score"`
	Urgent    bool     `json:"urgent"`
	Level     string   `json:"level"`
	Viability string   `json:"viability"`
	Summary   string   `json:"summary"`
}

// Engine evaluates answers against the catalog's weight tables and urgency
// triggers.
type Engine struct {
	catalog *Catalog
}

// NewEngine creates an engine over the given catalog.
func NewEngine(catalog *Catalog) *Engine {
	return &Engine{catalog: catalog}
}

// Catalog exposes the underlying category catalog.
func (e *Engine) Catalog() *Catalog {
	return e.catalog
}

// Answer weight tiers. Strong affirmations score full weight, moderate
// answers two thirds, everything else one third.
var (
	strongMarkers   = []string{"sim", "muito", "grande", "alto", "urgente"}
	moderateMarkers = []string{"médio", "medio", "razoável", "razoavel", "algum"}

	// negativeMarkers suppress urgency triggers so answers like
	// "Não há urgência" or "Solto" do not flag the lead.
	negativeMarkers = []string{
		"não", "nao", "solto", "liberdade", "controlada", "sem urgência", "sem urgencia", "segura",
	}
)

// EvaluatePartial computes urgency over the answers given so far. The score
// is computed over answered questions only, so it is meaningful before the
// flow completes. Urgency never downgrades as more answers arrive.
func (e *Engine) EvaluatePartial(category string, answers []Answer) Result {
	return e.evaluate(category, answers)
}

// Evaluate computes the final result once all questions are answered.
func (e *Engine) Evaluate(category string, answers []Answer) Result {
	result := e.evaluate(category, answers)
	result.Viability = viabilityFor(result.Score)
	return result
}

func (e *Engine) evaluate(category string, answers []Answer) Result {
	result := Result{Score: 5, Level: UrgencyNormal}

	cat, ok := e.catalog.Category(category)
	if !ok {
		return result
	}

	byQuestion := make(map[string]string, len(answers))
	for _, a := range answers {
		byQuestion[a.QuestionID] = a.Text
	}

	result.Score = e.score(cat, byQuestion)

	for _, q := range cat.Questions {
		answer, answered := byQuestion[q.ID]
		if !answered || strings.TrimSpace(answer) == "" {
			continue
		}

		if q.UrgencyCheck && !isNegative(answer) {
			result.Urgent = true
			if result.Level == UrgencyNormal {
				result.Level = UrgencyHigh
			}
			result.Reasons = append(result.Reasons, fmt.Sprintf("%s: %s", q.Prompt, answer))
		}

		for _, critical := range q.HighPriority {
			if strings.EqualFold(strings.TrimSpace(answer), critical) {
				result.Urgent = true
				result.Level = UrgencyCritical
				result.Reasons = append(result.Reasons, fmt.Sprintf("Situação crítica: %s", answer))
			}
		}
	}

	if result.Urgent {
		result.RecommendedAction = recommendedAction(category, result.Level)
	}
	return result
}

// score weighs each answered question and normalizes to 1..10 over the
// questions answered so far.
func (e *Engine) score(cat *Category, byQuestion map[string]string) int {
	score := 0
	maxScore := 0

	for questionID, weight := range cat.Weights {
		answer, answered := byQuestion[questionID]
		if !answered || strings.TrimSpace(answer) == "" {
			continue
		}
		maxScore += weight * 3
		score += weight * answerTier(answer)
	}

	if maxScore == 0 {
		return 5
	}
	normalized := score * 10 / maxScore
	if normalized < 1 {
		normalized = 1
	}
	if normalized > 10 {
		normalized = 10
	}
	return normalized
}

func answerTier(answer string) int {
	lowered := strings.ToLower(answer)
	for _, marker := range strongMarkers {
		if strings.Contains(lowered, marker) {
			return 3
		}
	}
	for _, marker := range moderateMarkers {
		if strings.Contains(lowered, marker) {
			return 2
		}
	}
	return 1
}

func isNegative(answer string) bool {
	lowered := strings.ToLower(strings.TrimSpace(answer))
	for _, marker := range negativeMarkers {
		if strings.Contains(lowered, marker) {
			return true
		}
	}
	return false
}

func viabilityFor(score int) string {
	switch {
	case score >= 8:
		return "alta"
	case score >= 5:
		return "média"
	default:
		return "baixa"
	}
}

func recommendedAction(category string, level UrgencyLevel) string {
	switch {
	case category == "Medida Protetiva":
		return "Agendamento prioritário - situação de risco"
	case category == "Ação Penal" && level == UrgencyCritical:
		return "Contato imediato - pessoa presa"
	default:
		return "Acompanhamento prioritário"
	}
}

// Summary renders the operator-facing qualification summary.
func (e *Engine) Summary(category, name string, answers []Answer, result Result) string {
	var b strings.Builder

	fmt.Fprintf(&b, "📋 LEAD QUALIFICADO - %s\n", strings.ToUpper(category))
	if name != "" {
		fmt.Fprintf(&b, "👤 Nome: %s\n", name)
	}
	fmt.Fprintf(&b, "🎯 Score: %d/10\n", result.Score)
	fmt.Fprintf(&b, "⚡ Urgência: %s\n", strings.ToUpper(string(result.Level)))
	if result.Viability != "" {
		fmt.Fprintf(&b, "📈 Viabilidade: %s\n", result.Viability)
	}
	b.WriteString("\n📝 RESPOSTAS:\n")

	byQuestion := make(map[string]string, len(answers))
	for _, a := range answers {
		byQuestion[a.QuestionID] = a.Text
	}
	if cat, ok := e.catalog.Category(category); ok {
		for _, q := range cat.Questions {
			if answer, answered := byQuestion[q.ID]; answered {
				fmt.Fprintf(&b, "• %s\n  → %s\n", q.Prompt, answer)
			}
		}
	}

	if result.Urgent {
		b.WriteString("\n🚨 URGÊNCIA DETECTADA:\n")
		if result.RecommendedAction != "" {
			fmt.Fprintf(&b, "• %s\n", result.RecommendedAction)
		}
		for _, reason := range result.Reasons {
			fmt.Fprintf(&b, "• %s\n", reason)
		}
	}

	return strings.TrimRight(b.String(), "\n")
}

// BuildRecord assembles the full qualification record for a finished flow.
func (e *Engine) BuildRecord(identity, name, category string, answers []Answer) Record {
	result := e.Evaluate(category, answers)
	return Record{
		Identity:  identity,
		Name:      name,
		Category:  category,
		Answers:   answers,
		Score:     result.Score,
		Urgent:    result.Urgent,
		Level:     string(result.Level),
		Viability: result.Viability,
		Summary:   e.Summary(category, name, answers, result),
	}
}
