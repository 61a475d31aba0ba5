package qualification

import (
	"strings"
	"testing"
)

func TestDefaultCatalogLoads(t *testing.T) {
	catalog := Default()

	names := catalog.Names()
	expected := []string{"Responsabilidade Civil", "Direito das Famílias", "Ação Penal", "Medida Protetiva"}
	if len(names) != len(expected) {
		t.Fatalf("expected %d categories, got %d", len(expected), len(names))
	}
	for i, name := range expected {
		if names[i] != name {
			t.Errorf("category %d: expected %q, got %q", i, name, names[i])
		}
	}

	for _, cat := range catalog.Categories() {
		if cat.QuestionCount() == 0 {
			t.Errorf("category %q has no questions", cat.Name)
		}
		if len(cat.Weights) == 0 {
			t.Errorf("category %q has no weights", cat.Name)
		}
		if len(cat.Keywords) == 0 {
			t.Errorf("category %q has no keywords", cat.Name)
		}
	}
}

func TestParseRejectsInvalidCatalog(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"empty", "categories: []"},
		{"no name", "categories:\n  - questions:\n      - id: a\n        prompt: b"},
		{"no questions", "categories:\n  - name: X\n    questions: []"},
		{"question without id", "categories:\n  - name: X\n    questions:\n      - prompt: b"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse([]byte(tt.yaml)); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestEvaluateScoring(t *testing.T) {
	engine := NewEngine(Default())

	tests := []struct {
		name     string
		category string
		answers  []Answer
		minScore int
		maxScore int
	}{
		{
			name:     "strong answers score high",
			category: "Ação Penal",
			answers: []Answer{
				{QuestionID: "situacao_processo", Text: "Sou réu/investigado"},
				{QuestionID: "tipo_crime", Text: "Crimes contra pessoa"},
				{QuestionID: "fase_processo", Text: "Inquérito policial"},
				{QuestionID: "preso", Text: "Sim, flagrante"},
			},
			minScore: 5,
			maxScore: 10,
		},
		{
			name:     "weak answers score low",
			category: "Responsabilidade Civil",
			answers: []Answer{
				{QuestionID: "tipo_dano", Text: "Outro"},
				{QuestionID: "valor_prejuizo", Text: "pequeno"},
				{QuestionID: "responsavel", Text: "Pessoa física"},
				{QuestionID: "prazo", Text: "faz tempo"},
			},
			minScore: 1,
			maxScore: 4,
		},
		{
			name:     "unknown category defaults to medium",
			category: "Direito Espacial",
			answers:  []Answer{{QuestionID: "x", Text: "sim"}},
			minScore: 5,
			maxScore: 5,
		},
		{
			name:     "no answers defaults to medium",
			category: "Ação Penal",
			answers:  nil,
			minScore: 5,
			maxScore: 5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := engine.Evaluate(tt.category, tt.answers)
			if result.Score < tt.minScore || result.Score > tt.maxScore {
				t.Errorf("score %d outside [%d, %d]", result.Score, tt.minScore, tt.maxScore)
			}
		})
	}
}

func TestUrgencyTriggers(t *testing.T) {
	engine := NewEngine(Default())

	tests := []struct {
		name      string
		category  string
		answers   []Answer
		urgent    bool
		level     UrgencyLevel
	}{
		{
			name:     "high priority answer is critical",
			category: "Ação Penal",
			answers:  []Answer{{QuestionID: "preso", Text: "Sim, flagrante"}},
			urgent:   true,
			level:    UrgencyCritical,
		},
		{
			name:     "urgency check question with affirmative answer",
			category: "Medida Protetiva",
			answers:  []Answer{{QuestionID: "ja_registrou", Text: "Sim, recentemente"}},
			urgent:   true,
			level:    UrgencyHigh,
		},
		{
			name:     "negative answer does not trigger urgency",
			category: "Direito das Famílias",
			answers:  []Answer{{QuestionID: "urgencia", Text: "Não há urgência"}},
			urgent:   false,
			level:    UrgencyNormal,
		},
		{
			name:     "released person is not urgent",
			category: "Ação Penal",
			answers:  []Answer{{QuestionID: "preso", Text: "Solto"}},
			urgent:   false,
			level:    UrgencyNormal,
		},
		{
			name:     "imminent risk is critical",
			category: "Medida Protetiva",
			answers:  []Answer{{QuestionID: "risco_atual", Text: "Em risco iminente"}},
			urgent:   true,
			level:    UrgencyCritical,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := engine.EvaluatePartial(tt.category, tt.answers)
			if result.Urgent != tt.urgent {
				t.Errorf("urgent: expected %v, got %v", tt.urgent, result.Urgent)
			}
			if result.Level != tt.level {
				t.Errorf("level: expected %s, got %s", tt.level, result.Level)
			}
		})
	}
}

func TestEvaluatePartialDetectsUrgencyMidFlow(t *testing.T) {
	engine := NewEngine(Default())

	// First answer alone already flags urgency.
	partial := engine.EvaluatePartial("Medida Protetiva", []Answer{
		{QuestionID: "situacao_violencia", Text: "Ameaças"},
		{QuestionID: "ja_registrou", Text: "Sim, recentemente"},
	})
	if !partial.Urgent {
		t.Fatal("expected urgency after urgency-check answer mid flow")
	}

	// Later answers keep the flag.
	full := engine.EvaluatePartial("Medida Protetiva", []Answer{
		{QuestionID: "situacao_violencia", Text: "Ameaças"},
		{QuestionID: "ja_registrou", Text: "Sim, recentemente"},
		{QuestionID: "medida_existente", Text: "Não sei"},
		{QuestionID: "risco_atual", Text: "Situação controlada"},
	})
	if !full.Urgent {
		t.Error("urgency must not downgrade as more answers arrive")
	}
}

func TestViability(t *testing.T) {
	tests := []struct {
		score    int
		expected string
	}{
		{10, "alta"},
		{8, "alta"},
		{7, "média"},
		{5, "média"},
		{4, "baixa"},
		{1, "baixa"},
	}

	for _, tt := range tests {
		if got := viabilityFor(tt.score); got != tt.expected {
			t.Errorf("viabilityFor(%d): expected %s, got %s", tt.score, tt.expected, got)
		}
	}
}

func TestSummaryContainsAnswersInOrder(t *testing.T) {
	engine := NewEngine(Default())
	answers := []Answer{
		{QuestionID: "preso", Text: "Sim, flagrante"},
		{QuestionID: "situacao_processo", Text: "Familiar do envolvido"},
	}
	result := engine.Evaluate("Ação Penal", answers)
	summary := engine.Summary("Ação Penal", "Maria", answers, result)

	if !strings.Contains(summary, "AÇÃO PENAL") {
		t.Error("summary missing category header")
	}
	if !strings.Contains(summary, "Maria") {
		t.Error("summary missing name")
	}
	if !strings.Contains(summary, "Sim, flagrante") {
		t.Error("summary missing answer")
	}
	if !strings.Contains(summary, "URGÊNCIA DETECTADA") {
		t.Error("summary missing urgency section")
	}

	// Catalog order, not answer order: situacao_processo comes first.
	first := strings.Index(summary, "Qual sua situação no processo?")
	second := strings.Index(summary, "A pessoa está presa?")
	if first == -1 || second == -1 || first > second {
		t.Error("summary answers not in catalog question order")
	}
}

func TestBuildRecord(t *testing.T) {
	engine := NewEngine(Default())
	record := engine.BuildRecord("+5511999990000", "João", "Medida Protetiva", []Answer{
		{QuestionID: "risco_atual", Text: "Em risco iminente"},
	})

	if record.Category != "Medida Protetiva" {
		t.Errorf("unexpected category %q", record.Category)
	}
	if !record.Urgent || record.Level != string(UrgencyCritical) {
		t.Errorf("expected critical urgency, got urgent=%v level=%s", record.Urgent, record.Level)
	}
	if record.Summary == "" {
		t.Error("record summary is empty")
	}
}
