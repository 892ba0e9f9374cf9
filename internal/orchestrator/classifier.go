package orchestrator

import (
	"errors"
	"regexp"
	"strings"
)

// ErrClassification marks an utterance the classifier cannot work with.
// Nothing is persisted for such a request.
var ErrClassification = errors.New("classification failed")

type classifyRule struct {
	re         *regexp.Regexp
	intent     string
	primary    string
	supporting []string
	complexity Complexity
}

// Rule tier runs top to bottom; first match wins. The fallback below the
// table treats anything else as simple conversation.
var classifyRules = []classifyRule{
	{
		re:         regexp.MustCompile(`(?i)\b(search|find out|look up|latest|news about)\b`),
		intent:     "research",
		primary:    "analyst",
		supporting: []string{"executor"},
		complexity: ComplexityComplex,
	},
	{
		re:         regexp.MustCompile(`(?i)\b(run|execute|open|launch|download|install|create file|delete file)\b`),
		intent:     "action",
		primary:    "executor",
		complexity: ComplexitySimple,
	},
	{
		re:         regexp.MustCompile(`(?i)\b(why|how does|explain|prove|derive|step by step|compare)\b`),
		intent:     "reasoning",
		primary:    "reasoner",
		supporting: []string{"analyst"},
		complexity: ComplexityComplex,
	},
	{
		re:         regexp.MustCompile(`(?i)\b(plan|organize|schedule|book|arrange)\b`),
		intent:     "planning",
		primary:    "reasoner",
		supporting: []string{"analyst", "executor"},
		complexity: ComplexityComplex,
	},
}

// classify maps an utterance to intent, complexity and handlers. A blank
// utterance is ErrClassification; anything unmatched falls back to simple
// conversation handled by the director.
func classify(utterance string) (Classification, error) {
	if strings.TrimSpace(utterance) == "" {
		return Classification{}, ErrClassification
	}
	for _, rule := range classifyRules {
		if rule.re.MatchString(utterance) {
			return Classification{
				Intent:     rule.intent,
				Complexity: rule.complexity,
				Primary:    rule.primary,
				Supporting: rule.supporting,
			}, nil
		}
	}
	return Classification{
		Intent:     "chat",
		Complexity: ComplexitySimple,
		Primary:    "director",
	}, nil
}
