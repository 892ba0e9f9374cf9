package knowledge

import (
	"regexp"
	"strings"
)

// Fact is one extracted (s,p,o) candidate with its extraction confidence.
type Fact struct {
	Subject    string
	Predicate  string
	Object     string
	Confidence float64
}

type extractRule struct {
	re         *regexp.Regexp
	predicate  string
	confidence float64
	// build maps the regex groups to a (subject, object) pair.
	build func(groups []string) (string, string)
}

var userFact = func(groups []string) (string, string) { return "user", groups[1] }

var extractRules = []extractRule{
	{
		re:         regexp.MustCompile(`(?i)\bmy name is (\w[\w\s-]{0,40}?)(?:[.,!?]|$)`),
		predicate:  "is_named",
		confidence: 0.9,
		build:      userFact,
	},
	{
		re:         regexp.MustCompile(`(?i)\bi work (?:at|for) ([\w][\w\s&.-]{0,40}?)(?:[.,!?]|$)`),
		predicate:  "works_at",
		confidence: 0.8,
		build:      userFact,
	},
	{
		re:         regexp.MustCompile(`(?i)\bi work as (?:a |an )?([\w][\w\s-]{0,40}?)(?:[.,!?]|$)`),
		predicate:  "works_as",
		confidence: 0.8,
		build:      userFact,
	},
	{
		re:         regexp.MustCompile(`(?i)\bi live in ([\w][\w\s-]{0,40}?)(?:[.,!?]|$)`),
		predicate:  "lives_in",
		confidence: 0.8,
		build:      userFact,
	},
	{
		re:         regexp.MustCompile(`(?i)\bi (?:like|love|enjoy) ([\w][\w\s-]{0,40}?)(?:[.,!?]|$)`),
		predicate:  "likes",
		confidence: 0.6,
		build:      userFact,
	},
	{
		re:         regexp.MustCompile(`(?i)\bi am (\d{1,3}) years old\b`),
		predicate:  "has_age",
		confidence: 0.9,
		build:      userFact,
	},
	{
		re:         regexp.MustCompile(`(?i)\bmy (\w[\w\s]{0,20}?) is (?:called|named) (\w[\w\s-]{0,40}?)(?:[.,!?]|$)`),
		predicate:  "is_named",
		confidence: 0.7,
		build: func(groups []string) (string, string) {
			return "user's " + strings.TrimSpace(groups[1]), groups[2]
		},
	},
}

// Extractor pulls simple self-referential facts out of dialogue text.
type Extractor struct{}

// NewExtractor creates a pattern-based fact extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract returns every fact matched in the utterance. Facts are
// already normalized for Graph.Upsert.
func (e *Extractor) Extract(text string) []Fact {
	var facts []Fact
	for _, rule := range extractRules {
		for _, m := range rule.re.FindAllStringSubmatch(text, -1) {
			subject, object := rule.build(m)
			subject = normalizeTerm(subject)
			object = normalizeTerm(object)
			if subject == "" || object == "" {
				continue
			}
			facts = append(facts, Fact{
				Subject:    subject,
				Predicate:  rule.predicate,
				Object:     object,
				Confidence: rule.confidence,
			})
		}
	}
	return facts
}
