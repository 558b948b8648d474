// Package retrieval decides whether a question needs document context
// and turns raw vector search hits into a ranked context string.
package retrieval

import (
	"regexp"
	"strings"
)

// Gate classifies a question as needing document context or not. It
// is a best-effort heuristic: both false positives and false
// negatives are acceptable, the answer path degrades gracefully
// either way.
type Gate func(question string) bool

var (
	arithmeticPattern = regexp.MustCompile(`^[\s\d+\-*/%^().,=?equalswhatis]+$`)
	greetingPattern   = regexp.MustCompile(`^(hi|hello|hey|yo|good (morning|afternoon|evening)|how are you|what'?s up|thanks?( you)?|bye|goodbye)\b`)
	timeDatePattern   = regexp.MustCompile(`\b(what time|what day|what date|today'?s date|current (time|date|year)|what year)\b`)
	snippetPattern    = regexp.MustCompile(`\b(write|give|show|generate)( me)? (a|an|some)? ?(example|snippet|hello world|fizzbuzz|boilerplate)\b`)
)

// domainTerms is the allowlist of vocabulary that forces retrieval.
// Anything mentioning these is assumed to be about the user's own
// documents or systems, not general knowledge.
var domainTerms = []string{
	"api", "database", "db", "schema", "config", "configuration",
	"deploy", "deployment", "architecture", "service", "endpoint",
	"pipeline", "migration", "infrastructure", "document", "report",
	"policy", "spec", "contract", "manual", "procedure", "our", "my",
	"according to", "internal", "project", "release",
}

// NeedsContext reports whether a question should go through
// retrieval. Pure function of the question text.
func NeedsContext(question string) bool {
	q := strings.ToLower(strings.TrimSpace(question))
	if q == "" {
		return false
	}

	// Domain vocabulary wins over every general pattern.
	for _, term := range domainTerms {
		if containsWord(q, term) {
			return true
		}
	}

	if arithmeticPattern.MatchString(q) && strings.ContainsAny(q, "0123456789") {
		return false
	}
	if greetingPattern.MatchString(q) {
		return false
	}
	if timeDatePattern.MatchString(q) {
		return false
	}
	if snippetPattern.MatchString(q) {
		return false
	}
	if generalKnowledgePattern(q) {
		return false
	}

	// No general pattern matched: default to retrieving.
	return true
}

// generalKnowledgePattern matches encyclopedic questions that carry
// no domain vocabulary, like "who was Napoleon" or "what is the
// capital of France".
var generalPattern = regexp.MustCompile(`^(who (is|was|are|were)|what is the capital|when (did|was)|where is|how (tall|old|far|many people))\b`)

func generalKnowledgePattern(q string) bool {
	return generalPattern.MatchString(q)
}

// containsWord reports whether q contains term on word boundaries, so
// "db" does not match inside "feedback".
func containsWord(q, term string) bool {
	idx := 0
	for {
		i := strings.Index(q[idx:], term)
		if i < 0 {
			return false
		}
		start := idx + i
		end := start + len(term)
		startOK := start == 0 || !isWordChar(q[start-1])
		endOK := end == len(q) || !isWordChar(q[end])
		if startOK && endOK {
			return true
		}
		idx = start + 1
		if idx >= len(q) {
			return false
		}
	}
}

func isWordChar(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '_'
}
