package retrieval

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNeedsContext(t *testing.T) {
	tests := []struct {
		name     string
		question string
		want     bool
	}{
		{"arithmetic", "2+2=?", false},
		{"arithmetic worded", "what is 12 * 7", false},
		{"greeting", "hello", false},
		{"greeting long", "hey, how are you doing", false},
		{"time", "what time is it", false},
		{"date", "what day is today", false},
		{"snippet", "write me an example of fizzbuzz", false},
		{"general knowledge", "who was Napoleon", false},
		{"general knowledge capital", "what is the capital of France", false},
		{"empty", "   ", false},
		{"domain api", "What is the deployment architecture for the API?", true},
		{"domain database", "how do I reset the database password", true},
		{"domain config", "which config flag enables tracing", true},
		{"possessive", "what does our onboarding flow look like", true},
		{"document reference", "summarize the quarterly report", true},
		{"no general pattern", "explain the retry behavior on failure", true},
		{"domain wins over snippet", "write me an example call to our api", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NeedsContext(tt.question), "question: %q", tt.question)
		})
	}
}

func TestContainsWordBoundaries(t *testing.T) {
	// "db" must not match inside a longer word.
	assert.False(t, containsWord("the feedback form broke", "db"))
	assert.True(t, containsWord("check the db for duplicates", "db"))
	assert.True(t, containsWord("db is down", "db"))
	assert.True(t, containsWord("restart the db", "db"))
}
