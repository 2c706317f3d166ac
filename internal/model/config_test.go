package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, PolicyDegrade, cfg.Extraction.Policy)
	assert.Equal(t, 1, cfg.HTTP.Attempts, "single fetch attempt by default")
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"missing url", func(c *Config) { c.Feed.URL = "" }, "feed.url"},
		{"missing output", func(c *Config) { c.Output.Path = "" }, "output.path"},
		{"bad policy", func(c *Config) { c.Extraction.Policy = "lenient" }, "unknown extraction policy"},
		{"zero attempts", func(c *Config) { c.HTTP.Attempts = 0 }, "http.attempts"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestParsePolicy(t *testing.T) {
	tests := []struct {
		in      string
		want    Policy
		wantErr bool
	}{
		{"degrade", PolicyDegrade, false},
		{"strict", PolicyStrict, false},
		{"", PolicyDegrade, false},
		{"Strict", "", true},
	}

	for _, tt := range tests {
		got, err := ParsePolicy(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestFeedConfig_Meta(t *testing.T) {
	f := FeedConfig{URL: "http://x", Title: "T", SelfLink: "http://self", Description: "D"}
	assert.Equal(t, FeedMeta{Title: "T", SelfLink: "http://self", Description: "D"}, f.Meta())
}

func TestOutcome_Kept(t *testing.T) {
	for kind, want := range map[OutcomeKind]bool{
		OutcomeMatched:  true,
		OutcomeFallback: true,
		OutcomeSkipped:  false,
		OutcomeFiltered: false,
	} {
		assert.Equal(t, want, Outcome{Kind: kind}.Kept(), "%s", kind)
	}
}
