package whitelist

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestIsWhitelisted(t *testing.T) {
	checker := NewChecker([]string{" Example.COM ", "corp.internal", ""}, zap.NewNop())

	tests := []struct {
		name string
		from string
		want bool
	}{
		{"exact domain", "alice@example.com", true},
		{"case folded", "bob@EXAMPLE.com", true},
		{"second domain", "ops@corp.internal", true},
		{"unknown domain", "mallory@scam.example", false},
		{"subdomain is not the domain", "a@mail.example.com", false},
		{"not an address", "example.com", false},
		{"empty sender", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, checker.IsWhitelisted(tt.from))
		})
	}
}

func TestEmptyWhitelistMatchesNothing(t *testing.T) {
	checker := NewChecker(nil, nil)
	assert.False(t, checker.IsWhitelisted("alice@example.com"))
}
