package filter

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mikey/mail-classifier/internal/core"
)

// stubScorer is a fixed-answer classifier for driving the filter.
type stubScorer struct {
	scores []core.CategoryScore
	err    error
	calls  int
}

func (s *stubScorer) Learn(context.Context, string, *core.Document) error { return nil }

func (s *stubScorer) Unlearn(context.Context, string, *core.Document) error { return nil }

func (s *stubScorer) Score(context.Context, *core.Document) ([]core.CategoryScore, error) {
	s.calls++
	return s.scores, s.err
}

func (s *stubScorer) Categories(context.Context) ([]string, error) { return nil, nil }

func (s *stubScorer) Valid(doc *core.Document) bool { return doc != nil }

func (s *stubScorer) Forget(context.Context) error { return nil }

func newTestFilter(scorer core.Classifier, reject, whitelisted []string) *SMTPFilter {
	return NewSMTPFilter(scorer, zap.NewNop(), "127.0.0.1:0", 0.9,
		"X-Classifier-Category", "X-Classifier-Score", reject, whitelisted,
		"127.0.0.1", 10026, false)
}

const rawMessage = "From: a@example.com\r\n" +
	"Subject: hello\r\n" +
	"\r\n" +
	"plain body\r\n"

func TestVerdict(t *testing.T) {
	tests := []struct {
		name      string
		scores    []core.CategoryScore
		threshold float64
		want      core.CategoryScore
	}{
		{
			name:      "empty model files under UNK",
			scores:    nil,
			threshold: 0.9,
			want:      core.CategoryScore{Category: core.CategoryUnknown, Prob: 0},
		},
		{
			name:      "below threshold files under UNK with best prob",
			scores:    []core.CategoryScore{{Category: "SPAM", Prob: 0.6}},
			threshold: 0.9,
			want:      core.CategoryScore{Category: core.CategoryUnknown, Prob: 0.6},
		},
		{
			name:      "at threshold keeps the winner",
			scores:    []core.CategoryScore{{Category: "SPAM", Prob: 0.9}, {Category: "HAM", Prob: 0.1}},
			threshold: 0.9,
			want:      core.CategoryScore{Category: "SPAM", Prob: 0.9},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, verdict(tt.scores, tt.threshold))
		})
	}
}

func TestProcessMessage(t *testing.T) {
	f := newTestFilter(&stubScorer{scores: []core.CategoryScore{
		{Category: "SPAM", Prob: 0.97},
		{Category: "HAM", Prob: 0.03},
	}}, nil, nil)

	v, err := f.ProcessMessage(context.Background(), &core.Document{})
	require.NoError(t, err)
	assert.Equal(t, "SPAM", v.Category)
	assert.InDelta(t, 0.97, v.Prob, 1e-12)
}

func TestSessionData_TagsMessage(t *testing.T) {
	f := newTestFilter(&stubScorer{scores: []core.CategoryScore{
		{Category: "HAM", Prob: 0.95},
	}}, nil, nil)
	s := &smtpSession{filter: f, sender: "a@example.com"}

	// Upstream forwarding is off, so the tagged message is dropped after
	// scoring; the session must still succeed.
	require.NoError(t, s.Data(strings.NewReader(rawMessage)))
}

func TestSessionData_WhitelistedSenderSkipsScoring(t *testing.T) {
	scorer := &stubScorer{scores: []core.CategoryScore{
		{Category: "SPAM", Prob: 0.99},
	}}
	f := newTestFilter(scorer, []string{"SPAM"}, []string{"example.com"})
	s := &smtpSession{filter: f, sender: "a@example.com"}

	// A whitelisted sender is relayed untouched: no scoring, no rejection,
	// even though the stub would classify the message as rejectable SPAM.
	require.NoError(t, s.Data(strings.NewReader(rawMessage)))
	assert.Zero(t, scorer.calls)
}

func TestSessionData_RejectsConfiguredCategory(t *testing.T) {
	f := newTestFilter(&stubScorer{scores: []core.CategoryScore{
		{Category: "SPAM", Prob: 0.99},
	}}, []string{"SPAM"}, nil)
	s := &smtpSession{filter: f, sender: "a@example.com"}

	err := s.Data(strings.NewReader(rawMessage))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "550")
	assert.Contains(t, err.Error(), "SPAM")
}

func TestSessionData_FailsOpenOnScoreError(t *testing.T) {
	f := newTestFilter(&stubScorer{err: assert.AnError}, []string{core.CategoryUnknown}, nil)
	s := &smtpSession{filter: f, sender: "a@example.com"}

	// A scoring failure must never reject mail, even when the fallback
	// category is on the reject list.
	require.NoError(t, s.Data(strings.NewReader(rawMessage)))
}

func TestSessionData_MalformedMessage(t *testing.T) {
	f := newTestFilter(&stubScorer{}, nil, nil)
	s := &smtpSession{filter: f}

	err := s.Data(strings.NewReader("no header separator here"))
	require.Error(t, err)
}
