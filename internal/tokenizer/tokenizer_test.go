package tokenizer

import (
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mikey/mail-classifier/internal/core"
)

func testDoc() *core.Document {
	return &core.Document{
		From:    []core.Address{{Address: "Alice@Example.com", Name: "Alice Jones"}},
		To:      []core.Address{{Address: "bob@example.com"}},
		Subject: "Quarterly budget review",
		Agent:   "Mutt/2.2.9",
		Parts: []core.BodyPart{
			{MediaType: "text/plain", Text: "please see the attached budget"},
		},
	}
}

func TestExtract_ContextTags(t *testing.T) {
	tokens := New(nil).Extract(testDoc())

	// Structural tokens are case-folded, free text keeps its case.
	assert.Contains(t, tokens, "from:alice@example.com")
	assert.Contains(t, tokens, "from:example.com")
	assert.Contains(t, tokens, "from:jones")
	assert.Contains(t, tokens, "to:bob@example.com")
	assert.Contains(t, tokens, "to:example.com")
	assert.Contains(t, tokens, "subject:Quarterly")
	assert.Contains(t, tokens, "agent:mutt/2.2.9")
	assert.Contains(t, tokens, "attached")
	assert.NotContains(t, tokens, MarkerHTML)
}

func TestExtract_Deduplicates(t *testing.T) {
	doc := &core.Document{
		Subject: "offer",
		Parts: []core.BodyPart{
			{MediaType: "text/plain", Text: "offer offer offer"},
		},
	}
	tokens := New(nil).Extract(doc)

	bare, tagged := 0, 0
	for _, tok := range tokens {
		switch tok {
		case "offer":
			bare++
		case "subject:offer":
			tagged++
		}
	}
	assert.Equal(t, 1, bare, "body word recorded once")
	assert.Equal(t, 1, tagged, "subject word is a distinct token")
}

func TestExtract_IgnoreList(t *testing.T) {
	doc := &core.Document{
		Subject: "unsubscribe",
		Parts: []core.BodyPart{
			{MediaType: "text/plain", Text: "UNSUBSCRIBE now"},
		},
	}
	tokens := New([]string{"Unsubscribe"}).Extract(doc)

	assert.NotContains(t, tokens, "UNSUBSCRIBE")
	assert.NotContains(t, tokens, "subject:unsubscribe")
	assert.Contains(t, tokens, "now")
}

func TestExtract_HTMLPart(t *testing.T) {
	doc := &core.Document{
		Parts: []core.BodyPart{
			{
				MediaType: "text/html",
				Text: `<html><body style="color: red" lang="en">` +
					`Hello <a href="https://Shop.Example.COM/buy?x=1">click here</a>` +
					` stay at B&amp;B<script>var tracker = 1;</script></body></html>`,
			},
		},
	}
	tokens := New(nil).Extract(doc)

	require.Contains(t, tokens, MarkerHTML)
	assert.Contains(t, tokens, "url:shop.example.com")
	assert.Contains(t, tokens, "color:red")
	assert.Contains(t, tokens, "lang:en")
	assert.Contains(t, tokens, "Hello")
	assert.Contains(t, tokens, "click")
	assert.Contains(t, tokens, "B&B", "entities decoded before word split")
	assert.NotContains(t, tokens, "tracker", "script content dropped")
	assert.NotContains(t, tokens, "var")
}

func TestExtract_MailtoLink(t *testing.T) {
	doc := &core.Document{
		Parts: []core.BodyPart{
			{MediaType: "text/html", Text: `<a href="mailto:Win@scam.example">claim</a>`},
		},
	}
	tokens := New(nil).Extract(doc)

	assert.Contains(t, tokens, "url:win@scam.example")
	assert.Contains(t, tokens, "claim")
}

func TestExtract_SortedAndPure(t *testing.T) {
	e := New(nil)
	doc := testDoc()

	first := e.Extract(doc)
	second := e.Extract(doc)

	require.True(t, sort.StringsAreSorted(first))
	assert.Equal(t, first, second, "extraction is a pure function of the document")
}

func TestKeepWord(t *testing.T) {
	tests := []struct {
		name string
		word string
		want bool
	}{
		{name: "single rune dropped", word: "a", want: false},
		{name: "two runes kept", word: "ab", want: true},
		{name: "forty runes kept", word: strings.Repeat("x", 40), want: true},
		{name: "over forty runes dropped", word: strings.Repeat("x", 41), want: false},
		{name: "punctuation only dropped", word: "$$$!", want: false},
		{name: "digit qualifies", word: "4u", want: true},
		{name: "letters with punctuation kept", word: "!!free!!", want: true},
		{name: "multibyte runes counted as runes", word: "héllo", want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := keepWord(tt.word); got != tt.want {
				t.Errorf("keepWord(%q) = %v, want %v", tt.word, got, tt.want)
			}
		})
	}
}
