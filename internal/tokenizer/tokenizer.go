package tokenizer

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"

	"github.com/mikey/mail-classifier/internal/core"
)

// Context tag prefixes. Tokens carry the context they were observed in so
// the same word can act as independent evidence in different positions.
const (
	TagFrom    = "from:"
	TagTo      = "to:"
	TagSubject = "subject:"
	TagAgent   = "agent:"
	TagURL     = "url:"
	TagColor   = "color:"
	TagLang    = "lang:"

	// MarkerHTML is emitted once for any document with an HTML body part.
	MarkerHTML = "html:present"
)

const (
	minTokenRunes = 2
	maxTokenRunes = 40
)

// Extractor turns structured documents into deduplicated sets of
// context-tagged tokens. Extraction is a pure function of the document and
// the configured ignore list; an Extractor is safe for concurrent use.
type Extractor struct {
	ignored map[string]struct{}
}

// New creates an extractor. Words matching an entry of ignored are
// discarded case-insensitively regardless of context.
func New(ignored []string) *Extractor {
	fold := cases.Fold()
	set := make(map[string]struct{}, len(ignored))
	for _, word := range ignored {
		word = strings.TrimSpace(word)
		if word == "" {
			continue
		}
		set[fold.String(word)] = struct{}{}
	}
	return &Extractor{ignored: set}
}

// Extract returns the token set of doc, sorted for deterministic
// iteration. Only presence is recorded, never per-document frequency.
func (e *Extractor) Extract(doc *core.Document) []string {
	tokens := newTokenSet(e.ignored)
	for _, a := range doc.From {
		tokens.addAddress(TagFrom, a)
	}
	for _, a := range doc.To {
		tokens.addAddress(TagTo, a)
	}
	tokens.addWords(TagSubject, doc.Subject, false)
	tokens.addWords(TagAgent, doc.Agent, true)
	for _, part := range doc.Parts {
		if part.IsHTML() {
			tokens.add(MarkerHTML)
			tokens.addHTML(part.Text)
		} else {
			tokens.addWords("", part.Text, false)
		}
	}
	return tokens.sorted()
}

// tokenSet accumulates the tokens of a single document. It is not safe
// for concurrent use; Extract creates one per call.
type tokenSet struct {
	set     map[string]struct{}
	ignored map[string]struct{}
	fold    cases.Caser
}

func newTokenSet(ignored map[string]struct{}) *tokenSet {
	return &tokenSet{
		set:     make(map[string]struct{}),
		ignored: ignored,
		fold:    cases.Fold(),
	}
}

// add records one already-normalized token verbatim.
func (t *tokenSet) add(token string) {
	t.set[token] = struct{}{}
}

// addWord applies the word filters and the ignore list, tags the word with
// its context and records it. Structural words are case-folded; free text
// keeps its case.
func (t *tokenSet) addWord(tag, word string, foldCase bool) {
	if !keepWord(word) {
		return
	}
	if _, skip := t.ignored[t.fold.String(word)]; skip {
		return
	}
	if foldCase {
		word = t.fold.String(word)
	}
	t.add(tag + word)
}

func (t *tokenSet) addWords(tag, text string, foldCase bool) {
	for _, word := range splitWords(text) {
		t.addWord(tag, word, foldCase)
	}
}

// addAddress records the address, its domain, and the words of the display
// name under the same context tag.
func (t *tokenSet) addAddress(tag string, a core.Address) {
	if addr := strings.TrimSpace(a.Address); addr != "" {
		t.addWord(tag, addr, true)
		if _, domain, found := strings.Cut(addr, "@"); found {
			t.addWord(tag, domain, true)
		}
	}
	t.addWords(tag, a.Name, true)
}

func (t *tokenSet) sorted() []string {
	out := make([]string, 0, len(t.set))
	for token := range t.set {
		out = append(out, token)
	}
	sort.Strings(out)
	return out
}

// keepWord reports whether a raw word survives the token filters: at least
// two runes, at most forty, and at least one letter or number.
func keepWord(word string) bool {
	if n := utf8.RuneCountInString(word); n < minTokenRunes || n > maxTokenRunes {
		return false
	}
	for _, r := range word {
		if unicode.IsLetter(r) || unicode.IsNumber(r) {
			return true
		}
	}
	return false
}

// splitWords breaks free text on whitespace and control boundaries.
func splitWords(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsControl(r)
	})
}
