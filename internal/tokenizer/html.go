package tokenizer

import (
	"net/url"
	"strings"

	"golang.org/x/net/html"
)

// addHTML handles an HTML-flagged body part. Link hosts, colors and
// language attributes become tagged structural tokens; the markup is then
// stripped, entities decoded, and the remaining text tokenized like plain
// body text. Script and style contents are dropped.
func (t *tokenSet) addHTML(src string) {
	z := html.NewTokenizer(strings.NewReader(src))
	skip := 0
	var text strings.Builder
	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			// End of input or malformed markup: tokenize whatever was
			// collected either way.
			t.addWords("", text.String(), false)
			return
		case html.TextToken:
			if skip == 0 {
				text.Write(z.Text())
			}
		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := z.TagName()
			if tt == html.StartTagToken && skipsContent(string(name)) {
				skip++
			}
			// Tags act as word boundaries.
			text.WriteByte(' ')
			for hasAttr {
				key, val, more := z.TagAttr()
				t.addAttr(string(key), string(val))
				hasAttr = more
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			if skipsContent(string(name)) && skip > 0 {
				skip--
			}
			text.WriteByte(' ')
		}
	}
}

// addAttr maps interesting markup attributes to structural tokens.
func (t *tokenSet) addAttr(key, val string) {
	val = strings.TrimSpace(val)
	if val == "" {
		return
	}
	switch key {
	case "href", "src", "action", "background":
		t.addLink(val)
	case "color", "bgcolor":
		t.addWord(TagColor, val, true)
	case "lang", "xml:lang":
		t.addWord(TagLang, val, true)
	case "style":
		t.addStyleColors(val)
	}
}

// addLink extracts the host of a link target, or the address of a mailto
// link, as a url-tagged token.
func (t *tokenSet) addLink(target string) {
	u, err := url.Parse(target)
	if err != nil {
		return
	}
	if strings.EqualFold(u.Scheme, "mailto") {
		if u.Opaque != "" {
			t.addWord(TagURL, u.Opaque, true)
		}
		return
	}
	if host := u.Hostname(); host != "" {
		t.addWord(TagURL, host, true)
	}
}

// addStyleColors picks color values out of an inline style attribute.
func (t *tokenSet) addStyleColors(style string) {
	for _, decl := range strings.Split(style, ";") {
		prop, val, found := strings.Cut(decl, ":")
		if !found {
			continue
		}
		if strings.Contains(strings.ToLower(strings.TrimSpace(prop)), "color") {
			t.addWord(TagColor, strings.TrimSpace(val), true)
		}
	}
}

func skipsContent(tag string) bool {
	return tag == "script" || tag == "style"
}
