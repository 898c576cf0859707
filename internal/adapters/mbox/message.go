package mbox

import (
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/mail"
	"strings"

	"golang.org/x/text/encoding/htmlindex"

	"github.com/mikey/mail-classifier/internal/core"
)

// maxPartDepth bounds recursion into nested multipart containers.
const maxPartDepth = 8

// headerDecoder decodes RFC 2047 encoded words, converting any charset the
// WHATWG index knows into UTF-8.
var headerDecoder = mime.WordDecoder{
	CharsetReader: func(charset string, input io.Reader) (io.Reader, error) {
		enc, err := htmlindex.Get(charset)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve charset %q: %w", charset, err)
		}
		return enc.NewDecoder().Reader(input), nil
	},
}

var addressParser = mail.AddressParser{WordDecoder: &headerDecoder}

// ParseMessage reads a single RFC 5322 message and converts it into a
// document: decoded addresses, subject and agent headers, and one body part
// per text leaf of the MIME tree. Non-text parts are dropped.
func ParseMessage(r io.Reader) (*core.Document, error) {
	msg, err := mail.ReadMessage(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse message: %w", err)
	}

	doc := &core.Document{
		ID:      strings.Trim(msg.Header.Get("Message-Id"), "<> \t"),
		From:    parseAddresses(msg.Header.Get("From")),
		To:      parseAddresses(msg.Header.Get("To")),
		Subject: decodeHeader(msg.Header.Get("Subject")),
		Agent:   agentHeader(msg.Header),
	}
	doc.To = append(doc.To, parseAddresses(msg.Header.Get("Cc"))...)

	parts, err := collectParts(msg.Body,
		msg.Header.Get("Content-Type"),
		msg.Header.Get("Content-Transfer-Encoding"),
		0)
	if err != nil {
		return nil, err
	}
	doc.Parts = parts
	return doc, nil
}

// collectParts walks one node of the MIME tree. Containers recurse into
// their children; text leaves are decoded and kept; everything else
// (attachments, images) is skipped.
func collectParts(r io.Reader, contentType, transferEncoding string, depth int) ([]core.BodyPart, error) {
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		// Unparseable or absent Content-Type: treat the body as plain text.
		mediaType, params = "text/plain", nil
	}

	if strings.HasPrefix(mediaType, "multipart/") && depth < maxPartDepth {
		boundary := params["boundary"]
		if boundary == "" {
			return nil, nil
		}
		var parts []core.BodyPart
		mr := multipart.NewReader(r, boundary)
		for {
			part, err := mr.NextPart()
			if err == io.EOF {
				break
			}
			if err != nil {
				// Truncated container: keep whatever parsed so far.
				return parts, nil
			}
			sub, err := collectParts(part,
				part.Header.Get("Content-Type"),
				part.Header.Get("Content-Transfer-Encoding"),
				depth+1)
			if err != nil {
				continue
			}
			parts = append(parts, sub...)
		}
		return parts, nil
	}

	if !strings.HasPrefix(mediaType, "text/") {
		return nil, nil
	}
	text, err := readText(r, transferEncoding, params["charset"])
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s part: %w", mediaType, err)
	}
	return []core.BodyPart{{MediaType: mediaType, Text: text}}, nil
}

// readText decodes a leaf part's transfer encoding and charset into UTF-8.
func readText(r io.Reader, transferEncoding, charset string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(transferEncoding)) {
	case "quoted-printable":
		r = quotedprintable.NewReader(r)
	case "base64":
		r = base64.NewDecoder(base64.StdEncoding, r)
	}
	if charset != "" && !strings.EqualFold(charset, "utf-8") && !strings.EqualFold(charset, "us-ascii") {
		if enc, err := htmlindex.Get(charset); err == nil {
			r = enc.NewDecoder().Reader(r)
		}
	}
	b, err := io.ReadAll(r)
	if err != nil {
		// Sloppy producers truncate base64 padding; keep what decoded.
		if len(b) > 0 {
			return strings.ToValidUTF8(string(b), "�"), nil
		}
		return "", err
	}
	// Mislabelled charsets leave invalid byte sequences behind; scrub them
	// so downstream tokenization sees clean UTF-8.
	return strings.ToValidUTF8(string(b), "�"), nil
}

func parseAddresses(value string) []core.Address {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	list, err := addressParser.ParseList(value)
	if err != nil {
		return nil
	}
	out := make([]core.Address, 0, len(list))
	for _, addr := range list {
		out = append(out, core.Address{Address: addr.Address, Name: addr.Name})
	}
	return out
}

func decodeHeader(value string) string {
	decoded, err := headerDecoder.DecodeHeader(value)
	if err != nil {
		return value
	}
	return decoded
}

func agentHeader(h mail.Header) string {
	if agent := h.Get("User-Agent"); agent != "" {
		return agent
	}
	return h.Get("X-Mailer")
}
