package mbox

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mikey/mail-classifier/internal/core"
)

func parse(t *testing.T, raw string) *core.Document {
	t.Helper()
	doc, err := ParseMessage(strings.NewReader(raw))
	require.NoError(t, err)
	return doc
}

func TestParseMessage_PlainText(t *testing.T) {
	doc := parse(t, "Message-Id: <abc123@example.com>\r\n"+
		"From: Alice Jones <alice@example.com>\r\n"+
		"To: bob@example.com, carol@example.com\r\n"+
		"Cc: dave@example.com\r\n"+
		"Subject: Quarterly numbers\r\n"+
		"User-Agent: Mutt/2.2.9\r\n"+
		"\r\n"+
		"The numbers look fine.\r\n")

	assert.Equal(t, "abc123@example.com", doc.ID)
	require.Len(t, doc.From, 1)
	assert.Equal(t, "alice@example.com", doc.From[0].Address)
	assert.Equal(t, "Alice Jones", doc.From[0].Name)
	require.Len(t, doc.To, 3)
	assert.Equal(t, "dave@example.com", doc.To[2].Address)
	assert.Equal(t, "Quarterly numbers", doc.Subject)
	assert.Equal(t, "Mutt/2.2.9", doc.Agent)
	require.Len(t, doc.Parts, 1)
	assert.Equal(t, "text/plain", doc.Parts[0].MediaType)
	assert.Contains(t, doc.Parts[0].Text, "The numbers look fine.")
}

func TestParseMessage_MultipartKeepsTextDropsAttachments(t *testing.T) {
	doc := parse(t, "From: a@example.com\r\n"+
		"Subject: mixed\r\n"+
		"Content-Type: multipart/mixed; boundary=\"BOUND\"\r\n"+
		"\r\n"+
		"--BOUND\r\n"+
		"Content-Type: text/plain; charset=\"utf-8\"\r\n"+
		"Content-Transfer-Encoding: quoted-printable\r\n"+
		"\r\n"+
		"Caf=C3=A9 time\r\n"+
		"--BOUND\r\n"+
		"Content-Type: text/html\r\n"+
		"\r\n"+
		"<p>Meet at the cafe</p>\r\n"+
		"--BOUND\r\n"+
		"Content-Type: application/pdf\r\n"+
		"Content-Transfer-Encoding: base64\r\n"+
		"\r\n"+
		"JVBERi0=\r\n"+
		"--BOUND--\r\n")

	require.Len(t, doc.Parts, 2)
	assert.Equal(t, "text/plain", doc.Parts[0].MediaType)
	assert.Contains(t, doc.Parts[0].Text, "Café time")
	assert.True(t, doc.Parts[1].IsHTML())
	assert.Contains(t, doc.Parts[1].Text, "Meet at the cafe")
}

func TestParseMessage_NestedMultipart(t *testing.T) {
	doc := parse(t, "From: a@example.com\r\n"+
		"Content-Type: multipart/mixed; boundary=\"OUTER\"\r\n"+
		"\r\n"+
		"--OUTER\r\n"+
		"Content-Type: multipart/alternative; boundary=\"INNER\"\r\n"+
		"\r\n"+
		"--INNER\r\n"+
		"Content-Type: text/plain\r\n"+
		"\r\n"+
		"inner plain\r\n"+
		"--INNER\r\n"+
		"Content-Type: text/html\r\n"+
		"\r\n"+
		"<b>inner html</b>\r\n"+
		"--INNER--\r\n"+
		"--OUTER--\r\n")

	require.Len(t, doc.Parts, 2)
	assert.Contains(t, doc.Parts[0].Text, "inner plain")
	assert.Contains(t, doc.Parts[1].Text, "inner html")
}

func TestParseMessage_DecodesEncodedHeaders(t *testing.T) {
	doc := parse(t, "From: =?ISO-8859-1?Q?Andr=E9?= <andre@example.fr>\r\n"+
		"Subject: =?ISO-8859-1?Q?Caf=E9?=\r\n"+
		"\r\n"+
		"bonjour\r\n")

	assert.Equal(t, "Café", doc.Subject)
	require.Len(t, doc.From, 1)
	assert.Equal(t, "André", doc.From[0].Name)
}

func TestParseMessage_CharsetConvertsBody(t *testing.T) {
	doc := parse(t, "From: a@example.com\r\n"+
		"Content-Type: text/plain; charset=\"iso-8859-1\"\r\n"+
		"Content-Transfer-Encoding: quoted-printable\r\n"+
		"\r\n"+
		"na=EFve\r\n")

	require.Len(t, doc.Parts, 1)
	assert.Contains(t, doc.Parts[0].Text, "naïve")
}

func TestParseMessage_XMailerFallback(t *testing.T) {
	doc := parse(t, "From: a@example.com\r\n"+
		"X-Mailer: Outlook Express 6.0\r\n"+
		"\r\n"+
		"hi\r\n")

	assert.Equal(t, "Outlook Express 6.0", doc.Agent)
}

func writeMbox(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "inbox.mbox")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const sampleMbox = "From alice Mon Jan  2 15:04:05 2006\n" +
	"From: alice@example.com\n" +
	"Subject: first\n" +
	"\n" +
	"body one\n" +
	">From the archives, a quoted line.\n" +
	"\n" +
	"From bob Mon Jan  2 15:04:05 2006\n" +
	"From: bob@example.com\n" +
	"Subject: second\n" +
	"\n" +
	"body two\n"

func TestSource_Each(t *testing.T) {
	src := NewSource(writeMbox(t, sampleMbox), zap.NewNop())
	assert.Equal(t, "inbox.mbox", src.Name())

	var docs []*core.Document
	require.NoError(t, src.Each(context.Background(), func(doc *core.Document) error {
		docs = append(docs, doc)
		return nil
	}))

	require.Len(t, docs, 2)
	assert.Equal(t, "first", docs[0].Subject)
	assert.Contains(t, docs[0].Parts[0].Text, "From the archives, a quoted line.")
	assert.Equal(t, "second", docs[1].Subject)
	assert.Contains(t, docs[1].Parts[0].Text, "body two")
}

func TestSource_ReiterationYieldsSameDocuments(t *testing.T) {
	src := NewSource(writeMbox(t, sampleMbox), zap.NewNop())

	subjects := func() []string {
		var got []string
		require.NoError(t, src.Each(context.Background(), func(doc *core.Document) error {
			got = append(got, doc.Subject)
			return nil
		}))
		return got
	}

	first := subjects()
	second := subjects()
	assert.Equal(t, first, second)
}

func TestSource_UnparseableMessageYieldsNil(t *testing.T) {
	content := "From mallory Mon Jan  2 15:04:05 2006\n" +
		"this header line has no colon\n" +
		"\n" +
		"garbage\n" +
		"\n" +
		sampleMbox
	src := NewSource(writeMbox(t, content), zap.NewNop())

	var docs []*core.Document
	require.NoError(t, src.Each(context.Background(), func(doc *core.Document) error {
		docs = append(docs, doc)
		return nil
	}))

	require.Len(t, docs, 3)
	assert.Nil(t, docs[0])
	require.NotNil(t, docs[1])
	assert.Equal(t, "first", docs[1].Subject)
}

func TestSource_MissingFile(t *testing.T) {
	src := NewSource(filepath.Join(t.TempDir(), "nope.mbox"), zap.NewNop())
	err := src.Each(context.Background(), func(*core.Document) error { return nil })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to open mbox")
}

func TestSource_CallbackErrorStopsIteration(t *testing.T) {
	src := NewSource(writeMbox(t, sampleMbox), zap.NewNop())

	seen := 0
	err := src.Each(context.Background(), func(*core.Document) error {
		seen++
		return assert.AnError
	})
	require.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, 1, seen)
}
