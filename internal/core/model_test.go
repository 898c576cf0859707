package core

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckCategory(t *testing.T) {
	assert.NoError(t, CheckCategory("SPAM"))
	assert.NoError(t, CheckCategory("unk"), "the reserved name is case-sensitive")
	assert.True(t, errors.Is(CheckCategory(CategoryUnknown), ErrReservedCategory))
}

func TestBodyPart_IsHTML(t *testing.T) {
	assert.True(t, BodyPart{MediaType: "text/html"}.IsHTML())
	assert.True(t, BodyPart{MediaType: "TEXT/HTML"}.IsHTML())
	assert.False(t, BodyPart{MediaType: "text/plain"}.IsHTML())
	assert.False(t, BodyPart{}.IsHTML())
}

func TestMeta_Stale(t *testing.T) {
	assert.False(t, Meta{Processed: 5, ScoredAsOf: 5}.Stale(1))
	assert.True(t, Meta{Processed: 6, ScoredAsOf: 5}.Stale(1))
	assert.False(t, Meta{Processed: 7, ScoredAsOf: 5}.Stale(3))
	assert.True(t, Meta{Processed: 8, ScoredAsOf: 5}.Stale(3))
}

func TestConfusionMatrix(t *testing.T) {
	m := make(ConfusionMatrix)
	m.Add("SPAM", "SPAM")
	m.Add("SPAM", "SPAM")
	m.Add("SPAM", CategoryUnknown)
	m.Add("HAM", "HAM")
	m.Add("HAM", "SPAM")

	assert.Equal(t, 5, m.Total())
	assert.Equal(t, 3, m.Correct())
	assert.InDelta(t, 0.6, m.Accuracy(), 1e-12)

	// Sorted categories with the reserved name last.
	assert.Equal(t, []string{"HAM", "SPAM", CategoryUnknown}, m.Categories())
}

func TestConfusionMatrix_EmptyAccuracy(t *testing.T) {
	m := make(ConfusionMatrix)
	assert.Zero(t, m.Total())
	assert.Equal(t, 0.0, m.Accuracy())
}

func TestSliceSource_Each(t *testing.T) {
	src := NewSliceSource("inbox",
		&Document{ID: "a"},
		&Document{ID: "b"},
		&Document{ID: "c"})
	require.Equal(t, "inbox", src.Name())
	require.Equal(t, 3, src.Len())

	var seen []string
	err := src.Each(context.Background(), func(doc *Document) error {
		seen = append(seen, doc.ID)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, seen)

	// A callback error stops iteration immediately.
	calls := 0
	wantErr := errors.New("stop")
	err = src.Each(context.Background(), func(doc *Document) error {
		calls++
		return wantErr
	})
	assert.True(t, errors.Is(err, wantErr))
	assert.Equal(t, 1, calls)
}

func TestSliceSource_EachHonorsContext(t *testing.T) {
	src := NewSliceSource("inbox", &Document{ID: "a"}, &Document{ID: "b"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := src.Each(ctx, func(doc *Document) error { return nil })
	assert.True(t, errors.Is(err, context.Canceled))
}
