package classifier

import (
	"context"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mikey/mail-classifier/internal/adapters/store"
	"github.com/mikey/mail-classifier/internal/core"
)

// separableCorpus builds two sources with fully disjoint vocabularies, so
// a trained model classifies them perfectly.
func separableCorpus(perCategory int) core.Corpus {
	spam := core.NewSliceSource("spam-folder")
	ham := core.NewSliceSource("ham-folder")
	for i := 0; i < perCategory; i++ {
		spam.Add(bodyDoc("viagra lottery winner claim prize"))
		ham.Add(bodyDoc("quarterly meeting agenda budget review"))
	}
	return core.Corpus{
		{Source: spam, Category: "SPAM"},
		{Source: ham, Category: "HAM"},
	}
}

func newHarness(t *testing.T) (*core.Harness, *Bayes) {
	t.Helper()
	s := store.NewMemoryStore(zap.NewNop())
	b, err := NewBayes(s, RobinsonFisher{}, Config{MinObservations: 1}, zap.NewNop())
	require.NoError(t, err)
	return core.NewHarness(b, zap.NewNop(), 2), b
}

func TestHarnessWithBayes_TrainThenClassify(t *testing.T) {
	h, b := newHarness(t)
	ctx := context.Background()
	corpus := separableCorpus(5)

	require.NoError(t, h.Train(ctx, corpus))
	assert.True(t, h.Trained())

	names, err := b.Categories(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"HAM", "SPAM"}, names)

	eval, err := h.Classify(ctx, 0.5, corpus)
	require.NoError(t, err)
	assert.Equal(t, 10, eval.Documents)
	assert.InDelta(t, 1.0, eval.Accuracy(), 1e-12, "disjoint vocabularies classify perfectly")
	assert.Equal(t, 5, eval.Matrix["SPAM"]["SPAM"])
	assert.Equal(t, 5, eval.Matrix["HAM"]["HAM"])
}

func TestHarnessWithBayes_Retrain(t *testing.T) {
	h, b := newHarness(t)
	ctx := context.Background()

	require.NoError(t, h.Train(ctx, separableCorpus(3)))

	replacement := core.Corpus{
		{Source: core.NewSliceSource("invoices", bodyDoc("invoice payment due")), Category: "BILLING"},
	}
	require.NoError(t, h.Retrain(ctx, replacement))

	names, err := b.Categories(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"BILLING"}, names, "retrain starts from an empty model")
}

func TestHarnessWithBayes_Crossval(t *testing.T) {
	h, b := newHarness(t)
	ctx := context.Background()
	corpus := separableCorpus(10)

	eval, err := h.Crossval(ctx, 3, 0.5, corpus, rand.New(rand.NewSource(11)))
	require.NoError(t, err)

	assert.Equal(t, 20, eval.Documents)
	assert.Equal(t, 20, eval.Matrix.Total(), "every valid document scored exactly once")
	assert.Equal(t, 3, eval.Folds)

	// Predictions only ever land on known categories or the reserved name.
	for truth, row := range eval.Matrix {
		assert.Contains(t, []string{"SPAM", "HAM"}, truth)
		for predicted := range row {
			assert.Contains(t, []string{"SPAM", "HAM", core.CategoryUnknown}, predicted)
		}
	}

	// Destructive by contract: nothing remains learned afterwards.
	names, err := b.Categories(ctx)
	require.NoError(t, err)
	assert.Empty(t, names)
	assert.False(t, h.Trained())
}
