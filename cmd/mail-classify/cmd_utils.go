package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mikey/mail-classifier/internal/adapters/mbox"
	"github.com/mikey/mail-classifier/internal/adapters/store"
	"github.com/mikey/mail-classifier/internal/config"
	"github.com/mikey/mail-classifier/internal/core"
	"github.com/mikey/mail-classifier/internal/factory"
	"github.com/mikey/mail-classifier/internal/logging"
)

// stack is the wired-up pipeline a command drives: config, store,
// classifier and the harness around it.
type stack struct {
	cfg        *config.Config
	logger     *zap.Logger
	store      core.TableStore
	classifier core.Classifier
	harness    *core.Harness
}

// snapshotter is the optional snapshot surface of a classifier variant.
type snapshotter interface {
	Snapshot(ctx context.Context) (*core.ModelState, error)
	Restore(ctx context.Context, state *core.ModelState) error
}

// buildStack wires the classifier pipeline for one command run
func buildStack() (*stack, error) {
	logger, err := logging.InitConsoleLogger(verbose, jsonLog)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	var cfg *config.Config
	if configFile != "" {
		cfg, err = config.NewFromFile(configFile)
		if err != nil {
			return nil, err
		}
		logger.Info("Loaded configuration from file", zap.String("file", cfg.GetViper().ConfigFileUsed()))
	} else {
		// Create config from command line flags
		cfg = createConfigFromFlags()
	}

	storeFactory := factory.NewStoreFactory(cfg, logger)
	tableStore, err := storeFactory.CreateTableStore()
	if err != nil {
		return nil, err
	}

	classifierFactory := factory.NewClassifierFactory(cfg, logger)
	cls, err := classifierFactory.CreateClassifier(tableStore)
	if err != nil {
		tableStore.Close()
		return nil, err
	}

	return &stack{
		cfg:        cfg,
		logger:     logger,
		store:      tableStore,
		classifier: cls,
		harness:    core.NewHarness(cls, logger, cfg.GetClassifier().Workers),
	}, nil
}

func (s *stack) close() {
	if err := s.store.Close(); err != nil {
		s.logger.Error("Failed to close model store", zap.Error(err))
	}
	s.logger.Sync()
}

// createConfigFromFlags creates a configuration from command line flags
func createConfigFromFlags() *config.Config {
	v := config.NewEmptyViper()

	v.Set("classifier.variant", variantName)
	v.Set("classifier.combiner", combinerName)
	v.Set("classifier.predictors", predictors)
	v.Set("classifier.min_observations", minObservations)
	v.Set("classifier.min_prob", minProb)
	v.Set("classifier.max_prob", maxProb)
	v.Set("classifier.score_delay", scoreDelay)
	v.Set("classifier.ignored_tokens", ignoredTokens)
	v.Set("classifier.workers", workers)

	v.Set("store.backend", storeBackend)
	if sqlitePath != "" {
		v.Set("store.sqlite_path", sqlitePath)
	}
	if mysqlDSN != "" {
		v.Set("store.mysql_dsn", mysqlDSN)
	}

	v.Set("cli.verbose", verbose)

	return config.NewFromViper(v)
}

// parseCorpus turns CATEGORY=path arguments into a labeled corpus of mbox
// sources, in argument order.
func parseCorpus(args []string, logger *zap.Logger) (core.Corpus, error) {
	corpus := make(core.Corpus, 0, len(args))
	for _, arg := range args {
		category, path, ok := strings.Cut(arg, "=")
		if !ok || category == "" || path == "" {
			return nil, fmt.Errorf("malformed corpus argument %q, want CATEGORY=path.mbox", arg)
		}
		corpus = append(corpus, core.LabeledSource{
			Source:   mbox.NewSource(path, logger),
			Category: category,
		})
	}
	return corpus, nil
}

// saveModel snapshots the classifier into a standalone sqlite file
func saveModel(ctx context.Context, s *stack, path string) error {
	snap, ok := s.classifier.(snapshotter)
	if !ok {
		return fmt.Errorf("classifier variant %q does not support snapshots", variantName)
	}
	state, err := snap.Snapshot(ctx)
	if err != nil {
		return err
	}
	return store.WriteSnapshot(ctx, state, path, s.logger)
}

// loadModel restores a snapshot file into the classifier
func loadModel(ctx context.Context, s *stack, path string) error {
	snap, ok := s.classifier.(snapshotter)
	if !ok {
		return fmt.Errorf("classifier variant %q does not support snapshots", variantName)
	}
	state, err := store.ReadSnapshot(ctx, path, s.logger)
	if err != nil {
		return err
	}
	return snap.Restore(ctx, state)
}

// printEvaluation renders a run report: totals first, then the confusion
// matrix with true categories as rows.
func printEvaluation(eval *core.Evaluation) {
	fmt.Printf("\n=== Evaluation ===\n")
	fmt.Printf("Run: %s\n", eval.RunID)
	if eval.Folds > 0 {
		fmt.Printf("Folds: %d\n", eval.Folds)
	}
	fmt.Printf("Threshold: %.2f\n", eval.Threshold)
	fmt.Printf("Documents: %d (skipped %d)\n", eval.Documents, eval.Skipped)
	fmt.Printf("Accuracy: %.4f\n", eval.Accuracy())
	fmt.Printf("Elapsed: %v\n", eval.CompletedAt.Sub(eval.StartedAt).Round(time.Millisecond))

	cats := eval.Matrix.Categories()
	if len(cats) == 0 {
		return
	}
	fmt.Printf("\n%-14s", "true/predicted")
	for _, cat := range cats {
		fmt.Printf(" %10s", cat)
	}
	fmt.Println()
	for _, truth := range cats {
		row, ok := eval.Matrix[truth]
		if !ok {
			continue
		}
		fmt.Printf("%-14s", truth)
		for _, cat := range cats {
			fmt.Printf(" %10d", row[cat])
		}
		fmt.Println()
	}
}
