package main

import (
	"context"
	"fmt"
	"math/rand"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func runCrossval(cmd *cobra.Command, args []string) {
	s, err := buildStack()
	if err != nil {
		fmt.Printf("Failed to build classifier stack: %v\n", err)
		os.Exit(1)
	}
	defer s.close()

	corpus, err := parseCorpus(args, s.logger)
	if err != nil {
		s.logger.Fatal("Bad corpus arguments", zap.Error(err))
	}

	// A zero seed leaves rng nil; the harness then warns and seeds from
	// the clock.
	var rng *rand.Rand
	if seed != 0 {
		rng = rand.New(rand.NewSource(seed))
	}

	eval, err := s.harness.Crossval(context.Background(), folds, threshold, corpus, rng)
	if err != nil {
		s.logger.Fatal("Cross-validation failed", zap.Error(err))
	}
	printEvaluation(eval)
}
