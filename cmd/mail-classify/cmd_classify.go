package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func runClassify(cmd *cobra.Command, args []string) {
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

	ctx := context.Background()
	if modelPath != "" {
		if err := loadModel(ctx, s, modelPath); err != nil {
			s.logger.Fatal("Failed to load model snapshot", zap.Error(err))
		}
	}

	eval, err := s.harness.Classify(ctx, threshold, corpus)
	if err != nil {
		s.logger.Fatal("Classification failed", zap.Error(err))
	}
	printEvaluation(eval)
}
