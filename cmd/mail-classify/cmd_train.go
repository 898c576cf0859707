package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func runTrain(cmd *cobra.Command, args []string) {
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
	if err := s.harness.Train(ctx, corpus); err != nil {
		s.logger.Fatal("Training failed", zap.Error(err))
	}

	categories, err := s.classifier.Categories(ctx)
	if err != nil {
		s.logger.Fatal("Failed to list categories", zap.Error(err))
	}
	fmt.Printf("Trained %d categories: %s\n", len(categories), strings.Join(categories, ", "))

	if modelPath != "" {
		if err := saveModel(ctx, s, modelPath); err != nil {
			s.logger.Fatal("Failed to write model snapshot", zap.Error(err))
		}
		fmt.Printf("Model snapshot written to %s\n", modelPath)
	}
}
