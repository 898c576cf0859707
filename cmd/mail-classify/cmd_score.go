package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mikey/mail-classifier/internal/adapters/mbox"
	"github.com/mikey/mail-classifier/internal/factory"
)

func runScore(cmd *cobra.Command, _ []string) {
	s, err := buildStack()
	if err != nil {
		fmt.Printf("Failed to build classifier stack: %v\n", err)
		os.Exit(1)
	}
	defer s.close()

	ctx := context.Background()
	if modelPath != "" {
		if err := loadModel(ctx, s, modelPath); err != nil {
			s.logger.Fatal("Failed to load model snapshot", zap.Error(err))
		}
	}

	// Read message from file or stdin
	var messageReader io.Reader
	if inputFile != "" {
		file, err := os.Open(inputFile)
		if err != nil {
			s.logger.Fatal("Failed to open input file", zap.Error(err), zap.String("file", inputFile))
		}
		defer file.Close()
		messageReader = file
		s.logger.Info("Reading message from file", zap.String("file", inputFile))
	} else {
		messageReader = os.Stdin
		s.logger.Info("Reading message from stdin")
	}

	doc, err := mbox.ParseMessage(bufio.NewReader(messageReader))
	if err != nil {
		s.logger.Fatal("Failed to parse message", zap.Error(err))
	}

	// The score command always fronts the classifier with the CLI filter,
	// whatever the config file says the daemon should run.
	v := s.cfg.GetViper()
	v.Set("server.filter_type", "cli")
	v.Set("cli.verbose", verbose)
	if configFile == "" || cmd.Flags().Changed("threshold") {
		v.Set("server.threshold", threshold)
	}

	filterFactory := factory.NewFilterFactory(s.cfg, s.logger, s.classifier)
	messageFilter, err := filterFactory.CreateMessageFilter()
	if err != nil {
		s.logger.Fatal("Failed to create message filter", zap.Error(err))
	}

	if _, err := messageFilter.ProcessMessage(ctx, doc); err != nil {
		s.logger.Fatal("Failed to score message", zap.Error(err))
	}
}
