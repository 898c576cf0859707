package filter

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mikey/mail-classifier/internal/core"
)

// CliFilter implements a command-line front-end for scoring one message
type CliFilter struct {
	classifier core.Classifier
	logger     *zap.Logger
	threshold  float64
	verbose    bool
}

// NewCliFilter creates a new CLI filter
func NewCliFilter(classifier core.Classifier, logger *zap.Logger, threshold float64, verbose bool) (*CliFilter, error) {
	return &CliFilter{
		classifier: classifier,
		logger:     logger,
		threshold:  threshold,
		verbose:    verbose,
	}, nil
}

// ProcessMessage scores a message and displays the results
func (f *CliFilter) ProcessMessage(ctx context.Context, doc *core.Document) (core.CategoryScore, error) {
	f.logger.Debug("Processing message", zap.String("subject", doc.Subject))

	// Print message summary
	fmt.Printf("\n=== Message Summary ===\n")
	fmt.Printf("From: %s\n", joinAddresses(doc.From))
	fmt.Printf("To: %s\n", joinAddresses(doc.To))
	fmt.Printf("Subject: %s\n", doc.Subject)
	fmt.Printf("Body parts: %d (%d bytes)\n", len(doc.Parts), bodyBytes(doc))

	// Print body preview if verbose
	if f.verbose && len(doc.Parts) > 0 {
		preview := doc.Parts[0].Text
		if len(preview) > 500 {
			preview = preview[:500] + "..."
		}
		fmt.Printf("\nBody preview:\n%s\n", preview)
	}

	fmt.Printf("\n=== Analysis ===\n")
	startTime := time.Now()
	scores, err := f.classifier.Score(ctx, doc)
	if err != nil {
		f.logger.Error("Failed to score message", zap.Error(err))
		fmt.Printf("Error: %v\n", err)
		return core.CategoryScore{}, err
	}
	duration := time.Since(startTime)

	v := verdict(scores, f.threshold)

	// Print results
	fmt.Printf("\n=== Results ===\n")
	for _, score := range scores {
		fmt.Printf("%-12s %.4f\n", score.Category, score.Prob)
	}
	fmt.Printf("Verdict: %s (threshold %.2f)\n", v.Category, f.threshold)
	fmt.Printf("Processing time: %v\n", duration)

	return v, nil
}

// Start is a no-op for the CLI filter
func (f *CliFilter) Start() error {
	return nil
}

// Stop is a no-op for the CLI filter
func (f *CliFilter) Stop() error {
	return nil
}

func joinAddresses(addrs []core.Address) string {
	parts := make([]string, 0, len(addrs))
	for _, a := range addrs {
		parts = append(parts, a.Address)
	}
	return strings.Join(parts, ", ")
}

func bodyBytes(doc *core.Document) int {
	n := 0
	for _, part := range doc.Parts {
		n += len(part.Text)
	}
	return n
}
