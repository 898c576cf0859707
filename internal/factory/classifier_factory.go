package factory

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/mikey/mail-classifier/internal/classifier"
	"github.com/mikey/mail-classifier/internal/config"
	"github.com/mikey/mail-classifier/internal/core"
)

// ClassifierFactory creates classifier variants
type ClassifierFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewClassifierFactory creates a new classifier factory
func NewClassifierFactory(cfg *config.Config, logger *zap.Logger) *ClassifierFactory {
	return &ClassifierFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateClassifier creates a classifier variant over the given store based
// on the configuration
func (f *ClassifierFactory) CreateClassifier(ts core.TableStore) (core.Classifier, error) {
	clsCfg := f.cfg.GetClassifier()

	switch clsCfg.Variant {
	case classifier.VariantBayes:
		combiner, err := classifier.NewCombiner(clsCfg.Combiner)
		if err != nil {
			return nil, err
		}
		return classifier.NewBayes(ts, combiner, classifier.Config{
			Predictors:      clsCfg.Predictors,
			MinObservations: clsCfg.MinObservations,
			MinProb:         clsCfg.MinProb,
			MaxProb:         clsCfg.MaxProb,
			ScoreDelay:      clsCfg.ScoreDelay,
			IgnoredTokens:   clsCfg.IgnoredTokens,
			Bias:            clsCfg.Bias,
		}, f.logger)
	case classifier.VariantRandom:
		return classifier.NewRandom(nil, f.logger), nil
	default:
		return nil, fmt.Errorf("unsupported classifier variant: %s", clsCfg.Variant)
	}
}
