package factory

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/mikey/mail-classifier/internal/adapters/filter"
	"github.com/mikey/mail-classifier/internal/config"
	"github.com/mikey/mail-classifier/internal/core"
	"github.com/mikey/mail-classifier/internal/ports"
)

// FilterFactory creates message filters based on configuration
type FilterFactory struct {
	cfg        *config.Config
	logger     *zap.Logger
	classifier core.Classifier
}

// NewFilterFactory creates a new filter factory
func NewFilterFactory(cfg *config.Config, logger *zap.Logger, classifier core.Classifier) *FilterFactory {
	return &FilterFactory{
		cfg:        cfg,
		logger:     logger,
		classifier: classifier,
	}
}

// CreateMessageFilter creates a message filter based on the configuration
func (f *FilterFactory) CreateMessageFilter() (ports.MessageFilter, error) {
	filterType := f.cfg.GetString("server.filter_type")
	serverCfg := f.cfg.GetServer()

	switch filterType {
	case "smtp":
		return filter.NewSMTPFilter(
			f.classifier,
			f.logger,
			serverCfg.ListenAddress,
			serverCfg.Threshold,
			serverCfg.CategoryHeader,
			serverCfg.ScoreHeader,
			serverCfg.RejectCategories,
			serverCfg.WhitelistedDomains,
			serverCfg.UpstreamAddress,
			serverCfg.UpstreamPort,
			serverCfg.UpstreamEnabled,
		), nil
	case "cli":
		return filter.NewCliFilter(
			f.classifier,
			f.logger,
			serverCfg.Threshold,
			f.cfg.GetBool("cli.verbose"),
		)
	default:
		return nil, fmt.Errorf("unsupported filter type: %s", filterType)
	}
}
