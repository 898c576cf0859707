package config

import "github.com/spf13/cast"

// ClassifierConfig represents the configuration for the classifier engine
type ClassifierConfig struct {
	Variant         string
	Combiner        string
	Predictors      int
	MinObservations int
	MinProb         float64
	MaxProb         float64
	ScoreDelay      uint64
	IgnoredTokens   []string
	Bias            map[string]float64
	Workers         int
}

// ServerConfig represents the configuration for the SMTP filter front-end
type ServerConfig struct {
	ListenAddress      string
	Threshold          float64
	RejectCategories   []string
	WhitelistedDomains []string
	CategoryHeader     string
	ScoreHeader        string
	UpstreamAddress    string
	UpstreamPort       int
	UpstreamEnabled    bool
}

// StoreConfig represents the configuration for the model store backend
type StoreConfig struct {
	Backend    string
	SQLitePath string
	MySQLDSN   string
}

// GetClassifier returns the classifier configuration
func (c *Config) GetClassifier() ClassifierConfig {
	bias := make(map[string]float64)
	for category, value := range c.v.GetStringMap("classifier.bias") {
		multiplier, err := cast.ToFloat64E(value)
		if err != nil {
			continue
		}
		bias[category] = multiplier
	}
	return ClassifierConfig{
		Variant:         c.GetString("classifier.variant"),
		Combiner:        c.GetString("classifier.combiner"),
		Predictors:      c.GetInt("classifier.predictors"),
		MinObservations: c.GetInt("classifier.min_observations"),
		MinProb:         c.GetFloat64("classifier.min_prob"),
		MaxProb:         c.GetFloat64("classifier.max_prob"),
		ScoreDelay:      c.GetUint64("classifier.score_delay"),
		IgnoredTokens:   c.GetStringSlice("classifier.ignored_tokens"),
		Bias:            bias,
		Workers:         c.GetInt("classifier.workers"),
	}
}

// GetServer returns the SMTP filter configuration
func (c *Config) GetServer() ServerConfig {
	return ServerConfig{
		ListenAddress:      c.GetString("server.listen_address"),
		Threshold:          c.GetFloat64("server.threshold"),
		RejectCategories:   c.GetStringSlice("server.reject_categories"),
		WhitelistedDomains: c.GetStringSlice("server.whitelisted_domains"),
		CategoryHeader:     c.GetString("server.headers.category"),
		ScoreHeader:        c.GetString("server.headers.score"),
		UpstreamAddress:    c.GetString("server.upstream.address"),
		UpstreamPort:       c.GetInt("server.upstream.port"),
		UpstreamEnabled:    c.GetBool("server.upstream.enabled"),
	}
}

// GetStore returns the store backend configuration
func (c *Config) GetStore() StoreConfig {
	return StoreConfig{
		Backend:    c.GetString("store.backend"),
		SQLitePath: c.GetString("store.sqlite_path"),
		MySQLDSN:   c.GetString("store.mysql_dsn"),
	}
}
