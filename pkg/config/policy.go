package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultConfidenceThreshold is the gate below which the classifier's
// prediction is discarded in favor of the cloud analyzer.
const DefaultConfidenceThreshold = 0.50

// PolicyConfig holds the arbitration policy and service wiring.
type PolicyConfig struct {
	// ConfidenceThreshold is a fraction in (0,1]. Values above 1 in config
	// files are treated as percentages for compatibility with deployments
	// that carried the threshold over as e.g. "50".
	ConfidenceThreshold float64 `yaml:"confidence_threshold,omitempty"`
	ClassifierEnabled   *bool   `yaml:"classifier_enabled,omitempty"`
	TakeoverEnabled     *bool   `yaml:"takeover_enabled,omitempty"`

	Analyzer string `yaml:"analyzer,omitempty"` // google, openai, anthropic, mock
	Model    string `yaml:"model,omitempty"`

	ClassifierURL     string `yaml:"classifier_url,omitempty"`
	SpeciesLabelsFile string `yaml:"species_labels,omitempty"`
	DiseaseLabelsFile string `yaml:"disease_labels,omitempty"`

	StatsFile  string `yaml:"stats_file,omitempty"`
	ListenAddr string `yaml:"listen_addr,omitempty"`

	UpstreamTimeoutMs int     `yaml:"upstream_timeout_ms,omitempty"`
	UpstreamRPS       float64 `yaml:"upstream_rps,omitempty"`
	UpstreamBurst     int     `yaml:"upstream_burst,omitempty"`
}

// LoadPolicyConfig reads policy configuration from a YAML file.
func LoadPolicyConfig(path string) (*PolicyConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg PolicyConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	applyPolicyDefaults(&cfg)
	return &cfg, nil
}

// DefaultPolicyConfig returns the default policy configuration.
func DefaultPolicyConfig() *PolicyConfig {
	cfg := &PolicyConfig{}
	applyPolicyDefaults(cfg)
	return cfg
}

// ClassifierOn reports whether the local classifier should be used at all.
func (p *PolicyConfig) ClassifierOn() bool {
	return p.ClassifierEnabled == nil || *p.ClassifierEnabled
}

// TakeoverOn reports whether low-confidence predictions may be replaced by
// the cloud analyzer.
func (p *PolicyConfig) TakeoverOn() bool {
	return p.TakeoverEnabled == nil || *p.TakeoverEnabled
}

// NormalizeThreshold maps percent-style thresholds onto the [0,1] scale.
func NormalizeThreshold(v float64) float64 {
	if v > 1 {
		return v / 100
	}
	return v
}

func applyPolicyDefaults(cfg *PolicyConfig) {
	if cfg == nil {
		return
	}
	if cfg.ConfidenceThreshold == 0 {
		cfg.ConfidenceThreshold = DefaultConfidenceThreshold
	}
	cfg.ConfidenceThreshold = NormalizeThreshold(cfg.ConfidenceThreshold)
	if cfg.Analyzer == "" {
		cfg.Analyzer = "google"
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-2.0-flash"
	}
	if cfg.SpeciesLabelsFile == "" {
		cfg.SpeciesLabelsFile = "labels/species_labels.json"
	}
	if cfg.DiseaseLabelsFile == "" {
		cfg.DiseaseLabelsFile = "labels/disease_labels.json"
	}
	if cfg.StatsFile == "" {
		cfg.StatsFile = "usage_stats.json"
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8000"
	}
	if cfg.UpstreamTimeoutMs == 0 {
		cfg.UpstreamTimeoutMs = 30000
	}
	if cfg.UpstreamRPS == 0 {
		cfg.UpstreamRPS = 2
	}
	if cfg.UpstreamBurst == 0 {
		cfg.UpstreamBurst = 4
	}
}
