package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds the application configuration.
type Config struct {
	GoogleAPIKey    string
	OpenAIAPIKey    string
	AnthropicAPIKey string
	Policy          *PolicyConfig
	ConfigDir       string
}

// FileConfig represents the structure of ~/.plantgate/config.yaml
type FileConfig struct {
	APIKeys APIKeysConfig `yaml:"api_keys"`
}

// APIKeysConfig holds API key configuration from file.
type APIKeysConfig struct {
	Google    string `yaml:"google"`
	OpenAI    string `yaml:"openai"`
	Anthropic string `yaml:"anthropic"`
}

// Load reads configuration from config files and environment variables.
// A local .env file is honored first; environment variables take precedence
// over file configuration.
func Load() (*Config, error) {
	_ = godotenv.Load() // optional .env

	configDir, err := getConfigDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get config directory: %w", err)
	}

	fileConfig := loadFileConfig(filepath.Join(configDir, "config.yaml"))

	cfg := &Config{
		GoogleAPIKey:    getEnvOrDefault("GOOGLE_API_KEY", fileConfig.APIKeys.Google),
		OpenAIAPIKey:    getEnvOrDefault("OPENAI_API_KEY", fileConfig.APIKeys.OpenAI),
		AnthropicAPIKey: getEnvOrDefault("ANTHROPIC_API_KEY", fileConfig.APIKeys.Anthropic),
		ConfigDir:       configDir,
	}

	policyPath := filepath.Join(configDir, "policy.yaml")
	if _, err := os.Stat(policyPath); err == nil {
		policy, err := LoadPolicyConfig(policyPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load policy config: %w", err)
		}
		cfg.Policy = policy
	} else {
		cfg.Policy = DefaultPolicyConfig()
	}

	applyPolicyEnv(cfg.Policy)
	return cfg, nil
}

// LoadWithPolicyFile loads config with a specific policy file.
func LoadWithPolicyFile(policyPath string) (*Config, error) {
	_ = godotenv.Load()

	configDir, err := getConfigDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get config directory: %w", err)
	}

	fileConfig := loadFileConfig(filepath.Join(configDir, "config.yaml"))

	cfg := &Config{
		GoogleAPIKey:    getEnvOrDefault("GOOGLE_API_KEY", fileConfig.APIKeys.Google),
		OpenAIAPIKey:    getEnvOrDefault("OPENAI_API_KEY", fileConfig.APIKeys.OpenAI),
		AnthropicAPIKey: getEnvOrDefault("ANTHROPIC_API_KEY", fileConfig.APIKeys.Anthropic),
		ConfigDir:       configDir,
	}

	policy, err := LoadPolicyConfig(policyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load policy config from %s: %w", policyPath, err)
	}
	cfg.Policy = policy

	applyPolicyEnv(cfg.Policy)
	return cfg, nil
}

// HasAnalyzer returns true if the API key for the given analyzer backend is
// configured.
func (c *Config) HasAnalyzer(name string) bool {
	switch name {
	case "google":
		return c.GoogleAPIKey != ""
	case "openai":
		return c.OpenAIAPIKey != ""
	case "anthropic":
		return c.AnthropicAPIKey != ""
	default:
		return false
	}
}

// applyPolicyEnv applies the environment overrides the original deployment
// exposed: AI_FALLBACK_THRESHOLD (a percent), ML_ENABLED, ENABLE_AI_TAKEOVER,
// CLASSIFIER_URL, STATS_FILE, LISTEN_ADDR.
func applyPolicyEnv(p *PolicyConfig) {
	if v := os.Getenv("AI_FALLBACK_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			p.ConfidenceThreshold = NormalizeThreshold(f)
		}
	}
	if v := os.Getenv("ML_ENABLED"); v != "" {
		enabled := strings.EqualFold(v, "true")
		p.ClassifierEnabled = &enabled
	}
	if v := os.Getenv("ENABLE_AI_TAKEOVER"); v != "" {
		enabled := strings.EqualFold(v, "true")
		p.TakeoverEnabled = &enabled
	}
	if v := os.Getenv("CLASSIFIER_URL"); v != "" {
		p.ClassifierURL = v
	}
	if v := os.Getenv("STATS_FILE"); v != "" {
		p.StatsFile = v
	}
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		p.ListenAddr = v
	}
}

// loadFileConfig reads the config file, returning empty config if not found.
func loadFileConfig(path string) *FileConfig {
	cfg := &FileConfig{}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg // Return empty config if file doesn't exist
	}

	_ = yaml.Unmarshal(data, cfg) // Ignore parse errors, use defaults
	return cfg
}

// getEnvOrDefault returns the environment variable value if set,
// otherwise returns the default value.
func getEnvOrDefault(envVar, defaultValue string) string {
	if val := os.Getenv(envVar); val != "" {
		return val
	}
	return defaultValue
}

func getConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	configDir := filepath.Join(home, ".plantgate")
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return "", err
	}
	return configDir, nil
}
