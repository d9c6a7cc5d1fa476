package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/omanox-dev/plantgate/pkg/analyzer"
	"github.com/omanox-dev/plantgate/pkg/arbiter"
	"github.com/omanox-dev/plantgate/pkg/chat"
	"github.com/omanox-dev/plantgate/pkg/classifier"
	"github.com/omanox-dev/plantgate/pkg/config"
	"github.com/omanox-dev/plantgate/pkg/ledger"
	"github.com/omanox-dev/plantgate/pkg/server"
)

var policyFile string

func main() {
	rootCmd := &cobra.Command{
		Use:   "plantgate",
		Short: "Plant disease detection service with confidence-gated AI takeover",
		Long: `Plantgate serves plant-disease diagnoses: a local image classifier
	handles each upload, and when its confidence falls below the configured
	threshold a cloud vision model takes over the diagnosis entirely. Usage
	counters and token consumption are persisted for the internal analytics
	page.`,
	}

	rootCmd.PersistentFlags().StringVar(&policyFile, "policy", "", "path to policy config file")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(analyzeCmd())
	rootCmd.AddCommand(statsCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	var addrFlag string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			ledg, err := ledger.Open(cfg.Policy.StatsFile)
			if err != nil {
				return fmt.Errorf("failed to open usage ledger: %w", err)
			}

			cls, species, diseases, err := buildClassifier(cfg)
			if err != nil {
				return fmt.Errorf("failed to create classifier: %w", err)
			}
			if cls == nil {
				log.Printf("local inference disabled; all scans go to the analyzer")
			}

			anlz, err := buildAnalyzer(cfg)
			if err != nil {
				return fmt.Errorf("failed to create analyzer: %w", err)
			}
			analyzerName := ""
			if anlz != nil {
				analyzerName = anlz.Name()
				log.Printf("AI takeover enabled via %s (%s)", analyzerName, cfg.Policy.Model)
			} else {
				log.Printf("AI takeover disabled (no analyzer configured)")
			}

			arb := arbiter.New(cls, anlz, ledg, cfg.Policy.ConfidenceThreshold)
			assistant := chat.NewAssistant(anlz, ledg)
			api := server.New(arb, assistant, ledg, species, diseases, analyzerName)

			addr := cfg.Policy.ListenAddr
			if addrFlag != "" {
				addr = addrFlag
			}

			srv := &http.Server{
				Addr:              addr,
				Handler:           api,
				ReadHeaderTimeout: 3 * time.Second,
			}

			go func() {
				log.Printf("listening on %s (threshold %.2f)", addr, arb.Threshold())
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatalf("server error: %v", err)
				}
			}()

			stop := make(chan os.Signal, 1)
			signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
			<-stop

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			log.Printf("shutting down...")
			if err := srv.Shutdown(ctx); err != nil {
				log.Printf("shutdown error: %v", err)
			}
			if err := ledg.Close(); err != nil {
				log.Printf("final ledger flush failed: %v", err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&addrFlag, "addr", "", "listen address (overrides config)")
	return cmd
}

func analyzeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "analyze [image]",
		Short: "Run one arbitration against an image file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			img, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read image: %w", err)
			}

			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			ledg, err := ledger.Open(cfg.Policy.StatsFile)
			if err != nil {
				return fmt.Errorf("failed to open usage ledger: %w", err)
			}
			defer ledg.Close()

			cls, _, _, err := buildClassifier(cfg)
			if err != nil {
				return fmt.Errorf("failed to create classifier: %w", err)
			}
			anlz, err := buildAnalyzer(cfg)
			if err != nil {
				return fmt.Errorf("failed to create analyzer: %w", err)
			}

			arb := arbiter.New(cls, anlz, ledg, cfg.Policy.ConfidenceThreshold)
			outcome, err := arb.Analyze(cmd.Context(), img)
			if err != nil {
				return err
			}

			data, err := json.MarshalIndent(outcome, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(data))
			return nil
		},
	}
}

func statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print the persisted usage counters",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			ledg, err := ledger.Open(cfg.Policy.StatsFile)
			if err != nil {
				return err
			}

			snap := ledg.Snapshot()
			data, err := json.MarshalIndent(snap, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(data))
			return nil
		},
	}
}

func loadConfig() (*config.Config, error) {
	if policyFile != "" {
		return config.LoadWithPolicyFile(policyFile)
	}
	return config.Load()
}

// buildClassifier wires the remote model-server client with its label
// vocabularies, or returns nil when local inference is disabled or unwired.
func buildClassifier(cfg *config.Config) (classifier.Classifier, []string, []string, error) {
	species, err := classifier.LoadLabels(cfg.Policy.SpeciesLabelsFile)
	if err != nil {
		log.Printf("species labels unavailable: %v", err)
	}
	diseases, err := classifier.LoadLabels(cfg.Policy.DiseaseLabelsFile)
	if err != nil {
		log.Printf("disease labels unavailable: %v", err)
	}

	if !cfg.Policy.ClassifierOn() || cfg.Policy.ClassifierURL == "" {
		return nil, species, diseases, nil
	}
	if species == nil || diseases == nil {
		return nil, species, diseases, nil
	}

	remote, err := classifier.NewRemote(cfg.Policy.ClassifierURL, species, diseases, 10*time.Second)
	if err != nil {
		return nil, species, diseases, err
	}
	return remote, species, diseases, nil
}

// buildAnalyzer wires the configured takeover backend behind the rate limiter
// and timeout, or returns nil when takeover is disabled or no key is set.
func buildAnalyzer(cfg *config.Config) (analyzer.Analyzer, error) {
	if !cfg.Policy.TakeoverOn() {
		return nil, nil
	}

	var inner analyzer.Analyzer
	var err error

	switch cfg.Policy.Analyzer {
	case "google":
		if cfg.GoogleAPIKey == "" {
			return nil, nil
		}
		inner, err = analyzer.NewGoogleAnalyzer(cfg.GoogleAPIKey, cfg.Policy.Model)
	case "openai":
		if cfg.OpenAIAPIKey == "" {
			return nil, nil
		}
		inner, err = analyzer.NewOpenAIAnalyzer(cfg.OpenAIAPIKey, cfg.Policy.Model)
	case "anthropic":
		if cfg.AnthropicAPIKey == "" {
			return nil, nil
		}
		inner, err = analyzer.NewAnthropicAnalyzer(cfg.AnthropicAPIKey, cfg.Policy.Model)
	case "mock":
		inner = analyzer.NewMock()
	default:
		return nil, fmt.Errorf("unknown analyzer %q", cfg.Policy.Analyzer)
	}
	if err != nil {
		return nil, err
	}

	timeout := time.Duration(cfg.Policy.UpstreamTimeoutMs) * time.Millisecond
	return analyzer.WithLimits(inner, cfg.Policy.UpstreamRPS, cfg.Policy.UpstreamBurst, timeout), nil
}
