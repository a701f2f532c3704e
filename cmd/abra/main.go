// abra is the signal aggregation and trend analytics CLI for brand intelligence.
//
// Main CLI entrypoint using cobra command framework.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/abralabs/abra/api"
	"github.com/abralabs/abra/internal/config"
	"github.com/abralabs/abra/internal/infra"
	"github.com/abralabs/abra/internal/ingest"
	"github.com/abralabs/abra/internal/ingest/providers"
	"github.com/abralabs/abra/internal/insight"
)

// Build-time variables (set via -ldflags).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Global config
var cfg *config.Config

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "abra",
	Short: "Cross-channel brand attention analytics",
	Long: `abra turns pre-fetched search and interest payloads into fused
brand insight: smoothed trend curves, short-horizon forecasts,
seasonality, spike detection and a single comparable score per entity.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// .env is optional
		_ = godotenv.Load()

		var err error
		configFile, _ := cmd.Flags().GetString("config")
		if configFile != "" {
			cfg, err = config.LoadFromFile(configFile)
		} else {
			cfg, err = config.Load()
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file path (default: ./config.yaml)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(compareCmd)
	rootCmd.AddCommand(providersCmd)
	rootCmd.AddCommand(serveCmd)
}

// --- Version Command ---

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("abra %s\n", version)
		fmt.Printf("  commit:  %s\n", commit)
		fmt.Printf("  built:   %s\n", date)
	},
}

// --- Analyze Command ---

var analyzeCmd = &cobra.Command{
	Use:   "analyze [input.json]",
	Short: "Analyze one entity from a payload bundle",
	Long: `Analyze reads a JSON bundle of pre-fetched provider payloads for one
entity and prints its fused insight record. The bundle format matches
the POST /api/v1/analyze request body.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var req api.EntityRequest
		if err := readJSONFile(args[0], &req); err != nil {
			return err
		}
		if req.Entity.ID == "" {
			return fmt.Errorf("entity.id is required")
		}

		engine, err := buildEngine()
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
		defer cancel()

		record, err := engine.AnalyzeEntity(ctx, req.ToInput())
		if err != nil {
			return err
		}
		return printJSON(record)
	},
}

// --- Compare Command ---

var compareCmd = &cobra.Command{
	Use:   "compare [input.json]",
	Short: "Analyze and rank multiple entities",
	Long: `Compare reads a JSON bundle with payloads for several entities,
analyzes them under identical settings and prints the ranked result.
The bundle format matches the POST /api/v1/compare request body.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var req api.CompareRequest
		if err := readJSONFile(args[0], &req); err != nil {
			return err
		}
		if len(req.Entities) < 2 {
			return fmt.Errorf("at least two entities are required")
		}

		engine, err := buildEngine()
		if err != nil {
			return err
		}

		inputs := make([]insight.EntityInput, 0, len(req.Entities))
		for _, e := range req.Entities {
			inputs = append(inputs, e.ToInput())
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Minute)
		defer cancel()

		cmp, err := engine.Compare(ctx, inputs)
		if err != nil {
			return err
		}
		return printJSON(cmp)
	},
}

// --- Providers Command ---

var providersCmd = &cobra.Command{
	Use:   "providers",
	Short: "List the registered payload adapters",
	RunE: func(cmd *cobra.Command, args []string) error {
		registry := ingest.NewRegistry()
		if err := providers.RegisterAllTo(registry); err != nil {
			return err
		}
		for _, info := range registry.List() {
			fmt.Printf("%-12s %-14s %s\n", info.ID, info.Produces, info.Description)
		}
		return nil
	},
}

// --- Serve Command ---

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		srv, err := api.NewServer(cfg)
		if err != nil {
			return err
		}
		addr := cfg.API.Addr()
		log.Printf("abra API listening on %s", addr)
		return srv.ListenAndServe(addr)
	},
}

// buildEngine wires the registry, cache and options for CLI runs.
func buildEngine() (*insight.Engine, error) {
	registry := ingest.NewRegistry()
	if err := providers.RegisterAllTo(registry); err != nil {
		return nil, err
	}

	var cache infra.Cache
	switch cfg.Cache.Backend {
	case "memory":
		cache = infra.NewMemoryCache(time.Duration(cfg.Cache.TTLSeconds) * time.Second)
	case "redis":
		rc, err := infra.NewRedisCache(cfg.Cache.Redis.Addr, cfg.Cache.Redis.Password, cfg.Cache.Redis.DB,
			time.Duration(cfg.Cache.TTLSeconds)*time.Second)
		if err != nil {
			log.Printf("redis unavailable (%v), continuing without cache", err)
		} else {
			cache = rc
		}
	}

	return insight.New(registry, insight.OptionsFrom(cfg), cache), nil
}

func readJSONFile(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

func printJSON(v interface{}) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
