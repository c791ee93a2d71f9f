package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/Sternrassler/owner-enricher/pkg/client"
	"github.com/Sternrassler/owner-enricher/pkg/engine"
	"github.com/Sternrassler/owner-enricher/pkg/logging"
	"github.com/Sternrassler/owner-enricher/pkg/store"
)

var version = "dev"

// options are the settings shared by all commands.
type options struct {
	apiKey   string
	model    string
	baseURL  string
	redisURL string
	workers  int
	rps      float64
	cacheTTL time.Duration

	logLevel  string
	logPretty bool
}

// envBindings maps flag names to the environment variables that back them.
var envBindings = map[string]string{
	"api-key":    "GEMINI_API_KEY",
	"model":      "GEMINI_MODEL",
	"base-url":   "GEMINI_BASE_URL",
	"redis-url":  "REDIS_URL",
	"workers":    "WORKERS",
	"rps":        "REQUEST_RPS",
	"cache-ttl":  "CACHE_TTL",
	"log-level":  "LOG_LEVEL",
	"log-pretty": "LOG_PRETTY",
	"port":       "PORT",
}

func execute() int {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:           "owner-enricher",
		Short:         "Find business owners for rows of a CSV file",
		Long:          "Investigates each business in a CSV file with a search-grounded model and writes owner name, source and confidence back to the file.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// Apply precedence: flag > env > default
			if err := applyEnv(cmd.Flags()); err != nil {
				return err
			}

			level, err := logging.ParseLevel(opts.logLevel)
			if err != nil {
				return err
			}
			logging.Setup(logging.Config{Level: level, Pretty: opts.logPretty, Output: cmd.ErrOrStderr()})
			return nil
		},
	}

	defaults := engine.DefaultConfig()
	clientDefaults := client.DefaultConfig(nil, "")

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.apiKey, "api-key", "", "API key for the generative language API")
	flags.StringVar(&opts.model, "model", clientDefaults.Model, "Model used for owner lookups")
	flags.StringVar(&opts.baseURL, "base-url", clientDefaults.BaseURL, "Base URL of the generative language API")
	flags.StringVar(&opts.redisURL, "redis-url", "", "Redis URL or host:port for the result cache and shared cooldown (optional)")
	flags.IntVar(&opts.workers, "workers", defaults.Workers, "Number of concurrent lookups")
	flags.Float64Var(&opts.rps, "rps", clientDefaults.RequestRPS, "Upstream requests per second across all workers (0 = unlimited)")
	flags.DurationVar(&opts.cacheTTL, "cache-ttl", clientDefaults.CacheTTL, "How long answers stay cached")
	flags.StringVar(&opts.logLevel, "log-level", string(logging.LevelInfo), "Log level (debug, info, warn, error)")
	flags.BoolVar(&opts.logPretty, "log-pretty", false, "Human-readable logs instead of JSON")

	rootCmd.AddCommand(newRunCmd(opts))
	rootCmd.AddCommand(newServeCmd(opts))

	return rootCmd
}

// applyEnv fills every flag the user did not set from its environment
// variable.
func applyEnv(flags *pflag.FlagSet) error {
	for name, env := range envBindings {
		f := flags.Lookup(name)
		if f == nil || f.Changed {
			continue
		}
		v, ok := os.LookupEnv(env)
		if !ok || v == "" {
			continue
		}
		if err := f.Value.Set(v); err != nil {
			return fmt.Errorf("invalid %s=%q: %w", env, v, err)
		}
	}
	return nil
}

// newRedis connects to Redis when a URL is configured. Both redis:// URLs
// and plain host:port addresses are accepted.
func newRedis(ctx context.Context, rawURL string) (*redis.Client, error) {
	if rawURL == "" {
		return nil, nil
	}

	var redisOpts *redis.Options
	if strings.Contains(rawURL, "://") {
		parsed, err := redis.ParseURL(rawURL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		redisOpts = parsed
	} else {
		redisOpts = &redis.Options{Addr: rawURL}
	}

	rdb := redis.NewClient(redisOpts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("connect to redis at %s: %w", redisOpts.Addr, err)
	}
	return rdb, nil
}

// session bundles what a command needs to run enrichment.
type session struct {
	ctrl   *engine.Controller
	redis  *redis.Client
	logger zerolog.Logger
}

func (s *session) Close() {
	if s.redis != nil {
		s.redis.Close()
	}
}

// newSession wires store, lookup client and controller from opts.
func newSession(ctx context.Context, opts *options) (*session, error) {
	logger := logging.NewLogger("cli")

	rdb, err := newRedis(ctx, opts.redisURL)
	if err != nil {
		return nil, err
	}
	if rdb == nil {
		logger.Info().Msg("No Redis configured - caching disabled, cooldown kept in process")
	} else {
		logger.Info().Str("addr", rdb.Options().Addr).Msg("Connected to Redis")
	}

	cfg := client.DefaultConfig(rdb, opts.apiKey)
	cfg.Model = opts.model
	cfg.BaseURL = opts.baseURL
	cfg.RequestRPS = opts.rps
	cfg.CacheTTL = opts.cacheTTL
	lookupClient, err := client.New(cfg)
	if err != nil {
		if rdb != nil {
			rdb.Close()
		}
		return nil, fmt.Errorf("create lookup client: %w", err)
	}

	engineCfg := engine.DefaultConfig()
	engineCfg.Workers = opts.workers
	ctrl, err := engine.New(store.New(), lookupClient, engineCfg)
	if err != nil {
		if rdb != nil {
			rdb.Close()
		}
		return nil, fmt.Errorf("create session: %w", err)
	}

	return &session{ctrl: ctrl, redis: rdb, logger: logger}, nil
}
