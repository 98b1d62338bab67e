// Package story parses story command flags and wires the decision engine
// behind its MCP adapter.
package story

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/louisbranch/chronicle/internal/platform/cmd"
	mcpservice "github.com/louisbranch/chronicle/internal/services/mcp/service"
	"github.com/louisbranch/chronicle/internal/services/story/app"
	"github.com/louisbranch/chronicle/internal/services/story/catalog"
	"github.com/louisbranch/chronicle/internal/services/story/domain/decision"
	"github.com/louisbranch/chronicle/internal/services/story/domain/trigger"
	"github.com/louisbranch/chronicle/internal/services/story/generation"
	storysqlite "github.com/louisbranch/chronicle/internal/services/story/storage/sqlite"
)

// Config holds story command configuration.
type Config struct {
	DBPath      string `env:"CHRONICLE_STORY_DB_PATH"      envDefault:"data/story.db"`
	CatalogPath string `env:"CHRONICLE_STORY_CATALOG_PATH"`
	Transport   string `env:"CHRONICLE_STORY_TRANSPORT"    envDefault:"stdio"`
	HTTPAddr    string `env:"CHRONICLE_STORY_HTTP_ADDR"    envDefault:"localhost:8081"`
	// HealthAddr enables the gRPC health endpoint when set.
	HealthAddr string `env:"CHRONICLE_STORY_HEALTH_ADDR"`
	Threshold  int    `env:"CHRONICLE_STORY_TRIGGER_THRESHOLD" envDefault:"3"`

	OpenAIAPIKey   string `env:"CHRONICLE_STORY_OPENAI_API_KEY"`
	OpenAIBaseURL  string `env:"CHRONICLE_STORY_OPENAI_BASE_URL"`
	OpenAIModel    string `env:"CHRONICLE_STORY_OPENAI_MODEL"     envDefault:"gpt-4o-mini"`
	MaxPromptRunes int    `env:"CHRONICLE_STORY_MAX_PROMPT_RUNES" envDefault:"6000"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := cmd.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}

	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "SQLite story database path")
	fs.StringVar(&cfg.CatalogPath, "catalog", cfg.CatalogPath, "YAML file of authored decisions merged over the built-in catalog")
	fs.StringVar(&cfg.Transport, "transport", cfg.Transport, "Transport type: stdio or http")
	fs.StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "HTTP server address (for HTTP transport)")
	fs.StringVar(&cfg.HealthAddr, "health-addr", cfg.HealthAddr, "gRPC health server address (disabled when empty)")
	fs.IntVar(&cfg.Threshold, "threshold", cfg.Threshold, "player actions between automatic decisions")
	fs.StringVar(&cfg.OpenAIModel, "model", cfg.OpenAIModel, "chat model used for decisions and narrative")
	if err := cmd.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the story engine and serves MCP until ctx ends.
func Run(ctx context.Context, cfg Config) error {
	return cmd.RunWithTelemetry(ctx, cmd.ServiceStory, func(ctx context.Context) error {
		return run(ctx, cfg)
	})
}

func run(ctx context.Context, cfg Config) error {
	if dir := filepath.Dir(cfg.DBPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create storage dir: %w", err)
		}
	}
	store, err := storysqlite.Open(ctx, cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open story store: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Printf("close story store: %v", err)
		}
	}()

	cat, err := catalog.Load(cfg.CatalogPath)
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}

	svc, err := newService(cfg, store, cat)
	if err != nil {
		return err
	}
	mcpServer, err := mcpservice.New(svc)
	if err != nil {
		return fmt.Errorf("create MCP server: %w", err)
	}
	svc.SetNotifier(mcpServer)

	if strings.TrimSpace(cfg.HealthAddr) != "" {
		health, err := app.NewServer(cfg.HealthAddr)
		if err != nil {
			return fmt.Errorf("create health server: %w", err)
		}
		defer health.Close()
		go func() {
			if err := health.Serve(ctx); err != nil {
				log.Printf("health server: %v", err)
			}
		}()
	}

	return mcpServer.Run(ctx, mcpservice.Config{
		Transport: mcpservice.TransportKind(cfg.Transport),
		HTTPAddr:  cfg.HTTPAddr,
	})
}

// newService builds the story service. Without an API key every decision is
// synthesized locally and narrative falls back to the template.
func newService(cfg Config, store *storysqlite.Store, cat *catalog.Catalog) (*app.Service, error) {
	factory := decision.NewFactory(nil, nil)
	pipeline := trigger.Pipeline{Factory: factory}
	var narrator app.Narrator
	if strings.TrimSpace(cfg.OpenAIAPIKey) != "" {
		client, err := generation.New(generation.Config{
			APIKey:         cfg.OpenAIAPIKey,
			BaseURL:        cfg.OpenAIBaseURL,
			Model:          cfg.OpenAIModel,
			MaxPromptRunes: cfg.MaxPromptRunes,
		})
		if err != nil {
			return nil, fmt.Errorf("create generation client: %w", err)
		}
		pipeline.Generator = client
		narrator = client
	} else {
		log.Printf("no OpenAI API key configured; using local decisions and narrative")
	}

	svc, err := app.NewService(app.ServiceConfig{
		Store:    store,
		Trigger:  trigger.Trigger{Pipeline: pipeline, Threshold: cfg.Threshold},
		Catalog:  cat,
		Narrator: narrator,
	})
	if err != nil {
		return nil, fmt.Errorf("create story service: %w", err)
	}
	return svc, nil
}
