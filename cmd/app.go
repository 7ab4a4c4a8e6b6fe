package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spigell/crewzy/internal/ai"
	"github.com/spigell/crewzy/internal/ai/gemini"
	"github.com/spigell/crewzy/internal/ai/voyage"
	"github.com/spigell/crewzy/internal/assistant"
	"github.com/spigell/crewzy/internal/classifier"
	"github.com/spigell/crewzy/internal/dispatch"
	"github.com/spigell/crewzy/internal/logger"
	"github.com/spigell/crewzy/internal/matching"
	"github.com/spigell/crewzy/internal/nearest"
	"github.com/spigell/crewzy/internal/roles"
	"github.com/spigell/crewzy/internal/routing"
	"github.com/spigell/crewzy/internal/secrets"
	"github.com/spigell/crewzy/internal/similarity"
	"github.com/spigell/crewzy/internal/store"
	"github.com/spigell/crewzy/internal/tracing"

	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// documentStore is a store that can also be written to.
type documentStore interface {
	store.Store
	Insert(ctx context.Context, collection string, doc store.Document) (string, error)
}

// components is everything a command needs, wired from the config.
type components struct {
	store      documentStore
	dispatcher *dispatch.Service
	assistant  *assistant.Assistant
}

func (c *components) Close() error {
	if c == nil || c.store == nil {
		return nil
	}
	return c.store.Close()
}

// runWith runs fn and closes c before returning its error.
func (c *components) runWith(fn func(*components) error) error {
	defer c.Close()
	return fn(c)
}

// bootstrap creates the logger and loads the config, exiting on failure like
// every command does.
func bootstrap() (*zap.Logger, *Config) {
	log, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "creating a logger: %s\n", err)
		os.Exit(1)
	}

	config, err := getConfig()
	if err != nil {
		log.Fatal("getting a config", zap.Error(err))
	}
	if config == nil {
		log.Fatal("config is required")
	}

	// do not bother error since there is a valid parseable config
	pretty, _ := json.MarshalIndent(redacted(config), "", "  ")
	log.Debug(fmt.Sprintf("starting with config: \n %s", pretty))

	return log, config
}

// redacted returns a copy of config safe to log.
func redacted(config *Config) Config {
	out := *config
	if config.AI != nil {
		aiCfg := *config.AI
		if aiCfg.Gemini != nil {
			g := *aiCfg.Gemini
			g.APIKey = mask(g.APIKey)
			aiCfg.Gemini = &g
		}
		if aiCfg.Voyage != nil {
			v := *aiCfg.Voyage
			v.APIKey = mask(v.APIKey)
			aiCfg.Voyage = &v
		}
		out.AI = &aiCfg
	}
	if config.Routing != nil {
		r := *config.Routing
		r.ClientSecret = mask(r.ClientSecret)
		out.Routing = &r
	}
	return out
}

func mask(secret string) string {
	if secret == "" {
		return ""
	}
	return "***"
}

// setupTracing installs the stdout tracer when enabled. The returned func is
// always safe to call.
func setupTracing(config *Config, log *zap.Logger) func(context.Context) error {
	noop := func(context.Context) error { return nil }
	if config.Tracing == nil || !config.Tracing.Enabled {
		return noop
	}

	shutdown, err := tracing.InitTracer(app, version, os.Stderr, log)
	if err != nil {
		log.Warn("skipping tracing", zap.Error(err))
		return noop
	}
	return shutdown
}

func buildComponents(ctx context.Context, config *Config, log *zap.Logger) (*components, error) {
	docs, err := openStore(ctx, config.Store, log)
	if err != nil {
		return nil, err
	}

	c := &components{store: docs}
	if err := c.wire(ctx, config, log); err != nil {
		c.Close()
		return nil, err
	}

	return c, nil
}

func (c *components) wire(ctx context.Context, config *Config, log *zap.Logger) error {
	aiCfg := config.AI
	if aiCfg == nil {
		return fmt.Errorf("ai configuration is required")
	}

	provider := strings.TrimSpace(strings.ToLower(aiCfg.Provider))
	if provider != "" && provider != "gemini" {
		return fmt.Errorf("unsupported ai provider: %s", aiCfg.Provider)
	}

	generator, err := newGemini(ctx, aiCfg, log)
	if err != nil {
		return fmt.Errorf("building gemini client: %w", err)
	}

	embedder, err := newEmbedder(aiCfg, generator, log)
	if err != nil {
		return fmt.Errorf("building embedder: %w", err)
	}

	var opts []roles.Option
	if config.Normalizer != nil {
		opts = append(opts, roles.WithConcurrency(config.Normalizer.Concurrency))
	}
	normalizer := roles.New(c.store, similarity.New(embedder), log.Named("roles"), opts...)

	router, err := newRouter(ctx, config.Routing, log)
	if err != nil {
		return fmt.Errorf("building routing client: %w", err)
	}

	c.dispatcher = dispatch.New(
		classifier.New(generator, normalizer, log.Named("classifier"), aiCfg.MaxLogLength),
		matching.New(c.store, log.Named("matching")),
		nearest.New(router, log.Named("nearest")),
		log,
	)
	c.assistant = assistant.New(generator, c.store, log.Named("assistant"), aiCfg.MaxLogLength)

	return nil
}

func openStore(ctx context.Context, cfg *StoreConfig, log *zap.Logger) (documentStore, error) {
	if cfg == nil {
		cfg = &StoreConfig{Driver: "sqlite", Path: app + ".db"}
	}

	var docs documentStore
	switch driver := strings.TrimSpace(strings.ToLower(cfg.Driver)); driver {
	case "", "sqlite":
		s, err := store.OpenSQLite(ctx, cfg.Path, cfg.Timeout, log.Named("store"))
		if err != nil {
			return nil, err
		}
		docs = s
	case "memory":
		docs = store.NewMemory(log.Named("store"))
	default:
		return nil, fmt.Errorf("unsupported store driver: %s", cfg.Driver)
	}

	if cfg.SeedFile != "" {
		counts, err := seedFromFile(ctx, docs, cfg.SeedFile)
		if err != nil {
			docs.Close()
			return nil, err
		}
		log.Info("store seeded", zap.String("file", cfg.SeedFile), zap.Any("documents", counts))
	}

	return docs, nil
}

func newGemini(ctx context.Context, cfg *AIConfig, log *zap.Logger) (*gemini.Client, error) {
	g := cfg.Gemini
	if g == nil {
		g = &GeminiConfig{}
	}

	apiKey, err := secrets.Load(secrets.Source{
		Name:  "gemini api key",
		File:  g.APIKeyFile,
		Env:   "GEMINI_API_KEY",
		Value: g.APIKey,
	})
	if err != nil {
		return nil, err
	}

	return gemini.NewClient(ctx, gemini.Options{
		APIKey:         apiKey,
		Model:          g.Model,
		EmbeddingModel: g.EmbeddingModel,
		Dimensions:     g.Dimensions,
		Temperature:    g.Temperature,
		Timeout:        g.Timeout,
		MaxLogLength:   cfg.MaxLogLength,
	}, log)
}

func newEmbedder(cfg *AIConfig, fallback *gemini.Client, log *zap.Logger) (ai.Embedder, error) {
	switch provider := strings.TrimSpace(strings.ToLower(cfg.EmbeddingProvider)); provider {
	case "", "gemini":
		return fallback, nil
	case "voyage":
		v := cfg.Voyage
		if v == nil {
			v = &VoyageConfig{}
		}

		apiKey, err := secrets.Load(secrets.Source{
			Name:  "voyage api key",
			File:  v.APIKeyFile,
			Env:   "VOYAGE_API_KEY",
			Value: v.APIKey,
		})
		if err != nil {
			return nil, err
		}

		embedder, err := voyage.NewEmbedder(voyage.Options{
			APIKey:     apiKey,
			Model:      v.Model,
			Dimensions: v.Dimensions,
			Timeout:    v.Timeout,
		}, log)
		if err != nil {
			return nil, err
		}
		return embedder, nil
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", cfg.EmbeddingProvider)
	}
}

// newRouter returns a nil interface, not a nil *routing.Client, when routing
// is disabled.
func newRouter(ctx context.Context, cfg *RoutingConfig, log *zap.Logger) (nearest.Router, error) {
	if cfg == nil || !cfg.Enabled {
		log.Info("routing api disabled; only coordinates are compared")
		return nil, nil
	}

	clientID, err := secrets.Load(secrets.Source{
		Name:  "routing client id",
		File:  cfg.ClientIDFile,
		Env:   "MAPPLS_CLIENT_ID",
		Value: cfg.ClientID,
	})
	if err != nil {
		return nil, err
	}

	clientSecret, err := secrets.Load(secrets.Source{
		Name:  "routing client secret",
		File:  cfg.ClientSecretFile,
		Env:   "MAPPLS_CLIENT_SECRET",
		Value: cfg.ClientSecret,
	})
	if err != nil {
		return nil, err
	}

	client, err := routing.New(ctx, routing.Options{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     cfg.TokenURL,
		DistanceURL:  cfg.DistanceURL,
		Timeout:      cfg.Timeout,
	}, log.Named("routing"))
	if err != nil {
		return nil, err
	}

	return client, nil
}

// seedFromFile loads a JSON object of collection name to document list.
func seedFromFile(ctx context.Context, docs documentStore, path string) (map[string]int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading seed file %q: %w", path, err)
	}

	var collections map[string][]store.Document
	if err := json.Unmarshal(data, &collections); err != nil {
		return nil, fmt.Errorf("parsing seed file %q: %w", path, err)
	}

	for collection := range collections {
		if err := store.CheckCollection(collection); err != nil {
			return nil, fmt.Errorf("seed file %q: %w", path, err)
		}
	}

	counts := make(map[string]int, len(collections))
	for _, collection := range store.Collections {
		for _, doc := range collections[collection] {
			if _, err := docs.Insert(ctx, collection, doc); err != nil {
				return nil, fmt.Errorf("seeding %s: %w", collection, err)
			}
			counts[collection]++
		}
	}

	return counts, nil
}
