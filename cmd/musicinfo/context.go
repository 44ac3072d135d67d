package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"musicinfo/internal/cache"
	"musicinfo/internal/config"
	"musicinfo/internal/enrich"
	"musicinfo/internal/kvstore"
	"musicinfo/internal/logger"
	"musicinfo/internal/musicinfo"
	"musicinfo/internal/provider/gemini"
	"musicinfo/internal/provider/itunes"
	"musicinfo/internal/provider/spotify"
	"musicinfo/internal/shutdown"
)

type commandContext struct {
	shutdown    *shutdown.Handler
	configFlag  *string
	verboseFlag *bool

	configOnce sync.Once
	config     config.Config
	configErr  error
}

func newCommandContext(sh *shutdown.Handler, configFlag *string, verboseFlag *bool) *commandContext {
	return &commandContext{
		shutdown:    sh,
		configFlag:  configFlag,
		verboseFlag: verboseFlag,
	}
}

func (c *commandContext) ensureConfig() (config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, err := config.LoadConfigFile(path)
		if err != nil {
			c.configErr = fmt.Errorf("failed to load config: %w", err)
			return
		}
		if c.verboseFlag != nil && *c.verboseFlag {
			cfg.Verbose = true
		}
		if err := cfg.Validate(); err != nil {
			c.configErr = fmt.Errorf("configuration error: %w", err)
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// newLogger logs to the command's stderr so results on stdout stay clean.
func (c *commandContext) newLogger(cmd *cobra.Command) *logger.Logger {
	log := logger.New(c.config.Verbose)
	log.SetOutput(cmd.ErrOrStderr())
	return log
}

// enableFileLog mirrors the log of a long-running command into the log directory.
func enableFileLog(log *logger.Logger, name string) {
	logDir := config.GetDefaultLogPath()
	if err := os.MkdirAll(logDir, 0755); err != nil {
		log.Warn("Failed to create log directory: %v", err)
		return
	}
	logFile := filepath.Join(logDir, fmt.Sprintf("musicinfo-%s_%s.log", name, time.Now().Format("2006-01-02_15-04-05")))
	if err := log.SetFileLog(logFile); err != nil {
		log.Warn("Failed to setup file logging: %v", err)
		return
	}
	log.Debug("Logging to file: %s", logFile)
}

type services struct {
	kv       *kvstore.Store
	cache    *cache.Store
	enricher *enrich.Orchestrator
}

func (s *services) Close() error {
	return s.kv.Close()
}

// openServices opens the local store and wires the providers behind the
// enrichment orchestrator.
func (c *commandContext) openServices(log *logger.Logger) (*services, error) {
	cfg := c.config
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	kv, err := kvstore.Open(cfg.DBPath())
	if errors.Is(err, kvstore.ErrLocked) {
		return nil, fmt.Errorf("%s is in use by another musicinfo process", cfg.DBPath())
	}
	if err != nil {
		return nil, err
	}
	log.Debug("Opened store %s", kv.Path())

	store := cache.New(kv, log.Named("cache"), cache.WithTTL(cfg.CacheTTL()))
	text := gemini.New(cfg.RelayURL, cfg.GeminiAPIKey, cfg.GeminiModels, log.Named("gemini"))
	text.SetTimeout(cfg.HTTPTimeout())
	chain := musicinfo.NewChain(catalogProviders(cfg, log), log.Named("backfill"))

	return &services{
		kv:       kv,
		cache:    store,
		enricher: enrich.New(store, text, chain, log.Named("enrich")),
	}, nil
}

// catalogProviders returns the backfill order: the streaming catalog first,
// queried directly when credentials are local, then the media catalog.
func catalogProviders(cfg config.Config, log *logger.Logger) []musicinfo.ArtistProvider {
	var providers []musicinfo.ArtistProvider

	if cfg.HasSpotifyCredentials() {
		sp := spotify.New(cfg.SpotifyClientID, cfg.SpotifyClientSecret, nil, log.Named("spotify"))
		sp.SetTimeout(cfg.HTTPTimeout())
		providers = append(providers, sp)
	} else {
		providers = append(providers, spotify.NewRelayClient(cfg.RelayURL, log.Named("spotify")))
	}

	it := itunes.New(log.Named("itunes"))
	it.SetTimeout(cfg.HTTPTimeout())
	providers = append(providers, it)

	return providers
}
