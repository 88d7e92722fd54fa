package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/zjrosen/towncrier/internal/channels"
	"github.com/zjrosen/towncrier/internal/config"
	"github.com/zjrosen/towncrier/internal/discord"
	"github.com/zjrosen/towncrier/internal/history"
	"github.com/zjrosen/towncrier/internal/log"
	"github.com/zjrosen/towncrier/internal/mcp"
	"github.com/zjrosen/towncrier/internal/pubsub"
	"github.com/zjrosen/towncrier/internal/relay"
	"github.com/zjrosen/towncrier/internal/tracing"
)

var (
	version   = "dev"
	cfgFile   string
	debugFlag bool
	httpAddr  string
	cfg       config.Config
)

var rootCmd = &cobra.Command{
	Use:   "towncrier",
	Short: "Gas Town to Discord notification relay",
	Long: `Relays Gas Town rig events into Discord as rich notifications.

The relay runs as an MCP server over stdio: agents call its tools to deliver
structured events, which are formatted into embeds and routed into per-rig
channels created on demand.`,
	Version: version,
	RunE:    runServe,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "",
		"config file (default: ~/.config/towncrier/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debugFlag, "debug", false,
		"enable debug logging")
	rootCmd.Flags().StringVar(&httpAddr, "http", "",
		"also serve MCP over HTTP on this address (e.g. localhost:19998)")
}

func initConfig() {
	defaults := config.Defaults()
	viper.SetDefault("mappings_file", defaults.MappingsFile)
	viper.SetDefault("default_rig", defaults.DefaultRig)
	viper.SetDefault("log_path", defaults.LogPath)
	viper.SetDefault("cache.enabled", defaults.Cache.Enabled)
	viper.SetDefault("cache.channel_ttl", defaults.Cache.ChannelTTL)
	viper.SetDefault("history.enabled", defaults.History.Enabled)
	viper.SetDefault("history.path", defaults.History.Path)
	viper.SetDefault("tracing.enabled", defaults.Tracing.Enabled)
	viper.SetDefault("tracing.exporter", defaults.Tracing.Exporter)
	viper.SetDefault("tracing.sample_rate", defaults.Tracing.SampleRate)
	viper.SetDefault("tracing.service_name", defaults.Tracing.ServiceName)

	// The bot token is usually injected through the environment.
	_ = viper.BindEnv("token", "DISCORD_BOT_TOKEN")
	_ = viper.BindEnv("guild_id", "DISCORD_GUILD_ID")

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		// Config lookup order:
		// 1. .towncrier/config.yaml (current directory)
		// 2. ~/.config/towncrier/config.yaml (user config)
		if _, err := os.Stat(".towncrier/config.yaml"); err == nil {
			viper.SetConfigFile(".towncrier/config.yaml")
		} else {
			home, _ := os.UserHomeDir()
			viper.AddConfigPath(filepath.Join(home, ".config", "towncrier"))
			viper.SetConfigName("config")
			viper.SetConfigType("yaml")
		}
	}

	if err := viper.ReadInConfig(); err != nil {
		// No config file found anywhere - create default at .towncrier/config.yaml
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			defaultPath := ".towncrier/config.yaml"
			if writeErr := config.WriteDefaultConfig(defaultPath); writeErr == nil {
				viper.SetConfigFile(defaultPath)
				_ = viper.ReadInConfig()
			}
			// If write fails, just continue with defaults (no config file)
		}
	}

	_ = viper.Unmarshal(&cfg)

	if debugFlag || os.Getenv("TOWNCRIER_DEBUG") != "" {
		cfg.Debug = true
	}
}

func runServe(_ *cobra.Command, _ []string) error {
	if cfg.Debug {
		cleanup, err := log.Init(cfg.LogPath)
		if err != nil {
			return fmt.Errorf("initializing logging: %w", err)
		}
		defer cleanup()
		log.Info(log.CatConfig, "Towncrier starting", "version", version)
	}

	if err := config.ValidateRelay(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	tracer, err := tracing.NewProvider(tracing.Config{
		Enabled:      cfg.Tracing.Enabled,
		Exporter:     cfg.Tracing.Exporter,
		OTLPEndpoint: cfg.Tracing.OTLPEndpoint,
		SampleRate:   cfg.Tracing.SampleRate,
		ServiceName:  cfg.Tracing.ServiceName,
	})
	if err != nil {
		return fmt.Errorf("initializing tracing: %w", err)
	}

	var recorder relay.Recorder
	if cfg.History.Enabled {
		store, err := history.Open(cfg.History.Path)
		if err != nil {
			return fmt.Errorf("opening delivery history: %w", err)
		}
		defer func() { _ = store.Close() }()
		recorder = store
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	session, err := discord.New(cfg.Token, cfg.GuildID)
	if err != nil {
		return err
	}
	if err := session.Open(ctx); err != nil {
		return fmt.Errorf("connecting to discord: %w", err)
	}
	defer func() { _ = session.Close() }()

	resolver := channels.NewResolver(session, channels.NewFileStore(cfg.MappingsFile))
	service := relay.NewService(session, resolver, relay.Config{
		DefaultRig:   cfg.DefaultRig,
		CacheEnabled: cfg.Cache.Enabled,
		ChannelTTL:   cfg.Cache.ChannelTTL,
		Recorder:     recorder,
		Tracer:       tracer.Tracer(),
	})

	server := mcp.NewServer("towncrier", version, mcp.WithInstructions(mcp.ServerInstructions))
	mcp.RegisterRelayTools(server, service)
	go watchToolEvents(server.Broker().Subscribe(ctx))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Serve(os.Stdin, os.Stdout)
	}()

	var httpServer *http.Server
	if httpAddr != "" {
		httpServer = &http.Server{Addr: httpAddr, Handler: server.ServeHTTP()}
		go func() {
			log.Info(log.CatMCP, "HTTP transport listening", "addr", httpAddr)
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				errCh <- err
			}
		}()
	}

	select {
	case sig := <-sigCh:
		log.Info(log.CatConfig, "Shutting down", "signal", sig.String())
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if httpServer != nil {
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.ErrorErr(log.CatMCP, "Error stopping HTTP transport", err)
		}
	}
	server.Stop()

	if err := tracer.Shutdown(shutdownCtx); err != nil {
		log.ErrorErr(log.CatTrace, "Error shutting down tracing", err)
	}

	return nil
}

// watchToolEvents drains the server's tool-event stream into the log,
// one line per completed tool call. Returns when the stream closes.
func watchToolEvents(events <-chan pubsub.Event[mcp.ToolEvent]) {
	for ev := range events {
		call := ev.Payload
		if call.Type == mcp.ToolError {
			log.Error(log.CatMCP, "Tool call failed",
				"tool", call.ToolName,
				"duration", call.Duration.String(),
				"error", call.Error)
			continue
		}
		log.Info(log.CatMCP, "Tool call completed",
			"tool", call.ToolName,
			"duration", call.Duration.String())
	}
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// SetVersion sets the version string (called from main with ldflags)
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}
