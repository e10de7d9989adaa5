package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/RetailPipe/RetailPipe/internal/api"
	"github.com/RetailPipe/RetailPipe/internal/bot"
	"github.com/RetailPipe/RetailPipe/internal/lockfile"
	"github.com/RetailPipe/RetailPipe/internal/store"
	"github.com/RetailPipe/RetailPipe/internal/util"
	"github.com/joho/godotenv"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for RetailPipe state data
	DefaultStateDir = "/var/lib/retailpipe"
	// DefaultDBFileName is the default SQLite database filename
	DefaultDBFileName = "retailpipe.db"
	// DefaultFlowsFileName is the default flow definition file
	DefaultFlowsFileName = "troubleshooting_flows.json"
	// DefaultAPIAddr is the default API listen address
	DefaultAPIAddr = ":8080"
)

func main() {
	initializeLogger()

	config := loadEnvironmentConfig()
	flags := parseCommandLineFlags(config)

	lock, err := lockfile.Acquire(*flags.stateDir)
	if err != nil {
		slog.Error("Failed to lock state directory", "error", err)
		os.Exit(1)
	}
	defer lock.Release()

	st, err := store.Open(*flags.dbDSN)
	if err != nil {
		slog.Error("Failed to open store", "error", err, "dsn_set", *flags.dbDSN != "")
		os.Exit(1)
	}
	defer st.Close()

	dispatcher, err := bot.NewDispatcher(st, buildDispatcherOptions(flags)...)
	if err != nil {
		slog.Error("Failed to build dispatcher", "error", err)
		os.Exit(1)
	}

	server := api.NewServer(dispatcher, buildAPIOptions(flags)...)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("Bootstrapping RetailPipe",
		"state_dir", *flags.stateDir,
		"dsn_type", store.DetectDSNType(*flags.dbDSN),
		"api_addr", *flags.apiAddr)
	if err := server.Run(ctx); err != nil {
		slog.Error("RetailPipe failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("RetailPipe exited successfully")
}

// Config holds environment configuration
type Config struct {
	StateDir    string
	DatabaseURL string
	FlowsPath   string
	APIAddr     string
}

// Flags holds command line flag values
type Flags struct {
	stateDir  *string
	dbDSN     *string
	flowsPath *string
	apiAddr   *string
	docDir    *string
}

// initializeLogger sets up structured logging; RETAILPIPE_DEBUG raises
// the level to debug.
func initializeLogger() {
	level := slog.LevelInfo
	if util.ParseBoolEnv("RETAILPIPE_DEBUG", false) {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
}

// loadEnvironmentConfig loads configuration from environment variables and .env file
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}

	config := Config{
		StateDir:    os.Getenv("RETAILPIPE_STATE_DIR"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		FlowsPath:   os.Getenv("RETAILPIPE_FLOWS"),
		APIAddr:     os.Getenv("API_ADDR"),
	}

	if config.StateDir == "" {
		config.StateDir = DefaultStateDir
		slog.Debug("No RETAILPIPE_STATE_DIR set, using default", "default_state_dir", config.StateDir)
	}
	if config.DatabaseURL == "" {
		config.DatabaseURL = filepath.Join(config.StateDir, DefaultDBFileName)
		slog.Debug("No DATABASE_URL provided, defaulting to SQLite", "sqlite_path", config.DatabaseURL)
	}
	if config.FlowsPath == "" {
		config.FlowsPath = filepath.Join(config.StateDir, DefaultFlowsFileName)
	}
	if config.APIAddr == "" {
		config.APIAddr = DefaultAPIAddr
	}

	slog.Debug("environment variables loaded",
		"RETAILPIPE_STATE_DIR", config.StateDir,
		"DATABASE_URL_SET", config.DatabaseURL != "",
		"RETAILPIPE_FLOWS", config.FlowsPath,
		"API_ADDR", config.APIAddr)
	return config
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		stateDir:  flag.String("state-dir", config.StateDir, "state directory for RetailPipe data (overrides $RETAILPIPE_STATE_DIR)"),
		dbDSN:     flag.String("db-dsn", config.DatabaseURL, "database DSN: SQLite path or Postgres URL (overrides $DATABASE_URL)"),
		flowsPath: flag.String("flows", config.FlowsPath, "troubleshooting flow definition file (overrides $RETAILPIPE_FLOWS)"),
		apiAddr:   flag.String("api-addr", config.APIAddr, "API server address (overrides $API_ADDR)"),
		docDir:    flag.String("doc-dir", "", "directory for generated shipping documents (default <state-dir>/generated)"),
	}
	flag.Parse()

	// Follow an overridden state directory unless the DSN was set explicitly.
	if *flags.stateDir != config.StateDir && *flags.dbDSN == filepath.Join(config.StateDir, DefaultDBFileName) {
		*flags.dbDSN = filepath.Join(*flags.stateDir, DefaultDBFileName)
		slog.Debug("Updated dbDSN based on state directory", "new_state_dir", *flags.stateDir)
	}
	if *flags.flowsPath == filepath.Join(config.StateDir, DefaultFlowsFileName) && *flags.stateDir != config.StateDir {
		*flags.flowsPath = filepath.Join(*flags.stateDir, DefaultFlowsFileName)
	}
	if *flags.docDir == "" {
		*flags.docDir = filepath.Join(*flags.stateDir, "generated")
	}

	slog.Debug("flags parsed",
		"stateDir", *flags.stateDir,
		"dbDSN_set", *flags.dbDSN != "",
		"flowsPath", *flags.flowsPath,
		"apiAddr", *flags.apiAddr,
		"docDir", *flags.docDir)
	return flags
}

// buildDispatcherOptions constructs dispatcher configuration options
func buildDispatcherOptions(flags Flags) []bot.Option {
	opts := []bot.Option{
		bot.WithDocDir(*flags.docDir),
	}
	if *flags.flowsPath != "" {
		opts = append(opts, bot.WithFlowsPath(*flags.flowsPath))
	}
	return opts
}

// buildAPIOptions constructs API server configuration options
func buildAPIOptions(flags Flags) []api.Option {
	var opts []api.Option
	if *flags.apiAddr != "" {
		opts = append(opts, api.WithAddr(*flags.apiAddr))
	}
	opts = append(opts, api.WithDocDir(*flags.docDir))
	return opts
}
