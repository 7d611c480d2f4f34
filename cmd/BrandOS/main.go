package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/adrg/xdg"
	"github.com/joho/godotenv"
	"github.com/mdp/qrterminal/v3"

	"github.com/BTreeMap/BrandOS/internal/api"
	"github.com/BTreeMap/BrandOS/internal/catalog"
	"github.com/BTreeMap/BrandOS/internal/flow"
	"github.com/BTreeMap/BrandOS/internal/lockfile"
	"github.com/BTreeMap/BrandOS/internal/store"
	"github.com/BTreeMap/BrandOS/internal/tui"
	"github.com/BTreeMap/BrandOS/internal/util"
)

// Default configuration constants
const (
	// DefaultDBFileName is the default SQLite database filename
	DefaultDBFileName = "brandos.db"
	// DefaultLogFileName receives logs while the terminal UI owns the screen
	DefaultLogFileName = "brandos.log"
)

// DefaultStateDir is the per-user data directory for BrandOS state.
func DefaultStateDir() string {
	return filepath.Join(xdg.DataHome, "brandos")
}

func main() {
	initializeLogger(os.Stdout, false)

	config := loadEnvironmentConfig()
	flags, err := parseCommandLineFlags(flag.CommandLine, os.Args[1:], config)
	if err != nil {
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, flags, os.Stdout); err != nil {
		slog.Error("BrandOS failed to run", "error", err)
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	slog.Info("BrandOS exited successfully")
}

// Config holds environment configuration
type Config struct {
	StateDir        string
	DatabaseURL     string
	APIAddr         string
	ChatDelay       time.Duration
	AnalysisDelay   time.Duration
	CatalogPath     string
	ShutdownTimeout time.Duration
	Debug           bool
}

// Flags holds command line flag values
type Flags struct {
	stateDir        *string
	dbDSN           *string
	apiAddr         *string
	chatDelay       *time.Duration
	analysisDelay   *time.Duration
	catalogPath     *string
	shutdownTimeout *time.Duration
	debug           *bool
	tui             *bool
	session         *string
	qr              *bool
	memory          *bool
}

// initializeLogger installs a text handler on w at Debug or Info level.
func initializeLogger(w io.Writer, debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
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
		StateDir:        util.GetEnvOrDefault("BRANDOS_STATE_DIR", DefaultStateDir()),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		APIAddr:         util.GetEnvOrDefault("API_ADDR", api.DefaultAddr),
		ChatDelay:       util.ParseDurationEnv("BRANDOS_CHAT_DELAY", flow.DefaultChatReplyDelay),
		AnalysisDelay:   util.ParseDurationEnv("BRANDOS_ANALYSIS_DELAY", flow.DefaultAnalysisDelay),
		CatalogPath:     os.Getenv("BRANDOS_CATALOG"),
		ShutdownTimeout: util.ParseDurationEnv("BRANDOS_SHUTDOWN_TIMEOUT", api.DefaultShutdownTimeout),
		Debug:           util.ParseBoolEnv("BRANDOS_DEBUG", false),
	}

	// If no database URL is provided, default to SQLite in the state directory
	if config.DatabaseURL == "" {
		config.DatabaseURL = filepath.Join(config.StateDir, DefaultDBFileName)
		slog.Debug("No DATABASE_URL provided, defaulting to SQLite", "sqlite_path", config.DatabaseURL)
	}

	slog.Debug("environment variables loaded",
		"BRANDOS_STATE_DIR", config.StateDir,
		"DATABASE_URL_TYPE", store.DetectDSNType(config.DatabaseURL),
		"API_ADDR", config.APIAddr,
		"BRANDOS_CHAT_DELAY", config.ChatDelay,
		"BRANDOS_ANALYSIS_DELAY", config.AnalysisDelay,
		"BRANDOS_CATALOG", config.CatalogPath,
		"BRANDOS_SHUTDOWN_TIMEOUT", config.ShutdownTimeout,
		"BRANDOS_DEBUG", config.Debug)

	return config
}

// parseCommandLineFlags parses args with environment defaults
func parseCommandLineFlags(fs *flag.FlagSet, args []string, config Config) (Flags, error) {
	flags := Flags{
		stateDir:        fs.String("state-dir", config.StateDir, "state directory for BrandOS data (overrides $BRANDOS_STATE_DIR)"),
		dbDSN:           fs.String("db-dsn", config.DatabaseURL, "session database: SQLite path or PostgreSQL DSN (overrides $DATABASE_URL)"),
		apiAddr:         fs.String("api-addr", config.APIAddr, "API server address (overrides $API_ADDR)"),
		chatDelay:       fs.Duration("chat-delay", config.ChatDelay, "latency of the mock chat reply (overrides $BRANDOS_CHAT_DELAY)"),
		analysisDelay:   fs.Duration("analysis-delay", config.AnalysisDelay, "latency of the mock document analysis (overrides $BRANDOS_ANALYSIS_DELAY)"),
		catalogPath:     fs.String("catalog", config.CatalogPath, "YAML catalog replacing the built-in one (overrides $BRANDOS_CATALOG)"),
		shutdownTimeout: fs.Duration("shutdown-timeout", config.ShutdownTimeout, "grace period for in-flight API requests (overrides $BRANDOS_SHUTDOWN_TIMEOUT)"),
		debug:           fs.Bool("debug", config.Debug, "enable debug logging (overrides $BRANDOS_DEBUG)"),
		tui:             fs.Bool("tui", false, "run the terminal UI instead of the API server"),
		session:         fs.String("session", "", "session ID to resume"),
		qr:              fs.Bool("qr", false, "print the session URL as a terminal QR code when the API starts"),
		memory:          fs.Bool("memory", false, "keep sessions in memory only"),
	}

	if err := fs.Parse(args); err != nil {
		return Flags{}, err
	}
	if *flags.chatDelay < 0 || *flags.analysisDelay < 0 || *flags.shutdownTimeout < 0 {
		err := errors.New("delays must not be negative")
		fmt.Fprintln(fs.Output(), err)
		return Flags{}, err
	}

	slog.Debug("flags parsed",
		"stateDir", *flags.stateDir,
		"dbDSN_type", store.DetectDSNType(*flags.dbDSN),
		"apiAddr", *flags.apiAddr,
		"chatDelay", *flags.chatDelay,
		"analysisDelay", *flags.analysisDelay,
		"catalog", *flags.catalogPath,
		"tui", *flags.tui,
		"session", *flags.session,
		"memory", *flags.memory)

	// Follow a moved state directory when the DSN is still the derived SQLite default
	if *flags.dbDSN == config.DatabaseURL && config.DatabaseURL == filepath.Join(config.StateDir, DefaultDBFileName) && *flags.stateDir != config.StateDir {
		*flags.dbDSN = filepath.Join(*flags.stateDir, DefaultDBFileName)
		slog.Debug("Updated dbDSN based on state directory", "old_state_dir", config.StateDir, "new_state_dir", *flags.stateDir)
	}

	return flags, nil
}

// run wires the store, the session manager and the chosen front end, and blocks until the
// front end exits or ctx is cancelled.
func run(ctx context.Context, flags Flags, stdout io.Writer) error {
	if *flags.tui {
		logFile, err := openLogFile(*flags.stateDir)
		if err != nil {
			return err
		}
		defer logFile.Close()
		initializeLogger(logFile, *flags.debug)
	} else {
		initializeLogger(stdout, *flags.debug)
	}

	mode := "api"
	if *flags.tui {
		mode = "tui"
	}

	if usesLocalDatabase(flags) {
		lock, err := lockfile.AcquireLock(*flags.stateDir, lockfile.WithMode(mode))
		if err != nil {
			return err
		}
		defer lock.Release()
	}

	cat, err := loadCatalog(flags)
	if err != nil {
		return err
	}

	st, err := openStore(flags)
	if err != nil {
		return err
	}
	defer func() {
		if err := st.Close(); err != nil {
			slog.Warn("Failed to close session store", "error", err)
		}
	}()

	manager := flow.NewSessionManager(st, append(buildManagerOptions(flags), flow.WithCatalog(cat))...)
	defer manager.Close()

	slog.Info("Bootstrapping BrandOS", "mode", mode, "state_dir", *flags.stateDir, "store", storeKind(flags))
	if *flags.tui {
		return tui.Run(ctx, manager, cat, *flags.session)
	}

	server := api.NewServer(manager, cat, buildAPIOptions(flags)...)
	if *flags.qr {
		if err := printSessionQR(ctx, manager, server.Addr(), *flags.session, stdout); err != nil {
			return err
		}
	}
	return server.Run(ctx)
}

func openLogFile(stateDir string) (*os.File, error) {
	if err := os.MkdirAll(stateDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create state directory %s: %w", stateDir, err)
	}
	path := filepath.Join(stateDir, DefaultLogFileName)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file %s: %w", path, err)
	}
	return f, nil
}

// usesLocalDatabase reports whether the sessions live in a SQLite file that another process
// could open concurrently.
func usesLocalDatabase(flags Flags) bool {
	return !*flags.memory && store.DetectDSNType(*flags.dbDSN) == "sqlite3"
}

func storeKind(flags Flags) string {
	if *flags.memory {
		return "memory"
	}
	return store.DetectDSNType(*flags.dbDSN)
}

// loadCatalog returns the catalog named by -catalog, or the embedded one.
func loadCatalog(flags Flags) (*catalog.Catalog, error) {
	if *flags.catalogPath == "" {
		return catalog.Load()
	}
	return catalog.LoadFile(*flags.catalogPath)
}

// buildStoreOptions constructs store configuration options
func buildStoreOptions(flags Flags) []store.Option {
	var storeOpts []store.Option
	if *flags.dbDSN == "" {
		return storeOpts
	}
	if store.DetectDSNType(*flags.dbDSN) == "postgres" {
		slog.Debug("Detected PostgreSQL DSN, configuring PostgreSQL store", "dsn_type", "postgresql")
		storeOpts = append(storeOpts, store.WithPostgresDSN(*flags.dbDSN))
	} else {
		slog.Debug("Detected SQLite DSN, configuring SQLite store", "dsn_type", "sqlite", "db_path", *flags.dbDSN)
		storeOpts = append(storeOpts, store.WithSQLiteDSN(*flags.dbDSN))
	}
	return storeOpts
}

// openStore opens the configured session store.
func openStore(flags Flags) (store.Store, error) {
	if *flags.memory || *flags.dbDSN == "" {
		slog.Debug("Using in-memory session store")
		return store.NewInMemoryStore(), nil
	}
	opts := buildStoreOptions(flags)
	if store.DetectDSNType(*flags.dbDSN) == "postgres" {
		st, err := store.NewPostgresStore(opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to open PostgreSQL store: %w", err)
		}
		return st, nil
	}
	st, err := store.NewSQLiteStore(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite store: %w", err)
	}
	return st, nil
}

// buildManagerOptions constructs session manager options
func buildManagerOptions(flags Flags) []flow.ManagerOption {
	return []flow.ManagerOption{
		flow.WithChatReplyDelay(*flags.chatDelay),
		flow.WithAnalysisDelay(*flags.analysisDelay),
	}
}

// buildAPIOptions constructs API server configuration options
func buildAPIOptions(flags Flags) []api.Option {
	var apiOpts []api.Option
	if *flags.apiAddr != "" {
		apiOpts = append(apiOpts, api.WithAddr(*flags.apiAddr))
	}
	if *flags.shutdownTimeout > 0 {
		apiOpts = append(apiOpts, api.WithShutdownTimeout(*flags.shutdownTimeout))
	}
	return apiOpts
}

// sessionURL is the address a client on this machine uses to reach a session.
func sessionURL(addr, sessionID string) string {
	host := addr
	if strings.HasPrefix(host, ":") {
		host = "localhost" + host
	}
	if strings.HasPrefix(host, "0.0.0.0:") {
		host = "localhost" + strings.TrimPrefix(host, "0.0.0.0")
	}
	return "http://" + host + "/sessions/" + sessionID
}

// printSessionQR resumes or creates a session and prints its URL as a QR code. Wildcard
// listen addresses resolve to localhost; pass a host in -addr to reach it from another device.
func printSessionQR(ctx context.Context, manager *flow.SessionManager, addr, sessionID string, w io.Writer) error {
	if sessionID == "" {
		snap, err := manager.Create(ctx)
		if err != nil {
			return fmt.Errorf("failed to create session for QR code: %w", err)
		}
		sessionID = snap.SessionID
	} else if _, err := manager.Get(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to resume session %s: %w", sessionID, err)
	}

	url := sessionURL(addr, sessionID)
	slog.Info("Session ready", "sessionID", sessionID, "url", url)
	qrterminal.GenerateHalfBlock(url, qrterminal.L, w)
	fmt.Fprintln(w, url)
	return nil
}
