package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/Vulimwa/hifadhi-ussd/internal/api"
	"github.com/Vulimwa/hifadhi-ussd/internal/cache"
	"github.com/Vulimwa/hifadhi-ussd/internal/i18n"
	"github.com/Vulimwa/hifadhi-ussd/internal/models"
	"github.com/Vulimwa/hifadhi-ussd/internal/sms"
	"github.com/Vulimwa/hifadhi-ussd/internal/store"
	"github.com/Vulimwa/hifadhi-ussd/internal/ussd"
	"github.com/joho/godotenv"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for Hifadhi Link state data
	DefaultStateDir = "/var/lib/hifadhi"
	// DefaultDBFileName is the default SQLite database filename
	DefaultDBFileName = "hifadhi.db"
)

func main() {
	// Initialize structured logger
	initializeLogger()

	// Load environment configuration
	config := loadEnvironmentConfig()

	// Parse command line flags
	flags := parseCommandLineFlags(config)

	// Ensure required directories exist
	if err := ensureDirectoriesExist(flags); err != nil {
		slog.Error("Failed to create required directories", "error", err)
		os.Exit(1)
	}

	st, err := buildStore(flags)
	if err != nil {
		slog.Error("Failed to open store", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	sessionCache := buildCache(flags)
	notifier := buildNotifier()
	catalog := i18n.NewCatalog(parseDefaultLanguage(*flags.defaultLang))

	decoder := ussd.NewDecoder(st, sessionCache, catalog, notifier, buildDecoderOptions(flags)...)
	server := api.NewServer(decoder, st, buildAPIOptions(flags)...)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	slog.Info("Bootstrapping Hifadhi Link USSD gateway")
	slog.Debug("Final configuration", "state_dir", *flags.stateDir, "dsn_set", *flags.dbDSN != "", "api_addr", *flags.apiAddr, "redis_set", *flags.redisAddr != "")
	if err := server.Run(ctx); err != nil {
		slog.Error("Hifadhi Link failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("Hifadhi Link exited successfully")
}

// Config holds environment configuration
type Config struct {
	DbDriver    string
	DatabaseURL string
	StateDir    string
	APIAddr     string
	AdminToken  string
	DefaultLang string
	Wards       string
	RedisAddr   string
	RedisPass   string
	RedisDB     string
	CountryCode string
}

// Flags holds command line flag values
type Flags struct {
	stateDir    *string
	dbDriver    *string
	dbDSN       *string
	apiAddr     *string
	adminToken  *string
	defaultLang *string
	wards       *string
	redisAddr   *string
	redisPass   *string
	redisDB     *string
	countryCode *string
}

// initializeLogger sets up structured logging with debug level
func initializeLogger() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
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
		DbDriver:    os.Getenv("DB_DRIVER"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		StateDir:    os.Getenv("HIFADHI_STATE_DIR"),
		APIAddr:     os.Getenv("API_ADDR"),
		AdminToken:  os.Getenv("ADMIN_TOKEN"),
		DefaultLang: os.Getenv("DEFAULT_LANGUAGE"),
		Wards:       os.Getenv("WARDS"),
		RedisAddr:   os.Getenv("REDIS_ADDR"),
		RedisPass:   os.Getenv("REDIS_PASSWORD"),
		RedisDB:     os.Getenv("REDIS_DB"),
		CountryCode: os.Getenv("COUNTRY_CODE"),
	}

	// Set default state directory if not specified
	if config.StateDir == "" {
		config.StateDir = DefaultStateDir
		slog.Debug("No HIFADHI_STATE_DIR set, using default", "default_state_dir", config.StateDir)
	} else {
		slog.Debug("HIFADHI_STATE_DIR found in environment", "state_dir", config.StateDir)
	}

	// If no database URL is provided, default to SQLite in the state directory
	if config.DatabaseURL == "" {
		config.DatabaseURL = filepath.Join(config.StateDir, DefaultDBFileName)
		slog.Debug("No database DSN provided, defaulting to SQLite", "sqlite_path", config.DatabaseURL)
	}

	slog.Debug("environment variables loaded",
		"DB_DRIVER", config.DbDriver,
		"DATABASE_URL_SET", config.DatabaseURL != "",
		"HIFADHI_STATE_DIR", config.StateDir,
		"API_ADDR", config.APIAddr,
		"ADMIN_TOKEN_SET", config.AdminToken != "",
		"DEFAULT_LANGUAGE", config.DefaultLang,
		"WARDS_SET", config.Wards != "",
		"REDIS_ADDR", config.RedisAddr)

	return config
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		stateDir:    flag.String("state-dir", config.StateDir, "state directory for Hifadhi Link data (overrides $HIFADHI_STATE_DIR)"),
		dbDriver:    flag.String("db-driver", config.DbDriver, "database driver, sqlite3 or postgres (overrides $DB_DRIVER)"),
		dbDSN:       flag.String("db-dsn", config.DatabaseURL, "database DSN (overrides $DATABASE_URL)"),
		apiAddr:     flag.String("api-addr", config.APIAddr, "API server address (overrides $API_ADDR)"),
		adminToken:  flag.String("admin-token", config.AdminToken, "shared token for admin endpoints (overrides $ADMIN_TOKEN)"),
		defaultLang: flag.String("default-language", config.DefaultLang, "default service language, EN or SW (overrides $DEFAULT_LANGUAGE)"),
		wards:       flag.String("wards", config.Wards, "comma-separated ward list (overrides $WARDS)"),
		redisAddr:   flag.String("redis-addr", config.RedisAddr, "Redis address for the session cache (overrides $REDIS_ADDR)"),
		redisPass:   flag.String("redis-password", config.RedisPass, "Redis password (overrides $REDIS_PASSWORD)"),
		redisDB:     flag.String("redis-db", config.RedisDB, "Redis database number (overrides $REDIS_DB)"),
		countryCode: flag.String("country-code", config.CountryCode, "default phone country code prefix (overrides $COUNTRY_CODE)"),
	}

	flag.Parse()

	slog.Debug("flags parsed",
		"stateDir", *flags.stateDir,
		"dbDriver", *flags.dbDriver,
		"dbDSN_set", *flags.dbDSN != "",
		"apiAddr", *flags.apiAddr,
		"adminTokenSet", *flags.adminToken != "",
		"defaultLang", *flags.defaultLang,
		"wards", *flags.wards,
		"redisAddr", *flags.redisAddr)

	// Update database DSN if not explicitly set but state directory is provided
	if *flags.dbDSN == config.DatabaseURL && config.DatabaseURL == filepath.Join(config.StateDir, DefaultDBFileName) && *flags.stateDir != config.StateDir {
		*flags.dbDSN = filepath.Join(*flags.stateDir, DefaultDBFileName)
		slog.Debug("Updated dbDSN based on state directory", "dsn_updated", true, "old_state_dir", config.StateDir, "new_state_dir", *flags.stateDir)
	}

	return flags
}

// isPostgresDSN reports whether the DSN targets PostgreSQL rather than a
// SQLite file path.
func isPostgresDSN(dsn string) bool {
	return strings.Contains(dsn, "postgres://") || strings.Contains(dsn, "postgresql://") || strings.Contains(dsn, "host=")
}

// ensureDirectoriesExist creates necessary directories for file-based storage
func ensureDirectoriesExist(flags Flags) error {
	if !isPostgresDSN(*flags.dbDSN) {
		stateDir := filepath.Dir(*flags.dbDSN)
		slog.Debug("Creating state directory for file-based database", "state_dir", stateDir)
		if err := os.MkdirAll(stateDir, 0755); err != nil {
			slog.Error("Failed to create state directory", "error", err, "state_dir", stateDir)
			return err
		}
	}
	return nil
}

// buildStore opens the configured database backend.
func buildStore(flags Flags) (store.Store, error) {
	if *flags.dbDriver == "postgres" || isPostgresDSN(*flags.dbDSN) {
		slog.Debug("Detected PostgreSQL DSN, configuring PostgreSQL store", "dsn_set", true)
		return store.NewPostgresStore(store.WithPostgresDSN(*flags.dbDSN))
	}
	slog.Debug("Detected SQLite DSN, configuring SQLite store", "db_path", *flags.dbDSN)
	return store.NewSQLiteStore(store.WithSQLiteDSN(*flags.dbDSN))
}

// buildCache selects Redis when configured and falls back to the in-process cache.
func buildCache(flags Flags) cache.Cache {
	if *flags.redisAddr == "" {
		slog.Debug("No Redis address provided, using in-memory session cache")
		return cache.NewMemoryCache()
	}
	db := 0
	if *flags.redisDB != "" {
		parsed, err := strconv.Atoi(*flags.redisDB)
		if err != nil {
			slog.Warn("Invalid REDIS_DB value, using database 0", "value", *flags.redisDB, "error", err)
		} else {
			db = parsed
		}
	}
	slog.Debug("Configuring Redis session cache", "addr", *flags.redisAddr, "db", db)
	return cache.NewRedisCache(*flags.redisAddr, *flags.redisPass, db)
}

// buildNotifier uses Twilio when credentials are present, otherwise logs SMS intents.
func buildNotifier() sms.Notifier {
	if os.Getenv("TWILIO_ACCOUNT_SID") == "" {
		slog.Debug("No Twilio credentials provided, SMS sends will be logged only")
		return sms.NewLogNotifier()
	}
	notifier, err := sms.NewTwilioNotifier()
	if err != nil {
		slog.Warn("Failed to configure Twilio, SMS sends will be logged only", "error", err)
		return sms.NewLogNotifier()
	}
	slog.Debug("Configured Twilio SMS notifier")
	return notifier
}

// parseDefaultLanguage maps an environment value to a supported language.
func parseDefaultLanguage(v string) models.Language {
	lang := models.Language(strings.ToUpper(strings.TrimSpace(v)))
	if !models.IsValidLanguage(lang) {
		return models.LanguageEnglish
	}
	return lang
}

// buildDecoderOptions constructs decoder configuration options
func buildDecoderOptions(flags Flags) []ussd.Option {
	var opts []ussd.Option
	if *flags.wards != "" {
		var wards []string
		for _, w := range strings.Split(*flags.wards, ",") {
			if w = strings.TrimSpace(w); w != "" {
				wards = append(wards, w)
			}
		}
		if len(wards) > 0 {
			opts = append(opts, ussd.WithWards(wards))
		}
	}
	if *flags.countryCode != "" {
		opts = append(opts, ussd.WithCountryCode(*flags.countryCode))
	}
	return opts
}

// buildAPIOptions constructs API server configuration options
func buildAPIOptions(flags Flags) []api.Option {
	var opts []api.Option
	if *flags.apiAddr != "" {
		opts = append(opts, api.WithAddr(*flags.apiAddr))
	}
	if *flags.adminToken != "" {
		opts = append(opts, api.WithAdminToken(*flags.adminToken))
	}
	return opts
}
