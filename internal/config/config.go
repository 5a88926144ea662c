package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/maltedev/catalog-crawler/internal/database"
)

type Config struct {
	Server   ServerConfig
	Crawler  CrawlerConfig
	Browser  BrowserConfig
	Database DatabaseConfig
	Mongo    MongoConfig
	Redis    RedisConfig
	Logging  LoggingConfig
}

type ServerConfig struct {
	Port            string
	Host            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

type CrawlerConfig struct {
	Backend      string
	OutputDir    string
	RateLimitMin time.Duration
	RateLimitMax time.Duration
	ResultLimit  int
	MaxReviews   int
	Proxy        string
	MirrorURL    string
	FetchTimeout time.Duration
	DedupTTL     time.Duration
	SitesFile    string
}

type BrowserConfig struct {
	Headless           bool
	Timeout            time.Duration
	ViewportWidth      int
	ViewportHeight     int
	UserAgents         []string
	ManualVerification bool
	CookiesDir         string
	RequestLogDir      string
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
	MaxConns int
	// OutboxStream enables the outbox for written records when set.
	OutboxStream string
}

type MongoConfig struct {
	URI      string
	Database string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Stream   string
}

type LoggingConfig struct {
	Level  string
	Format string
	File   string
}

func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:            getEnvOrDefault("SERVER_PORT", "9090"),
			Host:            getEnvOrDefault("SERVER_HOST", "127.0.0.1"),
			ReadTimeout:     getDurationOrDefault("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getDurationOrDefault("SERVER_WRITE_TIMEOUT", 30*time.Second),
			ShutdownTimeout: getDurationOrDefault("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Crawler: CrawlerConfig{
			Backend:      getEnvOrDefault("CRAWLER_BACKEND", "browser"),
			OutputDir:    getEnvOrDefault("CRAWLER_OUTPUT_DIR", "output"),
			RateLimitMin: getDurationOrDefault("CRAWLER_RATE_LIMIT_MIN", 2*time.Second),
			RateLimitMax: getDurationOrDefault("CRAWLER_RATE_LIMIT_MAX", 5*time.Second),
			ResultLimit:  getIntOrDefault("CRAWLER_RESULT_LIMIT", 50),
			MaxReviews:   getIntOrDefault("CRAWLER_MAX_REVIEWS", 0),
			Proxy:        getEnvOrDefault("CRAWLER_PROXY", ""),
			MirrorURL:    getEnvOrDefault("CRAWLER_MIRROR_URL", "https://r.jina.ai/"),
			FetchTimeout: getDurationOrDefault("CRAWLER_FETCH_TIMEOUT", 30*time.Second),
			DedupTTL:     getDurationOrDefault("CRAWLER_DEDUP_TTL", 24*time.Hour),
			SitesFile:    getEnvOrDefault("CRAWLER_SITES_FILE", ""),
		},
		Browser: BrowserConfig{
			Headless:           getBoolOrDefault("BROWSER_HEADLESS", true),
			Timeout:            getDurationOrDefault("BROWSER_TIMEOUT", 30*time.Second),
			ViewportWidth:      getIntOrDefault("BROWSER_VIEWPORT_WIDTH", 1920),
			ViewportHeight:     getIntOrDefault("BROWSER_VIEWPORT_HEIGHT", 1080),
			UserAgents:         getStringSliceOrDefault("BROWSER_USER_AGENTS", nil),
			ManualVerification: getBoolOrDefault("BROWSER_MANUAL_VERIFICATION", false),
			CookiesDir:         getEnvOrDefault("BROWSER_COOKIES_DIR", "cookies"),
			RequestLogDir:      getEnvOrDefault("BROWSER_REQUEST_LOG_DIR", "logs"),
		},
		Database: DatabaseConfig{
			Host:         getEnvOrDefault("DB_HOST", "localhost"),
			Port:         getIntOrDefault("DB_PORT", 5432),
			User:         getEnvOrDefault("DB_USER", "postgres"),
			Password:     getEnvOrDefault("DB_PASSWORD", ""),
			DBName:       getEnvOrDefault("DB_NAME", "catalog"),
			SSLMode:      getEnvOrDefault("DB_SSL_MODE", "disable"),
			MaxConns:     getIntOrDefault("DB_MAX_CONNS", 4),
			OutboxStream: getEnvOrDefault("DB_OUTBOX_STREAM", ""),
		},
		Mongo: MongoConfig{
			URI:      getEnvOrDefault("MONGO_URI", "mongodb://localhost:27017"),
			Database: getEnvOrDefault("MONGO_DATABASE", "catalog"),
		},
		Redis: RedisConfig{
			Addr:     getEnvOrDefault("REDIS_ADDR", "localhost:6379"),
			Password: getEnvOrDefault("REDIS_PASSWORD", ""),
			DB:       getIntOrDefault("REDIS_DB", 0),
			Stream:   getEnvOrDefault("REDIS_STREAM", "stream:catalog_records"),
		},
		Logging: LoggingConfig{
			Level:  getEnvOrDefault("LOG_LEVEL", "info"),
			Format: getEnvOrDefault("LOG_FORMAT", "json"),
			File:   getEnvOrDefault("LOG_FILE", ""),
		},
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Crawler.RateLimitMin > c.Crawler.RateLimitMax {
		return fmt.Errorf("CRAWLER_RATE_LIMIT_MIN cannot be greater than CRAWLER_RATE_LIMIT_MAX")
	}

	if c.Crawler.ResultLimit < 0 {
		return fmt.Errorf("CRAWLER_RESULT_LIMIT cannot be negative")
	}

	if c.Crawler.MaxReviews < 0 {
		return fmt.Errorf("CRAWLER_MAX_REVIEWS cannot be negative")
	}

	switch c.Crawler.Backend {
	case "browser", "static":
	default:
		return fmt.Errorf("CRAWLER_BACKEND must be browser or static, got %q", c.Crawler.Backend)
	}

	if c.Browser.ViewportWidth < 1 || c.Browser.ViewportHeight < 1 {
		return fmt.Errorf("browser viewport must be positive")
	}

	return nil
}

// PostgresConfig maps the database section onto the pool settings.
func (c *Config) PostgresConfig() database.Config {
	return database.Config{
		Host:     c.Database.Host,
		Port:     c.Database.Port,
		User:     c.Database.User,
		Password: c.Database.Password,
		Database: c.Database.DBName,
		SSLMode:  c.Database.SSLMode,
		MaxConns: int32(c.Database.MaxConns),
	}
}

// SiteOverride carries per-site settings from the sites file and the
// environment.
type SiteOverride struct {
	BaseURL        string `yaml:"base_url"`
	Currency       string `yaml:"currency"`
	AcceptLanguage string `yaml:"accept_language"`
	Email          string `yaml:"email"`
	Password       string `yaml:"password"`
}

type SitesFile struct {
	Sites map[string]SiteOverride `yaml:"sites"`
}

// LoadSites reads the optional sites file. An empty path yields no overrides.
func LoadSites(path string) (map[string]SiteOverride, error) {
	if path == "" {
		return map[string]SiteOverride{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read sites file: %w", err)
	}
	var file SitesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse sites file: %w", err)
	}
	out := make(map[string]SiteOverride, len(file.Sites))
	for name, o := range file.Sites {
		out[strings.ToLower(strings.TrimSpace(name))] = o
	}
	return out, nil
}

// SiteSettings merges the file entry for site with its environment variables
// (SHOPEE_EMAIL, SHOPEE_BASE_URL, ...). The environment wins.
func SiteSettings(overrides map[string]SiteOverride, site string) SiteOverride {
	o := overrides[site]
	prefix := strings.ToUpper(site) + "_"
	o.BaseURL = getEnvOrDefault(prefix+"BASE_URL", o.BaseURL)
	o.Currency = getEnvOrDefault(prefix+"CURRENCY", o.Currency)
	o.AcceptLanguage = getEnvOrDefault(prefix+"ACCEPT_LANGUAGE", o.AcceptLanguage)
	o.Email = getEnvOrDefault(prefix+"EMAIL", o.Email)
	o.Password = getEnvOrDefault(prefix+"PASSWORD", o.Password)
	return o
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getStringSliceOrDefault(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		return strings.Split(value, ",")
	}
	return defaultValue
}
