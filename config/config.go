package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the content service
type Config struct {
	General     GeneralConfig     `mapstructure:"general"`
	Server      ServerConfig      `mapstructure:"server"`
	Providers   ProvidersConfig   `mapstructure:"providers"`
	Feeds       FeedsConfig       `mapstructure:"feeds"`
	Aggregation AggregationConfig `mapstructure:"aggregation"`
	Generation  GenerationConfig  `mapstructure:"generation"`
	Storage     StorageConfig     `mapstructure:"storage"`
	Schedule    ScheduleConfig    `mapstructure:"schedule"`
}

// GeneralConfig contains general application settings
type GeneralConfig struct {
	Debug    bool   `mapstructure:"debug"`
	LogLevel string `mapstructure:"log_level"`
}

// ServerConfig contains HTTP server and auth settings
type ServerConfig struct {
	Address   string `mapstructure:"address"`
	JWTSecret string `mapstructure:"jwt_secret"`
}

// ProvidersConfig contains LLM provider credentials and the per-use-case
// fallback order.
type ProvidersConfig struct {
	Moonshot ProviderConfig      `mapstructure:"moonshot"`
	DeepSeek ProviderConfig      `mapstructure:"deepseek"`
	Order    map[string][]string `mapstructure:"order"`
}

// ProviderConfig represents a single LLM provider configuration
type ProviderConfig struct {
	APIKey      string        `mapstructure:"api_key"`
	BaseURL     string        `mapstructure:"base_url"`
	Model       string        `mapstructure:"model"`
	Temperature float64       `mapstructure:"temperature"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// Validate checks the fields the adapters cannot default. The API key is
// not required here: adapters fall back to the provider's env var.
func (p ProviderConfig) Validate(name string) error {
	if strings.TrimSpace(p.Model) == "" {
		return fmt.Errorf("providers.%s.model required", name)
	}
	if p.Timeout < 0 {
		return fmt.Errorf("providers.%s.timeout must be >= 0", name)
	}
	return nil
}

// FeedsConfig lists the news sources the digest pipeline reads from.
type FeedsConfig struct {
	RSS       []RSSFeedConfig `mapstructure:"rss"`
	NewsAPI   NewsAPIConfig   `mapstructure:"newsapi"`
	Chronicle ChronicleConfig `mapstructure:"chronicle"`
	Timeout   time.Duration   `mapstructure:"timeout"`
}

// RSSFeedConfig describes one RSS/Atom feed.
type RSSFeedConfig struct {
	ID     string  `mapstructure:"id"`
	URL    string  `mapstructure:"url"`
	Trust  float64 `mapstructure:"trust"`
	Locale string  `mapstructure:"locale"`
}

// NewsAPIConfig contains NewsAPI settings
type NewsAPIConfig struct {
	APIKey     string        `mapstructure:"api_key"`
	Endpoint   string        `mapstructure:"endpoint"`
	Terms      []string      `mapstructure:"terms"`
	Window     time.Duration `mapstructure:"window"`
	MaxResults int           `mapstructure:"max_results"`
	Trust      float64       `mapstructure:"trust"`
}

// ChronicleConfig points at the expedition chronicle site we scrape.
type ChronicleConfig struct {
	BaseURL string  `mapstructure:"base_url"`
	Trust   float64 `mapstructure:"trust"`
	Locale  string  `mapstructure:"locale"`
}

// AggregationConfig tunes candidate scoring and selection.
type AggregationConfig struct {
	TopN          int                `mapstructure:"top_n"`
	MaxPerLocale  int                `mapstructure:"max_per_locale"`
	Keywords      map[string]float64 `mapstructure:"keywords"`
	LocaleBoost   float64            `mapstructure:"locale_boost"`
	BoostLocale   string             `mapstructure:"boost_locale"`
	RecencyWindow time.Duration      `mapstructure:"recency_window"`
}

func (a AggregationConfig) Validate() error {
	if a.TopN <= 0 {
		return fmt.Errorf("aggregation.top_n must be > 0")
	}
	if a.MaxPerLocale < 0 {
		return fmt.Errorf("aggregation.max_per_locale cannot be negative")
	}
	return nil
}

// GenerationConfig bounds background generation work.
type GenerationConfig struct {
	Window        time.Duration `mapstructure:"window"`
	PollInterval  time.Duration `mapstructure:"poll_interval"`
	TaskRetention time.Duration `mapstructure:"task_retention"`
	Workers       int           `mapstructure:"workers"`
}

func (g GenerationConfig) Validate() error {
	if g.Window <= 0 {
		return fmt.Errorf("generation.window must be > 0")
	}
	if g.Workers <= 0 {
		return fmt.Errorf("generation.workers must be > 0")
	}
	return nil
}

// ScheduleConfig drives the pre-generation cron.
type ScheduleConfig struct {
	Cron                string `mapstructure:"cron"`
	CleanupCron         string `mapstructure:"cleanup_cron"`
	DigestRetentionDays int    `mapstructure:"digest_retention_days"`
}

// StorageConfig contains storage and persistence settings
type StorageConfig struct {
	Redis    RedisConfig    `mapstructure:"redis"`
	Postgres PostgresConfig `mapstructure:"postgres"`
}

// RedisConfig contains Redis connection settings
type RedisConfig struct {
	Host     string        `mapstructure:"host"`
	Port     string        `mapstructure:"port"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

func (r RedisConfig) Validate() error {
	if strings.TrimSpace(r.Host) == "" {
		return fmt.Errorf("storage.redis.host required")
	}
	if strings.TrimSpace(r.Port) == "" {
		return fmt.Errorf("storage.redis.port required")
	}
	return nil
}

// PostgresConfig contains Postgres connection settings
type PostgresConfig struct {
	URL      string        `mapstructure:"url"`
	Host     string        `mapstructure:"host"`
	Port     string        `mapstructure:"port"`
	User     string        `mapstructure:"user"`
	Password string        `mapstructure:"password"`
	DBName   string        `mapstructure:"dbname"`
	SSLMode  string        `mapstructure:"sslmode"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

func (p PostgresConfig) Validate() error {
	if strings.TrimSpace(p.URL) != "" {
		return nil
	}
	if strings.TrimSpace(p.Host) == "" {
		return fmt.Errorf("storage.postgres.host required when url is not provided")
	}
	if strings.TrimSpace(p.Port) == "" {
		return fmt.Errorf("storage.postgres.port required when url is not provided")
	}
	if strings.TrimSpace(p.DBName) == "" {
		return fmt.Errorf("storage.postgres.dbname required when url is not provided")
	}
	return nil
}

// DSN builds a lib/pq connection string from the discrete fields unless a
// full URL was provided.
func (p PostgresConfig) DSN() string {
	if strings.TrimSpace(p.URL) != "" {
		return p.URL
	}
	sslmode := p.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		p.User, p.Password, p.Host, p.Port, p.DBName, sslmode)
}

// LoadConfig loads config from file
func LoadConfig(path string) *Config {
	viper.SetConfigName("config") // name of config file (without extension)
	viper.SetConfigType("json")   // REQUIRED if the config file does not have the extension in the name
	viper.SetDefault("server.address", ":8080")
	viper.SetDefault("providers.order", map[string][]string{
		"historical": {"moonshot", "deepseek"},
		"digest":     {"deepseek", "moonshot"},
	})
	viper.SetDefault("providers.moonshot.base_url", "https://api.moonshot.ai/v1")
	viper.SetDefault("providers.moonshot.model", "kimi-k2-0711-preview")
	viper.SetDefault("providers.moonshot.timeout", 60*time.Second)
	viper.SetDefault("providers.deepseek.base_url", "https://api.deepseek.com/v1")
	viper.SetDefault("providers.deepseek.model", "deepseek-chat")
	viper.SetDefault("providers.deepseek.timeout", 60*time.Second)
	viper.SetDefault("feeds.timeout", 20*time.Second)
	viper.SetDefault("feeds.newsapi.endpoint", "https://newsapi.org/v2/everything")
	viper.SetDefault("feeds.newsapi.window", 36*time.Hour)
	viper.SetDefault("feeds.newsapi.max_results", 50)
	viper.SetDefault("feeds.newsapi.trust", 0.6)
	viper.SetDefault("aggregation.top_n", 5)
	viper.SetDefault("aggregation.max_per_locale", 2)
	viper.SetDefault("aggregation.locale_boost", 0.15)
	viper.SetDefault("aggregation.boost_locale", "sl")
	viper.SetDefault("aggregation.recency_window", 48*time.Hour)
	viper.SetDefault("generation.window", 2*time.Minute)
	viper.SetDefault("generation.poll_interval", 2*time.Second)
	viper.SetDefault("generation.task_retention", time.Hour)
	viper.SetDefault("generation.workers", 4)
	viper.SetDefault("schedule.cron", "0 6 * * *")
	viper.SetDefault("schedule.cleanup_cron", "0 3 * * 0")
	viper.SetDefault("schedule.digest_retention_days", 30)

	if path == "" {
		viper.AddConfigPath("./app/config") // path to look for the config file in
		viper.AddConfigPath("./config")     // path to look for the config file in
		viper.AddConfigPath(".")            // optionally look for config in the working directory
		exe, _ := os.Executable()
		exeDir := filepath.Dir(exe)
		viper.AddConfigPath(exeDir)                                // bin/
		viper.AddConfigPath(filepath.Join(exeDir, ".."))           // repo root
		viper.AddConfigPath(filepath.Join(exeDir, "..", "config")) // repo root/config
	} else {
		viper.SetConfigFile(path)
	}

	viper.SetEnvPrefix("CONTENTD")
	replacer := strings.NewReplacer(".", "_")
	viper.SetEnvKeyReplacer(replacer)

	viper.AutomaticEnv() // read in environment variables that match (CONTENTD_*)

	err := viper.ReadInConfig() // Find and read the config file
	if err != nil {             // Handle errors reading the config file
		panic(fmt.Errorf("fatal error config file: %w", err))
	}

	// unmarshal config
	var config Config

	if err = viper.Unmarshal(&config); err != nil {
		panic(fmt.Errorf("fatal error config file: %w", err))
	}

	if err := config.Storage.Redis.Validate(); err != nil {
		panic(err)
	}
	if err := config.Storage.Postgres.Validate(); err != nil {
		panic(err)
	}
	if err := config.Providers.Moonshot.Validate("moonshot"); err != nil {
		panic(err)
	}
	if err := config.Providers.DeepSeek.Validate("deepseek"); err != nil {
		panic(err)
	}
	if err := config.Aggregation.Validate(); err != nil {
		panic(err)
	}
	if err := config.Generation.Validate(); err != nil {
		panic(err)
	}
	return &config
}
