package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	DatabaseURL    string
	ListenAddr     string
	LogPath        string
	LogLevel       string
	AllowedOrigins []string
	Provider       ProviderConfig
	Media          MediaConfig
	Scheduler      SchedulerConfig
	Targets        map[string]*TargetConfig
}

type ProviderConfig struct {
	BaseURL  string
	APIKey   string
	Host     string
	Source   string // external_source tag on every mirrored row
	ProxyURL string // optional, for CDN media downloads
}

type MediaConfig struct {
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	PublicBaseURL   string
}

type SchedulerConfig struct {
	Cron string // default schedule applied to targets without their own
}

// TargetConfig is one named sync scope, loaded from config/targets/*.yaml.
type TargetConfig struct {
	ID          string   `yaml:"id"`
	Name        string   `yaml:"name"`
	LocationIDs []string `yaml:"location_ids"`
	Purpose     string   `yaml:"purpose"`
	Category    string   `yaml:"category"`
	Limit       int      `yaml:"limit"`
	Cron        string   `yaml:"cron"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		ListenAddr:     getEnv("LISTEN_ADDR", ":8080"),
		LogPath:        getEnv("LOG_PATH", "propsync.log"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		AllowedOrigins: splitList(getEnv("ALLOWED_ORIGINS", "http://localhost:5173")),
		Provider: ProviderConfig{
			BaseURL:  getEnv("PROVIDER_BASE_URL", "https://bayut.p.rapidapi.com"),
			APIKey:   os.Getenv("PROVIDER_API_KEY"),
			Host:     getEnv("PROVIDER_HOST", "bayut.p.rapidapi.com"),
			Source:   getEnv("PROVIDER_SOURCE", "bayut"),
			ProxyURL: os.Getenv("MEDIA_PROXY_URL"),
		},
		Media: MediaConfig{
			Bucket:          os.Getenv("MEDIA_BUCKET"),
			Region:          getEnv("MEDIA_REGION", "us-east-1"),
			Endpoint:        os.Getenv("MEDIA_ENDPOINT"),
			AccessKeyID:     os.Getenv("MEDIA_ACCESS_KEY_ID"),
			SecretAccessKey: os.Getenv("MEDIA_SECRET_ACCESS_KEY"),
			PublicBaseURL:   os.Getenv("MEDIA_PUBLIC_BASE_URL"),
		},
		Scheduler: SchedulerConfig{
			Cron: os.Getenv("SYNC_CRON"),
		},
		Targets: make(map[string]*TargetConfig),
	}

	if err := cfg.loadTargetConfigs(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) loadTargetConfigs() error {
	configDir := "config/targets"
	entries, err := os.ReadDir(configDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".yaml" {
			continue
		}

		path := filepath.Join(configDir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}

		var target TargetConfig
		if err := yaml.Unmarshal(data, &target); err != nil {
			return err
		}

		c.Targets[target.ID] = &target
	}

	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func splitList(val string) []string {
	var out []string
	for _, part := range strings.Split(val, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
