package config

import (
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Guardian  GuardianConfig  `yaml:"guardian"`
	Upload    UploadConfig    `yaml:"upload"`
	Minio     MinioConfig     `yaml:"minio"`
	Auth      AuthConfig      `yaml:"auth"`
	Users     []User          `yaml:"users"`
	Log       LogConfig       `yaml:"log"`
	Store     StoreConfig     `yaml:"store"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

type ServerConfig struct {
	Port int `yaml:"port"`
}

// GuardianConfig points at the remote analysis service
type GuardianConfig struct {
	APIURL         string `yaml:"api_url"`
	APIToken       string `yaml:"api_token"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	PollIntervalMS int    `yaml:"poll_interval_ms"`
}

// Timeout is the per-request HTTP timeout
func (c GuardianConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// PollInterval is the status sampling cadence
func (c GuardianConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMS) * time.Millisecond
}

type UploadConfig struct {
	MaxSizeMB           int      `yaml:"max_size_mb"`
	AllowedExtensions   []string `yaml:"allowed_extensions"`
	DefaultContractType string   `yaml:"default_contract_type"`
}

// MaxBytes is the upload ceiling in bytes
func (c UploadConfig) MaxBytes() int64 {
	return int64(c.MaxSizeMB) << 20
}

type MinioConfig struct {
	Endpoint   string `yaml:"endpoint"`
	AccessKey  string `yaml:"access_key"`
	SecretKey  string `yaml:"secret_key"`
	Bucket     string `yaml:"bucket"`
	Region     string `yaml:"region"`
	UseSSL     bool   `yaml:"use_ssl"`
	ExpireDays int    `yaml:"expire_days"`
}

// Enabled reports whether the report archive is configured
func (c MinioConfig) Enabled() bool {
	return c.Endpoint != ""
}

type AuthConfig struct {
	JWTSecret        string `yaml:"jwt_secret"`
	TokenExpireHours int    `yaml:"token_expire_hours"`
}

// User is a local account. PasswordHash is a bcrypt hash.
type User struct {
	Username     string `yaml:"username"`
	PasswordHash string `yaml:"password_hash"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type StoreConfig struct {
	MaxSessions int `yaml:"max_sessions"`
}

type RateLimitConfig struct {
	Requests      int    `yaml:"requests"`
	WindowSeconds int    `yaml:"window_seconds"`
	RedisURL      string `yaml:"redis_url"`
}

// Window is the fixed rate-limit window
func (c RateLimitConfig) Window() time.Duration {
	return time.Duration(c.WindowSeconds) * time.Second
}

var GlobalConfig *Config

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	cfg.applyEnv()
	cfg.applyDefaults()

	GlobalConfig = &cfg
	return &cfg, nil
}

// applyEnv lets deployment secrets override the file
func (c *Config) applyEnv() {
	c.Guardian.APIURL = getenv("GUARDIAN_API_URL", c.Guardian.APIURL)
	c.Guardian.APIToken = getenv("GUARDIAN_API_TOKEN", c.Guardian.APIToken)
	c.Guardian.TimeoutSeconds = getenvInt("GUARDIAN_TIMEOUT_SECONDS", c.Guardian.TimeoutSeconds)
	c.Auth.JWTSecret = getenv("GUARDIAN_JWT_SECRET", c.Auth.JWTSecret)
	c.RateLimit.RedisURL = getenv("GUARDIAN_REDIS_URL", c.RateLimit.RedisURL)
	c.Server.Port = getenvInt("GUARDIAN_PORT", c.Server.Port)
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Guardian.APIURL == "" {
		c.Guardian.APIURL = "http://localhost:8000"
	}
	if c.Guardian.TimeoutSeconds == 0 {
		c.Guardian.TimeoutSeconds = 120
	}
	if c.Guardian.PollIntervalMS == 0 {
		c.Guardian.PollIntervalMS = 1200
	}
	if c.Upload.MaxSizeMB == 0 {
		c.Upload.MaxSizeMB = 20
	}
	if len(c.Upload.AllowedExtensions) == 0 {
		c.Upload.AllowedExtensions = []string{"pdf", "png", "jpg", "jpeg"}
	}
	if c.Upload.DefaultContractType == "" {
		c.Upload.DefaultContractType = "general"
	}
	if c.Minio.Region == "" {
		c.Minio.Region = "us-east-1"
	}
	if c.Minio.ExpireDays == 0 {
		c.Minio.ExpireDays = 7
	}
	if c.Auth.TokenExpireHours == 0 {
		c.Auth.TokenExpireHours = 24
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
	if c.Store.MaxSessions == 0 {
		c.Store.MaxSessions = 100
	}
	if c.RateLimit.Requests == 0 {
		c.RateLimit.Requests = 100
	}
	if c.RateLimit.WindowSeconds == 0 {
		c.RateLimit.WindowSeconds = 60
	}
}

// FindUser finds a user by username
func (c *Config) FindUser(username string) *User {
	for i := range c.Users {
		if c.Users[i].Username == username {
			return &c.Users[i]
		}
	}
	return nil
}

func getenv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}
