package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvProduction  = "production"
	EnvDevelopment = "development"
)

// Config holds application configuration
type Config struct {
	Server    ServerConfig
	MongoDB   MongoDBConfig
	Redis     RedisConfig
	JWT       JWTConfig
	Cookie    CookieConfig
	CORS      CORSConfig
	Gate      GateConfig
	RateLimit RateLimitConfig
}

type ServerConfig struct {
	Port         string
	Host         string
	Environment  string
	Debug        bool
	FrontendURL  string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type MongoDBConfig struct {
	URI      string
	Database string
	Timeout  time.Duration
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

type JWTConfig struct {
	Secret        string
	SessionMaxAge time.Duration
}

type CookieConfig struct {
	Name   string
	Domain string
	Secure bool
}

type CORSConfig struct {
	AllowedOrigins []string
}

// GateConfig controls the edge route gate.
// FailOpen lets page requests through when the session verification call
// itself fails (timeout, breaker open, verify endpoint down).
type GateConfig struct {
	FailOpen        bool
	VerifyURL       string
	VerifyTimeout   time.Duration
	LoginPath       string
	HomePath        string
	BreakerFailures uint32
	BreakerTimeout  time.Duration
}

type RateLimitConfig struct {
	Enabled       bool
	UseRedis      bool
	RPS           float64
	Burst         int
	WindowSeconds int
}

// LoadConfig loads configuration from environment variables and .env file
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("SERVER_HOST", "0.0.0.0")
	v.SetDefault("SERVER_ENVIRONMENT", EnvDevelopment)
	v.SetDefault("SERVER_DEBUG", false)
	v.SetDefault("MONGODB_DATABASE", "ledgerly")
	v.SetDefault("MONGODB_TIMEOUT", 10)
	v.SetDefault("REDIS_PORT", "6379")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("JWT_SESSION_MAX_AGE_HOURS", 168)
	v.SetDefault("COOKIE_NAME", "token")
	v.SetDefault("CORS_ALLOWED_ORIGINS", "")
	v.SetDefault("GATE_FAIL_OPEN", true)
	v.SetDefault("GATE_VERIFY_URL", "")
	v.SetDefault("GATE_VERIFY_TIMEOUT_MS", 3000)
	v.SetDefault("GATE_LOGIN_PATH", "/login")
	v.SetDefault("GATE_HOME_PATH", "/dashboard")
	v.SetDefault("GATE_BREAKER_FAILURES", 3)
	v.SetDefault("GATE_BREAKER_TIMEOUT_SECONDS", 30)
	v.SetDefault("RATE_LIMIT_ENABLED", false)
	v.SetDefault("RATE_LIMIT_USE_REDIS", false)
	v.SetDefault("RATE_LIMIT_RPS", 1.0)
	v.SetDefault("RATE_LIMIT_BURST", 5)
	v.SetDefault("RATE_LIMIT_WINDOW_SECONDS", 60)

	env := strings.ToLower(v.GetString("SERVER_ENVIRONMENT"))
	cfg := &Config{
		Server: ServerConfig{
			Port:         v.GetString("SERVER_PORT"),
			Host:         v.GetString("SERVER_HOST"),
			Environment:  env,
			Debug:        v.GetBool("SERVER_DEBUG"),
			FrontendURL:  strings.TrimSpace(v.GetString("FRONTEND_URL")),
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		MongoDB: MongoDBConfig{
			URI:      strings.TrimSpace(v.GetString("MONGODB_URI")),
			Database: v.GetString("MONGODB_DATABASE"),
			Timeout:  time.Duration(v.GetInt("MONGODB_TIMEOUT")) * time.Second,
		},
		Redis: RedisConfig{
			Host:     v.GetString("REDIS_HOST"),
			Port:     v.GetString("REDIS_PORT"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
		},
		JWT: JWTConfig{
			Secret:        os.Getenv("JWT_SECRET"),
			SessionMaxAge: time.Duration(v.GetInt("JWT_SESSION_MAX_AGE_HOURS")) * time.Hour,
		},
		Cookie: CookieConfig{
			Name:   v.GetString("COOKIE_NAME"),
			Domain: v.GetString("COOKIE_DOMAIN"),
			Secure: env == EnvProduction,
		},
		CORS: CORSConfig{
			AllowedOrigins: parseCSV(v.GetString("CORS_ALLOWED_ORIGINS")),
		},
		Gate: GateConfig{
			FailOpen:        v.GetBool("GATE_FAIL_OPEN"),
			VerifyURL:       strings.TrimSpace(v.GetString("GATE_VERIFY_URL")),
			VerifyTimeout:   time.Duration(v.GetInt("GATE_VERIFY_TIMEOUT_MS")) * time.Millisecond,
			LoginPath:       v.GetString("GATE_LOGIN_PATH"),
			HomePath:        v.GetString("GATE_HOME_PATH"),
			BreakerFailures: uint32(v.GetInt("GATE_BREAKER_FAILURES")),
			BreakerTimeout:  time.Duration(v.GetInt("GATE_BREAKER_TIMEOUT_SECONDS")) * time.Second,
		},
		RateLimit: RateLimitConfig{
			Enabled:       v.GetBool("RATE_LIMIT_ENABLED"),
			UseRedis:      v.GetBool("RATE_LIMIT_USE_REDIS"),
			RPS:           v.GetFloat64("RATE_LIMIT_RPS"),
			Burst:         v.GetInt("RATE_LIMIT_BURST"),
			WindowSeconds: v.GetInt("RATE_LIMIT_WINDOW_SECONDS"),
		},
	}

	if cfg.JWT.SessionMaxAge <= 0 {
		return nil, fmt.Errorf("JWT_SESSION_MAX_AGE_HOURS must be positive")
	}
	if cfg.JWT.Secret == "" {
		if cfg.IsProduction() {
			return nil, errors.New("JWT_SECRET is required in production")
		}
		log.Println("WARNING: JWT_SECRET is not set; using an insecure development secret")
		cfg.JWT.Secret = "ledgerly-dev-secret-do-not-use-in-production"
	}

	return cfg, nil
}

// IsProduction reports whether the service runs with the production environment.
func (c *Config) IsProduction() bool {
	return c.Server.Environment == EnvProduction
}

// IsDevelopment reports whether the environment is exactly development.
// Staging and other named environments are not.
func (c *Config) IsDevelopment() bool {
	return c.Server.Environment == EnvDevelopment
}

// ExposeErrors reports whether internal error text may be sent to clients.
// Production never exposes it, regardless of the debug flag.
func (c *Config) ExposeErrors() bool {
	return c.Server.Debug && !c.IsProduction()
}

// Addr returns host:port for the HTTP listener.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%s", c.Server.Host, c.Server.Port)
}

func parseCSV(input string) []string {
	var out []string
	for _, part := range strings.Split(input, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, strings.TrimRight(trimmed, "/"))
		}
	}
	return out
}
