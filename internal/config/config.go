package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"notes-sync-client/internal/storage"

	"github.com/joho/godotenv"
)

type Config struct {
	Server    ServerConfig
	Store     storage.Config
	Remote    RemoteConfig
	Network   NetworkConfig
	Sync      SyncConfig
	JWT       JWTConfig
	WebSocket WebSocketConfig
	RateLimit RateLimitConfig
	CORS      CORSConfig
	Logging   LoggingConfig
}

type ServerConfig struct {
	Port string
	Host string
	Env  string
}

type RemoteConfig struct {
	BaseURL      string
	Timeout      time.Duration
	ReadOnly     bool
	AssumedTotal int
}

type NetworkConfig struct {
	ProbeURL      string
	ProbeTimeout  time.Duration
	ProbeInterval time.Duration
}

type SyncConfig struct {
	Interval    time.Duration
	MaxAttempts int
	BackoffBase time.Duration
	BackoffMax  time.Duration
}

type JWTConfig struct {
	Secret                 string
	Expiration             time.Duration
	RefreshTokenExpiration time.Duration
}

type WebSocketConfig struct {
	ReadBufferSize  int
	WriteBufferSize int
	MaxMessageSize  int64
	WriteWait       time.Duration
	PongWait        time.Duration
	PingPeriod      time.Duration
	MaxConnPerUser  int
}

type RateLimitConfig struct {
	RequestsPerMinute int
	Enabled           bool
}

type CORSConfig struct {
	AllowedOrigins string
	AllowedMethods string
	AllowedHeaders string
}

type LoggingConfig struct {
	Level string
}

func Load() (*Config, error) {
	godotenv.Load()

	jwtExp, err := getEnvAsDuration("JWT_EXPIRATION", 15*time.Minute)
	if err != nil {
		return nil, err
	}

	refreshExp, err := getEnvAsDuration("REFRESH_TOKEN_EXPIRATION", 168*time.Hour)
	if err != nil {
		return nil, err
	}

	remoteTimeout, err := getEnvAsDuration("REMOTE_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}

	probeTimeout, err := getEnvAsDuration("NETWORK_PROBE_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, err
	}

	probeInterval, err := getEnvAsDuration("NETWORK_PROBE_INTERVAL", 15*time.Second)
	if err != nil {
		return nil, err
	}

	syncInterval, err := getEnvAsDuration("SYNC_INTERVAL", time.Minute)
	if err != nil {
		return nil, err
	}

	backoffBase, err := getEnvAsDuration("SYNC_BACKOFF_BASE", 2*time.Second)
	if err != nil {
		return nil, err
	}

	backoffMax, err := getEnvAsDuration("SYNC_BACKOFF_MAX", 10*time.Minute)
	if err != nil {
		return nil, err
	}

	dataDir := getEnv("STORE_PATH", defaultDataDir())

	return &Config{
		Server: ServerConfig{
			Port: getEnv("PORT", "8080"),
			Host: getEnv("HOST", "127.0.0.1"),
			Env:  getEnv("ENV", "development"),
		},
		Store: storage.Config{
			Driver:        getEnv("STORE_DRIVER", storage.DriverFile),
			Path:          dataDir,
			SQLitePath:    getEnv("SQLITE_PATH", dataDir+"/notes.db"),
			CouchURL:      couchURL(),
			CouchDB:       getEnv("DB_NAME", "notes"),
			RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
			RedisPassword: getEnv("REDIS_PASSWORD", ""),
			RedisDB:       getEnvAsInt("REDIS_DB", 0),
		},
		Remote: RemoteConfig{
			BaseURL:      getEnv("REMOTE_BASE_URL", "https://jsonplaceholder.typicode.com"),
			Timeout:      remoteTimeout,
			ReadOnly:     getEnvAsBool("REMOTE_READ_ONLY", true),
			AssumedTotal: getEnvAsInt("REMOTE_ASSUMED_TOTAL", 100),
		},
		Network: NetworkConfig{
			ProbeURL:      getEnv("NETWORK_PROBE_URL", "https://jsonplaceholder.typicode.com/posts/1"),
			ProbeTimeout:  probeTimeout,
			ProbeInterval: probeInterval,
		},
		Sync: SyncConfig{
			Interval:    syncInterval,
			MaxAttempts: getEnvAsInt("SYNC_MAX_ATTEMPTS", 5),
			BackoffBase: backoffBase,
			BackoffMax:  backoffMax,
		},
		JWT: JWTConfig{
			Secret:                 getEnv("JWT_SECRET", "dev-secret-change-in-production"),
			Expiration:             jwtExp,
			RefreshTokenExpiration: refreshExp,
		},
		WebSocket: WebSocketConfig{
			ReadBufferSize:  getEnvAsInt("WS_READ_BUFFER_SIZE", 4096),
			WriteBufferSize: getEnvAsInt("WS_WRITE_BUFFER_SIZE", 4096),
			MaxMessageSize:  int64(getEnvAsInt("WS_MAX_MESSAGE_SIZE", 1048576)),
			WriteWait:       10 * time.Second,
			PongWait:        60 * time.Second,
			PingPeriod:      54 * time.Second,
			MaxConnPerUser:  getEnvAsInt("WS_MAX_CONN_PER_USER", 5),
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: getEnvAsInt("RATE_LIMIT_REQUESTS_PER_MINUTE", 120),
			Enabled:           getEnvAsBool("RATE_LIMIT_ENABLED", true),
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "*"),
			AllowedMethods: getEnv("CORS_ALLOWED_METHODS", "GET,POST,PUT,DELETE,OPTIONS"),
			AllowedHeaders: getEnv("CORS_ALLOWED_HEADERS", "Content-Type,Authorization"),
		},
		Logging: LoggingConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
	}, nil
}

// couchURL builds the CouchDB address from the DB_* variables.
func couchURL() string {
	return fmt.Sprintf("http://%s:%s@%s:%s",
		getEnv("DB_USER", "admin"),
		getEnv("DB_PASSWORD", "password"),
		getEnv("DB_HOST", "localhost"),
		getEnv("DB_PORT", "5984"),
	)
}

func defaultDataDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".notes-sync"
	}
	return dir + "/notes-sync"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue, nil
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return value, nil
}
