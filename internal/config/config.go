package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const envPrefix = "CLASHFUN_"

// DefaultAllowedHosts pins the API to loopback names on any port. "*" accepts every host.
const DefaultAllowedHosts = "localhost,127.0.0.1,[::1]"

type Config struct {
	ListenPort      string        // control API address, ex: "127.0.0.1:7891"
	ShutdownTimeout time.Duration // ex: 5s

	LogLevel  string // "debug" | "info" | "warn" | "error"
	PrettyLog bool   // true => zap dev (color), false => zap prod (JSON)

	// Subscription
	Subscription         string        // URL or file path; empty => restore from redis or wait for the API
	SubscriptionFormat   string        // auto | uri | base64 | clash
	SubscriptionInterval time.Duration // periodic re-fetch, 0 disables
	FetchTimeout         time.Duration
	FetchMaxBytes        int64

	// Probing and selection
	ProbeTimeout     time.Duration
	ProbeConcurrency int
	ProbeInterval    time.Duration // periodic health refresh, 0 disables
	ProbeUpstream    string        // "" | "direct" | "env" | socks5://host:port
	TieEpsilon       time.Duration
	RegionFilter     []string
	AutoStart        bool
	HistoryInterval  time.Duration // sweep of stale probe histories

	// Proxy core
	CoreBinary     string
	CoreWorkDir    string
	CoreMixedPort  int
	CoreController string
	CoreSecret     string
	CoreLogLevel   string
	ApplyTimeout   time.Duration

	// Game detection
	GameTable    string        // YAML path; empty => embedded table
	GameInterval time.Duration // 0 disables

	// Redis (optional snapshot store)
	RedisAddr           string        // ex: "localhost:6379"; empty disables the store
	RedisUser           string        // optional
	RedisPassword       string        // optional
	RedisDB             int           // Redis DB number
	RedisDT             time.Duration // Redis dial timeout (ex: 5s)
	RedisRT             time.Duration // Redis read timeout (ex: 3s)
	RedisWT             time.Duration // Redis write timeout (ex: 3s)
	RedisMaxWait        time.Duration // max wait between retries (ex: 10s)
	RedisPingTimeout    time.Duration // timeout for each ping attempt (ex: 5s)
	RedisPoolSize       int           // Redis connection pool size
	RedisConnectTimeout time.Duration // Total time to retry connecting (ex: 30s)
	RedisRetryInterval  time.Duration // Initial wait between retries (ex: 2s, grows exponentially)
	RedisWarnThreshold  int           // warn after this many attempts

	AllowedHosts []string // Host headers accepted by the API, loopback by default
	AllowedCIDRS []string // optional, restrict API access to these networks
	TrustProxy   bool     // true => trust X-Forwarded-For headers
}

// Load reads the configuration from the environment. A .env file (or the
// file named by CLASHFUN_ENV_FILE) is loaded first without overriding
// variables that are already set.
func Load() *Config {
	loadEnvFile(getenv("ENV_FILE", ".env"))

	cfg := &Config{
		// Server settings
		ListenPort:      getenv("LISTEN_PORT", "127.0.0.1:7891"),
		ShutdownTimeout: mustDuration("SHUTDOWN_TIMEOUT", 5*time.Second),

		// Logging
		LogLevel:  getenv("LOG_LEVEL", "info"),
		PrettyLog: mustBool("PRETTY_LOG", true),

		// Subscription
		Subscription:         getenv("SUBSCRIPTION", ""),
		SubscriptionFormat:   getenv("SUBSCRIPTION_FORMAT", "auto"),
		SubscriptionInterval: mustDuration("SUBSCRIPTION_INTERVAL", 6*time.Hour),
		FetchTimeout:         mustDuration("FETCH_TIMEOUT", 15*time.Second),
		FetchMaxBytes:        int64(getenvInt("FETCH_MAX_BYTES", 5*1024*1024)),

		// Probing
		ProbeTimeout:     mustDuration("PROBE_TIMEOUT", 3*time.Second),
		ProbeConcurrency: getenvInt("PROBE_CONCURRENCY", 16),
		ProbeInterval:    mustDuration("PROBE_INTERVAL", 5*time.Minute),
		ProbeUpstream:    getenv("PROBE_UPSTREAM", ""),
		TieEpsilon:       mustDuration("TIE_EPSILON", 5*time.Millisecond),
		RegionFilter:     splitAndTrim(getenv("REGION_FILTER", "")),
		AutoStart:        mustBool("AUTO_START", false),
		HistoryInterval:  mustDuration("HISTORY_GC_INTERVAL", time.Hour),

		// Proxy core
		CoreBinary:     getenv("CORE_BINARY", "mihomo"),
		CoreWorkDir:    getenv("CORE_WORKDIR", defaultWorkDir()),
		CoreMixedPort:  getenvInt("CORE_MIXED_PORT", 7890),
		CoreController: getenv("CORE_CONTROLLER", "127.0.0.1:9090"),
		CoreSecret:     getenv("CORE_SECRET", ""),
		CoreLogLevel:   getenv("CORE_LOG_LEVEL", "warning"),
		ApplyTimeout:   mustDuration("APPLY_TIMEOUT", 10*time.Second),

		// Game detection
		GameTable:    getenv("GAME_TABLE", ""),
		GameInterval: mustDuration("GAME_INTERVAL", 10*time.Second),

		// Redis settings
		RedisAddr:           getenv("REDIS_ADDR", ""),
		RedisUser:           getenv("REDIS_USERNAME", ""),
		RedisPassword:       getenv("REDIS_PASSWORD", ""),
		RedisDB:             getenvInt("REDIS_DB", 0),
		RedisDT:             mustDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
		RedisRT:             mustDuration("REDIS_READ_TIMEOUT", 3*time.Second),
		RedisWT:             mustDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		RedisMaxWait:        mustDuration("REDIS_MAX_WAIT", 10*time.Second),
		RedisPingTimeout:    mustDuration("REDIS_PING_TIMEOUT", 5*time.Second),
		RedisPoolSize:       getenvInt("REDIS_POOL_SIZE", 10),
		RedisConnectTimeout: mustDuration("REDIS_CONNECT_TIMEOUT", 30*time.Second),
		RedisRetryInterval:  mustDuration("REDIS_RETRY_INTERVAL", 2*time.Second),
		RedisWarnThreshold:  getenvInt("REDIS_WARN_THRESHOLD", 3),

		// Access restrictions
		AllowedHosts: splitAndTrim(getenv("ALLOWED_HOSTS", DefaultAllowedHosts)),
		AllowedCIDRS: splitAndTrim(getenv("ALLOWED_CIDRS", "")),
		TrustProxy:   mustBool("TRUST_PROXY", false),
	}

	if err := cfg.validate(); err != nil {
		panic(fmt.Sprintf("❌ FATAL: %v", err))
	}

	// Log config only in debug mode with redacted sensitive fields
	if cfg.LogLevel == "debug" {
		cfgCopy := *cfg
		cfgCopy.RedisPassword = redact(cfg.RedisPassword)
		cfgCopy.CoreSecret = redact(cfg.CoreSecret)
		log.Printf("[DEBUG] cfg: %+v\n", cfgCopy)
	}

	return cfg
}

func (c *Config) validate() error {
	switch c.SubscriptionFormat {
	case "auto", "uri", "base64", "clash":
	default:
		return fmt.Errorf("%sSUBSCRIPTION_FORMAT must be auto, uri, base64 or clash, got %q", envPrefix, c.SubscriptionFormat)
	}
	if c.ProbeTimeout <= 0 {
		return fmt.Errorf("%sPROBE_TIMEOUT must be > 0", envPrefix)
	}
	if c.ProbeConcurrency <= 0 {
		return fmt.Errorf("%sPROBE_CONCURRENCY must be > 0", envPrefix)
	}
	if c.TieEpsilon < 0 {
		return fmt.Errorf("%sTIE_EPSILON must be >= 0", envPrefix)
	}
	if c.CoreMixedPort <= 0 || c.CoreMixedPort > 65535 {
		return fmt.Errorf("%sCORE_MIXED_PORT out of range: %d", envPrefix, c.CoreMixedPort)
	}
	return nil
}

func redact(s string) string {
	if s == "" {
		return ""
	}
	return "***REDACTED***"
}

// loadEnvFile loads path if it exists. Real environment variables win.
func loadEnvFile(path string) {
	if path == "" {
		return
	}
	if _, err := os.Stat(path); err != nil {
		return
	}
	if err := godotenv.Load(path); err != nil {
		log.Printf("[WARN] failed to load %s: %v\n", path, err)
	}
}

func defaultWorkDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "clashfun")
	}
	return filepath.Join(os.TempDir(), "clashfun")
}

// helpers
func getenv(key, def string) string {
	if v := os.Getenv(envPrefix + key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(envPrefix + key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func mustBool(key string, def bool) bool {
	if v := os.Getenv(envPrefix + key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func mustDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(envPrefix + key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitAndTrim(s string) []string {
	if s == "" {
		return nil
	}
	raw := strings.Split(s, ",")
	parts := make([]string, 0, len(raw))
	for _, part := range raw {
		trimmed := strings.TrimSpace(part)
		// Remove surrounding quotes if present
		trimmed = strings.Trim(trimmed, `"'`)
		if trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return parts
}
