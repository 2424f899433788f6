// Package config loads the bot configuration from environment variables.
// A .env file in the working directory is honored when present.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds every tunable the process reads at startup.
type Config struct {
	Debug bool

	// WSS is the websocket URL of the chat server.
	WSS            string
	BotNickname    string
	Plugins        []string
	CommandsPrefix string

	RippleAPIBase  string
	RippleAPIToken string

	BanchoAPIBase  string
	BanchoAPIToken string

	LetsAPIBase        string
	CheesegullAPIBase  string
	OsuAPIToken        string
	BeatconnectAPIBase string
	BeatconnectToken   string
	MisirlouAPIBase    string
	MisirlouAPIToken   string

	HTTPHost          string
	HTTPPort          int
	InternalAPISecret string

	RedisHost     string
	RedisPort     int
	RedisDatabase int
	RedisPassword string
	RedisPoolSize int

	TinyDBPath string
}

// RedisAddr returns the host:port of the key/value store.
func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.RedisHost, c.RedisPort)
}

// Load reads the environment (and an optional .env file) into a Config,
// validating required values.
func Load() (*Config, error) {
	// Missing .env is the normal production case.
	_ = godotenv.Load()

	c := &Config{
		Debug:          envBool("DEBUG", false),
		WSS:            os.Getenv("WSS"),
		BotNickname:    envString("BOT_NICKNAME", "FokaBot"),
		Plugins:        envCSV("BOT_PLUGINS", "general,faq,alert,mod,system,pp,beatmaps,multiplayer"),
		CommandsPrefix: envString("COMMANDS_PREFIX", "!"),

		RippleAPIBase:  envString("RIPPLE_API_BASE", "https://ripple.moe"),
		RippleAPIToken: os.Getenv("RIPPLE_API_TOKEN"),

		BanchoAPIBase: envString("BANCHO_API_BASE", "https://c.ripple.moe"),

		LetsAPIBase:        envString("LETS_API_BASE", "https://ripple.moe/letsapi"),
		CheesegullAPIBase:  envString("CHEESEGULL_API_BASE", "https://storage.ripple.moe"),
		OsuAPIToken:        os.Getenv("OSU_API_TOKEN"),
		BeatconnectAPIBase: envString("BEATCONNECT_API_BASE", "https://beatconnect.io"),
		BeatconnectToken:   os.Getenv("BEATCONNECT_API_TOKEN"),
		MisirlouAPIBase:    envString("MISIRLOU_API_BASE", "https://tourn.ripple.moe"),
		MisirlouAPIToken:   os.Getenv("MISIRLOU_API_TOKEN"),

		HTTPHost:          envString("HTTP_HOST", "127.0.0.1"),
		HTTPPort:          envInt("HTTP_PORT", 4334),
		InternalAPISecret: os.Getenv("INTERNAL_API_SECRET"),

		RedisHost:     envString("REDIS_HOST", "127.0.0.1"),
		RedisPort:     envInt("REDIS_PORT", 6379),
		RedisDatabase: envInt("REDIS_DATABASE", 0),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisPoolSize: envInt("REDIS_POOL_SIZE", 8),

		TinyDBPath: envString("TINYDB_PATH", ".db.json"),
	}
	// The presence API reuses the platform token unless overridden.
	c.BanchoAPIToken = envString("BANCHO_API_TOKEN", c.RippleAPIToken)

	var missing []string
	if c.WSS == "" {
		missing = append(missing, "WSS")
	}
	if c.RippleAPIToken == "" {
		missing = append(missing, "RIPPLE_API_TOKEN")
	}
	if c.InternalAPISecret == "" {
		missing = append(missing, "INTERNAL_API_SECRET")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}
	return c, nil
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	switch strings.ToLower(v) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

func envCSV(key, fallback string) []string {
	v := os.Getenv(key)
	if v == "" {
		v = fallback
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
