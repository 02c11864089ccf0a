package config

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application level configuration aggregated from env/config files.
type Config struct {
	Server struct {
		Addr string
	}
	Database struct {
		Path string
	}
	Auth struct {
		MaxActiveTokens   int
		AccessTTLSeconds  int
		CookieSecure      bool
		CookieDomain      string
		IntrospectTimeout time.Duration
	}
}

// AccessTTL returns the configured token time-to-live as a duration.
func (c Config) AccessTTL() time.Duration {
	return time.Duration(c.Auth.AccessTTLSeconds) * time.Second
}

// Load reads configuration from environment variables and optional config files.
func Load() (Config, error) {
	loadDotEnv()

	v := viper.New()
	v.SetEnvPrefix("PHANTOM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("server.addr", "0.0.0.0:8080")
	v.SetDefault("database.path", "data/phantom.db")
	v.SetDefault("auth.maxactivetokens", 5)
	v.SetDefault("auth.accessttlseconds", 1800)
	v.SetDefault("auth.cookiesecure", false)
	v.SetDefault("auth.cookiedomain", "")
	v.SetDefault("auth.introspecttimeout", 3*time.Second)

	v.SetConfigName("config")
	v.AddConfigPath(".")
	_ = v.ReadInConfig() // optional file

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.Auth.MaxActiveTokens < 1 {
		return Config{}, fmt.Errorf("auth.maxactivetokens must be at least 1")
	}
	if cfg.Auth.AccessTTLSeconds < 1 {
		return Config{}, fmt.Errorf("auth.accessttlseconds must be at least 1")
	}

	return cfg, nil
}

func loadDotEnv() {
	file, err := os.Open(".env")
	if err != nil {
		return
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		partsIndex := strings.Index(line, "=")
		if partsIndex <= 0 {
			continue
		}

		key := strings.TrimSpace(line[:partsIndex])
		value := strings.TrimSpace(line[partsIndex+1:])
		value = strings.Trim(value, `"'`)
		if key == "" {
			continue
		}

		if _, exists := os.LookupEnv(key); !exists {
			_ = os.Setenv(key, value)
		}
	}
}
