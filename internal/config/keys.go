package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type keyType int

const (
	kString keyType = iota
	kInt
	kBool
	kDuration
	kList
)

type keySpec struct {
	key     string
	typ     keyType
	env     string
	aliases []string // fallback env vars, consulted when env is unset
	secret  bool
	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
}

var specs = []keySpec{
	{
		key: "server.host", typ: kString, env: "VINSIGHT_SERVER_HOST",
		apply:   func(cfg *Config, v any) { cfg.Server.Host = v.(string) },
		extract: func(cfg Config) any { return cfg.Server.Host },
	},
	{
		key: "server.port", typ: kInt, env: "VINSIGHT_SERVER_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "server.h2c", typ: kBool, env: "VINSIGHT_SERVER_H2C",
		apply:   func(cfg *Config, v any) { cfg.Server.H2C = v.(bool) },
		extract: func(cfg Config) any { return cfg.Server.H2C },
	},
	{
		key: "server.cors_origins", typ: kList, env: "VINSIGHT_SERVER_CORS_ORIGINS",
		apply:   func(cfg *Config, v any) { cfg.Server.CORSOrigins = v.([]string) },
		extract: func(cfg Config) any { return strings.Join(cfg.Server.CORSOrigins, ",") },
	},
	{
		key: "storage.driver", typ: kString, env: "VINSIGHT_STORAGE_DRIVER",
		apply:   func(cfg *Config, v any) { cfg.Storage.Driver = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.Driver },
	},
	{
		key: "storage.data_dir", typ: kString, env: "VINSIGHT_STORAGE_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "storage.dsn", typ: kString, env: "VINSIGHT_DATABASE_URL", aliases: []string{"DATABASE_URL"},
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Storage.DSN = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DSN },
	},
	{
		key: "llm.provider", typ: kString, env: "VINSIGHT_LLM_PROVIDER",
		apply:   func(cfg *Config, v any) { cfg.LLM.Provider = v.(string) },
		extract: func(cfg Config) any { return cfg.LLM.Provider },
	},
	{
		key: "llm.base_url", typ: kString, env: "VINSIGHT_LLM_BASE_URL", aliases: []string{"AZURE_OPENAI_ENDPOINT"},
		apply:   func(cfg *Config, v any) { cfg.LLM.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.LLM.BaseURL },
	},
	{
		key: "llm.model", typ: kString, env: "VINSIGHT_LLM_MODEL", aliases: []string{"AZURE_OPENAI_DEPLOYMENT"},
		apply:   func(cfg *Config, v any) { cfg.LLM.Model = v.(string) },
		extract: func(cfg Config) any { return cfg.LLM.Model },
	},
	{
		key: "llm.api_version", typ: kString, env: "VINSIGHT_LLM_API_VERSION", aliases: []string{"AZURE_OPENAI_API_VERSION"},
		apply:   func(cfg *Config, v any) { cfg.LLM.APIVersion = v.(string) },
		extract: func(cfg Config) any { return cfg.LLM.APIVersion },
	},
	{
		key: "llm.api_key", typ: kString, env: "VINSIGHT_LLM_API_KEY",
		aliases: []string{"OPENAI_API_KEY", "AZURE_OPENAI_API_KEY", "GEMINI_API_KEY"},
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.LLM.APIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.LLM.APIKey },
	},
	{
		key: "llm.timeout", typ: kDuration, env: "VINSIGHT_LLM_TIMEOUT",
		apply:   func(cfg *Config, v any) { cfg.LLM.Timeout = v.(time.Duration) },
		extract: func(cfg Config) any { return cfg.LLM.Timeout },
	},
	{
		key: "insights.ttl", typ: kDuration, env: "VINSIGHT_INSIGHTS_TTL",
		apply:   func(cfg *Config, v any) { cfg.Insights.TTL = v.(time.Duration) },
		extract: func(cfg Config) any { return cfg.Insights.TTL },
	},
	{
		key: "log.level", typ: kString, env: "VINSIGHT_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
	{
		key: "log.format", typ: kString, env: "VINSIGHT_LOG_FORMAT",
		apply:   func(cfg *Config, v any) { cfg.Log.Format = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Format },
	},
}

func lookupSpec(key string) (keySpec, bool) {
	for _, s := range specs {
		if s.key == key {
			return s, true
		}
	}
	return keySpec{}, false
}

// parseValue converts raw text for s. Unparsable bools and ints are reported
// through warn and skipped; unparsable durations are an error.
func parseValue(s keySpec, raw, source string) (v any, ok bool, err error) {
	switch s.typ {
	case kString:
		return raw, true, nil
	case kInt:
		i, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			warn("could not parse integer from %s=%q: %v. Using default value.", source, raw, err)
			return nil, false, nil
		}
		return i, true, nil
	case kBool:
		b, err := strconv.ParseBool(strings.TrimSpace(raw))
		if err != nil {
			warn("could not parse bool from %s=%q: %v. Using default value.", source, raw, err)
			return nil, false, nil
		}
		return b, true, nil
	case kDuration:
		d, err := time.ParseDuration(strings.TrimSpace(raw))
		if err != nil {
			return nil, false, fmt.Errorf("%w: %s=%q is not a duration: %v", ErrInvalid, source, raw, err)
		}
		return d, true, nil
	case kList:
		var out []string
		for _, p := range strings.Split(raw, ",") {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return out, true, nil
	}
	return nil, false, fmt.Errorf("unsupported type for %s", s.key)
}

func warn(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "[WARN] "+format+"\n", args...)
}

func applyBackend(cfg *Config, b ConfigBackend) error {
	for _, s := range specs {
		if s.secret {
			continue
		}
		if s.typ == kInt {
			v, ok, err := b.GetInt(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
			continue
		}

		raw, ok, err := b.GetString(s.key)
		if err != nil {
			return fmt.Errorf("reading %s: %w", s.key, err)
		}
		if !ok || (raw == "" && s.typ != kString) {
			continue
		}
		v, ok, err := parseValue(s, raw, "config key "+s.key)
		if err != nil {
			return err
		}
		if ok {
			s.apply(cfg, v)
		}
	}
	return nil
}

func applyEnvOverrides(cfg *Config) error {
	for _, s := range specs {
		name, raw := lookupEnv(s)
		if raw == "" {
			continue
		}
		v, ok, err := parseValue(s, raw, "env var "+name)
		if err != nil {
			return err
		}
		if ok {
			s.apply(cfg, v)
		}
	}
	return nil
}

func lookupEnv(s keySpec) (name, val string) {
	for _, n := range append([]string{s.env}, s.aliases...) {
		if n == "" {
			continue
		}
		if v := os.Getenv(n); v != "" {
			return n, v
		}
	}
	return "", ""
}
