package config

import (
	"fmt"
	"os"
	"strconv"
)

type keyType int

const (
	kString keyType = iota
	kInt
	kBool
	kFloat
)

type keySpec struct {
	key     string
	typ     keyType
	env     string
	secret  bool
	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
}

var specs = []keySpec{
	{
		key: "server.port", typ: kInt, env: "KAIWA_SERVER_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "service.base_url", typ: kString, env: "KAIWA_SERVICE_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.Service.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Service.BaseURL },
	},
	{
		key: "chat.mock", typ: kBool, env: "KAIWA_CHAT_MOCK",
		apply:   func(cfg *Config, v any) { cfg.Chat.Mock = v.(bool) },
		extract: func(cfg Config) any { return cfg.Chat.Mock },
	},
	{
		key: "chat.model", typ: kString, env: "KAIWA_CHAT_MODEL",
		apply:   func(cfg *Config, v any) { cfg.Chat.Model = v.(string) },
		extract: func(cfg Config) any { return cfg.Chat.Model },
	},
	{
		key: "chat.temperature", typ: kFloat, env: "KAIWA_CHAT_TEMPERATURE",
		apply:   func(cfg *Config, v any) { cfg.Chat.Temperature = v.(float64) },
		extract: func(cfg Config) any { return cfg.Chat.Temperature },
	},
	{
		key: "profile.model", typ: kString, env: "KAIWA_PROFILE_MODEL",
		apply:   func(cfg *Config, v any) { cfg.Profile.Model = v.(string) },
		extract: func(cfg Config) any { return cfg.Profile.Model },
	},
	{
		key: "profile.temperature", typ: kFloat, env: "KAIWA_PROFILE_TEMPERATURE",
		apply:   func(cfg *Config, v any) { cfg.Profile.Temperature = v.(float64) },
		extract: func(cfg Config) any { return cfg.Profile.Temperature },
	},
	{
		key: "storage.data_dir", typ: kString, env: "KAIWA_STORAGE_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "openai.api_key", typ: kString, env: "KAIWA_OPENAI_API_KEY",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.OpenAI.APIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.OpenAI.APIKey },
	},
	{
		key: "openai.base_url", typ: kString, env: "KAIWA_OPENAI_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.OpenAI.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.OpenAI.BaseURL },
	},
	{
		key: "log.level", typ: kString, env: "KAIWA_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
}

func applyBackend(cfg *Config, b Backend) error {
	for _, s := range specs {
		if s.secret {
			continue
		}
		switch s.typ {
		case kString:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kInt:
			v, ok, err := b.GetInt(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kBool:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok && v != "" {
				if bv, err := strconv.ParseBool(v); err == nil {
					s.apply(cfg, bv)
				} else {
					fmt.Fprintf(os.Stderr, "[WARN] could not parse bool from config key %s=%q: %v. Using default value.\n", s.key, v, err)
				}
			}
		case kFloat:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok && v != "" {
				if f, err := strconv.ParseFloat(v, 64); err == nil {
					s.apply(cfg, f)
				} else {
					fmt.Fprintf(os.Stderr, "[WARN] could not parse float from config key %s=%q: %v. Using default value.\n", s.key, v, err)
				}
			}
		}
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		if s.env == "" {
			continue
		}
		raw := os.Getenv(s.env)
		if raw == "" {
			continue
		}
		switch s.typ {
		case kString:
			s.apply(cfg, raw)
		case kInt:
			if i, err := strconv.Atoi(raw); err == nil {
				s.apply(cfg, i)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse integer from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		case kBool:
			if b, err := strconv.ParseBool(raw); err == nil {
				s.apply(cfg, b)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse bool from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		case kFloat:
			if f, err := strconv.ParseFloat(raw, 64); err == nil {
				s.apply(cfg, f)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse float from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		}
	}
}
