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
)

type keySpec struct {
	key     string
	typ     keyType
	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
}

// envName is the environment variable that overrides key.
func envName(key string) string {
	return envPrefix + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

var specs = []keySpec{
	{
		key: "server.port", typ: kInt,
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "server.host", typ: kString,
		apply:   func(cfg *Config, v any) { cfg.Server.Host = v.(string) },
		extract: func(cfg Config) any { return cfg.Server.Host },
	},
	{
		key: "server.max_connections", typ: kInt,
		apply:   func(cfg *Config, v any) { cfg.Server.MaxConnections = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.MaxConnections },
	},
	{
		key: "server.public_base_url", typ: kString,
		apply:   func(cfg *Config, v any) { cfg.Server.PublicBaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Server.PublicBaseURL },
	},
	{
		key: "storage.driver", typ: kString,
		apply:   func(cfg *Config, v any) { cfg.Storage.Driver = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.Driver },
	},
	{
		key: "storage.data_dir", typ: kString,
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "storage.dsn", typ: kString,
		apply:   func(cfg *Config, v any) { cfg.Storage.DSN = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DSN },
	},
	{
		key: "storage.max_open_conns", typ: kInt,
		apply:   func(cfg *Config, v any) { cfg.Storage.MaxOpenConns = v.(int) },
		extract: func(cfg Config) any { return cfg.Storage.MaxOpenConns },
	},
	{
		key: "llm.base_url", typ: kString,
		apply:   func(cfg *Config, v any) { cfg.LLM.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.LLM.BaseURL },
	},
	{
		key: "llm.model", typ: kString,
		apply:   func(cfg *Config, v any) { cfg.LLM.Model = v.(string) },
		extract: func(cfg Config) any { return cfg.LLM.Model },
	},
	{
		key: "llm.timeout", typ: kDuration,
		apply:   func(cfg *Config, v any) { cfg.LLM.Timeout = v.(time.Duration) },
		extract: func(cfg Config) any { return cfg.LLM.Timeout },
	},
	{
		key: "llm.question_count", typ: kInt,
		apply:   func(cfg *Config, v any) { cfg.LLM.QuestionCount = v.(int) },
		extract: func(cfg Config) any { return cfg.LLM.QuestionCount },
	},
	{
		key: "questions.provider", typ: kString,
		apply:   func(cfg *Config, v any) { cfg.Questions.Provider = v.(string) },
		extract: func(cfg Config) any { return cfg.Questions.Provider },
	},
	{
		key: "questions.bank_path", typ: kString,
		apply:   func(cfg *Config, v any) { cfg.Questions.BankPath = v.(string) },
		extract: func(cfg Config) any { return cfg.Questions.BankPath },
	},
	{
		key: "twilio.from_number", typ: kString,
		apply:   func(cfg *Config, v any) { cfg.Twilio.FromNumber = v.(string) },
		extract: func(cfg Config) any { return cfg.Twilio.FromNumber },
	},
	{
		key: "twilio.validate_signatures", typ: kBool,
		apply:   func(cfg *Config, v any) { cfg.Twilio.ValidateSignatures = v.(bool) },
		extract: func(cfg Config) any { return cfg.Twilio.ValidateSignatures },
	},
	{
		key: "twilio.timeout", typ: kDuration,
		apply:   func(cfg *Config, v any) { cfg.Twilio.Timeout = v.(time.Duration) },
		extract: func(cfg Config) any { return cfg.Twilio.Timeout },
	},
	{
		key: "voice.name", typ: kString,
		apply:   func(cfg *Config, v any) { cfg.Voice.Name = v.(string) },
		extract: func(cfg Config) any { return cfg.Voice.Name },
	},
	{
		key: "voice.language", typ: kString,
		apply:   func(cfg *Config, v any) { cfg.Voice.Language = v.(string) },
		extract: func(cfg Config) any { return cfg.Voice.Language },
	},
	{
		key: "voice.gather_timeout", typ: kInt,
		apply:   func(cfg *Config, v any) { cfg.Voice.GatherTimeout = v.(int) },
		extract: func(cfg Config) any { return cfg.Voice.GatherTimeout },
	},
	{
		key: "scheduler.enabled", typ: kBool,
		apply:   func(cfg *Config, v any) { cfg.Scheduler.Enabled = v.(bool) },
		extract: func(cfg Config) any { return cfg.Scheduler.Enabled },
	},
	{
		key: "scheduler.spec", typ: kString,
		apply:   func(cfg *Config, v any) { cfg.Scheduler.Spec = v.(string) },
		extract: func(cfg Config) any { return cfg.Scheduler.Spec },
	},
	{
		key: "scheduler.stale_after", typ: kDuration,
		apply:   func(cfg *Config, v any) { cfg.Scheduler.StaleAfter = v.(time.Duration) },
		extract: func(cfg Config) any { return cfg.Scheduler.StaleAfter },
	},
	{
		key: "notify.slack_webhook_url", typ: kString,
		apply:   func(cfg *Config, v any) { cfg.Notify.SlackWebhookURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Notify.SlackWebhookURL },
	},
	{
		key: "log.level", typ: kString,
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
	{
		key: "log.format", typ: kString,
		apply:   func(cfg *Config, v any) { cfg.Log.Format = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Format },
	},
}

func applyBackend(cfg *Config, b ConfigBackend) error {
	for _, s := range specs {
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
		if !ok {
			continue
		}
		v, err := parseValue(s.typ, raw)
		if err != nil {
			fmt.Fprintf(os.Stderr, "[WARN] could not parse config key %s=%q: %v. Using default value.\n", s.key, raw, err)
			continue
		}
		s.apply(cfg, v)
	}
	return nil
}

func parseValue(typ keyType, raw string) (any, error) {
	switch typ {
	case kInt:
		return strconv.Atoi(raw)
	case kBool:
		return strconv.ParseBool(raw)
	case kDuration:
		return time.ParseDuration(raw)
	}
	return raw, nil
}
