// Package config reads the environment variables spec.md §6 names, in the
// trim-and-default style of the teacher's internal/platform/envutil
// package: a small set of typed readers, never a struct-tag binder.
package config

import (
	"os"
	"strconv"
	"strings"
)

// Config is the process-wide configuration snapshot read once at startup.
type Config struct {
	LLMRequired bool
	LLMModel    string
	LLMAPIKey   string
	LLMBaseURL  string
	LLMTemperature float64

	EntryConfidenceThreshold float64
	UserActionTimeoutSeconds int
	ScenarioRealismBlocklist []string

	OtelEnabled       bool
	OtelOTLPEndpoint  string
	OtelSamplerRatio  float64
	TraceProjectName  string

	WorkerConcurrency int

	PersistenceRoot string
	HTTPAddr        string

	RedisAddr    string
	RedisChannel string

	LogMode string
}

// FromEnv builds a Config from the process environment, applying the
// defaults spec.md §6 and SPEC_FULL.md §2 call for.
func FromEnv() Config {
	cfg := Config{
		LLMRequired:    boolEnv("LLM_REQUIRED", true),
		LLMModel:       firstNonEmptyEnv("LLM_MODEL", "OPENAI_MODEL"),
		LLMAPIKey:      firstNonEmptyEnv("LLM_API_KEY", "OPENAI_API_KEY"),
		LLMBaseURL:     firstNonEmptyEnv("LLM_BASE_URL", "OPENAI_BASE_URL"),
		LLMTemperature: floatEnv(firstNonEmptyEnvName("LLM_TEMPERATURE", "OPENAI_TEMPERATURE"), 0.7),

		EntryConfidenceThreshold: floatEnv("ENTRY_CONFIDENCE_THRESHOLD", 0.65),
		UserActionTimeoutSeconds: intEnv("USER_ACTION_TIMEOUT_SECONDS", 3600),
		ScenarioRealismBlocklist: blocklistEnv("SCENARIO_REALISM_BLOCKLIST"),

		OtelEnabled:      boolEnv("OTEL_ENABLED", false),
		OtelOTLPEndpoint: trimEnv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		OtelSamplerRatio: floatEnv("OTEL_SAMPLER_RATIO", 0.1),
		TraceProjectName: stringEnv("TRACE_PROJECT_NAME", "coursecraft"),

		WorkerConcurrency: intEnv("WORKER_CONCURRENCY", 4),

		PersistenceRoot: stringEnv("PERSISTENCE_ROOT", "."),
		HTTPAddr:        stringEnv("HTTP_ADDR", ":8080"),

		RedisAddr:    trimEnv("REDIS_ADDR"),
		RedisChannel: stringEnv("REDIS_CHANNEL", "coursecraft:events"),

		LogMode: stringEnv("LOG_MODE", "development"),
	}

	if path := trimEnv("SCENARIO_REALISM_BLOCKLIST_FILE"); path != "" {
		if list, err := LoadBlocklistFile(path); err == nil && len(list) > 0 {
			cfg.ScenarioRealismBlocklist = list
		}
	}
	return cfg
}

func trimEnv(name string) string {
	return strings.TrimSpace(os.Getenv(name))
}

func stringEnv(name, def string) string {
	v := trimEnv(name)
	if v == "" {
		return def
	}
	return v
}

func firstNonEmptyEnv(names ...string) string {
	return firstNonEmptyEnvName(names...)
}

func firstNonEmptyEnvName(names ...string) string {
	for _, name := range names {
		if v := trimEnv(name); v != "" {
			return v
		}
	}
	return ""
}

func intEnv(name string, def int) int {
	v := trimEnv(name)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

func floatEnv(name string, def float64) float64 {
	v := trimEnv(name)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func boolEnv(name string, def bool) bool {
	v := strings.ToLower(trimEnv(name))
	if v == "" {
		return def
	}
	switch v {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return def
	}
}

func blocklistEnv(name string) []string {
	raw := trimEnv(name)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
