package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Config is the AgentHost's single configuration surface: a JSON file with
// environment-variable overrides and atomic-write defaults-on-first-run,
// following the field names spec §6 assigns to each ambient default.
type Config struct {
	DataDir  string `json:"data_dir"`
	LogLevel string `json:"log_level"`

	SessionTimeoutSeconds      int     `json:"session_timeout_seconds"`
	ContextStaleThresholdSecs  int     `json:"context_stale_threshold_seconds"`
	RecoverContextChars        int     `json:"recover_context_chars"`
	RecoverContextLogs         int     `json:"recover_context_logs"`
	MaxSubAgents               int     `json:"max_sub_agents"`
	MaxRetries                 int     `json:"max_retries"`
	FileTrackerInlineThreshold int     `json:"file_tracker_inline_threshold"`
	EventBusPingIntervalSecs   int     `json:"event_bus_ping_interval_seconds"`
	EventBusMissedLimit        int     `json:"event_bus_missed_pings_limit"`
	SchedulerTickIntervalSecs  int     `json:"scheduler_tick_interval_seconds"`
	DefaultQuotaBytes          int64   `json:"default_quota_bytes"`
	DefaultTimezone            string  `json:"default_timezone"`
	MaxToolRounds              int     `json:"max_tool_rounds"`

	LLM struct {
		BaseURL     string  `json:"base_url"`
		APIKey      string  `json:"api_key"`
		Model       string  `json:"model"`
		MaxTokens   int     `json:"max_tokens"`
		Temperature float32 `json:"temperature"`
	} `json:"llm"`

	Telegram struct {
		Token string `json:"token"`
	} `json:"telegram"`
}

// Load reads Config from path, writing spec-default values to path if it
// does not yet exist. Environment variables take precedence over the file
// for the LLM API key, the LLM base URL and the Telegram token.
func Load(path string) (*Config, error) {
	cfg := &Config{
		DataDir:                    filepath.Join(os.Getenv("HOME"), ".agenthost"),
		LogLevel:                   "info",
		SessionTimeoutSeconds:      3600,
		ContextStaleThresholdSecs:  600,
		RecoverContextChars:        8000,
		RecoverContextLogs:         3,
		MaxSubAgents:               10,
		MaxRetries:                 10,
		FileTrackerInlineThreshold: 5,
		EventBusPingIntervalSecs:   30,
		EventBusMissedLimit:        2,
		SchedulerTickIntervalSecs:  30,
		DefaultQuotaBytes:          1 << 30,
		DefaultTimezone:            "UTC",
		MaxToolRounds:              10,
	}
	cfg.LLM.BaseURL = "https://api.openai.com/v1"
	cfg.LLM.Model = "gpt-4"
	cfg.LLM.MaxTokens = 2000
	cfg.LLM.Temperature = 0.7

	if _, err := os.Stat(path); err == nil {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	} else if os.IsNotExist(err) {
		if err := writeDefaults(path, cfg); err != nil {
			return nil, err
		}
	} else {
		return nil, err
	}

	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		cfg.LLM.APIKey = apiKey
	}
	if baseURL := os.Getenv("OPENAI_BASE_URL"); baseURL != "" {
		cfg.LLM.BaseURL = baseURL
	}
	if tgToken := os.Getenv("TELEGRAM_BOT_TOKEN"); tgToken != "" {
		cfg.Telegram.Token = tgToken
	}

	return cfg, nil
}

func writeDefaults(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal default config: %w", err)
	}
	data = append(data, '\n')
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("write default config: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename default config: %w", err)
	}
	return nil
}
