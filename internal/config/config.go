package config

import (
	"os"
	"strconv"
	"strings"
)

const defaultRefreshSchedule = "0 0 * * *,30 1 * * *,0 3 * * *"

type Config struct {
	Host    string
	Port    string
	DataDir string
	APIKey  string

	SitesFile string

	TelegramToken   string
	TelegramAPIBase string

	RefreshSchedule []string
	RefreshOnStart  bool

	DispatchWorkers int
	SearchWorkers   int

	ResolverHeadless    bool
	ResolverMaxAttempts int
}

func Load() Config {
	host := os.Getenv("LINKSCOUT_HOST")
	if host == "" {
		host = "127.0.0.1"
	}
	port := os.Getenv("LINKSCOUT_PORT")
	if port == "" {
		port = "8000"
	}
	dataDir := os.Getenv("LINKSCOUT_DATA_DIR")
	if dataDir == "" {
		dataDir = ".data"
	}
	apiKey := os.Getenv("LINKSCOUT_API_KEY")
	sitesFile := strings.TrimSpace(os.Getenv("LINKSCOUT_SITES_FILE"))
	telegramToken := strings.TrimSpace(os.Getenv("LINKSCOUT_TELEGRAM_TOKEN"))
	telegramAPIBase := strings.TrimSpace(os.Getenv("LINKSCOUT_TELEGRAM_API_BASE"))
	if telegramAPIBase == "" {
		telegramAPIBase = "https://api.telegram.org"
	}
	return Config{
		Host:                host,
		Port:                port,
		DataDir:             dataDir,
		APIKey:              apiKey,
		SitesFile:           sitesFile,
		TelegramToken:       telegramToken,
		TelegramAPIBase:     telegramAPIBase,
		RefreshSchedule:     parseScheduleList(os.Getenv("LINKSCOUT_REFRESH_SCHEDULE")),
		RefreshOnStart:      parseEnvBoolDefault("LINKSCOUT_REFRESH_ON_START", true),
		DispatchWorkers:     parseEnvIntDefault("LINKSCOUT_DISPATCH_WORKERS", 4),
		SearchWorkers:       parseEnvIntDefault("LINKSCOUT_SEARCH_WORKERS", 8),
		ResolverHeadless:    parseEnvBoolDefault("LINKSCOUT_RESOLVER_HEADLESS", true),
		ResolverMaxAttempts: parseEnvIntDefault("LINKSCOUT_RESOLVER_MAX_ATTEMPTS", 3),
	}
}

// parseScheduleList splits a comma-separated list of cron expressions.
// Five-field expressions contain spaces, so commas separate entries.
func parseScheduleList(raw string) []string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		trimmed = defaultRefreshSchedule
	}
	parts := strings.Split(trimmed, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		spec := strings.TrimSpace(part)
		if spec == "" {
			continue
		}
		out = append(out, spec)
	}
	return out
}

func parseEnvBoolDefault(key string, fallback bool) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	return strings.EqualFold(raw, "true") || raw == "1"
}

func parseEnvIntDefault(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}
