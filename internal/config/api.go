package config

import (
	"strings"
	"time"

	"github.com/webpulse/api/internal/domain"
)

// APIConfig holds runtime configuration for the telemetry API service.
type APIConfig struct {
	Environment          string
	Addr                 string
	DatabaseURL          string
	MigrationsDir        string
	CollectorToken       string
	RateLimitRedisAddr   string
	RateLimitRedisPass   string
	RateLimitRedisDB     int
	MeasurementRetention time.Duration
	AlertWindow          time.Duration
	AlertRetention       time.Duration
	CriticalPoorPercent  float64
	WarningPoorPercent   float64
	ExtremeMultiplier    float64
	TrendStabilityPct    float64
	EvaluateEvery        time.Duration
	ArchiveFlushEvery    time.Duration
	DefaultDashboardSpan time.Duration
	DashboardAlertCount  int
	Thresholds           map[string]domain.Threshold
}

// LoadAPIConfig constructs an APIConfig from environment variables.
func LoadAPIConfig() APIConfig {
	return APIConfig{
		Environment:          GetString("APP_ENV", "development"),
		Addr:                 GetString("API_ADDR", ":4600"),
		DatabaseURL:          GetString("DATABASE_URL", "postgres://webpulse:webpulse@db:5432/webpulse?sslmode=disable"),
		MigrationsDir:        GetString("DB_MIGRATIONS_DIR", "db/migrations"),
		CollectorToken:       GetString("COLLECTOR_AUTH_TOKEN", ""),
		RateLimitRedisAddr:   GetString("RATE_LIMIT_REDIS_ADDR", ""),
		RateLimitRedisPass:   GetString("RATE_LIMIT_REDIS_PASSWORD", ""),
		RateLimitRedisDB:     GetInt("RATE_LIMIT_REDIS_DB", 0),
		MeasurementRetention: time.Duration(GetInt("MEASUREMENT_RETENTION_HOURS", 24)) * time.Hour,
		AlertWindow:          time.Duration(GetInt("ALERT_WINDOW_SECONDS", 300)) * time.Second,
		AlertRetention:       time.Duration(GetInt("ALERT_RETENTION_SECONDS", 3600)) * time.Second,
		CriticalPoorPercent:  GetFloat("ALERT_CRITICAL_POOR_PERCENT", 50),
		WarningPoorPercent:   GetFloat("ALERT_WARNING_POOR_PERCENT", 25),
		ExtremeMultiplier:    GetFloat("ALERT_EXTREME_MULTIPLIER", 2),
		TrendStabilityPct:    GetFloat("TREND_STABILITY_PERCENT", 5),
		EvaluateEvery:        time.Duration(GetInt("ALERT_EVALUATE_SECONDS", 30)) * time.Second,
		ArchiveFlushEvery:    time.Duration(GetInt("ARCHIVE_FLUSH_SECONDS", 30)) * time.Second,
		DefaultDashboardSpan: time.Duration(GetInt("DASHBOARD_DEFAULT_RANGE_SECONDS", 3600)) * time.Second,
		DashboardAlertCount:  GetInt("DASHBOARD_ALERT_COUNT", 10),
		Thresholds:           loadThresholds(),
	}
}

// defaultThresholds follow the published Core Web Vitals boundaries. Timing
// metrics are milliseconds; CLS is a unitless score.
var defaultThresholds = map[string]domain.Threshold{
	"LCP":  {Good: 2500, Poor: 4000},
	"FID":  {Good: 100, Poor: 300},
	"INP":  {Good: 200, Poor: 500},
	"CLS":  {Good: 0.1, Poor: 0.25},
	"FCP":  {Good: 1800, Poor: 3000},
	"TTFB": {Good: 800, Poor: 1800},
}

// loadThresholds starts from the built-in table and applies
// THRESHOLD_<NAME>_GOOD / THRESHOLD_<NAME>_POOR overrides. The table is fixed
// for the lifetime of the process.
func loadThresholds() map[string]domain.Threshold {
	thresholds := make(map[string]domain.Threshold, len(defaultThresholds))
	for name, t := range defaultThresholds {
		key := strings.ToUpper(name)
		thresholds[name] = domain.Threshold{
			Good: GetFloat("THRESHOLD_"+key+"_GOOD", t.Good),
			Poor: GetFloat("THRESHOLD_"+key+"_POOR", t.Poor),
		}
	}
	if extra := GetString("THRESHOLD_EXTRA_METRICS", ""); extra != "" {
		for _, name := range strings.Split(extra, ",") {
			name = strings.TrimSpace(name)
			if name == "" {
				continue
			}
			key := strings.ToUpper(name)
			good := GetFloat("THRESHOLD_"+key+"_GOOD", 0)
			poor := GetFloat("THRESHOLD_"+key+"_POOR", 0)
			if good > 0 && poor > good {
				thresholds[name] = domain.Threshold{Good: good, Poor: poor}
			}
		}
	}
	return thresholds
}
