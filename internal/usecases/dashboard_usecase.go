package usecases

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"project_supportbot/internal/observability"
	"project_supportbot/internal/repository"
)

// Setting keys understood by the dashboard
const (
	KeyWelcomeMessage         = "welcome_message"
	KeyAvgResponseTime        = "avg_response_time_seconds"
	KeyResolutionRate         = "resolution_rate"
	KeySatisfactionScore      = "satisfaction_score"
	KeyFirstContactResolution = "first_contact_resolution"
	KeyEscalationRate         = "escalation_rate"
)

// settingBounds lists numeric keys and their accepted range
var settingBounds = map[string][2]float64{
	KeyAvgResponseTime:        {0, 3600},
	KeyResolutionRate:         {0, 100},
	KeySatisfactionScore:      {0, SatisfactionScale},
	KeyFirstContactResolution: {0, 100},
	KeyEscalationRate:         {0, 100},
}

// ErrInvalidSetting marks a rejected key or value; storage failures are not wrapped with it
var ErrInvalidSetting = errors.New("invalid setting")

type DashboardUsecase struct {
	configRepo repository.SettingsStore
	log        *slog.Logger
}

func NewDashboardUsecase(configRepo repository.SettingsStore) *DashboardUsecase {
	return &DashboardUsecase{
		configRepo: configRepo,
		log:        observability.Component("dashboard"),
	}
}

// IsKnownSetting reports whether key is one the dashboard manages
func IsKnownSetting(key string) bool {
	if key == KeyWelcomeMessage {
		return true
	}
	_, ok := settingBounds[key]
	return ok
}

func (u *DashboardUsecase) GetConfig(ctx context.Context, key string) (string, error) {
	return u.configRepo.GetConfig(ctx, key)
}

// SetConfig validates the key and, for numeric figures, the value range
func (u *DashboardUsecase) SetConfig(ctx context.Context, key, value string) error {
	if !IsKnownSetting(key) {
		return fmt.Errorf("%w: unknown key %q", ErrInvalidSetting, key)
	}
	value = strings.TrimSpace(value)
	if bounds, numeric := settingBounds[key]; numeric {
		f, err := strconv.ParseFloat(value, 64)
		if err != nil || math.IsNaN(f) {
			return fmt.Errorf("%w: %q must be a number", ErrInvalidSetting, key)
		}
		if f < bounds[0] || f > bounds[1] {
			return fmt.Errorf("%w: %q must be between %g and %g", ErrInvalidSetting, key, bounds[0], bounds[1])
		}
	}
	if err := u.configRepo.SetConfig(ctx, key, value); err != nil {
		return fmt.Errorf("save setting %q: %w", key, err)
	}
	return nil
}

func (u *DashboardUsecase) GetAllConfigs(ctx context.Context) ([]repository.BotConfig, error) {
	return u.configRepo.GetAllConfigs(ctx)
}

// WelcomeMessage returns the configured greeting, or "" to use the built-in one
func (u *DashboardUsecase) WelcomeMessage(ctx context.Context) string {
	welcome, err := u.configRepo.GetConfig(ctx, KeyWelcomeMessage)
	if err != nil {
		u.log.Warn("failed to read welcome message", "error", err)
		return ""
	}
	return welcome
}

// PerformanceFigures applies stored overrides on top of the static defaults.
// Unreadable or malformed values fall back to the default for that figure.
func (u *DashboardUsecase) PerformanceFigures(ctx context.Context) PerformanceFigures {
	perf := DefaultPerformanceFigures()

	fields := map[string]*float64{
		KeyAvgResponseTime:        &perf.AvgResponseTimeSeconds,
		KeyResolutionRate:         &perf.ResolutionRate,
		KeySatisfactionScore:      &perf.SatisfactionScore,
		KeyFirstContactResolution: &perf.FirstContactResolution,
		KeyEscalationRate:         &perf.EscalationRate,
	}
	for key, field := range fields {
		raw, err := u.configRepo.GetConfig(ctx, key)
		if err != nil {
			u.log.Warn("failed to read setting", "key", key, "error", err)
			continue
		}
		if raw == "" {
			continue
		}
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			u.log.Warn("ignoring malformed setting", "key", key, "value", raw)
			continue
		}
		*field = f
	}
	return perf
}
