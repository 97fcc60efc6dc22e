package config

import (
	"errors"
	"fmt"
)

// Validate checks the structural validity of a Config after defaults are
// applied.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Workspace.Root == "" {
		errs = append(errs, errors.New("config: workspace.root is required"))
	}
	if cfg.Workspace.SharedRoot == "" {
		errs = append(errs, errors.New("config: workspace.shared_root is required"))
	}
	if cfg.Memory.RecentLogDays < 0 {
		errs = append(errs, fmt.Errorf("config: memory.recent_log_days must be non-negative, got %d", cfg.Memory.RecentLogDays))
	}
	if cfg.Memory.RecallLimit < 0 {
		errs = append(errs, fmt.Errorf("config: memory.recall_limit must be non-negative, got %d", cfg.Memory.RecallLimit))
	}
	if cfg.Memory.ParticipantLimit < 0 {
		errs = append(errs, fmt.Errorf("config: memory.participant_limit must be non-negative, got %d", cfg.Memory.ParticipantLimit))
	}
	if cfg.Memory.ContextBudget < 0 {
		errs = append(errs, fmt.Errorf("config: memory.context_budget must be non-negative, got %d", cfg.Memory.ContextBudget))
	}
	if cfg.Index.BusyTimeout < 0 {
		errs = append(errs, fmt.Errorf("config: index.busy_timeout must be non-negative, got %d", cfg.Index.BusyTimeout))
	}

	return errors.Join(errs...)
}
