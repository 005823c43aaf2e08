package service

import (
	"context"
	"errors"

	"github.com/spec-kit/ticket-lifecycle/internal/config"
	"github.com/spec-kit/ticket-lifecycle/internal/repository"
	apperrors "github.com/spec-kit/ticket-lifecycle/pkg/util"
)

// StatusConfig holds the status identities the engine depends on.
type StatusConfig struct {
	Closed  int64
	Default int64
}

// ResolveStatuses looks up the configured status names once at startup.
// A missing row is a ConfigurationError.
func ResolveStatuses(ctx context.Context, r repository.Reader, cfg config.LifecycleConfig) (StatusConfig, error) {
	closed, err := statusID(ctx, r, cfg.ClosedStatusName)
	if err != nil {
		return StatusConfig{}, err
	}
	def, err := statusID(ctx, r, cfg.DefaultStatusName)
	if err != nil {
		return StatusConfig{}, err
	}
	return StatusConfig{Closed: closed, Default: def}, nil
}

func statusID(ctx context.Context, r repository.Reader, name string) (int64, error) {
	status, err := r.StatusByName(ctx, name)
	if errors.Is(err, repository.ErrNotFound) {
		return 0, apperrors.NewConfigurationError("required status missing", map[string]any{"status_name": name})
	}
	if err != nil {
		return 0, err
	}
	return status.ID, nil
}
