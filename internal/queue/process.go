package queue

import (
	"context"
	"errors"
	"fmt"

	"github.com/bridgewise/backend/internal/config"
	"github.com/bridgewise/backend/pkg/logger"
	"github.com/bridgewise/backend/pkg/precompute"
)

// Runner runs one precomputation.
type Runner interface {
	Run(ctx context.Context, params precompute.Params) (*precompute.Result, error)
}

// ProcessRecomputeMessage runs the precomputation requested by body. A run
// that is skipped because another process holds the lease counts as done:
// the running job already picks up the latest contacts. Message params are
// applied on top of base, which must be set when a message carries them.
func ProcessRecomputeMessage(ctx context.Context, runner Runner, base *config.Config, body []byte) error {
	msg, err := ParseRecomputeMsg(body)
	if err != nil {
		return err
	}

	params := precompute.Params{}
	if msg.Goal != nil {
		goal := msg.Goal.Request()
		params.Goal = &goal
	}
	if msg.Params != nil {
		if base == nil {
			return errors.New("run parameters given but no base configuration")
		}
		cfg, err := base.WithOverrides(*msg.Params)
		if err != nil {
			return err
		}
		builder, err := cfg.NewBuilder()
		if err != nil {
			return fmt.Errorf("failed to create graph builder: %w", err)
		}
		params.Builder = builder
		params.Community = &cfg.Community
	}

	logger.Info("[Queue] Recompute requested", "correlation_id", msg.CorrelationID, "requested_by", msg.RequestedBy)
	res, err := runner.Run(ctx, params)
	if errors.Is(err, precompute.ErrAlreadyRunning) {
		logger.Info("[Queue] Recompute skipped, another run is in progress", "correlation_id", msg.CorrelationID)
		return nil
	}
	if err != nil {
		return err
	}

	logger.Info("[Queue] Recompute finished", "correlation_id", msg.CorrelationID, "artifact", res.Artifact.ID)
	return nil
}
