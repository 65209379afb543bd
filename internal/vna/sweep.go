package vna

import (
	"context"
	"errors"
	"fmt"

	"github.com/KevinKickass/OpenVNA/internal/command"
	"github.com/KevinKickass/OpenVNA/internal/types"
	"go.uber.org/zap"
)

// Sweep triggers one fresh acquisition and returns once its data is
// ready, leaving the sweep mode as the caller left it.
//
// wait_complete profiles trigger and poll operation complete.
// force_single profiles trigger, force single mode, and put the captured
// mode back afterwards, also on failure.
func (c *Channel) Sweep(ctx context.Context) (err error) {
	inst := c.inst
	cfg := inst.profile.Definition.Sweep

	if err := inst.transport.Clear(ctx); err != nil {
		return fmt.Errorf("clear transport: %w", err)
	}

	var (
		prior    types.SweepMode
		captured bool
	)
	if d, ok := inst.profile.Commands.Lookup(PropSweepMode); ok && d.Readable() {
		if prior, err = c.SweepMode(ctx); err != nil {
			return fmt.Errorf("capture sweep mode: %w", err)
		}
		captured = true
	}

	if err := inst.Write(ctx, command.ResolveQuery(cfg.Trigger, c.index)); err != nil {
		return fmt.Errorf("trigger: %w", err)
	}

	switch cfg.Strategy {
	case types.SweepWaitComplete:
		return inst.WaitForComplete(ctx)

	case types.SweepForceSingle:
		if !captured {
			return &types.ConfigurationError{Op: "sweep", Reason: "force_single needs a readable sweep_mode"}
		}
		defer func() {
			if rerr := c.SetSweepMode(context.WithoutCancel(ctx), prior); rerr != nil {
				inst.logger.Error("Failed to restore sweep mode",
					zap.Int("channel", c.index),
					zap.String("mode", string(prior)),
					zap.Error(rerr))
				err = errors.Join(err, fmt.Errorf("restore sweep mode: %w", rerr))
			}
		}()

		if err := c.SetSweepMode(ctx, types.SweepModeSingle); err != nil {
			return err
		}
		if cfg.CompleteQuery != "" {
			return inst.WaitForComplete(ctx)
		}
		return nil

	default:
		return &types.ConfigurationError{Op: "sweep", Reason: fmt.Sprintf("unknown strategy %q", cfg.Strategy)}
	}
}
