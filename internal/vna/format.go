package vna

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/KevinKickass/OpenVNA/internal/command"
	"github.com/KevinKickass/OpenVNA/internal/transport"
	"github.com/KevinKickass/OpenVNA/internal/types"
	"go.uber.org/zap"
)

// restoreFunc puts back state captured by one of the scoped setters.
type restoreFunc func(ctx context.Context) error

func noRestore(context.Context) error { return nil }

// ValueFormat queries the instrument's bulk transfer format. Replies the
// profile does not know leave the cached format in place.
func (i *Instrument) ValueFormat(ctx context.Context) (types.ValueFormat, error) {
	q := i.profile.Definition.ValueFormat.Query
	if q == "" {
		return i.format, nil
	}

	reply, err := i.Query(ctx, q)
	if err != nil {
		return "", fmt.Errorf("query value format: %w", err)
	}

	if f, ok := i.profile.FormatForReply(reply); ok {
		i.format = f
	} else {
		i.logger.Debug("Unrecognized value format reply, keeping cached format",
			zap.String("reply", reply),
			zap.String("format", string(i.format)))
	}
	return i.format, nil
}

// CachedValueFormat is the format bulk replies are currently decoded with.
func (i *Instrument) CachedValueFormat() types.ValueFormat {
	return i.format
}

// SetValueFormat selects f. Binary formats force the byte order first
// when the profile has a byte-order command.
func (i *Instrument) SetValueFormat(ctx context.Context, f types.ValueFormat) error {
	cfg := i.profile.Definition.ValueFormat
	sel, ok := cfg.Select[f]
	if !ok {
		return &types.ConfigurationError{Op: "set value format", Reason: fmt.Sprintf("%s not supported by %s", f, i.profile.ID())}
	}

	if f.IsBinary() && cfg.ByteOrder.Command != "" {
		if err := i.Write(ctx, cfg.ByteOrder.Command); err != nil {
			return fmt.Errorf("set byte order: %w", err)
		}
	}
	if err := i.Write(ctx, sel); err != nil {
		return fmt.Errorf("set value format %s: %w", f, err)
	}

	i.format = f
	return nil
}

// withValueFormat switches to f and returns the restore of the prior format.
func (i *Instrument) withValueFormat(ctx context.Context, f types.ValueFormat) (restoreFunc, error) {
	prior, err := i.ValueFormat(ctx)
	if err != nil {
		return nil, err
	}
	if prior == f {
		return noRestore, nil
	}
	if err := i.SetValueFormat(ctx, f); err != nil {
		return nil, errors.Join(err, i.SetValueFormat(context.WithoutCancel(ctx), prior))
	}
	return func(ctx context.Context) error {
		return i.SetValueFormat(ctx, prior)
	}, nil
}

type TriggerSource string

const (
	TriggerBus      TriggerSource = "bus"
	TriggerInternal TriggerSource = "internal"
)

// SetTriggerSource is a no-op for profiles without the command.
func (i *Instrument) SetTriggerSource(ctx context.Context, src TriggerSource) error {
	cfg := i.profile.Definition.Trigger
	cmd := cfg.Internal
	if src == TriggerBus {
		cmd = cfg.Bus
	}
	if cmd == "" {
		return nil
	}
	if err := i.Write(ctx, cmd); err != nil {
		return fmt.Errorf("set trigger source %s: %w", src, err)
	}
	return nil
}

// withBusTrigger hands sweep control to the caller until restored to the
// internal (free-running) source.
func (i *Instrument) withBusTrigger(ctx context.Context) (restoreFunc, error) {
	if err := i.SetTriggerSource(ctx, TriggerBus); err != nil {
		return nil, errors.Join(err, i.SetTriggerSource(context.WithoutCancel(ctx), TriggerInternal))
	}
	return func(ctx context.Context) error {
		return i.SetTriggerSource(ctx, TriggerInternal)
	}, nil
}

func (i *Instrument) hasActiveChannel() bool {
	cfg := i.profile.Definition.ActiveChannel
	return cfg.Query != "" && cfg.Select != ""
}

// ActiveChannel returns the index of the instrument's active channel.
func (i *Instrument) ActiveChannel(ctx context.Context) (int, error) {
	if !i.hasActiveChannel() {
		return 0, &types.ConfigurationError{Op: "active channel", Reason: "not supported by " + i.profile.ID()}
	}

	q := i.profile.Definition.ActiveChannel.Query
	reply, err := i.Query(ctx, q)
	if err != nil {
		return 0, err
	}
	n, ok := parseIndex(reply)
	if !ok {
		return 0, &types.ProtocolError{Command: q, Reply: reply, Err: fmt.Errorf("invalid channel index")}
	}
	return n, nil
}

// SetActiveChannel is a no-op when ch is already active. Profiles without
// channel selection accept any channel.
func (i *Instrument) SetActiveChannel(ctx context.Context, ch *Channel) error {
	if !i.hasActiveChannel() {
		return nil
	}

	current, err := i.ActiveChannel(ctx)
	if err != nil {
		return err
	}
	if current == ch.index {
		return nil
	}
	return i.selectChannel(ctx, ch.index)
}

func (i *Instrument) selectChannel(ctx context.Context, index int) error {
	cmd := command.ResolveQuery(i.profile.Definition.ActiveChannel.Select, index)
	if err := i.Write(ctx, cmd); err != nil {
		return fmt.Errorf("select channel %d: %w", index, err)
	}
	return nil
}

func (i *Instrument) withActiveChannel(ctx context.Context, ch *Channel) (restoreFunc, error) {
	if !i.hasActiveChannel() {
		return noRestore, nil
	}

	prior, err := i.ActiveChannel(ctx)
	if err != nil {
		return nil, err
	}
	if prior == ch.index {
		return noRestore, nil
	}
	if err := i.selectChannel(ctx, ch.index); err != nil {
		return nil, err
	}
	return func(ctx context.Context) error {
		return i.selectChannel(ctx, prior)
	}, nil
}

// WaitForComplete polls the operation-complete query until the expected
// reply, failing with a TimeoutError once the sweep timeout elapses. The
// trigger is never resent.
func (i *Instrument) WaitForComplete(ctx context.Context) error {
	cfg := i.profile.Definition.Sweep
	if cfg.CompleteQuery == "" {
		return &types.ConfigurationError{Op: "wait for complete", Reason: "no operation-complete query in " + i.profile.ID()}
	}
	want := cfg.CompleteReply
	if want == "" {
		want = "1"
	}

	budget := i.opts.SweepTimeout
	waitCtx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	started := time.Now()
	timeout := func(err error) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &types.TimeoutError{Op: "wait for complete", Budget: budget, Err: err}
	}

	// each poll may wait for its reply until the budget runs out
	pollCtx := transport.UntilDeadline(waitCtx)
	for {
		reply, err := i.Query(pollCtx, cfg.CompleteQuery)
		switch {
		case err == nil:
		case waitCtx.Err() != nil:
			return timeout(err)
		case errors.Is(err, os.ErrDeadlineExceeded):
			// the transport gave up before the budget did; its late
			// reply is dropped by the next poll
			reply = ""
		default:
			return fmt.Errorf("wait for complete: %w", err)
		}
		if trimmed(reply) == want {
			i.logger.Debug("Operation complete", zap.Duration("elapsed", time.Since(started)))
			return nil
		}

		select {
		case <-waitCtx.Done():
			return timeout(waitCtx.Err())
		case <-time.After(i.opts.PollInterval):
		}
	}
}
