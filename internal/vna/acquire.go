package vna

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/KevinKickass/OpenVNA/internal/command"
	"github.com/KevinKickass/OpenVNA/internal/types"
	"go.uber.org/zap"
)

// Column order of the full port-pair query on the wire, as tensor
// positions [out][in].
var fullPairLayout = [4][2]int{
	{0, 0}, // S11
	{1, 1}, // S22
	{0, 1}, // S12
	{1, 0}, // S21
}

type networkPlan struct {
	ports []int
	query string
	full  bool
}

// planNetwork validates the port combination without touching the wire.
// nil means the full pair; (2, 1) is the full pair too.
func (c *Channel) planNetwork(ports []int) (networkPlan, error) {
	p := c.inst.profile
	op := fmt.Sprintf("get network %v", ports)

	switch {
	case len(ports) == 0 || isFullPair(ports):
		q, ok := p.FullQuery()
		if !ok {
			return networkPlan{}, &types.ConfigurationError{Op: op, Reason: "full port pair not supported by " + p.ID()}
		}
		return networkPlan{ports: []int{1, 2}, query: q, full: true}, nil

	case len(ports) == 1:
		q, ok := p.SinglePortQuery(ports[0])
		if !ok {
			return networkPlan{}, &types.ConfigurationError{Op: op, Reason: fmt.Sprintf("single port %d not supported by %s", ports[0], p.ID())}
		}
		return networkPlan{ports: []int{ports[0]}, query: q}, nil
	}

	return networkPlan{}, &types.ConfigurationError{Op: op, Reason: "valid combinations are a single port or the full pair (1, 2)"}
}

func isFullPair(ports []int) bool {
	return len(ports) == 2 &&
		(ports[0] == 1 && ports[1] == 2 || ports[0] == 2 && ports[1] == 1)
}

// GetSNPNetwork sweeps the channel and returns its S-parameters for
// ports. The value format, active channel and trigger source are switched
// for the transfer and restored before returning, on every path.
func (c *Channel) GetSNPNetwork(ctx context.Context, ports []int) (result *types.MeasurementResult, err error) {
	plan, err := c.planNetwork(ports)
	if err != nil {
		return nil, err
	}

	inst := c.inst
	started := time.Now()

	freq, err := c.Frequency(ctx)
	if err != nil {
		return nil, err
	}

	restore := func(what string, fn restoreFunc) {
		if rerr := fn(context.WithoutCancel(ctx)); rerr != nil {
			inst.logger.Error("Failed to restore instrument state",
				zap.String("state", what),
				zap.Int("channel", c.index),
				zap.Error(rerr))
			err = errors.Join(err, fmt.Errorf("restore %s: %w", what, rerr))
		}
	}

	restoreFormat, err := inst.withValueFormat(ctx, inst.profile.Definition.ValueFormat.Fastest)
	if err != nil {
		return nil, err
	}
	defer restore("value format", restoreFormat)

	restoreChannel, err := inst.withActiveChannel(ctx, c)
	if err != nil {
		return nil, err
	}
	defer restore("active channel", restoreChannel)

	restoreTrigger, err := inst.withBusTrigger(ctx)
	if err != nil {
		return nil, err
	}
	defer restore("trigger source", restoreTrigger)

	if err := c.Sweep(ctx); err != nil {
		return nil, err
	}

	cmd := command.ResolveQuery(plan.query, c.index)
	values, err := inst.QueryComplexValues(ctx, cmd)
	if err != nil {
		return nil, err
	}

	result, err = assemble(freq, plan, values)
	if err != nil {
		return nil, &types.ProtocolError{Command: cmd, Err: err}
	}

	inst.logger.Info("Acquisition completed",
		zap.Int("channel", c.index),
		zap.Ints("ports", plan.ports),
		zap.Int("points", freq.Points),
		zap.Duration("elapsed", time.Since(started)))

	return result, nil
}

// GetSData returns the reflection data of port 1.
func (c *Channel) GetSData(ctx context.Context) (*types.MeasurementResult, error) {
	return c.GetSNPNetwork(ctx, []int{1})
}

func assemble(freq types.FrequencySweep, plan networkPlan, values []complex128) (*types.MeasurementResult, error) {
	columns := 1
	if plan.full {
		columns = len(fullPairLayout)
	}
	if want := freq.Points * columns; len(values) != want {
		return nil, fmt.Errorf("expected %d complex values for %d points, got %d", want, freq.Points, len(values))
	}

	result := types.NewMeasurementResult(freq, plan.ports)
	for f := range result.S {
		row := values[f*columns : (f+1)*columns]
		if !plan.full {
			result.S[f][0][0] = row[0]
			continue
		}
		for k, pos := range fullPairLayout {
			result.S[f][pos[0]][pos[1]] = row[k]
		}
	}
	return result, nil
}
