package vna

import (
	"context"
	"fmt"

	"github.com/KevinKickass/OpenVNA/internal/command"
	"github.com/KevinKickass/OpenVNA/internal/types"
)

// Property names the engine itself relies on.
const (
	PropFreqStart      = "freq_start"
	PropFreqStop       = "freq_stop"
	PropFreqSpan       = "freq_span"
	PropFreqCenter     = "freq_center"
	PropPoints         = "npoints"
	PropIFBandwidth    = "if_bandwidth"
	PropSweepType      = "sweep_type"
	PropSweepMode      = "sweep_mode"
	PropContinuous     = "is_continuous"
	PropAveragingOn    = "averaging_on"
	PropAveragingCount = "averaging_count"
	PropAveragingMode  = "averaging_mode"
)

// Channel is an index-scoped measurement setup. It holds a non-owning
// reference to its instrument.
type Channel struct {
	inst  *Instrument
	index int
	name  string
}

func (c *Channel) Index() int              { return c.index }
func (c *Channel) Name() string            { return c.name }
func (c *Channel) Instrument() *Instrument { return c.inst }

type PropertyInfo struct {
	Name     string `json:"name"`
	Doc      string `json:"doc,omitempty"`
	Readable bool   `json:"readable"`
	Writable bool   `json:"writable"`
	Domain   string `json:"domain"`
}

// Properties lists the profile's properties in declaration order.
func (c *Channel) Properties() []PropertyInfo {
	reg := c.inst.profile.Commands
	out := make([]PropertyInfo, 0, reg.Len())
	for _, name := range reg.Names() {
		d, _ := reg.Lookup(name)
		out = append(out, PropertyInfo{
			Name:     d.Name,
			Doc:      d.Doc,
			Readable: d.Readable(),
			Writable: d.Writable(),
			Domain:   d.Validator.Domain(),
		})
	}
	return out
}

// Get reads a property by name.
func (c *Channel) Get(ctx context.Context, name string) (any, error) {
	d, err := c.inst.profile.Commands.MustLookup(name)
	if err != nil {
		return nil, err
	}
	return command.Get(ctx, c.inst, d, c.index)
}

// Set writes a property by name; values outside its domain are rejected
// before anything is sent.
func (c *Channel) Set(ctx context.Context, name string, v any) error {
	d, err := c.inst.profile.Commands.MustLookup(name)
	if err != nil {
		return err
	}
	return command.Set(ctx, c.inst, d, c.index, v)
}

func get[T any](ctx context.Context, c *Channel, name string) (T, error) {
	var zero T
	v, err := c.Get(ctx, name)
	if err != nil {
		return zero, err
	}
	t, ok := v.(T)
	if !ok {
		return zero, &types.ConfigurationError{Op: "get " + name, Reason: fmt.Sprintf("profile decodes %T, not %T", v, zero)}
	}
	return t, nil
}

func (c *Channel) FreqStart(ctx context.Context) (float64, error) {
	return get[float64](ctx, c, PropFreqStart)
}

func (c *Channel) FreqStop(ctx context.Context) (float64, error) {
	return get[float64](ctx, c, PropFreqStop)
}

func (c *Channel) FreqSpan(ctx context.Context) (float64, error) {
	return get[float64](ctx, c, PropFreqSpan)
}

func (c *Channel) FreqCenter(ctx context.Context) (float64, error) {
	return get[float64](ctx, c, PropFreqCenter)
}

func (c *Channel) Points(ctx context.Context) (int, error) {
	return get[int](ctx, c, PropPoints)
}

func (c *Channel) IFBandwidth(ctx context.Context) (float64, error) {
	return get[float64](ctx, c, PropIFBandwidth)
}

func (c *Channel) SweepType(ctx context.Context) (types.SweepType, error) {
	return get[types.SweepType](ctx, c, PropSweepType)
}

func (c *Channel) SweepMode(ctx context.Context) (types.SweepMode, error) {
	return get[types.SweepMode](ctx, c, PropSweepMode)
}

func (c *Channel) Continuous(ctx context.Context) (bool, error) {
	return get[bool](ctx, c, PropContinuous)
}

func (c *Channel) AveragingOn(ctx context.Context) (bool, error) {
	return get[bool](ctx, c, PropAveragingOn)
}

func (c *Channel) AveragingCount(ctx context.Context) (int, error) {
	return get[int](ctx, c, PropAveragingCount)
}

// AveragingMode reports sweep averaging (true) or point averaging (false).
func (c *Channel) AveragingMode(ctx context.Context) (bool, error) {
	return get[bool](ctx, c, PropAveragingMode)
}

func (c *Channel) SetFreqStart(ctx context.Context, hz float64) error {
	return c.Set(ctx, PropFreqStart, hz)
}

func (c *Channel) SetFreqStop(ctx context.Context, hz float64) error {
	return c.Set(ctx, PropFreqStop, hz)
}

func (c *Channel) SetFreqSpan(ctx context.Context, hz float64) error {
	return c.Set(ctx, PropFreqSpan, hz)
}

func (c *Channel) SetFreqCenter(ctx context.Context, hz float64) error {
	return c.Set(ctx, PropFreqCenter, hz)
}

func (c *Channel) SetPoints(ctx context.Context, n int) error {
	return c.Set(ctx, PropPoints, n)
}

func (c *Channel) SetIFBandwidth(ctx context.Context, hz float64) error {
	return c.Set(ctx, PropIFBandwidth, hz)
}

func (c *Channel) SetSweepType(ctx context.Context, t types.SweepType) error {
	return c.Set(ctx, PropSweepType, t)
}

func (c *Channel) SetSweepMode(ctx context.Context, m types.SweepMode) error {
	return c.Set(ctx, PropSweepMode, m)
}

func (c *Channel) SetContinuous(ctx context.Context, on bool) error {
	return c.Set(ctx, PropContinuous, on)
}

func (c *Channel) SetAveragingOn(ctx context.Context, on bool) error {
	return c.Set(ctx, PropAveragingOn, on)
}

func (c *Channel) SetAveragingCount(ctx context.Context, n int) error {
	return c.Set(ctx, PropAveragingCount, n)
}

func (c *Channel) SetAveragingMode(ctx context.Context, sweep bool) error {
	return c.Set(ctx, PropAveragingMode, sweep)
}

// Frequency reads start, stop and point count, in that order.
func (c *Channel) Frequency(ctx context.Context) (types.FrequencySweep, error) {
	start, err := c.FreqStart(ctx)
	if err != nil {
		return types.FrequencySweep{}, err
	}
	stop, err := c.FreqStop(ctx)
	if err != nil {
		return types.FrequencySweep{}, err
	}
	points, err := c.Points(ctx)
	if err != nil {
		return types.FrequencySweep{}, err
	}

	f := types.FrequencySweep{Start: start, Stop: stop, Points: points, Unit: types.UnitHz}
	if err := f.Validate(); err != nil {
		return types.FrequencySweep{}, &types.ProtocolError{Command: "frequency", Err: err}
	}
	return f, nil
}

// SetFrequency writes start, then stop, then point count. Start and stop
// must be in place before the point count is applied.
func (c *Channel) SetFrequency(ctx context.Context, f types.FrequencySweep) error {
	if err := f.Validate(); err != nil {
		return err
	}

	writes := []struct {
		name  string
		value any
	}{
		{PropFreqStart, f.StartHz()},
		{PropFreqStop, f.StopHz()},
		{PropPoints, f.Points},
	}

	// Encode everything up front so an invalid point count sends nothing.
	reg := c.inst.profile.Commands
	for _, w := range writes {
		d, err := reg.MustLookup(w.name)
		if err != nil {
			return err
		}
		if _, err := d.Validator.Encode(w.value); err != nil {
			return err
		}
	}

	for _, w := range writes {
		if err := c.Set(ctx, w.name, w.value); err != nil {
			return err
		}
	}
	return nil
}

// ClearAveraging restarts averaging using the profile's action.
func (c *Channel) ClearAveraging(ctx context.Context) error {
	cmd, ok := c.inst.profile.Action("clear_averaging")
	if !ok {
		return &types.ConfigurationError{Op: "clear averaging", Reason: "not supported by " + c.inst.profile.ID()}
	}
	return c.inst.Write(ctx, command.ResolveQuery(cmd, c.index))
}
