// Package vna drives vector network analyzers through a profile: typed
// channel properties, value-format negotiation, sweeps, and S-parameter
// acquisition over one exclusively owned transport.
//
// An Instrument is not safe for concurrent use. Every operation is a
// sequence of round trips that must not interleave with another; callers
// serialize access (see devices.Session).
package vna

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/KevinKickass/OpenVNA/internal/command"
	"github.com/KevinKickass/OpenVNA/internal/profiles"
	"github.com/KevinKickass/OpenVNA/internal/transport"
	"github.com/KevinKickass/OpenVNA/internal/types"
	"go.uber.org/zap"
)

const (
	DefaultSweepTimeout = 60 * time.Second
	DefaultPollInterval = 100 * time.Millisecond
)

type Options struct {
	// SweepTimeout bounds the wait for operation complete.
	SweepTimeout time.Duration
	PollInterval time.Duration
}

func (o Options) withDefaults() Options {
	if o.SweepTimeout <= 0 {
		o.SweepTimeout = DefaultSweepTimeout
	}
	if o.PollInterval <= 0 {
		o.PollInterval = DefaultPollInterval
	}
	return o
}

type Instrument struct {
	transport transport.Transport
	profile   *profiles.Profile
	logger    *zap.Logger
	opts      Options

	id    string
	model string
	diag  Diagnostics

	channels map[int]*Channel
	order    []int

	// last known value format; kept when the instrument reports garbage
	format types.ValueFormat
}

// New identifies the instrument, creates the profile's channels, and
// selects the first one when the profile has an active-channel notion.
// The instrument takes ownership of t.
func New(ctx context.Context, t transport.Transport, p *profiles.Profile, logger *zap.Logger, opts Options) (*Instrument, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	inst := &Instrument{
		transport: t,
		profile:   p,
		logger:    logger.With(zap.String("profile", p.ID())),
		opts:      opts.withDefaults(),
		channels:  make(map[int]*Channel),
		format:    types.FormatText,
	}

	id, err := inst.Query(ctx, p.Definition.Identify.Query)
	if err != nil {
		return nil, fmt.Errorf("identify failed: %w", err)
	}
	inst.id = strings.TrimSpace(id)
	inst.model = p.ParseModel(inst.id)
	inst.diag = inst.diagnose()

	for _, ch := range p.Definition.Channels {
		if _, err := inst.CreateChannel(ch.Index, ch.Name); err != nil {
			return nil, err
		}
	}

	if inst.hasActiveChannel() && len(inst.order) > 0 {
		if err := inst.SetActiveChannel(ctx, inst.channels[inst.order[0]]); err != nil {
			return nil, fmt.Errorf("select channel %d: %w", inst.order[0], err)
		}
	}

	inst.logger.Info("Instrument connected",
		zap.String("id", inst.id),
		zap.String("model", inst.model),
		zap.Bool("tested", inst.diag.Tested))

	for _, w := range inst.diag.Warnings {
		inst.logger.Warn(w, zap.String("model", inst.model))
	}

	return inst, nil
}

func (i *Instrument) ID() string                 { return i.id }
func (i *Instrument) Model() string              { return i.model }
func (i *Instrument) Profile() *profiles.Profile { return i.profile }
func (i *Instrument) Options() Options           { return i.opts }

// Supports reports whether the detected model has feature.
func (i *Instrument) Supports(feature string) bool {
	info, _ := i.profile.Model(i.model)
	return !slices.Contains(info.Unsupported, feature)
}

// NPorts queries the port count when the model supports it, falling back
// to the profile's model parameter.
func (i *Instrument) NPorts(ctx context.Context) (int, error) {
	q := i.profile.Definition.NPortsQuery
	if q == "" || !i.Supports("nports") {
		info, _ := i.profile.Model(i.model)
		return info.NPorts, nil
	}

	reply, err := i.Query(ctx, q)
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(strings.TrimSpace(reply))
	if err != nil || n <= 0 {
		return 0, &types.ProtocolError{Command: q, Reply: reply, Err: fmt.Errorf("invalid port count")}
	}
	return n, nil
}

func (i *Instrument) CreateChannel(index int, name string) (*Channel, error) {
	if index <= 0 {
		return nil, &types.ConfigurationError{Op: "create channel", Reason: fmt.Sprintf("invalid index %d", index)}
	}
	if _, exists := i.channels[index]; exists {
		return nil, &types.ConfigurationError{Op: "create channel", Reason: fmt.Sprintf("channel %d already exists", index)}
	}
	if name == "" {
		name = fmt.Sprintf("Channel %d", index)
	}

	ch := &Channel{inst: i, index: index, name: name}
	i.channels[index] = ch
	i.order = append(i.order, index)
	return ch, nil
}

func (i *Instrument) Channel(index int) (*Channel, bool) {
	ch, ok := i.channels[index]
	return ch, ok
}

// Channels returns channels in creation order.
func (i *Instrument) Channels() []*Channel {
	out := make([]*Channel, 0, len(i.order))
	for _, idx := range i.order {
		out = append(out, i.channels[idx])
	}
	return out
}

// Write sends a raw command.
func (i *Instrument) Write(ctx context.Context, cmd string) error {
	i.logger.Debug("write", zap.String("cmd", cmd))
	return i.transport.Write(ctx, cmd)
}

// Query sends a raw query and returns the reply line.
func (i *Instrument) Query(ctx context.Context, cmd string) (string, error) {
	reply, err := i.transport.Query(ctx, cmd)
	if err != nil {
		i.logger.Debug("query failed", zap.String("cmd", cmd), zap.Error(err))
		return "", err
	}
	i.logger.Debug("query", zap.String("cmd", cmd), zap.String("reply", reply))
	return reply, nil
}

func (i *Instrument) Close() error {
	i.logger.Info("Instrument disconnected", zap.String("id", i.id))
	return i.transport.Close()
}

var _ command.Session = (*Instrument)(nil)
