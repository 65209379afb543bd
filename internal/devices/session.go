package devices

import (
	"context"
	"fmt"
	"time"

	"github.com/KevinKickass/OpenVNA/internal/config"
	"github.com/KevinKickass/OpenVNA/internal/types"
	"github.com/KevinKickass/OpenVNA/internal/vna"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Session is one open instrument. All access to the instrument goes
// through Do, which runs one operation at a time.
type Session struct {
	ID       uuid.UUID
	Name     string
	Config   config.InstrumentConfig
	OpenedAt time.Time

	mu      lockChan
	inst    *vna.Instrument
	manager *Manager
}

type ChannelInfo struct {
	Index int    `json:"index"`
	Name  string `json:"name"`
}

type SessionInfo struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Profile     string          `json:"profile"`
	Transport   string          `json:"transport"`
	Address     string          `json:"address"`
	OpenedAt    time.Time       `json:"opened_at"`
	Diagnostics vna.Diagnostics `json:"diagnostics"`
	Channels    []ChannelInfo   `json:"channels"`
}

// Info is safe to call while an operation is running.
func (s *Session) Info() SessionInfo {
	info := SessionInfo{
		ID:          s.ID.String(),
		Name:        s.Name,
		Profile:     s.Config.Profile,
		Transport:   s.Config.Transport,
		Address:     s.Config.Address,
		OpenedAt:    s.OpenedAt,
		Diagnostics: s.inst.Diagnostics(),
	}
	for _, ch := range s.inst.Channels() {
		info.Channels = append(info.Channels, ChannelInfo{Index: ch.Index(), Name: ch.Name()})
	}
	return info
}

// Do runs fn with exclusive access to the instrument. It gives up with
// ctx.Err() if the instrument stays busy until ctx ends.
func (s *Session) Do(ctx context.Context, fn func(ctx context.Context, inst *vna.Instrument) error) error {
	if err := s.mu.LockContext(ctx); err != nil {
		return err
	}
	defer s.mu.Unlock()

	return fn(ctx, s.inst)
}

// DoChannel is Do for one channel of the instrument.
func (s *Session) DoChannel(ctx context.Context, index int, fn func(ctx context.Context, ch *vna.Channel) error) error {
	return s.Do(ctx, func(ctx context.Context, inst *vna.Instrument) error {
		ch, ok := inst.Channel(index)
		if !ok {
			return fmt.Errorf("channel %d: %w", index, ErrNotFound)
		}
		return fn(ctx, ch)
	})
}

func (s *Session) Get(ctx context.Context, channel int, property string) (any, error) {
	var value any
	err := s.DoChannel(ctx, channel, func(ctx context.Context, ch *vna.Channel) error {
		v, err := ch.Get(ctx, property)
		value = v
		return err
	})
	return value, err
}

func (s *Session) Set(ctx context.Context, channel int, property string, value any) error {
	err := s.DoChannel(ctx, channel, func(ctx context.Context, ch *vna.Channel) error {
		return ch.Set(ctx, property, value)
	})
	if err != nil {
		return err
	}

	s.manager.publisher.Publish(EventPropertyChanged, PropertyChange{
		SessionID: s.ID.String(),
		Name:      s.Name,
		Channel:   channel,
		Property:  property,
		Value:     value,
	})
	return nil
}

func (s *Session) Frequency(ctx context.Context, channel int) (types.FrequencySweep, error) {
	var f types.FrequencySweep
	err := s.DoChannel(ctx, channel, func(ctx context.Context, ch *vna.Channel) error {
		var err error
		f, err = ch.Frequency(ctx)
		return err
	})
	return f, err
}

func (s *Session) SetFrequency(ctx context.Context, channel int, f types.FrequencySweep) error {
	err := s.DoChannel(ctx, channel, func(ctx context.Context, ch *vna.Channel) error {
		return ch.SetFrequency(ctx, f)
	})
	if err != nil {
		return err
	}

	s.manager.publisher.Publish(EventPropertyChanged, PropertyChange{
		SessionID: s.ID.String(),
		Name:      s.Name,
		Channel:   channel,
		Property:  "frequency",
		Value:     f,
	})
	return nil
}

func (s *Session) Sweep(ctx context.Context, channel int) error {
	return s.DoChannel(ctx, channel, func(ctx context.Context, ch *vna.Channel) error {
		return ch.Sweep(ctx)
	})
}

// Acquire sweeps the channel and reads the S-parameters of ports (nil
// for the full pair). The outcome is recorded in metrics and published.
func (s *Session) Acquire(ctx context.Context, channel int, ports []int) (*types.MeasurementResult, error) {
	start := time.Now()

	var result *types.MeasurementResult
	err := s.DoChannel(ctx, channel, func(ctx context.Context, ch *vna.Channel) error {
		var err error
		result, err = ch.GetSNPNetwork(ctx, ports)
		return err
	})
	elapsed := time.Since(start)

	m := s.manager
	if m.metrics != nil {
		m.metrics.ObserveAcquisition(s.Name, elapsed, err)
	}

	event := AcquisitionEvent{
		SessionID:  s.ID.String(),
		Name:       s.Name,
		Channel:    channel,
		Ports:      ports,
		DurationMS: float64(elapsed.Microseconds()) / 1000,
	}

	if err != nil {
		m.logger.Warn("Acquisition failed",
			zap.String("instrument", s.Name),
			zap.Int("channel", channel),
			zap.Error(err))
		event.Error = err.Error()
		m.publisher.Publish(EventAcquisitionFailed, event)
		return nil, err
	}

	event.Ports = result.Ports
	event.Points = result.NPoints()
	m.publisher.Publish(EventAcquisitionCompleted, event)
	return result, nil
}

// lockChan is a mutex whose Lock can be abandoned when a context ends.
type lockChan chan struct{}

func newLock() lockChan {
	return make(lockChan, 1)
}

func (l lockChan) LockContext(ctx context.Context) error {
	select {
	case l <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l lockChan) Lock() {
	l <- struct{}{}
}

func (l lockChan) Unlock() {
	<-l
}
