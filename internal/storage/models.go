package storage

import (
	"context"
	"errors"
	"time"

	"github.com/KevinKickass/OpenVNA/internal/types"
	"github.com/google/uuid"
)

var ErrNotFound = errors.New("measurement not found")

// Measurement is one archived acquisition.
type Measurement struct {
	ID         uuid.UUID                `json:"id"`
	SessionID  uuid.UUID                `json:"session_id"`
	Instrument string                   `json:"instrument"`
	Profile    string                   `json:"profile"`
	Model      string                   `json:"model"`
	Channel    int                      `json:"channel"`
	Result     *types.MeasurementResult `json:"result"`
	CreatedAt  time.Time                `json:"created_at"`
}

// MeasurementSummary is a Measurement without its data.
type MeasurementSummary struct {
	ID         uuid.UUID `json:"id"`
	Instrument string    `json:"instrument"`
	Model      string    `json:"model"`
	Channel    int       `json:"channel"`
	Ports      []int     `json:"ports"`
	Points     int       `json:"points"`
	CreatedAt  time.Time `json:"created_at"`
}

func (m *Measurement) Summary() MeasurementSummary {
	s := MeasurementSummary{
		ID:         m.ID,
		Instrument: m.Instrument,
		Model:      m.Model,
		Channel:    m.Channel,
		CreatedAt:  m.CreatedAt,
	}
	if m.Result != nil {
		s.Ports = m.Result.Ports
		s.Points = m.Result.NPoints()
	}
	return s
}

// Store archives measurements. PostgresClient and MemoryStore implement it.
type Store interface {
	SaveMeasurement(ctx context.Context, m *Measurement) error
	LoadMeasurement(ctx context.Context, id uuid.UUID) (*Measurement, error)
	// ListMeasurements returns newest first; an empty instrument matches all.
	ListMeasurements(ctx context.Context, instrument string, limit int) ([]MeasurementSummary, error)
}

var (
	_ Store = (*PostgresClient)(nil)
	_ Store = (*MemoryStore)(nil)
)
