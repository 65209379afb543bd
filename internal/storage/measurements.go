package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/KevinKickass/OpenVNA/internal/types"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// SaveMeasurement inserts m, assigning ID and CreatedAt when unset.
func (p *PostgresClient) SaveMeasurement(ctx context.Context, m *Measurement) error {
	if m.Result == nil {
		return errors.New("measurement has no result")
	}
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}

	resultJSON, err := json.Marshal(m.Result)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}

	_, err = p.pool.Exec(ctx, `
		INSERT INTO measurements (id, session_id, instrument, profile, model, channel, ports, points, result, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, m.ID, m.SessionID, m.Instrument, m.Profile, m.Model, m.Channel,
		toInt32(m.Result.Ports), m.Result.NPoints(), resultJSON, m.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to insert measurement: %w", err)
	}

	return nil
}

func (p *PostgresClient) LoadMeasurement(ctx context.Context, id uuid.UUID) (*Measurement, error) {
	var (
		m          Measurement
		resultJSON []byte
	)
	err := p.pool.QueryRow(ctx, `
		SELECT id, session_id, instrument, profile, model, channel, result, created_at
		FROM measurements
		WHERE id = $1
	`, id).Scan(&m.ID, &m.SessionID, &m.Instrument, &m.Profile, &m.Model, &m.Channel, &resultJSON, &m.CreatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load measurement: %w", err)
	}

	m.Result = &types.MeasurementResult{}
	if err := json.Unmarshal(resultJSON, m.Result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal result: %w", err)
	}

	return &m, nil
}

func (p *PostgresClient) ListMeasurements(ctx context.Context, instrument string, limit int) ([]MeasurementSummary, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := p.pool.Query(ctx, `
		SELECT id, instrument, model, channel, ports, points, created_at
		FROM measurements
		WHERE $1 = '' OR instrument = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, instrument, limit)

	if err != nil {
		return nil, fmt.Errorf("failed to query measurements: %w", err)
	}
	defer rows.Close()

	var summaries []MeasurementSummary
	for rows.Next() {
		var (
			s     MeasurementSummary
			ports []int32
		)
		if err := rows.Scan(&s.ID, &s.Instrument, &s.Model, &s.Channel, &ports, &s.Points, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan measurement: %w", err)
		}
		s.Ports = make([]int, len(ports))
		for i, p := range ports {
			s.Ports[i] = int(p)
		}
		summaries = append(summaries, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate measurements: %w", err)
	}

	return summaries, nil
}

func toInt32(values []int) []int32 {
	out := make([]int32, len(values))
	for i, v := range values {
		out[i] = int32(v)
	}
	return out
}
