package storage

import (
	"context"
	"testing"
	"time"

	"github.com/KevinKickass/OpenVNA/internal/types"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func measurement(instrument string, at time.Time) *Measurement {
	freq := types.FrequencySweep{Start: 1, Stop: 2, Points: 3, Unit: types.UnitGHz}
	return &Measurement{
		SessionID:  uuid.New(),
		Instrument: instrument,
		Profile:    "copper-mountain-s2",
		Model:      "C4220",
		Channel:    1,
		Result:     types.NewMeasurementResult(freq, []int{1, 2}),
		CreatedAt:  at,
	}
}

func TestMemoryStoreSaveLoad(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(0)

	m := measurement("bench", time.Time{})
	require.NoError(t, s.SaveMeasurement(ctx, m))
	require.NotEqual(t, uuid.Nil, m.ID)
	require.False(t, m.CreatedAt.IsZero())

	got, err := s.LoadMeasurement(ctx, m.ID)
	require.NoError(t, err)
	assert.Same(t, m, got)

	_, err = s.LoadMeasurement(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Error(t, s.SaveMeasurement(ctx, &Measurement{Instrument: "bench"}))
}

func TestMemoryStoreList(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(3)
	base := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)

	var ids []uuid.UUID
	for i, name := range []string{"bench", "lab", "bench", "bench"} {
		m := measurement(name, base.Add(time.Duration(i)*time.Minute))
		require.NoError(t, s.SaveMeasurement(ctx, m))
		ids = append(ids, m.ID)
	}

	t.Run("capacity drops oldest", func(t *testing.T) {
		_, err := s.LoadMeasurement(ctx, ids[0])
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("newest first", func(t *testing.T) {
		all, err := s.ListMeasurements(ctx, "", 0)
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.Equal(t, ids[3], all[0].ID)
		assert.Equal(t, ids[1], all[2].ID)
		assert.Equal(t, []int{1, 2}, all[0].Ports)
		assert.Equal(t, 3, all[0].Points)
	})

	t.Run("filter and limit", func(t *testing.T) {
		bench, err := s.ListMeasurements(ctx, "bench", 1)
		require.NoError(t, err)
		require.Len(t, bench, 1)
		assert.Equal(t, ids[3], bench[0].ID)
	})
}
