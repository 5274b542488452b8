package profile

import (
	"context"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/smartcharge/core/model"
)

func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()
	_, err := s.Get(ctx, "car-1")
	require.ErrorIs(t, err, ErrNotFound)

	at := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	require.NoError(t, s.Put(ctx, Profile{ClientID: "car-1", BatteryKWh: 60, ChargingKW: 7, DepartureClock: "8:00 AM", UpdatedAt: at}))
	require.NoError(t, s.Put(ctx, Profile{ClientID: "car-2", BatteryKWh: 40, ChargingKW: 11}))

	p, err := s.Get(ctx, "car-1")
	require.NoError(t, err)
	assert.Equal(t, 60.0, p.BatteryKWh)
	assert.Equal(t, "8:00 AM", p.DepartureClock)
	assert.True(t, at.Equal(p.UpdatedAt))

	require.NoError(t, s.Put(ctx, Profile{ClientID: "car-1", BatteryKWh: 76.2, ChargingKW: 11, UpdatedAt: at.Add(time.Hour)}))
	p, err = s.Get(ctx, "car-1")
	require.NoError(t, err)
	assert.Equal(t, 76.2, p.BatteryKWh)
	assert.Empty(t, p.DepartureClock)
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore())
}

func TestSQLiteStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clients.db")
	s, err := NewSQLiteStore(path)
	require.NoError(t, err)
	exerciseStore(t, s)
	require.NoError(t, s.Close())

	reopened, err := NewSQLiteStore(path)
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()
	p, err := reopened.Get(context.Background(), "car-2")
	require.NoError(t, err)
	assert.Equal(t, 11.0, p.ChargingKW)
}

func TestProfileValidate(t *testing.T) {
	require.NoError(t, Profile{ClientID: "c", BatteryKWh: 60, ChargingKW: 7, DepartureClock: "20:30"}.Validate())
	cases := map[string]Profile{
		"no client":     {BatteryKWh: 60, ChargingKW: 7},
		"no capacity":   {ClientID: "c", ChargingKW: 7},
		"nan rate":      {ClientID: "c", BatteryKWh: 60, ChargingKW: math.NaN()},
		"inf capacity":  {ClientID: "c", BatteryKWh: math.Inf(1), ChargingKW: 7},
		"bad departure": {ClientID: "c", BatteryKWh: 60, ChargingKW: 7, DepartureClock: "soon"},
	}
	for name, p := range cases {
		t.Run(name, func(t *testing.T) {
			assert.ErrorIs(t, p.Validate(), model.ErrInvalidJob)
		})
	}
}

func TestNew(t *testing.T) {
	s, err := New(Config{})
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)

	s, err = New(Config{Backend: "sqlite", Path: filepath.Join(t.TempDir(), "p.db")})
	require.NoError(t, err)
	assert.IsType(t, &SQLiteStore{}, s)
	require.NoError(t, s.Close())

	_, err = New(Config{Backend: "redis"})
	assert.Error(t, err)
}
