package chrono

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDay(t *testing.T) {
	moscow, err := time.LoadLocation("Europe/Moscow")
	require.NoError(t, err)

	// 23:30 UTC is already the next day in Moscow
	utc := time.Date(2026, 8, 29, 23, 30, 0, 0, time.UTC)
	require.Equal(t, "2026-08-29", Day(utc))
	require.Equal(t, "2026-08-30", Day(utc.In(moscow)))
}

func TestStandard(t *testing.T) {
	clock, err := NewStandard()
	require.NoError(t, err)
	require.Equal(t, "Europe/Moscow", clock.Location().String())
	require.Equal(t, clock.Location(), clock.Now().Location())
}

func TestFixed(t *testing.T) {
	instant := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	clock := Fixed{Time: instant}
	require.Equal(t, instant, clock.Now())
	require.Equal(t, "2026-08-30", Day(clock.Now()))
}
