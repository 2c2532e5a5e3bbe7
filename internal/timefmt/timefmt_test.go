package timefmt_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"dtr/internal/timefmt"
)

func TestDurationMinutes(t *testing.T) {
	in := time.Date(2024, 1, 1, 23, 50, 0, 0, time.UTC)

	require.Equal(t, 20, timefmt.DurationMinutes(in, in.Add(20*time.Minute)))
	require.Equal(t, 0, timefmt.DurationMinutes(in, in))
	// половина минуты округляется вверх
	require.Equal(t, 1, timefmt.DurationMinutes(in, in.Add(30*time.Second)))
	require.Equal(t, 0, timefmt.DurationMinutes(in, in.Add(29*time.Second)))
	// рассинхрон часов не даёт отрицательных значений
	require.Equal(t, 0, timefmt.DurationMinutes(in, in.Add(-5*time.Minute)))
	require.Equal(t, 25*60, timefmt.DurationMinutes(in, in.Add(25*time.Hour)))
}

func TestFormatMinutes(t *testing.T) {
	cases := map[int]string{
		0:    "0:00",
		5:    "0:05",
		60:   "1:00",
		125:  "2:05",
		1500: "25:00",
		-3:   "0:00",
	}
	for in, want := range cases {
		require.Equal(t, want, timefmt.FormatMinutes(in), "minutes=%d", in)
	}
}

func TestDateOf(t *testing.T) {
	ts := time.Date(2024, 1, 1, 23, 50, 0, 0, time.UTC)
	require.Equal(t, "2024-01-01", timefmt.DateOf(ts, time.UTC))
	require.Equal(t, "2023-12-31", timefmt.PrevDate(ts, time.UTC))

	manila := time.FixedZone("UTC+8", 8*3600)
	require.Equal(t, "2024-01-02", timefmt.DateOf(ts, manila))
	require.Equal(t, "2024-01-01", timefmt.PrevDate(ts, manila))
}

func TestParseDateAndDays(t *testing.T) {
	_, err := timefmt.ParseDate("2024-02-30")
	require.Error(t, err)
	_, err = timefmt.ParseDate("01/02/2024")
	require.Error(t, err)

	n, err := timefmt.DaysBetween("2024-01-01", "2024-01-31")
	require.NoError(t, err)
	require.Equal(t, 31, n)

	n, err = timefmt.DaysBetween("2024-01-05", "2024-01-01")
	require.NoError(t, err)
	require.Equal(t, -3, n)
}
