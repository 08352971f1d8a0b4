package plugins

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClockDefaultZone(t *testing.T) {
	w, err := newClock(newRig().wctx)
	require.NoError(t, err)

	blob, err := w.SerializeState()
	require.NoError(t, err)
	assert.JSONEq(t, `{"timezones":["UTC"]}`, string(blob))
}

func TestClockRefreshRendersFaces(t *testing.T) {
	at := time.Date(2024, 3, 15, 18, 30, 5, 0, time.UTC)
	c := newClockWith(clockwork.NewFakeClockAt(at))

	require.NoError(t, c.RestoreState([]byte(`{"timezones":["UTC","America/New_York"]}`)))
	require.NoError(t, c.Refresh(context.Background(), ""))

	faces := c.view()
	require.Len(t, faces, 2)

	assert.Equal(t, "UTC", faces[0].Zone)
	assert.Equal(t, "06:30:05 PM", faces[0].Time)
	assert.Equal(t, "Friday, March 15", faces[0].Date)
	assert.Equal(t, "UTC", faces[0].Abbrev)

	// New York is four hours behind UTC in mid March
	assert.Equal(t, "America/New_York", faces[1].Zone)
	assert.Equal(t, "02:30:05 PM", faces[1].Time)
	assert.Equal(t, "EDT", faces[1].Abbrev)
}

func TestClockRefreshTracksAdvancingTime(t *testing.T) {
	clk := clockwork.NewFakeClockAt(time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC))
	c := newClockWith(clk)

	require.NoError(t, c.Refresh(context.Background(), ""))
	first := c.view()
	require.Len(t, first, 1)
	assert.Equal(t, "09:00:00 AM", first[0].Time)

	clk.Advance(90 * time.Second)
	require.NoError(t, c.Refresh(context.Background(), ""))
	assert.Equal(t, "09:01:30 AM", c.view()[0].Time)
}

func TestClockRestoreSkipsInvalidZones(t *testing.T) {
	c := newClockWith(clockwork.NewFakeClock())

	blob := `{"timezones":["UTC","Not/AZone","UTC","","Europe/Berlin"]}`
	require.NoError(t, c.RestoreState([]byte(blob)))

	out, err := c.SerializeState()
	require.NoError(t, err)
	assert.JSONEq(t, `{"timezones":["UTC","Europe/Berlin"]}`, string(out))
}

func TestClockRestoreEmptyFallsBackToUTC(t *testing.T) {
	c := newClockWith(clockwork.NewFakeClock())

	require.NoError(t, c.RestoreState([]byte(`{"timezones":[]}`)))

	out, err := c.SerializeState()
	require.NoError(t, err)
	assert.JSONEq(t, `{"timezones":["UTC"]}`, string(out))
}

func TestClockRestoreBadBlob(t *testing.T) {
	c := newClockWith(clockwork.NewFakeClock())
	assert.Error(t, c.RestoreState([]byte(`{"timezones":`)))
}

func TestClockRefreshHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := newClockWith(clockwork.NewFakeClock())
	assert.Error(t, c.Refresh(ctx, ""))
	assert.Empty(t, c.view())
}
