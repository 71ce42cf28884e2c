package convert

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderNewYorkAfternoon(t *testing.T) {
	t.Parallel()

	// 3:00 PM wall clock in New York on a winter date (EST, UTC-5).
	naive := time.Date(2024, time.January, 15, 15, 0, 0, 0, time.UTC)
	got, err := Render([]time.Time{naive}, "America/New_York", StyleShortTime)
	require.NoError(t, err)
	require.Len(t, got, 1)

	want := time.Date(2024, time.January, 15, 20, 0, 0, 0, time.UTC)
	assert.True(t, got[0].UTC.Equal(want), "got %v want %v", got[0].UTC, want)
	assert.Equal(t, want.Unix(), got[0].Epoch)
	assert.Equal(t, fmt.Sprintf("<t:%d:t>", want.Unix()), got[0].Tag)
}

func TestRenderRoundTrip(t *testing.T) {
	t.Parallel()

	zone := "Asia/Tokyo"
	naive := time.Date(2024, time.June, 1, 9, 30, 45, 999_000_000, time.UTC)
	got, err := Render([]time.Time{naive}, zone, StyleShortTime)
	require.NoError(t, err)
	require.Len(t, got, 1)

	loc, err := time.LoadLocation(zone)
	require.NoError(t, err)
	back := got[0].UTC.In(loc)
	assert.Equal(t, 9, back.Hour())
	assert.Equal(t, 30, back.Minute())
	// Sub-second precision is truncated.
	assert.Equal(t, 45, back.Second())
	assert.Equal(t, 0, back.Nanosecond())
}

func TestRenderPreservesOrder(t *testing.T) {
	t.Parallel()

	a := time.Date(2024, time.May, 2, 18, 0, 0, 0, time.UTC)
	b := time.Date(2024, time.May, 2, 9, 0, 0, 0, time.UTC)
	got, err := Render([]time.Time{a, b}, "UTC", StyleShortTime)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.True(t, got[0].UTC.After(got[1].UTC))
}

func TestRenderUnknownZone(t *testing.T) {
	t.Parallel()

	_, err := Render([]time.Time{time.Now()}, "Mars/Olympus_Mons", StyleShortTime)
	require.Error(t, err)
}

func TestReplyText(t *testing.T) {
	t.Parallel()

	results := []Result{{Tag: "<t:100:t>"}, {Tag: "<t:200:t>"}}
	assert.Equal(t, "That's <t:100:t>, <t:200:t> auto-converted to local time.", ReplyText(results))
}
