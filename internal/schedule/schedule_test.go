package schedule_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ersimransingh/email-service-sub001/internal/schedule"
)

// at builds a timestamp on a fixed reference day.
func at(hour, minute int) time.Time {
	return time.Date(2026, 3, 2, hour, minute, 0, 0, time.UTC)
}

func TestParseClock(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"00:00", 0, false},
		{"09:00", 540, false},
		{"17:30", 1050, false},
		{"23:59", 1439, false},
		{"24:00", 0, true},
		{"09:60", 0, true},
		{"9am", 0, true},
		{"", 0, true},
		{"09", 0, true},
	}

	for _, tt := range tests {
		got, err := schedule.ParseClock(tt.in)
		if tt.wantErr {
			assert.Error(t, err, "ParseClock(%q)", tt.in)
			continue
		}
		require.NoError(t, err, "ParseClock(%q)", tt.in)
		assert.Equal(t, tt.want, got, "ParseClock(%q)", tt.in)
	}
}

func TestIsActive_WindowInclusiveBothEnds(t *testing.T) {
	tests := []struct {
		now  time.Time
		want bool
	}{
		{at(8, 59), false},
		{at(9, 0), true},
		{at(12, 30), true},
		{at(17, 0), true},
		{at(17, 1), false},
	}

	for _, tt := range tests {
		got, err := schedule.IsActive(tt.now, "09:00", "17:00")
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "IsActive at %s", tt.now.Format("15:04"))
	}
}

func TestIsActive_SecondsWithinMinuteDoNotMatter(t *testing.T) {
	// 17:00:59 is still minute 17:00, which is inside the window.
	now := time.Date(2026, 3, 2, 17, 0, 59, 0, time.UTC)
	got, err := schedule.IsActive(now, "09:00", "17:00")
	require.NoError(t, err)
	assert.True(t, got)
}

func TestIsActive_InvertedWindowNeverMatches(t *testing.T) {
	// End before start: overnight windows are not modelled, so the window
	// simply never matches.
	got, err := schedule.IsActive(at(23, 0), "22:00", "06:00")
	require.NoError(t, err)
	assert.False(t, got)
}

func TestIsActive_InvalidClock(t *testing.T) {
	_, err := schedule.IsActive(at(12, 0), "9am", "17:00")
	assert.Error(t, err)
}

func TestNextRun_BeforeWindow(t *testing.T) {
	got, err := schedule.NextRun(at(7, 0), "09:00", "17:00", 15, "minutes")
	require.NoError(t, err)
	assert.Equal(t, at(9, 0), got)
}

func TestNextRun_MidWindow(t *testing.T) {
	got, err := schedule.NextRun(at(9, 15), "09:00", "17:00", 30, "minutes")
	require.NoError(t, err)
	assert.Equal(t, at(9, 30), got)
}

func TestNextRun_ExactlyOnStepAdvances(t *testing.T) {
	// A candidate equal to now is not selected; stepping continues to the
	// first strictly-later instant.
	got, err := schedule.NextRun(at(9, 30), "09:00", "17:00", 30, "minutes")
	require.NoError(t, err)
	assert.Equal(t, at(10, 0), got)
}

func TestNextRun_AtWindowStart(t *testing.T) {
	got, err := schedule.NextRun(at(9, 0), "09:00", "17:00", 30, "minutes")
	require.NoError(t, err)
	assert.Equal(t, at(9, 30), got)
}

func TestNextRun_AfterWindow(t *testing.T) {
	got, err := schedule.NextRun(at(17, 30), "09:00", "17:00", 30, "minutes")
	require.NoError(t, err)
	assert.Equal(t, at(9, 0).AddDate(0, 0, 1), got)
}

func TestNextRun_StepWouldLandPastEnd(t *testing.T) {
	// Inside the window but the next 3h step from 09:00 lands at 18:00,
	// past the 17:00 end, so the next run falls to tomorrow's start.
	got, err := schedule.NextRun(at(16, 0), "09:00", "17:00", 3, "hours")
	require.NoError(t, err)
	assert.Equal(t, at(9, 0).AddDate(0, 0, 1), got)
}

func TestNextRun_StepLandsExactlyOnEnd(t *testing.T) {
	// 09:00 + 4h steps: 13:00, 17:00. At 16:00 the next step is 17:00,
	// which is still on the inclusive window end.
	got, err := schedule.NextRun(at(16, 0), "09:00", "17:00", 4, "hours")
	require.NoError(t, err)
	assert.Equal(t, at(17, 0), got)
}

func TestNextRun_HoursUnit(t *testing.T) {
	got, err := schedule.NextRun(at(9, 15), "09:00", "17:00", 1, "hours")
	require.NoError(t, err)
	assert.Equal(t, at(10, 0), got)
}

func TestNextRun_InvalidInputs(t *testing.T) {
	_, err := schedule.NextRun(at(9, 0), "09:00", "17:00", 0, "minutes")
	assert.Error(t, err, "zero interval")

	_, err = schedule.NextRun(at(9, 0), "09:00", "17:00", 30, "days")
	assert.Error(t, err, "unknown unit")

	_, err = schedule.NextRun(at(9, 0), "nine", "17:00", 30, "minutes")
	assert.Error(t, err, "bad start clock")
}

func TestNextRun_InvertedWindowFallsToTomorrow(t *testing.T) {
	// End precedes start; now is after the "end", so the evaluator falls
	// through to tomorrow's start rather than inventing an overnight
	// window.
	got, err := schedule.NextRun(at(12, 0), "10:00", "06:00", 30, "minutes")
	require.NoError(t, err)
	assert.Equal(t, at(10, 0).AddDate(0, 0, 1), got)
}
