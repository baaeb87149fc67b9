package doctor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateWindows(t *testing.T) {
	tests := []struct {
		name    string
		windows []Window
		wantErr error
	}{
		{"empty", nil, nil},
		{"valid", []Window{{time.Monday, "09:00", "12:00"}, {time.Monday, "13:00", "17:00"}}, nil},
		{"touching windows", []Window{{time.Monday, "09:00", "12:00"}, {time.Monday, "12:00", "13:00"}}, nil},
		{"same hours different days", []Window{{time.Monday, "09:00", "12:00"}, {time.Tuesday, "09:00", "12:00"}}, nil},
		{"bad format", []Window{{time.Monday, "9am", "12:00"}}, ErrInvalidAvailability},
		{"start after end", []Window{{time.Monday, "13:00", "12:00"}}, ErrInvalidAvailability},
		{"zero length", []Window{{time.Monday, "13:00", "13:00"}}, ErrInvalidAvailability},
		{"bad weekday", []Window{{time.Weekday(7), "09:00", "10:00"}}, ErrInvalidAvailability},
		{"overlap", []Window{{time.Friday, "09:00", "12:00"}, {time.Friday, "11:30", "14:00"}}, ErrOverlappingWindows},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateWindows(tt.windows)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

// 2030-01-07 is a Monday.
var monday = time.Date(2030, 1, 7, 0, 0, 0, 0, time.UTC)

func TestIsAvailable(t *testing.T) {
	d := &Doctor{
		Timezone:     "UTC",
		Availability: []Window{{time.Monday, "09:00", "12:00"}},
	}

	assert.True(t, d.IsAvailable(monday.Add(9*time.Hour), 30*time.Minute))
	assert.True(t, d.IsAvailable(monday.Add(11*time.Hour+30*time.Minute), 30*time.Minute))
	assert.False(t, d.IsAvailable(monday.Add(11*time.Hour+45*time.Minute), 30*time.Minute))
	assert.False(t, d.IsAvailable(monday.Add(8*time.Hour), 30*time.Minute))
	assert.False(t, d.IsAvailable(monday.Add(24*time.Hour+9*time.Hour), 30*time.Minute), "tuesday")

	open := &Doctor{}
	assert.True(t, open.IsAvailable(monday.Add(3*time.Hour), time.Hour))
}

func TestIsAvailable_UsesDoctorTimezone(t *testing.T) {
	loc, err := time.LoadLocation("Asia/Kolkata")
	require.NoError(t, err)

	d := &Doctor{
		Timezone:     "Asia/Kolkata",
		Availability: []Window{{time.Monday, "09:00", "10:00"}},
	}
	start := time.Date(2030, 1, 7, 9, 0, 0, 0, loc)

	assert.True(t, d.IsAvailable(start.UTC(), 30*time.Minute))
	assert.False(t, d.IsAvailable(monday.Add(9*time.Hour), 30*time.Minute))
}

func TestAvailableSlots(t *testing.T) {
	d := &Doctor{
		SlotMinutes:  30,
		Availability: []Window{{time.Monday, "09:00", "11:00"}},
	}
	busy := []Interval{{Start: monday.Add(9*time.Hour + 30*time.Minute), End: monday.Add(10 * time.Hour)}}
	now := monday.Add(9*time.Hour + 5*time.Minute)

	slots := d.AvailableSlots(monday, busy, now)

	require.Len(t, slots, 2)
	assert.Equal(t, monday.Add(10*time.Hour), slots[0].Start)
	assert.Equal(t, monday.Add(10*time.Hour+30*time.Minute), slots[1].Start)
	for _, s := range slots {
		assert.Equal(t, 30*time.Minute, s.End.Sub(s.Start))
	}
}

func TestAvailableSlots_NoWindowsThatDay(t *testing.T) {
	d := &Doctor{Availability: []Window{{time.Tuesday, "09:00", "11:00"}}}
	slots := d.AvailableSlots(monday, nil, monday.Add(-time.Hour))
	assert.Empty(t, slots)
	assert.NotNil(t, slots)
}
