package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTimeSlotWeekday(t *testing.T) {
	// Slot days are 1-based (Monday=1), availability weekdays 0-based (Monday=0).
	for day := MinDay; day <= MaxDay; day++ {
		slot := TimeSlot{Day: day}
		assert.Equal(t, day-1, slot.Weekday())
	}
}
