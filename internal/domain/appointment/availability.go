package appointment

import (
	"iter"
	"slices"
	"time"

	"github.com/google/uuid"
)

const DefaultSlotMinutes = 30

// WorkHours is the clinic's bookable window for a day.
type WorkHours struct {
	Start Clock `json:"start"`
	End   Clock `json:"end"`
}

// DefaultWorkHours are the standard clinic hours.
var DefaultWorkHours = WorkHours{Start: "09:00", End: "17:00"}

type Slot struct {
	Start           Clock `json:"start"`
	End             Clock `json:"end"`
	DurationMinutes int   `json:"duration"`
}

func (s Slot) Interval() Interval {
	return Interval{Start: s.Start, End: s.End}
}

// Availability is a doctor's free/busy picture for one date.
type Availability struct {
	DoctorID       uuid.UUID  `json:"doctorId"`
	Date           time.Time  `json:"date"`
	WorkHours      WorkHours  `json:"workHours"`
	SlotMinutes    int        `json:"slotMinutes"`
	BusySlots      []Interval `json:"busySlots"`
	AvailableSlots []Slot     `json:"availableSlots"`
}

// Slots walks the working-hours window in fixed slotMinutes steps and yields
// every slot that does not overlap a busy interval. A trailing period shorter
// than slotMinutes is dropped. The sequence is stateless and can be ranged
// over any number of times.
func Slots(wh WorkHours, busy []Interval, slotMinutes int) iter.Seq[Slot] {
	return func(yield func(Slot) bool) {
		if slotMinutes <= 0 {
			return
		}
		start, end := wh.Start.Minutes(), wh.End.Minutes()
		if start < 0 || end <= start {
			return
		}

		for s := start; s+slotMinutes <= end; s += slotMinutes {
			slot := Slot{
				Start:           ClockFromMinutes(s),
				End:             ClockFromMinutes(s + slotMinutes),
				DurationMinutes: slotMinutes,
			}
			if overlapsAny(slot.Interval(), busy) {
				continue
			}
			if !yield(slot) {
				return
			}
		}
	}
}

// AvailableSlots collects Slots into a slice ordered by start time.
func AvailableSlots(wh WorkHours, busy []Interval, slotMinutes int) []Slot {
	slots := slices.Collect(Slots(wh, busy, slotMinutes))
	if slots == nil {
		slots = []Slot{}
	}
	return slots
}

// BusyIntervals extracts the windows occupied by active appointments.
func BusyIntervals(appointments []*Appointment) []Interval {
	busy := make([]Interval, 0, len(appointments))
	for _, a := range appointments {
		if a.IsActive() {
			busy = append(busy, a.Interval())
		}
	}
	slices.SortFunc(busy, func(x, y Interval) int {
		switch {
		case x.Start < y.Start:
			return -1
		case x.Start > y.Start:
			return 1
		}
		return 0
	})
	return busy
}

func overlapsAny(i Interval, busy []Interval) bool {
	for _, b := range busy {
		if i.Overlaps(b) {
			return true
		}
	}
	return false
}
