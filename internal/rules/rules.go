// Package rules checks a candidate booking against its facility and the other bookings of that facility.
package rules

import (
	"facility-booking-backend/internal/model"
	"facility-booking-backend/internal/parse"
)

// Rule names a validation rule.
type Rule string

const (
	RuleFacilityInactive      Rule = "facility_inactive"
	RuleCapacityExceeded      Rule = "capacity_exceeded"
	RuleOutsideOperatingHours Rule = "outside_operating_hours"
	RuleTimeOverlap           Rule = "time_overlap"
)

// Violation is one failed rule with a human-readable message.
type Violation struct {
	Rule    Rule   `json:"rule"`
	Message string `json:"message"`
}

var ruleMessages = map[Rule]string{
	RuleFacilityInactive:      "facility inactive",
	RuleCapacityExceeded:      "capacity exceeded",
	RuleOutsideOperatingHours: "outside operating hours",
	RuleTimeOverlap:           "time overlap",
}

func violation(r Rule) Violation {
	return Violation{Rule: r, Message: ruleMessages[r]}
}

// blockingStatuses are the statuses that hold a slot against other bookings.
var blockingStatuses = map[model.BookingStatus]bool{
	model.StatusApproved:  true,
	model.StatusLate:      true,
	model.StatusCompleted: true,
}

// BlocksSlot reports whether a booking in status s occupies its slot for overlap purposes.
func BlocksSlot(s model.BookingStatus) bool {
	return blockingStatuses[s]
}

// CapacityExceeded reports participants > capacity.
func CapacityExceeded(candidate model.Booking, facility model.Facility) bool {
	return candidate.Participants > facility.Capacity
}

// OutsideOperatingHours reports start < open or end > close. Unparseable times count as outside.
func OutsideOperatingHours(candidate model.Booking, facility model.Facility) bool {
	start, err1 := parse.ParseTimeOfDay(candidate.StartTime)
	end, err2 := parse.ParseTimeOfDay(candidate.EndTime)
	open, err3 := parse.ParseTimeOfDay(facility.OpenTime)
	closing, err4 := parse.ParseTimeOfDay(facility.CloseTime)
	if err1 != nil || err2 != nil || err3 != nil || err4 != nil {
		return true
	}
	return start < open || end > closing
}

// Overlaps reports whether [aStart,aEnd) and [bStart,bEnd) intersect.
func Overlaps(aStart, aEnd, bStart, bEnd parse.TimeOfDay) bool {
	return aStart < bEnd && aEnd > bStart
}

// TimeOverlap returns the first booking in others that conflicts with candidate:
// same facility, same date, a slot-holding status and an intersecting interval.
// The candidate itself (same id) is ignored.
func TimeOverlap(candidate model.Booking, others []model.Booking) (model.Booking, bool) {
	start, err1 := parse.ParseTimeOfDay(candidate.StartTime)
	end, err2 := parse.ParseTimeOfDay(candidate.EndTime)
	if err1 != nil || err2 != nil {
		return model.Booking{}, false
	}
	for _, other := range others {
		if other.ID == candidate.ID && other.ID != "" {
			continue
		}
		if other.FacilityID != candidate.FacilityID || other.Date != candidate.Date || !BlocksSlot(other.Status) {
			continue
		}
		oStart, errA := parse.ParseTimeOfDay(other.StartTime)
		oEnd, errB := parse.ParseTimeOfDay(other.EndTime)
		if errA != nil || errB != nil {
			continue
		}
		if Overlaps(start, end, oStart, oEnd) {
			return other, true
		}
	}
	return model.Booking{}, false
}

// ValidationErrors returns every violated rule, in a fixed order, without short-circuiting.
func ValidationErrors(candidate model.Booking, facility model.Facility, others []model.Booking) []Violation {
	var out []Violation
	if !facility.Active {
		out = append(out, violation(RuleFacilityInactive))
	}
	if CapacityExceeded(candidate, facility) {
		out = append(out, violation(RuleCapacityExceeded))
	}
	if OutsideOperatingHours(candidate, facility) {
		out = append(out, violation(RuleOutsideOperatingHours))
	}
	if _, ok := TimeOverlap(candidate, others); ok {
		out = append(out, violation(RuleTimeOverlap))
	}
	return out
}

// Has reports whether violations contains rule r.
func Has(violations []Violation, r Rule) bool {
	for _, v := range violations {
		if v.Rule == r {
			return true
		}
	}
	return false
}
