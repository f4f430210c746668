// Package quota computes a requester's remaining monthly sessions and daily per-facility time.
package quota

import (
	"fmt"
	"sort"

	"facility-booking-backend/internal/model"
	"facility-booking-backend/internal/parse"
)

// Limits are the two independent ceilings.
type Limits struct {
	MaxMonthlySessions int
	DailyMaxMinutes    int
}

// TimeRange is a slot the requester already holds on the checked date.
type TimeRange struct {
	BookingID  string `json:"bookingId"`
	FacilityID string `json:"facilityId"`
	StartTime  string `json:"startTime"`
	EndTime    string `json:"endTime"`
}

// Result is the outcome of a quota check.
type Result struct {
	Allowed        bool        `json:"allowed"`
	Reason         string      `json:"reason,omitempty"`
	RemainingMonth int         `json:"remainingMonth"`
	DailyMinutes   int         `json:"dailyMinutes"`
	DailyCount     float64     `json:"dailyCount"`
	Occupied       []TimeRange `json:"occupied"`
}

// Request describes the candidate being checked.
type Request struct {
	Facility        model.Facility
	Date            string
	DurationMinutes int
}

// Consumes reports whether a booking in status s counts against the quota.
// Only rejected and cancelled bookings are released.
func Consumes(s model.BookingStatus) bool {
	return s != model.StatusRejected && s != model.StatusCancelled
}

// DurationMinutes returns end-start in minutes, or zero when unparseable.
func DurationMinutes(startTime, endTime string) int {
	start, err1 := parse.ParseTimeOfDay(startTime)
	end, err2 := parse.ParseTimeOfDay(endTime)
	if err1 != nil || err2 != nil || end <= start {
		return 0
	}
	return int(end - start)
}

// Check evaluates the monthly cap then the daily cap. history holds the requester's
// bookings for at least the candidate's calendar month; exempt reports whether a
// facility id is quota exempt.
func Check(limits Limits, req Request, history []model.Booking, exempt func(facilityID string) bool) (Result, error) {
	first, next, err := parse.MonthBounds(req.Date)
	if err != nil {
		return Result{}, err
	}

	var monthSessions, dailyMinutes int
	occupied := []TimeRange{}
	for _, b := range history {
		if !Consumes(b.Status) {
			continue
		}
		if b.Date == req.Date {
			occupied = append(occupied, TimeRange{BookingID: b.ID, FacilityID: b.FacilityID, StartTime: b.StartTime, EndTime: b.EndTime})
			if b.FacilityID == req.Facility.ID {
				dailyMinutes += DurationMinutes(b.StartTime, b.EndTime)
			}
		}
		if b.Date >= first && b.Date < next && !exempt(b.FacilityID) {
			monthSessions++
		}
	}
	sort.Slice(occupied, func(i, j int) bool { return occupied[i].StartTime < occupied[j].StartTime })

	res := Result{
		Allowed:        true,
		RemainingMonth: max(0, limits.MaxMonthlySessions-monthSessions),
		DailyMinutes:   dailyMinutes,
		DailyCount:     float64(dailyMinutes) / 60,
		Occupied:       occupied,
	}
	if req.Facility.IsQuotaExempt {
		return res, nil
	}

	if monthSessions >= limits.MaxMonthlySessions {
		res.Allowed = false
		res.Reason = fmt.Sprintf("monthly session limit reached (%d of %d used)", monthSessions, limits.MaxMonthlySessions)
		return res, nil
	}

	exceeded := dailyMinutes+req.DurationMinutes > limits.DailyMaxMinutes
	if req.DurationMinutes == 0 {
		exceeded = dailyMinutes >= limits.DailyMaxMinutes
	}
	if exceeded {
		res.Allowed = false
		res.Reason = fmt.Sprintf("daily limit for this facility reached (%d of %d minutes used)", dailyMinutes, limits.DailyMaxMinutes)
	}
	return res, nil
}
