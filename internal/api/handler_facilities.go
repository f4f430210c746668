package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"facility-booking-backend/internal/booking"
	"facility-booking-backend/internal/lifecycle"
	"facility-booking-backend/internal/model"
	"facility-booking-backend/internal/mw"
)

// GetFacilities handles GET /api/facilities.
func (h *Handler) GetFacilities(c *gin.Context) {
	facilities, err := h.bookings.Facilities(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	if facilities == nil {
		facilities = []model.Facility{}
	}
	c.JSON(http.StatusOK, facilities)
}

// PutFacility handles PUT /api/facilities/:id. The id in the path wins over the body.
func (h *Handler) PutFacility(c *gin.Context) {
	var f model.Facility
	if err := c.ShouldBindJSON(&f); err != nil {
		badRequest(c, err.Error())
		return
	}
	f.ID = c.Param("id")

	saved, err := h.bookings.SaveFacility(c.Request.Context(), f, mw.ActorFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}
	if h.cache != nil {
		h.cache.Flush()
	}
	c.JSON(http.StatusOK, saved)
}

// GetFacilityBookings handles GET /api/facilities/:id/bookings?date=YYYY-MM-DD.
func (h *Handler) GetFacilityBookings(c *gin.Context) {
	date := c.Query("date")
	if date == "" {
		badRequest(c, "date is required")
		return
	}
	views, err := h.bookings.ListByFacility(c.Request.Context(), c.Param("id"), date)
	if err != nil {
		respondError(c, err)
		return
	}
	actor := mw.ActorFrom(c)
	for i := range views {
		if !visibleTo(views[i], actor) {
			views[i] = redacted(views[i])
		}
	}
	c.JSON(http.StatusOK, views)
}

// redacted keeps only the slot a booking occupies, for residents who do not own it.
func redacted(v booking.View) booking.View {
	return booking.View{
		Booking: model.Booking{
			ID:           v.ID,
			FacilityID:   v.FacilityID,
			Date:         v.Date,
			StartTime:    v.StartTime,
			EndTime:      v.EndTime,
			Participants: v.Participants,
			Status:       v.Status,
		},
		Display: lifecycle.DisplayState{
			Kind:    v.Display.Kind,
			Status:  v.Display.Status,
			Actions: []lifecycle.Action{},
		},
	}
}
