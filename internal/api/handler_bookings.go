package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"facility-booking-backend/internal/booking"
	"facility-booking-backend/internal/mw"
)

// PostBooking handles POST /api/bookings.
func (h *Handler) PostBooking(c *gin.Context) {
	var req booking.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	actor := mw.ActorFrom(c)
	if req.RequesterID == "" {
		req.RequesterID = actor.ID
	}

	view, err := h.bookings.Create(c.Request.Context(), req, actor)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, view)
}

// GetBooking handles GET /api/bookings/:id.
func (h *Handler) GetBooking(c *gin.Context) {
	view, err := h.bookings.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	if !visibleTo(view, mw.ActorFrom(c)) {
		respondError(c, booking.ErrNotFound)
		return
	}
	c.JSON(http.StatusOK, view)
}

// PatchBookingStatus handles PATCH /api/bookings/:id/status.
func (h *Handler) PatchBookingStatus(c *gin.Context) {
	var change booking.StatusChange
	if err := c.ShouldBindJSON(&change); err != nil {
		badRequest(c, err.Error())
		return
	}
	view, err := h.bookings.UpdateStatus(c.Request.Context(), c.Param("id"), change, mw.ActorFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// GetBookingAudit handles GET /api/bookings/:id/audit.
func (h *Handler) GetBookingAudit(c *gin.Context) {
	actor := mw.ActorFrom(c)
	if !actor.Role.IsAdmin() {
		view, err := h.bookings.Get(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondError(c, err)
			return
		}
		if !visibleTo(view, actor) {
			respondError(c, booking.ErrNotFound)
			return
		}
	}
	entries, err := h.bookings.AuditTrail(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, entries)
}

// GetQuota handles GET /api/quota?requester=&facility=&date=&minutes=.
// Tenants always get their own quota.
func (h *Handler) GetQuota(c *gin.Context) {
	actor := mw.ActorFrom(c)
	requester := c.Query("requester")
	if requester == "" || !actor.Role.IsAdmin() {
		requester = actor.ID
	}
	minutes := 0
	if raw := c.Query("minutes"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			badRequest(c, "minutes must be an integer")
			return
		}
		minutes = n
	}

	result, err := h.bookings.CheckQuota(c.Request.Context(), requester, c.Query("facility"), c.Query("date"), minutes)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// visibleTo hides other residents' bookings from tenants.
func visibleTo(v booking.View, actor booking.Actor) bool {
	return actor.Role.IsAdmin() || v.RequesterID == actor.ID
}
