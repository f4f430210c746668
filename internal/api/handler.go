package api

import (
	"errors"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"

	"facility-booking-backend/internal/booking"
	"facility-booking-backend/internal/logging"
	"facility-booking-backend/internal/store"
)

// Handler holds shared dependencies for API handlers.
type Handler struct {
	bookings *booking.Service
	store    store.Store
	webpush  *webpush.Options
	cache    *cache.Cache
}

// NewHandler creates a new API handler.
func NewHandler(svc *booking.Service, s store.Store, webpushOptions *webpush.Options, responses *cache.Cache) *Handler {
	return &Handler{
		bookings: svc,
		store:    s,
		webpush:  webpushOptions,
		cache:    responses,
	}
}

var statusByKind = map[string]int{
	"validation_failed":  http.StatusUnprocessableEntity,
	"quota_exceeded":     http.StatusConflict,
	"not_found":          http.StatusNotFound,
	"invalid_transition": http.StatusConflict,
	"stale_state":        http.StatusConflict,
	"invalid_input":      http.StatusBadRequest,
	"forbidden":          http.StatusForbidden,
}

// respondError writes err as {"error": kind, "message": ...} with the matching status.
func respondError(c *gin.Context, err error) {
	kind := booking.Kind(err)
	status, ok := statusByKind[kind]
	if !ok {
		status = http.StatusInternalServerError
	}
	body := gin.H{"error": kind, "message": err.Error()}

	var verr *booking.ValidationError
	if errors.As(err, &verr) {
		body["violations"] = verr.Violations
	}
	var qerr *booking.QuotaError
	if errors.As(err, &qerr) {
		body["reason"] = qerr.Reason
		body["remainingMonth"] = qerr.RemainingMonth
		body["dailyMinutes"] = qerr.DailyMinutes
		body["dailyCount"] = qerr.DailyCount
	}

	if status == http.StatusInternalServerError {
		logger := logging.WithComponent("api")
		logger.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
		body["message"] = "internal error"
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, body)
}

func badRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid_input", "message": msg})
}
