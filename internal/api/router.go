package api

import (
	"net/http"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"facility-booking-backend/config"
	"facility-booking-backend/internal/booking"
	"facility-booking-backend/internal/mw"
	"facility-booking-backend/internal/store"
)

// NewRouter creates and configures a new Gin router. responses backs the
// facility list cache; pass the same instance to whatever must invalidate it.
func NewRouter(svc *booking.Service, s store.Store, webpushOptions *webpush.Options, responses *cache.Cache, cfg config.ServerConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), mw.RequestLogger())

	handler := NewHandler(svc, s, webpushOptions, responses)

	ttl := time.Duration(cfg.CacheTTLSeconds) * time.Second
	caching := mw.Cache(responses, ttl)

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	api := r.Group("/api")
	api.Use(mw.RateLimiter(rate.Limit(cfg.RateLimitPerSec), cfg.RateLimitBurst))
	api.GET("/vapid_public_key", handler.GetVAPIDPublicKey)

	authed := api.Group("")
	authed.Use(mw.Actor())
	{
		authed.GET("/facilities", caching, handler.GetFacilities)
		authed.PUT("/facilities/:id", handler.PutFacility)
		authed.GET("/facilities/:id/bookings", handler.GetFacilityBookings)

		authed.POST("/bookings", handler.PostBooking)
		authed.GET("/bookings/:id", handler.GetBooking)
		authed.PATCH("/bookings/:id/status", handler.PatchBookingStatus)
		authed.GET("/bookings/:id/audit", handler.GetBookingAudit)

		authed.GET("/quota", handler.GetQuota)

		authed.GET("/subscriptions", handler.GetSubscription)
		authed.PUT("/subscriptions", handler.PutSubscription)
		authed.DELETE("/subscriptions", handler.DeleteSubscription)
	}

	return r
}
