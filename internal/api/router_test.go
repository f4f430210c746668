package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"facility-booking-backend/config"
	"facility-booking-backend/internal/audit"
	"facility-booking-backend/internal/booking"
	"facility-booking-backend/internal/db"
	"facility-booking-backend/internal/lifecycle"
	"facility-booking-backend/internal/model"
	"facility-booking-backend/internal/mw"
	"facility-booking-backend/internal/store"
	"facility-booking-backend/internal/timeutil"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type actor struct {
	id   string
	role model.ActorRole
}

var (
	staff  = actor{"staff-1", model.RoleStaff}
	alice  = actor{"alice", model.RoleTenant}
	bob    = actor{"bob", model.RoleTenant}
	nobody = actor{}
)

func setupRouter(t *testing.T) (*gin.Engine, *timeutil.FixedClock) {
	t.Helper()
	gormDB, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := gormDB.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, db.Migrate(gormDB))

	st := store.NewGormStore(gormDB)
	policy := config.DefaultBookingPolicy()
	clock := timeutil.NewFixedClock(time.Date(2026, 10, 18, 8, 0, 0, 0, policy.Location))
	svc := booking.NewService(st, audit.NewTrail(st, clock), nil, policy, clock)
	_, err = svc.SaveFacility(context.Background(), model.Facility{
		ID: "gym", Name: "Gym", Capacity: 4, OpenTime: "08:00", CloseTime: "20:00", SlotMinutes: 60, Active: true,
	}, booking.Actor{ID: "owner", Role: model.RoleOwner})
	require.NoError(t, err)

	r := NewRouter(svc, st, &webpush.Options{VAPIDPublicKey: "pub-key"}, cache.New(time.Minute, time.Minute), config.ServerConfig{
		RateLimitPerSec: 1000, RateLimitBurst: 1000, CacheTTLSeconds: 60,
	})
	return r, clock
}

func do(r http.Handler, as actor, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if as.id != "" {
		req.Header.Set(mw.HeaderActorID, as.id)
		req.Header.Set(mw.HeaderActorRole, string(as.role))
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func gymRequest(start, end string, participants int) booking.CreateRequest {
	return booking.CreateRequest{FacilityID: "gym", Unit: "12A", Date: "2026-10-18", StartTime: start, EndTime: end, Participants: participants}
}

func TestBookingLifecycleOverHTTP(t *testing.T) {
	r, clock := setupRouter(t)

	w := do(r, alice, http.MethodPost, "/api/bookings", gymRequest("09:00", "10:00", 2))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode[booking.View](t, w)
	assert.Equal(t, model.StatusPending, created.Status)
	assert.Equal(t, "alice", created.RequesterID, "requester defaults to the caller")
	assert.False(t, created.Display.RequiresDecision, "pending requests are decided through approve or reject")
	assert.Contains(t, created.Display.Actions, lifecycle.ActionApprove)

	path := "/api/bookings/" + created.ID
	clock.Advance(time.Minute)
	w = do(r, staff, http.MethodPatch, path+"/status", booking.StatusChange{To: model.StatusApproved, Version: created.Version})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	approved := decode[booking.View](t, w)
	assert.Equal(t, model.StatusApproved, approved.Status)
	assert.Equal(t, created.Version+1, approved.Version)

	w = do(r, alice, http.MethodGet, path, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(r, bob, http.MethodGet, path, nil)
	assert.Equal(t, http.StatusNotFound, w.Code, "tenants cannot see other residents' bookings")

	clock.Advance(time.Minute)
	w = do(r, alice, http.MethodPatch, path+"/status", booking.StatusChange{To: model.StatusCancelled, Reason: "plans changed"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	cancelled := decode[booking.View](t, w)
	assert.Equal(t, model.StatusCancelled, cancelled.Status)
	assert.Equal(t, model.InitiatorTenant, cancelled.CancelledBy)

	w = do(r, alice, http.MethodGet, path+"/audit", nil)
	require.Equal(t, http.StatusOK, w.Code)
	entries := decode[[]model.AuditLogEntry](t, w)
	require.Len(t, entries, 3)
	assert.Equal(t, model.ActionBookingCreate, entries[0].Action)
	assert.Equal(t, model.ActionBookingApprove, entries[1].Action)
	assert.Equal(t, model.ActionBookingCancel, entries[2].Action)
	assert.Equal(t, "plans changed", entries[2].Metadata["reason"])
}

func TestErrorMapping(t *testing.T) {
	r, _ := setupRouter(t)

	w := do(r, alice, http.MethodPost, "/api/bookings", gymRequest("09:00", "10:00", 1))
	require.Equal(t, http.StatusCreated, w.Code)
	pending := decode[booking.View](t, w)

	testCases := []struct {
		name     string
		as       actor
		method   string
		path     string
		body     any
		wantCode int
		wantKind string
	}{
		{"validation", alice, http.MethodPost, "/api/bookings", gymRequest("07:00", "08:30", 9), http.StatusUnprocessableEntity, "validation_failed"},
		{"invalid input", alice, http.MethodPost, "/api/bookings", gymRequest("10:00", "09:00", 1), http.StatusBadRequest, "invalid_input"},
		{"unknown facility", alice, http.MethodPost, "/api/bookings", booking.CreateRequest{FacilityID: "spa", Date: "2026-10-18", StartTime: "09:00", EndTime: "10:00", Participants: 1}, http.StatusNotFound, "not_found"},
		{"unknown booking", staff, http.MethodGet, "/api/bookings/nope", nil, http.StatusNotFound, "not_found"},
		{"tenant cannot approve", bob, http.MethodPatch, "/api/bookings/" + pending.ID + "/status", booking.StatusChange{To: model.StatusApproved}, http.StatusForbidden, "forbidden"},
		{"illegal transition", staff, http.MethodPatch, "/api/bookings/" + pending.ID + "/status", booking.StatusChange{To: model.StatusCompleted}, http.StatusConflict, "invalid_transition"},
		{"stale version", staff, http.MethodPatch, "/api/bookings/" + pending.ID + "/status", booking.StatusChange{To: model.StatusApproved, Version: 99}, http.StatusConflict, "stale_state"},
		{"reject without reason", staff, http.MethodPatch, "/api/bookings/" + pending.ID + "/status", booking.StatusChange{To: model.StatusRejected}, http.StatusBadRequest, "invalid_input"},
		{"tenant cannot edit facilities", alice, http.MethodPut, "/api/facilities/gym", model.Facility{Name: "Gym", Capacity: 1, OpenTime: "08:00", CloseTime: "09:00", Active: true}, http.StatusForbidden, "forbidden"},
		{"missing date", staff, http.MethodGet, "/api/facilities/gym/bookings", nil, http.StatusBadRequest, "invalid_input"},
		{"unauthenticated", nobody, http.MethodGet, "/api/facilities", nil, http.StatusUnauthorized, "unauthenticated"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			w := do(r, tc.as, tc.method, tc.path, tc.body)
			assert.Equal(t, tc.wantCode, w.Code, w.Body.String())
			body := decode[map[string]any](t, w)
			assert.Equal(t, tc.wantKind, body["error"])
		})
	}

	t.Run("validation lists every violation", func(t *testing.T) {
		w := do(r, alice, http.MethodPost, "/api/bookings", gymRequest("07:00", "08:30", 9))
		body := decode[struct {
			Violations []struct {
				Rule string `json:"rule"`
			} `json:"violations"`
		}](t, w)
		assert.Len(t, body.Violations, 2)
	})
}

func TestRespondError(t *testing.T) {
	testCases := []struct {
		name        string
		err         error
		wantCode    int
		wantKind    string
		wantMessage string
	}{
		{"not found", fmt.Errorf("booking b1: %w", booking.ErrNotFound), http.StatusNotFound, "not_found", "booking b1: not found"},
		{"internal hides details", fmt.Errorf("dial tcp 10.0.0.5:5432: connection refused"), http.StatusInternalServerError, "internal", "internal error"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodGet, "/api/bookings/b1", nil)

			respondError(c, tc.err)

			assert.Equal(t, tc.wantCode, w.Code)
			body := decode[map[string]any](t, w)
			assert.Equal(t, tc.wantKind, body["error"])
			assert.Equal(t, tc.wantMessage, body["message"])
			assert.NotContains(t, w.Body.String(), "10.0.0.5")
		})
	}
}

func TestQuotaExceededOverHTTP(t *testing.T) {
	r, _ := setupRouter(t)

	w := do(r, alice, http.MethodPost, "/api/bookings", gymRequest("09:00", "11:00", 1))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = do(r, alice, http.MethodGet, "/api/quota?facility=gym&date=2026-10-18&minutes=60", nil)
	require.Equal(t, http.StatusOK, w.Code)
	result := decode[map[string]any](t, w)
	assert.Equal(t, false, result["allowed"])
	assert.Equal(t, float64(2), result["dailyCount"])

	w = do(r, alice, http.MethodPost, "/api/bookings", gymRequest("12:00", "13:00", 1))
	assert.Equal(t, http.StatusConflict, w.Code)
	body := decode[map[string]any](t, w)
	assert.Equal(t, "quota_exceeded", body["error"])
	assert.Equal(t, float64(9), body["remainingMonth"])

	// Tenants asking for someone else's quota get their own.
	w = do(r, bob, http.MethodGet, "/api/quota?requester=alice&facility=gym&date=2026-10-18&minutes=60", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decode[map[string]any](t, w)["allowed"])
}

func TestFacilitiesCache(t *testing.T) {
	r, _ := setupRouter(t)

	w := do(r, alice, http.MethodGet, "/api/facilities", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "MISS", w.Header().Get("X-Cache"))
	assert.Len(t, decode[[]model.Facility](t, w), 1)

	w = do(r, alice, http.MethodGet, "/api/facilities", nil)
	assert.Equal(t, "HIT", w.Header().Get("X-Cache"))

	w = do(r, staff, http.MethodPut, "/api/facilities/pool", model.Facility{
		Name: "Pool", Capacity: 10, OpenTime: "06:00", CloseTime: "22:00", SlotMinutes: 60, IsAutoApprove: true, Active: true,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "pool", decode[model.Facility](t, w).ID)

	w = do(r, alice, http.MethodGet, "/api/facilities", nil)
	assert.Equal(t, "MISS", w.Header().Get("X-Cache"), "saving a facility flushes the cache")
	assert.Len(t, decode[[]model.Facility](t, w), 2)
}

func TestFacilityBookings(t *testing.T) {
	r, _ := setupRouter(t)
	for _, slot := range [][2]string{{"13:00", "14:00"}, {"09:00", "10:00"}} {
		w := do(r, staff, http.MethodPost, "/api/bookings", booking.CreateRequest{
			FacilityID: "gym", RequesterID: "carol", Date: "2026-10-18", StartTime: slot[0], EndTime: slot[1], Participants: 1,
		})
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	}

	w := do(r, staff, http.MethodGet, "/api/facilities/gym/bookings?date=2026-10-18", nil)
	require.Equal(t, http.StatusOK, w.Code)
	views := decode[[]booking.View](t, w)
	require.Len(t, views, 2)
	assert.Equal(t, "09:00", views[0].StartTime)
	assert.Equal(t, "13:00", views[1].StartTime)
}

func TestFacilityBookings_HidesOtherResidents(t *testing.T) {
	r, _ := setupRouter(t)
	req := gymRequest("11:00", "12:00", 2)
	req.Reason = "birthday workout"
	w := do(r, alice, http.MethodPost, "/api/bookings", req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	testCases := []struct {
		name     string
		as       actor
		wantFull bool
	}{
		{"owner of the booking", alice, true},
		{"staff", staff, true},
		{"other resident", bob, false},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			w := do(r, tc.as, http.MethodGet, "/api/facilities/gym/bookings?date=2026-10-18", nil)
			require.Equal(t, http.StatusOK, w.Code)
			views := decode[[]booking.View](t, w)
			require.Len(t, views, 1)
			v := views[0]
			assert.Equal(t, "11:00", v.StartTime)
			assert.Equal(t, "12:00", v.EndTime)
			assert.Equal(t, model.StatusPending, v.Status)
			if tc.wantFull {
				assert.Equal(t, "alice", v.RequesterID)
				assert.Equal(t, "12A", v.Unit)
				assert.Equal(t, "birthday workout", v.Reason)
				return
			}
			assert.Empty(t, v.RequesterID)
			assert.Empty(t, v.Unit)
			assert.Empty(t, v.Reason)
			assert.Empty(t, v.Display.Actions)
			assert.NotContains(t, w.Body.String(), "alice")
		})
	}
}

func TestSubscriptions(t *testing.T) {
	r, _ := setupRouter(t)
	endpoint := "https://push.example.com/abc?x=1"

	w := do(r, alice, http.MethodPut, "/api/subscriptions", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"invalid_input","message":"invalid request"}`, w.Body.String())

	w = do(r, alice, http.MethodPut, "/api/subscriptions", map[string]string{"endpoint": endpoint, "p256dh": "k", "auth": "a"})
	require.Equal(t, http.StatusCreated, w.Code)

	w = do(r, alice, http.MethodGet, "/api/subscriptions?endpoint="+endpoint, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "alice", decode[map[string]any](t, w)["requesterId"])

	w = do(r, bob, http.MethodGet, "/api/subscriptions?endpoint="+endpoint, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(r, bob, http.MethodDelete, "/api/subscriptions", map[string]string{"endpoint": endpoint})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(r, alice, http.MethodDelete, "/api/subscriptions", map[string]string{"endpoint": endpoint})
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = do(r, alice, http.MethodGet, "/api/subscriptions?endpoint="+endpoint, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPublicEndpoints(t *testing.T) {
	r, _ := setupRouter(t)

	w := do(r, nobody, http.MethodGet, "/api/vapid_public_key", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"public_key":"pub-key"}`, w.Body.String())

	w = do(r, alice, http.MethodPost, "/api/bookings", gymRequest("15:00", "16:00", 1))
	require.Equal(t, http.StatusCreated, w.Code)

	w = do(r, nobody, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "facility_bookings_created_total")
}
