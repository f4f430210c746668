package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/rs/zerolog"

	"facility-booking-backend/internal/booking"
	"facility-booking-backend/internal/logging"
	"facility-booking-backend/internal/metrics"
	"facility-booking-backend/internal/model"
)

// NotificationSender defines the interface for sending a web push notification.
type NotificationSender interface {
	Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// WebPushSender is a real implementation of NotificationSender using the webpush library.
type WebPushSender struct{}

// Send sends a notification using the webpush library.
func (s *WebPushSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return webpush.SendNotification(payload, sub, options)
}

// SubscriptionStore is the part of the store the workers need.
type SubscriptionStore interface {
	SubscriptionsFor(ctx context.Context, requesterID string) ([]model.PushSubscription, error)
	DeleteSubscription(ctx context.Context, endpoint string) error
}

// Publisher emits booking events to other services.
type Publisher interface {
	Publish(ctx context.Context, n booking.Notice) error
}

// Message is the web push payload shown to the requester.
type Message struct {
	Title     string              `json:"title"`
	Body      string              `json:"body"`
	BookingID string              `json:"bookingId"`
	Status    model.BookingStatus `json:"status"`
}

// WorkerPool delivers booking notices in the background.
type WorkerPool struct {
	size      int
	jobs      chan booking.Notice
	subs      SubscriptionStore
	webpush   *webpush.Options
	sender    NotificationSender
	publisher Publisher
	logger    zerolog.Logger
}

// NewWorkerPool creates a new worker pool. Push is skipped while webpushOptions
// carries no VAPID private key.
func NewWorkerPool(size, queueSize int, subs SubscriptionStore, webpushOptions *webpush.Options) *WorkerPool {
	if size < 1 {
		size = 1
	}
	if queueSize < 1 {
		queueSize = size
	}
	return &WorkerPool{
		size:    size,
		jobs:    make(chan booking.Notice, queueSize),
		subs:    subs,
		webpush: webpushOptions,
		sender:  &WebPushSender{},
		logger:  logging.WithComponent("notification"),
	}
}

// WithPublisher also sends every notice to p.
func (wp *WorkerPool) WithPublisher(p Publisher) *WorkerPool {
	wp.publisher = p
	return wp
}

// Start launches the worker goroutines.
func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.size; i++ {
		go wp.worker(ctx, i)
	}
}

func (wp *WorkerPool) worker(ctx context.Context, id int) {
	logger := wp.logger.With().Int("worker", id).Logger()
	logger.Debug().Msg("worker started")
	for {
		select {
		case n := <-wp.jobs:
			logger.Debug().Str("booking_id", n.BookingID).Str("status", string(n.Status)).Msg("processing notice")
			wp.deliver(ctx, n)
		case <-ctx.Done():
			logger.Debug().Msg("worker shutting down")
			return
		}
	}
}

// Notify queues n without blocking. When the queue is full the notice is
// dropped and counted; the booking change it reports is already committed.
func (wp *WorkerPool) Notify(_ context.Context, n booking.Notice) {
	select {
	case wp.jobs <- n:
		metrics.NotificationsTotal.WithLabelValues("queued").Inc()
	default:
		metrics.NotificationsTotal.WithLabelValues("dropped").Inc()
		wp.logger.Warn().Str("booking_id", n.BookingID).Str("status", string(n.Status)).Msg("notification queue full, dropping notice")
	}
}

// Jobs returns the jobs channel for testing.
func (wp *WorkerPool) Jobs() chan booking.Notice {
	return wp.jobs
}

func (wp *WorkerPool) deliver(ctx context.Context, n booking.Notice) {
	if wp.publisher != nil {
		pubCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := wp.publisher.Publish(pubCtx, n)
		cancel()
		if err != nil {
			metrics.NotificationsTotal.WithLabelValues("failed").Inc()
			wp.logger.Error().Err(err).Str("booking_id", n.BookingID).Msg("failed to publish booking event")
		} else {
			metrics.NotificationsTotal.WithLabelValues("published").Inc()
		}
	}

	if wp.webpush == nil || wp.webpush.VAPIDPrivateKey == "" {
		return
	}
	wp.pushToRequester(ctx, n)
}

// pushToRequester sends n to every browser subscription of the requester.
func (wp *WorkerPool) pushToRequester(ctx context.Context, n booking.Notice) {
	subscriptions, err := wp.subs.SubscriptionsFor(ctx, n.RequesterID)
	if err != nil {
		wp.logger.Error().Err(err).Str("requester_id", n.RequesterID).Msg("error fetching subscriptions")
		return
	}
	if len(subscriptions) == 0 {
		return
	}

	payload, err := json.Marshal(NewMessage(n))
	if err != nil {
		wp.logger.Error().Err(err).Str("booking_id", n.BookingID).Msg("cannot encode push payload")
		return
	}

	wp.logger.Info().Int("count", len(subscriptions)).Str("booking_id", n.BookingID).Msg("sending push notifications")
	for _, sub := range subscriptions {
		wp.sendNotification(ctx, sub, payload)
	}
}

// NewMessage renders the push message for a notice.
func NewMessage(n booking.Notice) Message {
	return Message{
		Title:     "Booking " + statusLabel(n.Status),
		Body:      fmt.Sprintf("Your booking of %s on %s, %s-%s is now %s.", n.FacilityID, n.Date, n.StartTime, n.EndTime, statusLabel(n.Status)),
		BookingID: n.BookingID,
		Status:    n.Status,
	}
}

var statusLabels = map[model.BookingStatus]string{
	model.StatusPending:   "pending approval",
	model.StatusApproved:  "approved",
	model.StatusRejected:  "rejected",
	model.StatusCancelled: "cancelled",
	model.StatusLate:      "marked late",
	model.StatusNoShow:    "marked as no-show",
	model.StatusCompleted: "completed",
}

func statusLabel(s model.BookingStatus) string {
	if l, ok := statusLabels[s]; ok {
		return l
	}
	return string(s)
}

// sendNotification sends a single web push notification.
func (wp *WorkerPool) sendNotification(ctx context.Context, sub model.PushSubscription, payload []byte) {
	wpSub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256DH,
			Auth:   sub.Auth,
		},
	}

	resp, err := wp.sender.Send(payload, wpSub, wp.webpush)
	if err != nil {
		metrics.NotificationsTotal.WithLabelValues("failed").Inc()
		wp.logger.Error().Err(err).Str("endpoint", sub.Endpoint).Msg("error sending notification")
		return
	}
	defer resp.Body.Close()
	metrics.NotificationsTotal.WithLabelValues("sent").Inc()

	// Handle expired subscriptions
	if resp.StatusCode == http.StatusGone {
		wp.logger.Info().Str("endpoint", sub.Endpoint).Msg("subscription expired, deleting")
		if err := wp.subs.DeleteSubscription(ctx, sub.Endpoint); err != nil {
			wp.logger.Error().Err(err).Str("endpoint", sub.Endpoint).Msg("failed to delete expired subscription")
		}
	}
}
