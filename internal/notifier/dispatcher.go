// Package notifier delivers domain events to a fixed set of subscribers off
// the request path. Delivery failures are logged, counted and reported, and
// never reach the caller that raised the event.
package notifier

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"affiliate-marketplace/internal/common/logger"
	"affiliate-marketplace/internal/common/metrics"
	"affiliate-marketplace/internal/errtrack"
	"affiliate-marketplace/internal/events"
	"affiliate-marketplace/internal/models"
)

// ErrSkipped is returned by a subscriber that deliberately did not deliver,
// e.g. because the recipient is unknown or the provider is not configured.
var ErrSkipped = errors.New("notification skipped")

// Subscriber reacts to domain events.
type Subscriber interface {
	Name() string
	Accepts(kind events.Kind) bool
	Handle(ctx context.Context, e events.Event) error
}

type DispatcherConfig struct {
	Workers int
	Buffer  int
	Timeout time.Duration
}

// Dispatcher fans events out to subscribers from a bounded worker pool.
// Each worker owns a queue and every event of a listing goes to the same
// queue, so one listing's events are delivered in publish order. Each
// delivery runs under its own context derived from Background, so a finished
// request never cancels it.
type Dispatcher struct {
	cfg         DispatcherConfig
	subscribers []Subscriber
	reporter    errtrack.Reporter
	logger      logger.Logger

	queues []chan events.Event
	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
	once   sync.Once
}

func NewDispatcher(cfg DispatcherConfig, reporter errtrack.Reporter, log logger.Logger, subscribers ...Subscriber) *Dispatcher {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.Buffer <= 0 {
		cfg.Buffer = 256
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	perWorker := (cfg.Buffer + cfg.Workers - 1) / cfg.Workers
	queues := make([]chan events.Event, cfg.Workers)
	for i := range queues {
		queues[i] = make(chan events.Event, perWorker)
	}
	return &Dispatcher{
		cfg:         cfg,
		subscribers: subscribers,
		reporter:    reporter,
		logger:      log.WithFields(map[string]interface{}{"component": "dispatcher"}),
		queues:      queues,
	}
}

// Start launches the workers. Calling it more than once has no effect.
func (d *Dispatcher) Start() {
	d.once.Do(func() {
		for _, q := range d.queues {
			d.wg.Add(1)
			go d.run(q)
		}
		d.logger.Info("dispatcher started", map[string]interface{}{
			"workers":     d.cfg.Workers,
			"buffer":      d.cfg.Buffer,
			"subscribers": len(d.subscribers),
		})
	})
}

// Publish enqueues e without blocking. When the listing's queue is full or
// the dispatcher is closed, the event is dropped and reported.
func (d *Dispatcher) Publish(e events.Event) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.drop(e, "dispatcher closed")
		return
	}

	select {
	case d.queueFor(e) <- e:
		metrics.DispatchQueueDepth.Inc()
	default:
		d.drop(e, "dispatch queue full")
	}
}

// Close stops accepting events and waits for queued ones to be delivered or
// for ctx to expire.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		for _, q := range d.queues {
			close(q)
		}
	}
	d.mu.Unlock()

	d.Start() // drain even if never started

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("dispatcher drain: %w", ctx.Err())
	}
}

func (d *Dispatcher) queueFor(e events.Event) chan events.Event {
	return d.queues[uint64(e.ListingID())%uint64(len(d.queues))]
}

func (d *Dispatcher) run(queue <-chan events.Event) {
	defer d.wg.Done()
	for e := range queue {
		metrics.DispatchQueueDepth.Dec()
		d.deliver(e)
	}
}

func (d *Dispatcher) deliver(e events.Event) {
	for _, sub := range d.subscribers {
		if !sub.Accepts(e.Kind()) {
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), d.cfg.Timeout)
		err := safeHandle(ctx, sub, e)
		cancel()

		switch {
		case err == nil:
			metrics.NotificationsDelivered.WithLabelValues(sub.Name(), string(e.Kind()), models.NotificationSent).Inc()
		case errors.Is(err, ErrSkipped):
			metrics.NotificationsDelivered.WithLabelValues(sub.Name(), string(e.Kind()), models.NotificationSkipped).Inc()
			d.logger.Info("notification skipped", map[string]interface{}{
				"subscriber": sub.Name(),
				"event":      string(e.Kind()),
				"eventId":    e.Envelope().ID,
				"listingId":  e.ListingID(),
				"reason":     err.Error(),
			})
		default:
			metrics.NotificationsDelivered.WithLabelValues(sub.Name(), string(e.Kind()), models.NotificationFailed).Inc()
			d.fail(e, sub.Name(), err)
		}
	}
}

func (d *Dispatcher) drop(e events.Event, reason string) {
	metrics.DispatchDropped.WithLabelValues(string(e.Kind())).Inc()
	d.fail(e, "dispatcher", errors.New(reason))
}

func (d *Dispatcher) fail(e events.Event, subscriber string, err error) {
	d.logger.Error("notification failed", map[string]interface{}{
		"subscriber": subscriber,
		"event":      string(e.Kind()),
		"eventId":    e.Envelope().ID,
		"listingId":  e.ListingID(),
		"error":      err,
	})

	if d.reporter == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	reportErr := d.reporter.Report(ctx, models.NotificationFailure{
		EventID:    e.Envelope().ID,
		EventKind:  string(e.Kind()),
		Subscriber: subscriber,
		ListingID:  e.ListingID(),
		Recipient:  recipientOf(err),
		Error:      err.Error(),
		OccurredAt: time.Now().UTC(),
	})
	if reportErr != nil {
		d.logger.Warn("failed to report notification failure", map[string]interface{}{
			"error": reportErr,
		})
	}
}

func safeHandle(ctx context.Context, sub Subscriber, e events.Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("subscriber %s panicked: %v", sub.Name(), r)
		}
	}()
	return sub.Handle(ctx, e)
}

// DeliveryError carries the recipient of a failed delivery.
type DeliveryError struct {
	Recipient string
	Err       error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("deliver to %s: %v", e.Recipient, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

func recipientOf(err error) string {
	var de *DeliveryError
	if errors.As(err, &de) {
		return de.Recipient
	}
	return ""
}
