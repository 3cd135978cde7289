// Package webhook implements the at-least-once delivery worker (spec §4.4):
// it drains the webhook_events queue, POSTs each payload to its endpoint,
// and applies linear backoff with a bounded retry count. Grounded on
// original_source/src/services/webhooks.rs's process_webhooks loop — the
// teacher repo carries no dispatcher of its own (its ledger has no async
// fan-out), so this component follows the teacher's store/context idiom
// (internal/store/postgres.go) while reproducing the original's dequeue
// and backoff behavior.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/iamzubin/dodo-ledger/internal/domain"
	"github.com/iamzubin/dodo-ledger/internal/metrics"
)

// Config bundles the dispatcher's tunables, sourced from internal/config.
type Config struct {
	BatchSize   int
	MaxAttempts int
	BaseDelay   time.Duration
	HTTPTimeout time.Duration
	IdleSleep   time.Duration
	ErrorSleep  time.Duration
	Concurrency int
}

// Dispatcher is a long-running worker; multiple instances may run
// concurrently against the same pool (spec §4.4) because every dequeue is a
// SKIP LOCKED claim scoped to a single row.
type Dispatcher struct {
	pool   *pgxpool.Pool
	client *http.Client
	cfg    Config
	log    *zap.SugaredLogger
}

// New builds a Dispatcher. A zero Concurrency defaults to 4.
func New(pool *pgxpool.Pool, cfg Config, log *zap.SugaredLogger) *Dispatcher {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	return &Dispatcher{
		pool:   pool,
		client: &http.Client{Timeout: cfg.HTTPTimeout},
		cfg:    cfg,
		log:    log,
	}
}

// Run drives the dispatch loop until ctx is cancelled, the way the teacher's
// re-architecture note in spec §9 describes: a cooperatively scheduled task
// whose cancellation is wired to a shutdown signal by the caller.
func (d *Dispatcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		n, err := d.runBatch(ctx)
		if err != nil {
			d.log.Errorw("webhook dispatch batch failed", "error", err)
			sleep(ctx, d.cfg.ErrorSleep)
			continue
		}
		if n == 0 {
			sleep(ctx, d.cfg.IdleSleep)
		}
	}
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// candidate is a pending event whose backoff window has elapsed, read
// without locking — claiming happens per-row in claimAndDeliver so that a
// slow delivery only blocks the one row it is working on.
type candidate struct {
	ID uuid.UUID
}

// runBatch peeks up to BatchSize eligible events and attempts to claim and
// deliver each one concurrently, returning how many were claimed.
func (d *Dispatcher) runBatch(ctx context.Context) (int, error) {
	candidates, err := d.peekEligible(ctx)
	if err != nil {
		return 0, err
	}
	if len(candidates) == 0 {
		return 0, nil
	}

	sem := make(chan struct{}, d.cfg.Concurrency)
	var (
		wg      sync.WaitGroup
		claimed atomic.Int64
	)
	for _, c := range candidates {
		wg.Add(1)
		sem <- struct{}{}
		go func(id uuid.UUID) {
			defer wg.Done()
			defer func() { <-sem }()
			ok, err := d.claimAndDeliver(ctx, id)
			if err != nil {
				d.log.Errorw("webhook delivery failed", "event_id", id, "error", err)
			}
			if ok {
				claimed.Add(1)
			}
		}(c.ID)
	}
	wg.Wait()

	return int(claimed.Load()), nil
}

// backoffElapsed reports whether an event last attempted at lastAttemptAt
// (nil if never attempted) with the given attempt count is eligible for
// another delivery try, given linear backoff base*(attempts+1). This is the
// Go-side mirror of peekEligible's SQL predicate — kept as a pure function
// so the backoff schedule itself is unit-testable without a database.
func backoffElapsed(lastAttemptAt *time.Time, attempts int, base time.Duration, now time.Time) bool {
	if lastAttemptAt == nil {
		return true
	}
	wait := base * time.Duration(attempts+1)
	return now.After(lastAttemptAt.Add(wait))
}

// peekEligible lists pending events belonging to active endpoints whose
// backoff window has elapsed (spec §4.4, "Dequeue query"). It does not lock
// rows — claimAndDeliver re-checks and locks individually, so a transient
// race here only costs a wasted claim attempt, never a double delivery.
func (d *Dispatcher) peekEligible(ctx context.Context) ([]candidate, error) {
	rows, err := d.pool.Query(ctx,
		`SELECT we.id
		 FROM webhook_events we
		 JOIN webhook_endpoints ep ON ep.id = we.webhook_endpoint_id
		 WHERE we.status = 'pending'
		   AND ep.is_active = TRUE
		   AND (we.last_attempt_at IS NULL
		        OR we.last_attempt_at < NOW() - (make_interval(secs => $1) * (we.attempts + 1)))
		 ORDER BY we.created_at
		 LIMIT $2`,
		d.cfg.BaseDelay.Seconds(), d.cfg.BatchSize,
	)
	if err != nil {
		return nil, fmt.Errorf("peek eligible webhook events: %w", err)
	}
	defer rows.Close()

	var out []candidate
	for rows.Next() {
		var c candidate
		if err := rows.Scan(&c.ID); err != nil {
			return nil, fmt.Errorf("scan webhook event candidate: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

type claimedEvent struct {
	ID        uuid.UUID
	EventType string
	Payload   json.RawMessage
	Attempts  int
	URL       string
	Secret    string
}

// claimAndDeliver opens a short transaction, re-selects the single event
// with FOR UPDATE SKIP LOCKED (spec §4.4), and — only if it won the claim —
// performs the delivery and status update before committing. Returns
// ok=false (no error) when a peer dispatcher already claimed the row.
func (d *Dispatcher) claimAndDeliver(ctx context.Context, id uuid.UUID) (bool, error) {
	tx, err := d.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("begin claim transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var ev claimedEvent
	err = tx.QueryRow(ctx,
		`SELECT we.id, we.event_type, we.payload, we.attempts, ep.url, ep.secret
		 FROM webhook_events we
		 JOIN webhook_endpoints ep ON ep.id = we.webhook_endpoint_id
		 WHERE we.id = $1 AND we.status = 'pending'
		 FOR UPDATE OF we SKIP LOCKED`,
		id,
	).Scan(&ev.ID, &ev.EventType, &ev.Payload, &ev.Attempts, &ev.URL, &ev.Secret)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("claim webhook event %s: %w", id, err)
	}

	start := time.Now()
	status, deliverErr := d.deliver(ctx, ev)
	metrics.WebhookDispatchDuration.Observe(time.Since(start).Seconds())
	attempts := ev.Attempts + 1

	var nextStatus domain.WebhookEventStatus
	switch {
	case status == domain.WebhookEventDelivered:
		nextStatus = domain.WebhookEventDelivered
		metrics.WebhookEventsDelivered.Inc()
	case attempts >= d.cfg.MaxAttempts:
		nextStatus = domain.WebhookEventFailed
		metrics.WebhookEventsFailed.Inc()
	default:
		nextStatus = domain.WebhookEventPending
	}

	_, err = tx.Exec(ctx,
		`UPDATE webhook_events SET status = $1, attempts = $2, last_attempt_at = NOW() WHERE id = $3`,
		nextStatus, attempts, ev.ID,
	)
	if err != nil {
		return false, fmt.Errorf("update webhook event %s: %w", ev.ID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("commit webhook event %s: %w", ev.ID, err)
	}

	if deliverErr != nil {
		d.log.Infow("webhook delivery attempt failed", "event_id", ev.ID, "attempts", attempts, "status", nextStatus, "error", deliverErr)
	}
	return true, nil
}

// envelope is the outbound body shape: the event_type column travels
// alongside the stored payload so a receiver can dispatch on it without
// inspecting the ledger response shape itself.
type envelope struct {
	EventType string          `json:"event_type"`
	Data      json.RawMessage `json:"data"`
}

// deliver POSTs the payload to the endpoint URL with the shared-secret
// header (spec §4.4). HTTP non-2xx and transport errors are treated
// symmetrically, as the spec requires.
func (d *Dispatcher) deliver(ctx context.Context, ev claimedEvent) (domain.WebhookEventStatus, error) {
	reqCtx, cancel := context.WithTimeout(ctx, d.cfg.HTTPTimeout)
	defer cancel()

	body, err := json.Marshal(envelope{EventType: ev.EventType, Data: ev.Payload})
	if err != nil {
		return domain.WebhookEventPending, fmt.Errorf("encode webhook envelope: %w", err)
	}

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, ev.URL, bytes.NewReader(body))
	if err != nil {
		return domain.WebhookEventPending, fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Webhook-Secret", ev.Secret)

	resp, err := d.client.Do(req)
	if err != nil {
		return domain.WebhookEventPending, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return domain.WebhookEventDelivered, nil
	}
	return domain.WebhookEventPending, fmt.Errorf("endpoint responded %d", resp.StatusCode)
}
