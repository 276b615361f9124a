// Package relay publishes audit outbox records to Kafka on a schedule.
package relay

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"
	"github.com/twmb/franz-go/pkg/kgo"

	"portal/internal/audit"
	auditmetrics "portal/internal/audit/metrics"
)

// Outbox is the relay's view of the audit store.
type Outbox interface {
	FetchUnpublished(ctx context.Context, limit int) ([]audit.OutboxRecord, error)
	MarkPublished(ctx context.Context, seqs []int64) error
}

// Producer is satisfied by *kgo.Client.
type Producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
}

// Relay delivers outbox records at least once. Records are keyed by
// application id so each application's trail stays ordered in its partition.
type Relay struct {
	outbox   Outbox
	producer Producer
	topic    string
	batch    int
	logger   *slog.Logger
	metrics  *auditmetrics.Metrics

	mu   sync.Mutex
	cron *cron.Cron
}

type Option func(*Relay)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Relay) {
		r.logger = logger
	}
}

func WithMetrics(m *auditmetrics.Metrics) Option {
	return func(r *Relay) {
		r.metrics = m
	}
}

func WithBatchSize(n int) Option {
	return func(r *Relay) {
		if n > 0 {
			r.batch = n
		}
	}
}

func New(outbox Outbox, producer Producer, topic string, opts ...Option) *Relay {
	r := &Relay{
		outbox:   outbox,
		producer: producer,
		topic:    topic,
		batch:    100,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RunOnce publishes one batch and marks the delivered records. Records that
// fail stay unpublished for the next run. Returns the number delivered.
func (r *Relay) RunOnce(ctx context.Context) (int, error) {
	pending, err := r.outbox.FetchUnpublished(ctx, r.batch)
	if err != nil {
		return 0, fmt.Errorf("fetch outbox: %w", err)
	}
	r.metrics.SetBacklog(len(pending))
	if len(pending) == 0 {
		return 0, nil
	}

	seqByRecord := make(map[*kgo.Record]int64, len(pending))
	records := make([]*kgo.Record, 0, len(pending))
	for _, p := range pending {
		rec := &kgo.Record{
			Topic: r.topic,
			Key:   []byte(p.Key),
			Value: p.Payload,
			Headers: []kgo.RecordHeader{
				{Key: "entry_id", Value: []byte(p.EntryID.String())},
			},
		}
		seqByRecord[rec] = p.Seq
		records = append(records, rec)
	}

	results := r.producer.ProduceSync(ctx, records...)
	delivered := make([]int64, 0, len(results))
	var firstErr error
	for _, res := range results {
		if res.Err != nil {
			if firstErr == nil {
				firstErr = res.Err
			}
			continue
		}
		delivered = append(delivered, seqByRecord[res.Record])
	}
	failed := len(pending) - len(delivered)

	if err := r.outbox.MarkPublished(ctx, delivered); err != nil {
		return 0, fmt.Errorf("mark outbox published: %w", err)
	}
	r.metrics.AddRelayed(len(delivered))
	if failed > 0 {
		r.metrics.AddRelayFailures(failed)
		r.logger.WarnContext(ctx, "audit outbox records not delivered",
			"failed", failed,
			"delivered", len(delivered),
			"error", firstErr,
		)
		return len(delivered), fmt.Errorf("produce audit records: %w", firstErr)
	}
	return len(delivered), nil
}

// Start schedules RunOnce with a cron spec such as "@every 5s". Overlapping
// runs are skipped.
func (r *Relay) Start(ctx context.Context, spec string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cron != nil {
		return fmt.Errorf("relay already started")
	}
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := c.AddFunc(spec, func() {
		n, err := r.RunOnce(ctx)
		if err != nil {
			r.logger.ErrorContext(ctx, "audit relay run failed", "error", err)
			return
		}
		if n > 0 {
			r.logger.DebugContext(ctx, "audit relay published", "count", n)
		}
	}); err != nil {
		return fmt.Errorf("schedule audit relay: %w", err)
	}
	c.Start()
	r.cron = c
	return nil
}

// Stop halts scheduling and returns a context done once a running batch ends.
func (r *Relay) Stop() context.Context {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cron == nil {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		return ctx
	}
	done := r.cron.Stop()
	r.cron = nil
	return done
}
