// Package layer1 implements the size/age-triggered batch processor that
// drains queued reflex items to the external cognitive host (spec §4.7),
// grounded on the teacher's internal/webhooks.Dispatcher worker-pool shape,
// generalized from per-event HTTP delivery to a FIFO batch queue with
// explicit flush triggers.
package layer1

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/chitinlabs/clawbuds-sub000/internal/clock"
	"github.com/chitinlabs/clawbuds-sub000/internal/core"
	"github.com/chitinlabs/clawbuds-sub000/internal/notifier"
	"github.com/chitinlabs/clawbuds-sub000/internal/pearl"
	"github.com/chitinlabs/clawbuds-sub000/internal/repository"
)

// Item is one queued Layer-1 unit of work.
type Item struct {
	Execution      core.ReflexExecution
	RoutingContext *pearl.RoutingContext
	QueuedAt       time.Time
}

// Processor maintains the in-memory FIFO queue and flushes it on size or
// age triggers.
type Processor struct {
	reflexes  repository.Reflexes
	notifier  notifier.Notifier
	clock     clock.Clock
	logger    *log.Logger

	batchSize int
	maxWaitMs int64

	mu       sync.Mutex
	queue    []Item
	batchSeq uint64
}

// New constructs a Processor with the configured size and age triggers.
func New(reflexes repository.Reflexes, n notifier.Notifier, clk clock.Clock, batchSize int, maxWaitMs int64, logger *log.Logger) *Processor {
	if batchSize <= 0 {
		batchSize = 10
	}
	if maxWaitMs <= 0 {
		maxWaitMs = 600_000
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Processor{
		reflexes:  reflexes,
		notifier:  n,
		clock:     clk,
		logger:    logger,
		batchSize: batchSize,
		maxWaitMs: maxWaitMs,
	}
}

// IsActive reports whether a notifier capable of delivering batches is
// attached (spec §4.7 Availability / §4.6 "Layer 1 as active").
func (p *Processor) IsActive() bool {
	return p.notifier != nil && p.notifier.Available()
}

// Enqueue appends an item and flushes immediately if the size trigger now
// fires.
func (p *Processor) Enqueue(ctx context.Context, exec core.ReflexExecution, routingCtx *pearl.RoutingContext) error {
	p.mu.Lock()
	p.queue = append(p.queue, Item{Execution: exec, RoutingContext: routingCtx, QueuedAt: p.clock.Now()})
	shouldFlush := len(p.queue) >= p.batchSize
	p.mu.Unlock()

	if shouldFlush {
		return p.Flush(ctx)
	}
	return nil
}

// CheckAgeTrigger flushes the queue if the oldest item has waited at least
// maxWaitMs; intended to be called periodically by the scheduler.
func (p *Processor) CheckAgeTrigger(ctx context.Context) error {
	p.mu.Lock()
	if len(p.queue) == 0 {
		p.mu.Unlock()
		return nil
	}
	age := p.clock.Now().Sub(p.queue[0].QueuedAt).Milliseconds()
	p.mu.Unlock()

	if age >= p.maxWaitMs {
		return p.Flush(ctx)
	}
	return nil
}

// Flush atomically drains up to batchSize items, assigns a batch id, writes
// a dispatched_to_l1 execution record for each, and invokes the notifier
// fire-and-forget (spec §4.7 Flush operation).
func (p *Processor) Flush(ctx context.Context) error {
	p.mu.Lock()
	if len(p.queue) == 0 {
		p.mu.Unlock()
		return nil
	}
	n := p.batchSize
	if n > len(p.queue) {
		n = len(p.queue)
	}
	drained := make([]Item, n)
	copy(drained, p.queue[:n])
	p.queue = p.queue[n:]
	p.batchSeq++
	batchID := fmt.Sprintf("batch-%d", p.batchSeq)
	p.mu.Unlock()

	now := p.clock.Now()
	items := make([]map[string]interface{}, 0, len(drained))
	for _, it := range drained {
		exec := it.Execution
		exec.ID = fmt.Sprintf("%s-%s", exec.ID, batchID)
		exec.Result = core.ResultDispatchedL1
		exec.BatchID = batchID
		exec.CreatedAt = now
		if err := p.reflexes.RecordExecution(ctx, &exec); err != nil {
			p.logger.Printf("layer1: failed to write dispatched_to_l1 record: %v", err)
		}
		items = append(items, map[string]interface{}{
			"reflexId":  it.Execution.ReflexID,
			"owner":     it.Execution.Owner,
			"eventType": it.Execution.EventType,
			"payload":   it.Execution.Payload,
		})
	}

	if p.notifier != nil {
		p.notifier.Deliver(notifier.Notification{
			Type: "REFLEX_BATCH",
			ID:   batchID,
			Payload: map[string]interface{}{
				"batchId": batchID,
				"type":    "REFLEX_BATCH",
				"message": fmt.Sprintf("%d reflex items batched", len(items)),
				"items":   items,
			},
		})
	}
	return nil
}

// AcknowledgeBatch marks matching dispatched_to_l1 execution records as
// l1_acknowledged and returns the count. Unknown batches return 0 (spec
// §4.7 Acknowledgement).
func (p *Processor) AcknowledgeBatch(ctx context.Context, batchID string) (int, error) {
	execs, err := p.reflexes.ListExecutionsByBatch(ctx, batchID)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, e := range execs {
		if e.Result != core.ResultDispatchedL1 {
			continue
		}
		if err := p.reflexes.UpdateExecutionResult(ctx, e.ID, core.ResultL1Acknowledged); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}
