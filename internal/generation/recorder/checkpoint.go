package recorder

import (
	"context"

	"github.com/Tao119/eurekode-sub004/internal/clock"
	gendomain "github.com/Tao119/eurekode-sub004/internal/generation/domain"
	obsmetrics "github.com/Tao119/eurekode-sub004/internal/observability/metrics"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	// checkpointInterval is the chunk count between pending-content flushes.
	checkpointInterval = 10
	// checkpointQueueCap bounds the background queue; a full queue drops the
	// checkpoint instead of stalling the stream.
	checkpointQueueCap = 16
)

type checkpoint struct {
	conversationID snowflake.ID
	content        string
}

// checkpointWriter persists stream snapshots off the hot path. Writes are
// best-effort: a failed or dropped checkpoint costs recovery fidelity, not
// the generation itself.
type checkpointWriter struct {
	db      *gorm.DB
	log     *zap.Logger
	clock   clock.Clock
	metrics *obsmetrics.Metrics

	ch   chan checkpoint
	done chan struct{}
}

func newCheckpointWriter(db *gorm.DB, log *zap.Logger, clk clock.Clock, metrics *obsmetrics.Metrics) *checkpointWriter {
	return &checkpointWriter{
		db:      db,
		log:     log.Named("generation.checkpoint"),
		clock:   clk,
		metrics: metrics,
		ch:      make(chan checkpoint, checkpointQueueCap),
		done:    make(chan struct{}),
	}
}

func (w *checkpointWriter) run() {
	defer close(w.done)
	for cp := range w.ch {
		w.write(cp)
	}
}

func (w *checkpointWriter) enqueue(cp checkpoint) {
	select {
	case w.ch <- cp:
	default:
		w.log.Warn("checkpoint queue full, dropping snapshot",
			zap.String("conversation_id", cp.conversationID.String()),
		)
		if w.metrics != nil {
			w.metrics.CheckpointFailures.Inc()
		}
	}
}

// write only lands while the conversation is still generating, so a
// checkpoint that races a Complete or Fail cannot resurrect stale content.
func (w *checkpointWriter) write(cp checkpoint) {
	err := w.db.
		Model(&gendomain.Conversation{}).
		Where("id = ? AND generation_status = ?", cp.conversationID, gendomain.GenerationStatusGenerating).
		Updates(map[string]any{
			"pending_content": cp.content,
			"updated_at":      w.clock.Now(),
		}).Error
	if err != nil {
		w.log.Warn("checkpoint write failed",
			zap.String("conversation_id", cp.conversationID.String()),
			zap.Error(err),
		)
		if w.metrics != nil {
			w.metrics.CheckpointFailures.Inc()
		}
	}
}

func (w *checkpointWriter) stop(ctx context.Context) error {
	close(w.ch)
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
