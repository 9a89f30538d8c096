package pipeline

import (
	"context"
	"time"

	"github.com/katanaquant/ragengine/internal/store"
)

func (c *Coordinator) storeWorker(ctx context.Context) {
	defer c.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-c.storeQ:
			if !ok {
				return
			}
			c.storeActive.Add(1)
			start := time.Now()
			spanCtx, span := c.tracer.StartPipelineSpan(ctx, "store", job.doc.Path)
			outcome := c.processStoreJob(spanCtx, job)
			span.End()
			c.collector.RecordPipelineStage("store", outcome, time.Since(start))
			c.storeActive.Add(-1)
		}
	}
}

// processStoreJob performs the atomic replace and is the only place
// in the pipeline that touches the store's write path. Whatever the
// outcome, it always calls queue.MarkComplete: this is the terminal
// stage for every document that makes it this far. The returned
// outcome labels the pipeline_stage_total metric.
func (c *Coordinator) processStoreJob(ctx context.Context, job storeJob) string {
	logger := c.logger.With("stage", "store", "path", job.doc.Path)

	input := store.AddDocumentInput{
		FilePath:         job.doc.Path,
		FileHash:         job.doc.Hash,
		ExtractionMethod: job.doc.ExtractionMethod,
		Chunks:           job.chunks,
		Embeddings:       job.embeddings,
	}

	if err := c.backend.AddDocument(ctx, input); err != nil {
		logger.Error("add_document failed", "error", err)
		_ = c.backend.MarkFailed(ctx, job.doc.Path, err.Error())
		c.queue.MarkComplete(job.doc.Path)
		return "store_error"
	}

	if err := c.backend.MarkCompleted(ctx, job.doc.Path); err != nil {
		logger.Error("mark_completed failed", "error", err)
	}
	c.queue.MarkComplete(job.doc.Path)
	return "success"
}
