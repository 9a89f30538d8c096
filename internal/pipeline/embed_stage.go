package pipeline

import (
	"context"
	"time"
)

func (c *Coordinator) embedWorker(ctx context.Context) {
	defer c.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-c.embedQ:
			if !ok {
				return
			}
			c.embedActive.Add(1)
			start := time.Now()
			spanCtx, span := c.tracer.StartPipelineSpan(ctx, "embed", job.doc.Path)
			outcome := c.processEmbedJob(spanCtx, job)
			span.End()
			c.collector.RecordPipelineStage("embed", outcome, time.Since(start))
			c.embedActive.Add(-1)
		}
	}
}

// processEmbedJob embeds a document's chunks in sub-batches of at
// most EmbedBatchSize texts, acquiring c.sem around each sub-batch
// call so no more than MaxPendingEmbeddings embedding requests are
// ever in flight across every embed worker combined. The returned
// outcome labels the pipeline_stage_total metric.
func (c *Coordinator) processEmbedJob(ctx context.Context, job embedJob) string {
	logger := c.logger.With("stage", "embed", "path", job.doc.Path)

	batchSize := c.settings.EmbedBatchSize
	if batchSize <= 0 {
		batchSize = len(job.chunks)
	}

	embeddings := make([][]float32, 0, len(job.chunks))
	for start := 0; start < len(job.chunks); start += batchSize {
		end := start + batchSize
		if end > len(job.chunks) {
			end = len(job.chunks)
		}
		texts := make([]string, end-start)
		for i, ch := range job.chunks[start:end] {
			texts[i] = ch.Content
		}

		select {
		case c.sem <- struct{}{}:
		case <-ctx.Done():
			logger.Warn("embedding aborted by shutdown")
			_ = c.backend.MarkFailed(ctx, job.doc.Path, "shutdown during embedding")
			c.queue.MarkComplete(job.doc.Path)
			return "shutdown"
		}
		vectors, err := c.embedder.EmbedBatch(ctx, texts)
		<-c.sem

		if err != nil {
			logger.Error("embedding failed", "error", err)
			_ = c.backend.MarkFailed(ctx, job.doc.Path, err.Error())
			c.queue.MarkComplete(job.doc.Path)
			return "embed_error"
		}
		embeddings = append(embeddings, vectors...)
	}

	sJob := storeJob{doc: job.doc, chunks: job.chunks, embeddings: embeddings}
	select {
	case c.storeQ <- sJob:
		return "success"
	case <-ctx.Done():
		logger.Warn("storing aborted by shutdown")
		_ = c.backend.MarkFailed(ctx, job.doc.Path, "shutdown before storing started")
		c.queue.MarkComplete(job.doc.Path)
		return "shutdown"
	}
}
