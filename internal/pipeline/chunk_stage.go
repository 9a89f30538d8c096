package pipeline

import (
	"context"
	"time"

	"github.com/katanaquant/ragengine/internal/domain"
	"github.com/katanaquant/ragengine/internal/progress"
)

func (c *Coordinator) chunkWorker(ctx context.Context) {
	defer c.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case item, ok := <-c.chunkQ:
			if !ok {
				return
			}
			c.chunkActive.Add(1)
			start := time.Now()
			spanCtx, span := c.tracer.StartPipelineSpan(ctx, "chunk", item.Path)
			outcome := c.processChunkItem(spanCtx, item)
			span.End()
			c.collector.RecordPipelineStage("chunk", outcome, time.Since(start))
			c.chunkActive.Add(-1)
		}
	}
}

// processChunkItem runs steps (a)-(f) of the chunk stage. Every exit
// path that does not hand work to the embed stage releases the
// path's in-flight slot via c.queue.MarkComplete so a later re-add
// for the same path is never silently dropped. The returned outcome
// labels the pipeline_stage_total metric.
func (c *Coordinator) processChunkItem(ctx context.Context, item domain.QueueItem) string {
	logger := c.logger.With("stage", "chunk", "path", item.Path)

	hash, err := hashFile(item.Path)
	if err != nil {
		logger.Error("hash failed", "error", err)
		_ = c.backend.MarkFailed(ctx, item.Path, err.Error())
		c.queue.MarkComplete(item.Path)
		return "hash_error"
	}

	result := c.validator.Validate(item.Path)
	if !result.IsValid {
		logger.Info("rejected", "check", result.ValidationCheck, "reason", result.Reason)
		_ = c.backend.MarkRejected(ctx, item.Path, result.Reason)
		c.queue.MarkComplete(item.Path)
		return "rejected"
	}

	indexed, err := c.backend.IsDocumentIndexed(ctx, item.Path, hash)
	if err != nil {
		logger.Error("is_document_indexed failed", "error", err)
		_ = c.backend.MarkFailed(ctx, item.Path, err.Error())
		c.queue.MarkComplete(item.Path)
		return "index_check_error"
	}
	if indexed && !item.Force {
		logger.Debug("skipped, content already indexed under this or another path")
		c.queue.MarkComplete(item.Path)
		return "skipped_indexed"
	}

	decision, err := c.tracker.Evaluate(ctx, item.Path, hash)
	if err != nil {
		logger.Error("progress evaluation failed", "error", err)
		_ = c.backend.MarkFailed(ctx, item.Path, err.Error())
		c.queue.MarkComplete(item.Path)
		return "progress_error"
	}
	if decision.Action == progress.ActionSkip && !item.Force {
		logger.Debug("skipped, already indexed")
		c.queue.MarkComplete(item.Path)
		return "skipped_progress"
	}
	if decision.Action == progress.ActionResume {
		logger.Info("resuming previously interrupted file", "resume_from_chunk", decision.ResumeFromChunk)
	}

	extracted, err := c.router.Extract(ctx, item.Path)
	if err != nil {
		logger.Error("extraction failed", "error", err)
		_ = c.backend.MarkFailed(ctx, item.Path, err.Error())
		c.queue.MarkComplete(item.Path)
		return "extract_error"
	}

	chunks := c.chunker.Chunk(extracted.Pages)
	if len(chunks) == 0 {
		logger.Warn("no chunks produced")
		_ = c.backend.MarkFailed(ctx, item.Path, "extraction produced no usable chunks")
		c.queue.MarkComplete(item.Path)
		return "no_chunks"
	}

	if err := c.backend.StartProcessing(ctx, item.Path, hash, len(chunks)); err != nil {
		logger.Error("start_processing failed", "error", err)
		c.queue.MarkComplete(item.Path)
		return "start_processing_error"
	}

	job := embedJob{
		doc:    docIdentity{Path: item.Path, Hash: hash, ExtractionMethod: extracted.Method},
		chunks: chunks,
	}
	select {
	case c.embedQ <- job:
		return "success"
	case <-ctx.Done():
		_ = c.backend.MarkFailed(ctx, item.Path, "shutdown before embedding started")
		c.queue.MarkComplete(item.Path)
		return "shutdown"
	}
}
