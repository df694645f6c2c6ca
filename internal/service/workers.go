package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	defaultEmbedInterval  = 30 * time.Second
	defaultEmbedBatchSize = 50
	defaultFlushInterval  = 1 * time.Minute
)

// EmbeddingWorker embeds interactions that were ingested without a vector.
type EmbeddingWorker struct {
	memory *MemoryService
	logger *zap.Logger

	interval  time.Duration
	batchSize int
	stopCh    chan struct{}
	wg        sync.WaitGroup
}

func NewEmbeddingWorker(memory *MemoryService, logger *zap.Logger) *EmbeddingWorker {
	return &EmbeddingWorker{
		memory:    memory,
		logger:    logger,
		interval:  defaultEmbedInterval,
		batchSize: defaultEmbedBatchSize,
		stopCh:    make(chan struct{}),
	}
}

func (w *EmbeddingWorker) SetInterval(d time.Duration) {
	w.interval = d
}

func (w *EmbeddingWorker) SetBatchSize(n int) {
	if n > 0 {
		w.batchSize = n
	}
}

// Start runs the worker on a periodic schedule in a background goroutine.
func (w *EmbeddingWorker) Start() {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()

		w.logger.Info("embedding worker started", zap.Duration("interval", w.interval))

		for {
			select {
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
				w.RunOnce(ctx)
				cancel()
			case <-w.stopCh:
				w.logger.Info("embedding worker stopped")
				return
			}
		}
	}()
}

// Stop gracefully stops the worker.
func (w *EmbeddingWorker) Stop() {
	close(w.stopCh)
	w.wg.Wait()
}

// RunOnce embeds one batch and returns how many rows were embedded.
func (w *EmbeddingWorker) RunOnce(ctx context.Context) int {
	n, err := w.memory.EmbedPending(ctx, w.batchSize)
	if err != nil {
		w.logger.Error("failed to embed pending interactions", zap.Error(err))
		return n
	}
	if n > 0 {
		w.logger.Info("embedded pending interactions", zap.Int("count", n))
	}
	return n
}

// IndexFlusher periodically writes dirty index shards to disk, and once more
// on Stop.
type IndexFlusher struct {
	memory *MemoryService
	logger *zap.Logger

	interval time.Duration
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

func NewIndexFlusher(memory *MemoryService, logger *zap.Logger) *IndexFlusher {
	return &IndexFlusher{
		memory:   memory,
		logger:   logger,
		interval: defaultFlushInterval,
		stopCh:   make(chan struct{}),
	}
}

func (f *IndexFlusher) SetInterval(d time.Duration) {
	f.interval = d
}

func (f *IndexFlusher) Start() {
	f.wg.Add(1)
	go func() {
		defer f.wg.Done()
		ticker := time.NewTicker(f.interval)
		defer ticker.Stop()

		f.logger.Info("index flusher started", zap.Duration("interval", f.interval))

		for {
			select {
			case <-ticker.C:
				f.flush()
			case <-f.stopCh:
				f.flush()
				f.logger.Info("index flusher stopped")
				return
			}
		}
	}()
}

func (f *IndexFlusher) Stop() {
	close(f.stopCh)
	f.wg.Wait()
}

func (f *IndexFlusher) flush() {
	n, err := f.memory.FlushIndexes()
	if err != nil {
		f.logger.Error("failed to flush memory indexes", zap.Int("flushed", n), zap.Error(err))
		return
	}
	if n > 0 {
		f.logger.Debug("flushed memory indexes", zap.Int("count", n))
	}
}
