// Package batch extracts a set of statement files discovered from paths on
// the command line.
package batch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/MeKo-Tech/stmtgrid/internal/extract"
	"github.com/MeKo-Tech/stmtgrid/internal/output"
	"github.com/MeKo-Tech/stmtgrid/internal/progress"
)

// Extractor extracts one file. *extract.Service implements it.
type Extractor interface {
	ProcessFile(ctx context.Context, path string, cb progress.Callback) (*extract.Result, error)
}

// Process discovers files under paths and extracts each of them. Documents
// are returned in discovery order whatever the worker count.
func Process(ctx context.Context, ex Extractor, paths []string, config *Config) (*Result, error) {
	files, err := discoverFiles(paths, config.Recursive, config.IncludePatterns, config.ExcludePatterns)
	if err != nil {
		return nil, fmt.Errorf("failed to discover files: %w", err)
	}
	if len(files) == 0 {
		return nil, errors.New("no PDF files found")
	}

	workers := config.Workers
	if workers < 1 {
		workers = 1
	}
	if workers > len(files) {
		workers = len(files)
	}

	start := time.Now()
	docs, err := processFiles(ctx, ex, files, workers, config)
	if err != nil {
		return nil, err
	}

	return &Result{
		Documents:   docs,
		Duration:    time.Since(start),
		WorkerCount: workers,
	}, nil
}

func processFiles(ctx context.Context, ex Extractor, files []string, workers int, config *Config) ([]output.Document, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	cb := progress.OrNoOp(config.Progress)
	docs := make([]output.Document, len(files))
	jobs := make(chan int)

	var (
		mu       sync.Mutex
		done     int
		firstErr error
		wg       sync.WaitGroup
	)

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				var pageCB progress.Callback
				if workers == 1 && config.PageProgress != nil {
					pageCB = config.PageProgress(files[i])
				}
				res, err := ex.ProcessFile(ctx, files[i], pageCB)

				mu.Lock()
				docs[i] = output.NewDocument(files[i], res, err)
				done++
				d := done
				if err != nil && config.FailFast && firstErr == nil {
					firstErr = fmt.Errorf("%s: %w", files[i], err)
					cancel()
				}
				mu.Unlock()
				cb.OnProgress(d, len(files))
			}
		}()
	}

feed:
	for i := range files {
		select {
		case jobs <- i:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("batch canceled after %d of %d documents: %w", done, len(files), err)
	}
	return docs, nil
}
