package ingestion

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/jeovahfialho/grid-analyzer/internal/domain"
)

// FileReader parses several exported envelope files concurrently.
type FileReader struct {
	workers int
}

type fileJob struct {
	index int
	path  string
}

type FileResult struct {
	FilePath string
	Trades   []domain.RawTrade
	Error    error
}

func NewFileReader(workers int) *FileReader {
	if workers < 1 {
		workers = 1
	}
	return &FileReader{workers: workers}
}

// ReadFiles returns one result per path, in argument order.
func (r *FileReader) ReadFiles(ctx context.Context, paths []string) []FileResult {
	results := make([]FileResult, len(paths))
	jobs := make(chan fileJob, r.workers*2)

	var wg sync.WaitGroup
	for i := 0; i < r.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				results[job.index] = r.processFile(ctx, job.path)
			}
		}()
	}

	for i, path := range paths {
		jobs <- fileJob{index: i, path: path}
	}
	close(jobs)
	wg.Wait()

	return results
}

func (r *FileReader) processFile(ctx context.Context, filePath string) FileResult {
	if err := ctx.Err(); err != nil {
		return FileResult{FilePath: filePath, Error: err}
	}

	content, err := os.ReadFile(filePath)
	if err != nil {
		return FileResult{
			FilePath: filePath,
			Error:    fmt.Errorf("error opening file: %w", err),
		}
	}

	trades, err := ParseEnvelope(content)
	if err != nil {
		return FileResult{
			FilePath: filePath,
			Error:    fmt.Errorf("error parsing %s: %w", filePath, err),
		}
	}

	return FileResult{FilePath: filePath, Trades: trades}
}

// Concat joins the trades of all successful results in order and collects
// the failures.
func Concat(results []FileResult) ([]domain.RawTrade, []error) {
	var trades []domain.RawTrade
	var errs []error
	for _, res := range results {
		if res.Error != nil {
			errs = append(errs, res.Error)
			continue
		}
		trades = append(trades, res.Trades...)
	}
	return trades, errs
}
