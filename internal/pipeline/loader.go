package pipeline

import (
	"fmt"
	"maps"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/theirongolddev/toolmeter/internal/model"
	"github.com/theirongolddev/toolmeter/internal/source"
)

// LoadResult holds the output of reading a directory of event logs.
type LoadResult struct {
	Events      []model.Event
	Metrics     map[string]float64
	TotalFiles  int
	ParsedFiles int
	ParseErrors int
	FileErrors  int
	ServerCount int
}

// ProgressFunc is called during loading to report progress.
// current is the number of files processed so far, total is the total count.
type ProgressFunc func(current, total int)

// Load discovers and parses every event log below dir using a bounded
// worker pool. Events without a timestamp are stamped with the load time.
func Load(dir string, progressFn ProgressFunc) (*LoadResult, error) {
	files, err := source.ScanDir(dir)
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", dir, err)
	}

	result := &LoadResult{
		Metrics:     make(map[string]float64),
		TotalFiles:  len(files),
		ServerCount: source.CountServers(files),
	}
	if len(files) == 0 {
		return result, nil
	}

	for _, pr := range parseAll(files, progressFn, 0) {
		result.collect(pr)
	}
	return result, nil
}

func (r *LoadResult) collect(pr source.ParseResult) {
	if pr.Err != nil {
		r.FileErrors++
		return
	}
	r.ParsedFiles++
	r.ParseErrors += pr.ParseErrors
	maps.Copy(r.Metrics, pr.Metrics)

	now := time.Now().UTC()
	for _, ev := range pr.Events {
		if ev.Timestamp.IsZero() {
			ev.Timestamp = now
		}
		r.Events = append(r.Events, ev)
	}
}

// parseAll parses files in parallel and returns results in input order.
// offset is added to the progress count for files handled elsewhere.
func parseAll(files []source.DiscoveredFile, progressFn ProgressFunc, offset int) []source.ParseResult {
	numWorkers := runtime.GOMAXPROCS(0)
	if numWorkers < 1 {
		numWorkers = 4
	}
	if numWorkers > len(files) {
		numWorkers = len(files)
	}

	work := make(chan int, len(files))
	results := make([]source.ParseResult, len(files))
	var wg sync.WaitGroup
	var processed atomic.Int64

	for i := range files {
		work <- i
	}
	close(work)

	total := len(files) + offset
	wg.Add(numWorkers)
	for w := 0; w < numWorkers; w++ {
		go func() {
			defer wg.Done()
			for idx := range work {
				results[idx] = source.ParseFile(files[idx])
				n := processed.Add(1)
				if progressFn != nil {
					progressFn(int(n)+offset, total)
				}
			}
		}()
	}

	wg.Wait()
	return results
}
