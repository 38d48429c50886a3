package pipeline

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/theirongolddev/toolmeter/internal/source"
	"github.com/theirongolddev/toolmeter/internal/store"
)

// ImportResult extends LoadResult with store bookkeeping.
type ImportResult struct {
	LoadResult
	Unchanged int
	Reparsed  int
	Inserted  int
}

// Import parses the event logs below dir that changed since the last
// import and saves their events into st. Unchanged files are skipped;
// changed files are re-read in full and deduplicated by event ID.
func Import(dir string, st *store.Store, progressFn ProgressFunc) (*ImportResult, error) {
	files, err := source.ScanDir(dir)
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", dir, err)
	}

	result := &ImportResult{
		LoadResult: LoadResult{
			Metrics:     make(map[string]float64),
			TotalFiles:  len(files),
			ServerCount: source.CountServers(files),
		},
	}
	if len(files) == 0 {
		return result, nil
	}

	tracked, err := st.GetTrackedFiles()
	if err != nil {
		return nil, fmt.Errorf("reading tracked files: %w", err)
	}

	var toReparse []source.DiscoveredFile
	infos := make(map[string]store.FileInfo)

	for _, f := range files {
		info, err := os.Stat(f.Path)
		if err != nil {
			continue
		}
		fi := store.FileInfo{MtimeNs: info.ModTime().UnixNano(), SizeBytes: info.Size()}
		if cached, ok := tracked[f.Path]; ok && cached == fi {
			result.Unchanged++
			continue
		}
		infos[f.Path] = fi
		toReparse = append(toReparse, f)
	}
	result.Reparsed = len(toReparse)

	if len(toReparse) == 0 {
		return result, nil
	}

	for i, pr := range parseAll(toReparse, progressFn, result.Unchanged) {
		before := len(result.Events)
		result.collect(pr)
		if pr.Err != nil {
			continue
		}

		n, err := st.SaveEvents(result.Events[before:])
		if err != nil {
			return nil, fmt.Errorf("saving events from %s: %w", filepath.Base(toReparse[i].Path), err)
		}
		result.Inserted += n

		if err := st.TrackFile(toReparse[i].Path, infos[toReparse[i].Path]); err != nil {
			return nil, fmt.Errorf("tracking %s: %w", toReparse[i].Path, err)
		}
	}

	return result, nil
}

// DataDir returns the platform-appropriate data directory.
func DataDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "toolmeter")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", "toolmeter")
}

// DefaultDBPath returns the full path to the default event database.
func DefaultDBPath() string {
	return filepath.Join(DataDir(), "events.db")
}

// DefaultLogDir returns the default directory scanned for tool server logs.
func DefaultLogDir() string {
	return filepath.Join(DataDir(), "logs")
}
