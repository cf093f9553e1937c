package indexer

import (
	"context"
	"fmt"
	"os"
	"time"
)

// SyncStateFile is the file name of the sync state kept next to the store.
const SyncStateFile = "sync.state"

// SyncResult counts what a sync changed.
type SyncResult struct {
	Indexed   int  `json:"indexed"`
	Removed   int  `json:"removed"`
	Unchanged int  `json:"unchanged"`
	Full      bool `json:"full"`
}

// Sync brings the graph up to date with the module directory. Files whose
// modification time moved since the state at statePath are reindexed and
// files that disappeared are removed. A full sync, a missing state or a
// state recorded for another directory reindexes everything.
func (idx *Indexer) Sync(ctx context.Context, statePath string, full bool) (SyncResult, error) {
	state, err := LoadSyncState(statePath)
	if err != nil {
		return SyncResult{}, fmt.Errorf("load sync state: %w", err)
	}
	if state.Dir != idx.cfg.Dir || state.FileTimes == nil {
		full = true
	}
	if full {
		state = &SyncState{Dir: idx.cfg.Dir}
	}
	if state.FileTimes == nil {
		state.FileTimes = make(map[string]time.Time)
	}

	files, err := idx.ModuleFiles(ctx)
	if err != nil {
		return SyncResult{}, fmt.Errorf("scan %s: %w", idx.cfg.Dir, err)
	}

	res := SyncResult{Full: full}
	existing := make(map[string]time.Time, len(files))
	var changed []string
	for _, path := range files {
		info, err := os.Stat(path)
		if err != nil {
			continue // removed during the scan
		}
		mod := info.ModTime()
		existing[path] = mod
		if prev, ok := state.FileTimes[path]; ok && !mod.After(prev) {
			res.Unchanged++
			continue
		}
		changed = append(changed, path)
	}

	for path := range state.FileTimes {
		if _, ok := existing[path]; ok {
			continue
		}
		if err := idx.RemoveFile(ctx, path); err != nil {
			idx.log.Warn("remove module", "path", path, "err", err)
			continue
		}
		res.Removed++
	}

	idx.log.Info("syncing modules", "dir", idx.cfg.Dir, "changed", len(changed),
		"removed", res.Removed, "full", full)
	res.Indexed, err = idx.IndexFiles(ctx, changed)
	if err != nil {
		return res, err
	}

	state.FileTimes = existing
	state.Timestamp = time.Now()
	if err := state.Save(statePath); err != nil {
		return res, fmt.Errorf("save sync state: %w", err)
	}
	return res, nil
}
