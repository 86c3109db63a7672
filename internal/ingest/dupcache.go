package ingest

import (
	"os"
	"sync"

	"github.com/google/uuid"
)

type duplicateStamp struct {
	size           int64
	modTime        int64
	conversationID uuid.UUID
}

// duplicatePaths remembers untracked files whose content already belongs to
// another conversation, so an unchanged copy is not re-parsed on every pass.
// Nothing is persisted; a restart re-checks each copy once.
type duplicatePaths struct {
	mu      sync.Mutex
	entries map[string]duplicateStamp
}

func newDuplicatePaths() *duplicatePaths {
	return &duplicatePaths{entries: make(map[string]duplicateStamp)}
}

// remember records path only if the file still has the size the parse saw.
func (d *duplicatePaths) remember(path string, scannedSize int64, id uuid.UUID) {
	info, err := os.Stat(path)
	if err != nil || info.Size() != scannedSize {
		return
	}
	d.mu.Lock()
	d.entries[path] = duplicateStamp{size: info.Size(), modTime: info.ModTime().UnixNano(), conversationID: id}
	d.mu.Unlock()
}

// lookup returns the duplicated conversation while the file is unchanged.
// A changed or missing file drops the entry.
func (d *duplicatePaths) lookup(path string, opts Options) (uuid.UUID, bool) {
	if opts.dedup() != DedupSkip {
		return uuid.Nil, false
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	stamp, ok := d.entries[path]
	if !ok {
		return uuid.Nil, false
	}
	info, err := os.Stat(path)
	if err != nil || info.Size() != stamp.size || info.ModTime().UnixNano() != stamp.modTime {
		delete(d.entries, path)
		return uuid.Nil, false
	}
	return stamp.conversationID, true
}
