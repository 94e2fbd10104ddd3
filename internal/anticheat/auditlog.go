// Package anticheat accumulates per-player strikes into warn/soft-block/
// hard-block escalations and appends every strike and escalation to a
// bounded, rate-limited, append-only audit log. The log shape — a fixed
// circular buffer drained by an async batched writer, with a global and
// a per-key token bucket guarding against flood — is carried over from
// the teacher's event log almost unchanged; only the payload (a strike
// record instead of a generic replay event) and the three named output
// streams are new.
package anticheat

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

const (
	bufferSize           = 1024
	globalEventsPerSec   = 10000
	perPlayerEventsPerS  = 100
	batchFlushSize       = 64
	batchFlushInterval   = 100 * time.Millisecond
	limiterCleanupPeriod = 5 * time.Minute
)

// Stream names the three append-only JSONL files §6.3 specifies.
type Stream string

const (
	StreamRecent       Stream = "anti-cheat-recent.jsonl"
	StreamEscalations  Stream = "anti-cheat-escalations.jsonl"
	StreamRoomSnapshot Stream = "anti-cheat-room-snapshots.jsonl"
)

// Entry is a single self-contained audit log line.
type Entry struct {
	Timestamp time.Time      `json:"timestamp"`
	Stream    Stream         `json:"-"`
	Reason    string         `json:"reason,omitempty"`
	Action    string         `json:"action,omitempty"`
	Room      string         `json:"room,omitempty"`
	ConnID    string         `json:"connId,omitempty"`
	PlayerID  string         `json:"playerId,omitempty"`
	Name      string         `json:"name,omitempty"`
	Detail    map[string]any `json:"detail,omitempty"`
}

type bufferedEntry struct {
	seq   uint64
	entry Entry
}

type keyLimiterEntry struct {
	limiter  *rate.Limiter
	lastUsed time.Time
}

// AuditLog is a bounded, rate-limited, multi-stream append-only logger.
type AuditLog struct {
	dataDir string

	buffer    [bufferSize]bufferedEntry
	writeHead uint64
	readHead  uint64

	globalLimiter *rate.Limiter
	keyLimiters   sync.Map // map[string]*keyLimiterEntry

	files   map[Stream]*os.File
	fileMu  sync.Mutex

	wg       sync.WaitGroup
	stopChan chan struct{}
	stopOnce sync.Once
	running  atomic.Bool

	dropped atomic.Uint64
	total   atomic.Uint64
}

// NewAuditLog builds an AuditLog that writes under dataDir once Start is called.
func NewAuditLog(dataDir string) *AuditLog {
	return &AuditLog{
		dataDir:       dataDir,
		globalLimiter: rate.NewLimiter(rate.Limit(globalEventsPerSec), globalEventsPerSec/10),
		stopChan:      make(chan struct{}),
		files:         make(map[Stream]*os.File),
	}
}

// Start opens the three output files and begins the async writer and
// limiter-cleanup goroutines.
func (a *AuditLog) Start() error {
	if a.running.Load() {
		return nil
	}

	if a.dataDir != "" {
		if err := os.MkdirAll(a.dataDir, 0o755); err != nil {
			return err
		}
		for _, s := range []Stream{StreamRecent, StreamEscalations, StreamRoomSnapshot} {
			f, err := os.OpenFile(filepath.Join(a.dataDir, string(s)), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
			if err != nil {
				return err
			}
			a.files[s] = f
		}
	}

	a.running.Store(true)
	a.wg.Add(2)
	go a.writerLoop()
	go a.cleanupLoop()
	return nil
}

// Stop drains the buffer and closes the output files.
func (a *AuditLog) Stop() {
	a.stopOnce.Do(func() {
		a.running.Store(false)
		close(a.stopChan)
		a.wg.Wait()

		a.fileMu.Lock()
		defer a.fileMu.Unlock()
		for _, f := range a.files {
			f.Close()
		}
	})
}

// Append adds entry to the buffer, subject to global and per-key rate
// limiting. keyForLimit is typically the player's persistent id; an
// empty key skips the per-key check. Returns false if the entry was
// dropped (the log is not running, or a rate limit refused it). When the
// buffer is full the oldest unread entry is evicted and the new entry is
// still accepted.
func (a *AuditLog) Append(entry Entry, keyForLimit string) bool {
	if !a.running.Load() {
		return false
	}

	if !a.globalLimiter.Allow() {
		a.dropped.Add(1)
		return false
	}
	if keyForLimit != "" {
		if !a.keyLimiter(keyForLimit).Allow() {
			a.dropped.Add(1)
			return false
		}
	}

	entry.Timestamp = time.Now()

	head := atomic.AddUint64(&a.writeHead, 1)
	tail := atomic.LoadUint64(&a.readHead)
	if head-tail >= bufferSize {
		atomic.AddUint64(&a.readHead, 1)
		a.dropped.Add(1)
	}

	idx := head % bufferSize
	a.buffer[idx] = bufferedEntry{seq: head, entry: entry}
	a.total.Add(1)
	return true
}

func (a *AuditLog) keyLimiter(key string) *rate.Limiter {
	if v, ok := a.keyLimiters.Load(key); ok {
		e := v.(*keyLimiterEntry)
		e.lastUsed = time.Now()
		return e.limiter
	}
	entry := &keyLimiterEntry{
		limiter:  rate.NewLimiter(rate.Limit(perPlayerEventsPerS), perPlayerEventsPerS/10),
		lastUsed: time.Now(),
	}
	actual, _ := a.keyLimiters.LoadOrStore(key, entry)
	return actual.(*keyLimiterEntry).limiter
}

func (a *AuditLog) writerLoop() {
	defer a.wg.Done()
	ticker := time.NewTicker(batchFlushInterval)
	defer ticker.Stop()

	batch := make([]bufferedEntry, 0, batchFlushSize)
	for {
		select {
		case <-a.stopChan:
			batch = a.collectBatch(batch[:0])
			if len(batch) > 0 {
				a.flushBatch(batch)
			}
			return
		case <-ticker.C:
			batch = a.collectBatch(batch[:0])
			if len(batch) > 0 {
				a.flushBatch(batch)
			}
		}
	}
}

func (a *AuditLog) cleanupLoop() {
	defer a.wg.Done()
	ticker := time.NewTicker(limiterCleanupPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-a.stopChan:
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-limiterCleanupPeriod)
			a.keyLimiters.Range(func(key, value any) bool {
				if value.(*keyLimiterEntry).lastUsed.Before(cutoff) {
					a.keyLimiters.Delete(key)
				}
				return true
			})
		}
	}
}

func (a *AuditLog) collectBatch(batch []bufferedEntry) []bufferedEntry {
	head := atomic.LoadUint64(&a.writeHead)
	tail := atomic.LoadUint64(&a.readHead)

	for i := tail; i < head && len(batch) < batchFlushSize; i++ {
		batch = append(batch, a.buffer[i%bufferSize])
	}
	if len(batch) > 0 {
		atomic.AddUint64(&a.readHead, uint64(len(batch)))
	}
	return batch
}

func (a *AuditLog) flushBatch(batch []bufferedEntry) {
	a.fileMu.Lock()
	defer a.fileMu.Unlock()

	for _, be := range batch {
		f, ok := a.files[be.entry.Stream]
		if !ok {
			continue
		}
		data, err := json.Marshal(be.entry)
		if err != nil {
			continue
		}
		f.Write(data)
		f.Write([]byte("\n"))
	}
}

// Stats reports buffer occupancy and drop counters for the admin/telemetry surface.
func (a *AuditLog) Stats() (total, dropped, pending uint64) {
	head := atomic.LoadUint64(&a.writeHead)
	tail := atomic.LoadUint64(&a.readHead)
	return a.total.Load(), a.dropped.Load(), head - tail
}
