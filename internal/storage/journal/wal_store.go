// Package journal keeps an append-only audit trail of advisory suggestions and
// card transaction outcomes. It is never replayed into balances.
package journal

import (
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/gowal"

	"github.com/vadiminshakov/cardfuel/internal/domain"
)

const (
	defaultJournalDir   = "./wal/journal"
	journalSegmentLimit = 100
	journalMaxSegments  = 10
	// records are keyed "journal/<kind>" so kind filters skip decoding
	journalKeyPrefix = "journal/"
)

var errNotInitialized = errors.New("journal store is not initialized")

// WALStore persists journal events in a WAL for auditing and streaming.
type WALStore struct {
	wal *gowal.Wal
	mu  sync.RWMutex
	now func() time.Time
}

// NewWALStore opens (or creates) the journal under dir.
func NewWALStore(dir string) (*WALStore, error) {
	if dir == "" {
		dir = defaultJournalDir
	}

	wal, err := gowal.NewWAL(gowal.Config{
		Dir:              dir,
		Prefix:           "journal_",
		SegmentThreshold: journalSegmentLimit,
		MaxSegments:      journalMaxSegments,
		IsInSyncDiskMode: true,
	})
	if err != nil {
		return nil, errors.Wrap(err, "init journal WAL")
	}

	return &WALStore{wal: wal, now: time.Now}, nil
}

// Append writes the event at the next WAL index. Unknown kinds are refused and a
// missing timestamp is stamped with the current time.
func (s *WALStore) Append(event domain.JournalEvent) error {
	if s == nil || s.wal == nil {
		return errNotInitialized
	}
	if !event.Kind.IsValid() {
		return errors.Errorf("journal event kind %q is not known", event.Kind)
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = s.now().UTC()
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return errors.Wrap(err, "marshal journal event")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.wal.Write(s.wal.CurrentIndex()+1, recordKey(event.Kind), payload)
}

// EventsAfter reads the events written after index, keeping only the given kinds
// (all kinds when none are given). Records rotated out of the WAL are skipped.
func (s *WALStore) EventsAfter(index uint64, kinds ...domain.JournalKind) (domain.JournalPage, error) {
	if s == nil || s.wal == nil {
		return domain.JournalPage{}, errNotInitialized
	}

	wanted := make(map[domain.JournalKind]struct{}, len(kinds))
	for _, k := range kinds {
		wanted[k] = struct{}{}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	page := domain.JournalPage{Cursor: index}
	current := s.wal.CurrentIndex()
	for idx := index + 1; idx <= current; idx++ {
		page.Cursor = idx

		key, payload, ok := s.wal.Get(idx)
		if !ok {
			continue
		}
		kind, ok := kindOf(key)
		if !ok {
			continue
		}
		if _, match := wanted[kind]; len(wanted) > 0 && !match {
			continue
		}

		var event domain.JournalEvent
		if err := json.Unmarshal(payload, &event); err != nil {
			return domain.JournalPage{}, errors.Wrapf(err, "decode journal record %d", idx)
		}
		page.Records = append(page.Records, domain.JournalEventRecord{Index: idx, Event: event})
	}

	return page, nil
}

// CurrentIndex returns the latest WAL index stored.
func (s *WALStore) CurrentIndex() uint64 {
	if s == nil || s.wal == nil {
		return 0
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.wal.CurrentIndex()
}

func (s *WALStore) Close() error {
	if s == nil || s.wal == nil {
		return errNotInitialized
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.wal.Close()
}

func recordKey(kind domain.JournalKind) string {
	return journalKeyPrefix + string(kind)
}

func kindOf(key string) (domain.JournalKind, bool) {
	if !strings.HasPrefix(key, journalKeyPrefix) {
		return "", false
	}
	return domain.JournalKind(strings.TrimPrefix(key, journalKeyPrefix)), true
}
