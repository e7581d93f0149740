// Package journal keeps a short-lived on-disk record of the audio clips sent
// to the backend, for diagnosing clips the backend fails to decode.
package journal

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"

	"go.aimuz.me/signal/audiostream"
)

// DefaultTTL is how long a clip is kept.
const DefaultTTL = 24 * time.Hour

const clipPrefix = "clip/"

// ErrNotFound is returned when a session has no clips.
var ErrNotFound = errors.New("no clips recorded for session")

// Entry is one journaled clip.
type Entry struct {
	SessionID  string        `json:"session_id"`
	Seq        int           `json:"seq"`
	MIMEType   string        `json:"mime_type"`
	CapturedAt time.Time     `json:"captured_at"`
	Duration   time.Duration `json:"duration"`
	Voiced     bool          `json:"voiced"`
	Data       []byte        `json:"data"`
}

// Journal stores clips in badger with a TTL.
type Journal struct {
	db  *badger.DB
	ttl time.Duration
}

// Open opens the journal at dir. An empty dir keeps it in memory.
func Open(dir string, ttl time.Duration) (*Journal, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	opts := badger.DefaultOptions(dir).WithLogger(nil)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	return &Journal{db: db, ttl: ttl}, nil
}

// Close flushes and closes the journal.
func (j *Journal) Close() error {
	return j.db.Close()
}

// Record stores one clip under sessionID.
func (j *Journal) Record(sessionID string, c audiostream.Clip) error {
	e := Entry{
		SessionID:  sessionID,
		Seq:        c.Seq,
		MIMEType:   c.MIMEType,
		CapturedAt: c.CapturedAt,
		Duration:   c.Duration,
		Voiced:     c.Voiced,
		Data:       c.Data,
	}
	value, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal clip: %w", err)
	}

	return j.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry(clipKey(sessionID, c.Seq), value).WithTTL(j.ttl)
		return txn.SetEntry(entry)
	})
}

// List returns the clips of sessionID in sequence order.
func (j *Journal) List(sessionID string) ([]Entry, error) {
	var out []Entry
	err := j.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(clipPrefix + sessionID + "/")
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(v []byte) error {
				var e Entry
				if err := json.Unmarshal(v, &e); err != nil {
					return err
				}
				out = append(out, e)
				return nil
			})
			if err != nil {
				return fmt.Errorf("read clip %s: %w", it.Item().Key(), err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, ErrNotFound
	}
	return out, nil
}

// Sessions returns the IDs of sessions with at least one stored clip.
func (j *Journal) Sessions() ([]string, error) {
	var ids []string
	err := j.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(clipPrefix)
		last := ""
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			rest := strings.TrimPrefix(string(it.Item().Key()), clipPrefix)
			id, _, ok := strings.Cut(rest, "/")
			if !ok || id == last {
				continue
			}
			ids = append(ids, id)
			last = id
		}
		return nil
	})
	return ids, err
}

// clipKey sorts clips of a session by sequence number.
func clipKey(sessionID string, seq int) []byte {
	return fmt.Appendf(nil, "%s%s/%010d", clipPrefix, sessionID, seq)
}
