package store

import (
	"encoding/binary"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

var deliveriesBucket = []byte("deliveries")

// Ledger remembers which webhook events were already handled, keyed by the
// platform's webhookEventId. It stores ids and timestamps only.
type Ledger interface {
	// Claim records eventID at the given time unless it is already present,
	// and reports whether it was. The lookup and the write are one step, so
	// concurrent claims of the same id see exactly one false.
	Claim(eventID string, at time.Time) (seen bool, err error)
	Prune(maxAge time.Duration) (int, error)
	Close() error
}

type BoltLedger struct {
	db *bolt.DB
}

func NewBoltLedger(path string) (*BoltLedger, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening bolt db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(deliveriesBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating deliveries bucket: %w", err)
	}

	return &BoltLedger{db: db}, nil
}

func (l *BoltLedger) Claim(eventID string, at time.Time) (bool, error) {
	var seen bool
	err := l.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(deliveriesBucket)
		if b.Get([]byte(eventID)) != nil {
			seen = true
			return nil
		}
		return b.Put([]byte(eventID), encodeTime(at))
	})
	return seen, err
}

// Prune deletes entries recorded more than maxAge ago and returns how many
// were removed.
func (l *BoltLedger) Prune(maxAge time.Duration) (int, error) {
	cutoff := time.Now().Add(-maxAge)
	removed := 0
	err := l.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(deliveriesBucket)
		var stale [][]byte
		err := b.ForEach(func(k, v []byte) error {
			if decodeTime(v).Before(cutoff) {
				stale = append(stale, append([]byte(nil), k...))
			}
			return nil
		})
		if err != nil {
			return err
		}
		for _, k := range stale {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		removed = len(stale)
		return nil
	})
	return removed, err
}

func (l *BoltLedger) Close() error {
	return l.db.Close()
}

func encodeTime(t time.Time) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(t.UnixNano()))
	return buf
}

func decodeTime(b []byte) time.Time {
	if len(b) != 8 {
		return time.Time{}
	}
	return time.Unix(0, int64(binary.BigEndian.Uint64(b)))
}
