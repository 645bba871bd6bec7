package payment

import (
	"encoding/json"
	"time"

	bolt "github.com/boltdb/bolt"
)

const eventBucket = "processed_events"

// EventStore records payment webhook events that have already been applied
// to the ledger. Gateways redeliver webhooks freely, so crediting must key
// off a durable processed-set rather than trusting each delivery.
type EventStore struct {
	db *bolt.DB
}

type processedEvent struct {
	EventID     string    `json:"eventId"`
	ProcessedAt time.Time `json:"processedAt"`
}

// OpenEventStore opens (or creates) the bolt file and its bucket.
func OpenEventStore(path string) (*EventStore, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, err
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(eventBucket))
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &EventStore{db: db}, nil
}

// Close releases the database file lock.
func (s *EventStore) Close() error {
	return s.db.Close()
}

// MarkProcessed records the event id if it has not been seen before.
// Returns true when this call claimed the event, false on a replay. The
// check and the write happen in one bolt transaction, so two concurrent
// deliveries of the same event cannot both claim it.
func (s *EventStore) MarkProcessed(eventID string) (bool, error) {
	claimed := false
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(eventBucket))
		if b.Get([]byte(eventID)) != nil {
			return nil
		}
		data, err := json.Marshal(processedEvent{EventID: eventID, ProcessedAt: time.Now().UTC()})
		if err != nil {
			return err
		}
		claimed = true
		return b.Put([]byte(eventID), data)
	})
	if err != nil {
		return false, err
	}
	return claimed, nil
}

// Unmark removes a claim so a failed credit can be retried on redelivery.
func (s *EventStore) Unmark(eventID string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(eventBucket)).Delete([]byte(eventID))
	})
}
