package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	badgerdb "github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/ternarybob/curtail/internal/interfaces"
)

// queuedMessage wraps a payload with the delivery bookkeeping stored in
// Badger. The body is opaque to the queue.
type queuedMessage struct {
	ID           string          `json:"id"`
	Body         json.RawMessage `json:"body"`
	EnqueuedAt   time.Time       `json:"enqueued_at"`
	VisibleAt    time.Time       `json:"visible_at"`
	ReceiveCount int             `json:"receive_count"`
}

// BadgerQueue implements a persistent at-least-once queue on BadgerDB.
// Messages live at queue:{name}:msg:{id}; a visibility index at
// queue:{name}:index:{ts}:{id} keeps ready messages scannable in order.
type BadgerQueue struct {
	db                *badgerdb.DB
	queueName         string
	visibilityTimeout time.Duration
	maxReceive        int
}

// NewBadgerQueue creates a new Badger-backed queue
func NewBadgerQueue(db *badgerdb.DB, queueName string, visibilityTimeout time.Duration, maxReceive int) (*BadgerQueue, error) {
	if db == nil {
		return nil, errors.New("badger db is required")
	}
	if queueName == "" {
		return nil, errors.New("queue name is required")
	}
	if visibilityTimeout <= 0 {
		visibilityTimeout = 2 * time.Minute
	}
	if maxReceive <= 0 {
		maxReceive = 5
	}

	return &BadgerQueue{
		db:                db,
		queueName:         queueName,
		visibilityTimeout: visibilityTimeout,
		maxReceive:        maxReceive,
	}, nil
}

// Enqueue publishes an immediately visible message
func (q *BadgerQueue) Enqueue(ctx context.Context, body []byte) error {
	return q.EnqueueWithDelay(ctx, body, 0)
}

// EnqueueWithDelay publishes a message that becomes visible after delay
func (q *BadgerQueue) EnqueueWithDelay(ctx context.Context, body []byte, delay time.Duration) error {
	now := time.Now()
	msg := queuedMessage{
		ID:         uuid.New().String(),
		Body:       json.RawMessage(body),
		EnqueuedAt: now,
		VisibleAt:  now.Add(delay),
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal queue message: %w", err)
	}

	err = q.db.Update(func(txn *badgerdb.Txn) error {
		if err := txn.Set(q.msgKey(msg.ID), data); err != nil {
			return err
		}
		return txn.Set(q.indexKey(msg.VisibleAt, msg.ID), []byte{})
	})
	if err != nil {
		return fmt.Errorf("%w: %s", interfaces.ErrQueuePublish, err)
	}
	return nil
}

// Receive pulls the next visible message from the queue. The returned ack
// function deletes the message; an unacked message is redelivered after
// the visibility timeout.
func (q *BadgerQueue) Receive(ctx context.Context) ([]byte, func() error, error) {
	var claimed queuedMessage

	err := q.db.Update(func(txn *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.PrefetchValues = false
		prefix := []byte(fmt.Sprintf("queue:%s:index:", q.queueName))
		it := txn.NewIterator(opts)
		defer it.Close()

		now := time.Now()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			key := it.Item().KeyCopy(nil)

			visibleAt, id, err := q.parseIndexKey(key)
			if err != nil {
				continue // Skip malformed keys
			}
			if visibleAt.After(now) {
				// Index keys sort by timestamp: nothing later is ready either
				break
			}

			item, err := txn.Get(q.msgKey(id))
			if err != nil {
				if errors.Is(err, badgerdb.ErrKeyNotFound) {
					// Dangling index entry, clean it up and keep scanning
					if derr := txn.Delete(key); derr != nil {
						return derr
					}
					continue
				}
				return err
			}

			var msg queuedMessage
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &msg)
			}); err != nil {
				return err
			}

			if msg.ReceiveCount >= q.maxReceive {
				// Poison message: drop it instead of looping forever
				if err := txn.Delete(key); err != nil {
					return err
				}
				if err := txn.Delete(q.msgKey(id)); err != nil {
					return err
				}
				continue
			}

			// Claim: bump receive count, push visibility out
			msg.ReceiveCount++
			msg.VisibleAt = time.Now().Add(q.visibilityTimeout)

			data, err := json.Marshal(msg)
			if err != nil {
				return err
			}
			if err := txn.Set(q.msgKey(id), data); err != nil {
				return err
			}
			if err := txn.Delete(key); err != nil {
				return err
			}
			if err := txn.Set(q.indexKey(msg.VisibleAt, id), []byte{}); err != nil {
				return err
			}

			claimed = msg
			return nil
		}

		return interfaces.ErrNoMessage
	})

	if err != nil {
		return nil, nil, err
	}

	msgID := claimed.ID
	ack := func() error {
		return q.db.Update(func(txn *badgerdb.Txn) error {
			item, err := txn.Get(q.msgKey(msgID))
			if err != nil {
				if errors.Is(err, badgerdb.ErrKeyNotFound) {
					return nil // Already deleted
				}
				return err
			}

			var current queuedMessage
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &current)
			}); err != nil {
				return err
			}

			if err := txn.Delete(q.indexKey(current.VisibleAt, msgID)); err != nil && !errors.Is(err, badgerdb.ErrKeyNotFound) {
				return err
			}
			return txn.Delete(q.msgKey(msgID))
		})
	}

	return claimed.Body, ack, nil
}

// Len reports the number of stored messages, visible or not.
func (q *BadgerQueue) Len(ctx context.Context) (int, error) {
	count := 0
	prefix := []byte(fmt.Sprintf("queue:%s:msg:", q.queueName))
	err := q.db.View(func(txn *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			count++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count queue %s: %w", q.queueName, err)
	}
	return count, nil
}

func (q *BadgerQueue) msgKey(id string) []byte {
	return []byte(fmt.Sprintf("queue:%s:msg:%s", q.queueName, id))
}

func (q *BadgerQueue) indexKey(visibleAt time.Time, id string) []byte {
	// Zero pad to 20 digits so string ordering matches numeric ordering
	return []byte(fmt.Sprintf("queue:%s:index:%020d:%s", q.queueName, visibleAt.UnixNano(), id))
}

func (q *BadgerQueue) parseIndexKey(key []byte) (time.Time, string, error) {
	prefix := fmt.Sprintf("queue:%s:index:", q.queueName)
	if len(key) <= len(prefix) {
		return time.Time{}, "", fmt.Errorf("invalid index key length")
	}

	suffix := string(key[len(prefix):])
	if len(suffix) < 21 { // 20 digits + colon
		return time.Time{}, "", fmt.Errorf("invalid index key suffix")
	}

	var ts int64
	if _, err := fmt.Sscanf(suffix[:20], "%d", &ts); err != nil {
		return time.Time{}, "", err
	}

	return time.Unix(0, ts), suffix[21:], nil
}

// Ensure BadgerQueue implements the Queue interface
var _ interfaces.Queue = (*BadgerQueue)(nil)
