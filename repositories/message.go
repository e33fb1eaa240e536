//go:generate go run go.uber.org/mock/mockgen -source=message.go -destination=../mocks/mock_message_repository.go -package=mocks
package repositories

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"

	"quick-chat/domain/chat"
	"quick-chat/errors"
)

type IMessageRepository interface {
	Append(chatID chat.ChatID, senderID chat.UserID, text string, at time.Time) (chat.Message, error)
	ByID(id chat.MessageID) (chat.Message, error)
	MarkRead(id chat.MessageID) (chat.Message, bool, error)
	History(chatID chat.ChatID, cursor *string, limit int) ([]chat.Message, *string, error)
	LastMessage(chatID chat.ChatID) (*chat.Message, error)
}

// MessageRepository persists messages in BadgerDB.
//
// The primary key is "msg:{chat_id}:{seq_padded}": the zero-padded per-chat
// sequence makes a prefix scan return messages in append order, which is
// the delivery order of the chat. A secondary "msgid:{id}" index resolves
// the integer message id used by the wire protocol.
//
// Sequence numbers come from Badger sequences, so assignment is atomic
// across concurrent senders: two near-simultaneous appends to the same chat
// can never be persisted out of order, whatever their wall clocks say.
type MessageRepository struct {
	db  *badger.DB
	log *slog.Logger

	mu      sync.Mutex
	idSeq   *badger.Sequence
	chatSeq map[chat.ChatID]*badger.Sequence
}

func NewMessageRepository(db *badger.DB, log *slog.Logger) (*MessageRepository, error) {
	idSeq, err := db.GetSequence([]byte("seq:msg-id"), 128)
	if err != nil {
		return nil, fmt.Errorf("message id sequence: %w", err)
	}
	return &MessageRepository{
		db:      db,
		log:     log,
		idSeq:   idSeq,
		chatSeq: make(map[chat.ChatID]*badger.Sequence),
	}, nil
}

// Close releases the leased sequence bandwidth back to the store.
func (m *MessageRepository) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	err := m.idSeq.Release()
	for _, seq := range m.chatSeq {
		if relErr := seq.Release(); relErr != nil && err == nil {
			err = relErr
		}
	}
	return err
}

func (m *MessageRepository) nextIDs(chatID chat.ChatID) (chat.MessageID, uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id, err := m.idSeq.Next()
	if err != nil {
		return 0, 0, err
	}

	seq, ok := m.chatSeq[chatID]
	if !ok {
		seq, err = m.db.GetSequence([]byte(fmt.Sprintf("seq:msg:%d", chatID)), 64)
		if err != nil {
			return 0, 0, err
		}
		m.chatSeq[chatID] = seq
	}
	ordinal, err := seq.Next()
	if err != nil {
		return 0, 0, err
	}

	// Sequences start at zero; ids are 1-based on the wire.
	return chat.MessageID(id + 1), ordinal + 1, nil
}

// Append assigns the message id and per-chat sequence, then persists the
// message together with its id index in one transaction.
func (m *MessageRepository) Append(chatID chat.ChatID, senderID chat.UserID, text string, at time.Time) (chat.Message, error) {
	id, ordinal, err := m.nextIDs(chatID)
	if err != nil {
		return chat.Message{}, fmt.Errorf("sequence allocation: %w", err)
	}

	message := chat.Message{
		ID:       id,
		ChatID:   chatID,
		SenderID: senderID,
		Text:     text,
		SentAt:   at,
		Seq:      ordinal,
		IsRead:   false,
	}

	value, err := json.Marshal(message)
	if err != nil {
		return chat.Message{}, err
	}

	key := messageKey(chatID, ordinal)
	err = m.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(key, value); err != nil {
			return err
		}
		return txn.Set(messageIDKey(id), key)
	})
	if err != nil {
		return chat.Message{}, err
	}
	return message, nil
}

func (m *MessageRepository) ByID(id chat.MessageID) (chat.Message, error) {
	var message chat.Message
	err := m.db.View(func(txn *badger.Txn) error {
		found, err := m.lookup(txn, id)
		if err != nil {
			return err
		}
		message = found
		return nil
	})
	return message, err
}

// MarkRead flips IsRead to true. The transition is one-way: flipping an
// already-read message reports changed=false and leaves the row untouched.
func (m *MessageRepository) MarkRead(id chat.MessageID) (chat.Message, bool, error) {
	var message chat.Message
	var changed bool
	err := m.db.Update(func(txn *badger.Txn) error {
		found, err := m.lookup(txn, id)
		if err != nil {
			return err
		}
		if found.IsRead {
			message = found
			changed = false
			return nil
		}
		found.IsRead = true
		value, err := json.Marshal(found)
		if err != nil {
			return err
		}
		if err := txn.Set(messageKey(found.ChatID, found.Seq), value); err != nil {
			return err
		}
		message = found
		changed = true
		return nil
	})
	if err != nil {
		return chat.Message{}, false, err
	}
	return message, changed, nil
}

// History pages backwards through a chat, newest first. Thanks to the
// padded sequence in the key, a reverse prefix scan is already sorted.
// The returned cursor resumes before the oldest message of the page.
func (m *MessageRepository) History(chatID chat.ChatID, cursor *string, limit int) ([]chat.Message, *string, error) {
	var messages []chat.Message
	var lastKey string

	err := m.db.View(func(txn *badger.Txn) error {
		prefixStr := fmt.Sprintf("msg:%d:", chatID)
		prefix := []byte(prefixStr)

		options := badger.DefaultIteratorOptions
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()

		var seekKey []byte
		switch cursor {
		case nil:
			// Seek past the newest possible sequence, then walk back.
			seekKey = append(append([]byte{}, prefix...), []byte("999999999999")...)
		default:
			seekKey = append(append([]byte{}, prefix...), []byte(*cursor)...)
		}

		it.Seek(seekKey)
		if cursor != nil && it.ValidForPrefix(prefix) {
			it.Next()
		}

		for ; it.ValidForPrefix(prefix); it.Next() {
			if limit > 0 && len(messages) == limit {
				m.log.Debug(fmt.Sprintf("History page of %d messages reached for chat %d", limit, chatID))
				break
			}
			item := it.Item()
			lastKey = string(item.Key()[len(prefixStr):])
			err := item.Value(func(value []byte) error {
				var message chat.Message
				if err := json.Unmarshal(value, &message); err != nil {
					return err
				}
				messages = append(messages, message)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	if len(messages) == 0 {
		return nil, nil, nil
	}
	return messages, &lastKey, nil
}

// LastMessage returns the newest message of a chat, or nil for an empty
// chat.
func (m *MessageRepository) LastMessage(chatID chat.ChatID) (*chat.Message, error) {
	messages, _, err := m.History(chatID, nil, 1)
	if err != nil || len(messages) == 0 {
		return nil, err
	}
	return &messages[0], nil
}

func (m *MessageRepository) lookup(txn *badger.Txn, id chat.MessageID) (chat.Message, error) {
	item, err := txn.Get(messageIDKey(id))
	if err == badger.ErrKeyNotFound {
		return chat.Message{}, errors.ErrMessageNotFound
	}
	if err != nil {
		return chat.Message{}, err
	}

	var primary []byte
	if err := item.Value(func(val []byte) error {
		primary = append([]byte{}, val...)
		return nil
	}); err != nil {
		return chat.Message{}, err
	}

	item, err = txn.Get(primary)
	if err == badger.ErrKeyNotFound {
		return chat.Message{}, errors.ErrMessageNotFound
	}
	if err != nil {
		return chat.Message{}, err
	}

	var message chat.Message
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &message)
	})
	return message, err
}

func messageKey(chatID chat.ChatID, seq uint64) []byte {
	return []byte(fmt.Sprintf("msg:%d:%012d", chatID, seq))
}

func messageIDKey(id chat.MessageID) []byte {
	return []byte(fmt.Sprintf("msgid:%012d", id))
}
