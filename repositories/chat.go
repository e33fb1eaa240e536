//go:generate go run go.uber.org/mock/mockgen -source=chat.go -destination=../mocks/mock_chat_repository.go -package=mocks
package repositories

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/dgraph-io/badger/v4"
	"github.com/samber/lo"

	"quick-chat/domain/chat"
	"quick-chat/errors"
)

// IChatRepository is the membership oracle of the hub: it answers "is user
// U a member of chat C" and "who are the members of chat C".
type IChatRepository interface {
	Create(memberIDs []chat.UserID) (chat.Chat, bool, error)
	ByID(id chat.ChatID) (chat.Chat, error)
	IsMember(userID chat.UserID, chatID chat.ChatID) (bool, error)
	MembersOf(chatID chat.ChatID) ([]chat.UserID, error)
	ChatsOf(userID chat.UserID) ([]chat.Chat, error)
}

// ChatRepository persists chats and the membership relation in BadgerDB.
// Keys:
//
//	chat:{id_padded}                  the chat record
//	member:{chat_padded}:{user_padded} membership, empty value
//	userchat:{user_padded}:{chat_padded} reverse index for ChatsOf
//	direct:{user_padded}:{user_padded} pair identity of a direct chat
//
// Membership is written once at creation and never mutated afterwards.
type ChatRepository struct {
	db    *badger.DB
	idSeq *badger.Sequence
}

func NewChatRepository(db *badger.DB) (*ChatRepository, error) {
	idSeq, err := db.GetSequence([]byte("seq:chat-id"), 16)
	if err != nil {
		return nil, fmt.Errorf("chat id sequence: %w", err)
	}
	return &ChatRepository{db: db, idSeq: idSeq}, nil
}

func (c *ChatRepository) Close() error {
	return c.idSeq.Release()
}

// Create makes a chat out of a distinct member set. A direct chat (two
// members) is deduplicated: creating it again returns the existing chat
// and false. Group chats (three or more) are always created, named "Group
// Chat" like the original client expects.
func (c *ChatRepository) Create(memberIDs []chat.UserID) (chat.Chat, bool, error) {
	members := lo.Uniq(memberIDs)
	if len(members) < 2 {
		return chat.Chat{}, false, errors.ErrTooFewParticipants
	}
	sort.Slice(members, func(i, j int) bool { return members[i] < members[j] })

	isGroup := len(members) > 2
	next, err := c.idSeq.Next()
	if err != nil {
		return chat.Chat{}, false, err
	}

	record := chat.Chat{
		ID:        chat.ChatID(next + 1),
		IsGroup:   isGroup,
		MemberIDs: members,
	}
	if isGroup {
		record.Name = "Group Chat"
	}

	value, err := json.Marshal(record)
	if err != nil {
		return chat.Chat{}, false, err
	}

	var existing chat.Chat
	deduped := false

	// The pair key is read and written inside one transaction, so badger's
	// conflict detection aborts the loser of a racing duplicate create; the
	// retry then finds the winner's chat.
	write := func(txn *badger.Txn) error {
		deduped = false
		if !isGroup {
			pairKey := directKey(members[0], members[1])
			item, err := txn.Get(pairKey)
			if err == nil {
				return item.Value(func(val []byte) error {
					var id chat.ChatID
					if _, err := fmt.Sscanf(string(val), "%d", &id); err != nil {
						return err
					}
					found, err := getChat(txn, id)
					if err != nil {
						return err
					}
					existing = found
					deduped = true
					return nil
				})
			}
			if err != badger.ErrKeyNotFound {
				return err
			}
			if err := txn.Set(pairKey, []byte(fmt.Sprintf("%d", record.ID))); err != nil {
				return err
			}
		}

		if err := txn.Set(chatKey(record.ID), value); err != nil {
			return err
		}
		for _, userID := range members {
			if err := txn.Set(memberKey(record.ID, userID), nil); err != nil {
				return err
			}
			if err := txn.Set(userChatKey(userID, record.ID), nil); err != nil {
				return err
			}
		}
		return nil
	}

	err = c.db.Update(write)
	if err == badger.ErrConflict {
		err = c.db.Update(write)
	}
	if err != nil {
		return chat.Chat{}, false, err
	}
	if deduped {
		return existing, false, nil
	}
	return record, true, nil
}

func (c *ChatRepository) ByID(id chat.ChatID) (chat.Chat, error) {
	var record chat.Chat
	err := c.db.View(func(txn *badger.Txn) error {
		found, err := getChat(txn, id)
		if err != nil {
			return err
		}
		record = found
		return nil
	})
	return record, err
}

// IsMember is a point lookup on the membership key, no record load needed.
func (c *ChatRepository) IsMember(userID chat.UserID, chatID chat.ChatID) (bool, error) {
	var member bool
	err := c.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(memberKey(chatID, userID))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		member = true
		return nil
	})
	return member, err
}

func (c *ChatRepository) MembersOf(chatID chat.ChatID) ([]chat.UserID, error) {
	record, err := c.ByID(chatID)
	if err != nil {
		return nil, err
	}
	return record.MemberIDs, nil
}

func (c *ChatRepository) ChatsOf(userID chat.UserID) ([]chat.Chat, error) {
	var chatIDs []chat.ChatID
	err := c.db.View(func(txn *badger.Txn) error {
		prefix := []byte(fmt.Sprintf("userchat:%012d:", userID))
		it := txn.NewIterator(badger.IteratorOptions{PrefetchValues: false})
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var id chat.ChatID
			suffix := it.Item().Key()[len(prefix):]
			if _, err := fmt.Sscanf(string(suffix), "%d", &id); err != nil {
				return err
			}
			chatIDs = append(chatIDs, id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	var chats []chat.Chat
	err = c.db.View(func(txn *badger.Txn) error {
		for _, id := range chatIDs {
			record, err := getChat(txn, id)
			if err != nil {
				return err
			}
			chats = append(chats, record)
		}
		return nil
	})
	return chats, err
}

func getChat(txn *badger.Txn, id chat.ChatID) (chat.Chat, error) {
	item, err := txn.Get(chatKey(id))
	if err == badger.ErrKeyNotFound {
		return chat.Chat{}, errors.ErrChatNotFound
	}
	if err != nil {
		return chat.Chat{}, err
	}
	var record chat.Chat
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &record)
	})
	return record, err
}

func chatKey(id chat.ChatID) []byte {
	return []byte(fmt.Sprintf("chat:%012d", id))
}

// directKey is the deterministic identity of a two-member chat; members
// arrive sorted, so the same pair always maps to the same key.
func directKey(a, b chat.UserID) []byte {
	return []byte(fmt.Sprintf("direct:%012d:%012d", a, b))
}

func memberKey(chatID chat.ChatID, userID chat.UserID) []byte {
	return []byte(fmt.Sprintf("member:%012d:%012d", chatID, userID))
}

func userChatKey(userID chat.UserID, chatID chat.ChatID) []byte {
	return []byte(fmt.Sprintf("userchat:%012d:%012d", userID, chatID))
}
