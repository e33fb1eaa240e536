//go:generate go run go.uber.org/mock/mockgen -source=user.go -destination=../mocks/mock_user_repository.go -package=mocks
package repositories

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"

	"quick-chat/domain/chat"
	"quick-chat/errors"
)

type IUserRepository interface {
	Create(username, name, avatarURL, passwordHash string) (chat.User, error)
	ByID(id chat.UserID) (chat.User, error)
	ByUsername(username string) (chat.User, error)
	ProfileOf(id chat.UserID) (chat.Profile, error)
	SetPresence(id chat.UserID, online bool, at time.Time) error
	All() ([]chat.User, error)
}

// UserRepository persists accounts in BadgerDB. The primary key is
// "user:{id_padded}"; a "username:{username}" index enforces uniqueness and
// serves login lookups.
type UserRepository struct {
	db    *badger.DB
	idSeq *badger.Sequence
}

func NewUserRepository(db *badger.DB) (*UserRepository, error) {
	idSeq, err := db.GetSequence([]byte("seq:user-id"), 16)
	if err != nil {
		return nil, fmt.Errorf("user id sequence: %w", err)
	}
	return &UserRepository{db: db, idSeq: idSeq}, nil
}

func (u *UserRepository) Close() error {
	return u.idSeq.Release()
}

// Create persists a new account. The username index is checked and written
// in the same transaction, so two concurrent registrations of the same
// username cannot both succeed.
func (u *UserRepository) Create(username, name, avatarURL, passwordHash string) (chat.User, error) {
	next, err := u.idSeq.Next()
	if err != nil {
		return chat.User{}, err
	}

	user := chat.User{
		ID:           chat.UserID(next + 1),
		Username:     username,
		Name:         name,
		AvatarURL:    avatarURL,
		PasswordHash: passwordHash,
		IsOnline:     false,
		LastOnline:   time.Now().UTC(),
	}

	value, err := json.Marshal(user)
	if err != nil {
		return chat.User{}, err
	}

	err = u.db.Update(func(txn *badger.Txn) error {
		indexKey := usernameKey(username)
		if _, err := txn.Get(indexKey); err == nil {
			return errors.ErrUsernameTaken
		} else if err != badger.ErrKeyNotFound {
			return err
		}
		if err := txn.Set(indexKey, userIDValue(user.ID)); err != nil {
			return err
		}
		return txn.Set(userKey(user.ID), value)
	})
	if err != nil {
		return chat.User{}, err
	}
	return user, nil
}

func (u *UserRepository) ByID(id chat.UserID) (chat.User, error) {
	var user chat.User
	err := u.db.View(func(txn *badger.Txn) error {
		found, err := getUser(txn, id)
		if err != nil {
			return err
		}
		user = found
		return nil
	})
	return user, err
}

func (u *UserRepository) ByUsername(username string) (chat.User, error) {
	var user chat.User
	err := u.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(usernameKey(username))
		if err == badger.ErrKeyNotFound {
			return errors.ErrUserNotFound
		}
		if err != nil {
			return err
		}
		var id chat.UserID
		if err := item.Value(func(val []byte) error {
			_, err := fmt.Sscanf(string(val), "%d", &id)
			return err
		}); err != nil {
			return err
		}
		found, err := getUser(txn, id)
		if err != nil {
			return err
		}
		user = found
		return nil
	})
	return user, err
}

func (u *UserRepository) ProfileOf(id chat.UserID) (chat.Profile, error) {
	user, err := u.ByID(id)
	if err != nil {
		return chat.Profile{}, err
	}
	return user.Profile(), nil
}

// SetPresence stamps the online flag and last-online time. Called only by
// the presence tracker, on zero-crossings of the live connection count.
func (u *UserRepository) SetPresence(id chat.UserID, online bool, at time.Time) error {
	return u.db.Update(func(txn *badger.Txn) error {
		user, err := getUser(txn, id)
		if err != nil {
			return err
		}
		user.IsOnline = online
		user.LastOnline = at
		value, err := json.Marshal(user)
		if err != nil {
			return err
		}
		return txn.Set(userKey(id), value)
	})
}

// All scans every account, used by the directory fallback and to rebuild
// the search index at boot.
func (u *UserRepository) All() ([]chat.User, error) {
	var users []chat.User
	err := u.db.View(func(txn *badger.Txn) error {
		prefix := []byte("user:")
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var user chat.User
				if err := json.Unmarshal(val, &user); err != nil {
					return err
				}
				users = append(users, user)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	return users, err
}

func getUser(txn *badger.Txn, id chat.UserID) (chat.User, error) {
	item, err := txn.Get(userKey(id))
	if err == badger.ErrKeyNotFound {
		return chat.User{}, errors.ErrUserNotFound
	}
	if err != nil {
		return chat.User{}, err
	}
	var user chat.User
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &user)
	})
	return user, err
}

func userKey(id chat.UserID) []byte {
	return []byte(fmt.Sprintf("user:%012d", id))
}

func usernameKey(username string) []byte {
	return []byte("username:" + username)
}

func userIDValue(id chat.UserID) []byte {
	return []byte(fmt.Sprintf("%d", id))
}
