package repositories

import (
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"

	"quick-chat/domain/chat"
	"quick-chat/errors"
)

func openTestDB(t *testing.T) *badger.DB {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func newTestMessageRepository(t *testing.T) *MessageRepository {
	t.Helper()
	repository, err := NewMessageRepository(openTestDB(t), slog.Default())
	require.NoError(t, err)
	t.Cleanup(func() { _ = repository.Close() })
	return repository
}

func Test_Append_Assigns_Increasing_Sequences(t *testing.T) {
	req := require.New(t)
	repository := newTestMessageRepository(t)

	chatID := chat.ChatID(1)
	at := time.Now().UTC()

	var previous uint64
	for i := 0; i < 5; i++ {
		message, err := repository.Append(chatID, 42, fmt.Sprintf("message %d", i), at)
		req.NoError(err)
		req.Greater(message.Seq, previous)
		req.False(message.IsRead)
		previous = message.Seq
	}
}

func Test_Sequences_Are_Independent_Per_Chat(t *testing.T) {
	req := require.New(t)
	repository := newTestMessageRepository(t)

	at := time.Now().UTC()
	first, err := repository.Append(1, 42, "in chat one", at)
	req.NoError(err)
	second, err := repository.Append(2, 42, "in chat two", at)
	req.NoError(err)

	req.Equal(first.Seq, second.Seq)
	req.NotEqual(first.ID, second.ID)
}

func Test_ByID_Returns_Stored_Message(t *testing.T) {
	req := require.New(t)
	repository := newTestMessageRepository(t)

	at := time.Now().UTC().Truncate(time.Millisecond)
	stored, err := repository.Append(7, 42, "hello", at)
	req.NoError(err)

	fetched, err := repository.ByID(stored.ID)
	req.NoError(err)
	req.Equal(stored, fetched)
}

func Test_ByID_Unknown_Message(t *testing.T) {
	req := require.New(t)
	repository := newTestMessageRepository(t)

	_, err := repository.ByID(999)
	req.ErrorIs(err, errors.ErrMessageNotFound)
}

func Test_MarkRead_Is_Idempotent(t *testing.T) {
	req := require.New(t)
	repository := newTestMessageRepository(t)

	stored, err := repository.Append(7, 42, "read me", time.Now().UTC())
	req.NoError(err)

	marked, changed, err := repository.MarkRead(stored.ID)
	req.NoError(err)
	req.True(changed)
	req.True(marked.IsRead)

	// Second call flips nothing.
	marked, changed, err = repository.MarkRead(stored.ID)
	req.NoError(err)
	req.False(changed)
	req.True(marked.IsRead)
}

func Test_History_Pages_Newest_First(t *testing.T) {
	req := require.New(t)
	repository := newTestMessageRepository(t)

	chatID := chat.ChatID(3)
	at := time.Now().UTC()
	for i := 0; i < 5; i++ {
		_, err := repository.Append(chatID, 42, fmt.Sprintf("message %d", i), at)
		req.NoError(err)
	}

	page, cursor, err := repository.History(chatID, nil, 2)
	req.NoError(err)
	req.Len(page, 2)
	req.NotNil(cursor)
	req.Equal("message 4", page[0].Text)
	req.Equal("message 3", page[1].Text)

	page, cursor, err = repository.History(chatID, cursor, 2)
	req.NoError(err)
	req.Len(page, 2)
	req.NotNil(cursor)
	req.Equal("message 2", page[0].Text)
	req.Equal("message 1", page[1].Text)

	page, cursor, err = repository.History(chatID, cursor, 2)
	req.NoError(err)
	req.Len(page, 1)
	req.NotNil(cursor)
	req.Equal("message 0", page[0].Text)

	// Resuming past the oldest message drains to an empty page.
	page, cursor, err = repository.History(chatID, cursor, 2)
	req.NoError(err)
	req.Empty(page)
	req.Nil(cursor)
}

func Test_History_Empty_Chat(t *testing.T) {
	req := require.New(t)
	repository := newTestMessageRepository(t)

	page, cursor, err := repository.History(99, nil, 10)
	req.NoError(err)
	req.Empty(page)
	req.Nil(cursor)
}

func Test_LastMessage(t *testing.T) {
	req := require.New(t)
	repository := newTestMessageRepository(t)

	chatID := chat.ChatID(5)
	last, err := repository.LastMessage(chatID)
	req.NoError(err)
	req.Nil(last)

	at := time.Now().UTC()
	_, err = repository.Append(chatID, 42, "first", at)
	req.NoError(err)
	latest, err := repository.Append(chatID, 43, "second", at.Add(time.Minute))
	req.NoError(err)

	last, err = repository.LastMessage(chatID)
	req.NoError(err)
	req.NotNil(last)
	req.Equal(latest.ID, last.ID)
	req.Equal("second", last.Text)
}
