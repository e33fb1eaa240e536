// Package search maintains the Bluge index behind the user directory.
package search

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/blugelabs/bluge"

	"quick-chat/domain/chat"
)

// UserIndex indexes usernames and display names. It is updated on
// registration and rebuilt from the user repository at boot, so the Badger
// store stays the single source of truth.
type UserIndex struct {
	log    *slog.Logger
	writer *bluge.Writer
}

func NewUserIndex(log *slog.Logger, writer *bluge.Writer) *UserIndex {
	return &UserIndex{log: log, writer: writer}
}

func (i *UserIndex) Index(user chat.User) error {
	doc := userDocument(user)
	return i.writer.Update(doc.ID(), doc)
}

// Rebuild reindexes every account in one batch.
func (i *UserIndex) Rebuild(users []chat.User) error {
	batch := bluge.NewBatch()
	for _, user := range users {
		doc := userDocument(user)
		batch.Update(doc.ID(), doc)
	}
	if err := i.writer.Batch(batch); err != nil {
		return fmt.Errorf("user index rebuild: %w", err)
	}
	i.log.Debug(fmt.Sprintf("%d users reindexed", len(users)))
	return nil
}

// Search matches the term against usernames and names, by prefix and by
// full token, and returns matching user ids ranked by score.
func (i *UserIndex) Search(ctx context.Context, term string, limit int) ([]chat.UserID, error) {
	reader, err := i.writer.Reader()
	if err != nil {
		return nil, err
	}
	defer func() { _ = reader.Close() }()

	query := bluge.NewBooleanQuery().AddShould(
		bluge.NewPrefixQuery(term).SetField("username"),
		bluge.NewPrefixQuery(term).SetField("name"),
		bluge.NewMatchQuery(term).SetField("name"),
	)

	iterator, err := reader.Search(ctx, bluge.NewTopNSearch(limit, query))
	if err != nil {
		return nil, err
	}

	var ids []chat.UserID
	match, err := iterator.Next()
	for err == nil && match != nil {
		visitErr := match.VisitStoredFields(func(field string, value []byte) bool {
			if field == "_id" {
				if id, parseErr := strconv.ParseInt(string(value), 10, 64); parseErr == nil {
					ids = append(ids, chat.UserID(id))
				}
			}
			return true
		})
		if visitErr != nil {
			return nil, visitErr
		}
		match, err = iterator.Next()
	}
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func userDocument(user chat.User) *bluge.Document {
	return bluge.NewDocument(strconv.FormatInt(int64(user.ID), 10)).
		AddField(bluge.NewTextField("username", user.Username).StoreValue()).
		AddField(bluge.NewTextField("name", user.Name).StoreValue())
}
