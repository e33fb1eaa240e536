package workers

import (
	"context"
	"log/slog"

	"quick-chat/repositories"
	"quick-chat/search"
)

// IndexerWorker rebuilds the user directory index from the store, then
// finishes. The index is derived state: rebuilding at boot recovers from a
// lost or stale index directory.
type IndexerWorker struct {
	log   *slog.Logger
	users repositories.IUserRepository
	index *search.UserIndex
}

func NewIndexerWorker(log *slog.Logger, users repositories.IUserRepository, index *search.UserIndex) *IndexerWorker {
	return &IndexerWorker{log: log, users: users, index: index}
}

func (w *IndexerWorker) Run(ctx context.Context) error {
	users, err := w.users.All()
	if err != nil {
		return err
	}
	if err := w.index.Rebuild(users); err != nil {
		return err
	}
	w.log.Info("Directory index rebuilt", "users", len(users))
	return nil
}
