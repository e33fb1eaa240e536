//go:generate go run go.uber.org/mock/mockgen -source=directory_service.go -destination=../mocks/mock_directory_service.go -package=mocks
package services

import (
	"context"
	"sort"
	"strings"

	"quick-chat/domain/chat"
	"quick-chat/repositories"
	"quick-chat/search"
)

type IDirectoryService interface {
	Search(ctx context.Context, callerID chat.UserID, term string, limit int) ([]chat.Profile, error)
}

// DirectoryService serves the user directory. Non-empty terms go through
// the Bluge index; an empty term lists everyone. The caller is always
// excluded from results.
type DirectoryService struct {
	users repositories.IUserRepository
	index *search.UserIndex
}

func NewDirectoryService(users repositories.IUserRepository, index *search.UserIndex) *DirectoryService {
	return &DirectoryService{users: users, index: index}
}

func (s *DirectoryService) Search(ctx context.Context, callerID chat.UserID, term string, limit int) ([]chat.Profile, error) {
	term = strings.TrimSpace(term)
	if term == "" || s.index == nil {
		return s.scan(callerID, term, limit)
	}

	ids, err := s.index.Search(ctx, strings.ToLower(term), limit+1)
	if err != nil {
		return nil, err
	}

	profiles := make([]chat.Profile, 0, len(ids))
	for _, id := range ids {
		if id == callerID {
			continue
		}
		profile, err := s.users.ProfileOf(id)
		if err != nil {
			// Index entries may outlive accounts; skip dangling hits.
			continue
		}
		profiles = append(profiles, profile)
		if len(profiles) == limit {
			break
		}
	}
	return profiles, nil
}

// scan is the index-free path: full repository scan with substring match,
// ordered by display name like the directory listing.
func (s *DirectoryService) scan(callerID chat.UserID, term string, limit int) ([]chat.Profile, error) {
	users, err := s.users.All()
	if err != nil {
		return nil, err
	}

	lowered := strings.ToLower(term)
	var profiles []chat.Profile
	for _, user := range users {
		if user.ID == callerID {
			continue
		}
		if lowered != "" &&
			!strings.Contains(strings.ToLower(user.Name), lowered) &&
			!strings.Contains(strings.ToLower(user.Username), lowered) {
			continue
		}
		profiles = append(profiles, user.Profile())
	}

	sort.Slice(profiles, func(i, j int) bool { return profiles[i].Name < profiles[j].Name })
	if limit > 0 && len(profiles) > limit {
		profiles = profiles[:limit]
	}
	return profiles, nil
}
