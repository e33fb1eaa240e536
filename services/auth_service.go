//go:generate go run go.uber.org/mock/mockgen -source=auth_service.go -destination=../mocks/mock_auth_service.go -package=mocks
package services

import (
	"fmt"
	"log/slog"

	"quick-chat/auth"
	"quick-chat/domain/chat"
	"quick-chat/errors"
	"quick-chat/repositories"
	"quick-chat/search"
)

const defaultAvatarURL = "default-avatar.png"

type IAuthService interface {
	Register(username, name, password string) (Token, chat.Profile, error)
	Login(username, password string) (Token, chat.Profile, error)
}

type Token string

type AuthService struct {
	log    *slog.Logger
	users  repositories.IUserRepository
	tokens *auth.TokenManager
	index  *search.UserIndex
}

func NewAuthService(log *slog.Logger, users repositories.IUserRepository,
	tokens *auth.TokenManager, index *search.UserIndex) *AuthService {
	return &AuthService{log: log, users: users, tokens: tokens, index: index}
}

// Register validates the input, hashes the password, persists the account
// and issues the first session token. Hashing happens in the service layer
// to keep the repository unaware of plain passwords.
func (s *AuthService) Register(username, name, password string) (Token, chat.Profile, error) {
	req := auth.RegisterRequest{Username: username, Name: name, Password: password}
	if err := auth.ValidateRegister(req); err != nil {
		return "", chat.Profile{}, fmt.Errorf("%w: %v", errors.ErrInvalidPassword, err)
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return "", chat.Profile{}, fmt.Errorf("hashing failed: %w", err)
	}

	user, err := s.users.Create(username, name, defaultAvatarURL, hash)
	if err != nil {
		return "", chat.Profile{}, err
	}

	// The directory index is derived state: a failed index write must not
	// fail the registration.
	if s.index != nil {
		if err := s.index.Index(user); err != nil {
			s.log.Warn("User indexing failed", "user_id", user.ID, "error", err)
		}
	}

	token, err := s.tokens.Generate(user.ID, user.Username)
	if err != nil {
		return "", chat.Profile{}, errors.ErrTokenGeneration
	}
	return Token(token), user.Profile(), nil
}

// Login verifies the credentials and issues a session token. Lookup and
// comparison failures collapse into one generic error to prevent user
// enumeration.
func (s *AuthService) Login(username, password string) (Token, chat.Profile, error) {
	user, err := s.users.ByUsername(username)
	if err != nil {
		return "", chat.Profile{}, errors.ErrInvalidCredentials
	}

	if !auth.ComparePassword(password, user.PasswordHash) {
		return "", chat.Profile{}, errors.ErrInvalidCredentials
	}

	token, err := s.tokens.Generate(user.ID, user.Username)
	if err != nil {
		return "", chat.Profile{}, errors.ErrTokenGeneration
	}
	return Token(token), user.Profile(), nil
}
