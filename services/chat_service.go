//go:generate go run go.uber.org/mock/mockgen -source=chat_service.go -destination=../mocks/mock_chat_service.go -package=mocks
package services

import (
	"sort"
	"time"

	"github.com/samber/lo"

	"quick-chat/domain/chat"
	"quick-chat/repositories"
)

// ChatSummary is the directory view of one chat: participants and the
// latest message, enriched with public profiles.
type ChatSummary struct {
	ID           chat.ChatID    `json:"id"`
	Name         string         `json:"name,omitempty"`
	IsGroup      bool           `json:"isGroup"`
	Participants []chat.Profile `json:"participants"`
	LastMessage  *MessageView   `json:"lastMessage,omitempty"`
}

// MessageView pairs a message with its sender's public profile, the shape
// clients render.
type MessageView struct {
	ID     chat.MessageID `json:"id"`
	ChatID chat.ChatID    `json:"chatId"`
	Sender chat.Profile   `json:"sender"`
	Text   string         `json:"text"`
	SentAt time.Time      `json:"sentAt"`
	IsRead bool           `json:"isRead"`
}

type IChatService interface {
	ListChats(userID chat.UserID) ([]ChatSummary, error)
	CreateChat(callerID chat.UserID, participantIDs []chat.UserID) (ChatSummary, error)
}

type ChatService struct {
	chats    repositories.IChatRepository
	messages repositories.IMessageRepository
	users    repositories.IUserRepository
}

func NewChatService(chats repositories.IChatRepository,
	messages repositories.IMessageRepository, users repositories.IUserRepository) *ChatService {
	return &ChatService{chats: chats, messages: messages, users: users}
}

// ListChats returns the caller's chats, newest activity first. Chats
// without any message sort last.
func (s *ChatService) ListChats(userID chat.UserID) ([]ChatSummary, error) {
	records, err := s.chats.ChatsOf(userID)
	if err != nil {
		return nil, err
	}

	summaries := make([]ChatSummary, 0, len(records))
	for _, record := range records {
		summary, err := s.summarize(record)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, summary)
	}

	sort.SliceStable(summaries, func(i, j int) bool {
		return lastActivity(summaries[i]).After(lastActivity(summaries[j]))
	})
	return summaries, nil
}

// CreateChat builds a chat out of the caller plus the given participants.
// Recreating an existing direct chat returns the existing one.
func (s *ChatService) CreateChat(callerID chat.UserID, participantIDs []chat.UserID) (ChatSummary, error) {
	members := lo.Uniq(append(participantIDs, callerID))
	record, _, err := s.chats.Create(members)
	if err != nil {
		return ChatSummary{}, err
	}
	return s.summarize(record)
}

func (s *ChatService) summarize(record chat.Chat) (ChatSummary, error) {
	participants := make([]chat.Profile, 0, len(record.MemberIDs))
	for _, memberID := range record.MemberIDs {
		profile, err := s.users.ProfileOf(memberID)
		if err != nil {
			return ChatSummary{}, err
		}
		participants = append(participants, profile)
	}

	summary := ChatSummary{
		ID:           record.ID,
		Name:         record.Name,
		IsGroup:      record.IsGroup,
		Participants: participants,
	}

	last, err := s.messages.LastMessage(record.ID)
	if err != nil {
		return ChatSummary{}, err
	}
	if last != nil {
		sender, err := s.users.ProfileOf(last.SenderID)
		if err != nil {
			return ChatSummary{}, err
		}
		summary.LastMessage = &MessageView{
			ID:     last.ID,
			ChatID: last.ChatID,
			Sender: sender,
			Text:   last.Text,
			SentAt: last.SentAt,
			IsRead: last.IsRead,
		}
	}
	return summary, nil
}

func lastActivity(summary ChatSummary) time.Time {
	if summary.LastMessage == nil {
		return time.Time{}
	}
	return summary.LastMessage.SentAt
}
