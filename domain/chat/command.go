package chat

// Commands carried by the hub protocol. The user identity is resolved once
// at connection time and attached by the transport, never read from an
// ambient context.

type JoinChatCommand struct {
	UserID UserID
	ChatID ChatID
}

type SendMessageCommand struct {
	UserID UserID
	ChatID ChatID
	Text   string
}

type MarkAsReadCommand struct {
	UserID    UserID
	MessageID MessageID
}

// HistoryQuery pages backwards through a chat, newest first. A nil cursor
// starts from the latest message; the returned cursor resumes before the
// oldest message of the page.
type HistoryQuery struct {
	UserID UserID
	ChatID ChatID
	Cursor *string
	Limit  int
}
