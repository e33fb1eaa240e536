// Terminal chat client: logs in over HTTP, prints the chat list, then
// attaches to one chat over the websocket and bridges stdin to it.
package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gookit/color"
	"github.com/gorilla/websocket"
	"github.com/kelseyhightower/envconfig"
	"github.com/olekukonko/tablewriter"
)

const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

type Config struct {
	ServerAddr string `envconfig:"CHAT_SERVER_ADDR" default:"localhost:8080"`
	Username   string `envconfig:"CHAT_USERNAME" required:"true"`
	Password   string `envconfig:"CHAT_PASSWORD" required:"true"`
	ChatID     int64  `envconfig:"CHAT_ID"`
	Colours    bool   `envconfig:"CHAT_COLOURS" default:"true"`
}

type profile struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Name     string `json:"name"`
	IsOnline bool   `json:"isOnline"`
}

type session struct {
	Token string  `json:"token"`
	User  profile `json:"user"`
}

type chatSummary struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	IsGroup      bool      `json:"isGroup"`
	Participants []profile `json:"participants"`
	LastMessage  *struct {
		Sender profile   `json:"sender"`
		Text   string    `json:"text"`
		SentAt time.Time `json:"sentAt"`
	} `json:"lastMessage"`
}

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Client error: %v\n", err)
	}
	os.Exit(code)
}

func run() (int, error) {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sess, err := login(config)
	if err != nil {
		return exitRuntime, err
	}
	fmt.Printf("Logged in as %s (#%d)\n", sess.User.Username, sess.User.ID)

	chats, err := listChats(config, sess.Token)
	if err != nil {
		return exitRuntime, err
	}
	printChats(chats)

	chatID := config.ChatID
	if chatID == 0 && len(chats) > 0 {
		chatID = chats[0].ID
	}
	if chatID == 0 {
		fmt.Println("No chat to attach to; set CHAT_ID after creating one.")
		return exitOK, nil
	}

	return attach(ctx, config, sess, chatID)
}

func login(config Config) (session, error) {
	body, _ := json.Marshal(map[string]string{
		"username": config.Username,
		"password": config.Password,
	})
	resp, err := http.Post("http://"+config.ServerAddr+"/api/auth/login", "application/json", bytes.NewReader(body))
	if err != nil {
		return session{}, fmt.Errorf("login failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return session{}, fmt.Errorf("login refused: %s", resp.Status)
	}

	var sess session
	if err := json.NewDecoder(resp.Body).Decode(&sess); err != nil {
		return session{}, err
	}
	return sess, nil
}

func listChats(config Config, token string) ([]chatSummary, error) {
	req, err := http.NewRequest(http.MethodGet, "http://"+config.ServerAddr+"/api/chats", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("chat listing failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	var chats []chatSummary
	if err := json.NewDecoder(resp.Body).Decode(&chats); err != nil {
		return nil, err
	}
	return chats, nil
}

func printChats(chats []chatSummary) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"ID", "Name", "Participants", "Last Message"})
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")

	for _, c := range chats {
		participants := ""
		for i, p := range c.Participants {
			if i > 0 {
				participants += ", "
			}
			participants += p.Name
		}
		last := ""
		if c.LastMessage != nil {
			last = fmt.Sprintf("[%s] %s: %s",
				c.LastMessage.SentAt.Format("15:04:05"),
				c.LastMessage.Sender.Name,
				c.LastMessage.Text)
		}
		table.Append([]string{strconv.FormatInt(c.ID, 10), c.Name, participants, last})
	}
	table.Render()
}

// attach joins the chat over the websocket and runs both pumps: server
// events to the terminal, stdin lines to the chat.
func attach(ctx context.Context, config Config, sess session, chatID int64) (int, error) {
	wsURL := url.URL{
		Scheme:   "ws",
		Host:     config.ServerAddr,
		Path:     "/ws",
		RawQuery: "access_token=" + url.QueryEscape(sess.Token),
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL.String(), nil)
	if err != nil {
		return exitRuntime, fmt.Errorf("could not connect to server at %s: %w", config.ServerAddr, err)
	}
	defer func() { _ = conn.Close() }()

	if err := conn.WriteJSON(map[string]any{"action": "joinChat", "chatId": chatID}); err != nil {
		return exitRuntime, err
	}
	fmt.Printf(">>> Attached to chat %d (Ctrl+C to quit)\n", chatID)

	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	go readStdin(conn, chatID)

	for {
		var frame struct {
			Event string          `json:"event"`
			Data  json.RawMessage `json:"data"`
		}
		if err := conn.ReadJSON(&frame); err != nil {
			if ctx.Err() != nil {
				return exitOK, nil
			}
			return exitRuntime, fmt.Errorf("connection lost: %w", err)
		}
		render(config, frame.Event, frame.Data)
	}
}

func readStdin(conn *websocket.Conn, chatID int64) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		text := scanner.Text()
		if text == "" {
			continue
		}
		if err := conn.WriteJSON(map[string]any{
			"action": "sendMessage",
			"chatId": chatID,
			"text":   text,
		}); err != nil {
			return
		}
	}
}

func render(config Config, eventName string, data json.RawMessage) {
	switch eventName {
	case "ReceiveMessage":
		var msg struct {
			Sender profile   `json:"sender"`
			Text   string    `json:"text"`
			SentAt time.Time `json:"sentAt"`
		}
		if err := json.Unmarshal(data, &msg); err != nil {
			return
		}
		line := fmt.Sprintf("[%s] %s: %s", msg.SentAt.Format("15:04:05"), msg.Sender.Name, msg.Text)
		if config.Colours {
			line = color.New(color.FgGreen).Render(line)
		}
		fmt.Println(line)
	case "MessageRead":
		fmt.Printf("  (message %s read)\n", string(data))
	case "UserStatusChanged":
		var user profile
		if err := json.Unmarshal(data, &user); err != nil {
			return
		}
		status := "offline"
		if user.IsOnline {
			status = "online"
		}
		line := fmt.Sprintf("  * %s is now %s", user.Name, status)
		if config.Colours {
			line = color.New(color.FgYellow).Render(line)
		}
		fmt.Println(line)
	case "Error":
		fmt.Printf("  ! server error: %s\n", string(data))
	}
}
