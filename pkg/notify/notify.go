package notify

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/telebot.v3"
)

// Message is a publish announcement for a class.
type Message struct {
	ClassName string `json:"className"`
	Title     string `json:"title"`
	Body      string `json:"body"`
}

// Notifier delivers messages to downstream consumers.
type Notifier interface {
	Notify(ctx context.Context, msg Message) error
}

// LogNotifier writes messages to the application log.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier builds a LogNotifier.
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogNotifier{logger: logger}
}

// Notify logs the message.
func (n *LogNotifier) Notify(ctx context.Context, msg Message) error {
	n.logger.Info("timetable notification",
		zap.String("class", msg.ClassName),
		zap.String("title", msg.Title),
		zap.String("body", msg.Body),
	)
	return nil
}

// sender is the part of *telebot.Bot used for delivery.
type sender interface {
	Send(to telebot.Recipient, what interface{}, opts ...interface{}) (*telebot.Message, error)
}

// TelegramNotifier posts messages to a Telegram chat.
type TelegramNotifier struct {
	bot    sender
	chatID int64
}

// NewTelegramNotifier builds a notifier with a bot that skips the startup getMe call.
func NewTelegramNotifier(token string, chatID int64) (*TelegramNotifier, error) {
	if token == "" {
		return nil, fmt.Errorf("telegram token is required")
	}
	if chatID == 0 {
		return nil, fmt.Errorf("telegram chat id is required")
	}
	bot, err := telebot.NewBot(telebot.Settings{Token: token, Offline: true})
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	return &TelegramNotifier{bot: bot, chatID: chatID}, nil
}

// Notify sends the message as plain text.
func (n *TelegramNotifier) Notify(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	text := strings.TrimSpace(msg.Title + "\n\n" + msg.Body)
	if _, err := n.bot.Send(&telebot.Chat{ID: n.chatID}, text, &telebot.SendOptions{DisableWebPagePreview: true}); err != nil {
		return fmt.Errorf("send telegram message for %s: %w", msg.ClassName, err)
	}
	return nil
}

// PublishedMessage renders the announcement sent when a class timetable is published.
func PublishedMessage(className string, lessons int) Message {
	body := fmt.Sprintf("The timetable for %s has been published with %d lessons.", className, lessons)
	if lessons == 0 {
		body = fmt.Sprintf("The timetable for %s has been published. No lessons are scheduled yet.", className)
	}
	return Message{
		ClassName: className,
		Title:     "Timetable published: " + className,
		Body:      body,
	}
}
