package telegram_bot

import (
	"fmt"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"mimicbot/internal/trainer"
)

// editResponder surfaces a long-running operation through a single
// placeholder message edited in place, so progress updates do not flood
// the chat.
type editResponder struct {
	api    *tgbotapi.BotAPI
	logger *zap.Logger
	chatID int64

	mu        sync.Mutex
	messageID int
}

// newEditResponder sends the placeholder message and returns a responder
// whose replies overwrite it.
func (b *Bot) newEditResponder(invoker *tgbotapi.Message, placeholder string) *editResponder {
	r := &editResponder{
		api:    b.api,
		logger: b.logger,
		chatID: invoker.Chat.ID,
	}

	msg := tgbotapi.NewMessage(r.chatID, placeholder)
	msg.ReplyToMessageID = invoker.MessageID
	sent, err := r.api.Send(msg)
	if err != nil {
		r.logger.Error("Failed to send placeholder message", zap.Int64("chat_id", r.chatID), zap.Error(err))
		return r
	}
	r.messageID = sent.MessageID
	return r
}

func (r *editResponder) reply(text string) {
	r.mu.Lock()
	messageID := r.messageID
	r.mu.Unlock()

	if messageID == 0 {
		// The placeholder never made it out; fall back to a fresh message.
		msg := tgbotapi.NewMessage(r.chatID, text)
		sent, err := r.api.Send(msg)
		if err != nil {
			r.logger.Error("Failed to send message", zap.Int64("chat_id", r.chatID), zap.Error(err))
			return
		}
		r.mu.Lock()
		r.messageID = sent.MessageID
		r.mu.Unlock()
		return
	}

	edit := tgbotapi.NewEditMessageText(r.chatID, messageID, text)
	if _, err := r.api.Send(edit); err != nil {
		r.logger.Error("Failed to edit progress message",
			zap.Int64("chat_id", r.chatID),
			zap.Int("message_id", messageID),
			zap.Error(err))
	}
}

// progressSink renders training progress into the responder's message.
type progressSink struct {
	responder *editResponder
}

func (s progressSink) Update(state trainer.ProgressState) {
	s.responder.reply(formatProgress(state))
}

func formatProgress(state trainer.ProgressState) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Parsing past messages: %.2f%% of current channel", state.PercentComplete)
	if state.ETAText != "" {
		fmt.Fprintf(&sb, ", %s", state.ETAText)
	}
	fmt.Fprintf(&sb, "\nLearned %d messages so far", state.MessagesCount)
	if state.CurrentChannel != "" {
		fmt.Fprintf(&sb, " (currently reading %s)", state.CurrentChannel)
	}
	if len(state.CompletedChannels) > 0 {
		fmt.Fprintf(&sb, "\nFinished channels: %s", strings.Join(state.CompletedChannels, ", "))
	}
	return sb.String()
}
