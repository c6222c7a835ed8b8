package telegram_bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"mimicbot/internal/collector_client"
	"mimicbot/internal/config"
	"mimicbot/internal/generator"
	"mimicbot/internal/listen"
	"mimicbot/internal/repository"
	"mimicbot/internal/service"
	"mimicbot/internal/trainer"
)

const invalidPermissionsMessage = "You do not have the permissions for this action."

// Bot is the live chat surface: it ingests eligible messages into the
// model, answers prefix commands and responds when mentioned.
type Bot struct {
	api         *tgbotapi.BotAPI
	cfg         *config.Config
	ingest      *service.IngestService
	manager     *trainer.Manager
	coordinator *generator.Coordinator
	gate        *listen.Gate
	communities repository.CommunityRepository
	logger      *zap.Logger

	baseCtx context.Context
}

// NewBot creates a new bot instance. Returns (nil, nil) when no token is
// configured; the rest of the service runs without a live surface.
func NewBot(cfg *config.Config, ingest *service.IngestService, manager *trainer.Manager, coordinator *generator.Coordinator, gate *listen.Gate, communities repository.CommunityRepository, logger *zap.Logger) (*Bot, error) {
	if cfg.Bot.Token == "" {
		logger.Info("Telegram bot is disabled (bot.token is empty)")
		return nil, nil
	}

	botAPI, err := tgbotapi.NewBotAPI(cfg.Bot.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot API: %w", err)
	}

	logger.Info("Telegram bot authorized", zap.String("username", botAPI.Self.UserName))

	return &Bot{
		api:         botAPI,
		cfg:         cfg,
		ingest:      ingest,
		manager:     manager,
		coordinator: coordinator,
		gate:        gate,
		communities: communities,
		logger:      logger,
	}, nil
}

// Start begins listening for updates until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) error {
	if b == nil {
		return nil // Bot is disabled
	}
	b.baseCtx = ctx

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)

	b.logger.Info("Telegram bot started, waiting for updates...")

	for {
		select {
		case <-ctx.Done():
			b.logger.Info("Telegram bot shutting down...")
			b.api.StopReceivingUpdates()
			return nil
		case update := <-updates:
			if update.Message != nil {
				b.handleMessage(ctx, update.Message)
			} else if update.EditedMessage != nil {
				b.handleEditedMessage(ctx, update.EditedMessage)
			}
		}
	}
}

type command string

const (
	cmdNone    command = ""
	cmdRespond command = "respond"
	cmdTrain   command = "train"
	cmdHelp    command = "help"
	cmdDebug   command = "debug"
	cmdTTS     command = "tts"
	cmdListen  command = "listen"
	cmdSeed    command = "seed"
)

// parseCommand checks whether the message text is a prefix command. The
// bare prefix means "respond".
func (b *Bot) parseCommand(text string) (command, []string) {
	lower := strings.ToLower(text)
	prefix := strings.ToLower(b.cfg.Bot.CommandPrefix)
	if !strings.HasPrefix(lower, prefix) {
		return cmdNone, nil
	}

	fields := strings.Fields(lower)
	if len(fields) == 0 || fields[0] != prefix {
		return cmdNone, nil
	}
	if len(fields) == 1 {
		return cmdRespond, nil
	}

	switch fields[1] {
	case "train":
		return cmdTrain, nil
	case "help":
		return cmdHelp, nil
	case "debug":
		return cmdDebug, nil
	case "tts":
		return cmdTTS, nil
	case "listen":
		return cmdListen, fields[2:]
	case "seed":
		// Seed words keep their original casing.
		raw := strings.Fields(text)
		return cmdSeed, raw[2:]
	}
	return cmdNone, nil
}

func (b *Bot) handleMessage(ctx context.Context, message *tgbotapi.Message) {
	if message.Chat == nil || message.Chat.IsPrivate() {
		return
	}
	communityID := strconv.FormatInt(message.Chat.ID, 10)

	// Communities are created on first contact.
	if err := b.communities.UpsertCommunity(communityID); err != nil {
		b.logger.Error("Failed to upsert community", zap.String("community_id", communityID), zap.Error(err))
		return
	}

	cmd, args := b.parseCommand(message.Text)
	if cmd != cmdNone {
		b.logger.Info("Received message command",
			zap.String("command", string(cmd)),
			zap.String("community_id", communityID))
	}

	switch cmd {
	case cmdHelp:
		b.reply(message, b.helpText())
	case cmdTrain:
		b.handleTrain(message, communityID)
	case cmdListen:
		b.handleListen(message, communityID, args)
	case cmdRespond:
		b.respond(ctx, message, communityID, generator.Options{})
	case cmdDebug:
		b.respond(ctx, message, communityID, generator.Options{Debug: true})
	case cmdTTS:
		b.respond(ctx, message, communityID, generator.Options{TTS: true})
	case cmdSeed:
		b.respond(ctx, message, communityID, generator.Options{StartSeed: strings.Join(args, " ")})
	case cmdNone:
		b.listenTo(ctx, message, communityID)
	}
}

// listenTo ingests a non-command live message and answers when mentioned.
func (b *Bot) listenTo(ctx context.Context, message *tgbotapi.Message, communityID string) {
	gmsg := b.toGatewayMessage(message)
	if err := b.ingest.HandleMessageCreated(ctx, communityID, gmsg, ""); err != nil {
		b.logger.Error("Failed to ingest live message",
			zap.String("community_id", communityID),
			zap.String("message_id", gmsg.ID),
			zap.Error(err))
	}

	if b.isMentioned(message) {
		b.respond(ctx, message, communityID, generator.Options{})
	}
}

func (b *Bot) handleEditedMessage(ctx context.Context, message *tgbotapi.Message) {
	if message.Chat == nil || message.Chat.IsPrivate() {
		return
	}
	communityID := strconv.FormatInt(message.Chat.ID, 10)
	gmsg := b.toGatewayMessage(message)

	b.logger.Debug("Re-learning edited message",
		zap.String("community_id", communityID),
		zap.String("message_id", gmsg.ID))

	if err := b.ingest.HandleMessageEdited(ctx, communityID, gmsg, ""); err != nil {
		b.logger.Error("Failed to re-learn edited message",
			zap.String("community_id", communityID),
			zap.String("message_id", gmsg.ID),
			zap.Error(err))
	}
}

// respond generates a response and sends it, with the optional debug dump
// as a separate follow-up message.
func (b *Bot) respond(ctx context.Context, message *tgbotapi.Message, communityID string, opts generator.Options) {
	release, ok := b.manager.TryAcquire(communityID)
	if !ok {
		b.reply(message, "I'm busy training right now. Try again in a bit.")
		return
	}
	result := b.coordinator.Generate(ctx, communityID, opts)
	release()

	if result.Err != "" {
		b.reply(message, result.Err)
		return
	}

	if result.AttachmentURL != "" {
		b.sendAttachment(message.Chat.ID, result.AttachmentURL, result.Text)
	} else {
		b.reply(message, result.Text)
	}

	if result.Debug != "" {
		b.reply(message, "```\n"+result.Debug+"\n```")
	}
}

// handleTrain starts a training run and surfaces its progress by editing
// one placeholder message in place.
func (b *Bot) handleTrain(message *tgbotapi.Message, communityID string) {
	if !b.isModerator(message) {
		b.reply(message, invalidPermissionsMessage)
		return
	}

	responder := b.newEditResponder(message, "Parsing past messages. This may take a while.")

	run, err := b.manager.Start(b.baseCtx, communityID, progressSink{responder: responder})
	if err != nil {
		responder.reply(err.Error())
		return
	}

	go func() {
		summary, runErr := run.Summary()
		if runErr != nil {
			responder.reply("Training failed: " + runErr.Error())
			return
		}
		responder.reply(summary)
	}()
}

func (b *Bot) handleListen(message *tgbotapi.Message, communityID string, args []string) {
	channelID := strconv.FormatInt(message.Chat.ID, 10)

	sub := "list"
	if len(args) > 0 {
		sub = args[0]
	}

	switch sub {
	case "on", "off":
		if !b.isModerator(message) {
			b.reply(message, invalidPermissionsMessage)
			return
		}
		listening := sub == "on"
		if err := b.gate.SetListening(communityID, channelID, listening); err != nil {
			b.logger.Error("Failed to set listen state", zap.String("channel_id", channelID), zap.Error(err))
			b.reply(message, "Failed to update the listen state.")
			return
		}
		if listening {
			b.reply(message, "Now listening to this chat. Use the train command to learn from its past messages.")
		} else {
			b.reply(message, "Stopped listening to this chat. Use the train command to forget its past messages.")
		}
	case "list":
		channels, err := b.gate.ListeningChannels(communityID)
		if err != nil {
			b.logger.Error("Failed to list listening channels", zap.String("community_id", communityID), zap.Error(err))
			b.reply(message, "Failed to list listened channels.")
			return
		}
		var sb strings.Builder
		fmt.Fprintf(&sb, "Currently listening and learning from %d channel(s).", len(channels))
		for _, ch := range channels {
			fmt.Fprintf(&sb, "\n • %s", ch.ID)
		}
		b.reply(message, sb.String())
	default:
		b.reply(message, "Usage: "+b.cfg.Bot.CommandPrefix+" listen [on|off|list]")
	}
}

func (b *Bot) helpText() string {
	p := b.cfg.Bot.CommandPrefix
	return "A markov chain chatbot that speaks based on previous chat input.\n\n" +
		p + " — generates a sentence from the chat model\n" +
		p + " seed <words> — generates a sentence starting from the given words\n" +
		p + " train — relearns from this community's past messages (takes a while)\n" +
		p + " listen [on|off|list] — controls which chats are learned from\n" +
		p + " debug — generates a sentence and follows up with debug info\n" +
		p + " tts — generates a sentence flagged for text-to-speech\n" +
		p + " help — this message"
}

// isModerator reports whether the sender is a configured owner or a chat
// administrator.
func (b *Bot) isModerator(message *tgbotapi.Message) bool {
	if message.From == nil {
		return false
	}
	for _, id := range b.cfg.Bot.OwnerIDs {
		if message.From.ID == id {
			return true
		}
	}

	member, err := b.api.GetChatMember(tgbotapi.GetChatMemberConfig{
		ChatConfigWithUser: tgbotapi.ChatConfigWithUser{
			ChatID: message.Chat.ID,
			UserID: message.From.ID,
		},
	})
	if err != nil {
		b.logger.Error("Failed to look up chat member", zap.Error(err))
		return false
	}
	return member.IsCreator() || member.IsAdministrator()
}

func (b *Bot) isMentioned(message *tgbotapi.Message) bool {
	if b.api.Self.UserName == "" {
		return false
	}
	return strings.Contains(message.Text, "@"+b.api.Self.UserName)
}

// toGatewayMessage maps a live Telegram message onto the collector's
// message shape so one classifier serves both live and historical input.
func (b *Bot) toGatewayMessage(m *tgbotapi.Message) collector_client.Message {
	msg := collector_client.Message{
		ID:        strconv.Itoa(m.MessageID),
		ChannelID: strconv.FormatInt(m.Chat.ID, 10),
		Text:      m.Text,
		CreatedAt: time.Unix(int64(m.Date), 0),
	}
	if msg.Text == "" {
		msg.Text = m.Caption
	}
	if m.From != nil {
		msg.AuthorIsBot = m.From.IsBot
	} else {
		msg.AuthorIsSystem = true
	}
	if m.NewChatMembers != nil || m.LeftChatMember != nil || m.PinnedMessage != nil {
		msg.AuthorIsSystem = true
	}

	if len(m.Photo) > 0 {
		// The last photo size is the largest.
		msg.AttachmentURLs = append(msg.AttachmentURLs, m.Photo[len(m.Photo)-1].FileID)
	}
	if m.Document != nil {
		msg.AttachmentURLs = append(msg.AttachmentURLs, m.Document.FileID)
	}
	if m.Animation != nil {
		msg.AttachmentURLs = append(msg.AttachmentURLs, m.Animation.FileID)
	}
	if m.Video != nil {
		msg.AttachmentURLs = append(msg.AttachmentURLs, m.Video.FileID)
	}
	return msg
}

// reply sends a plain text message into the invoking chat.
func (b *Bot) reply(message *tgbotapi.Message, text string) {
	msg := tgbotapi.NewMessage(message.Chat.ID, text)
	msg.ReplyToMessageID = message.MessageID
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Error("Failed to send message", zap.Int64("chat_id", message.Chat.ID), zap.Error(err))
	}
}

// sendAttachment sends the generated text together with its attachment.
// Attachment values are either URLs (from historical records) or Telegram
// file ids (from live ingestion).
func (b *Bot) sendAttachment(chatID int64, attachment, caption string) {
	var file tgbotapi.RequestFileData
	if strings.HasPrefix(attachment, "http://") || strings.HasPrefix(attachment, "https://") {
		file = tgbotapi.FileURL(attachment)
	} else {
		file = tgbotapi.FileID(attachment)
	}
	photo := tgbotapi.NewPhoto(chatID, file)
	photo.Caption = caption
	if _, err := b.api.Send(photo); err != nil {
		b.logger.Error("Failed to send attachment, falling back to text",
			zap.Int64("chat_id", chatID), zap.Error(err))
		msg := tgbotapi.NewMessage(chatID, caption)
		if _, err := b.api.Send(msg); err != nil {
			b.logger.Error("Failed to send message", zap.Int64("chat_id", chatID), zap.Error(err))
		}
	}
}
