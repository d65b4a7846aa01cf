package telegram_bot

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"momoguard/internal/locales"
	"momoguard/internal/models"
)

// Start begins listening for updates from Telegram. Each update is handled in
// its own goroutine; Start returns after ctx is cancelled and in-flight
// handlers have finished.
func (b *Bot) Start(ctx context.Context, handler UpdateHandler) error {
	if b == nil {
		return nil // Bot is disabled
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = b.pollTimeout
	u.AllowedUpdates = []string{"message", "my_chat_member", "chat_member"}

	updates := b.api.GetUpdatesChan(u)

	b.logger.Info("Telegram bot started, waiting for updates...")

	for {
		select {
		case <-ctx.Done():
			b.logger.Info("Telegram bot shutting down...")
			b.api.StopReceivingUpdates()
			b.wg.Wait()
			return nil
		case update, ok := <-updates:
			if !ok {
				b.wg.Wait()
				return nil
			}
			b.wg.Add(1)
			go func() {
				defer b.wg.Done()
				b.dispatch(ctx, handler, update)
			}()
		}
	}
}

func (b *Bot) dispatch(ctx context.Context, handler UpdateHandler, update tgbotapi.Update) {
	switch {
	case update.MyChatMember != nil:
		event := b.membershipEvent(update.MyChatMember)
		if err := handler.HandleMembership(ctx, event); err != nil {
			b.logger.Error("Failed to handle bot membership update", zap.Int64("chat_id", event.ChatID), zap.Error(err))
		}
	case update.ChatMember != nil:
		event := b.membershipEvent(update.ChatMember)
		if err := handler.HandleMembership(ctx, event); err != nil {
			b.logger.Error("Failed to handle member update", zap.Int64("chat_id", event.ChatID), zap.Int64("user_id", event.UserID), zap.Error(err))
		}
	case update.Message != nil:
		msg := update.Message
		if msg.IsCommand() {
			b.handleCommand(ctx, msg)
			return
		}
		if len(msg.Photo) == 0 {
			return
		}
		b.logger.Debug("Message contains photo",
			zap.Int64("chat_id", msg.Chat.ID),
			zap.String("chat_title", msg.Chat.Title),
			zap.Int("variants", len(msg.Photo)),
		)
		if err := handler.HandleImage(ctx, imageEvent(msg)); err != nil {
			b.logger.Error("Failed to handle photo", zap.Int64("chat_id", msg.Chat.ID), zap.Int("message_id", msg.MessageID), zap.Error(err))
		}
	}
}

func (b *Bot) membershipEvent(upd *tgbotapi.ChatMemberUpdated) models.MembershipEvent {
	event := models.MembershipEvent{
		ChatID:       upd.Chat.ID,
		LanguageCode: upd.From.LanguageCode,
		Old:          snapshotFromMember(upd.OldChatMember),
		New:          snapshotFromMember(upd.NewChatMember),
	}
	if upd.NewChatMember.User != nil {
		event.UserID = upd.NewChatMember.User.ID
	}
	event.IsBot = event.UserID == b.api.Self.ID
	return event
}

// imageEvent converts a photo message. Messages sent on behalf of a chat carry
// no restrictable sender.
func imageEvent(msg *tgbotapi.Message) models.ImageEvent {
	event := models.ImageEvent{
		ChatID:    msg.Chat.ID,
		ChatTitle: msg.Chat.Title,
		MessageID: msg.MessageID,
		Photos:    make([]models.PhotoSize, 0, len(msg.Photo)),
	}
	if msg.From != nil {
		event.LanguageCode = msg.From.LanguageCode
		if msg.SenderChat == nil {
			id := msg.From.ID
			event.SenderID = &id
		}
	}
	for _, p := range msg.Photo {
		event.Photos = append(event.Photos, models.PhotoSize{
			FileID:       p.FileID,
			FileUniqueID: p.FileUniqueID,
			Width:        p.Width,
			Height:       p.Height,
			FileSize:     p.FileSize,
		})
	}
	return event
}

func (b *Bot) handleCommand(ctx context.Context, message *tgbotapi.Message) {
	locale := ""
	if message.From != nil {
		locale = message.From.LanguageCode
	}

	switch message.Command() {
	case "start":
		b.handleStartCommand(ctx, message, locale)
	case "help":
		if err := b.Send(ctx, message.Chat.ID, locales.T(locale, locales.KeyHelp)); err != nil {
			b.logger.Error("Failed to send help", zap.Int64("chat_id", message.Chat.ID), zap.Error(err))
		}
	default:
		if message.Chat.IsPrivate() {
			if err := b.Send(ctx, message.Chat.ID, locales.T(locale, locales.KeyUnknownCommand)); err != nil {
				b.logger.Error("Failed to send message", zap.Int64("chat_id", message.Chat.ID), zap.Error(err))
			}
		}
	}
}

// handleStartCommand replies with the welcome text and an "add to group"
// button that pre-selects the restrict right.
func (b *Bot) handleStartCommand(ctx context.Context, message *tgbotapi.Message, locale string) {
	msg := tgbotapi.NewMessage(message.Chat.ID, locales.T(locale, locales.KeyWelcome))
	msg.ReplyToMessageID = message.MessageID
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true
	if b.Username() != "" {
		msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
			tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonURL(locales.T(locale, locales.KeySetMeAsAdmin), addToGroupURL(b.Username())),
			),
		)
	}
	if err := b.send(ctx, msg); err != nil {
		b.logger.Error("Failed to send welcome", zap.Int64("chat_id", message.Chat.ID), zap.Error(err))
	}
}

func addToGroupURL(username string) string {
	return fmt.Sprintf("https://t.me/%s?startgroup=start&admin=can_restrict_members", username)
}
