package message_processor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"momoguard/internal/detector"
	"momoguard/internal/locales"
	"momoguard/internal/models"
)

// ErrDownload is returned when the photo could not be retrieved.
var ErrDownload = errors.New("file download failed")

const (
	lookupTimeout   = 10 * time.Second
	downloadTimeout = 30 * time.Second
	restrictTimeout = 10 * time.Second
	sendTimeout     = 10 * time.Second
)

var actionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "momoguard_moderation_actions_total",
	Help: "Moderation actions taken after a positive detection.",
}, []string{"action"})

// Platform is the messaging service the processor acts through.
type Platform interface {
	DownloadFile(ctx context.Context, fileID string) ([]byte, error)
	RestrictMember(ctx context.Context, chatID, userID int64, perms models.ChatPermissions, until time.Time) error
	Reply(ctx context.Context, chatID int64, replyTo int, text string) error
	Send(ctx context.Context, chatID int64, text string) error
}

// PermissionCache answers and records admin facts.
type PermissionCache interface {
	IsBotAdmin(ctx context.Context, chatID int64) (bool, error)
	IsUserAdmin(ctx context.Context, userID, chatID int64) (bool, error)
	SetBotAdmin(chatID int64, isAdmin bool)
	SetUserAdmin(chatID, userID int64, isAdmin bool)
}

// ScreenshotDetector classifies a decoded image.
type ScreenshotDetector interface {
	Detect(img image.Image) (bool, error)
}

// Translator resolves a message key for a locale.
type Translator interface {
	T(locale, key string) string
}

// EventRecorder persists moderation events.
type EventRecorder interface {
	SaveEvent(event *models.ModerationEvent) error
}

// Options tunes the processor.
type Options struct {
	BanDuration time.Duration
	// OCRErrorsNonFatal drops images whose OCR pass failed instead of
	// reporting the failure to the caller.
	OCRErrorsNonFatal bool
	Now               func() time.Time
}

// Processor handles inbound photos and membership changes.
type Processor struct {
	platform   Platform
	perms      PermissionCache
	detector   ScreenshotDetector
	translator Translator
	recorder   EventRecorder
	logger     *zap.Logger
	opts       Options
}

// NewProcessor creates a new message processor. recorder may be nil.
func NewProcessor(
	platform Platform,
	perms PermissionCache,
	screenshots ScreenshotDetector,
	translator Translator,
	recorder EventRecorder,
	logger *zap.Logger,
	opts Options,
) *Processor {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Processor{
		platform:   platform,
		perms:      perms,
		detector:   screenshots,
		translator: translator,
		recorder:   recorder,
		logger:     logger,
		opts:       opts,
	}
}

// HandleImage runs the detection pipeline for one photo message.
func (p *Processor) HandleImage(ctx context.Context, event models.ImageEvent) error {
	if len(event.Photos) == 0 {
		return nil
	}
	logger := p.logger.With(zap.Int64("chat_id", event.ChatID), zap.Int("message_id", event.MessageID))

	if event.SenderID != nil {
		lookupCtx, cancel := context.WithTimeout(ctx, lookupTimeout)
		isAdmin, err := p.perms.IsUserAdmin(lookupCtx, *event.SenderID, event.ChatID)
		cancel()
		if err != nil {
			return fmt.Errorf("failed to check sender admin status: %w", err)
		}
		if isAdmin {
			logger.Debug("Sender is admin, skipping photo", zap.Int64("user_id", *event.SenderID))
			return nil
		}
	}

	photo := smallestPhoto(event.Photos)
	downloadCtx, cancel := context.WithTimeout(ctx, downloadTimeout)
	data, err := p.platform.DownloadFile(downloadCtx, photo.FileID)
	cancel()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDownload, err)
	}

	img, err := detector.DecodeImage(bytes.NewReader(data))
	if err != nil {
		logger.Debug("Attachment is not a decodable image", zap.String("file_id", photo.FileID), zap.Error(err))
		return nil
	}

	isMomo, err := p.detector.Detect(img)
	if err != nil {
		if errors.Is(err, detector.ErrOCREngine) && p.opts.OCRErrorsNonFatal {
			logger.Warn("OCR confirmation failed, dropping photo", zap.Error(err))
			return nil
		}
		return fmt.Errorf("failed to run screenshot detector: %w", err)
	}
	if !isMomo {
		return nil
	}
	logger.Info("Momo screenshot detected")

	lookupCtx, cancel := context.WithTimeout(ctx, lookupTimeout)
	botAdmin, err := p.perms.IsBotAdmin(lookupCtx, event.ChatID)
	cancel()
	if err != nil {
		p.reply(ctx, event, locales.KeyMomoFound)
		return fmt.Errorf("failed to check bot admin status: %w", err)
	}

	if !botAdmin {
		logger.Info("Bot cannot restrict members, notifying only")
		p.reply(ctx, event, locales.KeyMomoFound)
		p.record(event, models.ActionNotified, nil)
		return nil
	}

	if event.SenderID == nil {
		logger.Warn("Momo sender is unknown, cannot restrict")
		p.reply(ctx, event, locales.KeyRestrictFailed)
		p.record(event, models.ActionRestrictUnavailable, nil)
		return nil
	}

	until := p.opts.Now().Add(p.opts.BanDuration)
	restrictCtx, cancel := context.WithTimeout(ctx, restrictTimeout)
	err = p.platform.RestrictMember(restrictCtx, event.ChatID, *event.SenderID, models.NoPermissions(), until)
	cancel()
	if err != nil {
		return fmt.Errorf("failed to restrict user %d: %w", *event.SenderID, err)
	}
	logger.Info("Sender restricted", zap.Int64("user_id", *event.SenderID), zap.Time("until", until))
	p.reply(ctx, event, locales.KeyRestrict)
	p.record(event, models.ActionRestricted, &until)
	return nil
}

// HandleMembership applies a membership change to the permission cache.
func (p *Processor) HandleMembership(ctx context.Context, event models.MembershipEvent) error {
	if event.IsBot {
		if event.Old.CanRestrictMembers == event.New.CanRestrictMembers {
			return nil
		}
		p.perms.SetBotAdmin(event.ChatID, event.New.CanRestrictMembers)
		p.logger.Info("Bot permissions changed",
			zap.Int64("chat_id", event.ChatID),
			zap.Bool("can_restrict_members", event.New.CanRestrictMembers),
		)

		sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
		defer cancel()
		if err := p.platform.Send(sendCtx, event.ChatID, p.translator.T(event.LanguageCode, locales.KeyBotPermUpdate)); err != nil {
			return fmt.Errorf("failed to send permission update notice: %w", err)
		}
		return nil
	}

	if event.Old.IsAdmin() == event.New.IsAdmin() {
		return nil
	}
	p.perms.SetUserAdmin(event.ChatID, event.UserID, event.New.IsAdmin())
	p.logger.Debug("User admin status changed",
		zap.Int64("chat_id", event.ChatID),
		zap.Int64("user_id", event.UserID),
		zap.Bool("is_admin", event.New.IsAdmin()),
	)
	return nil
}

// reply is best effort: a failed notification is logged and dropped.
func (p *Processor) reply(ctx context.Context, event models.ImageEvent, key string) {
	sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()
	text := p.translator.T(event.LanguageCode, key)
	if err := p.platform.Reply(sendCtx, event.ChatID, event.MessageID, text); err != nil {
		p.logger.Error("Failed to send reply", zap.Int64("chat_id", event.ChatID), zap.String("key", key), zap.Error(err))
	}
}

func (p *Processor) record(event models.ImageEvent, action string, until *time.Time) {
	actionsTotal.WithLabelValues(action).Inc()
	if p.recorder == nil {
		return
	}
	entry := &models.ModerationEvent{
		ChatID:    event.ChatID,
		UserID:    event.SenderID,
		MessageID: int64(event.MessageID),
		Action:    action,
		Until:     until,
	}
	if err := p.recorder.SaveEvent(entry); err != nil {
		p.logger.Error("Failed to save moderation event", zap.Int64("chat_id", event.ChatID), zap.String("action", action), zap.Error(err))
	}
}

// smallestPhoto picks the variant with the smallest area.
func smallestPhoto(photos []models.PhotoSize) models.PhotoSize {
	best := photos[0]
	for _, p := range photos[1:] {
		if p.Width*p.Height < best.Width*best.Height {
			best = p
		}
	}
	return best
}
