package telegram_bot

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"momoguard/internal/models"
)

// maxFileSize caps photo downloads; the Bot API serves files up to 20 MB.
const maxFileSize = 20 << 20

// APICallTimeout bounds every Bot API method except long polling.
const APICallTimeout = 10 * time.Second

// UpdateHandler receives the updates the bot cares about.
type UpdateHandler interface {
	HandleImage(ctx context.Context, event models.ImageEvent) error
	HandleMembership(ctx context.Context, event models.MembershipEvent) error
}

// Bot wraps the Telegram Bot API for moderation.
type Bot struct {
	api          *tgbotapi.BotAPI
	httpClient   *http.Client
	fileEndpoint string
	pollTimeout  int
	logger       *zap.Logger
	wg           sync.WaitGroup
}

// NewBot creates a new Telegram bot instance
func NewBot(token string, pollTimeout int, logger *zap.Logger) (*Bot, error) {
	if strings.TrimSpace(token) == "" {
		return nil, fmt.Errorf("telegram bot token is empty")
	}
	httpClient := &http.Client{Timeout: time.Duration(pollTimeout+30) * time.Second}
	return NewBotWithEndpoint(strings.TrimSpace(token), tgbotapi.APIEndpoint, tgbotapi.FileEndpoint, httpClient, APICallTimeout, pollTimeout, logger)
}

// NewBotWithEndpoint creates a bot that talks to a custom Bot API server.
// Both endpoints are format strings taking the token and the method or file path.
// httpClient serves long polling and file downloads; every other method runs
// on a copy of it limited to callTimeout.
func NewBotWithEndpoint(token, apiEndpoint, fileEndpoint string, httpClient *http.Client, callTimeout time.Duration, pollTimeout int, logger *zap.Logger) (*Bot, error) {
	callClient := *httpClient
	callClient.Timeout = callTimeout
	botAPI, err := tgbotapi.NewBotAPIWithClient(token, apiEndpoint, apiClient{poll: httpClient, call: &callClient})
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot API: %w", err)
	}

	logger.Info("Telegram bot authorized",
		zap.String("username", botAPI.Self.UserName),
		zap.Int64("bot_id", botAPI.Self.ID),
	)

	return &Bot{
		api:          botAPI,
		httpClient:   httpClient,
		fileEndpoint: fileEndpoint,
		pollTimeout:  pollTimeout,
		logger:       logger,
	}, nil
}

// ID returns the bot's own user id.
func (b *Bot) ID() int64 {
	return b.api.Self.ID
}

// Username returns the bot's username without the leading '@'.
func (b *Bot) Username() string {
	return b.api.Self.UserName
}

// GetChatMember queries the capabilities of userID in chatID.
func (b *Bot) GetChatMember(ctx context.Context, chatID, userID int64) (models.MemberSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return models.MemberSnapshot{}, err
	}
	member, err := b.api.GetChatMember(tgbotapi.GetChatMemberConfig{
		ChatConfigWithUser: tgbotapi.ChatConfigWithUser{
			ChatID: chatID,
			UserID: userID,
		},
	})
	if err != nil {
		return models.MemberSnapshot{}, fmt.Errorf("get chat member: %w", err)
	}
	return snapshotFromMember(member), nil
}

// DownloadFile fetches the content of a file by its file id.
func (b *Bot) DownloadFile(ctx context.Context, fileID string) ([]byte, error) {
	if strings.TrimSpace(fileID) == "" {
		return nil, fmt.Errorf("file id is required")
	}

	tgFile, err := b.api.GetFile(tgbotapi.FileConfig{FileID: fileID})
	if err != nil {
		return nil, fmt.Errorf("get telegram file: %w", err)
	}
	if tgFile.FileSize > maxFileSize {
		return nil, fmt.Errorf("telegram file too large: %d bytes", tgFile.FileSize)
	}

	fileURL := fmt.Sprintf(b.fileEndpoint, b.api.Token, tgFile.FilePath)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create file request: %w", err)
	}

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download telegram file: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected telegram file status: %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("read telegram file: %w", err)
	}
	if len(data) > maxFileSize {
		return nil, fmt.Errorf("telegram file exceeds %d bytes", maxFileSize)
	}
	return data, nil
}

// RestrictMember applies perms to userID in chatID until the given time.
func (b *Bot) RestrictMember(ctx context.Context, chatID, userID int64, perms models.ChatPermissions, until time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	restrictConfig := tgbotapi.RestrictChatMemberConfig{
		ChatMemberConfig: tgbotapi.ChatMemberConfig{
			ChatID: chatID,
			UserID: userID,
		},
		UntilDate:   until.Unix(),
		Permissions: telegramPermissions(perms),
	}
	if _, err := b.api.Request(restrictConfig); err != nil {
		return fmt.Errorf("restrict chat member: %w", err)
	}
	return nil
}

// Reply sends text to chatID as a reply to message replyTo.
func (b *Bot) Reply(ctx context.Context, chatID int64, replyTo int, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyToMessageID = replyTo
	return b.send(ctx, msg)
}

// Send sends text to chatID.
func (b *Bot) Send(ctx context.Context, chatID int64, text string) error {
	return b.send(ctx, tgbotapi.NewMessage(chatID, text))
}

func (b *Bot) send(ctx context.Context, msg tgbotapi.MessageConfig) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := b.api.Send(msg); err != nil {
		return fmt.Errorf("send telegram message: %w", err)
	}
	return nil
}

// apiClient routes getUpdates to the long-polling client and every other Bot
// API method to the short-timeout client.
type apiClient struct {
	poll *http.Client
	call *http.Client
}

func (c apiClient) Do(req *http.Request) (*http.Response, error) {
	if strings.HasSuffix(req.URL.Path, "/getUpdates") {
		return c.poll.Do(req)
	}
	return c.call.Do(req)
}

// snapshotFromMember maps a Bot API chat member to a capability snapshot. The
// chat owner holds every right, including restricting members.
func snapshotFromMember(member tgbotapi.ChatMember) models.MemberSnapshot {
	return models.MemberSnapshot{
		CanRestrictMembers: member.IsCreator() || (member.IsAdministrator() && member.CanRestrictMembers),
		IsOwner:            member.IsCreator(),
		IsAdministrator:    member.IsAdministrator(),
	}
}

func telegramPermissions(perms models.ChatPermissions) *tgbotapi.ChatPermissions {
	return &tgbotapi.ChatPermissions{
		CanSendMessages:       perms.CanSendMessages,
		CanSendMediaMessages:  perms.CanSendMediaMessages,
		CanSendPolls:          perms.CanSendPolls,
		CanSendOtherMessages:  perms.CanSendOtherMessages,
		CanAddWebPagePreviews: perms.CanAddWebPagePreviews,
		CanChangeInfo:         perms.CanChangeInfo,
		CanInviteUsers:        perms.CanInviteUsers,
		CanPinMessages:        perms.CanPinMessages,
	}
}
