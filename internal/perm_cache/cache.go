// Package perm_cache memoizes "is the bot an admin" and "is this user an admin"
// facts per chat. Entries never expire; they are corrected only by explicit
// overwrites driven by membership-change updates.
package perm_cache

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"momoguard/internal/models"
)

// ErrRemoteLookup is returned when the membership query behind a cache miss fails.
var ErrRemoteLookup = errors.New("remote membership lookup failed")

const (
	tableBot  = "bot_admin"
	tableUser = "user_admin"
)

var (
	cacheHitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "momoguard_perm_cache_hits_total",
		Help: "Permission cache hits.",
	}, []string{"table"})
	cacheMissesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "momoguard_perm_cache_misses_total",
		Help: "Permission cache misses, each followed by one remote lookup.",
	}, []string{"table"})
	lookupErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "momoguard_perm_cache_lookup_errors_total",
		Help: "Failed remote membership lookups.",
	}, []string{"table"})
)

// MemberFetcher performs the remote membership query.
type MemberFetcher interface {
	GetChatMember(ctx context.Context, chatID, userID int64) (models.MemberSnapshot, error)
}

// PermCache holds two independent tables, each behind its own RWMutex.
type PermCache struct {
	fetcher MemberFetcher
	botID   int64
	logger  *zap.Logger

	botMu    sync.RWMutex
	botAdmin map[int64]bool

	userMu    sync.RWMutex
	userAdmin map[int64]map[int64]bool
}

// Stats describes the current size of the cache.
type Stats struct {
	BotChats  int `json:"bot_chats"`
	UserChats int `json:"user_chats"`
	UserFacts int `json:"user_facts"`
}

// NewPermCache creates an empty cache that resolves misses through fetcher,
// using botID as the bot's own identity.
func NewPermCache(fetcher MemberFetcher, botID int64, logger *zap.Logger) *PermCache {
	return &PermCache{
		fetcher:   fetcher,
		botID:     botID,
		logger:    logger,
		botAdmin:  make(map[int64]bool),
		userAdmin: make(map[int64]map[int64]bool),
	}
}

// IsBotAdmin reports whether the bot can restrict members in chatID.
func (c *PermCache) IsBotAdmin(ctx context.Context, chatID int64) (bool, error) {
	c.botMu.RLock()
	perm, ok := c.botAdmin[chatID]
	c.botMu.RUnlock()
	if ok {
		cacheHitsTotal.WithLabelValues(tableBot).Inc()
		return perm, nil
	}
	cacheMissesTotal.WithLabelValues(tableBot).Inc()
	return c.updateBotAdmin(ctx, chatID)
}

// SetBotAdmin overwrites the cached fact for chatID.
func (c *PermCache) SetBotAdmin(chatID int64, isAdmin bool) {
	c.botMu.Lock()
	c.botAdmin[chatID] = isAdmin
	c.botMu.Unlock()
}

func (c *PermCache) updateBotAdmin(ctx context.Context, chatID int64) (bool, error) {
	member, err := c.fetcher.GetChatMember(ctx, chatID, c.botID)
	if err != nil {
		lookupErrorsTotal.WithLabelValues(tableBot).Inc()
		return false, fmt.Errorf("%w: bot in chat %d: %w", ErrRemoteLookup, chatID, err)
	}
	perm := member.CanRestrictMembers

	c.botMu.Lock()
	c.botAdmin[chatID] = perm
	c.botMu.Unlock()

	c.logger.Debug("Bot admin status refreshed", zap.Int64("chat_id", chatID), zap.Bool("is_admin", perm))
	return perm, nil
}

// IsUserAdmin reports whether userID is the owner or an administrator of chatID.
func (c *PermCache) IsUserAdmin(ctx context.Context, userID, chatID int64) (bool, error) {
	c.userMu.RLock()
	perm, ok := c.userAdmin[chatID][userID]
	c.userMu.RUnlock()
	if ok {
		cacheHitsTotal.WithLabelValues(tableUser).Inc()
		return perm, nil
	}
	cacheMissesTotal.WithLabelValues(tableUser).Inc()
	return c.updateUserAdmin(ctx, userID, chatID)
}

// SetUserAdmin overwrites the cached fact for userID in chatID.
func (c *PermCache) SetUserAdmin(chatID, userID int64, isAdmin bool) {
	c.userMu.Lock()
	c.storeUserAdmin(chatID, userID, isAdmin)
	c.userMu.Unlock()
}

func (c *PermCache) updateUserAdmin(ctx context.Context, userID, chatID int64) (bool, error) {
	member, err := c.fetcher.GetChatMember(ctx, chatID, userID)
	if err != nil {
		lookupErrorsTotal.WithLabelValues(tableUser).Inc()
		return false, fmt.Errorf("%w: user %d in chat %d: %w", ErrRemoteLookup, userID, chatID, err)
	}
	perm := member.IsAdmin()

	c.userMu.Lock()
	c.storeUserAdmin(chatID, userID, perm)
	c.userMu.Unlock()

	c.logger.Debug("User admin status refreshed",
		zap.Int64("user_id", userID),
		zap.Int64("chat_id", chatID),
		zap.Bool("is_admin", perm),
	)
	return perm, nil
}

// storeUserAdmin must be called with userMu held for writing.
func (c *PermCache) storeUserAdmin(chatID, userID int64, isAdmin bool) {
	users, ok := c.userAdmin[chatID]
	if !ok {
		users = make(map[int64]bool)
		c.userAdmin[chatID] = users
	}
	users[userID] = isAdmin
}

// Stats returns the number of cached entries per table.
func (c *PermCache) Stats() Stats {
	var s Stats

	c.botMu.RLock()
	s.BotChats = len(c.botAdmin)
	c.botMu.RUnlock()

	c.userMu.RLock()
	s.UserChats = len(c.userAdmin)
	for _, users := range c.userAdmin {
		s.UserFacts += len(users)
	}
	c.userMu.RUnlock()

	return s
}
