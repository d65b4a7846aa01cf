package perm_cache

import (
	"context"
	"errors"
	"sync"
	"testing"

	"go.uber.org/zap"

	"momoguard/internal/models"
)

const botID int64 = 777

type memberKey struct {
	chatID int64
	userID int64
}

type fakeFetcher struct {
	mu      sync.Mutex
	members map[memberKey]models.MemberSnapshot
	err     error
	calls   map[memberKey]int
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		members: make(map[memberKey]models.MemberSnapshot),
		calls:   make(map[memberKey]int),
	}
}

func (f *fakeFetcher) GetChatMember(_ context.Context, chatID, userID int64) (models.MemberSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := memberKey{chatID: chatID, userID: userID}
	f.calls[key]++
	if f.err != nil {
		return models.MemberSnapshot{}, f.err
	}
	return f.members[key], nil
}

func (f *fakeFetcher) callCount(chatID, userID int64) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[memberKey{chatID: chatID, userID: userID}]
}

func TestIsBotAdminMissPerformsOneLookup(t *testing.T) {
	tests := []struct {
		name   string
		member models.MemberSnapshot
		want   bool
	}{
		{name: "can restrict", member: models.MemberSnapshot{CanRestrictMembers: true, IsAdministrator: true}, want: true},
		{name: "admin without restrict right", member: models.MemberSnapshot{IsAdministrator: true}, want: false},
		{name: "plain member", member: models.MemberSnapshot{}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fetcher := newFakeFetcher()
			fetcher.members[memberKey{chatID: -100, userID: botID}] = tt.member
			cache := NewPermCache(fetcher, botID, zap.NewNop())

			for i := 0; i < 3; i++ {
				got, err := cache.IsBotAdmin(context.Background(), -100)
				if err != nil {
					t.Fatalf("IsBotAdmin: %v", err)
				}
				if got != tt.want {
					t.Fatalf("IsBotAdmin = %v, want %v", got, tt.want)
				}
			}
			if n := fetcher.callCount(-100, botID); n != 1 {
				t.Fatalf("expected exactly one remote lookup, got %d", n)
			}
		})
	}
}

func TestSetBotAdminSkipsRemoteLookup(t *testing.T) {
	fetcher := newFakeFetcher()
	cache := NewPermCache(fetcher, botID, zap.NewNop())

	for _, v := range []bool{true, false, true} {
		cache.SetBotAdmin(-42, v)
		got, err := cache.IsBotAdmin(context.Background(), -42)
		if err != nil {
			t.Fatalf("IsBotAdmin: %v", err)
		}
		if got != v {
			t.Fatalf("IsBotAdmin after SetBotAdmin(%v) = %v", v, got)
		}
	}
	if n := fetcher.callCount(-42, botID); n != 0 {
		t.Fatalf("expected zero remote lookups, got %d", n)
	}
}

func TestIsUserAdminCachesBothLevels(t *testing.T) {
	fetcher := newFakeFetcher()
	fetcher.members[memberKey{chatID: -1, userID: 10}] = models.MemberSnapshot{IsOwner: true}
	fetcher.members[memberKey{chatID: -1, userID: 11}] = models.MemberSnapshot{IsAdministrator: true}
	fetcher.members[memberKey{chatID: -1, userID: 12}] = models.MemberSnapshot{CanRestrictMembers: true}
	cache := NewPermCache(fetcher, botID, zap.NewNop())

	want := map[int64]bool{10: true, 11: true, 12: false}
	for round := 0; round < 2; round++ {
		for userID, expected := range want {
			got, err := cache.IsUserAdmin(context.Background(), userID, -1)
			if err != nil {
				t.Fatalf("IsUserAdmin(%d): %v", userID, err)
			}
			if got != expected {
				t.Fatalf("IsUserAdmin(%d) = %v, want %v", userID, got, expected)
			}
		}
	}
	for userID := range want {
		if n := fetcher.callCount(-1, userID); n != 1 {
			t.Fatalf("user %d: expected one lookup, got %d", userID, n)
		}
	}

	stats := cache.Stats()
	if stats.UserChats != 1 || stats.UserFacts != 3 || stats.BotChats != 0 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestLookupErrorIsNotCached(t *testing.T) {
	fetcher := newFakeFetcher()
	fetcher.err = errors.New("Bad Request: chat not found")
	cache := NewPermCache(fetcher, botID, zap.NewNop())

	if _, err := cache.IsBotAdmin(context.Background(), -5); !errors.Is(err, ErrRemoteLookup) {
		t.Fatalf("expected ErrRemoteLookup, got %v", err)
	}
	if _, err := cache.IsUserAdmin(context.Background(), 1, -5); !errors.Is(err, ErrRemoteLookup) {
		t.Fatalf("expected ErrRemoteLookup, got %v", err)
	}
	if stats := cache.Stats(); stats.BotChats != 0 || stats.UserFacts != 0 {
		t.Fatalf("failed lookups must not be cached: %+v", stats)
	}

	fetcher.mu.Lock()
	fetcher.err = nil
	fetcher.members[memberKey{chatID: -5, userID: botID}] = models.MemberSnapshot{CanRestrictMembers: true}
	fetcher.mu.Unlock()

	got, err := cache.IsBotAdmin(context.Background(), -5)
	if err != nil || !got {
		t.Fatalf("expected refreshed true, got %v, %v", got, err)
	}
	if n := fetcher.callCount(-5, botID); n != 2 {
		t.Fatalf("expected a second lookup after failure, got %d", n)
	}
}

func TestTablesAreIndependent(t *testing.T) {
	fetcher := newFakeFetcher()
	fetcher.members[memberKey{chatID: -9, userID: 3}] = models.MemberSnapshot{IsAdministrator: true}
	cache := NewPermCache(fetcher, botID, zap.NewNop())

	if _, err := cache.IsUserAdmin(context.Background(), 3, -9); err != nil {
		t.Fatalf("IsUserAdmin: %v", err)
	}
	cache.SetBotAdmin(-9, true)

	if got, _ := cache.IsUserAdmin(context.Background(), 3, -9); !got {
		t.Fatalf("user fact lost after bot table write")
	}
	cache.SetUserAdmin(-9, 3, false)
	if got, _ := cache.IsBotAdmin(context.Background(), -9); !got {
		t.Fatalf("bot fact lost after user table write")
	}
	if got, _ := cache.IsUserAdmin(context.Background(), 3, -9); got {
		t.Fatalf("SetUserAdmin did not overwrite")
	}
	if n := fetcher.callCount(-9, botID); n != 0 {
		t.Fatalf("unexpected bot lookup: %d", n)
	}
}

func TestConcurrentAccess(t *testing.T) {
	fetcher := newFakeFetcher()
	cache := NewPermCache(fetcher, botID, zap.NewNop())

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			chatID := int64(-(i % 5))
			_, _ = cache.IsBotAdmin(context.Background(), chatID)
			_, _ = cache.IsUserAdmin(context.Background(), int64(i), chatID)
			cache.SetBotAdmin(chatID, i%2 == 0)
			cache.SetUserAdmin(chatID, int64(i), i%3 == 0)
		}(i)
	}
	wg.Wait()

	stats := cache.Stats()
	if stats.BotChats != 5 || stats.UserFacts != 50 {
		t.Fatalf("unexpected stats after concurrent access: %+v", stats)
	}
}
