package bot

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"sync"
)

type BotIdentity struct {
	DeviceID    string `json:"device_id"`
	UserID      string `json:"user_id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	Difficulty  string `json:"difficulty"` // "easy", "medium", "hard"
	AvatarIndex int    `json:"avatar_index"`
}

// Pool is the set of bot identities available to rooms. It is safe for concurrent use.
type Pool struct {
	mu         sync.RWMutex
	identities []BotIdentity
	byID       map[string]BotIdentity
}

// NewPool builds a pool from identities. Entries without a UserID are skipped.
func NewPool(identities []BotIdentity) *Pool {
	p := &Pool{byID: make(map[string]BotIdentity)}
	for _, identity := range identities {
		p.add(identity)
	}
	return p
}

// LoadIdentities loads the bot profiles from the given path.
func LoadIdentities(path string) (*Pool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read bot identities: %w", err)
	}
	var identities []BotIdentity
	if err := json.Unmarshal(data, &identities); err != nil {
		return nil, fmt.Errorf("failed to unmarshal bot identities: %w", err)
	}
	return NewPool(identities), nil
}

func (p *Pool) add(identity BotIdentity) {
	if identity.UserID == "" {
		return
	}
	if _, ok := p.byID[identity.UserID]; !ok {
		p.identities = append(p.identities, identity)
	}
	p.byID[identity.UserID] = identity
}

// Replace swaps in an identity whose UserID was assigned after loading
// (for example once a device account has been provisioned).
func (p *Pool) Replace(old, updated BotIdentity) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if old.UserID != "" && old.UserID != updated.UserID {
		delete(p.byID, old.UserID)
		for i, identity := range p.identities {
			if identity.UserID == old.UserID {
				p.identities = append(p.identities[:i:i], p.identities[i+1:]...)
				break
			}
		}
	}
	p.add(updated)
}

// All returns a copy of every identity in load order.
func (p *Pool) All() []BotIdentity {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]BotIdentity(nil), p.identities...)
}

// Get returns the identity for a bot user id.
func (p *Pool) Get(userID string) (BotIdentity, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	identity, ok := p.byID[userID]
	return identity, ok
}

// IsBot reports whether the given user ID belongs to the bot pool.
func (p *Pool) IsBot(userID string) bool {
	_, ok := p.Get(userID)
	return ok
}

// Pick returns a random identity whose UserID is not in exclude.
// When the pool is exhausted a synthetic identity is generated.
func (p *Pool) Pick(rng *rand.Rand, exclude map[string]bool) BotIdentity {
	p.mu.RLock()
	var free []BotIdentity
	for _, identity := range p.identities {
		if !exclude[identity.UserID] {
			free = append(free, identity)
		}
	}
	p.mu.RUnlock()

	if len(free) > 0 {
		return free[rng.Intn(len(free))]
	}
	for i := 1; ; i++ {
		id := fmt.Sprintf("bot-%d", i)
		if !exclude[id] {
			return BotIdentity{
				UserID:      id,
				Username:    id,
				DisplayName: fmt.Sprintf("AI Player %d", i),
				Difficulty:  "medium",
			}
		}
	}
}

// Name returns the display name, falling back to the username.
func (b BotIdentity) Name() string {
	if b.DisplayName != "" {
		return b.DisplayName
	}
	return b.Username
}
