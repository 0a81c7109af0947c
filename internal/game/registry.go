package game

import (
	"fmt"
	"sort"
	"sync"

	"token-economy/internal/config"
)

// Registry manages mini-game registration and lookup by type.
type Registry struct {
	games map[string]Game
	mu    sync.RWMutex
}

// NewRegistry creates a new game registry.
func NewRegistry() *Registry {
	return &Registry{
		games: make(map[string]Game),
	}
}

// NewRegistryFromConfig registers every configured mini-game.
func NewRegistryFromConfig(games []config.MiniGame) (*Registry, error) {
	r := NewRegistry()
	for _, g := range games {
		name := g.Name
		if name == "" {
			name = g.Type
		}
		if err := r.Register(BoundedGame{GameType: g.Type, GameName: name, MaxScore: g.MaxScore}); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds a game to the registry.
// If a game with the same type already exists, it will be replaced.
func (r *Registry) Register(g Game) error {
	if g == nil {
		return fmt.Errorf("cannot register nil game")
	}
	if g.Type() == "" {
		return fmt.Errorf("game type cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.games[g.Type()] = g
	return nil
}

// Get retrieves a game by its type.
func (r *Registry) Get(gameType string) (Game, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, ok := r.games[gameType]
	return g, ok
}

// Validate checks that gameType is registered and score is acceptable for it.
func (r *Registry) Validate(gameType string, score int64) error {
	g, ok := r.Get(gameType)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownGame, gameType)
	}
	return g.ValidateScore(score)
}

// Types returns all registered game types, sorted.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.games))
	for t := range r.games {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// Count returns the number of registered games.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.games)
}
