package keypool

import (
	"fmt"
	"math/rand/v2"

	"halcyon-hq/callisto/pkg/storage"
)

// StrategyType names a built-in selection strategy.
type StrategyType string

const (
	// StrategyPriority picks the credential with the lowest priority value.
	StrategyPriority StrategyType = "priority"
	// StrategyRoundRobin picks the credential used longest ago.
	StrategyRoundRobin StrategyType = "round-robin"
	// StrategyLeastUsed picks the credential with the fewest recorded uses.
	StrategyLeastUsed StrategyType = "least-used"
	// StrategyRandom picks uniformly among active credentials.
	StrategyRandom StrategyType = "random"
)

// Strategy selects exactly one credential from a non-empty active set.
type Strategy interface {
	// Select picks one credential. The slice is never empty.
	Select(candidates []*storage.Credential) *storage.Credential

	// Name returns the strategy name.
	Name() string
}

// NewStrategy constructs a built-in strategy by type.
func NewStrategy(t StrategyType) (Strategy, error) {
	switch t {
	case StrategyPriority, "":
		return &PriorityStrategy{}, nil
	case StrategyRoundRobin:
		return &RoundRobinStrategy{}, nil
	case StrategyLeastUsed:
		return &LeastUsedStrategy{}, nil
	case StrategyRandom:
		return &RandomStrategy{}, nil
	default:
		return nil, fmt.Errorf("keypool: unknown strategy %q", t)
	}
}

// PriorityStrategy selects the credential with the minimum priority value.
// Ties are broken by newest creation time, so a freshly added credential at
// the same priority takes over from older ones.
type PriorityStrategy struct{}

// Select implements Strategy.
func (s *PriorityStrategy) Select(candidates []*storage.Credential) *storage.Credential {
	best := candidates[0]
	for _, cred := range candidates[1:] {
		if cred.Priority < best.Priority {
			best = cred
			continue
		}
		if cred.Priority == best.Priority && cred.CreatedAt.After(best.CreatedAt) {
			best = cred
		}
	}
	return best
}

// Name returns the strategy name.
func (s *PriorityStrategy) Name() string { return string(StrategyPriority) }

// RoundRobinStrategy selects the credential with the oldest (or zero)
// last-used time, cycling through the pool as usage is recorded.
// Ties are broken by lower priority value.
type RoundRobinStrategy struct{}

// Select implements Strategy.
func (s *RoundRobinStrategy) Select(candidates []*storage.Credential) *storage.Credential {
	best := candidates[0]
	for _, cred := range candidates[1:] {
		switch {
		case olderUse(cred, best):
			best = cred
		case cred.LastUsedAt.Equal(best.LastUsedAt) && cred.Priority < best.Priority:
			best = cred
		}
	}
	return best
}

// olderUse reports whether a's last use predates b's, treating a zero
// last-used time (never used) as the oldest possible.
func olderUse(a, b *storage.Credential) bool {
	if a.LastUsedAt.IsZero() {
		return !b.LastUsedAt.IsZero()
	}
	if b.LastUsedAt.IsZero() {
		return false
	}
	return a.LastUsedAt.Before(b.LastUsedAt)
}

// Name returns the strategy name.
func (s *RoundRobinStrategy) Name() string { return string(StrategyRoundRobin) }

// LeastUsedStrategy selects the credential with the lowest usage count.
// Ties are broken by lower priority value.
type LeastUsedStrategy struct{}

// Select implements Strategy.
func (s *LeastUsedStrategy) Select(candidates []*storage.Credential) *storage.Credential {
	best := candidates[0]
	for _, cred := range candidates[1:] {
		if cred.UsageCount < best.UsageCount {
			best = cred
			continue
		}
		if cred.UsageCount == best.UsageCount && cred.Priority < best.Priority {
			best = cred
		}
	}
	return best
}

// Name returns the strategy name.
func (s *LeastUsedStrategy) Name() string { return string(StrategyLeastUsed) }

// RandomStrategy selects uniformly among the active credentials.
type RandomStrategy struct{}

// Select implements Strategy.
func (s *RandomStrategy) Select(candidates []*storage.Credential) *storage.Credential {
	return candidates[rand.IntN(len(candidates))]
}

// Name returns the strategy name.
func (s *RandomStrategy) Name() string { return string(StrategyRandom) }
