package rules

import (
	"context"
	"sync"

	"github.com/solatis/approvalgate/internal/types"
)

// MemoryRepository is an in-memory RuleRepository.
// Rules are returned in insertion order. Safe for concurrent use.
type MemoryRepository struct {
	mu    sync.RWMutex
	rules []types.Rule
}

// NewMemoryRepository creates a repository holding the given rules.
func NewMemoryRepository(rules ...types.Rule) *MemoryRepository {
	r := &MemoryRepository{}
	for _, rule := range rules {
		r.Add(rule)
	}
	return r
}

// Add appends a rule.
func (r *MemoryRepository) Add(rule types.Rule) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rules = append(r.rules, rule)
}

// FindActiveByClassification returns copies of the active rules for key.
func (r *MemoryRepository) FindActiveByClassification(ctx context.Context, key types.ClassificationKey) ([]types.Rule, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []types.Rule
	for _, rule := range r.rules {
		if rule.ClassificationKey == key && rule.Active {
			out = append(out, rule)
		}
	}
	return out, nil
}
