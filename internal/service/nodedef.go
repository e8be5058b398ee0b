package service

import (
	"context"
	"time"

	"neco/internal/store"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

// NodeDefinitionService serves node definitions through a bounded
// read-through cache. Entries expire after the TTL or on Invalidate.
type NodeDefinitionService struct {
	defs  store.NodeDefinitionStore
	cache *expirable.LRU[uuid.UUID, *store.NodeDefinition]
}

func NewNodeDefinitionService(defs store.NodeDefinitionStore, size int, ttl time.Duration) *NodeDefinitionService {
	if size <= 0 {
		size = 256
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &NodeDefinitionService{
		defs:  defs,
		cache: expirable.NewLRU[uuid.UUID, *store.NodeDefinition](size, nil, ttl),
	}
}

// GetNodeDefinition returns a public definition or one created by the
// caller, loading it on a cache miss. Absent ids are not cached.
func (s *NodeDefinitionService) GetNodeDefinition(ctx context.Context, id, callerID uuid.UUID) (*store.NodeDefinition, error) {
	def, ok := s.cache.Get(id)
	if !ok {
		var err error
		def, err = s.defs.GetNodeDefinitionByID(ctx, id)
		if err != nil {
			return nil, storeFailure(err)
		}
		if def == nil {
			return nil, NotFound("node definition not found")
		}
		s.cache.Add(id, def)
	}

	if !def.IsPublic && def.CreatedBy != callerID {
		return nil, NotFound("node definition not found")
	}
	return def, nil
}

// ListNodeDefinitions returns the public definitions and those created by
// the caller. The listing always reads the store and does not fill the
// cache.
func (s *NodeDefinitionService) ListNodeDefinitions(ctx context.Context, callerID uuid.UUID) ([]store.NodeDefinition, int, error) {
	defs, err := s.defs.ListNodeDefinitions(ctx)
	if err != nil {
		return nil, 0, storeFailure(err)
	}

	visible := make([]store.NodeDefinition, 0, len(defs))
	for _, def := range defs {
		if def.IsPublic || def.CreatedBy == callerID {
			visible = append(visible, def)
		}
	}
	return visible, len(visible), nil
}

// Invalidate drops id from the cache. Callers that change a definition
// outside this service use it to force the next read through.
func (s *NodeDefinitionService) Invalidate(id uuid.UUID) {
	s.cache.Remove(id)
}
