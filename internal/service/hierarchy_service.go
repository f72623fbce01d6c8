package service

import (
	"context"
	"log"
	"sync"
	"time"

	"lims/internal/model"
	"lims/internal/repository"

	"github.com/google/uuid"
)

// HierarchyService resolves the transitive closure of group access for a
// user: the union, over every group the user is directly and actively
// associated with, of that group and all of its descendants. Resolution is a
// pure read and is cached per user with a short TTL; any write to groups or
// memberships invalidates eagerly, so the staleness window is bounded by the
// TTL in the worst case.
type HierarchyService interface {
	AccessibleGroups(ctx context.Context, userID uuid.UUID) (map[uuid.UUID]bool, error)
	Invalidate(userID uuid.UUID)
	InvalidateAll()
}

type hierCacheEntry struct {
	groups    map[uuid.UUID]bool
	expiresAt time.Time
}

type hierarchyService struct {
	groups repository.GroupRepository
	ttl    time.Duration

	cache sync.Map // uuid.UUID -> hierCacheEntry

	cycleOnce sync.Once // a cyclic configuration is logged once, not per request
}

func NewHierarchyService(groups repository.GroupRepository, ttl time.Duration) HierarchyService {
	return &hierarchyService{groups: groups, ttl: ttl}
}

func (s *hierarchyService) AccessibleGroups(ctx context.Context, userID uuid.UUID) (map[uuid.UUID]bool, error) {
	if entry, ok := s.cache.Load(userID); ok {
		cached := entry.(hierCacheEntry)
		if time.Now().Before(cached.expiresAt) {
			return cached.groups, nil
		}
	}

	direct, err := s.groups.ListUserGroupIDs(ctx, userID)
	if err != nil {
		return nil, classify(err)
	}

	all, err := s.groups.ListActive(ctx)
	if err != nil {
		return nil, classify(err)
	}

	reachable := s.resolve(direct, all)

	s.cache.Store(userID, hierCacheEntry{
		groups:    reachable,
		expiresAt: time.Now().Add(s.ttl),
	})

	return reachable, nil
}

// resolve walks the children adjacency downward from each directly-assigned
// group. Each group has a single parent, so a child that is already on the
// current walk path means the parent chain loops; that is a configuration
// error. The walk logs it, refuses to re-enter the subtree and keeps serving
// the smaller accessible set rather than failing every authorization check.
func (s *hierarchyService) resolve(direct []uuid.UUID, all []model.Group) map[uuid.UUID]bool {
	active := make(map[uuid.UUID]bool, len(all))
	children := make(map[uuid.UUID][]uuid.UUID)
	for _, g := range all {
		active[g.ID] = true
		if g.ParentGroupID != nil {
			children[*g.ParentGroupID] = append(children[*g.ParentGroupID], g.ID)
		}
	}

	reachable := make(map[uuid.UUID]bool)
	onPath := make(map[uuid.UUID]bool)

	var walk func(id uuid.UUID)
	walk = func(id uuid.UUID) {
		if onPath[id] {
			s.cycleOnce.Do(func() {
				log.Printf("WARNING: group hierarchy cycle detected at group %s; excluding subtree", id)
			})
			return
		}
		if reachable[id] {
			return
		}
		reachable[id] = true
		onPath[id] = true
		for _, child := range children[id] {
			walk(child)
		}
		onPath[id] = false
	}

	for _, id := range direct {
		if !active[id] {
			continue
		}
		walk(id)
	}

	return reachable
}

func (s *hierarchyService) Invalidate(userID uuid.UUID) {
	s.cache.Delete(userID)
}

func (s *hierarchyService) InvalidateAll() {
	s.cache.Range(func(key, _ interface{}) bool {
		s.cache.Delete(key)
		return true
	})
}
