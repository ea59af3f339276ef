package grouprole

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"
)

// lookupTimeout bounds a shared lookup once it no longer follows any caller's context.
const lookupTimeout = 5 * time.Second

// RepositoryPort defines data access methods for group roles.
type RepositoryPort interface {
	ListRoles(ctx context.Context) ([]Role, error)
	RolesForGroupType(ctx context.Context, groupType string) ([]Role, error)
	GetGroup(ctx context.Context, id int64) (Group, error)
	Membership(ctx context.Context, groupID, userID int64) (bool, []RoleID, error)
}

// Service exposes the role catalog and membership lookups.
type Service struct {
	repo    RepositoryPort
	cache   *Cache
	flights singleflight.Group
}

// NewService builds Service instance. cache may be nil.
func NewService(repo RepositoryPort, cache *Cache) *Service {
	return &Service{repo: repo, cache: cache}
}

// ListRoles returns every role definition.
func (s *Service) ListRoles(ctx context.Context) ([]Role, error) {
	return s.repo.ListRoles(ctx)
}

// RolesForGroupType returns the role definitions of a group type.
func (s *Service) RolesForGroupType(ctx context.Context, groupType string) ([]Role, error) {
	return s.repo.RolesForGroupType(ctx, groupType)
}

// GetGroup resolves a group for context binding.
func (s *Service) GetGroup(ctx context.Context, id int64) (Group, error) {
	return s.repo.GetGroup(ctx, id)
}

// RolesFor returns the roles the actor holds in the group: roles assigned to
// the membership followed by roles implied by the actor's audience. A nil
// group holds no roles.
func (s *Service) RolesFor(ctx context.Context, actor Actor, group *Group) ([]RoleID, error) {
	if group == nil {
		return nil, nil
	}
	userID := actor.ID
	if actor.IsAnonymous() {
		userID = 0
	}
	key, err := s.cache.BuildKey(ctx, keyMembership(group.ID, userID)...)
	if err != nil {
		return nil, fmt.Errorf("grouprole: cache key: %w", err)
	}
	// The shared load outlives the caller that started it.
	ch := s.flights.DoChan(key, func() (interface{}, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), lookupTimeout)
		defer cancel()
		var ids []RoleID
		err := s.cache.FetchJSON(loadCtx, key, &ids, func(ctx context.Context) (interface{}, error) {
			return s.resolve(ctx, actor, *group)
		})
		return ids, err
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]RoleID), nil
	}
}

// Invalidate drops every cached membership lookup.
func (s *Service) Invalidate(ctx context.Context) (int64, error) {
	return s.cache.Bump(ctx)
}

func (s *Service) resolve(ctx context.Context, actor Actor, group Group) ([]RoleID, error) {
	catalog, err := s.repo.RolesForGroupType(ctx, group.Type)
	if err != nil {
		return nil, fmt.Errorf("grouprole: load roles for %q: %w", group.Type, err)
	}
	ids := []RoleID{}
	audience := AudienceAnonymous
	if !actor.IsAnonymous() {
		member, assigned, err := s.repo.Membership(ctx, group.ID, actor.ID)
		if err != nil {
			return nil, fmt.Errorf("grouprole: membership: %w", err)
		}
		audience = AudienceOutsider
		if member {
			audience = AudienceMember
			ids = append(ids, assigned...)
		}
	}
	for _, role := range catalog {
		if role.Audience == audience {
			ids = append(ids, role.ID)
		}
	}
	return ids, nil
}
