package grouprole

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type membership struct {
	groupID int64
	userID  int64
	roles   []RoleID
}

type stubRepo struct {
	mu          sync.Mutex
	roles       []Role
	groups      map[int64]Group
	memberships []membership
	lookups     int
	err         error
	entered     chan struct{}
	release     chan struct{}
}

func (s *stubRepo) ListRoles(ctx context.Context) ([]Role, error) {
	return s.roles, s.err
}

func (s *stubRepo) RolesForGroupType(ctx context.Context, groupType string) ([]Role, error) {
	if s.err != nil {
		return nil, s.err
	}
	var out []Role
	for _, role := range s.roles {
		if role.ID.GroupType == groupType {
			out = append(out, role)
		}
	}
	return out, nil
}

func (s *stubRepo) GetGroup(ctx context.Context, id int64) (Group, error) {
	g, ok := s.groups[id]
	if !ok {
		return Group{}, ErrNotFound
	}
	return g, nil
}

func (s *stubRepo) Membership(ctx context.Context, groupID, userID int64) (bool, []RoleID, error) {
	s.mu.Lock()
	s.lookups++
	s.mu.Unlock()
	if s.entered != nil {
		select {
		case s.entered <- struct{}{}:
		default:
		}
	}
	if s.release != nil {
		select {
		case <-s.release:
		case <-ctx.Done():
			return false, nil, ctx.Err()
		}
	}
	if s.err != nil {
		return false, nil, s.err
	}
	for _, m := range s.memberships {
		if m.groupID == groupID && m.userID == userID {
			return true, m.roles, nil
		}
	}
	return false, nil, nil
}

func newStubRepo() *stubRepo {
	return &stubRepo{
		roles: []Role{
			{ID: ParseRoleID("community-admin"), Label: "Admin"},
			{ID: ParseRoleID("community-editor"), Label: "Editor"},
			{ID: ParseRoleID("community-member"), Label: "Member", Audience: AudienceMember},
			{ID: ParseRoleID("community-outsider"), Label: "Outsider", Audience: AudienceOutsider},
			{ID: ParseRoleID("community-anonymous"), Label: "Anonymous", Audience: AudienceAnonymous},
			{ID: ParseRoleID("team-member"), Label: "Team member", Audience: AudienceMember},
		},
		groups: map[int64]Group{10: {ID: 10, Type: "community", Label: "Gardeners"}},
		memberships: []membership{
			{groupID: 10, userID: 1, roles: []RoleID{ParseRoleID("community-editor")}},
		},
	}
}

func TestRolesForMemberIncludesAssignedAndImplied(t *testing.T) {
	svc := NewService(newStubRepo(), nil)
	group := &Group{ID: 10, Type: "community"}

	ids, err := svc.RolesFor(context.Background(), Actor{ID: 1}, group)
	require.NoError(t, err)
	assert.Equal(t, []RoleID{ParseRoleID("community-editor"), ParseRoleID("community-member")}, ids)
}

func TestRolesForOutsiderAndAnonymous(t *testing.T) {
	svc := NewService(newStubRepo(), nil)
	group := &Group{ID: 10, Type: "community"}

	ids, err := svc.RolesFor(context.Background(), Actor{ID: 2}, group)
	require.NoError(t, err)
	assert.Equal(t, []RoleID{ParseRoleID("community-outsider")}, ids)

	ids, err = svc.RolesFor(context.Background(), Actor{}, group)
	require.NoError(t, err)
	assert.Equal(t, []RoleID{ParseRoleID("community-anonymous")}, ids)
}

func TestRolesForNilGroup(t *testing.T) {
	repo := newStubRepo()
	svc := NewService(repo, nil)

	ids, err := svc.RolesFor(context.Background(), Actor{ID: 1}, nil)
	require.NoError(t, err)
	assert.Empty(t, ids)
	assert.Zero(t, repo.lookups)
}

func TestRolesForPropagatesRepositoryErrors(t *testing.T) {
	repo := newStubRepo()
	repo.err = errors.New("connection reset")
	svc := NewService(repo, nil)

	_, err := svc.RolesFor(context.Background(), Actor{ID: 1}, &Group{ID: 10, Type: "community"})
	assert.ErrorContains(t, err, "connection reset")
}

func TestRolesForUsesCacheUntilInvalidated(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	repo := newStubRepo()
	svc := NewService(repo, NewCache(client, time.Minute))
	group := &Group{ID: 10, Type: "community"}
	ctx := context.Background()

	first, err := svc.RolesFor(ctx, Actor{ID: 1}, group)
	require.NoError(t, err)
	second, err := svc.RolesFor(ctx, Actor{ID: 1}, group)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, repo.lookups)

	repo.memberships[0].roles = []RoleID{ParseRoleID("community-admin")}
	version, err := svc.Invalidate(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), version)

	third, err := svc.RolesFor(ctx, Actor{ID: 1}, group)
	require.NoError(t, err)
	assert.Equal(t, []RoleID{ParseRoleID("community-admin"), ParseRoleID("community-member")}, third)
	assert.Equal(t, 2, repo.lookups)
}

func TestRolesForSharedLookupOutlivesCancelledCaller(t *testing.T) {
	repo := newStubRepo()
	repo.entered = make(chan struct{}, 1)
	repo.release = make(chan struct{})
	svc := NewService(repo, nil)
	group := &Group{ID: 10, Type: "community"}

	firstCtx, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := svc.RolesFor(firstCtx, Actor{ID: 1}, group)
		firstErr <- err
	}()
	<-repo.entered

	type result struct {
		ids []RoleID
		err error
	}
	waiter := make(chan result, 1)
	go func() {
		ids, err := svc.RolesFor(context.Background(), Actor{ID: 1}, group)
		waiter <- result{ids: ids, err: err}
	}()
	time.Sleep(20 * time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-firstErr, context.Canceled)
	close(repo.release)

	got := <-waiter
	require.NoError(t, got.err)
	assert.Equal(t, []RoleID{ParseRoleID("community-editor"), ParseRoleID("community-member")}, got.ids)
}

func TestCatalogLookups(t *testing.T) {
	svc := NewService(newStubRepo(), nil)
	ctx := context.Background()

	all, err := svc.ListRoles(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 6)

	team, err := svc.RolesForGroupType(ctx, "team")
	require.NoError(t, err)
	require.Len(t, team, 1)
	assert.Equal(t, "member", team[0].ID.Name)

	_, err = svc.GetGroup(ctx, 99)
	assert.ErrorIs(t, err, ErrNotFound)
	g, err := svc.GetGroup(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, "Gardeners", g.Label)
}
