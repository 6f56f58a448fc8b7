package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	domainauth "github.com/gmrl/auth-portal/internal/domain/auth"
	"github.com/gmrl/auth-portal/internal/domain/model"
	"github.com/gmrl/auth-portal/internal/mocks"
)

type userMocks struct {
	users     *mocks.MockUserRepository
	directory *mocks.MockDirectoryClient
	cache     *mocks.MockDirectoryCache
}

func newUserService(t *testing.T) (*UserService, userMocks) {
	t.Helper()
	ctrl := gomock.NewController(t)

	m := userMocks{
		users:     mocks.NewMockUserRepository(ctrl),
		directory: mocks.NewMockDirectoryClient(ctrl),
		cache:     mocks.NewMockDirectoryCache(ctrl),
	}

	svc, err := NewUserService(UserServiceOptions{
		Users:     m.users,
		Directory: m.directory,
		Cache:     m.cache,
	})
	require.NoError(t, err)
	return svc, m
}

var testListing = []model.DirectoryUser{
	{AzureUserID: "az-1", Email: "a@example.com", DisplayName: "A"},
	{AzureUserID: "az-2", Email: "b@example.com", DisplayName: "B"},
	{AzureUserID: "az-3", Email: "c@example.com", DisplayName: "C"},
}

func TestAssignRoleRejectsPending(t *testing.T) {
	svc, _ := newUserService(t)

	_, err := svc.AssignRole(context.Background(), 1, 2, domainauth.RolePending)
	assert.Error(t, err)
}

func TestAssignRoleApprovesAndActivates(t *testing.T) {
	svc, m := newUserService(t)

	approved := &model.User{ID: 2, Role: domainauth.RoleStoreManager, IsApproved: true, IsActive: true}
	m.users.EXPECT().UpdateRole(gomock.Any(), int64(2), domainauth.RoleStoreManager).Return(approved, nil)

	user, err := svc.AssignRole(context.Background(), 1, 2, domainauth.RoleStoreManager)
	require.NoError(t, err)
	assert.True(t, user.IsApproved)
	assert.True(t, user.IsActive)
}

func TestRejectClearsApprovalAndActive(t *testing.T) {
	svc, m := newUserService(t)

	m.users.EXPECT().
		Update(gomock.Any(), int64(4), gomock.Any()).
		DoAndReturn(func(_ context.Context, id int64, req model.UpdateUserRequest) (*model.User, error) {
			require.NotNil(t, req.IsApproved)
			require.NotNil(t, req.IsActive)
			assert.False(t, *req.IsApproved)
			assert.False(t, *req.IsActive)
			return &model.User{ID: id, Role: domainauth.RolePending}, nil
		})

	_, err := svc.Reject(context.Background(), 1, 4)
	require.NoError(t, err)
}

func TestSyncDirectoryServesFromCache(t *testing.T) {
	svc, m := newUserService(t)

	m.cache.EXPECT().Get(gomock.Any()).Return(testListing, true, nil)
	for range testListing {
		m.users.EXPECT().UpsertDirectoryUser(gomock.Any(), gomock.Any()).Return(false, nil)
	}

	res, err := svc.SyncDirectory(context.Background(), 1, "token", false)
	require.NoError(t, err)
	assert.True(t, res.FromCache)
	assert.Equal(t, 3, res.Total)
	assert.Equal(t, 0, res.Created)
	assert.Equal(t, 3, res.Updated)
}

func TestSyncDirectoryFetchesOnCacheMiss(t *testing.T) {
	svc, m := newUserService(t)

	m.cache.EXPECT().Get(gomock.Any()).Return(nil, false, nil)
	m.directory.EXPECT().ListUsers(gomock.Any(), "token").Return(testListing, nil)
	m.cache.EXPECT().Set(gomock.Any(), testListing).Return(nil)

	gomock.InOrder(
		m.users.EXPECT().UpsertDirectoryUser(gomock.Any(), testListing[0]).Return(true, nil),
		m.users.EXPECT().UpsertDirectoryUser(gomock.Any(), testListing[1]).Return(false, nil),
		m.users.EXPECT().UpsertDirectoryUser(gomock.Any(), testListing[2]).Return(true, nil),
	)

	res, err := svc.SyncDirectory(context.Background(), 1, "token", false)
	require.NoError(t, err)
	assert.False(t, res.FromCache)
	assert.Equal(t, 2, res.Created)
	assert.Equal(t, 1, res.Updated)
}

func TestSyncDirectoryForceBypassesCache(t *testing.T) {
	svc, m := newUserService(t)

	// No cache.Get expectation: force skips the read but still refreshes it.
	m.directory.EXPECT().ListUsers(gomock.Any(), "token").Return(testListing, nil)
	m.cache.EXPECT().Set(gomock.Any(), testListing).Return(nil)
	m.users.EXPECT().UpsertDirectoryUser(gomock.Any(), gomock.Any()).Return(false, nil).Times(3)

	res, err := svc.SyncDirectory(context.Background(), 1, "token", true)
	require.NoError(t, err)
	assert.False(t, res.FromCache)
}

func TestSyncDirectoryContinuesPastUpsertFailure(t *testing.T) {
	svc, m := newUserService(t)

	m.cache.EXPECT().Get(gomock.Any()).Return(testListing, true, nil)
	gomock.InOrder(
		m.users.EXPECT().UpsertDirectoryUser(gomock.Any(), testListing[0]).Return(true, nil),
		m.users.EXPECT().UpsertDirectoryUser(gomock.Any(), testListing[1]).Return(false, errors.New("constraint violated")),
		m.users.EXPECT().UpsertDirectoryUser(gomock.Any(), testListing[2]).Return(false, nil),
	)

	res, err := svc.SyncDirectory(context.Background(), 1, "token", false)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Total)
	assert.Equal(t, 1, res.Created)
	assert.Equal(t, 1, res.Updated)
}

func TestSyncDirectoryPropagatesListingFailure(t *testing.T) {
	svc, m := newUserService(t)

	m.cache.EXPECT().Get(gomock.Any()).Return(nil, false, nil)
	m.directory.EXPECT().ListUsers(gomock.Any(), "token").Return(nil, errors.New("graph 503"))

	_, err := svc.SyncDirectory(context.Background(), 1, "token", false)
	assert.Error(t, err)
}
