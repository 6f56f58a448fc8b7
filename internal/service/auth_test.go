package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/gmrl/auth-portal/internal/data"
	domainauth "github.com/gmrl/auth-portal/internal/domain/auth"
	"github.com/gmrl/auth-portal/internal/domain/model"
	"github.com/gmrl/auth-portal/internal/mocks"
)

type authMocks struct {
	exchanger *mocks.MockTokenExchanger
	directory *mocks.MockDirectoryClient
	users     *mocks.MockUserRepository
	sessions  *mocks.MockSessionRepository
}

func newAuthService(t *testing.T) (*AuthService, authMocks) {
	t.Helper()
	ctrl := gomock.NewController(t)

	m := authMocks{
		exchanger: mocks.NewMockTokenExchanger(ctrl),
		directory: mocks.NewMockDirectoryClient(ctrl),
		users:     mocks.NewMockUserRepository(ctrl),
		sessions:  mocks.NewMockSessionRepository(ctrl),
	}

	svc, err := NewAuthService(AuthServiceOptions{
		Exchanger: m.exchanger,
		Directory: m.directory,
		Users:     m.users,
		Sessions:  m.sessions,
	})
	require.NoError(t, err)
	return svc, m
}

var testTokens = domainauth.Tokens{
	AccessToken:  "graph-access-token",
	RefreshToken: "graph-refresh-token",
	Expiry:       time.Now().Add(time.Hour),
}

var testProfile = domainauth.Profile{
	AzureUserID: "azure-123",
	Email:       "jordan@example.com",
	DisplayName: "Jordan Example",
	JobTitle:    "Analyst",
	Department:  "Finance",
}

func testSession(userID int64) *model.Session {
	return &model.Session{
		Token:  strings.Repeat("ab", 32),
		UserID: userID,
	}
}

func TestCompleteLoginNewUserBecomesPending(t *testing.T) {
	svc, m := newAuthService(t)
	ctx := context.Background()

	pending := &model.User{ID: 7, Email: testProfile.Email, Role: domainauth.RolePending, IsActive: true}

	m.exchanger.EXPECT().Exchange(gomock.Any(), "code-1").Return(testTokens, nil)
	m.directory.EXPECT().Me(gomock.Any(), testTokens.AccessToken).Return(testProfile, nil)
	m.users.EXPECT().GetByEmail(gomock.Any(), testProfile.Email).Return(nil, data.ErrUserNotFound)
	m.users.EXPECT().InsertPending(gomock.Any(), testProfile).Return(pending, nil)
	m.sessions.EXPECT().Create(gomock.Any(), int64(7), testTokens).Return(testSession(7), nil)

	result, err := svc.CompleteLogin(ctx, "code-1")
	require.NoError(t, err)
	assert.Equal(t, domainauth.RolePending, result.User.Role)
	assert.False(t, result.User.IsApproved)
	assert.Len(t, result.Session.Token, domainauth.SessionTokenLength)
}

func TestCompleteLoginRepeatKeepsAssignedRole(t *testing.T) {
	svc, m := newAuthService(t)
	ctx := context.Background()

	admin := &model.User{ID: 3, Email: testProfile.Email, Role: domainauth.RoleAdmin, IsActive: true, IsApproved: true}

	m.exchanger.EXPECT().Exchange(gomock.Any(), "code-2").Return(testTokens, nil)
	m.directory.EXPECT().Me(gomock.Any(), testTokens.AccessToken).Return(testProfile, nil)
	m.users.EXPECT().GetByEmail(gomock.Any(), testProfile.Email).Return(admin, nil)
	// Role and approval survive the login refresh untouched.
	m.users.EXPECT().UpdateOnLogin(gomock.Any(), int64(3), testProfile).Return(admin, nil)
	m.sessions.EXPECT().Create(gomock.Any(), int64(3), testTokens).Return(testSession(3), nil)

	result, err := svc.CompleteLogin(ctx, "code-2")
	require.NoError(t, err)
	assert.Equal(t, domainauth.RoleAdmin, result.User.Role)
	assert.True(t, result.User.IsApproved)
}

func TestCompleteLoginExchangeFailureIsTyped(t *testing.T) {
	svc, m := newAuthService(t)

	m.exchanger.EXPECT().Exchange(gomock.Any(), "bad-code").
		Return(domainauth.Tokens{}, &domainauth.TokenExchangeError{Err: errors.New("AADSTS70008: expired")})

	_, err := svc.CompleteLogin(context.Background(), "bad-code")
	var exchErr *domainauth.TokenExchangeError
	require.ErrorAs(t, err, &exchErr)
}

func TestCompleteLoginProfileFailureIsTyped(t *testing.T) {
	svc, m := newAuthService(t)

	m.exchanger.EXPECT().Exchange(gomock.Any(), "code-3").Return(testTokens, nil)
	m.directory.EXPECT().Me(gomock.Any(), testTokens.AccessToken).
		Return(domainauth.Profile{}, &domainauth.ProfileFetchError{Err: errors.New("401 from graph")})

	_, err := svc.CompleteLogin(context.Background(), "code-3")
	var profErr *domainauth.ProfileFetchError
	require.ErrorAs(t, err, &profErr)
}

func TestCompleteLoginEmptyCodeRejected(t *testing.T) {
	svc, _ := newAuthService(t)

	_, err := svc.CompleteLogin(context.Background(), "")
	var exchErr *domainauth.TokenExchangeError
	require.ErrorAs(t, err, &exchErr)
}

func TestCompleteLoginLostInsertRaceReReadsWinner(t *testing.T) {
	svc, m := newAuthService(t)
	ctx := context.Background()

	winner := &model.User{ID: 11, Email: testProfile.Email, Role: domainauth.RolePending, IsActive: true}

	m.exchanger.EXPECT().Exchange(gomock.Any(), "code-4").Return(testTokens, nil)
	m.directory.EXPECT().Me(gomock.Any(), testTokens.AccessToken).Return(testProfile, nil)
	gomock.InOrder(
		m.users.EXPECT().GetByEmail(gomock.Any(), testProfile.Email).Return(nil, data.ErrUserNotFound),
		m.users.EXPECT().InsertPending(gomock.Any(), testProfile).Return(nil, data.ErrEmailExists),
		m.users.EXPECT().GetByEmail(gomock.Any(), testProfile.Email).Return(winner, nil),
		m.users.EXPECT().UpdateOnLogin(gomock.Any(), int64(11), testProfile).Return(winner, nil),
	)
	m.sessions.EXPECT().Create(gomock.Any(), int64(11), testTokens).Return(testSession(11), nil)

	result, err := svc.CompleteLogin(ctx, "code-4")
	require.NoError(t, err)
	assert.Equal(t, int64(11), result.User.ID)
}

func TestCompleteLoginRetriesTokenCollision(t *testing.T) {
	svc, m := newAuthService(t)
	ctx := context.Background()

	user := &model.User{ID: 5, Email: testProfile.Email, Role: domainauth.RoleAuditor, IsActive: true, IsApproved: true}

	m.exchanger.EXPECT().Exchange(gomock.Any(), "code-5").Return(testTokens, nil)
	m.directory.EXPECT().Me(gomock.Any(), testTokens.AccessToken).Return(testProfile, nil)
	m.users.EXPECT().GetByEmail(gomock.Any(), testProfile.Email).Return(user, nil)
	m.users.EXPECT().UpdateOnLogin(gomock.Any(), int64(5), testProfile).Return(user, nil)
	gomock.InOrder(
		m.sessions.EXPECT().Create(gomock.Any(), int64(5), testTokens).Return(nil, data.ErrTokenCollision),
		m.sessions.EXPECT().Create(gomock.Any(), int64(5), testTokens).Return(testSession(5), nil),
	)

	result, err := svc.CompleteLogin(ctx, "code-5")
	require.NoError(t, err)
	assert.Equal(t, int64(5), result.Session.UserID)
}

func TestGetSessionMalformedTokenSkipsStorage(t *testing.T) {
	// No expectations on the session repository: a malformed token must be
	// rejected before any I/O.
	svc, _ := newAuthService(t)

	for _, token := range []string{"", "short", strings.Repeat("Z", 64), strings.Repeat("a", 65)} {
		principal, err := svc.GetSession(context.Background(), token)
		require.NoError(t, err)
		assert.Nil(t, principal)
	}
}

func TestGetSessionResolvesPrincipal(t *testing.T) {
	svc, m := newAuthService(t)
	token := strings.Repeat("cd", 32)

	stores := `["S001"]`
	row := &model.SessionWithUser{
		Session: model.Session{Token: token, UserID: 9, AzureAccessToken: "graph-token"},
		User: model.User{
			ID:             9,
			Email:          "pat@example.com",
			DisplayName:    "Pat",
			Role:           domainauth.RoleStoreManager,
			AssignedStores: &stores,
			IsActive:       true,
			IsApproved:     true,
		},
	}

	m.sessions.EXPECT().Lookup(gomock.Any(), token).Return(row, nil)
	// The touch runs on a detached goroutine and may land after the test body.
	m.sessions.EXPECT().Touch(gomock.Any(), token).Return(nil).AnyTimes()

	principal, err := svc.GetSession(context.Background(), token)
	require.NoError(t, err)
	require.NotNil(t, principal)
	assert.Equal(t, int64(9), principal.UserID)
	assert.Equal(t, domainauth.RoleStoreManager, principal.Role)
	assert.Equal(t, []string{"S001"}, principal.AssignedStores)
	assert.Equal(t, "graph-token", principal.AccessToken)
}

func TestGetSessionMissReturnsNil(t *testing.T) {
	svc, m := newAuthService(t)
	token := strings.Repeat("ef", 32)

	m.sessions.EXPECT().Lookup(gomock.Any(), token).Return(nil, nil)

	principal, err := svc.GetSession(context.Background(), token)
	require.NoError(t, err)
	assert.Nil(t, principal)
}

func TestLogoutIsIdempotent(t *testing.T) {
	svc, m := newAuthService(t)
	token := strings.Repeat("01", 32)

	m.sessions.EXPECT().Lookup(gomock.Any(), token).Return(nil, nil)
	m.sessions.EXPECT().Delete(gomock.Any(), token).Return(nil)

	require.NoError(t, svc.Logout(context.Background(), token))

	// Malformed tokens never reach the repository.
	require.NoError(t, svc.Logout(context.Background(), "not-a-token"))
}

func TestDefaultRouteForRole(t *testing.T) {
	svc, _ := newAuthService(t)

	cases := map[domainauth.Role]string{
		domainauth.RolePending:         "/auth/pending",
		domainauth.RoleAuditor:         "/auditor/select",
		domainauth.RoleAdmin:           "/dashboard",
		domainauth.RoleStoreManager:    "/dashboard",
		domainauth.RoleCleaningHead:    "/dashboard",
		domainauth.RoleProcurementHead: "/dashboard",
		domainauth.RoleMaintenanceHead: "/dashboard",
	}
	for role, want := range cases {
		assert.Equal(t, want, svc.DefaultRouteForRole(role), "role %s", role)
	}

	// A row holding a role this build no longer knows lands on the safe page.
	assert.Equal(t, "/auth/pending", svc.DefaultRouteForRole(domainauth.Role("Ghost")))
}
