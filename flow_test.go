package mockauth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"go.pilab.hu/mockauth/cache"
	"go.pilab.hu/mockauth/domain"
	oautherr "go.pilab.hu/mockauth/errors"
	"go.pilab.hu/mockauth/internal/auth"
)

type flowFixture struct {
	flow    *FlowService
	clients *cache.MemoryClientStore
	users   *cache.MemoryUserStore
	guard   *LoginGuard
	ledger  *CodeLedger
}

func newFlowFixture(t *testing.T) *flowFixture {
	t.Helper()

	clients := cache.NewMemoryClientStore()
	users := cache.NewMemoryUserStore()
	hasher := auth.NewBcryptPasswordHasher(bcrypt.MinCost)
	guard := NewLoginGuard(users)
	ledger := NewCodeLedger(newFakeCodeRepo())
	sessions := NewSessionStore(SessionTTL)
	t.Cleanup(sessions.Stop)

	require.NoError(t, clients.CreateClient(context.Background(), &domain.Client{
		ID:           "client-1",
		Secret:       "secret-1",
		RedirectURIs: []string{"http://x/cb"},
		Scopes:       []string{"read", "write"},
	}))

	hash, err := hasher.Hash("correct horse")
	require.NoError(t, err)
	require.NoError(t, users.CreateUser(context.Background(), &domain.User{
		ID:           "user-1",
		Username:     "alice",
		PasswordHash: hash,
	}))

	return &flowFixture{
		flow:    NewFlowService(clients, users, hasher, guard, ledger, sessions),
		clients: clients,
		users:   users,
		guard:   guard,
		ledger:  ledger,
	}
}

func validAuthorizeRequest() *AuthorizeRequest {
	return &AuthorizeRequest{
		ClientID:     "client-1",
		RedirectURI:  "http://x/cb",
		ResponseType: "code",
		Scope:        "openid read",
		State:        "xyz",
	}
}

func assertOAuthCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	var oerr *oautherr.OAuth2Error
	require.ErrorAs(t, err, &oerr)
	assert.Equal(t, code, oerr.Code)
}

func TestValidateAuthorizeRequest_OK(t *testing.T) {
	f := newFlowFixture(t)

	client, err := f.flow.ValidateAuthorizeRequest(context.Background(), validAuthorizeRequest())
	require.NoError(t, err)
	assert.Equal(t, "client-1", client.ID)
}

func TestValidateAuthorizeRequest_UnknownClient(t *testing.T) {
	f := newFlowFixture(t)
	req := validAuthorizeRequest()
	req.ClientID = "nobody"

	// The authorization endpoint has no invalid_client code; an unknown
	// client is a malformed request.
	_, err := f.flow.ValidateAuthorizeRequest(context.Background(), req)
	assertOAuthCode(t, err, oautherr.InvalidRequest)
}

func TestValidateAuthorizeRequest_MissingClientID(t *testing.T) {
	f := newFlowFixture(t)
	req := validAuthorizeRequest()
	req.ClientID = ""

	_, err := f.flow.ValidateAuthorizeRequest(context.Background(), req)
	assertOAuthCode(t, err, oautherr.InvalidRequest)
}

func TestValidateAuthorizeRequest_UnregisteredRedirectURI(t *testing.T) {
	f := newFlowFixture(t)
	req := validAuthorizeRequest()
	req.RedirectURI = "http://evil/cb"

	_, err := f.flow.ValidateAuthorizeRequest(context.Background(), req)
	assertOAuthCode(t, err, oautherr.InvalidRequest)
}

func TestValidateAuthorizeRequest_UnsupportedResponseType(t *testing.T) {
	f := newFlowFixture(t)
	req := validAuthorizeRequest()
	req.ResponseType = "token"

	_, err := f.flow.ValidateAuthorizeRequest(context.Background(), req)
	assertOAuthCode(t, err, oautherr.UnsupportedResponseType)
}

func TestValidateAuthorizeRequest_ScopeOutsideAllowList(t *testing.T) {
	f := newFlowFixture(t)
	req := validAuthorizeRequest()
	req.Scope = "openid admin:everything"

	_, err := f.flow.ValidateAuthorizeRequest(context.Background(), req)
	assertOAuthCode(t, err, oautherr.InvalidScope)
}

func TestValidateScope_StandardScopesAlwaysAllowed(t *testing.T) {
	client := &domain.Client{ID: "c", Scopes: []string{"custom"}}

	assert.NoError(t, ValidateScope("openid profile email offline_access custom", client))
	assert.Error(t, ValidateScope("openid other", client))
}

func TestValidateScope_EmptyAllowListAcceptsAnything(t *testing.T) {
	client := &domain.Client{ID: "c"}

	assert.NoError(t, ValidateScope("anything at all", client))
	assert.NoError(t, ValidateScope("", client))
}

func TestAuthenticate_Success(t *testing.T) {
	f := newFlowFixture(t)

	user, err := f.flow.Authenticate(context.Background(), "alice", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, "user-1", user.ID)
}

func TestAuthenticate_UnknownUserIsGeneric(t *testing.T) {
	f := newFlowFixture(t)

	_, err := f.flow.Authenticate(context.Background(), "mallory", "whatever")
	assert.ErrorIs(t, err, ErrLoginFailed)
}

func TestAuthenticate_WrongPasswordCountsFailure(t *testing.T) {
	f := newFlowFixture(t)
	ctx := context.Background()

	_, err := f.flow.Authenticate(ctx, "alice", "wrong")
	assert.ErrorIs(t, err, ErrLoginFailed)

	user, err := f.users.GetUserByID(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 1, user.FailedLoginAttempts)
}

func TestAuthenticate_LockoutCycle(t *testing.T) {
	f := newFlowFixture(t)
	ctx := context.Background()
	now := time.Now()

	for i := 0; i < MaxFailedLoginAttempts; i++ {
		_, err := f.flow.Authenticate(ctx, "alice", "wrong")
		assert.ErrorIs(t, err, ErrLoginFailed)
	}

	// Correct credentials still fail while locked.
	_, err := f.flow.Authenticate(ctx, "alice", "correct horse")
	assert.ErrorIs(t, err, ErrLoginFailed)

	// After the lockout window elapses the correct password works and the
	// counter resets.
	f.guard.now = func() time.Time { return now.Add(LockoutDuration + time.Minute) }
	user, err := f.flow.Authenticate(ctx, "alice", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, "user-1", user.ID)

	stored, err := f.users.GetUserByID(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 0, stored.FailedLoginAttempts)
	assert.Nil(t, stored.LockedUntil)
}

func TestCompleteAuthorization(t *testing.T) {
	f := newFlowFixture(t)
	req := validAuthorizeRequest()

	code, session, err := f.flow.CompleteAuthorization(context.Background(), "user-1", req)
	require.NoError(t, err)

	assert.Equal(t, "client-1", code.ClientID)
	assert.Equal(t, "http://x/cb", code.RedirectURI)
	assert.Equal(t, "openid read", code.Scope)
	assert.Equal(t, "user-1", code.UserID)

	got, ok := f.flow.Sessions().Get(session.ID)
	require.True(t, ok)
	assert.Equal(t, "user-1", got.UserID)
}

func TestRedirectURL(t *testing.T) {
	location, err := RedirectURL("http://x/cb?keep=1", "abc123", "st ate")
	require.NoError(t, err)
	assert.Equal(t, "http://x/cb?code=abc123&keep=1&state=st+ate", location)

	location, err = RedirectURL("http://x/cb", "abc123", "")
	require.NoError(t, err)
	assert.Equal(t, "http://x/cb?code=abc123", location)
}
