package mockauth

import (
	"context"
	"errors"
	"net/url"

	"github.com/rs/zerolog/log"

	"go.pilab.hu/mockauth/domain"
	oautherr "go.pilab.hu/mockauth/errors"
)

// ErrLoginFailed is the single, deliberately generic credential failure.
// Unknown usernames, wrong passwords and locked accounts all surface as this
// error so the challenge never reveals whether a username exists.
var ErrLoginFailed = errors.New("invalid username or password")

// AuthorizeRequest carries the parameters of an authorization request, from
// either the query string (GET) or the form body (POST).
type AuthorizeRequest struct {
	ClientID     string
	RedirectURI  string
	ResponseType string
	Scope        string
	State        string
	Nonce        string
}

// FlowService validates authorization requests, authenticates end users
// through the login guard, and mints authorization codes through the ledger.
// Rendering the credential challenge is the HTTP layer's job; the service
// only decides outcomes.
type FlowService struct {
	clients  domain.ClientRepository
	users    domain.UserRepository
	hasher   domain.PasswordHasher
	guard    *LoginGuard
	ledger   *CodeLedger
	sessions *SessionStore
}

// NewFlowService creates a new FlowService instance.
func NewFlowService(
	clients domain.ClientRepository,
	users domain.UserRepository,
	hasher domain.PasswordHasher,
	guard *LoginGuard,
	ledger *CodeLedger,
	sessions *SessionStore,
) *FlowService {
	return &FlowService{
		clients:  clients,
		users:    users,
		hasher:   hasher,
		guard:    guard,
		ledger:   ledger,
		sessions: sessions,
	}
}

// Sessions exposes the session store to the HTTP layer for cookie handling.
func (s *FlowService) Sessions() *SessionStore {
	return s.sessions
}

// ValidateAuthorizeRequest checks the protocol-level parameters of an
// authorization request. Failures here are RFC 6749 protocol errors returned
// directly to the caller, never routed into the credential challenge.
func (s *FlowService) ValidateAuthorizeRequest(ctx context.Context, req *AuthorizeRequest) (*domain.Client, error) {
	if req.ClientID == "" {
		return nil, oautherr.NewInvalidRequest("client_id is required")
	}

	// RFC 6749 4.1.2.1 has no invalid_client code for this endpoint.
	client, err := s.clients.GetClient(ctx, req.ClientID)
	if err != nil {
		return nil, oautherr.NewInvalidRequest("Unknown client_id")
	}

	if req.RedirectURI == "" || !containsString(client.RedirectURIs, req.RedirectURI) {
		return nil, oautherr.NewInvalidRequest("redirect_uri is not registered for this client")
	}

	if req.ResponseType != "code" {
		return nil, oautherr.NewUnsupportedResponseType("Only the code response type is supported")
	}

	if err := ValidateScope(req.Scope, client); err != nil {
		return nil, err
	}

	return client, nil
}

// ValidateScope checks a requested scope against a client's allow-list.
// Standard scopes are always accepted; a client with an empty allow-list
// accepts anything.
func ValidateScope(scope string, client *domain.Client) error {
	if scope == "" || len(client.Scopes) == 0 {
		return nil
	}

	for _, token := range ScopeTokens(scope) {
		if standardScopes[token] || containsString(client.Scopes, token) {
			continue
		}
		return oautherr.NewInvalidScope("Scope " + token + " is not allowed for this client")
	}

	return nil
}

// Authenticate resolves the user and verifies the password, driving the
// login guard. A locked account fails even with correct credentials. All
// failures collapse into ErrLoginFailed.
func (s *FlowService) Authenticate(ctx context.Context, username, password string) (*domain.User, error) {
	user, err := s.users.GetUserByUsername(ctx, username)
	if err != nil {
		// Unknown user: no counter to bump, same generic answer.
		log.Debug().Str("username", username).Msg("Login attempt for unknown user")
		return nil, ErrLoginFailed
	}

	if s.guard.IsLocked(user) {
		log.Warn().Str("user_id", user.ID).Msg("Login attempt on locked account")
		return nil, ErrLoginFailed
	}

	if err := s.hasher.Verify(user.PasswordHash, password); err != nil {
		if ferr := s.guard.RecordFailure(ctx, user.ID); ferr != nil {
			log.Error().Err(ferr).Str("user_id", user.ID).Msg("Failed to record login failure")
		}
		return nil, ErrLoginFailed
	}

	if err := s.guard.RecordSuccess(ctx, user.ID); err != nil {
		log.Error().Err(err).Str("user_id", user.ID).Msg("Failed to reset login failures")
	}

	return user, nil
}

// CompleteAuthorization establishes a session for the authenticated user and
// issues an authorization code for the validated request.
func (s *FlowService) CompleteAuthorization(ctx context.Context, userID string, req *AuthorizeRequest) (*domain.AuthCode, *Session, error) {
	code, err := s.ledger.Issue(ctx, req.ClientID, req.RedirectURI, req.Scope, userID, req.Nonce)
	if err != nil {
		return nil, nil, err
	}

	session := s.sessions.Create(userID)

	return code, session, nil
}

// IssueForSession issues an authorization code for a request arriving with
// an already-authenticated session.
func (s *FlowService) IssueForSession(ctx context.Context, session *Session, req *AuthorizeRequest) (*domain.AuthCode, error) {
	return s.ledger.Issue(ctx, req.ClientID, req.RedirectURI, req.Scope, session.UserID, req.Nonce)
}

// RedirectURL builds the success redirect carrying the code and, when the
// request supplied one, the verbatim state value.
func RedirectURL(redirectURI, code, state string) (string, error) {
	u, err := url.Parse(redirectURI)
	if err != nil {
		return "", oautherr.NewInvalidRequest("redirect_uri is not a valid URI")
	}

	q := u.Query()
	q.Set("code", code)
	if state != "" {
		q.Set("state", state)
	}
	u.RawQuery = q.Encode()

	return u.String(), nil
}

func containsString(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
