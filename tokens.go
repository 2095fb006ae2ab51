package mockauth

import (
	"context"
	"crypto/subtle"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"go.pilab.hu/mockauth/domain"
	oautherr "go.pilab.hu/mockauth/errors"
	"go.pilab.hu/mockauth/preset"
)

// GrantType enumeration for OAuth2 grant types.
type GrantType string

const (
	GrantTypeAuthorizationCode GrantType = "authorization_code"
	GrantTypeClientCredentials GrantType = "client_credentials"
)

// TokenRequest carries a token endpoint request with client credentials
// already resolved (Basic header preferred over body parameters).
type TokenRequest struct {
	GrantType    string
	Code         string
	RedirectURI  string
	Scope        string
	ClientID     string
	ClientSecret string
}

// TokenResponse is the token endpoint success payload.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
	Scope       string `json:"scope,omitempty"`
	IDToken     string `json:"id_token,omitempty"`
}

// TokenService authenticates clients and dispatches token endpoint requests
// by grant type, assembling signed tokens from the claims projection and the
// key service.
type TokenService struct {
	clients domain.ClientRepository
	users   domain.UserRepository
	ledger  *CodeLedger
	keys    *KeyService
	preset  *preset.Preset
	issuer  string
	now     func() time.Time
}

// NewTokenService creates a new TokenService instance.
func NewTokenService(
	clients domain.ClientRepository,
	users domain.UserRepository,
	ledger *CodeLedger,
	keys *KeyService,
	p *preset.Preset,
	issuer string,
) *TokenService {
	return &TokenService{
		clients: clients,
		users:   users,
		ledger:  ledger,
		keys:    keys,
		preset:  p,
		issuer:  issuer,
		now:     time.Now,
	}
}

// AuthenticateClient validates client credentials. Any failure is
// invalid_client, regardless of grant type.
func (s *TokenService) AuthenticateClient(ctx context.Context, clientID, clientSecret string) (*domain.Client, error) {
	if clientID == "" {
		return nil, oautherr.NewInvalidClient("Client authentication required")
	}

	client, err := s.clients.GetClient(ctx, clientID)
	if err != nil {
		return nil, oautherr.NewInvalidClient("Invalid client credentials")
	}

	if subtle.ConstantTimeCompare([]byte(client.Secret), []byte(clientSecret)) != 1 {
		return nil, oautherr.NewInvalidClient("Invalid client credentials")
	}

	return client, nil
}

// Exchange authenticates the client and dispatches on grant type.
func (s *TokenService) Exchange(ctx context.Context, req *TokenRequest) (*TokenResponse, error) {
	client, err := s.AuthenticateClient(ctx, req.ClientID, req.ClientSecret)
	if err != nil {
		return nil, err
	}

	switch GrantType(req.GrantType) {
	case GrantTypeAuthorizationCode:
		return s.exchangeAuthorizationCode(ctx, client, req)
	case GrantTypeClientCredentials:
		return s.clientCredentials(ctx, client, req)
	default:
		return nil, oautherr.NewUnsupportedGrantType()
	}
}

func (s *TokenService) exchangeAuthorizationCode(ctx context.Context, client *domain.Client, req *TokenRequest) (*TokenResponse, error) {
	if req.Code == "" || req.RedirectURI == "" {
		return nil, oautherr.NewInvalidRequest("code and redirect_uri are required")
	}

	record, err := s.ledger.Redeem(ctx, req.Code, client.ID, req.RedirectURI)
	if err != nil {
		var oerr *oautherr.OAuth2Error
		if errors.As(err, &oerr) {
			return nil, oerr
		}
		return nil, oautherr.NewInvalidGrant("Invalid authorization code")
	}

	user, err := s.users.GetUserByID(ctx, record.UserID)
	if err != nil {
		log.Error().Err(err).Str("user_id", record.UserID).Msg("Code redeemed for missing user")
		return nil, oautherr.NewInvalidGrant("Invalid authorization code")
	}

	accessBag := map[string]any{
		"sub":       user.ID,
		"scope":     record.Scope,
		"client_id": client.ID,
	}
	if len(user.Roles) > 0 {
		accessBag["roles"] = user.Roles
	}
	if len(user.Groups) > 0 {
		accessBag["groups"] = user.Groups
	}
	if len(user.Permissions) > 0 {
		accessBag["permissions"] = user.Permissions
	}

	accessToken, err := s.mint(ProjectForPreset(accessBag, s.preset), map[string]any{
		"token_type": "access",
	}, s.preset.AccessTokenTTL)
	if err != nil {
		return nil, err
	}

	resp := &TokenResponse{
		AccessToken: accessToken,
		TokenType:   "Bearer",
		ExpiresIn:   int(s.preset.AccessTokenTTL.Seconds()),
		Scope:       record.Scope,
	}

	if ScopeContains(record.Scope, "openid") {
		idBag := ClaimsForScope(record.Scope, user)
		idBag["scope"] = record.Scope

		extra := map[string]any{"aud": client.ID}
		if record.Nonce != "" {
			extra["nonce"] = record.Nonce
		}

		idToken, err := s.mint(ProjectForPreset(idBag, s.preset), extra, s.preset.IDTokenTTL)
		if err != nil {
			return nil, err
		}
		resp.IDToken = idToken
	}

	return resp, nil
}

func (s *TokenService) clientCredentials(ctx context.Context, client *domain.Client, req *TokenRequest) (*TokenResponse, error) {
	if err := ValidateScope(req.Scope, client); err != nil {
		return nil, err
	}

	bag := map[string]any{
		"sub":       client.ID,
		"scope":     req.Scope,
		"client_id": client.ID,
	}

	accessToken, err := s.mint(ProjectForPreset(bag, s.preset), map[string]any{
		"token_type": "access",
	}, s.preset.AccessTokenTTL)
	if err != nil {
		return nil, err
	}

	return &TokenResponse{
		AccessToken: accessToken,
		TokenType:   "Bearer",
		ExpiresIn:   int(s.preset.AccessTokenTTL.Seconds()),
		Scope:       req.Scope,
	}, nil
}

// mint signs a wire bag with the registered claims overlaid. iat and exp are
// derived from the same instant, so exp-iat is exactly the configured TTL.
func (s *TokenService) mint(bag, extra map[string]any, ttl time.Duration) (string, error) {
	now := s.now()

	claims := jwt.MapClaims{}
	for k, v := range bag {
		claims[k] = v
	}
	for k, v := range extra {
		claims[k] = v
	}
	claims["iss"] = s.issuer
	claims["iat"] = now.Unix()
	claims["exp"] = now.Add(ttl).Unix()
	claims["jti"] = uuid.NewString()

	signed, err := s.keys.Sign(claims)
	if err != nil {
		log.Error().Err(err).Msg("Failed to sign token")
		return "", oautherr.NewServerError("Failed to sign token")
	}

	return signed, nil
}
