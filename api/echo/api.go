// Package echo wires the authorization server onto an echo HTTP router.
package echo

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"go.pilab.hu/mockauth"
	"go.pilab.hu/mockauth/domain"
	oautherr "go.pilab.hu/mockauth/errors"
	"go.pilab.hu/mockauth/preset"
)

const sessionCookieName = "mockauth_session"

// OAuth2API struct to hold dependencies.
type OAuth2API struct {
	flow     *mockauth.FlowService
	tokens   *mockauth.TokenService
	keys     *mockauth.KeyService
	clients  domain.ClientRepository
	users    domain.UserRepository
	preset   *preset.Preset
	config   *mockauth.OpenIDConfiguration
	renderer ChallengeRenderer
}

// NewOAuth2API initializes the OAuth2 API.
func NewOAuth2API(
	flow *mockauth.FlowService,
	tokens *mockauth.TokenService,
	keys *mockauth.KeyService,
	clients domain.ClientRepository,
	users domain.UserRepository,
	p *preset.Preset,
	config *mockauth.OpenIDConfiguration,
) *OAuth2API {
	return &OAuth2API{
		flow:     flow,
		tokens:   tokens,
		keys:     keys,
		clients:  clients,
		users:    users,
		preset:   p,
		config:   config,
		renderer: NewHTMLChallengeRenderer(),
	}
}

// RegisterRoutes registers the OAuth2 routes.
func (oa *OAuth2API) RegisterRoutes(e *echo.Echo) {
	e.GET("/authorize", oa.AuthorizeHandler)
	e.POST("/authorize", oa.LoginHandler)
	e.POST("/token", oa.TokenHandler)
	e.POST("/register", oa.RegisterHandler)
	e.GET("/userinfo", oa.UserInfoHandler)

	e.GET("/.well-known/openid-configuration", oa.OpenIDConfigurationHandler)
	e.GET("/.well-known/jwks.json", oa.JWKSHandler)

	e.GET("/health/live", oa.HealthHandler)
	e.GET("/health/ready", oa.HealthHandler)
}

func authorizeRequestFromQuery(c echo.Context) *mockauth.AuthorizeRequest {
	return &mockauth.AuthorizeRequest{
		ClientID:     c.QueryParam("client_id"),
		RedirectURI:  c.QueryParam("redirect_uri"),
		ResponseType: c.QueryParam("response_type"),
		Scope:        c.QueryParam("scope"),
		State:        c.QueryParam("state"),
		Nonce:        c.QueryParam("nonce"),
	}
}

func authorizeRequestFromForm(c echo.Context) *mockauth.AuthorizeRequest {
	return &mockauth.AuthorizeRequest{
		ClientID:     c.FormValue("client_id"),
		RedirectURI:  c.FormValue("redirect_uri"),
		ResponseType: "code",
		Scope:        c.FormValue("scope"),
		State:        c.FormValue("state"),
		Nonce:        c.FormValue("nonce"),
	}
}

// writeOAuthError renders an error in the RFC 6749 taxonomy. Unexpected
// failures collapse into server_error so nothing internal leaks.
func writeOAuthError(c echo.Context, err error) error {
	if oerr, ok := err.(*oautherr.OAuth2Error); ok {
		return c.JSON(oerr.StatusCode(), oerr)
	}
	log.Error().Err(err).Msg("Unexpected error handling OAuth request")
	return c.JSON(http.StatusInternalServerError, oautherr.NewServerError("Internal server error"))
}

// AuthorizeHandler handles GET /authorize. Protocol-level failures are
// returned directly; a well-formed request either proceeds straight to code
// issuance (valid session) or renders the credential challenge.
func (oa *OAuth2API) AuthorizeHandler(c echo.Context) error {
	req := authorizeRequestFromQuery(c)

	if _, err := oa.flow.ValidateAuthorizeRequest(c.Request().Context(), req); err != nil {
		return writeOAuthError(c, err)
	}

	if cookie, err := c.Cookie(sessionCookieName); err == nil {
		if session, ok := oa.flow.Sessions().Get(cookie.Value); ok {
			code, err := oa.flow.IssueForSession(c.Request().Context(), session, req)
			if err != nil {
				return writeOAuthError(c, err)
			}
			return oa.redirectWithCode(c, req, code.Code)
		}
	}

	return oa.renderer.RenderChallenge(c, req, "")
}

// LoginHandler handles POST /authorize: the credential challenge submission.
// Credential failures re-render the challenge with a generic message; only
// protocol failures use the RFC error taxonomy.
func (oa *OAuth2API) LoginHandler(c echo.Context) error {
	req := authorizeRequestFromForm(c)

	if _, err := oa.flow.ValidateAuthorizeRequest(c.Request().Context(), req); err != nil {
		return writeOAuthError(c, err)
	}

	user, err := oa.flow.Authenticate(c.Request().Context(), c.FormValue("username"), c.FormValue("password"))
	if err != nil {
		return oa.renderer.RenderChallenge(c, req, "Invalid username or password")
	}

	code, session, err := oa.flow.CompleteAuthorization(c.Request().Context(), user.ID, req)
	if err != nil {
		return writeOAuthError(c, err)
	}

	c.SetCookie(&http.Cookie{
		Name:     sessionCookieName,
		Value:    session.ID,
		Path:     "/",
		Expires:  session.ExpiresAt,
		HttpOnly: true,
	})

	return oa.redirectWithCode(c, req, code.Code)
}

func (oa *OAuth2API) redirectWithCode(c echo.Context, req *mockauth.AuthorizeRequest, code string) error {
	location, err := mockauth.RedirectURL(req.RedirectURI, code, req.State)
	if err != nil {
		return writeOAuthError(c, err)
	}
	return c.Redirect(http.StatusFound, location)
}

// TokenHandler handles POST /token. Client credentials arrive either in a
// Basic authorization header or in the form body; Basic wins when both are
// present.
func (oa *OAuth2API) TokenHandler(c echo.Context) error {
	clientID, clientSecret, ok := c.Request().BasicAuth()
	if !ok {
		clientID = c.FormValue("client_id")
		clientSecret = c.FormValue("client_secret")
	}

	req := &mockauth.TokenRequest{
		GrantType:    c.FormValue("grant_type"),
		Code:         c.FormValue("code"),
		RedirectURI:  c.FormValue("redirect_uri"),
		Scope:        c.FormValue("scope"),
		ClientID:     clientID,
		ClientSecret: clientSecret,
	}

	resp, err := oa.tokens.Exchange(c.Request().Context(), req)
	if err != nil {
		return writeOAuthError(c, err)
	}

	return c.JSON(http.StatusOK, resp)
}

// registrationRequest is the dynamic client registration payload. Only the
// resulting client record matters here; HTTP-level metadata validation is
// out of scope.
type registrationRequest struct {
	ClientName   string   `json:"client_name"`
	RedirectURIs []string `json:"redirect_uris"`
	GrantTypes   []string `json:"grant_types"`
	Scope        string   `json:"scope"`
}

type registrationResponse struct {
	ClientID     string   `json:"client_id"`
	ClientSecret string   `json:"client_secret"`
	ClientName   string   `json:"client_name,omitempty"`
	RedirectURIs []string `json:"redirect_uris"`
	GrantTypes   []string `json:"grant_types,omitempty"`
	Scope        string   `json:"scope,omitempty"`
}

// RegisterHandler handles POST /register: dynamic client registration.
func (oa *OAuth2API) RegisterHandler(c echo.Context) error {
	var req registrationRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, oautherr.NewInvalidRequest("Malformed registration request"))
	}

	if len(req.RedirectURIs) == 0 {
		return c.JSON(http.StatusBadRequest, oautherr.NewInvalidRequest("redirect_uris must not be empty"))
	}

	client := mockauth.NewClientRecord(req.ClientName, req.RedirectURIs, req.GrantTypes, req.Scope)
	if err := oa.clients.CreateClient(c.Request().Context(), client); err != nil {
		log.Error().Err(err).Msg("Failed to register client")
		return c.JSON(http.StatusInternalServerError, oautherr.NewServerError("Failed to register client"))
	}

	return c.JSON(http.StatusCreated, registrationResponse{
		ClientID:     client.ID,
		ClientSecret: client.Secret,
		ClientName:   client.Name,
		RedirectURIs: client.RedirectURIs,
		GrantTypes:   client.GrantTypes,
		Scope:        strings.Join(client.Scopes, " "),
	})
}

// UserInfoHandler handles GET /userinfo. The bearer token is verified
// against the signing key; user claims are re-projected for the active
// preset.
func (oa *OAuth2API) UserInfoHandler(c echo.Context) error {
	authHeader := c.Request().Header.Get("Authorization")
	token, found := strings.CutPrefix(authHeader, "Bearer ")
	if !found || token == "" {
		return c.JSON(http.StatusUnauthorized, oautherr.NewInvalidRequest("Bearer token required"))
	}

	claims, err := oa.keys.Verify(token)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, &oautherr.OAuth2Error{
			Code:        "invalid_token",
			Description: "Token is invalid or expired",
		})
	}

	sub, _ := claims["sub"].(string)
	scope := oa.scopeFromClaims(claims)

	user, err := oa.users.GetUserByID(c.Request().Context(), sub)
	if err != nil {
		// Client-credentials tokens have no user behind them.
		return c.JSON(http.StatusOK, map[string]any{"sub": sub})
	}

	bag := mockauth.ClaimsForScope(scope, user)
	bag["scope"] = scope

	return c.JSON(http.StatusOK, mockauth.ProjectForPreset(bag, oa.preset))
}

// scopeFromClaims recovers the granted scope from a projected token,
// whatever shape the preset encoded it in.
func (oa *OAuth2API) scopeFromClaims(claims map[string]any) string {
	switch v := claims[oa.preset.ScopeClaim].(type) {
	case string:
		return v
	case []any:
		tokens := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				tokens = append(tokens, s)
			}
		}
		return strings.Join(tokens, " ")
	default:
		return ""
	}
}

// HealthHandler reports liveness/readiness.
func (oa *OAuth2API) HealthHandler(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
