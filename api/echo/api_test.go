package echo

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"go.pilab.hu/mockauth"
	"go.pilab.hu/mockauth/cache"
	"go.pilab.hu/mockauth/domain"
	"go.pilab.hu/mockauth/internal/auth"
	"go.pilab.hu/mockauth/internal/crypto"
	"go.pilab.hu/mockauth/preset"
)

const testIssuer = "http://localhost:3000"

func newTestServer(t *testing.T) (*echo.Echo, *OAuth2API) {
	t.Helper()

	clients := cache.NewMemoryClientStore()
	users := cache.NewMemoryUserStore()
	codes := cache.NewMemoryCodeStore()
	t.Cleanup(codes.Stop)

	hasher := auth.NewBcryptPasswordHasher(bcrypt.MinCost)
	hash, err := hasher.Hash("hunter2")
	require.NoError(t, err)
	require.NoError(t, users.CreateUser(context.Background(), &domain.User{
		ID:            "user-1",
		Username:      "alice",
		PasswordHash:  hash,
		Name:          "Alice Cooper",
		Email:         "alice@example.com",
		EmailVerified: true,
	}))

	key, err := crypto.GenerateRSAKey()
	require.NoError(t, err)
	keys, err := mockauth.NewKeyService(key, "RS256")
	require.NoError(t, err)

	p := preset.Default()
	guard := mockauth.NewLoginGuard(users)
	ledger := mockauth.NewCodeLedger(codes)
	sessions := mockauth.NewSessionStore(mockauth.SessionTTL)
	t.Cleanup(sessions.Stop)

	flow := mockauth.NewFlowService(clients, users, hasher, guard, ledger, sessions)
	tokens := mockauth.NewTokenService(clients, users, ledger, keys, p, testIssuer)

	api := NewOAuth2API(flow, tokens, keys, clients, users, p,
		mockauth.NewOpenIDConfiguration(testIssuer, p))

	e := echo.New()
	api.RegisterRoutes(e)
	return e, api
}

func registerClient(t *testing.T, e *echo.Echo) (clientID, clientSecret string) {
	t.Helper()

	body := `{"client_name":"test app","redirect_uris":["http://client.example/cb"]}`
	req := httptest.NewRequest(http.MethodPost, "/register", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp struct {
		ClientID     string `json:"client_id"`
		ClientSecret string `json:"client_secret"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.ClientID)
	require.NotEmpty(t, resp.ClientSecret)
	return resp.ClientID, resp.ClientSecret
}

func postForm(e *echo.Echo, path string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestAuthorizationCodeFlow(t *testing.T) {
	e, _ := newTestServer(t)
	clientID, clientSecret := registerClient(t, e)

	// The well-formed request renders the credential challenge.
	authorizeURL := "/authorize?" + url.Values{
		"client_id":     {clientID},
		"redirect_uri":  {"http://client.example/cb"},
		"response_type": {"code"},
		"scope":         {"openid profile email"},
		"state":         {"st-42"},
		"nonce":         {"n-42"},
	}.Encode()

	req := httptest.NewRequest(http.MethodGet, authorizeURL, nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `name="username"`)
	assert.Contains(t, rec.Body.String(), `value="st-42"`)

	// Submitting correct credentials redirects back with code and state.
	rec = postForm(e, "/authorize", url.Values{
		"client_id":    {clientID},
		"redirect_uri": {"http://client.example/cb"},
		"scope":        {"openid profile email"},
		"state":        {"st-42"},
		"nonce":        {"n-42"},
		"username":     {"alice"},
		"password":     {"hunter2"},
	})

	require.Equal(t, http.StatusFound, rec.Code, rec.Body.String())
	require.NotEmpty(t, rec.Header().Get("Set-Cookie"))

	location, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "client.example", location.Host)
	assert.Equal(t, "st-42", location.Query().Get("state"))
	code := location.Query().Get("code")
	require.NotEmpty(t, code)

	// The code exchanges for tokens exactly once.
	tokenForm := url.Values{
		"grant_type":    {"authorization_code"},
		"code":          {code},
		"redirect_uri":  {"http://client.example/cb"},
		"client_id":     {clientID},
		"client_secret": {clientSecret},
	}
	rec = postForm(e, "/token", tokenForm)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var tokenResp struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
		IDToken     string `json:"id_token"`
		Scope       string `json:"scope"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tokenResp))
	assert.Equal(t, "Bearer", tokenResp.TokenType)
	assert.Equal(t, "openid profile email", tokenResp.Scope)
	assert.NotEmpty(t, tokenResp.AccessToken)
	assert.NotEmpty(t, tokenResp.IDToken)

	// Replaying the consumed code is invalid_grant.
	rec = postForm(e, "/token", tokenForm)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid_grant")

	// The access token works against userinfo.
	req = httptest.NewRequest(http.MethodGet, "/userinfo", nil)
	req.Header.Set("Authorization", "Bearer "+tokenResp.AccessToken)
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var info map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &info))
	assert.Equal(t, "user-1", info["sub"])
	assert.Equal(t, "Alice Cooper", info["name"])
	assert.Equal(t, "alice@example.com", info["email"])
}

func TestAuthorize_SessionCookieSkipsChallenge(t *testing.T) {
	e, _ := newTestServer(t)
	clientID, _ := registerClient(t, e)

	rec := postForm(e, "/authorize", url.Values{
		"client_id":    {clientID},
		"redirect_uri": {"http://client.example/cb"},
		"scope":        {"openid"},
		"username":     {"alice"},
		"password":     {"hunter2"},
	})
	require.Equal(t, http.StatusFound, rec.Code)
	cookie := rec.Header().Get("Set-Cookie")
	require.NotEmpty(t, cookie)

	// A second authorization with the session cookie goes straight to the
	// redirect, no challenge.
	authorizeURL := "/authorize?" + url.Values{
		"client_id":     {clientID},
		"redirect_uri":  {"http://client.example/cb"},
		"response_type": {"code"},
		"scope":         {"openid"},
	}.Encode()
	req := httptest.NewRequest(http.MethodGet, authorizeURL, nil)
	req.Header.Set("Cookie", cookie)
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusFound, rec.Code)
	location, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	assert.NotEmpty(t, location.Query().Get("code"))
}

func TestAuthorize_ProtocolErrorIsJSON(t *testing.T) {
	e, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/authorize?client_id=nobody&redirect_uri=http://x/cb&response_type=code", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid_request")
}

func TestLogin_BadCredentialsRerendersChallenge(t *testing.T) {
	e, _ := newTestServer(t)
	clientID, _ := registerClient(t, e)

	rec := postForm(e, "/authorize", url.Values{
		"client_id":    {clientID},
		"redirect_uri": {"http://client.example/cb"},
		"scope":        {"openid"},
		"username":     {"alice"},
		"password":     {"wrong"},
	})

	// Same generic page for a wrong password, no redirect and no cookie.
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Invalid username or password")
	assert.Empty(t, rec.Header().Get("Set-Cookie"))
}

func TestToken_BasicAuthPreferred(t *testing.T) {
	e, _ := newTestServer(t)
	clientID, clientSecret := registerClient(t, e)

	form := url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {"bogus"},
		"client_secret": {"bogus"},
	}
	req := httptest.NewRequest(http.MethodPost, "/token", strings.NewReader(form.Encode()))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	req.SetBasicAuth(clientID, clientSecret)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestToken_InvalidClientIs401(t *testing.T) {
	e, _ := newTestServer(t)
	clientID, _ := registerClient(t, e)

	rec := postForm(e, "/token", url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {clientID},
		"client_secret": {"wrong"},
	})

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid_client")
}

func TestRegister_RequiresRedirectURIs(t *testing.T) {
	e, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/register", strings.NewReader(`{"client_name":"no uris"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid_request")
}

func TestUserInfo_RejectsBadToken(t *testing.T) {
	e, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/userinfo", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/userinfo", nil)
	req.Header.Set("Authorization", "Bearer not.a.token")
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid_token")
}

func TestDiscoveryAndJWKS(t *testing.T) {
	e, api := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/.well-known/openid-configuration", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var discovery map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &discovery))
	assert.Equal(t, testIssuer, discovery["issuer"])
	assert.Equal(t, testIssuer+"/token", discovery["token_endpoint"])
	assert.Equal(t, testIssuer+"/.well-known/jwks.json", discovery["jwks_uri"])

	req = httptest.NewRequest(http.MethodGet, "/.well-known/jwks.json", nil)
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var jwks struct {
		Keys []struct {
			Kid string `json:"kid"`
			Kty string `json:"kty"`
			Alg string `json:"alg"`
		} `json:"keys"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &jwks))
	require.Len(t, jwks.Keys, 1)
	assert.Equal(t, api.keys.KeyID(), jwks.Keys[0].Kid)
	assert.Equal(t, "RSA", jwks.Keys[0].Kty)
	assert.Equal(t, "RS256", jwks.Keys[0].Alg)
}

func TestHealthEndpoints(t *testing.T) {
	e, _ := newTestServer(t)

	for _, path := range []string{"/health/live", "/health/ready"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}
}
