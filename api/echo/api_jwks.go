package echo

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// JWKSHandler serves the public key set.
func (oa *OAuth2API) JWKSHandler(c echo.Context) error {
	return c.JSON(http.StatusOK, oa.keys.JWKS())
}

// OpenIDConfigurationHandler serves the preset-dependent discovery document.
func (oa *OAuth2API) OpenIDConfigurationHandler(c echo.Context) error {
	return c.JSON(http.StatusOK, oa.config)
}
