package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// OAuthMetadata serves the RFC 8414 authorization server metadata
// document. It is a static description of this server's token surface;
// there is no authorization-code or consent flow behind it.
func OAuthMetadata(c echo.Context) error {
	scheme := c.Scheme()
	baseURL := scheme + "://" + c.Request().Host

	return c.JSON(http.StatusOK, echo.Map{
		"issuer":         baseURL,
		"token_endpoint": baseURL + "/auth/refresh",
		"grant_types_supported": []string{
			"password",
			"refresh_token",
		},
		"token_endpoint_auth_methods_supported": []string{
			"none",
		},
		"scopes_supported": []string{
			"openid",
			"profile",
			"email",
		},
		"revocation_endpoint": baseURL + "/auth/logout",
		"revocation_endpoint_auth_methods_supported": []string{
			"none",
		},
		"service_documentation": baseURL + "/docs",
		"ui_locales_supported":  []string{"en-US"},
	})
}
