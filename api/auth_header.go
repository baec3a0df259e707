package api

import (
	"errors"
	"net/http"
	"strings"
	"unsafe"

	"github.com/labstack/echo/v4"
)

var (
	errMissingAuthorization = errors.New("missing authorization header")
	errBadAuthorization     = errors.New("bad auth header")
)

const bearerScheme = "Bearer "

func bearerTokenFromHeader(header http.Header) ([]byte, error) {
	raw := header.Get(echo.HeaderAuthorization)
	if raw == "" {
		return nil, errMissingAuthorization
	}
	return bearerTokenFromString(raw)
}

// bearerTokenFromString extracts the JWT from an Authorization header value
// without copying it. The returned bytes alias the header string and must not
// be mutated.
func bearerTokenFromString(raw string) ([]byte, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, errMissingAuthorization
	}
	if len(trimmed) <= len(bearerScheme) || !strings.EqualFold(trimmed[:len(bearerScheme)], bearerScheme) {
		return nil, errBadAuthorization
	}
	token := trimmed[len(bearerScheme):]
	// A compact JWS is exactly three dot-separated segments.
	if strings.Count(token, ".") != 2 {
		return nil, errBadAuthorization
	}
	return readOnlyBytes(token), nil
}

func readOnlyBytes(s string) []byte {
	if s == "" {
		return nil
	}
	return unsafe.Slice(unsafe.StringData(s), len(s))
}

func readOnlyString(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	return unsafe.String(&b[0], len(b))
}
