package common

// DefaultSessionCookieName is the cookie carrying the signed session token.
const DefaultSessionCookieName = "session_id"

// AuthorizationHeaderName is the HTTP header inspected by Basic auth.
const AuthorizationHeaderName = "Authorization"
