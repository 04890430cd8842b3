// Package auth authenticates callers and maps them to Groundwork users.
//
// Credentials live with the OpenID Connect provider. A request carries the
// provider's ID token as a bearer token; OIDCAuthenticator verifies it and the
// claims are bound to a users row by subject. When a client secret and redirect
// URL are configured the package also runs the browser sign-in code exchange.
//
// CachedDirectory keeps recently seen users in an expiring LRU so that most
// requests resolve their caller without a database write.
package auth
