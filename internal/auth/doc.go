// Package auth issues and checks the bearer tokens guarding the REST API.
//
// Tokens are HS256 JWTs signed with security.jwt.secret and carry one of
// two roles: viewer (read-only) and operator (may rescan and write to
// boards). There is no account store; operators mint tokens with
// `boardsync token --role operator`.
package auth
