// Package gateway is an HTTP gateway for credential based authentication. It
// fronts an identity provider collaborator and shapes the HTTP surface around
// it: register, login, email verification, and session introspection.
//
// Request pipeline:
//   - SessionResolver runs on every request and resolves the caller's session
//     from the inbound headers. It never blocks a request: resolution failures
//     are swallowed (counted for operators) and the caller continues as
//     anonymous. Authorization is each handler's own concern.
//   - Handlers validate input declaratively before any provider call, invoke
//     a single provider capability, and either forward the provider's raw
//     response verbatim (cookies included) or translate a provider domain
//     error into its carried status plus a {"message": ...} body.
//   - Anything the provider did not explicitly raise propagates to the
//     framework's fault boundary and answers with a generic 5xx.
//
// The provider/credentials subpackage ships a bun backed provider with
// password hashing, signed verification tokens, and opaque server side
// sessions. Substitute any IdentityProvider implementation for testing or to
// front a remote service.
package gateway
