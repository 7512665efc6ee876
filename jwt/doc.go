// Package jwt reads and issues the JWT access tokens used by the to-do API.
//
// The client side only ever calls [Inspect]: it decodes claims WITHOUT
// verifying the signature, which is enough to learn a token's expiry and
// role but never enough to trust it. [Manager] signs and verifies tokens and
// backs the development API server.
package jwt
