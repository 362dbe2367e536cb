// Package jwt signs and verifies the HS256 tokens used for access and refresh
// credentials. Verification is pure: it consults no store and fails closed on
// any signature, structure or expiry problem.
package jwt
