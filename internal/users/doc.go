// Package users holds the identity stores backing the rotord service. Both
// implement goRotate.IdentityProvider and goRotate.AccountCreator and store
// only password hashes produced by a password.Hasher.
package users
