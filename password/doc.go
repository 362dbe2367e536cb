// Package password hashes and verifies user passwords for the identity store.
//
// Two algorithms are available behind the [Hasher] interface:
//
//   - [Bcrypt], the default, at cost 12.
//   - [Argon2], encoding hashes in PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// Both report whether a stored hash was produced with weaker parameters
// through NeedsUpgrade. Password policy such as minimum length is enforced by
// the caller.
package password
