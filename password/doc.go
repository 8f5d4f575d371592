// Package password implements password hashing and verification with Argon2id.
//
// # Output format
//
// Hashes are encoded in PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// Hashes produced by the earlier service (bcrypt, $2a$/$2b$/$2y$) still
// verify. [Argon2.NeedsUpgrade] reports true for them and for argon2 hashes
// built with weaker parameters, so the caller can rehash after a successful
// login.
//
// [Pool] bounds concurrent derivations; request handlers should go through it
// rather than calling [Argon2] directly.
//
// # What this package must NOT do
//
//   - Store or retrieve passwords. Callers supply plaintext and receive hashes.
//   - Import any other astaauth package.
//   - Log plaintext passwords.
package password
