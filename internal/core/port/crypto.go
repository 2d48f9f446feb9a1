package port

// PasswordHasher derives and verifies password hashes.
type PasswordHasher interface {
	Hash(password string) (string, error)
	// Verify reports whether the password matches the encoded hash. A
	// malformed hash is an error; a clean mismatch is (false, nil).
	Verify(password, encoded string) (bool, error)
}

// PasswordValidator enforces the password policy on new passwords.
type PasswordValidator interface {
	Validate(password string) error
}
