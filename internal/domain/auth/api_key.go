package auth

// Authenticator guards the mutating HTTP endpoints with a single operator
// key, hashed once at construction with Argon2id so the configured
// plaintext never lingers in memory longer than startup.
type Authenticator struct {
	hash string
}

// NewAuthenticator hashes rawAdminKey and returns an Authenticator. A zero
// value Authenticator (or one built from an empty key) reports every
// request as authorized, via Enabled(). Auth on the mutating endpoints is
// opt-in.
func NewAuthenticator(rawAdminKey string) (*Authenticator, error) {
	if rawAdminKey == "" {
		return &Authenticator{}, nil
	}
	hash, err := HashKeyArgon2id(rawAdminKey)
	if err != nil {
		return nil, err
	}
	return &Authenticator{hash: hash}, nil
}

// Enabled reports whether an admin key was configured.
func (a *Authenticator) Enabled() bool {
	return a.hash != ""
}

// Authenticate reports whether candidate matches the configured admin key.
// When no key is configured, every candidate is authorized.
func (a *Authenticator) Authenticate(candidate string) bool {
	if !a.Enabled() {
		return true
	}
	match, err := VerifyKey(candidate, a.hash)
	return err == nil && match
}
