package auth

import "testing"

func TestAuthenticatorAcceptsCorrectKey(t *testing.T) {
	t.Parallel()

	a, err := NewAuthenticator("s3cret-admin-key")
	if err != nil {
		t.Fatalf("NewAuthenticator: %v", err)
	}
	if !a.Authenticate("s3cret-admin-key") {
		t.Fatal("Authenticate() = false, want true for the configured key")
	}
}

func TestAuthenticatorRejectsWrongKey(t *testing.T) {
	t.Parallel()

	a, err := NewAuthenticator("s3cret-admin-key")
	if err != nil {
		t.Fatalf("NewAuthenticator: %v", err)
	}
	if a.Authenticate("guess") {
		t.Fatal("Authenticate() = true, want false for a wrong key")
	}
}

func TestAuthenticatorEmptyKeyDisablesAuth(t *testing.T) {
	t.Parallel()

	a, err := NewAuthenticator("")
	if err != nil {
		t.Fatalf("NewAuthenticator: %v", err)
	}
	if a.Enabled() {
		t.Fatal("Enabled() = true, want false for empty admin key")
	}
	if !a.Authenticate("literally-anything") {
		t.Fatal("Authenticate() = false, want true when auth is disabled")
	}
}

func TestHashKeyArgon2idRoundTrip(t *testing.T) {
	t.Parallel()

	hash, err := HashKeyArgon2id("rawvalue")
	if err != nil {
		t.Fatalf("HashKeyArgon2id: %v", err)
	}
	match, err := VerifyKey("rawvalue", hash)
	if err != nil {
		t.Fatalf("VerifyKey: %v", err)
	}
	if !match {
		t.Fatal("VerifyKey() = false, want true for the original value")
	}
	if match, _ = VerifyKey("wrongvalue", hash); match {
		t.Fatal("VerifyKey() = true, want false for a different value")
	}
}

func TestVerifyKeySHA256Prefixed(t *testing.T) {
	t.Parallel()

	stored := "sha256:" + HashKey("rawvalue")
	match, err := VerifyKey("rawvalue", stored)
	if err != nil {
		t.Fatalf("VerifyKey: %v", err)
	}
	if !match {
		t.Fatal("VerifyKey() = false, want true")
	}
}

func TestVerifyKeyLegacyBareHex(t *testing.T) {
	t.Parallel()

	stored := HashKey("rawvalue")
	match, err := VerifyKey("rawvalue", stored)
	if err != nil {
		t.Fatalf("VerifyKey: %v", err)
	}
	if !match {
		t.Fatal("VerifyKey() = false, want true for legacy bare hex")
	}
}

func TestVerifyKeyUnknownHashType(t *testing.T) {
	t.Parallel()

	_, err := VerifyKey("rawvalue", "not-a-recognized-hash")
	if err != ErrUnknownHashType {
		t.Fatalf("VerifyKey() error = %v, want ErrUnknownHashType", err)
	}
}

func TestDetectHashType(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"$argon2id$v=19$m=47104,t=1,p=1$c2FsdA$aGFzaA": "argon2id",
		"sha256:abc123":      "sha256",
		HashKey("anything"):  "sha256",
		"not-a-valid-format": "unknown",
	}

	for hash, want := range cases {
		if got := DetectHashType(hash); got != want {
			t.Errorf("DetectHashType(%q) = %q, want %q", hash, got, want)
		}
	}
}
