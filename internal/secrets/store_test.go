package secrets

import (
	"bytes"
	"testing"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	s := NewStore([]byte("test-master-secret-do-not-use-in-prod"))

	cred, err := s.Encrypt("shard-2026-01", []byte("shard_user"), []byte("hunter2"))
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if bytes.Contains(cred.User, []byte("shard_user")) {
		t.Fatal("encrypted user must not contain the plaintext")
	}

	user, password, err := s.Decrypt(cred)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if string(user) != "shard_user" || string(password) != "hunter2" {
		t.Fatalf("user=%q password=%q, want shard_user/hunter2", user, password)
	}
}

func TestDecryptWithWrongLabelFails(t *testing.T) {
	s := NewStore([]byte("test-master-secret-do-not-use-in-prod"))

	cred, err := s.Encrypt("shard-a", []byte("u"), []byte("p"))
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	cred.Label = "shard-b"

	if _, _, err := s.Decrypt(cred); err == nil {
		t.Fatal("expected decrypt under the wrong label to fail authentication")
	}
}

func TestCipherIsCachedPerLabel(t *testing.T) {
	s := NewStore([]byte("another-master-secret-value"))

	if _, err := s.cipherFor("ns-1"); err != nil {
		t.Fatalf("cipherFor: %v", err)
	}
	c1 := s.ciphers["ns-1"]

	if _, err := s.cipherFor("ns-1"); err != nil {
		t.Fatalf("cipherFor: %v", err)
	}
	if s.ciphers["ns-1"] != c1 {
		t.Fatal("expected the same cached cipher instance on second call")
	}
}

func TestDifferentLabelsDeriveDifferentCiphers(t *testing.T) {
	s := NewStore([]byte("another-master-secret-value"))

	credA, err := s.Encrypt("ns-a", []byte("u"), []byte("p"))
	if err != nil {
		t.Fatalf("Encrypt ns-a: %v", err)
	}
	credA.Label = "ns-b"
	if _, _, err := s.Decrypt(credA); err == nil {
		t.Fatal("expected cross-label decryption to fail")
	}
}
