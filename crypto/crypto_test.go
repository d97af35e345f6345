package crypto

import (
	"crypto/rand"
	"encoding/base64"
	"strings"
	"testing"
)

func testKey(t *testing.T) string {
	t.Helper()
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		t.Fatal(err)
	}
	return base64.StdEncoding.EncodeToString(key)
}

func TestNewCipherKeyValidation(t *testing.T) {
	if _, err := NewCipher(""); err == nil {
		t.Error("empty key accepted")
	}
	if _, err := NewCipher("not-base64!!"); err == nil {
		t.Error("malformed base64 key accepted")
	}
	short := base64.StdEncoding.EncodeToString([]byte("too short"))
	if _, err := NewCipher(short); err == nil {
		t.Error("short key accepted")
	}
	if _, err := NewCipher(testKey(t)); err != nil {
		t.Errorf("valid key rejected: %v", err)
	}
}

func TestRoundTrip(t *testing.T) {
	c, err := NewCipher(testKey(t))
	if err != nil {
		t.Fatal(err)
	}
	for _, plaintext := range []string{"access-token-abc123", "x", strings.Repeat("long", 1000)} {
		sealed, err := c.EncryptString(plaintext)
		if err != nil {
			t.Fatal(err)
		}
		if sealed == plaintext {
			t.Error("ciphertext equals plaintext")
		}
		got, err := c.DecryptString(sealed)
		if err != nil {
			t.Fatal(err)
		}
		if got != plaintext {
			t.Errorf("round trip = %q, want %q", got, plaintext)
		}
	}
}

func TestEmptyStringPassesThrough(t *testing.T) {
	c, err := NewCipher(testKey(t))
	if err != nil {
		t.Fatal(err)
	}
	sealed, err := c.EncryptString("")
	if err != nil || sealed != "" {
		t.Errorf("EncryptString(\"\") = (%q, %v), want (\"\", nil)", sealed, err)
	}
	got, err := c.DecryptString("")
	if err != nil || got != "" {
		t.Errorf("DecryptString(\"\") = (%q, %v), want (\"\", nil)", got, err)
	}
}

func TestNonceUniqueness(t *testing.T) {
	c, err := NewCipher(testKey(t))
	if err != nil {
		t.Fatal(err)
	}
	a, _ := c.EncryptString("same plaintext")
	b, _ := c.EncryptString("same plaintext")
	if a == b {
		t.Error("two encryptions of the same plaintext produced identical ciphertexts")
	}
}

func TestTamperDetection(t *testing.T) {
	c, err := NewCipher(testKey(t))
	if err != nil {
		t.Fatal(err)
	}
	sealed, err := c.EncryptString("secret")
	if err != nil {
		t.Fatal(err)
	}
	raw, _ := base64.StdEncoding.DecodeString(sealed)
	raw[len(raw)-1] ^= 0xff
	if _, err := c.DecryptString(base64.StdEncoding.EncodeToString(raw)); err == nil {
		t.Error("tampered ciphertext decrypted without error")
	}
}

func TestDecryptWrongKey(t *testing.T) {
	c1, _ := NewCipher(testKey(t))
	c2, _ := NewCipher(testKey(t))
	sealed, err := c1.EncryptString("secret")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c2.DecryptString(sealed); err == nil {
		t.Error("ciphertext decrypted under a different key")
	}
}

func TestDecryptGarbage(t *testing.T) {
	c, _ := NewCipher(testKey(t))
	if _, err := c.DecryptString("!!not base64!!"); err == nil {
		t.Error("non-base64 input accepted")
	}
	if _, err := c.DecryptString(base64.StdEncoding.EncodeToString([]byte("tiny"))); err == nil {
		t.Error("too-short ciphertext accepted")
	}
}
