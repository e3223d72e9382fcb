package crypto

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

// testKey returns a valid 32-byte key for use in tests.
func testKey() []byte {
	return bytes.Repeat([]byte("k"), 32)
}

func TestNewTokenCipher(t *testing.T) {
	t.Run("valid 32-byte key", func(t *testing.T) {
		tc, err := NewTokenCipher(testKey())
		if err != nil {
			t.Fatalf("NewTokenCipher() unexpected error: %v", err)
		}
		if tc == nil {
			t.Fatal("NewTokenCipher() returned nil cipher")
		}
	})

	tests := []struct {
		name   string
		keyLen int
	}{
		{"too short (16 bytes)", 16},
		{"too long (64 bytes)", 64},
		{"empty key", 0},
		{"31 bytes", 31},
		{"33 bytes", 33},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewTokenCipher(make([]byte, tt.keyLen))
			if !errors.Is(err, ErrKeyLengthInvalid) {
				t.Errorf("NewTokenCipher(len=%d) error = %v, want %v", tt.keyLen, err, ErrKeyLengthInvalid)
			}
		})
	}
}

func TestNewTokenCipherIsolatesKey(t *testing.T) {
	key := testKey()
	tc, err := NewTokenCipher(key)
	if err != nil {
		t.Fatal(err)
	}
	sealed, err := tc.Seal("bearer")
	if err != nil {
		t.Fatal(err)
	}

	for i := range key {
		key[i] = 0
	}
	got, err := tc.Open(sealed)
	if err != nil {
		t.Fatalf("Open() after caller zeroed key: %v", err)
	}
	if got != "bearer" {
		t.Errorf("Open() = %q, want %q", got, "bearer")
	}
}

func TestDeriveKey(t *testing.T) {
	a, err := DeriveKey("secret", PurposeCSRF)
	if err != nil {
		t.Fatal(err)
	}
	if len(a) != KeySize {
		t.Fatalf("DeriveKey() len = %d, want %d", len(a), KeySize)
	}

	again, _ := DeriveKey("secret", PurposeCSRF)
	if !bytes.Equal(a, again) {
		t.Error("DeriveKey() is not deterministic")
	}

	other, _ := DeriveKey("secret", PurposeSessionToken)
	if bytes.Equal(a, other) {
		t.Error("different purposes produced the same key")
	}

	if _, err := DeriveKey("", PurposeCSRF); !errors.Is(err, ErrEmptySecret) {
		t.Errorf("DeriveKey(\"\") error = %v, want %v", err, ErrEmptySecret)
	}
}

func TestDeriveTokenCipher(t *testing.T) {
	tc1, err := DeriveTokenCipher("secret-one")
	if err != nil {
		t.Fatal(err)
	}
	tc2, _ := DeriveTokenCipher("secret-one")
	tc3, _ := DeriveTokenCipher("secret-two")

	sealed, _ := tc1.Seal("token")
	if got, err := tc2.Open(sealed); err != nil || got != "token" {
		t.Errorf("same secret: Open() = %q, %v", got, err)
	}
	if _, err := tc3.Open(sealed); !errors.Is(err, ErrDecryptionFailed) {
		t.Errorf("other secret: Open() error = %v, want %v", err, ErrDecryptionFailed)
	}

	if _, err := DeriveTokenCipher(""); !errors.Is(err, ErrEmptySecret) {
		t.Errorf("DeriveTokenCipher(\"\") error = %v", err)
	}
}

func TestSealAndOpen(t *testing.T) {
	tc, _ := NewTokenCipher(testKey())

	for _, plaintext := range []string{
		"a",
		"eyJhbGciOiJIUzI1NiJ9.eyJzdWIiOiJ1MSJ9.c2ln",
		strings.Repeat("x", 4096),
		"ünïcødé",
	} {
		sealed, err := tc.Seal(plaintext)
		if err != nil {
			t.Fatalf("Seal() error: %v", err)
		}
		if sealed == plaintext {
			t.Fatal("Seal() returned plaintext")
		}
		got, err := tc.Open(sealed)
		if err != nil {
			t.Fatalf("Open() error: %v", err)
		}
		if got != plaintext {
			t.Errorf("round trip = %q, want %q", got, plaintext)
		}
	}
}

func TestSealEmptyString(t *testing.T) {
	tc, _ := NewTokenCipher(testKey())

	sealed, err := tc.Seal("")
	if err != nil || sealed != "" {
		t.Errorf("Seal(\"\") = %q, %v; want empty", sealed, err)
	}
	opened, err := tc.Open("")
	if err != nil || opened != "" {
		t.Errorf("Open(\"\") = %q, %v; want empty", opened, err)
	}
}

func TestSealNonDeterministic(t *testing.T) {
	tc, _ := NewTokenCipher(testKey())
	a, _ := tc.Seal("same")
	b, _ := tc.Seal("same")
	if a == b {
		t.Error("Seal() produced identical ciphertexts for the same plaintext")
	}
}

func TestOpenErrors(t *testing.T) {
	tc, _ := NewTokenCipher(testKey())
	sealed, _ := tc.Seal("token")
	tampered := []byte(sealed)
	tampered[len(tampered)/2] ^= 1

	tests := []struct {
		name  string
		input string
		want  error
	}{
		{"not base64", "!!!not-base64!!!", ErrCiphertextCorrupted},
		{"shorter than nonce", "AAAA", ErrCiphertextCorrupted},
		{"tampered", string(tampered), nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tc.Open(tt.input)
			if err == nil {
				t.Fatal("Open() expected error")
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Errorf("Open() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestGenerateKey(t *testing.T) {
	k1, err := GenerateKey()
	if err != nil {
		t.Fatal(err)
	}
	if len(k1) != KeySize {
		t.Errorf("GenerateKey() len = %d, want %d", len(k1), KeySize)
	}
	k2, _ := GenerateKey()
	if bytes.Equal(k1, k2) {
		t.Error("GenerateKey() produced identical keys")
	}
	if _, err := NewTokenCipher(k1); err != nil {
		t.Errorf("generated key rejected: %v", err)
	}
}
