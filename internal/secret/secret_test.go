package secret

import "testing"

func TestEncryptDecryptRoundTrip(t *testing.T) {
	cases := []string{
		"",
		"hello",
		"server=db;password=hunter2;",
		"unicode: héllo 世界",
	}
	for _, s := range cases {
		enc, err := Encrypt("master-key", s)
		if err != nil {
			t.Fatalf("encrypt(%q): %v", s, err)
		}
		if !IsEncrypted(enc) {
			t.Fatalf("expected %q to carry ENC: prefix", enc)
		}
		got, err := Decrypt("master-key", enc)
		if err != nil {
			t.Fatalf("decrypt(%q): %v", enc, err)
		}
		if got != s {
			t.Fatalf("round trip mismatch: want %q got %q", s, got)
		}
	}
}

func TestDecryptWrongKeyFails(t *testing.T) {
	enc, err := Encrypt("right-key", "secret-value")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if _, err := Decrypt("wrong-key", enc); err == nil {
		t.Fatalf("expected decrypt with wrong key to fail")
	}
}

func TestIsEncrypted(t *testing.T) {
	if IsEncrypted("plain-value") {
		t.Fatalf("expected plain value to not be flagged as encrypted")
	}
	if !IsEncrypted("ENC:abc") {
		t.Fatalf("expected ENC:-prefixed value to be flagged as encrypted")
	}
}
