package codes

import (
	"encoding/base64"
	"testing"
)

func TestGenerateDownloadToken(t *testing.T) {
	tests := []struct {
		name      string
		cfg       Config
		wantBytes int
	}{
		{"default", DefaultConfig(), DownloadTokenByteLength},
		{"configured", Config{TokenByteLength: 48}, 48},
		{"too short falls back", Config{TokenByteLength: 4}, DownloadTokenByteLength},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tok, err := GenerateDownloadToken(tt.cfg)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			raw, err := base64.RawURLEncoding.DecodeString(tok)
			if err != nil {
				t.Fatalf("token is not URL-safe base64: %v", err)
			}
			if len(raw) != tt.wantBytes {
				t.Errorf("got %d random bytes, want %d", len(raw), tt.wantBytes)
			}
		})
	}
}

func TestGenerateTokensAreUnique(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		tok, err := GenerateURLSafeToken(16)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if seen[tok] {
			t.Fatalf("duplicate token %q", tok)
		}
		seen[tok] = true
	}
}

func TestInvalidLength(t *testing.T) {
	if _, err := GenerateSecureToken(0); err != ErrInvalidLength {
		t.Errorf("GenerateSecureToken(0) err = %v, want ErrInvalidLength", err)
	}
	if _, err := GenerateURLSafeToken(-1); err != ErrInvalidLength {
		t.Errorf("GenerateURLSafeToken(-1) err = %v, want ErrInvalidLength", err)
	}
}
