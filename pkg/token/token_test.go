package token

import (
	"strings"
	"testing"
)

func TestGenerate(t *testing.T) {
	tok, err := Generate()
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	if len(tok) != Length {
		t.Errorf("Generate() length = %d, want %d", len(tok), Length)
	}

	if !IsWellFormed(tok) {
		t.Errorf("Generate() returned malformed token %q", tok)
	}

	if strings.ToLower(tok) != tok {
		t.Errorf("Generate() should be lowercase, got %q", tok)
	}
}

func TestGenerate_Uniqueness(t *testing.T) {
	tokens := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		tok, err := Generate()
		if err != nil {
			t.Fatalf("Generate() error = %v", err)
		}
		if tokens[tok] {
			t.Errorf("Generate() produced duplicate token: %s", tok)
		}
		tokens[tok] = true
	}
}

func TestIsWellFormed(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  bool
	}{
		{"v4 uuid", "9b2f4e1c-3d5a-4c8b-9f7e-1a2b3c4d5e6f", true},
		{"v1 uuid", "9b2f4e1c-3d5a-1c8b-9f7e-1a2b3c4d5e6f", false},
		{"too short", "9b2f", false},
		{"not hex", "zzzzzzzz-3d5a-4c8b-9f7e-1a2b3c4d5e6f", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsWellFormed(tt.input); got != tt.want {
				t.Errorf("IsWellFormed(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestPath(t *testing.T) {
	tests := []struct {
		name    string
		token   string
		want    string
		wantErr bool
	}{
		{"uuid", "ab12cd34-0000-4000-8000-000000000000", "ab/12/ab12cd34-0000-4000-8000-000000000000", false},
		{"exactly prefix", "ab12", "ab/12/ab12", false},
		{"arbitrary", "hello-world", "he/ll/hello-world", false},
		{"too short", "abc", "", true},
		{"empty", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Path(tt.token)
			if tt.wantErr {
				if err != ErrTooShort {
					t.Fatalf("Path(%q) error = %v, want ErrTooShort", tt.token, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Path(%q) error = %v", tt.token, err)
			}
			if got != tt.want {
				t.Errorf("Path(%q) = %q, want %q", tt.token, got, tt.want)
			}
		})
	}
}

func TestPath_Deterministic(t *testing.T) {
	tok, err := Generate()
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	p1, err := Path(tok)
	if err != nil {
		t.Fatalf("Path() error = %v", err)
	}
	p2, _ := Path(tok)

	if p1 != p2 {
		t.Errorf("Path() not deterministic: %q != %q", p1, p2)
	}
	if !strings.HasSuffix(p1, "/"+tok) {
		t.Errorf("Path() = %q, want suffix /%s", p1, tok)
	}
}

func TestMustPath_Panics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("MustPath() should panic on short token")
		}
	}()
	MustPath("ab")
}

func TestHash(t *testing.T) {
	hash := Hash("test-token-12345")

	if len(hash) != 64 {
		t.Errorf("Hash() length = %d, want 64", len(hash))
	}

	if hash != Hash("test-token-12345") {
		t.Error("Hash() is not deterministic")
	}

	if hash == Hash("test-token-12346") {
		t.Error("Hash() produced same hash for different inputs")
	}
}

func TestFingerprint(t *testing.T) {
	tok := "9b2f4e1c-3d5a-4c8b-9f7e-1a2b3c4d5e6f"
	fp := Fingerprint(tok)

	if !strings.HasPrefix(fp, "fp_") {
		t.Errorf("Fingerprint() = %q, want fp_ prefix", fp)
	}
	if len(fp) != 3+FingerprintLength {
		t.Errorf("Fingerprint() length = %d, want %d", len(fp), 3+FingerprintLength)
	}
	if strings.Contains(fp, tok[:8]) {
		t.Error("Fingerprint() leaks token characters")
	}
}

func BenchmarkGenerate(b *testing.B) {
	for i := 0; i < b.N; i++ {
		Generate()
	}
}

func BenchmarkPath(b *testing.B) {
	tok := "9b2f4e1c-3d5a-4c8b-9f7e-1a2b3c4d5e6f"
	for i := 0; i < b.N; i++ {
		Path(tok)
	}
}
