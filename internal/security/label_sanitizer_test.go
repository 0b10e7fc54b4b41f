package security

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestLabelSanitizer(t *testing.T) {
	s := NewLabelSanitizer()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"そのまま", "casual", "casual"},
		{"前後の空白", "  street  ", "street"},
		{"連続する空白", "smart \t casual", "smart casual"},
		{"タグを除去", "<b>shirt</b>", "shirt"},
		{"scriptを除去", "jacket<script>alert(1)</script>", "jacket"},
		{"記号を保持", "T-shirt & tank", "T-shirt & tank"},
		{"日本語", "オフィス カジュアル", "オフィス カジュアル"},
		{"空", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.Sanitize(tt.input); got != tt.want {
				t.Errorf("Sanitize(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestLabelSanitizer_Truncates(t *testing.T) {
	s := NewLabelSanitizer()
	got := s.Sanitize(strings.Repeat("あ", MaxLabelLength+10))
	if n := utf8.RuneCountInString(got); n != MaxLabelLength {
		t.Errorf("length = %d, want %d", n, MaxLabelLength)
	}
}

func TestLabelSanitizer_Idempotent(t *testing.T) {
	s := NewLabelSanitizer()
	for _, in := range []string{"<i>a</i> & b", "x  y", "plain"} {
		once := s.Sanitize(in)
		if twice := s.Sanitize(once); twice != once {
			t.Errorf("Sanitize(Sanitize(%q)) = %q, want %q", in, twice, once)
		}
	}
}
