package cli

import (
	"strings"
	"testing"
)

func TestLabels(t *testing.T) {
	s := NewStyles(DefaultTheme)
	user, assistant := s.Labels("User > ", "Assistant > ")
	for _, tt := range []struct{ got, text string }{
		{user, "User >"},
		{assistant, "Assistant >"},
	} {
		if !strings.Contains(tt.got, tt.text) {
			t.Errorf("label %q does not contain %q", tt.got, tt.text)
		}
		if !strings.HasSuffix(tt.got, " ") {
			t.Errorf("label %q lost its trailing space", tt.got)
		}
	}

	if u, _ := s.Labels("   ", ""); u != "   " {
		t.Errorf("blank label = %q", u)
	}
}

func TestRenderBanner(t *testing.T) {
	s := NewStyles(DefaultTheme)
	out := s.RenderBanner("IT support", "type exit to quit")
	if !strings.Contains(out, "IT support") || !strings.Contains(out, "type exit to quit") {
		t.Fatalf("banner = %q", out)
	}
	if lines := strings.Split(out, "\n"); len(lines) != 4 {
		t.Fatalf("banner has %d lines, want 4", len(lines))
	}
}
