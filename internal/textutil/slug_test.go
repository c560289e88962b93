package textutil

import "testing"

func TestSlug(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain", "general", "general"},
		{"spaces", "Game Night", "Game_Night"},
		{"collapse runs", "a  &&  b", "a_b"},
		{"literal underscores collapse", "a__b", "a_b"},
		{"trim edges", "  !voice!  ", "voice"},
		{"keeps dots and dashes", "my-server.v2", "my-server.v2"},
		{"empty", "", "unknown"},
		{"all symbols", "!!!", "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Slug(tt.input); got != tt.want {
				t.Errorf("Slug(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
