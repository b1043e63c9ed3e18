package textutil

import "testing"

func TestLower(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"Sousou no Frieren", "sousou no frieren"},
		{"POKÉMON", "pokémon"},
		// decomposed e + combining acute
		{"Pokémon", "pokémon"},
	}
	for _, tt := range tests {
		if got := Lower(tt.in); got != tt.want {
			t.Errorf("Lower(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestRomanize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Frieren", "Frieren"},
		{"Pokémon", "Pokemon"},
		{"Kimetsu  no Yaiba ", "Kimetsu  no Yaiba "},
		{"Shingeki no Kyojin: Kanketsu-hen  Zenpen", "Shingeki no Kyojin: Kanketsu-hen  Zenpen"},
		{"Café  Terrace", "Cafe Terrace"},
	}
	for _, tt := range tests {
		if got := Romanize(tt.in); got != tt.want {
			t.Errorf("Romanize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestCollapseSpaces(t *testing.T) {
	if got := CollapseSpaces("  Re:Zero   kara  "); got != "Re:Zero kara" {
		t.Fatalf("CollapseSpaces = %q", got)
	}
}

func TestFileToken(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", "default"},
		{"searchIDs", "searchids"},
		{"user lists//2", "user_lists_2"},
		{"***", "default"},
		{"  .hidden-", "hidden"},
	}
	for _, tt := range tests {
		if got := FileToken(tt.in); got != tt.want {
			t.Errorf("FileToken(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
