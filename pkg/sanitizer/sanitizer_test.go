package sanitizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"already E.164", "+16502530000", "+16502530000"},
		{"us formatting", "+1 (650) 253-0000", "+16502530000"},
		{"ethiopian mobile with spaces", "+251 91 123 4567", "+251911234567"},
		{"local ethiopian number", "0911234567", "+251911234567"},
		{"padded", "  +16502530000  ", "+16502530000"},
		{"empty", "", ""},
		{"whitespace", "   ", ""},
		{"letters", "call me", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizePhone(tt.input)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got, NormalizePhone(got), "idempotent")
		})
	}
}

func TestTrimAndNormalize(t *testing.T) {
	assert.Equal(t, "King Suite", TrimAndNormalize("  King \t\n Suite "))
	assert.Equal(t, "", TrimAndNormalize(" \t "))
	assert.Equal(t, "Abebe", NormalizeName("Abebe"))
}

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "guest@example.com", NormalizeEmail("  Guest@Example.COM "))
}

func TestNormalizeAmenities(t *testing.T) {
	got := NormalizeAmenities([]string{"Free WiFi", " free  wifi ", "", "Pool", "pool", "  "})
	assert.Equal(t, []string{"free wifi", "pool"}, got)

	assert.Equal(t, []string{}, NormalizeAmenities(nil))
}

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"http://CDN.Example.com/Rooms/King.JPG", "https://cdn.example.com/Rooms/King.JPG"},
		{"cdn.example.com/rooms/", "https://cdn.example.com/rooms"},
		{"https://cdn.example.com/a.png?utm_source=x&w=400", "https://cdn.example.com/a.png?w=400"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := NormalizeURL(tt.input)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got, NormalizeURL(got))
		})
	}
}
