package ingest

import "testing"

func TestSkippedPath(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"/index.php/it/supporto", false},
		{"/index.php/en/support", true},
		{"/index.php/es/soporte", true},
		{"/index.php/mx/soporte", true},
		{"/index.php/en-au/support", true},
		{"/store/kit-base", true},
		{"/", false},
		{"/faq", false},
	}
	for _, tt := range tests {
		if got := skippedPath(tt.path); got != tt.want {
			t.Errorf("skippedPath(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestSlugID(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/index.php/it/supporto", "index-php-it-supporto"},
		{"/faq", "faq"},
		{"/", "index"},
		{"", "index"},
		{"/guide/alexa?v=2", "guide-alexa-v=2"},
		{"/già/fatto", "gi--fatto"},
	}
	for _, tt := range tests {
		if got := slugID(tt.path); got != tt.want {
			t.Errorf("slugID(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}
