package site

import "testing"

func TestNormalize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  Site
	}{
		{"generic tld subdomains", "a.b.example.com", "example.com"},
		{"country code suffix", "example.co.uk", "example.co.uk"},
		{"country code with path", "sub.example.co.uk/path", "example.co.uk"},
		{"single label fallback", "localhost", "localhost"},
		{"short second label fallback", "a.io", "a.io"},
		{"https scheme", "https://www.rust-lang.org/learn", "rust-lang.org"},
		{"http scheme", "http://docs.example.org?q=1", "example.org"},
		{"fragment", "blog.example.net#top", "example.net"},
		{"query before path", "example.com?next=/a/b", "example.com"},
		{"three letter second label", "www.bbc.com", "www.bbc.com"},
		{"port kept", "www.example.com:8080/x", "example.com:8080"},
		{"case kept", "WWW.Example.COM", "Example.COM"},
		{"empty", "", ""},
		{"scheme only", "https://", ""},
		{"repeated http scheme", "http://http://www.example.com/", "example.com"},
		{"repeated https scheme", "https://https://a.b.example.com", "example.com"},
		{"https then http", "https://http://www.example.com", "example.com"},
		{"two labels long", "example.com", "example.com"},
		{"trailing dot", "www.example.com.", "example.com."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Normalize(tt.input); got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	inputs := []string{
		"https://a.b.example.com/x",
		"sub.example.co.uk",
		"localhost",
		"a.io",
	}

	for _, in := range inputs {
		once := Normalize(in)
		twice := Normalize(string(once))
		if once != twice {
			t.Errorf("Normalize not idempotent for %q: %q then %q", in, once, twice)
		}
	}
}

func TestURL(t *testing.T) {
	tests := []struct {
		site   Site
		scheme string
		want   string
	}{
		{"example.com", "https", "https://example.com/"},
		{"example.com", "http", "http://example.com/"},
		{"example.com", "", "https://example.com/"},
		{"http://example.com/a", "https", "http://example.com/a"},
	}

	for _, tt := range tests {
		if got := URL(tt.site, tt.scheme); got != tt.want {
			t.Errorf("URL(%q, %q) = %q, want %q", tt.site, tt.scheme, got, tt.want)
		}
	}
}
