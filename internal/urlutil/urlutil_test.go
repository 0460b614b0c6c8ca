package urlutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"bare domain", "example.com", "https://example.com/"},
		{"strips www", "https://www.Example.COM/About", "https://example.com/About"},
		{"strips default https port", "https://example.com:443/x", "https://example.com/x"},
		{"strips default http port", "http://example.com:80/x", "http://example.com/x"},
		{"keeps custom port", "http://example.com:8080/x", "http://example.com:8080/x"},
		{"drops query and fragment", "https://example.com/page?a=1#top", "https://example.com/page"},
		{"empty path becomes slash", "https://example.com", "https://example.com/"},
		{"trailing slash trimmed", "https://example.com/blog/", "https://example.com/blog"},
		{"root slash preserved", "https://example.com/", "https://example.com/"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := Normalize(tc.in)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	t.Parallel()

	inputs := []string{
		"example.com",
		"https://www.example.com:443/blog/?utm=x#frag",
		"HTTP://EXAMPLE.com/Path/",
	}
	for _, in := range inputs {
		once, err := Normalize(in)
		require.NoError(t, err)
		twice, err := Normalize(once)
		require.NoError(t, err)
		assert.Equal(t, once, twice, "normalize must be idempotent for %q", in)
	}
}

func TestNormalizeRejects(t *testing.T) {
	t.Parallel()

	for _, in := range []string{"", "   ", "ftp://example.com/file", "mailto://a@b.com", "https://"} {
		_, err := Normalize(in)
		assert.Error(t, err, "expected error for %q", in)
	}
}

func TestDomain(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "example.com", Domain("https://www.Example.com/page"))
	assert.Equal(t, "example.com", Domain("example.com"))
	assert.Equal(t, "sub.example.com", Domain("http://sub.example.com:8080/x"))
	assert.Equal(t, "", Domain(""))
	assert.Equal(t, "", Domain("http://exa mple.com/%zz"))
}

func TestIsInternal(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		raw  string
		base string
		want bool
	}{
		{"relative path", "/about", "example.com", true},
		{"same domain", "https://example.com/x", "example.com", true},
		{"www variant", "https://www.example.com/x", "example.com", true},
		{"subdomain", "https://blog.example.com/x", "example.com", true},
		{"other domain", "https://other.com/x", "example.com", false},
		{"suffix but not subdomain", "https://notexample.com/x", "example.com", false},
		{"empty url", "", "example.com", false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, IsInternal(tc.raw, tc.base))
		})
	}
}
