package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestURL_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, DefaultUserAgent, r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte("<html><body><p>hello</p></body></html>"))
	}))
	defer server.Close()

	result, err := URL(context.Background(), server.URL, nil)

	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, result.StatusCode)
	assert.Contains(t, result.HTML, "hello")
	assert.Contains(t, result.ContentType, "text/html")
}

func TestURL_CustomHeaders(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "my-agent", r.Header.Get("User-Agent"))
		assert.Equal(t, "en", r.Header.Get("Accept-Language"))
		_, _ = w.Write([]byte("ok"))
	}))
	defer server.Close()

	opts := DefaultOptions()
	opts.UserAgent = "my-agent"
	opts.Headers = map[string]string{"Accept-Language": "en"}

	_, err := URL(context.Background(), server.URL, opts)
	require.NoError(t, err)
}

func TestURL_NonOKStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	result, err := URL(context.Background(), server.URL, nil)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP status 404")
	// Body is still returned alongside the error.
	require.NotNil(t, result)
	assert.Equal(t, http.StatusNotFound, result.StatusCode)
}

func TestURL_InvalidURL(t *testing.T) {
	for _, bad := range []string{"", "not-a-url", "://missing-scheme"} {
		_, err := URL(context.Background(), bad, nil)
		require.Error(t, err, "url %q", bad)

		var fetchErr *Error
		require.ErrorAs(t, err, &fetchErr)
		assert.Contains(t, fetchErr.Message, "invalid URL")
	}
}

func TestExtractMainText_SelectorPriority(t *testing.T) {
	html := `
	<html><body>
	  <nav>Site navigation</nav>
	  <article><h1>Title</h1><p>Article body text.</p></article>
	  <div class="content">Fallback content</div>
	  <footer>Copyright</footer>
	</body></html>`

	text, err := ExtractMainText(html, ArticleSelectors())

	require.NoError(t, err)
	assert.Contains(t, text, "Article body text.")
	assert.NotContains(t, text, "Site navigation")
	assert.NotContains(t, text, "Copyright")
	assert.NotContains(t, text, "Fallback content")
}

func TestExtractMainText_BodyFallback(t *testing.T) {
	html := `<html><body><div><p>Plain page with no semantic markup.</p></div></body></html>`

	text, err := ExtractMainText(html, ArticleSelectors())

	require.NoError(t, err)
	assert.Contains(t, text, "Plain page with no semantic markup.")
}

func TestExtractMainText_RemovesNoise(t *testing.T) {
	html := `
	<html><body>
	  <main>
	    <script>var tracking = true;</script>
	    <div class="advertisement">Buy now!</div>
	    <p>Useful information.</p>
	  </main>
	</body></html>`

	text, err := ExtractMainText(html, ArticleSelectors())

	require.NoError(t, err)
	assert.Contains(t, text, "Useful information.")
	assert.NotContains(t, text, "tracking")
	assert.NotContains(t, text, "Buy now!")
}

func TestCleanWhitespace(t *testing.T) {
	input := "  line one  \n\n\n   line two\n\t\n line three "

	assert.Equal(t, "line one\nline two\nline three", cleanWhitespace(input))
}

func TestShouldUseBrowser(t *testing.T) {
	assert.True(t, ShouldUseBrowser("short"))
	assert.True(t, ShouldUseBrowser("   "))

	long := make([]byte, MinContentLength)
	for i := range long {
		long[i] = 'x'
	}
	assert.False(t, ShouldUseBrowser(string(long)))
}
