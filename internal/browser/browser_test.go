package browser

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-rod/rod/lib/proto"
	"github.com/lukman83/adscout/internal/store"
	"github.com/lukman83/adscout/internal/throttle"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSession(opts Options) *Session {
	opts.defaults()
	return &Session{opts: opts, logger: opts.Logger}
}

func TestOptionsDefaults(t *testing.T) {
	var o Options
	o.defaults()
	assert.Equal(t, "#user-email, #user-logout", o.LoginSelector)
	assert.Positive(t, o.RenderTimeout)
	assert.NotNil(t, o.Logger)
}

func TestRenderRefusesDisallowedURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("User-agent: *\nDisallow: /s-anzeige/\n"))
	}))
	defer srv.Close()

	s := newTestSession(Options{Robots: throttle.NewRobotsChecker(srv.Client(), true)})
	_, err := s.Render(context.Background(), srv.URL+"/s-anzeige/x/1", "#viewad-description")
	assert.ErrorIs(t, err, ErrDisallowed)
}

func TestReadCookies(t *testing.T) {
	dir := t.TempDir()
	jar := filepath.Join(dir, "cookies.json")
	s := newTestSession(Options{CookiesFile: jar})

	got, err := s.readCookies()
	require.NoError(t, err)
	assert.Empty(t, got, "missing jar")

	require.NoError(t, store.WriteJSON(jar, []*proto.NetworkCookie{
		{Name: "session", Value: "abc", Domain: ".site.example", Path: "/"},
	}))
	got, err = s.readCookies()
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "session", got[0].Name)
	assert.Equal(t, ".site.example", got[0].Domain)

	require.NoError(t, os.WriteFile(jar, []byte("{not json"), 0o644))
	got, err = s.readCookies()
	require.NoError(t, err)
	assert.Empty(t, got, "corrupt jar is ignored")
}

func TestEnsureSessionWithoutJarNeedsLogin(t *testing.T) {
	s := newTestSession(Options{CookiesFile: filepath.Join(t.TempDir(), "cookies.json")})
	assert.ErrorIs(t, s.EnsureSession(context.Background()), ErrNeedsLogin)
}

func TestCloseIsIdempotent(t *testing.T) {
	s := newTestSession(Options{})
	assert.NoError(t, s.Close())
	assert.NoError(t, s.Close())
}
