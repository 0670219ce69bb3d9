package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/crypto/bcrypt"

	"github.com/hanpama/contentgraph/internal/docstore"
	"github.com/hanpama/contentgraph/internal/viewer"
)

const cookieName = "api-session-id"

type testServer struct {
	*httptest.Server
	manager *Manager
	store   docstore.Store
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	store, err := docstore.OpenSQLite(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	m := NewManager(store, Options{
		CookieName: cookieName,
		Lifetime:   time.Hour,
		SameSite:   http.SameSiteLaxMode,
		BcryptCost: bcrypt.MinCost,
	}, zaptest.NewLogger(t))

	mux := http.NewServeMux()
	m.Mount(mux)
	mux.HandleFunc("/whoami", func(w http.ResponseWriter, r *http.Request) {
		id, _ := viewer.Build(r, m).UserID()
		_, _ = w.Write([]byte(id))
	})
	srv := httptest.NewServer(m.Attach(mux))
	t.Cleanup(srv.Close)
	return &testServer{Server: srv, manager: m, store: store}
}

func newClient(t *testing.T) *http.Client {
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &http.Client{Jar: jar}
}

func post(t *testing.T, c *http.Client, url string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	resp, err := c.Post(url, "application/json", &buf)
	require.NoError(t, err)
	defer resp.Body.Close()
	var out map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp, out
}

func whoami(t *testing.T, c *http.Client, base string) string {
	t.Helper()
	resp, err := c.Get(base + "/whoami")
	require.NoError(t, err)
	defer resp.Body.Close()
	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	return buf.String()
}

func sessionCookie(resp *http.Response) string {
	for _, c := range resp.Cookies() {
		if c.Name == cookieName {
			return c.Value
		}
	}
	return ""
}

func TestRegisterLoginLogout(t *testing.T) {
	srv := newTestServer(t)
	c := newClient(t)
	require.Equal(t, "", whoami(t, c, srv.URL))

	resp, body := post(t, c, srv.URL+"/auth/register", credentials{Username: "alice", Password: "correct horse"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	user := body["user"].(map[string]any)
	require.Equal(t, "alice", user["username"])
	id := user["id"].(string)
	require.NotEmpty(t, sessionCookie(resp))
	require.Equal(t, id, whoami(t, c, srv.URL))

	resp, _ = post(t, c, srv.URL+"/auth/logout", nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	require.Equal(t, "", whoami(t, c, srv.URL))

	resp, body = post(t, c, srv.URL+"/auth/login", credentials{Username: "alice", Password: "correct horse"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, id, body["user"].(map[string]any)["id"])
	require.Equal(t, id, whoami(t, c, srv.URL))

	users, err := srv.store.Find(context.Background(), docstore.Users, nil, docstore.Sort{})
	require.NoError(t, err)
	require.Len(t, users, 1)
	hash, _ := users[0].String("passwordHash")
	require.NotEqual(t, "correct horse", hash)
}

func TestLoginRenewsToken(t *testing.T) {
	srv := newTestServer(t)
	c := newClient(t)

	resp, _ := post(t, c, srv.URL+"/auth/register", credentials{Username: "bob", Password: "password1"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	first := sessionCookie(resp)

	resp, _ = post(t, c, srv.URL+"/auth/login", credentials{Username: "bob", Password: "password1"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	second := sessionCookie(resp)
	require.NotEmpty(t, second)
	require.NotEqual(t, first, second)
}

func TestRegisterErrors(t *testing.T) {
	srv := newTestServer(t)
	c := newClient(t)

	resp, _ := post(t, c, srv.URL+"/auth/register", credentials{Username: "carol", Password: "password1"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	for name, tc := range map[string]struct {
		creds credentials
		want  int
	}{
		"duplicate":      {credentials{Username: "carol", Password: "password2"}, http.StatusConflict},
		"short password": {credentials{Username: "dave", Password: "short"}, http.StatusBadRequest},
		"bad username":   {credentials{Username: "a b", Password: "password1"}, http.StatusBadRequest},
	} {
		t.Run(name, func(t *testing.T) {
			resp, body := post(t, newClient(t), srv.URL+"/auth/register", tc.creds)
			require.Equal(t, tc.want, resp.StatusCode)
			require.NotEmpty(t, body["error"])
		})
	}

	resp, err := c.Get(srv.URL + "/auth/register")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	srv := newTestServer(t)
	c := newClient(t)
	resp, _ := post(t, c, srv.URL+"/auth/register", credentials{Username: "erin", Password: "password1"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	other := newClient(t)
	resp, _ = post(t, other, srv.URL+"/auth/login", credentials{Username: "erin", Password: "wrong-password"})
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp, _ = post(t, other, srv.URL+"/auth/login", credentials{Username: "nobody", Password: "password1"})
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Equal(t, "", whoami(t, other, srv.URL))
}

func TestIdentityWithoutAttach(t *testing.T) {
	m := NewManager(nil, Options{}, nil)
	_, ok := m.Identity(httptest.NewRequest("GET", "/", nil))
	require.False(t, ok)
}
