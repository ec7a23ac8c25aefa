package transport_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/BikyaITI/bikya-go-client/api"
	"github.com/BikyaITI/bikya-go-client/identity"
	"github.com/BikyaITI/bikya-go-client/session"
	"github.com/BikyaITI/bikya-go-client/tokenstore"
	"github.com/BikyaITI/bikya-go-client/tokenstore/repofake"
	"github.com/BikyaITI/bikya-go-client/transport"
)

func writeEnvelope(w http.ResponseWriter, status int, success bool, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"success":    success,
		"message":    http.StatusText(status),
		"data":       data,
		"statusCode": status,
	})
}

// backend is a scripted stand-in for the Bikya API.
type backend struct {
	validToken   string // bearer accepted on protected routes
	refreshFails bool
	alwaysReject bool

	lock          sync.Mutex
	refreshCalls  int
	seenAuth      []string // Authorization headers on protected routes
	seenLoginAuth []string // Authorization headers on /login
	seenBodies    []string // bodies received on /echo
}

func (b *backend) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /refresh", func(w http.ResponseWriter, r *http.Request) {
		b.lock.Lock()
		b.refreshCalls++
		b.lock.Unlock()

		if b.refreshFails {
			writeEnvelope(w, http.StatusUnauthorized, false, nil)
			return
		}
		writeEnvelope(w, http.StatusOK, true, map[string]string{
			"token":        "t2",
			"refreshToken": "r2",
		})
	})

	mux.HandleFunc("POST /login", func(w http.ResponseWriter, r *http.Request) {
		b.lock.Lock()
		b.seenLoginAuth = append(b.seenLoginAuth, r.Header.Get("Authorization"))
		b.lock.Unlock()
		writeEnvelope(w, http.StatusOK, true, map[string]string{
			"token":        "t1",
			"refreshToken": "r1",
		})
	})

	protected := func(w http.ResponseWriter, r *http.Request) bool {
		auth := r.Header.Get("Authorization")
		b.lock.Lock()
		b.seenAuth = append(b.seenAuth, auth)
		b.lock.Unlock()

		if b.alwaysReject || auth != "Bearer "+b.validToken {
			writeEnvelope(w, http.StatusUnauthorized, false, nil)
			return false
		}
		return true
	}

	mux.HandleFunc("GET /products", func(w http.ResponseWriter, r *http.Request) {
		if !protected(w, r) {
			return
		}
		writeEnvelope(w, http.StatusOK, true, []string{"bike", "helmet"})
	})

	mux.HandleFunc("POST /echo", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		b.lock.Lock()
		b.seenBodies = append(b.seenBodies, string(body))
		b.lock.Unlock()
		if !protected(w, r) {
			return
		}
		writeEnvelope(w, http.StatusOK, true, string(body))
	})

	return mux
}

func seededTokens() *tokenstore.Tokens {
	return &tokenstore.Tokens{
		AccessToken:  "t1",
		RefreshToken: "r1",
		User: &identity.Identity{
			ID:    7,
			Roles: identity.NewRoleSet(identity.RoleUser),
		},
	}
}

// setup wires a manager and an authenticated http.Client against the backend.
func setup(t *testing.T, b *backend, seed *tokenstore.Tokens) (*session.Manager, *http.Client, *httptest.Server) {
	t.Helper()

	srv := httptest.NewServer(b.handler())
	t.Cleanup(srv.Close)

	store := repofake.NewFakeTokenStore()
	if seed != nil {
		require.NoError(t, store.Save(seed))
	}

	httpCfg := api.DefaultConfig()
	httpCfg.MaxRetries = 0
	authAPI := api.NewAuthAPI(srv.URL, api.NewHTTPClient(httpCfg, nil), zerolog.Nop())

	manager, err := session.NewManager(store, authAPI)
	require.NoError(t, err)

	client := &http.Client{Transport: transport.New(manager)}
	return manager, client, srv
}

func TestRefreshAndReplayOn401(t *testing.T) {
	b := &backend{validToken: "t2"}
	manager, client, srv := setup(t, b, seededTokens())

	resp, err := client.Get(srv.URL + "/products")
	require.NoError(t, err)
	defer resp.Body.Close()

	// the caller sees the replayed request's result, not the refresh's
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), "bike")

	require.Equal(t, 1, b.refreshCalls)
	require.Equal(t, []string{"Bearer t1", "Bearer t2"}, b.seenAuth)
	require.Equal(t, "t2", manager.AccessToken())
}

func TestSecond401ClearsSessionWithoutSecondRefresh(t *testing.T) {
	b := &backend{validToken: "t2", alwaysReject: true}
	manager, client, srv := setup(t, b, seededTokens())

	resp, err := client.Get(srv.URL + "/products")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Equal(t, 1, b.refreshCalls, "a 401 on the replay must not trigger another refresh")
	require.Nil(t, manager.CurrentUser())
}

func TestRefreshFailureReturnsOriginal401(t *testing.T) {
	b := &backend{validToken: "t2", refreshFails: true}
	manager, client, srv := setup(t, b, seededTokens())

	resp, err := client.Get(srv.URL + "/products")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Equal(t, 1, b.refreshCalls)
	require.Nil(t, manager.CurrentUser(), "refresh failure tears the session down")
	require.Len(t, b.seenAuth, 1, "the failed request is not replayed")
}

func TestAuthPathsCarryNoBearer(t *testing.T) {
	b := &backend{validToken: "t1"}
	_, client, srv := setup(t, b, seededTokens())

	resp, err := client.Post(srv.URL+"/login", "application/json", strings.NewReader(`{}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, []string{""}, b.seenLoginAuth)
}

func TestNoTokenSendsUnauthenticated(t *testing.T) {
	b := &backend{validToken: "t1"}
	_, client, srv := setup(t, b, nil)

	resp, err := client.Get(srv.URL + "/products")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Equal(t, 0, b.refreshCalls, "no refresh without a session")
	require.Equal(t, []string{""}, b.seenAuth)
}

func TestReplayRebuildsRequestBody(t *testing.T) {
	b := &backend{validToken: "t2"}
	_, client, srv := setup(t, b, seededTokens())

	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, srv.URL+"/echo", strings.NewReader("hello"))
	require.NoError(t, err)

	resp, err := client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, []string{"hello", "hello"}, b.seenBodies)
}

func TestRequestIDHeaderIsSet(t *testing.T) {
	var requestID string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID = r.Header.Get("X-Request-ID")
		writeEnvelope(w, http.StatusOK, true, nil)
	}))
	t.Cleanup(srv.Close)

	store := repofake.NewFakeTokenStore()
	require.NoError(t, store.Save(seededTokens()))
	authAPI := api.NewAuthAPI(srv.URL, api.NewHTTPClient(api.DefaultConfig(), nil), zerolog.Nop())
	manager, err := session.NewManager(store, authAPI)
	require.NoError(t, err)

	client := &http.Client{Transport: transport.New(manager)}
	resp, err := client.Get(srv.URL + "/anything")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.NotEmpty(t, requestID)
}
