package rpc

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"

	"github.com/cluster1-arrowcolony/arrowhead-go/core"
	"github.com/cluster1-arrowcolony/arrowhead-go/security"
)

func endpointFor(t *testing.T, serverURL, uri, secure string) Endpoint {
	t.Helper()
	addr, port := hostPort(t, serverURL)
	return Endpoint{Address: addr, Port: port, URI: uri, Secure: secure}
}

func TestDispatchRetriesTransientStatuses(t *testing.T) {
	calls := atomic.NewInt64(0)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Inc() <= 2 {
			http.Error(w, "warming up", http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	d := NewDispatcher(testConfig(), nil, nil)

	body, err := d.Dispatch(context.Background(), endpointFor(t, srv.URL, "/t", core.SecurityNotSecure), http.MethodGet, nil, nil, nil)
	require.NoError(t, err)
	require.JSONEq(t, `{"ok":true}`, string(body))
	require.EqualValues(t, 3, calls.Load())
}

func TestDispatchGivesUpAfterMaxAttempts(t *testing.T) {
	calls := atomic.NewInt64(0)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Inc()
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer srv.Close()

	d := NewDispatcher(testConfig(), nil, nil)

	_, err := d.Dispatch(context.Background(), endpointFor(t, srv.URL, "/t", core.SecurityNotSecure), http.MethodGet, nil, nil, nil)
	require.Error(t, err)
	require.EqualValues(t, 3, calls.Load())
}

func TestDispatchAuthorizationFailureIsImmediate(t *testing.T) {
	calls := atomic.NewInt64(0)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Inc()
		http.Error(w, "no token", http.StatusUnauthorized)
	}))
	defer srv.Close()

	d := NewDispatcher(testConfig(), nil, nil)

	_, err := d.Dispatch(context.Background(), endpointFor(t, srv.URL, "/t", core.SecurityToken), http.MethodGet, nil, nil, nil)
	var authErr *AuthorizationError
	require.ErrorAs(t, err, &authErr)
	require.Equal(t, http.StatusUnauthorized, authErr.Status)
	require.EqualValues(t, 1, calls.Load())
}

func TestDispatchApplicationRejectionIsImmediate(t *testing.T) {
	calls := atomic.NewInt64(0)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Inc()
		http.Error(w, "no such car", http.StatusNotFound)
	}))
	defer srv.Close()

	d := NewDispatcher(testConfig(), nil, nil)

	_, err := d.Dispatch(context.Background(), endpointFor(t, srv.URL, "/t", core.SecurityNotSecure), http.MethodGet, nil, nil, nil)
	var reqErr *RequestError
	require.ErrorAs(t, err, &reqErr)
	require.Equal(t, http.StatusNotFound, reqErr.Status)
	require.Contains(t, string(reqErr.Body), "no such car")
	require.EqualValues(t, 1, calls.Load())
}

func TestDispatchAttachesTokenAndRequestID(t *testing.T) {
	var gotAuth, gotRequestID string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotRequestID = r.Header.Get("X-Request-Id")
		gotBody, _ = io.ReadAll(r.Body)
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	d := NewDispatcher(testConfig(), nil, nil)
	token := &security.Token{Raw: "tok-abc"}
	query := url.Values{"brand": []string{"Toyota"}}

	_, err := d.Dispatch(context.Background(), endpointFor(t, srv.URL, "/t", core.SecurityToken), http.MethodPost, query, []byte(`{"color":"Red"}`), token)
	require.NoError(t, err)
	require.Equal(t, "Bearer tok-abc", gotAuth)
	require.NotEmpty(t, gotRequestID)
	require.JSONEq(t, `{"color":"Red"}`, string(gotBody))
}

func TestDispatchOmitsTokenBelowTokenSecurity(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	d := NewDispatcher(testConfig(), nil, nil)
	token := &security.Token{Raw: "tok-abc"}

	_, err := d.Dispatch(context.Background(), endpointFor(t, srv.URL, "/t", core.SecurityCertificate), http.MethodGet, nil, nil, token)
	require.NoError(t, err)
	require.Empty(t, gotAuth)
}

func TestDispatchTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
	}))
	defer srv.Close()

	d := NewDispatcher(testConfig(), nil, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := d.Dispatch(ctx, endpointFor(t, srv.URL, "/t", core.SecurityNotSecure), http.MethodGet, nil, nil, nil)
	require.ErrorIs(t, err, ErrTimeout)
}
