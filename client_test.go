package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(apiroute string) *Config {
	return &Config{
		Name:           "Test Window",
		APIRoute:       apiroute,
		PollInterval:   defaultPollInterval,
		Port:           defaultPort,
		AutoResetDelay: defaultAutoResetDelay,
		Timeout:        defaultTimeout,
		HTTPMethod:     defaultHTTPMethod,
	}
}

func TestDevice_Status(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/status", r.URL.Path)
		fmt.Fprint(w, `{"currentPosition":10,"targetPosition":20,"positionState":1}`)
	}))
	defer srv.Close()

	d := NewDevice(testConfig(srv.URL), testLogger())

	s, err := d.Status(context.Background())
	require.NoError(t, err)

	require.NotNil(t, s.CurrentPosition)
	require.NotNil(t, s.TargetPosition)
	require.NotNil(t, s.PositionState)
	assert.Equal(t, 10, *s.CurrentPosition)
	assert.Equal(t, 20, *s.TargetPosition)
	assert.Equal(t, 1, *s.PositionState)
}

func TestDevice_StatusNumberForms(t *testing.T) {
	tests := []struct {
		name string
		body string
		want Status
	}{
		{"integral floats", `{"currentPosition":10.0,"targetPosition":2e1,"positionState":1.0}`, Status{CurrentPosition: intp(10), TargetPosition: intp(20), PositionState: intp(1)}},
		{"null and missing", `{"currentPosition":null,"positionState":2}`, Status{PositionState: intp(2)}},
		{"negative", `{"currentPosition":-5}`, Status{CurrentPosition: intp(-5)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, tt.body)
			}))
			defer srv.Close()

			s, err := NewDevice(testConfig(srv.URL), testLogger()).Status(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tt.want, s)
		})
	}
}

func TestDevice_StatusFractionalValue(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"currentPosition":10,"positionState":1.5}`)
	}))
	defer srv.Close()

	_, err := NewDevice(testConfig(srv.URL), testLogger()).Status(context.Background())

	var perr *ParseError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "status", perr.What)
}

func TestDevice_StatusUsesGETRegardlessOfMethod(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		fmt.Fprint(w, `{}`)
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.HTTPMethod = http.MethodPost

	_, err := NewDevice(cfg, testLogger()).Status(context.Background())
	assert.NoError(t, err)
}

func TestDevice_StatusInvalidJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `not json`)
	}))
	defer srv.Close()

	_, err := NewDevice(testConfig(srv.URL), testLogger()).Status(context.Background())

	var perr *ParseError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "not json", perr.Input)
}

func TestDevice_StatusTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewDevice(testConfig(url), testLogger()).Status(context.Background())

	var terr *TransportError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, url+"/status", terr.URL)
}

func TestDevice_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	cfg := testConfig(srv.URL)
	cfg.Timeout = 50

	start := time.Now()
	_, err := NewDevice(cfg, testLogger()).Status(context.Background())

	var terr *TransportError
	assert.ErrorAs(t, err, &terr)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestDevice_BasicAuth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "admin", user)
		assert.Equal(t, "secret", pass)
		fmt.Fprint(w, `{}`)
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.Username = "admin"
	cfg.Password = "secret"

	_, err := NewDevice(cfg, testLogger()).Status(context.Background())
	assert.NoError(t, err)
}

func TestDevice_NoAuthWithoutPassword(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _, ok := r.BasicAuth()
		assert.False(t, ok)
		fmt.Fprint(w, `{}`)
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.Username = "admin"

	_, err := NewDevice(cfg, testLogger()).Status(context.Background())
	assert.NoError(t, err)
}

func TestDevice_CommandUsesConfiguredMethod(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/setTargetPosition", r.URL.Path)
		assert.Equal(t, "55", r.URL.Query().Get("value"))
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.HTTPMethod = http.MethodPut

	err := NewDevice(cfg, testLogger()).Command(context.Background(), "setTargetPosition", "55")
	assert.NoError(t, err)
}

func TestDevice_SkipsTLSVerification(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"currentPosition":1}`)
	}))
	defer srv.Close()

	s, err := NewDevice(testConfig(srv.URL), testLogger()).Status(context.Background())
	require.NoError(t, err)
	require.NotNil(t, s.CurrentPosition)
	assert.Nil(t, s.TargetPosition)
}

func TestTransportError_Unwrap(t *testing.T) {
	err := fmt.Errorf("poll: %w", &TransportError{Op: "GET", URL: "http://x/status", Err: context.DeadlineExceeded})

	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Contains(t, err.Error(), "GET http://x/status")
}
