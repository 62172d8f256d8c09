package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/leshachaplin/mouselog/internal/apierror"
	"github.com/leshachaplin/mouselog/internal/domain"
	"github.com/leshachaplin/mouselog/internal/service"
	"github.com/leshachaplin/mouselog/internal/storage/event/jsonl"
)

func newTestServer(t *testing.T, logPath string, cfg Config) (*httptest.Server, *jsonl.Log) {
	t.Helper()

	eventLog, err := jsonl.New(jsonl.Config{Path: logPath})
	require.NoError(t, err)

	handler := NewHandler(service.New(eventLog, zerolog.Nop()), zerolog.Nop())
	srv := httptest.NewServer(New(cfg, handler).Router())
	t.Cleanup(srv.Close)
	return srv, eventLog
}

func post(t *testing.T, url, body string) (int, string, http.Header) {
	t.Helper()

	res, err := http.Post(url+"/api/mouse", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer res.Body.Close()

	var buf bytes.Buffer
	_, err = buf.ReadFrom(res.Body)
	require.NoError(t, err)
	return res.StatusCode, buf.String(), res.Header
}

const (
	mouseDown = `{"event_type":"mousedown","timestamp":1700000000000,"x":10,"y":20,"button":"left","buttons":1,"session_id":"session_1700000000000","event_id":"event_session_1700000000000_0"}`
	mouseUp   = `{"event_type":"mouseup","timestamp":1700000000100,"x":10,"y":20,"button":"left","buttons":0,"velocity_x":0,"velocity_y":0,"distance":0,"session_id":"session_1700000000000","event_id":"event_session_1700000000000_1"}`
)

func TestHandler_Event(t *testing.T) {
	cases := map[string]struct {
		body           string
		expectedStatus int
		expectedBody   string
		expectedLines  int
	}{
		"batch": {
			body:           "[" + mouseDown + "," + mouseUp + "]",
			expectedStatus: http.StatusOK,
			expectedBody:   "2 events logged",
			expectedLines:  2,
		},
		"single event": {
			body:           mouseDown,
			expectedStatus: http.StatusOK,
			expectedBody:   "Event logged",
			expectedLines:  1,
		},
		"empty batch": {
			body:           "[]",
			expectedStatus: http.StatusOK,
			expectedBody:   "0 events logged",
		},
		"malformed json": {
			body:           "[" + mouseDown + ",",
			expectedStatus: http.StatusBadRequest,
		},
		"empty body": {
			body:           "  ",
			expectedStatus: http.StatusBadRequest,
		},
		"null body": {
			body:           "null",
			expectedStatus: http.StatusBadRequest,
		},
		"bare string": {
			body:           `"mousemove"`,
			expectedStatus: http.StatusBadRequest,
		},
		"unknown event type": {
			body:           `[{"event_type":"click","timestamp":1,"x":0,"y":0,"session_id":"s","event_id":"e"}]`,
			expectedStatus: http.StatusBadRequest,
		},
		"one invalid record rejects the batch": {
			body:           "[" + mouseDown + `,{"event_type":"mouseup","timestamp":1,"x":0,"y":0,"session_id":"s","event_id":""}]`,
			expectedStatus: http.StatusBadRequest,
		},
	}

	for name, tc := range cases {
		tc := tc
		t.Run(name, func(t *testing.T) {
			srv, eventLog := newTestServer(t, filepath.Join(t.TempDir(), "mouse_events.jsonl"), Config{})

			status, body, header := post(t, srv.URL, tc.body)
			require.Equal(t, tc.expectedStatus, status)

			if tc.expectedStatus == http.StatusOK {
				require.Equal(t, tc.expectedBody, body)
			} else {
				require.Equal(t, "application/json; charset=utf-8", header.Get("Content-Type"))
				var apiErr apierror.Error
				require.NoError(t, json.Unmarshal([]byte(body), &apiErr))
				require.Equal(t, tc.expectedStatus, apiErr.StatusCode())
				require.NotEmpty(t, apiErr.Message)
			}

			events, err := eventLog.ReadAll(context.Background())
			require.NoError(t, err)
			require.Len(t, events, tc.expectedLines)
		})
	}
}

func TestHandler_EventRoundTrip(t *testing.T) {
	srv, eventLog := newTestServer(t, filepath.Join(t.TempDir(), "logs", "mouse_events.jsonl"), Config{})

	var sent []domain.Event
	require.NoError(t, json.Unmarshal([]byte("["+mouseDown+","+mouseUp+"]"), &sent))

	status, _, _ := post(t, srv.URL, "["+mouseDown+","+mouseUp+"]")
	require.Equal(t, http.StatusOK, status)
	status, _, _ = post(t, srv.URL, mouseDown)
	require.Equal(t, http.StatusOK, status)

	stored, err := eventLog.ReadAll(context.Background())
	require.NoError(t, err)
	require.Equal(t, append(sent, sent[0]), stored)

	data, err := os.ReadFile(eventLog.Path())
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
	require.Len(t, lines, 3)
	require.JSONEq(t, mouseDown, lines[0])
	require.JSONEq(t, mouseUp, lines[1])
}

func TestHandler_WriteFailure(t *testing.T) {
	// a directory where the log file should be
	dir := t.TempDir()
	srv, _ := newTestServer(t, dir, Config{})

	status, body, _ := post(t, srv.URL, "["+mouseDown+"]")
	require.Equal(t, http.StatusInternalServerError, status)
	require.Empty(t, body)
}

func TestHandler_BodyLimit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mouse_events.jsonl")
	srv, _ := newTestServer(t, path, Config{MaxBodyBytes: 64})

	status, body, _ := post(t, srv.URL, "["+mouseDown+"]")
	require.Equal(t, http.StatusRequestEntityTooLarge, status)
	require.NoFileExists(t, path)

	var apiErr apierror.Error
	require.NoError(t, json.Unmarshal([]byte(body), &apiErr))
	require.Equal(t, float64(64), apiErr.Details["limit_bytes"])
}

func TestHandler_NoBodyLimitByDefault(t *testing.T) {
	srv, eventLog := newTestServer(t, filepath.Join(t.TempDir(), "mouse_events.jsonl"), Config{})

	// a long drag without a quiet period ends up as one large batch
	const n = 20000
	var body strings.Builder
	body.WriteString("[")
	for i := 0; i < n; i++ {
		if i > 0 {
			body.WriteString(",")
		}
		fmt.Fprintf(&body, `{"event_type":"mousemove","timestamp":%d,"x":%d,"y":%d,"buttons":1,"velocity_x":0.5,"velocity_y":0.25,"distance":8.0,"viewport_width":1920,"viewport_height":1080,"session_id":"session_1700000000000","event_id":"event_session_1700000000000_%d"}`,
			1700000000000+int64(i)*16, i%1920, i%1080, i)
	}
	body.WriteString("]")
	require.Greater(t, body.Len(), 4<<20)

	status, reply, _ := post(t, srv.URL, body.String())
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, fmt.Sprintf("%d events logged", n), reply)

	events, err := eventLog.ReadAll(context.Background())
	require.NoError(t, err)
	require.Len(t, events, n)
}

func TestHandler_InvalidRecordIndex(t *testing.T) {
	srv, _ := newTestServer(t, filepath.Join(t.TempDir(), "mouse_events.jsonl"), Config{})

	status, body, _ := post(t, srv.URL, "["+mouseDown+","+mouseDown+`,{"event_type":"mouseup","timestamp":1,"x":0,"y":0,"session_id":"","event_id":"e"}]`)
	require.Equal(t, http.StatusBadRequest, status)

	var apiErr apierror.Error
	require.NoError(t, json.Unmarshal([]byte(body), &apiErr))
	require.Equal(t, float64(2), apiErr.Details["index"])
	require.True(t, strings.HasPrefix(apiErr.Message, "event 2: "))
}

func TestServer_Routes(t *testing.T) {
	srv, _ := newTestServer(t, filepath.Join(t.TempDir(), "mouse_events.jsonl"), Config{
		AllowedOrigins: []string{"http://localhost:8080"},
	})

	res, err := http.Get(srv.URL + "/_/ready")
	require.NoError(t, err)
	res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)

	res, err = http.Get(srv.URL + "/api/mouse")
	require.NoError(t, err)
	res.Body.Close()
	require.Equal(t, http.StatusMethodNotAllowed, res.StatusCode)

	req, err := http.NewRequest(http.MethodOptions, srv.URL+"/api/mouse", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://localhost:8080")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "Content-Type")
	res, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	res.Body.Close()
	require.Equal(t, "http://localhost:8080", res.Header.Get("Access-Control-Allow-Origin"))
}

func TestGetClientIP(t *testing.T) {
	cases := map[string]struct {
		remoteAddr string
		xff        string
		expected   string
	}{
		"host and port": {
			remoteAddr: "203.0.113.9:51234",
			expected:   "203.0.113.9",
		},
		"loopback v6": {
			remoteAddr: "[::1]:51234",
			expected:   "127.0.0.1",
		},
		"rewritten by real ip": {
			remoteAddr: "198.51.100.4",
			expected:   "198.51.100.4",
		},
		"forwarded only": {
			xff:      "192.0.2.1, 10.0.0.1",
			expected: "192.0.2.1",
		},
		"garbage": {
			remoteAddr: "not-an-ip",
			expected:   "0.0.0.0",
		},
	}

	for name, tc := range cases {
		tc := tc
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/mouse", nil)
			req.RemoteAddr = tc.remoteAddr
			if tc.xff != "" {
				req.Header.Set("X-Forwarded-For", tc.xff)
			}
			require.Equal(t, tc.expected, getClientIP(req))
		})
	}
}
