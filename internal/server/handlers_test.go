package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aibridge/internal/backend"
	"aibridge/internal/config"
	"aibridge/internal/models"
	"aibridge/internal/probe"
	"aibridge/internal/types"
)

type stubInvoker struct {
	provider models.Provider
	text     string
	err      error
	calls    atomic.Int64
	lastReq  *types.CanonicalRequest
}

func (s *stubInvoker) Provider() models.Provider { return s.provider }

func (s *stubInvoker) Invoke(_ context.Context, req *types.CanonicalRequest) (*backend.Result, error) {
	s.calls.Add(1)
	s.lastReq = req
	if s.err != nil {
		return nil, s.err
	}
	return &backend.Result{Text: s.text}, nil
}

func testConfig() *config.Config {
	return &config.Config{
		Host:            "127.0.0.1",
		Port:            0,
		BridgeModelName: "codex",
		StreamChunkSize: 8,
		StreamDelay:     0,
	}
}

func newTestServer(t *testing.T, codex, gemini *stubInvoker, report probe.Report) (*httptest.Server, *Server) {
	t.Helper()
	invokers := map[models.Provider]backend.Invoker{}
	if codex != nil {
		invokers[models.ProviderCodex] = codex
	}
	if gemini != nil {
		invokers[models.ProviderGemini] = gemini
	}
	srv := New(testConfig(), invokers, report)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, srv
}

func postJSON(t *testing.T, url string, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestChatNonStreaming(t *testing.T) {
	codex := &stubInvoker{provider: models.ProviderCodex, text: "hello from codex"}
	ts, _ := newTestServer(t, codex, nil, nil)

	resp := postJSON(t, ts.URL+"/api/chat",
		`{"model":"codex","messages":[{"role":"user","content":"hi"}],"stream":false}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	chunk := decodeBody[types.ChatChunk](t, resp)
	assert.Equal(t, "codex", chunk.Model)
	assert.Equal(t, "assistant", chunk.Message.Role)
	assert.Equal(t, "hello from codex", chunk.Message.Content)
	assert.True(t, chunk.Done)
	assert.Equal(t, "stop", chunk.DoneReason)
	assert.NotEmpty(t, chunk.CreatedAt)
	assert.Equal(t, int64(1), codex.calls.Load())
}

func TestChatDefaultsModelWhenOmitted(t *testing.T) {
	codex := &stubInvoker{provider: models.ProviderCodex, text: "ok"}
	ts, _ := newTestServer(t, codex, nil, nil)

	resp := postJSON(t, ts.URL+"/api/chat",
		`{"messages":[{"role":"user","content":"hi"}],"stream":false}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	require.NotNil(t, codex.lastReq)
	assert.Equal(t, "codex", codex.lastReq.Model)
}

func TestChatUnknownModelRejectedWithoutInvocation(t *testing.T) {
	codex := &stubInvoker{provider: models.ProviderCodex, text: "never"}
	gemini := &stubInvoker{provider: models.ProviderGemini, text: "never"}
	ts, _ := newTestServer(t, codex, gemini, nil)

	resp := postJSON(t, ts.URL+"/api/chat",
		`{"model":"llama3","messages":[{"role":"user","content":"hi"}]}`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	errBody := decodeBody[types.ErrorResponse](t, resp)
	assert.Contains(t, errBody.Error, "llama3")
	assert.Equal(t, int64(0), codex.calls.Load())
	assert.Equal(t, int64(0), gemini.calls.Load())
}

func TestChatMalformedJSON(t *testing.T) {
	ts, _ := newTestServer(t, &stubInvoker{provider: models.ProviderCodex}, nil, nil)

	resp := postJSON(t, ts.URL+"/api/chat", `{"messages": [`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	errBody := decodeBody[types.ErrorResponse](t, resp)
	assert.Equal(t, "Invalid JSON body", errBody.Error)
}

func TestChatEmptyMessages(t *testing.T) {
	ts, _ := newTestServer(t, &stubInvoker{provider: models.ProviderCodex}, nil, nil)

	resp := postJSON(t, ts.URL+"/api/chat", `{"model":"codex","messages":[]}`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	errBody := decodeBody[types.ErrorResponse](t, resp)
	assert.Equal(t, "messages must be a non-empty list", errBody.Error)
}

func TestChatBackendFailureMapsToBadGateway(t *testing.T) {
	codex := &stubInvoker{
		provider: models.ProviderCodex,
		err:      &backend.Error{Kind: backend.KindNonZeroExit, Message: "model unavailable"},
	}
	ts, _ := newTestServer(t, codex, nil, nil)

	resp := postJSON(t, ts.URL+"/api/chat",
		`{"model":"codex","messages":[{"role":"user","content":"hi"}],"stream":false}`)
	require.Equal(t, http.StatusBadGateway, resp.StatusCode)

	errBody := decodeBody[types.ErrorResponse](t, resp)
	assert.Contains(t, errBody.Error, "non_zero_exit")
	assert.Contains(t, errBody.Error, "model unavailable")
}

func TestChatStreamingFrames(t *testing.T) {
	text := "this response is long enough to span several frames"
	codex := &stubInvoker{provider: models.ProviderCodex, text: text}
	ts, _ := newTestServer(t, codex, nil, nil)

	resp := postJSON(t, ts.URL+"/api/chat",
		`{"model":"codex","messages":[{"role":"user","content":"hi"}],"stream":true}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "application/x-ndjson")

	var frames []types.ChatChunk
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		var chunk types.ChatChunk
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &chunk))
		frames = append(frames, chunk)
	}
	require.NoError(t, scanner.Err())
	require.Greater(t, len(frames), 1)

	var joined bytes.Buffer
	for i, frame := range frames {
		last := i == len(frames)-1
		assert.Equal(t, last, frame.Done)
		joined.WriteString(frame.Message.Content)
	}
	assert.Equal(t, text, joined.String())
	assert.Equal(t, "stop", frames[len(frames)-1].DoneReason)
	assert.Empty(t, frames[len(frames)-1].Message.Content)
}

func TestGenerateNonStreaming(t *testing.T) {
	gemini := &stubInvoker{provider: models.ProviderGemini, text: "pong"}
	ts, _ := newTestServer(t, nil, gemini, nil)

	resp := postJSON(t, ts.URL+"/api/generate",
		`{"model":"gemini","prompt":"ping","system":"be terse","stream":false}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	chunk := decodeBody[types.GenerateChunk](t, resp)
	assert.Equal(t, "gemini", chunk.Model)
	assert.Equal(t, "pong", chunk.Response)
	assert.True(t, chunk.Done)
	assert.Equal(t, "stop", chunk.DoneReason)

	require.NotNil(t, gemini.lastReq)
	assert.Equal(t, types.ModeGenerate, gemini.lastReq.Mode)
	assert.Equal(t, "ping", gemini.lastReq.Prompt)
	assert.Equal(t, "be terse", gemini.lastReq.System)
}

func TestGenerateRequiresPrompt(t *testing.T) {
	ts, _ := newTestServer(t, &stubInvoker{provider: models.ProviderCodex}, nil, nil)

	resp := postJSON(t, ts.URL+"/api/generate", `{"model":"codex"}`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	errBody := decodeBody[types.ErrorResponse](t, resp)
	assert.Equal(t, "prompt is required", errBody.Error)
}

func TestGenerateStreamingMatchesNonStreaming(t *testing.T) {
	text := "streamed or not, the payload text must be identical in the end"
	codex := &stubInvoker{provider: models.ProviderCodex, text: text}
	ts, _ := newTestServer(t, codex, nil, nil)

	resp := postJSON(t, ts.URL+"/api/generate",
		`{"model":"codex","prompt":"go","stream":true}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var joined strings.Builder
	scanner := bufio.NewScanner(resp.Body)
	var last types.GenerateChunk
	for scanner.Scan() {
		var chunk types.GenerateChunk
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &chunk))
		joined.WriteString(chunk.Response)
		last = chunk
	}
	require.NoError(t, scanner.Err())
	assert.Equal(t, text, joined.String())
	assert.True(t, last.Done)
}

func TestTagsListsBridgeModelsWithoutBackendCalls(t *testing.T) {
	codex := &stubInvoker{provider: models.ProviderCodex, text: "never"}
	gemini := &stubInvoker{provider: models.ProviderGemini, text: "never"}
	ts, _ := newTestServer(t, codex, gemini, nil)

	resp, err := http.Get(ts.URL + "/api/tags")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	list := decodeBody[types.ModelList](t, resp)
	require.Len(t, list.Models, len(models.All))
	names := make([]string, 0, len(list.Models))
	for _, entry := range list.Models {
		names = append(names, entry.Name)
	}
	assert.Contains(t, names, "codex")
	assert.Contains(t, names, "gemini")
	assert.Equal(t, int64(0), codex.calls.Load())
	assert.Equal(t, int64(0), gemini.calls.Load())
}

func TestVersionEndpoint(t *testing.T) {
	ts, _ := newTestServer(t, &stubInvoker{provider: models.ProviderCodex}, nil, nil)

	resp, err := http.Get(ts.URL + "/api/version")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	v := decodeBody[types.VersionResponse](t, resp)
	assert.Equal(t, Version, v.Version)
}

func TestHealthReflectsStartupReport(t *testing.T) {
	report := probe.Report{
		models.ProviderCodex:  {Ready: true, Reason: "OK"},
		models.ProviderGemini: {Ready: false, Reason: "timeout"},
	}
	ts, _ := newTestServer(t, &stubInvoker{provider: models.ProviderCodex}, nil, report)

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	health := decodeBody[types.HealthResponse](t, resp)
	assert.Equal(t, "ok", health.Status)
	assert.NotEmpty(t, health.Time)
	require.Len(t, health.Providers, 2)
	assert.True(t, health.Providers["codex"].Ready)
	assert.False(t, health.Providers["gemini"].Ready)
	assert.Equal(t, "timeout", health.Providers["gemini"].Reason)
}

func TestRequestIDHeaderSet(t *testing.T) {
	ts, _ := newTestServer(t, &stubInvoker{provider: models.ProviderCodex}, nil, nil)

	resp, err := http.Get(ts.URL + "/api/version")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Len(t, resp.Header.Get("X-Request-Id"), 8)
}
