package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"aibridge/internal/backend"
	"aibridge/internal/logging"
	"aibridge/internal/models"
	"aibridge/internal/stream"
	"aibridge/internal/types"
)

// maxBodyBytes limits the size of incoming request bodies.
const maxBodyBytes = 10 * 1024 * 1024 // 10 MB

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	body, ok := s.readBody(w, r)
	if !ok {
		return
	}

	var req types.ChatRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if len(req.Messages) == 0 {
		writeError(w, http.StatusBadRequest, "messages must be a non-empty list")
		return
	}

	canonical := &types.CanonicalRequest{
		Model:    modelOrDefault(req.Model, s.cfg.BridgeModelName),
		Mode:     types.ModeChat,
		Messages: req.Messages,
		Stream:   req.Stream != nil && *req.Stream,
		Options:  req.Options,
	}

	res, ok := s.invoke(w, r, canonical)
	if !ok {
		return
	}

	if canonical.Stream {
		s.streamResponse(w, r, canonical, res.Text)
		return
	}
	writeJSON(w, http.StatusOK, types.ChatChunk{
		Model:      canonical.Model,
		CreatedAt:  logging.NowISO(),
		Message:    types.Message{Role: "assistant", Content: res.Text},
		Done:       true,
		DoneReason: "stop",
	})
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	body, ok := s.readBody(w, r)
	if !ok {
		return
	}

	var req types.GenerateRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if req.Prompt == "" {
		writeError(w, http.StatusBadRequest, "prompt is required")
		return
	}

	canonical := &types.CanonicalRequest{
		Model:   modelOrDefault(req.Model, s.cfg.BridgeModelName),
		Mode:    types.ModeGenerate,
		Prompt:  req.Prompt,
		System:  req.System,
		Stream:  req.Stream != nil && *req.Stream,
		Options: req.Options,
	}

	res, ok := s.invoke(w, r, canonical)
	if !ok {
		return
	}

	if canonical.Stream {
		s.streamResponse(w, r, canonical, res.Text)
		return
	}
	writeJSON(w, http.StatusOK, types.GenerateChunk{
		Model:      canonical.Model,
		CreatedAt:  logging.NowISO(),
		Response:   res.Text,
		Done:       true,
		DoneReason: "stop",
	})
}

func (s *Server) handleTags(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, models.Tags(logging.NowISO()))
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, types.VersionResponse{Version: Version})
}

// handleHealth reports process liveness plus the readiness snapshot taken
// at startup. The snapshot is never re-evaluated during a run.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	providers := make(map[string]types.HealthProbe, len(s.report))
	for provider, result := range s.report {
		providers[string(provider)] = types.HealthProbe{Ready: result.Ready, Reason: result.Reason}
	}
	writeJSON(w, http.StatusOK, types.HealthResponse{
		Status:    "ok",
		Time:      logging.NowISO(),
		Providers: providers,
	})
}

// invoke selects the provider for the canonical request and runs the
// backend call. Selection failures are client errors; backend failures are
// surfaced as 502 with kind and message. Returns ok=false when a response
// has already been written.
func (s *Server) invoke(w http.ResponseWriter, r *http.Request, canonical *types.CanonicalRequest) (*backend.Result, bool) {
	logger := requestLogger(r.Context()).With(
		"mode", canonical.Mode.String(),
		"model", canonical.Model,
		"stream", canonical.Stream,
	)

	provider, err := models.Resolve(canonical.Model)
	if err != nil {
		logger.Warn("model selection failed", "error", err)
		writeError(w, http.StatusBadRequest, err.Error())
		return nil, false
	}

	invoker, ok := s.invokers[provider]
	if !ok {
		logger.Warn("provider not configured", "provider", provider)
		writeError(w, http.StatusBadRequest, "provider not configured: "+string(provider))
		return nil, false
	}

	if s.cfg.Verbose {
		logger.Debug("backend request", "provider", provider,
			"payload", string(logging.TruncateJSON(mustJSON(canonical), logging.MaxLogValueChars)))
	}

	start := time.Now()
	res, invokeErr := invoker.Invoke(r.Context(), canonical)
	if invokeErr != nil {
		outcome := "error"
		var backendErr *backend.Error
		if errors.As(invokeErr, &backendErr) {
			outcome = string(backendErr.Kind)
		}
		backendInvocationsTotal.WithLabelValues(string(provider), outcome).Inc()
		logger.Error("backend call failed", "provider", provider,
			"outcome", outcome, "error", invokeErr, "duration_ms", time.Since(start).Milliseconds())
		writeError(w, http.StatusBadGateway, invokeErr.Error())
		return nil, false
	}

	backendInvocationsTotal.WithLabelValues(string(provider), "success").Inc()
	logger.Info("backend call complete", "provider", provider,
		"chars", len(res.Text), "duration_ms", time.Since(start).Milliseconds())
	return res, true
}

// streamResponse replays a complete backend response as Ollama NDJSON
// frames. The backend call has already finished; only the delivery is
// incremental.
func (s *Server) streamResponse(w http.ResponseWriter, r *http.Request, canonical *types.CanonicalRequest, text string) {
	w.Header().Set("Content-Type", "application/x-ndjson; charset=utf-8")
	w.WriteHeader(http.StatusOK)

	flusher, _ := w.(http.Flusher)
	enc := json.NewEncoder(w)

	frames := stream.Frames(text, s.cfg.StreamChunkSize)
	for _, frame := range frames {
		var chunk any
		if canonical.Mode == types.ModeChat {
			c := types.ChatChunk{
				Model:     canonical.Model,
				CreatedAt: logging.NowISO(),
				Message:   types.Message{Role: "assistant", Content: frame.Content},
				Done:      frame.Done,
			}
			if frame.Done {
				c.DoneReason = "stop"
			}
			chunk = c
		} else {
			c := types.GenerateChunk{
				Model:     canonical.Model,
				CreatedAt: logging.NowISO(),
				Response:  frame.Content,
				Done:      frame.Done,
			}
			if frame.Done {
				c.DoneReason = "stop"
			}
			chunk = c
		}

		if err := enc.Encode(chunk); err != nil {
			requestLogger(r.Context()).Warn("client went away mid-stream", "error", err)
			return
		}
		if flusher != nil {
			flusher.Flush()
		}
		if !frame.Done && s.cfg.StreamDelay > 0 {
			time.Sleep(s.cfg.StreamDelay)
		}
	}

	requestLogger(r.Context()).Info("stream complete",
		"model", canonical.Model, "frames", len(frames), "chars", len(text))
}

// --- helpers ---

func (s *Server) readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to read request body")
		return nil, false
	}
	if s.cfg.Verbose {
		requestLogger(r.Context()).Debug("request body",
			"path", r.URL.Path, "body", string(logging.TruncateJSON(body, logging.MaxLogValueChars)))
	}
	return body, true
}

func modelOrDefault(model, fallback string) string {
	if model == "" {
		return fallback
	}
	return model
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, types.ErrorResponse{Error: message})
}

func mustJSON(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		return []byte("{}")
	}
	return data
}

func requestLogger(ctx context.Context) *slog.Logger {
	if id := requestIDFromContext(ctx); id != "" {
		return slog.With("request_id", id)
	}
	return slog.Default()
}
