package backend

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"aibridge/internal/config"
	"aibridge/internal/models"
	"aibridge/internal/transform"
	"aibridge/internal/types"
)

// maxErrorBodyPreview caps how much of an upstream error body is carried
// into the failure message.
const maxErrorBodyPreview = 280

// GeminiAPI invokes the Gemini generateContent HTTP API directly,
// authenticated by API key.
type GeminiAPI struct {
	cfg    config.GeminiConfig
	detail transform.DetailOptions
	client *http.Client
}

// NewGeminiAPI creates the Gemini HTTP invoker. When the provider config
// disables transport verification, certificate validation is skipped for
// this client only; every other HTTP exchange in the process is unaffected.
func NewGeminiAPI(cfg config.GeminiConfig, detail transform.DetailOptions) *GeminiAPI {
	client := &http.Client{}
	if cfg.InsecureSkipVerify {
		transport := http.DefaultTransport.(*http.Transport).Clone()
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
		client.Transport = transport
	}
	return &GeminiAPI{cfg: cfg, detail: detail, client: client}
}

func (g *GeminiAPI) Provider() models.Provider {
	return models.ProviderGemini
}

type geminiContentPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string              `json:"role"`
	Parts []geminiContentPart `json:"parts"`
}

type geminiGenerateRequest struct {
	Contents []geminiContent `json:"contents"`
}

func (g *GeminiAPI) Invoke(ctx context.Context, req *types.CanonicalRequest) (*Result, error) {
	model := g.cfg.ResolveGeminiModel(req.Model)
	endpoint := fmt.Sprintf("%s/models/%s:generateContent?key=%s",
		strings.TrimRight(g.cfg.APIBaseURL, "/"), url.PathEscape(model), url.QueryEscape(g.cfg.APIKey))

	payload, err := json.Marshal(geminiGenerateRequest{
		Contents: []geminiContent{{
			Role:  "user",
			Parts: []geminiContentPart{{Text: transform.Prompt(req, g.detail)}},
		}},
	})
	if err != nil {
		return nil, newError(KindMalformedResponse, "encode request payload: %v", err)
	}

	ctx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, newError(KindHTTPError, "build request: %v", err)
	}
	httpReq.Header.Set("Content-Type", "application/json; charset=utf-8")

	resp, err := g.client.Do(httpReq)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, newError(KindTimeout, "gemini api call timed out")
		}
		return nil, newError(KindHTTPError, "gemini api call failed: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, newError(KindHTTPError, "read gemini api response: %v", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, newError(KindHTTPError, "gemini api call failed (%d): %s",
			resp.StatusCode, bodyPreview(body, maxErrorBodyPreview))
	}

	return parseGenerateContent(body)
}

// parseGenerateContent extracts the answer text from a generateContent
// response: the text parts of the first candidate, newline-joined.
func parseGenerateContent(body []byte) (*Result, error) {
	if !gjson.ValidBytes(body) {
		return nil, newError(KindMalformedResponse, "gemini api returned invalid JSON: %s", bodyPreview(body, maxErrorBodyPreview))
	}

	candidates := gjson.GetBytes(body, "candidates")
	if !candidates.IsArray() || len(candidates.Array()) == 0 {
		return nil, newError(KindMalformedResponse, "gemini api returned no candidates: %s", bodyPreview(body, maxErrorBodyPreview))
	}

	var parts []string
	candidates.Get("0.content.parts").ForEach(func(_, part gjson.Result) bool {
		if text := part.Get("text").String(); text != "" {
			parts = append(parts, text)
		}
		return true
	})

	answer := strings.TrimSpace(strings.Join(parts, "\n"))
	if answer == "" {
		return nil, newError(KindEmptyOutput, "gemini api returned empty text: %s", bodyPreview(body, maxErrorBodyPreview))
	}
	return &Result{Text: answer, FinishedAt: time.Now()}, nil
}

func bodyPreview(body []byte, maxLen int) string {
	clean := strings.Join(strings.Fields(strings.TrimSpace(string(body))), " ")
	if len(clean) <= maxLen {
		return clean
	}
	return clean[:maxLen] + "..."
}
