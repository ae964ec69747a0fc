package services

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/arcanelabs/tarot-backend/internal/logger"
	"github.com/arcanelabs/tarot-backend/internal/utils"
)

// ModelClient is the uniform call surface for embeddings and chat. Both the
// OpenAI and OpenRouter backends speak the same wire contract; the provider
// toggle only changes base URL, credential, and model-name mapping.
type ModelClient interface {
	Embed(ctx context.Context, inputs []string) ([][]float32, error)
	Chat(ctx context.Context, req ChatRequest) (string, error)
	// ChatJSON requests a JSON object response. If the provider rejects the
	// response-format hint or returns unparseable JSON, it retries once
	// without the hint and strips a fenced-code wrapper before parsing.
	ChatJSON(ctx context.Context, req ChatRequest) (map[string]any, string, error)
	// ChatStream emits opaque text chunks that concatenate to the full
	// completion. The error channel receives at most one error and both
	// channels close when the stream ends.
	ChatStream(ctx context.Context, req ChatRequest) (<-chan string, <-chan error)
	// ResolveModel maps a short user-facing preference (deepseek, gpt4omini,
	// gemini_2.5_pro) to the backend-specific model identifier.
	ResolveModel(preference string) string
}

type ChatRequest struct {
	System      string
	Prompt      string
	Model       string
	Temperature float64
	MaxTokens   int
	JSONMode    bool
}

type modelClient struct {
	log        *logger.Logger
	baseURL    string
	apiKey     string
	provider   string
	embedModel string
	embedDim   int
	httpClient *http.Client
	maxRetries int
	presets    ModelPresets
}

type modelHTTPError struct {
	StatusCode int
	Body       string
}

func (e *modelHTTPError) Error() string {
	return fmt.Sprintf("model provider http %d: %s", e.StatusCode, e.Body)
}

func NewModelClient(log *logger.Logger) (ModelClient, error) {
	serviceLog := log.With("service", "ModelClient")

	provider := "openai"
	baseURL := utils.GetEnv("OPENAI_BASE_URL", "https://api.openai.com/v1", log)
	apiKey := strings.TrimSpace(utils.GetEnv("OPENAI_API_KEY", "", log))
	if utils.GetEnvAsBool("USE_OPENROUTER", false, log) {
		provider = "openrouter"
		baseURL = utils.GetEnv("OPENROUTER_BASE_URL", "https://openrouter.ai/api/v1", log)
		apiKey = strings.TrimSpace(utils.GetEnv("OPENROUTER_API_KEY", "", log))
	}
	if apiKey == "" {
		return nil, fmt.Errorf("missing model provider API key (OPENAI_API_KEY or OPENROUTER_API_KEY with USE_OPENROUTER=true)")
	}

	timeoutSec := utils.GetEnvAsInt("MODEL_TIMEOUT_SECONDS", 90, log)
	maxRetries := utils.GetEnvAsInt("MODEL_MAX_RETRIES", 3, log)

	presets, err := LoadModelPresets(utils.GetEnv("MODEL_PRESETS_FILE", "", log), provider)
	if err != nil {
		serviceLog.Warn("Failed to load model presets file, using built-in table", "error", err)
		presets = builtinPresets(provider)
	}

	return &modelClient{
		log:        serviceLog,
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		provider:   provider,
		embedModel: utils.GetEnv("OPENAI_EMBED_MODEL", "text-embedding-3-small", log),
		embedDim:   utils.GetEnvAsInt("RAG_EMBED_DIM", 1536, log),
		httpClient: &http.Client{Timeout: time.Duration(timeoutSec) * time.Second},
		maxRetries: maxRetries,
		presets:    presets,
	}, nil
}

// ---- retry plumbing ----

func isRetryableHTTP(code int) bool {
	return code == 408 || code == 429 || (code >= 500 && code <= 599)
}

func isRetryableErr(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var httpErr *modelHTTPError
	if errors.As(err, &httpErr) {
		return isRetryableHTTP(httpErr.StatusCode)
	}
	return false
}

func jitterSleep(base time.Duration) time.Duration {
	// +/- 20%
	if base <= 0 {
		return 0
	}
	delta := base.Seconds() * 0.2
	low := base.Seconds() - delta
	v := low + rand.Float64()*(2*delta)
	return time.Duration(v * float64(time.Second))
}

func (c *modelClient) doOnce(ctx context.Context, path string, body any) (*http.Response, []byte, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, &buf)
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, err
	}

	raw, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return resp, nil, readErr
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp, raw, &modelHTTPError{StatusCode: resp.StatusCode, Body: string(raw)}
	}
	return resp, raw, nil
}

func (c *modelClient) do(ctx context.Context, path string, body any, out any) error {
	backoff := 1 * time.Second

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		resp, raw, err := c.doOnce(ctx, path, body)
		if err == nil {
			if out == nil {
				return nil
			}
			if uErr := json.Unmarshal(raw, out); uErr != nil {
				return fmt.Errorf("model provider decode error: %w; raw=%s", uErr, string(raw))
			}
			return nil
		}

		if !isRetryableErr(err) || attempt == c.maxRetries {
			return err
		}

		sleepFor := backoff
		if resp != nil {
			if ra := strings.TrimSpace(resp.Header.Get("Retry-After")); ra != "" {
				if secs, parseErr := strconv.Atoi(ra); parseErr == nil && secs > 0 {
					sleepFor = time.Duration(secs) * time.Second
				}
			}
		}
		if sleepFor > 10*time.Second {
			sleepFor = 10 * time.Second
		}
		sleepFor = jitterSleep(sleepFor)

		c.log.Warn("Model provider request retrying",
			"path", path,
			"attempt", attempt+1,
			"max_retries", c.maxRetries,
			"sleep", sleepFor.String(),
			"error", err.Error(),
		)
		time.Sleep(sleepFor)
		backoff *= 2
	}
	return fmt.Errorf("unreachable retry loop")
}

// ---- embeddings ----

type embeddingsRequest struct {
	Model      string   `json:"model"`
	Input      []string `json:"input"`
	Dimensions int      `json:"dimensions,omitempty"`
}

type embeddingsResponse struct {
	Data []struct {
		Embedding []float64 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
}

func (c *modelClient) Embed(ctx context.Context, inputs []string) ([][]float32, error) {
	if len(inputs) == 0 {
		return [][]float32{}, nil
	}
	req := embeddingsRequest{
		Model:      c.embedModel,
		Input:      inputs,
		Dimensions: c.embedDim,
	}
	var resp embeddingsResponse
	if err := c.do(ctx, "/embeddings", req, &resp); err != nil {
		return nil, err
	}
	out := make([][]float32, len(inputs))
	for _, d := range resp.Data {
		vec := make([]float32, len(d.Embedding))
		for i, f := range d.Embedding {
			vec[i] = float32(f)
		}
		if d.Index >= 0 && d.Index < len(out) {
			out[d.Index] = vec
		}
	}
	for i := range out {
		if out[i] == nil {
			return nil, fmt.Errorf("missing embedding for index %d", i)
		}
	}
	return out, nil
}

// ---- chat ----

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionRequest struct {
	Model          string         `json:"model"`
	Messages       []chatMessage  `json:"messages"`
	Temperature    float64        `json:"temperature"`
	MaxTokens      int            `json:"max_tokens,omitempty"`
	Stream         bool           `json:"stream,omitempty"`
	ResponseFormat map[string]any `json:"response_format,omitempty"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

type chatStreamResponse struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (c *modelClient) buildRequest(req ChatRequest, stream bool) chatCompletionRequest {
	msgs := make([]chatMessage, 0, 2)
	if strings.TrimSpace(req.System) != "" {
		msgs = append(msgs, chatMessage{Role: "system", Content: req.System})
	}
	msgs = append(msgs, chatMessage{Role: "user", Content: req.Prompt})

	out := chatCompletionRequest{
		Model:       c.ResolveModel(req.Model),
		Messages:    msgs,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		Stream:      stream,
	}
	if req.JSONMode {
		out.ResponseFormat = map[string]any{"type": "json_object"}
	}
	return out
}

func (c *modelClient) Chat(ctx context.Context, req ChatRequest) (string, error) {
	payload := c.buildRequest(req, false)
	var resp chatCompletionResponse
	if err := c.do(ctx, "/chat/completions", payload, &resp); err != nil {
		return "", err
	}
	if resp.Error != nil {
		return "", fmt.Errorf("model provider error: %s", resp.Error.Message)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no response choices returned")
	}
	text := resp.Choices[0].Message.Content
	if needsThinkStrip(payload.Model) {
		text = StripThink(text)
	}
	return text, nil
}

func (c *modelClient) ChatJSON(ctx context.Context, req ChatRequest) (map[string]any, string, error) {
	req.JSONMode = true
	text, err := c.Chat(ctx, req)
	if err == nil {
		if obj, parseErr := parseJSONObject(text); parseErr == nil {
			return obj, text, nil
		}
	}

	// Retry once without the response-format hint. Some backends reject the
	// mode outright; others honor it but still wrap the object in a fence.
	req.JSONMode = false
	text, err = c.Chat(ctx, req)
	if err != nil {
		return nil, "", err
	}
	obj, parseErr := parseJSONObject(text)
	if parseErr != nil {
		return nil, text, fmt.Errorf("model returned unparseable JSON: %w", parseErr)
	}
	return obj, text, nil
}

func (c *modelClient) ChatStream(ctx context.Context, req ChatRequest) (<-chan string, <-chan error) {
	chunks := make(chan string, 64)
	errc := make(chan error, 1)

	payload := c.buildRequest(req, true)

	go func() {
		defer close(chunks)
		defer close(errc)
		if err := c.streamOnce(ctx, payload, chunks); err != nil {
			errc <- err
		}
	}()

	return chunks, errc
}

func (c *modelClient) streamOnce(ctx context.Context, payload chatCompletionRequest, chunks chan<- string) error {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(payload); err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &modelHTTPError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	// Reasoning models emit a private <think> prelude; hold chunks back
	// until it closes so callers only ever see the answer.
	filter := newThinkFilter(needsThinkStrip(payload.Model))

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" || !strings.HasPrefix(line, "data: ") {
			continue
		}
		data := strings.TrimPrefix(line, "data: ")
		if data == "[DONE]" {
			break
		}

		var streamResp chatStreamResponse
		if err := json.Unmarshal([]byte(data), &streamResp); err != nil {
			return fmt.Errorf("decode streaming response: %w; data=%s", err, data)
		}
		if streamResp.Error != nil {
			return fmt.Errorf("model provider error: %s", streamResp.Error.Message)
		}
		if len(streamResp.Choices) == 0 {
			continue
		}
		choice := streamResp.Choices[0]
		if out := filter.push(choice.Delta.Content); out != "" {
			select {
			case chunks <- out:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if choice.FinishReason != "" {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read streaming response: %w", err)
	}
	if tail := filter.flush(); tail != "" {
		select {
		case chunks <- tail:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (c *modelClient) ResolveModel(preference string) string {
	pref := strings.ToLower(strings.TrimSpace(preference))
	if pref == "" {
		pref = "gpt4omini"
	}
	if resolved, ok := c.presets.Models[pref]; ok {
		return resolved
	}
	// Already a backend identifier.
	return preference
}

// ---- reasoning-model output cleanup ----

// Allow-list of model families whose output starts with a <think> span.
var thinkStripModels = []string{
	"deepseek-r1",
	"deepseek/deepseek-r1",
}

func needsThinkStrip(model string) bool {
	m := strings.ToLower(model)
	for _, prefix := range thinkStripModels {
		if strings.Contains(m, prefix) {
			return true
		}
	}
	return false
}

var (
	thinkSpanRe  = regexp.MustCompile(`(?s)<think>.*?</think>`)
	blankLinesRe = regexp.MustCompile(`\n{3,}`)
)

// StripThink removes a <think>…</think> prelude and collapses the blank
// lines it leaves behind.
func StripThink(text string) string {
	cleaned := thinkSpanRe.ReplaceAllString(text, "")
	cleaned = blankLinesRe.ReplaceAllString(cleaned, "\n\n")
	return strings.TrimLeft(cleaned, "\n")
}

type thinkFilter struct {
	active bool
	buf    strings.Builder
	open   bool
	seen   bool
}

func newThinkFilter(active bool) *thinkFilter {
	return &thinkFilter{active: active}
}

func (f *thinkFilter) push(chunk string) string {
	if !f.active || f.seen {
		return chunk
	}
	f.buf.WriteString(chunk)
	s := f.buf.String()
	if !f.open {
		trimmed := strings.TrimLeft(s, " \n\t")
		if trimmed == "" || strings.HasPrefix("<think>", trimmed) {
			// Could still be the opening tag; keep buffering.
			return ""
		}
		if !strings.HasPrefix(trimmed, "<think>") {
			f.seen = true
			f.buf.Reset()
			return s
		}
		f.open = true
	}
	if idx := strings.Index(s, "</think>"); idx >= 0 {
		f.seen = true
		f.buf.Reset()
		return strings.TrimLeft(s[idx+len("</think>"):], "\n")
	}
	return ""
}

func (f *thinkFilter) flush() string {
	if !f.active || f.seen {
		return ""
	}
	s := f.buf.String()
	f.buf.Reset()
	f.seen = true
	return StripThink(s)
}

// ---- JSON extraction ----

func parseJSONObject(text string) (map[string]any, error) {
	cleaned := strings.TrimSpace(text)
	if strings.HasPrefix(cleaned, "```") {
		cleaned = strings.TrimPrefix(cleaned, "```json")
		cleaned = strings.TrimPrefix(cleaned, "```")
		if idx := strings.LastIndex(cleaned, "```"); idx >= 0 {
			cleaned = cleaned[:idx]
		}
		cleaned = strings.TrimSpace(cleaned)
	}
	var obj map[string]any
	if err := json.Unmarshal([]byte(cleaned), &obj); err != nil {
		return nil, err
	}
	return obj, nil
}
