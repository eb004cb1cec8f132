package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/galaxyguard/warden/automod/moderr"
	"github.com/galaxyguard/warden/automod/scoring"
	"github.com/galaxyguard/warden/util"

	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"
)

const DefaultOpenAIHost = "https://api.openai.com"

// Client for the OpenAI moderation endpoint (POST /v1/moderations).
//
// Retries (connection errors, 5xx, 429) are handled by the HTTP client. Any failure which remains is returned as a
// dependency error; a response which can't be interpreted is a malformed error.
type OpenAIClient struct {
	Client *http.Client
	Host   string
	APIKey string
	// moderation model; empty uses the service default
	Model     string
	UserAgent string
	// client-side request rate limit, shared by all callers
	Limiter *rate.Limiter
}

var _ Oracle = (*OpenAIClient)(nil)

func NewOpenAIClient(host, apiKey string, ratePerSecond float64) *OpenAIClient {
	if host == "" {
		host = DefaultOpenAIHost
	}
	lim := rate.NewLimiter(rate.Inf, 1)
	if ratePerSecond > 0 {
		lim = rate.NewLimiter(rate.Limit(ratePerSecond), max(1, int(ratePerSecond)))
	}
	return &OpenAIClient{
		Client:    util.RobustHTTPClient(),
		Host:      strings.TrimSuffix(host, "/"),
		APIKey:    apiKey,
		UserAgent: "warden",
		Limiter:   lim,
	}
}

type moderationRequest struct {
	Input string `json:"input"`
	Model string `json:"model,omitempty"`
}

func (c *OpenAIClient) Classify(ctx context.Context, text string) (*Result, error) {
	op := "oracle.openai"
	if strings.TrimSpace(text) == "" {
		return nil, moderr.Validation(op, "text is empty")
	}
	if c.Limiter != nil {
		if err := c.Limiter.Wait(ctx); err != nil {
			return nil, moderr.Dependency(op, fmt.Errorf("waiting for rate limiter: %w", err))
		}
	}

	body, err := json.Marshal(moderationRequest{Input: text, Model: c.Model})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Host+"/v1/moderations", bytes.NewReader(body))
	if err != nil {
		return nil, moderr.Dependency(op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}
	if c.UserAgent != "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}

	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, moderr.Dependency(op, fmt.Errorf("moderation request failed: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, moderr.Dependency(op, fmt.Errorf("moderation API returned HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet))))
	}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, moderr.Dependency(op, fmt.Errorf("reading moderation response: %w", err))
	}
	return ParseModerationResponse(raw)
}

// Parses the body of a moderation API response, using the first entry of "results".
func ParseModerationResponse(raw []byte) (*Result, error) {
	op := "oracle.parse"
	if !gjson.ValidBytes(raw) {
		return nil, moderr.Malformed(op, "response is not valid JSON")
	}
	results := gjson.GetBytes(raw, "results")
	if !results.IsArray() || len(results.Array()) == 0 {
		return nil, moderr.Malformed(op, "response has no results")
	}
	first := results.Array()[0]

	scoresRaw := first.Get("category_scores")
	if !scoresRaw.IsObject() {
		return nil, moderr.Malformed(op, "result has no category_scores")
	}
	var scores scoring.ScoreMap
	if err := scores.UnmarshalJSON([]byte(scoresRaw.Raw)); err != nil {
		return nil, moderr.New(moderr.KindMalformed, op, err)
	}

	out := Result{
		Flagged: first.Get("flagged").Bool(),
		Scores:  scores,
	}
	if cats := first.Get("categories"); cats.IsObject() {
		out.Categories = make(map[string]bool)
		cats.ForEach(func(key, val gjson.Result) bool {
			out.Categories[key.String()] = val.Bool()
			return true
		})
	}
	return &out, nil
}
