// Package webhook calls the external analysis collaborators.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"bofu/api/internal/product"
	"github.com/tidwall/gjson"
)

// maxResponseSize bounds how much of a collaborator response we will
// read. Responses are LLM output and can be arbitrarily large.
const maxResponseSize = 10 << 20

// SubmitRequest is the payload sent to the analysis webhook.
type SubmitRequest struct {
	Documents    []Document `json:"documents"`
	BlogLinks    []string   `json:"blogLinks"`
	ProductLines []string   `json:"productLines"`
}

// Document is one uploaded source document forwarded to the webhook.
type Document struct {
	FileName    string `json:"fileName"`
	ContentType string `json:"contentType"`
	URL         string `json:"url"`
}

// Client talks to the analysis, competitor-identification, and
// competitor-analysis webhooks. It never retries; callers decide what a
// failure means.
type Client struct {
	analysisURL    string
	competitorsURL string
	analyzeURL     string
	httpClient     *http.Client
}

type Config struct {
	AnalysisURL    string
	CompetitorsURL string
	AnalyzeURL     string
	Timeout        time.Duration
}

func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 3 * time.Minute
	}
	return &Client{
		analysisURL:    cfg.AnalysisURL,
		competitorsURL: cfg.CompetitorsURL,
		analyzeURL:     cfg.AnalyzeURL,
		httpClient:     &http.Client{Timeout: timeout},
	}
}

// SubmitResearch posts the research input to the analysis webhook and
// returns the raw response payload for the parser.
func (c *Client) SubmitResearch(ctx context.Context, req SubmitRequest) ([]byte, error) {
	if c.analysisURL == "" {
		return nil, fmt.Errorf("analysis webhook not configured")
	}
	return c.post(ctx, c.analysisURL, req)
}

// IdentifyCompetitors asks the collaborator for direct, niche, and
// broader competitors of one analyzed product.
func (c *Client) IdentifyCompetitors(ctx context.Context, analysis product.Analysis) (product.Competitors, error) {
	if c.competitorsURL == "" {
		return product.Competitors{}, fmt.Errorf("competitors webhook not configured")
	}
	payload, err := c.post(ctx, c.competitorsURL, analysis)
	if err != nil {
		return product.Competitors{}, err
	}

	raw := gjson.ParseBytes(payload)
	// Responses may nest the competitor lists under "result" or
	// "competitors", or put them at the top level.
	for _, path := range []string{"result", "competitors", "@this"} {
		node := raw.Get(path)
		if !node.Exists() {
			continue
		}
		comp := product.Competitors{
			Direct:  stringList(node, "direct_competitors", "directCompetitors", "direct"),
			Niche:   stringList(node, "niche_competitors", "nicheCompetitors", "niche"),
			Broader: stringList(node, "broader_competitors", "broaderCompetitors", "broader"),
		}
		if len(comp.Direct) > 0 || len(comp.Niche) > 0 || len(comp.Broader) > 0 {
			return comp, nil
		}
	}
	return product.Competitors{}, fmt.Errorf("no competitors in response")
}

// AnalyzeCompetitors runs the full competitor analysis and returns the
// URL of the generated document. The URL arrives either as a bare
// string or nested in an object under a handful of known keys.
func (c *Client) AnalyzeCompetitors(ctx context.Context, analysis product.Analysis, competitors product.Competitors) (string, error) {
	if c.analyzeURL == "" {
		return "", fmt.Errorf("analyze webhook not configured")
	}
	body := struct {
		Product     product.Analysis    `json:"product"`
		Competitors product.Competitors `json:"competitors"`
	}{Product: analysis, Competitors: competitors}

	payload, err := c.post(ctx, c.analyzeURL, body)
	if err != nil {
		return "", err
	}

	trimmed := strings.TrimSpace(string(payload))
	if url := extractDocURL(trimmed); url != "" {
		return url, nil
	}
	return "", fmt.Errorf("no document url in response")
}

func extractDocURL(payload string) string {
	if strings.HasPrefix(payload, "http://") || strings.HasPrefix(payload, "https://") {
		return payload
	}
	raw := gjson.Parse(payload)
	for _, path := range []string{"documentUrl", "document_url", "url", "result.documentUrl", "result.document_url", "result.url", "result"} {
		if v := raw.Get(path); v.Type == gjson.String && v.Str != "" {
			return v.Str
		}
	}
	return ""
}

func (c *Client) post(ctx context.Context, url string, body any) ([]byte, error) {
	encoded, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(encoded))
	if err != nil {
		return nil, fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call webhook: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("read webhook response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return payload, nil
}

func stringList(node gjson.Result, paths ...string) []string {
	for _, path := range paths {
		arr := node.Get(path)
		if !arr.IsArray() {
			continue
		}
		var out []string
		arr.ForEach(func(_, v gjson.Result) bool {
			if s := strings.TrimSpace(v.String()); s != "" {
				out = append(out, s)
			}
			return true
		})
		if len(out) > 0 {
			return out
		}
	}
	return nil
}
