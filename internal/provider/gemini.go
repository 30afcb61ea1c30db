package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/vistoria/vistoria/internal/store"
)

// Gemini calls the Gemini generateContent API directly.
type Gemini struct {
	apiKey   string
	model    string
	endpoint string
	client   *http.Client
}

// NewGemini creates a new Gemini API client.
func NewGemini(apiKey, model, endpoint string) *Gemini {
	return &Gemini{
		apiKey:   apiKey,
		model:    model,
		endpoint: strings.TrimRight(endpoint, "/"),
		client:   &http.Client{Timeout: 60 * time.Second},
	}
}

var aspectRatios = []string{"square", "portrait", "tall", "landscape"}

// GenerateFeed asks the model for count feed items. When a query is set
// the maps grounding tool is enabled and any grounding sources returned
// by the API are carried back in the batch.
func (g *Gemini) GenerateFeed(ctx context.Context, count int, query string, loc *Location) (*Batch, error) {
	prompt := feedPrompt(count, query, loc)

	reqBody := map[string]any{
		"contents": []map[string]any{
			{"role": "user", "parts": []map[string]string{{"text": prompt}}},
		},
		"generationConfig": map[string]any{
			"temperature": 0.9,
		},
	}
	if query != "" {
		reqBody["tools"] = []map[string]any{{"googleMaps": map[string]any{}}}
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", g.endpoint, g.model)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", g.apiKey)

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gemini api: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gemini api status %d: %s", resp.StatusCode, respBody)
	}

	var result struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
			GroundingMetadata struct {
				GroundingChunks []GroundingChunk `json:"groundingChunks"`
			} `json:"groundingMetadata"`
		} `json:"candidates"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(result.Candidates) == 0 {
		return nil, fmt.Errorf("gemini: no candidates returned")
	}

	text := ""
	for _, part := range result.Candidates[0].Content.Parts {
		text += part.Text
	}

	pins, err := parseFeedItems(text)
	if err != nil {
		return nil, fmt.Errorf("parse feed items: %w", err)
	}

	batch := &Batch{Pins: pins}
	if chunks := result.Candidates[0].GroundingMetadata.GroundingChunks; len(chunks) > 0 {
		batch.Grounding = &Grounding{Chunks: chunks}
	}
	return batch, nil
}

func feedPrompt(count int, query string, loc *Location) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Generate %d visual inspiration feed items", count)
	if query != "" {
		fmt.Fprintf(&b, " about %q", query)
	}
	if loc != nil {
		fmt.Fprintf(&b, ", biased toward places near latitude %.4f, longitude %.4f", loc.Latitude, loc.Longitude)
	}
	b.WriteString(`.
Respond with ONLY a JSON array, no prose. Each element:
{"title": string, "description": string (one sentence), "author": string (a plausible creator name), "tags": [2-4 short lowercase strings], "likes": int, "views": int, "saves": int}`)
	return b.String()
}

// feedItem is the shape the model is asked to produce per pin.
type feedItem struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Author      string   `json:"author"`
	Tags        []string `json:"tags"`
	Likes       int      `json:"likes"`
	Views       int      `json:"views"`
	Saves       int      `json:"saves"`
}

// parseFeedItems extracts the JSON array of items from the model response
// and converts them to pins with stable ids and derived image URLs.
func parseFeedItems(content string) ([]store.Pin, error) {
	content = strings.TrimSpace(content)

	// Strip markdown code fences
	if strings.HasPrefix(content, "```") {
		lines := strings.Split(content, "\n")
		if len(lines) > 2 {
			content = strings.Join(lines[1:len(lines)-1], "\n")
		}
	}
	content = strings.TrimSpace(content)

	start := strings.Index(content, "[")
	end := strings.LastIndex(content, "]")
	if start < 0 || end < 0 || end <= start {
		return nil, fmt.Errorf("no JSON array in response")
	}

	var items []feedItem
	if err := json.Unmarshal([]byte(content[start:end+1]), &items); err != nil {
		return nil, fmt.Errorf("unmarshal items: %w", err)
	}

	pins := make([]store.Pin, 0, len(items))
	for i, item := range items {
		if item.Title == "" {
			continue
		}
		id := uuid.NewString()
		pins = append(pins, store.Pin{
			ID:          id,
			Title:       item.Title,
			Description: item.Description,
			ImageURL:    fmt.Sprintf("https://picsum.photos/seed/%s/600", id),
			AspectRatio: aspectRatios[i%len(aspectRatios)],
			Author: store.Author{
				Name:   item.Author,
				Avatar: fmt.Sprintf("https://api.dicebear.com/9.x/avataaars/svg?seed=%s", id[:8]),
			},
			Stats:    store.Stats{Likes: item.Likes, Views: item.Views, Saves: item.Saves},
			Tags:     item.Tags,
			Comments: []store.Comment{},
			Source:   store.SourceGenerated,
		})
	}
	return pins, nil
}
