// Package arbiter adapts an external language model into the game's verdict
// vocabulary. The adapter is stateless between calls: it sends one question
// plus the active scenario, and maps whatever comes back onto a verdict.
// Callers must treat every error as a SKIP; an AI outage never ends a game.
package arbiter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/hyunwoo-s/soupgame/internal/models"
)

// Arbiter classifies a free-text question against the hidden scenario.
type Arbiter interface {
	Judge(ctx context.Context, question string, scenario models.Scenario) (models.Verdict, error)
}

const defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

const promptTemplate = `You are the host of a lateral thinking puzzle game.
The player sees only the [SITUATION] and asks questions to uncover the
[SOLUTION], which you know. Reply to the player's question with exactly one
of these keywords and nothing else:

- "YES": the player's assumption is true.
- "NO": the player's assumption is false.
- "CRITICAL": the question touches a decisive part of the solution.
- "SKIP": the question is unrelated or unanswerable.
- "CORRECT": the player has stated the full solution.

[SITUATION]: %s
[SOLUTION]: %s

Player question: %q

Output only the single keyword.`

// Gemini calls the Generative Language REST API. A zero API key is allowed;
// every call then fails fast and the caller degrades to SKIP.
type Gemini struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
}

// NewGemini builds the adapter. timeout bounds the whole HTTP exchange.
func NewGemini(apiKey, model string, timeout time.Duration) *Gemini {
	return &Gemini{
		apiKey:  apiKey,
		model:   model,
		baseURL: defaultBaseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

// NewGeminiForTest points the adapter at a fake endpoint.
func NewGeminiForTest(baseURL string, timeout time.Duration) *Gemini {
	g := NewGemini("test-key", "test-model", timeout)
	g.baseURL = baseURL
	return g
}

type generateRequest struct {
	Contents []content `json:"contents"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

// Judge sends the question and scenario to the model and maps the reply onto
// a verdict. Any transport, credential, or parse failure is returned as an
// error for the caller to absorb.
func (g *Gemini) Judge(ctx context.Context, question string, scenario models.Scenario) (models.Verdict, error) {
	if g.apiKey == "" {
		return "", fmt.Errorf("arbiter: missing api key")
	}

	prompt := fmt.Sprintf(promptTemplate, scenario.Content, scenario.Solution, question)
	body, err := json.Marshal(generateRequest{
		Contents: []content{{Parts: []part{{Text: prompt}}}},
	})
	if err != nil {
		return "", fmt.Errorf("arbiter: marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", g.baseURL, g.model, g.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("arbiter: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("arbiter: call model: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("arbiter: model returned status %d", resp.StatusCode)
	}

	var parsed generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("arbiter: decode response: %w", err)
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("arbiter: empty response")
	}

	return ParseVerdict(parsed.Candidates[0].Content.Parts[0].Text), nil
}

// ParseVerdict maps raw model output onto the verdict vocabulary. Anything
// unrecognized is SKIP, keeping a rambling model harmless.
func ParseVerdict(raw string) models.Verdict {
	text := strings.ToUpper(strings.TrimSpace(raw))
	switch {
	case strings.Contains(text, "CORRECT"):
		return models.VerdictCorrect
	case strings.Contains(text, "CRITICAL"):
		return models.VerdictCritical
	case strings.Contains(text, "YES"):
		return models.VerdictYes
	case strings.Contains(text, "NO"):
		return models.VerdictNo
	default:
		return models.VerdictSkip
	}
}
