package arbiter

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyunwoo-s/soupgame/internal/models"
)

var testScenario = models.Scenario{
	Title:    "The Field",
	Content:  "A man lies dead in a field next to an unopened package.",
	Solution: "His parachute failed to open.",
}

func verdictServer(t *testing.T, text string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Contains(t, r.URL.Path, ":generateContent")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"` + text + `"}]}}]}`))
	}))
}

func TestJudgeParsesModelReply(t *testing.T) {
	srv := verdictServer(t, "YES")
	defer srv.Close()

	g := NewGeminiForTest(srv.URL, time.Second)
	v, err := g.Judge(context.Background(), "did he fall?", testScenario)
	require.NoError(t, err)
	assert.Equal(t, models.VerdictYes, v)
}

func TestJudgeMissingKey(t *testing.T) {
	g := NewGemini("", "gemini-1.5-flash", time.Second)
	_, err := g.Judge(context.Background(), "q", testScenario)
	require.Error(t, err)
}

func TestJudgeServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	g := NewGeminiForTest(srv.URL, time.Second)
	_, err := g.Judge(context.Background(), "q", testScenario)
	require.Error(t, err)
}

func TestJudgeEmptyCandidates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"candidates":[]}`))
	}))
	defer srv.Close()

	g := NewGeminiForTest(srv.URL, time.Second)
	_, err := g.Judge(context.Background(), "q", testScenario)
	require.Error(t, err)
}

func TestJudgeHonorsContext(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	defer srv.Close()
	defer close(block)

	g := NewGeminiForTest(srv.URL, 10*time.Second)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := g.Judge(ctx, "q", testScenario)
	require.Error(t, err)
}

func TestParseVerdict(t *testing.T) {
	cases := []struct {
		reply string
		want  models.Verdict
	}{
		{"YES", models.VerdictYes},
		{"yes, that is right", models.VerdictYes},
		{"NO", models.VerdictNo},
		{"No.", models.VerdictNo},
		{"CRITICAL", models.VerdictCritical},
		{"that detail is critical", models.VerdictCritical},
		{"CORRECT", models.VerdictCorrect},
		{"Correct! You solved it.", models.VerdictCorrect},
		{"IRRELEVANT", models.VerdictSkip},
		{"SKIP", models.VerdictSkip},
		{"", models.VerdictSkip},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, ParseVerdict(tc.reply), "reply %q", tc.reply)
	}
}
