package tools

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"agentdesk/internal/agent"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSearcher struct {
	results   []SearchResult
	err       error
	lastCount int
}

func (f *fakeSearcher) Search(_ context.Context, _ string, count int) ([]SearchResult, error) {
	f.lastCount = count
	return f.results, f.err
}

func TestWebSearch_Invoke(t *testing.T) {
	fake := &fakeSearcher{results: []SearchResult{
		{Title: "a", Body: "First body."},
		{Title: "b", Body: "Second body."},
		{Title: "c", Body: "Third body."},
	}}
	tool := NewWebSearch(fake, 2)
	assert.Equal(t, agent.KindWebSearch, tool.Kind())

	got, err := tool.Invoke(context.Background(), "paris")
	require.NoError(t, err)
	assert.Equal(t, "First body.\nSecond body.", got)
	assert.Equal(t, 2, fake.lastCount)
}

func TestWebSearch_NoResults(t *testing.T) {
	tool := NewWebSearch(&fakeSearcher{}, 0)
	got, err := tool.Invoke(context.Background(), "nothing")
	require.NoError(t, err)
	assert.Equal(t, "No web results found.", got)
}

func TestWebSearch_Error(t *testing.T) {
	tool := NewWebSearch(&fakeSearcher{err: errors.New("dial tcp: refused")}, 1)
	_, err := tool.Invoke(context.Background(), "paris")
	require.EqualError(t, err, "performing web search: dial tcp: refused")
}

func TestWebSearch_CountBounds(t *testing.T) {
	assert.Equal(t, defaultResultCount, NewWebSearch(&fakeSearcher{}, 0).count)
	assert.Equal(t, maxResultCount, NewWebSearch(&fakeSearcher{}, 100).count)
}

func TestDuckDuckGoSearcher_Search(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Tell me about Paris", r.URL.Query().Get("q"))
		assert.Equal(t, "json", r.URL.Query().Get("format"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"Heading": "Paris",
			"AbstractText": "Paris is the capital and largest city of France.",
			"RelatedTopics": [
				{"Topics": [{"FirstURL": "https://duckduckgo.com/Paris_Hilton", "Text": "Paris Hilton, an American media personality."}]},
				{"FirstURL": "https://duckduckgo.com/Paris_Texas", "Text": "Paris, Texas, a city in the United States."}
			]
		}`))
	}))
	defer srv.Close()

	d := NewDuckDuckGoSearcher(srv.URL)
	results, err := d.Search(context.Background(), "Tell me about Paris", 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "Paris is the capital and largest city of France.", results[0].Body)
	assert.Equal(t, "Paris Hilton, an American media personality.", results[1].Body)
}

func TestDuckDuckGoSearcher_Empty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"Heading":"","AbstractText":"","RelatedTopics":[]}`))
	}))
	defer srv.Close()

	tool := NewWebSearch(NewDuckDuckGoSearcher(srv.URL), 2)
	got, err := tool.Invoke(context.Background(), "qwertyuiop")
	require.NoError(t, err)
	assert.Equal(t, "No web results found.", got)
}

func TestDuckDuckGoSearcher_Status(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewDuckDuckGoSearcher(srv.URL).Search(context.Background(), "q", 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}
