package aiclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func testServer(t *testing.T, chatReply string, embedCalls *atomic.Int64) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/embeddings":
			embedCalls.Add(1)
			fmt.Fprint(w, `{"data":[{"embedding":[0.1,0.2,0.3]}]}`)
		case "/v1/chat/completions":
			resp := map[string]any{
				"choices": []map[string]any{
					{"message": map[string]any{"content": chatReply}},
				},
			}
			json.NewEncoder(w).Encode(resp)
		default:
			http.NotFound(w, r)
		}
	}))
}

func TestClientEmbedCaching(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	var embedCalls atomic.Int64
	srv := testServer(t, "", &embedCalls)
	defer srv.Close()

	c := NewClient(Config{Host: srv.URL, EmbedModel: "test-embed", RateLimit: 1000})

	vec, err := c.Embed(ctx, "lithium battery pack")
	assert.NoError(err)
	assert.Equal([]float32{0.1, 0.2, 0.3}, vec)
	assert.Equal(int64(1), embedCalls.Load())

	// same text hits the cache
	vec, err = c.Embed(ctx, "lithium battery pack")
	assert.NoError(err)
	assert.Equal([]float32{0.1, 0.2, 0.3}, vec)
	assert.Equal(int64(1), embedCalls.Load())

	_, err = c.Embed(ctx, "toddler magnet set")
	assert.NoError(err)
	assert.Equal(int64(2), embedCalls.Load())
}

func TestClientAskExtractsJSON(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	var embedCalls atomic.Int64
	reply := "Here is my assessment:\n```json\n{\"compliant\": false, \"severity\": \"high\"}\n```"
	srv := testServer(t, reply, &embedCalls)
	defer srv.Close()

	c := NewClient(Config{Host: srv.URL, ChatModel: "test-chat", RateLimit: 1000})

	raw, err := c.Ask(ctx, "you are a judge", "judge this", `{"compliant": "bool"}`)
	assert.NoError(err)

	var parsed struct {
		Compliant bool   `json:"compliant"`
		Severity  string `json:"severity"`
	}
	assert.NoError(json.Unmarshal(raw, &parsed))
	assert.False(parsed.Compliant)
	assert.Equal("high", parsed.Severity)
}

func TestClientAskNoJSON(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	var embedCalls atomic.Int64
	srv := testServer(t, "I refuse to answer in the requested format.", &embedCalls)
	defer srv.Close()

	c := NewClient(Config{Host: srv.URL, ChatModel: "test-chat", RateLimit: 1000})

	_, err := c.Ask(ctx, "sys", "user", "")
	assert.ErrorIs(err, ErrNoJSON)
}

func TestExtractJSON(t *testing.T) {
	assert := assert.New(t)

	fixtures := []struct {
		reply string
		want  string
		fails bool
	}{
		{reply: `{"a":1}`, want: `{"a":1}`},
		{reply: "prose before {\"a\": [1, 2]} prose after", want: `{"a": [1, 2]}`},
		{reply: "```json\n{\"ok\":true}\n```", want: `{"ok":true}`},
		{reply: "no object here", fails: true},
		{reply: `{"broken":`, fails: true},
		{reply: "", fails: true},
	}
	for _, fix := range fixtures {
		got, err := ExtractJSON(fix.reply)
		if fix.fails {
			assert.ErrorIs(err, ErrNoJSON)
			continue
		}
		assert.NoError(err)
		assert.Equal(fix.want, string(got))
	}
}
