package engine

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newOpenAITestServer(t *testing.T, handler http.HandlerFunc) *OpenAIEngine {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewOpenAIEngine("test-key", srv.URL+"/v1", 0)
}

func TestOpenAIEngine_Chat(t *testing.T) {
	var req map[string]any
	e := newOpenAITestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			http.NotFound(w, r)
			return
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization = %q", got)
		}
		json.NewDecoder(r.Body).Decode(&req)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"社交媒体热度上升"},"finish_reason":"stop"}]}`))
	})

	out, err := e.Chat(context.Background(), "doubao-pro", []Message{{Role: RoleUser, Content: "分析"}}, Options{Temperature: 0.8, JSON: true})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if out != "社交媒体热度上升" {
		t.Errorf("got %q", out)
	}
	if req["model"] != "doubao-pro" {
		t.Errorf("model = %v, want doubao-pro", req["model"])
	}
	rf, _ := req["response_format"].(map[string]any)
	if rf["type"] != "json_object" {
		t.Errorf("response_format = %v, want json_object", req["response_format"])
	}
}

func TestOpenAIEngine_ChatRateLimited(t *testing.T) {
	e := newOpenAITestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"message":"quota exceeded","type":"rate_limit"}}`))
	})

	_, err := e.Chat(context.Background(), "m", []Message{{Role: RoleUser, Content: "x"}}, Options{})
	if !errors.Is(err, ErrRateLimited) {
		t.Errorf("err = %v, want ErrRateLimited", err)
	}
}

func TestOpenAIEngine_ChatNoChoices(t *testing.T) {
	e := newOpenAITestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"1","choices":[]}`))
	})

	_, err := e.Chat(context.Background(), "m", []Message{{Role: RoleUser, Content: "x"}}, Options{})
	if !errors.Is(err, ErrEmptyResponse) {
		t.Errorf("err = %v, want ErrEmptyResponse", err)
	}
}

func TestOpenAIEngine_Embed(t *testing.T) {
	e := newOpenAITestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/embeddings" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"object":"list","data":[{"object":"embedding","index":0,"embedding":[0.5,0.25]}]}`))
	})

	vec, err := e.Embed(context.Background(), "text-embedding-3-small", "玫瑰")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vec) != 2 || vec[0] != 0.5 {
		t.Errorf("vec = %v, want [0.5 0.25]", vec)
	}
}
