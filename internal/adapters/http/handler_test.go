package httpadapter_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	httpadapter "github.com/mparedes/chatstore/internal/adapters/http"
	"github.com/mparedes/chatstore/internal/adapters/storage/memory"
	"github.com/mparedes/chatstore/internal/app/history"
)

func newTestServer(t *testing.T, defaultMaxHistory int) *httptest.Server {
	t.Helper()
	svc := history.NewService(memory.NewRepository(), history.Options{})
	ts := httptest.NewServer(httpadapter.NewServer(svc, defaultMaxHistory))
	t.Cleanup(ts.Close)
	return ts
}

type conversationBody struct {
	Messages []struct {
		Role    string `json:"role"`
		Content []struct {
			Text string `json:"text"`
		} `json:"content"`
		Timestamp int64 `json:"timestamp"`
	} `json:"messages"`
}

func postJSON(t *testing.T, url, body string) (*http.Response, conversationBody) {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s failed: %v", url, err)
	}
	return resp, decodeBody(t, resp)
}

func getJSON(t *testing.T, url string) (*http.Response, conversationBody) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s failed: %v", url, err)
	}
	return resp, decodeBody(t, resp)
}

func decodeBody(t *testing.T, resp *http.Response) conversationBody {
	t.Helper()
	defer resp.Body.Close()
	var body conversationBody
	if resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			t.Fatalf("decoding response failed: %v", err)
		}
	}
	return body
}

func TestSaveAndFetchOverHTTP(t *testing.T) {
	ts := newTestServer(t, 0)

	resp, body := postJSON(t, ts.URL+"/conversations/u1/s1/agent-a/messages",
		`{"role": "user", "text": "hi"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("save returned %d", resp.StatusCode)
	}
	if len(body.Messages) != 1 || body.Messages[0].Content[0].Text != "hi" {
		t.Fatalf("unexpected save response: %+v", body)
	}

	resp, body = getJSON(t, ts.URL+"/conversations/u1/s1/agent-a")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("fetch returned %d", resp.StatusCode)
	}
	if len(body.Messages) != 1 || body.Messages[0].Role != "user" {
		t.Fatalf("unexpected fetch response: %+v", body)
	}
	if body.Messages[0].Timestamp != 0 {
		t.Fatal("timestamps must be stripped from the default fetch")
	}

	resp, body = getJSON(t, ts.URL+"/conversations/u1/s1/agent-a?with_timestamps=1")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("fetch with timestamps returned %d", resp.StatusCode)
	}
	if body.Messages[0].Timestamp <= 0 {
		t.Fatalf("expected a timestamp, got %d", body.Messages[0].Timestamp)
	}
}

func TestSaveWithProvidedTimestamp(t *testing.T) {
	ts := newTestServer(t, 0)

	resp, _ := postJSON(t, ts.URL+"/conversations/u1/s1/agent-a/messages",
		`{"role": "user", "text": "replayed", "timestamp": 5}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("save returned %d", resp.StatusCode)
	}

	resp, body := getJSON(t, ts.URL+"/conversations/u1/s1/agent-a?with_timestamps=1")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("fetch with timestamps returned %d", resp.StatusCode)
	}
	if body.Messages[0].Timestamp != 5 {
		t.Fatalf("provided timestamp not honored: got %d, want 5", body.Messages[0].Timestamp)
	}
}

func TestAggregateOverHTTP(t *testing.T) {
	ts := newTestServer(t, 0)

	postJSON(t, ts.URL+"/conversations/u1/s1/planner/messages", `{"role": "user", "text": "hi"}`)
	postJSON(t, ts.URL+"/conversations/u1/s1/planner/messages", `{"role": "assistant", "text": "hello"}`)

	resp, body := getJSON(t, ts.URL+"/conversations/u1/s1")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("aggregate returned %d", resp.StatusCode)
	}
	if len(body.Messages) != 2 {
		t.Fatalf("expected 2 merged messages, got %+v", body)
	}
	if got := body.Messages[1].Content[0].Text; got != "[planner] hello" {
		t.Fatalf("assistant turn not tagged: %q", got)
	}
}

func TestBatchOverHTTP(t *testing.T) {
	ts := newTestServer(t, 0)

	resp, body := postJSON(t, ts.URL+"/conversations/u1/s1/agent-a/messages:batch",
		`{"messages": [{"role": "user", "text": "one"}, {"role": "assistant", "text": "two"}]}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("batch save returned %d", resp.StatusCode)
	}
	if len(body.Messages) != 2 {
		t.Fatalf("unexpected batch response: %+v", body)
	}

	// An empty batch is a caller error.
	resp, _ = postJSON(t, ts.URL+"/conversations/u1/s1/agent-a/messages:batch", `{"messages": []}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("empty batch returned %d, want 400", resp.StatusCode)
	}
}

func TestMaxHistorySizeParam(t *testing.T) {
	ts := newTestServer(t, 0)

	postJSON(t, ts.URL+"/conversations/u1/s1/a/messages", `{"role": "user", "text": "one"}`)
	postJSON(t, ts.URL+"/conversations/u1/s1/a/messages", `{"role": "assistant", "text": "two"}`)
	resp, body := postJSON(t, ts.URL+"/conversations/u1/s1/a/messages?max_history_size=2",
		`{"role": "user", "text": "three"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("save returned %d", resp.StatusCode)
	}
	if len(body.Messages) != 2 || body.Messages[0].Content[0].Text != "two" {
		t.Fatalf("expected trim to last 2, got %+v", body)
	}
}

func TestValidationErrors(t *testing.T) {
	ts := newTestServer(t, 0)

	cases := []struct {
		name string
		url  string
		body string
	}{
		{"unknown role", "/conversations/u1/s1/a/messages", `{"role": "narrator", "text": "hi"}`},
		{"no content", "/conversations/u1/s1/a/messages", `{"role": "user"}`},
		{"bad json", "/conversations/u1/s1/a/messages", `{`},
		{"bad max_history_size", "/conversations/u1/s1/a/messages?max_history_size=many", `{"role": "user", "text": "hi"}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp, _ := postJSON(t, ts.URL+tc.url, tc.body)
			if resp.StatusCode != http.StatusBadRequest {
				t.Fatalf("returned %d, want 400", resp.StatusCode)
			}
		})
	}
}

func TestRouting(t *testing.T) {
	ts := newTestServer(t, 0)

	resp, err := http.Get(ts.URL + "/conversations/u1")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("short path returned %d, want 404", resp.StatusCode)
	}

	resp, err = http.Post(ts.URL+"/conversations/u1/s1", "application/json", strings.NewReader(`{}`))
	if err != nil {
		t.Fatalf("POST failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("POST to aggregate returned %d, want 405", resp.StatusCode)
	}
}

func TestRequestIDHeader(t *testing.T) {
	ts := newTestServer(t, 0)

	resp, err := http.Get(ts.URL + "/conversations/u1/s1")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	resp.Body.Close()
	if resp.Header.Get("X-Request-ID") == "" {
		t.Fatal("expected a generated X-Request-ID header")
	}
}
