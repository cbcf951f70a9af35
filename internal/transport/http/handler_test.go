package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"gauntlet-service/internal/app"
	"gauntlet-service/internal/classifier"
	"gauntlet-service/internal/domain"
	"gauntlet-service/internal/infra/memory"
	"gauntlet-service/internal/pii"
)

const classification = `{"archetype":"The Scale Realist","description":"Grounded.","traits":["A","B","C"],
"contextWhyItMatters":"Scale.","stats":{"growthFocus":64,"riskTolerance":"Medium","dataDrivenScore":7},"similarityPercentage":22}`

type testServer struct {
	*httptest.Server
	store *memory.Store
	calls *atomic.Int64
}

func newTestServer(t *testing.T, client classifier.ClientFunc, opts Options) *testServer {
	t.Helper()
	store := memory.NewStore()
	calls := &atomic.Int64{}
	if client == nil {
		client = func(ctx context.Context, prompt string) (string, error) { return classification, nil }
	}
	counted := classifier.ClientFunc(func(ctx context.Context, prompt string) (string, error) {
		calls.Add(1)
		return client(ctx, prompt)
	})
	cipher, err := pii.NewCipher("handler-test-encryption-secret-xyz")
	if err != nil {
		t.Fatalf("cipher: %v", err)
	}
	service := app.NewSubmissionService(app.Dependencies{
		Store:      store,
		Classifier: classifier.NewBounded(counted, 2, time.Second),
		StatsCache: memory.NewStatsCache(),
		Hasher:     pii.NewHasher("handler-test-hash-secret-abcdefgh"),
		Cipher:     cipher,
	}, app.Options{Limits: app.DefaultLimits(500), SeededBaseline: 200})

	srv := httptest.NewServer(NewHandler(service, nil, opts).Router())
	t.Cleanup(srv.Close)
	return &testServer{Server: srv, store: store, calls: calls}
}

func payload(email string) map[string]any {
	responses := make([]map[string]any, 0, domain.QuestionCount)
	for id := 1; id <= domain.QuestionCount; id++ {
		item := map[string]any{"questionId": id, "selectedOptionId": "a"}
		if id == 11 {
			item = map[string]any{"questionId": id, "textValue": "Launched before fixing onboarding."}
		}
		responses = append(responses, item)
	}
	return map[string]any{
		"userInfo":  map[string]any{"name": "Grace Hopper", "email": email, "company": "Navy"},
		"responses": responses,
	}
}

func (s *testServer) post(t *testing.T, body map[string]any, header http.Header) (*http.Response, map[string]any) {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return s.do(t, http.MethodPost, "/api/submissions", raw, header)
}

func (s *testServer) do(t *testing.T, method, path string, body []byte, header http.Header) (*http.Response, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, s.URL+path, bytes.NewReader(body))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	defer resp.Body.Close()
	var decoded map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&decoded)
	return resp, decoded
}

func TestSubmissionEndToEnd(t *testing.T) {
	srv := newTestServer(t, nil, Options{})

	resp, body := srv.do(t, http.MethodGet, "/api/health", nil, nil)
	if resp.StatusCode != http.StatusOK || body["ok"] != true {
		t.Fatalf("health: %d %v", resp.StatusCode, body)
	}

	resp, body = srv.post(t, payload("grace@example.com"), nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d %v", resp.StatusCode, body)
	}
	if resp.Header.Get(RequestIDHeader) == "" {
		t.Fatalf("missing request id header")
	}
	results, ok := body["results"].(map[string]any)
	if !ok {
		t.Fatalf("missing results: %v", body)
	}
	growth := results["stats"].(map[string]any)["growthFocus"].(float64)
	if growth < 0 || growth > 100 {
		t.Fatalf("growthFocus out of range: %v", growth)
	}
	if traits := results["traits"].([]any); len(traits) != 3 {
		t.Fatalf("expected 3 traits, got %v", traits)
	}

	resp, body = srv.do(t, http.MethodGet, "/api/stats", nil, nil)
	if resp.StatusCode != http.StatusOK || body["totalSubmissions"].(float64) != 201 {
		t.Fatalf("stats: %d %v", resp.StatusCode, body)
	}

	resp, body = srv.do(t, http.MethodGet, "/api/peers?archetype=The+Scale+Realist", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("peers: %d %v", resp.StatusCode, body)
	}
	peers := body["peers"].([]any)
	if len(peers) != 3 {
		t.Fatalf("expected 1 real and 2 seeded peers, got %v", peers)
	}
	first := peers[0].(map[string]any)
	if first["name"] != "Grace H." {
		t.Fatalf("expected anonymized name, got %v", first)
	}
	if _, leaked := first["email"]; leaked {
		t.Fatalf("peer leaked email: %v", first)
	}
}

func TestSubmissionHoneypot(t *testing.T) {
	srv := newTestServer(t, nil, Options{})
	p := payload("grace@example.com")
	p["honeypot"] = "filled by a bot"
	resp, body := srv.post(t, p, nil)
	if resp.StatusCode != http.StatusBadRequest || body["error"] != "Suspicious submission blocked." {
		t.Fatalf("expected honeypot 400, got %d %v", resp.StatusCode, body)
	}
	if srv.calls.Load() != 0 {
		t.Fatalf("classifier called for honeypot")
	}
}

func TestSubmissionValidationMessages(t *testing.T) {
	srv := newTestServer(t, nil, Options{})

	short := payload("grace@example.com")
	short["responses"] = short["responses"].([]map[string]any)[:11]
	resp, body := srv.post(t, short, nil)
	if resp.StatusCode != http.StatusBadRequest || body["error"] != "All questions must be answered." {
		t.Fatalf("expected 400 for 11 responses, got %d %v", resp.StatusCode, body)
	}

	missing := payload("grace@example.com")
	delete(missing["responses"].([]map[string]any)[6], "selectedOptionId")
	resp, body = srv.post(t, missing, nil)
	if resp.StatusCode != http.StatusBadRequest || !strings.Contains(body["error"].(string), "Question 7") {
		t.Fatalf("expected question 7 error, got %d %v", resp.StatusCode, body)
	}
}

func TestSubmissionIPBurst(t *testing.T) {
	srv := newTestServer(t, nil, Options{TrustedProxyHops: 1})
	header := http.Header{"X-Forwarded-For": {"203.0.113.50"}}

	for i := 0; i < 30; i++ {
		resp, _ := srv.do(t, http.MethodPost, "/api/submissions", []byte(`{}`), header)
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("attempt %d: expected 400, got %d", i, resp.StatusCode)
		}
	}
	resp, body := srv.post(t, payload("grace@example.com"), header)
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d %v", resp.StatusCode, body)
	}

	resp, _ = srv.post(t, payload("grace@example.com"), http.Header{"X-Forwarded-For": {"198.51.100.1"}})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected other client to pass, got %d", resp.StatusCode)
	}
}

func TestSubmissionDuplicateAfterClassifierFailure(t *testing.T) {
	srv := newTestServer(t, func(ctx context.Context, prompt string) (string, error) {
		return "", errors.New("model overloaded")
	}, Options{})

	resp, body := srv.post(t, payload("grace@example.com"), nil)
	if resp.StatusCode != http.StatusInternalServerError || body["error"] != "Failed to process submission." {
		t.Fatalf("expected generic 500, got %d %v", resp.StatusCode, body)
	}
	resp, _ = srv.post(t, payload("grace@example.com"), nil)
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("expected duplicate 429, got %d", resp.StatusCode)
	}
	if srv.calls.Load() != 1 {
		t.Fatalf("expected a single classifier call, got %d", srv.calls.Load())
	}
}

func TestSubmissionTimeoutMapsTo504(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	srv := newTestServer(t, func(ctx context.Context, prompt string) (string, error) {
		<-release
		return classification, nil
	}, Options{})

	resp, _ := srv.post(t, payload("grace@example.com"), nil)
	if resp.StatusCode != http.StatusGatewayTimeout {
		t.Fatalf("expected 504, got %d", resp.StatusCode)
	}
}

func TestSubmissionBodyLimit(t *testing.T) {
	srv := newTestServer(t, nil, Options{MaxBodyBytes: 1024})
	big := []byte(fmt.Sprintf(`{"honeypot":%q}`, strings.Repeat("x", 4096)))
	resp, _ := srv.do(t, http.MethodPost, "/api/submissions", big, nil)
	if resp.StatusCode != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", resp.StatusCode)
	}
}

func TestPeersMissingArchetype(t *testing.T) {
	srv := newTestServer(t, nil, Options{})
	resp, body := srv.do(t, http.MethodGet, "/api/peers", nil, nil)
	if resp.StatusCode != http.StatusBadRequest || body["error"] != "Missing archetype query param." {
		t.Fatalf("expected 400, got %d %v", resp.StatusCode, body)
	}
}

func TestCORSAllowList(t *testing.T) {
	srv := newTestServer(t, nil, Options{AllowedOrigins: []string{"https://quiz.example"}})

	resp, _ := srv.do(t, http.MethodGet, "/api/health", nil, http.Header{"Origin": {"https://quiz.example"}})
	if resp.StatusCode != http.StatusOK || resp.Header.Get("Access-Control-Allow-Origin") != "https://quiz.example" {
		t.Fatalf("allowed origin rejected: %d %v", resp.StatusCode, resp.Header)
	}

	resp, _ = srv.do(t, http.MethodGet, "/api/health", nil, http.Header{"Origin": {"https://evil.example"}})
	if resp.StatusCode != http.StatusForbidden || resp.Header.Get("Access-Control-Allow-Origin") != "" {
		t.Fatalf("foreign origin allowed: %d", resp.StatusCode)
	}

	resp, _ = srv.do(t, http.MethodOptions, "/api/submissions", nil, http.Header{
		"Origin":                        {"https://quiz.example"},
		"Access-Control-Request-Method": {"POST"},
	})
	if resp.StatusCode >= 300 {
		t.Fatalf("expected successful preflight, got %d", resp.StatusCode)
	}
	if resp.Header.Get("Access-Control-Allow-Origin") != "https://quiz.example" || resp.Header.Get("Access-Control-Max-Age") != "600" {
		t.Fatalf("preflight headers missing: %v", resp.Header)
	}
	if !strings.Contains(resp.Header.Get("Access-Control-Allow-Methods"), http.MethodPost) {
		t.Fatalf("POST not allowed by preflight: %v", resp.Header)
	}

	resp, _ = srv.do(t, http.MethodOptions, "/api/submissions", nil, http.Header{
		"Origin":                        {"https://evil.example"},
		"Access-Control-Request-Method": {"POST"},
	})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected foreign preflight 403, got %d", resp.StatusCode)
	}

	resp, _ = srv.do(t, http.MethodGet, "/api/health", nil, nil)
	if resp.StatusCode != http.StatusOK || resp.Header.Get("X-Content-Type-Options") != "nosniff" {
		t.Fatalf("expected security headers on same-origin request")
	}
}

func TestCORSEmptyListAllowsAnyOrigin(t *testing.T) {
	srv := newTestServer(t, nil, Options{})
	resp, _ := srv.do(t, http.MethodGet, "/api/health", nil, http.Header{"Origin": {"http://localhost:5173"}})
	if resp.StatusCode != http.StatusOK || resp.Header.Get("Access-Control-Allow-Origin") != "http://localhost:5173" {
		t.Fatalf("expected any origin in development, got %d %v", resp.StatusCode, resp.Header)
	}
	if !strings.EqualFold(resp.Header.Get("Access-Control-Expose-Headers"), RequestIDHeader) {
		t.Fatalf("request id header not exposed: %v", resp.Header)
	}
}

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{domain.Invalid("bad"), http.StatusBadRequest},
		{domain.ErrVerificationFailed, http.StatusForbidden},
		{fmt.Errorf("%w: eof", domain.ErrVerificationFailed), http.StatusForbidden},
		{domain.ErrRateLimited, http.StatusTooManyRequests},
		{domain.ErrBudgetExhausted, http.StatusServiceUnavailable},
		{domain.ErrCapacityExhausted, http.StatusServiceUnavailable},
		{domain.ErrClassifierTimeout, http.StatusGatewayTimeout},
		{errors.New("db down"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got, _ := statusFor(tc.err); got != tc.want {
			t.Fatalf("%v: expected %d, got %d", tc.err, tc.want, got)
		}
	}
}
