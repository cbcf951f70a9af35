package app_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"gauntlet-service/internal/app"
	"gauntlet-service/internal/classifier"
	"gauntlet-service/internal/domain"
	"gauntlet-service/internal/infra/memory"
	"gauntlet-service/internal/pii"
)

const (
	testHashSecret       = "test-hash-secret-0123456789abcdef"
	testEncryptionSecret = "test-encryption-secret-0123456789"
)

var testNow = time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

const scaleRealist = `{
	"archetype": "The Scale Realist",
	"description": "Balances ambition with operational reality.",
	"traits": ["Pragmatic", "Systems thinker", "Calm under pressure"],
	"contextWhyItMatters": "Thrives when growth stresses the system.",
	"stats": {"growthFocus": 72, "riskTolerance": "Medium", "dataDrivenScore": 8},
	"similarityPercentage": 23
}`

// countingClient records calls and delegates to fn.
type countingClient struct {
	calls atomic.Int64
	fn    func(ctx context.Context, prompt string) (string, error)
}

func (c *countingClient) Generate(ctx context.Context, prompt string) (string, error) {
	c.calls.Add(1)
	return c.fn(ctx, prompt)
}

func staticClient(text string) *countingClient {
	return &countingClient{fn: func(ctx context.Context, prompt string) (string, error) { return text, nil }}
}

type stubVerifier struct {
	ok  bool
	err error
}

func (v stubVerifier) Enabled() bool { return true }
func (v stubVerifier) Verify(ctx context.Context, token, remoteIP string) (bool, error) {
	return v.ok, v.err
}

// flakyStore fails selected operations on top of the in-memory store.
type flakyStore struct {
	*memory.Store
	countErr error
	saveErr  error
}

func (s *flakyStore) CountAttemptsByIP(ctx context.Context, ip string, since time.Time) (int, error) {
	if s.countErr != nil {
		return 0, s.countErr
	}
	return s.Store.CountAttemptsByIP(ctx, ip, since)
}

func (s *flakyStore) CountSubmissions(ctx context.Context, since time.Time) (int, error) {
	if s.countErr != nil {
		return 0, s.countErr
	}
	return s.Store.CountSubmissions(ctx, since)
}

func (s *flakyStore) SaveSubmission(ctx context.Context, sub domain.StoredSubmission) (int64, error) {
	if s.saveErr != nil {
		return 0, s.saveErr
	}
	return s.Store.SaveSubmission(ctx, sub)
}

var errStoreDown = errors.New("store unavailable")

type serviceOpts struct {
	store    app.SubmissionStore
	client   classifier.Client
	verifier app.Verifier
	cache    app.StatsCache
	limits   app.Limits
	max      int
	timeout  time.Duration
	now      func() time.Time
}

func newTestService(t *testing.T, o serviceOpts) *app.SubmissionService {
	t.Helper()
	if o.store == nil {
		o.store = memory.NewStore()
	}
	if o.client == nil {
		o.client = staticClient(scaleRealist)
	}
	if o.max == 0 {
		o.max = 4
	}
	if o.timeout == 0 {
		o.timeout = time.Second
	}
	if o.now == nil {
		o.now = func() time.Time { return testNow }
	}
	if o.limits == (app.Limits{}) {
		o.limits = app.DefaultLimits(500)
	}
	cipher, err := pii.NewCipher(testEncryptionSecret)
	if err != nil {
		t.Fatalf("cipher: %v", err)
	}
	return app.NewSubmissionService(app.Dependencies{
		Store:      o.store,
		Classifier: classifier.NewBounded(o.client, o.max, o.timeout),
		Verifier:   o.verifier,
		StatsCache: o.cache,
		Hasher:     pii.NewHasher(testHashSecret),
		Cipher:     cipher,
	}, app.Options{
		Limits:         o.limits,
		SeededBaseline: 200,
		Now:            o.now,
	})
}

// submissionPayload builds a complete, valid request body as a generic map so
// tests can break individual fields.
func submissionPayload(email string) map[string]any {
	responses := make([]any, 0, domain.QuestionCount)
	for id := 1; id <= domain.QuestionCount; id++ {
		item := map[string]any{"questionId": id, "selectedOptionId": "b"}
		switch id {
		case 11:
			item = map[string]any{"questionId": id, "textValue": "We shipped a feature nobody asked for."}
		case 12:
			item["textValue"] = "Because the data said so."
		}
		responses = append(responses, item)
	}
	return map[string]any{
		"userInfo": map[string]any{
			"name":    "Ada Lovelace",
			"email":   email,
			"company": "Analytical Engines",
		},
		"responses": responses,
	}
}

func encode(t *testing.T, payload map[string]any) []byte {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return body
}

func validBody(t *testing.T, email string) []byte {
	return encode(t, submissionPayload(email))
}

func submission(body []byte, ip string) app.Submission {
	return app.Submission{Body: body, ClientIP: ip, UserAgent: "test-agent", RequestID: "req-1"}
}

func lastOutcome(t *testing.T, store *memory.Store) domain.Outcome {
	t.Helper()
	attempts := store.Attempts()
	if len(attempts) == 0 {
		t.Fatalf("no attempts logged")
	}
	return attempts[len(attempts)-1].Outcome
}
