package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gauntlet-service/internal/classifier"
	"gauntlet-service/internal/domain"
	"gauntlet-service/internal/logger"
	"gauntlet-service/internal/pii"
	"gauntlet-service/internal/textutil"
	"golang.org/x/sync/singleflight"
)

const (
	maxUserAgentLen    = 256
	defaultDailyBudget = 500
)

// Dependencies are the collaborators of SubmissionService.
type Dependencies struct {
	Store      SubmissionStore
	Classifier *classifier.Bounded
	Verifier   Verifier
	StatsCache StatsCache
	Hasher     *pii.Hasher
	Cipher     *pii.Cipher
	Logger     *logger.Logger
}

// Options tune SubmissionService. Zero values fall back to production defaults.
type Options struct {
	Limits         Limits
	SeededBaseline int
	StatsFreshFor  time.Duration
	Now            func() time.Time
}

// SubmissionService runs the ingestion pipeline and the read paths.
type SubmissionService struct {
	store      SubmissionStore
	gate       *Gate
	classifier *classifier.Bounded
	cache      StatsCache
	hasher     *pii.Hasher
	cipher     *pii.Cipher
	log        *logger.Logger
	now        func() time.Time

	seededBaseline int
	statsFreshFor  time.Duration
	sf             singleflight.Group
}

func NewSubmissionService(deps Dependencies, opts Options) *SubmissionService {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Limits == (Limits{}) {
		opts.Limits = DefaultLimits(defaultDailyBudget)
	}
	if opts.StatsFreshFor <= 0 {
		opts.StatsFreshFor = 30 * time.Second
	}
	if deps.Logger == nil {
		deps.Logger = logger.Nop()
	}
	return &SubmissionService{
		store:          deps.Store,
		gate:           NewGate(deps.Store, deps.Verifier, opts.Limits, opts.Now),
		classifier:     deps.Classifier,
		cache:          deps.StatsCache,
		hasher:         deps.Hasher,
		cipher:         deps.Cipher,
		log:            deps.Logger,
		now:            opts.Now,
		seededBaseline: opts.SeededBaseline,
		statsFreshFor:  opts.StatsFreshFor,
	}
}

// Submission is the transport-independent view of one POST.
type Submission struct {
	Body      []byte
	ClientIP  string
	UserAgent string
	RequestID string
}

// Submit validates, gates, classifies and persists one submission.
// The checks run strictly in order and stop at the first failure; each
// failure is recorded as an attempt before it is returned.
func (s *SubmissionService) Submit(ctx context.Context, in Submission) (domain.ClassificationResult, error) {
	clientIP := pii.NormalizeIP(in.ClientIP)
	attempt := domain.AttemptRecord{
		RequestID:     in.RequestID,
		IPFingerprint: s.hasher.Fingerprint(clientIP),
	}
	reject := func(outcome domain.Outcome, err error) (domain.ClassificationResult, error) {
		attempt.Outcome = outcome
		s.logAttempt(ctx, attempt)
		return domain.ClassificationResult{}, err
	}

	if outcome, err := s.gate.CheckIPBurst(ctx, attempt.IPFingerprint); err != nil {
		return reject(outcome, err)
	}

	req, err := ValidateSubmission(in.Body)
	if err != nil {
		return reject(domain.OutcomeInvalidPayload, err)
	}
	attempt.EmailFingerprint = s.hasher.Fingerprint(req.UserInfo.Email)

	checks := []func() (domain.Outcome, error){
		func() (domain.Outcome, error) { return s.gate.CheckEmailBurst(ctx, attempt.EmailFingerprint) },
		func() (domain.Outcome, error) { return s.gate.CheckVerification(ctx, req.VerificationToken, clientIP) },
		func() (domain.Outcome, error) { return s.gate.CheckDuplicate(ctx, attempt.EmailFingerprint) },
		func() (domain.Outcome, error) { return s.gate.CheckIPDaily(ctx, attempt.IPFingerprint) },
		func() (domain.Outcome, error) { return s.gate.CheckBudget(ctx) },
	}
	for _, check := range checks {
		if outcome, err := check(); err != nil {
			return reject(outcome, err)
		}
	}

	ticket, err := s.classifier.Reserve()
	if err != nil {
		return reject(domain.OutcomeAICapacity, err)
	}
	staged := attempt
	staged.Outcome = domain.OutcomeClassifying
	s.logAttempt(ctx, staged)

	result, err := ticket.Classify(ctx, req.Responses, req.UserInfo.Name)
	if err != nil {
		if errors.Is(err, domain.ErrClassifierTimeout) {
			return reject(domain.OutcomeAITimeout, err)
		}
		return reject(domain.OutcomeAIError, err)
	}

	if err := s.persist(ctx, req, result, attempt, textutil.Clean(in.UserAgent, maxUserAgentLen)); err != nil {
		s.log.Error("submission write failed after classification",
			"request_id", in.RequestID, "archetype", result.Archetype, "error", err)
		return reject(domain.OutcomeStoreError, err)
	}

	attempt.Outcome = domain.OutcomeAccepted
	s.logAttempt(ctx, attempt)
	return result, nil
}

func (s *SubmissionService) persist(ctx context.Context, req domain.SubmissionRequest, result domain.ClassificationResult, attempt domain.AttemptRecord, userAgent string) error {
	name, err := s.cipher.Encrypt(req.UserInfo.Name)
	if err != nil {
		return fmt.Errorf("encrypt name: %w", err)
	}
	email, err := s.cipher.Encrypt(req.UserInfo.Email)
	if err != nil {
		return fmt.Errorf("encrypt email: %w", err)
	}
	company, err := s.cipher.Encrypt(req.UserInfo.Company)
	if err != nil {
		return fmt.Errorf("encrypt company: %w", err)
	}
	_, err = s.store.SaveSubmission(ctx, domain.StoredSubmission{
		CreatedAt:        s.now(),
		Name:             name,
		Email:            email,
		Company:          company,
		EmailFingerprint: attempt.EmailFingerprint,
		IPFingerprint:    attempt.IPFingerprint,
		Archetype:        result.Archetype,
		Responses:        req.Responses,
		Results:          result,
		UserAgent:        userAgent,
	})
	if err != nil {
		return fmt.Errorf("save submission: %w", err)
	}
	return nil
}

// logAttempt is best-effort: failures are logged and never fail the request.
func (s *SubmissionService) logAttempt(ctx context.Context, rec domain.AttemptRecord) {
	rec.CreatedAt = s.now()
	if err := s.store.LogAttempt(context.WithoutCancel(ctx), rec); err != nil {
		s.log.Warn("attempt log failed", "request_id", rec.RequestID, "outcome", string(rec.Outcome), "error", err)
	}
}
