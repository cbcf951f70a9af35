package domain

import "time"

// UserInfo is the contact block a participant fills in before the quiz.
type UserInfo struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Company string `json:"company"`
}

// Response is a single answer. Empty fields are omitted when stored.
type Response struct {
	QuestionID       int    `json:"questionId"`
	SelectedOptionID string `json:"selectedOptionId,omitempty"`
	TextValue        string `json:"textValue,omitempty"`
	FollowUpValue    string `json:"followUpValue,omitempty"`
}

// SubmissionRequest is the normalized form of an inbound submission.
type SubmissionRequest struct {
	UserInfo          UserInfo
	Responses         []Response
	VerificationToken string
}

// Stats holds the numeric axes of a classification.
type Stats struct {
	GrowthFocus     float64 `json:"growthFocus"`
	RiskTolerance   string  `json:"riskTolerance"`
	DataDrivenScore float64 `json:"dataDrivenScore"`
}

// ClassificationResult is the canonical, clamped classifier output.
type ClassificationResult struct {
	Archetype            string   `json:"archetype"`
	Description          string   `json:"description"`
	Traits               []string `json:"traits"`
	ContextWhyItMatters  string   `json:"contextWhyItMatters"`
	Stats                Stats    `json:"stats"`
	SimilarityPercentage float64  `json:"similarityPercentage"`
}

// StoredSubmission is the durable, append-only submission row.
// Name, Email and Company hold ciphertext envelopes.
type StoredSubmission struct {
	ID               int64
	CreatedAt        time.Time
	Name             string
	Email            string
	Company          string
	EmailFingerprint string
	IPFingerprint    string
	Archetype        string
	Responses        []Response
	Results          ClassificationResult
	UserAgent        string
}

// Outcome labels an AttemptRecord.
type Outcome string

const (
	OutcomeAccepted            Outcome = "accepted"
	OutcomeBlockedIPBurst      Outcome = "blocked_ip_burst"
	OutcomeInvalidPayload      Outcome = "invalid_payload"
	OutcomeBlockedEmailBurst   Outcome = "blocked_email_burst"
	OutcomeBlockedVerification Outcome = "blocked_verification"
	OutcomeBlockedDuplicate    Outcome = "blocked_duplicate"
	OutcomeBlockedIPDaily      Outcome = "blocked_ip_daily"
	OutcomeBlockedBudget       Outcome = "blocked_budget"
	OutcomeAICapacity          Outcome = "ai_capacity"
	OutcomeAITimeout           Outcome = "ai_timeout"
	OutcomeAIError             Outcome = "ai_error"
	OutcomeStoreError          Outcome = "store_error"

	// OutcomeClassifying is written right before a paid classifier call.
	// It is a staging marker, not a terminal outcome, and is excluded from burst counts.
	OutcomeClassifying Outcome = "classifying"
)

// AttemptRecord is written for every submission attempt.
type AttemptRecord struct {
	CreatedAt        time.Time
	RequestID        string
	IPFingerprint    string
	EmailFingerprint string // empty when the email was never validated
	Outcome          Outcome
}

// Peer is an anonymized entry shown next to a participant's result.
type Peer struct {
	Name      string `json:"name"`
	Company   string `json:"company"`
	Archetype string `json:"archetype"`
}

// CountSnapshot is a cached submission total and when it was read.
type CountSnapshot struct {
	Total int       `json:"total"`
	At    time.Time `json:"at"`
}
