package app

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"gauntlet-service/internal/domain"
	"gauntlet-service/internal/textutil"
)

const (
	maxNameLen     = 80
	maxEmailLen    = 200
	maxCompanyLen  = 120
	maxTextLen     = 700
	maxFollowUpLen = 320
	maxHoneypotLen = 300
	maxTokenLen    = 2048
	minNameLen     = 2

	// DefaultCompany is stored when the participant leaves the company blank.
	DefaultCompany = "Private"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// ValidateSubmission turns an untrusted JSON body into a normalized request.
// Every rule short-circuits with a *domain.ValidationError.
func ValidateSubmission(body []byte) (domain.SubmissionRequest, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var payload map[string]any
	if err := dec.Decode(&payload); err != nil || payload == nil {
		return domain.SubmissionRequest{}, domain.Invalid("Invalid payload.")
	}
	if err := dec.Decode(new(json.RawMessage)); !errors.Is(err, io.EOF) {
		return domain.SubmissionRequest{}, domain.Invalid("Invalid payload.")
	}

	if honeypotFilled(payload["honeypot"]) {
		return domain.SubmissionRequest{}, domain.Invalid("Suspicious submission blocked.")
	}

	userInfo, ok := payload["userInfo"].(map[string]any)
	if !ok {
		return domain.SubmissionRequest{}, domain.Invalid("Missing user details.")
	}
	name := textutil.Clean(asString(userInfo["name"]), maxNameLen)
	email := strings.ToLower(textutil.Clean(asString(userInfo["email"]), maxEmailLen))
	company := textutil.Clean(asString(userInfo["company"]), maxCompanyLen)
	if company == "" {
		company = DefaultCompany
	}
	if len([]rune(name)) < minNameLen {
		return domain.SubmissionRequest{}, domain.Invalid("Name is too short.")
	}
	if !emailPattern.MatchString(email) {
		return domain.SubmissionRequest{}, domain.Invalid("Invalid email format.")
	}

	rawResponses, ok := payload["responses"].([]any)
	if !ok || len(rawResponses) != domain.QuestionCount {
		return domain.SubmissionRequest{}, domain.Invalid("All questions must be answered.")
	}

	seen := make(map[int]struct{}, domain.QuestionCount)
	responses := make([]domain.Response, 0, domain.QuestionCount)
	for _, raw := range rawResponses {
		item, ok := raw.(map[string]any)
		if !ok {
			return domain.SubmissionRequest{}, domain.Invalid("Malformed response item.")
		}
		resp, err := normalizeResponse(item, seen)
		if err != nil {
			return domain.SubmissionRequest{}, err
		}
		responses = append(responses, resp)
	}

	if len(seen) != domain.QuestionCount {
		return domain.SubmissionRequest{}, domain.Invalid(fmt.Sprintf("All %d questions are required.", domain.QuestionCount))
	}

	sort.Slice(responses, func(i, j int) bool {
		return responses[i].QuestionID < responses[j].QuestionID
	})

	return domain.SubmissionRequest{
		UserInfo:          domain.UserInfo{Name: name, Email: email, Company: company},
		Responses:         responses,
		VerificationToken: strings.TrimSpace(truncate(asString(payload["turnstileToken"]), maxTokenLen)),
	}, nil
}

func normalizeResponse(item map[string]any, seen map[int]struct{}) (domain.Response, error) {
	questionID, ok := asInt(item["questionId"])
	question, known := domain.QuestionByID(questionID)
	if !ok || !known {
		return domain.Response{}, domain.Invalid("Invalid question id in responses.")
	}
	if _, dup := seen[questionID]; dup {
		return domain.Response{}, domain.Invalid("Duplicate question answers are not allowed.")
	}
	seen[questionID] = struct{}{}

	option := strings.ToLower(textutil.Clean(asString(item["selectedOptionId"]), 2))
	if _, valid := domain.OptionIDs[option]; !valid {
		if question.RequiresChoice() {
			return domain.Response{}, domain.Invalid(fmt.Sprintf("Question %d is missing a valid choice.", questionID))
		}
		option = ""
	}

	text := textutil.Clean(asString(item["textValue"]), maxTextLen)
	if question.RequiresText() && len([]rune(text)) < domain.MinFreeResponseLen {
		return domain.Response{}, domain.Invalid(fmt.Sprintf("Question %d requires a short written answer.", questionID))
	}

	return domain.Response{
		QuestionID:       questionID,
		SelectedOptionID: option,
		TextValue:        text,
		FollowUpValue:    textutil.Clean(asString(item["followUpValue"]), maxFollowUpLen),
	}, nil
}

// honeypotFilled reports whether the hidden field carries anything. Real
// clients send nothing, null or an empty string.
func honeypotFilled(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case string:
		return textutil.Clean(t, maxHoneypotLen) != ""
	default:
		return true
	}
}

// asString returns v when it is a JSON string and "" for any other shape.
func asString(v any) string {
	s, _ := v.(string)
	return s
}

// asInt accepts JSON numbers and numeric strings that denote an integer.
func asInt(v any) (int, bool) {
	var raw string
	switch n := v.(type) {
	case json.Number:
		raw = n.String()
	case string:
		raw = strings.TrimSpace(n)
	default:
		return 0, false
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, false
	}
	if f < math.MinInt32 || f > math.MaxInt32 {
		return 0, false
	}
	return int(f), true
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
