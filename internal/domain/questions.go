package domain

// QuestionKind controls which fields a response must carry.
type QuestionKind string

const (
	KindChoice QuestionKind = "choice"
	KindText   QuestionKind = "text"
	KindHybrid QuestionKind = "hybrid"
)

// QuestionCount is the fixed number of questions in the gauntlet.
const QuestionCount = 12

// MinFreeResponseLen is the minimum trimmed length of a required written answer.
const MinFreeResponseLen = 6

// Question is the server-side view of a quiz question.
type Question struct {
	ID     int
	Kind   QuestionKind
	Prompt string
}

// RequiresChoice reports whether a valid option id is mandatory.
func (q Question) RequiresChoice() bool {
	return q.Kind == KindChoice || q.Kind == KindHybrid
}

// RequiresText reports whether a written answer is mandatory.
func (q Question) RequiresText() bool {
	return q.Kind == KindText
}

// OptionIDs is the option alphabet shared by every choice question.
var OptionIDs = map[string]struct{}{
	"a": {}, "b": {}, "c": {}, "d": {}, "e": {},
}

// Questions is indexed by question id; index 0 is unused.
var Questions = [QuestionCount + 1]Question{
	{},
	{ID: 1, Kind: KindChoice, Prompt: "What stands out as the BIGGEST issue?"},
	{ID: 2, Kind: KindChoice, Prompt: "What's your strategic priority for next quarter?"},
	{ID: 3, Kind: KindChoice, Prompt: "What does the rising churn trend signal?"},
	{ID: 4, Kind: KindChoice, Prompt: "6-month growth strategy recommendation?"},
	{ID: 5, Kind: KindChoice, Prompt: "How do you handle the Series B term sheet pressure?"},
	{ID: 6, Kind: KindChoice, Prompt: "One sprint priority decision?"},
	{ID: 7, Kind: KindChoice, Prompt: "Which growth path do you choose?"},
	{ID: 8, Kind: KindChoice, Prompt: "How do you react to unrealistic fundraising math?"},
	{ID: 9, Kind: KindChoice, Prompt: "Assessment of startup health from interview signals?"},
	{ID: 10, Kind: KindChoice, Prompt: "Rank likely success outcomes."},
	{ID: 11, Kind: KindText, Prompt: "Worst product decision and ignored red flag."},
	{ID: 12, Kind: KindHybrid, Prompt: "At Series A, which metric worries you most and why?"},
}

// QuestionByID returns the question and whether the id is known.
func QuestionByID(id int) (Question, bool) {
	if id < 1 || id > QuestionCount {
		return Question{}, false
	}
	return Questions[id], true
}
