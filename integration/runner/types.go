package runner

import "time"

// ResetPrompt as a user_input starts the session over instead of chatting.
const ResetPrompt = "RESET_SESSION"

// TestSuite is one scripted play session, or a sequence of other case files.
type TestSuite struct {
	Name  string     `json:"name"`
	Steps []TestStep `json:"steps,omitempty"`
	Cases []string   `json:"cases,omitempty"`
}

// IsSequence reports whether the suite only references other cases.
func (ts *TestSuite) IsSequence() bool {
	return len(ts.Cases) > 0
}

// TestStep is one player input and what must hold afterwards.
type TestStep struct {
	Name         string       `json:"name,omitempty"`
	UserInput    string       `json:"user_input"`
	Expectations Expectations `json:"expect"`
}

// Expectations are checked against the chat response and the session views.
type Expectations struct {
	Location  *string  `json:"location,omitempty"`
	Inventory []string `json:"inventory,omitempty"` // order independent
	Win       *string  `json:"win,omitempty"`
	TalkNPC   *string  `json:"talk_npc,omitempty"`
	Status    *int     `json:"status,omitempty"` // expected HTTP status, 200 when unset

	ResponseContains    []string `json:"response_contains,omitempty"`
	ResponseNotContains []string `json:"response_not_contains,omitempty"`
	ResponseRegex       string   `json:"response_regex,omitempty"`
	ResponseMinLength   *int     `json:"response_min_length,omitempty"`
	ResponseMaxLength   *int     `json:"response_max_length,omitempty"`
}

// TestResult is the outcome of one step.
type TestResult struct {
	StepName     string
	Success      bool
	Error        error
	Duration     time.Duration
	ResponseText string
	IsReset      bool // reset steps do not count toward pass/fail totals
}

// TestJob is a loaded suite ready to run.
type TestJob struct {
	Name     string
	Suite    TestSuite
	CaseFile string
}

// TestRunResult is the outcome of a whole suite.
type TestRunResult struct {
	Job       TestJob
	Results   []TestResult
	Error     error
	Duration  time.Duration
	SessionID string
}

// Passed counts successful non-reset steps.
func (r TestRunResult) Passed() (passed, total int) {
	for _, res := range r.Results {
		if res.IsReset {
			continue
		}
		total++
		if res.Success {
			passed++
		}
	}
	return passed, total
}
