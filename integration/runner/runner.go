package runner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jwebster45206/village-mystery/internal/handlers"
	"github.com/jwebster45206/village-mystery/pkg/chat"
)

type ErrorHandlingMode string

const ErrorHandlingExit ErrorHandlingMode = "exit"
const ErrorHandlingContinue ErrorHandlingMode = "continue"

// Runner plays scripted sessions against a running API.
type Runner struct {
	BaseURL           string
	Client            *http.Client
	Timeout           time.Duration
	Logger            func(format string, args ...any)
	ErrorHandlingMode ErrorHandlingMode
}

func NewRunner(baseURL string) *Runner {
	return &Runner{
		BaseURL:           strings.TrimSuffix(baseURL, "/"),
		Client:            &http.Client{Timeout: 2 * time.Minute},
		Timeout:           90 * time.Second,
		Logger:            func(string, ...any) {},
		ErrorHandlingMode: ErrorHandlingContinue,
	}
}

// LoadTestSuite reads a JSON case file.
func LoadTestSuite(filename string) (TestSuite, error) {
	content, err := os.ReadFile(filename)
	if err != nil {
		return TestSuite{}, fmt.Errorf("failed to read test file %s: %w", filename, err)
	}
	var suite TestSuite
	if err := json.Unmarshal(content, &suite); err != nil {
		return TestSuite{}, fmt.Errorf("failed to parse JSON in %s: %w", filename, err)
	}
	return suite, nil
}

// LoadTestSuiteWithExpansion loads a case file, expanding sequences into the
// cases they reference (relative to casesDir).
func LoadTestSuiteWithExpansion(filename string, casesDir string) ([]TestJob, error) {
	suite, err := LoadTestSuite(filename)
	if err != nil {
		return nil, err
	}
	if !suite.IsSequence() {
		return []TestJob{{Name: suite.Name, Suite: suite, CaseFile: filename}}, nil
	}

	var jobs []TestJob
	for _, caseFile := range suite.Cases {
		subJobs, err := LoadTestSuiteWithExpansion(filepath.Join(casesDir, caseFile), casesDir)
		if err != nil {
			return nil, fmt.Errorf("failed to load case '%s' referenced by sequence '%s': %w", caseFile, suite.Name, err)
		}
		jobs = append(jobs, subJobs...)
	}
	return jobs, nil
}

// RunSuite plays a suite in a fresh session.
func (r *Runner) RunSuite(ctx context.Context, suite TestSuite) (TestRunResult, error) {
	start := time.Now()
	result := TestRunResult{
		Job:       TestJob{Name: suite.Name, Suite: suite},
		Results:   make([]TestResult, 0, len(suite.Steps)),
		SessionID: "it-" + uuid.NewString(),
	}

	if err := r.reset(ctx, result.SessionID); err != nil {
		result.Error = fmt.Errorf("failed to start session: %w", err)
		result.Duration = time.Since(start)
		return result, result.Error
	}

	for i, step := range suite.Steps {
		r.Logger("    [%d/%d] Running step: %s", i+1, len(suite.Steps), step.Name)
		res := r.runStep(ctx, result.SessionID, step)
		result.Results = append(result.Results, res)

		if res.Error != nil {
			r.Logger("    [%d/%d] ✗ %s: %v", i+1, len(suite.Steps), step.Name, res.Error)
			if result.Error == nil {
				result.Error = fmt.Errorf("step %d (%s) failed: %w", i, step.Name, res.Error)
			}
			if r.ErrorHandlingMode == ErrorHandlingExit {
				break
			}
			continue
		}
		r.Logger("    [%d/%d] ✓ %s (%v)", i+1, len(suite.Steps), step.Name, res.Duration)
	}

	result.Duration = time.Since(start)
	return result, result.Error
}

func (r *Runner) runStep(ctx context.Context, sessionID string, step TestStep) TestResult {
	start := time.Now()
	res := TestResult{StepName: step.Name}
	ctx, cancel := context.WithTimeout(ctx, r.Timeout)
	defer cancel()

	if step.UserInput == ResetPrompt {
		res.IsReset = true
		res.Error = r.reset(ctx, sessionID)
		res.Success = res.Error == nil
		res.Duration = time.Since(start)
		return res
	}

	status, resp, err := r.chat(ctx, sessionID, step.UserInput)
	res.Duration = time.Since(start)
	if err != nil {
		res.Error = err
		return res
	}
	if resp != nil {
		res.ResponseText = resp.Message
	}
	if err := r.check(ctx, sessionID, step.Expectations, status, resp); err != nil {
		res.Error = err
		return res
	}
	res.Success = true
	return res
}

func (r *Runner) check(ctx context.Context, sessionID string, exp Expectations, status int, resp *chat.ChatResponse) error {
	wantStatus := http.StatusOK
	if exp.Status != nil {
		wantStatus = *exp.Status
	}
	if status != wantStatus {
		return fmt.Errorf("status: expected %d, got %d", wantStatus, status)
	}
	if resp == nil {
		return nil
	}

	if exp.Location != nil && resp.Location != *exp.Location {
		return fmt.Errorf("location: expected %q, got %q", *exp.Location, resp.Location)
	}
	if exp.Win != nil && resp.Win != *exp.Win {
		return fmt.Errorf("win: expected %q, got %q", *exp.Win, resp.Win)
	}
	if exp.TalkNPC != nil {
		if resp.Talk == nil {
			return fmt.Errorf("talk: expected a reply from %q, got none", *exp.TalkNPC)
		}
		if resp.Talk.NPCName != *exp.TalkNPC {
			return fmt.Errorf("talk: expected %q, got %q", *exp.TalkNPC, resp.Talk.NPCName)
		}
	}
	if exp.Inventory != nil {
		var inv handlers.InventoryResponse
		if err := r.get(ctx, "/check_inventory?session_id="+url.QueryEscape(sessionID), &inv); err != nil {
			return err
		}
		got, want := slices.Clone(inv.Inventory), slices.Clone(exp.Inventory)
		slices.Sort(got)
		slices.Sort(want)
		if !slices.Equal(got, want) {
			return fmt.Errorf("inventory: expected %v, got %v", want, got)
		}
	}

	text := strings.ToLower(resp.Message)
	for _, s := range exp.ResponseContains {
		if !strings.Contains(text, strings.ToLower(s)) {
			return fmt.Errorf("response does not contain %q", s)
		}
	}
	for _, s := range exp.ResponseNotContains {
		if strings.Contains(text, strings.ToLower(s)) {
			return fmt.Errorf("response contains %q", s)
		}
	}
	if exp.ResponseRegex != "" {
		re, err := regexp.Compile(exp.ResponseRegex)
		if err != nil {
			return fmt.Errorf("invalid response_regex: %w", err)
		}
		if !re.MatchString(resp.Message) {
			return fmt.Errorf("response does not match %q", exp.ResponseRegex)
		}
	}
	if exp.ResponseMinLength != nil && len(resp.Message) < *exp.ResponseMinLength {
		return fmt.Errorf("response shorter than %d", *exp.ResponseMinLength)
	}
	if exp.ResponseMaxLength != nil && len(resp.Message) > *exp.ResponseMaxLength {
		return fmt.Errorf("response longer than %d", *exp.ResponseMaxLength)
	}
	return nil
}

// chat posts one turn. Non-200 statuses are returned without a response.
func (r *Runner) chat(ctx context.Context, sessionID, input string) (int, *chat.ChatResponse, error) {
	body, err := json.Marshal(chat.ChatRequest{SessionID: sessionID, UserInput: input})
	if err != nil {
		return 0, nil, fmt.Errorf("failed to marshal chat request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.BaseURL+"/chat", bytes.NewReader(body))
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.Client.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("chat request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return resp.StatusCode, nil, nil
	}
	var out chat.ChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return resp.StatusCode, nil, fmt.Errorf("failed to decode chat response: %w", err)
	}
	return resp.StatusCode, &out, nil
}

func (r *Runner) reset(ctx context.Context, sessionID string) error {
	body, err := json.Marshal(handlers.ResetRequest{SessionID: sessionID})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.BaseURL+"/reset", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := r.Client.Do(req)
	if err != nil {
		return fmt.Errorf("reset request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("reset returned %d: %s", resp.StatusCode, string(data))
	}
	return nil
}

func (r *Runner) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.BaseURL+path, nil)
	if err != nil {
		return err
	}
	resp, err := r.Client.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s failed: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s returned %d", path, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
