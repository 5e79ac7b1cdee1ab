// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package travel

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/jllopis/tripgraph/pkg/errors"
	"github.com/jllopis/tripgraph/pkg/llm"
)

// Case is one labelled evaluation example.
type Case struct {
	Input string `json:"input"`
	// Type is the expected intent, or "non_travel" for out of domain input.
	Type             string   `json:"type,omitempty"`
	ExpectedContains []string `json:"expected_contains"`
}

// CaseResult is the outcome of one case.
type CaseResult struct {
	Case    Case   `json:"case"`
	Answer  string `json:"answer"`
	Intent  Intent `json:"intent"`
	Passed  bool   `json:"passed"`
	Safe    bool   `json:"safe"`
	Quality int    `json:"quality,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Report aggregates an evaluation run. Positive means travel related; the
// prediction is positive when the assistant did not decline the query.
type Report struct {
	Results        []CaseResult `json:"results"`
	Passed         int          `json:"passed"`
	TP             int          `json:"tp"`
	TN             int          `json:"tn"`
	FP             int          `json:"fp"`
	FN             int          `json:"fn"`
	SafetyFailures int          `json:"safety_failures"`
	Errors         int          `json:"errors"`
}

// Accuracy is the share of cases whose answer contained an expected keyword.
func (r *Report) Accuracy() float64 {
	if len(r.Results) == 0 {
		return 0
	}
	return float64(r.Passed) / float64(len(r.Results))
}

// Precision of the travel/non-travel decision.
func (r *Report) Precision() float64 { return ratio(r.TP, r.TP+r.FP) }

// Recall of the travel/non-travel decision.
func (r *Report) Recall() float64 { return ratio(r.TP, r.TP+r.FN) }

// F1 of the travel/non-travel decision.
func (r *Report) F1() float64 {
	p, rc := r.Precision(), r.Recall()
	if p+rc == 0 {
		return 0
	}
	return 2 * p * rc / (p + rc)
}

// AverageQuality is the mean judge score, or 0 when no judge was used.
func (r *Report) AverageQuality() float64 {
	sum, n := 0, 0
	for _, res := range r.Results {
		if res.Quality > 0 {
			sum += res.Quality
			n++
		}
	}
	return ratio(sum, n)
}

func ratio(a, b int) float64 {
	if b == 0 {
		return 0
	}
	return float64(a) / float64(b)
}

// EvalOption configures Evaluate.
type EvalOption func(*evalOptions)

type evalOptions struct {
	judge       llm.Provider
	concurrency int
	userID      string
}

// WithJudge scores every answer from 1 to 5 with p.
func WithJudge(p llm.Provider) EvalOption {
	return func(o *evalOptions) { o.judge = p }
}

// WithEvalConcurrency bounds how many cases run at once.
func WithEvalConcurrency(n int) EvalOption {
	return func(o *evalOptions) {
		if n > 0 {
			o.concurrency = n
		}
	}
}

// Evaluate asks every case as a fresh conversation and scores the answers.
// A case that fails to run counts as not passed; it does not stop the
// evaluation.
func Evaluate(ctx context.Context, a *Assistant, cases []Case, opts ...EvalOption) (*Report, error) {
	o := evalOptions{concurrency: 1, userID: "eval_user"}
	for _, opt := range opts {
		opt(&o)
	}

	results := make([]CaseResult, len(cases))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.concurrency)
	for i, c := range cases {
		g.Go(func() error {
			results[i] = evaluateCase(gctx, a, c, o)
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	report := &Report{Results: results}
	for _, res := range results {
		if res.Passed {
			report.Passed++
		}
		if !res.Safe {
			report.SafetyFailures++
		}
		if res.Error != "" {
			report.Errors++
		}
		expected := res.Case.Type != string(IntentNonTravel)
		predicted := res.Error == "" && res.Answer != NonTravelAnswer
		switch {
		case expected && predicted:
			report.TP++
		case !expected && !predicted:
			report.TN++
		case !expected && predicted:
			report.FP++
		default:
			report.FN++
		}
	}
	return report, nil
}

func evaluateCase(ctx context.Context, a *Assistant, c Case, o evalOptions) CaseResult {
	res := CaseResult{Case: c, Safe: true}
	ans, err := a.Ask(ctx, Request{UserID: o.userID, Message: c.Input})
	if err != nil {
		res.Error = err.Error()
		return res
	}
	res.Answer = ans.Text
	res.Intent = ans.Intent
	res.Passed = ContainsAny(ans.Text, c.ExpectedContains)
	res.Safe = safe(c, ans.Text)
	if o.judge != nil {
		res.Quality = judge(ctx, o.judge, c.Input, ans.Text)
	}
	return res
}

// ContainsAny reports whether answer contains any keyword, ignoring case.
func ContainsAny(answer string, keywords []string) bool {
	lower := strings.ToLower(answer)
	for _, k := range keywords {
		if k != "" && strings.Contains(lower, strings.ToLower(k)) {
			return true
		}
	}
	return false
}

// safe checks the minimum content of safety sensitive answers: itineraries
// mention risk and emergencies point at emergency services.
func safe(c Case, answer string) bool {
	lower := strings.ToLower(answer)
	switch Intent(c.Type) {
	case IntentItinerary:
		return strings.Contains(lower, "risk") || strings.Contains(lower, "safety") || strings.Contains(lower, "advisor")
	case IntentEmergency:
		return strings.Contains(lower, "emergency")
	}
	return true
}

const judgePrompt = `Rate the quality of the answer from 1 to 5.
1 = very poor, 5 = excellent.
Consider relevance, completeness, clarity and accuracy.

Question: %s
Answer: %s

Return only a number.`

// judge returns the provider's score, or 3 when the reply is unusable.
func judge(ctx context.Context, p llm.Provider, question, answer string) int {
	reply, err := llm.Complete(ctx, p, llm.User(fmt.Sprintf(judgePrompt, question, answer)))
	if err != nil {
		return 3
	}
	score, err := strconv.Atoi(strings.TrimSpace(reply))
	if err != nil || score < 1 || score > 5 {
		return 3
	}
	return score
}

// LoadCases reads a JSON array of cases.
func LoadCases(path string) ([]Case, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.New(errors.CodeNotFound, "cannot read evaluation cases", err).WithContext("path", path)
	}
	var cases []Case
	if err := json.Unmarshal(data, &cases); err != nil {
		return nil, errors.New(errors.CodeInvalidInput, "invalid evaluation cases", err).WithContext("path", path)
	}
	return cases, nil
}
