// Package evaluation scores agent responses against expectations. A Case
// pairs an input with the expected answer; an Evaluator grades what the agent
// actually produced. The harness in Run drives a ChatAgent over a case set
// and aggregates the grades, which is the usual regression check before
// changing prompts or swapping models.
package evaluation

import (
	"context"
	"fmt"
	"strings"

	"github.com/kernelmesh/kernelmesh/agent"
	"github.com/kernelmesh/kernelmesh/core"
	"github.com/kernelmesh/kernelmesh/memory"
)

// Case is a single evaluation input with its expected response.
type Case struct {
	Name     string
	Input    string
	Expected string
}

// Score grades a single response. Value is in [0, 1] where applicable.
type Score struct {
	Value  float64
	Pass   bool
	Reason string
}

// Evaluator grades an actual response against a case.
type Evaluator interface {
	Evaluate(ctx context.Context, c Case, actual string) (Score, error)
}

// Embedder is the embedding surface the similarity evaluator needs. It is
// satisfied by service.Embedder.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// SimilarityEvaluator grades responses by cosine similarity between the
// embedded expected and actual texts. A response passes when the similarity
// reaches the threshold.
type SimilarityEvaluator struct {
	embedder  Embedder
	threshold float64
}

// NewSimilarityEvaluator creates a similarity evaluator with the given pass
// threshold (typical values are 0.8 to 0.9).
func NewSimilarityEvaluator(embedder Embedder, threshold float64) *SimilarityEvaluator {
	return &SimilarityEvaluator{embedder: embedder, threshold: threshold}
}

// Evaluate implements Evaluator.
func (e *SimilarityEvaluator) Evaluate(ctx context.Context, c Case, actual string) (Score, error) {
	vectors, err := e.embedder.Embed(ctx, []string{c.Expected, actual})
	if err != nil {
		return Score{}, fmt.Errorf("failed to embed responses: %w", err)
	}
	sim := float64(memory.CosineSimilarity(vectors[0], vectors[1]))
	return Score{
		Value:  sim,
		Pass:   sim >= e.threshold,
		Reason: fmt.Sprintf("similarity %.3f (threshold %.3f)", sim, e.threshold),
	}, nil
}

// KeywordEvaluator passes a response when it contains every required keyword
// (case-insensitive). Value is the fraction of keywords found.
type KeywordEvaluator struct {
	keywords []string
}

// NewKeywordEvaluator creates a keyword evaluator.
func NewKeywordEvaluator(keywords ...string) *KeywordEvaluator {
	return &KeywordEvaluator{keywords: keywords}
}

// Evaluate implements Evaluator.
func (e *KeywordEvaluator) Evaluate(_ context.Context, _ Case, actual string) (Score, error) {
	if len(e.keywords) == 0 {
		return Score{Value: 1, Pass: true, Reason: "no keywords required"}, nil
	}
	lower := strings.ToLower(actual)
	var missing []string
	for _, kw := range e.keywords {
		if !strings.Contains(lower, strings.ToLower(kw)) {
			missing = append(missing, kw)
		}
	}
	found := len(e.keywords) - len(missing)
	score := Score{Value: float64(found) / float64(len(e.keywords)), Pass: len(missing) == 0}
	if score.Pass {
		score.Reason = "all keywords present"
	} else {
		score.Reason = fmt.Sprintf("missing keywords: %s", strings.Join(missing, ", "))
	}
	return score, nil
}

// Result is the graded outcome of one case.
type Result struct {
	Case   Case
	Actual string
	Score  Score
	Err    error
}

// Report aggregates results over a case set.
type Report struct {
	Results []Result
}

// Passed counts results that passed.
func (r Report) Passed() int {
	n := 0
	for _, res := range r.Results {
		if res.Err == nil && res.Score.Pass {
			n++
		}
	}
	return n
}

// PassRate returns the fraction of passed cases, zero for an empty report.
func (r Report) PassRate() float64 {
	if len(r.Results) == 0 {
		return 0
	}
	return float64(r.Passed()) / float64(len(r.Results))
}

// Run drives the agent over each case on a fresh thread and grades the final
// responses. Agent or grading failures are recorded per case; Run itself only
// fails when a thread cannot be created.
func Run(ctx context.Context, a *agent.ChatAgent, store core.SessionStore, evaluator Evaluator, cases []Case) (Report, error) {
	report := Report{Results: make([]Result, 0, len(cases))}
	for _, c := range cases {
		thread, err := agent.NewThread(store)
		if err != nil {
			return report, fmt.Errorf("failed to create thread for case %q: %w", c.Name, err)
		}

		res := Result{Case: c}
		content, err := a.Invoke(ctx, thread, c.Input)
		if err != nil {
			res.Err = err
			report.Results = append(report.Results, res)
			continue
		}
		res.Actual = content.JoinedText()

		score, err := evaluator.Evaluate(ctx, c, res.Actual)
		if err != nil {
			res.Err = err
		} else {
			res.Score = score
		}
		report.Results = append(report.Results, res)
	}
	return report, nil
}
