package domain

// AnswerStatus is the terminal state of an answer's verification lifecycle.
type AnswerStatus string

const (
	// StatusGenerated means a draft exists and no verification was requested.
	StatusGenerated AnswerStatus = "generated"
	// StatusValidated means the composite score met the caller's threshold.
	StatusValidated AnswerStatus = "validated"
	// StatusCorrected means the correction pass replaced the draft answer.
	StatusCorrected AnswerStatus = "corrected"
	// StatusNeedsImprovement means the score fell short and the correction
	// pass either was not run to completion or itself failed; the original
	// answer is surfaced unchanged.
	StatusNeedsImprovement AnswerStatus = "needs_improvement"
	// StatusNoContext means retrieval produced no chunks at all.
	StatusNoContext AnswerStatus = "no_context"
	// StatusError means generation or a judge call failed outright.
	StatusError AnswerStatus = "error"
)

// Composite score weights. Faithfulness and relevance dominate; context
// relevance only sanity-checks retrieval.
const (
	WeightContextRelevance   = 0.2
	WeightAnswerFaithfulness = 0.4
	WeightAnswerRelevance    = 0.4

	// ComponentPassThreshold is the per-check pass mark and also the neutral
	// score substituted when a judge response cannot be parsed.
	ComponentPassThreshold = 0.5
)

// VerificationResult is one judge check. Ephemeral, never persisted.
type VerificationResult struct {
	Score       float64
	Passed      bool
	Explanation string
}

// VerificationReport aggregates the three checks and their weighted composite.
type VerificationReport struct {
	ContextRelevance   VerificationResult
	AnswerFaithfulness VerificationResult
	AnswerRelevance    VerificationResult
	Composite          float64
}

// CompositeScore computes the weighted sum of the three component scores.
// For component scores in [0,1] the result is always in [0,1].
func CompositeScore(contextRelevance, faithfulness, relevance float64) float64 {
	return WeightContextRelevance*contextRelevance +
		WeightAnswerFaithfulness*faithfulness +
		WeightAnswerRelevance*relevance
}

// NeutralResult is the recovery value for judge failures: neither a pass nor
// a fail signal, so verification degrades instead of erroring.
func NeutralResult(explanation string) VerificationResult {
	return VerificationResult{
		Score:       ComponentPassThreshold,
		Passed:      true,
		Explanation: explanation,
	}
}
