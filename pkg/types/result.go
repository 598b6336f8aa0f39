package types

// ChunkResult is the outcome of extracting one chunk: either a partial
// document or the reason the chunk failed. Exactly one of Document and Err
// is set.
type ChunkResult struct {
	Position   int
	TokenCount int
	Document   *Legislation
	Err        error
}

// Success creates a successful chunk result
func Success(position, tokenCount int, doc *Legislation) ChunkResult {
	return ChunkResult{Position: position, TokenCount: tokenCount, Document: doc}
}

// Failure creates a failed chunk result
func Failure(position, tokenCount int, err error) ChunkResult {
	return ChunkResult{Position: position, TokenCount: tokenCount, Err: err}
}

// Succeeded reports whether the chunk produced a document
func (r ChunkResult) Succeeded() bool {
	return r.Err == nil && r.Document != nil
}

// Validation is the outcome of the legislation pre-check
type Validation struct {
	IsLegislation   bool    `json:"is_legislation"`
	ConfidenceScore float64 `json:"confidence_score"`
}

// Accept reports whether the validation passes the given confidence threshold
func (v *Validation) Accept(minConfidence float64) bool {
	return v != nil && v.IsLegislation && v.ConfidenceScore >= minConfidence
}
