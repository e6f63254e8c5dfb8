package domain

// Candidate is a track proposed by the retrieval collaborator, carrying its
// semantic retrieval score.
type Candidate struct {
	Track Track
	Score float64 // semantic similarity from retrieval, [0,1]
}

// ComponentScores holds every signal that contributed to a candidate's final
// position, kept for downstream explanation.
type ComponentScores struct {
	Retrieval float64 `json:"retrieval"`
	Genre     float64 `json:"genre"`
	Feature   float64 `json:"feature"`
	Artist    float64 `json:"artist"`
	Base      float64 `json:"base"`
	TimeMatch float64 `json:"time_match"`
	Adjusted  float64 `json:"adjusted"`
	Rerank    float64 `json:"rerank"`
	Final     float64 `json:"final"`
}

// ScoredCandidate is a candidate with its component scores and rank. It exists
// only within one curator invocation and is never persisted.
type ScoredCandidate struct {
	Track  Track
	Scores ComponentScores
	Rank   int
}
