package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNoCandidates signals an empty candidate list after deduplication.
	ErrNoCandidates = errors.New("no candidates")
	// ErrInvalidInput signals a malformed ranking request.
	ErrInvalidInput = errors.New("invalid input")
	// ErrTrackNotFound signals a missing catalog track.
	ErrTrackNotFound = errors.New("track not found")
	// ErrProfileNotFound signals a missing user profile.
	ErrProfileNotFound = errors.New("profile not found")
	// ErrProfileCorrupt signals a stored profile that failed to decode.
	// Callers recover by substituting a neutral profile, never by failing.
	ErrProfileCorrupt = errors.New("profile corrupt")
	// ErrRerankUnavailable signals a reranking service failure.
	// The curator recovers from it locally; it never reaches the caller.
	ErrRerankUnavailable = errors.New("rerank service unavailable")
	// ErrRetrievalUnavailable signals a candidate retrieval failure.
	ErrRetrievalUnavailable = errors.New("retrieval service unavailable")
	// ErrRevisionConflict signals an optimistic locking conflict on a profile.
	ErrRevisionConflict = errors.New("revision conflict")
)

// RevisionConflictError wraps ErrRevisionConflict with the current profile revision.
type RevisionConflictError struct {
	CurrentRevision int64
}

func (e *RevisionConflictError) Error() string {
	return fmt.Sprintf("%s: current revision is %d", ErrRevisionConflict.Error(), e.CurrentRevision)
}

func (e *RevisionConflictError) Unwrap() error { return ErrRevisionConflict }

// NewRevisionConflict creates a revision conflict error.
func NewRevisionConflict(currentRevision int64) error {
	return &RevisionConflictError{CurrentRevision: currentRevision}
}
