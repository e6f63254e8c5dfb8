package domain

import "time"

// Action is the kind of user interaction with a track.
type Action string

// Interaction actions.
const (
	ActionRate    Action = "rate"
	ActionLike    Action = "like"
	ActionDislike Action = "dislike"
	ActionSkip    Action = "skip"
	ActionPlay    Action = "play"
	ActionSave    Action = "save"
)

// Interaction is an append-only record of one user action. Owned by the
// persistence layer; the core only appends and reads aggregates.
type Interaction struct {
	UserID    string    `json:"user_id"`
	TrackID   string    `json:"track_id"`
	Action    Action    `json:"action"`
	Rating    int       `json:"rating,omitempty"` // 1-5, 0 when not rated
	Timestamp time.Time `json:"timestamp"`
}

// Positive reports whether the interaction expresses liking, given the
// configured rating threshold.
func (i Interaction) Positive(likeThreshold int) bool {
	if i.Rating > 0 {
		return i.Rating >= likeThreshold
	}
	switch i.Action {
	case ActionLike, ActionPlay, ActionSave:
		return true
	}
	return false
}

// Negative reports whether the interaction expresses dislike, given the
// configured rating threshold.
func (i Interaction) Negative(dislikeThreshold int) bool {
	if i.Rating > 0 {
		return i.Rating <= dislikeThreshold
	}
	return i.Action == ActionDislike
}
