package models

// Conversation is one session of the evaluation dataset.
type Conversation struct {
	SessionID string        `json:"sessionid"`
	Turns     []DatasetTurn `json:"turns"`
}

// DatasetTurn is a scripted turn. Role is "user" or "ai".
type DatasetTurn struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// LabelKey identifies a user turn for ground-truth duplicate labels.
type LabelKey struct {
	SessionID string
	TurnIndex int
}

// Labels maps a user turn to whether it is a semantic duplicate of an earlier one.
type Labels map[LabelKey]bool

// Lookup returns the label for (sessionID, turnIndex), or nil when unlabelled.
func (l Labels) Lookup(sessionID string, turnIndex int) *bool {
	v, ok := l[LabelKey{SessionID: sessionID, TurnIndex: turnIndex}]
	if !ok {
		return nil
	}
	return &v
}
