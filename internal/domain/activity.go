package domain

// Activity is one locally recorded transition issued from this workspace.
type Activity struct {
	ID        int64  `json:"id"`
	TS        string `json:"ts"`
	Type      string `json:"type"`
	Target    string `json:"target"`
	EntityID  string `json:"entityId,omitempty"`
	ProjectID string `json:"projectId,omitempty"`
	ActorID   string `json:"actorId,omitempty"`
	RequestID string `json:"requestId"`
	Payload   string `json:"payload,omitempty"`
}
