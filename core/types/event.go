package types

// Event is the structured record emitted for every observable state
// transition. Attributes carry the operation-specific fields as strings so
// downstream consumers need no schema knowledge.
type Event struct {
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}
