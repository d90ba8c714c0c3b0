package types

// Event is the structured payload handed to downstream observers whenever
// registry or ledger state changes. Attributes are flat string pairs so the
// payload serialises the same way regardless of transport.
type Event struct {
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}
