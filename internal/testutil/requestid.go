package testutil

// FixedRequestID generates the same request id every time.
//
// Log lines and InternalError values then carry a known id that tests can
// assert on.
//
// Thread-safety: FixedRequestID is stateless and safe for concurrent use.
type FixedRequestID struct {
	id string
}

// NewFixedRequestID creates a fixed request id generator.
//
// If id is empty, Generate() returns "test-request-default".
func NewFixedRequestID(id string) *FixedRequestID {
	if id == "" {
		id = "test-request-default"
	}
	return &FixedRequestID{id: id}
}

// Generate returns the fixed request id.
//
// Implements engine.RequestIDGenerator.
func (g *FixedRequestID) Generate() string {
	return g.id
}
