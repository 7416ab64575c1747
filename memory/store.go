package memory

import "context"

// Store persists per-user memory documents. Implementations must be safe
// for concurrent use; the bank serializes writes per user above this layer.
type Store interface {
	// Load returns the document for a user, or a not-found error when the
	// user has never appended.
	Load(ctx context.Context, userID string) (*UserMemory, error)
	// Save upserts the whole document keyed by its UserID.
	Save(ctx context.Context, doc *UserMemory) error
	// ListUsers returns the IDs of all users with a document, sorted.
	ListUsers(ctx context.Context) ([]string, error)
}
