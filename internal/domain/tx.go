package domain

import "context"

// TransactionManager defines the interface for handling database transactions.
// Ingestion runs its dual index write inside one transaction so that the
// vector store and lexical index never diverge for a document.
type TransactionManager interface {
	// RunInTx executes the given function within a transaction.
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}
