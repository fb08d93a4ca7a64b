package testutil

import (
	"testing"

	"github.com/jbweber/homelab/parkingcontrol/internal/datastore"
)

// NewTestDatastore creates a migrated in-memory datastore named after the test.
// The datastore is closed when the test finishes, which discards the database.
func NewTestDatastore(t testing.TB, opts ...datastore.Option) *datastore.Datastore {
	t.Helper()

	ds, err := datastore.New(NewTestDSN(t.Name()), opts...)
	if err != nil {
		t.Fatalf("Failed to create test datastore: %v", err)
	}
	t.Cleanup(func() {
		if err := ds.Close(); err != nil {
			t.Logf("Warning: failed to close test datastore: %v", err)
		}
	})
	return ds
}
