package testutil

import (
	"fmt"
	"strings"
)

var dsnNameReplacer = strings.NewReplacer("/", "_", " ", "_", "?", "_", "#", "_")

// NewTestDSN generates a DSN for an in-memory SQLite database for testing purposes.
func NewTestDSN(testName string) string {
	return fmt.Sprintf("file:%s?mode=memory&cache=shared", dsnNameReplacer.Replace(testName))
}
