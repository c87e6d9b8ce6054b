package testing

import (
	"testing"

	"github.com/arloliu/meshpart/internal/logging"
	"github.com/arloliu/meshpart/types"
)

// NewTestLogger creates a logger that writes to t.Logf.
func NewTestLogger(t testing.TB) types.Logger {
	return logging.NewTest(t)
}
