package graph

import (
	"errors"
	"fmt"
)

// ErrStructural is the root of every precondition violation raised by a graph.
// Callers match it with errors.Is; no partial state is left behind.
var ErrStructural = errors.New("structural error")

var (
	ErrInvalidVertex   = fmt.Errorf("invalid vertex: %w", ErrStructural)
	ErrDuplicateVertex = fmt.Errorf("duplicate vertex: %w", ErrStructural)
	ErrNotMember       = fmt.Errorf("vertex not a member of this graph: %w", ErrStructural)
	ErrIndexOutOfRange = fmt.Errorf("vertex index out of range: %w", ErrStructural)
	ErrStaleMatrix     = fmt.Errorf("adjacency matrix missing or stale: %w", ErrStructural)
)
