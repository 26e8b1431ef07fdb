package segment

import (
	"fmt"
	"sync/atomic"
)

type Generator struct {
	counter uint64
}

func New() *Generator {
	return &Generator{}
}

// Next returns a window ID unique within the generator.
func (g *Generator) Next(sessionId, speaker string) string {
	n := atomic.AddUint64(&g.counter, 1)
	return fmt.Sprintf("%s-%s-win-%d", sessionId, speaker, n)
}
