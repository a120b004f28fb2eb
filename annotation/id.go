package annotation

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// IDGenerator issues record ids of the form "<unix-millis>-<8 hex chars>".
// Ids are never handed out twice by the same generator.
type IDGenerator struct {
	mu     sync.Mutex
	now    func() time.Time
	random func() string
	issued map[string]struct{}
}

// NewIDGenerator returns a generator using the wall clock and random UUIDs.
func NewIDGenerator() *IDGenerator {
	return &IDGenerator{now: time.Now, random: uuid.NewString}
}

// Next returns a fresh id.
func (g *IDGenerator) Next() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.issued == nil {
		g.issued = make(map[string]struct{})
	}
	for {
		suffix := strings.ReplaceAll(g.random(), "-", "")
		if len(suffix) > 8 {
			suffix = suffix[:8]
		}
		id := fmt.Sprintf("%d-%s", g.now().UnixMilli(), suffix)
		if _, dup := g.issued[id]; dup {
			continue
		}
		g.issued[id] = struct{}{}
		return id
	}
}
