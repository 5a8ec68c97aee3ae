package pattern

import (
	"math/rand/v2"
	"strings"
	"sync"
	"time"
)

// MessagePrefix marks generated labels so recorders can tell generated
// events apart from real ones.
const MessagePrefix = "[AutoGen]"

// Messages is the fixed label pool events draw from.
var Messages = []string{
	MessagePrefix + " Add feature implementation",
	MessagePrefix + " Fix bug in core logic",
	MessagePrefix + " Refactor module structure",
	MessagePrefix + " Add tests for edge cases",
	MessagePrefix + " Update documentation",
	MessagePrefix + " Optimize slow path",
	MessagePrefix + " Address review feedback",
	MessagePrefix + " Resolve merge conflicts",
	MessagePrefix + " Improve error handling",
	MessagePrefix + " Bump dependencies",
	MessagePrefix + " Clean up dead code",
	MessagePrefix + " Add logging and metrics",
	MessagePrefix + " Patch security issue",
	MessagePrefix + " Polish user interface",
	MessagePrefix + " Add API endpoint",
	MessagePrefix + " Fix flaky tests",
	MessagePrefix + " Add database migration",
	MessagePrefix + " Raise test coverage",
	MessagePrefix + " Add configuration option",
	MessagePrefix + " Hotfix production issue",
}

// IsGenerated reports whether label carries MessagePrefix.
func IsGenerated(label string) bool {
	return strings.HasPrefix(label, MessagePrefix)
}

// Labeler picks the label for each generated event. It must not share state
// with the per-day streams.
type Labeler interface {
	Label() string
}

// MessagePool draws labels uniformly from a message list. It is safe for
// concurrent use.
type MessagePool struct {
	mu       sync.Mutex
	r        *rand.Rand
	messages []string
}

// NewMessagePool returns a pool over Messages. A nil r gets a time-seeded stream.
func NewMessagePool(r *rand.Rand) *MessagePool {
	if r == nil {
		now := uint64(time.Now().UnixNano())
		r = rand.New(rand.NewPCG(now, now>>17))
	}
	return &MessagePool{r: r, messages: Messages}
}

// Label implements Labeler.
func (p *MessagePool) Label() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.messages[p.r.IntN(len(p.messages))]
}

// SequenceLabeler cycles through a fixed list. Useful where label choice has
// to be predictable.
type SequenceLabeler struct {
	mu     sync.Mutex
	labels []string
	next   int
}

// NewSequenceLabeler returns a labeler that yields labels in order, wrapping.
func NewSequenceLabeler(labels ...string) *SequenceLabeler {
	if len(labels) == 0 {
		labels = Messages
	}
	return &SequenceLabeler{labels: labels}
}

// Label implements Labeler.
func (s *SequenceLabeler) Label() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	l := s.labels[s.next%len(s.labels)]
	s.next++
	return l
}
