package insertion

import "fmt"

// Step is the state of one modal interaction.
type Step int

const (
	Input Step = iota
	Generating
	Review
)

func (s Step) String() string {
	switch s {
	case Generating:
		return "generating"
	case Review:
		return "review"
	default:
		return "input"
	}
}

// Kind names a modal interaction. Each kind has at most one cycle in flight.
type Kind string

const (
	KindInsertion Kind = "insertion"
	KindLatex     Kind = "latex"
	KindReformat  Kind = "reformat"
)

// Kinds lists every modal kind.
var Kinds = []Kind{KindInsertion, KindLatex, KindReformat}

// ParseKind validates a kind received from a client.
func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("insertion: unknown kind %q", s)
}

// AutoCommit reports whether results of this kind are inserted as soon as
// they arrive instead of waiting in Review.
func (k Kind) AutoCommit() bool { return k != KindInsertion }

// modal tracks one kind's step, its current cycle and the pending result.
// Callers hold the pipeline lock.
type modal struct {
	step    Step
	current *Cycle
	pending Result
}

// begin moves Input|Generating|Review -> Generating with c as the only live
// cycle. A previous cycle is cancelled.
func (m *modal) begin(c *Cycle) {
	if m.current != nil {
		m.current.cancel()
	}
	m.current = c
	m.pending = Result{}
	m.step = Generating
}

// succeed moves Generating -> Review.
func (m *modal) succeed(res Result) {
	m.pending = res
	m.step = Review
}

// reset moves any step -> Input and forgets the cycle.
func (m *modal) reset() {
	if m.current != nil {
		m.current.cancel()
	}
	m.current = nil
	m.pending = Result{}
	m.step = Input
}
