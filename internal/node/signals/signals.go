// Package signals carries the ordered progress notifications emitted while a node
// starts up. Each milestone is a bare enumeration value with a stable numeric code
// that host processes parse from stdout.
package signals

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/eagraf/holochain-runner/internal/node/pubsub"
	"github.com/rs/zerolog/log"
)

type StateSignal int

const (
	IsFirstRun StateSignal = iota
	IsNotFirstRun
	CreatingKeys
	RegisteringDna
	InstallingApp
	EnablingApp
	AddingAppInterface
	IsReady
)

// DefaultCapacity matches the buffer size hosts have historically relied on. A run
// emits at most eight signals, so a bus nobody listens to never drops one.
const DefaultCapacity = 10

var names = map[StateSignal]string{
	IsFirstRun:         "IsFirstRun",
	IsNotFirstRun:      "IsNotFirstRun",
	CreatingKeys:       "CreatingKeys",
	RegisteringDna:     "RegisteringDna",
	InstallingApp:      "InstallingApp",
	EnablingApp:        "EnablingApp",
	AddingAppInterface: "AddingAppInterface",
	IsReady:            "IsReady",
}

func (s StateSignal) String() string {
	if n, ok := names[s]; ok {
		return n
	}
	return "StateSignal(" + strconv.Itoa(int(s)) + ")"
}

// Code is the number printed for the signal on the host protocol.
func (s StateSignal) Code() int {
	return int(s)
}

type Bus = pubsub.BoundedChannel[StateSignal]

func NewBus() *Bus {
	return pubsub.NewBoundedChannel[StateSignal](DefaultCapacity)
}

// Emit sends s to pub. A nil publisher means nobody is listening and the signal is
// dropped. Delivery failures are logged, never returned: progress reporting must
// not change the outcome of the step that reports it.
func Emit(ctx context.Context, pub pubsub.Publisher[StateSignal], s StateSignal) {
	if pub == nil {
		return
	}
	sig := s
	if err := pub.PublishEvent(ctx, &sig); err != nil {
		log.Debug().Err(err).Msgf("dropped progress signal %s", s)
	}
}

// Recorder is a Publisher that keeps every signal it receives. The supervisor uses
// it to check the emitted sequence, tests use it to assert on it.
type Recorder struct {
	mu      sync.Mutex
	signals []StateSignal
}

func (r *Recorder) PublishEvent(_ context.Context, s *StateSignal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.signals = append(r.signals, *s)
	return nil
}

func (r *Recorder) Signals() []StateSignal {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]StateSignal, len(r.signals))
	copy(out, r.signals)
	return out
}

// Tee forwards each signal to every non-nil publisher in order. Errors from one
// publisher do not stop delivery to the others; the first error is returned.
type Tee []pubsub.Publisher[StateSignal]

func (t Tee) PublishEvent(ctx context.Context, s *StateSignal) error {
	var first error
	for _, p := range t {
		if p == nil {
			continue
		}
		if err := p.PublishEvent(ctx, s); err != nil && first == nil {
			first = err
		}
	}
	return first
}

var ErrInvalidSequence = errors.New("signals: invalid sequence")

// Validate checks a complete run's sequence against the startup partial order:
// exactly one run marker first, IsReady last, every signal at most once and in
// enum order, and the key-generation and install groups either whole or absent.
func Validate(seq []StateSignal) error {
	if len(seq) == 0 {
		return fmt.Errorf("%w: empty", ErrInvalidSequence)
	}
	if seq[0] != IsFirstRun && seq[0] != IsNotFirstRun {
		return fmt.Errorf("%w: first signal is %s", ErrInvalidSequence, seq[0])
	}
	if seq[len(seq)-1] != IsReady {
		return fmt.Errorf("%w: last signal is %s", ErrInvalidSequence, seq[len(seq)-1])
	}
	seen := make(map[StateSignal]bool, len(seq))
	for i, s := range seq {
		if _, ok := names[s]; !ok {
			return fmt.Errorf("%w: unknown signal %d", ErrInvalidSequence, s)
		}
		if seen[s] {
			return fmt.Errorf("%w: %s emitted twice", ErrInvalidSequence, s)
		}
		seen[s] = true
		if i > 0 && s <= seq[i-1] {
			return fmt.Errorf("%w: %s after %s", ErrInvalidSequence, s, seq[i-1])
		}
	}
	if seen[IsFirstRun] && seen[IsNotFirstRun] {
		return fmt.Errorf("%w: both run markers present", ErrInvalidSequence)
	}
	if seen[CreatingKeys] != seen[RegisteringDna] {
		return fmt.Errorf("%w: partial key generation group", ErrInvalidSequence)
	}
	if seen[InstallingApp] != seen[EnablingApp] || seen[EnablingApp] != seen[AddingAppInterface] {
		return fmt.Errorf("%w: partial install group", ErrInvalidSequence)
	}
	return nil
}
