package pipeline

import (
	"fmt"
	"sync"

	"github.com/gardar/ocrmux/pkg/log"
)

// State is the processing state of one page.
type State int

const (
	Pending State = iota
	Rasterized
	Prepared
	EnginesRunning
	Merging
	Done
	Failed
)

var stateNames = [...]string{"pending", "rasterized", "prepared", "engines-running", "merging", "done", "failed"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("state(%d)", int(s))
	}
	return stateNames[s]
}

// Terminal reports whether no transition leaves s.
func (s State) Terminal() bool { return s == Done || s == Failed }

// tracker holds the state of every page of one document.
type tracker struct {
	mu     sync.Mutex
	states []State
	logger log.Logger
}

func newTracker(pages int, logger log.Logger) *tracker {
	return &tracker{states: make([]State, pages), logger: logger}
}

// advance moves page to the next state. Pages only move forward one step at a time,
// or to Failed from any non-terminal state.
func (t *tracker) advance(page int, to State) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if page < 0 || page >= len(t.states) {
		return fmt.Errorf("page %d out of range", page)
	}
	from := t.states[page]
	if from.Terminal() || (to != Failed && to != from+1) {
		return fmt.Errorf("page %d: illegal transition %s -> %s", page, from, to)
	}
	t.states[page] = to
	t.logger.Debugw("page state", "page", page, "from", from, "to", to)
	return nil
}

// advanceAll moves every page to the same next state.
func (t *tracker) advanceAll(to State) error {
	for page := range t.states {
		if err := t.advance(page, to); err != nil {
			return err
		}
	}
	return nil
}

// fail marks page Failed unless it already reached a terminal state.
func (t *tracker) fail(page int) {
	_ = t.advance(page, Failed)
}

func (t *tracker) state(page int) State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.states[page]
}
