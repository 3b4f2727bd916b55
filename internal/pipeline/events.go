package pipeline

import (
	"sync"
	"time"
)

// Stage is a step of a signal computation.
type Stage string

const (
	StageFetching    Stage = "fetching"
	StageNormalizing Stage = "normalizing"
	StageAnalyzing   Stage = "analyzing"
	StageComplete    Stage = "complete"
	StageFailed      Stage = "failed"
)

// Labels shown to users for each stage.
var stageLabels = map[Stage]string{
	StageFetching:    "Fetching data from source and cleaning it...",
	StageNormalizing: "Cleaning participant and FII tables...",
	StageAnalyzing:   "Running participant analysis...",
	StageComplete:    "Analysis complete!",
	StageFailed:      "Analysis failed.",
}

// Label returns the user-facing text for s.
func (s Stage) Label() string {
	if l, ok := stageLabels[s]; ok {
		return l
	}
	return string(s)
}

// Event reports progress of one computation.
type Event struct {
	Stage    Stage     `json:"stage"`
	Label    string    `json:"label"`
	Previous string    `json:"previous"`
	Current  string    `json:"current"`
	Error    string    `json:"error,omitempty"`
	Time     time.Time `json:"time"`
}

// Observer receives progress events. Implementations must not block.
type Observer interface {
	OnEvent(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

// OnEvent calls f(e).
func (f ObserverFunc) OnEvent(e Event) { f(e) }

type observers struct {
	mu   sync.RWMutex
	list []Observer
}

func (o *observers) add(obs Observer) {
	o.mu.Lock()
	o.list = append(o.list, obs)
	o.mu.Unlock()
}

func (o *observers) emit(e Event) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	for _, obs := range o.list {
		obs.OnEvent(e)
	}
}
