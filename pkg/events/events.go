// Package events publishes pipeline stage transitions so operators can
// watch sign-in flows without scraping logs. Observers never influence
// control flow; a failing observer is logged and ignored.
package events

import (
	"time"

	"github.com/digitaldrreamer/veiled-sub002/pkg/reasoncodes"
)

// StageEvent is one pipeline stage transition.
type StageEvent struct {
	Stage     reasoncodes.Stage `json:"stage"`
	Domain    string            `json:"domain"`
	Status    string            `json:"status"`
	Detail    string            `json:"detail,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

const (
	statusStarted   = "started"
	statusCompleted = "completed"
	statusFailed    = "failed"
)

// Observer receives stage transitions during a sign-in flow.
type Observer interface {
	StageStarted(stage reasoncodes.Stage, domain string)
	StageCompleted(stage reasoncodes.Stage, domain string)
	StageFailed(stage reasoncodes.Stage, domain string, err error)
}

// NopObserver discards every event.
type NopObserver struct{}

func (NopObserver) StageStarted(reasoncodes.Stage, string)       {}
func (NopObserver) StageCompleted(reasoncodes.Stage, string)     {}
func (NopObserver) StageFailed(reasoncodes.Stage, string, error) {}

// MultiObserver fans events out to several observers in order.
type MultiObserver []Observer

func (m MultiObserver) StageStarted(stage reasoncodes.Stage, domain string) {
	for _, o := range m {
		o.StageStarted(stage, domain)
	}
}

func (m MultiObserver) StageCompleted(stage reasoncodes.Stage, domain string) {
	for _, o := range m {
		o.StageCompleted(stage, domain)
	}
}

func (m MultiObserver) StageFailed(stage reasoncodes.Stage, domain string, err error) {
	for _, o := range m {
		o.StageFailed(stage, domain, err)
	}
}

func startedEvent(stage reasoncodes.Stage, domain string) StageEvent {
	return StageEvent{Stage: stage, Domain: domain, Status: statusStarted, Timestamp: time.Now().UTC()}
}

func completedEvent(stage reasoncodes.Stage, domain string) StageEvent {
	return StageEvent{Stage: stage, Domain: domain, Status: statusCompleted, Timestamp: time.Now().UTC()}
}

func failedEvent(stage reasoncodes.Stage, domain string, err error) StageEvent {
	detail := ""
	if err != nil {
		detail = err.Error()
	}
	return StageEvent{Stage: stage, Domain: domain, Status: statusFailed, Detail: detail, Timestamp: time.Now().UTC()}
}
