// Package audit records authorization decisions without ever influencing
// them. Recording is asynchronous and lossy under pressure.
package audit

import (
	"context"
	"time"
)

const (
	LayerEdge = "edge"
	LayerPage = "page"
)

type Event struct {
	ID      string    `json:"id"`
	Time    time.Time `json:"time"`
	Layer   string    `json:"layer"`
	Method  string    `json:"method"`
	Path    string    `json:"path"`
	Allowed bool      `json:"allowed"`
	Reason  string    `json:"reason"`
	UserID  int64     `json:"user_id,omitempty"`
	Email   string    `json:"email,omitempty"`
	IP      string    `json:"ip,omitempty"`
}

// Hook is what the gateway and page guard call on each decision. Record must
// not block and must not report failure.
type Hook interface {
	Record(e Event)
}

type NopHook struct{}

func (NopHook) Record(Event) {}

// Sink persists or forwards events. Errors are logged by the dispatcher
// and otherwise dropped.
type Sink interface {
	Emit(ctx context.Context, e Event) error
}
