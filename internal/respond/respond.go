// Package respond holds the auto-response backend adapters. Each backend is
// a text-in/text-out capability: given inbound text and a sender identity,
// produce a reply or fail. The dispatch pipeline treats every backend
// through the Responder interface and never lets a backend failure escape.
package respond

import (
	"context"
	"fmt"
)

// Request carries one inbound message to a backend.
type Request struct {
	Text         string
	Sender       string
	Instructions string
	ModelHint    string
}

// Reply is a backend's answer. OK false or empty Text both mean "no usable
// reply"; the pipeline treats them identically to a backend error.
type Reply struct {
	OK   bool
	Text string
}

// Usable reports whether the reply should actually be sent.
func (r *Reply) Usable() bool {
	return r != nil && r.OK && r.Text != ""
}

// Responder is implemented by every auto-response backend.
type Responder interface {
	Name() string
	Respond(ctx context.Context, req Request) (*Reply, error)
}

// BackendError wraps a backend failure with the backend's name for logging.
type BackendError struct {
	Backend string
	Err     error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("backend %s: %v", e.Backend, e.Err)
}

func (e *BackendError) Unwrap() error {
	return e.Err
}
