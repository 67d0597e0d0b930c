// Package outbound sends messages through the transport and records them.
// It is the single egress point: the dispatch pipeline, the web surface,
// and the control CLI all send through here.
package outbound

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wagw/wagw/internal/actlog"
	"github.com/wagw/wagw/internal/status"
	"github.com/wagw/wagw/internal/store"
	"go.uber.org/zap"
)

// ErrNotConnected is returned when a send is attempted without a live
// session. Callers surface it rather than queueing; the gateway has no
// outbound queue.
var ErrNotConnected = errors.New("session not connected")

// TransportError wraps a transport-level send failure.
type TransportError struct {
	Recipient string
	Err       error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("send to %s: %v", e.Recipient, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Transport is the sending slice of the WhatsApp adapter.
type Transport interface {
	SendText(ctx context.Context, address, text string) (string, error)
	SendMedia(ctx context.Context, address string, data []byte, mimeType, caption string) (string, error)
}

// StatusReader reports the current session state.
type StatusReader interface {
	Current() status.State
}

// Sender sends outgoing messages and persists a record of each.
type Sender struct {
	transport Transport
	state     StatusReader
	db        *store.DB
	activity  *actlog.Log
	logger    *zap.Logger
}

// NewSender creates a sender.
func NewSender(transport Transport, state StatusReader, db *store.DB, activity *actlog.Log, logger *zap.Logger) *Sender {
	return &Sender{
		transport: transport,
		state:     state,
		db:        db,
		activity:  activity,
		logger:    logger,
	}
}

// Send sends text to recipient. The connection is checked at send time, not
// at enqueue time: a session that dropped between dispatch and send fails
// here with ErrNotConnected. Returns the transport-assigned message id.
func (s *Sender) Send(ctx context.Context, recipient, text string) (string, error) {
	if s.state.Current() != status.Connected {
		return "", ErrNotConnected
	}

	id, err := s.transport.SendText(ctx, recipient, text)
	if err != nil {
		return "", &TransportError{Recipient: recipient, Err: err}
	}

	s.record(id, recipient, text)
	return id, nil
}

// SendMedia uploads and sends a media message with an optional caption.
func (s *Sender) SendMedia(ctx context.Context, recipient string, data []byte, mimeType, caption string) (string, error) {
	if s.state.Current() != status.Connected {
		return "", ErrNotConnected
	}

	id, err := s.transport.SendMedia(ctx, recipient, data, mimeType, caption)
	if err != nil {
		return "", &TransportError{Recipient: recipient, Err: err}
	}

	content := caption
	if content == "" {
		content = fmt.Sprintf("Media message (%s)", mimeType)
	}
	s.record(id, recipient, content)
	return id, nil
}

// record persists the sent message keyed by its transport id. A retry that
// produced the same id lands on the existing row and changes nothing.
func (s *Sender) record(id, recipient, content string) {
	s.activity.Record("sent", recipient, content)

	inserted, err := s.db.AppendRecord(&store.Record{
		ID:        id,
		Sender:    store.SelfSender,
		Content:   content,
		Timestamp: time.Now().UnixMilli(),
		Read:      true,
		Outgoing:  true,
	})
	if err != nil {
		// The message is already on the wire; a bookkeeping failure must
		// not turn a successful send into an error.
		s.logger.Error("record outgoing message", zap.String("id", id), zap.Error(err))
		return
	}
	if !inserted {
		s.logger.Debug("outgoing message already recorded", zap.String("id", id))
	}
}
