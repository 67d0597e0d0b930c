// Package gateway is the facade the outer surfaces (HTTP API, websocket
// hub, control CLI) call into. It owns no logic of its own; it stitches the
// supervisor, the outbound sender, and the record store together behind one
// narrow type.
package gateway

import (
	"context"

	"github.com/wagw/wagw/internal/outbound"
	"github.com/wagw/wagw/internal/status"
	"github.com/wagw/wagw/internal/store"
	"github.com/wagw/wagw/internal/supervisor"
	"go.uber.org/zap"
)

// Gateway exposes the session operations.
type Gateway struct {
	supervisor *supervisor.Supervisor
	sender     *outbound.Sender
	db         *store.DB
	logger     *zap.Logger
}

// New creates a gateway facade.
func New(sup *supervisor.Supervisor, sender *outbound.Sender, db *store.DB, logger *zap.Logger) *Gateway {
	return &Gateway{
		supervisor: sup,
		sender:     sender,
		db:         db,
		logger:     logger,
	}
}

// Initiate starts a connection attempt if the session is idle.
func (g *Gateway) Initiate(ctx context.Context) error {
	return g.supervisor.Initiate(ctx)
}

// Status returns the current session state.
func (g *Gateway) Status() status.State {
	return g.supervisor.Status()
}

// QRCode returns a pairing code, starting the pairing flow if needed.
func (g *Gateway) QRCode(ctx context.Context) (string, error) {
	return g.supervisor.GetQRCode(ctx)
}

// Send sends a text message. Fails with outbound.ErrNotConnected when the
// session is down.
func (g *Gateway) Send(ctx context.Context, recipient, text string) (string, error) {
	return g.sender.Send(ctx, recipient, text)
}

// SendMedia sends a media message with an optional caption.
func (g *Gateway) SendMedia(ctx context.Context, recipient string, data []byte, mimeType, caption string) (string, error) {
	return g.sender.SendMedia(ctx, recipient, data, mimeType, caption)
}

// Logout invalidates the credentials; the session must be paired again.
func (g *Gateway) Logout(ctx context.Context) error {
	return g.supervisor.Logout(ctx)
}

// Inbox returns the most recent records, newest first, and acknowledges
// them: the new-message flag drops and everything listed is marked read.
func (g *Gateway) Inbox(limit int) ([]store.Record, error) {
	records, err := g.db.ListRecords(limit)
	if err != nil {
		return nil, err
	}
	if err := g.db.ClearNewMessageFlag(); err != nil {
		g.logger.Warn("clear new message flag", zap.Error(err))
	}
	if err := g.db.MarkAllRead(); err != nil {
		g.logger.Warn("mark records read", zap.Error(err))
	}
	return records, nil
}

// NewMessageFlag reads the polling flag without acknowledging it.
func (g *Gateway) NewMessageFlag() (*store.NewMessageFlag, error) {
	return g.db.GetNewMessageFlag()
}
