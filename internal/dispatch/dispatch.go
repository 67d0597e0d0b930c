// Package dispatch is the inbound message pipeline: record every message,
// raise the new-message flag, notify push consumers, and route text to the
// configured response backend.
package dispatch

import (
	"context"
	"errors"

	"github.com/wagw/wagw/internal/actlog"
	"github.com/wagw/wagw/internal/bus"
	"github.com/wagw/wagw/internal/config"
	"github.com/wagw/wagw/internal/outbound"
	"github.com/wagw/wagw/internal/respond"
	"github.com/wagw/wagw/internal/store"
	"github.com/wagw/wagw/internal/wa"
	"go.uber.org/zap"
)

// mediaPlaceholder stands in for messages with no extractable text.
const mediaPlaceholder = "Media message"

// TextSender is the sending slice of the outbound sender.
type TextSender interface {
	Send(ctx context.Context, recipient, text string) (string, error)
}

// Dispatcher consumes inbound message events and runs the pipeline.
type Dispatcher struct {
	bus      *bus.Bus
	db       *store.DB
	activity *actlog.Log
	registry *respond.Registry
	cfg      config.Responder
	sender   TextSender
	logger   *zap.Logger
}

// New creates a dispatcher. Call Run to start it.
func New(b *bus.Bus, db *store.DB, activity *actlog.Log, registry *respond.Registry, cfg config.Responder, sender TextSender, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		bus:      b,
		db:       db,
		activity: activity,
		registry: registry,
		cfg:      cfg,
		sender:   sender,
		logger:   logger,
	}
}

// Run processes inbound messages until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) {
	events, unsubscribe := d.bus.Subscribe("wa.message", 128)
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return
		case evt := <-events:
			msg, ok := evt.Payload.(*wa.Inbound)
			if !ok {
				continue
			}
			d.handle(ctx, msg)
		}
	}
}

// handle runs the pipeline for one inbound message. Persistence comes
// before routing: a message is never answered unless it is recorded, and a
// re-delivered message is never answered twice.
func (d *Dispatcher) handle(ctx context.Context, msg *wa.Inbound) {
	if msg.FromSelf {
		return
	}

	content := msg.Content
	if content == "" {
		content = mediaPlaceholder
	}

	d.activity.Record("received", msg.Sender, content)

	receivedAt := msg.ReceivedAt.UnixMilli()
	if err := d.db.SetNewMessageFlag(msg.ID, receivedAt); err != nil {
		d.logger.Error("set new message flag", zap.Error(err))
	}

	inserted, err := d.db.AppendRecord(&store.Record{
		ID:        msg.ID,
		Sender:    msg.Sender,
		Content:   content,
		Timestamp: receivedAt,
	})
	if err != nil {
		d.logger.Error("record inbound message", zap.String("id", msg.ID), zap.Error(err))
		return
	}
	if !inserted {
		d.logger.Debug("inbound message re-delivered, skipping", zap.String("id", msg.ID))
		return
	}

	// Push notification is best-effort; subscribers may be absent or slow.
	d.bus.Publish(bus.New("message.received", msg))

	if !d.cfg.Enabled {
		return
	}
	d.respond(ctx, msg.Sender, content)
}

// respond routes content to the active backend, falling back once to the
// configured fallback backend when the active one is not registered, and
// finally to the static reply when no backend produced a usable answer.
// A backend that answered usably ends the chain; the static reply never
// follows a successful backend.
func (d *Dispatcher) respond(ctx context.Context, sender, content string) {
	name := d.cfg.Active
	backend, ok := d.registry.Get(name)
	if !ok {
		d.logger.Warn("active backend not registered",
			zap.String("backend", name),
			zap.Strings("known", d.registry.Names()),
		)
		name = d.cfg.Fallback
		backend, ok = d.registry.Get(name)
	}

	if ok {
		reply := d.callBackend(ctx, backend, sender, content)
		if reply.Usable() {
			d.send(ctx, sender, reply.Text)
			return
		}
	}

	d.sendStatic(ctx, sender)
}

// callBackend invokes one backend and awaits it. No timeout is layered on
// here: the backend client owns its own timeout contract, and the pipeline
// only guarantees that a failure is caught rather than propagated.
func (d *Dispatcher) callBackend(ctx context.Context, backend respond.Responder, sender, content string) *respond.Reply {
	reply, err := backend.Respond(ctx, respond.Request{
		Text:         content,
		Sender:       sender,
		Instructions: d.cfg.ResolveInstructions(backend.Name()),
		ModelHint:    d.cfg.ResolveModel(backend.Name()),
	})
	if err != nil {
		d.logger.Error("response backend failed",
			zap.String("backend", backend.Name()),
			zap.Error(err),
		)
		return nil
	}
	return reply
}

func (d *Dispatcher) sendStatic(ctx context.Context, sender string) {
	if !d.cfg.StaticReplyEnabled || d.cfg.StaticReply == "" {
		return
	}
	d.send(ctx, sender, d.cfg.StaticReply)
}

// send delivers a reply. The connection check happens inside the sender; a
// session that dropped since the message arrived just skips the reply.
func (d *Dispatcher) send(ctx context.Context, recipient, text string) {
	if _, err := d.sender.Send(ctx, recipient, text); err != nil {
		if errors.Is(err, outbound.ErrNotConnected) {
			d.logger.Warn("reply skipped, session disconnected", zap.String("recipient", recipient))
			return
		}
		d.logger.Error("reply send failed", zap.String("recipient", recipient), zap.Error(err))
	}
}
