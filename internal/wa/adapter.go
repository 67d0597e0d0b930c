package wa

import (
	"context"
	"fmt"
	"strings"

	"github.com/wagw/wagw/internal/bus"
	"github.com/wagw/wagw/internal/session"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	wastore "go.mau.fi/whatsmeow/store"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	"go.uber.org/zap"
	"google.golang.org/protobuf/proto"

	_ "github.com/mattn/go-sqlite3"
)

// Adapter wraps the whatsmeow client. It is the only component that talks
// to the network; everything above it consumes bus events and the narrow
// method set below.
type Adapter struct {
	client    *whatsmeow.Client
	container *sqlstore.Container
	bus       *bus.Bus
	logger    *zap.Logger
	session   string
}

// NewAdapter creates a WhatsApp adapter backed by the session's
// credential store.
func NewAdapter(ctx context.Context, sessionName string, b *bus.Bus, logger *zap.Logger) (*Adapter, error) {
	// Device name shown on the phone's linked devices list.
	wastore.SetOSInfo("wagw", [3]uint32{0, 1, 0})

	dbPath := session.CredentialDBPath(sessionName)

	container, err := sqlstore.New(ctx, "sqlite3",
		fmt.Sprintf("file:%s?_foreign_keys=on", dbPath),
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("create credential store: %w", err)
	}

	deviceStore, err := container.GetFirstDevice(ctx)
	if err != nil {
		return nil, fmt.Errorf("get device store: %w", err)
	}

	client := whatsmeow.NewClient(deviceStore, nil)
	// The supervisor is the single reconnect authority. Left enabled, the
	// client's own auto-reconnect races the reconnection policy: both sides
	// redial after a remote close, and the state machine ends up rejecting
	// the connected event from whichever attempt it did not start.
	client.EnableAutoReconnect = false

	return &Adapter{
		client:    client,
		container: container,
		bus:       b,
		logger:    logger,
		session:   sessionName,
	}, nil
}

// RegisterEventHandler adds a handler for whatsmeow events.
func (a *Adapter) RegisterEventHandler(handler whatsmeow.EventHandler) {
	a.client.AddEventHandler(handler)
}

// IsLoggedIn returns whether the adapter has valid credentials.
func (a *Adapter) IsLoggedIn() bool {
	return a.client.Store.ID != nil
}

// IsConnected reports whether the underlying socket is live.
func (a *Adapter) IsConnected() bool {
	return a.client.IsConnected()
}

// Connect opens the WhatsApp connection using stored credentials.
func (a *Adapter) Connect() error {
	a.logger.Info("connecting to WhatsApp")
	return a.client.Connect()
}

// Disconnect tears down the WhatsApp connection.
func (a *Adapter) Disconnect() {
	a.logger.Info("disconnecting from WhatsApp")
	a.client.Disconnect()
}

// Logout invalidates the session server-side and removes credentials.
func (a *Adapter) Logout(ctx context.Context) error {
	return a.client.Logout(ctx)
}

// ClearCredentials wipes the stored device wholesale. Called by the
// supervisor when the reconnection policy demands a fresh pairing; never
// while a connect is in flight.
func (a *Adapter) ClearCredentials(ctx context.Context) error {
	a.client.Disconnect()
	if err := a.client.Store.Delete(ctx); err != nil {
		return fmt.Errorf("delete device store: %w", err)
	}
	a.logger.Warn("credentials cleared, pairing required")
	return nil
}

// Probe sends a lightweight presence update as a liveness check.
func (a *Adapter) Probe(ctx context.Context) error {
	if !a.client.IsConnected() {
		return fmt.Errorf("socket not connected")
	}
	if err := a.client.SendPresence(ctx, types.PresenceAvailable); err != nil {
		return fmt.Errorf("send presence: %w", err)
	}
	return nil
}

// ToJID formats a recipient address into the transport's address form.
// Bare phone numbers get the default user server appended.
func ToJID(address string) (types.JID, error) {
	if strings.ContainsRune(address, '@') {
		jid, err := types.ParseJID(address)
		if err != nil {
			return types.EmptyJID, fmt.Errorf("parse JID: %w", err)
		}
		return jid, nil
	}
	return types.NewJID(address, types.DefaultUserServer), nil
}

// SendText sends a text message. Returns the server-assigned message ID.
func (a *Adapter) SendText(ctx context.Context, address string, text string) (string, error) {
	to, err := ToJID(address)
	if err != nil {
		return "", err
	}
	resp, err := a.client.SendMessage(ctx, to, &waE2E.Message{
		Conversation: proto.String(text),
	})
	if err != nil {
		return "", fmt.Errorf("send message: %w", err)
	}
	return resp.ID, nil
}

// SendMedia uploads data and sends it as an image or document depending on
// the MIME type. Returns the server-assigned message ID.
func (a *Adapter) SendMedia(ctx context.Context, address string, data []byte, mimeType, caption string) (string, error) {
	to, err := ToJID(address)
	if err != nil {
		return "", err
	}

	mediaType := whatsmeow.MediaDocument
	if strings.HasPrefix(mimeType, "image/") {
		mediaType = whatsmeow.MediaImage
	}

	uploaded, err := a.client.Upload(ctx, data, mediaType)
	if err != nil {
		return "", fmt.Errorf("upload media: %w", err)
	}

	msg := buildMediaMessage(mediaType, &uploaded, mimeType, caption, uint64(len(data)))
	resp, err := a.client.SendMessage(ctx, to, msg)
	if err != nil {
		return "", fmt.Errorf("send media: %w", err)
	}
	return resp.ID, nil
}

func buildMediaMessage(mediaType whatsmeow.MediaType, up *whatsmeow.UploadResponse, mimeType, caption string, size uint64) *waE2E.Message {
	if mediaType == whatsmeow.MediaImage {
		return &waE2E.Message{
			ImageMessage: &waE2E.ImageMessage{
				Caption:       proto.String(caption),
				Mimetype:      proto.String(mimeType),
				URL:           proto.String(up.URL),
				DirectPath:    proto.String(up.DirectPath),
				MediaKey:      up.MediaKey,
				FileEncSHA256: up.FileEncSHA256,
				FileSHA256:    up.FileSHA256,
				FileLength:    proto.Uint64(size),
			},
		}
	}
	return &waE2E.Message{
		DocumentMessage: &waE2E.DocumentMessage{
			Caption:       proto.String(caption),
			Mimetype:      proto.String(mimeType),
			URL:           proto.String(up.URL),
			DirectPath:    proto.String(up.DirectPath),
			MediaKey:      up.MediaKey,
			FileEncSHA256: up.FileEncSHA256,
			FileSHA256:    up.FileSHA256,
			FileLength:    proto.Uint64(size),
		},
	}
}

// SelfAddress returns our own address, or empty before pairing.
func (a *Adapter) SelfAddress() string {
	if a.client.Store.ID == nil {
		return ""
	}
	return a.client.Store.ID.ToNonAD().String()
}
