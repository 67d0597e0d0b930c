// Package web is the loopback HTTP surface of the daemon: a small JSON API
// for status, pairing, inbox, and sending, plus a websocket push channel.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/skip2/go-qrcode"
	"github.com/wagw/wagw/internal/outbound"
	"github.com/wagw/wagw/internal/status"
	"github.com/wagw/wagw/internal/store"
	"github.com/wagw/wagw/internal/supervisor"
	"go.uber.org/zap"
)

const (
	defaultInboxLimit = 100
	maxMediaBytes     = 16 << 20
)

// Service is the slice of the gateway facade the HTTP surface uses.
type Service interface {
	Initiate(ctx context.Context) error
	Status() status.State
	QRCode(ctx context.Context) (string, error)
	Send(ctx context.Context, recipient, text string) (string, error)
	SendMedia(ctx context.Context, recipient string, data []byte, mimeType, caption string) (string, error)
	Logout(ctx context.Context) error
	Inbox(limit int) ([]store.Record, error)
	NewMessageFlag() (*store.NewMessageFlag, error)
}

// Server serves the JSON API and the websocket endpoint.
type Server struct {
	service Service
	hub     *Hub
	logger  *zap.Logger
	http    *http.Server
}

// NewServer creates the HTTP server for the given listen address.
func NewServer(listen string, service Service, hub *Hub, logger *zap.Logger) *Server {
	s := &Server{
		service: service,
		hub:     hub,
		logger:  logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("GET /api/qr", s.handleQR)
	mux.HandleFunc("GET /api/inbox", s.handleInbox)
	mux.HandleFunc("POST /api/connect", s.handleConnect)
	mux.HandleFunc("POST /api/send", s.handleSend)
	mux.HandleFunc("POST /api/send/media", s.handleSendMedia)
	mux.HandleFunc("POST /api/logout", s.handleLogout)
	mux.HandleFunc("GET /ws", hub.ServeWS)

	s.http = &http.Server{
		Addr:              listen,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Start begins serving on the configured address. Returns once the
// listener is bound; serving continues in a goroutine.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.http.Addr)
	if err != nil {
		return err
	}
	s.logger.Info("web surface listening", zap.String("addr", ln.Addr().String()))
	go func() {
		if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("web server stopped", zap.Error(err))
		}
	}()
	return nil
}

// Stop shuts the server down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	flag, err := s.service.NewMessageFlag()
	if err != nil {
		s.logger.Warn("read new message flag", zap.Error(err))
		flag = &store.NewMessageFlag{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":          string(s.service.Status()),
		"has_new_message": flag.HasNew,
		"last_message_at": flag.LastMessageAt,
	})
}

func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	if err := s.service.Initiate(r.Context()); err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": string(s.service.Status())})
}

// handleQR serves the pairing code. With format=png it renders a scannable
// image; otherwise the raw code string, for clients rendering their own.
func (s *Server) handleQR(w http.ResponseWriter, r *http.Request) {
	code, err := s.service.QRCode(r.Context())
	if err != nil {
		switch {
		case errors.Is(err, supervisor.ErrAlreadyConnected):
			writeJSON(w, http.StatusOK, map[string]string{"qr": "none", "status": string(status.Connected)})
		case errors.Is(err, supervisor.ErrQRTimeout):
			writeError(w, http.StatusGatewayTimeout, "no QR code available yet, try again")
		default:
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	if r.URL.Query().Get("format") == "png" {
		png, err := qrcode.Encode(code, qrcode.Medium, 512)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "render QR image")
			return
		}
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(png)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"qr": code})
}

func (s *Server) handleInbox(w http.ResponseWriter, r *http.Request) {
	limit := defaultInboxLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	records, err := s.service.Inbox(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	out := make([]map[string]any, 0, len(records))
	for _, rec := range records {
		out = append(out, map[string]any{
			"id":        rec.ID,
			"sender":    rec.Sender,
			"content":   rec.Content,
			"timestamp": rec.Timestamp,
			"outgoing":  rec.Outgoing,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": out})
}

type sendRequest struct {
	Recipient string `json:"recipient"`
	Text      string `json:"text"`
}

func (s *Server) handleSend(w http.ResponseWriter, r *http.Request) {
	var req sendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Recipient == "" || req.Text == "" {
		writeError(w, http.StatusBadRequest, "recipient and text are required")
		return
	}

	id, err := s.service.Send(r.Context(), req.Recipient, req.Text)
	if err != nil {
		if errors.Is(err, outbound.ErrNotConnected) {
			writeError(w, http.StatusServiceUnavailable, "session not connected")
			return
		}
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": id})
}

func (s *Server) handleSendMedia(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxMediaBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart body")
		return
	}
	recipient := r.FormValue("recipient")
	if recipient == "" {
		writeError(w, http.StatusBadRequest, "recipient is required")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer func() { _ = file.Close() }()

	data, err := io.ReadAll(io.LimitReader(file, maxMediaBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "read file")
		return
	}

	mimeType := header.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	id, err := s.service.SendMedia(r.Context(), recipient, data, mimeType, r.FormValue("caption"))
	if err != nil {
		if errors.Is(err, outbound.ErrNotConnected) {
			writeError(w, http.StatusServiceUnavailable, "session not connected")
			return
		}
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": id})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.service.Logout(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": string(s.service.Status())})
}

func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, map[string]string{"error": message})
}
