package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/wagw/wagw/internal/config"
	"github.com/wagw/wagw/internal/daemon"
	"github.com/wagw/wagw/internal/session"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func main() {
	sessionFlag := flag.String("session", "", "session name (overrides config default)")
	jsonFlag := flag.Bool("json", false, "output in JSON format")
	flag.Parse()

	sessionName := session.Resolve(*sessionFlag)
	if err := session.ValidateName(sessionName); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	switch args[0] {
	case "status":
		cmdStatus(ctx, sessionName, *jsonFlag)
	case "inbox":
		cmdInbox(*jsonFlag)
	case "send":
		if len(args) < 3 {
			fmt.Fprintln(os.Stderr, "usage: wagwctl send <recipient> <text>")
			os.Exit(1)
		}
		cmdSend(args[1], args[2])
	case "logout":
		cmdLogout()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", args[0])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "usage: wagwctl [--session <name>] [--json] <command>")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "commands:")
	fmt.Fprintln(os.Stderr, "  status                 Show daemon and session health")
	fmt.Fprintln(os.Stderr, "  inbox                  List recent messages")
	fmt.Fprintln(os.Stderr, "  send <to> <text>       Send a text message")
	fmt.Fprintln(os.Stderr, "  logout                 Invalidate the session credentials")
}

// cmdStatus checks daemon liveness over the session's Unix socket; the
// daemon being reachable at all means it is running, and the health status
// reflects whether the WhatsApp connection is up.
func cmdStatus(ctx context.Context, sessionName string, jsonOut bool) {
	socketPath := session.SocketPath(sessionName)
	conn, err := grpc.NewClient(
		"unix://"+socketPath,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: cannot reach daemon for session %q: %v\n", sessionName, err)
		os.Exit(1)
	}
	defer func() { _ = conn.Close() }()

	resp, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{
		Service: daemon.HealthService,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: daemon for session %q is not running: %v\n", sessionName, err)
		os.Exit(1)
	}

	connected := resp.Status == healthpb.HealthCheckResponse_SERVING
	if jsonOut {
		outputJSON(map[string]any{"session": sessionName, "daemon": "running", "connected": connected})
		return
	}
	fmt.Printf("Session:   %s\n", sessionName)
	fmt.Printf("Daemon:    running\n")
	if connected {
		fmt.Printf("WhatsApp:  connected\n")
	} else {
		fmt.Printf("WhatsApp:  not connected\n")
	}
}

// webBaseURL resolves the daemon's HTTP API address from config.
func webBaseURL() string {
	cfg := config.LoadOrDefault(session.ConfigPath())
	if cfg.Web.Listen == "" {
		fmt.Fprintln(os.Stderr, "error: web surface disabled, set web.listen in config.toml")
		os.Exit(1)
	}
	return "http://" + cfg.Web.Listen
}

func cmdInbox(jsonOut bool) {
	resp, err := http.Get(webBaseURL() + "/api/inbox")
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = resp.Body.Close() }()

	var body struct {
		Messages []struct {
			ID        string `json:"id"`
			Sender    string `json:"sender"`
			Content   string `json:"content"`
			Timestamp int64  `json:"timestamp"`
			Outgoing  bool   `json:"outgoing"`
		} `json:"messages"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		fmt.Fprintf(os.Stderr, "error: decode response: %v\n", err)
		os.Exit(1)
	}

	if jsonOut {
		outputJSON(body)
		return
	}
	if len(body.Messages) == 0 {
		fmt.Println("inbox empty")
		return
	}
	for _, m := range body.Messages {
		direction := "<-"
		if m.Outgoing {
			direction = "->"
		}
		ts := time.UnixMilli(m.Timestamp).Format("2006-01-02 15:04")
		fmt.Printf("%s %s %-30s %s\n", ts, direction, m.Sender, m.Content)
	}
}

func cmdSend(recipient, text string) {
	payload, _ := json.Marshal(map[string]string{"recipient": recipient, "text": text})
	resp, err := http.Post(webBaseURL()+"/api/send", "application/json", bytes.NewReader(payload))
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		fmt.Fprintf(os.Stderr, "error: send failed (%d): %s\n", resp.StatusCode, bytes.TrimSpace(body))
		os.Exit(1)
	}
	fmt.Println("sent")
}

func cmdLogout() {
	resp, err := http.Post(webBaseURL()+"/api/logout", "application/json", nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		fmt.Fprintf(os.Stderr, "error: logout failed (%d): %s\n", resp.StatusCode, bytes.TrimSpace(body))
		os.Exit(1)
	}
	fmt.Println("logged out, pairing required for next connect")
}

func outputJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}
