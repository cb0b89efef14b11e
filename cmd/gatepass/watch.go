package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"
	"time"

	"github.com/alfredjeanlab/gatepass/internal/events"
	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"
)

// sseRetryDelay is the pause before reconnecting a dropped event stream.
const sseRetryDelay = time.Second

var watchCmd = &cobra.Command{
	Use:     "watch [matched|mismatch|invalid ...]",
	Short:   "Stream live decisions from NATS or the server's event stream",
	GroupID: "gate",
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, a := range args {
			if !slices.Contains(events.Names, a) {
				return fmt.Errorf("unknown event %q (must be one of %s)", a, strings.Join(events.Names, ", "))
			}
		}

		natsURL, _ := cmd.Flags().GetString("nats-url")
		if natsURL == "" {
			natsURL = os.Getenv("GATEPASS_NATS_URL")
		}
		if natsURL == "" {
			natsURL = activeRemoteNATSURL()
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		out := cmd.OutOrStdout()
		emit := func(name string, data []byte) {
			if len(args) > 0 && !slices.Contains(args, name) {
				return
			}
			if jsonOutput {
				fmt.Fprintln(out, strings.TrimSpace(string(data)))
				return
			}
			printEvent(out, name, data)
		}

		if natsURL != "" {
			return watchNATS(ctx, natsURL, emit)
		}
		return watchSSE(ctx, httpURL, authToken, args, emit)
	},
}

// watchNATS prints decision events from the bus until ctx is done.
func watchNATS(ctx context.Context, natsURL string, emit func(string, []byte)) error {
	sub, err := events.NewNATSSubscriber(natsURL,
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Printf("nats: disconnected: %v", err)
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			log.Printf("nats: reconnected (events published while disconnected are lost)")
		}),
	)
	if err != nil {
		return fmt.Errorf("connecting to NATS: %w", err)
	}
	defer sub.Close()

	ch, cancel, err := sub.Subscribe(events.SubjectAll)
	if err != nil {
		return fmt.Errorf("subscribing to events: %w", err)
	}
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			emit(msg.Name, msg.Data)
		}
	}
}

// watchSSE follows the server's event stream, reconnecting with
// Last-Event-ID so buffered events are not missed across short drops.
func watchSSE(ctx context.Context, baseURL, token string, topics []string, emit func(string, []byte)) error {
	streamURL := strings.TrimRight(baseURL, "/") + "/v1/events/stream"
	if len(topics) > 0 {
		streamURL += "?" + url.Values{"topics": {strings.Join(topics, ",")}}.Encode()
	}

	var lastID string
	for {
		id, err := streamOnce(ctx, streamURL, token, lastID, emit)
		if id != "" {
			lastID = id
		}
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			var status *streamStatusError
			if errors.As(err, &status) && status.code < 500 {
				return err
			}
			log.Printf("event stream: %v; reconnecting", err)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(sseRetryDelay):
		}
	}
}

type streamStatusError struct {
	code int
	body string
}

func (e *streamStatusError) Error() string {
	return fmt.Sprintf("event stream: HTTP %d: %s", e.code, e.body)
}

// streamOnce reads one connection's worth of events and returns the last
// event id seen.
func streamOnce(ctx context.Context, streamURL, token, lastID string, emit func(string, []byte)) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, streamURL, nil)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if lastID != "" {
		req.Header.Set("Last-Event-ID", lastID)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", &streamStatusError{code: resp.StatusCode, body: strings.TrimSpace(string(body))}
	}
	return readSSE(resp.Body, emit)
}

// readSSE parses id/event/data frames until r ends. Comment lines
// (keepalives) are ignored.
func readSSE(r io.Reader, emit func(string, []byte)) (string, error) {
	var lastID, id, event string
	var data []string

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1<<20)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if len(data) > 0 {
				emit(event, []byte(strings.Join(data, "\n")))
				if id != "" {
					lastID = id
				}
			}
			id, event, data = "", "", nil
		case strings.HasPrefix(line, ":"):
		case strings.HasPrefix(line, "id:"):
			id = strings.TrimSpace(strings.TrimPrefix(line, "id:"))
		case strings.HasPrefix(line, "event:"):
			event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			data = append(data, strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		}
	}
	return lastID, scanner.Err()
}

func init() {
	watchCmd.Flags().String("nats-url", "", "NATS URL (defaults to GATEPASS_NATS_URL or the active remote)")
}
