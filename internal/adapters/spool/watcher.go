// Package spool ingests mail from a local drop directory. Providers
// that deliver over the filesystem (or operators replaying captured
// traffic) drop .json webhook payloads or raw .eml files; the watcher
// feeds each one through the same inbound pipeline as the webhook
// server, then moves it aside so redelivery stays explicit.
package spool

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/emersion/go-message/mail"
	"github.com/fsnotify/fsnotify"

	"github.com/example/courier/internal/models"
	"github.com/example/courier/internal/ports/primary"
)

const doneDir = "done"

// Watcher tails a spool directory and hands each dropped message to
// the inbound service.
type Watcher struct {
	dir     string
	inbound primary.InboundService
	logger  *slog.Logger
}

// NewWatcher creates a watcher for dir. The directory is created if
// missing.
func NewWatcher(dir string, inbound primary.InboundService, logger *slog.Logger) (*Watcher, error) {
	if err := os.MkdirAll(filepath.Join(dir, doneDir), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create spool directory: %w", err)
	}
	return &Watcher{dir: dir, inbound: inbound, logger: logger}, nil
}

// Run processes files already present, then blocks watching for new
// ones until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	w.drain(ctx)

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create fs watcher: %w", err)
	}
	defer fsw.Close()

	if err := fsw.Add(w.dir); err != nil {
		return fmt.Errorf("failed to watch spool directory: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			w.process(ctx, event.Name)
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("spool watch error", "error", err)
		}
	}
}

// drain handles files that were dropped before the watcher started.
func (w *Watcher) drain(ctx context.Context) {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		w.logger.Error("failed to read spool directory", "error", err)
		return
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		w.process(ctx, filepath.Join(w.dir, e.Name()))
	}
}

func (w *Watcher) process(ctx context.Context, path string) {
	var (
		result *primary.InboundResult
		err    error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		result, err = w.processJSON(ctx, path)
	case ".eml":
		result, err = w.processEML(ctx, path)
	default:
		return
	}
	if err != nil {
		w.logger.Error("spool file failed", "path", path, "error", err)
		return
	}

	w.logger.Info("spool file processed",
		"path", path, "outcome", result.Outcome, "flow_id", result.FlowID)
	w.finish(path)
}

func (w *Watcher) processJSON(ctx context.Context, path string) (*primary.InboundResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read spool file: %w", err)
	}
	var payload map[string]any
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("failed to parse spool payload: %w", err)
	}

	agent, err := recipientAgent(payload)
	if err != nil {
		return nil, err
	}
	return w.inbound.HandlePayload(ctx, agent, payload)
}

func (w *Watcher) processEML(ctx context.Context, path string) (*primary.InboundResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open spool file: %w", err)
	}
	defer f.Close()

	payload, err := ParseEML(f)
	if err != nil {
		return nil, err
	}

	agent, err := recipientAgent(payload)
	if err != nil {
		return nil, err
	}
	return w.inbound.HandlePayload(ctx, agent, payload)
}

// finish moves a handled file into done/ so a crash between handling
// and the move redelivers at most that one file. Dedup downstream
// makes the replay harmless.
func (w *Watcher) finish(path string) {
	dest := filepath.Join(w.dir, doneDir, filepath.Base(path))
	if err := os.Rename(path, dest); err != nil {
		w.logger.Error("failed to archive spool file", "path", path, "error", err)
	}
}

// recipientAgent extracts the target agent's username from the
// payload's recipient address.
func recipientAgent(payload map[string]any) (string, error) {
	for _, key := range []string{"to", "recipient", "To"} {
		if v, ok := payload[key]; ok {
			if s, ok := v.(string); ok && s != "" {
				return models.LocalPart(s), nil
			}
			if list, ok := v.([]any); ok && len(list) > 0 {
				if s, ok := list[0].(string); ok && s != "" {
					return models.LocalPart(s), nil
				}
			}
		}
	}
	return "", fmt.Errorf("spool payload has no recipient")
}

// ParseEML converts a raw RFC 5322 message into the duck-typed payload
// shape the inbound pipeline expects.
func ParseEML(r io.Reader) (map[string]any, error) {
	mr, err := mail.CreateReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse message: %w", err)
	}

	payload := map[string]any{}
	h := mr.Header
	if id, err := h.MessageID(); err == nil && id != "" {
		payload["message_id"] = id
	}
	if from, err := h.AddressList("From"); err == nil && len(from) > 0 {
		payload["from"] = from[0].String()
	}
	if to, err := h.AddressList("To"); err == nil && len(to) > 0 {
		payload["to"] = to[0].String()
	}
	if subject, err := h.Subject(); err == nil {
		payload["subject"] = subject
	}
	if ids, err := h.MsgIDList("In-Reply-To"); err == nil && len(ids) > 0 {
		payload["in_reply_to"] = ids[0]
	}
	if refs, err := h.MsgIDList("References"); err == nil && len(refs) > 0 {
		list := make([]any, len(refs))
		for i, r := range refs {
			list[i] = r
		}
		payload["references"] = list
	}
	if date, err := h.Date(); err == nil && !date.IsZero() {
		payload["received_at"] = date.Format("2006-01-02T15:04:05Z07:00")
	}

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read message part: %w", err)
		}
		inline, ok := part.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}
		body, err := io.ReadAll(part.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to read message body: %w", err)
		}
		ct, _, _ := inline.ContentType()
		switch ct {
		case "text/html":
			if _, exists := payload["html"]; !exists {
				payload["html"] = string(body)
			}
		default:
			if _, exists := payload["text"]; !exists {
				payload["text"] = string(body)
			}
		}
	}

	return payload, nil
}
