// Package chat owns per-tab console state and turns user input into
// transcript snapshots.
package chat

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"strings"
	"time"

	"github.com/ashureev/hacxweb/internal/command"
	"github.com/ashureev/hacxweb/internal/domain"
	"github.com/ashureev/hacxweb/internal/provider"
	"github.com/ashureev/hacxweb/internal/registry"
)

// NotConnectedMessage is the assistant turn appended when a message is sent
// before any provider is connected.
const NotConnectedMessage = "⚠️ **Error**: Neural link not established. Please configure API settings first."

// State is the connection lifecycle of an orchestrator.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Options tune an orchestrator.
type Options struct {
	// StreamTimeout bounds a single streamed reply. Zero waits indefinitely.
	StreamTimeout time.Duration
	Logger        *slog.Logger
}

// Orchestrator holds the state of one console tab. It is not safe for
// concurrent use; Manager serialises access.
type Orchestrator struct {
	registry  *registry.Registry
	connector provider.Connector
	opts      Options
	logger    *slog.Logger

	state      State
	session    domain.SessionState
	transcript domain.Transcript
	revision   uint64 // bumped on every transcript change
}

// NewOrchestrator creates a disconnected orchestrator with an empty transcript.
func NewOrchestrator(reg *registry.Registry, connector provider.Connector, opts Options) *Orchestrator {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		registry:  reg,
		connector: connector,
		opts:      opts,
		logger:    logger,
	}
}

// Connect attaches a session for providerID and returns a status line for
// the UI. On any failure the previous connection stays in place.
func (o *Orchestrator) Connect(ctx context.Context, providerID, credential, model string) (string, error) {
	credential = strings.TrimSpace(credential)
	if credential == "" {
		return "⚠️ API key required", &ValidationError{Field: "api_key", Reason: "API key required"}
	}

	p, err := o.registry.Get(providerID)
	if err != nil {
		return "✗ Connection failed: " + err.Error(), err
	}

	if model == "" {
		model = p.DefaultModel
	} else if !p.HasModel(model) {
		verr := &ValidationError{Field: "model", Reason: fmt.Sprintf("model %q is not offered by %s", model, p.ID)}
		return "⚠️ " + verr.Reason, verr
	}

	prev := o.state
	o.state = StateConnecting
	o.logger.Info("Connecting to provider", "provider", p.ID, "model", model)

	sess, err := o.connector.Connect(ctx, p, credential, model)
	if err != nil {
		o.state = prev
		o.logger.Warn("Provider connection failed", "provider", p.ID, "model", model, "error", err)
		return "✗ Connection failed: " + err.Error(), &ConnectionError{Provider: p.ID, Err: err}
	}

	o.session = domain.SessionState{Provider: &p, Model: model, Session: sess}
	o.state = StateConnected
	o.logger.Info("Provider connected", "provider", p.ID, "model", model)

	return fmt.Sprintf("✓ Neural link established with %s | Model: %s", strings.ToUpper(p.ID), model), nil
}

// Send processes one submitted message and yields transcript snapshots.
// The sequence is finite and must not be iterated twice.
func (o *Orchestrator) Send(ctx context.Context, message string) iter.Seq[domain.Transcript] {
	return func(yield func(domain.Transcript) bool) {
		if !o.session.Connected() {
			o.append(
				domain.Turn{Role: domain.RoleUser, Content: message},
				domain.Turn{Role: domain.RoleAssistant, Content: NotConnectedMessage},
			)
			yield(o.transcript)
			return
		}

		if strings.TrimSpace(message) == "" {
			yield(o.transcript)
			return
		}

		if command.IsCommand(message) {
			reply := command.Dispatch(message, o.session)
			o.append(
				domain.Turn{Role: domain.RoleUser, Content: message},
				domain.Turn{Role: domain.RoleAssistant, Content: reply},
			)
			yield(o.transcript)
			return
		}

		o.stream(ctx, message, yield)
	}
}

func (o *Orchestrator) stream(ctx context.Context, message string, yield func(domain.Transcript) bool) {
	if o.opts.StreamTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.opts.StreamTimeout)
		defer cancel()
	}

	o.append(
		domain.Turn{Role: domain.RoleUser, Content: message},
		domain.Turn{Role: domain.RoleAssistant},
	)

	started := time.Now()
	fragments := 0
	var reply strings.Builder
	for fragment, err := range o.session.Session.Chat(ctx, message) {
		if err != nil {
			// Partial content is replaced by the error text.
			serr := &StreamError{Provider: o.session.Provider.ID, Model: o.session.Model, Err: err}
			o.logger.Error("Chat stream failed", "error", serr, "fragments", fragments)
			o.setLast(FormatStreamError(err))
			yield(o.transcript)
			return
		}
		if fragment == "" {
			continue
		}
		fragments++
		reply.WriteString(fragment)
		o.setLast(reply.String())
		if !yield(o.transcript) {
			o.logger.Info("Chat stream abandoned by caller", "fragments", fragments)
			return
		}
	}
	o.logger.Info("Chat stream complete",
		"fragments", fragments,
		"reply_length", reply.Len(),
		"duration", time.Since(started),
	)
}

// FormatStreamError renders a mid-stream failure as assistant content.
func FormatStreamError(err error) string {
	return "⚠️ **Error**: " + err.Error()
}

// ResetConversation wipes the remote session memory, if connected, and the
// local transcript. Provider and model are kept.
func (o *Orchestrator) ResetConversation() domain.Transcript {
	if o.session.Connected() {
		o.session.Session.Reset()
	}
	o.Clear()
	return o.transcript
}

// Clear empties the local transcript without touching the remote session.
func (o *Orchestrator) Clear() domain.Transcript {
	if o.transcript.Len() > 0 {
		o.transcript = domain.Transcript{}
		o.revision++
	}
	return o.transcript
}

// Help appends the command listing regardless of connection state.
func (o *Orchestrator) Help() domain.Transcript {
	o.append(
		domain.Turn{Role: domain.RoleUser, Content: "/help"},
		domain.Turn{Role: domain.RoleAssistant, Content: command.Dispatch("/help", o.session)},
	)
	return o.transcript
}

// ProviderChoices returns selectable models and the default for a provider.
func (o *Orchestrator) ProviderChoices(providerID string) ([]string, string, error) {
	return o.registry.Models(providerID)
}

// Restore replaces the transcript, used when reloading a persisted tab.
func (o *Orchestrator) Restore(t domain.Transcript) {
	o.transcript = t
}

// Transcript returns the current snapshot.
func (o *Orchestrator) Transcript() domain.Transcript {
	return o.transcript
}

// State returns the connection lifecycle state.
func (o *Orchestrator) State() State {
	return o.state
}

// SessionState returns the active provider, model and session.
func (o *Orchestrator) SessionState() domain.SessionState {
	return o.session
}

// Revision changes whenever the transcript changes.
func (o *Orchestrator) Revision() uint64 {
	return o.revision
}

func (o *Orchestrator) append(turns ...domain.Turn) {
	o.transcript = o.transcript.Append(turns...)
	o.revision++
}

func (o *Orchestrator) setLast(content string) {
	o.transcript = o.transcript.WithLastContent(content)
	o.revision++
}
