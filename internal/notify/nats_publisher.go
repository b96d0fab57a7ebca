// Package notify mirrors build-status events to NATS so external observers
// (editors, dashboards) can follow generation progress without linking
// against the daemon.
package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"git.home.luguber.info/inful/codegend/internal/errors"
	"git.home.luguber.info/inful/codegend/internal/generator"
)

// StatusMessage is the wire form of one status event.
type StatusMessage struct {
	Project string    `json:"project"`
	CycleID string    `json:"cycle_id"`
	Status  string    `json:"status"`
	Error   string    `json:"error,omitempty"`
	At      time.Time `json:"at"`
}

// Publisher forwards a daemon's status stream to a NATS subject. Publishing
// is best-effort; a failed publish is logged and never blocks the pipeline.
type Publisher struct {
	conn    *nats.Conn
	subject string
	logger  *slog.Logger

	cancel func()
	done   chan struct{}
}

// NewPublisher connects to NATS and prepares a publisher for the subject.
func NewPublisher(url, subject string, logger *slog.Logger) (*Publisher, error) {
	if logger == nil {
		logger = slog.Default()
	}

	conn, err := nats.Connect(url,
		nats.Name("codegend-status"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryRuntime, errors.SeverityError, "connect to NATS").
			WithContext("url", url)
	}

	logger.Info("status publisher connected", "url", url, "subject", subject)
	return &Publisher{
		conn:    conn,
		subject: subject,
		logger:  logger,
	}, nil
}

// Start subscribes to the daemon and mirrors events until the stream closes
// or the context is canceled.
func (p *Publisher) Start(ctx context.Context, daemon *generator.Daemon) {
	ch, cancel := daemon.BuildResults(16)
	p.cancel = cancel
	p.done = make(chan struct{})
	project := daemon.ProjectRoot()

	go func() {
		defer close(p.done)
		for {
			select {
			case ev, ok := <-ch:
				if !ok {
					return
				}
				p.publish(project, ev)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop unsubscribes, drains the mirror loop and closes the connection.
func (p *Publisher) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
	if p.done != nil {
		<-p.done
	}
	p.conn.Close()
}

func (p *Publisher) publish(project string, ev generator.StatusEvent) {
	msg := StatusMessage{
		Project: project,
		CycleID: ev.CycleID,
		Status:  string(ev.Status),
		At:      ev.At,
	}
	if ev.Err != nil {
		msg.Error = ev.Err.Error()
	}

	data, err := json.Marshal(msg)
	if err != nil {
		p.logger.Warn("failed to marshal status message", "error", err)
		return
	}
	if err := p.conn.Publish(p.subject, data); err != nil {
		p.logger.Warn("failed to publish status message",
			"subject", p.subject, "cycle_id", ev.CycleID, "error", err)
	}
}
