// Package worker provides a NATS worker that runs audio lifecycle batches
// on demand.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/book-expert/logger"
	"github.com/nats-io/nats.go"

	"github.com/audiopanel/adstudy/internal/lifecycle"
)

// runTimeout bounds one batch run. A 50-record batch at the default delay
// spends ~25s sleeping alone, so the bound is generous.
const runTimeout = 10 * time.Minute

// BatchRunner abstracts the lifecycle engine for the worker.
type BatchRunner interface {
	Run(ctx context.Context) (lifecycle.Report, error)
}

// RunReply is the JSON response published for each batch request.
type RunReply struct {
	OK     bool             `json:"ok"`
	Error  string           `json:"error,omitempty"`
	Report lifecycle.Report `json:"report"`
}

// NatsWorker listens for batch run requests on a NATS subject and executes
// them. Requests carry no payload; the reply carries the run report.
type NatsWorker struct {
	natsConnection *nats.Conn
	subject        string
	runner         BatchRunner
	log            *logger.Logger
}

// NewNatsWorker creates a new instance of a NATS worker.
func NewNatsWorker(
	natsConnection *nats.Conn,
	subject string,
	runner BatchRunner,
	log *logger.Logger,
) *NatsWorker {
	return &NatsWorker{
		natsConnection: natsConnection,
		subject:        subject,
		runner:         runner,
		log:            log,
	}
}

// Run starts the worker and begins listening for batch requests.
func (w *NatsWorker) Run(ctx context.Context) error {
	sub, err := w.natsConnection.Subscribe(w.subject, w.handleMessage)
	if err != nil {
		return fmt.Errorf("failed to subscribe to subject %s: %w", w.subject, err)
	}

	<-ctx.Done()

	drainErr := sub.Drain()
	if drainErr != nil {
		return fmt.Errorf("failed to drain subscription: %w", drainErr)
	}

	return nil
}

func (w *NatsWorker) handleMessage(msg *nats.Msg) {
	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()

	w.log.Info("Batch run requested on %s", w.subject)

	reply := RunReply{OK: true, Error: "", Report: lifecycle.Report{}}

	report, err := w.runner.Run(ctx)
	reply.Report = report

	if err != nil {
		w.log.Error("Batch run failed: %v", err)

		reply.OK = false
		reply.Error = err.Error()
	}

	w.publishReply(msg, reply)
}

func (w *NatsWorker) publishReply(msg *nats.Msg, reply RunReply) {
	replyData, err := json.Marshal(reply)
	if err != nil {
		w.log.Error("Failed to marshal batch reply: %v", err)

		return
	}

	err = msg.Respond(replyData)
	if err != nil {
		w.log.Error("Failed to publish batch reply: %v", err)
	}
}
