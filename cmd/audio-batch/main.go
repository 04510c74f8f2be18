// main package for the audio-batch CLI. It asks a running adstudy server
// to execute one audio generation pass over the NATS run subject and
// prints the resulting report.
package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/audiopanel/adstudy/internal/worker"
)

// Flag names and descriptions.
const (
	flagURL         = "url"
	flagSubject     = "subject"
	flagTimeout     = "timeout"
	flagURLDesc     = "NATS server URL"
	flagSubjectDesc = "Subject the batch worker listens on"
	flagTimeoutDesc = "How long to wait for the batch to finish"
)

const (
	defaultSubject = "adstudy.audio.run"
	defaultTimeout = 10 * time.Minute
)

// errBatchFailed indicates the worker ran but reported a failure.
var errBatchFailed = errors.New("batch run failed")

type appFlags struct {
	url     string
	subject string
	timeout time.Duration
}

func main() {
	err := run()
	if err != nil {
		log.Fatalf("Error: %v", err)
	}
}

func run() error {
	flags := parseFlags()

	natsConnection, err := nats.Connect(flags.url)
	if err != nil {
		return fmt.Errorf("failed to connect to NATS at %s: %w", flags.url, err)
	}
	defer natsConnection.Close()

	msg, err := natsConnection.Request(flags.subject, nil, flags.timeout)
	if err != nil {
		return fmt.Errorf("batch request on %s failed: %w", flags.subject, err)
	}

	var reply worker.RunReply

	err = json.Unmarshal(msg.Data, &reply)
	if err != nil {
		return fmt.Errorf("failed to decode batch reply: %w", err)
	}

	if !reply.OK {
		return fmt.Errorf("%w: %s", errBatchFailed, reply.Error)
	}

	fmt.Fprintf(os.Stdout,
		"Batch complete: low_updated=%d generated=%d errored=%d\n",
		reply.Report.LowUpdated, reply.Report.Generated, reply.Report.Errored)

	return nil
}

func parseFlags() appFlags {
	var flags appFlags

	flag.StringVar(&flags.url, flagURL, nats.DefaultURL, flagURLDesc)
	flag.StringVar(&flags.subject, flagSubject, defaultSubject, flagSubjectDesc)
	flag.DurationVar(&flags.timeout, flagTimeout, defaultTimeout, flagTimeoutDesc)
	flag.Parse()

	return flags
}
