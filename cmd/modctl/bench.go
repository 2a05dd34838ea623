package main

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/whisper/moderation/internal/loadstats"
	"github.com/whisper/moderation/internal/logger"
	"github.com/whisper/moderation/internal/messaging"
	"github.com/whisper/moderation/internal/moderation"
	"github.com/whisper/moderation/internal/protocol"
)

var (
	benchRequests    int
	benchConcurrency int
	benchSessions    int
	benchLocal       bool
)

// benchCorpus mixes clean and violating messages.
var benchCorpus = []string{
	"hey, how was your day?",
	"Call me at 9876543210",
	"my email is someone@example.com",
	"check out https://example.com/page",
	"follow me @some_handle on insta",
	"this is such a shit show",
	"want to grab coffee later?",
	"I live at 221 Baker Street",
}

func newBenchCmd() *cobra.Command {
	bench := &cobra.Command{
		Use:   "bench",
		Short: "Measure moderation latency locally or against a running moderator",
		Long: `Send a mix of clean and violating messages and report latency percentiles.

By default requests go to moderation.check over NATS. Use --local to time
the engine in-process instead.`,
		RunE: runBench,
	}
	bench.Flags().IntVarP(&benchRequests, "requests", "n", 1000, "total requests")
	bench.Flags().IntVarP(&benchConcurrency, "concurrency", "c", 16, "concurrent workers")
	bench.Flags().IntVar(&benchSessions, "sessions", 100, "distinct session IDs to spread requests over")
	bench.Flags().BoolVar(&benchLocal, "local", false, "run the engine in-process")
	bench.Flags().StringVar(&natsURL, "nats-url", envOr("NATS_URL", "nats://localhost:4222"), "NATS server URL")
	bench.Flags().DurationVar(&timeout, "timeout", 3*time.Second, "per-request timeout")
	return bench
}

func runBench(cmd *cobra.Command, _ []string) error {
	if benchRequests <= 0 || benchConcurrency <= 0 || benchSessions <= 0 {
		return fmt.Errorf("requests, concurrency and sessions must be positive")
	}

	send := benchLocalSender()
	if !benchLocal {
		cfg := messaging.DefaultNATSConfig()
		cfg.URL = natsURL
		cfg.Name = "modctl-bench"
		cfg.MaxReconnects = 0
		client, err := messaging.NewNATSClient(cfg, logger.NewWithOutput("modctl", "error", cmd.ErrOrStderr()))
		if err != nil {
			return err
		}
		defer client.Close()
		send = benchRemoteSender(cmd.Context(), client)
	}

	collector := loadstats.NewCollector()
	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < benchConcurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				req := protocol.CheckRequest{
					RequestID: uuid.NewString(),
					SessionID: fmt.Sprintf("bench-%d", i%benchSessions),
					Text:      benchCorpus[i%len(benchCorpus)],
					Ts:        time.Now().UnixMilli(),
				}
				start := time.Now()
				outcome, err := send(req)
				if err != nil {
					collector.AddError()
					continue
				}
				collector.Add(time.Since(start), outcome)
			}
		}()
	}
	for i := 0; i < benchRequests; i++ {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	collector.Report(cmd.OutOrStdout())
	return nil
}

type benchSender func(protocol.CheckRequest) (string, error)

func benchLocalSender() benchSender {
	engine := moderation.NewEngine()
	return func(req protocol.CheckRequest) (string, error) {
		if engine.Moderate(req.Text).IsAllowed {
			return "allowed", nil
		}
		return "blocked", nil
	}
}

func benchRemoteSender(ctx context.Context, client *messaging.NATSClient) benchSender {
	return func(req protocol.CheckRequest) (string, error) {
		data, err := json.Marshal(req)
		if err != nil {
			return "", err
		}
		reqCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		reply, err := client.RequestModerationCheck(reqCtx, data)
		if err != nil {
			return "", err
		}

		var resp protocol.CheckResponse
		if err := json.Unmarshal(reply, &resp); err != nil {
			return "", err
		}
		switch {
		case resp.RequestID == "":
			var er protocol.ErrorResponse
			_ = json.Unmarshal(reply, &er)
			return er.Code, nil
		case resp.Muted:
			return "muted", nil
		case resp.Delivered:
			return "delivered", nil
		default:
			return "blocked", nil
		}
	}
}
