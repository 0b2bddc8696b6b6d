package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"matchbook/config"
	"matchbook/domain/book"
	"matchbook/feed"
	"matchbook/infra/kafka"
	"matchbook/infra/memory"
	"matchbook/infra/outbox"
	"matchbook/infra/sequence"
	"matchbook/infra/tape"
	"matchbook/jobs/broadcaster"
	"matchbook/jobs/janitor"
	"matchbook/report"
	"matchbook/service"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(".")
	if err != nil {
		return err
	}

	log, err := buildLogger(cfg.Development)
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(
		context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ---------------- Tape ----------------

	tp, err := tape.Open(tape.Config{
		Dir:             cfg.Tape.Dir,
		SegmentSize:     cfg.Tape.SegmentSize,
		SegmentDuration: cfg.Tape.SegmentAge,
	})
	if err != nil {
		return fmt.Errorf("open tape: %w", err)
	}
	defer tp.Close()

	// ---------------- Outbox ----------------

	ob, err := outbox.Open(cfg.Outbox.Dir)
	if err != nil {
		return fmt.Errorf("open outbox: %w", err)
	}
	defer ob.Close()

	// ---------------- Domain ----------------

	seq := sequence.New(0)
	hints := memory.NewRetireRing(1 << 16)
	bk := book.New(hints)

	eng := service.NewEngine(log, bk, seq, tp, ob)
	disp := service.NewDispatcher(log, eng, cfg.Workers, cfg.QueueSize)
	disp.Run(ctx)

	// ---------------- Background jobs ----------------

	jan := janitor.New(log, bk, hints, cfg.Janitor.PruneLimit, eng.Reader())
	go jan.Run(ctx, cfg.Janitor.Interval)

	if len(cfg.Kafka.Brokers) > 0 {
		bc, err := broadcaster.Dial(log, ob, cfg.Kafka.Brokers, cfg.Kafka.TradeTopic)
		if err != nil {
			return fmt.Errorf("dial broker: %w", err)
		}
		defer bc.Close()
		go bc.Run(ctx, cfg.Broadcaster.Interval)
	}

	// ---------------- Run ----------------

	printer := &report.Printer{W: os.Stdout}

	switch cfg.Mode {
	case "stream":
		err = runStream(ctx, cfg, log, disp)
	default:
		err = runSimulation(ctx, cfg, log, eng, disp, printer)
	}
	disp.Close()
	if err != nil {
		return err
	}

	if sum, err := report.Summarize(cfg.Tape.Dir); err != nil {
		log.Warn("tape summary failed", zap.Error(err))
	} else if perr := printer.PrintSummary(sum); perr != nil {
		return perr
	}

	log.Info("engine stopped")
	return nil
}

// runSimulation is the two-phase run: load the CSV dataset, settle
// it, report and reset, then drive the random stream.
func runSimulation(
	ctx context.Context,
	cfg config.Config,
	log *zap.Logger,
	eng *service.Engine,
	disp *service.Dispatcher,
	printer *report.Printer,
) error {
	if cfg.DatasetPath != "" {
		log.Info("phase 1: dataset", zap.String("path", cfg.DatasetPath))

		src := feed.NewCSVSource(cfg.DatasetPath, log)
		if err := pump(ctx, src, disp); err != nil {
			return fmt.Errorf("dataset phase: %w", err)
		}
		disp.Drain(ctx)
		trades := eng.Sweep()
		log.Info("dataset settled",
			zap.Int("trades", len(trades)),
			zap.Int("rows_skipped", src.Skipped))

		if err := printer.PrintBook("book after dataset", eng.SnapshotEntries()); err != nil {
			return err
		}
		eng.Reset()
	}

	log.Info("phase 2: random trading",
		zap.Int("orders", cfg.Random.Count),
		zap.Uint64("seed", cfg.Random.Seed))

	src := feed.NewRandomSource(cfg.Random.Count, cfg.Random.Tickers, cfg.Random.Seed)
	if err := pump(ctx, src, disp); err != nil {
		return fmt.Errorf("random phase: %w", err)
	}
	disp.Drain(ctx)

	if err := printer.PrintBook("book after random trading", eng.SnapshotEntries()); err != nil {
		return err
	}
	return printer.PrintStats("run stats", disp.Stats())
}

// runStream consumes the Kafka order feed until the context ends.
func runStream(
	ctx context.Context,
	cfg config.Config,
	log *zap.Logger,
	disp *service.Dispatcher,
) error {
	if len(cfg.Kafka.Brokers) == 0 {
		return fmt.Errorf("stream mode needs kafka.brokers")
	}
	log.Info("streaming order feed",
		zap.Strings("brokers", cfg.Kafka.Brokers),
		zap.String("topic", cfg.Kafka.FeedTopic))

	reader := kafka.NewReader(cfg.Kafka.Brokers, cfg.Kafka.FeedTopic, cfg.Kafka.Group)
	defer reader.Close()

	src := feed.NewKafkaSource(reader, log)
	if err := pump(ctx, src, disp); err != nil && ctx.Err() == nil {
		return fmt.Errorf("stream: %w", err)
	}
	return nil
}

func pump(ctx context.Context, src feed.Source, disp *service.Dispatcher) error {
	return src.Stream(ctx, func(r feed.Record) error {
		return disp.Enqueue(ctx, r)
	})
}

func buildLogger(development bool) (*zap.Logger, error) {
	if development {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
