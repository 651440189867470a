// Command concierge runs the orchestration layer with an interactive
// stdin/stdout loop and demo tool backends.
package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/solari-labs/concierge/pkg/config"
	"github.com/solari-labs/concierge/pkg/confirm"
	"github.com/solari-labs/concierge/pkg/gate"
	"github.com/solari-labs/concierge/pkg/killswitch"
	"github.com/solari-labs/concierge/pkg/ledger"
	"github.com/solari-labs/concierge/pkg/observability"
	"github.com/solari-labs/concierge/pkg/orchestrator"
	"github.com/solari-labs/concierge/pkg/registry"
	"github.com/solari-labs/concierge/pkg/session"
	"github.com/solari-labs/concierge/pkg/spine"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "concierge:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.Load()
	logger := observability.SetupLogging(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	provider, err := observability.SetupTracing(ctx, observability.TracingConfig{
		ServiceName: cfg.ServiceName,
		Environment: "development",
		Endpoint:    cfg.OTLPEndpoint,
		Insecure:    true,
	})
	if err != nil {
		return fmt.Errorf("tracing setup: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := provider.Shutdown(shutdownCtx); err != nil {
			logger.Warn("tracing shutdown failed", "error", err)
		}
	}()

	led, closeLedger, err := buildLedger(cfg)
	if err != nil {
		return err
	}
	defer closeLedger()

	switchStore, closeSwitches, err := buildSwitchStore(cfg)
	if err != nil {
		return err
	}
	defer closeSwitches()
	switches := killswitch.New(switchStore, led, killswitch.WithAlerter(logAlerter{logger}))

	profile, err := spine.LoadProfile(cfg.ProfilePath)
	if err != nil {
		return err
	}
	defs := spine.Defaults()
	var denyRules []string
	if profile != nil {
		defs = profile.Apply(defs)
		denyRules = profile.DenyRules
	}

	g, err := gate.New(led, gate.WithDenyRules(denyRules), gate.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("gate setup: %w", err)
	}

	tools := registry.New()
	if err := registerDemoTools(tools); err != nil {
		return fmt.Errorf("tool registration: %w", err)
	}

	orch, err := orchestrator.New(orchestrator.Deps{
		Spines:   spine.Build(defs),
		Gate:     g,
		Tools:    tools,
		Switches: switches,
		Vault:    confirm.NewVault([]byte(cfg.ConfirmSecret), cfg.ConfirmTokenTTL),
		Sessions: session.NewStore(cfg.SessionTTL),
		Ledger:   led,
	}, orchestrator.WithLogger(logger), orchestrator.WithRateLimit(cfg.TurnRateRPS, cfg.TurnRateBurst))
	if err != nil {
		return fmt.Errorf("orchestrator setup: %w", err)
	}

	return repl(ctx, orch, led)
}

// buildLedger wires the in-memory chain with the configured sinks.
func buildLedger(cfg *config.Config) (*ledger.Ledger, func(), error) {
	var opts []ledger.Option
	closers := []func(){}

	if cfg.LedgerJSONLPath != "" {
		f, err := os.OpenFile(cfg.LedgerJSONLPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("ledger jsonl sink: %w", err)
		}
		opts = append(opts, ledger.WithSink(ledger.NewJSONLSink(f)))
		closers = append(closers, func() { _ = f.Close() })
	}
	if cfg.LedgerDBPath != "" {
		sink, err := ledger.OpenSQLiteSink(cfg.LedgerDBPath)
		if err != nil {
			return nil, nil, fmt.Errorf("ledger sqlite sink: %w", err)
		}
		opts = append(opts, ledger.WithSink(sink))
		closers = append(closers, func() { _ = sink.Close() })
	}

	closeAll := func() {
		for _, c := range closers {
			c()
		}
	}
	return ledger.New(opts...), closeAll, nil
}

// buildSwitchStore picks the kill-switch flag store from configuration.
func buildSwitchStore(cfg *config.Config) (killswitch.Store, func(), error) {
	switch cfg.KillSwitchBackend {
	case "sqlite":
		store, err := killswitch.OpenSQLiteStore(cfg.KillSwitchDBPath)
		if err != nil {
			return nil, nil, fmt.Errorf("kill-switch sqlite store: %w", err)
		}
		return store, func() { _ = store.Close() }, nil
	case "redis":
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		return killswitch.NewRedisStore(client), func() { _ = client.Close() }, nil
	default:
		return killswitch.NewMemoryStore(), func() {}, nil
	}
}

// logAlerter satisfies the out-of-band alert hook with a loud log line.
type logAlerter struct {
	logger *slog.Logger
}

func (a logAlerter) SwitchChanged(ctx context.Context, sw killswitch.Switch, activated bool) {
	a.logger.ErrorContext(ctx, "CRITICAL kill switch changed",
		"switch", sw.ID, "category", sw.Category, "activated", activated,
		"by", sw.ActivatedBy, "reason", sw.Reason)
}

// repl reads lines from stdin and prints each turn's flow steps.
func repl(ctx context.Context, orch *orchestrator.Orchestrator, led *ledger.Ledger) error {
	fmt.Println("concierge ready. Type a request, RESET to start over, or Ctrl-D to quit.")
	scanner := bufio.NewScanner(os.Stdin)
	turnCtx := orchestrator.Context{
		ActorID:  "local-operator",
		Role:     "operator",
		TenantID: "local",
		Channel:  "repl",
	}

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return nil
		default:
		}
		text := scanner.Text()
		if text == "" {
			continue
		}
		out, err := orch.Turn(ctx, "repl", orchestrator.TurnInput{Text: text, Context: turnCtx})
		if err != nil {
			fmt.Println("! ", err)
			continue
		}
		for _, step := range out.Flow {
			fmt.Println("  " + step.Summary())
		}
	}
	if err := led.Verify(); err != nil {
		return fmt.Errorf("audit chain verification on shutdown: %w", err)
	}
	fmt.Printf("bye (%d audit events, chain verified)\n", led.Len())
	return scanner.Err()
}
