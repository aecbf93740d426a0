package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/finsight/fpagent/agent"
	charts "github.com/finsight/fpagent/chart"
	"github.com/finsight/fpagent/config"
	"github.com/finsight/fpagent/conversation"
	"github.com/finsight/fpagent/llm"
	"github.com/finsight/fpagent/metricstore"
	"github.com/finsight/fpagent/query"
	"github.com/finsight/fpagent/server"
	"github.com/finsight/fpagent/sheet"
	"github.com/finsight/fpagent/tools"
	chartexec "github.com/finsight/fpagent/tools/chart"
	"github.com/finsight/fpagent/tools/finance"
)

// app holds the wired subsystems for one command invocation. Optional
// subsystems (NATS, Postgres) degrade to fallbacks instead of failing
// startup.
type app struct {
	cfg    *config.Config
	logger *slog.Logger

	loader    *sheet.Loader
	engine    *query.Engine
	store     conversation.Store
	charts    charts.Storage
	metrics   *metricstore.Store
	natsConn  *nats.Conn
	memory    *conversation.MemoryStore
	registry  *tools.Registry
	analyst   *agent.Analyst
	promReg   *prometheus.Registry
	loopStats *server.Metrics
}

func loadConfig(configPath string, logger *slog.Logger) (*config.Config, error) {
	if configPath != "" {
		cfg, err := config.LoadFromFile(configPath)
		if err != nil {
			return nil, err
		}
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("invalid configuration: %w", err)
		}
		return cfg, nil
	}
	return config.NewLoader(logger).Load()
}

// setup wires every subsystem the commands share. Callers must call
// close when done.
func (a *app) setup(ctx context.Context) error {
	source := sheet.NewXLSXSource(a.cfg.Data.WorkbookPath)
	a.loader = sheet.NewLoader(source,
		sheet.WithLogger(a.logger),
		sheet.WithCacheTTL(a.cfg.Data.CacheTTL))
	a.engine = query.NewEngine(a.loader, query.WithLogger(a.logger))

	a.promReg = prometheus.NewRegistry()
	a.loopStats = server.NewMetrics(a.promReg)

	js := a.connectNATS(ctx)
	a.setupConversationStore(ctx, js)
	a.setupChartStorage(ctx, js)
	a.setupMetricsStore(ctx)
	a.setupAnalyst()
	return nil
}

func (a *app) close() {
	if a.memory != nil {
		a.memory.Close()
	}
	if a.metrics != nil {
		a.metrics.Close()
	}
	if a.natsConn != nil {
		a.natsConn.Close()
	}
}

// connectNATS returns a JetStream handle, or nil when NATS is not
// configured or unreachable.
func (a *app) connectNATS(ctx context.Context) jetstream.JetStream {
	if a.cfg.NATS.URL == "" {
		a.logger.Info("NATS not configured, using in-memory fallbacks")
		return nil
	}

	nc, err := nats.Connect(a.cfg.NATS.URL, nats.Name(appName), nats.MaxReconnects(-1))
	if err != nil {
		a.logger.Warn("NATS connection failed, using in-memory fallbacks",
			"url", a.cfg.NATS.URL, "error", err)
		return nil
	}

	js, err := jetstream.New(nc)
	if err != nil {
		a.logger.Warn("JetStream unavailable, using in-memory fallbacks", "error", err)
		nc.Close()
		return nil
	}

	a.natsConn = nc
	a.logger.Info("Connected to NATS", "url", a.cfg.NATS.URL)
	return js
}

func (a *app) setupConversationStore(ctx context.Context, js jetstream.JetStream) {
	if js != nil {
		store, err := conversation.NewNATSStore(ctx, js, a.cfg.Conversation.TTL)
		if err == nil {
			a.store = store
			return
		}
		a.logger.Warn("NATS conversation store unavailable, falling back to memory", "error", err)
	}
	a.memory = conversation.NewMemoryStore(a.cfg.Conversation.TTL)
	a.store = a.memory
}

func (a *app) setupChartStorage(ctx context.Context, js jetstream.JetStream) {
	if js == nil {
		return
	}
	storage, err := charts.NewObjectStorage(ctx, js, charts.DefaultTTL)
	if err != nil {
		a.logger.Warn("chart storage unavailable, charts will link to the render service", "error", err)
		return
	}
	a.charts = storage
}

func (a *app) setupMetricsStore(ctx context.Context) {
	databaseURL := a.cfg.DatabaseURL()
	if databaseURL == "" {
		a.logger.Info("no database configured, metrics store disabled")
		return
	}
	store, err := metricstore.New(ctx, databaseURL, a.loader, metricstore.WithLogger(a.logger))
	if err != nil {
		a.logger.Warn("metrics store unavailable", "error", err)
		return
	}
	a.metrics = store
}

func (a *app) setupAnalyst() {
	a.registry = tools.NewRegistry(tools.WithLogger(a.logger))
	a.registry.Register(tools.NewInstrumentedExecutor(finance.NewExecutor(a.engine), a.promReg))

	chartOpts := []chartexec.Option{chartexec.WithLogger(a.logger)}
	if a.charts != nil {
		chartOpts = append(chartOpts, chartexec.WithStorage(a.charts, a.cfg.Server.PublicBaseURL))
	}
	a.registry.Register(tools.NewInstrumentedExecutor(chartexec.NewExecutor(chartOpts...), a.promReg))

	client := llm.NewClient(llm.Endpoint{
		Provider: a.cfg.Model.Provider,
		BaseURL:  a.cfg.Model.BaseURL,
		Model:    a.cfg.Model.Name,
	}, llm.WithLogger(a.logger))

	opts := []agent.Option{
		agent.WithLogger(a.logger),
		agent.WithMaxIterations(a.cfg.Agent.MaxIterations),
		agent.WithMaxTokens(a.cfg.Model.MaxTokens),
	}
	if a.cfg.Model.Temperature > 0 {
		opts = append(opts, agent.WithTemperature(a.cfg.Model.Temperature))
	}
	a.analyst = agent.NewAnalyst(client, a.registry, a.store, opts...)
}

// answer runs one question through the loop and records the outcome.
func (a *app) answer(ctx context.Context, conversationKey, question string) (string, error) {
	result, err := a.analyst.Answer(ctx, conversationKey, question)
	switch {
	case err == nil:
		a.loopStats.Record(server.OutcomeAnswer)
		return result.Text, nil
	case errors.Is(err, agent.ErrTooManyIterations):
		a.loopStats.Record(server.OutcomeTooLong)
	default:
		a.loopStats.Record(server.OutcomeError)
	}
	return "", err
}

func serveCmd(newApp func() (*app, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server and the scheduled metrics refresh",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			if err := a.setup(ctx); err != nil {
				return err
			}
			defer a.close()

			// Invalidate the record cache when the workbook changes.
			stopWatch, err := sheet.Watch(a.cfg.Data.WorkbookPath, a.loader, a.logger)
			if err != nil {
				a.logger.Warn("workbook watch unavailable, relying on cache TTL", "error", err)
			} else {
				defer func() { _ = stopWatch() }()
			}

			var scheduler *cron.Cron
			if a.metrics != nil && a.cfg.Database.RefreshSchedule != "" {
				scheduler = cron.New()
				_, err := scheduler.AddFunc(a.cfg.Database.RefreshSchedule, func() {
					refreshCtx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
					defer cancel()
					if err := a.metrics.RefreshAll(refreshCtx); err != nil {
						a.logger.Error("scheduled metrics refresh failed", "error", err)
					}
				})
				if err != nil {
					return fmt.Errorf("schedule metrics refresh: %w", err)
				}
				scheduler.Start()
				defer scheduler.Stop()
				a.logger.Info("metrics refresh scheduled", "schedule", a.cfg.Database.RefreshSchedule)
			}

			srv := server.New(a.cfg.Server.Addr, a.serverOptions()...)
			return srv.Run(ctx)
		},
	}
}

// serverOptions assembles the health checks from whatever subsystems
// came up.
func (a *app) serverOptions() []server.Option {
	opts := []server.Option{
		server.WithLogger(a.logger),
		server.WithRegistry(a.promReg),
		server.WithComponent("model", func(context.Context) string {
			return modelStatus(a.cfg.Model.Provider)
		}),
		server.WithComponent("data", func(context.Context) string {
			if _, err := os.Stat(a.cfg.Data.WorkbookPath); err != nil {
				return fmt.Sprintf("workbook missing: %s", a.cfg.Data.WorkbookPath)
			}
			return "ok"
		}),
		server.WithComponent("conversation_store", func(context.Context) string {
			if a.memory != nil {
				return "memory"
			}
			return "nats"
		}),
		server.WithComponent("chart_storage", func(context.Context) string {
			if a.charts == nil {
				return "disabled"
			}
			return "nats"
		}),
		server.WithComponent("metrics_store", func(context.Context) string {
			if a.metrics == nil {
				return "disabled"
			}
			return "ok"
		}),
	}
	if a.charts != nil {
		opts = append(opts, server.WithChartStorage(a.charts))
	}
	if a.metrics != nil {
		opts = append(opts, server.WithLastRefresh(a.metrics.LastRefreshTime))
	}
	return opts
}

// modelStatus reports whether the credentials the provider needs are
// present.
func modelStatus(provider string) string {
	var envVar string
	switch provider {
	case "anthropic":
		envVar = "ANTHROPIC_API_KEY"
	case "openai", "openrouter":
		envVar = "OPENAI_API_KEY"
	default:
		return "ok"
	}
	if os.Getenv(envVar) == "" {
		return fmt.Sprintf("missing %s", envVar)
	}
	return "ok"
}

func askCmd(newApp func() (*app, error)) *cobra.Command {
	var conversationKey string

	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask one question from the command line",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			if err := a.setup(ctx); err != nil {
				return err
			}
			defer a.close()

			text, err := a.answer(ctx, conversationKey, strings.Join(args, " "))
			if err != nil {
				a.logger.Error("analysis failed", "error", err)
				fmt.Println(agent.UserMessage(err))
				return nil
			}

			fmt.Println(text)
			return nil
		},
	}

	cmd.Flags().StringVar(&conversationKey, "conversation", "cli", "Conversation key for follow-up context")
	return cmd
}

func refreshMetricsCmd(newApp func() (*app, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh-metrics",
		Short: "Recompute and store headline metrics once",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			if err := a.setup(ctx); err != nil {
				return err
			}
			defer a.close()

			if a.metrics == nil {
				return fmt.Errorf("metrics store not configured: set %s", a.cfg.Database.URLEnv)
			}

			if err := a.metrics.RefreshAll(ctx); err != nil {
				return err
			}
			fmt.Println("Metrics refreshed.")
			return nil
		},
	}
}

func sourcesCmd(newApp func() (*app, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "sources",
		Short: "List workbook sheets with a matching schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			if err := a.setup(ctx); err != nil {
				return err
			}
			defer a.close()

			names, err := a.loader.ListSources(ctx)
			if err != nil {
				return err
			}
			for _, name := range names {
				fmt.Println(name)
			}
			return nil
		},
	}
}
