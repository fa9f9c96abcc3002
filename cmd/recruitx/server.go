package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/net/netutil"
	"golang.org/x/sync/errgroup"

	"github.com/recruitx/recruitx/internal/api"
	"github.com/recruitx/recruitx/internal/config"
	"github.com/recruitx/recruitx/internal/dialogue"
	"github.com/recruitx/recruitx/internal/interview"
	"github.com/recruitx/recruitx/internal/llm"
	"github.com/recruitx/recruitx/internal/notify"
	"github.com/recruitx/recruitx/internal/observability"
	"github.com/recruitx/recruitx/internal/questions"
	"github.com/recruitx/recruitx/internal/scheduler"
	"github.com/recruitx/recruitx/internal/storage"
	"github.com/recruitx/recruitx/internal/telephony"
	"github.com/recruitx/recruitx/internal/twiml"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the interview server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		withMCP, _ := cmd.Flags().GetBool("mcp")
		return runServer(withMCP)
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running recruitx server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return stopServer()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show recruitx system status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus()
	},
}

func init() {
	serveCmd.Flags().Bool("mcp", false, "also serve MCP tools over stdio")
}

func pidFilePath(dataDir string) string {
	return filepath.Join(dataDir, "recruitx.pid")
}

func writePIDFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644)
}

func readPIDFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

func removePIDFile(path string) {
	os.Remove(path)
}

// openStore opens the configured database and applies pending migrations.
func openStore(ctx context.Context, cfg config.Config) (*storage.Store, error) {
	if cfg.Storage.Driver == "postgres" {
		return storage.OpenPostgres(ctx, cfg.Storage.DSN, cfg.Storage.MaxOpenConns)
	}
	return storage.Open(cfg.Storage.DataDir)
}

func questionProvider(cfg config.Config, client *llm.Client) (questions.Provider, error) {
	if cfg.Questions.Provider == "static" {
		return questions.LoadStaticProvider(cfg.Questions.BankPath)
	}
	return questions.NewLLMProvider(client), nil
}

func twimlVoice(cfg config.Config) twiml.Voice {
	return twiml.Voice{Name: cfg.Voice.Name, Language: cfg.Voice.Language}
}

func runServer(withMCP bool) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.ValidateServe(); err != nil {
		return err
	}

	logger := observability.NewLogger(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(logger)
	logger.Info("recruitx starting", "version", version)

	apiToken, err := config.APIToken(cfg)
	if err != nil {
		return fmt.Errorf("initializing API token: %w", err)
	}

	// Refuse to start twice against the same data dir and port.
	pidPath := pidFilePath(cfg.Storage.DataDir)
	healthClient := &http.Client{Timeout: 2 * time.Second}
	if resp, err := healthClient.Get(localURL(cfg) + "/health"); err == nil {
		resp.Body.Close()
		if pid, pidErr := readPIDFile(pidPath); pidErr == nil {
			printWarning("recruitx is already running (PID %d)", pid)
			return fmt.Errorf("server already running (PID %d)", pid)
		}
		printWarning("recruitx is already running on port %d", cfg.Server.Port)
		return fmt.Errorf("server already running on port %d", cfg.Server.Port)
	}
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	defer removePIDFile(pidPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Warn("closing storage", "error", err)
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.NewMetrics(reg)

	llmClient := llm.NewClient(llm.Options{
		APIKey:  cfg.Secrets.GroqAPIKey,
		BaseURL: cfg.LLM.BaseURL,
		Model:   cfg.LLM.Model,
		Timeout: cfg.LLM.Timeout,
	})
	provider, err := questionProvider(cfg, llmClient)
	if err != nil {
		return fmt.Errorf("loading question bank: %w", err)
	}
	bank := questions.NewBank(store, provider, cfg.LLM.QuestionCount, logger)

	dialer, err := telephony.NewTwilio(telephony.Options{
		AccountSID:    cfg.Secrets.TwilioAccountSID,
		AuthToken:     cfg.Secrets.TwilioAuthToken,
		FromNumber:    cfg.Twilio.FromNumber,
		PublicBaseURL: cfg.Server.PublicBaseURL,
		Timeout:       cfg.Twilio.Timeout,
	}, logger)
	if err != nil {
		return fmt.Errorf("configuring twilio: %w", err)
	}

	synthOpts := []interview.SynthesizerOption{interview.WithSynthesizerMetrics(metrics)}
	if cfg.Notify.SlackWebhookURL != "" {
		synthOpts = append(synthOpts, interview.WithNotifier(notify.NewSlack(cfg.Notify.SlackWebhookURL, logger)))
	}
	synth := interview.NewSynthesizer(store, llmClient, logger, synthOpts...)
	svc := interview.NewService(store, bank, dialer, synth, metrics, logger)
	engine := dialogue.NewEngine(store, bank, synth, dialogue.Config{
		PublicBaseURL: cfg.Server.PublicBaseURL,
		GatherTimeout: cfg.Voice.GatherTimeout,
	}, metrics, logger)

	var verify func(http.Handler) http.Handler
	if cfg.Twilio.ValidateSignatures {
		verify = telephony.NewSignatureValidator(cfg.Secrets.TwilioAuthToken, cfg.Server.PublicBaseURL, logger).Middleware
	} else {
		logger.Warn("twilio signature validation disabled")
	}

	handler := api.NewRouter(api.RouterDeps{
		Webhooks: api.WebhookDeps{
			Engine:  engine,
			Voice:   twimlVoice(cfg),
			Metrics: metrics,
			Logger:  logger,
			Verify:  verify,
		},
		Management:     api.ManagementDeps{Service: svc, Token: apiToken},
		Metrics:        metrics,
		MetricsHandler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	})

	var sched *scheduler.Scheduler
	if cfg.Scheduler.Enabled {
		sched, err = scheduler.New(store, svc, scheduler.Config{
			Spec:       cfg.Scheduler.Spec,
			StaleAfter: cfg.Scheduler.StaleAfter,
		}, logger)
		if err != nil {
			return err
		}
	}

	addr := net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	ln = netutil.LimitListener(ln, cfg.Server.MaxConnections)

	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("recruitx listening", "addr", addr, "public_base_url", cfg.Server.PublicBaseURL)
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if sched != nil {
		g.Go(func() error { return sched.Run(gctx) })
	}

	if withMCP {
		stdioSrv := server.NewStdioServer(api.NewMCPServer(api.MCPDeps{Service: svc}))
		g.Go(func() error {
			if err := stdioSrv.Listen(gctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("MCP stdio server error", "error", err)
			}
			return nil
		})
		logger.Info("MCP server started (stdio transport)")
	}

	return g.Wait()
}

func stopServer() error {
	cfg, err := config.Load()
	if err != nil {
		printError("could not load config: %v", err)
		return err
	}

	pidPath := pidFilePath(cfg.Storage.DataDir)
	pid, err := readPIDFile(pidPath)
	if err != nil {
		printError("recruitx is not running (no PID file)")
		return fmt.Errorf("not running: %w", err)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		printError("could not find process %d", pid)
		return err
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		printError("could not stop recruitx (PID %d): %v", pid, err)
		removePIDFile(pidPath)
		return err
	}

	printSuccess("Sent stop signal to recruitx (PID %d)", pid)
	return nil
}

func showStatus() error {
	cfg, err := config.Load()
	if err != nil {
		printError("config error: %v", err)
		return nil
	}

	client := &http.Client{Timeout: 2 * time.Second}
	running := false
	resp, err := client.Get(localURL(cfg) + "/health")
	if err != nil {
		printStatus("Server", "stopped")
	} else {
		resp.Body.Close()
		if resp.StatusCode == http.StatusOK {
			running = true
			printStatus("Server", "running on port %d", cfg.Server.Port)
		} else {
			printStatus("Server", "error (HTTP %d)", resp.StatusCode)
		}
	}

	printStatus("Public URL", "%s", orUnset(cfg.Server.PublicBaseURL))
	printStatus("Storage", "%s", cfg.Storage.Driver)
	printStatus("Model", "%s", cfg.LLM.Model)
	printStatus("Questions", "%s", cfg.Questions.Provider)
	printStatus("Scheduler", "%s", enabledLabel(cfg.Scheduler.Enabled, cfg.Scheduler.Spec))
	if err := cfg.ValidateServe(); err != nil {
		printWarning("serve is not fully configured:\n%v", err)
	}

	if running {
		c, err := newAPIClient()
		if err == nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if resp, err := c.get(ctx, "/reports/summary"); err == nil {
				var sum struct {
					TotalReports int     `json:"total_reports"`
					AverageScore float64 `json:"average_score"`
				}
				if decodeJSON(resp, &sum) == nil {
					printStatus("Reports", "%d (average score %.1f)", sum.TotalReports, sum.AverageScore)
				}
			}
		}
	}

	printStatus("Data dir", "%s", cfg.Storage.DataDir)
	return nil
}

func orUnset(s string) string {
	if s == "" {
		return "(unset)"
	}
	return s
}

func enabledLabel(enabled bool, spec string) string {
	if !enabled {
		return "disabled"
	}
	return "enabled (" + spec + ")"
}
