package commands

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/superfly/fsm"

	"github.com/kadimisettimanoharreddy/conversacloud/internal/config"
	"github.com/kadimisettimanoharreddy/conversacloud/pkg/db"
	"github.com/kadimisettimanoharreddy/conversacloud/pkg/deploy"
	"github.com/kadimisettimanoharreddy/conversacloud/pkg/dispatch"
	"github.com/kadimisettimanoharreddy/conversacloud/pkg/errors"
	"github.com/kadimisettimanoharreddy/conversacloud/pkg/gitops"
	"github.com/kadimisettimanoharreddy/conversacloud/pkg/notify"
	"github.com/kadimisettimanoharreddy/conversacloud/pkg/tfvars"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run the delivery worker: FSM deliveries, callbacks, and metrics",
	RunE:  runWorker,
}

func init() {
	rootCmd.AddCommand(workerCmd)
}

func runWorker(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return errors.Wrap(err, "config load failed")
	}
	if err := cfg.Validate(); err != nil {
		return errors.Wrap(err, "config invalid")
	}

	if err := ensureDirectories(cfg.SQLitePath, cfg.FSMDBPath, cfg.WorkDir); err != nil {
		return err
	}

	repo, err := db.NewRepository(cfg.SQLitePath)
	if err != nil {
		return errors.Wrap(err, "db init failed")
	}
	defer repo.Close()

	manager, err := fsm.New(fsm.Config{DBPath: cfg.FSMDBPath})
	if err != nil {
		return errors.Wrap(err, "FSM manager failed")
	}
	defer manager.Shutdown(10 * time.Second)

	generator := tfvars.NewGenerator(cfg.WorkDir)
	publisher := gitops.NewPublisher(generator, cfg.GitHubToken, cfg.RepoOwner, cfg.RepoName, cfg.BaseBranch, cfg.GitTimeout)

	hub := notify.NewHub()
	events := notify.NewEventPublisher(cfg.EventWebhookURL, cfg.APIToken)
	notifier := notify.NewNotifier(repo, hub, events)

	machine := deploy.NewMachine(repo, generator, publisher, notifier, cfg.FSMMaxRetries)
	start, _, err := machine.Register(ctx, manager)
	if err != nil {
		return errors.Wrap(err, "FSM register failed")
	}
	queue := deploy.NewQueue(start)

	// The sweep re-enqueues requests that already passed the policy gate, so
	// the worker's dispatcher skips the guard.
	dispatcher := dispatch.NewDispatcher(repo, queue, nil, cfg.CloudProvider)

	callbacks := dispatch.NewCallbackService(repo, notifier, cfg.APIToken)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/api/v1/callbacks/", callbacks.Handler())

	server := &http.Server{Addr: cfg.MetricsAddr, Handler: mux}
	go func() {
		slog.Info("worker_http_listening", "addr", cfg.MetricsAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("worker_http_failed", "error", err)
		}
	}()

	// Requests stuck pending (a crash between persist and enqueue, or a lost
	// FSM database) are re-enqueued on an interval.
	go func() {
		ticker := time.NewTicker(cfg.SweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				count, err := dispatcher.Sweep(ctx, cfg.SweepAge)
				if err != nil {
					slog.Error("sweep_failed", "error", err)
					continue
				}
				if count > 0 {
					slog.Info("sweep_requeued", "count", count)
				}
			}
		}
	}()

	slog.Info("worker_started", "sweep_interval", cfg.SweepInterval, "sweep_age", cfg.SweepAge)

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs

	slog.Info("worker_stopping")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Warn("worker_http_shutdown_failed", "error", err)
	}

	return nil
}
