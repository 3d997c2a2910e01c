package server

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/Noderrxyz/Old-Trading-Bot-sub006/internal/feed"
	"github.com/Noderrxyz/Old-Trading-Bot-sub006/internal/usecase"
	pkgch "github.com/Noderrxyz/Old-Trading-Bot-sub006/pkg/clickhouse"
	"github.com/Noderrxyz/Old-Trading-Bot-sub006/pkg/config"
	xhttp "github.com/Noderrxyz/Old-Trading-Bot-sub006/pkg/http"
	pkgkafka "github.com/Noderrxyz/Old-Trading-Bot-sub006/pkg/kafka"
	applogger "github.com/Noderrxyz/Old-Trading-Bot-sub006/pkg/logger"
	"github.com/Noderrxyz/Old-Trading-Bot-sub006/pkg/queue"
)

// App encapsulates the entire application lifecycle.
type App struct {
	cfg          *config.Config
	l            *applogger.Logger
	factory      *feed.Factory
	collector    *usecase.FeedCollector
	consumer     *pkgkafka.Consumer
	kh           pkgkafka.MessageHandler
	chClient     *pkgch.Client
	anomalyQueue *queue.RedisQueue
	httpServer   *xhttp.Server
	httpHandler  xhttp.Handler
	TickProc     *usecase.TickProcessor
}

// New creates a new App instance with all dependencies.
func New(
	cfg *config.Config,
	l *applogger.Logger,
	factory *feed.Factory,
	collector *usecase.FeedCollector,
	consumer *pkgkafka.Consumer,
	kh pkgkafka.MessageHandler,
	chClient *pkgch.Client,
) *App {
	return &App{
		cfg:       cfg,
		l:         l,
		factory:   factory,
		collector: collector,
		consumer:  consumer,
		kh:        kh,
		chClient:  chClient,
	}
}

// SetHTTPHandler allows DI to inject an HTTP handler.
func (a *App) SetHTTPHandler(h xhttp.Handler) { a.httpHandler = h }

// SetAnomalyQueue attaches the optional Redis-backed anomaly injection
// queue consumer.
func (a *App) SetAnomalyQueue(q *queue.RedisQueue) { a.anomalyQueue = q }

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	l := a.l
	if l == nil {
		l, _ = applogger.New(&applogger.Config{Level: "info", Format: "console", Output: "stdout"})
		a.l = l
	}

	a.httpServer = xhttp.NewServer(a.httpHandler,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
	)

	// Start the default feed collector: simulation feed -> pipeline -> backend.
	if a.collector != nil {
		go func() {
			if err := a.collector.Start(ctx); err != nil {
				l.Error("collector error", applogger.Error(err))
			}
		}()
		l.Info("collector started",
			applogger.Strings("symbols", a.cfg.Simulation.Symbols),
			applogger.String("backend", a.cfg.Backend.Type),
		)
	}

	// Start consumer if configured
	if a.consumer != nil && a.kh != nil {
		a.consumer.RegisterHandler(a.kh)
		go func() {
			if err := a.consumer.Start(); err != nil {
				l.Error("kafka consumer error", applogger.Error(err))
			}
		}()
		l.Info("kafka consumer started", applogger.String("topic", a.kh.Topic()))
	}

	// Start queued anomaly injection if Redis is configured
	if a.anomalyQueue != nil {
		if err := a.anomalyQueue.Start(); err != nil {
			l.Warn("anomaly queue start error", applogger.Error(err))
		} else {
			a.anomalyQueue.StartRetryProcessor()
			l.Info("anomaly queue consumer started")
		}
	}

	// Start HTTP server
	if err := a.httpServer.Start(); err != nil {
		l.Error("http server start error", applogger.Error(err))
		return err
	}
	l.Info("http server started", applogger.Int("port", a.cfg.Server.Port))

	// Wait for interrupt
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	l.Info("shutdown signal received")
	return a.shutdown(ctx)
}

// shutdown gracefully stops all services.
func (a *App) shutdown(ctx context.Context) error {
	l := a.l
	if l == nil {
		var err error
		l, err = applogger.New(&applogger.Config{Level: "info", Format: "console", Output: "stdout"})
		if err != nil {
			log.Printf("failed to create logger: %v", err)
			return err
		}
	}
	l.Info("shutting down...")

	// Stop collector (pipeline + stream)
	if a.collector != nil {
		if err := a.collector.Shutdown(ctx); err != nil {
			l.Warn("collector stop error", applogger.Error(err))
		}
	}

	// Shutdown HTTP server
	shutdownCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if a.httpServer != nil {
		if err := a.httpServer.Stop(shutdownCtx); err != nil {
			l.Error("http shutdown error", applogger.Error(err))
		}
	}

	// Stop queue consumer
	if a.anomalyQueue != nil {
		if err := a.anomalyQueue.Stop(shutdownCtx); err != nil {
			l.Warn("anomaly queue stop error", applogger.Error(err))
		}
	}

	// Stop consumer
	if a.consumer != nil {
		if err := a.consumer.Stop(ctx); err != nil {
			l.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}

	// Tear down every live feed; tolerates individual failures.
	if a.factory != nil {
		if err := a.factory.Cleanup(shutdownCtx); err != nil {
			l.Warn("feed cleanup error", applogger.Error(err))
		}
	}

	// Close infrastructure clients
	if a.chClient != nil {
		if err := a.chClient.Close(); err != nil {
			l.Warn("clickhouse close error", applogger.Error(err))
		}
	}

	// Close tick processor resources (publisher/storage)
	if a.TickProc != nil {
		a.TickProc.Close()
	}

	l.Info("shutdown complete")
	return nil
}
