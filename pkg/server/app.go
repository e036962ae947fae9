package server

import (
	"context"

	"FinTrain/internal/usecase"
	"FinTrain/pkg/config"
	xhttp "FinTrain/pkg/http"
	applogger "FinTrain/pkg/logger"
)

// App encapsulates one training run and the optional observability server
// that lives alongside it.
type App struct {
	cfg        *config.Config
	l          *applogger.Logger
	trainer    *usecase.Trainer
	httpServer *xhttp.Server
	hub        *xhttp.Hub
}

// New creates a new App instance with all dependencies.
func New(
	cfg *config.Config,
	l *applogger.Logger,
	trainer *usecase.Trainer,
	httpServer *xhttp.Server,
	hub *xhttp.Hub,
) *App {
	return &App{cfg: cfg, l: l, trainer: trainer, httpServer: httpServer, hub: hub}
}

// Run trains until the run finishes or ctx is cancelled, then shuts the
// server down. The returned error is the run's failure, if any.
func (a *App) Run(ctx context.Context) error {
	hubCtx, stopHub := context.WithCancel(context.Background())
	hubDone := make(chan struct{})
	go func() {
		defer close(hubDone)
		a.hub.Run(hubCtx)
	}()
	defer func() {
		stopHub()
		<-hubDone
	}()

	if a.cfg.Server.Enabled {
		if err := a.httpServer.Start(); err != nil {
			return err
		}
		defer a.shutdown()
		go func() {
			select {
			case err := <-a.httpServer.Err():
				a.l.Error("observability server stopped, training continues", applogger.Error(err))
			case <-hubCtx.Done():
			}
		}()
	}

	res, err := a.trainer.Run(ctx)
	if err != nil {
		return err
	}
	a.l.Info("run complete",
		applogger.String("run_id", res.RunID),
		applogger.Int("epochs", len(res.History)),
		applogger.Duration("duration", res.Duration),
	)
	return nil
}

func (a *App) shutdown() {
	a.l.Info("shutting down...")
	if err := a.httpServer.Stop(context.Background()); err != nil {
		a.l.Error("http shutdown error", applogger.Error(err))
	}
}
