package server

import (
	"context"
	"net"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FinTrain/internal/domain/errs"
	"FinTrain/internal/domain/models"
	"FinTrain/internal/usecase"
	"FinTrain/pkg/config"
	xhttp "FinTrain/pkg/http"
	applogger "FinTrain/pkg/logger"
	"FinTrain/pkg/metrics"
)

type failingSource struct{}

func (failingSource) Load(context.Context) (models.Series, error) {
	return models.Series{}, errs.DataQuality("read csv", 0, "empty file")
}

type discard struct{}

func (discard) Emit(context.Context, models.ProgressEvent) error { return nil }

func TestApp_RunReturnsTrainingFailureAndStopsServer(t *testing.T) {
	cfg, err := config.Default()
	require.NoError(t, err)
	cfg.Server.Enabled = true

	reg := prometheus.NewRegistry()
	l := applogger.Nop()
	srv := xhttp.NewServer(l, nil, xhttp.WithHost("127.0.0.1"), xhttp.WithPort(0), xhttp.WithMetrics("/metrics", reg, reg))
	trainer := usecase.NewTrainer(failingSource{}, discard{}, metrics.New(reg), l, cfg.Training)

	app := New(cfg, l, trainer, srv, xhttp.NewHub(l))
	err = app.Run(context.Background())
	require.ErrorIs(t, err, errs.ErrDataQuality)

	addr := srv.Addr()
	require.NotEmpty(t, addr)
	_, err = net.Dial("tcp", addr)
	assert.Error(t, err)
}
