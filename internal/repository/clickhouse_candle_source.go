package repository

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"time"

	"FinTrain/internal/domain/models"
	domrepo "FinTrain/internal/domain/repository"
	pkgch "FinTrain/pkg/clickhouse"
	applogger "FinTrain/pkg/logger"
)

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// CHCandleSource loads one symbol's candles from a ClickHouse candle table
// with columns bucket, symbol, open, high, low, close, vol.
type CHCandleSource struct {
	db     *sql.DB
	l      *applogger.Logger
	table  string
	symbol string
	tf     domrepo.Timeframe
	from   time.Time
	to     time.Time
}

var _ domrepo.CandleSource = (*CHCandleSource)(nil)

// CHSourceParams selects the rows to load. Zero From loads from the start.
type CHSourceParams struct {
	Database  string
	Table     string
	Symbol    string
	Timeframe domrepo.Timeframe
	From      time.Time
	To        time.Time
}

func NewCHCandleSource(ch *pkgch.Client, p CHSourceParams) (*CHCandleSource, error) {
	table := p.Table
	if p.Database != "" {
		table = p.Database + "." + p.Table
	}
	if !identRe.MatchString(table) {
		return nil, fmt.Errorf("invalid clickhouse table %q", table)
	}
	if p.Symbol == "" {
		return nil, fmt.Errorf("symbol required")
	}
	from, to := p.Timeframe.AlignRange(p.From, p.To)
	return &CHCandleSource{db: ch.DB(), table: table, symbol: p.Symbol, tf: p.Timeframe, from: from, to: to}, nil
}

// SetLogger injects a structured logger.
func (s *CHCandleSource) SetLogger(l *applogger.Logger) { s.l = l }

func (s *CHCandleSource) query() string {
	return fmt.Sprintf(`
        SELECT bucket, open, high, low, close, vol
        FROM %s
        WHERE symbol = ? AND bucket >= ? AND bucket <= ?
        ORDER BY bucket ASC
    `, s.table)
}

func (s *CHCandleSource) Load(ctx context.Context) (models.Series, error) {
	start := time.Now()
	fields := []applogger.Field{
		applogger.String("table", s.table),
		applogger.String("symbol", s.symbol),
		applogger.String("tf", string(s.tf)),
	}

	rows, err := s.db.QueryContext(ctx, s.query(), s.symbol, s.from, s.to)
	if err != nil {
		s.logError("clickhouse load_candles query error", err, fields)
		return models.Series{}, fmt.Errorf("load candles: %w", err)
	}
	defer rows.Close()

	out := make([]models.Candle, 0, 4096)
	for rows.Next() {
		var c models.Candle
		if err := rows.Scan(&c.Time, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume); err != nil {
			s.logError("clickhouse load_candles scan error", err, fields)
			return models.Series{}, fmt.Errorf("scan candle: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		s.logError("clickhouse load_candles rows error", err, fields)
		return models.Series{}, fmt.Errorf("rows: %w", err)
	}

	if s.l != nil {
		s.l.Info("clickhouse load_candles ok", append(fields,
			applogger.Int("rows", len(out)),
			applogger.Duration("duration_ms", time.Since(start)),
		)...)
	}
	return models.Series{Symbol: s.symbol, Candles: out}, nil
}

func (s *CHCandleSource) logError(msg string, err error, fields []applogger.Field) {
	if s.l != nil {
		s.l.Error(msg, append(fields, applogger.Error(err))...)
	}
}
