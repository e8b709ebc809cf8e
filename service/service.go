package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/rs/zerolog/pkgerrors"

	"github.com/mfriis/spotwatch/database"
	"github.com/mfriis/spotwatch/fetch"
	"github.com/mfriis/spotwatch/market"
	"github.com/mfriis/spotwatch/position"
	"github.com/mfriis/spotwatch/trade"
)

// Default poll intervals for the service cycles.
const (
	defaultPositionsInterval  = time.Minute * 5
	defaultQuotesInterval     = time.Minute
	defaultSpotInterval       = time.Minute
	defaultIndicatorsInterval = time.Minute * 2
	defaultTradesInterval     = time.Second * 30
)

// ServiceConfig represents the configuration struct for the spotwatch service.
type ServiceConfig struct {
	// AccountIDs represents the brokerage accounts to sync positions for.
	AccountIDs []string
	// LiveToken is the brokerage live API token used for market data.
	LiveToken string
	// SandboxToken is the brokerage sandbox API token used for account data.
	SandboxToken string
	// DatabaseEndpoint represents the row store connection endpoint.
	DatabaseEndpoint string
	// DatabaseUser is the row store user.
	DatabaseUser string
	// DatabasePass is the row store user pass.
	DatabasePass string
	// PositionsInterval is the poll interval for position syncs.
	PositionsInterval time.Duration
	// QuotesInterval is the poll interval for position quote refreshes.
	QuotesInterval time.Duration
	// SpotInterval is the poll interval for spot price updates.
	SpotInterval time.Duration
	// IndicatorsInterval is the poll interval for indicator cycles.
	IndicatorsInterval time.Duration
	// TradesInterval is the poll interval for trade imports.
	TradesInterval time.Duration
}

// Validate asserts the config sane inputs.
func (cfg *ServiceConfig) Validate() error {
	var errs error

	if len(cfg.AccountIDs) == 0 {
		errs = errors.Join(errs, fmt.Errorf("no accounts provided for spotwatch service"))
	}
	if cfg.LiveToken == "" {
		errs = errors.Join(errs, fmt.Errorf("live api token cannot be an empty string"))
	}
	if cfg.SandboxToken == "" {
		errs = errors.Join(errs, fmt.Errorf("sandbox api token cannot be an empty string"))
	}
	if cfg.DatabaseEndpoint == "" {
		errs = errors.Join(errs, fmt.Errorf("database endpoint cannot be an empty string"))
	}

	return errs
}

// setDefaults fills unset poll intervals with their defaults.
func (cfg *ServiceConfig) setDefaults() {
	if cfg.PositionsInterval == 0 {
		cfg.PositionsInterval = defaultPositionsInterval
	}
	if cfg.QuotesInterval == 0 {
		cfg.QuotesInterval = defaultQuotesInterval
	}
	if cfg.SpotInterval == 0 {
		cfg.SpotInterval = defaultSpotInterval
	}
	if cfg.IndicatorsInterval == 0 {
		cfg.IndicatorsInterval = defaultIndicatorsInterval
	}
	if cfg.TradesInterval == 0 {
		cfg.TradesInterval = defaultTradesInterval
	}
}

// Service represents the spotwatch polling service.
type Service struct {
	cfg             *ServiceConfig
	scheduler       gocron.Scheduler
	positionManager *position.Manager
	marketManager   *market.Manager
	tradeManager    *trade.Manager
	logger          *zerolog.Logger
}

// NewService initializes a new spotwatch service.
func NewService(ctx context.Context, cfg *ServiceConfig) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.setDefaults()

	zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack

	logger := log.With().Str("service", "spotwatch").Logger()

	tradier, err := fetch.NewTradierClient(&fetch.TradierConfig{
		LiveToken:      cfg.LiveToken,
		SandboxToken:   cfg.SandboxToken,
		LiveBaseURL:    fetch.LiveBaseURL,
		SandboxBaseURL: fetch.SandboxBaseURL,
	})
	if err != nil {
		return nil, fmt.Errorf("creating brokerage client: %w", err)
	}

	candles, err := fetch.NewCandleClient(&fetch.CandleConfig{BaseURL: fetch.ChartBaseURL})
	if err != nil {
		return nil, fmt.Errorf("creating candle client: %w", err)
	}

	dbLogger := logger.With().Str("component", "database").Logger()
	db, err := database.NewDatabase(ctx, &database.DatabaseConfig{
		Endpoint: cfg.DatabaseEndpoint,
		User:     cfg.DatabaseUser,
		Pass:     cfg.DatabasePass,
		Logger:   &dbLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating database: %w", err)
	}

	positionMgr, err := position.NewManager(&position.ManagerConfig{
		AccountIDs: cfg.AccountIDs,
		Positions:  tradier,
		Quotes:     tradier,
		Store:      db,
		Logger:     &logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating position manager: %w", err)
	}

	marketMgr, err := market.NewManager(&market.ManagerConfig{
		Quotes:  tradier,
		Candles: candles,
		Store:   db,
		Logger:  &logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating market manager: %w", err)
	}

	tradeMgr, err := trade.NewManager(&trade.ManagerConfig{
		Quotes: tradier,
		Chain:  tradier,
		Store:  db,
		Logger: &logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating trade manager: %w", err)
	}

	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("creating job scheduler: %w", err)
	}

	return &Service{
		cfg:             cfg,
		scheduler:       scheduler,
		positionManager: positionMgr,
		marketManager:   marketMgr,
		tradeManager:    tradeMgr,
		logger:          &logger,
	}, nil
}

// scheduleCycle registers a self-pacing poll job. Singleton mode with
// rescheduling ensures an overrunning cycle is never run concurrently with
// itself, the next run simply waits for the next tick.
func (s *Service) scheduleCycle(ctx context.Context, name string, interval time.Duration,
	cycle func(ctx context.Context) error) error {
	_, err := s.scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			if err := cycle(ctx); err != nil {
				s.logger.Error().Err(err).Str("cycle", name).Msg("cycle failed")
			}
		}),
		gocron.WithName(name),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		return fmt.Errorf("scheduling %s cycle: %w", name, err)
	}

	return nil
}

// Run handles the lifecycle processes of the spotwatch service.
func (s *Service) Run(ctx context.Context) error {
	cycles := []struct {
		name     string
		interval time.Duration
		cycle    func(ctx context.Context) error
	}{
		{"positions", s.cfg.PositionsInterval, s.positionManager.SyncPositions},
		{"quotes", s.cfg.QuotesInterval, s.positionManager.RefreshQuotes},
		{"spot", s.cfg.SpotInterval, s.marketManager.UpdateSpotPrices},
		{"indicators", s.cfg.IndicatorsInterval, s.marketManager.ComputeIndicators},
		{"trades", s.cfg.TradesInterval, s.tradeManager.Import},
	}

	for _, c := range cycles {
		if err := s.scheduleCycle(ctx, c.name, c.interval, c.cycle); err != nil {
			return err
		}
	}

	s.scheduler.Start()
	s.logger.Info().Msgf("spotwatch running %d poll cycle(s)", len(cycles))

	<-ctx.Done()

	if err := s.scheduler.Shutdown(); err != nil {
		return fmt.Errorf("shutting down job scheduler: %w", err)
	}

	return nil
}
