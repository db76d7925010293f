package main

import (
	"context"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/creastat/voicedesk/catalog"
	"github.com/creastat/voicedesk/config"
	"github.com/creastat/voicedesk/dialogue"
	"github.com/creastat/voicedesk/locale"
	"github.com/creastat/voicedesk/logging"
	"github.com/creastat/voicedesk/notify"
	"github.com/creastat/voicedesk/planner"
	"github.com/creastat/voicedesk/session"
	"github.com/creastat/voicedesk/supabase"
)

// app holds every long-lived component of a running line.
type app struct {
	cfg        *config.Config
	logger     zerolog.Logger
	redis      *redis.Client
	supabase   *supabase.Client
	business   *catalog.Business
	locales    *locale.Set
	sessions   *session.Manager
	transport  *notify.Transport
	dispatcher *notify.Dispatcher
	router     *message.Router
	desk       *dialogue.Orchestrator
}

// newApp wires the line from cfg. Redis and Supabase are only used when
// configured; without Redis the notification bus runs in process.
func newApp(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger}
	ok := false
	defer func() {
		if !ok {
			a.close()
		}
	}()

	if cfg.Redis.Enabled() {
		a.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := a.redis.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			return nil, errors.Wrapf(err, "connect to redis at %s", cfg.Redis.Addr)
		}
		logger.Info().Str("addr", cfg.Redis.Addr).Msg("connected to redis")
	}

	if cfg.Supabase.Enabled() {
		client, err := supabase.New(supabase.Config{
			URL:           cfg.Supabase.URL,
			APIKey:        cfg.Supabase.Key,
			CacheTTL:      cfg.Supabase.MenuCacheTTL,
			MenuTable:     cfg.Supabase.MenuTable,
			OrdersTable:   cfg.Supabase.OrdersTable,
			BookingsTable: cfg.Supabase.BookingsTable,
		})
		if err != nil {
			return nil, errors.Wrap(err, "create supabase client")
		}
		a.supabase = client
	}

	if err := a.loadBusiness(ctx); err != nil {
		return nil, err
	}
	if err := a.loadLocales(); err != nil {
		return nil, err
	}
	if err := a.openSessions(); err != nil {
		return nil, err
	}
	if err := a.openNotifications(); err != nil {
		return nil, err
	}

	temperature := cfg.Planner.Temperature
	llm, err := planner.NewOpenAIPlanner(planner.OpenAIConfig{
		BaseURL:         cfg.Planner.BaseURL,
		APIKey:          cfg.Planner.APIKey,
		Model:           cfg.Planner.Model,
		Temperature:     &temperature,
		HistoryMessages: cfg.Planner.HistoryMessages,
		HistoryTokens:   cfg.Planner.HistoryTokens,
	}, a.business)
	if err != nil {
		return nil, errors.Wrap(err, "create planner")
	}
	if cfg.Planner.APIKey == "" {
		logger.Warn().Msg("planner api key not set; requests will likely be rejected")
	}
	gateway := planner.NewGateway(llm, cfg.Planner.Timeout, a.locales, logger)

	opts := []dialogue.Option{
		dialogue.WithConfig(dialogue.Config{
			MaxTurns:      cfg.Dialogue.MaxTurns,
			LowConfidence: cfg.Dialogue.LowConfidence,
			GatherAction:  cfg.Dialogue.GatherAction,
		}),
		dialogue.WithNotifier(a.dispatcher),
		dialogue.WithLogger(logger),
	}
	if a.supabase != nil {
		opts = append(opts, dialogue.WithRecorder(a.supabase), dialogue.WithMenuSource(a.supabase))
	}
	a.desk = dialogue.NewOrchestrator(a.sessions, gateway, a.business, a.locales, opts...)

	ok = true
	return a, nil
}

func (a *app) loadBusiness(ctx context.Context) error {
	a.business = catalog.DefaultBusiness()
	if a.cfg.Business.File != "" {
		b, err := catalog.LoadBusiness(a.cfg.Business.File)
		if err != nil {
			return err
		}
		a.business = b
	}
	if a.supabase == nil {
		return nil
	}
	items, err := a.supabase.Menu(ctx)
	if err != nil {
		a.logger.Warn().Err(err).Msg("could not load menu from supabase, keeping the profile menu")
		return nil
	}
	if len(items) > 0 {
		a.business.Menu = items
		a.logger.Info().Int("items", len(items)).Msg("menu loaded from supabase")
	}
	return nil
}

func (a *app) loadLocales() error {
	a.locales = locale.Builtin(a.cfg.Locale.Default)
	if a.cfg.Locale.File != "" {
		if err := a.locales.LoadFile(a.cfg.Locale.File); err != nil {
			return err
		}
	}
	return a.locales.SetDefault(a.cfg.Locale.Default)
}

func (a *app) openSessions() error {
	store, err := session.NewStore(
		session.StoreType(a.cfg.Session.Store),
		session.WithRedisClient(a.redis),
		session.WithRedisTTL(a.cfg.Session.RedisTTL),
	)
	if err != nil {
		return errors.Wrap(err, "create session store")
	}
	a.sessions = session.NewManager(store,
		session.WithIdleEviction(a.cfg.Session.IdleTimeout, a.cfg.Session.SweepInterval),
		session.WithEvictionHook(func(n int) {
			a.logger.Info().Int("evicted", n).Msg("idle calls evicted")
		}),
	)
	return nil
}

func (a *app) openNotifications() error {
	wlogger := logging.NewWatermill(a.logger)
	transport, err := notify.NewTransport(notify.StreamConfig{
		Client:   a.redis,
		Group:    a.cfg.Notify.Group,
		Consumer: a.cfg.Notify.Consumer,
	}, wlogger)
	if err != nil {
		return err
	}
	a.transport = transport
	a.dispatcher = notify.NewDispatcher(transport.Publisher, a.cfg.Notify.Topic, a.logger)

	var mailer notify.Mailer
	if a.cfg.SMTP.Host != "" {
		m, err := notify.NewSMTPMailer(notify.SMTPConfig{
			Host:     a.cfg.SMTP.Host,
			Port:     a.cfg.SMTP.Port,
			Username: a.cfg.SMTP.Username,
			Password: a.cfg.SMTP.Password,
			From:     a.cfg.SMTP.From,
			To:       a.cfg.SMTP.To,
		})
		if err != nil {
			return errors.Wrap(err, "create mailer")
		}
		mailer = m
	} else {
		a.logger.Warn().Msg("smtp.host not set; notifications are only logged")
		mailer = notify.MailerFunc(func(ctx context.Context, subject, body string) error {
			a.logger.Info().Str("subject", subject).Str("body", body).Msg("notification")
			return nil
		})
	}

	router, err := notify.NewRouter(transport.Subscriber, a.cfg.Notify.Topic, mailer, a.logger, wlogger)
	if err != nil {
		return err
	}
	a.router = router
	return nil
}

// close waits for in-flight records and notifications, then releases
// connections.
func (a *app) close() {
	if a.desk != nil {
		a.desk.Wait()
	}
	if a.dispatcher != nil {
		a.dispatcher.Wait()
	}
	if a.router != nil {
		if err := a.router.Close(); err != nil {
			a.logger.Error().Err(err).Msg("failed to close notification router")
		}
	}
	if a.transport != nil {
		if err := a.transport.Close(); err != nil {
			a.logger.Error().Err(err).Msg("failed to close notification transport")
		}
	}
	if a.sessions != nil {
		if err := a.sessions.Close(); err != nil {
			a.logger.Error().Err(err).Msg("failed to close session store")
		}
	}
	if a.redis != nil {
		// already closed when sessions live in redis
		_ = a.redis.Close()
	}
	if a.supabase != nil {
		_ = a.supabase.Close()
	}
}
