// cli/app.go
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bctw/collector/config"
	"github.com/bctw/collector/database"
	"github.com/bctw/collector/lock"
	"github.com/bctw/collector/models"
	"github.com/bctw/collector/notify"
	"github.com/bctw/collector/services"
	"github.com/bctw/collector/vendors"
	"github.com/bctw/collector/watermark"
)

// app holds everything a command needs once configuration is loaded.
type app struct {
	cfg      config.Config
	logger   *slog.Logger
	pool     *pgxpool.Pool
	ingest   *services.IngestService
	notifier notify.Notifier
	closers  []func()
}

func newLogger(level string, w io.Writer) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl}))
}

// newApp loads configuration, opens the pool and wires the services.
// Redis and MQTT are optional and skipped when unconfigured.
func newApp(ctx context.Context, configPath string, logOut io.Writer) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrFatalConfig, err)
	}
	logger := newLogger(cfg.LogLevel, logOut)
	slog.SetDefault(logger)

	pool, err := database.InitPool(ctx, cfg.Database, logger)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, logger: logger, pool: pool, notifier: notify.Nop{}}

	var locker lock.Locker = lock.Nop{}
	if cfg.Redis.Addr != "" {
		client, err := lock.Dial(ctx, cfg.Redis.Addr)
		if err != nil {
			a.Close(ctx)
			return nil, err
		}
		a.closers = append(a.closers, func() { client.Close() })
		locker = lock.NewRedis(client, "collector:")
		logger.Info("Service: run locks held in Redis", "addr", cfg.Redis.Addr)
	}
	if cfg.MQTT.Broker != "" {
		n, err := notify.DialMQTT(cfg.MQTT.Broker, cfg.MQTT.ClientID, cfg.MQTT.TopicPrefix, logger)
		if err != nil {
			a.Close(ctx)
			return nil, err
		}
		a.notifier = n
	}

	telemetry := database.NewTelemetryStore(pool)
	alerts := database.NewAlertStore(pool)
	devices := database.NewDeviceStore(pool)

	tracker := watermark.NewTracker(alerts, telemetry)
	tracker.TelemetryLookback = cfg.Ingest.TelemetryLookback
	tracker.AlertLookback = cfg.Ingest.AlertLookback
	tracker.ATSLookback = cfg.Ingest.ATSLookback

	httpOpts := vendors.HTTPOptions{
		RequestTimeout: cfg.Ingest.RequestTimeout,
		MaxRetries:     cfg.Ingest.MaxRetries,
		Logger:         logger,
	}
	adapters := []vendors.Adapter{
		vendors.NewLotekAdapter(httpOpts, devices),
		vendors.NewVectronicAdapter(httpOpts, devices),
		vendors.NewATSAdapter(httpOpts, vendors.ATSOptions{
			Portal: vendors.PortalOptions{
				LoginFormID:     cfg.ATS.LoginFormID,
				UsernameFieldID: cfg.ATS.UsernameFieldID,
				PasswordFieldID: cfg.ATS.PasswordFieldID,
				DownloadDir:     cfg.ATS.DownloadDir,
				SettleDelay:     cfg.ATS.SettleDelay,
			},
			ArchiveDir:      cfg.ATS.ArchiveDir,
			DeleteDownloads: cfg.ATS.DeleteDownloads,
		}),
	}

	var alertService *services.AlertService
	if cfg.Lotek.AlertsEnabled {
		alertService = services.NewAlertService(alerts, tracker, a.notifier, logger)
	}

	a.ingest = services.NewIngestService(services.IngestDeps{
		Adapters:    adapters,
		Credentials: services.NewCredentialResolver(database.NewCredentialStore(pool, cfg.Credentials.EncryptionKey), credentialSettings(cfg)),
		Writer:      telemetry,
		Tracker:     tracker,
		Alerts:      alertService,
		Locker:      locker,
		Notifier:    a.notifier,
		Workers:     cfg.Ingest.Workers,
		LockTTL:     cfg.Redis.LockTTL,
		Logger:      logger,
	})
	return a, nil
}

// credentialSettings maps configuration to per-vendor credential sources.
// Vectronic only needs its base URL; collar keys come from the registry.
func credentialSettings(cfg config.Config) map[models.Vendor]services.VendorCredentialConfig {
	return map[models.Vendor]services.VendorCredentialConfig{
		models.VendorLotek: {
			Name: cfg.Lotek.CredentialName,
			Fallback: models.VendorCredential{
				Username: cfg.Lotek.Username,
				Password: cfg.Lotek.Password,
				URL:      cfg.Lotek.URL,
			},
		},
		models.VendorVectronic: {
			Fallback: models.VendorCredential{URL: cfg.Vectronic.URL},
		},
		models.VendorATS: {
			Name: cfg.ATS.CredentialName,
			Fallback: models.VendorCredential{
				Username: cfg.ATS.Username,
				Password: cfg.ATS.Password,
				URL:      cfg.ATS.URL,
			},
		},
	}
}

// Close drains the pool and disconnects optional clients.
func (a *app) Close(ctx context.Context) {
	a.notifier.Close()
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	database.ClosePool(ctx, a.pool, a.cfg.Ingest.PoolDrainRetries, a.cfg.Ingest.PoolDrainInterval, a.logger)
}
