package cmd

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/harrisonrobin/planner/pkg/auth"
	"github.com/harrisonrobin/planner/pkg/calsync"
	"github.com/harrisonrobin/planner/pkg/colors"
	"github.com/harrisonrobin/planner/pkg/config"
	"github.com/harrisonrobin/planner/pkg/google"
	"github.com/harrisonrobin/planner/pkg/kv"
	"github.com/harrisonrobin/planner/pkg/logging"
	"github.com/harrisonrobin/planner/pkg/metrics"
	"github.com/harrisonrobin/planner/pkg/planner"
	"github.com/harrisonrobin/planner/pkg/render"
	"github.com/harrisonrobin/planner/pkg/store"
)

// errNoCredentials is returned by calendar commands when no client secrets
// file is configured.
var errNoCredentials = errors.New("no Google client secrets found; download credentials.json from the Cloud Console and set calendar.credentials_file")

// app holds everything a command needs, built from the loaded config.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	out      io.Writer
	render   *render.Renderer
	backend  kv.Store
	store    *store.Store
	session  *auth.Session // nil without client secrets
	calendar *google.CalendarClient
	mapper   calsync.Mapper
	registry *prometheus.Registry
	metrics  *metrics.Metrics
	planner  *planner.Planner
}

// newApp loads the config and wires the store, the calendar session and
// the planner.
func newApp(cmd *cobra.Command, opts *rootOptions) (*app, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}
	if opts.logLevel != "" {
		cfg.Log.Level = opts.logLevel
	}
	if opts.calendarID != "" {
		cfg.Calendar.ID = opts.calendarID
	}

	logger := logging.New(cmd.ErrOrStderr(), cfg.Log.Level, cfg.Log.Format)
	a := &app{
		cfg:      cfg,
		logger:   logger,
		out:      cmd.OutOrStdout(),
		render:   render.New(cmd.OutOrStdout()),
		registry: prometheus.NewRegistry(),
	}

	a.metrics, err = metrics.New(a.registry)
	if err != nil {
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}

	a.backend, err = kv.Open(cfg.Storage.Backend, cfg.Storage.Dir)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s storage: %w", cfg.Storage.Backend, err)
	}
	a.store, err = store.Open(a.backend, cfg.Storage.Key, store.WithLogger(logger))
	if err != nil {
		a.backend.Close()
		return nil, err
	}
	a.mapper, err = calsync.NewMapper(cfg.Calendar.TimeZone, colors.NewTable(cfg.Calendar.Colors))
	if err != nil {
		a.backend.Close()
		return nil, err
	}

	popts := []planner.Option{
		planner.WithLogger(logger),
		planner.WithCategoryOrder(cfg.CategoryOrder),
	}
	bridge, err := a.newBridge()
	if err != nil {
		a.backend.Close()
		return nil, err
	}
	if bridge != nil {
		popts = append(popts, planner.WithBridge(bridge))
	}
	a.planner = planner.New(a.store, popts...)
	return a, nil
}

// newBridge returns nil when no client secrets are configured; the
// planner then works locally only.
func (a *app) newBridge() (*calsync.Bridge, error) {
	oauthCfg, err := auth.LoadConfig(a.cfg.Calendar.CredentialsFile)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			a.logger.Debug("calendar disabled, no client secrets", "path", a.cfg.Calendar.CredentialsFile)
			return nil, nil
		}
		return nil, err
	}
	a.session, err = auth.NewSession(oauthCfg, a.cfg.Calendar.TokenFile, a.logger)
	if err != nil {
		return nil, err
	}
	a.calendar = google.NewCalendarClient(a.session, a.cfg.Calendar.ID)

	return calsync.New(a.calendar, a.session, a.mapper,
		calsync.WithMetrics(a.metrics),
		calsync.WithLogger(a.logger),
		calsync.WithConcurrency(a.cfg.Calendar.Concurrency),
	), nil
}

// requireSession fails calendar commands that need client secrets.
func (a *app) requireSession() (*auth.Session, error) {
	if a.session == nil {
		return nil, errNoCredentials
	}
	return a.session, nil
}

func (a *app) Close() error {
	return a.backend.Close()
}

func (a *app) printf(format string, args ...any) {
	fmt.Fprintf(a.out, format, args...)
}

func (a *app) println(s string) {
	fmt.Fprintln(a.out, s)
}

// report prints non-fatal problems of an action: a local write that did
// not persist, or a calendar call that failed.
func (a *app) report(local, remote error) {
	if local != nil {
		a.println(a.render.Warning("not saved: " + local.Error()))
	}
	if remote != nil {
		a.println(a.render.Warning("calendar: " + remote.Error()))
	}
}

// runE wraps a command body with app setup and teardown.
func runE(opts *rootOptions, fn func(cmd *cobra.Command, a *app, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, opts)
		if err != nil {
			return err
		}
		defer a.Close()
		return fn(cmd, a, args)
	}
}
