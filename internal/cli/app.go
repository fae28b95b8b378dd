package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/havenhealth/haven/internal/config"
	"github.com/havenhealth/haven/internal/core"
	"github.com/havenhealth/haven/internal/core/dashboard"
	"github.com/havenhealth/haven/internal/core/matching"
	"github.com/havenhealth/haven/internal/core/memory"
	"github.com/havenhealth/haven/internal/core/session"
	"github.com/havenhealth/haven/internal/core/suggest"
	"github.com/havenhealth/haven/internal/core/translate"
	"github.com/havenhealth/haven/internal/domain"
	"github.com/havenhealth/haven/internal/i18n"
	debuglog "github.com/havenhealth/haven/internal/log"
	"github.com/havenhealth/haven/internal/plugins/ai"
	"github.com/havenhealth/haven/internal/plugins/ai/dryrun"
	"github.com/havenhealth/haven/internal/plugins/ai/openai"
	"github.com/havenhealth/haven/internal/plugins/db/sqlitedb"
	"github.com/havenhealth/haven/internal/plugins/db/supadb"
	restapi "github.com/havenhealth/haven/internal/server"
)

// App is the composition root: every long-lived service, built once from
// the configuration.
type App struct {
	Config   *config.Config
	Store    domain.Store
	Vendor   ai.Vendor
	Services *restapi.Services

	closers []io.Closer
}

func NewVendor(cfg *config.Config) (ai.Vendor, error) {
	switch cfg.AI.Vendor {
	case config.VendorOpenAI:
		return openai.NewClient(), nil
	case config.VendorDryRun:
		return dryrun.NewClient(), nil
	}
	return nil, fmt.Errorf("unknown AI vendor %q", cfg.AI.Vendor)
}

// OpenStore returns the configured backend. The returned closer may be nil.
func OpenStore(cfg *config.Config) (domain.Store, io.Closer, error) {
	switch cfg.Store.Backend {
	case config.StoreSupabase:
		client, err := supadb.NewClient(cfg.Store.SupabaseURL, cfg.Store.SupabaseServiceKey)
		if err != nil {
			return nil, nil, err
		}
		return client, nil, nil
	case config.StoreSQLite:
		store, err := sqlitedb.Open(cfg.Store.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return store, store, nil
	}
	return nil, nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
}

func sessionOptions(cfg config.Session) session.Options {
	opts := session.DefaultOptions()
	opts.TickInterval = cfg.TickInterval
	opts.CheckpointInterval = cfg.CheckpointInterval
	opts.HistoryCapacity = cfg.HistoryCapacity
	opts.PersistMessages = cfg.PersistMessages
	opts.ReplyContext = cfg.ReplyContext
	opts.MaxTabs = cfg.MaxTabs
	return opts
}

func NewApp(cfg *config.Config) (*App, error) {
	debuglog.SetLevel(debuglog.LevelFromInt(cfg.LogLevel))
	loc, err := i18n.Init(cfg.Language)
	if err != nil {
		return nil, fmt.Errorf("load translations: %w", err)
	}

	vendor, err := NewVendor(cfg)
	if err != nil {
		return nil, err
	}
	store, closer, err := OpenStore(cfg)
	if err != nil {
		return nil, err
	}

	memories := memory.NewService(store)
	chatter := core.NewChatter(vendor, cfg.AI.Model, store, memories)
	chatter.Stream = cfg.AI.Stream
	generator := suggest.NewGenerator(store)

	app := &App{
		Config: cfg,
		Store:  store,
		Vendor: vendor,
		Services: &restapi.Services{
			Store:      store,
			Chatter:    chatter,
			Sessions:   session.NewManager(chatter, sessionOptions(cfg.Session), cfg.Session.InboxCapacity, loc),
			Matching:   matching.NewService(store),
			Suggest:    generator,
			Memories:   memories,
			Dashboard:  dashboard.NewLoader(store, generator),
			Translator: translate.New(vendor, cfg.AI.Model),
		},
	}
	if closer != nil {
		app.closers = append(app.closers, closer)
	}
	debuglog.Debug(debuglog.Basic, "haven: store=%s vendor=%s model=%s\n", cfg.Store.Backend, cfg.AI.Vendor, cfg.AI.Model)
	return app, nil
}

// Close ends every open therapy session, persisting it, and releases the
// store.
func (a *App) Close(ctx context.Context) error {
	a.Services.Sessions.EndAll(ctx)
	var firstErr error
	for _, c := range a.closers {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
