package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/alecthomas/kong"
	kongdotenv "github.com/titusjaka/kong-dotenv-go"

	"github.com/lox/fiat/internal/api"
	"github.com/lox/fiat/internal/catalogue"
	"github.com/lox/fiat/internal/forecast"
	"github.com/lox/fiat/internal/httputil"
	"github.com/lox/fiat/internal/ingest"
	"github.com/lox/fiat/internal/logger"
	"github.com/lox/fiat/internal/plots"
	"github.com/lox/fiat/internal/probe"
	"github.com/lox/fiat/internal/selection"
	"github.com/lox/fiat/internal/store"
)

type Globals struct {
	LogLevel  string `help:"Log level." default:"info" enum:"debug,info,warn,error" env:"FIAT_LOG_LEVEL"`
	LogFormat string `help:"Log format." default:"text" enum:"text,json" env:"FIAT_LOG_FORMAT"`
	DB        string `help:"Path to SQLite database." default:"data/fiat.db" env:"FIAT_DB"`
	PlotRoot  string `help:"Local directory holding the mirrored plot tree." default:"data/FIATPlots" env:"FIAT_PLOT_ROOT"`
	Tabs      string `help:"YAML file describing the dashboard tabs. Empty uses the built-in tabs." env:"FIAT_TABS"`

	PlotsBase        string `help:"Base URL of forecast plots." default:"FIATPlots" env:"FIAT_PLOTS_BASE"`
	ObservationsBase string `help:"Base URL of the observation server." default:"http://www-nwp/~meso/UFO_VT" env:"FIAT_OBSERVATIONS_BASE"`
	Basis            string `help:"Where dates past the end of the catalogue are counted from." default:"today" enum:"today,catalogue" env:"FIAT_BASIS"`

	log *slog.Logger `kong:"-"`
}

func (g *Globals) bases() plots.Bases {
	return plots.Bases{Plots: g.PlotsBase, Observations: g.ObservationsBase}
}

func (g *Globals) resolver() (*selection.Resolver, error) {
	tabs, err := plots.LoadFile(g.Tabs)
	if err != nil {
		return nil, err
	}
	basis, err := forecast.ParseBasis(g.Basis)
	if err != nil {
		return nil, err
	}
	return &selection.Resolver{Tabs: tabs, Bases: g.bases(), Basis: basis}, nil
}

func (g *Globals) openStore() (*store.Store, *sql.DB, error) {
	db, err := store.Open(g.DB)
	if err != nil {
		return nil, nil, err
	}
	st := store.New(db)
	if err := st.Migrate(); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("migrate: %w", err)
	}
	return st, db, nil
}

// FTPFlags configure the plot production host.
type FTPFlags struct {
	FTPAddr     string        `name:"ftp-addr" help:"FTP host:port of the plot production server. Empty only rescans the plot root." env:"FIAT_FTP_ADDR"`
	FTPUser     string        `name:"ftp-user" help:"FTP user." env:"FIAT_FTP_USER"`
	FTPPassword string        `name:"ftp-password" help:"FTP password." env:"FIAT_FTP_PASSWORD"`
	FTPRoot     string        `name:"ftp-root" help:"Remote directory holding the plot tree." default:"/" env:"FIAT_FTP_ROOT"`
	FTPTimeout  time.Duration `name:"ftp-timeout" help:"FTP dial timeout." default:"30s" env:"FIAT_FTP_TIMEOUT"`
	Retention   time.Duration `help:"Only mirror plots newer than this." default:"240h" env:"FIAT_RETENTION"`
}

func (f *FTPFlags) syncer(g *Globals, st *store.Store) *ingest.Syncer {
	var dial ingest.Dialer
	if f.FTPAddr != "" {
		dial = ingest.FTPDialer(ingest.FTPConfig{
			Addr:     f.FTPAddr,
			User:     f.FTPUser,
			Password: f.FTPPassword,
			Root:     f.FTPRoot,
			Timeout:  f.FTPTimeout,
		})
	}
	s := ingest.NewSyncer(st, g.PlotRoot, dial, g.log)
	s.Retention = f.Retention
	return s
}

// SelectionFlags describe one dashboard selection, using the page's query names.
type SelectionFlags struct {
	Date  string `help:"Catalogue date (YYYYMMDD). Defaults to the first date."`
	Run   string `help:"Model run hour (e.g. 06)."`
	Hour  int    `help:"Forecast hour, 0 to 120." default:"0"`
	Tab   string `help:"Dashboard tab."`
	Model string `help:"Model variant (UKV or Euro4)."`
	Obs   string `help:"Satellite image type (e.g. IR/EIEA51)."`
}

func (f *SelectionFlags) query() url.Values {
	q := url.Values{}
	for k, v := range map[string]string{"date": f.Date, "run": f.Run, "tab": f.Tab, "model": f.Model, "obs": f.Obs} {
		if v != "" {
			q.Set(k, v)
		}
	}
	q.Set("hour", strconv.Itoa(f.Hour))
	return q
}

type ServeCmd struct {
	FTPFlags
	Addr      string `help:"HTTP listen address." default:":8080" env:"FIAT_ADDR"`
	Schedule  string `help:"Cron schedule for plot syncs." default:"5,20,35,50 * * * *" env:"FIAT_SCHEDULE"`
	NoSync    bool   `help:"Disable scheduled syncs (server only, for local dev)."`
	ProbeBase string `help:"Base URL relative plot URLs are probed against." default:"http://localhost:8080/" env:"FIAT_PROBE_BASE"`
}

func (c *ServeCmd) Run(g *Globals) error {
	st, db, err := g.openStore()
	if err != nil {
		return err
	}
	defer db.Close()
	g.log.Info("database migrated", "path", g.DB)

	r, err := g.resolver()
	if err != nil {
		return err
	}
	base, err := url.Parse(c.ProbeBase)
	if err != nil {
		return fmt.Errorf("probe base: %w", err)
	}

	server := api.NewServer(st, api.Config{
		Addr:     c.Addr,
		PlotRoot: g.PlotRoot,
		Bases:    r.Bases,
		Tabs:     r.Tabs,
		Basis:    r.Basis,
		Prober:   probe.New(httputil.NewClient(), base, g.log),
		Log:      g.log,
	})
	cat, err := st.Catalogue()
	if err != nil {
		return fmt.Errorf("load catalogue: %w", err)
	}
	server.SetCatalogue(cat)
	g.log.Info("catalogue loaded", "dates", cat.Len(), "latest", cat.Latest())

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if !c.NoSync {
		syncer := c.syncer(g, st)
		syncer.OnCatalogue = server.SetCatalogue
		scheduler, err := ingest.NewScheduler(syncer, c.Schedule, g.log)
		if err != nil {
			return err
		}
		go scheduler.Run(ctx)
	} else {
		g.log.Info("scheduled syncs disabled (--no-sync)")
	}

	return server.Run(ctx)
}

type SyncCmd struct {
	FTPFlags
}

func (c *SyncCmd) Run(g *Globals) error {
	st, db, err := g.openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	run, err := c.syncer(g, st).Sync(ctx)
	if err != nil {
		return err
	}
	g.log.Info("done", "id", run.ID, "fetched", run.FilesFetched, "failed", run.FilesFailed, "duration", run.Duration())
	return nil
}

type CatalogueCmd struct {
	Scan bool `help:"Scan the plot root instead of reading the database."`
}

func (c *CatalogueCmd) Run(g *Globals) error {
	var cat *catalogue.Catalogue
	if c.Scan {
		var err error
		if cat, err = catalogue.Scan(os.DirFS(g.PlotRoot)); err != nil {
			return err
		}
	} else {
		st, db, err := g.openStore()
		if err != nil {
			return err
		}
		defer db.Close()
		if cat, err = st.Catalogue(); err != nil {
			return err
		}
	}
	return printJSON(cat)
}

// loadCatalogue reads the stored catalogue, falling back to scanning the plot root.
func (g *Globals) loadCatalogue() (*catalogue.Catalogue, error) {
	st, db, err := g.openStore()
	if err != nil {
		return nil, err
	}
	defer db.Close()
	cat, err := st.Catalogue()
	if err != nil {
		return nil, err
	}
	if cat.Len() > 0 {
		return cat, nil
	}
	g.log.Debug("stored catalogue empty, scanning plot root", "root", g.PlotRoot)
	return catalogue.Scan(os.DirFS(g.PlotRoot))
}

func (g *Globals) view(f SelectionFlags) (selection.View, error) {
	r, err := g.resolver()
	if err != nil {
		return selection.View{}, err
	}
	cat, err := g.loadCatalogue()
	if err != nil {
		return selection.View{}, err
	}
	sel, err := selection.FromQuery(cat, r.Tabs, selection.Default(r.Tabs), f.query())
	if err != nil {
		return selection.View{}, err
	}
	return r.Resolve(cat, sel)
}

type ResolveCmd struct {
	SelectionFlags
}

func (c *ResolveCmd) Run(g *Globals) error {
	v, err := g.view(c.SelectionFlags)
	if err != nil {
		return err
	}
	return printJSON(v)
}

type ProbeCmd struct {
	SelectionFlags
	Base string `help:"Base URL relative plot URLs are resolved against." default:"http://localhost:8080/" env:"FIAT_PROBE_BASE"`
}

func (c *ProbeCmd) Run(g *Globals) error {
	v, err := g.view(c.SelectionFlags)
	if err != nil {
		return err
	}
	base, err := url.Parse(c.Base)
	if err != nil {
		return fmt.Errorf("base: %w", err)
	}
	results := probe.New(httputil.NewClient(), base, g.log).Check(context.Background(), v.Plots)

	fmt.Println(v.Label)
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTATUS\tURL")
	for _, r := range results {
		status := strconv.Itoa(r.Status)
		switch {
		case r.Skipped:
			status = "skipped"
		case r.Error != "":
			status = "error: " + r.Error
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", r.ID, status, r.URL)
	}
	return w.Flush()
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

type CLI struct {
	Globals

	Serve     ServeCmd     `cmd:"" default:"1" help:"Run the dashboard server and scheduled plot syncs."`
	Sync      SyncCmd      `cmd:"" help:"Mirror the plot tree once and rebuild the catalogue."`
	Catalogue CatalogueCmd `cmd:"" help:"Print the catalogue of dates and model runs."`
	Resolve   ResolveCmd   `cmd:"" help:"Print the dashboard view for a selection."`
	Probe     ProbeCmd     `cmd:"" help:"Check which plots of a selection can be fetched."`
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("fiat"),
		kong.Description("Forecast plot dashboard."),
		kong.UsageOnError(),
		kong.Configuration(kongdotenv.ENVFileReader, ".env"),
	)

	log, err := logger.New(cli.LogLevel, cli.LogFormat)
	ctx.FatalIfErrorf(err)
	cli.log = log

	ctx.FatalIfErrorf(ctx.Run(&cli.Globals))
}
