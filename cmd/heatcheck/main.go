package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	kongdotenv "github.com/titusjaka/kong-dotenv-go"
	_ "modernc.org/sqlite"

	"github.com/lox/heatcheck/internal/heatmap"
	"github.com/lox/heatcheck/internal/ingest"
	"github.com/lox/heatcheck/internal/models"
	"github.com/lox/heatcheck/internal/runner"
	"github.com/lox/heatcheck/internal/store"
)

var defaultStations = []models.Station{
	{StationID: "066062", Name: "Sydney Observatory Hill", Label: "Sydney", Timezone: "Australia/Sydney", Latitude: -33.8607, Longitude: 151.2050, RecordStart: 1859, RecordEnd: 2024, Active: true},
	{StationID: "086338", Name: "Melbourne Olympic Park", Label: "Melbourne", Timezone: "Australia/Melbourne", Latitude: -37.8255, Longitude: 144.9816, RecordStart: 1910, RecordEnd: 2024, Active: true},
	{StationID: "040913", Name: "Brisbane", Label: "Brisbane", Timezone: "Australia/Brisbane", Latitude: -27.4808, Longitude: 153.0389, RecordStart: 1999, RecordEnd: 2024, Active: true},
	{StationID: "023090", Name: "Adelaide Kent Town", Label: "Adelaide", Timezone: "Australia/Adelaide", Latitude: -34.9211, Longitude: 138.6216, RecordStart: 1977, RecordEnd: 2024, Active: true},
	{StationID: "009021", Name: "Perth Airport", Label: "Perth", Timezone: "Australia/Perth", Latitude: -31.9275, Longitude: 115.9764, RecordStart: 1944, RecordEnd: 2024, Active: true},
	{StationID: "070351", Name: "Canberra Airport", Label: "Canberra", Timezone: "Australia/Sydney", Latitude: -35.3088, Longitude: 149.2004, RecordStart: 2008, RecordEnd: 2024, Active: true},
	{StationID: "094029", Name: "Hobart Ellerslie Road", Label: "Hobart", Timezone: "Australia/Hobart", Latitude: -42.8897, Longitude: 147.3278, RecordStart: 1882, RecordEnd: 2024, Active: true},
	{StationID: "014015", Name: "Darwin Airport", Label: "Darwin", Timezone: "Australia/Darwin", Latitude: -12.4239, Longitude: 130.8925, RecordStart: 1941, RecordEnd: 2024, Active: true},
}

type cli struct {
	EnvFile kongdotenv.ENVFileConfig `name:"env-file" help:"Optional .env file to read settings from."`

	DB          string `help:"Path to the SQLite database." default:"data/heatcheck.db" env:"HEATCHECK_DB"`
	DataDir     string `help:"Directory for heatmap row stores." default:"data/heatmap" env:"HEATCHECK_DATA_DIR"`
	OutputDir   string `help:"Directory for published per-station outputs." default:"data/output" env:"HEATCHECK_OUTPUT_DIR"`
	FeedURL     string `help:"Base URL of the current observation feed." default:"http://www.bom.gov.au/fwo" env:"HEATCHECK_FEED_URL"`
	WindowDays  int    `help:"Half-width of the climatology window in days." default:"7" env:"HEATCHECK_WINDOW_DAYS"`
	Workers     int    `help:"Concurrent station workers." default:"4"`
	ArchiveHost string `help:"FTP host of the historical climate archive." default:"ftp.bom.gov.au:21" env:"HEATCHECK_ARCHIVE_HOST"`
	ArchiveDir  string `help:"Directory of daily CSVs on the archive host." default:"/anon/gen/clim_data/IDCKWCDEA0/tables" env:"HEATCHECK_ARCHIVE_DIR"`

	Run      runCmd      `cmd:"" default:"1" help:"Process all stations once and exit."`
	Serve    serveCmd    `cmd:"" help:"Process stations periodically and expose metrics."`
	Backfill backfillCmd `cmd:"" help:"Backfill historical daily records from the climate archive."`
}

type app struct {
	store  *store.Store
	runner *runner.Runner
	flags  *cli
}

type runCmd struct{}

func (c *runCmd) Run(a *app) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	return a.runner.ProcessAll(ctx)
}

type serveCmd struct {
	Interval    time.Duration `help:"How often to reprocess stations." default:"1h"`
	MetricsAddr string        `help:"Listen address for the Prometheus endpoint." default:":9090"`
}

func (c *serveCmd) Run(a *app) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{Addr: c.MetricsAddr, Handler: mux}
	go func() {
		log.Printf("metrics: listening on %s", c.MetricsAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("metrics: %v", err)
		}
	}()
	defer server.Close()

	scheduler := runner.NewScheduler(a.runner, clockwork.NewRealClock(), c.Interval)
	scheduler.Run(ctx)
	return nil
}

type backfillCmd struct {
	Stations []string `arg:"" optional:"" help:"Station IDs to backfill (default: all active)."`
}

func (c *backfillCmd) Run(a *app) error {
	stations, err := a.store.GetActiveStations()
	if err != nil {
		return err
	}

	want := make(map[string]bool, len(c.Stations))
	for _, id := range c.Stations {
		want[id] = true
	}

	archive := ingest.NewArchiveClient(a.flags.ArchiveHost, a.flags.ArchiveDir)
	for _, station := range stations {
		if len(want) > 0 && !want[station.StationID] {
			continue
		}

		record, err := archive.FetchDailyRecord(station.StationID)
		if err != nil {
			log.Printf("backfill: station %s (%s): %v", station.StationID, station.Label, err)
			continue
		}

		for _, obs := range record {
			if err := a.store.InsertDailyObservation(obs); err != nil {
				return err
			}
		}

		count, err := a.store.CountDailyObservations(station.StationID)
		if err != nil {
			return err
		}
		log.Printf("backfill: station %s: %d days on record", station.StationID, count)
	}
	return nil
}

func main() {
	var flags cli
	kctx := kong.Parse(&flags,
		kong.Name("heatcheck"),
		kong.Description("Classifies today's temperature against each station's climatology."),
		kong.UsageOnError(),
	)

	db, err := sql.Open("sqlite", flags.DB)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()

	db.Exec("PRAGMA journal_mode=WAL")
	db.Exec("PRAGMA busy_timeout=5000")

	st := store.New(db)
	if err := st.Migrate(); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	for _, station := range defaultStations {
		if err := st.UpsertStation(station); err != nil {
			log.Fatalf("upsert station %s: %v", station.StationID, err)
		}
	}

	r := runner.New(
		st,
		heatmap.NewStore(flags.DataDir),
		ingest.NewCurrentClient(flags.FeedURL),
		runner.NewOutput(flags.OutputDir),
		clockwork.NewRealClock(),
	)
	r.SetWindowDays(flags.WindowDays)
	r.SetWorkers(flags.Workers)

	kctx.FatalIfErrorf(kctx.Run(&app{store: st, runner: r, flags: &flags}))
}
