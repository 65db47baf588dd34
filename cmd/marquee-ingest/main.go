package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"marquee/internal/modkit"
	"marquee/internal/platform/config"
	"marquee/internal/platform/logger"
	"marquee/internal/platform/store"

	ingestmod "marquee/internal/services/ingest/module"
)

func mustSetEnv(key, val string) {
	if val != "" {
		_ = os.Setenv(key, val)
	}
}

func main() {
	root := config.New()
	pgCfg := root.Prefix("SERVICE_PGSQL_")
	chCfg := root.Prefix("SERVICE_CLICKHOUSE_")

	l := logger.Get()

	var (
		fDate      = flag.String("date", "", "ingest a single day YYYY-MM-DD (wins over -backfill)")
		fBackfill  = flag.Int("backfill", 0, "ingest the last N days ending today")
		fThreshold = flag.Float64("threshold", 0, "minimum popularity to keep a discovered movie")
		fBatch     = flag.Int("batch-size", 0, "movies per sink write")
		fNoLedger  = flag.Bool("no-ledger", false, "skip the postgres run ledger and write to the sink only")
	)
	flag.Parse()

	// Surface flags to the module, which reads FromConfig; env already set wins
	mustSetEnv("TARGET_DATE", *fDate)
	if *fBackfill > 0 {
		mustSetEnv("BACKFILL_DAYS", strconv.Itoa(*fBackfill))
	}
	if *fThreshold > 0 {
		mustSetEnv("POPULARITY_THRESHOLD", strconv.FormatFloat(*fThreshold, 'f', -1, 64))
	}
	if *fBatch > 0 {
		mustSetEnv("BATCH_SIZE", strconv.Itoa(*fBatch))
	}

	ledger := !*fNoLedger && pgCfg.MayBool("ENABLED", true)

	stCfg := store.Config{
		CH: store.CHConfig{
			Enabled:    true,
			URL:        chCfg.MustString("DBURL"),
			ClientName: "marquee",
			ClientTag:  "ingest",
		},
	}
	if ledger {
		stCfg.PG = store.PGConfig{
			Enabled:     true,
			URL:         pgCfg.MustString("DBURL"),
			MaxConns:    int32(pgCfg.MayInt("MAX_CONNS", 4)),
			SlowQueryMs: pgCfg.MayInt("SLOW_MS", 500),
			LogSQL:      pgCfg.MayBool("LOG_SQL", true),
		}
	}

	st, err := store.Open(context.Background(), stCfg, store.WithLogger(*l))
	if err != nil {
		l.Fatal().Err(err).Msg("store.Open failed")
	}
	defer func() {
		if err := st.Close(context.Background()); err != nil {
			l.Error().Err(err).Msg("failed to close store")
		}
	}()

	deps := modkit.Deps{
		Cfg: root,
		PG:  st.PG,
		CH:  st.CH,
		Log: *l,
	}

	m, err := ingestmod.New(deps)
	if err != nil {
		l.Fatal().Err(err).Msg("ingest module init failed")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ports := m.Ports().(ingestmod.Ports)
	if _, err := ports.Runner.Run(ctx, m.Spec()); err != nil {
		l.Fatal().Err(err).Msg("ingest run failed")
	}
}
