package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	reefdb "reefbase/db"
	"reefbase/internal/adapter/blob"
	httpadapter "reefbase/internal/adapter/http"
	metricsinmem "reefbase/internal/adapter/metrics/inmemory"
	"reefbase/internal/adapter/ratelimit"
	gormrepo "reefbase/internal/adapter/repo/gorm"
	"reefbase/internal/adapter/repo/memory"
	sqliterepo "reefbase/internal/adapter/repo/sqlite"
	"reefbase/internal/adapter/ruleset"
	"reefbase/internal/app/auth"
	"reefbase/internal/app/baseaction"
	"reefbase/internal/app/basebuild"
	"reefbase/internal/app/basestate"
	"reefbase/internal/app/collect"
	"reefbase/internal/app/ports"
	"reefbase/internal/app/replay"
	"reefbase/internal/app/status"
	"reefbase/internal/domain/economy"

	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/hlog"
)

const defaultSaveCooldown = 2 * time.Second

type config struct {
	DBDriver      string
	DBDSN         string
	SQLitePath    string
	HTTPAddr      string
	SaveCooldown  time.Duration
	StateMaxChars int
	BlobCodec     string
	RulesetFile   string
	MigrationsDir string
}

func loadConfig() config {
	return config{
		DBDriver:      strings.ToLower(stringEnv("REEF_DB_DRIVER", "postgres")),
		DBDSN:         stringEnv("REEF_DB_DSN", ""),
		SQLitePath:    stringEnv("REEF_SQLITE_PATH", "./data/reefbase.db"),
		HTTPAddr:      stringEnv("REEF_HTTP_ADDR", ":8080"),
		SaveCooldown:  durationMsEnv("REEF_SAVE_COOLDOWN_MS", 0),
		StateMaxChars: intEnv("REEF_STATE_MAX_CHARS", 0),
		BlobCodec:     stringEnv("REEF_BLOB_CODEC", "lz4"),
		RulesetFile:   stringEnv("REEF_RULESET_FILE", ""),
		MigrationsDir: stringEnv("REEF_MIGRATIONS_DIR", ""),
	}
}

type repos struct {
	State  ports.BaseStateRepository
	Bases  ports.PlayerBaseRepository
	Events ports.EventRepository
	Creds  ports.PlayerCredentialRepository
	Tx     ports.TxManager
	close  func()
}

func buildRepos(ctx context.Context, cfg config) (repos, error) {
	switch cfg.DBDriver {
	case "memory":
		store := memory.NewStore()
		return repos{
			State:  memory.NewBaseStateRepo(store),
			Bases:  memory.NewPlayerBaseRepo(store),
			Events: memory.NewEventRepo(store),
			Creds:  memory.NewPlayerCredentialRepo(store),
			Tx:     memory.NewTxManager(store),
			close:  func() {},
		}, nil
	case "sqlite":
		db, err := sqliterepo.Open(cfg.SQLitePath)
		if err != nil {
			return repos{}, err
		}
		return repos{
			State:  sqliterepo.NewBaseStateRepo(db),
			Bases:  sqliterepo.NewPlayerBaseRepo(db),
			Events: sqliterepo.NewEventRepo(db),
			Creds:  sqliterepo.NewPlayerCredentialRepo(db),
			Tx:     sqliterepo.NewTxManager(db),
			close:  func() { _ = db.Close() },
		}, nil
	case "postgres", "":
		if cfg.DBDSN == "" {
			return repos{}, fmt.Errorf("REEF_DB_DSN is required for the postgres driver")
		}
		db, err := gormrepo.OpenPostgres(cfg.DBDSN)
		if err != nil {
			return repos{}, fmt.Errorf("open postgres: %w", err)
		}
		if cfg.MigrationsDir != "" {
			err = gormrepo.ApplyMigrationsDir(ctx, db, cfg.MigrationsDir)
		} else {
			err = gormrepo.ApplyMigrations(ctx, db, reefdb.Migrations())
		}
		if err != nil {
			return repos{}, fmt.Errorf("apply migrations: %w", err)
		}
		return repos{
			State:  gormrepo.NewBaseStateRepo(db),
			Bases:  gormrepo.NewPlayerBaseRepo(db),
			Events: gormrepo.NewEventRepo(db),
			Creds:  gormrepo.NewPlayerCredentialRepo(db),
			Tx:     gormrepo.NewTxManager(db),
			close: func() {
				if sqlDB, err := db.DB(); err == nil {
					_ = sqlDB.Close()
				}
			},
		}, nil
	default:
		return repos{}, fmt.Errorf("unknown REEF_DB_DRIVER %q", cfg.DBDriver)
	}
}

// loadRules overlays the optional YAML file on the compiled defaults. Server
// knobs from the file fill in whatever the environment left unset.
func loadRules(cfg config) (economy.Ruleset, config, error) {
	rules := economy.DefaultRuleset()
	if cfg.RulesetFile != "" {
		f, err := ruleset.Load(cfg.RulesetFile)
		if err != nil {
			return rules, cfg, err
		}
		if rules, err = f.Apply(rules); err != nil {
			return rules, cfg, err
		}
		if cfg.SaveCooldown <= 0 && f.Server.SaveCooldownMs > 0 {
			cfg.SaveCooldown = time.Duration(f.Server.SaveCooldownMs) * time.Millisecond
		}
		if cfg.StateMaxChars <= 0 && f.Server.StateMaxChars > 0 {
			cfg.StateMaxChars = f.Server.StateMaxChars
		}
	}
	if cfg.SaveCooldown <= 0 {
		cfg.SaveCooldown = defaultSaveCooldown
	}
	if cfg.StateMaxChars <= 0 {
		cfg.StateMaxChars = basestate.DefaultMaxChars
	}
	return rules, cfg, nil
}

func newHandler(cfg config, r repos, rules economy.Ruleset, kpi *metricsinmem.Recorder) (httpadapter.Handler, error) {
	codec, err := blob.NewCodec(cfg.BlobCodec)
	if err != nil {
		return httpadapter.Handler{}, err
	}
	schema, err := basestate.NewSchema()
	if err != nil {
		return httpadapter.Handler{}, fmt.Errorf("compile state schema: %w", err)
	}
	catalog := economy.DefaultCatalog()

	return httpadapter.Handler{
		RegisterUC: auth.RegisterUseCase{Credentials: r.Creds, Bases: r.Bases, TxManager: r.Tx, Now: time.Now},
		AuthUC:     auth.VerifyUseCase{Credentials: r.Creds},
		StateUC: basestate.UseCase{
			Repo:     r.State,
			Codec:    codec,
			Guard:    ratelimit.NewGuard(cfg.SaveCooldown),
			Schema:   schema,
			Metrics:  kpi,
			MaxChars: cfg.StateMaxChars,
			Now:      time.Now,
		},
		BuildUC: basebuild.UseCase{
			Bases:     r.Bases,
			Events:    r.Events,
			TxManager: r.Tx,
			Metrics:   kpi,
			Catalog:   catalog,
			Rules:     rules,
			Now:       time.Now,
		},
		CollectUC: collect.UseCase{
			Bases:     r.Bases,
			Events:    r.Events,
			TxManager: r.Tx,
			Metrics:   kpi,
			Catalog:   catalog,
			Rules:     rules,
			Now:       time.Now,
		},
		ActionUC: baseaction.UseCase{
			Bases:     r.Bases,
			Events:    r.Events,
			TxManager: r.Tx,
			Metrics:   kpi,
			Catalog:   catalog,
			Rules:     rules,
			Rand:      baseaction.SharedRand{},
			Now:       time.Now,
		},
		StatusUC:     status.UseCase{Bases: r.Bases, Catalog: catalog, Rules: rules, Now: time.Now},
		ReplayUC:     replay.UseCase{Events: r.Events},
		KPI:          kpi,
		SaveCooldown: cfg.SaveCooldown,
	}, nil
}

func main() {
	ctx := context.Background()
	rules, cfg, err := loadRules(loadConfig())
	if err != nil {
		hlog.Fatalf("load ruleset: %v", err)
	}
	r, err := buildRepos(ctx, cfg)
	if err != nil {
		hlog.Fatalf("build repositories: %v", err)
	}
	defer r.close()

	h, err := newHandler(cfg, r, rules, metricsinmem.NewRecorder())
	if err != nil {
		hlog.Fatalf("build handler: %v", err)
	}

	s := server.Default(server.WithHostPorts(cfg.HTTPAddr))
	h.RegisterRoutes(s)

	hlog.Infof("reefbase worker listening on %s (driver=%s codec=%s save_cooldown=%s)", cfg.HTTPAddr, cfg.DBDriver, cfg.BlobCodec, cfg.SaveCooldown)
	s.Spin()
}

func stringEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func intEnv(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func durationMsEnv(key string, fallback time.Duration) time.Duration {
	ms := intEnv(key, -1)
	if ms < 0 {
		return fallback
	}
	return time.Duration(ms) * time.Millisecond
}
