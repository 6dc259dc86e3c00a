package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-iam/cmd/iam/cli"
	"github.com/odyssey-erp/odyssey-iam/internal/app"
	"github.com/odyssey-erp/odyssey-iam/internal/observability"
	"github.com/odyssey-erp/odyssey-iam/internal/platform/db"
	"github.com/odyssey-erp/odyssey-iam/internal/rbac"
	"github.com/odyssey-erp/odyssey-iam/internal/shared"
	"github.com/odyssey-erp/odyssey-iam/jobs"
)

const usage = `usage: iam <command> [<args>]

Commands
   migrate     Applies pending schema migrations.
   seed        Creates the roles and accesses declared in a TOML file.
               -file <path>   seed file (default roles.toml)
   user        Manages accounts: create, activate, deactivate, passwd, role, list.
               -username -email -password -first-name -last-name -role <name>
   jobs        Prints the notification queue state.
   help        Displays this help message.

Configuration is read from the environment (PG_DSN, REDIS_ADDR, LOG_FORMAT, ...).
Set METRICS_PUSHGATEWAY_URL to push operation metrics when a command finishes.
`

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping iam command")
		return
	}
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := app.NewLogger(cfg)
	metrics := observability.NewMetrics()

	cmd, args := flag.Arg(0), flag.Args()[1:]
	switch cmd {
	case "migrate":
		err = withPool(ctx, cfg, func(pool *pgxpool.Pool) error {
			return migrate(ctx, pool, logger)
		})
	case "seed":
		err = seed(ctx, cfg, metrics, logger, args)
	case "user":
		err = withPool(ctx, cfg, func(pool *pgxpool.Pool) error {
			return manageUsers(ctx, cfg, pool, metrics, logger, args)
		})
	case "jobs":
		err = queueStats(cfg)
	case "help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", cmd)
		flag.Usage()
		os.Exit(2)
	}
	if pushErr := metrics.Push(context.Background(), cfg.MetricsPushURL, "iam_"+cmd); pushErr != nil {
		logger.Warn("push metrics", slog.Any("error", pushErr))
	}
	if err != nil {
		logger.Error(cmd, slog.Any("error", err))
		os.Exit(1)
	}
}

// serviceDeps assembles the collaborators shared by the RBAC services.
func serviceDeps(pool *pgxpool.Pool, metrics *observability.Metrics, logger *slog.Logger) rbac.Deps {
	return rbac.Deps{
		Store:   rbac.NewPGStore(pool),
		Audit:   shared.NewAuditLogger(pool),
		Metrics: metrics,
		Logger:  logger,
	}
}

func withPool(ctx context.Context, cfg *app.Config, fn func(*pgxpool.Pool) error) error {
	pool, err := db.New(ctx, cfg.PGDSN, db.PoolOptions{MaxConns: cfg.PGMaxConns, MaxConnLifetime: cfg.PGMaxConnLifetime})
	if err != nil {
		return err
	}
	defer pool.Close()
	return fn(pool)
}

func migrate(ctx context.Context, pool *pgxpool.Pool, logger *slog.Logger) error {
	applied, err := db.Migrate(ctx, pool)
	if err != nil {
		return err
	}
	if len(applied) == 0 {
		logger.Info("schema up to date")
		return nil
	}
	for _, version := range applied {
		logger.Info("migration applied", slog.String("version", version))
	}
	return nil
}

func seed(ctx context.Context, cfg *app.Config, metrics *observability.Metrics, logger *slog.Logger, args []string) error {
	fs := flag.NewFlagSet("seed", flag.ContinueOnError)
	path := fs.String("file", "roles.toml", "seed file path")
	if err := fs.Parse(args); err != nil {
		return err
	}
	file, err := cli.LoadSeedFile(*path)
	if err != nil {
		return err
	}
	return withPool(ctx, cfg, func(pool *pgxpool.Pool) error {
		deps := serviceDeps(pool, metrics, logger)
		seeder := cli.Seeder{
			Accesses: rbac.NewAccessService(deps),
			Roles:    rbac.NewRoleService(deps),
		}
		report, err := seeder.Apply(ctx, file)
		if err != nil {
			return err
		}
		logger.Info("seed applied",
			slog.String("file", *path),
			slog.Int("accesses_created", report.AccessesCreated),
			slog.Int("roles_created", report.RolesCreated),
			slog.Int("grants", report.Grants),
		)
		return nil
	})
}

func manageUsers(ctx context.Context, cfg *app.Config, pool *pgxpool.Pool, metrics *observability.Metrics, logger *slog.Logger, args []string) error {
	deps := serviceDeps(pool, metrics, logger)
	if cfg.NotifyUsers {
		client, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
		if err != nil {
			return err
		}
		defer client.Close()
		deps.Notifier = client
	}
	cmd := cli.UserCommand{
		Users:  rbac.NewUserService(deps),
		Roles:  rbac.NewRoleService(deps),
		Stdout: os.Stdout,
	}
	return cmd.Run(ctx, args)
}

func queueStats(cfg *app.Config) error {
	jobsCLI := cli.NewJobsCLI(cfg.RedisAddr)
	defer jobsCLI.Close()
	stats, err := jobsCLI.InspectQueue()
	if err != nil {
		return err
	}
	fmt.Printf("queue=%s pending=%d active=%d scheduled=%d retry=%d archived=%d\n",
		stats.Queue, stats.Pending, stats.Active, stats.Scheduled, stats.Retry, stats.Archived)
	pending, err := jobsCLI.ListPendingNotifications(20)
	if err != nil {
		return err
	}
	for _, t := range pending {
		fmt.Printf("  %s %s\n", t.ID, t.Type)
	}
	return nil
}
