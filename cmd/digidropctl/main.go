// Command digidropctl runs operator tasks against the Digidrop backend's
// database and chain node.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/xstakup-in-house/digi-drop-backend-api/internal/app"
	"github.com/xstakup-in-house/digi-drop-backend-api/internal/config"
	"github.com/xstakup-in-house/digi-drop-backend-api/internal/db"
	"github.com/xstakup-in-house/digi-drop-backend-api/internal/domain"
	"github.com/xstakup-in-house/digi-drop-backend-api/internal/logger"
	"github.com/xstakup-in-house/digi-drop-backend-api/internal/migrations"

	cli "gopkg.in/urfave/cli.v1"
)

var (
	fromFlag = cli.Uint64Flag{
		Name:  "from",
		Usage: "first block to replay",
	}
	toFlag = cli.Uint64Flag{
		Name:  "to",
		Usage: "last block to replay (default: safe head)",
	}
	userFlag = cli.Int64Flag{
		Name:  "user",
		Usage: "user id the transaction is credited to",
	}
	passFlag = cli.IntFlag{
		Name:  "pass",
		Usage: "pass tier the transaction bought",
	}
	upgradeFlag = cli.BoolFlag{
		Name:  "upgrade",
		Usage: "the transaction is a tier upgrade",
	}
	fileFlag = cli.StringFlag{
		Name:  "file",
		Usage: "JSON file holding an array of pass tiers",
	}
	dryRunFlag = cli.BoolFlag{
		Name:  "dry-run",
		Usage: "list migrations without applying them",
	}
)

func newApp() *cli.App {
	a := cli.NewApp()
	a.Name = "digidropctl"
	a.Usage = "Digidrop operator tool"
	a.Version = "0.1.0"
	a.Writer = os.Stdout
	a.Commands = []cli.Command{
		{
			Name:   "migrate",
			Usage:  "apply pending database migrations",
			Flags:  []cli.Flag{dryRunFlag},
			Action: migrate,
		},
		{
			Name:   "replay",
			Usage:  "re-ingest confirmed pass events from a block range",
			Flags:  []cli.Flag{fromFlag, toFlag},
			Action: replay,
		},
		{
			Name:      "verify-tx",
			Usage:     "verify a purchase transaction on chain and record it",
			ArgsUsage: "<tx hash>",
			Flags:     []cli.Flag{userFlag, passFlag, upgradeFlag},
			Action:    verifyTx,
		},
		{
			Name:   "seed-passes",
			Usage:  "insert or update pass tiers from a JSON file",
			Flags:  []cli.Flag{fileFlag},
			Action: seedPasses,
		},
		{
			Name:   "leaderboard",
			Usage:  "print the current pass holder leaderboard",
			Action: leaderboard,
		},
	}
	return a
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// withApp loads configuration, builds the service graph and runs fn.
func withApp(fn func(ctx context.Context, a *app.App) error) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}
	logger.Init(cfg.LogLevel, cfg.LogJSON)

	a, err := app.New(ctx, cfg, logger.Get())
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

func migrate(c *cli.Context) error {
	ctx := context.Background()
	if c.Bool(dryRunFlag.Name) {
		names, err := migrations.Names()
		if err != nil {
			return err
		}
		for _, n := range names {
			fmt.Fprintln(c.App.Writer, n)
		}
		return nil
	}

	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}
	if cfg.StorageDriver != config.StoragePostgres {
		return errors.New("migrate needs STORAGE_DRIVER=postgres")
	}
	logger.Init(cfg.LogLevel, cfg.LogJSON)

	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	applied, err := migrations.Apply(ctx, pool)
	for _, n := range applied {
		fmt.Fprintln(c.App.Writer, "applied", n)
	}
	if err != nil {
		return err
	}
	if len(applied) == 0 {
		fmt.Fprintln(c.App.Writer, "nothing to apply")
	}
	return nil
}

func replay(c *cli.Context) error {
	from := c.Uint64(fromFlag.Name)
	if from == 0 {
		return errors.New("--from is required")
	}
	return withApp(func(ctx context.Context, a *app.App) error {
		p := a.Poller(from)
		if p == nil {
			return errors.New("chain is not configured")
		}
		return p.Replay(ctx, from, c.Uint64(toFlag.Name))
	})
}

func verifyTx(c *cli.Context) error {
	hash := c.Args().First()
	if hash == "" {
		return errors.New("transaction hash argument is required")
	}
	sub := domain.Submission{
		TxHash:    hash,
		PassID:    c.Int(passFlag.Name),
		IsUpgrade: c.Bool(upgradeFlag.Name),
	}
	userID := c.Int64(userFlag.Name)
	if userID == 0 || sub.PassID == 0 {
		return errors.New("--user and --pass are required")
	}

	return withApp(func(ctx context.Context, a *app.App) error {
		res, err := a.Ledger.VerifyAndRecordClientSubmission(ctx, userID, sub)
		if err != nil {
			return err
		}
		out, _ := json.MarshalIndent(res, "", "  ")
		fmt.Fprintln(c.App.Writer, string(out))
		return nil
	})
}

func seedPasses(c *cli.Context) error {
	path := c.String(fileFlag.Name)
	if path == "" {
		return errors.New("--file is required")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var tiers []domain.PassTier
	if err := json.Unmarshal(raw, &tiers); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	return withApp(func(ctx context.Context, a *app.App) error {
		for i := range tiers {
			t := &tiers[i]
			if t.ID <= 0 || t.PointPower <= 0 {
				return fmt.Errorf("tier %q: pass_id and point_power must be positive", t.Name)
			}
			if err := a.Store.UpsertPass(ctx, t); err != nil {
				return fmt.Errorf("upsert pass %d: %w", t.ID, err)
			}
			fmt.Fprintf(c.App.Writer, "pass %d %s (power %d) -> %s\n", t.ID, t.Name, t.PointPower, t.UUID)
		}
		a.Catalog.Invalidate()
		return nil
	})
}

func leaderboard(c *cli.Context) error {
	return withApp(func(ctx context.Context, a *app.App) error {
		entries, err := a.Rank.Leaderboard(ctx)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "RANK\tUSER\tWALLET\tPOINTS\tPASS")
		for _, e := range entries {
			fmt.Fprintf(w, "%d\t%d\t%s\t%d\t%s\n", e.Rank, e.UserID, e.WalletAddress, e.ScoredPoints, e.PassName)
		}
		return w.Flush()
	})
}
