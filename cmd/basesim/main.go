package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"reefbase/internal/adapter/ruleset"
	"reefbase/internal/adapter/worker"
	"reefbase/internal/adapter/wsbridge"
	"reefbase/internal/app/baseaction"
	"reefbase/internal/app/ports"
	"reefbase/internal/app/session"
	statesync "reefbase/internal/app/sync"
	"reefbase/internal/domain/economy"

	"github.com/cloudwego/hertz/pkg/common/hlog"
	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

type runOptions struct {
	API         string
	PlayerID    string
	PlayerKey   string
	Tick        time.Duration
	Debounce    time.Duration
	Listen      string
	RulesetFile string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := runOptions{}
	root := &cobra.Command{
		Use:   "basesim",
		Short: "Run a reef base locally and keep it in sync with the worker",
		Long: `Ticks a base in-process, saves it to the worker after every quiet period
and serves a websocket at /ws for a UI to render and drive it.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, opts)
		},
	}
	f := root.Flags()
	f.StringVar(&opts.API, "api", os.Getenv("REEF_API"), "worker base url; empty runs offline")
	f.StringVar(&opts.PlayerID, "player", os.Getenv("REEF_PLAYER_ID"), "player id")
	f.StringVar(&opts.PlayerKey, "key", os.Getenv("REEF_PLAYER_KEY"), "player key")
	f.DurationVar(&opts.Tick, "tick", 250*time.Millisecond, "simulation tick period")
	f.DurationVar(&opts.Debounce, "debounce", statesync.DefaultDebounce, "quiet period before a save")
	f.StringVar(&opts.Listen, "listen", ":8090", "websocket listen address")
	f.StringVar(&opts.RulesetFile, "ruleset", "", "optional ruleset YAML overrides")

	root.AddCommand(newCatalogCmd(), newRegisterCmd())
	return root
}

func loadRules(path string) (economy.Ruleset, error) {
	rules := economy.DefaultRuleset()
	if path == "" {
		return rules, nil
	}
	f, err := ruleset.Load(path)
	if err != nil {
		return rules, err
	}
	return f.Apply(rules)
}

func run(ctx context.Context, opts runOptions) error {
	rules, err := loadRules(opts.RulesetFile)
	if err != nil {
		return fmt.Errorf("load ruleset: %w", err)
	}

	var (
		stateRemote ports.StateRemote
		baseRemote  ports.BaseRemote
	)
	if opts.API != "" {
		if opts.PlayerID == "" || opts.PlayerKey == "" {
			return errors.New("--player and --key are required with --api (see `basesim register`)")
		}
		c, err := worker.New(worker.Config{BaseURL: opts.API, PlayerID: opts.PlayerID, PlayerKey: opts.PlayerKey})
		if err != nil {
			return err
		}
		stateRemote, baseRemote = c, c
	}

	var syncer *statesync.Synchronizer
	sess := session.New(session.Config{
		Catalog: economy.DefaultCatalog(),
		Rules:   rules,
		Rand:    baseaction.SharedRand{},
		OnMutate: func() {
			if syncer != nil {
				syncer.MarkDirty()
			}
		},
	}, economy.NewBaseSnapshot(), time.Now())

	if stateRemote != nil {
		syncer = statesync.New(stateRemote, sess, opts.Debounce)
		if err := syncer.Load(ctx); err != nil {
			return fmt.Errorf("initial load: %w", err)
		}
		if syncer.UpdatedAt() == nil {
			syncer.MarkDirty()
		}
		go func() {
			if err := syncer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				hlog.Errorf("synchronizer stopped: %v", err)
			}
		}()
	} else {
		hlog.Warnf("no --api given, running offline without saves")
	}

	bridge := wsbridge.NewServer(sess, baseRemote)
	go sess.RunTicker(ctx, opts.Tick, nil, bridge.Broadcast)

	mux := http.NewServeMux()
	mux.Handle("/ws", bridge.Handler())
	srv := &http.Server{Addr: opts.Listen, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	hlog.Infof("basesim listening on %s/ws (api=%q tick=%s)", opts.Listen, opts.API, opts.Tick)

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	if syncer != nil {
		if err := syncer.Flush(shutdownCtx); err != nil {
			hlog.Warnf("final save failed: %v", err)
		}
	}
	return nil
}

func newCatalogCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "catalog",
		Short: "Print buildings, tier costs and actions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return printCatalog(cmd.OutOrStdout(), economy.DefaultCatalog())
		},
	}
}

func newRegisterCmd() *cobra.Command {
	var api string
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create a player on the worker and print its credentials",
		RunE: func(cmd *cobra.Command, _ []string) error {
			id, key, err := worker.Register(cmd.Context(), api)
			if err != nil {
				return err
			}
			color.New(color.FgGreen, color.Bold).Fprintln(cmd.OutOrStdout(), "registered")
			fmt.Fprintf(cmd.OutOrStdout(), "  --player %s --key %s\n", id, key)
			return nil
		},
	}
	cmd.Flags().StringVar(&api, "api", os.Getenv("REEF_API"), "worker base url")
	return cmd
}

func printCatalog(w io.Writer, catalog economy.Catalog) error {
	color.New(color.FgCyan, color.Bold).Fprintln(w, "Reef base catalog")

	table := tablewriter.NewTable(w,
		tablewriter.WithHeader([]string{"Building", "Priority", "Tier 1 cost", "Tier 1 time", "Passive/s", "Actions"}),
	)
	for _, row := range catalogRows(catalog) {
		if err := table.Append(row); err != nil {
			return err
		}
	}
	return table.Render()
}

func catalogRows(catalog economy.Catalog) [][]string {
	var rows [][]string
	for _, def := range catalog.Buildings() {
		t1 := def.Tier(1)
		actions := make([]string, 0, len(def.Actions))
		for _, a := range def.Actions {
			actions = append(actions, fmt.Sprintf("%s (%s)", a.ID, a.Cooldown))
		}
		rows = append(rows, []string{
			def.Name,
			fmt.Sprintf("%d", def.Priority),
			formatResources(t1.Cost),
			t1.Duration.String(),
			formatResources(def.PassiveRate),
			strings.Join(actions, ", "),
		})
	}
	return rows
}

func formatResources(r economy.Resources) string {
	var parts []string
	for _, k := range economy.AllResources {
		if v := r.Get(k); v != 0 {
			parts = append(parts, fmt.Sprintf("%s %g", k, v))
		}
	}
	if len(parts) == 0 {
		return "-"
	}
	return strings.Join(parts, ", ")
}
