package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/jask/demandboard/internal/api"
	"github.com/jask/demandboard/internal/tui"
)

func newRootCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:           "demandboard",
		Short:         "Terminal board for demands, projects and delivery-team allocations",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			if err := loadDotEnv(".env"); err != nil {
				return err
			}
			if configPath != "" {
				return os.Setenv("DEMANDBOARD_CONFIG", configPath)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBoard(cmd)
		},
	}
	cmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.config/demandboard/config.toml)")
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newWatchCmd())
	return cmd
}

func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

// loadDotEnv exports DEMANDBOARD_* settings from a local .env file when one
// exists. Variables already set in the environment win.
func loadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

func runBoard(cmd *cobra.Command) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	st, err := newClientStack(false)
	if err != nil {
		return err
	}
	defer st.Close()
	st.serveMetrics(ctx)

	dir, err := tui.LoadDirectory(ctx, st.client, st.log)
	if err != nil {
		return fmt.Errorf("cannot reach %s: %w", st.cfg.API.BaseURL, err)
	}
	st.log.WithField("me", dir.Me.Raw).Info("board starting")

	// the scheduler notifies the board and the board refreshes through the
	// scheduler, so the hook closes over app
	var app *tui.App
	sched := st.scheduler(func(kind api.Kind, err error) { app.Notify(kind, err) })
	app = tui.New(ctx, tui.Deps{
		Stores:    st.stores,
		Backend:   st.client,
		Refresher: sched,
		Log:       st.log,
	}, dir)

	sched.Start(ctx)
	defer func() {
		cancel()
		sched.Stop()
	}()

	p := tea.NewProgram(app, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("run board: %w", err)
	}
	return nil
}
