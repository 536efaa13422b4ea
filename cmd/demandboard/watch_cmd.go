package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/jask/demandboard/internal/api"
)

func newWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Poll the backend without the UI and log every refresh",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			st, err := newClientStack(true)
			if err != nil {
				return err
			}
			defer st.Close()
			st.serveMetrics(ctx)

			sched := st.scheduler(func(kind api.Kind, err error) {
				entry := st.log.WithField("kind", string(kind))
				if err != nil {
					entry.WithError(err).Warn("refresh failed")
					return
				}
				entry.WithFields(logrus.Fields{
					"records": len(st.stores.ByKind(kind).Records()),
				}).Info("refreshed")
			})
			st.log.WithFields(logrus.Fields{
				"backend":  st.cfg.API.BaseURL,
				"interval": sched.Interval().String(),
			}).Info("watching")
			sched.Start(ctx)
			<-ctx.Done()
			sched.Stop()
			return nil
		},
	}
}
