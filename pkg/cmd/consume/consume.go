package consume

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/tracelink/tracelink/pkg/config"
	pkgconsume "github.com/tracelink/tracelink/pkg/consume"
	"github.com/tracelink/tracelink/pkg/telemetry"
)

func New(vp *viper.Viper) *cobra.Command {
	var eventPath string

	consume := &cobra.Command{
		Use:   "consume",
		Short: "Process one queue trigger event and exit, flushing spans first",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			raw, err := os.ReadFile(eventPath)
			if err != nil {
				return fmt.Errorf("reading event file: %w", err)
			}
			records, err := pkgconsume.ParseEvent(raw)
			if err != nil {
				return err
			}

			cfg := config.NewTelemetry(vp)
			if cfg.ServiceName == "onboarding-api" {
				cfg.ServiceName = "onboarding-consumer"
			}
			provider, _ := telemetry.NewTelemetryProvider(cfg)
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), config.FlushTimeout)
				defer cancel()
				if err := provider.Shutdown(shutdownCtx); err != nil {
					logrus.Error(err)
				}
			}()

			consumer := pkgconsume.NewConsumer(provider, nil)
			result := consumer.Handle(ctx, records)

			out, _ := json.Marshal(result)
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}
	consume.Flags().StringVar(&eventPath, "file", "event.json", "Path of the queue trigger event")
	return consume
}
