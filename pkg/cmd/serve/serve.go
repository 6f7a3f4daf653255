package serve

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/asaskevich/EventBus"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/tracelink/tracelink/pkg/bgtask"
	"github.com/tracelink/tracelink/pkg/config"
	pkgconsume "github.com/tracelink/tracelink/pkg/consume"
	"github.com/tracelink/tracelink/pkg/onboard"
	"github.com/tracelink/tracelink/pkg/telemetry"
)

func New(vp *viper.Viper) *cobra.Command {
	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the onboarding API with an in-process loopback consumer",
		RunE: func(cmd *cobra.Command, args []string) error {
			// init main context of `serve`
			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, os.Kill)
			defer cancel()

			// init telemetry pipeline
			cfg := config.NewTelemetry(vp)
			provider, archive := telemetry.NewTelemetryProvider(cfg)
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), config.FlushTimeout)
				defer cancel()
				if err := provider.Shutdown(shutdownCtx); err != nil {
					logrus.Error(err)
				}
			}()

			// init producer collaborators
			bus := EventBus.New()
			queue := onboard.NewBusQueue(bus, config.QueueTopic)
			store := onboard.NewStore(vp.GetString("customer-dsn"))
			reg := prometheus.NewRegistry()
			metrics := onboard.NewMetrics(reg)
			workflow := onboard.NewWorkflow(provider.Tracer(), store, queue, onboard.LogNotifier{}, metrics)
			server := onboard.NewServer(provider.Tracer(), workflow, metrics, reg)

			// loopback consumer: every queued message re-enters through the
			// extract path, so one process shows the whole stitched trace
			consumer := pkgconsume.NewConsumer(provider, nil)
			err := bus.SubscribeAsync(config.QueueTopic, func(msg onboard.Message, messageID string) {
				consumer.Handle(ctx, []pkgconsume.Record{{
					MessageID:  messageID,
					Body:       msg.Body,
					Attributes: msg.Attributes,
					Source:     config.QueueTopic,
				}})
			}, false)
			if err != nil {
				return err
			}

			// init bgTaskManager
			bgTaskManager := bgtask.NewBgTaskManager(provider, archive)
			bgTaskManager.StartAll()
			defer bgTaskManager.StopAll()

			addr := vp.GetString("listen-addr")
			if addr == "" {
				addr = ":8000"
			}
			srv := &http.Server{Addr: addr, Handler: server.Router()}
			go func() {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = srv.Shutdown(shutdownCtx)
			}()

			logrus.Infof("onboarding API listening on %s", addr)
			if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	return serve
}
