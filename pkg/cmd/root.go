package cmd

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	cmdconsume "github.com/tracelink/tracelink/pkg/cmd/consume"
	"github.com/tracelink/tracelink/pkg/cmd/serve"
	"github.com/tracelink/tracelink/pkg/config"
)

func New(vp *viper.Viper) *cobra.Command {
	root := &cobra.Command{
		Use:   "tracelink",
		Short: "tracelink",
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			config.ApplyLogLevel()
			if config.Debug {
				logrus.Info("enabled debug mode")
			}
		},
	}
	root.PersistentFlags().BoolVar(&config.Debug, "debug", false, "Enable debug mode")
	return root
}

func Execute() {
	vp := config.NewViper()

	root := New(vp)
	root.AddCommand(serve.New(vp))
	root.AddCommand(cmdconsume.New(vp))

	err := root.Execute()
	if err != nil {
		os.Exit(1)
	}
}
