package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	somlog "github.com/scanomatic/som/common/log"
	"github.com/scanomatic/som/config"
	"github.com/scanomatic/som/somd"
)

// Scan-o-Matic coordinator daemon.
//	somd [--config som.yaml] [--addr host:port] [--log_level info]
// Settings also come from SOM_* environment variables and the nearest .env file.

func main() {
	var cfgPath, addr, level string
	root := &cobra.Command{
		Use:           "somd",
		Short:         "Scan-o-Matic job coordinator",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if wd, err := os.Getwd(); err == nil {
				loaded, err := config.LoadDotEnv(wd)
				if err != nil {
					return err
				}
				if loaded != "" {
					log.Infof("loaded environment from %s", loaded)
				}
			}
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Addr = addr
			}
			if level != "" {
				cfg.LogLevel = level
			}
			if err := somlog.Configure(cfg.LogLevel, cfg.LogJSON); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return somd.Run(ctx, cfg, nil)
		},
	}
	root.Flags().StringVar(&cfgPath, "config", "", "config file, default som.yaml in . or /etc/som")
	root.Flags().StringVar(&addr, "addr", "", "bind address, overrides the config")
	root.Flags().StringVar(&level, "log_level", "", "error|warn|info|debug, overrides the config")

	if err := root.ExecuteContext(context.Background()); err != nil {
		log.Fatal("Error running somd: ", err)
	}
}
