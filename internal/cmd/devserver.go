package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"turing-log-tail/internal/devserver"
	"turing-log-tail/pkg/log"
)

var (
	devAddr   string
	devPrefix string
)

var devserverCmd = &cobra.Command{
	Use:   "devserver",
	Short: "Serve the logs endpoint from local Docker containers",
	Long: `Serve GET /projects/{project_id}/{resource}/{resource_id}/logs from the
logs of local containers labeled with logtail.project_id, logtail.resource,
logtail.resource_id and logtail.component.

Example:
  docker run -d --label logtail.project_id=1 --label logtail.resource=routers \
    --label logtail.resource_id=7 --label logtail.component=router my-router
  logtail devserver --addr :8080
  logtail tail --project 1 --router 7`,
	Args: cobra.NoArgs,
	RunE: runDevserver,
}

func init() {
	devserverCmd.Flags().StringVar(&devAddr, "addr", ":8080", "listen address")
	devserverCmd.Flags().StringVar(&devPrefix, "prefix", "/v1", "path prefix of the logs route")
	rootCmd.AddCommand(devserverCmd)
}

func runDevserver(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	log.InitLog(cfg.LogLevel, cfg.LogFormat, os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	source, err := devserver.NewDockerSource()
	if err != nil {
		return err
	}
	return devserver.New(source, devAddr, devPrefix).Run(ctx)
}
