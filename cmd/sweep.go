package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/devsmilefactory/moversfinder-sub010/app"
	"github.com/devsmilefactory/moversfinder-sub010/config"
	"github.com/devsmilefactory/moversfinder-sub010/infra/logger"
	"github.com/devsmilefactory/moversfinder-sub010/jobs/retrysweep"
)

var (
	sweepMaxRetries int
	sweepLimit      int
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Re-attempt undelivered notifications",
	RunE:  runSweep,
}

func init() {
	sweepCmd.Flags().IntVar(&sweepMaxRetries, "max-retries", retrysweep.DefaultMaxRetries, "retry budget per notification")
	sweepCmd.Flags().IntVar(&sweepLimit, "limit", 0, "maximum rows per pass (0 uses the store default)")
	rootCmd.AddCommand(sweepCmd)
}

func runSweep(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	svc, err := app.New(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Close(); err != nil {
			logger.New("sweep-command").Errorf("service close: %v", err)
		}
	}()

	res, err := svc.Sweep(ctx, sweepMaxRetries, sweepLimit)
	if err != nil {
		return err
	}
	fmt.Printf("scanned %d, delivered %d, skipped %d, still failing %d\n", res.Scanned, res.Delivered, res.Skipped, res.Failed)
	return nil
}
