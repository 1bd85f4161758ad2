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
	"github.com/devsmilefactory/moversfinder-sub010/core/model"
	"github.com/devsmilefactory/moversfinder-sub010/infra/logger"
)

var (
	broadcastRide   string
	broadcastRadius float64
)

var broadcastCmd = &cobra.Command{
	Use:   "broadcast",
	Short: "Re-broadcast a ride to nearby providers",
	RunE:  runBroadcast,
}

func init() {
	broadcastCmd.Flags().StringVar(&broadcastRide, "ride", "", "ride id (required)")
	broadcastCmd.Flags().Float64Var(&broadcastRadius, "radius", 0, "search radius in km (0 uses the configured default)")
	_ = broadcastCmd.MarkFlagRequired("ride")
	rootCmd.AddCommand(broadcastCmd)
}

func runBroadcast(cmd *cobra.Command, args []string) error {
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
			logger.New("broadcast-command").Errorf("service close: %v", err)
		}
	}()

	ev := model.RideEvent{RideID: broadcastRide, NewStatus: model.StatusPending.String()}
	res, err := svc.Manager.Broadcast(ctx, ev, broadcastRadius)
	if err != nil {
		return err
	}
	fmt.Printf("%d nearby, %d eligible, %d notified\n", res.TotalNearby, res.Eligible, res.Dispatch.Notified)
	return nil
}
