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
	notifyRide      string
	notifyFrom      string
	notifyTo        string
	notifyPassenger string
	notifyDriver    string
)

var notifyCmd = &cobra.Command{
	Use:   "notify",
	Short: "Inject a test ride event through the full pipeline",
	RunE:  runNotify,
}

func init() {
	notifyCmd.Flags().StringVar(&notifyRide, "ride", "ride-test", "ride id")
	notifyCmd.Flags().StringVar(&notifyFrom, "from", "pending", "previous status")
	notifyCmd.Flags().StringVar(&notifyTo, "to", "accepted", "new status")
	notifyCmd.Flags().StringVar(&notifyPassenger, "passenger", "", "passenger id")
	notifyCmd.Flags().StringVar(&notifyDriver, "driver", "", "driver id")
	rootCmd.AddCommand(notifyCmd)
}

func runNotify(cmd *cobra.Command, args []string) error {
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
			logger.New("notify-command").Errorf("service close: %v", err)
		}
	}()

	ev := model.RideEvent{
		RideID:      notifyRide,
		OldStatus:   notifyFrom,
		NewStatus:   notifyTo,
		PassengerID: notifyPassenger,
		DriverID:    notifyDriver,
	}
	res, err := svc.Manager.StatusChange(ctx, ev)
	if err != nil {
		return err
	}
	fmt.Printf("notified %d of %d recipients\n", res.Notified, res.Attempted)
	for _, r := range res.Results {
		if r.Err != nil {
			fmt.Printf("  %s: %v\n", r.RecipientID, r.Err)
		}
	}
	return nil
}
