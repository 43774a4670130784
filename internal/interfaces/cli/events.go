package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/turtacn/PlotAtlas/internal/domain/property"
	"github.com/turtacn/PlotAtlas/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/PlotAtlas/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/PlotAtlas/pkg/errors"
)

func newEventsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Publish listing change events",
	}
	cmd.AddCommand(newEventsPublishCmd())
	return cmd
}

func newEventsPublishCmd() *cobra.Command {
	var (
		changeType string
		city       string
		propertyID string
	)
	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Publish one change event on the listing topic",
		Long: "Publish one change event on the listing topic.  Workers invalidate their\n" +
			"caches on any event and republish sprites on bulk_reload.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ev := property.ChangeEvent{
				Type:       property.ChangeType(changeType),
				City:       city,
				PropertyID: propertyID,
			}
			if !ev.Type.IsValid() {
				return errors.InvalidParam("unknown change type").
					WithDetail(fmt.Sprintf("%q; want created, updated, deleted or bulk_reload", changeType))
			}
			if ev.Type != property.ChangeBulkReload && propertyID == "" {
				return errors.InvalidParam("--id is required for " + changeType + " events")
			}

			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			cfg := cliCtx.Config.Kafka
			if !cfg.Enabled {
				return errors.New(errors.ErrCodeConfigurationMissing, "kafka is disabled; set kafka.enabled")
			}

			msg, err := kafka.NewChangeMessage(cfg.ListingTopic, ev)
			if err != nil {
				return err
			}
			producer, err := cliCtx.deps.NewProducer(cfg, cliCtx.Logger)
			if err != nil {
				return err
			}
			defer producer.Close()

			ctx, cancel := cliCtx.operation(cmd.Context())
			defer cancel()
			if err := producer.Publish(ctx, msg); err != nil {
				return err
			}
			cliCtx.Logger.Info("change event published",
				logging.String("topic", cfg.ListingTopic),
				logging.String("type", changeType),
				logging.String("city", city),
			)
			PrintSuccess(cmd, fmt.Sprintf("%s event published to %s", changeType, cfg.ListingTopic))
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&changeType, "type", string(property.ChangeBulkReload), "change type (created, updated, deleted, bulk_reload)")
	f.StringVar(&city, "city", "", "city of the changed listing")
	f.StringVar(&propertyID, "id", "", "id of the changed listing")
	return cmd
}

//Personal.AI order the ending
