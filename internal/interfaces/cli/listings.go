package cli

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/turtacn/PlotAtlas/internal/bootstrap"
	"github.com/turtacn/PlotAtlas/internal/domain/property"
	"github.com/turtacn/PlotAtlas/internal/infrastructure/database/postgres/repositories"
	"github.com/turtacn/PlotAtlas/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/PlotAtlas/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/PlotAtlas/pkg/errors"
)

// ListingSummary counts listings per city.
type ListingSummary struct {
	Total  int            `json:"total"`
	Cities map[string]int `json:"cities"`
	Placed int            `json:"withCoordinates"`
}

// Summarize counts props per literal city name.
func Summarize(props []*property.Property) ListingSummary {
	s := ListingSummary{Total: len(props), Cities: make(map[string]int)}
	for _, p := range props {
		s.Cities[p.City]++
		if p.Coordinates != nil {
			s.Placed++
		}
	}
	return s
}

func (s ListingSummary) TableHeaders() []string { return []string{"City", "Listings"} }

func (s ListingSummary) TableRows() [][]string {
	cities := make([]string, 0, len(s.Cities))
	for c := range s.Cities {
		cities = append(cities, c)
	}
	sort.Strings(cities)
	rows := make([][]string, 0, len(cities)+1)
	for _, c := range cities {
		rows = append(rows, []string{c, strconv.Itoa(s.Cities[c])})
	}
	return append(rows, []string{"(total)", strconv.Itoa(s.Total)})
}

func newListingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "listings",
		Short: "Validate and import listing files",
	}
	cmd.AddCommand(newListingsValidateCmd(), newListingsImportCmd())
	return cmd
}

func newListingsValidateCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check a JSON listings file without importing it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			props, err := bootstrap.LoadListingsFile(file)
			if err != nil {
				return err
			}
			summary := Summarize(props)
			warnSimilarCities(cmd, summary)
			return PrintResult(cmd, summary)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "JSON array of listings (required)")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func newListingsImportCmd() *cobra.Command {
	var (
		file   string
		notify bool
	)
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Upsert a JSON listings file into the database in one transaction",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			props, err := bootstrap.LoadListingsFile(file)
			if err != nil {
				return err
			}
			for i, p := range props {
				if p.ID == "" {
					return errors.Newf(errors.ErrCodePropertyInvalid, "listing %d has no id", i)
				}
			}

			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			if !cliCtx.Config.Database.Enabled {
				return errors.New(errors.ErrCodeConfigurationMissing, "database is disabled; set database.enabled")
			}
			ctx, cancel := cliCtx.operation(cmd.Context())
			defer cancel()

			comps, err := cliCtx.components(ctx)
			if err != nil {
				return err
			}
			defer comps.Close()

			err = comps.Listings.WithTx(ctx, func(tx *repositories.ListingRepository) error {
				for _, p := range props {
					if err := tx.Upsert(ctx, p); err != nil {
						return errors.Wrap(err, errors.CodeUnknown, "upsert "+p.ID)
					}
				}
				return nil
			})
			if err != nil {
				return err
			}
			summary := Summarize(props)
			cliCtx.Logger.Info("listings imported",
				logging.String("file", file),
				logging.Int("count", summary.Total),
			)
			warnSimilarCities(cmd, summary)

			if notify {
				if err := publishBulkReload(cmd, cliCtx); err != nil {
					return err
				}
			}
			return PrintResult(cmd, summary)
		},
	}
	f := cmd.Flags()
	f.StringVarP(&file, "file", "f", "", "JSON array of listings (required)")
	f.BoolVar(&notify, "notify", false, "publish a bulk_reload event after the import")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func publishBulkReload(cmd *cobra.Command, cliCtx *CLIContext) error {
	cfg := cliCtx.Config.Kafka
	if !cfg.Enabled {
		return errors.New(errors.ErrCodeConfigurationMissing, "kafka is disabled; cannot --notify")
	}
	msg, err := kafka.NewChangeMessage(cfg.ListingTopic, property.ChangeEvent{Type: property.ChangeBulkReload})
	if err != nil {
		return err
	}
	producer, err := cliCtx.deps.NewProducer(cfg, cliCtx.Logger)
	if err != nil {
		return err
	}
	defer producer.Close()
	if err := producer.Publish(cmd.Context(), msg); err != nil {
		return err
	}
	PrintSuccess(cmd, "bulk_reload published to "+cfg.ListingTopic)
	return nil
}

func warnSimilarCities(cmd *cobra.Command, s ListingSummary) {
	cities := make([]string, 0, len(s.Cities))
	for c := range s.Cities {
		cities = append(cities, c)
	}
	for _, group := range SimilarCityNames(cities) {
		PrintWarning(cmd, fmt.Sprintf("city names differ only by case or spacing: %s", quoteAll(group)))
	}
}

//Personal.AI order the ending
