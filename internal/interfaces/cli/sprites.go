package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/turtacn/PlotAtlas/internal/application/atlas"
	"github.com/turtacn/PlotAtlas/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/PlotAtlas/pkg/errors"
)

// SpriteFile is one icon written by `sprites render`.
type SpriteFile struct {
	Name  string `json:"name"`
	Kind  string `json:"kind"`
	Count int    `json:"count,omitempty"`
	Path  string `json:"path"`
	Bytes int    `json:"bytes"`
}

// SpriteFiles renders written icons.
type SpriteFiles []SpriteFile

func (s SpriteFiles) TableHeaders() []string { return []string{"Name", "Kind", "Count", "Bytes", "Path"} }

func (s SpriteFiles) TableRows() [][]string {
	rows := make([][]string, 0, len(s))
	for _, f := range s {
		count := ""
		if f.Count > 0 {
			count = strconv.Itoa(f.Count)
		}
		rows = append(rows, []string{f.Name, f.Kind, count, strconv.Itoa(f.Bytes), f.Path})
	}
	return rows
}

type manifestTable struct{ m *atlas.Manifest }

func (t manifestTable) TableHeaders() []string { return []string{"Name", "Kind", "Count", "Bytes", "Key"} }

func (t manifestTable) TableRows() [][]string {
	rows := make([][]string, 0, len(t.m.Icons))
	for _, e := range t.m.Icons {
		count := ""
		if e.Count > 0 {
			count = strconv.Itoa(e.Count)
		}
		rows = append(rows, []string{e.Name, string(e.Kind), count, strconv.FormatInt(e.Bytes, 10), e.Key})
	}
	return rows
}

func newSpritesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sprites",
		Short: "Render or publish the marker icons of the current listings",
	}
	cmd.AddCommand(newSpritesRenderCmd(), newSpritesPublishCmd())
	return cmd
}

func newSpritesRenderCmd() *cobra.Command {
	var outDir string
	cmd := &cobra.Command{
		Use:   "render",
		Short: "Write one PNG per city badge plus the plot pin to a directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if outDir == "" {
				return errors.InvalidParam("--out is required")
			}
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			ctx, cancel := cliCtx.operation(cmd.Context())
			defer cancel()

			comps, err := cliCtx.components(ctx)
			if err != nil {
				return err
			}
			defer comps.Close()

			icons, version, err := comps.SpritePublisher().Render(ctx)
			if err != nil {
				return err
			}
			if err := os.MkdirAll(outDir, 0o755); err != nil {
				return errors.Wrapf(err, errors.ErrCodeStorageError, "create %s", outDir)
			}
			files := make(SpriteFiles, 0, len(icons))
			for _, icon := range icons {
				path := filepath.Join(outDir, icon.Descriptor.Name+".png")
				if err := os.WriteFile(path, icon.PNG, 0o644); err != nil {
					return errors.Wrapf(err, errors.ErrCodeStorageError, "write %s", path)
				}
				files = append(files, SpriteFile{
					Name:  icon.Descriptor.Name,
					Kind:  string(icon.Descriptor.Kind),
					Count: icon.Descriptor.Count,
					Path:  path,
					Bytes: len(icon.PNG),
				})
			}
			cliCtx.Logger.Info("sprites rendered",
				logging.String("version", version),
				logging.Int("count", len(files)),
				logging.String("dir", outDir),
			)
			return PrintResult(cmd, files)
		},
	}
	cmd.Flags().StringVar(&outDir, "out", "", "output directory (required)")
	_ = cmd.MarkFlagRequired("out")
	return cmd
}

func newSpritesPublishCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "publish",
		Short: "Upload the icons and their manifest to object storage",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			if !cliCtx.Config.MinIO.Enabled {
				return errors.New(errors.ErrCodeConfigurationMissing, "object storage is disabled; set minio.enabled")
			}
			ctx, cancel := cliCtx.operation(cmd.Context())
			defer cancel()

			comps, err := cliCtx.components(ctx)
			if err != nil {
				return err
			}
			defer comps.Close()

			manifest, err := comps.SpritePublisher().Publish(ctx)
			if err != nil {
				return err
			}
			if cliCtx.OutputFormat == "json" {
				return printJSON(cmd, manifest)
			}
			if err := PrintResult(cmd, manifestTable{manifest}); err != nil {
				return err
			}
			PrintSuccess(cmd, fmt.Sprintf("published %d sprites for version %s", len(manifest.Icons), manifest.Version))
			return nil
		},
	}
}

//Personal.AI order the ending
