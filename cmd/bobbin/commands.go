package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/chazu/bobbin/pkg/format"
	"github.com/chazu/bobbin/pkg/route"
	"github.com/chazu/bobbin/pkg/scene"
	"github.com/chazu/bobbin/pkg/svg"
	"github.com/chazu/bobbin/pkg/thread"
)

func (c *cli) exportCmd() *cobra.Command {
	var (
		formats   []string
		outputDir string
		policy    string
		sequence  string
		length    float64
	)
	cmd := &cobra.Command{
		Use:   "export <design>",
		Short: "Route a design and write machine files",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := c.loadDesign(args[0])
			if err != nil {
				return err
			}
			if policy != "" {
				d.routing.Policy = route.Policy(policy)
			}
			if sequence != "" {
				d.routing.SequenceMode = route.SequenceMode(sequence)
			}
			if err := d.routing.Validate(); err != nil {
				return err
			}
			if length > 0 {
				c.cfg.Export.StitchLengthMm = length
			}
			if len(formats) == 0 {
				formats = c.cfg.Export.Formats
			}
			if outputDir == "" {
				outputDir = c.cfg.Export.OutputDir
			}

			design, rep := c.router(d).Export(d.scene)
			design.Name = d.name
			for _, id := range rep.Skipped {
				c.log.Warn("block skipped", zap.Int64("block", int64(id)))
			}

			outs, encErr := format.EncodeAll(formats, design)
			if err := os.MkdirAll(outputDir, 0o755); err != nil {
				return err
			}
			for _, o := range outs {
				codec, err := format.Lookup(o.Format)
				if err != nil {
					return err
				}
				path := filepath.Join(outputDir, d.name+codec.Ext)
				if err := os.WriteFile(path, o.Data, 0o644); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d bytes)\n", path, len(o.Data))
				for _, n := range o.Notes {
					fmt.Fprintf(cmd.ErrOrStderr(), "  %s %s: %s\n", n.Severity, n.Code, n.Message)
				}
			}
			return encErr
		},
	}
	cmd.Flags().StringSliceVarP(&formats, "format", "f", nil, "output formats (default from config)")
	cmd.Flags().StringVarP(&outputDir, "output", "o", "", "output directory (default from config)")
	cmd.Flags().StringVar(&policy, "policy", "", "routing policy: balanced, min_travel or min_trims")
	cmd.Flags().StringVar(&sequence, "sequence", "", "sequence mode: strict_sequencer or optimizer")
	cmd.Flags().Float64Var(&length, "stitch-length", 0, "running stitch length in mm")
	return cmd
}

func (c *cli) validateCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "validate <design>",
		Short: "Run preflight checks and list diagnostics",
		Long: `Run preflight checks and list diagnostics.

Exits non-zero when any finding has error severity. Errors are repaired
automatically on export, so this is a report, not a gate on exporting.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := c.loadDesign(args[0])
			if err != nil {
				return err
			}
			diags := scene.Validate(d.scene)
			if asJSON {
				if diags == nil {
					diags = []scene.Diagnostic{}
				}
				if err := writeJSON(cmd.OutOrStdout(), diags); err != nil {
					return err
				}
			} else {
				for _, dg := range diags {
					fmt.Fprintln(cmd.OutOrStdout(), dg.Error())
				}
			}
			if n := len(scene.Errors(diags)); n > 0 {
				return fmt.Errorf("%d error(s) in %s", n, args[0])
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print diagnostics as JSON")
	return cmd
}

type metricsReport struct {
	Route   route.RouteMetrics   `json:"route"`
	Quality route.QualityMetrics `json:"quality"`
	Blocks  []route.BlockRoute   `json:"blocks"`
}

func (c *cli) metricsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "metrics <design>",
		Short: "Print route and quality metrics as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := c.loadDesign(args[0])
			if err != nil {
				return err
			}
			r := c.router(d)
			design, rep := r.Export(d.scene)
			return writeJSON(cmd.OutOrStdout(), metricsReport{
				Route:   route.Metrics(design, d.routing.Policy),
				Quality: r.Quality(d.scene),
				Blocks:  rep.Blocks,
			})
		},
	}
}

type timelineReport struct {
	Summary route.TimelineSummary `json:"summary"`
	Frames  []route.Frame         `json:"frames,omitempty"`
}

func (c *cli) timelineCmd() *cobra.Command {
	var offset, limit int
	cmd := &cobra.Command{
		Use:   "timeline <design>",
		Short: "Simulate sewing time on the configured machine",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := c.loadDesign(args[0])
			if err != nil {
				return err
			}
			design, _ := c.router(d).Export(d.scene)
			frames, sum := route.Timeline(design, c.cfg.Machine)
			rep := timelineReport{Summary: sum}
			if limit > 0 {
				rep.Frames = route.Window(frames, offset, limit)
			}
			return writeJSON(cmd.OutOrStdout(), rep)
		},
	}
	cmd.Flags().IntVar(&offset, "offset", 0, "first frame to print")
	cmd.Flags().IntVar(&limit, "limit", 0, "number of frames to print (0 prints the summary only)")
	return cmd
}

func (c *cli) paletteCmd() *cobra.Command {
	var nearest string
	cmd := &cobra.Command{
		Use:   "palette <brand>",
		Short: "List a thread brand's palette or find the nearest thread",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			brand, err := thread.ParseBrand(args[0])
			if err != nil {
				return err
			}
			if nearest != "" {
				col, err := thread.ParseHex(nearest)
				if err != nil {
					return err
				}
				e, err := thread.Nearest(brand, col)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", e.Code, e.Color.Hex(), e.Name)
				return nil
			}
			entries, err := thread.Palette(brand)
			if err != nil {
				return err
			}
			for _, e := range entries {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", e.Code, e.Color.Hex(), e.Name)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&nearest, "nearest", "", "print the thread closest to this #rrggbb color")
	return cmd
}

func (c *cli) svgCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "svg <file.svg>",
		Short: "Import an SVG document into a saved scene",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			s := scene.New(scene.WithLogger(c.log))
			name := filepath.Base(args[0])
			layer, err := s.CreateNode(name, scene.LayerKind{Visible: true}, 0)
			if err != nil {
				return err
			}
			ids, doc, err := svg.Import(s, layer, string(raw))
			if err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}
			for _, skipped := range doc.Skipped {
				c.log.Warn("svg element skipped", zap.Error(skipped))
			}
			data, err := s.Save()
			if err != nil {
				return err
			}
			if output == "" {
				_, err = cmd.OutOrStdout().Write(append(data, '\n'))
				return err
			}
			if err := os.WriteFile(output, data, 0o644); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "imported %d shapes into %s\n", len(ids), output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "scene file to write (default stdout)")
	return cmd
}

func (c *cli) formatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "formats",
		Short: "List supported machine formats",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, name := range format.Formats() {
				codec, err := format.Lookup(name)
				if err != nil {
					return err
				}
				decode := "write"
				if codec.Decode != nil {
					decode = "read/write"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", name, codec.Ext, decode)
			}
			return nil
		},
	}
}
