package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	auth "Waternet/internal/auth"
	network "Waternet/internal/calc/network"
	"Waternet/internal/calc/premium/autodesign"
	"Waternet/internal/calc/premium/importer"
	"Waternet/internal/calc/premium/recommend"
	report "Waternet/internal/calc/report"
	"Waternet/internal/config"
)

type solveOptions struct {
	method        string
	maxIterations int
	solverConfig  string
	format        string
	pdfOut        string
	xlsxOut       string
	project       string
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "netsolve",
		Short:         "Steady-state analysis of water distribution networks",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newSolveCmd(), newResizeCmd(), newSizeCmd(), newTemplateCmd(), newHashKeyCmd())
	return root
}

func newSolveCmd() *cobra.Command {
	var opts solveOptions
	cmd := &cobra.Command{
		Use:   "solve [network.json|.yaml|.xlsx]",
		Short: "Solve a network file and print node and pipe results",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSolve(cmd.Context(), cmd.OutOrStdout(), args[0], opts)
		},
	}
	f := cmd.Flags()
	f.StringVarP(&opts.method, "method", "m", "", "head loss method: hazen-williams or darcy-weisbach")
	f.IntVar(&opts.maxIterations, "max-iterations", 0, "override the iteration cap")
	f.StringVar(&opts.solverConfig, "config", "", "YAML file with solver defaults")
	f.StringVarP(&opts.format, "format", "o", "table", "output format: table or json")
	f.StringVar(&opts.pdfOut, "pdf", "", "also write a PDF report to this path")
	f.StringVar(&opts.xlsxOut, "xlsx", "", "also write the results workbook to this path")
	f.StringVar(&opts.project, "project", "", "project name for the PDF report")
	return cmd
}

func runSolve(ctx context.Context, out io.Writer, path string, opts solveOptions) error {
	in, err := loadInput(path)
	if err != nil {
		return err
	}
	defaults, err := solverDefaults(opts.solverConfig)
	if err != nil {
		return err
	}
	if opts.method != "" {
		in.Config.Method = network.Method(opts.method)
	}
	if opts.maxIterations > 0 {
		in.Config.MaxIterations = network.Value(strconv.Itoa(opts.maxIterations))
	}
	if ctx == nil {
		ctx = context.Background()
	}

	res, err := network.CalculateContext(ctx, in, defaults)
	if err != nil {
		return describeError(err)
	}

	switch opts.format {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(res); err != nil {
			return err
		}
	case "table", "":
		printResult(out, res)
	default:
		return fmt.Errorf("unknown format %q", opts.format)
	}

	if opts.pdfOut != "" {
		if err := writeFile(opts.pdfOut, func(w io.Writer) error {
			return report.Write(w, report.Meta{Project: opts.project, Title: filepath.Base(path)}, res)
		}); err != nil {
			return fmt.Errorf("write pdf: %w", err)
		}
	}
	if opts.xlsxOut != "" {
		if err := writeFile(opts.xlsxOut, func(w io.Writer) error { return importer.Write(w, res) }); err != nil {
			return fmt.Errorf("write xlsx: %w", err)
		}
	}
	return nil
}

func newResizeCmd() *cobra.Command {
	var (
		rounds       int
		solverConfig string
		saveTo       string
	)
	cmd := &cobra.Command{
		Use:   "resize [network file]",
		Short: "Resize pipes that violate the velocity limits",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := loadInput(args[0])
			if err != nil {
				return err
			}
			defaults, err := solverDefaults(solverConfig)
			if err != nil {
				return err
			}
			res, err := autodesign.Resize(cmd.Context(), autodesign.Input{Network: in, Rounds: rounds}, defaults)
			if err != nil {
				return describeError(err)
			}
			out := cmd.OutOrStdout()
			if len(res.Changes) > 0 {
				printChanges(out, res.Changes)
			}
			printWarnings(out, res.Result.Warnings)
			fmt.Fprintln(out, styles.Muted.Render(res.Notes))
			if saveTo != "" {
				return writeFile(saveTo, func(w io.Writer) error { return importer.WriteInput(w, res.Network) })
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&rounds, "rounds", autodesign.DefaultRounds, "maximum resize rounds")
	cmd.Flags().StringVar(&solverConfig, "config", "", "YAML file with solver defaults")
	cmd.Flags().StringVar(&saveTo, "save", "", "write the resized network workbook to this path")
	return cmd
}

func newSizeCmd() *cobra.Command {
	var minV, maxV float64
	cmd := &cobra.Command{
		Use:   "size [flow L/s]",
		Short: "Recommend a catalog pipe diameter for a design flow",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := network.Value(args[0]).Float()
			if err != nil {
				return err
			}
			res, err := recommend.PipeSize(recommend.PipeSizeInput{FlowLPS: q, MinVelocity: minV, MaxVelocity: maxV})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\n%s\n",
				styles.Title.Render(fmt.Sprintf("D = %g mm, v = %.2f m/s", res.DiameterMM, res.Velocity)),
				styles.Muted.Render(res.Notes))
			return nil
		},
	}
	cfg := network.DefaultConfig()
	cmd.Flags().Float64Var(&minV, "min-velocity", cfg.MinVelocity, "minimum velocity, m/s")
	cmd.Flags().Float64Var(&maxV, "max-velocity", cfg.MaxVelocity, "maximum velocity, m/s")
	return cmd
}

func newTemplateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "template [out.xlsx]",
		Short: "Write an example network workbook",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return writeFile(args[0], func(w io.Writer) error { return importer.WriteInput(w, exampleNetwork()) })
		},
	}
}

func newHashKeyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-key [access key]",
		Short: "Print the bcrypt hash to use as ACCESS_KEY_HASH",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hash, err := auth.HashAccessKey(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
}

func loadInput(path string) (network.Input, error) {
	var in network.Input
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		f, err := os.Open(path)
		if err != nil {
			return in, err
		}
		defer f.Close()
		return importer.Read(f)
	case ".json":
		data, err := os.ReadFile(path)
		if err != nil {
			return in, err
		}
		if err := json.Unmarshal(data, &in); err != nil {
			return in, fmt.Errorf("parse %s: %w", path, err)
		}
	case ".yaml", ".yml":
		data, err := os.ReadFile(path)
		if err != nil {
			return in, err
		}
		if err := yaml.Unmarshal(data, &in); err != nil {
			return in, fmt.Errorf("parse %s: %w", path, err)
		}
	default:
		return in, fmt.Errorf("unsupported file type %q", filepath.Ext(path))
	}
	return in, nil
}

func solverDefaults(path string) (network.Config, error) {
	if path == "" {
		return network.DefaultConfig(), nil
	}
	return config.LoadSolver(path)
}

func describeError(err error) error {
	ve, ok := network.AsValidationError(err)
	if !ok {
		return err
	}
	fields := ve.Fields()
	lines := make([]string, 0, len(fields))
	for _, k := range network.SortedFields(fields) {
		lines = append(lines, fmt.Sprintf("  %s: %s", k, fields[k]))
	}
	return errors.New("invalid network:\n" + strings.Join(lines, "\n"))
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func exampleNetwork() network.Input {
	return network.Input{
		Nodes: []network.NodeInput{
			{ID: "R1", Elevation: "120", IsReservoir: true},
			{ID: "J1", Elevation: "80", Demand: "10"},
			{ID: "J2", Elevation: "78", Demand: "15"},
			{ID: "J3", Elevation: "75", Demand: "12"},
		},
		Pipes: []network.PipeInput{
			{ID: "P1", StartNode: "R1", EndNode: "J1", Length: "500", Diameter: "250", Roughness: "130"},
			{ID: "P2", StartNode: "J1", EndNode: "J2", Length: "400", Diameter: "200", Roughness: "130"},
			{ID: "P3", StartNode: "J1", EndNode: "J3", Length: "400", Diameter: "200", Roughness: "130"},
			{ID: "P4", StartNode: "J2", EndNode: "J3", Length: "300", Diameter: "150", Roughness: "130"},
		},
		Config: network.ConfigInput{Method: network.MethodHazenWilliams},
	}
}
