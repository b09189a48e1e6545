package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"histfit/adapters/excel"
	"histfit/app"
	"histfit/domain/core"
	"histfit/domain/model"
	"histfit/domain/workspace"
	"histfit/internal/fitter"
	"histfit/internal/report"
	"histfit/internal/scan"

	"github.com/spf13/cobra"
)

var (
	measurement string
	computePull bool
	scanParam   string
	scanLo      float64
	scanHi      float64
	scanSteps   int
	outputPath  string
	asMarkdown  bool
)

func main() {
	root := &cobra.Command{
		Use:   "histfit",
		Short: "Binned likelihood fits and profile scans from declarative workspaces",
	}
	root.PersistentFlags().StringVarP(&measurement, "measurement", "m", "", "measurement name (default: first declared)")

	validateCmd := &cobra.Command{
		Use:   "validate <workspace.json>",
		Short: "Validate a workspace and print its compiled parameters",
		Args:  cobra.ExactArgs(1),
		RunE:  runValidate,
	}

	fitCmd := &cobra.Command{
		Use:   "fit <workspace.json>",
		Short: "Run the unconditional maximum-likelihood fit",
		Args:  cobra.ExactArgs(1),
		RunE:  runFit,
	}
	fitCmd.Flags().BoolVar(&computePull, "pulls", false, "include nuisance-parameter pulls")
	fitCmd.Flags().BoolVar(&asMarkdown, "markdown", false, "print a markdown report instead of JSON")
	fitCmd.Flags().StringVarP(&outputPath, "output", "o", "", "write an xlsx workbook to this path")

	scanCmd := &cobra.Command{
		Use:   "scan <workspace.json>",
		Short: "Run a profile-likelihood scan over a parameter grid",
		Args:  cobra.ExactArgs(1),
		RunE:  runScan,
	}
	scanCmd.Flags().StringVarP(&scanParam, "parameter", "p", "", "parameter to scan (default: POI)")
	scanCmd.Flags().Float64Var(&scanLo, "lo", 0, "lower edge of the scan grid")
	scanCmd.Flags().Float64Var(&scanHi, "hi", 5, "upper edge of the scan grid")
	scanCmd.Flags().IntVar(&scanSteps, "steps", 21, "number of grid points")
	scanCmd.Flags().BoolVar(&asMarkdown, "markdown", false, "print a markdown report instead of JSON")
	scanCmd.Flags().StringVarP(&outputPath, "output", "o", "", "write an xlsx workbook to this path")

	root.AddCommand(validateCmd, fitCmd, scanCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadWorkspace(path string) (*workspace.Workspace, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read workspace file: %w", err)
	}
	return workspace.ParseWire(raw)
}

func runValidate(cmd *cobra.Command, args []string) error {
	ws, err := loadWorkspace(args[0])
	if err != nil {
		return err
	}
	m, err := model.Build(ws, measurement)
	if err != nil {
		return err
	}

	fmt.Printf("workspace ok: %d channels, %d parameters, POI %s\n",
		len(ws.Channels), m.NumParams(), m.ParameterNames()[m.POIIndex()])
	for _, p := range m.Parameters() {
		tag := ""
		if p.IsPOI {
			tag = " (POI)"
		}
		if p.Fixed {
			tag += " [fixed]"
		}
		fmt.Printf("  %-24s init=%.4g bounds=[%.4g, %.4g]%s\n",
			p.Name, p.Init, p.Bounds[0], p.Bounds[1], tag)
	}
	return nil
}

func runFit(cmd *cobra.Command, args []string) error {
	ws, err := loadWorkspace(args[0])
	if err != nil {
		return err
	}

	svc := app.NewFitService(fitter.New(), nil)
	resp, err := svc.RunFit(context.Background(), app.FitRequest{
		Workspace:    ws,
		Measurement:  measurement,
		ComputePulls: computePull,
	})
	if err != nil {
		return err
	}

	if outputPath != "" {
		if err := writeWorkbook(outputPath, func(f *os.File) error {
			return excel.NewResultWriter().WriteFit(resp.Record, f)
		}); err != nil {
			return err
		}
		fmt.Printf("workbook written to %s\n", outputPath)
	}

	if asMarkdown {
		fmt.Print(report.NewGenerator().FitMarkdown(resp.Record))
		return nil
	}
	return printJSON(resp.Record)
}

func runScan(cmd *cobra.Command, args []string) error {
	ws, err := loadWorkspace(args[0])
	if err != nil {
		return err
	}

	svc := app.NewScanService(scan.New(fitter.New()), nil)
	resp, err := svc.RunScan(context.Background(), app.ScanRequest{
		Workspace:   ws,
		Measurement: measurement,
		Parameter:   core.ParameterName(scanParam),
		Lo:          scanLo,
		Hi:          scanHi,
		Steps:       scanSteps,
	})
	if err != nil {
		return err
	}

	if outputPath != "" {
		if err := writeWorkbook(outputPath, func(f *os.File) error {
			return excel.NewResultWriter().WriteScan(resp.Record, f)
		}); err != nil {
			return err
		}
		fmt.Printf("workbook written to %s\n", outputPath)
	}

	if asMarkdown {
		fmt.Print(report.NewGenerator().ScanMarkdown(resp.Record))
		return nil
	}
	return printJSON(resp.Record)
}

func writeWorkbook(path string, write func(*os.File) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer f.Close()
	return write(f)
}

func printJSON(v interface{}) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
