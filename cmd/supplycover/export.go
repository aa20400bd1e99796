package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Spok95/supplycover/internal/domain/catalog"
	"github.com/Spok95/supplycover/internal/domain/coverage"
	"github.com/Spok95/supplycover/internal/engine"
	"github.com/Spok95/supplycover/internal/report"
)

func newExportCmd(cfgPath *string) *cobra.Command {
	var (
		out, code, responsible, status string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the coverage report to an xlsx file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			q := engine.Query{Filters: catalog.Filters{Code: code, Responsible: responsible}.Normalized()}
			if status != "" {
				st, err := coverage.ParseStatus(status)
				if err != nil {
					return err
				}
				q.Status = &st
			}

			a, err := bootstrap(cmd.Context(), *cfgPath)
			if err != nil {
				return err
			}
			defer a.Close()

			page, err := report.Collect(cmd.Context(), a.engine, q, a.cfg.HTTP.ExportPageSize)
			if err != nil {
				return err
			}
			f, err := os.Create(out)
			if err != nil {
				return err
			}
			if err := report.Write(f, page); err != nil {
				_ = f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
			a.log.Info("report exported", "file", out, "rows", len(page.Items), "materials", page.Total)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "cobertura.xlsx", "output file")
	cmd.Flags().StringVar(&code, "code", "", "material code substring")
	cmd.Flags().StringVar(&responsible, "responsible", "", "responsible substring")
	cmd.Flags().StringVar(&status, "status", "", "Normal, Atenção or Crítico")
	return cmd
}

func newDashboardCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "dashboard",
		Short: "Print dashboard counters as JSON",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := bootstrap(cmd.Context(), *cfgPath)
			if err != nil {
				return err
			}
			defer a.Close()

			s, err := a.engine.DashboardSummary(cmd.Context())
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(s); err != nil {
				return fmt.Errorf("encode summary: %w", err)
			}
			return nil
		},
	}
}
