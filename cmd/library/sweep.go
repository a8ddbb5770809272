package main

import (
	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"

	"github.com/SivaGaneshv1729/library-management-api/pkg/models"
	"github.com/SivaGaneshv1729/library-management-api/pkg/sweeper"
)

type sweepFailure struct {
	MemberID string `json:"memberId"`
	Error    string `json:"error"`
}

type sweepOutput struct {
	Members      []string             `json:"members"`
	Suspended    []string             `json:"suspended"`
	Reclassified []string             `json:"reclassified"`
	Failures     []sweepFailure       `json:"failures"`
	Overdue      []models.Transaction `json:"overdue,omitempty"`
}

func newSweepCmd(a *app) *cobra.Command {
	var report bool

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Run one overdue sweep and print the outcome as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			db, err := a.openDatabase(ctx)
			if err != nil {
				return err
			}
			defer closeDatabase(db)

			engine := a.newEngine(db)
			result, err := sweeper.New(engine, nil, sweeper.WithLogger(a.logger)).RunOnce(ctx)
			if err != nil {
				return err
			}

			out := sweepOutput{
				Members:      nonNil(result.Members),
				Suspended:    nonNil(result.Suspended),
				Reclassified: nonNil(result.Reclassified),
				Failures:     []sweepFailure{},
			}
			for _, f := range result.Failures {
				out.Failures = append(out.Failures, sweepFailure{MemberID: f.MemberID, Error: f.Err.Error()})
			}

			if report {
				overdue, err := engine.OverdueSweepAndReport(ctx)
				if err != nil {
					return err
				}
				out.Overdue = overdue
			}

			enc := jsoniter.ConfigCompatibleWithStandardLibrary.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}

	cmd.Flags().BoolVar(&report, "report", false, "also list every overdue loan")
	return cmd
}

func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}
