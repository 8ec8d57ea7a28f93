package main

import (
	"fmt"
	"strconv"

	"loan-assistant/internal/conversation"
	"loan-assistant/internal/models"
	"loan-assistant/internal/underwriting"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

func parseAmountArg(s string) (decimal.Decimal, error) {
	amount, ok := conversation.ParseAmount(s)
	if !ok {
		return decimal.Zero, fmt.Errorf("invalid amount %q", s)
	}
	return amount, nil
}

func newOffersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "offers AMOUNT",
		Short: "Print the tenure table offered for an amount",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := parseAmountArg(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), underwriting.BuildOfferTable(amount).Markdown())
			return nil
		},
	}
}

func newEMICmd() *cobra.Command {
	var rate float64
	cmd := &cobra.Command{
		Use:   "emi AMOUNT MONTHS",
		Short: "Compute the monthly instalment for an amount and tenure",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := parseAmountArg(args[0])
			if err != nil {
				return err
			}
			months, err := strconv.Atoi(args[1])
			if err != nil || months <= 0 {
				return fmt.Errorf("invalid tenure %q", args[1])
			}
			emi := underwriting.MonthlyEMI(amount, rate, months)
			fmt.Fprintf(cmd.OutOrStdout(), "EMI for ₹%s over %d months at %.2f%%: ₹%s\n",
				underwriting.FormatAmount(amount.Round(0)), months, rate, emi.StringFixed(2))
			return nil
		},
	}
	cmd.Flags().Float64Var(&rate, "rate", underwriting.StandardRate, "annual interest rate in percent")
	return cmd
}

func newCheckCmd() *cobra.Command {
	var (
		limit  string
		score  int
		salary string
	)
	cmd := &cobra.Command{
		Use:   "check AMOUNT",
		Short: "Run the eligibility rules for a hypothetical applicant",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := parseAmountArg(args[0])
			if err != nil {
				return err
			}
			limitAmount, err := parseAmountArg(limit)
			if err != nil {
				return fmt.Errorf("--limit: %w", err)
			}

			verdict := underwriting.CheckEligibility(amount, limitAmount, score)
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Eligibility: %s", verdict.Status)
			if verdict.Reason != "" {
				fmt.Fprintf(out, " (%s)", verdict.Reason)
			}
			fmt.Fprintln(out)

			if salary != "" && verdict.Status == models.DecisionRequiresSalarySlip {
				monthly, err := parseAmountArg(salary)
				if err != nil {
					return fmt.Errorf("--salary: %w", err)
				}
				slip := underwriting.VerifySalarySlipDefault(amount, monthly)
				fmt.Fprintf(out, "Salary slip: %s (EMI ₹%s)\n", slip.Status, slip.EMI.StringFixed(2))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&limit, "limit", "", "pre-approved limit")
	cmd.Flags().IntVar(&score, "score", 0, "credit score")
	cmd.Flags().StringVar(&salary, "salary", "", "monthly salary, checked when a slip is required")
	_ = cmd.MarkFlagRequired("limit")
	_ = cmd.MarkFlagRequired("score")
	return cmd
}
