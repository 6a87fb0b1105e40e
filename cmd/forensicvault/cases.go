package main

import (
	"context"

	"forensicvault/internal/core"
	"forensicvault/pkg/domain"

	"github.com/spf13/cobra"
)

func (a *app) caseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "case",
		Short: "Create and manage investigation cases",
	}
	cmd.AddCommand(a.caseCreateCmd(), a.caseShowCmd(), a.caseListCmd(), a.caseRenumberCmd(), a.caseCloseCmd(), a.caseDeleteCmd())
	return cmd
}

func (a *app) caseCreateCmd() *cobra.Command {
	var in domain.Case
	var status, priority, caseType string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a case, generating its number unless --number is given",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			in.Status = domain.CaseStatus(status)
			in.Priority = domain.Priority(priority)
			in.CaseType = domain.CaseType(caseType)
			created, res, err := a.service().CreateCase(cmd.Context(), in)
			if err != nil {
				return err
			}
			return a.printResult(created, res)
		},
	}
	f := cmd.Flags()
	f.StringVar(&in.Name, "name", "", "case name")
	f.StringVar(&in.CaseNumber, "number", "", "explicit case number")
	f.StringVar(&in.Description, "description", "", "case description")
	f.StringVar(&status, "status", "", "active, closed, suspended or archived")
	f.StringVar(&priority, "priority", "", "low, medium, high or critical")
	f.StringVar(&caseType, "type", "", "fraud, cybercrime, data_breach, intellectual_property or general")
	f.StringVar(&in.Department, "department", "", "owning department")
	f.StringVar(&in.Prosecutor, "prosecutor", "", "assigned prosecutor")
	f.StringVar(&in.Jurisdiction, "jurisdiction", "", "jurisdiction")
	f.StringVar(&in.IncidentLocation, "location", "", "incident location")
	f.StringVar(&in.Notes, "notes", "", "free-form notes")
	f.StringSliceVar(&in.Tags, "tag", nil, "tag (repeatable)")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func (a *app) caseShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <case number or id>",
		Short: "Show a case",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := resolveCase(cmd.Context(), a.service(), args[0])
			if err != nil {
				return err
			}
			return a.print(c)
		},
	}
}

func (a *app) caseListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List cases ordered by number",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cases, err := a.service().ListCases(cmd.Context())
			if err != nil {
				return err
			}
			if cases == nil {
				cases = []domain.Case{}
			}
			return a.print(cases)
		},
	}
}

func (a *app) caseRenumberCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "renumber <case number or id> <new number>",
		Short: "Replace a case number",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := resolveCase(cmd.Context(), a.service(), args[0])
			if err != nil {
				return err
			}
			updated, res, err := a.service().RenumberCase(cmd.Context(), c.ID, args[1])
			if err != nil {
				return err
			}
			return a.printResult(updated, res)
		},
	}
}

func (a *app) caseCloseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "close <case number or id>",
		Short: "Mark a case closed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := resolveCase(cmd.Context(), a.service(), args[0])
			if err != nil {
				return err
			}
			updated, res, err := a.service().UpdateCase(cmd.Context(), c.ID, func(c *domain.Case) error {
				c.Status = domain.CaseStatusClosed
				return nil
			})
			if err != nil {
				return err
			}
			return a.printResult(updated, res)
		},
	}
}

func (a *app) caseDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <case number or id>",
		Short: "Delete a case; its evidence becomes unassigned",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := resolveCase(cmd.Context(), a.service(), args[0])
			if err != nil {
				return err
			}
			res, err := a.service().DeleteCase(cmd.Context(), c.ID)
			if err != nil {
				return err
			}
			return a.printResult(map[string]string{"deleted": c.ID}, res)
		},
	}
}

// resolveCase accepts a case number or an id.
func resolveCase(ctx context.Context, svc *core.Service, ref string) (domain.Case, error) {
	c, err := svc.FindCaseByNumber(ctx, ref)
	if isNotFound(err) {
		return svc.GetCase(ctx, ref)
	}
	return c, err
}
