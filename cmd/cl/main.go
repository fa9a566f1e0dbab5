package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"caseline/internal/app"
	"caseline/internal/config"
	"caseline/internal/db"
	"caseline/internal/domain"
	"caseline/internal/engine"
	"caseline/internal/importer"
	"caseline/internal/parse"
	"caseline/internal/repo"
	"caseline/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "cl",
	Short: "Caseline CLI",
	Long: `Caseline tracks litigation case files through the departmental
approval chain: registration, secretary review, director directions,
manager review, hand-off to a litigation officer and compliance
follow-through on court orders. The workspace is a .caseline directory
holding the database; caseline.yml configures divisions, import column
mapping and webhooks.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		workspace := viper.GetString("workspace")
		if _, err := db.EnsureWorkspace(workspace); err != nil {
			return err
		}
		return nil
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("CASELINE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("actor-id", "local-user", "acting officer identifier")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("actor-id", rootCmd.PersistentFlags().Lookup("actor-id"))
}

func registerCommands() {
	rootCmd.AddCommand(caseCmd())
	rootCmd.AddCommand(adviceCmd())
	rootCmd.AddCommand(assignCmd())
	rootCmd.AddCommand(complianceCmd())
	rootCmd.AddCommand(reassignCmd())
	rootCmd.AddCommand(importCmd())
	rootCmd.AddCommand(officerCmd())
	rootCmd.AddCommand(notifyCmd())
	rootCmd.AddCommand(historyCmd())
	rootCmd.AddCommand(apikeyCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(serveCmd())
}

func caseCmd() *cobra.Command {
	c := &cobra.Command{Use: "case", Short: "Manage case files"}
	c.AddCommand(caseRegisterCmd())
	c.AddCommand(caseListCmd())
	c.AddCommand(caseShowCmd())
	c.AddCommand(caseReopenCmd())
	c.AddCommand(caseCloseCmd())
	return c
}

func caseCloseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "close <case-id>",
		Short: "Close a case file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.Context) error {
				now := time.Now().UTC().Format(time.RFC3339)
				if err := a.Engine.Repo.SetCaseStatus(ctx, args[0], "closed", now); err != nil {
					return err
				}
				return a.Engine.History.Record(ctx, "case.closed", args[0], "case closed", viper.GetString("actor-id"), nil)
			})
		},
	}
	return cmd
}

func caseRegisterCmd() *cobra.Command {
	var title, department, priority, matterType, courtRef, returnDate string
	cmd := &cobra.Command{
		Use:   "register <case-number>",
		Short: "Register a case and seed its workflow slots",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.Context) error {
				c, warnings, err := a.Engine.RegisterCase(ctx, engine.CaseRegisterOptions{
					CaseNumber:      args[0],
					Title:           title,
					DepartmentRole:  department,
					Priority:        priority,
					MatterType:      matterType,
					CourtReference:  courtRef,
					CourtReturnDate: returnDate,
					ActorID:         viper.GetString("actor-id"),
				})
				if err != nil {
					return err
				}
				for _, w := range warnings {
					fmt.Fprintf(os.Stderr, "warning: %s: %s\n", w.Step, w.Err)
				}
				return printJSON(c)
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "case title")
	cmd.Flags().StringVar(&department, "department-role", "defendant", "plaintiff or defendant")
	cmd.Flags().StringVar(&priority, "priority", "", "priority")
	cmd.Flags().StringVar(&matterType, "matter-type", "", "matter type")
	cmd.Flags().StringVar(&courtRef, "court-reference", "", "court reference")
	cmd.Flags().StringVar(&returnDate, "court-return-date", "", "court return date (YYYY-MM-DD)")
	return cmd
}

func caseListCmd() *cobra.Command {
	var status, assignedTo, department string
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List cases",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.Context) error {
				cases, err := a.Engine.Repo.ListCases(ctx, repo.CaseFilters{
					Status:            status,
					AssignedOfficerID: assignedTo,
					DepartmentRole:    department,
					Limit:             limit,
				})
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(cases)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Number", "Title", "Status", "Priority", "Assigned"})
				for _, c := range cases {
					assigned := ""
					if c.AssignedOfficerID != nil {
						assigned = *c.AssignedOfficerID
					}
					tw.AppendRow(table.Row{c.ID, c.CaseNumber, c.Title, c.Status, c.Priority, assigned})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "filter by status")
	cmd.Flags().StringVar(&assignedTo, "assigned-to", "", "filter by assigned officer")
	cmd.Flags().StringVar(&department, "department-role", "", "filter by department role")
	cmd.Flags().IntVar(&limit, "limit", 0, "limit results")
	return cmd
}

func caseShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <case-id>",
		Short: "Show a case with its workflow entries",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.Context) error {
				c, err := a.Engine.Repo.GetCase(ctx, args[0])
				if err != nil {
					return err
				}
				entries, err := a.Engine.Repo.ListWorkflowEntries(ctx, c.ID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(map[string]any{"case": c, "workflow": entries})
				}
				if err := printJSON(c); err != nil {
					return err
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Role", "Stage", "Status", "Completed By", "Completed At"})
				for _, e := range entries {
					completedBy, completedAt := "", ""
					if e.CompletedBy != nil {
						completedBy = *e.CompletedBy
					}
					if e.CompletedAt != nil {
						completedAt = *e.CompletedAt
					}
					tw.AppendRow(table.Row{e.OfficerRole, e.Stage, e.Status, completedBy, completedAt})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func caseReopenCmd() *cobra.Command {
	var role, reason string
	cmd := &cobra.Command{
		Use:   "reopen <case-id>",
		Short: "Reopen a completed workflow stage",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.Context) error {
				r, err := engine.ParseRole(role)
				if err != nil {
					return err
				}
				entry, err := a.Engine.ReopenStage(ctx, args[0], r, viper.GetString("actor-id"), reason)
				if err != nil {
					return err
				}
				return printJSON(entry)
			})
		},
	}
	cmd.Flags().StringVar(&role, "role", "", "chain role to reopen (secretary_lands, director_legal, manager_legal)")
	cmd.Flags().StringVar(&reason, "reason", "", "reason for reopening")
	_ = cmd.MarkFlagRequired("role")
	return cmd
}

func adviceCmd() *cobra.Command {
	c := &cobra.Command{Use: "advice", Short: "Stage sign-offs"}
	c.AddCommand(adviceSubmitCmd())
	return c
}

func adviceSubmitCmd() *cobra.Command {
	var commentary, adviceText, recommendations, actionTaken string
	cmd := &cobra.Command{
		Use:   "submit <case-id>",
		Short: "Sign off your pending workflow stage",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.Context) error {
				res, err := a.Engine.SubmitAdvice(ctx, engine.AdviceOptions{
					CaseID:          args[0],
					ActorID:         viper.GetString("actor-id"),
					Commentary:      commentary,
					Advice:          adviceText,
					Recommendations: recommendations,
					ActionTaken:     actionTaken,
				})
				if err != nil {
					return err
				}
				for _, w := range res.Warnings {
					fmt.Fprintf(os.Stderr, "warning: %s: %s\n", w.Step, w.Err)
				}
				return printJSON(res.Entry)
			})
		},
	}
	cmd.Flags().StringVar(&commentary, "commentary", "", "general commentary")
	cmd.Flags().StringVar(&adviceText, "advice", "", "advice text")
	cmd.Flags().StringVar(&recommendations, "recommendations", "", "recommendations")
	cmd.Flags().StringVar(&actionTaken, "action-taken", "", "action taken")
	return cmd
}

func assignCmd() *cobra.Command {
	var assignee, assignmentType, instructions string
	var attachments []string
	cmd := &cobra.Command{
		Use:   "assign <case-id>",
		Short: "Hand a case to a litigation officer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.Context) error {
				res, err := a.Engine.AssignCase(ctx, engine.AssignOptions{
					CaseID:         args[0],
					ActorID:        viper.GetString("actor-id"),
					AssigneeID:     assignee,
					AssignmentType: assignmentType,
					Instructions:   instructions,
					Attachments:    attachments,
				})
				if err != nil {
					return err
				}
				for _, w := range res.Warnings {
					fmt.Fprintf(os.Stderr, "warning: %s: %s\n", w.Step, w.Err)
				}
				return printJSON(res.Assignment)
			})
		},
	}
	cmd.Flags().StringVar(&assignee, "to", "", "assignee officer id")
	cmd.Flags().StringVar(&assignmentType, "type", "", "assignment type (default primary_officer)")
	cmd.Flags().StringVar(&instructions, "instructions", "", "instructions for the officer")
	cmd.Flags().StringSliceVar(&attachments, "attachment", nil, "attachment reference (repeatable)")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

func complianceCmd() *cobra.Command {
	c := &cobra.Command{Use: "compliance", Short: "Court order compliance tracking"}
	c.AddCommand(complianceAddCmd())
	c.AddCommand(complianceStatusCmd())
	c.AddCommand(complianceListCmd())
	return c
}

func complianceAddCmd() *cobra.Command {
	var division, orderRef, orderDate, description, deadline string
	cmd := &cobra.Command{
		Use:   "add <case-id>",
		Short: "Log a court order for a division",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.Context) error {
				rec, err := a.Engine.RecordComplianceOrder(ctx, engine.ComplianceOptions{
					CaseID:           args[0],
					DivisionID:       division,
					OrderReference:   orderRef,
					OrderDate:        orderDate,
					OrderDescription: description,
					Deadline:         deadline,
					ActorID:          viper.GetString("actor-id"),
				})
				if err != nil {
					return err
				}
				return printJSON(rec)
			})
		},
	}
	cmd.Flags().StringVar(&division, "division", "", "division id")
	cmd.Flags().StringVar(&orderRef, "order-reference", "", "order reference")
	cmd.Flags().StringVar(&orderDate, "order-date", "", "order date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&description, "description", "", "order description")
	cmd.Flags().StringVar(&deadline, "deadline", "", "compliance deadline (RFC3339)")
	_ = cmd.MarkFlagRequired("division")
	_ = cmd.MarkFlagRequired("description")
	return cmd
}

func complianceStatusCmd() *cobra.Command {
	var status, memoRef, returnStep string
	cmd := &cobra.Command{
		Use:   "status <record-id>",
		Short: "Move a compliance record to a new status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.Context) error {
				rec, err := a.Engine.UpdateComplianceStatus(ctx, engine.ComplianceStatusUpdate{
					RecordID:      args[0],
					Status:        status,
					MemoReference: memoRef,
					ReturnToStep:  returnStep,
					ActorID:       viper.GetString("actor-id"),
				})
				if err != nil {
					return err
				}
				return printJSON(rec)
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "target status")
	cmd.Flags().StringVar(&memoRef, "memo-reference", "", "memo reference")
	cmd.Flags().StringVar(&returnStep, "return-to-step", "", "advisory return point for partial compliance")
	_ = cmd.MarkFlagRequired("status")
	return cmd
}

func complianceListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list <case-id>",
		Short: "Compliance records for a case",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.Context) error {
				recs, err := a.Engine.Repo.ListCompliance(ctx, args[0])
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(recs)
				}
				now := time.Now().UTC()
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Division", "Order", "Status", "Effective", "Deadline"})
				for _, r := range recs {
					deadline := ""
					if r.Deadline != nil {
						deadline = *r.Deadline
					}
					tw.AppendRow(table.Row{r.ID, r.DivisionID, r.OrderReference, r.Status, engine.EffectiveStatus(r, now), deadline})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func reassignCmd() *cobra.Command {
	c := &cobra.Command{Use: "reassign", Short: "Officer reassignment history"}
	c.AddCommand(reassignParseCmd())
	return c
}

func reassignParseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "parse <text>",
		Short: "Parse register free text into assignment events",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res := parse.ReassignmentHistory(args[0])
			if viper.GetBool("json") {
				return printJSON(res)
			}
			tw := table.NewWriter()
			tw.SetOutputMirror(os.Stdout)
			tw.AppendHeader(table.Row{"#", "Date", "Officer", "Kind"})
			for i, e := range res.Events {
				officer := ""
				if e.Officer != nil {
					officer = *e.Officer
				}
				tw.AppendRow(table.Row{i + 1, e.Date, officer, e.Kind})
			}
			tw.Render()
			for _, r := range res.Remainder {
				fmt.Fprintf(os.Stderr, "unparsed: %s\n", r)
			}
			return nil
		},
	}
	return cmd
}

func importCmd() *cobra.Command {
	c := &cobra.Command{Use: "import", Short: "Bulk imports"}
	c.AddCommand(importRegisterCmd())
	return c
}

func importRegisterCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "register <csv-file>",
		Short: "Import a litigation register CSV",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.Context) error {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				if _, err := a.EnsureOfficer(ctx, viper.GetString("actor-id"), ""); err != nil {
					return err
				}
				imp := importer.Importer{Engine: a.Engine, Config: a.Config}
				sum, err := imp.Run(ctx, importer.NewCSVSource(f), viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(sum)
				}
				fmt.Printf("imported %d, skipped %d, failed %d\n", sum.Imported, sum.Skipped, sum.Failed)
				for _, row := range sum.Rows {
					if row.Error != "" {
						fmt.Fprintf(os.Stderr, "row %d (%s): %s\n", row.Line, row.CaseNumber, row.Error)
					}
					for _, rem := range row.Remainder {
						fmt.Fprintf(os.Stderr, "row %d unparsed: %s\n", row.Line, rem)
					}
				}
				return nil
			})
		},
	}
	return cmd
}

func officerCmd() *cobra.Command {
	c := &cobra.Command{Use: "officer", Short: "Manage officers"}
	c.AddCommand(officerAddCmd())
	c.AddCommand(officerListCmd())
	return c
}

func officerAddCmd() *cobra.Command {
	var id, name, role string
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Register an officer",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.Context) error {
				if _, err := engine.ParseRole(role); err != nil {
					return err
				}
				o := domain.Officer{
					ID:          id,
					DisplayName: name,
					Role:        role,
					CreatedAt:   time.Now().UTC().Format(time.RFC3339),
				}
				if o.ID == "" {
					o.ID = uuid.NewString()
				}
				if err := a.Engine.Repo.InsertOfficer(ctx, o); err != nil {
					return err
				}
				return printJSON(o)
			})
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "officer id (generated if empty)")
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringVar(&role, "role", "", "role")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("role")
	return cmd
}

func officerListCmd() *cobra.Command {
	var role string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List officers",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.Context) error {
				var officers []domain.Officer
				var err error
				if role != "" {
					officers, err = a.Engine.Repo.ListOfficersByRole(ctx, role)
				} else {
					officers, err = a.Engine.Repo.ListOfficers(ctx)
				}
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(officers)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Name", "Role"})
				for _, o := range officers {
					tw.AppendRow(table.Row{o.ID, o.DisplayName, o.Role})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&role, "role", "", "filter by role")
	return cmd
}

func notifyCmd() *cobra.Command {
	c := &cobra.Command{Use: "notify", Short: "Notifications"}
	c.AddCommand(notifyListCmd())
	return c
}

func notifyListCmd() *cobra.Command {
	var unread bool
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Notifications for the acting officer",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.Context) error {
				notes, err := a.Engine.Repo.ListNotifications(ctx, viper.GetString("actor-id"), unread, limit)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(notes)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Type", "Title", "Read", "Created"})
				for _, n := range notes {
					read := ""
					if n.ReadAt != nil {
						read = *n.ReadAt
					}
					tw.AppendRow(table.Row{n.ID, n.Type, n.Title, read, n.CreatedAt})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&unread, "unread", false, "unread only")
	cmd.Flags().IntVar(&limit, "limit", 0, "limit results")
	return cmd
}

func historyCmd() *cobra.Command {
	c := &cobra.Command{Use: "history", Short: "Audit trail"}
	c.AddCommand(historyTailCmd())
	return c
}

func historyTailCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "tail <case-id>",
		Short: "Recent audit entries for a case",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.Context) error {
				entries, err := a.Engine.Repo.ListHistory(ctx, args[0], limit)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(entries)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"TS", "Action", "Actor", "Description"})
				for _, h := range entries {
					tw.AppendRow(table.Row{h.TS, h.Action, h.ActorID, h.Description})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "entries to show")
	return cmd
}

func apikeyCmd() *cobra.Command {
	c := &cobra.Command{Use: "apikey", Short: "API keys for server access"}
	c.AddCommand(apikeyCreateCmd())
	c.AddCommand(apikeyListCmd())
	c.AddCommand(apikeyRevokeCmd())
	return c
}

func apikeyCreateCmd() *cobra.Command {
	var actorID, name string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an API key (raw key printed once)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.Context) error {
				if actorID == "" {
					actorID = viper.GetString("actor-id")
				}
				if _, err := a.Engine.Repo.GetOfficer(ctx, actorID); err != nil {
					return fmt.Errorf("officer %s: %w", actorID, err)
				}
				raw, err := newRawKey()
				if err != nil {
					return err
				}
				key := domain.APIKey{
					ID:        uuid.NewString(),
					ActorID:   actorID,
					Name:      name,
					KeyHash:   repo.HashAPIKey(raw),
					CreatedAt: time.Now().UTC().Format(time.RFC3339),
				}
				if err := a.Engine.Repo.InsertAPIKey(ctx, key); err != nil {
					return err
				}
				return printJSON(map[string]string{
					"id":       key.ID,
					"actor_id": key.ActorID,
					"key":      raw,
				})
			})
		},
	}
	cmd.Flags().StringVar(&actorID, "for", "", "actor the key authenticates as (defaults to --actor-id)")
	cmd.Flags().StringVar(&name, "name", "", "key label")
	return cmd
}

func apikeyListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List API keys (hashes only)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.Context) error {
				keys, err := a.Engine.Repo.ListAPIKeys(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(keys)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Actor", "Name", "Created"})
				for _, k := range keys {
					tw.AppendRow(table.Row{k.ID, k.ActorID, k.Name, k.CreatedAt})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func apikeyRevokeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "revoke <key-id>",
		Short: "Revoke an API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.Context) error {
				return a.Engine.Repo.DeleteAPIKey(ctx, args[0])
			})
		},
	}
	return cmd
}

func configCmd() *cobra.Command {
	c := &cobra.Command{Use: "config", Short: "Workspace configuration"}
	c.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Write the default caseline.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.Path(viper.GetString("workspace"))
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("%s already exists", path)
			}
			return os.WriteFile(path, []byte(config.GenerateDefault()), 0o644)
		},
	})
	c.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the effective config",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadOptional(viper.GetString("workspace"))
			if err != nil {
				return err
			}
			return printJSON(cfg)
		},
	})
	c.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate caseline.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(viper.GetString("workspace"))
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			fmt.Println("config ok")
			return nil
		},
	})
	return c
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app.Open(viper.GetString("workspace"))
			if err != nil {
				return err
			}
			defer a.Close()
			authCfg := server.AuthConfig{JWTSecret: os.Getenv("CASELINE_JWT_SECRET")}
			if authCfg.JWTSecret == "" {
				return fmt.Errorf("CASELINE_JWT_SECRET is required for bearer auth")
			}
			handler, err := server.New(server.Config{Engine: a.Engine, BasePath: basePath, Auth: authCfg})
			if err != nil {
				return err
			}
			server.StartWebhookDispatcher(a.Engine)
			srv := &http.Server{Addr: addr, Handler: handler}
			go func() {
				<-cmd.Context().Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(ctx)
			}()
			fmt.Printf("Serving Caseline API on http://%s%s (OpenAPI at %s/openapi.json, Swagger UI at /docs)\n", addr, basePath, basePath)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "/v0", "API base path")
	return cmd
}

func withApp(ctx context.Context, fn func(context.Context, *app.Context) error) error {
	a, err := app.Open(viper.GetString("workspace"))
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newRawKey() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return "ck_" + hex.EncodeToString(buf), nil
}
