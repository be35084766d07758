package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"bitbucket.org/auditdesk/audit_backend/config"
	"bitbucket.org/auditdesk/audit_backend/models"
	"bitbucket.org/auditdesk/audit_backend/utils"
	"github.com/spf13/cobra"
)

const toolUser = "admintool"

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "admintool",
		Short:         "Schedule catalog maintenance",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newMigrateCmd(),
		newImportSchedulesCmd(),
		newTemplateCmd(),
		newTreeCmd(),
	)
	return root
}

// connect opens the database unless a handle is already installed.
func connect() {
	if config.GetDB() == nil {
		config.ConnectDatabaseWithRetry()
	}
}

// toolContext identifies the tool in audit history and bypasses tenant scope.
func toolContext() context.Context {
	ctx := context.Background()
	ctx = utils.SetUserIdInContext(ctx, toolUser)
	ctx = utils.SetUserNameInContext(ctx, toolUser)
	ctx = utils.SetIsAdminInContext(ctx, true)
	ctx = utils.SetSkipTenantScopeInContext(ctx, true)
	return ctx
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			connect()
			if err := models.MigrateTable(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migration finished")
			return nil
		},
	}
}

func newImportSchedulesCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "import-schedules",
		Short: "Import schedules from an .xlsx or .csv file",
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(file)
			if err != nil {
				return err
			}
			defer f.Close()

			connect()
			result, err := models.ImportSchedulesFromFile(toolContext(), filepath.Base(file), f)
			if err != nil {
				return err
			}
			return printJSON(cmd, result)
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "Path to the .xlsx or .csv file")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func newTemplateCmd() *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "template",
		Short: "Write an empty schedule import workbook",
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Create(out)
			if err != nil {
				return err
			}
			if err := models.WriteScheduleImportTemplate(f); err != nil {
				f.Close()
				return err
			}
			return f.Close()
		},
	}
	cmd.Flags().StringVar(&out, "out", "schedule_import_template.xlsx", "Output path")
	return cmd
}

func newTreeCmd() *cobra.Command {
	var group string
	var search string

	cmd := &cobra.Command{
		Use:   "tree",
		Short: "Print the effective schedule tree of a group",
		RunE: func(cmd *cobra.Command, args []string) error {
			connect()
			ctx := utils.SetGroupIdInContext(toolContext(), group)
			var term *string
			if search != "" {
				term = &search
			}
			tree, err := models.GetActiveScheduleTree(ctx, group, term)
			if err != nil {
				return err
			}
			printTree(cmd, tree, 0)
			return nil
		},
	}
	cmd.Flags().StringVar(&group, "group", "", "Group id")
	cmd.Flags().StringVar(&search, "search", "", "Keep matches with their ancestors and descendants")
	_ = cmd.MarkFlagRequired("group")
	return cmd
}

func printTree(cmd *cobra.Command, nodes []*models.ScheduleTreeNode, depth int) {
	for _, node := range nodes {
		fmt.Fprintf(cmd.OutOrStdout(), "%*s%s\n", depth*2, "", node.Info)
		printTree(cmd, node.Children, depth+1)
	}
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
