package cmd

import (
	"neco/pkg/api"

	"github.com/spf13/cobra"
)

var workspacesCmd = &cobra.Command{
	Use:     "workspaces",
	Aliases: []string{"ws"},
	Short:   "Manage workspaces",
}

var workspacesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List your workspaces",
	Run: func(cmd *cobra.Command, args []string) {
		client, ok := authedClient(cmd)
		if !ok {
			return
		}
		page, _ := cmd.Flags().GetInt("page")
		perPage, _ := cmd.Flags().GetInt("per-page")

		result, err := client.ListWorkspaces(page, perPage)
		if err != nil {
			printError(cmd, err)
			return
		}
		printWorkspaces(cmd, result)
	},
}

var workspacesSearchCmd = &cobra.Command{
	Use:   "search",
	Short: "Search your workspaces by name or status",
	Long: `Search workspaces with optional filters and sorting.

Example:
  necoctl workspaces search --name ingest --sort name --order desc`,
	Run: func(cmd *cobra.Command, args []string) {
		client, ok := authedClient(cmd)
		if !ok {
			return
		}
		flags := cmd.Flags()
		req := api.SearchWorkspaceRequest{
			Name:    optionalString(cmd, "name"),
			Status:  optionalString(cmd, "status"),
			Sorting: optionalString(cmd, "sort"),
			Order:   optionalString(cmd, "order"),
		}
		req.Page, _ = flags.GetInt("page")
		req.PerPage, _ = flags.GetInt("per-page")

		result, err := client.SearchWorkspaces(req)
		if err != nil {
			printError(cmd, err)
			return
		}
		printWorkspaces(cmd, result)
	},
}

var workspacesCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a workspace",
	Run: func(cmd *cobra.Command, args []string) {
		client, ok := authedClient(cmd)
		if !ok {
			return
		}
		name, _ := cmd.Flags().GetString("name")
		if name == "" {
			cmd.Println("Error: --name is required")
			return
		}

		ws, err := client.CreateWorkspace(api.CreateWorkspaceRequest{
			Name:        name,
			Description: optionalString(cmd, "description"),
		})
		if err != nil {
			printError(cmd, err)
			return
		}
		cmd.Printf("✓ Workspace created!\nID: %s\nName: %s\n", ws.ID, ws.Name)
	},
}

var workspacesGetCmd = &cobra.Command{
	Use:   "get [workspace_id]",
	Short: "Show a workspace",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		client, ok := authedClient(cmd)
		if !ok {
			return
		}

		ws, err := client.GetWorkspace(args[0])
		if err != nil {
			printError(cmd, err)
			return
		}
		cmd.Printf("%sWorkspace Details%s\n", colorBold, colorReset)
		cmd.Println("──────────────────────────────")
		cmd.Printf("%sID:%s          %s\n", colorDim, colorReset, ws.ID)
		cmd.Printf("%sName:%s        %s\n", colorDim, colorReset, ws.Name)
		if ws.Description != nil {
			cmd.Printf("%sDescription:%s %s\n", colorDim, colorReset, *ws.Description)
		}
		cmd.Printf("%sStatus:%s      %s\n", colorDim, colorReset, ws.Status)
		cmd.Printf("%sSystems:%s     %d\n", colorDim, colorReset, ws.SystemsCount)
		cmd.Printf("%sCreated:%s     %s\n", colorDim, colorReset, formatTimeWithRelative(&ws.CreatedAt))
	},
}

var workspacesDeleteCmd = &cobra.Command{
	Use:   "delete [workspace_id]",
	Short: "Delete a workspace",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		client, ok := authedClient(cmd)
		if !ok {
			return
		}

		if err := client.DeleteWorkspace(args[0]); err != nil {
			printError(cmd, err)
			return
		}
		cmd.Printf("✓ Workspace %s deleted\n", args[0])
	},
}

func printWorkspaces(cmd *cobra.Command, result *api.WorkspaceListResponse) {
	if len(result.Workspaces) == 0 {
		cmd.Println("No workspaces found")
		return
	}
	cmd.Printf("%-36s  %-24s  %-8s  %s\n", "ID", "NAME", "STATUS", "SYSTEMS")
	for _, ws := range result.Workspaces {
		cmd.Printf("%-36s  %-24s  %-8s  %d\n", ws.ID, truncate(ws.Name, 24), ws.Status, ws.SystemsCount)
	}
	if result.Page != nil && result.PerPage != nil {
		cmd.Printf("%sPage %d, %d of %d shown%s\n", colorDim, *result.Page, len(result.Workspaces), result.Total, colorReset)
		return
	}
	cmd.Printf("%s%d total%s\n", colorDim, result.Total, colorReset)
}

// optionalString returns nil when the flag was not set on the command line.
func optionalString(cmd *cobra.Command, name string) *string {
	if !cmd.Flags().Changed(name) {
		return nil
	}
	v, _ := cmd.Flags().GetString(name)
	return &v
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func init() {
	workspacesListCmd.Flags().Int("page", api.DefaultPage, "Page number")
	workspacesListCmd.Flags().Int("per-page", api.DefaultPerPage, "Workspaces per page (max 100)")

	flags := workspacesSearchCmd.Flags()
	flags.String("name", "", "Substring of the workspace name")
	flags.String("status", "", "Exact status")
	flags.String("sort", "", "Sort field (name, status, created_at, updated_at, systems_count)")
	flags.String("order", "", "Sort order (asc or desc)")
	flags.Int("page", 0, "Page number (0 returns every match)")
	flags.Int("per-page", 0, "Workspaces per page")

	workspacesCreateCmd.Flags().StringP("name", "n", "", "Name of the workspace (required)")
	workspacesCreateCmd.Flags().StringP("description", "d", "", "Description (optional)")

	workspacesCmd.AddCommand(workspacesListCmd, workspacesSearchCmd, workspacesCreateCmd, workspacesGetCmd, workspacesDeleteCmd)
	rootCmd.AddCommand(workspacesCmd)
}
