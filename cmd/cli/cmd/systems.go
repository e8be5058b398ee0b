package cmd

import (
	"neco/pkg/api"

	"github.com/spf13/cobra"
)

var systemsCmd = &cobra.Command{
	Use:   "systems",
	Short: "Manage systems inside a workspace",
}

var systemsCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a system",
	Long: `Create a system inside a workspace you own.

Example:
  necoctl systems create --workspace <workspace-id> --name "csv-import"`,
	Run: func(cmd *cobra.Command, args []string) {
		client, ok := authedClient(cmd)
		if !ok {
			return
		}
		flags := cmd.Flags()
		workspaceID, _ := flags.GetString("workspace")
		name, _ := flags.GetString("name")

		if workspaceID == "" {
			cmd.Println("Error: --workspace is required")
			return
		}
		if name == "" {
			cmd.Println("Error: --name is required")
			return
		}

		sys, err := client.CreateSystem(api.CreateSystemRequest{
			Name:        name,
			Description: optionalString(cmd, "description"),
			WorkspaceID: workspaceID,
		})
		if err != nil {
			printError(cmd, err)
			return
		}
		cmd.Printf("✓ System created!\nID: %s\nName: %s\nStatus: %s\n", sys.ID, sys.Name, sys.Status)
	},
}

var systemsListCmd = &cobra.Command{
	Use:   "list [workspace_id]",
	Short: "List the systems of a workspace",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		client, ok := authedClient(cmd)
		if !ok {
			return
		}

		result, err := client.ListSystems(args[0])
		if err != nil {
			printError(cmd, err)
			return
		}
		if len(result.Systems) == 0 {
			cmd.Println("No systems found")
			return
		}
		cmd.Printf("%-36s  %-24s  %-8s  %s\n", "ID", "NAME", "STATUS", "NODES")
		for _, s := range result.Systems {
			cmd.Printf("%-36s  %-24s  %-8s  %d\n", s.ID, truncate(s.Name, 24), s.Status, s.NodesCount)
		}
	},
}

var systemsGetCmd = &cobra.Command{
	Use:   "get [workspace_id] [system_id]",
	Short: "Show a system",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		client, ok := authedClient(cmd)
		if !ok {
			return
		}

		sys, err := client.GetSystem(args[0], args[1])
		if err != nil {
			printError(cmd, err)
			return
		}
		cmd.Printf("%sSystem Details%s\n", colorBold, colorReset)
		cmd.Println("──────────────────────────────")
		cmd.Printf("%sID:%s          %s\n", colorDim, colorReset, sys.ID)
		cmd.Printf("%sName:%s        %s\n", colorDim, colorReset, sys.Name)
		cmd.Printf("%sStatus:%s      %s\n", colorDim, colorReset, sys.Status)
		cmd.Printf("%sNodes:%s       %d\n", colorDim, colorReset, sys.NodesCount)
		cmd.Printf("%sConfig:%s      %s\n", colorDim, colorReset, string(sys.GlobalConfig))
	},
}

var systemsActivateCmd = &cobra.Command{
	Use:   "activate [workspace_id] [system_id]",
	Short: "Activate a system",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		client, ok := authedClient(cmd)
		if !ok {
			return
		}

		sys, err := client.ActivateSystem(args[0], args[1])
		if err != nil {
			printError(cmd, err)
			return
		}
		cmd.Printf("✓ System %s is %s\n", sys.ID, sys.Status)
	},
}

func init() {
	flags := systemsCreateCmd.Flags()
	flags.StringP("workspace", "w", "", "Workspace ID (required)")
	flags.StringP("name", "n", "", "Name of the system (required)")
	flags.StringP("description", "d", "", "Description (optional)")

	systemsCmd.AddCommand(systemsCreateCmd, systemsListCmd, systemsGetCmd, systemsActivateCmd)
	rootCmd.AddCommand(systemsCmd)
}
