package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"neco/pkg/api"

	"github.com/spf13/cobra"
)

var executionsCmd = &cobra.Command{
	Use:     "executions",
	Aliases: []string{"exec"},
	Short:   "Create, start and inspect executions",
}

var executionsCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Record an execution of a system",
	Long: `Record a new execution with a workflow snapshot. The execution starts in
the 'created' state; use 'necoctl executions start' to dispatch it.

Example:
  necoctl executions create --system <system-id> --file workflow.json`,
	Run: func(cmd *cobra.Command, args []string) {
		client, ok := authedClient(cmd)
		if !ok {
			return
		}
		flags := cmd.Flags()
		systemID, _ := flags.GetString("system")
		file, _ := flags.GetString("file")

		if systemID == "" {
			cmd.Println("Error: --system is required")
			return
		}

		req := api.CreateExecutionRequest{SystemID: systemID}
		if file != "" {
			snapshot, err := os.ReadFile(file)
			if err != nil {
				cmd.Printf("Error: failed to read %s: %v\n", file, err)
				return
			}
			if !json.Valid(snapshot) {
				cmd.Printf("Error: %s is not valid JSON\n", file)
				return
			}
			req.SystemJSON = snapshot
		}

		exec, err := client.CreateExecution(req)
		if err != nil {
			printError(cmd, err)
			return
		}
		cmd.Printf("✓ Execution created!\nID: %s\nStatus: %s\n", exec.ID, exec.Status)
	},
}

var executionsStartCmd = &cobra.Command{
	Use:   "start [execution_id]",
	Short: "Dispatch an execution to the work queue",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		client, ok := authedClient(cmd)
		if !ok {
			return
		}

		result, err := client.StartExecution(args[0])
		if err != nil {
			printError(cmd, err)
			return
		}
		cmd.Printf("✓ Execution started!\nID: %s\nStatus: %s\n", result.ID, result.Status)
	},
}

var executionsGetCmd = &cobra.Command{
	Use:   "get [execution_id]",
	Short: "Get status of an execution",
	Long:  `Retrieve detailed status information for an execution, including its current state (created, running, completed, failed), its dispatch job and its event log.`,
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		client, ok := authedClient(cmd)
		if !ok {
			return
		}

		execution, err := client.GetExecution(args[0])
		if err != nil {
			printError(cmd, err)
			return
		}
		printStatus(cmd, *execution)
	},
}

var executionsListCmd = &cobra.Command{
	Use:   "list [system_id]",
	Short: "List the executions of a system",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		client, ok := authedClient(cmd)
		if !ok {
			return
		}

		result, err := client.ListExecutions(args[0])
		if err != nil {
			printError(cmd, err)
			return
		}
		if len(result.Executions) == 0 {
			cmd.Println("No executions found")
			return
		}
		cmd.Printf("%-36s  %-12s  %s\n", "ID", "STATUS", "CREATED")
		for _, e := range result.Executions {
			cmd.Printf("%-36s  %-12s  %s\n", e.ID, e.Status, relativeTime(e.CreatedAt)+" ago")
		}
	},
}

func printStatus(cmd *cobra.Command, execution api.ExecutionResponse) {
	// Header with status icon
	icon := statusIcon(execution.Status)
	cmd.Printf("%s %sExecution Details%s\n", icon, colorBold, colorReset)
	cmd.Println("──────────────────────────────")

	cmd.Printf("%sID:%s          %s\n", colorDim, colorReset, execution.ID)
	cmd.Printf("%sSystem:%s      %s\n", colorDim, colorReset, execution.SystemID)
	cmd.Printf("%sStatus:%s      %s\n", colorDim, colorReset, colorizeStatus(execution.Status))

	if execution.DispatchJobID != nil {
		cmd.Printf("%sJob:%s         %s\n", colorDim, colorReset, *execution.DispatchJobID)
	}

	cmd.Printf("%sStarted:%s     %s\n", colorDim, colorReset, formatTimeWithRelative(execution.StartedAt))

	// Duration if both times available
	if execution.StartedAt != nil && execution.StoppedAt != nil {
		duration := execution.StoppedAt.Sub(*execution.StartedAt)
		cmd.Printf("%sFinished:%s    %s %s(%s)%s\n", colorDim, colorReset,
			formatTimeWithRelative(execution.StoppedAt),
			colorCyan, formatDuration(duration), colorReset)
	} else {
		cmd.Printf("%sFinished:%s    %s\n", colorDim, colorReset, formatTimeWithRelative(execution.StoppedAt))
	}

	if len(execution.Logs) > 0 {
		cmd.Printf("%sEvents:%s\n", colorDim, colorReset)
		for _, l := range execution.Logs {
			line := fmt.Sprintf("  %s  %s", l.At.Format(time.RFC3339), l.Event)
			if l.Message != "" {
				line += ": " + l.Message
			}
			cmd.Println(line)
		}
	}
}

// ANSI color codes
const (
	colorReset  = "\033[0m"
	colorBold   = "\033[1m"
	colorDim    = "\033[2m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
)

func statusIcon(status string) string {
	switch status {
	case "completed":
		return colorGreen + "✓" + colorReset
	case "failed":
		return colorRed + "✗" + colorReset
	case "running":
		return colorYellow + "⏳" + colorReset
	case "created":
		return colorCyan + "◯" + colorReset
	default:
		return "•"
	}
}

func colorizeStatus(status string) string {
	icon := statusIcon(status)
	switch status {
	case "completed":
		return icon + " " + colorGreen + status + colorReset
	case "failed":
		return icon + " " + colorRed + status + colorReset
	case "running":
		return icon + " " + colorYellow + status + colorReset
	case "created":
		return icon + " " + colorCyan + status + colorReset
	default:
		return status
	}
}

func formatTimeWithRelative(t *time.Time) string {
	if t == nil {
		return "-"
	}
	relative := relativeTime(*t)
	return fmt.Sprintf("%s %s(%s ago)%s", t.Format("Mon, 02 Jan 2006 15:04:05 MST"), colorDim, relative, colorReset)
}

func relativeTime(t time.Time) string {
	duration := time.Since(t)

	if duration < time.Minute {
		return fmt.Sprintf("%ds", int(duration.Seconds()))
	} else if duration < time.Hour {
		return fmt.Sprintf("%dm", int(duration.Minutes()))
	} else if duration < 24*time.Hour {
		return fmt.Sprintf("%dh", int(duration.Hours()))
	} else {
		days := int(duration.Hours() / 24)
		if days == 1 {
			return "1 day"
		}
		return fmt.Sprintf("%d days", days)
	}
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	} else if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	} else if d < time.Hour {
		return fmt.Sprintf("%dm %ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh %dm", int(d.Hours()), int(d.Minutes())%60)
}

func init() {
	flags := executionsCreateCmd.Flags()
	flags.StringP("system", "s", "", "System ID (required)")
	flags.StringP("file", "f", "", "Path to the workflow snapshot JSON (optional)")

	executionsCmd.AddCommand(executionsCreateCmd, executionsStartCmd, executionsGetCmd, executionsListCmd)
	rootCmd.AddCommand(executionsCmd)
}
