package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "necoctl",
	Short: "Necoctl is a command line tool for interacting with the neco platform",
	Long: `necoctl is the command-line interface for the neco workflow backend.

neco organises workflows into workspaces and systems. An execution is a run
of a system's workflow snapshot; starting it pushes a trigger job onto the
work queue, where external consumers pick it up.

Common workflows:

  Log in and export the token:
    necoctl login --email ada@example.com --password ...

  Create a workspace and a system in it:
    necoctl workspaces create --name "ingest"
    necoctl systems create --workspace <workspace-id> --name "csv-import"

  Record and start an execution:
    necoctl executions create --system <system-id> --file workflow.json
    necoctl executions start <execution-id>

  Check execution status:
    necoctl executions get <execution-id>

Configuration:
  Set the API endpoint and credentials via environment variables or a config file:
    NECO_URL      API endpoint (default: http://localhost:6161)
    NECO_TOKEN    Access token from 'necoctl login'`,
}

func Execute() error {
	return rootCmd.Execute()
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}

		// Search config in home directory with name ".necoctl"
		viper.AddConfigPath(home)
		viper.SetConfigName(".necoctl")
		viper.SetConfigType("yaml")
	}

	// Read environment variables that match "NECO_VARNAME"
	viper.SetEnvPrefix("NECO")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Println("Using config file:", viper.ConfigFileUsed())
	}
}

// authedClient returns a client for the configured URL and token, or
// prints a hint and returns false when no token is set.
func authedClient(cmd *cobra.Command) (*NecoClient, bool) {
	token := viper.GetString("token")
	if token == "" {
		cmd.Println("API token not found. Please set it using the --token flag or the NECO_TOKEN environment variable")
		return nil, false
	}
	return NewNecoClient(viper.GetString("url"), token), true
}

func printError(cmd *cobra.Command, err error) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		cmd.Printf("Error (%d): %s\n", apiErr.StatusCode, apiErr.Message)
		return
	}
	cmd.Printf("Error: %v\n", err)
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.necoctl.yaml)")

	rootCmd.PersistentFlags().String("url", "http://localhost:6161", "neco controller URL")
	viper.BindPFlag("url", rootCmd.PersistentFlags().Lookup("url"))

	rootCmd.PersistentFlags().StringP("token", "t", "", "Access token for authentication")
	viper.BindPFlag("token", rootCmd.PersistentFlags().Lookup("token"))
}
