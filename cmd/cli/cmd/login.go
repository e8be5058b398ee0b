package cmd

import (
	"neco/pkg/api"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in and print an access token",
	Long: `Exchange email and password for a session. The access token is printed so
it can be exported as NECO_TOKEN or saved in $HOME/.necoctl.yaml.

Example:
  necoctl login --email ada@example.com --password s3cret
  export NECO_TOKEN=$(necoctl login -e ada@example.com -p s3cret --quiet)`,
	Run: func(cmd *cobra.Command, args []string) {
		flags := cmd.Flags()
		email, _ := flags.GetString("email")
		password, _ := flags.GetString("password")
		quiet, _ := flags.GetBool("quiet")

		if email == "" || password == "" {
			cmd.Println("Error: --email and --password are required")
			return
		}

		client := NewNecoClient(viper.GetString("url"), "")
		session, err := client.Login(api.LoginRequest{Email: email, Password: password})
		if err != nil {
			printError(cmd, err)
			return
		}

		if quiet {
			cmd.Println(session.AccessToken)
			return
		}
		cmd.Printf("✓ Logged in")
		if session.User != nil {
			cmd.Printf(" as %s", session.User.Email)
		}
		cmd.Printf("\nAccess token (expires in %ds):\n%s\n", session.ExpiresIn, session.AccessToken)
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the authenticated user",
	Run: func(cmd *cobra.Command, args []string) {
		client, ok := authedClient(cmd)
		if !ok {
			return
		}

		user, err := client.Me()
		if err != nil {
			printError(cmd, err)
			return
		}
		cmd.Printf("%s (%s)\nID: %s\n", user.Email, user.Role, user.ID)
	},
}

func init() {
	flags := loginCmd.Flags()
	flags.StringP("email", "e", "", "Account email (required)")
	flags.StringP("password", "p", "", "Account password (required)")
	flags.BoolP("quiet", "q", false, "Print only the access token")

	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(whoamiCmd)
}
