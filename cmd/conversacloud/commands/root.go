package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "conversacloud",
	Short: "ConversaCloud - Chat-driven cloud provisioning",
	Long:  `Turns conversational requests into policy-checked EC2 provisioning pull requests with FSM-orchestrated delivery.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("sqlite-path", ".artifacts/conversacloud.db", "SQLite database path")
	rootCmd.PersistentFlags().String("fsm-db-path", ".artifacts/fsm.db", "FSM BoltDB directory")
	rootCmd.PersistentFlags().String("work-dir", "/tmp/conversacloud", "Directory for rendered tfvars files")
	rootCmd.PersistentFlags().String("cloud-provider", "aws", "Cloud provider")
	rootCmd.PersistentFlags().String("aws-region", "us-east-1", "Default AWS region for catalog lookups")
	rootCmd.PersistentFlags().String("github-token", "", "GitHub token for pull request publication")
	rootCmd.PersistentFlags().String("repo-owner", "", "Infra repository owner")
	rootCmd.PersistentFlags().String("repo-name", "", "Infra repository name")
	rootCmd.PersistentFlags().String("base-branch", "main", "Infra repository base branch")
	rootCmd.PersistentFlags().String("openai-api-key", "", "API key for requirement extraction")
	rootCmd.PersistentFlags().String("api-token", "", "Bearer token for delivery callbacks")
	rootCmd.PersistentFlags().String("event-webhook-url", "", "Webhook URL for delivery events")
	rootCmd.PersistentFlags().String("metrics-addr", ":9090", "Listen address for metrics and callbacks")
	rootCmd.PersistentFlags().String("policy-file", "", "Optional YAML policy matrix override")
	rootCmd.PersistentFlags().Int("fsm-max-retries", 5, "Max FSM retries per state")

	viper.BindPFlag("sqlite-path", rootCmd.PersistentFlags().Lookup("sqlite-path"))
	viper.BindPFlag("fsm-db-path", rootCmd.PersistentFlags().Lookup("fsm-db-path"))
	viper.BindPFlag("work-dir", rootCmd.PersistentFlags().Lookup("work-dir"))
	viper.BindPFlag("cloud-provider", rootCmd.PersistentFlags().Lookup("cloud-provider"))
	viper.BindPFlag("aws-region", rootCmd.PersistentFlags().Lookup("aws-region"))
	viper.BindPFlag("github-token", rootCmd.PersistentFlags().Lookup("github-token"))
	viper.BindPFlag("repo-owner", rootCmd.PersistentFlags().Lookup("repo-owner"))
	viper.BindPFlag("repo-name", rootCmd.PersistentFlags().Lookup("repo-name"))
	viper.BindPFlag("base-branch", rootCmd.PersistentFlags().Lookup("base-branch"))
	viper.BindPFlag("openai-api-key", rootCmd.PersistentFlags().Lookup("openai-api-key"))
	viper.BindPFlag("api-token", rootCmd.PersistentFlags().Lookup("api-token"))
	viper.BindPFlag("event-webhook-url", rootCmd.PersistentFlags().Lookup("event-webhook-url"))
	viper.BindPFlag("metrics-addr", rootCmd.PersistentFlags().Lookup("metrics-addr"))
	viper.BindPFlag("policy-file", rootCmd.PersistentFlags().Lookup("policy-file"))
	viper.BindPFlag("fsm-max-retries", rootCmd.PersistentFlags().Lookup("fsm-max-retries"))
}
