package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/egnyte/cloudimized/internal/app"
	apperrors "github.com/egnyte/cloudimized/internal/errors"
)

var (
	cfgFile   string
	logLevel  string
	logFormat string

	singleProvider  string
	singleResource  string
	singleOutput    string
	singleOutputDir string
)

var rootCmd = &cobra.Command{
	Use:   "cloudimized",
	Short: "Tracks cloud configuration changes in git and attributes them to their authors.",
	Long: `cloudimized snapshots cloud resource configuration into a git-tracked tree
of YAML files, detects which files changed, attributes each change using cloud
audit logs and Terraform run history, commits the change with an explanatory
message and notifies Slack/Jira.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initializeConfig(cmd)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		application, err := buildApplication(cmd.Context())
		if err != nil {
			return err
		}
		return reportRunError(application.Run(cmd.Context()))
	},
}

var singleRunCmd = &cobra.Command{
	Use:   "singlerun",
	Short: "Scan a single resource and dump the results without touching git.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if singleOutput != "yaml" && singleOutput != "csv" {
			return apperrors.Newf(apperrors.CodeConfigValidation,
				"unsupported output format %q, use yaml or csv", singleOutput)
		}
		application, err := buildApplication(cmd.Context())
		if err != nil {
			return err
		}
		return reportRunError(application.SingleRun(cmd.Context(),
			singleProvider, singleResource, singleOutput, singleOutputDir))
	},
}

func buildApplication(ctx context.Context) (*app.Application, error) {
	application, err := app.BuildApplicationFromViper(ctx, viper.GetViper())
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: Application initialization failed: %v\n", err)
		if appErr := (*apperrors.AppError)(nil); errors.As(err, &appErr) {
			if appErr.IsUserFacing {
				fmt.Fprintf(os.Stderr, "Error Details: %s\n", appErr.Message)
				if appErr.SuggestedAction != "" {
					fmt.Fprintf(os.Stderr, "Suggestion: %s\n", appErr.SuggestedAction)
				}
			}
		}
		return nil, err
	}
	return application, nil
}

func reportRunError(err error) error {
	if err == nil {
		return nil
	}
	userMsg, suggestion, _ := apperrors.GetUserFacingMessage(err)
	fmt.Fprintf(os.Stderr, "ERROR: %s\n", userMsg)
	if suggestion != "" {
		fmt.Fprintf(os.Stderr, "Suggestion: %s\n", suggestion)
	}
	return err
}

func Execute(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "Configuration file path (default is config.yaml or .cloudimized.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "Override log format (text, json)")

	viper.BindPFlag("settings.log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("settings.log_format", rootCmd.PersistentFlags().Lookup("log-format"))

	singleRunCmd.Flags().StringVarP(&singleProvider, "provider", "p", "", "Provider to scan (gcp, azure)")
	singleRunCmd.Flags().StringVarP(&singleResource, "name", "n", "", "Resource name to scan")
	singleRunCmd.Flags().StringVarP(&singleOutput, "output", "o", "yaml", "Output format (yaml, csv)")
	singleRunCmd.Flags().StringVar(&singleOutputDir, "output-dir", ".", "Directory to dump results into")
	singleRunCmd.MarkFlagRequired("provider")
	singleRunCmd.MarkFlagRequired("name")
	rootCmd.AddCommand(singleRunCmd)

	viper.SetEnvPrefix("CLOUDIMIZED")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
}

func initializeConfig(cmd *cobra.Command) error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		viper.AddConfigPath(".")
		viper.AddConfigPath(home)
		viper.SetConfigName(".cloudimized")
		viper.SetConfigType("yaml")
	}

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using configuration file:", viper.ConfigFileUsed())
	} else {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			fmt.Fprintln(os.Stderr, "Config file not found, using defaults and environment variables.")
		} else {
			return apperrors.Wrap(err, apperrors.CodeConfigReadError, "failed to read config file")
		}
	}

	return nil
}
