package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ems-hq/attendance/internal/app"
	"github.com/ems-hq/attendance/internal/config"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:           "ems",
	Short:         "Employee attendance, HR and billing service",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and background jobs",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return app.RunServer(ctx, config.AppConfig{ConfigPath: configPath})
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		if errMigrate := app.Migrate(cmd.Context(), config.AppConfig{ConfigPath: configPath}); errMigrate != nil {
			return errMigrate
		}
		log.Info("migration completed")
		return nil
	},
}

var adminParams app.CreateAdminParams

var createAdminCmd = &cobra.Command{
	Use:   "create-admin",
	Short: "Create an administrator account",
	RunE: func(cmd *cobra.Command, args []string) error {
		user, errCreate := app.CreateAdmin(cmd.Context(), config.AppConfig{ConfigPath: configPath}, adminParams)
		if errCreate != nil {
			return errCreate
		}
		fmt.Fprintf(cmd.OutOrStdout(), "created admin %s (id=%d)\n", user.Username, user.ID)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config.yaml (default $EMS_CONFIG or ./config.yaml)")

	createAdminCmd.Flags().StringVar(&adminParams.Username, "username", "", "login name")
	createAdminCmd.Flags().StringVar(&adminParams.Password, "password", "", "password (at least 8 characters)")
	createAdminCmd.Flags().StringVar(&adminParams.Name, "name", "", "full name")
	createAdminCmd.Flags().StringVar(&adminParams.Email, "email", "", "contact email")
	_ = createAdminCmd.MarkFlagRequired("username")
	_ = createAdminCmd.MarkFlagRequired("password")

	rootCmd.AddCommand(serveCmd, migrateCmd, createAdminCmd)
}

func main() {
	if errExec := rootCmd.ExecuteContext(context.Background()); errExec != nil {
		log.Error(errExec)
		os.Exit(1)
	}
}
