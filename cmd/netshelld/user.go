package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/codefionn/netshell/internal/auth"
	"github.com/codefionn/netshell/internal/lockfile"
	"github.com/codefionn/netshell/internal/securemem"
	"github.com/codefionn/netshell/internal/store"
)

var userAdmin bool

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage accounts",
}

var userAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Create an account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if err := initLogger(cfg); err != nil {
			return err
		}
		defer closeLogger()

		name := args[0]
		if !auth.ValidUsername(name) {
			return fmt.Errorf("%q: %w", name, auth.ErrInvalidUsername)
		}

		pass, err := promptForPassword("Password: ")
		if err != nil {
			return err
		}
		again, err := promptForPassword("Repeat password: ")
		if err != nil {
			return err
		}
		if pass == "" {
			return errors.New("password must not be empty")
		}
		if pass != again {
			return errors.New("passwords do not match")
		}

		lock := lockfile.ForDatabase(cfg.DatabasePath)
		if err := lock.TryAcquire(); err != nil {
			return fmt.Errorf("stop the server first: %w", err)
		}
		defer lock.Release()

		db, err := store.OpenSQLite(cfg.DatabasePath)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()

		secret := securemem.FromString(pass)
		defer secret.Destroy()
		if _, err := auth.New(db).CreateUser(context.Background(), name, secret, userAdmin); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Created user %s (admin: %v)\n", name, userAdmin)
		return nil
	},
}

func init() {
	userAddCmd.Flags().BoolVar(&userAdmin, "admin", true, "grant admin rights (needed to forge registration tokens)")
	userCmd.AddCommand(userAddCmd)
}
