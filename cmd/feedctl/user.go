package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"diskuto/backend"
	"diskuto/crypto"
	"diskuto/pkg/config"
	"diskuto/store/sqlite"
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage server-users (the trust root for known_users)",
}

func openFactory() (backend.Factory, error) {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return nil, err
	}
	builder := &sqlite.Builder{Path: cfg.Storage.SQLiteFile, MaxOpenConns: cfg.Storage.MaxOpenConns, MaxIdleConns: cfg.Storage.MaxIdleConns}
	return builder.Factory()
}

var userAddCmd = &cobra.Command{
	Use:   "add <user-id-base58>",
	Short: "Register a server-user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		user, err := crypto.UserIDFromBase58(args[0])
		if err != nil {
			return err
		}
		notes, _ := cmd.Flags().GetString("notes")
		onHomepage, _ := cmd.Flags().GetBool("homepage")

		factory, err := openFactory()
		if err != nil {
			return err
		}
		defer factory.Close()
		ctx := context.Background()
		be, err := factory.Open(ctx)
		if err != nil {
			return err
		}
		defer be.Close()
		return be.AddServerUser(ctx, backend.ServerUser{User: user, Notes: notes, OnHomepage: onHomepage})
	},
}

var userRemoveCmd = &cobra.Command{
	Use:   "remove <user-id-base58>",
	Short: "Deregister a server-user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		user, err := crypto.UserIDFromBase58(args[0])
		if err != nil {
			return err
		}
		factory, err := openFactory()
		if err != nil {
			return err
		}
		defer factory.Close()
		ctx := context.Background()
		be, err := factory.Open(ctx)
		if err != nil {
			return err
		}
		defer be.Close()
		return be.RemoveServerUser(ctx, user)
	},
}

var userListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered server-users",
	RunE: func(cmd *cobra.Command, args []string) error {
		factory, err := openFactory()
		if err != nil {
			return err
		}
		defer factory.Close()
		ctx := context.Background()
		be, err := factory.Open(ctx)
		if err != nil {
			return err
		}
		defer be.Close()
		return be.ServerUsers(ctx, func(su backend.ServerUser) (bool, error) {
			fmt.Printf("%s\thomepage=%v\t%s\n", su.User.String(), su.OnHomepage, su.Notes)
			return true, nil
		})
	},
}

func init() {
	userAddCmd.Flags().String("notes", "", "freeform admin note")
	userAddCmd.Flags().Bool("homepage", false, "show this user's items on the homepage")
	userCmd.AddCommand(userAddCmd, userRemoveCmd, userListCmd)
}
