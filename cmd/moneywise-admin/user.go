package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"moneywise/internal/core"
	"moneywise/internal/services"
)

func userCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage user accounts",
	}
	cmd.AddCommand(userSetPasswordCmd())
	cmd.AddCommand(userDeleteCmd())
	cmd.AddCommand(userCountCmd())
	cmd.AddCommand(userSeedCategoriesCmd())
	return cmd
}

// lookupUser resolves an argument containing "@" by email, anything else by
// username.
func lookupUser(ctx context.Context, identity *services.IdentityService, who string) (core.User, error) {
	var (
		user core.User
		err  error
	)
	if strings.Contains(who, "@") {
		user, err = identity.UserByEmail(ctx, who)
	} else {
		user, err = identity.UserByUsername(ctx, who)
	}
	if errors.Is(err, core.ErrNotFound) {
		return core.User{}, fmt.Errorf("user %q not found", who)
	}
	return user, err
}

func userSetPasswordCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set-password <username|email>",
		Short: "Replace a user's password and sign out every session",
		Long: `Replace a user's password. The new password is read from --password or,
when the flag is empty, from MONEYWISE_NEW_PASSWORD.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			password, _ := cmd.Flags().GetString("password")
			if password == "" {
				password = os.Getenv("MONEYWISE_NEW_PASSWORD")
			}
			if len(password) < 8 {
				return errors.New("password must be at least 8 characters")
			}

			repo, err := openRepo()
			if err != nil {
				return err
			}
			defer repo.Close()

			ctx := cmd.Context()
			identity := services.NewIdentityService(repo, logger)
			user, err := lookupUser(ctx, identity, args[0])
			if err != nil {
				return err
			}
			if err := identity.SetPassword(ctx, user.ID, password); err != nil {
				return err
			}
			if err := services.NewSessionService(repo, logger).RevokeAll(ctx, user.ID); err != nil {
				return fmt.Errorf("revoke sessions: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Password updated for %s\n", user.Username)
			return nil
		},
	}
	cmd.Flags().String("password", "", "new password")
	return cmd
}

func userDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <username|email>",
		Short: "Delete a user with all categories, transactions, budgets and sessions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if yes, _ := cmd.Flags().GetBool("yes"); !yes {
				return errors.New("refusing to delete without --yes")
			}

			repo, err := openRepo()
			if err != nil {
				return err
			}
			defer repo.Close()

			ctx := cmd.Context()
			identity := services.NewIdentityService(repo, logger)
			user, err := lookupUser(ctx, identity, args[0])
			if err != nil {
				return err
			}
			if err := identity.DeleteUser(ctx, user.ID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", user.Username)
			return nil
		},
	}
	cmd.Flags().Bool("yes", false, "confirm deletion")
	return cmd
}

func userCountCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "count",
		Short: "Print the number of registered users",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			repo, err := openRepo()
			if err != nil {
				return err
			}
			defer repo.Close()

			n, err := repo.CountUsers(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), n)
			return nil
		},
	}
}

func userSeedCategoriesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed-categories <username|email>",
		Short: "Seed the default categories for a user without any",
		Long: `Insert the default income and expense categories for a user that has none.
The insert is all or nothing.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := openRepo()
			if err != nil {
				return err
			}
			defer repo.Close()

			ctx := cmd.Context()
			user, err := lookupUser(ctx, services.NewIdentityService(repo, logger), args[0])
			if err != nil {
				return err
			}
			categories := services.NewCategoryService(repo, logger)
			existing, err := categories.List(ctx, user.ID, nil)
			if err != nil {
				return err
			}
			if len(existing) > 0 {
				return fmt.Errorf("%s already has %d categories", user.Username, len(existing))
			}
			cats, err := categories.SeedDefaults(ctx, user.ID)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added %d categories for %s\n", len(cats), user.Username)
			return nil
		},
	}
}
