package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/valter-silva-au/taskdeck/internal/core"
	"github.com/valter-silva-au/taskdeck/internal/identity"
)

var (
	authEmail    string
	authName     string
	authPassword string
	authConfirm  string
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Sign up, sign in and sign out",
}

var authSignupCmd = &cobra.Command{
	Use:   "signup",
	Short: "Create an account and sign in",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Auth == nil {
			return fmt.Errorf("identity provider not initialized")
		}
		confirm := authConfirm
		if !cmd.Flags().Changed("confirm") {
			confirm = authPassword
		}
		user, err := Auth.Signup(identity.SignupRequest{
			Email:           authEmail,
			Name:            authName,
			Password:        authPassword,
			ConfirmPassword: confirm,
		})
		if err != nil {
			return fmt.Errorf("signing up: %w", err)
		}
		if err := activate(cmdContext(cmd), user.ID); err != nil {
			return err
		}
		fmt.Printf("Welcome, %s. Signed in as %s\n", user.Name, user.Email)
		return nil
	},
}

var authLoginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Auth == nil {
			return fmt.Errorf("identity provider not initialized")
		}
		user, err := Auth.Login(authEmail, authPassword)
		if err != nil {
			return fmt.Errorf("signing in: %w", err)
		}
		if err := activate(cmdContext(cmd), user.ID); err != nil {
			return err
		}
		fmt.Printf("Signed in as %s\n", user.Email)
		return nil
	},
}

var authLogoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Auth == nil {
			return fmt.Errorf("identity provider not initialized")
		}
		if err := Auth.Logout(); err != nil {
			return fmt.Errorf("signing out: %w", err)
		}
		if Store != nil {
			_ = Store.SetIdentity(cmdContext(cmd), core.Identity{})
		}
		fmt.Println("Signed out")
		return nil
	},
}

var authWhoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the signed-in user",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Auth == nil {
			return fmt.Errorf("identity provider not initialized")
		}
		id := Auth.Current()
		if !id.Active {
			fmt.Println("Not signed in")
			return nil
		}
		fmt.Printf("%s <%s>\n  id: %s\n", id.Name, id.Email, id.OwnerID)
		return nil
	},
}

// activate scopes the store to ownerID and loads their tasks.
func activate(ctx context.Context, ownerID string) error {
	if Store == nil {
		return nil
	}
	if err := Store.SetIdentity(ctx, core.Identity{OwnerID: ownerID, Active: true}); err != nil {
		return fmt.Errorf("loading tasks: %w", err)
	}
	return nil
}

// cmdContext returns the command's context, or Background when RunE is
// invoked directly.
func cmdContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func init() {
	for _, c := range []*cobra.Command{authSignupCmd, authLoginCmd} {
		c.Flags().StringVar(&authEmail, "email", "", "Account email")
		c.Flags().StringVar(&authPassword, "password", "", "Account password")
		_ = c.MarkFlagRequired("email")
		_ = c.MarkFlagRequired("password")
	}
	authSignupCmd.Flags().StringVar(&authName, "name", "", "Display name")
	authSignupCmd.Flags().StringVar(&authConfirm, "confirm", "", "Repeat the password (defaults to --password)")
	_ = authSignupCmd.MarkFlagRequired("name")

	authCmd.AddCommand(authSignupCmd, authLoginCmd, authLogoutCmd, authWhoamiCmd)
	rootCmd.AddCommand(authCmd)
}
