package main

import (
	"fmt"

	"insightdeck/internal/adapter/google"
	"insightdeck/internal/app"
	"insightdeck/internal/domain"

	"github.com/spf13/cobra"
)

func newLoginCmd(c *cli) *cobra.Command {
	var withGoogle bool
	cmd := &cobra.Command{
		Use:   "login [email]",
		Short: "Sign in with email and password, or with Google",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			ws, err := c.workspace(ctx)
			if err != nil {
				return err
			}

			if withGoogle {
				if !ws.Session.GoogleEnabled() {
					return domain.ErrGoogleDisabled
				}
				flow, err := google.New(ctx, c.cfg.Google.ClientID, c.cfg.Google.ClientSecret)
				if err != nil {
					return err
				}
				idToken, err := flow.IDToken(ctx, func(uri, code string) {
					fmt.Fprintf(c.stderr, "Open %s and enter code %s\n", uri, code)
				})
				if err != nil {
					return err
				}
				if err := ws.Session.GoogleLogin(ctx, idToken); err != nil {
					return err
				}
			} else {
				if len(args) == 0 {
					return &domain.ValidationError{Field: "email", Message: "email is required"}
				}
				password, err := c.prompt("Password: ")
				if err != nil {
					return err
				}
				if err := ws.Session.Login(ctx, args[0], password); err != nil {
					return err
				}
			}

			ws.Session.RefreshCredits(ctx)
			who := ""
			if u := ws.Session.Snapshot().User; u != nil {
				who = u.Email
			} else if len(args) == 1 {
				who = args[0]
			}
			if who != "" {
				ws.Notify.Success("Signed in as " + who)
			} else {
				ws.Notify.Success("Signed in")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&withGoogle, "google", false, "sign in with a Google account")
	return cmd
}

func newRegisterCmd(c *cli) *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "register <email>",
		Short: "Create an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			ws, err := c.workspace(ctx)
			if err != nil {
				return err
			}
			password, err := c.newPassword()
			if err != nil {
				return err
			}
			msg, err := ws.Session.Register(ctx, args[0], password, name)
			if err != nil {
				return err
			}
			ws.Notify.Success("Account created", app.WithDescription(msg))
			fmt.Fprintf(cmd.OutOrStdout(), "Run: insightdeck verify %s <code>\n", args[0])
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "full name")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func newVerifyCmd(c *cli) *cobra.Command {
	var resend bool
	cmd := &cobra.Command{
		Use:   "verify <email> [code]",
		Short: "Verify an email address and sign in",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			ws, err := c.workspace(ctx)
			if err != nil {
				return err
			}
			if resend {
				msg, err := ws.Session.ResendVerification(ctx, args[0])
				if err != nil {
					return err
				}
				ws.Notify.Info("Verification code sent", app.WithDescription(msg))
				return nil
			}
			if len(args) < 2 {
				return &domain.ValidationError{Field: "code", Message: "code is required"}
			}
			if err := ws.Session.VerifyEmail(ctx, args[0], args[1]); err != nil {
				return err
			}
			ws.Session.RefreshCredits(ctx)
			ws.Notify.Success("Email verified")
			return nil
		},
	}
	cmd.Flags().BoolVar(&resend, "resend", false, "send a new verification code")
	return cmd
}

func newResetPasswordCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "reset-password <email>",
		Short: "Reset a forgotten password with an emailed code",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			ws, err := c.workspace(ctx)
			if err != nil {
				return err
			}
			email := args[0]
			msg, err := ws.Session.RequestPasswordReset(ctx, email)
			if err != nil {
				return err
			}
			ws.Notify.Info("Reset code requested", app.WithDescription(msg))

			code, err := c.prompt("Code: ")
			if err != nil {
				return err
			}
			if _, err := ws.Session.VerifyResetCode(ctx, email, code); err != nil {
				return err
			}
			password, err := c.prompt("New password: ")
			if err != nil {
				return err
			}
			confirm, err := c.prompt("Confirm password: ")
			if err != nil {
				return err
			}
			if _, err := ws.Session.ConfirmPasswordReset(ctx, email, code, password, confirm); err != nil {
				return err
			}
			ws.Notify.Success("Password reset", app.WithDescription("Sign in with the new password"))
			return nil
		},
	}
}

func newLogoutCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and forget the active dataset",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := c.workspace(cmd.Context())
			if err != nil {
				return err
			}
			if err := ws.Session.Logout(cmd.Context()); err != nil {
				return err
			}
			ws.Notify.Info("Signed out")
			return nil
		},
	}
}

func newWhoamiCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user and credit balance",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			ws, err := c.authed(ctx)
			if err != nil {
				return err
			}
			bal := ws.Session.RefreshCredits(ctx)
			s := ws.Session.Snapshot()
			out := cmd.OutOrStdout()
			if s.User != nil {
				fmt.Fprintf(out, "%s <%s> (%s)\n", s.User.FullName, s.User.Email, s.User.Role)
			}
			fmt.Fprintf(out, "credits: %.2f\n", bal.Display())
			return nil
		},
	}
}

func newCreditsCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "credits",
		Short: "Show the credit balance",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			ws, err := c.authed(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%.2f\n", ws.Session.RefreshCredits(ctx).Display())
			return nil
		},
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "buy <package-id>",
		Short: "Start a checkout for a credit package",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if _, err := c.authed(ctx); err != nil {
				return err
			}
			sess, err := c.client.CreateCheckout(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), sess.URL)
			return nil
		},
	})
	return cmd
}
