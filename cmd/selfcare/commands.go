package main

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ispkit/selfcare/insights"
	"github.com/ispkit/selfcare/internal/config"
	"github.com/ispkit/selfcare/session"
	"github.com/ispkit/selfcare/store/filestore"
)

func newLoginCmd(tenantID *string) *cobra.Command {
	return &cobra.Command{
		Use:   "login <username> <password>",
		Short: "Log in with username and password",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(*tenantID)
			if err != nil {
				return err
			}
			banner(a.cfg)

			result, err := a.client.Authenticate(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			if _, err := a.sessions.Create(args[0], result.Token,
				session.WithPassword(args[1]),
				session.WithClientName(a.tenant.ID),
			); err != nil {
				return err
			}
			if err := a.sessions.SaveTenantSelection(a.tenant.ID, a.tenant.BaseURL); err != nil {
				return err
			}
			fmt.Printf("Logged in as %s (%s)\n", args[0], a.tenant.Name)
			return nil
		},
	}
}

func newOTPCmd(tenantID *string) *cobra.Command {
	otp := &cobra.Command{
		Use:   "otp",
		Short: "OTP-based login",
	}
	otp.AddCommand(
		&cobra.Command{
			Use:   "request <mobile>",
			Short: "Request a one-time password",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				a, err := newApp(*tenantID)
				if err != nil {
					return err
				}
				if err := a.client.RequestOTP(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Println("OTP sent")
				return nil
			},
		},
		&cobra.Command{
			Use:   "verify <mobile> <code>",
			Short: "Complete an OTP login",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				a, err := newApp(*tenantID)
				if err != nil {
					return err
				}
				result, err := a.client.VerifyOTP(cmd.Context(), args[0], args[1])
				if err != nil {
					return err
				}
				// No password to cache: OTP sessions cannot silently regenerate.
				if _, err := a.sessions.Create(result.Profile.Username, result.Token,
					session.WithClientName(a.tenant.ID),
				); err != nil {
					return err
				}
				if err := a.sessions.SaveTenantSelection(a.tenant.ID, a.tenant.BaseURL); err != nil {
					return err
				}
				fmt.Printf("Logged in as %s (%s)\n", result.Profile.Username, a.tenant.Name)
				return nil
			},
		},
	)
	return otp
}

func newShowCmd(tenantID *string, name, short string) *cobra.Command {
	return &cobra.Command{
		Use:   name,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(*tenantID)
			if err != nil {
				return err
			}
			if err := precheck(a); err != nil {
				return err
			}
			ctx := cmd.Context()
			switch name {
			case "profile":
				v, err := a.service.Profile(ctx)
				if err != nil {
					return err
				}
				return printJSON(v)
			case "usage":
				v, err := a.service.Usage(ctx)
				if err != nil {
					return err
				}
				return printJSON(v)
			case "ledger":
				v, err := a.service.Ledger(ctx)
				if err != nil {
					return err
				}
				return printJSON(v)
			case "tickets":
				v, err := a.service.Tickets(ctx)
				if err != nil {
					return err
				}
				if len(v) == 0 {
					fmt.Println("No open tickets")
					return nil
				}
				return printJSON(v)
			case "insights":
				profile, err := a.service.Profile(ctx)
				if err != nil {
					return err
				}
				usage, err := a.service.Usage(ctx)
				if err != nil {
					return err
				}
				for _, in := range insights.All(profile, usage, 0, time.Now()) {
					fmt.Printf("[%d] %s - %s\n", in.Severity, in.Title, in.Body)
				}
				return nil
			}
			return fmt.Errorf("unknown command %q", name)
		},
	}
}

func newRenewCmd(tenantID *string) *cobra.Command {
	return &cobra.Command{
		Use:   "renew [plan-code]",
		Short: "List plans, or renew onto the given plan",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(*tenantID)
			if err != nil {
				return err
			}
			if err := precheck(a); err != nil {
				return err
			}
			if len(args) == 0 {
				plans, err := a.service.Plans(cmd.Context())
				if err != nil {
					return err
				}
				return printJSON(plans)
			}
			if err := a.service.Renew(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Printf("Renewal onto %s requested\n", args[0])
			return nil
		},
	}
}

func newDiagnoseCmd() *cobra.Command {
	var fix bool
	cmd := &cobra.Command{
		Use:   "diagnose",
		Short: "Inspect the persisted session for structural problems",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newSessionOnlyApp()
			if err != nil {
				return err
			}
			d := a.Diagnose()
			if len(d.Issues) == 0 {
				fmt.Println("Session looks healthy")
				return nil
			}
			for _, issue := range d.Issues {
				fmt.Printf("- %s\n", issue)
			}
			if d.NeedsReset {
				if !fix {
					fmt.Println("Run with --fix to reset the session")
					return nil
				}
				if err := a.Reset(); err != nil {
					return err
				}
				fmt.Println("Session reset, please login again")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&fix, "fix", false, "reset the session when diagnosis recommends it")
	return cmd
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Log out and clear local state",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newSessionOnlyApp()
			if err != nil {
				return err
			}
			if err := a.Logout(); err != nil {
				return err
			}
			fmt.Println("Logged out")
			return nil
		},
	}
}

// precheck short-circuits authenticated commands that cannot succeed
// without a login, and surfaces the advisory token-expiry warning.
func precheck(a *app) error {
	chk := a.tokens.CheckBeforeCall()
	if chk.ShouldRedirect {
		return fmt.Errorf("%s, please login first", chk.Message)
	}
	if chk.Message != "" {
		fmt.Fprintf(os.Stderr, "note: %s\n", chk.Message)
	}
	return nil
}

// newSessionOnlyApp wires just the store and session manager, for commands
// that must work without a tenant selection.
func newSessionOnlyApp() (*session.Manager, error) {
	cfg := config.New()
	key := sha256.Sum256([]byte(cfg.GetStorePassphrase()))
	kv, err := filestore.Open(cfg.GetStorePath(), key[:])
	if err != nil {
		return nil, err
	}
	sessions, err := session.New(kv, newLogger(cfg))
	if err != nil {
		return nil, err
	}
	return sessions, sessions.Initialize()
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
