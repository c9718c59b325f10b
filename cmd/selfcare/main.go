package main

import (
	"crypto/sha256"
	"fmt"
	"net/http"
	"os"

	"github.com/common-nighthawk/go-figure"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ispkit/selfcare/crm"
	"github.com/ispkit/selfcare/internal/config"
	"github.com/ispkit/selfcare/selfcare"
	"github.com/ispkit/selfcare/session"
	"github.com/ispkit/selfcare/store/filestore"
	"github.com/ispkit/selfcare/tenants"
	"github.com/ispkit/selfcare/token"
)

const version = "0.3.0"

// app holds the wired-up dependency graph for one invocation.
type app struct {
	cfg      config.Config
	log      zerolog.Logger
	sessions *session.Manager
	client   *crm.Client
	tokens   *token.Manager
	service  *selfcare.Service
	tenant   *tenants.Tenant
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var tenantID string

	root := &cobra.Command{
		Use:           "selfcare",
		Short:         "ISP subscriber self-care client",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&tenantID, "tenant", "", "tenant id (defaults to the stored selection)")

	root.AddCommand(
		newLoginCmd(&tenantID),
		newOTPCmd(&tenantID),
		newShowCmd(&tenantID, "profile", "Show the account profile"),
		newShowCmd(&tenantID, "usage", "Show current-cycle usage"),
		newShowCmd(&tenantID, "ledger", "Show the account ledger"),
		newShowCmd(&tenantID, "tickets", "List support tickets"),
		newShowCmd(&tenantID, "insights", "Show usage insights"),
		newRenewCmd(&tenantID),
		newDiagnoseCmd(),
		newLogoutCmd(),
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the client version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("selfcare %s\n", version)
		},
	}
}

// newApp wires the store, session, CRM client, token manager and feature
// service for the selected tenant. An empty tenantID falls back to the
// stored selection.
func newApp(tenantID string) (*app, error) {
	cfg := config.New()
	log := newLogger(cfg)

	key := sha256.Sum256([]byte(cfg.GetStorePassphrase()))
	kv, err := filestore.Open(cfg.GetStorePath(), key[:])
	if err != nil {
		return nil, err
	}

	sessions, err := session.New(kv, log)
	if err != nil {
		return nil, err
	}
	if err := sessions.Initialize(); err != nil {
		return nil, err
	}

	if tenantID == "" {
		if tenantID, err = sessions.TenantSelection(); err != nil || tenantID == "" {
			return nil, fmt.Errorf("no tenant selected: pass --tenant or login first")
		}
	}

	repo, err := tenants.LoadDir(cfg.GetTenantDir())
	if err != nil {
		return nil, err
	}
	tenant, err := repo.Get(tenantID)
	if err != nil {
		return nil, err
	}

	client, err := crm.New(tenant, log, crm.WithHTTPClient(&http.Client{Timeout: cfg.GetHTTPTimeout()}))
	if err != nil {
		return nil, err
	}
	tokens, err := token.New(sessions, client, log)
	if err != nil {
		return nil, err
	}
	service, err := selfcare.New(tokens, client, log)
	if err != nil {
		return nil, err
	}

	return &app{
		cfg:      cfg,
		log:      log,
		sessions: sessions,
		client:   client,
		tokens:   tokens,
		service:  service,
		tenant:   tenant,
	}, nil
}

func newLogger(cfg config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.GetLogLevel())
	if err != nil {
		level = zerolog.InfoLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level).With().Timestamp().Logger()
}

func banner(cfg config.Config) {
	myFigure := figure.NewFigure(cfg.GetAppName(), "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
