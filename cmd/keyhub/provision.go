package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/keyhub-dev/keyhub/internal/bootstrap"
	"github.com/keyhub-dev/keyhub/internal/config"
	"github.com/keyhub-dev/keyhub/internal/notifier"
	"github.com/keyhub-dev/keyhub/internal/panel"
	"github.com/keyhub-dev/keyhub/internal/repository/sqlstore"
	"github.com/keyhub-dev/keyhub/internal/service"
	"github.com/keyhub-dev/keyhub/internal/support/logging"
)

// provisionDeps bundles everything the admin commands need.
type provisionDeps struct {
	cfg         *config.Config
	db          *sqlstore.DB
	store       *sqlstore.Store
	selector    *service.SelectorService
	provisioner *service.ProvisionService
}

func buildProvisionDeps(ctx context.Context) (*provisionDeps, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger := logging.New(logging.Options{
		Level:  cfg.Log.SlogLevel(),
		Format: cfg.Log.Format,
	})

	db, err := bootstrap.OpenDatabase(ctx, cfg.DB)
	if err != nil {
		return nil, err
	}
	store := sqlstore.NewStore(db)

	factory := panel.NewFactory(panel.Credentials{
		XUIUsername:       cfg.Panels.XUIUsername,
		XUIPassword:       cfg.Panels.XUIPassword,
		RemnawaveLogin:    cfg.Panels.RemnawaveLogin,
		RemnawavePassword: cfg.Panels.RemnawavePassword,
	}, cfg.Panels.RequestTimeout)

	prober := service.NewProber(factory, cfg.Panels.ProbeTimeout, logger)
	selector := service.NewSelectorService(store.Servers(), prober, logger)
	provisioner := service.NewProvisionService(store.Keys(), store.Servers(), store.Users(), factory, cfg.Provision.PublicLinkBase, logger)
	if cfg.Telegram.Enabled && cfg.Telegram.AdminID != 0 {
		tg, err := notifier.NewTelegramService(cfg.Telegram.Token, logger)
		if err != nil {
			return nil, err
		}
		provisioner.SetAlertChannel(tg, cfg.Telegram.AdminID)
	}

	return &provisionDeps{
		cfg:         cfg,
		db:          db,
		store:       store,
		selector:    selector,
		provisioner: provisioner,
	}, nil
}

func init() {
	keyCmd := &cobra.Command{
		Use:   "key",
		Short: "Issue and migrate access keys",
	}

	var (
		issueTgID   int64
		issueServer string
		issueEmail  string
		issueDays   int
		issueTrial  bool
	)
	issueCmd := &cobra.Command{
		Use:   "issue",
		Short: "Create a credential on a panel server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			deps, err := buildProvisionDeps(ctx)
			if err != nil {
				return err
			}
			defer deps.db.Close()

			server := strings.TrimSpace(issueServer)
			if server == "" {
				cluster, err := deps.selector.LeastLoadedCluster(ctx)
				if err != nil {
					return err
				}
				available, err := deps.selector.AvailableServers(ctx, cluster)
				if err != nil {
					return err
				}
				if len(available) == 0 {
					return fmt.Errorf("no reachable servers in cluster %s", cluster)
				}
				server = available[0]
			}

			result, err := deps.provisioner.Issue(ctx, service.IssueParams{
				TgID:       issueTgID,
				ServerName: server,
				ExpiryTime: time.Now().AddDate(0, 0, issueDays),
				Email:      issueEmail,
				Trial:      issueTrial,
			})
			if err != nil {
				return err
			}
			fmt.Printf("issued %s on %s\n%s\n", result.Email, server, result.Link)
			return nil
		},
	}
	issueCmd.Flags().Int64Var(&issueTgID, "tg-id", 0, "owner Telegram id")
	issueCmd.Flags().StringVar(&issueServer, "server", "", "target server name (default: least loaded cluster)")
	issueCmd.Flags().StringVar(&issueEmail, "email", "", "credential name (default: generated)")
	issueCmd.Flags().IntVar(&issueDays, "days", 30, "validity in days")
	issueCmd.Flags().BoolVar(&issueTrial, "trial", false, "mark the owner's trial as used")
	_ = issueCmd.MarkFlagRequired("tg-id")

	var (
		moveEmail  string
		moveServer string
	)
	moveCmd := &cobra.Command{
		Use:   "move",
		Short: "Move an existing key to another server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			deps, err := buildProvisionDeps(ctx)
			if err != nil {
				return err
			}
			defer deps.db.Close()

			result, err := deps.provisioner.Migrate(ctx, moveEmail, moveServer)
			if err != nil {
				return err
			}
			fmt.Printf("moved %s to %s\n%s\n", result.Email, moveServer, result.Link)
			return nil
		},
	}
	moveCmd.Flags().StringVar(&moveEmail, "email", "", "credential name")
	moveCmd.Flags().StringVar(&moveServer, "server", "", "destination server name")
	_ = moveCmd.MarkFlagRequired("email")
	_ = moveCmd.MarkFlagRequired("server")

	keyCmd.AddCommand(issueCmd, moveCmd)
	rootCmd.AddCommand(keyCmd)

	serversCmd := &cobra.Command{
		Use:   "servers",
		Short: "Inspect panel server availability",
	}

	var checkCluster string
	checkCmd := &cobra.Command{
		Use:   "check",
		Short: "Probe servers in a cluster and list the reachable ones",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			deps, err := buildProvisionDeps(ctx)
			if err != nil {
				return err
			}
			defer deps.db.Close()

			cluster := checkCluster
			if cluster == "" {
				cluster, err = deps.selector.LeastLoadedCluster(ctx)
				if err != nil {
					return err
				}
			}
			available, err := deps.selector.AvailableServers(ctx, cluster)
			if err != nil {
				return err
			}
			fmt.Printf("cluster %s: %d reachable\n", cluster, len(available))
			for _, name := range available {
				fmt.Println("  " + name)
			}
			return nil
		},
	}
	checkCmd.Flags().StringVar(&checkCluster, "cluster", "", "cluster name (default: least loaded)")
	serversCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(serversCmd)
}
