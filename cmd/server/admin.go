package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kmsv-2726/federated-socmed/internal/service"
	"github.com/kmsv-2726/federated-socmed/pkg/auth"
	"github.com/kmsv-2726/federated-socmed/pkg/database"
)

// withApp 一次性命令：加载配置、组装服务、执行 fn、关闭连接
func withApp(fn func(ctx context.Context, a *app) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := context.Background()
	a, err := newApp(ctx, cfg, false)
	if err != nil {
		return err
	}
	defer a.close()
	return fn(ctx, a)
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update database tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app) error {
				if err := database.Migrate(a.db); err != nil {
					return err
				}
				fmt.Println("migrated")
				return nil
			})
		},
	}
}

func userCmd() *cobra.Command {
	var (
		displayName string
		admin       bool
	)
	cmd := &cobra.Command{
		Use:   "user-add <local-id>",
		Short: "Register a local user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app) error {
				u, err := a.users.Register(ctx, service.RegisterInput{
					LocalID:     args[0],
					DisplayName: displayName,
					Admin:       admin,
				})
				if err != nil {
					return err
				}
				fmt.Printf("%s\t%s\n", u.FederatedID, u.Role)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&displayName, "name", "", "display name")
	cmd.Flags().BoolVar(&admin, "admin", false, "grant admin role")
	return cmd
}

func tokenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "token <federated-id>",
		Short: "Issue an API token for an existing local user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app) error {
				if _, err := a.users.GetProfile(ctx, args[0]); err != nil {
					return err
				}
				token, err := auth.NewManager(a.cfg.JWT).Issue(args[0])
				if err != nil {
					return err
				}
				fmt.Println(token)
				return nil
			})
		},
	}
}

func requeueCmd() *cobra.Command {
	var actor string
	cmd := &cobra.Command{
		Use:   "requeue <post-id>",
		Short: "Move a failed post back to the delivery queue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app) error {
				p, err := a.postSvc.Requeue(ctx, actor, args[0])
				if err != nil {
					return err
				}
				fmt.Printf("%s\t%s\n", p.FederatedID, p.FederationStatus)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&actor, "as", "", "admin federated id performing the action")
	_ = cmd.MarkFlagRequired("as")
	return cmd
}

func approveCmd() *cobra.Command {
	var (
		actor  string
		reject bool
	)
	cmd := &cobra.Command{
		Use:   "approve <request-id>",
		Short: "Approve (or --reject) a private channel access request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app) error {
				decide := a.channels.ApproveRequest
				if reject {
					decide = a.channels.RejectRequest
				}
				req, err := decide(ctx, actor, args[0])
				if err != nil {
					return err
				}
				fmt.Printf("%s\t%s\t%s\n", req.UserID, req.ChannelName, req.Status)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&actor, "as", "", "admin federated id performing the action")
	cmd.Flags().BoolVar(&reject, "reject", false, "reject instead of approve")
	_ = cmd.MarkFlagRequired("as")
	return cmd
}
