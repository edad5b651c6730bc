package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/logiflow/logiflow/internal/core/domain"
	"github.com/logiflow/logiflow/internal/core/ports"
	"github.com/logiflow/logiflow/internal/infrastructure/config"
	mongostore "github.com/logiflow/logiflow/internal/infrastructure/db/mongo"
)

const defaultUsersTimeout = 30 * time.Second

// roleStoreOpener connects to the user store. The returned func releases it.
type roleStoreOpener func(ctx context.Context) (ports.RoleMaintainer, func(), error)

func openRoleStore(ctx context.Context) (ports.RoleMaintainer, func(), error) {
	cfg, err := config.Load(ctx)
	if err != nil {
		return nil, nil, err
	}
	client, db, err := mongostore.Connect(ctx, mongostore.Config{URI: cfg.Mongo.URI, Database: cfg.Mongo.Database})
	if err != nil {
		return nil, nil, err
	}
	closeFn := func() {
		dctx, cancel := context.WithTimeout(context.Background(), disconnectTimeout)
		defer cancel()
		_ = client.Disconnect(dctx)
	}
	return mongostore.NewUserRepository(db, mongostore.NewSequenceGenerator(db)), closeFn, nil
}

// NewUsersCmd creates the users command group.
func NewUsersCmd(open roleStoreOpener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Maintain user accounts",
	}
	cmd.AddCommand(newMigrateRolesCmd(open))
	return cmd
}

type migrateRolesConfig struct {
	all     bool
	email   string
	timeout time.Duration
}

func newMigrateRolesCmd(open roleStoreOpener) *cobra.Command {
	cfg := &migrateRolesConfig{}

	cmd := &cobra.Command{
		Use:   "migrate-roles",
		Short: "Move users onto the current operator role",
		Long: `Rewrites the legacy "operator" role to "operador".
With --all every legacy record is migrated; with --email only that user is
set to "operador", whatever role they held.`,
		Example: `  logiflow users migrate-roles --all
  logiflow users migrate-roles --email=user@example.com`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMigrateRoles(cmd, cfg, open)
		},
	}

	cmd.Flags().BoolVar(&cfg.all, "all", false, "migrate every user holding the legacy role")
	cmd.Flags().StringVar(&cfg.email, "email", "", "migrate a single user by email")
	cmd.Flags().DurationVar(&cfg.timeout, "timeout", defaultUsersTimeout, "timeout for database operations")
	cmd.MarkFlagsMutuallyExclusive("all", "email")
	cmd.MarkFlagsOneRequired("all", "email")

	return cmd
}

func runMigrateRoles(cmd *cobra.Command, cfg *migrateRolesConfig, open roleStoreOpener) error {
	email := domain.NormalizeEmail(cfg.email)
	if !cfg.all && email == "" {
		return errors.New("--email must not be blank")
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.timeout)
	defer cancel()

	store, release, err := open(ctx)
	if err != nil {
		return fmt.Errorf("open user store: %w", err)
	}
	defer release()

	var matched, modified int64
	if cfg.all {
		matched, modified, err = store.RenameRole(ctx, domain.RoleLegacyOperator, domain.RoleOperator)
	} else {
		matched, modified, err = store.SetRoleByEmail(ctx, email, domain.RoleOperator)
	}
	if err != nil {
		return fmt.Errorf("migrate roles: %w", err)
	}

	cmd.Printf("Matched %d, modified %d\n", matched, modified)
	return nil
}
