// qpin-admin is the operational CLI: migrations, token cleanup, and the
// account fixes that should not need a running server.
package main

import (
	"database/sql"
	"fmt"
	"os"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/spf13/cobra"

	"qpin/internal/config"
	internaldb "qpin/internal/db"
	"qpin/internal/db/repository"
	"qpin/internal/domain"
	"qpin/internal/token"
)

func main() {
	root := &cobra.Command{
		Use:           "qpin-admin",
		Short:         "Administrative tasks for the qpin backend",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(migrateCmd(), cleanupTokensCmd(), promoteCmd(), mintEnduserCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// openStore loads config and opens the write pool with migrations applied.
// One-shot commands run sequentially, so the single pool serves as both the
// write and read side of each repository.
func openStore() (*config.Config, *sql.DB, error) {
	if err := config.LoadDotEnv(".env"); err != nil {
		return nil, nil, err
	}
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return nil, nil, err
	}
	pool, err := internaldb.OpenSQLite(cfg.DBPath, "write", 0)
	if err != nil {
		return nil, nil, err
	}
	if err := internaldb.RunMigrations(pool); err != nil {
		pool.Close()
		return nil, nil, err
	}
	return cfg, pool, nil
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, pool, err := openStore()
			if err != nil {
				return err
			}
			defer pool.Close()
			fmt.Println("migrations applied")
			return nil
		},
	}
}

func cleanupTokensCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup-tokens",
		Short: "Deactivate expired refresh tokens",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, pool, err := openStore()
			if err != nil {
				return err
			}
			defer pool.Close()

			tokens := repository.NewRefreshTokenRepo(pool, pool)
			n, err := tokens.CleanupExpired(cmd.Context(), time.Now())
			if err != nil {
				return err
			}
			fmt.Printf("deactivated %d expired tokens\n", n)
			return nil
		},
	}
}

func promoteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "promote <email>",
		Short: "Grant the ADMIN role to an existing user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, pool, err := openStore()
			if err != nil {
				return err
			}
			defer pool.Close()

			users := repository.NewUserRepo(pool, pool)
			user, err := users.GetByEmail(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if err := users.SetRole(cmd.Context(), user.ID, domain.RoleAdmin); err != nil {
				return err
			}
			fmt.Printf("user %s is now ADMIN\n", args[0])
			return nil
		},
	}
}

func mintEnduserCmd() *cobra.Command {
	var groupID int64
	cmd := &cobra.Command{
		Use:   "mint-enduser <name>",
		Short: "Create an enduser account and print its login credential",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, pool, err := openStore()
			if err != nil {
				return err
			}
			defer pool.Close()

			encoder, err := token.NewEnduserEncoder(cfg.SecretKey, cfg.KDFIterations)
			if err != nil {
				return err
			}
			credential, err := encoder.Encode(args[0])
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			users := repository.NewUserRepo(pool, pool)
			name := args[0]
			user, err := users.Create(ctx, &domain.User{
				Name:         &name,
				Role:         domain.RoleEnduser,
				IsActive:     true,
				EnduserToken: &credential,
			})
			if err != nil {
				return err
			}

			if groupID > 0 {
				groups := repository.NewGroupRepo(pool, pool)
				if _, err := groups.GetByID(ctx, groupID); err != nil {
					return err
				}
				if _, err := groups.AddMember(ctx, &domain.GroupMember{
					UserID:  user.ID,
					GroupID: groupID,
					Role:    domain.GroupRoleMember,
				}); err != nil {
					return err
				}
			}

			fmt.Printf("user id: %d\ncredential: %s\n", user.ID, credential)
			return nil
		},
	}
	cmd.Flags().Int64Var(&groupID, "group", 0, "group to add the enduser to as MEMBER")
	return cmd
}
