// Package cli implements authctl, the administration tool that works on the
// account store directly through the account service.
package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/dmitrijs2005/authkeeper/internal/cryptox"
	"github.com/dmitrijs2005/authkeeper/internal/logging"
	"github.com/dmitrijs2005/authkeeper/internal/server"
	"github.com/dmitrijs2005/authkeeper/internal/server/config"
	"github.com/dmitrijs2005/authkeeper/internal/server/services"
	"github.com/spf13/cobra"
)

// ErrInvalidCredentials is returned by the check command.
var ErrInvalidCredentials = errors.New("invalid credentials")

type app struct {
	in     *bufio.Reader
	out    io.Writer
	errOut io.Writer

	driver string
	dsn    string
	cfg    *config.Config
}

// NewRootCommand builds authctl. Defaults for --driver and --dsn come from
// the environment (DATABASE_DRIVER, DATABASE_DSN).
func NewRootCommand(ctx context.Context, in io.Reader, out, errOut io.Writer) (*cobra.Command, error) {
	cfg, err := config.LoadFromEnv(ctx)
	if err != nil {
		return nil, err
	}
	a := &app{in: bufio.NewReader(in), out: out, errOut: errOut, cfg: cfg}

	cmd := &cobra.Command{
		Use:           "authctl",
		Short:         "Administer AuthKeeper accounts",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetIn(in)
	cmd.SetOut(out)
	cmd.SetErr(errOut)

	cmd.PersistentFlags().StringVar(&a.driver, "driver", cfg.DatabaseDriver, "database driver (pgx | sqlite)")
	cmd.PersistentFlags().StringVar(&a.dsn, "dsn", cfg.DatabaseDSN, "database DSN")

	cmd.AddCommand(
		a.newMigrateCommand(),
		a.newRegisterCommand(),
		a.newCheckCommand(),
		a.newResetTokenCommand(),
		a.newResetPasswordCommand(),
	)
	return cmd, nil
}

// withService opens and migrates the store, runs fn and closes the store.
func (a *app) withService(ctx context.Context, fn func(*services.AccountService) error) error {
	db, repos, err := server.OpenStore(ctx, a.driver, a.dsn)
	if err != nil {
		return err
	}
	defer db.Close()

	hasher, err := cryptox.NewPasswordHasher(a.cfg.PasswordHasher, a.cfg.BcryptCost)
	if err != nil {
		return err
	}
	logger := logging.New(a.errOut, "warn", a.cfg.RedactFields)

	return fn(services.NewAccountService(db, repos, hasher, logger, nil))
}

func (a *app) password(prompt string) (string, error) {
	pw, err := GetPassword(a.in, prompt, a.out)
	if err != nil {
		return "", err
	}
	defer common.WipeByteArray(pw)
	if len(pw) == 0 {
		return "", errors.New("empty password")
	}
	return string(pw), nil
}

func (a *app) newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, _, err := server.OpenStore(cmd.Context(), a.driver, a.dsn)
			if err != nil {
				return err
			}
			defer db.Close()
			fmt.Fprintln(a.out, "migrations applied")
			return nil
		},
	}
}

func (a *app) newRegisterCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "register <email>",
		Short: "Create an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pw, err := a.password("Enter password")
			if err != nil {
				return err
			}
			return a.withService(cmd.Context(), func(s *services.AccountService) error {
				acc, err := s.Register(cmd.Context(), args[0], pw)
				if err != nil {
					return err
				}
				fmt.Fprintf(a.out, "registered %s (id %d)\n", acc.Email, acc.ID)
				return nil
			})
		},
	}
}

func (a *app) newCheckCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "check <email>",
		Short: "Verify a password",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pw, err := a.password("Enter password")
			if err != nil {
				return err
			}
			return a.withService(cmd.Context(), func(s *services.AccountService) error {
				if !s.Authenticate(cmd.Context(), args[0], pw) {
					return ErrInvalidCredentials
				}
				fmt.Fprintln(a.out, "credentials valid")
				return nil
			})
		},
	}
}

func (a *app) newResetTokenCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "reset-token <email>",
		Short: "Issue a password reset token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withService(cmd.Context(), func(s *services.AccountService) error {
				token, err := s.RequestPasswordReset(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				fmt.Fprintln(a.out, token)
				return nil
			})
		},
	}
}

func (a *app) newResetPasswordCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "reset-password <token>",
		Short: "Set a new password using a reset token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pw, err := a.password("Enter new password")
			if err != nil {
				return err
			}
			return a.withService(cmd.Context(), func(s *services.AccountService) error {
				if err := s.ConsumePasswordReset(cmd.Context(), args[0], pw); err != nil {
					return err
				}
				fmt.Fprintln(a.out, "password updated")
				return nil
			})
		},
	}
}
