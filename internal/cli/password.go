package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/goliatone/go-errors"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/fanyicharllson/whichemail/pkg/di"
	"github.com/fanyicharllson/whichemail/rowstore"
	"github.com/fanyicharllson/whichemail/services"
)

func (a *app) newPasswordCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "password",
		Short: "Manage saved service passwords",
	}
	cmd.AddCommand(a.newPasswordSetCmd())
	cmd.AddCommand(a.newPasswordShowCmd())
	cmd.AddCommand(a.newPasswordRemoveCmd())
	cmd.AddCommand(a.newPasswordPurgeCmd())
	return cmd
}

func (a *app) newPasswordSetCmd() *cobra.Command {
	var secret string
	cmd := &cobra.Command{
		Use:   "set <id>",
		Short: "Save a password for a service; read from stdin without --secret",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if secret == "" {
				s, err := readSecret(cmd)
				if err != nil {
					return err
				}
				secret = s
			}
			return a.run(cmd, func(ctx context.Context, c *di.Container) error {
				svc, err := c.Services().SetPassword(ctx, args[0], secret)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Password saved for %s\n", svc.ServiceName)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&secret, "secret", "", "Password to save")
	return cmd
}

func (a *app) newPasswordShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Print the saved password of a service",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, func(ctx context.Context, c *di.Container) error {
				if c.Vault() == nil {
					return services.ErrNoCredentialStore
				}
				owner := c.Session().OwnerID(ctx)
				if owner == "" {
					return services.ErrNotAuthenticated
				}
				secret, err := c.Vault().Get(rowstore.WithActor(ctx, owner), args[0])
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), secret)
				return nil
			})
		},
	}
}

func (a *app) newPasswordRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <id>",
		Short: "Delete the saved password of a service",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, func(ctx context.Context, c *di.Container) error {
				svc, err := c.Services().RemovePassword(ctx, args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Password removed for %s\n", svc.ServiceName)
				return nil
			})
		},
	}
}

func (a *app) newPasswordPurgeCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete every saved password",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return errors.New("refusing to delete all passwords without --yes", errors.CategoryBadInput).
					WithTextCode("CONFIRMATION_REQUIRED")
			}
			return a.run(cmd, func(ctx context.Context, c *di.Container) error {
				n, err := c.Services().DeleteAllPasswords(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d password(s)\n", n)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "Confirm deleting every password")
	return cmd
}

// readSecret prompts for a password, without echo when stdin is a terminal.
func readSecret(cmd *cobra.Command) (string, error) {
	fmt.Fprint(cmd.ErrOrStderr(), "Password: ")
	if f, ok := cmd.InOrStdin().(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(cmd.ErrOrStderr())
		if err != nil {
			return "", errors.Wrap(err, errors.CategoryBadInput, "read password")
		}
		return string(b), nil
	}
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && line == "" {
		return "", errors.Wrap(err, errors.CategoryBadInput, "read password")
	}
	return strings.TrimRight(line, "\r\n"), nil
}
