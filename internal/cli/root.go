// Package cli implements the whichemail command line.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/fanyicharllson/whichemail/internal/config"
	"github.com/fanyicharllson/whichemail/notify"
	"github.com/fanyicharllson/whichemail/pkg/di"
)

// Factory builds the container for one command run. notifier receives the
// user facing notifications of the services client.
type Factory func(ctx context.Context, notifier notify.Notifier) (*di.Container, error)

// EnvFactory loads the configuration from envFiles and the environment.
func EnvFactory(envFiles ...string) Factory {
	return func(ctx context.Context, notifier notify.Notifier) (*di.Container, error) {
		cfg, err := config.Load(envFiles...)
		if err != nil {
			return nil, err
		}
		logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
		return di.NewContainer(ctx, cfg, di.WithLogger(logger), di.WithNotifier(notifier))
	}
}

type app struct {
	factory Factory
}

// NewRootCmd assembles every subcommand.
func NewRootCmd(version string, factory Factory) *cobra.Command {
	a := &app{factory: factory}
	root := &cobra.Command{
		Use:           "whichemail",
		Short:         "Remember which email you used for every service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newVersionCmd(version))
	root.AddCommand(a.newListCmd())
	root.AddCommand(a.newGetCmd())
	root.AddCommand(a.newAddCmd())
	root.AddCommand(a.newUpdateCmd())
	root.AddCommand(a.newDeleteCmd())
	root.AddCommand(a.newFavoriteCmd())
	root.AddCommand(a.newFavoritesCmd())
	root.AddCommand(a.newSearchCmd())
	root.AddCommand(a.newExportCmd())
	root.AddCommand(a.newStatsCmd())
	root.AddCommand(a.newPasswordCmd())
	return root
}

// run builds the container, calls fn and releases the container.
func (a *app) run(cmd *cobra.Command, fn func(ctx context.Context, c *di.Container) error) error {
	c, err := a.factory(cmd.Context(), printer(cmd.ErrOrStderr()))
	if err != nil {
		return err
	}
	defer c.Close()
	return fn(cmd.Context(), c)
}

// printer writes notifications as "Title: message" lines.
func printer(w io.Writer) notify.Notifier {
	return notify.Func(func(_ context.Context, n notify.Notification) {
		fmt.Fprintf(w, "%s: %s\n", n.Title, n.Message)
	})
}

func newVersionCmd(version string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version info",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "whichemail %s\n", version)
		},
	}
}
