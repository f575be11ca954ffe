package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/goliatone/go-errors"
	"github.com/spf13/cobra"

	"github.com/fanyicharllson/whichemail/model"
	"github.com/fanyicharllson/whichemail/pkg/di"
)

func serviceNotFound(id string) error {
	return errors.New("service not found", errors.CategoryNotFound).
		WithTextCode("SERVICE_NOT_FOUND").
		WithMetadata(map[string]any{"id": id})
}

func (a *app) newListCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List your services, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, func(ctx context.Context, c *di.Container) error {
				list, err := c.Services().Services(ctx)
				if err != nil {
					return err
				}
				return printServices(cmd.OutOrStdout(), list, asJSON)
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	return cmd
}

func (a *app) newFavoritesCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "favorites",
		Short: "List favorite services",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, func(ctx context.Context, c *di.Container) error {
				list, err := c.Services().Favorites(ctx)
				if err != nil {
					return err
				}
				return printServices(cmd.OutOrStdout(), list, asJSON)
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	return cmd
}

func (a *app) newSearchCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "search <text>",
		Short: "Find services by name or email",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, func(ctx context.Context, c *di.Container) error {
				list, err := c.Services().Search(ctx, args[0])
				if err != nil {
					return err
				}
				return printServices(cmd.OutOrStdout(), list, asJSON)
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	return cmd
}

func (a *app) newGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show one service",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, func(ctx context.Context, c *di.Container) error {
				svc, err := c.Services().Service(ctx, args[0])
				if err != nil {
					return err
				}
				if svc == nil {
					return serviceNotFound(args[0])
				}
				return printJSON(cmd.OutOrStdout(), svc)
			})
		},
	}
}

type serviceFlags struct {
	name, email, category, website, notes string
}

func (f *serviceFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.name, "name", "", "Service name")
	cmd.Flags().StringVar(&f.email, "email", "", "Email used for the service")
	cmd.Flags().StringVar(&f.category, "category", "", "Category id")
	cmd.Flags().StringVar(&f.website, "website", "", "Website URL")
	cmd.Flags().StringVar(&f.notes, "notes", "", "Free form notes")
}

func (a *app) newAddCmd() *cobra.Command {
	var f serviceFlags
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			in := model.ServiceInput{
				ServiceName: f.name,
				Email:       f.email,
				CategoryID:  f.category,
				Website:     model.String(f.website),
				Notes:       model.String(f.notes),
			}
			return a.run(cmd, func(ctx context.Context, c *di.Container) error {
				svc, err := c.Services().Create(ctx, in)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Added %s (%s)\n", svc.ServiceName, svc.ID)
				return nil
			})
		},
	}
	f.register(cmd)
	return cmd
}

func (a *app) newUpdateCmd() *cobra.Command {
	var f serviceFlags
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Change fields of a service",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var patch model.ServicePatch
			flags := cmd.Flags()
			if flags.Changed("name") {
				patch.ServiceName = model.String(f.name)
			}
			if flags.Changed("email") {
				patch.Email = model.String(f.email)
			}
			if flags.Changed("category") {
				patch.CategoryID = model.String(f.category)
			}
			if flags.Changed("website") {
				patch.Website = model.String(f.website)
			}
			if flags.Changed("notes") {
				patch.Notes = model.String(f.notes)
			}
			if patch.IsEmpty() {
				return errors.New("nothing to update", errors.CategoryBadInput).WithTextCode("EMPTY_PATCH")
			}
			return a.run(cmd, func(ctx context.Context, c *di.Container) error {
				svc, err := c.Services().Update(ctx, args[0], patch)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Updated %s (%s)\n", svc.ServiceName, svc.ID)
				return nil
			})
		},
	}
	f.register(cmd)
	return cmd
}

func (a *app) newDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a service",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, func(ctx context.Context, c *di.Container) error {
				if err := c.Services().Delete(ctx, args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
				return nil
			})
		},
	}
}

func (a *app) newFavoriteCmd() *cobra.Command {
	var off bool
	cmd := &cobra.Command{
		Use:   "favorite <id>",
		Short: "Mark a service as favorite",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, func(ctx context.Context, c *di.Container) error {
				svc, err := c.Services().ToggleFavorite(ctx, args[0], !off)
				if err != nil {
					return err
				}
				state := "is"
				if !svc.IsFavorite {
					state = "is not"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s a favorite\n", svc.ServiceName, state)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&off, "off", false, "Remove from favorites instead")
	return cmd
}

func printServices(w io.Writer, list []model.Service, asJSON bool) error {
	if asJSON {
		return printJSON(w, list)
	}
	if len(list) == 0 {
		_, err := fmt.Fprintln(w, "No services found")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSERVICE\tEMAIL\tCATEGORY\tPASSWORD\tFAVORITE")
	for _, s := range list {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", s.ID, s.ServiceName, s.Email, s.CategoryID, mark(s.HasPassword), mark(s.IsFavorite))
	}
	return tw.Flush()
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func mark(b bool) string {
	if b {
		return "yes"
	}
	return "-"
}
