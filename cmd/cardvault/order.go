package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/iconidentify/cardvault/internal/bootstrap"
	"github.com/iconidentify/cardvault/internal/domain"
)

func newShowCmd(g *globalFlags) *cobra.Command {
	var category string

	cmd := &cobra.Command{
		Use:   "show",
		Short: "List the collection in the saved order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, g, func(app *bootstrap.App, out io.Writer) error {
				items, err := listItems(cmd, app, domain.Category(category))
				if err != nil {
					return err
				}
				app.Ordering.Initialize(cmd.Context(), items)
				printItems(out, app, app.Ordering.OrderedItems(items))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&category, "category", "", "Only list psa-card, raw-card or sealed-product")
	return cmd
}

func newMoveCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "move ITEM_ID up|down",
		Short: "Move one item a single position",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, direction := domain.ItemID(args[0]), args[1]
			if direction != "up" && direction != "down" {
				return fmt.Errorf("direction must be up or down, got %q", direction)
			}
			return withApp(cmd, g, func(app *bootstrap.App, out io.Writer) error {
				if direction == "up" {
					app.Ordering.MoveUp(cmd.Context(), id)
				} else {
					app.Ordering.MoveDown(cmd.Context(), id)
				}
				if !app.Ordering.Save(cmd.Context()) {
					return fmt.Errorf("ordering could not be saved")
				}
				printOrder(out, app.Ordering.State())
				return nil
			})
		},
	}
}

func newSortCmd(g *globalFlags) *cobra.Command {
	var (
		descending bool
		category   string
	)

	cmd := &cobra.Command{
		Use:   "sort",
		Short: "Sort items by price",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cat := domain.Category(category)
			if cat != "" && !cat.Valid() {
				return fmt.Errorf("%w: %q", domain.ErrUnknownCategory, category)
			}
			return withApp(cmd, g, func(app *bootstrap.App, out io.Writer) error {
				items, err := listItems(cmd, app, "")
				if err != nil {
					return err
				}
				if cat != "" {
					app.Ordering.SortCategoryByPrice(cmd.Context(), items, cat, !descending)
				} else {
					app.Ordering.SortByPrice(cmd.Context(), items, !descending)
				}
				if !app.Ordering.Save(cmd.Context()) {
					return fmt.Errorf("ordering could not be saved")
				}
				printItems(out, app, app.Ordering.OrderedItems(items))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&descending, "desc", false, "Sort highest price first")
	cmd.Flags().StringVar(&category, "category", "", "Sort only this category in place")
	return cmd
}

func newResetCmd(g *globalFlags) *cobra.Command {
	var remove bool

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Restore the natural order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, g, func(app *bootstrap.App, out io.Writer) error {
				if remove {
					app.Ordering.Clear(cmd.Context())
					fmt.Fprintln(out, "Saved ordering removed")
					return nil
				}
				items, err := listItems(cmd, app, "")
				if err != nil {
					return err
				}
				app.Ordering.Reset(cmd.Context(), items)
				if !app.Ordering.Save(cmd.Context()) {
					return fmt.Errorf("ordering could not be saved")
				}
				printOrder(out, app.Ordering.State())
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&remove, "clear", false, "Delete the saved ordering instead of resetting it")
	return cmd
}

func newSelectCmd(g *globalFlags) *cobra.Command {
	var (
		all  bool
		none bool
	)

	cmd := &cobra.Command{
		Use:   "select [ITEM_ID...]",
		Short: "Toggle items in the export selection",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, g, func(app *bootstrap.App, out io.Writer) error {
				ctx := cmd.Context()
				switch {
				case none:
					app.Selection.ClearSelection(ctx)
				case all:
					items, err := listItems(cmd, app, "")
					if err != nil {
						return err
					}
					app.Selection.SelectAll(ctx, items)
				default:
					for _, id := range args {
						app.Selection.ToggleSelection(ctx, domain.ItemID(id))
					}
				}
				selected := app.Selection.Selected()
				fmt.Fprintf(out, "%d item(s) selected", len(selected))
				if len(selected) > 0 {
					fmt.Fprintf(out, ": %s", joinIDs(selected))
				}
				fmt.Fprintln(out)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "Select every item")
	cmd.Flags().BoolVar(&none, "clear", false, "Clear the selection")
	cmd.MarkFlagsMutuallyExclusive("all", "clear")
	return cmd
}

func listItems(cmd *cobra.Command, app *bootstrap.App, category domain.Category) ([]domain.CollectionItem, error) {
	if category != "" && !category.Valid() {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownCategory, category)
	}
	items, err := app.Client.ListItems(cmd.Context(), category)
	if err != nil {
		return nil, fmt.Errorf("list collection: %w", err)
	}
	return items, nil
}

func printItems(out io.Writer, app *bootstrap.App, items []domain.CollectionItem) {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tID\tCATEGORY\tNAME\tPRICE\tSELECTED")
	for i, it := range items {
		mark := ""
		if app.Selection.IsSelected(it.ID) {
			mark = "*"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n", i+1, it.ID, it.Category, it.Name, formatPrice(it.Price), mark)
	}
	tw.Flush()

	state := app.Ordering.State()
	if state.LastSortMethod != domain.SortMethodNone {
		fmt.Fprintf(out, "\nOrder: %s, changed %s\n", state.LastSortMethod, humanize.Time(state.LastSortTimestamp))
	}
}

func printOrder(out io.Writer, state domain.ItemOrderingState) {
	fmt.Fprintln(out, joinIDs(state.GlobalOrder))
}

func formatPrice(p float64) string {
	return "$" + humanize.FormatFloat("#,###.##", p)
}

func joinIDs(ids []domain.ItemID) string {
	s := make([]string, len(ids))
	for i, id := range ids {
		s[i] = string(id)
	}
	return strings.Join(s, " ")
}
