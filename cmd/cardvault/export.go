package main

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/iconidentify/cardvault/internal/bootstrap"
	"github.com/iconidentify/cardvault/internal/domain"
	"github.com/iconidentify/cardvault/internal/service"
)

type exportFlags struct {
	itemType   string
	format     string
	ids        []string
	order      []string
	sortPrice  string
	grouped    bool
	selection  bool
	savedOrder bool
	seal       bool
}

func newExportCmd(g *globalFlags) *cobra.Command {
	f := &exportFlags{}

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export items through the collection backend",
		Long: `Export items through the collection backend and save the file in the
download directory.

Items come from --ids, from the saved selection with --selection, or default to
every item of --type. The export order is --order, then --sort-price, then the
saved ordering with --saved-order.

Examples:
  cardvault export --type psa-card --sort-price asc
  cardvault export --type collection --format dba --selection --saved-order
  cardvault export --type auction --ids psa-123 --seal`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := f.request()
			if err != nil {
				return err
			}

			var opts []service.ExportOption
			if f.seal {
				password, err := promptPassword(cmd, "Seal password: ")
				if err != nil {
					return fmt.Errorf("read password: %w", err)
				}
				opts = append(opts, service.WithSealPassword(password))
			}

			return withApp(cmd, g, func(app *bootstrap.App, out io.Writer) error {
				if req.Format == "" {
					req.Format = app.DefaultFormat()
				}
				if f.selection && len(req.ItemIDs) == 0 {
					req.ItemIDs = app.Selection.Selected()
					opts = append(opts, service.WithSelectionOnly())
				}
				if f.savedOrder {
					req = app.Export.WithSavedOrder(req)
				}

				category, _ := req.ItemType.Category()
				items, err := listItems(cmd, app, category)
				if err != nil {
					return err
				}

				outcome, err := app.Export.ExportOrderedItems(cmd.Context(), req, items, opts...)
				if err != nil {
					return err
				}

				fmt.Fprintln(out, outcome.Message)
				fmt.Fprintf(out, "Saved %s (%s)\n", outcome.File.Path, humanize.Bytes(uint64(outcome.File.Size)))
				return nil
			})
		},
	}

	fl := cmd.Flags()
	fl.StringVarP(&f.itemType, "type", "t", "", "Item type: psa-card, raw-card, sealed-product, auction or collection")
	fl.StringVarP(&f.format, "format", "f", "", "Format: zip, facebook-text, dba or json (default from config)")
	fl.StringSliceVar(&f.ids, "ids", nil, "Item IDs to export")
	fl.StringSliceVar(&f.order, "order", nil, "Explicit item order")
	fl.StringVar(&f.sortPrice, "sort-price", "", "Sort by price: asc or desc")
	fl.BoolVar(&f.grouped, "group", false, "Keep categories together when sorting by price")
	fl.BoolVar(&f.selection, "selection", false, "Export the saved selection")
	fl.BoolVar(&f.savedOrder, "saved-order", false, "Apply the saved ordering")
	fl.BoolVar(&f.seal, "seal", false, "Prompt for a password and seal the saved file")
	cmd.MarkFlagRequired("type")
	cmd.MarkFlagsMutuallyExclusive("ids", "selection")

	return cmd
}

// request builds the export request from the flags.
func (f *exportFlags) request() (domain.ExportRequest, error) {
	req := domain.ExportRequest{
		ItemType:                 domain.ItemType(f.itemType),
		Format:                   domain.ExportFormat(f.format),
		ItemIDs:                  toIDs(f.ids),
		ItemOrder:                toIDs(f.order),
		MaintainCategoryGrouping: f.grouped,
	}
	if !req.ItemType.Valid() {
		return req, fmt.Errorf("unknown item type %q", f.itemType)
	}
	if req.Format != "" && !req.Format.Valid() {
		return req, fmt.Errorf("%w: %q", domain.ErrUnsupportedFormat, f.format)
	}

	switch f.sortPrice {
	case "":
	case "asc":
		req.SortByPrice, req.SortAscending = true, true
	case "desc":
		req.SortByPrice = true
	default:
		return req, fmt.Errorf("--sort-price must be asc or desc, got %q", f.sortPrice)
	}
	return req, nil
}

func toIDs(s []string) []domain.ItemID {
	if len(s) == 0 {
		return nil
	}
	ids := make([]domain.ItemID, len(s))
	for i, v := range s {
		ids[i] = domain.ItemID(v)
	}
	return ids
}
