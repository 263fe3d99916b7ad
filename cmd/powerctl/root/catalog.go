package root

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cory-johannsen/crystalpowers/internal/game/power"
	"github.com/cory-johannsen/crystalpowers/internal/game/random"
)

func newCatalogCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Inspect the power catalog",
	}
	cmd.AddCommand(newCatalogListCmd(opts), newCatalogShowCmd(opts))
	return cmd
}

func (o *options) catalog() (*power.Catalog, error) {
	cfg, err := o.load()
	if err != nil {
		return nil, err
	}
	loader := power.Builtin()
	if cfg.Catalog.Dir != "" {
		loader = power.Chain(power.Builtin(), power.LoadDirectory(cfg.Catalog.Dir))
	}
	return power.NewCatalog(loader, random.NewCryptoSource())
}

func newCatalogListCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every power in display order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := opts.catalog()
			if err != nil {
				return err
			}
			rows := [][]string{{"ID", "NAME", "MAX HP", "FLIGHT", "WEAK TO"}}
			for _, d := range c.All() {
				weak := make([]string, len(d.Traits.WeakTo))
				for i, w := range d.Traits.WeakTo {
					weak[i] = string(w)
				}
				rows = append(rows, []string{
					d.ID,
					d.Name,
					strconv.Itoa(d.Traits.MaxHealth),
					yesNo(d.Traits.CanFly),
					strings.Join(weak, ","),
				})
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, heading(IconCrystal, fmt.Sprintf("Powers (catalog v%d)", c.Version())))
			fmt.Fprintln(out, table(rows))
			return nil
		},
	}
}

func newCatalogShowCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one power's description and abilities",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.catalog()
			if err != nil {
				return err
			}
			d, err := c.Get(args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, heading(IconCrystal, d.Name))
			fmt.Fprintln(out, Muted.Render(d.Description))
			for _, section := range []struct {
				label string
				items []string
			}{
				{"Positives", d.Positives},
				{"Negatives", d.Negatives},
				{"Abilities", d.Abilities},
			} {
				if len(section.items) == 0 {
					continue
				}
				fmt.Fprintln(out, Key.Render(section.label+":"))
				for _, it := range section.items {
					fmt.Fprintln(out, "  - "+it)
				}
			}
			return nil
		},
	}
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
