package root

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cory-johannsen/crystalpowers/internal/fieldcrypt"
	"github.com/cory-johannsen/crystalpowers/internal/game/selection"
)

func newSelectionsCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "selections",
		Short: "Inspect and migrate stored selections",
	}
	cmd.AddCommand(newSelectionsListCmd(opts), newReencryptCmd(opts))
	return cmd
}

func newSelectionsListCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every stored selection",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, cleanup, err := opts.open(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			store := selection.NewStore(e.backend.Repo, e.cipher, e.logger)
			n, err := store.Load(cmd.Context())
			if err != nil {
				return err
			}
			raw, err := e.backend.Repo.LoadAll(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, heading(IconCrystal, "Selections"))
			rows := [][]string{{"ACTOR", "POWER"}}
			for _, r := range store.Snapshot() {
				rows = append(rows, []string{r.ActorID.String(), r.PowerID})
			}
			if n > 0 {
				fmt.Fprintln(out, table(rows))
			}
			fmt.Fprintln(out, Muted.Render(fmt.Sprintf("%d selection(s)", n)))
			if skipped := len(raw) - n; skipped > 0 {
				fmt.Fprintln(out, Warn.Render(fmt.Sprintf("%s %d stored record(s) could not be read", IconWarn, skipped)))
			}
			return nil
		},
	}
}

func newReencryptCmd(opts *options) *cobra.Command {
	var (
		oldPassword    string
		dryRun         bool
		dropUnreadable bool
	)
	cmd := &cobra.Command{
		Use:   "reencrypt",
		Short: "Rewrite every stored record under the configured encryption setting",
		Long: "reencrypt decodes each stored record with --old-password (empty means the records are plaintext) " +
			"and writes it back encrypted with the configured master password, or as plaintext when encryption is disabled.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, cleanup, err := opts.open(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			from := fieldcrypt.Disabled()
			if oldPassword != "" {
				if from, err = fieldcrypt.New(oldPassword); err != nil {
					return err
				}
			}
			entries, err := e.backend.Repo.LoadAll(cmd.Context())
			if err != nil {
				return err
			}
			next, failed, err := recode(entries, from, e.cipher)
			if err != nil {
				return err
			}
			if failed > 0 && !dropUnreadable {
				return fmt.Errorf("%d of %d record(s) could not be decoded; check --old-password or pass --drop-unreadable", failed, len(entries))
			}

			out := cmd.OutOrStdout()
			summary := fmt.Sprintf("%d record(s) rewritten, %d dropped", len(next), failed)
			if dryRun {
				fmt.Fprintln(out, Muted.Render("dry run: "+summary))
				return nil
			}
			if err := e.backend.Repo.ReplaceAll(cmd.Context(), next); err != nil {
				return err
			}
			fmt.Fprintln(out, Good.Render(IconDone+" "+summary))
			fmt.Fprintln(out, labelValue("Encryption", onOff(e.cipher.Initialized())))
			return nil
		},
	}
	cmd.Flags().StringVar(&oldPassword, "old-password", "", "master password the records are currently encrypted with (empty = plaintext)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report without writing")
	cmd.Flags().BoolVar(&dropUnreadable, "drop-unreadable", false, "discard records that cannot be decoded")
	return cmd
}

// recode decodes entries with from and encodes them with to. Uninitialised
// codecs pass values through unchanged.
//
// Postcondition: Returns the re-encoded entries and the number of entries that
// could not be decoded.
func recode(entries []selection.Entry, from, to *fieldcrypt.Codec) ([]selection.Entry, int, error) {
	out := make([]selection.Entry, 0, len(entries))
	failed := 0
	for _, en := range entries {
		value := en.Power
		if from.Initialized() {
			plain, err := from.Decrypt(value)
			if err != nil {
				failed++
				continue
			}
			value = plain
		}
		if to.Initialized() {
			enc, err := to.Encrypt(value)
			if err != nil {
				return nil, 0, fmt.Errorf("encrypting record for %s: %w", en.ActorID, err)
			}
			value = enc
		}
		out = append(out, selection.Entry{ActorID: en.ActorID, Power: value})
	}
	return out, failed, nil
}
