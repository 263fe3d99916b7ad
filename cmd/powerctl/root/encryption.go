package root

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cory-johannsen/crystalpowers/internal/config"
	"github.com/cory-johannsen/crystalpowers/internal/fieldcrypt"
	"github.com/cory-johannsen/crystalpowers/internal/storage"
)

func newEncryptionCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "encryption",
		Short: "Manage encryption of the persisted power field",
	}
	cmd.AddCommand(
		newEncryptionStatusCmd(opts),
		newEncryptionEnableCmd(opts),
		newEncryptionDisableCmd(opts),
		newGenerateKeyCmd(opts),
		newEncryptionTestCmd(opts),
		newHashCmd(),
	)
	return cmd
}

func newEncryptionStatusCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show whether stored selections are encrypted and readable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, cleanup, err := opts.open(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			entries, err := e.backend.Repo.LoadAll(cmd.Context())
			if err != nil {
				return err
			}
			unreadable := 0
			if e.cipher.Initialized() {
				for _, en := range entries {
					if _, err := e.cipher.Decrypt(en.Power); err != nil {
						unreadable++
					}
				}
			}

			out := cmd.OutOrStdout()
			icon := IconUnlock
			if e.cipher.Initialized() {
				icon = IconLock
			}
			fmt.Fprintln(out, heading(icon, "Encryption"))
			fmt.Fprintln(out, labelValue("Status", onOff(e.cipher.Initialized())))
			if e.cipher.Initialized() {
				fmt.Fprintln(out, labelValue("Key fingerprint", e.cipher.Fingerprint()))
			}
			fmt.Fprintln(out, labelValue("Storage", fmt.Sprintf("%s (%s)", e.cfg.Storage.Driver, e.backend.Location)))
			fmt.Fprintln(out, labelValue("Records", fmt.Sprintf("%d (%d unreadable)", len(entries), unreadable)))
			if unreadable > 0 {
				fmt.Fprintln(out, Warn.Render(IconWarn+" some records cannot be decrypted with the current key; see `powerctl selections reencrypt`"))
			}
			return nil
		},
	}
}

func newEncryptionEnableCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "enable",
		Short: "Turn encryption on, generating a master password if none is set",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := config.WriteValue(opts.configPath, "encryption.enabled", true); err != nil {
				return err
			}
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			generated, err := config.EnsureEncryptionKey(opts.configPath, &cfg, fieldcrypt.GenerateKey)
			if err != nil {
				return err
			}
			codec, err := storage.OpenCipher(cfg.Encryption)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, Good.Render(IconLock+" encryption enabled"))
			fmt.Fprintln(out, labelValue("Key fingerprint", codec.Fingerprint()))
			if generated {
				fmt.Fprintln(out, Warn.Render(IconKey+" generated a new master password in "+opts.configPath))
			}
			fmt.Fprintln(out, Muted.Render("Existing plaintext records: run `powerctl selections reencrypt`."))
			return nil
		},
	}
}

func newEncryptionDisableCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "disable",
		Short: "Turn encryption off for subsequent writes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := config.WriteValue(opts.configPath, "encryption.enabled", false); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, Warn.Render(IconUnlock+" encryption disabled"))
			fmt.Fprintln(out, Muted.Render("Encrypted records: run `powerctl selections reencrypt --old-password <password>`."))
			return nil
		},
	}
}

func newGenerateKeyCmd(opts *options) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "generate-key",
		Short: "Generate and store a new master password",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cfg, err := opts.load(); err == nil && cfg.Encryption.MasterPassword != "" && !force {
				return errors.New("a master password is already set; existing records become unreadable under a new key (use --force)")
			}
			key, err := fieldcrypt.GenerateKey()
			if err != nil {
				return err
			}
			if err := config.WriteValue(opts.configPath, "encryption.master_password", key); err != nil {
				return err
			}
			codec, err := fieldcrypt.New(key)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, Good.Render(IconKey+" new master password written to "+opts.configPath))
			fmt.Fprintln(out, labelValue("Key fingerprint", codec.Fingerprint()))
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "replace an existing master password")
	return cmd
}

func newEncryptionTestCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "test [text]",
		Short: "Round-trip a sample value through the configured key",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			codec, err := storage.OpenCipher(cfg.Encryption)
			if err != nil {
				return err
			}
			if !codec.Initialized() {
				return fieldcrypt.ErrNotInitialized
			}
			sample := "crystal power test"
			if len(args) == 1 {
				sample = args[0]
			}
			blob, err := codec.Encrypt(sample)
			if err != nil {
				return err
			}
			back, err := codec.Decrypt(blob)
			if err != nil {
				return err
			}
			if back != sample {
				return fmt.Errorf("round trip mismatch: got %q", back)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, labelValue("Plaintext", sample))
			fmt.Fprintln(out, labelValue("Ciphertext", blob))
			fmt.Fprintln(out, Good.Render(IconDone+" round trip ok"))
			return nil
		},
	}
}

func newHashCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash <text>",
		Short: "Print the SHA-256 digest of text",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), fieldcrypt.Hash(args[0]))
			return nil
		},
	}
}
