package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"linkfetch/internal"
	"linkfetch/session"
	"linkfetch/utils"
)

var lsCmd = &cobra.Command{
	Use:   "ls <LINK>",
	Short: "List the contents of a link with selection indices",
	Long: `List every entry below a folder link in pre-order. Each line starts with
the index used by "get --select" and "export".`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext(nil)
		defer cancel()

		sess, _, err := openSession(ctx, args[0])
		if err != nil {
			return err
		}
		defer sess.Quit()

		entries, err := sess.List()
		if err != nil {
			return err
		}
		fmt.Print(session.Render(entries))
		return nil
	},
}

var exportCmd = &cobra.Command{
	Use:   "export <LINK> [INDEX]",
	Short: "Print a shareable link for one entry",
	Long: `Export a shareable link for the entry at INDEX of the listing. Without an
index the entry is chosen interactively.

S3 files export as presigned GET URLs valid for LINKFETCH_EXPORT_TTL.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext(nil)
		defer cancel()

		sess, _, err := openSession(ctx, args[0])
		if err != nil {
			return err
		}
		defer sess.Quit()

		entries, err := sess.List()
		if err != nil {
			return err
		}

		var entry session.Entry
		switch {
		case len(args) == 2:
			if _, err := strconv.Atoi(args[1]); err != nil {
				return internal.NewInvalidSelectionError(args[1], "index must be a number")
			}
			selected, err := sess.Select(args[1])
			if err != nil {
				return err
			}
			entry = selected[0]
		case isInteractive():
			if entry, err = pickEntry(entries); err != nil {
				return err
			}
		default:
			return internal.NewInvalidSelectionError("", "an index is required when not running in a terminal")
		}

		exported, err := sess.Export(ctx, entry)
		if err != nil {
			return err
		}
		printf("🔗 %s\n", entry.Name)
		fmt.Println(exported)
		return nil
	},
}

var accountCmd = &cobra.Command{
	Use:   "account <LINK>",
	Short: "Show storage usage behind a folder link",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext(nil)
		defer cancel()

		sess, _, err := openSession(ctx, args[0])
		if err != nil {
			return err
		}
		defer sess.Quit()

		details, err := sess.AccountDetails(ctx)
		if err != nil {
			return err
		}

		fmt.Printf("📁 Folders: %d\n", details.Folders)
		fmt.Printf("📄 Files:   %d\n", details.Files)
		if details.StorageMax > 0 {
			fmt.Printf("📏 Used:    %s of %s\n", utils.FormatBytes(details.StorageUsed), utils.FormatBytes(details.StorageMax))
		} else {
			fmt.Printf("📏 Used:    %s\n", utils.FormatBytes(details.StorageUsed))
		}
		if details.TransferQuota > 0 {
			fmt.Printf("🚦 Transfer quota: %s\n", utils.FormatBytes(details.TransferQuota))
		}
		return nil
	},
}
