package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync/atomic"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"linkfetch/internal"
	"linkfetch/metrics"
	"linkfetch/remote"
	"linkfetch/session"
	"linkfetch/utils"
)

var (
	selectExpr string
	assumeYes  bool
)

var getCmd = &cobra.Command{
	Use:   "get [OPTIONS] <LINK>",
	Short: "Download a selection from a folder link, or a file link",
	Long: `Open a link and download from it.

For folder links the contents are listed and a selection is read from
--select or prompted for; "0" selects the whole folder. File links ask for
confirmation unless --yes is given.

While transfers run, type a command and press enter:
  p  pause all transfers      r  resume
  s  print status lines       c  cancel everything and exit
  q  quit

Examples:
  linkfetch get s3://media/shows/
  linkfetch get --select 1,3-4 --dir season1 s3://media/shows/
  linkfetch get -y file:///srv/share/movie.mkv`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runGet(args[0])
	},
}

func init() {
	getCmd.Flags().StringVarP(&subDir, "dir", "o", "", "Directory under the download directory to save into")
	getCmd.Flags().StringVarP(&selectExpr, "select", "s", "", "Entries to download, e.g. 1,3,5-7 (folder links)")
	getCmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "Do not ask for confirmation")
}

func runGet(link string) error {
	var current atomic.Pointer[session.Session]
	ctx, cancel := signalContext(func(sig os.Signal) {
		printf("\n🛑 Received %v signal, cancelling transfers...\n", sig)
		if sess := current.Load(); sess != nil {
			sess.Cancel()
		}
	})
	defer cancel()

	printf("🔍 Opening %s\n", link)
	sess, node, err := openSession(ctx, link)
	if err != nil {
		return err
	}
	current.Store(sess)
	defer sess.Quit()

	entries, err := sess.List()
	if err != nil {
		return err
	}

	selected, err := chooseEntries(sess, node, entries)
	if err != nil || len(selected) == 0 {
		return err
	}

	dest := config.DownloadDir
	if subDir != "" {
		if dest, err = utils.NewFileOperations().SafeJoin(config.DownloadDir, subDir); err != nil {
			return internal.NewValidationErrorWithValue("dir", err.Error(), subDir)
		}
	}

	transfers, err := sess.Download(selected, dest)
	if err != nil {
		internal.LogWarn("Some entries could not be started: %v", err)
		if len(transfers) == 0 {
			return err
		}
		printf("⚠️  %v\n", err)
	}
	printf("🚀 Started %d transfer(s) into %s\n\n", len(transfers), dest)

	if err := watchTransfers(ctx, sess); err != nil {
		if internal.IsType(err, internal.ErrSessionClosed) || errors.Is(err, context.Canceled) {
			printf("⏸️  Transfers cancelled. Partial files are kept and resume on the next run.\n")
			return fmt.Errorf("download cancelled by user")
		}
		return err
	}

	return summarize(transfers)
}

// chooseEntries resolves which listing entries to download
func chooseEntries(sess *session.Session, node remote.Node, entries []session.Entry) ([]session.Entry, error) {
	if node.Kind() == remote.KindFile {
		printf("📄 File: %s\n📏 Size: %s\n", node.Name(), utils.FormatBytes(node.Size()))
		if !assumeYes && isInteractive() {
			ok, err := confirm("Download " + node.Name())
			if err != nil || !ok {
				return nil, err
			}
		}
		return entries, nil
	}

	expr := selectExpr
	if expr == "" {
		if !isInteractive() || assumeYes {
			expr = "0"
		} else {
			fmt.Print(session.Render(entries))
			var err error
			if expr, err = promptSelection(entries); err != nil {
				return nil, err
			}
		}
	}
	return sess.Select(expr)
}

// watchTransfers renders progress until every transfer ends while reading
// control commands from stdin. The metrics endpoint runs alongside when set.
func watchTransfers(ctx context.Context, sess *session.Session) error {
	interactive := isInteractive()
	board := utils.NewProgressBoard(os.Stdout, interactive, config.QuietMode)
	defer board.Stop()

	g, gctx := errgroup.WithContext(ctx)
	watchDone, stop := context.WithCancel(gctx)
	defer stop()

	if config.MetricsAddr != "" {
		g.Go(func() error {
			internal.LogInfo("Serving metrics on %s", config.MetricsAddr)
			return metrics.Serve(watchDone, config.MetricsAddr)
		})
	}

	g.Go(func() error {
		defer stop()
		return sess.Watch(gctx, func(r session.Report) {
			board.Update(boardItems(r))
			if r.OverQuota && !interactive {
				printf("Retrying in %ds (over quota)\n", int(r.RetryIn.Seconds()))
			}
		})
	})

	if interactive {
		commands := make(chan string)
		go readCommands(watchDone, os.Stdin, commands)
		g.Go(func() error {
			for {
				select {
				case <-watchDone.Done():
					return nil
				case line, ok := <-commands:
					if !ok {
						commands = nil
						continue
					}
					if handleCommand(sess, line) {
						return nil
					}
				}
			}
		})
	}

	return g.Wait()
}

// handleCommand applies one control command. It reports whether the session
// was closed.
func handleCommand(sess *session.Session, line string) bool {
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "p", "pause":
		sess.Pause()
		fmt.Println("⏸️  Paused")
	case "r", "resume":
		sess.Resume()
		fmt.Println("▶️  Resumed")
	case "s", "status":
		for _, line := range sess.StatusLines() {
			fmt.Println(line)
		}
	case "c", "cancel":
		if err := sess.Cancel(); err != nil {
			internal.LogWarn("Cancel failed: %v", err)
		}
		return true
	case "q", "quit":
		if err := sess.Quit(); err != nil {
			internal.LogWarn("Quit failed: %v", err)
		}
		return true
	case "":
	default:
		fmt.Println("Commands: p(ause) r(esume) s(tatus) c(ancel) q(uit)")
	}
	return false
}

// readCommands forwards lines from in until ctx is done or in is exhausted,
// then closes out. A blocked read ends with the next line.
func readCommands(ctx context.Context, in io.Reader, out chan<- string) {
	defer close(out)
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		select {
		case out <- scanner.Text():
		case <-ctx.Done():
			return
		}
	}
}

func boardItems(r session.Report) []utils.BoardItem {
	items := make([]utils.BoardItem, 0, len(r.Statuses))
	for i, st := range r.Statuses {
		item := utils.BoardItem{
			ID:          st.ID,
			Name:        session.ElideName(st.Name),
			Total:       st.Total,
			Transferred: st.Transferred,
			Note:        st.Note(),
			Terminal:    st.Terminal(),
		}
		if i < len(r.Lines) {
			item.Line = r.Lines[i]
		}
		items = append(items, item)
	}
	return items
}

// summarize prints the outcome of every transfer and fails if any did
func summarize(transfers []*session.Transfer) error {
	var failed, cancelled int
	for _, t := range transfers {
		st := t.Status()
		switch st.State {
		case session.StateFinished:
			internal.LogInfo("Downloaded %s (%s)", st.Destination, utils.FormatBytes(st.Total))
		case session.StateCancelled:
			cancelled++
		default:
			failed++
			internal.LogError("Transfer of %s failed: %v", st.Name, st.Err)
		}
	}

	done := len(transfers) - failed - cancelled
	printf("\n✅ %d of %d transfer(s) completed\n", done, len(transfers))
	if failed > 0 {
		printf("❌ %d failed\n", failed)
		return fmt.Errorf("%d transfer(s) failed", failed)
	}
	if cancelled > 0 {
		printf("⏸️  %d cancelled\n", cancelled)
	}
	return nil
}
