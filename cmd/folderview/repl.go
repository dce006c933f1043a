package main

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/fruitsalade/folderview/internal/browser"
	"github.com/fruitsalade/folderview/internal/deletion"
	"github.com/fruitsalade/folderview/internal/models"
)

// REPL holds the state of the interactive session
type REPL struct {
	b      *browser.Browser
	reader *bufio.Reader
	out    io.Writer
	events chan deletion.Event
	done   chan struct{}
}

// syncWriter lets the event printer and the command loop share one output.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

func newREPL(b *browser.Browser, reader *bufio.Reader, out io.Writer) *REPL {
	return &REPL{
		b:      b,
		reader: reader,
		out:    &syncWriter{w: out},
		events: b.Deletion.Subscribe(),
		done:   make(chan struct{}),
	}
}

func (r *REPL) run() {
	fmt.Fprintln(r.out, "folderview - browse images by folder")
	fmt.Fprintln(r.out, "Type 'help' for available commands, 'quit' to exit")
	fmt.Fprintln(r.out)

	go r.printEvents()
	defer func() {
		r.b.Deletion.Unsubscribe(r.events)
		<-r.done
	}()

	r.cmdList()
	for {
		fmt.Fprintf(r.out, "%s> ", r.b.Navigation.CurrentPath())
		input, err := r.reader.ReadString('\n')
		if err != nil {
			fmt.Fprintln(r.out, "\nGoodbye!")
			return
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		if !r.handleCommand(input) {
			return
		}
	}
}

func (r *REPL) handleCommand(input string) bool {
	parts := strings.Fields(input)
	if len(parts) == 0 {
		return true
	}

	cmd := strings.ToLower(parts[0])
	args := parts[1:]

	switch cmd {
	case "help":
		r.printHelp()

	case "quit", "exit":
		fmt.Fprintln(r.out, "Goodbye!")
		return false

	case "ls":
		r.cmdList()

	case "all":
		r.cmdAll()

	case "cd":
		r.cmdCd(args)

	case "back", "..":
		r.cmdBack()

	case "reload":
		r.cmdReload()

	case "multi":
		r.cmdMulti(args)

	case "sel", "select":
		r.cmdSelect(args)

	case "rm", "delete":
		r.cmdRemove(args)

	case "confirm":
		r.cmdResolve(args, true)

	case "decline":
		r.cmdResolve(args, false)

	case "dismiss":
		r.cmdDismiss(args)

	case "pending":
		r.cmdPending()

	case "status":
		r.cmdStatus()

	default:
		fmt.Fprintf(r.out, "Unknown command: %s (type 'help' for commands)\n", cmd)
	}

	return true
}

func (r *REPL) printHelp() {
	fmt.Fprintln(r.out, `Commands:
  ls                  List subfolders and images in the current folder
  all                 List every image fetched for the current folder tree
  cd <n|segment>      Enter subfolder n from 'ls', or descend by a path segment
  back                Return to the previous folder
  reload              Fetch the current folder again
  multi on|off        Enter or leave multi-select mode
  sel <n>             Toggle selection of image n (multi-select mode)
  rm [n]              Delete image n, or the current selection
  confirm <id>        Confirm a pending batch deletion
  decline <id>        Decline a pending batch deletion
  dismiss <id>        Forget a pending batch deletion without answering
  pending             List pending batch deletions
  status              Show fetch state and selection
  quit                Exit`)
}

func (r *REPL) printEvents() {
	defer close(r.done)
	for ev := range r.events {
		switch ev := ev.(type) {
		case deletion.ShowDeletionConfirmation:
			fmt.Fprintf(r.out, "\n[confirm] delete %d image(s)? answer with 'confirm %s' or 'decline %s'\n",
				len(ev.Records), ev.HandleID(), ev.HandleID())
		case deletion.DeletionResult:
			if ev.Success {
				fmt.Fprintf(r.out, "\n[deleted] %s\n", ev.Record.DisplayName)
			} else {
				fmt.Fprintf(r.out, "\n[failed] %s: %v\n", ev.Record.DisplayName, ev.Err)
			}
		}
	}
}

func (r *REPL) cmdList() {
	nav := r.b.Navigation
	folders := nav.Folders()
	images := nav.CurrentFolderRecords()

	fmt.Fprintf(r.out, "%s\n", nav.CurrentPath())
	if len(folders) == 0 && len(images) == 0 {
		fmt.Fprintln(r.out, "  (empty)")
		return
	}
	for i, f := range folders {
		fmt.Fprintf(r.out, "  [%d] %s/ (%d)\n", i+1, f.DisplayName, f.Count)
	}
	for i, img := range images {
		fmt.Fprintf(r.out, "  %s%d. %s\n", r.mark(img), i+1, img.DisplayName)
	}
}

func (r *REPL) cmdAll() {
	records := r.b.Navigation.Records()
	for i, rec := range records {
		fmt.Fprintf(r.out, "  %d. %s/%s\n", i+1, strings.TrimRight(rec.FolderPath, "/"), rec.DisplayName)
	}
	fmt.Fprintf(r.out, "%d image(s)\n", len(records))
}

func (r *REPL) mark(rec models.Record) string {
	if r.b.Selection.IsSelected(rec.ID) {
		return "* "
	}
	return "  "
}

func (r *REPL) cmdCd(args []string) {
	if len(args) != 1 {
		fmt.Fprintln(r.out, "Usage: cd <n|segment>")
		return
	}
	ctx := r.b.Context()

	var err error
	if n, convErr := strconv.Atoi(args[0]); convErr == nil {
		folders := r.b.Navigation.Folders()
		if n < 1 || n > len(folders) {
			fmt.Fprintf(r.out, "No folder %d\n", n)
			return
		}
		err = r.b.Navigation.Enter(ctx, folders[n-1])
	} else {
		segment := strings.TrimLeft(args[0], "/")
		if !strings.HasSuffix(segment, "/") {
			segment += "/"
		}
		err = r.b.Navigation.NextPath(ctx, segment)
	}
	if err != nil {
		fmt.Fprintf(r.out, "Error: %v\n", err)
		return
	}
	r.cmdList()
}

func (r *REPL) cmdBack() {
	ok, err := r.b.Navigation.BackPath(r.b.Context())
	if err != nil {
		fmt.Fprintf(r.out, "Error: %v\n", err)
		return
	}
	if !ok {
		fmt.Fprintln(r.out, "Already at the top")
		return
	}
	r.cmdList()
}

func (r *REPL) cmdReload() {
	if err := r.b.Navigation.Reload(r.b.Context()); err != nil {
		fmt.Fprintf(r.out, "Error: %v\n", err)
		return
	}
	r.cmdList()
}

func (r *REPL) cmdMulti(args []string) {
	if len(args) != 1 {
		fmt.Fprintln(r.out, "Usage: multi on|off")
		return
	}
	switch strings.ToLower(args[0]) {
	case "on":
		r.b.Selection.EnterMultiSelect()
		fmt.Fprintln(r.out, "Multi-select on")
	case "off":
		r.b.Selection.ExitMultiSelect()
		fmt.Fprintln(r.out, "Multi-select off, selection cleared")
	default:
		fmt.Fprintln(r.out, "Usage: multi on|off")
	}
}

// image resolves a 1-based index into the current folder view.
func (r *REPL) image(arg string) (models.Record, bool) {
	n, err := strconv.Atoi(arg)
	images := r.b.Navigation.CurrentFolderRecords()
	if err != nil || n < 1 || n > len(images) {
		fmt.Fprintf(r.out, "No image %s\n", arg)
		return models.Record{}, false
	}
	return images[n-1], true
}

func (r *REPL) cmdSelect(args []string) {
	if len(args) != 1 {
		fmt.Fprintln(r.out, "Usage: sel <n>")
		return
	}
	if !r.b.Selection.IsMultiSelectMode() {
		fmt.Fprintln(r.out, "Turn on multi-select first: multi on")
		return
	}
	img, ok := r.image(args[0])
	if !ok {
		return
	}
	if r.b.Selection.Toggle(img) {
		fmt.Fprintf(r.out, "Selected %s (%d total)\n", img.DisplayName, r.b.Selection.Len())
	} else {
		fmt.Fprintf(r.out, "Deselected %s (%d total)\n", img.DisplayName, r.b.Selection.Len())
	}
}

func (r *REPL) cmdRemove(args []string) {
	ctx := r.b.Context()
	var err error
	switch len(args) {
	case 0:
		if r.b.Selection.Len() == 0 {
			fmt.Fprintln(r.out, "Nothing selected")
			return
		}
		err = r.b.Deletion.DeleteSelected(ctx)
	case 1:
		img, ok := r.image(args[0])
		if !ok {
			return
		}
		err = r.b.Deletion.DeleteRecord(ctx, img)
	default:
		fmt.Fprintln(r.out, "Usage: rm [n]")
		return
	}
	if err != nil {
		fmt.Fprintf(r.out, "Error: %v\n", err)
	}
}

func (r *REPL) cmdResolve(args []string, confirmed bool) {
	if len(args) != 1 {
		fmt.Fprintln(r.out, "Usage: confirm|decline <id>")
		return
	}
	if err := r.b.Deletion.ResolveConfirmation(r.b.Context(), args[0], confirmed); err != nil {
		fmt.Fprintf(r.out, "Error: %v\n", err)
		return
	}
	r.cmdList()
}

func (r *REPL) cmdDismiss(args []string) {
	if len(args) != 1 {
		fmt.Fprintln(r.out, "Usage: dismiss <id>")
		return
	}
	r.b.Deletion.AbandonConfirmation(args[0])
}

func (r *REPL) cmdPending() {
	ids := r.b.Deletion.Pending()
	if len(ids) == 0 {
		fmt.Fprintln(r.out, "No pending confirmations")
		return
	}
	for _, id := range ids {
		fmt.Fprintf(r.out, "  %s\n", id)
	}
}

func (r *REPL) cmdStatus() {
	nav := r.b.Navigation
	state, scope := nav.State()
	fmt.Fprintf(r.out, "Source:    %s\n", r.b.Source.Name())
	fmt.Fprintf(r.out, "Session:   %s\n", r.b.SessionID())
	fmt.Fprintf(r.out, "Path:      %s\n", nav.CurrentPath())
	fmt.Fprintf(r.out, "History:   %s\n", strings.Join(nav.History(), " > "))
	fmt.Fprintf(r.out, "Fetch:     %s %s\n", state, scope)
	if err := nav.FetchErr(); err != nil {
		fmt.Fprintf(r.out, "Error:     %v\n", err)
	}
	fmt.Fprintf(r.out, "Buffered:  %d\n", len(nav.Records()))
	fmt.Fprintf(r.out, "Multi:     %v (%d selected)\n", r.b.Selection.IsMultiSelectMode(), r.b.Selection.Len())
}
