// Command chatlog inspects and seeds the GoChat message store offline.
//
//	chatlog history -channel Chat
//	chatlog import -file messages.json
//
// The store is located through the same configuration as the server
// (-config / GOCHAT_CONFIG, .env, STORE_DRIVER, STORE_PATH). The memory driver
// is refused since it has nothing to inspect and would discard an import.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/Tyrowin/gochat/internal/protocol"
	"github.com/Tyrowin/gochat/internal/server"
	"github.com/Tyrowin/gochat/internal/store"
	"github.com/mama165/sdk-go/logs"
	"github.com/olekukonko/tablewriter"
)

const previewLength = 48

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "chatlog: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: chatlog <history|import> [flags]")
	}

	fs := flag.NewFlagSet(args[0], flag.ContinueOnError)
	configPath := fs.String("config", os.Getenv("GOCHAT_CONFIG"), "path to a TOML configuration file")
	channel := fs.String("channel", "Chat", "channel to list (history)")
	file := fs.String("file", "messages.json", "legacy messages.json to import (import)")
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}

	cfg, err := server.LoadConfig(*configPath)
	if err != nil {
		return err
	}
	log := logs.GetLoggerFromString(cfg.LogLevel)

	if cfg.Store.Driver == store.DriverMemory {
		return fmt.Errorf("chatlog needs a durable store: the %s driver keeps nothing between runs", cfg.Store.Driver)
	}

	st, err := store.Open(cfg.Store, log)
	if err != nil {
		return fmt.Errorf("open %s store: %w", cfg.Store.Driver, err)
	}
	defer st.Close()

	ctx := context.Background()
	switch args[0] {
	case "history":
		return printHistory(ctx, st, *channel, out)
	case "import":
		return importFile(ctx, st, *file, out)
	default:
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func printHistory(ctx context.Context, st store.Store, channel string, out io.Writer) error {
	messages, err := st.History(ctx, channel)
	if err != nil {
		return fmt.Errorf("load history of %s: %w", channel, err)
	}

	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"Time", "Author", "Type", "Content"})
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetBorder(false)

	for _, m := range messages {
		table.Append([]string{
			m.CreatedAt.Local().Format("2006-01-02 15:04:05"),
			m.Author,
			kindLabel(m),
			preview(m),
		})
	}
	table.Render()
	_, err = fmt.Fprintf(out, "%d message(s) in %s\n", len(messages), channel)
	return err
}

func kindLabel(m protocol.Message) string {
	if m.IsFile() {
		return "file " + m.FileKind
	}
	if m.Preformatted {
		return "pre"
	}
	return "text"
}

func preview(m protocol.Message) string {
	if m.IsFile() {
		_, size := protocol.InspectFile(m.Content, m.FileKind)
		return fmt.Sprintf("<%d bytes>", size)
	}
	r := []rune(m.Content)
	if len(r) > previewLength {
		return string(r[:previewLength]) + "…"
	}
	return m.Content
}

func importFile(ctx context.Context, st store.Store, path string, out io.Writer) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	n, err := store.ImportJSON(ctx, st, f)
	if err != nil {
		return fmt.Errorf("import %s: %w", path, err)
	}
	_, err = fmt.Fprintf(out, "imported %d message(s) from %s\n", n, path)
	return err
}
