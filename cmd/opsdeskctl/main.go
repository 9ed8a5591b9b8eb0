package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/dispatchgrid/opsdesk/internal/backend"
	"github.com/dispatchgrid/opsdesk/internal/chat"
	"github.com/dispatchgrid/opsdesk/internal/config"
	"github.com/dispatchgrid/opsdesk/internal/notify"
	"github.com/dispatchgrid/opsdesk/internal/profile"
)

func main() {
	profileFlag := flag.String("profile", "", "profile name (overrides config default)")
	jsonFlag := flag.Bool("json", false, "output in JSON format")
	flag.Parse()

	profileName := profile.Resolve(*profileFlag)
	if err := profile.ValidateName(profileName); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	cfg, err := config.Load(profile.ConfigPath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: cannot read config: %v\n", err)
		os.Exit(1)
	}
	prof, err := cfg.Resolve(profileName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	client := backend.New(prof.BaseURL, prof.Token, prof.RequestTimeout(), zap.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), prof.RequestTimeout())
	defer cancel()

	switch args[0] {
	case "counts":
		cmdCounts(ctx, client, *jsonFlag)
	case "conversations":
		cmdConversations(ctx, client, *jsonFlag)
	case "messages":
		if len(args) < 3 {
			fmt.Fprintln(os.Stderr, "usage: opsdeskctl messages <customer|vendor|driver> <id>")
			os.Exit(1)
		}
		cmdMessages(ctx, client, args[1], args[2], *jsonFlag)
	case "send":
		if len(args) < 4 {
			fmt.Fprintln(os.Stderr, "usage: opsdeskctl send <customer|vendor|driver> <id> <text>")
			os.Exit(1)
		}
		cmdSend(ctx, client, args[1], args[2], strings.Join(args[3:], " "))
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", args[0])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "usage: opsdeskctl [--profile <name>] [--json] <command>")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "commands:")
	fmt.Fprintln(os.Stderr, "  counts                      Show pending-item counts")
	fmt.Fprintln(os.Stderr, "  conversations               List conversations")
	fmt.Fprintln(os.Stderr, "  messages <type> <id>        Show a conversation's messages")
	fmt.Fprintln(os.Stderr, "  send <type> <id> <text>     Send a message")
}

func parseKey(typeArg, id string) chat.ConversationKey {
	t, err := chat.ParseCounterpartyType(typeArg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	return chat.ConversationKey{Type: t, ID: id}
}

func cmdCounts(ctx context.Context, client *backend.Client, jsonOut bool) {
	sources := notify.Sources(client)
	counts := make(notify.Counts, len(sources))
	for _, src := range sources {
		n, err := src.Fetch(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: %s: %v\n", src.Name, err)
		}
		counts[src.Name] = n
	}
	if jsonOut {
		outputJSON(counts)
		return
	}
	for _, src := range sources {
		fmt.Printf("%-20s %d\n", src.Name, counts[src.Name])
	}
}

func cmdConversations(ctx context.Context, client *backend.Client, jsonOut bool) {
	convs, err := client.ListConversations(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if jsonOut {
		outputJSON(convs)
		return
	}
	for _, c := range convs {
		fmt.Printf("%-10s %-12s %-24s %s\n", c.Key.Type, c.Key.ID, c.DisplayName, c.DisplayHandle)
	}
}

func cmdMessages(ctx context.Context, client *backend.Client, typeArg, id string, jsonOut bool) {
	key := parseKey(typeArg, id)
	msgs, err := client.ListMessages(ctx, key)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if jsonOut {
		outputJSON(msgs)
		return
	}
	for _, m := range msgs {
		sender := string(m.Sender)
		if m.Sender == chat.SenderAdmin {
			sender = "you"
		}
		fmt.Printf("[%s] %-12s %s\n", m.Timestamp.Format("2006-01-02 15:04"), sender, m.Text)
	}
}

func cmdSend(ctx context.Context, client *backend.Client, typeArg, id, text string) {
	key := parseKey(typeArg, id)
	text = strings.TrimSpace(text)
	if text == "" {
		fmt.Fprintln(os.Stderr, "error: message text is empty")
		os.Exit(1)
	}
	if err := client.SendMessage(ctx, key, text); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("accepted")
}

func outputJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "json encode error: %v\n", err)
	}
}
