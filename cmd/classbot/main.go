// Command classbot is a terminal conversation client for the relay. It
// reads lines from stdin, submits each as a user turn and prints the
// assistant's replies. Speech stays browser-side; this client exercises
// the text path only.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/classbot-dev/classbot/pkg/chat"
)

type consoleUI struct {
	out io.Writer
}

func (u consoleUI) ShowTurn(role chat.Role, text string) {
	switch role {
	case chat.RoleAssistant:
		fmt.Fprintf(u.out, "classbot> %s\n", text)
	case chat.RoleUser:
		// stdin already shows what the user typed
	}
}

func (u consoleUI) ShowThinking() func() {
	fmt.Fprint(u.out, "classbot> ...")
	return func() { fmt.Fprint(u.out, "\r") }
}

func (u consoleUI) ShowError(message string) {
	fmt.Fprintf(u.out, "error: %s\n", message)
}

func run(ctx context.Context, in io.Reader, out io.Writer, relayURL string, timeout time.Duration) error {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	session, err := chat.NewSession(chat.Options{
		Completer: chat.NewRelayCompleter(relayURL, timeout),
		UI:        consoleUI{out: out},
		Logger:    logger,
	})
	if err != nil {
		return err
	}

	session.Start(ctx)

	sc := bufio.NewScanner(in)
	fmt.Fprint(out, "you> ")
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			fmt.Fprint(out, "you> ")
			continue
		}

		if err := session.Submit(ctx, line); err != nil {
			fmt.Fprintf(out, "error: %v\n", err)
		}
		if !session.ContinueConversation() {
			fmt.Fprintln(out, "conversation ended")
			return nil
		}
		fmt.Fprint(out, "you> ")
	}
	return sc.Err()
}

func main() {
	relayURL := flag.String("relay", "http://localhost:8080", "relay base URL")
	timeout := flag.Duration("timeout", 90*time.Second, "per-request timeout")
	flag.Parse()

	if err := run(context.Background(), os.Stdin, os.Stdout, *relayURL, *timeout); err != nil {
		fmt.Fprintf(os.Stderr, "classbot: %v\n", err)
		os.Exit(1)
	}
}
