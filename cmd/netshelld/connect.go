package main

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/codefionn/netshell/internal/consts"
	"github.com/codefionn/netshell/internal/protocol"
	"github.com/codefionn/netshell/internal/socketclient"
)

var connectFlags struct {
	user     string
	caFile   string
	insecure bool
	token    string
	forge    bool
}

var connectCmd = &cobra.Command{
	Use:   "connect <addr>",
	Short: "Connect to a server as a player",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tlsCfg, err := clientTLS(args[0])
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		conn, err := socketclient.Dial(ctx, args[0], tlsCfg)
		if err != nil {
			return err
		}
		defer conn.Dispose()

		user := connectFlags.user
		if user == "" {
			user = os.Getenv("USER")
		}
		pass, err := promptForPassword(fmt.Sprintf("Password for %s: ", user))
		if err != nil {
			return err
		}
		var token *string
		if connectFlags.token != "" {
			token = &connectFlags.token
		}
		if _, err := conn.Login(ctx, user, pass, token); err != nil {
			if reason := conn.DisconnectReason(); reason != "" {
				return fmt.Errorf("%w: %s", err, reason)
			}
			return err
		}

		if connectFlags.forge {
			tok, err := conn.ForgeToken(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		}
		return interact(ctx, cmd.OutOrStdout(), conn)
	},
}

func init() {
	f := connectCmd.Flags()
	f.StringVarP(&connectFlags.user, "user", "u", "", "account name (default $USER)")
	f.StringVar(&connectFlags.caFile, "ca", "", "PEM file with the server certificate authority")
	f.BoolVar(&connectFlags.insecure, "insecure", false, "skip certificate verification (self-signed servers)")
	f.StringVar(&connectFlags.token, "register", "", "create the account with this registration token")
	f.BoolVar(&connectFlags.forge, "forge-token", false, "print a new registration token and exit (admins only)")
}

func clientTLS(addr string) (*tls.Config, error) {
	cfg := &tls.Config{InsecureSkipVerify: connectFlags.insecure}
	if host, _, err := net.SplitHostPort(addr); err == nil && host != "" {
		cfg.ServerName = host
	}
	if connectFlags.caFile != "" {
		pem, err := os.ReadFile(connectFlags.caFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA file: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("%s: no certificates found", connectFlags.caFile)
		}
		cfg.RootCAs = pool
	}
	return cfg, nil
}

// interact runs the startup command, then reads command lines from stdin
// until EOF or the server disconnects.
func interact(ctx context.Context, out io.Writer, conn *socketclient.Connection) error {
	prompt := "$ "
	render := func(events []protocol.Event) (pending protocol.Event) {
		for _, e := range events {
			switch ev := e.(type) {
			case *protocol.OutputEvent:
				fmt.Fprint(out, ev.Text)
			case *protocol.ShellPromptEvent:
				prompt = fmt.Sprintf("%s:%s$ ", ev.Address, ev.Path)
			case *protocol.AlertEvent:
				fmt.Fprintf(out, "\n*** %s ***\n%s\n", ev.Header, ev.Body)
			case *protocol.InputRequestEvent, *protocol.EditRequestEvent:
				pending = e
			case *protocol.ServerDisconnectEvent:
				fmt.Fprintf(out, "Disconnected: %s\n", ev.Reason)
			}
		}
		return pending
	}

	run := func(op uuid.UUID, events []protocol.Event, err error) error {
		for err == nil {
			switch req := render(events).(type) {
			case *protocol.InputRequestEvent:
				var line string
				if req.Hidden {
					line, err = promptForPassword("")
				} else {
					line, err = readLine()
				}
				if err != nil {
					return err
				}
				events, err = conn.Respond(ctx, op, line)
			case *protocol.EditRequestEvent:
				fmt.Fprintf(out, "%s[editing is not supported by this client]\n", req.Content)
				events, err = conn.SaveEdit(ctx, op, false, "")
			default:
				return nil
			}
		}
		return err
	}

	for _, e := range conn.Drain() {
		render([]protocol.Event{e})
	}
	if err := run(conn.InitialCommand(ctx, width())); err != nil {
		return err
	}

	for {
		select {
		case <-conn.Done():
			render(conn.Drain())
			return nil
		default:
		}
		fmt.Fprint(out, prompt)
		line, err := readLine()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := run(conn.Command(ctx, width(), line)); err != nil {
			if errors.Is(err, socketclient.ErrDisconnected) {
				render(conn.Drain())
				return nil
			}
			return err
		}
	}
}

func readLine() (string, error) {
	line, err := stdin.ReadString('\n')
	if err != nil && (!errors.Is(err, io.EOF) || line == "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func width() int {
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
		return w
	}
	return consts.DefaultConWidth
}
