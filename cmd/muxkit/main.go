// Package main implements the muxkit command line: the front-end entry
// points (attach, list, kill, detached session creation) and the hidden
// daemon mode the front-end spawns lazily.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/LatosProject/muxkit/internal/client"
	"github.com/LatosProject/muxkit/internal/config"
	"github.com/LatosProject/muxkit/internal/i18n"
	"github.com/LatosProject/muxkit/internal/logging"
	"github.com/LatosProject/muxkit/internal/protocol"
	"github.com/LatosProject/muxkit/internal/server"
)

// Version is the string reported by --version and on the status bar.
var (
	version = "0.2.0"
)

// Global flags.
var (
	debugMode bool
)

func main() {
	i18n.Init()

	var (
		listSessions bool
		attachID     int
		killID       int
		newSession   bool
	)

	rootCmd := &cobra.Command{
		Use:   "muxkit",
		Short: i18n.T(i18n.MsgHelpTitle),
		Long: i18n.T(i18n.MsgHelpTitle) + "\n\n" +
			fmt.Sprintf(i18n.T(i18n.MsgHelpVersion), version) + "\n\n" +
			strings.Join([]string{
				i18n.T(i18n.MsgHelpKeybindings),
				i18n.T(i18n.MsgHelpKeyDetach),
				i18n.T(i18n.MsgHelpKeySplit),
				i18n.T(i18n.MsgHelpKeyNext),
				i18n.T(i18n.MsgHelpKeyScrollUp),
				i18n.T(i18n.MsgHelpKeyScrollDown),
			}, "\n"),
		Example: `  muxkit           Start a new session
  muxkit -l        List all sessions
  muxkit -s 0      Attach to session 0
  muxkit -k 0      Kill session 0
  muxkit -n        Create a detached session`,
		Version:      version,
		SilenceUsage: true,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return nil
			}
			if len(args) == 1 && args[0] == "new-session" {
				return nil
			}
			fmt.Print(i18n.T(i18n.MsgErrCommand))
			return fmt.Errorf("unknown arguments: %v", args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 && args[0] == "new-session" {
				newSession = true
			}
			return runClient(listSessions, attachID, killID, newSession)
		},
	}

	rootCmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging")

	rootCmd.Flags().BoolVarP(&listSessions, "list", "l", false, i18n.T(i18n.MsgOptList))
	rootCmd.Flags().IntVarP(&attachID, "attach", "s", -1, i18n.T(i18n.MsgOptAttach))
	rootCmd.Flags().IntVarP(&killID, "kill", "k", -1, i18n.T(i18n.MsgOptKill))
	rootCmd.Flags().BoolVarP(&newSession, "new-session", "n", false, i18n.T(i18n.MsgOptNew))

	serverCmd := &cobra.Command{
		Use:    "server",
		Short:  "Run the muxkit server process",
		Hidden: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
	rootCmd.AddCommand(serverCmd)

	if err := fang.Execute(context.Background(), rootCmd, fang.WithVersion(version)); err != nil {
		os.Exit(1)
	}
}

func runServer() error {
	logger := logging.Setup("server", debugMode || logging.Debug())
	socketPath, err := config.SocketPath()
	if err != nil {
		return err
	}
	cfgPath, _ := config.UserConfigPath()
	cfg, _ := config.LoadConfig(cfgPath)

	srv := server.New(logger, cfg.Shell)
	return srv.Run(socketPath)
}

func runClient(listSessions bool, attachID, killID int, newSession bool) error {
	if debugMode {
		// The lazily spawned server inherits the environment, so the
		// flag reaches it too.
		_ = os.Setenv("MUXKIT_DEBUG", "1")
	}
	logger := logging.Setup("client", debugMode || logging.Debug())

	// Nesting is refused before any socket traffic happens.
	if (newSession || (!listSessions && attachID < 0 && killID < 0)) && client.CheckNested() {
		fmt.Print(i18n.T(i18n.MsgNestedWarning))
		return errors.New("nested session")
	}

	socketPath, err := config.SocketPath()
	if err != nil {
		return err
	}

	conn, err := client.Connect(socketPath)
	if err != nil {
		return err
	}

	if err := client.Handshake(conn); err != nil {
		_ = conn.Close()
		fmt.Print(i18n.T(i18n.MsgErrProtocolVersion))
		return err
	}

	switch {
	case listSessions:
		defer conn.Close()
		text, err := client.ListSessions(conn)
		if err != nil {
			return err
		}
		fmt.Print(text)
		return nil

	case killID >= 0:
		defer conn.Close()
		text, err := client.KillSession(conn, killID)
		if err != nil {
			return err
		}
		fmt.Print(text)
		return nil

	case newSession:
		defer conn.Close()
		return client.NewDetachedSession(conn, terminalSize())

	default:
		cfgPath, _ := config.UserConfigPath()
		cfg, _ := config.LoadConfig(cfgPath)
		kbPath := config.KeybindsPath(socketPath)
		kb, err := config.LoadKeybinds(kbPath)
		if err != nil {
			logger.Warn("keybinds", "err", err)
		}

		cl := client.New(conn, cfg, kb, logger, version)

		if stop, err := config.WatchKeybinds(kbPath, func(kb *config.Keybinds) {
			select {
			case cl.KeybindsChan() <- kb:
			default:
			}
		}); err == nil {
			defer stop()
		}

		if attachID >= 0 {
			err := cl.Attach(attachID)
			if errors.Is(err, client.ErrAttachMiss) {
				// An invalid target is a user miss, not a failure.
				fmt.Printf(i18n.T(i18n.MsgAttachFailed), attachID)
				return nil
			}
			return err
		}

		err = cl.NewSession()
		if errors.Is(err, client.ErrNested) {
			fmt.Print(i18n.T(i18n.MsgNestedWarning))
			return err
		}
		return err
	}
}

// terminalSize reads the controlling terminal's size, falling back to
// 80x24 when stdin is not a terminal (the -n path from scripts).
func terminalSize() protocol.Winsize {
	cols, rows, err := term.GetSize(int(os.Stdin.Fd()))
	if err != nil || cols <= 0 || rows <= 0 {
		return protocol.Winsize{Rows: 24, Cols: 80}
	}
	return protocol.Winsize{Rows: uint16(rows), Cols: uint16(cols)}
}
