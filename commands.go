/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/Seednode/blindboard/internal/archive"
	"github.com/Seednode/blindboard/internal/client"
	"github.com/Seednode/blindboard/internal/questions"
	"github.com/Seednode/blindboard/internal/relay"
	"github.com/Seednode/blindboard/internal/tui"
)

const defaultServer = "localhost:8080"

// echoTimeout bounds how long ask and send wait for the relay to echo back.
const echoTimeout = 5 * time.Second

func serverFlag(cfg *Config, fs *pflag.FlagSet) {
	fs.StringVarP(&cfg.server, "server", "s", defaultServer, "relay address, as host:port or URL (env: BLINDBOARD_SERVER)")
}

func questionsFileFlag(cfg *Config, fs *pflag.FlagSet) {
	fs.StringVar(&cfg.questionsFile, "questions-file", "", "where asked questions are kept (default: user config dir) (env: BLINDBOARD_QUESTIONS_FILE)")
}

func finishFlags(fs *pflag.FlagSet) {
	fs.SetNormalizeFunc(normalize)
	bindEnv(newViper(), fs)
}

func questionStore(cfg *Config) (*questions.Store, error) {
	path := cfg.questionsFile
	if path == "" {
		var err error

		path, err = questions.DefaultPath()
		if err != nil {
			return nil, err
		}
	}

	return questions.NewStore(path, cfg.log), nil
}

// dial connects and consumes the current question the relay sends first, so
// later reads only see events caused after connecting.
func dial(ctx context.Context, cfg *Config) (*client.Conn, string, error) {
	conn, err := client.Dial(ctx, cfg.server)
	if err != nil {
		return nil, "", err
	}

	select {
	case e, ok := <-conn.Events():
		if !ok {
			err := conn.Err()
			if err == nil {
				err = client.ErrClosed
			}
			return nil, "", err
		}
		return conn, e.Data, nil
	case <-ctx.Done():
		_ = conn.Close()
		return nil, "", ctx.Err()
	}
}

// emit sends one event and waits for the relay to echo it.
func emit(ctx context.Context, cfg *Config, event, data string) error {
	ctx, cancel := context.WithTimeout(ctx, echoTimeout)
	defer cancel()

	conn, _, err := dial(ctx, cfg)
	if err != nil {
		return err
	}
	defer conn.Close()

	send := conn.Word
	if event == relay.QuestionEvent {
		send = conn.Question
	}

	if err := send(data); err != nil {
		return err
	}

	if err := conn.Await(ctx, event, data); err != nil {
		return fmt.Errorf("waiting for relay to confirm %s: %w", event, err)
	}

	return nil
}

func runProgram(ctx context.Context, conn *client.Conn, model tea.Model) error {
	_, err := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		err = nil
	}

	return errors.Join(err, conn.Close())
}

func newDisplayCmd(cfg *Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "display",
		Short: "Show the live word cloud in the terminal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := client.Dial(cmd.Context(), cfg.server)
			if err != nil {
				return err
			}

			model := tui.NewDisplay(conn.Events(), conn.Err)

			if err := runProgram(cmd.Context(), conn, model); err != nil {
				return err
			}

			return model.Err()
		},
	}

	serverFlag(cfg, cmd.Flags())
	finishFlags(cmd.Flags())

	return cmd
}

func newRespondCmd(cfg *Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "respond",
		Short: "Answer questions from the terminal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := client.Dial(cmd.Context(), cfg.server)
			if err != nil {
				return err
			}

			model := tui.NewRespond(conn.Events(), conn.Err, conn.Word)

			return runProgram(cmd.Context(), conn, model)
		},
	}

	serverFlag(cfg, cmd.Flags())
	finishFlags(cmd.Flags())

	return cmd
}

func newAskCmd(cfg *Config) *cobra.Command {
	var noSave bool

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Broadcast a new question and add it to the question list",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.Join(args, " ")
			if strings.TrimSpace(text) == "" {
				return errors.New("question must not be blank")
			}

			if err := emit(cmd.Context(), cfg, relay.QuestionEvent, text); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Asked: %s\n", text)

			if noSave {
				return nil
			}

			store, err := questionStore(cfg)
			if err != nil {
				return err
			}

			list := store.Load()
			list.Add(text, time.Now())

			return store.Save(list)
		},
	}

	serverFlag(cfg, cmd.Flags())
	questionsFileFlag(cfg, cmd.Flags())
	cmd.Flags().BoolVar(&noSave, "no-save", false, "do not add the question to the question list (env: BLINDBOARD_NO_SAVE)")
	finishFlags(cmd.Flags())

	return cmd
}

func newSendCmd(cfg *Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "send <response>",
		Short: "Submit a single response to the current question",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.Join(args, " ")

			if err := validateResponse(text); err != nil {
				return err
			}

			if err := emit(cmd.Context(), cfg, relay.WordEvent, text); err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), "Response submitted!")

			return nil
		},
	}

	serverFlag(cfg, cmd.Flags())
	finishFlags(cmd.Flags())

	return cmd
}

func validateResponse(text string) error {
	if strings.TrimSpace(text) == "" {
		return errors.New("response must not be blank")
	}
	if n := utf8.RuneCountInString(text); n > tui.MaxResponse {
		return fmt.Errorf("response too long (%d characters, max %d)", n, tui.MaxResponse)
	}
	return nil
}

// position parses a 1-based list position as shown by "questions list".
func position(arg string, list *questions.List) (int, error) {
	n, err := strconv.Atoi(arg)
	if err != nil {
		return 0, fmt.Errorf("invalid position %q", arg)
	}
	if n < 1 || n > list.Len() {
		return 0, fmt.Errorf("no question at position %d (have %d)", n, list.Len())
	}
	return n - 1, nil
}

func printQuestions(w io.Writer, list *questions.List) {
	if list.Len() == 0 {
		fmt.Fprintln(w, "No questions yet.")
		return
	}

	for i, q := range list.Items() {
		fmt.Fprintf(w, "%3d  %s  %s\n", i+1, questions.FormatTimestamp(q.Timestamp), q.Text)
	}
}

func newQuestionsCmd(cfg *Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "questions",
		Short: "Manage the list of asked questions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := questionStore(cfg)
			if err != nil {
				return err
			}

			printQuestions(cmd.OutOrStdout(), store.Load())

			return nil
		},
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "Show asked questions, oldest first",
		Args:  cobra.NoArgs,
		RunE:  cmd.RunE,
	}

	remove := &cobra.Command{
		Use:   "remove <position>",
		Short: "Delete one question from the list",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := questionStore(cfg)
			if err != nil {
				return err
			}

			l := store.Load()

			i, err := position(args[0], l)
			if err != nil {
				return err
			}

			q, err := l.Remove(i)
			if err != nil {
				return err
			}

			if err := store.Save(l); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Removed: %s\n", q.Text)

			return nil
		},
	}

	var yes bool

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every question from the list",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return errors.New("refusing to clear all questions without --yes")
			}

			store, err := questionStore(cfg)
			if err != nil {
				return err
			}

			n := store.Load().Clear()

			if err := store.Remove(); err != nil {
				return err
			}

			logf(cfg, "QUESTIONS: Cleared %d questions", n)

			fmt.Fprintln(cmd.OutOrStdout(), "Cleared all questions.")

			return nil
		},
	}
	clearCmd.Flags().BoolVarP(&yes, "yes", "y", false, "confirm clearing the list")

	resend := &cobra.Command{
		Use:   "resend <position>",
		Short: "Broadcast a question from the list again",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := questionStore(cfg)
			if err != nil {
				return err
			}

			l := store.Load()

			i, err := position(args[0], l)
			if err != nil {
				return err
			}

			q, err := l.Get(i)
			if err != nil {
				return err
			}

			if err := emit(cmd.Context(), cfg, relay.QuestionEvent, q.Text); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Asked: %s\n", q.Text)

			return nil
		},
	}
	serverFlag(cfg, resend.Flags())
	finishFlags(resend.Flags())

	pfs := cmd.PersistentFlags()
	questionsFileFlag(cfg, pfs)
	finishFlags(pfs)

	cmd.AddCommand(list, remove, clearCmd, resend)

	return cmd
}

func newArchiveCmd(cfg *Config) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "archive",
		Short: "Export archived questions and responses",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.archive == "" {
				return errors.New("--archive is required")
			}

			// Open creates missing archives; exporting must not.
			if _, err := os.Stat(cfg.archive); err != nil {
				return fmt.Errorf("read archive: %w", err)
			}

			store, err := archive.Open(cfg.archive)
			if err != nil {
				return err
			}
			defer store.Close()

			sessions, err := store.Sessions(cmd.Context())
			if err != nil {
				return err
			}

			return writeSessions(cmd.OutOrStdout(), format, sessions)
		},
	}

	fs := cmd.Flags()
	fs.StringVar(&cfg.archive, "archive", "", "path to sqlite archive written by the server (env: BLINDBOARD_ARCHIVE)")
	fs.StringVarP(&format, "format", "f", "json", "output format: json or yaml (env: BLINDBOARD_FORMAT)")
	finishFlags(fs)

	return cmd
}

func writeSessions(w io.Writer, format string, sessions []archive.Session) error {
	switch strings.ToLower(format) {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")

		return enc.Encode(sessions)
	case "yaml", "yml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)

		if err := enc.Encode(sessions); err != nil {
			return err
		}

		return enc.Close()
	default:
		return fmt.Errorf("unsupported format %q (want json or yaml)", format)
	}
}
