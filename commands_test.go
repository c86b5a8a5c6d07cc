package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/Seednode/blindboard/internal/archive"
	"github.com/Seednode/blindboard/internal/client"
	"github.com/Seednode/blindboard/internal/questions"
	"github.com/Seednode/blindboard/internal/relay"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer

	cmd := newCmd(&Config{})
	cmd.SetArgs(args)
	cmd.SetOut(&out)
	cmd.SetErr(&out)

	err := cmd.ExecuteContext(context.Background())

	return out.String(), err
}

func TestValidateResponse(t *testing.T) {
	require.NoError(t, validateResponse("blue"))
	require.NoError(t, validateResponse(strings.Repeat("é", 100)))
	require.ErrorContains(t, validateResponse("   "), "must not be blank")
	require.ErrorContains(t, validateResponse(strings.Repeat("x", 101)), "too long")
}

func TestPosition(t *testing.T) {
	list := questions.NewList([]questions.Question{{Text: "a"}, {Text: "b"}})

	i, err := position("2", list)
	require.NoError(t, err)
	require.Equal(t, 1, i)

	_, err = position("0", list)
	require.ErrorContains(t, err, "no question at position 0")

	_, err = position("3", list)
	require.ErrorContains(t, err, "no question at position 3 (have 2)")

	_, err = position("two", list)
	require.ErrorContains(t, err, "invalid position")
}

func TestAsk_BroadcastsAndSaves(t *testing.T) {
	srv, hub := newTestServer(t, testConfig())
	file := filepath.Join(t.TempDir(), "questions.json")

	watcher, err := client.Dial(context.Background(), srv.URL)
	require.NoError(t, err)
	defer watcher.Close()
	<-watcher.Events()

	out, err := run(t, "ask", "--server", srv.URL, "--questions-file", file, "Favorite", "color?")
	require.NoError(t, err)
	require.Equal(t, "Asked: Favorite color?\n", out)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	require.NoError(t, watcher.Await(ctx, relay.QuestionEvent, "Favorite color?"))
	require.Equal(t, "Favorite color?", hub.Question())

	items := questions.NewStore(file, zerolog.Nop()).Load().Items()
	require.Len(t, items, 1)
	require.Equal(t, "Favorite color?", items[0].Text)
	require.WithinDuration(t, time.Now(), items[0].Timestamp, time.Minute)
}

func TestAsk_NoSave(t *testing.T) {
	srv, _ := newTestServer(t, testConfig())
	file := filepath.Join(t.TempDir(), "questions.json")

	_, err := run(t, "ask", "--server", srv.URL, "--questions-file", file, "--no-save", "Quick poll")
	require.NoError(t, err)

	require.Zero(t, questions.NewStore(file, zerolog.Nop()).Load().Len())
}

func TestAsk_RejectsBlank(t *testing.T) {
	_, err := run(t, "ask", "--server", "127.0.0.1:1", "  ")
	require.ErrorContains(t, err, "must not be blank")
}

func TestSend_RelaysWord(t *testing.T) {
	srv, _ := newTestServer(t, testConfig())

	watcher, err := client.Dial(context.Background(), srv.URL)
	require.NoError(t, err)
	defer watcher.Close()
	<-watcher.Events()

	out, err := run(t, "send", "--server", srv.URL, "blue")
	require.NoError(t, err)
	require.Equal(t, "Response submitted!\n", out)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	require.NoError(t, watcher.Await(ctx, relay.WordEvent, "blue"))
}

func TestSend_RejectsLongResponse(t *testing.T) {
	_, err := run(t, "send", "--server", "127.0.0.1:1", strings.Repeat("x", 101))
	require.ErrorContains(t, err, "too long")
}

func TestQuestions_ListRemoveClear(t *testing.T) {
	file := filepath.Join(t.TempDir(), "questions.json")
	store := questions.NewStore(file, zerolog.Nop())

	list := questions.NewList(nil)
	list.Add("first", time.Date(2026, 3, 1, 9, 5, 0, 0, time.Local))
	list.Add("second", time.Date(2026, 3, 1, 9, 10, 0, 0, time.Local))
	require.NoError(t, store.Save(list))

	out, err := run(t, "questions", "--questions-file", file)
	require.NoError(t, err)
	require.Equal(t, "  1  09:05  first\n  2  09:10  second\n", out)

	out, err = run(t, "questions", "remove", "1", "--questions-file", file)
	require.NoError(t, err)
	require.Equal(t, "Removed: first\n", out)

	out, err = run(t, "questions", "list", "--questions-file", file)
	require.NoError(t, err)
	require.Equal(t, "  1  09:10  second\n", out)

	_, err = run(t, "questions", "clear", "--questions-file", file)
	require.ErrorContains(t, err, "without --yes")

	out, err = run(t, "questions", "clear", "--yes", "--questions-file", file)
	require.NoError(t, err)
	require.Equal(t, "Cleared all questions.\n", out)

	out, err = run(t, "questions", "--questions-file", file)
	require.NoError(t, err)
	require.Equal(t, "No questions yet.\n", out)
}

func TestQuestions_Resend(t *testing.T) {
	srv, hub := newTestServer(t, testConfig())
	file := filepath.Join(t.TempDir(), "questions.json")

	list := questions.NewList(nil)
	list.Add("Again?", time.Now())
	require.NoError(t, questions.NewStore(file, zerolog.Nop()).Save(list))

	out, err := run(t, "questions", "resend", "1", "--server", srv.URL, "--questions-file", file)
	require.NoError(t, err)
	require.Equal(t, "Asked: Again?\n", out)
	require.Equal(t, "Again?", hub.Question())
}

func TestArchive_ExportsRecordedSessions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "archive.db")

	cfg := testConfig()
	cfg.archive = path
	srv, _ := newTestServer(t, cfg)

	ctx := context.Background()

	conn, err := client.Dial(ctx, srv.URL)
	require.NoError(t, err)
	<-conn.Events()

	require.NoError(t, conn.Question("Favorite color?"))
	require.NoError(t, conn.Await(ctx, relay.QuestionEvent, "Favorite color?"))
	require.NoError(t, conn.Word("blue"))
	require.NoError(t, conn.Await(ctx, relay.WordEvent, "blue"))
	require.NoError(t, conn.Close())

	// recording happens after the broadcast
	require.Eventually(t, func() bool {
		out, err := run(t, "archive", "--archive", path, "--format", "yaml")
		if err != nil {
			return false
		}

		var sessions []archive.Session
		if err := yaml.Unmarshal([]byte(out), &sessions); err != nil {
			return false
		}

		return len(sessions) == 1 &&
			sessions[0].Question == "Favorite color?" &&
			len(sessions[0].Words) == 1 &&
			sessions[0].Words[0].Text == "blue"
	}, 5*time.Second, 50*time.Millisecond)
}

func TestArchive_RequiresPath(t *testing.T) {
	_, err := run(t, "archive")
	require.ErrorContains(t, err, "--archive is required")
}

func TestArchive_MissingFileIsNotCreated(t *testing.T) {
	path := filepath.Join(t.TempDir(), "typo.db")

	_, err := run(t, "archive", "--archive", path)
	require.ErrorContains(t, err, "read archive")
	require.NoFileExists(t, path)
}

func TestWriteSessions_Formats(t *testing.T) {
	sessions := []archive.Session{{
		Question: "q",
		AskedAt:  time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
		Words:    []archive.Word{{Text: "w", ReceivedAt: time.Date(2026, 3, 1, 9, 1, 0, 0, time.UTC)}},
	}}

	var buf bytes.Buffer
	require.NoError(t, writeSessions(&buf, "json", sessions))
	require.Contains(t, buf.String(), `"question": "q"`)

	buf.Reset()
	require.NoError(t, writeSessions(&buf, "YAML", sessions))
	require.Contains(t, buf.String(), "question: q")

	require.ErrorContains(t, writeSessions(&buf, "csv", sessions), "unsupported format")
}
