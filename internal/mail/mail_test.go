package mail

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/deixis/cronwatch/internal/runner"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

// fakeMail writes a mail(1) stand-in that records its argv and stdin
// into dir, then exits with code.
func fakeMail(t *testing.T, dir string, code int) string {
	t.Helper()
	path := filepath.Join(dir, "mail")
	script := "#!/bin/sh\n" +
		"printf '%s\\n' \"$@\" > '" + filepath.Join(dir, "args") + "'\n" +
		"cat > '" + filepath.Join(dir, "body") + "'\n" +
		"[ " + strconv.Itoa(code) + " -eq 0 ] || echo 'relay refused' >&2\n" +
		"exit " + strconv.Itoa(code) + "\n"
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}

func newMailer(t *testing.T, command ...string) *CommandMailer {
	return &CommandMailer{
		Runner:  &runner.Runner{Workspace: t.TempDir(), Timeout: 10 * time.Second},
		Command: command,
		Logger:  zaptest.NewLogger(t),
	}
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
}

func TestCommandMailer_Send(t *testing.T) {
	dir := t.TempDir()
	m := newMailer(t, fakeMail(t, dir, 0))

	err := m.Send(context.Background(), Message{
		From:    "cron@example.org",
		To:      []string{"a@b.com"},
		Subject: "test",
		Body:    []byte("hello\n"),
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"-s", "test", "-r", "cron@example.org", "a@b.com"}, readLines(t, filepath.Join(dir, "args")))
	body, err := os.ReadFile(filepath.Join(dir, "body"))
	require.NoError(t, err)
	assert.Equal(t, "hello\n", string(body))
}

func TestCommandMailer_NoSender(t *testing.T) {
	dir := t.TempDir()
	m := newMailer(t, fakeMail(t, dir, 0))

	err := m.Send(context.Background(), Message{
		To:      []string{"a@b.com", "c@d.org"},
		Subject: "nightly import",
		Body:    []byte("x"),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"-s", "nightly import", "a@b.com", "c@d.org"}, readLines(t, filepath.Join(dir, "args")))
}

func TestCommandMailer_CommandPrefix(t *testing.T) {
	dir := t.TempDir()
	m := newMailer(t, "sh", fakeMail(t, dir, 0))

	require.NoError(t, m.Send(context.Background(), Message{To: []string{"a@b.com"}, Subject: "s", Body: []byte("b")}))
	assert.Equal(t, []string{"-s", "s", "a@b.com"}, readLines(t, filepath.Join(dir, "args")))
}

func TestCommandMailer_NonZeroExit(t *testing.T) {
	dir := t.TempDir()
	m := newMailer(t, fakeMail(t, dir, 1))

	err := m.Send(context.Background(), Message{To: []string{"a@b.com"}, Subject: "s", Body: []byte("b")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exited with code 1")
	assert.Contains(t, err.Error(), "relay refused")
}

func TestCommandMailer_MissingBinary(t *testing.T) {
	m := newMailer(t, "nonexistent-mail-xyz")
	err := m.Send(context.Background(), Message{To: []string{"a@b.com"}, Subject: "s", Body: []byte("b")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nonexistent-mail-xyz")
}

func TestCommandMailer_Validation(t *testing.T) {
	m := newMailer(t)
	require.Error(t, m.Send(context.Background(), Message{To: []string{"a@b.com"}}))

	m = newMailer(t, "mail")
	require.Error(t, m.Send(context.Background(), Message{Subject: "s"}))
}

func TestLogMailer(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	m := &LogMailer{Logger: zap.New(core)}

	require.NoError(t, m.Send(context.Background(), Message{To: []string{"a@b.com"}, Subject: "test", Body: []byte("hello\n")}))

	entries := logs.FilterMessage("dry run: mail not sent").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "test", entries[0].ContextMap()["subject"])
}

func TestParseRecipients(t *testing.T) {
	got, err := ParseRecipients("a@b.com")
	require.NoError(t, err)
	assert.Equal(t, []string{"a@b.com"}, got)

	got, err = ParseRecipients("Ops <ops@example.org>, a@b.com")
	require.NoError(t, err)
	assert.Equal(t, []string{"ops@example.org", "a@b.com"}, got)

	_, err = ParseRecipients("")
	require.Error(t, err)

	_, err = ParseRecipients("not an address")
	require.Error(t, err)
}
