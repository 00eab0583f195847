package workflow

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/deixis/cronwatch/internal/config"
	"github.com/deixis/cronwatch/internal/issue"
	"github.com/deixis/cronwatch/internal/mail"
	"github.com/deixis/cronwatch/internal/report"
	"github.com/deixis/cronwatch/internal/runner"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

type fakeMailer struct {
	sent []mail.Message
	err  error
}

func (f *fakeMailer) Send(_ context.Context, msg mail.Message) error {
	f.sent = append(f.sent, msg)
	return f.err
}

type fakeFiler struct {
	filed []issue.Issue
	ref   string
	err   error
}

func (f *fakeFiler) File(_ context.Context, is issue.Issue) (string, error) {
	f.filed = append(f.filed, is)
	if f.err != nil {
		return "", f.err
	}
	return f.ref, nil
}

type memStore struct {
	saved []*report.RunResult
	err   error
}

func (s *memStore) Save(r *report.RunResult) error {
	s.saved = append(s.saved, r)
	return s.err
}

func (s *memStore) Load(id string) (*report.RunResult, error) {
	for _, r := range s.saved {
		if r.ID == id {
			return r, nil
		}
	}
	return nil, os.ErrNotExist
}

type fixture struct {
	engine *Engine
	mailer *fakeMailer
	filer  *fakeFiler
	store  *memStore
}

func newFixture(t *testing.T, cfg *config.Config) *fixture {
	t.Helper()
	if cfg == nil {
		cfg = &config.Config{}
	}
	f := &fixture{
		mailer: &fakeMailer{},
		filer:  &fakeFiler{ref: "https://github.com/acme/ops/issues/1"},
		store:  &memStore{},
	}
	f.engine = &Engine{
		Config: cfg,
		Runner: &runner.Runner{Workspace: t.TempDir(), Timeout: 10 * time.Second, MaxOutput: cfg.MaxOutputBytes()},
		Mailer: f.mailer,
		Filer:  f.filer,
		Store:  f.store,
		Logger: zaptest.NewLogger(t),
	}
	return f
}

func request(argv ...string) Request {
	return Request{MailTo: []string{"a@b.com"}, Subject: "test", Argv: argv}
}

func stepStatuses(r *report.RunResult) map[string]string {
	out := make(map[string]string, len(r.Steps))
	for _, s := range r.Steps {
		out[s.Name] = s.Status
	}
	return out
}

func TestNotify_OutputSendsMailAndIssue(t *testing.T) {
	f := newFixture(t, nil)

	res, err := f.engine.Notify(context.Background(), request("echo", "hello"))
	require.NoError(t, err)
	assert.True(t, res.Notified)

	require.Len(t, f.mailer.sent, 1)
	assert.Equal(t, mail.Message{To: []string{"a@b.com"}, Subject: "test", Body: []byte("hello\n")}, f.mailer.sent[0])

	require.Len(t, f.filer.filed, 1)
	assert.Equal(t, "test", f.filer.filed[0].Title)
	assert.Equal(t, "hello\n", string(f.filer.filed[0].Body))

	rr := res.RunResult
	assert.Equal(t, report.Notified, rr.Kind)
	assert.Equal(t, "hello\n", string(rr.Output))
	assert.NotEmpty(t, rr.ID)
	assert.Equal(t, map[string]string{StepRun: report.StatusPass, StepMail: report.StatusPass, StepIssue: report.StatusPass}, stepStatuses(rr))
	issueStep, _ := rr.Step(StepIssue)
	assert.Equal(t, "https://github.com/acme/ops/issues/1", issueStep.Detail)

	require.Len(t, f.store.saved, 1)
	assert.Same(t, rr, f.store.saved[0])
}

func TestNotify_EmptyOutputIsSilent(t *testing.T) {
	f := newFixture(t, nil)

	res, err := f.engine.Notify(context.Background(), request("true"))
	require.NoError(t, err)
	assert.False(t, res.Notified)
	assert.Empty(t, f.mailer.sent)
	assert.Empty(t, f.filer.filed)

	rr := res.RunResult
	assert.Equal(t, report.Quiet, rr.Kind)
	assert.Equal(t, map[string]string{StepRun: report.StatusPass, StepMail: report.StatusSkipped, StepIssue: report.StatusSkipped}, stepStatuses(rr))
	require.Len(t, f.store.saved, 1)
}

func TestNotify_FailingCommandWithStderrNotifies(t *testing.T) {
	f := newFixture(t, nil)

	res, err := f.engine.Notify(context.Background(), request("sh", "-c", "echo 'import failed' >&2; exit 4"))
	require.NoError(t, err)
	assert.True(t, res.Notified)
	assert.Equal(t, 4, res.RunResult.ExitCode)

	require.Len(t, f.mailer.sent, 1)
	assert.Equal(t, "import failed\n", string(f.mailer.sent[0].Body))
	require.Len(t, f.filer.filed, 1)
	assert.Equal(t, "import failed\n", string(f.filer.filed[0].Body))

	runStep, _ := res.RunResult.Step(StepRun)
	assert.Equal(t, report.StatusFail, runStep.Status)
	assert.Equal(t, "exit code 4", runStep.Detail)
}

func TestNotify_FailingCommandWithoutOutputIsSilent(t *testing.T) {
	f := newFixture(t, nil)

	res, err := f.engine.Notify(context.Background(), request("false"))
	require.NoError(t, err)
	assert.False(t, res.Notified)
	assert.Empty(t, f.mailer.sent)
	assert.Empty(t, f.filer.filed)
}

func TestNotify_MailFailureStillFilesIssue(t *testing.T) {
	f := newFixture(t, nil)
	f.mailer.err = errors.New("relay refused")

	res, err := f.engine.Notify(context.Background(), request("echo", "hello"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sending mail: relay refused")
	assert.NotContains(t, err.Error(), "filing issue")

	require.Len(t, f.filer.filed, 1)
	assert.Equal(t, map[string]string{StepRun: report.StatusPass, StepMail: report.StatusFail, StepIssue: report.StatusPass}, stepStatuses(res.RunResult))
	require.Len(t, f.store.saved, 1)
}

func TestNotify_BothCollaboratorsFail(t *testing.T) {
	f := newFixture(t, nil)
	mailErr := errors.New("relay refused")
	issueErr := errors.New("bad credentials")
	f.mailer.err = mailErr
	f.filer.err = issueErr

	res, err := f.engine.Notify(context.Background(), request("echo", "hello"))
	require.Error(t, err)
	assert.ErrorIs(t, err, mailErr)
	assert.ErrorIs(t, err, issueErr)
	assert.Len(t, res.RunResult.Failed(), 2)
}

func TestNotify_CommandNotFoundNotifies(t *testing.T) {
	f := newFixture(t, nil)

	res, err := f.engine.Notify(context.Background(), request("nonexistent-binary-xyz-123", "--flag"))
	require.NoError(t, err)
	assert.True(t, res.Notified)
	assert.Equal(t, exitNotStarted, res.RunResult.ExitCode)
	assert.NotEmpty(t, res.RunResult.ID)

	require.Len(t, f.mailer.sent, 1)
	body := string(f.mailer.sent[0].Body)
	assert.True(t, strings.HasPrefix(body, "cronwatch: executing nonexistent-binary-xyz-123"), "body = %q", body)
}

func TestNotify_TriggerFailure(t *testing.T) {
	f := newFixture(t, &config.Config{RawTrigger: string(config.TriggerFailure)})

	res, err := f.engine.Notify(context.Background(), request("echo", "chatty but fine"))
	require.NoError(t, err)
	assert.False(t, res.Notified)

	res, err = f.engine.Notify(context.Background(), request("false"))
	require.NoError(t, err)
	assert.True(t, res.Notified)
	require.Len(t, f.mailer.sent, 1)
	assert.Empty(t, f.mailer.sent[0].Body)
}

func TestNotify_TriggerOutputOrFailure(t *testing.T) {
	f := newFixture(t, &config.Config{RawTrigger: string(config.TriggerOutputOrFailure)})

	for _, argv := range [][]string{{"echo", "x"}, {"false"}} {
		res, err := f.engine.Notify(context.Background(), request(argv...))
		require.NoError(t, err)
		assert.True(t, res.Notified, "argv %v", argv)
	}
	res, err := f.engine.Notify(context.Background(), request("true"))
	require.NoError(t, err)
	assert.False(t, res.Notified)
	assert.Len(t, f.mailer.sent, 2)
}

func TestNotify_TruncatedOutputIsMarked(t *testing.T) {
	f := newFixture(t, &config.Config{RawMaxOutput: 4})

	res, err := f.engine.Notify(context.Background(), request("echo", "hello world"))
	require.NoError(t, err)
	assert.True(t, res.RunResult.Truncated)
	assert.Equal(t, "hell", string(res.RunResult.Output))

	require.Len(t, f.mailer.sent, 1)
	assert.Equal(t, "hell\n[cronwatch: output truncated at 4 bytes]\n", string(f.mailer.sent[0].Body))
	assert.Equal(t, f.mailer.sent[0].Body, f.filer.filed[0].Body)
}

func TestNotify_SenderAndLabelsFromConfig(t *testing.T) {
	f := newFixture(t, &config.Config{
		Mail:  config.MailConfig{From: "cron@example.org"},
		Issue: config.IssueConfig{Labels: []string{"cron"}},
	})

	_, err := f.engine.Notify(context.Background(), request("echo", "hi"))
	require.NoError(t, err)
	assert.Equal(t, "cron@example.org", f.mailer.sent[0].From)
	assert.Equal(t, []string{"cron"}, f.filer.filed[0].Labels)
}

func TestNotify_InvalidRequest(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.engine.Notify(context.Background(), Request{Argv: []string{"echo", "hi"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no recipient")
	assert.Contains(t, err.Error(), "no subject")
	assert.Empty(t, f.mailer.sent)
	assert.Empty(t, f.store.saved)

	_, err = f.engine.Notify(context.Background(), Request{MailTo: []string{"a@b.com"}, Subject: "s"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no command")
}

func TestNotify_DisabledCollaborators(t *testing.T) {
	f := newFixture(t, nil)
	f.engine.Mailer = nil
	f.engine.Filer = nil
	f.engine.Store = nil

	res, err := f.engine.Notify(context.Background(), request("echo", "hi"))
	require.NoError(t, err)
	assert.True(t, res.Notified)
	assert.Equal(t, map[string]string{StepRun: report.StatusPass, StepMail: report.StatusSkipped, StepIssue: report.StatusSkipped}, stepStatuses(res.RunResult))
}

func TestNotify_StoreFailureIsLogged(t *testing.T) {
	f := newFixture(t, nil)
	f.store.err = errors.New("disk full")
	core, logs := observer.New(zap.WarnLevel)
	f.engine.Logger = zap.New(core)

	_, err := f.engine.Notify(context.Background(), request("echo", "hi"))
	require.NoError(t, err)
	assert.Equal(t, 1, logs.FilterMessage("recording run failed").Len())
}

func TestNotify_WorkingDirectory(t *testing.T) {
	f := newFixture(t, nil)
	ws := f.engine.Runner.(*runner.Runner).Workspace
	require.NoError(t, os.Mkdir(filepath.Join(ws, "job"), 0o755))

	req := request("pwd")
	req.Dir = "job"
	res, err := f.engine.Notify(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(ws, "job")+"\n", string(res.RunResult.Output))
}

func TestShouldNotify(t *testing.T) {
	tests := []struct {
		trigger config.Trigger
		output  string
		code    int
		want    bool
	}{
		{config.TriggerOutput, "", 0, false},
		{config.TriggerOutput, "x", 0, true},
		{config.TriggerOutput, "", 1, false},
		{config.TriggerOutput, "x", 1, true},
		{config.TriggerFailure, "x", 0, false},
		{config.TriggerFailure, "", 2, true},
		{config.TriggerOutputOrFailure, "", 0, false},
		{config.TriggerOutputOrFailure, "x", 0, true},
		{config.TriggerOutputOrFailure, "", 1, true},
		{config.Trigger("bogus"), "x", 0, true},
		{config.Trigger("bogus"), "", 1, false},
	}
	for _, tt := range tests {
		got := shouldNotify(tt.trigger, []byte(tt.output), tt.code)
		assert.Equal(t, tt.want, got, "trigger=%s output=%q code=%d", tt.trigger, tt.output, tt.code)
	}
}
