// Package mail delivers notification messages.
package mail

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/mail"
	"strings"

	"github.com/deixis/cronwatch/internal/runner"
	"go.uber.org/zap"
)

// Message is a plain-text notification.
type Message struct {
	From    string   // optional sender
	To      []string // recipients
	Subject string
	Body    []byte
}

// InputRunner executes a command with stdin attached.
// Implemented by runner.Runner.
type InputRunner interface {
	RunInput(ctx context.Context, argv []string, cwd string, stdin io.Reader) (*runner.Result, error)
}

// CommandMailer hands messages to a mail(1)-compatible command:
//
//	<command...> -s <subject> [-r <from>] <to>...
//
// with the body on stdin.
type CommandMailer struct {
	Runner  InputRunner
	Command []string // e.g. ["mail"] or ["mailx", "-n"]
	Logger  *zap.Logger
}

// Send runs the mail command once for the message.
func (m *CommandMailer) Send(ctx context.Context, msg Message) error {
	if len(m.Command) == 0 {
		return errors.New("no mail command configured")
	}
	if len(msg.To) == 0 {
		return errors.New("message has no recipients")
	}

	argv := append([]string{}, m.Command...)
	argv = append(argv, "-s", msg.Subject)
	if msg.From != "" {
		argv = append(argv, "-r", msg.From)
	}
	argv = append(argv, msg.To...)

	res, err := m.Runner.RunInput(ctx, argv, "", bytes.NewReader(msg.Body))
	if err != nil {
		return fmt.Errorf("running %s: %w", m.Command[0], err)
	}
	if res.ExitCode != 0 {
		return fmt.Errorf("%s exited with code %d: %s", m.Command[0], res.ExitCode, strings.TrimSpace(string(res.Output)))
	}

	logger(m.Logger).Debug("mail sent",
		zap.Strings("to", msg.To),
		zap.String("subject", msg.Subject),
		zap.Int("bytes", len(msg.Body)))
	return nil
}

// LogMailer only logs what would have been sent.
type LogMailer struct {
	Logger *zap.Logger
}

// Send logs the message.
func (m *LogMailer) Send(_ context.Context, msg Message) error {
	logger(m.Logger).Info("dry run: mail not sent",
		zap.Strings("to", msg.To),
		zap.String("from", msg.From),
		zap.String("subject", msg.Subject),
		zap.ByteString("body", msg.Body))
	return nil
}

// ParseRecipients splits a comma-separated recipient list and validates
// every address. Display names are dropped; mail(1) wants bare addresses.
func ParseRecipients(list string) ([]string, error) {
	if strings.TrimSpace(list) == "" {
		return nil, errors.New("no recipient given")
	}
	addrs, err := mail.ParseAddressList(list)
	if err != nil {
		return nil, fmt.Errorf("parsing recipients %q: %w", list, err)
	}
	out := make([]string, len(addrs))
	for i, a := range addrs {
		out[i] = a.Address
	}
	return out, nil
}

func logger(l *zap.Logger) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l
}
