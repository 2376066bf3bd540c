// Package interpreter maps free-form command text onto application actions.
package interpreter

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"ablevoice/internal/bus"
	"ablevoice/internal/domain"
	"ablevoice/internal/logging"
	"ablevoice/internal/ports"
)

// Speaker produces spoken feedback. It returns "" when nothing was spoken.
type Speaker interface {
	Speak(text string) string
}

// Publisher delivers command events and reports how many handlers ran.
type Publisher interface {
	Publish(topic string, event domain.CommandEvent) int
}

// ModeStore owns the accessibility mode.
type ModeStore interface {
	Mode() domain.AccessibilityMode
	SetMode(mode domain.AccessibilityMode) bool
}

// Catalog resolves spoken item and category names.
type Catalog interface {
	Lookup(name string) (domain.MenuItem, bool)
	At(position int) (domain.MenuItem, bool)
	Category(name string) (string, bool)
}

// Deps are the collaborators of an Interpreter. Aliases, Table and Logger
// are optional.
type Deps struct {
	Navigator ports.Navigator
	Notifier  ports.Notifier
	Speaker   Speaker
	Publisher Publisher
	Modes     ModeStore
	Catalog   Catalog
	Aliases   ports.RulesEngine
	Table     *Table
	Logger    *slog.Logger
}

// Failure is an interpretation error with a message fit for the user.
type Failure struct {
	Message string
	Err     error
}

func (f *Failure) Error() string {
	if f.Err == nil {
		return f.Message
	}
	return fmt.Sprintf("%s: %v", f.Message, f.Err)
}

func (f *Failure) Unwrap() error {
	return f.Err
}

func failf(cause error, format string, args ...any) error {
	return &Failure{Message: fmt.Sprintf(format, args...), Err: cause}
}

const (
	fallbackMessage = "Sorry, I didn't understand that command. Say help for available commands."
	failureSuffix   = " Say help for available commands."
	genericFailure  = "Sorry, I couldn't process that command."
	fallbackNotice  = `Command not recognized. Try saying "Help" for available commands.`
)

// Interpreter is safe for concurrent use if its collaborators are.
type Interpreter struct {
	nav      ports.Navigator
	notifier ports.Notifier
	speaker  Speaker
	bus      Publisher
	modes    ModeStore
	catalog  Catalog
	aliases  ports.RulesEngine
	table    *Table
	logger   *slog.Logger
}

func New(deps Deps) *Interpreter {
	table := deps.Table
	if table == nil {
		table = DefaultTable()
	}
	return &Interpreter{
		nav:      deps.Navigator,
		notifier: deps.Notifier,
		speaker:  deps.Speaker,
		bus:      deps.Publisher,
		modes:    deps.Modes,
		catalog:  deps.Catalog,
		aliases:  deps.Aliases,
		table:    table,
		logger:   logging.Component(deps.Logger, "interpreter"),
	}
}

// Interpret runs one command. It never panics and always returns exactly one
// outcome.
func (in *Interpreter) Interpret(raw string) (outcome domain.Outcome) {
	if strings.TrimSpace(raw) == "" {
		return domain.Outcome{Kind: domain.OutcomeDropped}
	}

	command := Normalize(raw)
	defer func() {
		if r := recover(); r != nil {
			outcome = in.fail(command, "", fmt.Errorf("panic: %v", r))
		}
	}()

	command = in.rewrite(command)
	if command == "" {
		return domain.Outcome{Kind: domain.OutcomeDropped}
	}

	rule, m, ok := in.table.Match(command)
	if !ok {
		in.logger.Info("command not recognized", "command", command)
		in.notify(domain.NotifyInfo, fallbackNotice)
		return domain.Outcome{
			Kind:    domain.OutcomeFallback,
			Command: command,
			Spoken:  in.say(fallbackMessage),
		}
	}

	outcome, err := rule.Handle(in, m)
	if err != nil {
		return in.fail(command, rule.Name, err)
	}
	outcome.Command = command
	outcome.Rule = rule.Name
	in.logger.Info("command interpreted", "command", command, "rule", rule.Name, "outcome", outcome.Kind)
	return outcome
}

func (in *Interpreter) rewrite(command string) string {
	if in.aliases == nil {
		return command
	}
	rewritten, err := in.aliases.Apply(command)
	if err != nil {
		in.logger.Warn("alias rules failed", "command", command, "error", err)
		return command
	}
	return Normalize(rewritten)
}

func (in *Interpreter) fail(command, rule string, err error) domain.Outcome {
	message := genericFailure
	var failure *Failure
	if errors.As(err, &failure) && failure.Message != "" {
		message = failure.Message
	}

	in.logger.Warn("command failed", "command", command, "rule", rule, "error", err)
	in.notify(domain.NotifyError, message)
	return domain.Outcome{
		Kind:    domain.OutcomeFallback,
		Command: command,
		Rule:    rule,
		Spoken:  in.say(message + failureSuffix),
		Err:     err.Error(),
	}
}

func (in *Interpreter) say(text string) string {
	if in.speaker == nil {
		return ""
	}
	if in.speaker.Speak(text) == "" {
		return ""
	}
	return text
}

func (in *Interpreter) notify(kind domain.NotifyKind, message string) {
	if in.notifier == nil {
		return
	}
	in.notifier.Notify(domain.Notification{Kind: kind, Message: message})
}

func (in *Interpreter) publish(event domain.CommandEvent) int {
	if in.bus == nil {
		return 0
	}
	return in.bus.Publish(bus.TopicVoiceCommand, event)
}

// emit publishes event, confirms it and builds the outcome.
func (in *Interpreter) emit(event domain.CommandEvent, confirmation string) domain.Outcome {
	in.publish(event)
	in.notify(domain.NotifySuccess, confirmation)
	return domain.Outcome{
		Kind:   domain.OutcomeEvent,
		Event:  &event,
		Spoken: in.say(confirmation),
	}
}
