package command

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"runtime/debug"
	"sort"
	"sync"

	"eatech-voice/internal/voice/conversation"
	"eatech-voice/pkg/nlp"

	"github.com/sirupsen/logrus"
)

var errUnavailable = errors.New("collaborator not configured")

// Deps are the collaborators actions run against. Any of them may be nil;
// actions needing a missing one fail with a localized message.
type Deps struct {
	Cart       Cart
	Orders     Orders
	Restaurant Restaurant
	Navigator  Navigator
	Catalog    Catalog
	Settings   Settings
	Listening  Listening
	Examples   Examples
}

type action func(ctx context.Context, cmd Command) (Result, error)

// Executor maps resolved intents onto actions.
type Executor struct {
	deps     Deps
	contexts *conversation.Manager
	log      *logrus.Logger
	actions  map[string]action

	mu    sync.Mutex
	last  *Command
	table int
}

func New(deps Deps, contexts *conversation.Manager, log *logrus.Logger) *Executor {
	if log == nil {
		log = logrus.New()
		log.SetOutput(io.Discard)
	}
	if contexts == nil {
		contexts = conversation.NewManager()
	}
	e := &Executor{deps: deps, contexts: contexts, log: log}
	e.actions = map[string]action{
		nlp.IntentNavigate:       e.navigate,
		nlp.IntentGoBack:         e.goBack,
		nlp.IntentShowMenu:       e.showMenu,
		nlp.IntentPriceQuery:     e.priceQuery,
		nlp.IntentAddToCart:      e.addToCart,
		nlp.IntentRemoveFromCart: e.removeFromCart,
		nlp.IntentClearCart:      e.clearCart,
		nlp.IntentShowCart:       e.showCart,
		nlp.IntentCreateOrder:    e.createOrder,
		nlp.IntentCancelOrder:    e.cancelOrder,
		nlp.IntentReserveTable:   e.reserveTable,
		nlp.IntentSelectTable:    e.selectTable,
		nlp.IntentCallWaiter:     e.callWaiter,
		nlp.IntentRequestBill:    e.requestBill,
		nlp.IntentConfirm:        e.confirmWithoutContext,
		nlp.IntentDeny:           e.denyWithoutContext,
		nlp.IntentHelp:           e.help,
		nlp.IntentStopListening:  e.stopListening,
		nlp.IntentChangeLanguage: e.changeLanguage,
		nlp.IntentSetQuantity:    e.contextMissing,
		nlp.IntentSetGuests:      e.contextMissing,
		nlp.IntentSetTime:        e.contextMissing,
		nlp.IntentSetDate:        e.contextMissing,
		nlp.IntentSetPayment:     e.contextMissing,
	}
	return e
}

// Intents lists the intents with an action, repeat included.
func (e *Executor) Intents() []string {
	out := make([]string, 0, len(e.actions)+1)
	for intent := range e.actions {
		out = append(out, intent)
	}
	out = append(out, nlp.IntentRepeat)
	sort.Strings(out)
	return out
}

// Contexts exposes the conversation state the executor works with.
func (e *Executor) Contexts() *conversation.Manager {
	return e.contexts
}

// Execute runs the action for cmd. It never panics and never returns an
// error: failures become unsuccessful results with a localized message.
func (e *Executor) Execute(ctx context.Context, cmd Command) (res Result) {
	if cmd.Entities == nil {
		cmd.Entities = map[string]string{}
	}
	defer func() {
		if r := recover(); r != nil {
			e.log.WithFields(logrus.Fields{
				"intent": cmd.Intent,
				"panic":  fmt.Sprint(r),
				"stack":  string(debug.Stack()),
			}).Error("voice command action panicked")
			res = e.failure(cmd, fmt.Errorf("panic: %v", r))
		}
	}()

	if cmd.Intent == nlp.IntentRepeat {
		return e.repeat(ctx, cmd)
	}

	res, err := e.dispatch(ctx, cmd)
	if err != nil {
		return e.failure(cmd, err)
	}
	return res
}

func (e *Executor) dispatch(ctx context.Context, cmd Command) (Result, error) {
	if current, ok := e.contexts.Current(); ok {
		if conversation.Resolves(cmd.Intent) {
			e.remember(cmd)
			return e.resolveContext(ctx, current, cmd)
		}
		if merged, ok := e.contexts.Merge(cmd.Intent, cmd.Entities); ok {
			e.remember(cmd)
			return e.continueContext(ctx, merged, cmd)
		}
	}

	act, ok := e.actions[cmd.Intent]
	if !ok {
		return Result{
			Success: false,
			Message: Localize(cmd.Language, "unknown_command"),
			Action:  "unknown",
		}, nil
	}
	e.remember(cmd)
	return act(ctx, cmd)
}

func (e *Executor) repeat(ctx context.Context, cmd Command) Result {
	e.mu.Lock()
	last := e.last
	e.mu.Unlock()

	if last == nil {
		return Result{Success: false, Message: Localize(cmd.Language, "repeat_none"), Action: "repeat"}
	}
	again := *last
	again.Entities = maps.Clone(last.Entities)
	again.Language = cmd.Language

	res, err := e.dispatch(ctx, again)
	if err != nil {
		return e.failure(again, err)
	}
	return res
}

func (e *Executor) remember(cmd Command) {
	e.mu.Lock()
	defer e.mu.Unlock()
	c := cmd
	c.Entities = maps.Clone(cmd.Entities)
	e.last = &c
}

func (e *Executor) failure(cmd Command, err error) Result {
	e.log.WithFields(logrus.Fields{
		"intent": cmd.Intent,
		"error":  err.Error(),
	}).Warn("voice command failed")
	return Result{
		Success: false,
		Message: Localize(cmd.Language, "failure"),
		Action:  cmd.Intent,
		Code:    CodeProcessing,
		Data:    map[string]interface{}{"error": err.Error()},
	}
}

func (e *Executor) currentTable() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.table
}

func (e *Executor) setTable(n int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.table = n
}
