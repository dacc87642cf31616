package conversation

import (
	"fmt"
	"maps"
	"sync"
	"time"

	"eatech-voice/pkg/nlp"
)

// DefaultTTL is how long an unresolved context stays live after its last
// update.
const DefaultTTL = 60 * time.Second

type Type string

const (
	OrderCreation    Type = "order-creation"
	ProductSelection Type = "product-selection"
	Payment          Type = "payment"
	Reservation      Type = "reservation"
	Help             Type = "help"
)

var Types = []Type{OrderCreation, ProductSelection, Payment, Reservation, Help}

// compatible lists the intents that refine a context instead of replacing it.
var compatible = map[Type][]string{
	OrderCreation:    {nlp.IntentSetPayment, nlp.IntentSelectTable, nlp.IntentSetTime},
	ProductSelection: {nlp.IntentSetQuantity},
	Payment:          {nlp.IntentSetPayment},
	Reservation:      {nlp.IntentSetGuests, nlp.IntentSetTime, nlp.IntentSetDate, nlp.IntentSelectTable},
	Help:             {},
}

func (t Type) Valid() bool {
	_, ok := compatible[t]
	return ok
}

// Accepts reports whether intent updates a context of this type.
func (t Type) Accepts(intent string) bool {
	for _, i := range compatible[t] {
		if i == intent {
			return true
		}
	}
	return false
}

// Resolves reports whether intent settles any live context.
func Resolves(intent string) bool {
	return intent == nlp.IntentConfirm || intent == nlp.IntentDeny
}

// Context is the single live conversational frame.
type Context struct {
	Type      Type              `json:"type"`
	Payload   map[string]string `json:"payload"`
	CreatedAt time.Time         `json:"createdAt"`
	UpdatedAt time.Time         `json:"updatedAt"`
	ExpiresAt time.Time         `json:"expiresAt"`
}

func (c Context) clone() Context {
	c.Payload = maps.Clone(c.Payload)
	if c.Payload == nil {
		c.Payload = map[string]string{}
	}
	return c
}

type Option func(*Manager)

func WithTTL(ttl time.Duration) Option {
	return func(m *Manager) { m.ttl = ttl }
}

func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// Manager holds at most one live context.
type Manager struct {
	mu      sync.Mutex
	current *Context
	ttl     time.Duration
	now     func() time.Time
}

func NewManager(opts ...Option) *Manager {
	m := &Manager{ttl: DefaultTTL, now: time.Now}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Create replaces any live context with a new one.
func (m *Manager) Create(t Type, payload map[string]string) (Context, error) {
	if !t.Valid() {
		return Context{}, fmt.Errorf("unknown context type %q", t)
	}
	now := m.now()
	c := Context{
		Type:      t,
		Payload:   maps.Clone(payload),
		CreatedAt: now,
		UpdatedAt: now,
		ExpiresAt: now.Add(m.ttl),
	}
	c = c.clone()

	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = &c
	return c.clone(), nil
}

// Current returns the live context. An expired context is dropped.
func (m *Manager) Current() (Context, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.liveLocked() {
		return Context{}, false
	}
	return m.current.clone(), true
}

// Type returns the live context type, or "" when there is none.
func (m *Manager) Type() Type {
	c, ok := m.Current()
	if !ok {
		return ""
	}
	return c.Type
}

func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = nil
}

// Merge folds the entities of a compatible intent into the live context
// payload and extends its lifetime. It reports false and leaves the context
// untouched when there is none or the intent does not belong to it.
func (m *Manager) Merge(intent string, entities map[string]string) (Context, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.liveLocked() || !m.current.Type.Accepts(intent) {
		return Context{}, false
	}

	next := m.current.clone()
	for k, v := range entities {
		if v != "" {
			next.Payload[k] = v
		}
	}
	now := m.now()
	next.UpdatedAt = now
	next.ExpiresAt = now.Add(m.ttl)
	m.current = &next
	return next.clone(), true
}

func (m *Manager) liveLocked() bool {
	if m.current == nil {
		return false
	}
	if !m.now().Before(m.current.ExpiresAt) {
		m.current = nil
		return false
	}
	return true
}
