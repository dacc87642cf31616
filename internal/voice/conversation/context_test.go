package conversation

import (
	"testing"
	"time"

	"eatech-voice/pkg/nlp"

	"github.com/stretchr/testify/require"
)

type manualClock struct{ t time.Time }

func (c *manualClock) now() time.Time { return c.t }

func newTestManager() (*Manager, *manualClock) {
	clock := &manualClock{t: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	return NewManager(WithClock(clock.now)), clock
}

func TestCreateReplacesWholesale(t *testing.T) {
	m, _ := newTestManager()

	_, err := m.Create(OrderCreation, map[string]string{"items": "2", "total": "31.80"})
	require.NoError(t, err)
	_, err = m.Create(Reservation, map[string]string{"guests": "4"})
	require.NoError(t, err)

	c, ok := m.Current()
	require.True(t, ok)
	require.Equal(t, Reservation, c.Type)
	require.Equal(t, map[string]string{"guests": "4"}, c.Payload)
}

func TestCreateRejectsUnknownType(t *testing.T) {
	m, _ := newTestManager()
	_, err := m.Create(Type("shipping"), nil)
	require.Error(t, err)
	_, ok := m.Current()
	require.False(t, ok)
}

func TestPayloadIsCopied(t *testing.T) {
	m, _ := newTestManager()
	payload := map[string]string{"item": "burger"}
	_, err := m.Create(ProductSelection, payload)
	require.NoError(t, err)

	payload["item"] = "pizza"
	c, _ := m.Current()
	require.Equal(t, "burger", c.Payload["item"])

	c.Payload["item"] = "salat"
	c2, _ := m.Current()
	require.Equal(t, "burger", c2.Payload["item"])
}

func TestMerge(t *testing.T) {
	tests := []struct {
		name     string
		ctx      Type
		intent   string
		entities map[string]string
		merged   bool
		want     map[string]string
	}{
		{"quantity refines product", ProductSelection, nlp.IntentSetQuantity, map[string]string{"quantity": "3"}, true,
			map[string]string{"item": "burger", "quantity": "3"}},
		{"payment method on order", OrderCreation, nlp.IntentSetPayment, map[string]string{"method": "twint"}, true,
			map[string]string{"item": "burger", "method": "twint"}},
		{"guests on reservation", Reservation, nlp.IntentSetGuests, map[string]string{"guests": "4"}, true,
			map[string]string{"item": "burger", "guests": "4"}},
		{"empty values ignored", Reservation, nlp.IntentSetTime, map[string]string{"time": ""}, true,
			map[string]string{"item": "burger"}},
		{"unrelated intent", OrderCreation, nlp.IntentShowMenu, nil, false,
			map[string]string{"item": "burger"}},
		{"help accepts nothing", Help, nlp.IntentSetQuantity, map[string]string{"quantity": "2"}, false,
			map[string]string{"item": "burger"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, _ := newTestManager()
			_, err := m.Create(tt.ctx, map[string]string{"item": "burger"})
			require.NoError(t, err)

			_, merged := m.Merge(tt.intent, tt.entities)
			require.Equal(t, tt.merged, merged)

			c, ok := m.Current()
			require.True(t, ok)
			require.Equal(t, tt.ctx, c.Type)
			require.Equal(t, tt.want, c.Payload)
		})
	}
}

func TestMergeWithoutContext(t *testing.T) {
	m, _ := newTestManager()
	_, merged := m.Merge(nlp.IntentSetQuantity, map[string]string{"quantity": "2"})
	require.False(t, merged)
}

func TestContextExpires(t *testing.T) {
	m, clock := newTestManager()
	_, err := m.Create(OrderCreation, nil)
	require.NoError(t, err)

	clock.t = clock.t.Add(59 * time.Second)
	require.Equal(t, OrderCreation, m.Type())

	clock.t = clock.t.Add(time.Second)
	_, ok := m.Current()
	require.False(t, ok)
	require.Equal(t, Type(""), m.Type())
}

func TestMergeExtendsLifetime(t *testing.T) {
	m, clock := newTestManager()
	_, err := m.Create(Reservation, nil)
	require.NoError(t, err)

	clock.t = clock.t.Add(50 * time.Second)
	_, merged := m.Merge(nlp.IntentSetGuests, map[string]string{"guests": "2"})
	require.True(t, merged)

	clock.t = clock.t.Add(50 * time.Second)
	c, ok := m.Current()
	require.True(t, ok)
	require.Equal(t, "2", c.Payload["guests"])
}

func TestClear(t *testing.T) {
	m, _ := newTestManager()
	_, err := m.Create(Payment, nil)
	require.NoError(t, err)
	m.Clear()
	_, ok := m.Current()
	require.False(t, ok)
}

func TestResolves(t *testing.T) {
	require.True(t, Resolves(nlp.IntentConfirm))
	require.True(t, Resolves(nlp.IntentDeny))
	require.False(t, Resolves(nlp.IntentAddToCart))
}
