package routing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drblury/portable/internal/runtime/bus"
	"github.com/drblury/portable/internal/runtime/envelope"
	errspkg "github.com/drblury/portable/internal/runtime/errors"
	"github.com/drblury/portable/internal/runtime/typeregistry"
)

type userCreated struct {
	UserID string `json:"userId"`
}

type unregistered struct{}

func newRegistry(t *testing.T) *typeregistry.Registry {
	t.Helper()
	reg, err := typeregistry.New(nil, typeregistry.Mapping{typeregistry.For[userCreated]("user.created")})
	require.NoError(t, err)
	return reg
}

// capture records the envelope that reached the end of the chain.
type capture struct {
	calls int
	env   envelope.Envelope
}

func (c *capture) Handle(_ context.Context, env envelope.Envelope) (envelope.Envelope, error) {
	c.calls++
	c.env = env
	return env, nil
}

func TestNewKeyMiddlewareRequiresPlaceholder(t *testing.T) {
	reg := newRegistry(t)

	_, err := NewKeyMiddleware(reg, "some-namespace.type")
	assert.ErrorIs(t, err, errspkg.ErrInvalidPattern)

	_, err = NewKeyMiddleware(reg, "")
	assert.ErrorIs(t, err, errspkg.ErrInvalidPattern)

	_, err = NewKeyMiddleware(nil, DefaultPattern)
	assert.ErrorIs(t, err, errspkg.ErrRegistryRequired)

	mw, err := NewKeyMiddleware(reg, DefaultPattern)
	require.NoError(t, err)
	assert.Equal(t, "{messageType}", mw.Pattern())
}

func TestDerivesRoutingKey(t *testing.T) {
	mw, err := NewKeyMiddleware(newRegistry(t), "some-namespace.{messageType}")
	require.NoError(t, err)

	next := &capture{}
	_, err = mw.Handle(context.Background(), envelope.New(userCreated{UserID: "abc"}), next)
	require.NoError(t, err)

	require.Equal(t, 1, next.calls)
	stamp, ok := envelope.LastOf[envelope.AMQPStamp](next.env)
	require.True(t, ok)
	assert.Equal(t, "some-namespace.user.created", stamp.RoutingKey)
	assert.Equal(t, envelope.FlagNoParam, stamp.Flags)
	assert.Nil(t, stamp.Attributes)
}

func TestExplicitKeyIsLeftAlone(t *testing.T) {
	mw, err := NewKeyMiddleware(newRegistry(t), "ns.{messageType}")
	require.NoError(t, err)

	pinned := envelope.AMQPStamp{RoutingKey: "custom.key", Flags: 2}
	env := envelope.New(userCreated{}, pinned, envelope.BusNameStamp{BusName: "bus"})

	next := &capture{}
	_, err = mw.Handle(context.Background(), env, next)
	require.NoError(t, err)

	assert.Equal(t, env.Stamps(), next.env.Stamps())
	assert.Len(t, envelope.AllOf[envelope.AMQPStamp](next.env), 1)
}

func TestEmptyKeyIsReplacedKeepingOptions(t *testing.T) {
	mw, err := NewKeyMiddleware(newRegistry(t), "{messageType}")
	require.NoError(t, err)

	attrs := map[string]any{"priority": 5}
	env := envelope.New(userCreated{},
		&envelope.AMQPStamp{Flags: 1},
		envelope.AMQPStamp{Flags: 4, Attributes: attrs},
	)

	routed, err := mw.Apply(env)
	require.NoError(t, err)

	all := envelope.AllOf[envelope.AMQPStamp](routed)
	require.Len(t, all, 1)
	assert.Equal(t, envelope.AMQPStamp{RoutingKey: "user.created", Flags: 4, Attributes: attrs}, all[0])
	assert.Len(t, envelope.AllOf[envelope.AMQPStamp](env), 2, "input envelope is untouched")
}

func TestEveryPlaceholderIsSubstituted(t *testing.T) {
	mw, err := NewKeyMiddleware(newRegistry(t), "{messageType}.v1.{messageType}")
	require.NoError(t, err)
	assert.Equal(t, "user.created.v1.user.created", mw.Key("user.created"))
}

func TestUnknownTypeAbortsChain(t *testing.T) {
	mw, err := NewKeyMiddleware(newRegistry(t), DefaultPattern)
	require.NoError(t, err)

	next := &capture{}
	_, err = mw.Handle(context.Background(), envelope.New(unregistered{}), next)
	assert.ErrorIs(t, err, errspkg.ErrUnknownType)
	assert.Zero(t, next.calls)
}

func TestPlugsIntoBusChain(t *testing.T) {
	mw, err := NewKeyMiddleware(newRegistry(t), "events.{messageType}")
	require.NoError(t, err)

	b := bus.New("event.bus", mw)
	env, err := b.Dispatch(context.Background(), userCreated{UserID: "1"})
	require.NoError(t, err)

	stamp, ok := envelope.LastOf[envelope.AMQPStamp](env)
	require.True(t, ok)
	assert.Equal(t, "events.user.created", stamp.RoutingKey)
}
