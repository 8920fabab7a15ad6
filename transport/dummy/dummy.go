// Package dummy provides a transport that accepts every publish and delivers
// nothing. It is meant for dry runs where only encoding and routing matter.
package dummy

import (
	"context"
	"sync/atomic"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"

	errspkg "github.com/drblury/portable/internal/runtime/errors"
	"github.com/drblury/portable/transport"
)

// TransportName is the name used to register this transport.
const TransportName = "dummy"

// ErrConsumingRefused is returned by Subscribe.
var ErrConsumingRefused = errspkg.ErrConsumingRefused

func init() {
	transport.Register(TransportName, Build)
}

// Build returns a PubSub used as both publisher and subscriber.
func Build(context.Context, transport.Config, watermill.LoggerAdapter) (transport.Transport, error) {
	ps := &PubSub{}
	return transport.Transport{Publisher: ps, Subscriber: ps}, nil
}

// PubSub drops published messages and counts them.
type PubSub struct {
	published atomic.Int64
}

func (p *PubSub) Publish(_ string, messages ...*message.Message) error {
	p.published.Add(int64(len(messages)))
	return nil
}

func (p *PubSub) Subscribe(context.Context, string) (<-chan *message.Message, error) {
	return nil, ErrConsumingRefused
}

// Published returns how many messages were discarded so far.
func (p *PubSub) Published() int64 {
	return p.published.Load()
}

func (p *PubSub) Close() error {
	return nil
}
