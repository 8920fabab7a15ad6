package http

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	watermillhttp "github.com/ThreeDotsLabs/watermill-http/v2/pkg/http"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drblury/portable/transport"
	"github.com/drblury/portable/transport/transporttest"
)

type topicRecorder struct {
	transporttest.Subscriber
	topics  []string
	started chan struct{}
}

func (r *topicRecorder) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	r.topics = append(r.topics, topic)
	return r.Subscriber.Subscribe(ctx, topic)
}

func (r *topicRecorder) StartHTTPServer() error {
	close(r.started)
	return nil
}

func stubFactories(t *testing.T) {
	t.Helper()
	originalPub, originalSub := PublisherFactory, SubscriberFactory
	t.Cleanup(func() {
		PublisherFactory = originalPub
		SubscriberFactory = originalSub
	})
}

func TestRegister(t *testing.T) {
	assert.True(t, transport.DefaultRegistry.Has(TransportName))
}

func TestTopicURL(t *testing.T) {
	assert.Equal(t, "http://hooks:8080/user.created", TopicURL("http://hooks:8080", "user.created"))
	assert.Equal(t, "http://hooks:8080/user.created", TopicURL("http://hooks:8080/", "/user.created"))
	assert.Equal(t, "/inbox", TopicPath("inbox"))
	assert.Equal(t, "/inbox", TopicPath("/inbox"))
}

func TestBuildPublishesToTopicURL(t *testing.T) {
	stubFactories(t)

	var pubCfg watermillhttp.PublisherConfig
	PublisherFactory = func(cfg watermillhttp.PublisherConfig, _ watermill.LoggerAdapter) (message.Publisher, error) {
		pubCfg = cfg
		return &transporttest.Publisher{}, nil
	}
	SubscriberFactory = func(addr string, _ watermillhttp.SubscriberConfig, _ watermill.LoggerAdapter) (message.Subscriber, error) {
		assert.Equal(t, ":8080", addr)
		return &transporttest.Subscriber{}, nil
	}

	_, err := Build(context.Background(), &transporttest.Config{
		HTTPServerAddress: ":8080",
		HTTPPublisherURL:  "http://hooks:9000/",
	}, watermill.NopLogger{})
	require.NoError(t, err)

	msg := message.NewMessage("01J00000000000000000000003", []byte(`{"userId":"u-1"}`))
	msg.Metadata.Set("X-Message-Type", "user.created")

	req, err := pubCfg.MarshalMessageFunc("user.created", msg)
	require.NoError(t, err)
	assert.Equal(t, "http://hooks:9000/user.created", req.URL.String())
	body, err := io.ReadAll(req.Body)
	require.NoError(t, err)
	assert.JSONEq(t, `{"userId":"u-1"}`, string(body))
}

func TestSubscribeUsesPathAndStartsServerOnce(t *testing.T) {
	stubFactories(t)

	recorder := &topicRecorder{started: make(chan struct{})}
	PublisherFactory = func(watermillhttp.PublisherConfig, watermill.LoggerAdapter) (message.Publisher, error) {
		return &transporttest.Publisher{}, nil
	}
	SubscriberFactory = func(string, watermillhttp.SubscriberConfig, watermill.LoggerAdapter) (message.Subscriber, error) {
		return recorder, nil
	}

	tr, err := Build(context.Background(), &transporttest.Config{}, watermill.NopLogger{})
	require.NoError(t, err)

	_, err = tr.Subscriber.Subscribe(context.Background(), "inbox")
	require.NoError(t, err)
	_, err = tr.Subscriber.Subscribe(context.Background(), "/audit")
	require.NoError(t, err)

	<-recorder.started
	assert.Equal(t, []string{"/inbox", "/audit"}, recorder.topics)
}

func TestBuildErrors(t *testing.T) {
	t.Run("publisher", func(t *testing.T) {
		stubFactories(t)
		PublisherFactory = func(watermillhttp.PublisherConfig, watermill.LoggerAdapter) (message.Publisher, error) {
			return nil, errors.New("bad marshaler")
		}
		_, err := Build(context.Background(), &transporttest.Config{}, watermill.NopLogger{})
		assert.EqualError(t, err, "bad marshaler")
	})

	t.Run("subscriber closes publisher", func(t *testing.T) {
		stubFactories(t)
		pub := &transporttest.Publisher{}
		PublisherFactory = func(watermillhttp.PublisherConfig, watermill.LoggerAdapter) (message.Publisher, error) {
			return pub, nil
		}
		SubscriberFactory = func(string, watermillhttp.SubscriberConfig, watermill.LoggerAdapter) (message.Subscriber, error) {
			return nil, errors.New("address in use")
		}
		_, err := Build(context.Background(), &transporttest.Config{}, watermill.NopLogger{})
		assert.EqualError(t, err, "address in use")
		assert.True(t, pub.Closed)
	})
}
