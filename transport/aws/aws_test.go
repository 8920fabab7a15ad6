package aws

import (
	"context"
	"errors"
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-aws/sns"
	"github.com/ThreeDotsLabs/watermill-aws/sqs"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drblury/portable/transport"
	"github.com/drblury/portable/transport/transporttest"
)

type recordingResolver struct {
	accountID string
	region    string
}

func (r recordingResolver) ResolveTopic(_ context.Context, topic string) (sns.TopicArn, error) {
	return sns.TopicArn("arn:aws:sns:" + r.region + ":" + r.accountID + ":" + topic), nil
}

type built struct {
	accountID string
	region    string
	pub       sns.PublisherConfig
	sub       sns.SubscriberConfig
	sqs       sqs.SubscriberConfig
}

func stubAWS(t *testing.T) *built {
	t.Helper()
	originalLoader, originalResolver := DefaultConfigLoader, TopicResolverFactory
	originalPub, originalSub := PublisherFactory, SubscriberFactory
	t.Cleanup(func() {
		DefaultConfigLoader = originalLoader
		TopicResolverFactory = originalResolver
		PublisherFactory = originalPub
		SubscriberFactory = originalSub
	})

	b := &built{}
	DefaultConfigLoader = func(context.Context, ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		return aws.Config{Region: "eu-central-1"}, nil
	}
	TopicResolverFactory = func(accountID, region string) (sns.TopicResolver, error) {
		b.accountID, b.region = accountID, region
		return recordingResolver{accountID: accountID, region: region}, nil
	}
	PublisherFactory = func(cfg sns.PublisherConfig, _ watermill.LoggerAdapter) (message.Publisher, error) {
		b.pub = cfg
		return &transporttest.Publisher{}, nil
	}
	SubscriberFactory = func(cfg sns.SubscriberConfig, sqsCfg sqs.SubscriberConfig, _ watermill.LoggerAdapter) (message.Subscriber, error) {
		b.sub, b.sqs = cfg, sqsCfg
		return &transporttest.Subscriber{}, nil
	}
	return b
}

func TestRegister(t *testing.T) {
	assert.True(t, transport.DefaultRegistry.Has(TransportName))
}

func TestTopicName(t *testing.T) {
	assert.Equal(t, "shop-user-created", TopicName("shop.user.created"))
	assert.Equal(t, "orders_v2-placed", TopicName("orders_v2/placed"))
	assert.Equal(t, "already-valid", TopicName("already-valid"))
}

func TestBuild(t *testing.T) {
	b := stubAWS(t)

	tr, err := Build(context.Background(), &transporttest.Config{
		AWSRegion:    "us-east-1",
		AWSAccountID: "123456789012",
	}, watermill.NopLogger{})
	require.NoError(t, err)
	assert.NotNil(t, tr.Publisher)
	assert.NotNil(t, tr.Subscriber)

	assert.Equal(t, "123456789012", b.accountID)
	assert.Equal(t, "us-east-1", b.region)
	assert.Equal(t, "us-east-1", b.pub.AWSConfig.Region)
	assert.Empty(t, b.pub.OptFns)
	assert.Empty(t, b.sqs.OptFns)

	arn, err := b.pub.TopicResolver.ResolveTopic(context.Background(), "shop.user.created")
	require.NoError(t, err)
	assert.Equal(t, sns.TopicArn("arn:aws:sns:us-east-1:123456789012:shop-user-created"), arn)

	queue, err := b.sub.GenerateSqsQueueName(context.Background(), arn)
	require.NoError(t, err)
	assert.Equal(t, "shop-user-created", queue)
}

func TestBuildWithLocalstackEndpoint(t *testing.T) {
	b := stubAWS(t)

	_, err := Build(context.Background(), &transporttest.Config{
		AWSEndpoint: "http://localhost:4566",
	}, watermill.NopLogger{})
	require.NoError(t, err)

	assert.Equal(t, localstackAccountID, b.accountID)
	assert.Equal(t, "eu-central-1", b.region)
	assert.Len(t, b.pub.OptFns, 1)
	assert.Len(t, b.sub.OptFns, 1)
	assert.Len(t, b.sqs.OptFns, 1)
}

func TestBuildErrors(t *testing.T) {
	t.Run("config loader", func(t *testing.T) {
		stubAWS(t)
		DefaultConfigLoader = func(context.Context, ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
			return aws.Config{}, errors.New("no credentials")
		}
		_, err := Build(context.Background(), &transporttest.Config{AWSRegion: "us-east-1"}, watermill.NopLogger{})
		assert.EqualError(t, err, "no credentials")
	})

	t.Run("endpoint", func(t *testing.T) {
		stubAWS(t)
		_, err := Build(context.Background(), &transporttest.Config{AWSEndpoint: "http://[::1"}, watermill.NopLogger{})
		assert.ErrorContains(t, err, "parse AWS endpoint")
	})

	t.Run("topic resolver", func(t *testing.T) {
		stubAWS(t)
		TopicResolverFactory = func(string, string) (sns.TopicResolver, error) {
			return nil, errors.New("bad account")
		}
		_, err := Build(context.Background(), &transporttest.Config{}, watermill.NopLogger{})
		assert.EqualError(t, err, "create SNS topic resolver: bad account")
	})

	t.Run("subscriber closes publisher", func(t *testing.T) {
		stubAWS(t)
		pub := &transporttest.Publisher{}
		PublisherFactory = func(sns.PublisherConfig, watermill.LoggerAdapter) (message.Publisher, error) {
			return pub, nil
		}
		SubscriberFactory = func(sns.SubscriberConfig, sqs.SubscriberConfig, watermill.LoggerAdapter) (message.Subscriber, error) {
			return nil, errors.New("queue limit")
		}
		_, err := Build(context.Background(), &transporttest.Config{}, watermill.NopLogger{})
		assert.EqualError(t, err, "queue limit")
		assert.True(t, pub.Closed)
	})
}

func TestResolveAccountAndRegion(t *testing.T) {
	logger := watermill.NopLogger{}

	account, region := resolveAccountAndRegion(&transporttest.Config{AWSAccountID: `"123456789012"`, AWSRegion: "us-west-2"}, logger, "eu-west-1")
	assert.Equal(t, "123456789012", account)
	assert.Equal(t, "us-west-2", region)

	account, region = resolveAccountAndRegion(&transporttest.Config{AWSAccountID: "123"}, logger, "eu-west-1")
	assert.Equal(t, "123", account)
	assert.Equal(t, "eu-west-1", region)

	account, _ = resolveAccountAndRegion(&transporttest.Config{AWSAccountID: "123", AWSEndpoint: "http://localhost:4566"}, logger, "")
	assert.Equal(t, localstackAccountID, account)
}

func TestStaticCredentialsProvider(t *testing.T) {
	creds, err := staticCredentialsProvider("AKIA", "secret").Retrieve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "AKIA", creds.AccessKeyID)
	assert.Equal(t, "secret", creds.SecretAccessKey)
}
