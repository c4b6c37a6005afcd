package bootstrap

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appconfig "github.com/erdincayar/klinik-asistan-sub000/internal/config"
	"github.com/erdincayar/klinik-asistan-sub000/internal/llm"
	"github.com/erdincayar/klinik-asistan-sub000/internal/messaging"
	"github.com/erdincayar/klinik-asistan-sub000/internal/notify"
	"github.com/erdincayar/klinik-asistan-sub000/pkg/logging"
)

func TestBuildRedisClient(t *testing.T) {
	ctx := context.Background()
	logger := logging.Discard()

	assert.Nil(t, BuildRedisClient(ctx, nil, logger, true))
	assert.Nil(t, BuildRedisClient(ctx, &appconfig.Config{}, logger, true))

	mr := miniredis.RunT(t)
	client := BuildRedisClient(ctx, &appconfig.Config{RedisAddr: mr.Addr()}, logger, true)
	require.NotNil(t, client)
	_ = client.Close()

	mr.Close()
	assert.Nil(t, BuildRedisClient(ctx, &appconfig.Config{RedisAddr: mr.Addr()}, logger, true))
}

func TestBuildDatabaseWithoutURL(t *testing.T) {
	db, err := BuildDatabase(context.Background(), &appconfig.Config{}, logging.Discard())
	require.NoError(t, err)
	assert.Nil(t, db)
}

func TestBuildOracle(t *testing.T) {
	ctx := context.Background()

	_, err := BuildOracle(ctx, nil, nil, nil, logging.Discard())
	require.Error(t, err)

	client, err := BuildOracle(ctx, &appconfig.Config{}, nil, nil, logging.Discard())
	require.NoError(t, err)
	resp, err := client.Complete(ctx, llm.Request{})
	require.NoError(t, err)
	assert.Contains(t, resp.Text, `"type":"ERROR"`)

	_, err = BuildOracle(ctx, &appconfig.Config{BedrockModelID: "anthropic.claude"}, nil, nil, logging.Discard())
	require.Error(t, err)

	client, err = BuildOracle(ctx, &appconfig.Config{BedrockModelID: "anthropic.claude"}, &aws.Config{Region: "eu-central-1"}, nil, logging.Discard())
	require.NoError(t, err)
	assert.IsType(t, &llm.BoundedClient{}, client)
}

func TestBuildEmailSender(t *testing.T) {
	logger := logging.Discard()

	assert.IsType(t, &notify.StubEmailSender{}, BuildEmailSender(nil, nil, logger))
	assert.IsType(t, &notify.StubEmailSender{}, BuildEmailSender(&appconfig.Config{EmailProvider: "stub"}, nil, logger))
	assert.IsType(t, &notify.StubEmailSender{}, BuildEmailSender(&appconfig.Config{EmailProvider: "sendgrid"}, nil, logger))
	assert.IsType(t, &notify.SendGridSender{}, BuildEmailSender(&appconfig.Config{EmailProvider: "sendgrid", SendGridAPIKey: "SG.x"}, nil, logger))
	assert.IsType(t, &notify.StubEmailSender{}, BuildEmailSender(&appconfig.Config{EmailProvider: "ses", SESFromEmail: "a@b.co"}, nil, logger))
	assert.IsType(t, &notify.SESSender{}, BuildEmailSender(&appconfig.Config{EmailProvider: "ses", SESFromEmail: "a@b.co"}, &aws.Config{Region: "eu-central-1"}, logger))
}

func TestBuildChatSender(t *testing.T) {
	sender, err := BuildChatSender(&appconfig.Config{}, logging.Discard())
	require.NoError(t, err)
	assert.IsType(t, logChatSender{}, sender)
	require.NoError(t, sender.SendText(context.Background(), "1", "x"))

	sender, err = BuildChatSender(&appconfig.Config{TelegramBotToken: "123:abc"}, logging.Discard())
	require.NoError(t, err)
	assert.IsType(t, &messaging.TelegramClient{}, sender)
}

func TestBuildQueue(t *testing.T) {
	q, err := BuildQueue(&appconfig.Config{UseMemoryQueue: true}, nil)
	require.NoError(t, err)
	assert.IsType(t, &messaging.MemoryQueue{}, q)

	_, err = BuildQueue(&appconfig.Config{}, nil)
	require.Error(t, err)

	_, err = BuildQueue(&appconfig.Config{InboundQueueURL: "https://sqs.local/q"}, nil)
	require.Error(t, err)

	q, err = BuildQueue(&appconfig.Config{InboundQueueURL: "https://sqs.local/q"}, &aws.Config{Region: "eu-central-1"})
	require.NoError(t, err)
	assert.IsType(t, &messaging.SQSQueue{}, q)
}

func TestNeedsAWS(t *testing.T) {
	assert.False(t, needsAWS(&appconfig.Config{UseMemoryQueue: true, EmailProvider: "stub"}))
	assert.True(t, needsAWS(&appconfig.Config{BedrockModelID: "m"}))
	assert.True(t, needsAWS(&appconfig.Config{InboundQueueURL: "u"}))
	assert.True(t, needsAWS(&appconfig.Config{UseMemoryQueue: true, EmailProvider: "ses"}))
}

func TestBuildRequiresRedis(t *testing.T) {
	_, _, err := Build(context.Background(), nil, nil, logging.Discard())
	require.Error(t, err)

	_, _, err = Build(context.Background(), &appconfig.Config{}, nil, logging.Discard())
	require.Error(t, err)
}

func TestBuildInMemory(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig()
	cfg.RedisAddr = mr.Addr()
	cfg.EmailProvider = "stub"

	app, closeFn, err := Build(context.Background(), cfg, nil, logging.Discard())
	require.NoError(t, err)
	defer closeFn()
	assert.IsType(t, &messaging.MemoryQueue{}, app.Queue)
	assert.IsType(t, logChatSender{}, app.Chat)
}
