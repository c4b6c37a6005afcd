package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"

	appconfig "github.com/erdincayar/klinik-asistan-sub000/internal/config"
	"github.com/erdincayar/klinik-asistan-sub000/internal/observability/metrics"
	"github.com/erdincayar/klinik-asistan-sub000/pkg/logging"
)

// Build connects every external dependency named in cfg and assembles the
// App. The returned close function releases Redis and Postgres.
func Build(ctx context.Context, cfg *appconfig.Config, m *metrics.AssistantMetrics, logger *logging.Logger) (*App, func(), error) {
	if cfg == nil {
		return nil, nil, errors.New("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}

	redisClient := BuildRedisClient(ctx, cfg, logger, true)
	if redisClient == nil {
		return nil, nil, errors.New("bootstrap: redis is required (REDIS_ADDR)")
	}
	db, err := BuildDatabase(ctx, cfg, logger)
	if err != nil {
		_ = redisClient.Close()
		return nil, nil, err
	}
	closeAll := func() {
		db.Close()
		_ = redisClient.Close()
	}

	var awsCfg *aws.Config
	if needsAWS(cfg) {
		loaded, err := LoadAWSConfig(ctx, cfg)
		if err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("bootstrap: load aws config: %w", err)
		}
		awsCfg = &loaded
	}

	oracle, err := BuildOracle(ctx, cfg, awsCfg, m, logger)
	if err != nil {
		closeAll()
		return nil, nil, err
	}
	chat, err := BuildChatSender(cfg, logger)
	if err != nil {
		closeAll()
		return nil, nil, err
	}
	queue, err := BuildQueue(cfg, awsCfg)
	if err != nil {
		closeAll()
		return nil, nil, err
	}

	app, err := NewApp(Options{
		Config:   cfg,
		Logger:   logger,
		Redis:    redisClient,
		Database: db,
		Oracle:   oracle,
		Email:    BuildEmailSender(cfg, awsCfg, logger),
		Chat:     chat,
		Queue:    queue,
		Metrics:  m,
	})
	if err != nil {
		closeAll()
		return nil, nil, err
	}
	return app, closeAll, nil
}
