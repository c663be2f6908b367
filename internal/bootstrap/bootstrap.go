// Package bootstrap builds the backends selected by configuration. Both binaries share it.
package bootstrap

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/rekognition"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/rs/zerolog"

	"rollcall/internal/config"
	"rollcall/internal/face"
	"rollcall/internal/mail"
	"rollcall/internal/media"
	"rollcall/internal/queue"
	"rollcall/internal/repository"
	"rollcall/internal/repository/dynamo"
	"rollcall/internal/repository/memory"
	"rollcall/internal/repository/postgres"
	"rollcall/internal/store"
)

// Backends holds the shared infrastructure. Close releases it.
type Backends struct {
	Store repository.Store
	Queue queue.Queue
	Locks store.Locker
	// Redis is nil unless QUEUE_BACKEND is redis.
	Redis *store.Redis

	cfg     config.App
	log     zerolog.Logger
	aws     *aws.Config
	closers []func() error
}

// Open connects the store and the queue. Postgres is migrated on open; DynamoDB tables are created
// when DYNAMO_CREATE_TABLES is set.
func Open(ctx context.Context, cfg config.App, log zerolog.Logger) (*Backends, error) {
	b := &Backends{cfg: cfg, log: log}

	switch cfg.StoreBackend {
	case "postgres":
		db, err := store.NewDB(ctx, cfg.DatabaseURL, store.PoolOptions{MaxOpenConns: cfg.DBMaxOpenConns, MaxIdleConns: cfg.DBMaxIdleConns})
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, db.Close)
		if err := db.Migrate(); err != nil {
			b.Close()
			return nil, err
		}
		b.Store = postgres.New(db.Client)
	case "dynamodb":
		awsCfg, err := b.AWS(ctx)
		if err != nil {
			return nil, err
		}
		ds := dynamo.New(dynamodb.NewFromConfig(awsCfg), dynamo.TablesWithPrefix(cfg.DynamoTablePrefix))
		if cfg.DynamoCreateTables {
			if err := ds.EnsureTables(ctx); err != nil {
				return nil, err
			}
		}
		b.Store = ds
	default:
		log.Warn().Msg("using in-memory store, data is lost on restart")
		b.Store = memory.New()
	}

	if cfg.QueueBackend == "redis" {
		b.Redis = store.NewRedis(cfg.RedisAddr)
		b.closers = append(b.closers, b.Redis.Close)
		if !b.Redis.Healthy(ctx) {
			log.Warn().Str("addr", cfg.RedisAddr).Msg("redis not reachable yet")
		}
		b.Queue = queue.NewRedisQueue(b.Redis.Client, "")
		b.Locks = b.Redis
	} else {
		b.Queue = queue.NewInMemory(256)
		b.Locks = store.NewLocalLocker()
	}
	return b, nil
}

// AWS loads the shared AWS config once.
func (b *Backends) AWS(ctx context.Context) (aws.Config, error) {
	if b.aws != nil {
		return *b.aws, nil
	}
	cfg, err := store.LoadAWS(ctx, store.AWSOptions{Region: b.cfg.AWSRegion, Endpoint: b.cfg.AWSEndpointURL})
	if err != nil {
		return aws.Config{}, err
	}
	b.aws = &cfg
	return cfg, nil
}

// Faces builds the configured face recognizer.
func (b *Backends) Faces(ctx context.Context) (face.Recognizer, error) {
	switch b.cfg.FaceBackend {
	case "rekognition":
		awsCfg, err := b.AWS(ctx)
		if err != nil {
			return nil, err
		}
		r := face.NewRekognition(rekognition.NewFromConfig(awsCfg), b.cfg.RekognitionCollection)
		if err := r.EnsureCollection(ctx); err != nil {
			return nil, err
		}
		return r, nil
	case "service":
		s := face.NewService(b.cfg.FaceServiceURL)
		if err := s.Health(ctx); err != nil {
			b.log.Warn().Err(err).Str("url", b.cfg.FaceServiceURL).Msg("face service not available yet")
		}
		return s, nil
	default:
		b.log.Warn().Msg("using local face matcher, not suitable for production")
		return face.NewLocal(), nil
	}
}

// Images builds the configured face image store.
func (b *Backends) Images(ctx context.Context) (media.ImageStore, error) {
	switch b.cfg.ImageBackend {
	case "s3":
		awsCfg, err := b.AWS(ctx)
		if err != nil {
			return nil, err
		}
		client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
			// LocalStack serves buckets by path
			o.UsePathStyle = b.cfg.AWSEndpointURL != ""
		})
		st := media.NewS3(client, b.cfg.S3Bucket)
		if err := st.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		return st, nil
	case "cloudinary":
		return media.NewCloudinary(b.cfg.CloudinaryCloudName, b.cfg.CloudinaryAPIKey, b.cfg.CloudinaryAPISecret, b.cfg.CloudinaryFolder), nil
	default:
		return media.Discard{}, nil
	}
}

// Mailer builds the configured mailer.
func (b *Backends) Mailer(ctx context.Context) (mail.Mailer, error) {
	if b.cfg.MailBackend != "ses" {
		return mail.NewLog(b.log.With().Str("component", "mail").Logger()), nil
	}
	awsCfg, err := b.AWS(ctx)
	if err != nil {
		return nil, err
	}
	return mail.NewSES(ses.NewFromConfig(awsCfg), b.cfg.MailFrom), nil
}

// Close releases connections in reverse order of opening.
func (b *Backends) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i](); err != nil {
			b.log.Warn().Err(err).Msg("close backend")
		}
	}
	b.closers = nil
}

// String names the selected backends.
func (b *Backends) String() string {
	return fmt.Sprintf("store=%s queue=%s face=%s images=%s mail=%s",
		b.cfg.StoreBackend, b.cfg.QueueBackend, b.cfg.FaceBackend, b.cfg.ImageBackend, b.cfg.MailBackend)
}
