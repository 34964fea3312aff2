// Package store opens the configured persistence backend and hands out its repositories.
package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/sirupsen/logrus"

	"cms-backend/internal/config"
	"cms-backend/internal/repository"
	"cms-backend/internal/repository/dynamo"
	"cms-backend/internal/repository/sqlite"
)

// Repositories is an opened backend. Close releases it.
type Repositories struct {
	Users    repository.UserRepository
	Posts    repository.PostRepository
	Comments repository.CommentRepository

	closer func() error
}

func (r *Repositories) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer()
}

// Init prepares schemas or tables for every repository.
func (r *Repositories) Init(ctx context.Context) error {
	if err := r.Users.Init(ctx); err != nil {
		return fmt.Errorf("init user repository: %w", err)
	}
	if err := r.Posts.Init(ctx); err != nil {
		return fmt.Errorf("init post repository: %w", err)
	}
	if err := r.Comments.Init(ctx); err != nil {
		return fmt.Errorf("init comment repository: %w", err)
	}
	return nil
}

// Open builds the repositories for cfg.Store.Driver.
func Open(ctx context.Context, cfg config.Config, logger *logrus.Logger) (*Repositories, error) {
	switch cfg.Store.Driver {
	case config.DriverSQLite:
		db, err := sqlite.Open(cfg.Database.Path)
		if err != nil {
			return nil, err
		}
		logger.Infof("using sqlite database %s", cfg.Database.Path)
		return fromSQLite(db), nil

	case config.DriverDynamoDB:
		awsCfg, err := LoadAWSConfig(ctx, cfg, cfg.DynamoDB.Region)
		if err != nil {
			return nil, err
		}
		client := dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
			if cfg.DynamoDB.Endpoint != "" {
				o.BaseEndpoint = aws.String(cfg.DynamoDB.Endpoint)
			}
		})
		s := dynamo.New(client, dynamo.Tables{
			Users:     cfg.DynamoDB.UsersTable,
			Usernames: cfg.DynamoDB.UsernamesTable,
			Posts:     cfg.DynamoDB.PostsTable,
			Comments:  cfg.DynamoDB.CommentsTable,
		}, cfg.DynamoDB.CreateTables)
		logger.WithFields(logrus.Fields{
			"region":   cfg.DynamoDB.Region,
			"endpoint": cfg.DynamoDB.Endpoint,
		}).Info("using dynamodb store")
		return &Repositories{Users: s.Users(), Posts: s.Posts(), Comments: s.Comments()}, nil
	}
	return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
}

func fromSQLite(db *sql.DB) *Repositories {
	return &Repositories{
		Users:    sqlite.NewUserRepository(db),
		Posts:    sqlite.NewPostRepository(db),
		Comments: sqlite.NewCommentRepository(db),
		closer:   db.Close,
	}
}

// LoadAWSConfig loads the shared AWS configuration for region, honouring aws.profile.
func LoadAWSConfig(ctx context.Context, cfg config.Config, region string) (aws.Config, error) {
	loadOpts := []func(*awscfg.LoadOptions) error{
		awscfg.WithRegion(region),
	}
	if cfg.AWS.Profile != "" {
		loadOpts = append(loadOpts, awscfg.WithSharedConfigProfile(cfg.AWS.Profile))
	}

	awsCfg, err := awscfg.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("load aws config: %w", err)
	}
	return awsCfg, nil
}
