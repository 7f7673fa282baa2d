package config

import (
	"context"
	"fmt"
	"time"

	"github.com/anonto42/devforum/backend/internal/auth"
	"github.com/anonto42/devforum/backend/internal/models"
	"github.com/anonto42/devforum/backend/internal/realtime"
	"github.com/anonto42/devforum/backend/internal/repositories"
	"github.com/anonto42/devforum/backend/pkg/firebase"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// DB holds the database connections
type DB struct {
	Postgres *gorm.DB
	Mongo    *mongo.Client
	Redis    *redis.Client
}

// Store is the opened backend: its repositories, the change hub they publish to,
// and whatever connections must be closed on shutdown.
type Store struct {
	Posts       repositories.PostRepository
	Comments    repositories.CommentRepository
	Users       repositories.UserRepository
	Hub         *realtime.Hub
	Bridge      *realtime.RedisBridge
	Firebase    *firebase.App
	Credentials auth.CredentialStore

	db     *DB
	logger *zap.Logger
}

// OpenStore connects the backend selected by cfg.StoreBackend.
func OpenStore(ctx context.Context, cfg *Config, logger *zap.Logger) (*Store, error) {
	hub := realtime.NewHub(logger)
	s := &Store{Hub: hub, db: &DB{}, logger: logger}

	switch cfg.StoreBackend {
	case BackendFirestore:
		app, err := firebase.InitFirebase(ctx, cfg.FirebaseCredentialsPath, logger)
		if err != nil {
			return nil, err
		}
		s.Firebase = app
		s.Posts = repositories.NewFirestorePostRepository(app.Firestore)
		s.Comments = repositories.NewFirestoreCommentRepository(app.Firestore)
		s.Users = repositories.NewFirestoreUserRepository(app.Firestore)

	case BackendMongo:
		pg, err := initPostgres(cfg.PostgresConnStr, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
		}
		s.db.Postgres = pg
		if err := AutoMigrate(pg); err != nil {
			s.Close()
			return nil, err
		}
		mg, err := initMongo(ctx, cfg.MongoURI, logger)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
		}
		s.db.Mongo = mg
		posts := repositories.NewMongoPostRepository(mg.Database(cfg.MongoDatabase), hub)
		if err := posts.EnsureIndexes(ctx); err != nil {
			logger.Sugar().Warnf("failed to create mongo indexes: %s", err.Error())
		}
		s.Posts = posts
		s.Comments = repositories.NewPostgresCommentRepository(pg, hub)
		s.Users = repositories.NewPostgresUserRepository(pg, hub)
		s.Credentials = auth.NewGormCredentialStore(pg)

	case BackendMemory:
		mem := repositories.NewMemoryStore(hub)
		s.Posts, s.Comments, s.Users = mem.Posts(), mem.Comments(), mem.Users()
		s.Credentials = auth.NewMemoryCredentialStore()
		logger.Warn("Using the in-memory store; data is lost on restart")

	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}

	if cfg.RedisAddr != "" && cfg.StoreBackend != BackendFirestore {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		pong, err := rdb.Ping(ctx).Result()
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("failed to ping redis: %w", err)
		}
		logger.Sugar().Infof("Successfully connected to Redis: %s", pong)
		s.db.Redis = rdb
		s.Bridge = realtime.NewRedisBridge(rdb, hub, realtime.DefaultBridgeChannel, logger)
	}
	return s, nil
}

// NewAuthenticator picks Firebase Auth for the firestore backend and local JWT
// accounts otherwise.
func NewAuthenticator(ctx context.Context, cfg *Config, s *Store) (auth.Authenticator, error) {
	if s.Firebase != nil {
		return auth.NewFirebaseAuthenticator(ctx, s.Firebase.AuthClient, cfg.FirebaseAPIKey)
	}
	return auth.NewLocalAuthenticator(s.Credentials, cfg.JWTSecret), nil
}

// AutoMigrate creates the PostgreSQL tables
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&models.User{}, &models.Comment{}, &auth.Credential{}); err != nil {
		return fmt.Errorf("failed to auto migrate models: %w", err)
	}
	return nil
}

// initPostgres initializes the PostgreSQL database connection using GORM
func initPostgres(connStr string, logger *zap.Logger) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(connStr), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if err = sqlDB.Ping(); err != nil {
		return nil, err
	}

	logger.Info("Successfully connected to PostgreSQL")
	return db, nil
}

// initMongo initializes the MongoDB connection
func initMongo(ctx context.Context, uri string, logger *zap.Logger) (*mongo.Client, error) {
	clientOptions := options.Client().ApplyURI(uri)
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, err
	}

	if err = client.Ping(ctx, nil); err != nil {
		return nil, err
	}

	logger.Info("Successfully connected to MongoDB")
	return client, nil
}

// Close closes every connection the store opened
func (s *Store) Close() {
	if s.Firebase != nil {
		if err := s.Firebase.Close(); err != nil {
			s.logger.Sugar().Errorf("failed to close firestore client: %s", err.Error())
		}
	}

	if s.db.Postgres != nil {
		sqlDB, err := s.db.Postgres.DB()
		if err != nil {
			s.logger.Sugar().Errorf("failed to get SQL DB from GORM: %s", err.Error())
		} else if err := sqlDB.Close(); err != nil {
			s.logger.Sugar().Errorf("failed to close PostgreSQL connection: %s", err.Error())
		} else {
			s.logger.Info("PostgreSQL connection closed")
		}
	}

	if s.db.Mongo != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.db.Mongo.Disconnect(ctx); err != nil {
			s.logger.Sugar().Errorf("failed to close MongoDB connection: %s", err.Error())
		} else {
			s.logger.Info("MongoDB connection closed")
		}
	}

	if s.db.Redis != nil {
		if err := s.db.Redis.Close(); err != nil {
			s.logger.Sugar().Errorf("failed to close redis connection: %s", err.Error())
		}
	}
}
