// Command seed creates a test user with one sample dream. Running it again
// leaves existing data alone.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/vedran77/dreamnest/internal/config"
	"github.com/vedran77/dreamnest/internal/database"
	"github.com/vedran77/dreamnest/internal/domain"
	"github.com/vedran77/dreamnest/internal/logging"
	postgresrepo "github.com/vedran77/dreamnest/internal/repository/postgres"
	"github.com/vedran77/dreamnest/internal/service"
	"github.com/vedran77/dreamnest/internal/session"
)

const (
	seedUsername = "testuser"
	seedEmail    = "test@example.com"
	seedPassword = "Test123!"
	seedDream    = "I had a wonderful dream about flying over a beautiful ocean at sunset..."
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	log := logging.New(cfg.LogLevel, cfg.LogFormat)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := database.Connect(cfg)
	if err != nil {
		log.WithError(err).Fatal("connecting to database")
	}
	defer pool.Close()

	db, err := database.OpenGORM(pool, log)
	if err != nil {
		log.WithError(err).Fatal("opening gorm")
	}
	if err := database.Migrate(db); err != nil {
		log.WithError(err).Fatal("migrating")
	}

	userRepo := postgresrepo.NewUserRepo(db)
	dreamRepo := postgresrepo.NewDreamRepo(db)

	tokens := service.NewTokenManager(cfg.JWTSecret, cfg.JWTTTL, session.NewMemoryStore())
	authService := service.NewAuthService(userRepo, tokens)
	dreamService := service.NewDreamService(dreamRepo, userRepo)

	user, err := userRepo.GetByUsername(ctx, seedUsername)
	if err != nil {
		log.WithError(err).Fatal("looking up test user")
	}
	if user == nil {
		resp, err := authService.Register(ctx, service.RegisterInput{
			Username: seedUsername,
			Email:    seedEmail,
			Password: seedPassword,
		})
		if err != nil {
			log.WithError(err).Fatal("creating test user")
		}
		user = resp.User
		log.WithField("user_id", user.ID).Info("Test user created")
	} else {
		log.WithField("user_id", user.ID).Info("Test user already exists")
	}

	dreams, err := dreamService.List(ctx, user.ID, user.ID)
	if err != nil {
		log.WithError(err).Fatal("listing dreams")
	}
	if len(dreams) > 0 {
		log.WithField("count", len(dreams)).Info("Test user already has dreams")
		return
	}

	var dream *domain.Dream
	if dream, err = dreamService.Create(ctx, user.ID, seedDream); err != nil {
		log.WithError(err).Fatal("creating test dream")
	}
	log.WithField("dream_id", dream.ID).Info("Test dream created")
}
