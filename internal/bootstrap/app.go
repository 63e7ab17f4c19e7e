package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/gin-gonic/gin"

	"partsync-backend/internal/enrich"
	"partsync-backend/internal/job"
	"partsync-backend/internal/llm"
	openai "partsync-backend/internal/llm/openai"
	"partsync-backend/internal/metadata"
	"partsync-backend/internal/parts"
	"partsync-backend/internal/pipeline"
	"partsync-backend/internal/remote"
	"partsync-backend/internal/shared/config"
	"partsync-backend/internal/shared/server"
	"partsync-backend/internal/shared/storage/db"
)

// App holds shared dependencies wired from config.
type App struct {
	Config   config.Config
	Classify *config.ClassifyWatcher
	Router   *gin.Engine
	DB       *sql.DB

	MetadataRepo metadata.Repo
	PartsRepo    parts.Repo
	JobsRepo     job.Repo

	Enricher *enrich.Service
	Remote   *remote.Client
	Pipeline *pipeline.Service
}

// Build prepares shared dependencies. The remote client is only constructed
// when its config is present; callers that never touch the remote system
// (migrations, prompt experiments) work without it.
func Build(cfg config.Config) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}
	ctx := context.Background()

	sqlDB, err := buildDB(ctx, cfg)
	if err != nil {
		return nil, err
	}

	app := &App{
		Config: cfg,
		DB:     sqlDB,
	}
	if err := buildServices(app); err != nil {
		return nil, err
	}

	app.Router = server.NewRouter(server.RouterDeps{
		Jobs:  app.JobsRepo,
		Cache: app.MetadataRepo,
	})

	return app, nil
}

// Close releases resources held by the app.
func (a *App) Close() error {
	if a.Classify != nil {
		_ = a.Classify.Close()
	}
	if a.DB != nil {
		return a.DB.Close()
	}
	return nil
}

func buildDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		if isDevLike(cfg.Env) {
			log.Printf("bootstrap: DATABASE_URL empty; using in-memory repositories")
			return nil, nil
		}
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	opts := db.OptionsFromEnv(db.DefaultRunOptions())
	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, opts)
	if err != nil {
		if isDevLike(cfg.Env) {
			log.Printf("bootstrap: database connect failed; using in-memory repositories: %v", err)
			return nil, nil
		}
		return nil, err
	}
	return sqlDB, nil
}

func buildServices(app *App) error {
	if app.DB != nil {
		app.MetadataRepo = &metadata.PGRepo{DB: app.DB}
		app.PartsRepo = &parts.PGRepo{DB: app.DB}
		app.JobsRepo = &job.PGRepo{DB: app.DB}
	} else {
		app.MetadataRepo = metadata.NewMemoryRepo()
		app.PartsRepo = parts.NewMemoryRepo()
		app.JobsRepo = job.NewMemoryRepo()
	}

	if path := strings.TrimSpace(app.Config.ClassifyConfigPath); path != "" {
		watcher, err := config.NewClassifyWatcher(path)
		if err != nil {
			if !isDevLike(app.Config.Env) {
				return fmt.Errorf("classify config: %w", err)
			}
			log.Printf("bootstrap: classify config unavailable, using defaults: %v", err)
		} else {
			app.Classify = watcher
		}
	}

	llmClient := llm.Client(llm.PlaceholderClient{})
	if app.Config.LLMProvider == "openai" {
		openaiClient, err := openai.NewClient(os.Getenv("OPENAI_API_KEY"), app.Config.LLMModel)
		if err != nil {
			return err
		}
		llmClient = openaiClient
	}
	app.Enricher = enrich.NewService(app.MetadataRepo, llmClient)

	if strings.TrimSpace(app.Config.RemoteBaseURL) != "" {
		client, err := remote.NewClient(app.Config.RemoteBaseURL, app.Config.RemoteUsername, app.Config.RemotePassword)
		if err != nil {
			return err
		}
		app.Remote = client
		app.Pipeline = pipeline.NewService(app.PartsRepo, app.MetadataRepo, app.Enricher, client, app.JobsRepo)
	}

	return nil
}

// RunConfig derives the pipeline run configuration from app config and the
// current classification settings.
func (a *App) RunConfig() pipeline.RunConfig {
	classify := config.DefaultClassifyConfig()
	if a.Classify != nil {
		classify = a.Classify.Current()
	}
	return pipeline.RunConfig{
		JobType:         a.Config.JobType,
		MarginPercent:   classify.MarginPercent,
		DefaultUnit:     classify.DefaultUnit,
		ContextHint:     classify.BrandHint,
		Categories:      classify.Categories,
		SelectConflicts: pipeline.SelectAllConflicts,
	}
}

func isDevLike(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "local":
		return true
	default:
		return false
	}
}
