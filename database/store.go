package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"form-analytics-server/config"
	"form-analytics-server/models"
)

var ErrFormNotFound = errors.New("form not found")

// Store is the persistence contract shared by every backend.
//
// Identifiers are opaque strings; each backend decides their shape. An
// identifier that the backend cannot parse is reported as not found.
type Store interface {
	CreateForm(ctx context.Context, input models.FormInput) (*models.Form, error)
	GetForm(ctx context.Context, id string) (*models.Form, error)
	// ListForms returns forms in creation order.
	ListForms(ctx context.Context) ([]models.Form, error)
	UpdateForm(ctx context.Context, id string, patch models.FormPatch) (*models.Form, error)
	// DeleteForm removes the form and all of its responses.
	DeleteForm(ctx context.Context, id string) error

	// CreateResponse fails with ErrFormNotFound when the form is absent.
	CreateResponse(ctx context.Context, formID string, values map[string]any, ipAddress string) (*models.Response, error)
	// ListResponses does not check that the form exists; an unknown form yields an empty list.
	ListResponses(ctx context.Context, formID string, query models.ResponseQuery) ([]models.Response, error)
	// ListRecentResponses returns the newest responses across the given forms.
	ListRecentResponses(ctx context.Context, formIDs []string, limit int) ([]models.Response, error)
	// CountResponses counts one form's responses, or every stored response when formID is empty.
	CountResponses(ctx context.Context, formID string) (int64, error)
	// DeleteOrphanResponses removes responses whose form no longer exists.
	DeleteOrphanResponses(ctx context.Context) (int64, error)

	Ping(ctx context.Context) error
	Close() error
	Backend() string
}

// Open connects the backend named in cfg. It is called once at startup.
func Open(ctx context.Context, cfg config.StorageConfig, log *logrus.Entry) (Store, error) {
	switch cfg.Backend {
	case config.BackendPostgres:
		return OpenPostgres(cfg.DatabaseURL, log)
	case config.BackendSQLite:
		return OpenSQLite(cfg.SQLitePath, log)
	case config.BackendMongoDB:
		return OpenMongo(ctx, cfg.MongoURI, cfg.MongoDatabase, log)
	case config.BackendSurrealDB:
		return OpenSurreal(ctx, SurrealOptions{
			URL:       cfg.SurrealURL,
			Namespace: cfg.SurrealNamespace,
			Database:  cfg.SurrealDatabase,
			Username:  cfg.SurrealUser,
			Password:  cfg.SurrealPassword,
		}, log)
	default:
		return nil, fmt.Errorf("unsupported storage backend %q", cfg.Backend)
	}
}
