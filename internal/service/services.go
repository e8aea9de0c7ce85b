// Package service holds the business operations behind the REST API. Every
// operation is scoped to the calling user; repositories are built per call so
// the same code runs on the pool or inside a transaction.
package service

import (
	"go.uber.org/zap"

	"github.com/ramonehamilton/deckvault/internal/auth"
	"github.com/ramonehamilton/deckvault/internal/events"
	"github.com/ramonehamilton/deckvault/internal/storage"
	"github.com/ramonehamilton/deckvault/internal/storage/repository"
)

// Services contains the dependencies shared by every facade.
type Services struct {
	// Embedded database
	DB *storage.DB

	// Token signing; may be nil for services that never authenticate
	Tokens *auth.Issuer

	// Event sink for catalog and backup notifications
	Publisher events.Publisher

	Logger *zap.Logger
}

func (s *Services) conn() repository.DBTX {
	return s.DB.Conn()
}

func (s *Services) logger() *zap.Logger {
	if s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger
}

func (s *Services) publisher() events.Publisher {
	if s.Publisher == nil {
		return events.NopPublisher{}
	}
	return s.Publisher
}
