package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ramonehamilton/deckvault/internal/auth"
	"github.com/ramonehamilton/deckvault/internal/storage"
	"github.com/ramonehamilton/deckvault/internal/storage/storagetest"
)

func newTestServices(t *testing.T) (*Services, *storagetest.Catalog) {
	t.Helper()
	db := storage.NewTestDB(t)
	cat := storagetest.SeedCatalog(t, db.Conn())

	issuer, err := auth.NewIssuer("test-secret", time.Hour, 24*time.Hour)
	require.NoError(t, err)

	return &Services{DB: db, Tokens: issuer}, cat
}
