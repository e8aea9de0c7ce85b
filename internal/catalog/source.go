package catalog

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ramonehamilton/deckvault/internal/storage/models"
)

// Source produces a parsed catalog and its prices.
type Source interface {
	Fetch(ctx context.Context) (*Catalog, []*models.Price, error)
}

// RemoteSource downloads MTGJSON files into a data directory and parses them.
type RemoteSource struct {
	client  *Client
	dataDir string
	logger  *zap.Logger
}

// NewRemoteSource creates a RemoteSource.
func NewRemoteSource(client *Client, dataDir string, logger *zap.Logger) *RemoteSource {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RemoteSource{client: client, dataDir: dataDir, logger: logger}
}

// Fetch downloads both files concurrently, then parses them concurrently.
func (s *RemoteSource) Fetch(ctx context.Context) (*Catalog, []*models.Price, error) {
	printingsPath := filepath.Join(s.dataDir, strings.TrimSuffix(AllPrintingsFile, ".gz"))
	pricesPath := filepath.Join(s.dataDir, strings.TrimSuffix(AllPricesTodayFile, ".gz"))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		_, err := s.client.DownloadFile(gctx, s.client.URL(AllPrintingsFile), printingsPath)
		return err
	})
	g.Go(func() error {
		_, err := s.client.DownloadFile(gctx, s.client.URL(AllPricesTodayFile), pricesPath)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, fmt.Errorf("failed to download catalog: %w", err)
	}

	return ParseFiles(ctx, printingsPath, pricesPath)
}

// FileSource reads already-downloaded files.
type FileSource struct {
	PrintingsPath string
	PricesPath    string
}

// Fetch parses the local files. An empty PricesPath means no prices.
func (s *FileSource) Fetch(ctx context.Context) (*Catalog, []*models.Price, error) {
	return ParseFiles(ctx, s.PrintingsPath, s.PricesPath)
}

// ParseFiles parses an AllPrintings file and an optional prices file.
func ParseFiles(ctx context.Context, printingsPath, pricesPath string) (*Catalog, []*models.Price, error) {
	var (
		cat    *Catalog
		prices []*models.Price
	)

	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		f, err := os.Open(printingsPath)
		if err != nil {
			return fmt.Errorf("failed to open printings file: %w", err)
		}
		defer func() { _ = f.Close() }()
		cat, err = ParseAllPrintings(f)
		if err != nil {
			return fmt.Errorf("failed to parse printings: %w", err)
		}
		return nil
	})
	if pricesPath != "" {
		g.Go(func() error {
			f, err := os.Open(pricesPath)
			if err != nil {
				return fmt.Errorf("failed to open prices file: %w", err)
			}
			defer func() { _ = f.Close() }()
			prices, err = ParsePrices(f)
			if err != nil {
				return fmt.Errorf("failed to parse prices: %w", err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return cat, prices, nil
}
