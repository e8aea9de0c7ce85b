package catalog

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/ramonehamilton/deckvault/internal/storage/models"
)

type priceProvider struct {
	Retail   map[string]map[string]float64 `json:"retail"`
	Currency string                        `json:"currency"`
}

type priceFormats struct {
	Paper map[string]priceProvider `json:"paper"`
}

// ParsePrices streams an AllPrices document and keeps, for each printing,
// provider and finish, the latest dated paper retail price.
func ParsePrices(r io.Reader) ([]*models.Price, error) {
	var prices []*models.Price
	err := decodeDataObject(r, func(dec *json.Decoder, uuid string) error {
		var formats priceFormats
		if err := dec.Decode(&formats); err != nil {
			return fmt.Errorf("failed to decode prices: %w", err)
		}
		providers := make([]string, 0, len(formats.Paper))
		for name := range formats.Paper {
			providers = append(providers, name)
		}
		sort.Strings(providers)

		for _, provider := range providers {
			entry := formats.Paper[provider]
			currency := entry.Currency
			if currency == "" {
				currency = "USD"
			}
			finishes := make([]string, 0, len(entry.Retail))
			for finish := range entry.Retail {
				finishes = append(finishes, finish)
			}
			sort.Strings(finishes)

			for _, finish := range finishes {
				date, value, ok := latest(entry.Retail[finish])
				if !ok {
					continue
				}
				updated, err := time.Parse("2006-01-02", date)
				if err != nil {
					updated = time.Time{}
				}
				prices = append(prices, &models.Price{
					PrintingUUID: uuid,
					Provider:     provider,
					PriceType:    finish,
					Price:        value,
					Currency:     currency,
					UpdatedAt:    updated,
				})
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return prices, nil
}

// latest picks the value at the greatest ISO date key.
func latest(series map[string]float64) (string, float64, bool) {
	var bestDate string
	var bestValue float64
	for date, value := range series {
		if date > bestDate {
			bestDate, bestValue = date, value
		}
	}
	return bestDate, bestValue, bestDate != ""
}
