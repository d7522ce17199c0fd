package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	_ "embed"

	"github.com/dukaanhq/dukaan-core/internal/model"
	"github.com/tidwall/gjson"
	"gopkg.in/yaml.v3"
)

//go:embed seed.yaml
var seedYAML []byte

// seedData is the parsed shape of seed.yaml.
type seedData struct {
	Profile   model.StoreProfile `yaml:"profile"`
	Products  []model.Product    `yaml:"products"`
	Customers []model.Customer   `yaml:"customers"`
}

// Bootstrap prepares a freshly opened store for use. It is one-shot, guarded
// by the primary collection already holding rows:
//
//  1. If products is non-empty, nothing happens.
//  2. Otherwise, if a legacy flat key-value export exists at legacyPath, its
//     records are migrated and the file is deleted afterwards. Legacy data
//     is preferred over seed defaults.
//  3. Otherwise the embedded seed dataset is loaded.
//
// Migrated and seeded rows bypass the sync queue: they predate any remote
// backend, and replaying an entire bootstrap would flood the outbox.
func (s *Stores) Bootstrap(ctx context.Context, legacyPath string) error {
	count, err := s.DB.Count(ctx, Products)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	if legacyPath != "" {
		if _, err := os.Stat(legacyPath); err == nil {
			migrated, err := s.migrateLegacy(ctx, legacyPath)
			if err != nil {
				return fmt.Errorf("legacy migration failed: %w", err)
			}
			s.DB.logger.Printf("Migrated %d records from legacy store %s", migrated, legacyPath)

			// One-time migration: remove the old location only after success.
			if err := os.Remove(legacyPath); err != nil {
				s.DB.logger.Printf("Warning: failed to remove legacy store %s: %v", legacyPath, err)
			}
			return nil
		}
	}

	return s.seedDefaults(ctx)
}

// migrateLegacy imports records from the legacy flat key-value store: a JSON
// file mapping collection names to arrays of records.
func (s *Stores) migrateLegacy(ctx context.Context, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("failed to read legacy store: %w", err)
	}

	var legacy map[string][]json.RawMessage
	if err := json.Unmarshal(data, &legacy); err != nil {
		return 0, fmt.Errorf("failed to parse legacy store: %w", err)
	}

	known := make(map[string]bool, len(collections))
	for _, name := range collections {
		known[name] = true
	}

	migrated := 0
	for collection, docs := range legacy {
		if !known[collection] {
			s.DB.logger.Printf("Warning: skipping unknown legacy collection %q", collection)
			continue
		}
		for _, doc := range docs {
			id := gjson.GetBytes(doc, "id").String()
			if id == "" {
				s.DB.logger.Printf("Warning: skipping legacy %s record without id", collection)
				continue
			}
			position := int(gjson.GetBytes(doc, "position").Int())
			if err := s.DB.insertRaw(ctx, collection, id, doc, position); err != nil {
				return migrated, err
			}
			migrated++
		}
	}
	return migrated, nil
}

// seedDefaults loads the embedded example dataset.
func (s *Stores) seedDefaults(ctx context.Context) error {
	var seed seedData
	if err := yaml.Unmarshal(seedYAML, &seed); err != nil {
		return fmt.Errorf("failed to parse seed dataset: %w", err)
	}

	put := func(collection, id string, v any) error {
		doc, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("failed to marshal seed record %s/%s: %w", collection, id, err)
		}
		return s.DB.insertRaw(ctx, collection, id, doc, 0)
	}

	for _, p := range seed.Products {
		if err := put(Products, p.ID, p); err != nil {
			return err
		}
	}
	for _, c := range seed.Customers {
		if err := put(Customers, c.ID, c); err != nil {
			return err
		}
	}
	if seed.Profile.ID != "" {
		if err := put(StoreProfile, seed.Profile.ID, seed.Profile); err != nil {
			return err
		}
	}

	s.DB.logger.Printf("Seeded defaults: %d products, %d customers", len(seed.Products), len(seed.Customers))
	return nil
}
