package store

import (
	"context"
	"errors"

	"github.com/dukaanhq/dukaan-core/internal/model"
)

// Stores bundles the typed collections over one database.
type Stores struct {
	DB        *DB
	Products  *Collection[model.Product]
	Customers *Collection[model.Customer]
	Sales     *Collection[model.Sale]
	Payments  *Collection[model.Payment]
	JobCards  *Collection[model.JobCard]
	Favorites *Collection[model.Favorite]
	Reminders *Collection[model.Reminder]

	profile *Collection[model.StoreProfile]
}

// NewStores builds the typed collections. The schema must already be
// initialized.
func NewStores(db *DB) *Stores {
	return &Stores{
		DB:        db,
		Products:  NewCollection[model.Product](db, Products),
		Customers: NewCollection[model.Customer](db, Customers),
		Sales:     NewCollection[model.Sale](db, Sales),
		Payments:  NewCollection[model.Payment](db, Payments),
		JobCards:  NewCollection[model.JobCard](db, JobCards),
		Favorites: NewOrderedCollection[model.Favorite](db, Favorites),
		Reminders: NewCollection[model.Reminder](db, Reminders),
		profile:   NewCollection[model.StoreProfile](db, StoreProfile),
	}
}

// Profile returns the singleton store profile, creating the default row on
// first access so it persists across restarts like any other record.
func (s *Stores) Profile(ctx context.Context) (model.StoreProfile, error) {
	profile, err := s.profile.Get(ctx, model.ProfileID)
	if errors.Is(err, ErrNotFound) {
		profile = model.DefaultProfile()
		if err := s.profile.Add(ctx, profile); err != nil {
			return model.StoreProfile{}, err
		}
		return profile, nil
	}
	return profile, err
}

// UpdateProfile merges fields into the singleton profile row.
func (s *Stores) UpdateProfile(ctx context.Context, partial map[string]any) (model.StoreProfile, error) {
	if _, err := s.Profile(ctx); err != nil {
		return model.StoreProfile{}, err
	}
	return s.profile.Update(ctx, model.ProfileID, partial)
}
