// Package repository declares the storage contracts used by the services.
//
// AccountRepository is what the services depend on. Snapshotter is the
// narrower contract a durable backend implements: the account store keeps
// its working set in memory and hands the full set to a Snapshotter after
// every mutation, so swapping JSON files for SQLite touches nothing above
// this package.
package repository

import (
	"context"

	"github.com/sakif/game-gateway/internal/model"
)

// AccountRepository is the account store seen by the services.
// Lookups that miss return an apperror.ErrNotFound error.
type AccountRepository interface {
	FindAll(ctx context.Context) []model.Account
	FindByID(ctx context.Context, id int) (*model.Account, error)
	FindByEmail(ctx context.Context, email string) (*model.Account, error)
	Create(ctx context.Context, fields model.NewAccount) (*model.Account, error)
	UpsertRating(ctx context.Context, accountID int, in model.RatingInput) (*model.Rating, error)
}

// Snapshotter loads and saves the complete account set.
type Snapshotter interface {
	Load(ctx context.Context) ([]model.Account, error)
	Save(ctx context.Context, accounts []model.Account) error
}
