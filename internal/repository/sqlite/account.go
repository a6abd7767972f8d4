package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/sakif/game-gateway/internal/model"
	"github.com/sakif/game-gateway/internal/repository"
)

// compile-time check that *DB implements repository.Snapshotter
var _ repository.Snapshotter = (*DB)(nil)

// Load reads every account and its ratings, in id order.
func (db *DB) Load(ctx context.Context) ([]model.Account, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, name, email, password_hash, password_salt, categories, created_at
		 FROM accounts ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing accounts: %w", err)
	}
	defer rows.Close()

	accounts := []model.Account{}
	index := make(map[int]int)
	for rows.Next() {
		var (
			a          model.Account
			categories string
		)
		if err := rows.Scan(&a.ID, &a.Name, &a.Email, &a.PasswordHash, &a.PasswordSalt, &categories, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("sqlite: scanning account: %w", err)
		}
		if err := json.Unmarshal([]byte(categories), &a.Categories); err != nil {
			return nil, fmt.Errorf("sqlite: decoding categories of account %d: %w", a.ID, err)
		}
		a.Ratings = []model.Rating{}
		index[a.ID] = len(accounts)
		accounts = append(accounts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating accounts: %w", err)
	}

	ratingRows, err := db.conn.QueryContext(ctx,
		`SELECT account_id, game_id, title, image, score, rated_at
		 FROM ratings ORDER BY account_id, position`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing ratings: %w", err)
	}
	defer ratingRows.Close()

	for ratingRows.Next() {
		var (
			accountID int
			r         model.Rating
			image     sql.NullString
			ratedAt   time.Time
		)
		if err := ratingRows.Scan(&accountID, &r.GameID, &r.Title, &image, &r.Score, &ratedAt); err != nil {
			return nil, fmt.Errorf("sqlite: scanning rating: %w", err)
		}
		if image.Valid {
			img := image.String
			r.Image = &img
		}
		r.RatedAt = ratedAt
		i, ok := index[accountID]
		if !ok {
			continue
		}
		accounts[i].Ratings = append(accounts[i].Ratings, r)
	}
	if err := ratingRows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating ratings: %w", err)
	}

	return accounts, nil
}

// Save replaces both tables with the given account set in one transaction.
func (db *DB) Save(ctx context.Context, accounts []model.Account) (err error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: beginning transaction: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM ratings`); err != nil {
		return fmt.Errorf("sqlite: clearing ratings: %w", err)
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM accounts`); err != nil {
		return fmt.Errorf("sqlite: clearing accounts: %w", err)
	}

	insertAccount, err := tx.PrepareContext(ctx,
		`INSERT INTO accounts (id, name, email, password_hash, password_salt, categories, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("sqlite: preparing account insert: %w", err)
	}
	defer insertAccount.Close()

	insertRating, err := tx.PrepareContext(ctx,
		`INSERT INTO ratings (account_id, game_id, title, image, score, rated_at, position)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("sqlite: preparing rating insert: %w", err)
	}
	defer insertRating.Close()

	for _, a := range accounts {
		categories, err := json.Marshal(a.Categories)
		if err != nil {
			return fmt.Errorf("sqlite: encoding categories of account %d: %w", a.ID, err)
		}
		if a.Categories == nil {
			categories = []byte("[]")
		}
		if _, err = insertAccount.ExecContext(ctx,
			a.ID, a.Name, a.Email, a.PasswordHash, a.PasswordSalt, string(categories), a.CreatedAt,
		); err != nil {
			return fmt.Errorf("sqlite: inserting account %d: %w", a.ID, err)
		}

		for pos, r := range a.Ratings {
			var image sql.NullString
			if r.Image != nil {
				image = sql.NullString{String: *r.Image, Valid: true}
			}
			if _, err = insertRating.ExecContext(ctx,
				a.ID, r.GameID, r.Title, image, r.Score, r.RatedAt, pos,
			); err != nil {
				return fmt.Errorf("sqlite: inserting rating %d/%d: %w", a.ID, r.GameID, err)
			}
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: committing snapshot: %w", err)
	}
	return nil
}
