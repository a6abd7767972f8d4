package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/sakif/game-gateway/internal/apperror"
	"github.com/sakif/game-gateway/internal/events"
	"github.com/sakif/game-gateway/internal/model"
	"github.com/sakif/game-gateway/internal/repository"
)

const minPasswordLength = 6

// emailPattern accepts local@domain.tld with no whitespace.
var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Vocabulary is the set of valid category labels.
type Vocabulary interface {
	Contains(label string) bool
	All() []string
	Len() int
}

// PasswordHasher hashes and verifies credentials. *auth.PasswordService
// implements it.
type PasswordHasher interface {
	Hash(plaintext string) (hash, salt string, err error)
	Verify(hash, salt, plaintext string) error
}

// RatingPublisher announces stored ratings. *events.Bus implements it.
type RatingPublisher interface {
	PublishRating(ctx context.Context, ev events.RatingSubmitted) error
}

// RegisterInput is a registration request. Categories stays loosely typed
// so a non-string entry can be reported instead of failing to decode.
type RegisterInput struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
	Categories      []any  `json:"categories"`
}

// RatingResult is returned by SubmitRating.
type RatingResult struct {
	Created bool                `json:"created"`
	Rating  model.Rating        `json:"rating"`
	Profile model.PublicProfile `json:"profile"`
}

// AccountService implements registration, login and rating submission.
type AccountService struct {
	accounts  repository.AccountRepository
	vocab     Vocabulary
	passwords PasswordHasher
	publisher RatingPublisher // optional
	logger    *slog.Logger
}

func NewAccountService(
	accounts repository.AccountRepository,
	vocab Vocabulary,
	passwords PasswordHasher,
	publisher RatingPublisher,
	logger *slog.Logger,
) *AccountService {
	return &AccountService{
		accounts:  accounts,
		vocab:     vocab,
		passwords: passwords,
		publisher: publisher,
		logger:    logger,
	}
}

// Register validates in, stores a new account and returns its profile.
//
// Every violation is collected before returning so a form can show them
// all at once. Category labels are only checked against the vocabulary
// when one was loaded.
func (s *AccountService) Register(ctx context.Context, in RegisterInput) (*model.PublicProfile, error) {
	name := strings.TrimSpace(in.Name)
	email := strings.TrimSpace(in.Email)

	categories, violations := s.checkCategories(in.Categories)
	violations = append(checkCredentials(name, email, in.Password, in.ConfirmPassword), violations...)
	if len(violations) > 0 {
		return nil, apperror.Invalid(violations...)
	}

	if _, err := s.accounts.FindByEmail(ctx, email); err == nil {
		return nil, apperror.Conflict("account", email)
	} else if !errors.Is(err, apperror.ErrNotFound) {
		return nil, fmt.Errorf("service/accounts: register: %w", err)
	}

	hash, salt, err := s.passwords.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("service/accounts: hashing password: %w", err)
	}

	account, err := s.accounts.Create(ctx, model.NewAccount{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		PasswordSalt: salt,
		Categories:   categories,
	})
	if err != nil {
		return nil, fmt.Errorf("service/accounts: register: %w", err)
	}

	s.logger.Info("account registered",
		slog.Int("accountID", account.ID),
		slog.Int("categories", len(categories)),
	)

	profile := account.PublicProfile()
	return &profile, nil
}

func checkCredentials(name, email, password, confirm string) []string {
	var violations []string
	if name == "" {
		violations = append(violations, "name is required")
	}
	switch {
	case email == "":
		violations = append(violations, "email is required")
	case !emailPattern.MatchString(email):
		violations = append(violations, "email is not a valid address")
	}
	if len(password) < minPasswordLength {
		violations = append(violations, "password must be at least "+strconv.Itoa(minPasswordLength)+" characters")
	}
	switch {
	case confirm == "":
		violations = append(violations, "confirmPassword is required")
	case confirm != password:
		violations = append(violations, "password and confirmPassword do not match")
	}
	return violations
}

// checkCategories returns the string labels in raw along with any
// violations found in them.
func (s *AccountService) checkCategories(raw []any) ([]string, []string) {
	if len(raw) == 0 {
		return nil, []string{"categories must contain at least one category"}
	}

	var (
		labels     = make([]string, 0, len(raw))
		unknown    []string
		violations []string
		nonString  bool
	)
	for _, item := range raw {
		label, ok := item.(string)
		if !ok {
			nonString = true
			continue
		}
		labels = append(labels, label)
		if s.vocab != nil && s.vocab.Len() > 0 && !s.vocab.Contains(label) {
			unknown = append(unknown, label)
		}
	}

	if nonString {
		violations = append(violations, "every category must be a string")
	}
	if len(unknown) > 0 {
		violations = append(violations, "unknown categories: "+strings.Join(unknown, ", "))
	}
	return labels, violations
}

// Login verifies credentials and returns the account's profile. An
// unknown email and a wrong password produce the same error.
func (s *AccountService) Login(ctx context.Context, email, password string) (*model.PublicProfile, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, apperror.ValidationFailed("email", "email and password are required")
	}

	account, err := s.accounts.FindByEmail(ctx, email)
	if errors.Is(err, apperror.ErrNotFound) {
		return nil, apperror.Unauthorized("invalid credentials")
	}
	if err != nil {
		return nil, fmt.Errorf("service/accounts: login: %w", err)
	}

	if err := s.passwords.Verify(account.PasswordHash, account.PasswordSalt, password); err != nil {
		s.logger.Info("login rejected", slog.Int("accountID", account.ID))
		return nil, apperror.Unauthorized("invalid credentials")
	}

	profile := account.PublicProfile()
	return &profile, nil
}

// SubmitRating upserts a rating and returns the refreshed profile.
// Created reports whether the account had no rating for the game before
// this call. The stored rating is published for background forwarding;
// a publish failure is logged and does not fail the call.
func (s *AccountService) SubmitRating(ctx context.Context, accountID int, in model.RatingInput) (*RatingResult, error) {
	before, err := s.accounts.FindByID(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("service/accounts: rating for %d: %w", accountID, err)
	}

	rating, err := s.accounts.UpsertRating(ctx, accountID, in)
	if err != nil {
		return nil, fmt.Errorf("service/accounts: rating for %d: %w", accountID, err)
	}
	created := before.RatingIndex(rating.GameID) < 0

	after, err := s.accounts.FindByID(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("service/accounts: rating for %d: %w", accountID, err)
	}

	s.publish(ctx, accountID, *rating, created)

	return &RatingResult{
		Created: created,
		Rating:  *rating,
		Profile: after.PublicProfile(),
	}, nil
}

func (s *AccountService) publish(ctx context.Context, accountID int, r model.Rating, created bool) {
	if s.publisher == nil {
		return
	}
	err := s.publisher.PublishRating(ctx, events.RatingSubmitted{
		AccountID: accountID,
		GameID:    r.GameID,
		Score:     r.Score,
		Created:   created,
	})
	if err != nil {
		s.logger.Warn("rating event not published",
			slog.Int("accountID", accountID),
			slog.Int("gameID", r.GameID),
			slog.String("error", err.Error()),
		)
	}
}

func (s *AccountService) List(ctx context.Context) []model.PublicProfile {
	accounts := s.accounts.FindAll(ctx)
	profiles := make([]model.PublicProfile, 0, len(accounts))
	for i := range accounts {
		profiles = append(profiles, accounts[i].PublicProfile())
	}
	return profiles
}

func (s *AccountService) Get(ctx context.Context, accountID int) (*model.PublicProfile, error) {
	account, err := s.accounts.FindByID(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("service/accounts: get %d: %w", accountID, err)
	}
	profile := account.PublicProfile()
	return &profile, nil
}

// Categories lists the vocabulary in sorted order. It is empty when no
// dataset was loaded.
func (s *AccountService) Categories() []string {
	if s.vocab == nil {
		return []string{}
	}
	return s.vocab.All()
}
