package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"finanze/internal/core"
	"finanze/internal/store"
)

// ProfileService manages user profiles and their category lists.
type ProfileService struct {
	store store.Store
}

func NewProfileService(st store.Store) *ProfileService {
	return &ProfileService{store: st}
}

// EnsureProfile returns the existing profile or creates one seeded with the
// default categories. Calling it repeatedly is a no-op after the first.
func (s *ProfileService) EnsureProfile(ctx context.Context, userID, email, displayName string) (*core.Profile, error) {
	p, err := s.store.GetProfile(ctx, userID)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("get profile: %w", err)
	}

	now := time.Now()
	p = &core.Profile{
		UserID:      userID,
		Email:       email,
		DisplayName: displayName,
		Currency:    core.DefaultCurrency,
		Categories:  core.DefaultCategories(),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.CreateProfile(ctx, p); err != nil {
		return nil, fmt.Errorf("create profile: %w", err)
	}
	slog.InfoContext(ctx, "Created user profile", "user_id", userID)
	return p, nil
}

func (s *ProfileService) GetProfile(ctx context.Context, userID string) (*core.Profile, error) {
	return s.store.GetProfile(ctx, userID)
}

// AddCategory appends a custom category. Names are deduplicated
// case-insensitively; adding an existing name returns the existing category
// without a write.
func (s *ProfileService) AddCategory(ctx context.Context, userID, name string) (core.Category, error) {
	clean := strings.TrimSpace(name)
	if clean == "" {
		return core.Category{}, core.ErrEmptyCategoryName
	}

	p, err := s.store.GetProfile(ctx, userID)
	if err != nil {
		return core.Category{}, err
	}

	for _, c := range p.Categories {
		if strings.EqualFold(c.Name, clean) {
			return c, nil
		}
	}

	cat := core.Category{ID: categoryID(clean), Name: clean}
	cats := append(append([]core.Category{}, p.Categories...), cat)
	if err := s.store.UpdateCategories(ctx, userID, cats); err != nil {
		return core.Category{}, fmt.Errorf("update categories: %w", err)
	}
	return cat, nil
}

// categoryID builds a slug id like "c_street_food_1a2b3c4d"; the random
// suffix keeps ids unique when a category is removed and re-added.
func categoryID(name string) string {
	var b strings.Builder
	prevUnderscore := true
	for _, r := range strings.ToLower(name) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			prevUnderscore = false
		} else if !prevUnderscore {
			b.WriteByte('_')
			prevUnderscore = true
		}
	}
	slug := strings.Trim(b.String(), "_")
	return "c_" + slug + "_" + uuid.New().String()[:8]
}
