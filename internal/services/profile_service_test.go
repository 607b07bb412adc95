package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"finanze/internal/core"
	"finanze/internal/store/memory"
)

func TestEnsureProfileIdempotent(t *testing.T) {
	svc := NewProfileService(memory.New())
	ctx := context.Background()

	p1, err := svc.EnsureProfile(ctx, "u1", "u1@example.com", "User One")
	if err != nil {
		t.Fatalf("EnsureProfile: %v", err)
	}
	if p1.Currency != core.DefaultCurrency {
		t.Errorf("currency = %q, want %q", p1.Currency, core.DefaultCurrency)
	}
	if len(p1.Categories) != 8 {
		t.Errorf("seeded %d categories, want 8 defaults", len(p1.Categories))
	}

	// Add a custom category, then ensure again: the custom one must survive.
	if _, err := svc.AddCategory(ctx, "u1", "Street Food"); err != nil {
		t.Fatalf("AddCategory: %v", err)
	}

	p2, err := svc.EnsureProfile(ctx, "u1", "changed@example.com", "Changed")
	if err != nil {
		t.Fatalf("EnsureProfile again: %v", err)
	}
	if p2.Email != "u1@example.com" {
		t.Errorf("repeat EnsureProfile overwrote the profile: %q", p2.Email)
	}
	if len(p2.Categories) != 9 {
		t.Errorf("custom category lost: %d categories", len(p2.Categories))
	}
}

func TestAddCategory(t *testing.T) {
	svc := NewProfileService(memory.New())
	ctx := context.Background()

	if _, err := svc.AddCategory(ctx, "u1", "Pets"); err == nil {
		t.Error("AddCategory without a profile should fail")
	}

	if _, err := svc.EnsureProfile(ctx, "u1", "u1@example.com", ""); err != nil {
		t.Fatalf("EnsureProfile: %v", err)
	}

	if _, err := svc.AddCategory(ctx, "u1", "   "); !errors.Is(err, core.ErrEmptyCategoryName) {
		t.Errorf("blank name: got %v, want ErrEmptyCategoryName", err)
	}

	cat, err := svc.AddCategory(ctx, "u1", "  Street Food ")
	if err != nil {
		t.Fatalf("AddCategory: %v", err)
	}
	if cat.Name != "Street Food" {
		t.Errorf("name = %q, want trimmed", cat.Name)
	}
	if !strings.HasPrefix(cat.ID, "c_street_food_") {
		t.Errorf("id = %q, want c_street_food_ prefix", cat.ID)
	}

	// Case-insensitive duplicate returns the existing category, no write.
	dup, err := svc.AddCategory(ctx, "u1", "STREET food")
	if err != nil {
		t.Fatalf("AddCategory dup: %v", err)
	}
	if dup.ID != cat.ID {
		t.Errorf("duplicate created a new category: %q vs %q", dup.ID, cat.ID)
	}

	p, _ := svc.GetProfile(ctx, "u1")
	if len(p.Categories) != 9 {
		t.Errorf("categories = %d, want 9", len(p.Categories))
	}

	// Duplicate of a default category is also a no-op.
	def, err := svc.AddCategory(ctx, "u1", "food")
	if err != nil {
		t.Fatalf("AddCategory default dup: %v", err)
	}
	if def.ID != "food" {
		t.Errorf("default dup id = %q, want food", def.ID)
	}
}

func TestCategoryIDSlug(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"Street Food", "c_street_food_"},
		{"Café & Bars!", "c_caf_bars_"},
		{"ABC", "c_abc_"},
	}
	for _, tt := range tests {
		got := categoryID(tt.name)
		if !strings.HasPrefix(got, tt.want) {
			t.Errorf("categoryID(%q) = %q, want prefix %q", tt.name, got, tt.want)
		}
		if len(got) != len(tt.want)+8 {
			t.Errorf("categoryID(%q) = %q, want 8-char suffix", tt.name, got)
		}
	}
}
