package expense

import (
	"fmt"
	"strings"
)

// Category is an expense category key accepted by a CategorySet.
type Category string

func (c Category) String() string {
	return string(c)
}

// TotalKey is reserved for the aggregate budget scope and is never a valid category.
const TotalKey = "TOTAL"

// DefaultCategories is the category set used when none is configured.
var DefaultCategories = []string{
	"FOOD_OUT",
	"GROCERIES",
	"RENT",
	"UTILITIES",
	"MEDICAL",
	"GAS",
	"RIDE_SHARE",
	"COFFEE",
	"HOTEL",
	"TECH",
	"TRAVEL",
	"SUBSCRIPTIONS",
	"OTHER",
}

// CategorySet is the closed, configured set of categories.
type CategorySet struct {
	keys    map[Category]struct{}
	ordered []Category
}

// NewCategorySet normalizes keys to upper case and drops duplicates. An empty
// set or the reserved TOTAL key is rejected.
func NewCategorySet(keys []string) (*CategorySet, error) {
	set := &CategorySet{keys: make(map[Category]struct{}, len(keys))}
	for _, raw := range keys {
		key := normalize(raw)
		if key == "" {
			continue
		}
		if key == TotalKey {
			return nil, fmt.Errorf("%w: %s is reserved", ErrInvalidCategory, TotalKey)
		}
		c := Category(key)
		if _, ok := set.keys[c]; ok {
			continue
		}
		set.keys[c] = struct{}{}
		set.ordered = append(set.ordered, c)
	}
	if len(set.ordered) == 0 {
		return nil, fmt.Errorf("%w: category set is empty", ErrInvalidCategory)
	}
	return set, nil
}

// MustCategorySet is NewCategorySet for static input.
func MustCategorySet(keys []string) *CategorySet {
	set, err := NewCategorySet(keys)
	if err != nil {
		panic(err)
	}
	return set
}

// Parse validates a raw category key against the set.
func (s *CategorySet) Parse(raw string) (Category, error) {
	c := Category(normalize(raw))
	if !s.Contains(c) {
		return "", fmt.Errorf("%w: %q", ErrInvalidCategory, raw)
	}
	return c, nil
}

func (s *CategorySet) Contains(c Category) bool {
	_, ok := s.keys[c]
	return ok
}

// List returns the categories in configuration order.
func (s *CategorySet) List() []Category {
	out := make([]Category, len(s.ordered))
	copy(out, s.ordered)
	return out
}

func normalize(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}
