package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/vasiliy-maslov/skincare-storefront/internal/storage"
)

// SnapshotKey is the storage key of a user's cart.
func SnapshotKey(userID int64) string {
	return "cart_" + strconv.FormatInt(userID, 10)
}

// Snapshots reads and writes per-user cart snapshots as JSON line lists.
type Snapshots struct {
	store storage.Store
}

func NewSnapshots(store storage.Store) *Snapshots {
	return &Snapshots{store: store}
}

// Load returns the saved lines for the user, or nil when none were saved.
func (s *Snapshots) Load(ctx context.Context, userID int64) ([]Line, error) {
	raw, err := s.store.Get(ctx, SnapshotKey(userID))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cart: read snapshot: %w", err)
	}
	var lines []Line
	if err := json.Unmarshal(raw, &lines); err != nil {
		return nil, fmt.Errorf("cart: parse snapshot: %w", err)
	}
	return lines, nil
}

func (s *Snapshots) Save(ctx context.Context, userID int64, lines []Line) error {
	if lines == nil {
		lines = []Line{}
	}
	raw, err := json.Marshal(lines)
	if err != nil {
		return fmt.Errorf("cart: encode snapshot: %w", err)
	}
	if err := s.store.Set(ctx, SnapshotKey(userID), raw); err != nil {
		return fmt.Errorf("cart: write snapshot: %w", err)
	}
	return nil
}
