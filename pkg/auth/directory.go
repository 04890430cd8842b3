package auth

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/platinummonkey/groundwork/pkg/models"
)

// CachedDirectory resolves callers and display info through an expiring LRU
type CachedDirectory struct {
	store     UserStore
	bySubject *expirable.LRU[string, *models.User]
	byID      *expirable.LRU[int64, *models.User]
}

// NewCachedDirectory creates a directory caching up to size users for ttl
func NewCachedDirectory(store UserStore, size int, ttl time.Duration) *CachedDirectory {
	size = max(size, 16)
	return &CachedDirectory{
		store:     store,
		bySubject: expirable.NewLRU[string, *models.User](size, nil, ttl),
		byID:      expirable.NewLRU[int64, *models.User](size, nil, ttl),
	}
}

// Resolve returns the user for verified claims. The store is written only when the
// user is unknown or their email or name changed.
func (d *CachedDirectory) Resolve(ctx context.Context, claims *Claims) (*models.User, error) {
	if u, ok := d.bySubject.Get(claims.Subject); ok && u.Email == claims.Email && (claims.Name == "" || u.DisplayName == claims.Name) {
		return u, nil
	}

	u, err := d.store.Upsert(ctx, claims)
	if err != nil {
		return nil, err
	}
	d.remember(u)
	return u, nil
}

// Lookup returns display info for the given ids. Unknown ids are omitted.
func (d *CachedDirectory) Lookup(ctx context.Context, ids ...int64) (map[int64]*models.User, error) {
	found := make(map[int64]*models.User, len(ids))
	seen := make(map[int64]bool, len(ids))
	var missing []int64
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		if u, ok := d.byID.Get(id); ok {
			found[id] = u
			continue
		}
		missing = append(missing, id)
	}
	if len(missing) == 0 {
		return found, nil
	}

	users, err := d.store.FindByIDs(ctx, missing)
	if err != nil {
		return nil, err
	}
	for _, u := range users {
		d.remember(u)
		found[u.ID] = u
	}
	return found, nil
}

// MarkAdmin labels the user admin and drops them from the cache
func (d *CachedDirectory) MarkAdmin(ctx context.Context, user *models.User) error {
	if user.Role == models.UserRoleAdmin {
		return nil
	}
	if err := d.store.MarkAdmin(ctx, user.ID); err != nil {
		return err
	}
	d.bySubject.Remove(user.Subject)
	d.byID.Remove(user.ID)
	return nil
}

func (d *CachedDirectory) remember(u *models.User) {
	if u.Subject != "" {
		d.bySubject.Add(u.Subject, u)
	}
	d.byID.Add(u.ID, u)
}
