// Package prefs persists per-visitor preferences: the saved-mod set, the
// last visited era and the last submission time. Values are plain strings
// under fixed keys; readers tolerate missing or malformed values.
package prefs

import (
	"context"
	"strconv"
	"strings"
	"time"
)

const (
	KeySavedMods      = "savedMods"
	KeyLastVisitedEra = "lastVisitedEra"
	KeyLastSubmit     = "lastSubmit"
)

// DefaultEra is returned when no era was visited yet.
const DefaultEra = "all"

// Storage is a flat string key-value store scoped to one visitor.
type Storage interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
}

// Updater is implemented by storages that can read-modify-write one key
// atomically, also against other processes sharing the same backend.
type Updater interface {
	Update(ctx context.Context, key string, fn func(old string, ok bool) (string, error)) error
}

// Update rewrites key with fn. fn may run more than once and must not have
// side effects; an error from fn aborts without writing. Storages without
// Updater fall back to Get then Set.
func Update(ctx context.Context, s Storage, key string, fn func(old string, ok bool) (string, error)) error {
	if u, ok := s.(Updater); ok {
		return u.Update(ctx, key, fn)
	}
	old, ok, err := s.Get(ctx, key)
	if err != nil {
		return err
	}
	v, err := fn(old, ok)
	if err != nil {
		return err
	}
	return s.Set(ctx, key, v)
}

// Backend hands out the storage namespace of a visitor.
type Backend interface {
	For(visitorID string) Storage
}

// LastVisitedEra returns the stored era or DefaultEra.
func LastVisitedEra(ctx context.Context, s Storage) string {
	if s == nil {
		return DefaultEra
	}
	v, ok, err := s.Get(ctx, KeyLastVisitedEra)
	if err != nil || !ok || strings.TrimSpace(v) == "" {
		return DefaultEra
	}
	return v
}

func SetLastVisitedEra(ctx context.Context, s Storage, era string) error {
	return s.Set(ctx, KeyLastVisitedEra, strings.ToLower(era))
}

// LastSubmit returns the time of the last successful submission, if a
// parseable one is stored.
func LastSubmit(ctx context.Context, s Storage) (time.Time, bool) {
	v, ok, err := s.Get(ctx, KeyLastSubmit)
	if err != nil || !ok {
		return time.Time{}, false
	}
	ms, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	return time.UnixMilli(ms), true
}

func SetLastSubmit(ctx context.Context, s Storage, at time.Time) error {
	return s.Set(ctx, KeyLastSubmit, strconv.FormatInt(at.UnixMilli(), 10))
}
