// Jellygate - Self-Service Signup and Trial Management for Jellyfin
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/jellygate

package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/tomtom215/jellygate/internal/clock"
	"github.com/tomtom215/jellygate/internal/models"
)

// Key prefixes for BadgerDB storage.
const (
	accountKeyPrefix = "account:"
	trialKeyPrefix   = "trial:"
	settingsKey      = "settings:trial"
)

// BadgerRepository stores each record as a JSON document.
type BadgerRepository struct {
	db     *badger.DB
	clock  clock.Clock
	ownsDB bool
}

// OpenBadger opens a badger database at path. An empty path opens an
// in-memory database.
func OpenBadger(path string, clk clock.Clock) (*BadgerRepository, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger at %q: %w", path, err)
	}
	r := NewBadger(db, clk)
	r.ownsDB = true
	return r, nil
}

// NewBadger wraps an already open database. Close leaves db open.
func NewBadger(db *badger.DB, clk clock.Clock) *BadgerRepository {
	return &BadgerRepository{db: db, clock: orClock(clk)}
}

func getJSON(txn *badger.Txn, key string, dest interface{}) error {
	item, err := txn.Get([]byte(key))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, dest)
	})
}

func setJSON(txn *badger.Txn, key string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	return txn.Set([]byte(key), data)
}

// createJSON writes v under key unless the key already exists. Badger's
// optimistic transactions turn a racing create into ErrConflict.
func (r *BadgerRepository) createJSON(key string, v interface{}) error {
	err := r.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte(key))
		if err == nil {
			return ErrAlreadyExists
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return setJSON(txn, key, v)
	})
	if errors.Is(err, badger.ErrConflict) {
		return ErrAlreadyExists
	}
	return err
}

func (r *BadgerRepository) get(key string, dest interface{}) error {
	return r.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, key, dest)
	})
}

func (r *BadgerRepository) delete(key string) error {
	return r.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
}

// scan decodes every value under prefix.
func scan[T any](db *badger.DB, prefix string) ([]T, error) {
	out := make([]T, 0)
	err := db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var v T
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &v)
			}); err != nil {
				return fmt.Errorf("decode %s: %w", it.Item().Key(), err)
			}
			out = append(out, v)
		}
		return nil
	})
	return out, err
}

// CreateUserAccount implements Repository.
func (r *BadgerRepository) CreateUserAccount(_ context.Context, account *models.UserAccount) error {
	if err := checkUsername(account.Username); err != nil {
		return err
	}
	a := *account
	a.CreatedAt = storeTime(a.CreatedAt)
	return r.createJSON(accountKeyPrefix+a.Username, a)
}

// GetUserAccount implements Repository.
func (r *BadgerRepository) GetUserAccount(_ context.Context, username string) (*models.UserAccount, error) {
	var a models.UserAccount
	if err := r.get(accountKeyPrefix+username, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

// ListUserAccounts implements Repository.
func (r *BadgerRepository) ListUserAccounts(_ context.Context) ([]models.UserAccount, error) {
	out, err := scan[models.UserAccount](r.db, accountKeyPrefix)
	if err != nil {
		return nil, fmt.Errorf("list user accounts: %w", err)
	}
	sortAccounts(out)
	return out, nil
}

// DeleteUserAccount implements Repository.
func (r *BadgerRepository) DeleteUserAccount(_ context.Context, username string) error {
	return r.delete(accountKeyPrefix + username)
}

// GetTrialUser implements Repository.
func (r *BadgerRepository) GetTrialUser(_ context.Context, username string) (*models.TrialUser, error) {
	var t models.TrialUser
	if err := r.get(trialKeyPrefix+username, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// GetAllTrialUsers implements Repository.
func (r *BadgerRepository) GetAllTrialUsers(_ context.Context) ([]models.TrialUser, error) {
	out, err := scan[models.TrialUser](r.db, trialKeyPrefix)
	if err != nil {
		return nil, fmt.Errorf("list trial users: %w", err)
	}
	sortTrials(out)
	return out, nil
}

// GetExpiredTrialUsers implements Repository.
func (r *BadgerRepository) GetExpiredTrialUsers(ctx context.Context, now time.Time) ([]models.TrialUser, error) {
	all, err := r.GetAllTrialUsers(ctx)
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for i := range all {
		if isExpiredAt(&all[i], now) {
			out = append(out, all[i])
		}
	}
	return out, nil
}

// CreateTrialUser implements Repository.
func (r *BadgerRepository) CreateTrialUser(_ context.Context, username string, signup, expiry time.Time, durationDays int) (*models.TrialUser, error) {
	if err := checkUsername(username); err != nil {
		return nil, err
	}
	t := models.TrialUser{
		Username:     username,
		SignupDate:   storeTime(signup),
		ExpiryDate:   storeTime(expiry),
		DurationDays: durationDays,
	}
	if err := r.createJSON(trialKeyPrefix+username, t); err != nil {
		return nil, err
	}
	return &t, nil
}

// MarkTrialUserExpired implements Repository.
func (r *BadgerRepository) MarkTrialUserExpired(_ context.Context, username string) error {
	return r.db.Update(func(txn *badger.Txn) error {
		var t models.TrialUser
		err := getJSON(txn, trialKeyPrefix+username, &t)
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		t.IsExpired = true
		return setJSON(txn, trialKeyPrefix+username, t)
	})
}

// DeleteTrialUser implements Repository.
func (r *BadgerRepository) DeleteTrialUser(_ context.Context, username string) error {
	return r.delete(trialKeyPrefix + username)
}

// GetTrialSettings implements Repository.
func (r *BadgerRepository) GetTrialSettings(_ context.Context) (*models.TrialSettings, error) {
	var s models.TrialSettings
	err := r.db.Update(func(txn *badger.Txn) error {
		var err error
		s, err = r.settingsTxn(txn)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("get trial settings: %w", err)
	}
	return &s, nil
}

// UpdateTrialSettings implements Repository.
func (r *BadgerRepository) UpdateTrialSettings(_ context.Context, update models.TrialSettingsUpdate) (*models.TrialSettings, error) {
	var next models.TrialSettings
	err := r.db.Update(func(txn *badger.Txn) error {
		current, err := r.settingsTxn(txn)
		if err != nil {
			return err
		}
		next, err = applySettings(current, update, r.clock.Now())
		if err != nil {
			return err
		}
		return setJSON(txn, settingsKey, next)
	})
	if err != nil {
		return nil, err
	}
	return &next, nil
}

// settingsTxn reads the settings, writing defaults when absent. txn must be
// read-write.
func (r *BadgerRepository) settingsTxn(txn *badger.Txn) (models.TrialSettings, error) {
	var s models.TrialSettings
	err := getJSON(txn, settingsKey, &s)
	if errors.Is(err, ErrNotFound) {
		s = defaultSettings(r.clock.Now())
		return s, setJSON(txn, settingsKey, s)
	}
	return s, err
}

// Ping implements Repository.
func (r *BadgerRepository) Ping(context.Context) error {
	if r.db.IsClosed() {
		return errors.New("badger database is closed")
	}
	return nil
}

// Close implements Repository.
func (r *BadgerRepository) Close() error {
	if !r.ownsDB {
		return nil
	}
	return r.db.Close()
}
