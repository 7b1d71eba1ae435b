package saga

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dgraph-io/badger/v4"
)

const (
	runKeyPrefix        = "run:"
	runIndexPhasePrefix = "run:index:phase:"
)

// BadgerRunStore stores run snapshots in Badger.
type BadgerRunStore struct {
	db *badger.DB
}

// NewBadgerRunStore creates a Badger-backed run store.
func NewBadgerRunStore(db *badger.DB) (*BadgerRunStore, error) {
	if db == nil {
		return nil, fmt.Errorf("badger db cannot be nil")
	}
	return &BadgerRunStore{db: db}, nil
}

// Save persists one run at key "run:{runID}" plus a phase index entry.
func (s *BadgerRunStore) Save(ctx context.Context, state *RunState) error {
	if state == nil {
		return fmt.Errorf("run state cannot be nil")
	}
	data, err := json.Marshal(state)
	if err != nil {
		return err
	}

	key := []byte(runDataKey(state.RunID))
	newIndexKey := []byte(runPhaseIndexKey(state.Phase.String(), state.RunID))

	return s.db.Update(func(txn *badger.Txn) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		var oldPhase string
		item, err := txn.Get(key)
		if err == nil {
			var previous RunState
			if err := item.Value(func(v []byte) error { return json.Unmarshal(v, &previous) }); err == nil {
				oldPhase = previous.Phase.String()
			}
		}

		if err := txn.Set(key, data); err != nil {
			return err
		}
		if err := txn.Set(newIndexKey, []byte{}); err != nil {
			return err
		}
		if oldPhase != "" && oldPhase != state.Phase.String() {
			_ = txn.Delete([]byte(runPhaseIndexKey(oldPhase, state.RunID)))
		}
		return nil
	})
}

// Get loads one run by id.
func (s *BadgerRunStore) Get(ctx context.Context, runID string) (*RunState, error) {
	var state RunState
	err := s.db.View(func(txn *badger.Txn) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		item, err := txn.Get([]byte(runDataKey(runID)))
		if err != nil {
			if err == badger.ErrKeyNotFound {
				return ErrRunNotFound
			}
			return err
		}
		return item.Value(func(v []byte) error { return json.Unmarshal(v, &state) })
	})
	if err != nil {
		return nil, err
	}
	return state.Clone(), nil
}

// List queries runs by phase with pagination.
func (s *BadgerRunStore) List(ctx context.Context, filter RunListFilter) ([]*RunState, int, error) {
	states := make([]*RunState, 0)

	err := s.db.View(func(txn *badger.Txn) error {
		if filter.Phase != "" {
			prefix := []byte(runPhaseIndexPrefix(filter.Phase))
			opts := badger.DefaultIteratorOptions
			opts.Prefix = prefix
			opts.PrefetchValues = false
			it := txn.NewIterator(opts)
			defer it.Close()

			for it.Rewind(); it.Valid(); it.Next() {
				select {
				case <-ctx.Done():
					return ctx.Err()
				default:
				}

				key := string(it.Item().Key())
				runID := strings.TrimPrefix(key, runPhaseIndexPrefix(filter.Phase))
				state, err := s.getInTxn(txn, runID)
				if err != nil {
					continue
				}
				states = append(states, state)
			}
			return nil
		}

		prefix := []byte(runKeyPrefix)
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			key := string(it.Item().Key())
			if strings.HasPrefix(key, runIndexPhasePrefix) {
				continue
			}
			var state RunState
			if err := it.Item().Value(func(v []byte) error { return json.Unmarshal(v, &state) }); err != nil {
				continue
			}
			states = append(states, &state)
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}

	total := len(states)
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	if offset > total {
		offset = total
	}
	limit := filter.Limit
	if limit < 0 {
		limit = 0
	}
	end := total
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}

	paged := make([]*RunState, 0, end-offset)
	for _, state := range states[offset:end] {
		paged = append(paged, state.Clone())
	}
	return paged, total, nil
}

// Delete removes one run and its phase index entry.
func (s *BadgerRunStore) Delete(ctx context.Context, runID string) error {
	key := []byte(runDataKey(runID))
	return s.db.Update(func(txn *badger.Txn) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		item, err := txn.Get(key)
		if err != nil {
			if err == badger.ErrKeyNotFound {
				return ErrRunNotFound
			}
			return err
		}

		var state RunState
		if err := item.Value(func(v []byte) error { return json.Unmarshal(v, &state) }); err != nil {
			return err
		}
		if err := txn.Delete(key); err != nil {
			return err
		}
		_ = txn.Delete([]byte(runPhaseIndexKey(state.Phase.String(), runID)))
		return nil
	})
}

func (s *BadgerRunStore) getInTxn(txn *badger.Txn, runID string) (*RunState, error) {
	item, err := txn.Get([]byte(runDataKey(runID)))
	if err != nil {
		return nil, err
	}
	var state RunState
	if err := item.Value(func(v []byte) error { return json.Unmarshal(v, &state) }); err != nil {
		return nil, err
	}
	return &state, nil
}

func runDataKey(runID string) string { return runKeyPrefix + runID }

func runPhaseIndexPrefix(phase string) string { return runIndexPhasePrefix + phase + ":" }

func runPhaseIndexKey(phase, runID string) string { return runPhaseIndexPrefix(phase) + runID }
