package history

import "github.com/TheMichaelB/synoexport/internal/models"

// NullStore is the no-op store used with --skip-history: nothing is loaded
// or saved, so every eligible file downloads.
type NullStore struct{}

// NewNullStore creates a no-op history store.
func NewNullStore() *NullStore {
	return &NullStore{}
}

func (*NullStore) Load() error { return nil }

func (*NullStore) Lookup(string) (models.HistoryEntry, bool) {
	return models.HistoryEntry{}, false
}

func (*NullStore) Record(models.HistoryEntry) {}

func (*NullStore) Remove(string) {}

func (*NullStore) Entries() map[string]models.HistoryEntry {
	return map[string]models.HistoryEntry{}
}

func (*NullStore) Len() int { return 0 }

func (*NullStore) Save() error { return nil }

func (*NullStore) Close() error { return nil }
