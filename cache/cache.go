package cache

import (
	"time"
)

func NewStore() *Store {
	store := &Store{now: time.Now}
	for i := range store.tables {
		store.tables[i] = make(recordTable)
	}
	return store
}

// Insert stores or overwrites the entry for (key, value) in the given table
// with an expiry of ttlSeconds from now. A non-positive ttl is accepted and
// simply produces an entry that is already expired for lookups.
func (store *Store) Insert(table Table, key string, value string, ttlSeconds int) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	store.insertLocked(table, key, value, ttlSeconds)
}

// AddAddress records an address answer in both directions, so that
// domain -> ip and ip -> domain stay mutually indexed with the same expiry.
func (store *Store) AddAddress(domain string, ip string, ttlSeconds int) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	store.insertLocked(Forward, domain, ip, ttlSeconds)
	store.insertLocked(Reverse, ip, domain, ttlSeconds)
}

// AddNameserver records an NS answer. The forwarding path never calls this;
// it exists for explicit inserts only.
func (store *Store) AddNameserver(domain string, nameserver string, ttlSeconds int) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	store.insertLocked(NSRecords, domain, nameserver, ttlSeconds)
}

func (store *Store) insertLocked(table Table, key string, value string, ttlSeconds int) {
	values := store.tables[table][key]
	if values == nil {
		values = make(bucket)
		store.tables[table][key] = values
	}
	values[value] = Entry{
		ExpiresAt: store.now().Add(time.Duration(ttlSeconds) * time.Second),
		TTL:       ttlSeconds,
	}
}

// Lookup returns the still-live values for key, unordered. Expired entries
// are filtered out but not removed; removal is the sweeper's job.
func (store *Store) Lookup(table Table, key string) ([]string, bool) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	values, ok := store.tables[table][key]
	if !ok {
		return nil, false
	}
	current := store.now()
	live := make([]string, 0, len(values))
	for value, entry := range values {
		if entry.ExpiresAt.After(current) {
			live = append(live, value)
		}
	}
	if len(live) == 0 {
		return nil, false
	}
	return live, true
}

// Sweep removes every entry whose expiry is at or before current, then every
// key left with no entries. One critical section covers all three tables.
func (store *Store) Sweep(current time.Time) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	for _, records := range store.tables {
		for key, values := range records {
			for value, entry := range values {
				if !entry.ExpiresAt.After(current) {
					delete(values, value)
				}
			}
			if len(values) == 0 {
				delete(records, key)
			}
		}
	}
}

// EntryCount reports the number of live-or-expired entries across all tables.
func (store *Store) EntryCount() int {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	count := 0
	for _, records := range store.tables {
		for _, values := range records {
			count += len(values)
		}
	}
	return count
}

// SnapshotData copies all three tables plus the current timestamp under the
// store's lock, so no entry can change mid-copy.
func (store *Store) SnapshotData() *Snapshot {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	return &Snapshot{
		Forward:   copyTable(store.tables[Forward]),
		Reverse:   copyTable(store.tables[Reverse]),
		NSRecords: copyTable(store.tables[NSRecords]),
		Timestamp: epochSeconds(store.now()),
	}
}

// Restore replaces the live tables wholesale with the snapshot's contents.
// Each entry's expiry is pulled back by the real time elapsed since the
// snapshot was taken; entries that no longer have time remaining are dropped.
// The stored ttl is kept as-is.
func (store *Store) Restore(snapshot *Snapshot, current time.Time) {
	elapsed := epochSeconds(current) - snapshot.Timestamp
	store.mutex.Lock()
	defer store.mutex.Unlock()
	store.tables[Forward] = restoreTable(snapshot.Forward, elapsed, current)
	store.tables[Reverse] = restoreTable(snapshot.Reverse, elapsed, current)
	store.tables[NSRecords] = restoreTable(snapshot.NSRecords, elapsed, current)
}

func copyTable(records recordTable) SnapshotTable {
	out := make(SnapshotTable, len(records))
	for key, values := range records {
		outValues := make(map[string]SnapshotEntry, len(values))
		for value, entry := range values {
			outValues[value] = SnapshotEntry{
				ExpiresAt: epochSeconds(entry.ExpiresAt),
				TTL:       entry.TTL,
			}
		}
		out[key] = outValues
	}
	return out
}

func restoreTable(serialized SnapshotTable, elapsedSeconds float64, current time.Time) recordTable {
	records := make(recordTable, len(serialized))
	for key, values := range serialized {
		restored := make(bucket)
		for value, entry := range values {
			newExpiresAt := timeFromEpoch(entry.ExpiresAt - elapsedSeconds)
			if newExpiresAt.After(current) {
				restored[value] = Entry{ExpiresAt: newExpiresAt, TTL: entry.TTL}
			}
		}
		if len(restored) > 0 {
			records[key] = restored
		}
	}
	return records
}

func epochSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}

func timeFromEpoch(seconds float64) time.Time {
	return time.Unix(0, int64(seconds*float64(time.Second)))
}
