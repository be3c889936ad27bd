package cache

import (
	"sync"
	"time"
)

// Table selects one of the three record tables held by a Store.
type Table int

const (
	Forward   Table = iota // domain -> address literal
	Reverse                // address literal -> domain
	NSRecords              // domain -> nameserver domain
)

// Entry is one cached fact: the key maps to some value until ExpiresAt.
// TTL keeps the originally advertised lifetime in seconds; it is carried
// through snapshots unchanged and never re-derived from ExpiresAt.
type Entry struct {
	ExpiresAt time.Time
	TTL       int
}

type bucket map[string]Entry

type recordTable map[string]bucket

type Store struct {
	mutex  sync.Mutex
	tables [3]recordTable
	now    func() time.Time
}

// Snapshot is the persisted form of a Store: the three tables plus the
// wall-clock time the copy was taken, used on restore to compensate for
// elapsed real time.
type Snapshot struct {
	Forward   SnapshotTable `yaml:"forward"`
	Reverse   SnapshotTable `yaml:"reverse"`
	NSRecords SnapshotTable `yaml:"nsRecords"`
	Timestamp float64       `yaml:"timestamp"`
}

type SnapshotTable map[string]map[string]SnapshotEntry

type SnapshotEntry struct {
	ExpiresAt float64 `yaml:"expiresAt"`
	TTL       int     `yaml:"ttl"`
}
