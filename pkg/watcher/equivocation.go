package watcher

import "fmt"

// Attestation is one signed claim a watcher submits about a corridor's
// chain state.
type Attestation struct {
	WatcherDID  string
	Subject     string // e.g. corridor_id
	Domain      string
	TimeQuantum string
	Sequence    uint64
	PrevRoot    string
	NextRoot    string
}

func attestationKey(subject, domain, timeQuantum string) string {
	return subject + "\x00" + domain + "\x00" + timeQuantum
}

// EquivocationEvidence records two conflicting attestations from the same
// watcher for the same (subject, domain, time_quantum) key.
type EquivocationEvidence struct {
	WatcherDID string
	Key        string
	First      Attestation
	Second     Attestation
}

// EquivocationDetector indexes attestations incrementally by
// (subject, domain, time_quantum); inserting a second attestation from the
// same watcher at the same key with a differing claim raises evidence.
type EquivocationDetector struct {
	byKey map[string]map[string]Attestation // key -> watcherDID -> first-seen attestation
}

// NewEquivocationDetector returns an empty detector.
func NewEquivocationDetector() *EquivocationDetector {
	return &EquivocationDetector{byKey: make(map[string]map[string]Attestation)}
}

// Insert records a, returning EquivocationEvidence if it conflicts with an
// attestation this watcher already submitted for the same key.
func (d *EquivocationDetector) Insert(a Attestation) (*EquivocationEvidence, error) {
	key := attestationKey(a.Subject, a.Domain, a.TimeQuantum)
	byWatcher, ok := d.byKey[key]
	if !ok {
		byWatcher = make(map[string]Attestation)
		d.byKey[key] = byWatcher
	}

	existing, seen := byWatcher[a.WatcherDID]
	if !seen {
		byWatcher[a.WatcherDID] = a
		return nil, nil
	}

	if conflicts(existing, a) {
		return &EquivocationEvidence{WatcherDID: a.WatcherDID, Key: key, First: existing, Second: a}, nil
	}
	return nil, nil
}

func conflicts(a, b Attestation) bool {
	return a.Sequence == b.Sequence && a.PrevRoot == b.PrevRoot && a.NextRoot != b.NextRoot
}

func (e EquivocationEvidence) String() string {
	return fmt.Sprintf("equivocation by %s at %s: %s vs %s", e.WatcherDID, e.Key, e.First.NextRoot, e.Second.NextRoot)
}
