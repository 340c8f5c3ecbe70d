package security

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/momentum-sez/msez-core/pkg/canon"
)

// AuditGenesis is the fixed starting hash an empty audit log folds from:
// 64 hex zero digits, the same width as a sha256 digest.
var AuditGenesis = strings.Repeat("0", 64)

// AuditEvent is one entry appended to an audit log.
type AuditEvent struct {
	Actor  string                 `json:"actor"`
	Action string                 `json:"action"`
	At     string                 `json:"at"`
	Detail map[string]interface{} `json:"detail,omitempty"`
}

// AuditLog is a hash-chained append-only event log:
// next = sha256(prev || JCS(event)).
type AuditLog struct {
	events []AuditEvent
	hashes []string // hashes[i] is the chain hash after events[i]
}

func NewAuditLog() *AuditLog {
	return &AuditLog{}
}

// Append adds event to the log and returns the new chain head hash.
func (l *AuditLog) Append(event AuditEvent) (string, error) {
	prev := AuditGenesis
	if len(l.hashes) > 0 {
		prev = l.hashes[len(l.hashes)-1]
	}
	next, err := chainStep(prev, event)
	if err != nil {
		return "", err
	}
	l.events = append(l.events, event)
	l.hashes = append(l.hashes, next)
	return next, nil
}

func (l *AuditLog) Head() string {
	if len(l.hashes) == 0 {
		return AuditGenesis
	}
	return l.hashes[len(l.hashes)-1]
}

func (l *AuditLog) Events() []AuditEvent {
	out := make([]AuditEvent, len(l.events))
	copy(out, l.events)
	return out
}

// chainStep computes sha256(prev || JCS(event)) hex-encoded.
func chainStep(prev string, event AuditEvent) (string, error) {
	body, err := canon.Bytes(event)
	if err != nil {
		return "", err
	}
	h := sha256.New()
	h.Write([]byte(prev))
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil)), nil
}

// ChainHash recomputes the fold over events from AuditGenesis, independent
// of any AuditLog instance's internal state. Two independently constructed
// logs from the same event sequence always reproduce the same chain hash.
func ChainHash(events []AuditEvent) (string, error) {
	prev := AuditGenesis
	for _, e := range events {
		next, err := chainStep(prev, e)
		if err != nil {
			return "", err
		}
		prev = next
	}
	return prev, nil
}
