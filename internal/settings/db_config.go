package settings

import (
	"encoding/json"
	"strconv"
	"strings"
	"sync/atomic"
	"time"
)

// dbConfigSnapshot is an immutable copy of the settings table. Readers never lock: writers swap
// in a whole new snapshot.
type dbConfigSnapshot struct {
	updatedAt time.Time
	values    map[string]json.RawMessage
}

var currentDBConfig atomic.Pointer[dbConfigSnapshot]

// StoreDBConfig replaces the in-memory snapshot of DB-backed settings. Keys are trimmed and
// values copied, so callers may reuse their map.
func StoreDBConfig(updatedAt time.Time, values map[string]json.RawMessage) {
	next := &dbConfigSnapshot{
		updatedAt: updatedAt.UTC(),
		values:    make(map[string]json.RawMessage, len(values)),
	}
	for k, v := range values {
		if key := strings.TrimSpace(k); key != "" {
			next.values[key] = cloneRaw(v)
		}
	}
	currentDBConfig.Store(next)
}

// DBConfigUpdatedAt returns the newest updated_at of the stored settings.
func DBConfigUpdatedAt() time.Time {
	if snap := currentDBConfig.Load(); snap != nil {
		return snap.updatedAt
	}
	return time.Time{}
}

// DBConfigValue returns a copy of the raw value stored for key.
func DBConfigValue(key string) (json.RawMessage, bool) {
	snap := currentDBConfig.Load()
	if snap == nil {
		return nil, false
	}
	val, ok := snap.values[strings.TrimSpace(key)]
	if !ok {
		return nil, false
	}
	return cloneRaw(val), true
}

func cloneRaw(raw json.RawMessage) json.RawMessage {
	if raw == nil {
		return nil
	}
	return append(json.RawMessage(nil), raw...)
}

// DBConfigString returns a string setting, or def when it is missing or blank.
func DBConfigString(key, def string) string {
	raw, ok := DBConfigValue(key)
	if !ok || len(raw) == 0 {
		return def
	}
	var value string
	if errUnmarshal := json.Unmarshal(raw, &value); errUnmarshal != nil {
		return def
	}
	if value = strings.TrimSpace(value); value == "" {
		return def
	}
	return value
}

// DBConfigInt returns an integer setting stored as a JSON number or numeric string, or def.
func DBConfigInt(key string, def int) int {
	raw, ok := DBConfigValue(key)
	if !ok || len(raw) == 0 {
		return def
	}
	if value, ok := parseInt(raw); ok {
		return value
	}
	return def
}

func parseInt(raw json.RawMessage) (int, bool) {
	var n json.Number
	if errUnmarshal := json.Unmarshal(raw, &n); errUnmarshal == nil {
		if value, errParse := strconv.Atoi(n.String()); errParse == nil {
			return value, true
		}
		return 0, false
	}
	var s string
	if errUnmarshal := json.Unmarshal(raw, &s); errUnmarshal != nil {
		return 0, false
	}
	value, errParse := strconv.Atoi(strings.TrimSpace(s))
	if errParse != nil {
		return 0, false
	}
	return value, true
}
