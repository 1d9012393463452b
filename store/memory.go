package store

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"
)

// Memory is an in-process Client with the same visible semantics as the
// Redis adapter, including key expiry. It backs the test suite and local
// development without a running store.
type Memory struct {
	mu        sync.Mutex
	data      map[string]*memoryEntry
	published map[string][]string
}

type memoryEntry struct {
	value     string
	list      []string
	zset      map[string]float64
	set       map[string]struct{}
	expiresAt time.Time
}

func NewMemory() *Memory {
	return &Memory{
		data:      make(map[string]*memoryEntry),
		published: make(map[string][]string),
	}
}

func (e *memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// live returns the entry for key, evicting it first when expired.
// Callers must hold the mutex.
func (m *Memory) live(key string) *memoryEntry {
	e, ok := m.data[key]
	if !ok {
		return nil
	}
	if e.expired(time.Now()) {
		delete(m.data, key)
		return nil
	}
	return e
}

func (m *Memory) ensure(key string) *memoryEntry {
	e := m.live(key)
	if e == nil {
		e = &memoryEntry{}
		m.data[key] = e
	}
	return e
}

func (m *Memory) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := m.live(key)
	if e == nil {
		return "", false, nil
	}
	return e.value, true, nil
}

func (m *Memory) Set(_ context.Context, key, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := &memoryEntry{value: value}
	if ttl > 0 {
		e.expiresAt = time.Now().Add(ttl)
	}
	m.data[key] = e
	return nil
}

func (m *Memory) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

func (m *Memory) Incr(_ context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := m.live(key)
	if e == nil {
		m.data[key] = &memoryEntry{value: "1"}
		return 1, nil
	}
	n, err := strconv.ParseInt(e.value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("value at %q is not an integer", key)
	}
	n++
	e.value = strconv.FormatInt(n, 10)
	return n, nil
}

func (m *Memory) Expire(_ context.Context, key string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := m.live(key)
	if e == nil {
		return false, nil
	}
	e.expiresAt = time.Now().Add(ttl)
	return true, nil
}

func (m *Memory) TTL(_ context.Context, key string) (time.Duration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := m.live(key)
	if e == nil || e.expiresAt.IsZero() {
		return -1, nil
	}
	return time.Until(e.expiresAt), nil
}

func (m *Memory) LPush(_ context.Context, key string, values ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := m.ensure(key)
	for _, v := range values {
		e.list = append([]string{v}, e.list...)
	}
	return nil
}

// bounds translates redis-style negative indices into slice bounds.
func bounds(length int64, start, stop int64) (int64, int64, bool) {
	if start < 0 {
		start = length + start
	}
	if stop < 0 {
		stop = length + stop
	}
	if start < 0 {
		start = 0
	}
	if stop >= length {
		stop = length - 1
	}
	if length == 0 || start > stop || start >= length {
		return 0, 0, false
	}
	return start, stop, true
}

func (m *Memory) LTrim(_ context.Context, key string, start, stop int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := m.live(key)
	if e == nil {
		return nil
	}
	lo, hi, ok := bounds(int64(len(e.list)), start, stop)
	if !ok {
		delete(m.data, key)
		return nil
	}
	e.list = e.list[lo : hi+1]
	return nil
}

func (m *Memory) LRange(_ context.Context, key string, start, stop int64) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := m.live(key)
	if e == nil {
		return nil, nil
	}
	lo, hi, ok := bounds(int64(len(e.list)), start, stop)
	if !ok {
		return nil, nil
	}
	out := make([]string, hi-lo+1)
	copy(out, e.list[lo:hi+1])
	return out, nil
}

func (m *Memory) LRem(_ context.Context, key string, count int64, value string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := m.live(key)
	if e == nil {
		return 0, nil
	}
	var removed int64
	kept := e.list[:0]
	for _, v := range e.list {
		if v == value && (count == 0 || removed < count) {
			removed++
			continue
		}
		kept = append(kept, v)
	}
	e.list = kept
	return removed, nil
}

func (m *Memory) ZAdd(_ context.Context, key, member string, score float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := m.ensure(key)
	if e.zset == nil {
		e.zset = make(map[string]float64)
	}
	e.zset[member] = score
	return nil
}

func (m *Memory) ZRangeWithScores(_ context.Context, key string) ([]ZMember, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := m.live(key)
	if e == nil {
		return nil, nil
	}
	members := make([]ZMember, 0, len(e.zset))
	for member, score := range e.zset {
		members = append(members, ZMember{Member: member, Score: score})
	}
	sort.Slice(members, func(i, j int) bool {
		if members[i].Score == members[j].Score {
			return members[i].Member < members[j].Member
		}
		return members[i].Score < members[j].Score
	})
	return members, nil
}

func (m *Memory) ZRem(_ context.Context, key string, members ...string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := m.live(key)
	if e == nil {
		return 0, nil
	}
	var removed int64
	for _, member := range members {
		if _, ok := e.zset[member]; ok {
			delete(e.zset, member)
			removed++
		}
	}
	return removed, nil
}

func (m *Memory) SAdd(_ context.Context, key string, members ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := m.ensure(key)
	if e.set == nil {
		e.set = make(map[string]struct{})
	}
	for _, member := range members {
		e.set[member] = struct{}{}
	}
	return nil
}

func (m *Memory) SRem(_ context.Context, key string, members ...string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := m.live(key)
	if e == nil {
		return 0, nil
	}
	var removed int64
	for _, member := range members {
		if _, ok := e.set[member]; ok {
			delete(e.set, member)
			removed++
		}
	}
	return removed, nil
}

func (m *Memory) SMembers(_ context.Context, key string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := m.live(key)
	if e == nil {
		return nil, nil
	}
	members := make([]string, 0, len(e.set))
	for member := range e.set {
		members = append(members, member)
	}
	sort.Strings(members)
	return members, nil
}

func (m *Memory) SIsMember(_ context.Context, key, member string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := m.live(key)
	if e == nil {
		return false, nil
	}
	_, ok := e.set[member]
	return ok, nil
}

func (m *Memory) Publish(_ context.Context, channel, payload string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published[channel] = append(m.published[channel], payload)
	return nil
}

// Published returns everything emitted on channel, oldest first.
func (m *Memory) Published(channel string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.published[channel]))
	copy(out, m.published[channel])
	return out
}

// Exists reports whether key currently holds a live entry of any kind.
func (m *Memory) Exists(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.live(key) != nil
}

func (m *Memory) Close() error {
	return nil
}
