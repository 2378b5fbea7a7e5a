package foundation

import (
	"fmt"
	"sync"

	cmap "github.com/orcaman/concurrent-map/v2"
	"github.com/tebeka/selenium"
)

// Key names an attribute bound to an invocation.
type Key string

// Attribute keys used by the lifecycle.
const (
	DriverKey      Key = "Driver"
	InitialPageKey Key = "InitialPage"
)

// attributes is the key space of one invocation. Only the invocation's own
// goroutine is expected to use it; the mutex keeps stray readers safe.
type attributes struct {
	mu     sync.Mutex
	values map[Key]interface{}
}

// Store associates attributes with invocations. Distinct invocations never
// share state, so concurrently running tests do not contend beyond the
// shard lookup of the underlying map.
type Store struct {
	m cmap.ConcurrentMap[string, *attributes]
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{m: cmap.New[*attributes]()}
}

func mustValidate(inv *Invocation) {
	if inv == nil {
		panic("foundation: invocation must be non-nil")
	}
	if inv.id == "" {
		panic("foundation: invocation must have a non-empty ID")
	}
}

func (s *Store) attrs(inv *Invocation, create bool) *attributes {
	mustValidate(inv)
	if !create {
		a, _ := s.m.Get(inv.id)
		return a
	}
	return s.m.Upsert(inv.id, nil, func(exist bool, old, _ *attributes) *attributes {
		if exist {
			return old
		}
		return &attributes{values: make(map[Key]interface{})}
	})
}

// Get returns the value bound to key for inv. It panics if inv is nil.
func (s *Store) Get(inv *Invocation, key Key) (interface{}, bool) {
	a := s.attrs(inv, false)
	if a == nil {
		return nil, false
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	v, ok := a.values[key]
	return v, ok
}

// Set binds value to key for inv; a nil value removes the binding. A bound
// driver is never replaced: Set leaves it in place and reports false. It
// panics if inv is nil or if value cannot be bound to key.
func (s *Store) Set(inv *Invocation, key Key, value interface{}) bool {
	if value == nil {
		a := s.attrs(inv, false)
		if a == nil {
			return true
		}
		a.mu.Lock()
		defer a.mu.Unlock()
		delete(a.values, key)
		return true
	}
	mustHoldType(key, value)
	a := s.attrs(inv, true)
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, bound := a.values[key]; bound && key == DriverKey {
		return false
	}
	a.values[key] = value
	return true
}

// mustHoldType panics if value is not of the type the lifecycle reads back
// from key.
func mustHoldType(key Key, value interface{}) {
	var ok bool
	switch key {
	case DriverKey:
		_, ok = value.(selenium.WebDriver)
	case InitialPageKey:
		_, ok = value.(Page)
	default:
		return
	}
	if !ok {
		panic(fmt.Sprintf("foundation: %s attribute cannot hold %T", key, value))
	}
}

// SetIfAbsent binds value to key unless a value is already bound. It
// reports whether the binding was made.
func (s *Store) SetIfAbsent(inv *Invocation, key Key, value interface{}) bool {
	if value != nil {
		mustHoldType(key, value)
	}
	a := s.attrs(inv, true)
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.values[key]; ok {
		return false
	}
	a.values[key] = value
	return true
}

// Take removes and returns the value bound to key for inv.
func (s *Store) Take(inv *Invocation, key Key) (interface{}, bool) {
	a := s.attrs(inv, false)
	if a == nil {
		return nil, false
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	v, ok := a.values[key]
	delete(a.values, key)
	return v, ok
}

// Discard drops every attribute of inv.
func (s *Store) Discard(inv *Invocation) {
	mustValidate(inv)
	s.m.Remove(inv.id)
}

// Len returns the number of invocations with attributes.
func (s *Store) Len() int {
	return s.m.Count()
}

// Driver returns the driver bound to inv.
func (s *Store) Driver(inv *Invocation) (selenium.WebDriver, bool) {
	v, ok := s.Get(inv, DriverKey)
	if !ok {
		return nil, false
	}
	wd, ok := v.(selenium.WebDriver)
	return wd, ok
}

// SetDriver binds wd to inv unless a driver is already bound, and reports
// whether it did. The store never quits drivers, so a refused wd stays the
// caller's to release. A nil wd clears the binding.
func (s *Store) SetDriver(inv *Invocation, wd selenium.WebDriver) bool {
	if wd == nil {
		return s.Set(inv, DriverKey, nil)
	}
	return s.SetIfAbsent(inv, DriverKey, wd)
}

// InitialPage returns the initial page bound to inv.
func (s *Store) InitialPage(inv *Invocation) (Page, bool) {
	v, ok := s.Get(inv, InitialPageKey)
	if !ok {
		return nil, false
	}
	p, ok := v.(Page)
	return p, ok
}

// SetInitialPage binds p to inv as its initial page.
func (s *Store) SetInitialPage(inv *Invocation, p Page) {
	if p == nil {
		s.Set(inv, InitialPageKey, nil)
		return
	}
	s.Set(inv, InitialPageKey, p)
}
