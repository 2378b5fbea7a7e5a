package foundation

import (
	"fmt"

	cmap "github.com/orcaman/concurrent-map/v2"
)

// Kind classifies a registered method by its role in the test lifecycle.
type Kind int

// Method kinds. Only KindTest and KindBeforeEach qualify for driver
// provisioning.
const (
	KindTest Kind = iota
	KindBeforeEach
	KindAfterEach
	KindBeforeClass
	KindAfterClass
)

func (k Kind) String() string {
	switch k {
	case KindTest:
		return "test"
	case KindBeforeEach:
		return "before-each"
	case KindAfterEach:
		return "after-each"
	case KindBeforeClass:
		return "before-class"
	case KindAfterClass:
		return "after-class"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// qualifies reports whether methods of kind k get a driver and initial page
// before they run.
func (k Kind) qualifies() bool {
	return k == KindTest || k == KindBeforeEach
}

// Class groups methods that share an initial page and a provisioner.
type Class struct {
	Name string
	// InitialPage is opened for methods that declare none of their own.
	InitialPage *InitialPage
	// Provisioner, if set, supplies drivers for the methods of this class in
	// place of the grid allocator.
	Provisioner Provisioner
}

// Method describes a test or configuration method and the lifecycle markers
// attached to it.
type Method struct {
	Name string
	Kind Kind
	// NoDriver suppresses automatic driver creation.
	NoDriver bool
	// InitialPage takes precedence over the class-level initial page.
	InitialPage *InitialPage
	Class       *Class
}

// ID returns the identity under which m is registered: "Class.Method", or
// just the method name for methods without a class.
func (m *Method) ID() string {
	if m.Class == nil || m.Class.Name == "" {
		return m.Name
	}
	return m.Class.Name + "." + m.Name
}

func (m *Method) provisioner() Provisioner {
	if m.Class == nil {
		return nil
	}
	return m.Class.Provisioner
}

func (m *Method) classInitialPage() *InitialPage {
	if m.Class == nil {
		return nil
	}
	return m.Class.InitialPage
}

// Invocation is one execution of a method. Its ID keys the attributes held
// in a Store.
type Invocation struct {
	id     string
	method *Method
}

// NewInvocation returns an invocation of m identified by id. The id must be
// unique among live invocations.
func NewInvocation(id string, m *Method) *Invocation {
	if m == nil {
		m = &Method{Kind: KindTest}
	}
	return &Invocation{id: id, method: m}
}

// ID returns the invocation's identity.
func (inv *Invocation) ID() string { return inv.id }

// Method returns the invoked method's descriptor.
func (inv *Invocation) Method() *Method { return inv.method }

func (inv *Invocation) String() string {
	return fmt.Sprintf("%s[%s]", inv.method.ID(), inv.id)
}

// Registry maps test identities to their method descriptors, so runner
// adapters can resolve markers by direct lookup.
type Registry struct {
	methods cmap.ConcurrentMap[string, *Method]
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{methods: cmap.New[*Method]()}
}

// Register adds methods to the registry. Registering the same identity twice
// is an error.
func (r *Registry) Register(methods ...*Method) error {
	for _, m := range methods {
		if !r.methods.SetIfAbsent(m.ID(), m) {
			return fmt.Errorf("method %q already registered", m.ID())
		}
	}
	return nil
}

// Lookup returns the method registered under the class and method names.
func (r *Registry) Lookup(class, name string) (*Method, bool) {
	id := name
	if class != "" {
		id = class + "." + name
	}
	return r.methods.Get(id)
}

// MustLookup is like Lookup but reports a missing method as ErrNotRegistered.
func (r *Registry) MustLookup(class, name string) (*Method, error) {
	m, ok := r.Lookup(class, name)
	if !ok {
		return nil, fmt.Errorf("%s.%s: %w", class, name, ErrNotRegistered)
	}
	return m, nil
}

// Resolve returns the registered method, or an unmarked test method of c
// when none is registered.
func (r *Registry) Resolve(c *Class, name string) *Method {
	var className string
	if c != nil {
		className = c.Name
	}
	if m, ok := r.Lookup(className, name); ok {
		return m
	}
	return &Method{Name: name, Kind: KindTest, Class: c}
}
