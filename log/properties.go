package log

// Property is a named value attached to an event.
type Property struct {
	Name  string
	Value Value
}

// Properties is the mutable attribute set handed to enrichers while an event
// is being built. The first writer of a name wins; there is no overwrite.
type Properties struct {
	registry *Registry
	list     []Property
	index    map[string]int
}

func newProperties(registry *Registry, capacity int) *Properties {
	return &Properties{
		registry: registry,
		list:     make([]Property, 0, capacity),
		index:    make(map[string]int, capacity),
	}
}

// AddIfAbsent adds the property unless the name is already set and reports
// whether it was added.
func (p *Properties) AddIfAbsent(name string, value Value) bool {
	if _, loaded := p.index[name]; loaded {
		return false
	}
	p.index[name] = len(p.list)
	p.list = append(p.list, Property{Name: name, Value: value})
	return true
}

// CaptureIfAbsent captures value through the registry and adds it unless
// the name is already set.
func (p *Properties) CaptureIfAbsent(name string, value any, destructure bool) bool {
	if p.Has(name) {
		return false
	}
	mode := CaptureDefault
	if destructure {
		mode = CaptureDestructure
	}
	return p.AddIfAbsent(name, p.registry.Capture(value, mode))
}

func (p *Properties) Has(name string) bool {
	_, loaded := p.index[name]
	return loaded
}

func (p *Properties) Get(name string) (Value, bool) {
	if i, loaded := p.index[name]; loaded {
		return p.list[i].Value, true
	}
	return Value{}, false
}

func (p *Properties) Len() int {
	return len(p.list)
}

func (p *Properties) snapshot() []Property {
	return append([]Property(nil), p.list...)
}
