package weave

import (
	"errors"

	"github.com/xraph/go-utils/di"
)

// DependencyGraph records the keys each binding depends on. It only knows
// the edges declared through injections and aliases; factories are opaque.
type DependencyGraph struct {
	nodes map[string]*node
	order []string // Preserve registration order
}

type node struct {
	name string
	deps []di.Dep
}

// NewDependencyGraph creates an empty graph.
func NewDependencyGraph() *DependencyGraph {
	return &DependencyGraph{
		nodes: make(map[string]*node),
		order: make([]string, 0),
	}
}

// AddNode adds a node with its dependencies. Adding a name twice replaces its
// dependencies but keeps its original position.
func (g *DependencyGraph) AddNode(name string, deps []di.Dep) {
	if existing, ok := g.nodes[name]; ok {
		existing.deps = deps

		return
	}

	g.nodes[name] = &node{name: name, deps: deps}
	g.order = append(g.order, name)
}

// HasNode checks if a node exists in the graph.
func (g *DependencyGraph) HasNode(name string) bool {
	_, ok := g.nodes[name]

	return ok
}

// Nodes returns the node names in insertion order.
func (g *DependencyGraph) Nodes() []string {
	names := make([]string, len(g.order))
	copy(names, g.order)

	return names
}

// GetDeps returns the full Dep specs for a node.
func (g *DependencyGraph) GetDeps(name string) []di.Dep {
	if node, ok := g.nodes[name]; ok {
		return node.deps
	}

	return nil
}

// GetDependencies returns the dependency names for a node.
func (g *DependencyGraph) GetDependencies(name string) []string {
	return di.DepNames(g.GetDeps(name))
}

// GetEagerDependencies returns the dependencies resolved while the node is
// being produced. Lazy dependencies are resolved later through a Getter.
func (g *DependencyGraph) GetEagerDependencies(name string) []string {
	var eager []string

	for _, dep := range g.GetDeps(name) {
		if !dep.Mode.IsLazy() {
			eager = append(eager, dep.Name)
		}
	}

	return eager
}

// TopologicalSort returns nodes in dependency order, considering only eager
// dependencies. Nodes without dependencies keep their insertion order. A cycle
// fails with a circular dependency error carrying the full path.
func (g *DependencyGraph) TopologicalSort() ([]string, error) {
	visited := make(map[string]bool)
	result := make([]string, 0, len(g.nodes))

	for _, name := range g.order {
		if err := g.visit(name, visited, nil, &result); err != nil {
			return nil, err
		}
	}

	return result, nil
}

// visit performs DFS traversal; stack holds the nodes currently being visited.
func (g *DependencyGraph) visit(name string, visited map[string]bool, stack []string, result *[]string) error {
	if visited[name] {
		return nil
	}

	for i, onStack := range stack {
		if onStack == name {
			cycle := append(append([]string(nil), stack[i:]...), name)

			return NewCircularDependencyError(cycle)
		}
	}

	node := g.nodes[name]
	if node == nil {
		// Not bound; Validate reports required ones separately
		return nil
	}

	stack = append(stack, name)

	for _, dep := range node.deps {
		if dep.Mode.IsLazy() {
			continue
		}

		if err := g.visit(dep.Name, visited, stack, result); err != nil {
			return err
		}
	}

	visited[name] = true
	*result = append(*result, name)

	return nil
}

// Missing returns the required dependencies that are not nodes of the graph,
// as binding-not-found errors naming contextName.
func (g *DependencyGraph) Missing(contextName string) error {
	var missing []error

	reported := make(map[string]bool)

	for _, name := range g.order {
		for _, dep := range g.nodes[name].deps {
			if dep.Mode.IsOptional() || g.HasNode(dep.Name) || reported[dep.Name] {
				continue
			}

			reported[dep.Name] = true
			missing = append(missing, NewBindingNotFoundError(dep.Name, contextName).
				WithContext("required_by", name))
		}
	}

	return errors.Join(missing...)
}

// DependencyGraph builds the graph of every binding visible from c.
func (c *Context) DependencyGraph() *DependencyGraph {
	graph := NewDependencyGraph()

	for _, b := range c.Find(All()) {
		graph.AddNode(b.Key(), b.Dependencies())
	}

	return graph
}

// Validate reports required keys no visible binding provides and dependency
// cycles, without resolving anything.
func (c *Context) Validate() error {
	graph := c.DependencyGraph()

	if err := graph.Missing(c.name); err != nil {
		return err
	}

	_, err := graph.TopologicalSort()

	return err
}
