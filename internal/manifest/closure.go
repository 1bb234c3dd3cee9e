package manifest

import "fmt"

type frame struct {
	b    *Bundle
	next int
}

// CollectDependencies returns the transitive dependencies of roots in
// depth-first post-order: every dependency precedes its dependents and each
// bundle appears at most once across all roots. Roots are not included unless
// another root depends on them. A cycle yields a *CycleError.
func (m *Manifest) CollectDependencies(roots ...*Bundle) ([]*Bundle, error) {
	visited := make(map[string]bool)
	var out []*Bundle
	for _, root := range roots {
		if root == nil {
			continue
		}
		if err := m.walk(root, visited, &out); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// WithDependencies returns the closure of roots followed by the roots
// themselves, without duplicates, in load order.
func (m *Manifest) WithDependencies(roots ...*Bundle) ([]*Bundle, error) {
	deps, err := m.CollectDependencies(roots...)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(deps)+len(roots))
	out := make([]*Bundle, 0, len(deps)+len(roots))
	for _, b := range deps {
		seen[b.Name] = true
		out = append(out, b)
	}
	for _, b := range roots {
		if b == nil || seen[b.Name] {
			continue
		}
		seen[b.Name] = true
		out = append(out, b)
	}
	return out, nil
}

func (m *Manifest) walk(root *Bundle, visited map[string]bool, out *[]*Bundle) error {
	onStack := map[string]bool{root.Name: true}
	stack := []frame{{b: root}}
	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		if top.next < len(top.b.Dependencies) {
			name := top.b.Dependencies[top.next]
			top.next++
			dep := m.byName[name]
			if dep == nil {
				return fmt.Errorf("%w: %s -> %s", ErrDanglingDependency, top.b.Name, name)
			}
			if onStack[name] {
				return &CycleError{Path: cyclePath(stack, name)}
			}
			if visited[name] {
				continue
			}
			visited[name] = true
			onStack[name] = true
			stack = append(stack, frame{b: dep})
			continue
		}
		done := top.b
		stack = stack[:len(stack)-1]
		delete(onStack, done.Name)
		if len(stack) > 0 {
			*out = append(*out, done)
		}
	}
	return nil
}

func cyclePath(stack []frame, closing string) []string {
	start := 0
	for i, f := range stack {
		if f.b.Name == closing {
			start = i
			break
		}
	}
	path := make([]string, 0, len(stack)-start+1)
	for _, f := range stack[start:] {
		path = append(path, f.b.Name)
	}
	return append(path, closing)
}

func (m *Manifest) checkAcyclic() error {
	_, err := m.CollectDependencies(m.bundles...)
	return err
}
