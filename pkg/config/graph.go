package config

import (
	"strings"
)

// ExecutionOrder returns endpoint names so that every driving endpoint is
// fetched before the endpoints it constrains. Independent endpoints keep
// their declaration order.
func (p *Pipeline) ExecutionOrder() ([]string, error) {
	position := make(map[string]int, len(p.Endpoints))
	for i, ep := range p.Endpoints {
		position[ep.Name] = i
	}

	indegree := make([]int, len(p.Endpoints))
	dependents := make([][]int, len(p.Endpoints))
	for i, ep := range p.Endpoints {
		if ep.DrivingSource == nil {
			continue
		}
		parent, ok := position[ep.DrivingSource.Endpoint]
		if !ok {
			return nil, configErr("endpoints", "endpoint %q depends on unknown endpoint %q", ep.Name, ep.DrivingSource.Endpoint)
		}
		indegree[i]++
		dependents[parent] = append(dependents[parent], i)
	}

	// Kahn's algorithm; always taking the lowest ready index keeps the
	// result stable with respect to declaration order.
	ready := make([]bool, len(p.Endpoints))
	for i, d := range indegree {
		ready[i] = d == 0
	}
	order := make([]string, 0, len(p.Endpoints))
	for len(order) < len(p.Endpoints) {
		next := -1
		for i, r := range ready {
			if r {
				next = i
				break
			}
		}
		if next < 0 {
			return nil, configErr("endpoints", "dependency cycle among %s", strings.Join(p.unordered(order), ", "))
		}
		ready[next] = false
		order = append(order, p.Endpoints[next].Name)
		for _, child := range dependents[next] {
			indegree[child]--
			if indegree[child] == 0 {
				ready[child] = true
			}
		}
	}
	return order, nil
}

func (p *Pipeline) unordered(done []string) []string {
	finished := make(map[string]bool, len(done))
	for _, n := range done {
		finished[n] = true
	}
	var rest []string
	for _, ep := range p.Endpoints {
		if !finished[ep.Name] {
			rest = append(rest, ep.Name)
		}
	}
	return rest
}
