package service

import "sort"

// prerequisiteGraph maps a course id to the ids it requires.
type prerequisiteGraph map[string][]string

// cycleFrom returns a path that starts and ends at the same course when one
// is reachable from start, or nil.
func (g prerequisiteGraph) cycleFrom(start string) []string {
	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[string]int, len(g))
	var path []string

	var visit func(id string) []string
	visit = func(id string) []string {
		switch state[id] {
		case visiting:
			for i, p := range path {
				if p == id {
					return append(append([]string(nil), path[i:]...), id)
				}
			}
			return []string{id, id}
		case done:
			return nil
		}
		state[id] = visiting
		path = append(path, id)
		next := append([]string(nil), g[id]...)
		sort.Strings(next)
		for _, prereq := range next {
			if cycle := visit(prereq); cycle != nil {
				return cycle
			}
		}
		path = path[:len(path)-1]
		state[id] = done
		return nil
	}
	return visit(start)
}
