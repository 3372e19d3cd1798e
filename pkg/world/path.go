package world

import "fmt"

// ShortestPath returns the go-commands leading from one room to another.
// Neighbours are explored in Directions order, so equal-length routes always
// resolve the same way.
func (m *Map) ShortestPath(from, to string) ([]Command, error) {
	if _, ok := m.rooms[from]; !ok {
		return nil, fmt.Errorf("%w: unknown room %q", ErrUnknownTarget, from)
	}
	if _, ok := m.rooms[to]; !ok {
		return nil, fmt.Errorf("%w: unknown room %q", ErrUnknownTarget, to)
	}
	if from == to {
		return nil, nil
	}

	type step struct {
		prev string
		dir  string
	}
	visited := map[string]step{from: {}}
	queue := []string{from}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur == to {
			break
		}
		for _, dir := range Directions {
			next, ok := m.rooms[cur].Exits[dir]
			if !ok {
				continue
			}
			if _, seen := visited[next]; seen {
				continue
			}
			visited[next] = step{prev: cur, dir: dir}
			queue = append(queue, next)
		}
	}
	if _, ok := visited[to]; !ok {
		return nil, fmt.Errorf("no route from %q to %q", from, to)
	}

	var rev []Command
	for cur := to; cur != from; cur = visited[cur].prev {
		rev = append(rev, Go(visited[cur].dir))
	}
	path := make([]Command, len(rev))
	for i := range rev {
		path[i] = rev[len(rev)-1-i]
	}
	return path, nil
}

// Distance is the length of the shortest route between two rooms.
func (m *Map) Distance(from, to string) (int, error) {
	p, err := m.ShortestPath(from, to)
	if err != nil {
		return 0, err
	}
	return len(p), nil
}
