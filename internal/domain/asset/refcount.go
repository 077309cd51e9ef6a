// Package asset tracks ownership of stored upload files shared by tasks and presets and
// unlinks a file once its last owner is gone.
package asset

// Ref lists the stored paths one owner holds.
type Ref struct {
	OwnerID string
	Paths   []string
}

// holds compares canonical forms. path must already be canonical.
func holds(ref Ref, path string) bool {
	for _, p := range ref.Paths {
		if canonical(p) == path {
			return true
		}
	}
	return false
}

// RefCount counts the owners across tasks and presets that hold path.
func RefCount(path string, tasks, presets []Ref) int {
	path = canonical(path)
	if path == "" {
		return 0
	}
	n := 0
	for _, t := range tasks {
		if holds(t, path) {
			n++
		}
	}
	for _, p := range presets {
		if holds(p, path) {
			n++
		}
	}
	return n
}

// AllRefCounts returns the reference count of every held path.
func AllRefCounts(tasks, presets []Ref) map[string]int {
	counts := make(map[string]int)
	count := func(refs []Ref) {
		for _, r := range refs {
			seen := make(map[string]struct{}, len(r.Paths))
			for _, p := range r.Paths {
				p = canonical(p)
				if _, dup := seen[p]; dup || p == "" {
					continue
				}
				seen[p] = struct{}{}
				counts[p]++
			}
		}
	}
	count(tasks)
	count(presets)
	return counts
}

// CanDelete reports whether path has no owner once excludeTaskID is disregarded.
func CanDelete(path string, tasks, presets []Ref, excludeTaskID string) bool {
	if excludeTaskID != "" {
		kept := make([]Ref, 0, len(tasks))
		for _, t := range tasks {
			if t.OwnerID != excludeTaskID {
				kept = append(kept, t)
			}
		}
		tasks = kept
	}
	return RefCount(path, tasks, presets) == 0
}
