package services

// Record is anything with a stable identifier. An empty id means the record
// has not been assigned one yet.
type Record interface {
	RecordID() string
}

// Normalize appends the incoming records whose id is not already present.
// Existing records keep their position and content; records without an id
// are always appended.
func Normalize[T Record](existing, incoming []T) []T {
	out := make([]T, 0, len(existing)+len(incoming))
	seen := make(map[string]struct{}, len(existing)+len(incoming))
	for _, list := range [][]T{existing, incoming} {
		for _, r := range list {
			id := r.RecordID()
			if id != "" {
				if _, dup := seen[id]; dup {
					continue
				}
				seen[id] = struct{}{}
			}
			out = append(out, r)
		}
	}
	return out
}

// Dedupe keeps the first occurrence of each id.
func Dedupe[T Record](incoming []T) []T {
	return Normalize(nil, incoming)
}
