// Package scope resolves which companies a user is allowed to see.
package scope

// Scope is the set of company IDs visible to a user. The zero value is the
// empty scope, which must short-circuit list queries to empty results
// instead of producing an unfiltered query.
type Scope struct {
	all bool
	ids []int64
	set map[int64]struct{}
}

// Everything is the unrestricted scope (admins).
func Everything() Scope {
	return Scope{all: true}
}

// Of builds a restricted scope from the given company IDs, deduplicated.
func Of(ids []int64) Scope {
	set := make(map[int64]struct{}, len(ids))
	uniq := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := set[id]; ok {
			continue
		}
		set[id] = struct{}{}
		uniq = append(uniq, id)
	}
	return Scope{ids: uniq, set: set}
}

// IsAll reports whether the scope is unrestricted.
func (s Scope) IsAll() bool { return s.all }

// IsEmpty reports whether a restricted scope contains no companies.
func (s Scope) IsEmpty() bool { return !s.all && len(s.ids) == 0 }

// IDs returns the restricted ID list. Meaningless when IsAll.
func (s Scope) IDs() []int64 { return s.ids }

// Contains reports whether the company is visible.
func (s Scope) Contains(companyID int64) bool {
	if s.all {
		return true
	}
	_, ok := s.set[companyID]
	return ok
}
