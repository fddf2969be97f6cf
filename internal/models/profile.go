package models

// Profile describes the practice the firm operates: who the supervising
// user is, where they are authorized, and what the tool is meant to help
// with. It rides along in snapshots so a restored data set carries its
// own practice context.
type Profile struct {
	UserRole      string   `json:"user_role"`
	Jurisdictions []string `json:"jurisdictions"`
	AreasOfLaw    []string `json:"areas_of_law,omitempty"`
	Skills        []string `json:"skills,omitempty"`
}

// AuthorizedIn reports whether the profile covers the given jurisdiction.
func (p Profile) AuthorizedIn(jurisdiction string) bool {
	for _, j := range p.Jurisdictions {
		if j == jurisdiction {
			return true
		}
	}
	return false
}
