package models

// AuthorityContext is the acting principal's resolved capability set for one
// request. Manager, HR and CEO are derived claims recomputed on every
// authorization check, never read from stored roles.
type AuthorityContext struct {
	Employee Employee `json:"employee"`
	Role     UserRole `json:"role"`

	Manager bool `json:"manager"`
	HR      bool `json:"hr"`
	CEO     bool `json:"ceo"`
}

// Admin reports whether the principal carries the stored administrator role.
func (a AuthorityContext) Admin() bool {
	return a.Role == RoleAdmin
}

// CanReview reports whether the principal may act in the manager review lane.
func (a AuthorityContext) CanReview() bool {
	return a.Manager || a.Admin()
}
