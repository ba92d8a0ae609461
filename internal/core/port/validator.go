package port

// QueryValidator checks SQL that the admission gate already accepted.
type QueryValidator interface {
	Validate(sql string) error
}
