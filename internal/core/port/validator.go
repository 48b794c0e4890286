package port

// QueryValidator checks a compiled rule query before execution.
type QueryValidator interface {
	Validate(sql string) error
}
