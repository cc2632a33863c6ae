package core

// DBOrdering is a single ORDER BY term, expressed storage-agnostically so
// API bindings can pass orderings down to repositories.
type DBOrdering struct {
	Field     string
	Ascending bool
}

func (ord DBOrdering) String() string {
	direction := "DESC"
	if ord.Ascending {
		direction = "ASC"
	}
	return ord.Field + " " + direction
}
