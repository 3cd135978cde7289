package ledger

import "github.com/google/uuid"

// lockOrder returns a and b in ascending order by their canonical string
// form. Two concurrent transfers touching the same pair of accounts in
// opposite directions must acquire FOR UPDATE locks in the same order to
// avoid a deadlock (spec §4.3, "Ordering rule"); this is pulled out as a
// pure function so it can be unit tested without a database.
func lockOrder(a, b uuid.UUID) (first, second uuid.UUID) {
	if a.String() <= b.String() {
		return a, b
	}
	return b, a
}
