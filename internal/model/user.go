package model

// User is the authenticated operator behind an admin request.
type User struct {
	Email string
}
