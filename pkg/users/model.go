package users

// User is a credential-store record. IDs and usernames are unique. The
// password hash is bcrypt; the plaintext password is never persisted.
type User struct {
	ID           int64
	Username     string
	PasswordHash string
	Role         string
}
