package auth

// Credentials is a submitted or configured email/password pair. It is never
// persisted.
type Credentials struct {
	Email    string
	Password string
}

// CheckCredentials reports whether submitted exactly matches admin.
func CheckCredentials(admin, submitted Credentials) bool {
	return submitted.Email == admin.Email && submitted.Password == admin.Password
}
