package models

// Account is a registered user. Email and ID never change after creation;
// SessionToken and ResetToken are nil when absent.
type Account struct {
	ID             int64
	Email          string
	CredentialHash []byte
	SessionToken   *string
	ResetToken     *string
}

// HasSession reports whether a live session token is stored.
func (a *Account) HasSession() bool {
	return a != nil && a.SessionToken != nil && *a.SessionToken != ""
}
