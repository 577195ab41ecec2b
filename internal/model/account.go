package model

// UserAccount is a registered local account.
//
// PasswordDigest is stored under the "password" key to stay compatible with
// data written by earlier versions; it never holds the plaintext.
type UserAccount struct {
	ID             int64   `json:"id"`
	FullName       string  `json:"fullName"`
	Email          string  `json:"email"`
	PasswordDigest string  `json:"password"`
	CreatedAt      string  `json:"createdAt"`
	LastLogin      *string `json:"lastLogin"`
}

// Session identifies the signed-in account. There is at most one per store.
type Session struct {
	UserID    int64  `json:"userId"`
	Email     string `json:"email"`
	FullName  string `json:"fullName"`
	LoginTime string `json:"loginTime"`
}
