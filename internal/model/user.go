package model

// RoleAdministrator is the only role with special meaning: it gates
// account management and version publishing.
const RoleAdministrator = "Administrator"

// DefaultPassword is assigned to newly created accounts and restored
// by a password reset.
const DefaultPassword = "123"

// User is an authentication principal. The username doubles as the
// storage key and is case-sensitive. Passwords are stored and compared
// in plaintext; that reproduces the deployed system's behavior and is
// a documented weakness, not something this layer hides.
type User struct {
	Username string `gorm:"primaryKey;size:64" json:"username"`
	Password string `gorm:"size:128" json:"-"`
	FullName string `gorm:"size:128" json:"fullName"`
	Role     string `gorm:"size:32" json:"role"`

	// IsDefaultPassword is derived at login time and never persisted.
	IsDefaultPassword bool `gorm:"-" json:"isDefaultPassword,omitempty"`
}

// Public strips the credential fields, leaving the profile callers are
// allowed to see.
func (u User) Public() User {
	u.Password = ""
	return u
}
