package models

import "time"

type Role string

const (
	RoleAdmin Role = "ADMIN"
	RoleDonor Role = "DONOR"
	RoleUser  Role = "USER" // blood recipient
	RoleGuest Role = "GUEST"
)

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleDonor, RoleUser, RoleGuest:
		return true
	}
	return false
}

type UserStatus string

const (
	StatusActive  UserStatus = "Active"
	StatusBlocked UserStatus = "Blocked"
)

// Toggled returns the opposite status.
func (s UserStatus) Toggled() UserStatus {
	if s == StatusBlocked {
		return StatusActive
	}
	return StatusBlocked
}

// User is the stored account record.
type User struct {
	ID           string     `json:"id"`
	Username     string     `json:"username"`
	PasswordHash string     `json:"passwordHash"`
	Role         Role       `json:"role"`
	Name         string     `json:"name"`
	Email        string     `json:"email"`
	Phone        string     `json:"phone,omitempty"`
	BloodType    string     `json:"bloodType,omitempty"`
	Location     string     `json:"location,omitempty"`
	Verified     bool       `json:"verified"`
	Status       UserStatus `json:"status"`
	CreatedAt    time.Time  `json:"createdAt"`
}

// Identity is what clients see of a User; it never carries the password hash.
type Identity struct {
	ID        string     `json:"id"`
	Username  string     `json:"username"`
	Role      Role       `json:"role"`
	Name      string     `json:"name"`
	Email     string     `json:"email"`
	Phone     string     `json:"phone,omitempty"`
	BloodType string     `json:"bloodType,omitempty"`
	Location  string     `json:"location,omitempty"`
	Verified  bool       `json:"verified"`
	Status    UserStatus `json:"status"`
}

func (u User) Identity() Identity {
	return Identity{
		ID:        u.ID,
		Username:  u.Username,
		Role:      u.Role,
		Name:      u.Name,
		Email:     u.Email,
		Phone:     u.Phone,
		BloodType: u.BloodType,
		Location:  u.Location,
		Verified:  u.Verified,
		Status:    u.Status,
	}
}

// Registration is the profile submitted in the last signup step.
type Registration struct {
	Email     string `json:"email"`
	Role      Role   `json:"role"`
	Name      string `json:"name"`
	Username  string `json:"username"`
	Password  string `json:"password"`
	Phone     string `json:"phone,omitempty"`
	BloodType string `json:"bloodType,omitempty"`
	Location  string `json:"location,omitempty"`
}

// ProfileUpdate holds the fields a user may change on their own account.
// Nil fields are left untouched.
type ProfileUpdate struct {
	Name      *string `json:"name,omitempty"`
	Phone     *string `json:"phone,omitempty"`
	BloodType *string `json:"bloodType,omitempty"`
	Location  *string `json:"location,omitempty"`
}
