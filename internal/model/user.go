package model

import "time"

// Roles accepted by the system. A record's role decides which profile fields
// are mandatory: drivers must carry a bus number and a mobile number.
const (
	RoleDriver  = "driver"
	RoleStudent = "student"
	RoleAdmin   = "admin"
)

// Locations a shuttle/driver can report. Campus is the default for new
// accounts.
const (
	LocationCampus   = "Campus"
	LocationHostel   = "Hostel"
	LocationOnTheWay = "On the Way"
)

// User mirrors the 'users' table. One row per identity. PasswordHash is nil
// for accounts created through federated login only; GoogleID is nil until a
// Google identity has been linked. Optional columns map to pointers.
type User struct {
	ID              uint64
	Name            string
	Email           string
	PasswordHash    *string
	Role            string
	BusNumber       *string
	MobileNumber    *string
	CurrentLocation string
	IsActive        bool
	LastLogin       time.Time
	GoogleID        *string
	ProfilePicture  *string
	EmailVerified   bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// SafeUser is the only user shape that crosses the service boundary. It has
// no password hash field at all, so redaction cannot be forgotten at a call
// site. JSON tags match what the web client stores in its session snapshot.
type SafeUser struct {
	ID              uint64    `json:"id"`
	Name            string    `json:"name"`
	Email           string    `json:"email"`
	Role            string    `json:"role"`
	BusNumber       string    `json:"busNumber,omitempty"`
	MobileNumber    string    `json:"mobileNumber,omitempty"`
	CurrentLocation string    `json:"currentLocation"`
	IsActive        bool      `json:"isActive"`
	LastLogin       time.Time `json:"lastLogin"`
	GoogleID        string    `json:"googleId,omitempty"`
	ProfilePicture  string    `json:"profilePicture,omitempty"`
	EmailVerified   bool      `json:"emailVerified"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// Safe strips credential material from the record.
func (u User) Safe() SafeUser {
	return SafeUser{
		ID:              u.ID,
		Name:            u.Name,
		Email:           u.Email,
		Role:            u.Role,
		BusNumber:       deref(u.BusNumber),
		MobileNumber:    deref(u.MobileNumber),
		CurrentLocation: u.CurrentLocation,
		IsActive:        u.IsActive,
		LastLogin:       u.LastLogin,
		GoogleID:        deref(u.GoogleID),
		ProfilePicture:  deref(u.ProfilePicture),
		EmailVerified:   u.EmailVerified,
		CreatedAt:       u.CreatedAt,
		UpdatedAt:       u.UpdatedAt,
	}
}

// HasPassword reports whether password authentication is enabled for the
// record.
func (u User) HasPassword() bool {
	return u.PasswordHash != nil && *u.PasswordHash != ""
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
