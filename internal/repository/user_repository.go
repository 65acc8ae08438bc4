package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/shuttletrack/api/internal/model"
)

type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

const userColumns = "id,name,email,password_hash,role,bus_number,mobile_number,current_location,is_active,last_login,google_id,profile_picture,email_verified,created_at,updated_at"

// ProfileUpdate carries the mutable profile fields. Only non-nil fields are
// written.
type ProfileUpdate struct {
	Name            *string
	BusNumber       *string
	MobileNumber    *string
	CurrentLocation *string
	ProfilePicture  *string
}

// GoogleLink carries the fields asserted by the federated provider that are
// persisted on login: the provider id itself plus profile hints.
// EmailVerified is a one-way latch: a true assertion sets the column, a
// false one leaves it alone.
type GoogleLink struct {
	GoogleID       string
	ProfilePicture *string
	EmailVerified  bool
}

// Create inserts the record and returns its ID. The caller hashes the
// password beforehand; this layer never sees plaintext.
func (r *UserRepo) Create(ctx context.Context, u model.User) (uint64, error) {
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	res, err := r.DB.ExecContext(ctx,
		`INSERT INTO users
		 (name,email,password_hash,role,bus_number,mobile_number,current_location,is_active,last_login,google_id,profile_picture,email_verified)
		 VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`,
		u.Name, u.Email, u.PasswordHash, u.Role, u.BusNumber, u.MobileNumber,
		u.CurrentLocation, u.IsActive, u.LastLogin, u.GoogleID, u.ProfilePicture, u.EmailVerified)
	if err != nil {
		return 0, mapDuplicate(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return r.getOne(ctx, "SELECT "+userColumns+" FROM users WHERE email=? LIMIT 1", email)
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (model.User, error) {
	return r.getOne(ctx, "SELECT "+userColumns+" FROM users WHERE id=? LIMIT 1", id)
}

// GetByGoogleID fetches the user linked to a Google identity.
func (r *UserRepo) GetByGoogleID(ctx context.Context, googleID string) (model.User, error) {
	return r.getOne(ctx, "SELECT "+userColumns+" FROM users WHERE google_id=? LIMIT 1", googleID)
}

// UpdateProfile applies the non-nil fields of upd. A call with nothing set
// is a no-op.
func (r *UserRepo) UpdateProfile(ctx context.Context, id uint64, upd ProfileUpdate) error {
	sets := make([]string, 0, 5)
	args := make([]interface{}, 0, 6)
	add := func(col string, v *string) {
		if v != nil {
			sets = append(sets, col+"=?")
			args = append(args, *v)
		}
	}
	add("name", upd.Name)
	add("bus_number", upd.BusNumber)
	add("mobile_number", upd.MobileNumber)
	add("current_location", upd.CurrentLocation)
	add("profile_picture", upd.ProfilePicture)
	if len(sets) == 0 {
		return nil
	}
	args = append(args, id)
	_, err := r.DB.ExecContext(ctx,
		"UPDATE users SET "+strings.Join(sets, ",")+" WHERE id=?", args...)
	if err != nil {
		return mapDuplicate(err)
	}
	return nil
}

// TouchLastLogin records a successful authentication.
func (r *UserRepo) TouchLastLogin(ctx context.Context, id uint64, at time.Time) error {
	_, err := r.DB.ExecContext(ctx, "UPDATE users SET last_login=? WHERE id=?", at, id)
	return err
}

// SyncGoogle links or refreshes the federated identity on a record: sets
// google_id and whatever profile fields the provider newly asserted.
func (r *UserRepo) SyncGoogle(ctx context.Context, id uint64, link GoogleLink) error {
	sets := []string{"google_id=?"}
	args := []interface{}{link.GoogleID}
	if link.EmailVerified {
		sets = append(sets, "email_verified=TRUE")
	}
	if link.ProfilePicture != nil {
		sets = append(sets, "profile_picture=?")
		args = append(args, *link.ProfilePicture)
	}
	args = append(args, id)
	_, err := r.DB.ExecContext(ctx,
		"UPDATE users SET "+strings.Join(sets, ",")+" WHERE id=?", args...)
	if err != nil {
		return mapDuplicate(err)
	}
	return nil
}

// SetActive flips the deactivation switch. Every authentication path checks
// is_active, so a false value blocks logins immediately.
func (r *UserRepo) SetActive(ctx context.Context, id uint64, active bool) error {
	_, err := r.DB.ExecContext(ctx, "UPDATE users SET is_active=? WHERE id=?", active, id)
	return err
}

func (r *UserRepo) getOne(ctx context.Context, query string, arg interface{}) (model.User, error) {
	var u model.User
	err := r.DB.QueryRowContext(ctx, query, arg).Scan(
		&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Role, &u.BusNumber,
		&u.MobileNumber, &u.CurrentLocation, &u.IsActive, &u.LastLogin,
		&u.GoogleID, &u.ProfilePicture, &u.EmailVerified, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.User{}, ErrNotFound
	}
	return u, err
}

// mapDuplicate translates MySQL duplicate-key failures (error 1062) into the
// package sentinels, keyed on which unique index tripped.
func mapDuplicate(err error) error {
	msg := strings.ToLower(err.Error())
	if !strings.Contains(msg, "1062") {
		return err
	}
	if strings.Contains(msg, "google_id") {
		return ErrGoogleIDExists
	}
	return ErrEmailExists
}
