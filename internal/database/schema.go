package database

import (
	"context"
	"database/sql"
)

// usersTable declares the credential store. The unique indexes on email and
// google_id are what serialize concurrent registrations: the losing insert
// fails with a duplicate-key error instead of corrupting the table.
const usersTable = `
CREATE TABLE IF NOT EXISTS users (
    id               BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
    name             VARCHAR(50)  NOT NULL,
    email            VARCHAR(255) NOT NULL,
    password_hash    VARCHAR(100) NULL,
    role             ENUM('driver','student','admin') NOT NULL DEFAULT 'driver',
    bus_number       VARCHAR(32)  NULL,
    mobile_number    VARCHAR(10)  NULL,
    current_location ENUM('Campus','Hostel','On the Way') NOT NULL DEFAULT 'Campus',
    is_active        BOOLEAN      NOT NULL DEFAULT TRUE,
    last_login       DATETIME     NOT NULL,
    google_id        VARCHAR(64)  NULL,
    profile_picture  VARCHAR(512) NULL,
    email_verified   BOOLEAN      NOT NULL DEFAULT FALSE,
    created_at       DATETIME     NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at       DATETIME     NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
    UNIQUE KEY uniq_users_email (email),
    UNIQUE KEY uniq_users_google_id (google_id)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;
`

// EnsureSchema creates the users table when it does not exist yet.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, usersTable)
	return err
}
