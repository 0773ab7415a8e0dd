package database

import (
	"context"
	"database/sql"
	"fmt"
)

// schema is applied in order; every statement is idempotent.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id            BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		email         VARCHAR(255) NOT NULL UNIQUE,
		password_hash VARCHAR(255) NOT NULL,
		role          ENUM('ADMIN','OFFICER') NOT NULL,
		is_active     TINYINT(1) NOT NULL DEFAULT 1,
		created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS refresh_tokens (
		id         BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		user_id    BIGINT UNSIGNED NOT NULL,
		token_hash CHAR(64) NOT NULL UNIQUE,
		expires_at DATETIME NOT NULL,
		revoked_at DATETIME NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		KEY idx_refresh_user (user_id),
		CONSTRAINT fk_refresh_user FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS courses (
		id                   BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		name                 VARCHAR(255) NOT NULL,
		department           VARCHAR(255) NOT NULL,
		level                VARCHAR(64) NOT NULL DEFAULT '',
		total_seats          INT NOT NULL,
		available_seats      INT NOT NULL,
		eligibility_criteria TEXT NULL,
		fees_paise           BIGINT NOT NULL DEFAULT 0,
		created_at           DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at           DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		KEY idx_courses_department (department),
		CONSTRAINT chk_course_seats CHECK (available_seats >= 0 AND available_seats <= total_seats)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS applications (
		id                       BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		student_name             VARCHAR(255) NOT NULL,
		email                    VARCHAR(255) NOT NULL,
		phone                    VARCHAR(32) NOT NULL DEFAULT '',
		is_draft                 TINYINT(1) NOT NULL DEFAULT 1,
		status                   ENUM('pending','approved','rejected') NOT NULL DEFAULT 'pending',
		officer_verified         TINYINT(1) NULL,
		interview_date           DATETIME NULL,
		selection_status         ENUM('selected','waitlisted','rejected') NULL,
		payment_status           ENUM('none','pending','paid') NOT NULL DEFAULT 'none',
		payment_amount_paise     BIGINT NULL,
		payment_date             DATETIME NULL,
		gateway_order_id         VARCHAR(128) NULL,
		gateway_payment_id       VARCHAR(128) NULL,
		gateway_signature        VARCHAR(255) NULL,
		course_preference_1      BIGINT UNSIGNED NULL,
		course_preference_2      BIGINT UNSIGNED NULL,
		course_preference_3      BIGINT UNSIGNED NULL,
		photo_path               VARCHAR(512) NULL,
		signature_path           VARCHAR(512) NULL,
		marksheet10_path         VARCHAR(512) NULL,
		marksheet12_path         VARCHAR(512) NULL,
		entrance_card_path       VARCHAR(512) NULL,
		id_proof_path            VARCHAR(512) NULL,
		admission_letter_path    VARCHAR(512) NULL,
		admission_letter_sent_at DATETIME NULL,
		last_notification        TEXT NULL,
		last_notification_at     DATETIME NULL,
		created_at               DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at               DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		KEY idx_applications_email (email),
		KEY idx_applications_queue (is_draft, status, officer_verified),
		CONSTRAINT fk_app_pref1 FOREIGN KEY (course_preference_1) REFERENCES courses(id),
		CONSTRAINT fk_app_pref2 FOREIGN KEY (course_preference_2) REFERENCES courses(id),
		CONSTRAINT fk_app_pref3 FOREIGN KEY (course_preference_3) REFERENCES courses(id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS seat_allocations (
		application_id BIGINT UNSIGNED NOT NULL PRIMARY KEY,
		course_id      BIGINT UNSIGNED NOT NULL,
		allocated_at   DATETIME NOT NULL,
		KEY idx_alloc_course (course_id),
		CONSTRAINT fk_alloc_app FOREIGN KEY (application_id) REFERENCES applications(id) ON DELETE CASCADE,
		CONSTRAINT fk_alloc_course FOREIGN KEY (course_id) REFERENCES courses(id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS additional_documents (
		id             BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		application_id BIGINT UNSIGNED NOT NULL,
		reason         TEXT NOT NULL,
		status         ENUM('requested','uploaded') NOT NULL DEFAULT 'requested',
		file_path      VARCHAR(512) NULL,
		created_at     DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		uploaded_at    DATETIME NULL,
		KEY idx_docs_application (application_id),
		CONSTRAINT fk_docs_app FOREIGN KEY (application_id) REFERENCES applications(id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

// Migrate creates any missing table.
func Migrate(ctx context.Context, db *sql.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate step %d: %w", i+1, err)
		}
	}
	return nil
}
