package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/kurihiro0119/syscope/internal/domain"
	apperrors "github.com/kurihiro0119/syscope/internal/errors"
	"github.com/kurihiro0119/syscope/internal/storage"
)

// sqliteStorage implements the Storage interface for SQLite
type sqliteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage creates a new SQLite storage instance
func NewSQLiteStorage(dbPath string) (storage.Storage, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}

	s := &sqliteStorage{db: db}
	if err := s.Migrate(context.Background()); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

// Migrate runs database migrations
func (s *sqliteStorage) Migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		uid TEXT PRIMARY KEY,
		github_id INTEGER NOT NULL UNIQUE,
		login TEXT NOT NULL,
		name TEXT,
		email TEXT,
		avatar_url TEXT NOT NULL DEFAULT '',
		provider TEXT NOT NULL DEFAULT 'github',
		github_token TEXT NOT NULL DEFAULT '',
		session_epoch INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL,
		last_login_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS repositories (
		id TEXT PRIMARY KEY,
		repo_id INTEGER NOT NULL,
		name TEXT NOT NULL,
		full_name TEXT NOT NULL,
		html_url TEXT NOT NULL,
		description TEXT,
		owner_uid TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL,
		UNIQUE (owner_uid, repo_id)
	);

	CREATE INDEX IF NOT EXISTS idx_repositories_owner_created ON repositories(owner_uid, created_at);

	CREATE TABLE IF NOT EXISTS organisations (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		description TEXT,
		owner_id TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL,
		UNIQUE (owner_id, name)
	);

	CREATE INDEX IF NOT EXISTS idx_organisations_owner_created ON organisations(owner_id, created_at);

	CREATE TABLE IF NOT EXISTS members (
		id TEXT PRIMARY KEY,
		login TEXT NOT NULL UNIQUE,
		avatar_url TEXT NOT NULL DEFAULT '',
		html_url TEXT NOT NULL DEFAULT '',
		first_seen_at TIMESTAMP NOT NULL
	);
	`

	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// EnsureUser creates the user on first login and refreshes the profile,
// token and last login time on every later one
func (s *sqliteStorage) EnsureUser(ctx context.Context, user *domain.User) (*domain.User, error) {
	now := time.Now().UTC()
	query := `
		INSERT INTO users (uid, github_id, login, name, email, avatar_url, provider, github_token, created_at, last_login_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (github_id) DO UPDATE SET
			login = excluded.login,
			name = excluded.name,
			email = excluded.email,
			avatar_url = excluded.avatar_url,
			github_token = excluded.github_token,
			last_login_at = excluded.last_login_at
	`
	_, err := s.db.ExecContext(ctx, query,
		uuid.NewString(),
		user.GitHubID,
		user.Login,
		user.Name,
		user.Email,
		user.AvatarURL,
		provider(user.Provider),
		user.GitHubToken,
		now,
		now,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to save user: %w", err)
	}

	return s.scanUser(s.db.QueryRowContext(ctx, userSelect+` WHERE github_id = ?`, user.GitHubID))
}

// GetUser retrieves a user by uid
func (s *sqliteStorage) GetUser(ctx context.Context, uid string) (*domain.User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx, userSelect+` WHERE uid = ?`, uid))
}

// ListUsers retrieves every user, oldest first
func (s *sqliteStorage) ListUsers(ctx context.Context) ([]*domain.User, error) {
	rows, err := s.db.QueryContext(ctx, userSelect+` ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := []*domain.User{}
	for rows.Next() {
		u, err := s.scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}

	return users, rows.Err()
}

// ClearUserToken forgets the stored GitHub token of a user and bumps the
// session epoch so earlier session tokens stop working
func (s *sqliteStorage) ClearUserToken(ctx context.Context, uid string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE users SET github_token = '', session_epoch = session_epoch + 1 WHERE uid = ?`, uid)
	if err != nil {
		return err
	}
	return requireAffected(res, "user")
}

const userSelect = `
	SELECT uid, github_id, login, name, email, avatar_url, provider, github_token, session_epoch, created_at, last_login_at
	FROM users`

type scanner interface {
	Scan(dest ...any) error
}

func (s *sqliteStorage) scanUser(row scanner) (*domain.User, error) {
	var u domain.User
	var name, email sql.NullString

	err := row.Scan(&u.UID, &u.GitHubID, &u.Login, &name, &email, &u.AvatarURL, &u.Provider, &u.GitHubToken, &u.SessionEpoch, &u.CreatedAt, &u.LastLoginAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFoundError("user")
	}
	if err != nil {
		return nil, err
	}

	u.Name = nullableString(name)
	u.Email = nullableString(email)
	return &u, nil
}

// SaveRepository registers a repository for its owner. Registering the same
// GitHub repository twice returns a conflict error.
func (s *sqliteStorage) SaveRepository(ctx context.Context, repo *domain.RepoRegistration) error {
	id := repo.ID
	if id == "" {
		id = uuid.NewString()
	}
	createdAt := repo.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	createdAt = createdAt.UTC()

	query := `
		INSERT INTO repositories (id, repo_id, name, full_name, html_url, description, owner_uid, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (owner_uid, repo_id) DO NOTHING
	`
	res, err := s.db.ExecContext(ctx, query,
		id,
		repo.RepoID,
		repo.Name,
		repo.FullName,
		repo.HTMLURL,
		repo.Description,
		repo.OwnerUID,
		createdAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save repository: %w", err)
	}

	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return apperrors.NewConflictError(fmt.Sprintf("repository %s", repo.FullName))
	}

	repo.ID = id
	repo.CreatedAt = createdAt
	return nil
}

// GetRepositories retrieves the repositories registered by an owner, newest first
func (s *sqliteStorage) GetRepositories(ctx context.Context, ownerUID string) ([]*domain.RepoRegistration, error) {
	query := `
		SELECT id, repo_id, name, full_name, html_url, description, owner_uid, created_at
		FROM repositories
		WHERE owner_uid = ?
		ORDER BY created_at DESC, id
	`
	rows, err := s.db.QueryContext(ctx, query, ownerUID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	repos := []*domain.RepoRegistration{}
	for rows.Next() {
		r, err := scanRepository(rows)
		if err != nil {
			return nil, err
		}
		repos = append(repos, r)
	}

	return repos, rows.Err()
}

// GetRepository retrieves one registered repository of an owner
func (s *sqliteStorage) GetRepository(ctx context.Context, ownerUID, id string) (*domain.RepoRegistration, error) {
	query := `
		SELECT id, repo_id, name, full_name, html_url, description, owner_uid, created_at
		FROM repositories
		WHERE owner_uid = ? AND id = ?
	`
	r, err := scanRepository(s.db.QueryRowContext(ctx, query, ownerUID, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFoundError("repository")
	}
	return r, err
}

// DeleteRepository removes a registration of an owner
func (s *sqliteStorage) DeleteRepository(ctx context.Context, ownerUID, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM repositories WHERE owner_uid = ? AND id = ?`, ownerUID, id)
	if err != nil {
		return err
	}
	return requireAffected(res, "repository")
}

func scanRepository(row scanner) (*domain.RepoRegistration, error) {
	var r domain.RepoRegistration
	var description sql.NullString

	if err := row.Scan(&r.ID, &r.RepoID, &r.Name, &r.FullName, &r.HTMLURL, &description, &r.OwnerUID, &r.CreatedAt); err != nil {
		return nil, err
	}
	r.Description = nullableString(description)
	return &r, nil
}

// CreateOrganisation stores a new organisation. An owner cannot have two
// organisations with the same name.
func (s *sqliteStorage) CreateOrganisation(ctx context.Context, org *domain.Organisation) error {
	id := org.ID
	if id == "" {
		id = uuid.NewString()
	}
	createdAt := org.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	createdAt = createdAt.UTC()

	query := `
		INSERT INTO organisations (id, name, description, owner_id, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (owner_id, name) DO NOTHING
	`
	res, err := s.db.ExecContext(ctx, query, id, org.Name, org.Description, org.OwnerID, createdAt)
	if err != nil {
		return fmt.Errorf("failed to create organisation: %w", err)
	}

	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return apperrors.NewConflictError(fmt.Sprintf("organisation %q", org.Name))
	}

	org.ID = id
	org.CreatedAt = createdAt
	return nil
}

// GetOrganisations retrieves the organisations of an owner, newest first
func (s *sqliteStorage) GetOrganisations(ctx context.Context, ownerID string) ([]*domain.Organisation, error) {
	query := `
		SELECT id, name, description, owner_id, created_at
		FROM organisations
		WHERE owner_id = ?
		ORDER BY created_at DESC, id
	`
	rows, err := s.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	orgs := []*domain.Organisation{}
	for rows.Next() {
		o, err := scanOrganisation(rows)
		if err != nil {
			return nil, err
		}
		orgs = append(orgs, o)
	}

	return orgs, rows.Err()
}

// GetOrganisation retrieves one organisation of an owner
func (s *sqliteStorage) GetOrganisation(ctx context.Context, ownerID, id string) (*domain.Organisation, error) {
	query := `
		SELECT id, name, description, owner_id, created_at
		FROM organisations
		WHERE owner_id = ? AND id = ?
	`
	o, err := scanOrganisation(s.db.QueryRowContext(ctx, query, ownerID, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFoundError("organisation")
	}
	return o, err
}

// CountOrganisations counts the organisations of an owner
func (s *sqliteStorage) CountOrganisations(ctx context.Context, ownerID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM organisations WHERE owner_id = ?`, ownerID).Scan(&count)
	return count, err
}

func scanOrganisation(row scanner) (*domain.Organisation, error) {
	var o domain.Organisation
	var description sql.NullString

	if err := row.Scan(&o.ID, &o.Name, &description, &o.OwnerID, &o.CreatedAt); err != nil {
		return nil, err
	}
	o.Description = nullableString(description)
	return &o, nil
}

// SaveMemberIfAbsent inserts a member unless one with the same login exists.
// It reports whether a row was inserted.
func (s *sqliteStorage) SaveMemberIfAbsent(ctx context.Context, member *domain.Member) (bool, error) {
	id := uuid.NewString()
	seen := member.FirstSeenAt
	if seen.IsZero() {
		seen = time.Now()
	}

	query := `
		INSERT INTO members (id, login, avatar_url, html_url, first_seen_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (login) DO NOTHING
	`
	res, err := s.db.ExecContext(ctx, query, id, member.Login, member.AvatarURL, member.HTMLURL, seen.UTC())
	if err != nil {
		return false, fmt.Errorf("failed to save member %s: %w", member.Login, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 0 {
		return false, nil
	}

	member.ID = id
	member.FirstSeenAt = seen.UTC()
	return true, nil
}

// GetMembers retrieves every member in the order they were first seen
func (s *sqliteStorage) GetMembers(ctx context.Context) ([]*domain.Member, error) {
	query := `
		SELECT id, login, avatar_url, html_url, first_seen_at
		FROM members
		ORDER BY first_seen_at, login
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	members := []*domain.Member{}
	for rows.Next() {
		var m domain.Member
		if err := rows.Scan(&m.ID, &m.Login, &m.AvatarURL, &m.HTMLURL, &m.FirstSeenAt); err != nil {
			return nil, err
		}
		members = append(members, &m)
	}

	return members, rows.Err()
}

// CountMembers counts every member
func (s *sqliteStorage) CountMembers(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM members`).Scan(&count)
	return count, err
}

// Close closes the database connection
func (s *sqliteStorage) Close() error {
	return s.db.Close()
}

func requireAffected(res sql.Result, resource string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return apperrors.NewNotFoundError(resource)
	}
	return nil
}

func nullableString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	return &ns.String
}

func provider(p string) string {
	if p == "" {
		return "github"
	}
	return p
}
