package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/B00147423/GuessIO/auth"
	"github.com/B00147423/GuessIO/crypto"
)

// UserStore is the Postgres implementation of auth.Store. Upsert is a single
// statement, so a failed write leaves the row untouched. With a Cipher set,
// OAuth tokens are sealed before they reach the table and opened on read.
type UserStore struct {
	DB     *sql.DB
	Cipher *crypto.TokenCipher
}

func NewUserStore(db *sql.DB) *UserStore { return &UserStore{DB: db} }

// NewEncryptedUserStore returns a store that keeps OAuth tokens encrypted at
// rest under the given cipher.
func NewEncryptedUserStore(db *sql.DB, cipher *crypto.TokenCipher) *UserStore {
	return &UserStore{DB: db, Cipher: cipher}
}

const userColumns = `id, twitch_id, username, COALESCE(profile_image, ''), COALESCE(oauth_token, '')`

// FindByTwitchID returns the user with the given Twitch id, or (nil, nil).
func (s *UserStore) FindByTwitchID(ctx context.Context, twitchID string) (*auth.User, error) {
	row := s.DB.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE twitch_id = $1`, twitchID)
	return s.scanUser(row)
}

// FindByID returns the user with the given internal id, or (nil, nil).
func (s *UserStore) FindByID(ctx context.Context, id int64) (*auth.User, error) {
	row := s.DB.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return s.scanUser(row)
}

// Upsert inserts u or, when the twitch id already exists, updates the mutable
// fields. The stored row is returned with its internal id.
func (s *UserStore) Upsert(ctx context.Context, u *auth.User) (*auth.User, error) {
	token := u.OAuthToken
	if s.Cipher != nil {
		sealed, err := s.Cipher.Seal(token)
		if err != nil {
			return nil, fmt.Errorf("seal oauth token for %s: %w", u.TwitchID, err)
		}
		token = sealed
	}
	row := s.DB.QueryRowContext(ctx,
		`INSERT INTO users (twitch_id, username, profile_image, oauth_token, updated_at)
		 VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), NOW())
		 ON CONFLICT (twitch_id) DO UPDATE SET
		   username = EXCLUDED.username,
		   profile_image = EXCLUDED.profile_image,
		   oauth_token = EXCLUDED.oauth_token,
		   updated_at = NOW()
		 RETURNING `+userColumns,
		u.TwitchID, u.Username, u.ProfileImage, token)
	saved, err := s.scanUser(row)
	if err != nil {
		return nil, fmt.Errorf("upsert user %s: %w", u.TwitchID, err)
	}
	if saved == nil {
		return nil, fmt.Errorf("upsert user %s: no row returned", u.TwitchID)
	}
	return saved, nil
}

func (s *UserStore) scanUser(row *sql.Row) (*auth.User, error) {
	var u auth.User
	err := row.Scan(&u.ID, &u.TwitchID, &u.Username, &u.ProfileImage, &u.OAuthToken)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if s.Cipher != nil && u.OAuthToken != "" {
		opened, err := s.Cipher.Open(u.OAuthToken)
		if err != nil {
			// Rows written before encryption was enabled hold plaintext.
			return &u, nil
		}
		u.OAuthToken = opened
	}
	return &u, nil
}
