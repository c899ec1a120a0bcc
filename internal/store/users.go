package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/CoderLord25/ZenSocial/internal/identity"
	"github.com/CoderLord25/ZenSocial/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// --- User operations ---

// CreateUser inserts a user for zenID. The insert is ignored on conflict and
// ErrUserExists is returned, so callers minting addresses can retry.
func (s *Store) CreateUser(ctx context.Context, zenID identity.ZenID) (*models.User, error) {
	user := models.User{ZenID: zenID.String()}
	res := s.DB.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&user)
	if res.Error != nil {
		logg.Error("store", "Failed to create user", res.Error)
		return nil, fmt.Errorf("create user: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrUserExists
	}

	logg.Info("store", "User created successfully with zenid="+zenID.String())
	return s.ResolveAccount(ctx, zenID)
}

// EnsureWalletUser returns the account owning wallet, provisioning one when
// the wallet is unknown. The bool reports whether an account was created.
func (s *Store) EnsureWalletUser(ctx context.Context, wallet identity.Wallet) (*models.User, bool, error) {
	var user *models.User
	created := false

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := findAccount(tx, wallet)
		if err == nil {
			user = existing
			return nil
		}
		if !errors.Is(err, ErrUserNotFound) {
			return err
		}

		w := wallet.String()
		row := models.User{
			ZenID:    w,
			Wallet:   &w,
			Username: identity.PlaceholderName(wallet),
		}
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&row)
		if res.Error != nil {
			return fmt.Errorf("create wallet user: %w", res.Error)
		}
		created = res.RowsAffected > 0

		// A ZenID equal to the wallet may already exist; attach the wallet to it.
		if !created {
			if err := tx.Model(&models.User{}).
				Where("zenid = ? AND wallet IS NULL", w).
				Update("wallet", w).Error; err != nil {
				return fmt.Errorf("attach wallet: %w", err)
			}
		}

		user, err = findAccount(tx, wallet)
		return err
	})
	if err != nil {
		logg.Error("store", "Failed to ensure wallet user", err)
		return nil, false, err
	}

	if created {
		logg.Info("store", "Wallet account provisioned for wallet="+wallet.String())
	}
	return user, created, nil
}

// ResolveAccount looks a user up by ZenID or by wallet depending on the
// identifier variant.
func (s *Store) ResolveAccount(ctx context.Context, id identity.AccountIdentifier) (*models.User, error) {
	return findAccount(s.DB.WithContext(ctx), id)
}

func findAccount(db *gorm.DB, id identity.AccountIdentifier) (*models.User, error) {
	var user models.User
	q := db.Model(&models.User{})
	switch v := id.(type) {
	case identity.ZenID:
		q = q.Where("zenid = ?", v.String())
	case identity.Wallet:
		q = q.Where("wallet = ?", v.String())
	default:
		return nil, fmt.Errorf("unsupported account identifier %T", id)
	}

	if err := q.Take(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("query user: %w", err)
	}
	return &user, nil
}

// UpdateProfile writes the non-nil fields of upd.
func (s *Store) UpdateProfile(ctx context.Context, userID int64, upd models.ProfileUpdate) error {
	fields := map[string]any{}
	if upd.Username != nil {
		fields["username"] = *upd.Username
	}
	if upd.Bio != nil {
		fields["bio"] = *upd.Bio
	}
	if upd.Avatar != nil {
		fields["avatar"] = *upd.Avatar
	}
	if upd.Cover != nil {
		fields["cover"] = *upd.Cover
	}
	if len(fields) == 0 {
		return nil
	}

	res := s.DB.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).Updates(fields)
	if res.Error != nil {
		logg.Error("store", "Failed to update profile", res.Error)
		return fmt.Errorf("update profile: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

// --- Session operations ---

func (s *Store) CreateSession(ctx context.Context, zenID string, ttl time.Duration) (*models.Session, error) {
	now := time.Now().UTC()
	sess := models.Session{
		Token:     uuid.NewString(),
		ZenID:     zenID,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}
	if err := s.DB.WithContext(ctx).Create(&sess).Error; err != nil {
		logg.Error("store", "Failed to create session", err)
		return nil, fmt.Errorf("create session: %w", err)
	}
	return &sess, nil
}

// GetSession returns a live session. Expired sessions are deleted and
// reported as ErrSessionNotFound.
func (s *Store) GetSession(ctx context.Context, token string) (*models.Session, error) {
	var sess models.Session
	err := s.DB.WithContext(ctx).Where("token = ?", token).Take(&sess).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("query session: %w", err)
	}

	if time.Now().UTC().After(sess.ExpiresAt) {
		_ = s.DeleteSession(ctx, token)
		return nil, ErrSessionNotFound
	}
	return &sess, nil
}

func (s *Store) DeleteSession(ctx context.Context, token string) error {
	if err := s.DB.WithContext(ctx).Where("token = ?", token).Delete(&models.Session{}).Error; err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (s *Store) DeleteExpiredSessions(ctx context.Context) (int64, error) {
	res := s.DB.WithContext(ctx).Where("expires_at < ?", time.Now().UTC()).Delete(&models.Session{})
	if res.Error != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", res.Error)
	}
	return res.RowsAffected, nil
}
