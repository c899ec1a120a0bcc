package store

import (
	"context"
	"fmt"
	"time"

	"github.com/CoderLord25/ZenSocial/internal/earnings"
	"github.com/CoderLord25/ZenSocial/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// --- Earnings operations ---

// EngagementTotals sums the counters over all posts of userID.
func (s *Store) EngagementTotals(ctx context.Context, userID int64) (earnings.Totals, error) {
	var t earnings.Totals
	err := s.DB.WithContext(ctx).
		Model(&models.Post{}).
		Select("COALESCE(SUM(likes), 0) AS likes, COALESCE(SUM(comments), 0) AS comments, COALESCE(SUM(shares), 0) AS reposts").
		Where("user_id = ?", userID).
		Scan(&t).Error
	if err != nil {
		logg.Error("store", "Failed to sum engagement", err)
		return earnings.Totals{}, fmt.Errorf("sum engagement: %w", err)
	}
	return t, nil
}

// SnapshotEarnings recomputes and persists one earnings row per post of
// userID, replacing the previous snapshot of each post.
func (s *Store) SnapshotEarnings(ctx context.Context, userID int64) ([]models.EarningsRecord, error) {
	var records []models.EarningsRecord

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var posts []models.Post
		if err := tx.Where("user_id = ?", userID).Order("id ASC").Find(&posts).Error; err != nil {
			return fmt.Errorf("list posts: %w", err)
		}
		if len(posts) == 0 {
			return nil
		}

		now := time.Now().UTC()
		records = make([]models.EarningsRecord, 0, len(posts))
		for _, p := range posts {
			t := earnings.Totals{Likes: p.Likes, Comments: p.Comments, Reposts: p.Shares}
			records = append(records, models.EarningsRecord{
				PostID:      p.ID,
				UserID:      userID,
				Likes:       t.Likes,
				Comments:    t.Comments,
				Reposts:     t.Reposts,
				AmountCents: int64(earnings.Estimate(t)),
				ComputedAt:  now,
			})
		}

		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "post_id"}, {Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"likes", "comments", "reposts", "amount_cents", "computed_at"}),
		}).Create(&records).Error
	})
	if err != nil {
		logg.Error("store", "Failed to snapshot earnings", err)
		return nil, fmt.Errorf("snapshot earnings: %w", err)
	}
	return records, nil
}
