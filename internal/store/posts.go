package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/CoderLord25/ZenSocial/internal/identity"
	"github.com/CoderLord25/ZenSocial/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const postColumns = "posts.*, users.zenid, users.username, users.avatar"

// --- Post operations ---

// CreatePost inserts a post with zeroed counters and returns it with author fields.
func (s *Store) CreatePost(ctx context.Context, userID int64, content, media string) (*models.Post, error) {
	post := models.Post{UserID: userID, Content: content, Media: media}

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var exists int64
		if err := tx.Model(&models.User{}).Where("id = ?", userID).Count(&exists).Error; err != nil {
			return fmt.Errorf("check author: %w", err)
		}
		if exists == 0 {
			return ErrUserNotFound
		}
		if err := tx.Create(&post).Error; err != nil {
			return fmt.Errorf("insert post: %w", err)
		}
		return nil
	})
	if err != nil {
		if !errors.Is(err, ErrUserNotFound) {
			logg.Error("store", "Failed to add post", err)
		}
		return nil, err
	}

	logg.Info("store", fmt.Sprintf("Post %d added (content anonymized)", post.ID))
	return s.GetPost(ctx, post.ID)
}

func (s *Store) GetPost(ctx context.Context, postID int64) (*models.Post, error) {
	var post models.Post
	err := s.DB.WithContext(ctx).
		Model(&models.Post{}).
		Select(postColumns).
		Joins("JOIN users ON users.id = posts.user_id").
		Where("posts.id = ?", postID).
		Take(&post).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPostNotFound
		}
		return nil, fmt.Errorf("query post: %w", err)
	}
	return &post, nil
}

// ListPostsByUser returns the user's posts newest first, each with its
// comments oldest first.
func (s *Store) ListPostsByUser(ctx context.Context, userID int64) ([]models.Post, error) {
	var posts []models.Post
	err := s.DB.WithContext(ctx).
		Model(&models.Post{}).
		Select(postColumns).
		Joins("JOIN users ON users.id = posts.user_id").
		Where("posts.user_id = ?", userID).
		Order("posts.created_at DESC, posts.id DESC").
		Find(&posts).Error
	if err != nil {
		logg.Error("store", "Failed to list user posts", err)
		return nil, fmt.Errorf("list posts: %w", err)
	}
	return s.attachComments(ctx, posts)
}

// ListRecentPosts returns the newest posts across all users, with comments.
func (s *Store) ListRecentPosts(ctx context.Context, limit int) ([]models.Post, error) {
	var posts []models.Post
	err := s.DB.WithContext(ctx).
		Model(&models.Post{}).
		Select(postColumns).
		Joins("JOIN users ON users.id = posts.user_id").
		Order("posts.created_at DESC, posts.id DESC").
		Limit(limit).
		Find(&posts).Error
	if err != nil {
		logg.Error("store", "Failed to list recent posts", err)
		return nil, fmt.Errorf("list recent posts: %w", err)
	}
	return s.attachComments(ctx, posts)
}

// attachComments loads the comments of all posts with one query and nests
// them in creation order.
func (s *Store) attachComments(ctx context.Context, posts []models.Post) ([]models.Post, error) {
	if len(posts) == 0 {
		return posts, nil
	}

	ids := make([]int64, len(posts))
	for i, p := range posts {
		ids[i] = p.ID
	}

	var comments []models.Comment
	err := s.DB.WithContext(ctx).
		Model(&models.Comment{}).
		Select("comments.*, users.username, users.zenid").
		Joins("JOIN users ON users.id = comments.user_id").
		Where("comments.post_id IN ?", ids).
		Order("comments.created_at ASC, comments.id ASC").
		Find(&comments).Error
	if err != nil {
		logg.Error("store", "Failed to load comments", err)
		return nil, fmt.Errorf("list comments: %w", err)
	}

	byPost := make(map[int64][]models.Comment, len(posts))
	for _, c := range comments {
		if c.Username == "" {
			c.Username = identity.Short(c.ZenID)
		}
		byPost[c.PostID] = append(byPost[c.PostID], c)
	}
	for i := range posts {
		posts[i].CommentList = byPost[posts[i].ID]
	}
	return posts, nil
}

// --- Interaction operations ---

func (s *Store) ToggleLike(ctx context.Context, postID, userID int64) (models.ToggleState, error) {
	on, err := s.toggleEdge(ctx, postID, userID, &models.PostLike{PostID: postID, UserID: userID}, "likes")
	if err != nil {
		return "", err
	}
	if on {
		return models.Liked, nil
	}
	return models.Unliked, nil
}

func (s *Store) ToggleRepost(ctx context.Context, postID, userID int64) (models.ToggleState, error) {
	on, err := s.toggleEdge(ctx, postID, userID, &models.PostRepost{PostID: postID, UserID: userID}, "shares")
	if err != nil {
		return "", err
	}
	if on {
		return models.Reposted, nil
	}
	return models.Unreposted, nil
}

// toggleEdge flips the (post, user) edge stored as edge and moves counter
// by one in the same transaction. It reports whether the edge now exists.
// A concurrent insert of the same edge is ignored rather than counted twice.
func (s *Store) toggleEdge(ctx context.Context, postID, userID int64, edge any, counter string) (bool, error) {
	var on bool

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensurePost(tx, postID); err != nil {
			return err
		}

		del := tx.Where("post_id = ? AND user_id = ?", postID, userID).Delete(edge)
		if del.Error != nil {
			return fmt.Errorf("delete edge: %w", del.Error)
		}
		if del.RowsAffected > 0 {
			on = false
			return bumpCounter(tx, postID, counter, -1)
		}

		ins := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(edge)
		if ins.Error != nil {
			return fmt.Errorf("insert edge: %w", ins.Error)
		}
		on = true
		if ins.RowsAffected == 0 {
			return nil
		}
		return bumpCounter(tx, postID, counter, 1)
	})
	if err != nil {
		if !errors.Is(err, ErrPostNotFound) {
			logg.Error("store", "Failed to toggle "+counter, err)
		}
		return false, err
	}
	return on, nil
}

// AddComment inserts a comment and bumps the post's comment counter atomically.
func (s *Store) AddComment(ctx context.Context, postID, userID int64, content string) (*models.Comment, error) {
	comment := models.Comment{PostID: postID, UserID: userID, Content: content}

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensurePost(tx, postID); err != nil {
			return err
		}
		if err := tx.Create(&comment).Error; err != nil {
			return fmt.Errorf("insert comment: %w", err)
		}
		return bumpCounter(tx, postID, "comments", 1)
	})
	if err != nil {
		if !errors.Is(err, ErrPostNotFound) {
			logg.Error("store", "Failed to add comment", err)
		}
		return nil, err
	}

	var author models.User
	if err := s.DB.WithContext(ctx).Where("id = ?", userID).Take(&author).Error; err != nil {
		return nil, fmt.Errorf("query comment author: %w", err)
	}
	comment.Username = author.DisplayName()
	comment.ZenID = author.ZenID
	return &comment, nil
}

func ensurePost(tx *gorm.DB, postID int64) error {
	var n int64
	if err := tx.Model(&models.Post{}).Where("id = ?", postID).Count(&n).Error; err != nil {
		return fmt.Errorf("check post: %w", err)
	}
	if n == 0 {
		return ErrPostNotFound
	}
	return nil
}

// bumpCounter adds delta to one of the post counters, never going below zero.
func bumpCounter(tx *gorm.DB, postID int64, counter string, delta int) error {
	switch counter {
	case "likes", "comments", "shares":
	default:
		return fmt.Errorf("unknown counter %q", counter)
	}
	expr := gorm.Expr("MAX("+counter+" + ?, 0)", delta)
	if err := tx.Model(&models.Post{}).Where("id = ?", postID).UpdateColumn(counter, expr).Error; err != nil {
		return fmt.Errorf("update %s counter: %w", counter, err)
	}
	return nil
}
