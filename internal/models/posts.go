package models

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
)

// postRow is the flat shape of a post joined with its author.
type postRow struct {
	ID            int64     `db:"id"`
	UserID        int64     `db:"user_id"`
	Caption       *string   `db:"caption"`
	ImagePath     string    `db:"image_path"`
	LikesCount    int       `db:"likes_count"`
	CommentsCount int       `db:"comments_count"`
	CreatedAt     time.Time `db:"created_at"`
	UpdatedAt     time.Time `db:"updated_at"`
	AuthorName    string    `db:"author_name"`
	AuthorHandle  *string   `db:"author_username"`
	AuthorPhoto   *string   `db:"author_photo"`
}

func (r postRow) post() Post {
	return Post{
		ID:            r.ID,
		UserID:        r.UserID,
		Caption:       r.Caption,
		ImagePath:     r.ImagePath,
		LikesCount:    r.LikesCount,
		CommentsCount: r.CommentsCount,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
		User: Author{
			ID:           r.UserID,
			Name:         r.AuthorName,
			Username:     r.AuthorHandle,
			ProfilePhoto: r.AuthorPhoto,
		},
	}
}

const postSelect = `
	SELECT p.id, p.user_id, p.caption, p.image_path, p.likes_count, p.comments_count,
	       p.created_at, p.updated_at,
	       u.name AS author_name, u.username AS author_username, u.profile_photo AS author_photo
	FROM posts p
	JOIN users u ON u.id = p.user_id`

func (s *Store) CreatePost(ctx context.Context, userID int64, caption *string, imagePath string) (*Post, error) {
	now := s.stamp()
	var id int64
	err := s.db.QueryRowxContext(ctx,
		s.q(`INSERT INTO posts (user_id, caption, image_path, created_at, updated_at) VALUES (?, ?, ?, ?, ?) RETURNING id`),
		userID, caption, imagePath, now, now,
	).Scan(&id)
	if err != nil {
		return nil, err
	}
	return s.GetPost(ctx, id)
}

func (s *Store) GetPost(ctx context.Context, id int64) (*Post, error) {
	var row postRow
	if err := s.db.GetContext(ctx, &row, s.q(postSelect+` WHERE p.id = ?`), id); err != nil {
		return nil, notFound(err)
	}
	p := row.post()
	return &p, nil
}

// ListPosts returns posts newest first, ties broken by id.
func (s *Store) ListPosts(ctx context.Context, f PostFilter, limit, offset int) ([]Post, error) {
	query := postSelect
	args := []any{}
	if f.UserID != nil {
		query += ` WHERE p.user_id = ?`
		args = append(args, *f.UserID)
	}
	query += ` ORDER BY p.created_at DESC, p.id DESC LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	var rows []postRow
	if err := s.db.SelectContext(ctx, &rows, s.q(query), args...); err != nil {
		return nil, err
	}
	posts := make([]Post, 0, len(rows))
	for _, r := range rows {
		posts = append(posts, r.post())
	}
	return posts, nil
}

func (s *Store) CountPosts(ctx context.Context, f PostFilter) (int, error) {
	var n int
	var err error
	if f.UserID != nil {
		err = s.db.GetContext(ctx, &n, s.q(`SELECT COUNT(*) FROM posts WHERE user_id = ?`), *f.UserID)
	} else {
		err = s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM posts`)
	}
	return n, err
}

// UpdateCaption replaces the caption. A nil caption clears it.
func (s *Store) UpdateCaption(ctx context.Context, id int64, caption *string) (*Post, error) {
	res, err := s.db.ExecContext(ctx,
		s.q(`UPDATE posts SET caption = ?, updated_at = ? WHERE id = ?`), caption, s.stamp(), id)
	if err != nil {
		return nil, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, ErrNotFound
	}
	return s.GetPost(ctx, id)
}

// DeletePost removes the post with its likes and comments and returns the
// image path so the caller can drop the blob.
func (s *Store) DeletePost(ctx context.Context, id int64) (string, error) {
	var imagePath string
	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		if err := tx.GetContext(ctx, &imagePath, tx.Rebind(`SELECT image_path FROM posts WHERE id = ?`), id); err != nil {
			return notFound(err)
		}
		if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM likes WHERE post_id = ?`), id); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM comments WHERE post_id = ?`), id); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM posts WHERE id = ?`), id)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrNotFound
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return imagePath, nil
}
