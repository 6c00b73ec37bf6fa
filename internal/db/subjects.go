package db

import (
	"context"
	"errors"
	"fmt"
	"plugindir/internal/models"

	"gorm.io/gorm"
)

// ErrSubjectNotFound is returned when no subject row has the requested id.
var ErrSubjectNotFound = errors.New("subject not found")

// ErrSubjectExists is returned by Create for an id that is already taken.
var ErrSubjectExists = errors.New("subject already exists")

// SubjectRepository is the durable document store for subject aggregates and their comments.
type SubjectRepository struct {
	db *gorm.DB
}

func NewSubjectRepository(db *gorm.DB) *SubjectRepository {
	return &SubjectRepository{db: db}
}

func (r *SubjectRepository) FindByID(ctx context.Context, id string) (*models.Subject, error) {
	var subject models.Subject
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&subject).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSubjectNotFound
		}
		return nil, fmt.Errorf("find subject %q: %w", id, err)
	}

	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Comment{}).Where("subject_id = ?", id).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("count comments for %q: %w", id, err)
	}
	subject.CommentCount = int(count)
	return &subject, nil
}

// Create inserts a fresh aggregate. Counters always start at zero.
func (r *SubjectRepository) Create(ctx context.Context, subject *models.Subject) error {
	subject.Views, subject.Upvotes, subject.Downvotes, subject.Score = 0, 0, 0, 0

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Subject{}).Where("id = ?", subject.ID).Count(&count).Error; err != nil {
			return fmt.Errorf("check subject %q: %w", subject.ID, err)
		}
		if count > 0 {
			return ErrSubjectExists
		}
		if err := tx.Create(subject).Error; err != nil {
			return fmt.Errorf("create subject %q: %w", subject.ID, err)
		}
		return nil
	})
}

// AddCounters applies delta in one UPDATE. Score moves with upvotes and downvotes.
func (r *SubjectRepository) AddCounters(ctx context.Context, id string, delta models.CounterDelta) (*models.Subject, error) {
	if !delta.IsZero() {
		res := r.db.WithContext(ctx).Model(&models.Subject{}).
			Where("id = ?", id).
			UpdateColumns(map[string]interface{}{
				"views":     gorm.Expr("views + ?", delta.Views),
				"upvotes":   gorm.Expr("upvotes + ?", delta.Upvotes),
				"downvotes": gorm.Expr("downvotes + ?", delta.Downvotes),
				"score":     gorm.Expr("score + ?", delta.Score()),
			})
		if res.Error != nil {
			return nil, fmt.Errorf("update counters for %q: %w", id, res.Error)
		}
		if res.RowsAffected == 0 {
			return nil, ErrSubjectNotFound
		}
	}
	return r.FindByID(ctx, id)
}

func (r *SubjectRepository) AppendComment(ctx context.Context, comment *models.Comment) error {
	if err := r.db.WithContext(ctx).Omit("Subject").Create(comment).Error; err != nil {
		return fmt.Errorf("append comment to %q: %w", comment.SubjectID, err)
	}
	return nil
}

// ListComments returns the subject's comments oldest first.
func (r *SubjectRepository) ListComments(ctx context.Context, subjectID string, limit int) ([]models.Comment, error) {
	var comments []models.Comment
	q := r.db.WithContext(ctx).Where("subject_id = ?", subjectID).Order("created_at ASC, id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&comments).Error; err != nil {
		return nil, fmt.Errorf("list comments for %q: %w", subjectID, err)
	}
	return comments, nil
}

// Ping checks the underlying connection, used by the health endpoint.
func (r *SubjectRepository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
