package repository

import (
	"context"
	"strings"

	"github.com/smallbiznis/entitlement/internal/purchase/domain"
	"github.com/smallbiznis/entitlement/pkg/db"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) InsertIfAbsent(ctx context.Context, tx *gorm.DB, purchase *domain.Purchase) (*domain.Purchase, bool, error) {
	ref := strings.TrimSpace(purchase.ExternalPurchaseRef)
	if ref == "" {
		return nil, false, domain.ErrInvalidExternalRef
	}
	if strings.TrimSpace(purchase.CourseID) == "" {
		return nil, false, domain.ErrInvalidCourse
	}
	if purchase.Amount < 0 {
		return nil, false, domain.ErrInvalidAmount
	}
	purchase.ExternalPurchaseRef = ref

	res := tx.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "external_purchase_ref"}},
		DoNothing: true,
	}).Create(purchase)
	if res.Error != nil && !db.IsDuplicateKeyErr(res.Error) {
		return nil, false, res.Error
	}
	if res.Error == nil && res.RowsAffected == 1 {
		return purchase, true, nil
	}

	existing, err := r.FindByExternalRef(ctx, tx, ref)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

func (r *repo) FindByExternalRef(ctx context.Context, db *gorm.DB, ref string) (*domain.Purchase, error) {
	var purchase domain.Purchase
	err := db.WithContext(ctx).Raw(
		`SELECT id, user_id, course_id, amount, currency, external_purchase_ref, created_at
		 FROM purchases
		 WHERE external_purchase_ref = ?`,
		ref,
	).Scan(&purchase).Error
	if err != nil {
		return nil, err
	}
	if purchase.ID == 0 {
		return nil, nil
	}
	return &purchase, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB) ([]domain.Purchase, error) {
	var purchases []domain.Purchase
	err := db.WithContext(ctx).
		Model(&domain.Purchase{}).
		Order("created_at desc, id desc").
		Find(&purchases).Error
	if err != nil {
		return nil, err
	}
	return purchases, nil
}
