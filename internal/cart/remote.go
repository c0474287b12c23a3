package cart

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/stroymarket/backend/internal/models"
)

// GormRemote mirrors cart lines into the cart_items table, one row per line
// with a copied product snapshot.
type GormRemote struct {
	DB *gorm.DB
}

func (r *GormRemote) Load(ctx context.Context, userID uint) ([]Line, error) {
	var items []models.CartItem
	if err := r.DB.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Find(&items).Error; err != nil {
		return nil, err
	}

	lines := make([]Line, 0, len(items))
	for _, it := range items {
		lines = append(lines, Line{
			ID: fmt.Sprintf("%d", it.ID),
			Product: models.Product{
				ID:          it.ProductID,
				Name:        it.ProductName,
				Price:       it.ProductPrice,
				Image:       it.ProductImage,
				Category:    it.ProductCategory,
				Description: it.ProductName + " - " + it.ProductCategory,
				InStock:     true,
			},
			Quantity: it.Quantity,
			AddedAt:  it.CreatedAt,
		})
	}
	return lines, nil
}

// Replace swaps the user's rows for the given line set in one transaction, so
// a failed write cannot leave a half-replaced cart.
func (r *GormRemote) Replace(ctx context.Context, userID uint, lines []Line) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", userID).Delete(&models.CartItem{}).Error; err != nil {
			return err
		}
		if len(lines) == 0 {
			return nil
		}

		items := make([]models.CartItem, 0, len(lines))
		for _, l := range lines {
			addedAt := l.AddedAt
			if addedAt.IsZero() {
				addedAt = time.Now()
			}
			items = append(items, models.CartItem{
				UserID:          userID,
				ProductID:       l.Product.ID,
				ProductName:     l.Product.Name,
				ProductPrice:    l.Product.Price,
				ProductImage:    l.Product.Image,
				ProductCategory: l.Product.Category,
				Quantity:        l.Quantity,
				CreatedAt:       addedAt,
			})
		}
		return tx.Create(&items).Error
	})
}
