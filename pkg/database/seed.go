package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"gorm.io/gorm"

	"github.com/SivaGaneshv1729/library-management-api/pkg/models"
)

var seedMembers = []models.Member{
	{Name: "Alice Johnson", Email: "alice@example.com", MembershipNumber: "MEM001"},
	{Name: "Bob Smith", Email: "bob@example.com", MembershipNumber: "MEM002"},
}

var seedBooks = []models.Book{
	{ISBN: "978-0132350884", Title: "Clean Code", Author: "Robert C. Martin", Category: "Programming", TotalCopies: 3},
	{ISBN: "978-0201633610", Title: "Design Patterns", Author: "Erich Gamma", Category: "Software Engineering", TotalCopies: 1},
	{ISBN: "978-0134494166", Title: "Clean Architecture", Author: "Robert C. Martin", Category: "Programming", TotalCopies: 5},
}

// SeedResult counts the rows Seed inserted.
type SeedResult struct {
	Members int
	Books   int
}

// Seed inserts the demo members and books that are not there yet. Existing
// rows, matched by membership number and ISBN, are left untouched.
func Seed(ctx context.Context, db *gorm.DB, logger *slog.Logger) (SeedResult, error) {
	var result SeedResult

	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, m := range seedMembers {
			member := m
			var existing models.Member
			err := tx.Where("membership_number = ?", member.MembershipNumber).First(&existing).Error
			if err == nil {
				continue
			}
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("look up member %s: %w", member.MembershipNumber, err)
			}
			if err := tx.Create(&member).Error; err != nil {
				return fmt.Errorf("seed member %s: %w", member.MembershipNumber, err)
			}
			result.Members++
			logger.Info("seeded member", "membership_number", member.MembershipNumber, "id", member.ID)
		}

		for _, b := range seedBooks {
			book := b
			book.AvailableCopies = book.TotalCopies
			var existing models.Book
			err := tx.Where("isbn = ?", book.ISBN).First(&existing).Error
			if err == nil {
				continue
			}
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("look up book %s: %w", book.ISBN, err)
			}
			if err := tx.Create(&book).Error; err != nil {
				return fmt.Errorf("seed book %s: %w", book.ISBN, err)
			}
			result.Books++
			logger.Info("seeded book", "isbn", book.ISBN, "id", book.ID)
		}
		return nil
	})
	if err != nil {
		return SeedResult{}, err
	}

	logger.Info("seed data loaded", "members", result.Members, "books", result.Books)
	return result, nil
}
