package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/SivaGaneshv1729/library-management-api/pkg/ledger"
	"github.com/SivaGaneshv1729/library-management-api/pkg/lending"
	"github.com/SivaGaneshv1729/library-management-api/pkg/models"
)

var (
	errCopiesOnLoan  = errors.New("total_copies cannot be lower than the number of copies on loan")
	errBookInUse     = errors.New("book has lending history and cannot be deleted")
	errDuplicateISBN = errors.New("a book with this isbn already exists")
)

type createBookRequest struct {
	ISBN        string `json:"isbn" binding:"required"`
	Title       string `json:"title" binding:"required"`
	Author      string `json:"author" binding:"required"`
	Category    string `json:"category"`
	TotalCopies int    `json:"total_copies" binding:"required,min=1"`
}

type updateBookRequest struct {
	ISBN        *string `json:"isbn" binding:"omitempty,min=1"`
	Title       *string `json:"title" binding:"omitempty,min=1"`
	Author      *string `json:"author" binding:"omitempty,min=1"`
	Category    *string `json:"category"`
	TotalCopies *int    `json:"total_copies" binding:"omitempty,min=1"`
}

func (h *Handler) createBook(c *gin.Context) {
	var req createBookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondInvalid(c, err)
		return
	}

	book := models.Book{
		ISBN:            req.ISBN,
		Title:           req.Title,
		Author:          req.Author,
		Category:        req.Category,
		TotalCopies:     req.TotalCopies,
		AvailableCopies: req.TotalCopies,
	}
	if err := h.db.WithContext(c.Request.Context()).Create(&book).Error; err != nil {
		if ledger.IsUniqueViolation(err) {
			respondConflict(c, errDuplicateISBN.Error())
			return
		}
		h.respondStoreError(c, err)
		return
	}

	c.JSON(http.StatusCreated, book)
}

func (h *Handler) listBooks(c *gin.Context) {
	var books []models.Book
	if err := h.db.WithContext(c.Request.Context()).Order("created_at").Find(&books).Error; err != nil {
		h.respondStoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, books)
}

func (h *Handler) listAvailableBooks(c *gin.Context) {
	var books []models.Book
	err := h.db.WithContext(c.Request.Context()).
		Where("status = ? AND available_copies > 0", models.BookAvailable).
		Order("created_at").
		Find(&books).Error
	if err != nil {
		h.respondStoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, books)
}

func (h *Handler) getBook(c *gin.Context) {
	var book models.Book
	err := h.db.WithContext(c.Request.Context()).Where("id = ?", c.Param("id")).First(&book).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		h.respondError(c, lending.ErrBookNotFound)
		return
	}
	if err != nil {
		h.respondStoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, book)
}

// updateBook changes descriptive fields and capacity. A capacity change moves
// available copies by the same delta so loans on record stay accounted for.
func (h *Handler) updateBook(c *gin.Context) {
	var req updateBookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondInvalid(c, err)
		return
	}

	var book models.Book
	err := h.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.Locking{Strength: clause.LockingStrengthUpdate}).
			Where("id = ?", c.Param("id")).First(&book).Error
		if err != nil {
			return err
		}

		if req.ISBN != nil {
			book.ISBN = *req.ISBN
		}
		if req.Title != nil {
			book.Title = *req.Title
		}
		if req.Author != nil {
			book.Author = *req.Author
		}
		if req.Category != nil {
			book.Category = *req.Category
		}
		if req.TotalCopies != nil {
			available := book.AvailableCopies + *req.TotalCopies - book.TotalCopies
			if available < 0 {
				return errCopiesOnLoan
			}
			book.TotalCopies = *req.TotalCopies
			book.AvailableCopies = available
			book.Status = models.BookStatusFor(available)
		}

		return tx.Save(&book).Error
	})

	switch {
	case err == nil:
		c.JSON(http.StatusOK, book)
	case errors.Is(err, gorm.ErrRecordNotFound):
		h.respondError(c, lending.ErrBookNotFound)
	case errors.Is(err, errCopiesOnLoan):
		respondInvalid(c, err)
	case ledger.IsUniqueViolation(err):
		respondConflict(c, errDuplicateISBN.Error())
	default:
		h.respondStoreError(c, err)
	}
}

// deleteBook refuses to remove a book that any loan refers to.
func (h *Handler) deleteBook(c *gin.Context) {
	err := h.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		var book models.Book
		err := tx.Clauses(clause.Locking{Strength: clause.LockingStrengthUpdate}).
			Where("id = ?", c.Param("id")).First(&book).Error
		if err != nil {
			return err
		}

		var loans int64
		if err := tx.Model(&models.Transaction{}).Where("book_id = ?", book.ID).Count(&loans).Error; err != nil {
			return err
		}
		if loans > 0 {
			return errBookInUse
		}

		return tx.Delete(&book).Error
	})

	switch {
	case err == nil:
		c.Status(http.StatusNoContent)
	case errors.Is(err, gorm.ErrRecordNotFound):
		h.respondError(c, lending.ErrBookNotFound)
	case errors.Is(err, errBookInUse):
		respondConflict(c, err.Error())
	default:
		h.respondStoreError(c, err)
	}
}

func (h *Handler) respondStoreError(c *gin.Context, err error) {
	if ledger.IsTransient(err) {
		h.respondError(c, &lending.Error{Kind: lending.KindTransient, Msg: msgUnavailable, Err: err})
		return
	}
	h.respondError(c, err)
}
