package api

import (
	"context"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/SivaGaneshv1729/library-management-api/pkg/lending"
	"github.com/SivaGaneshv1729/library-management-api/pkg/models"
)

// Lending is the part of lending.Engine the HTTP layer calls.
type Lending interface {
	BorrowBook(ctx context.Context, memberID, bookID string) (*models.Transaction, error)
	ReturnBook(ctx context.Context, transactionID string) (*lending.ReturnSummary, error)
	PayFine(ctx context.Context, fineID string) (*models.Fine, error)
	OverdueSweepAndReport(ctx context.Context) ([]models.Transaction, error)
	BorrowedBooks(ctx context.Context, memberID string) ([]models.Transaction, error)
}

// Handler serves the library API. Book and member CRUD goes straight to the
// database; everything that touches loans goes through the lending engine.
type Handler struct {
	db      *gorm.DB
	lending Lending
	logger  lending.Logger
}

func NewHandler(db *gorm.DB, engine Lending, logger lending.Logger) *Handler {
	return &Handler{db: db, lending: engine, logger: logger}
}

// Router wires every route onto a new gin engine.
func (h *Handler) Router() *gin.Engine {
	router := gin.Default()
	h.Register(router)
	return router
}

func (h *Handler) Register(router gin.IRouter) {
	books := router.Group("/books")
	books.POST("", h.createBook)
	books.GET("", h.listBooks)
	books.GET("/available", h.listAvailableBooks)
	books.GET("/:id", h.getBook)
	books.PUT("/:id", h.updateBook)
	books.DELETE("/:id", h.deleteBook)

	members := router.Group("/members")
	members.POST("", h.createMember)
	members.GET("", h.listMembers)
	members.GET("/:id", h.getMember)
	members.PUT("/:id", h.updateMember)
	members.DELETE("/:id", h.deleteMember)
	members.GET("/:id/borrowed", h.borrowedBooks)

	transactions := router.Group("/transactions")
	transactions.POST("/borrow", h.borrowBook)
	transactions.POST("/:id/return", h.returnBook)
	transactions.GET("/overdue", h.overdueReport)
	transactions.POST("/fines/:id/pay", h.payFine)

	router.GET("/health", h.healthCheck)
	router.GET("/manage/health", h.healthCheck)
}
