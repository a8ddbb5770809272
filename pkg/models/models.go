package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	MemberActive    = "active"
	MemberSuspended = "suspended"

	BookAvailable = "available"
	BookBorrowed  = "borrowed"

	TransactionActive   = "active"
	TransactionOverdue  = "overdue"
	TransactionReturned = "returned"
)

func init() {
	// Money goes over the wire as a JSON number, e.g. "fineApplied": 1.5.
	decimal.MarshalJSONWithoutQuotes = true
}

// OpenTransactionStatuses are the loan states that hold a copy of a book.
var OpenTransactionStatuses = []string{TransactionActive, TransactionOverdue}

type Member struct {
	ID               string    `gorm:"type:uuid;primaryKey" json:"id"`
	Name             string    `gorm:"size:120;not null" json:"name"`
	Email            string    `gorm:"size:255;not null;uniqueIndex" json:"email"`
	MembershipNumber string    `gorm:"size:40;not null;uniqueIndex" json:"membership_number"`
	Status           string    `gorm:"size:20;not null;default:'active'" json:"status"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func (m *Member) BeforeCreate(*gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	if m.Status == "" {
		m.Status = MemberActive
	}
	return nil
}

func (m *Member) IsSuspended() bool {
	return m.Status == MemberSuspended
}

type Book struct {
	ID              string    `gorm:"type:uuid;primaryKey" json:"id"`
	ISBN            string    `gorm:"column:isbn;size:20;not null;uniqueIndex" json:"isbn"`
	Title           string    `gorm:"not null" json:"title"`
	Author          string    `gorm:"not null" json:"author"`
	Category        string    `json:"category"`
	TotalCopies     int       `gorm:"not null;check:total_copies >= 1" json:"total_copies"`
	AvailableCopies int       `gorm:"not null;check:available_copies >= 0" json:"available_copies"`
	Status          string    `gorm:"size:20;not null;default:'available'" json:"status"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func (b *Book) BeforeCreate(*gorm.DB) error {
	if b.ID == "" {
		b.ID = uuid.New().String()
	}
	b.Status = BookStatusFor(b.AvailableCopies)
	return nil
}

// BookStatusFor derives a book's status from its available copies.
func BookStatusFor(availableCopies int) string {
	if availableCopies > 0 {
		return BookAvailable
	}
	return BookBorrowed
}

type Transaction struct {
	ID         string     `gorm:"type:uuid;primaryKey" json:"id"`
	MemberID   string     `gorm:"type:uuid;not null;index" json:"member_id"`
	BookID     string     `gorm:"type:uuid;not null;index" json:"book_id"`
	BorrowedAt time.Time  `gorm:"not null" json:"borrowed_at"`
	DueDate    time.Time  `gorm:"not null;index" json:"due_date"`
	ReturnedAt *time.Time `json:"returned_at"`
	Status     string     `gorm:"size:20;not null;index" json:"status"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`

	Member *Member `gorm:"foreignKey:MemberID" json:"member,omitempty"`
	Book   *Book   `gorm:"foreignKey:BookID" json:"book,omitempty"`
}

func (t *Transaction) BeforeCreate(*gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	return nil
}

func (t *Transaction) IsOpen() bool {
	return t.Status == TransactionActive || t.Status == TransactionOverdue
}

type Fine struct {
	ID            string          `gorm:"type:uuid;primaryKey" json:"id"`
	MemberID      string          `gorm:"type:uuid;not null;index" json:"member_id"`
	TransactionID string          `gorm:"type:uuid;not null;uniqueIndex" json:"transaction_id"`
	Amount        decimal.Decimal `gorm:"type:numeric(10,2);not null" json:"amount"`
	PaidAt        *time.Time      `json:"paid_at"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`

	Member      *Member      `gorm:"foreignKey:MemberID" json:"-"`
	Transaction *Transaction `gorm:"foreignKey:TransactionID" json:"-"`
}

func (f *Fine) BeforeCreate(*gorm.DB) error {
	if f.ID == "" {
		f.ID = uuid.New().String()
	}
	return nil
}

func (f *Fine) IsPaid() bool {
	return f.PaidAt != nil
}

// All lists every model for AutoMigrate, parents first.
func All() []interface{} {
	return []interface{}{&Member{}, &Book{}, &Transaction{}, &Fine{}}
}
