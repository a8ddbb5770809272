package ledger

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/SivaGaneshv1729/library-management-api/pkg/models"
)

// Tx is the set of reads and writes available inside one atomic unit of work.
// Get* methods lock the row they return until the unit commits or rolls back
// and return ErrNotFound when it does not exist.
type Tx interface {
	GetMember(id string) (*models.Member, error)
	GetBook(id string) (*models.Book, error)
	GetTransaction(id string) (*models.Transaction, error)
	GetFine(id string) (*models.Fine, error)
	LookupTransaction(id string) (*models.Transaction, error)

	CountOpenLoans(memberID string) (int64, error)
	CountUnpaidFines(memberID string) (int64, error)
	ListPastDueActiveLoans(memberID string, now time.Time) ([]models.Transaction, error)
	ListOpenLoans(memberID string) ([]models.Transaction, error)
	ListOverdueLoans() ([]models.Transaction, error)
	MembersWithPastDueLoans(now time.Time) ([]string, error)

	CreateTransaction(trx *models.Transaction) error
	CloseTransaction(trx *models.Transaction, returnedAt time.Time) error
	MarkOverdue(ids []string) (int64, error)
	CreateFine(fine *models.Fine) error
	MarkFinePaid(fine *models.Fine, paidAt time.Time) error
	AdjustAvailableCopies(book *models.Book, delta int) error
	SetMemberStatus(member *models.Member, status string) error
}

// GormStore runs units of work as gorm transactions. On PostgreSQL every Get*
// read takes a row lock (SELECT ... FOR UPDATE); SQLite ignores the locking
// clause, so SQLite pools must be limited to one open connection.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// Atomic runs fn inside one transaction: commit when fn returns nil, rollback
// on error or panic.
func (s *GormStore) Atomic(ctx context.Context, fn func(tx Tx) error) error {
	return s.db.WithContext(ctx).Transaction(func(db *gorm.DB) error {
		return fn(&gormTx{db: db})
	})
}

type gormTx struct {
	db *gorm.DB
}

func (t *gormTx) locked() *gorm.DB {
	return t.db.Clauses(clause.Locking{Strength: clause.LockingStrengthUpdate})
}

func (t *gormTx) first(dest interface{}, id string) error {
	err := t.locked().Where("id = ?", id).First(dest).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

func (t *gormTx) GetMember(id string) (*models.Member, error) {
	var member models.Member
	if err := t.first(&member, id); err != nil {
		return nil, err
	}
	return &member, nil
}

func (t *gormTx) GetBook(id string) (*models.Book, error) {
	var book models.Book
	if err := t.first(&book, id); err != nil {
		return nil, err
	}
	return &book, nil
}

func (t *gormTx) GetTransaction(id string) (*models.Transaction, error) {
	var trx models.Transaction
	if err := t.first(&trx, id); err != nil {
		return nil, err
	}
	return &trx, nil
}

// LookupTransaction reads a transaction without locking it, for callers that
// need its member before taking locks in member-first order.
func (t *gormTx) LookupTransaction(id string) (*models.Transaction, error) {
	var trx models.Transaction
	err := t.db.Where("id = ?", id).First(&trx).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &trx, nil
}

func (t *gormTx) GetFine(id string) (*models.Fine, error) {
	var fine models.Fine
	if err := t.first(&fine, id); err != nil {
		return nil, err
	}
	return &fine, nil
}

func (t *gormTx) CountOpenLoans(memberID string) (int64, error) {
	var count int64
	err := t.db.Model(&models.Transaction{}).
		Where("member_id = ? AND status IN ?", memberID, models.OpenTransactionStatuses).
		Count(&count).Error
	return count, err
}

func (t *gormTx) CountUnpaidFines(memberID string) (int64, error) {
	var count int64
	err := t.db.Model(&models.Fine{}).
		Where("member_id = ? AND paid_at IS NULL", memberID).
		Count(&count).Error
	return count, err
}

// ListPastDueActiveLoans filters on due date in Go so the comparison does not
// depend on how the driver encodes timestamps.
func (t *gormTx) ListPastDueActiveLoans(memberID string, now time.Time) ([]models.Transaction, error) {
	var loans []models.Transaction
	err := t.locked().
		Where("member_id = ? AND status = ?", memberID, models.TransactionActive).
		Order("due_date").
		Find(&loans).Error
	if err != nil {
		return nil, err
	}

	pastDue := loans[:0]
	for _, loan := range loans {
		if loan.DueDate.Before(now) {
			pastDue = append(pastDue, loan)
		}
	}
	return pastDue, nil
}

func (t *gormTx) ListOpenLoans(memberID string) ([]models.Transaction, error) {
	var loans []models.Transaction
	err := t.db.Preload("Book").
		Where("member_id = ? AND status IN ?", memberID, models.OpenTransactionStatuses).
		Order("borrowed_at").
		Find(&loans).Error
	return loans, err
}

func (t *gormTx) ListOverdueLoans() ([]models.Transaction, error) {
	var loans []models.Transaction
	err := t.db.Preload("Book").Preload("Member").
		Where("status = ?", models.TransactionOverdue).
		Order("due_date").
		Find(&loans).Error
	return loans, err
}

func (t *gormTx) MembersWithPastDueLoans(now time.Time) ([]string, error) {
	var memberIDs []string
	err := t.db.Model(&models.Transaction{}).
		Where("status = ? AND due_date < ?", models.TransactionActive, now).
		Distinct().
		Order("member_id").
		Pluck("member_id", &memberIDs).Error
	return memberIDs, err
}

func (t *gormTx) CreateTransaction(trx *models.Transaction) error {
	return t.db.Create(trx).Error
}

func (t *gormTx) CloseTransaction(trx *models.Transaction, returnedAt time.Time) error {
	res := t.db.Model(&models.Transaction{}).
		Where("id = ? AND status = ?", trx.ID, trx.Status).
		Updates(map[string]interface{}{
			"status":      models.TransactionReturned,
			"returned_at": returnedAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrConcurrencyConflict
	}

	trx.Status = models.TransactionReturned
	trx.ReturnedAt = &returnedAt
	return nil
}

func (t *gormTx) MarkOverdue(ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res := t.db.Model(&models.Transaction{}).
		Where("id IN ? AND status = ?", ids, models.TransactionActive).
		Update("status", models.TransactionOverdue)
	return res.RowsAffected, res.Error
}

func (t *gormTx) CreateFine(fine *models.Fine) error {
	return t.db.Create(fine).Error
}

func (t *gormTx) MarkFinePaid(fine *models.Fine, paidAt time.Time) error {
	res := t.db.Model(&models.Fine{}).
		Where("id = ? AND paid_at IS NULL", fine.ID).
		Update("paid_at", paidAt)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrConcurrencyConflict
	}

	fine.PaidAt = &paidAt
	return nil
}

// AdjustAvailableCopies moves a book's counter by delta relative to the value
// read in this unit of work. The write only lands if the stored counter still
// equals that value.
func (t *gormTx) AdjustAvailableCopies(book *models.Book, delta int) error {
	next := book.AvailableCopies + delta
	if next < 0 || next > book.TotalCopies {
		return ErrCapacityExceeded
	}

	status := models.BookStatusFor(next)
	res := t.db.Model(&models.Book{}).
		Where("id = ? AND available_copies = ?", book.ID, book.AvailableCopies).
		Updates(map[string]interface{}{
			"available_copies": next,
			"status":           status,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrConcurrencyConflict
	}

	book.AvailableCopies = next
	book.Status = status
	return nil
}

func (t *gormTx) SetMemberStatus(member *models.Member, status string) error {
	res := t.db.Model(&models.Member{}).
		Where("id = ?", member.ID).
		Update("status", status)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}

	member.Status = status
	return nil
}
