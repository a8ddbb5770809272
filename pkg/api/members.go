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
	errMemberHasLoans  = errors.New("member has open loans")
	errMemberOwesFines = errors.New("member has unpaid fines")
	errMemberInUse     = errors.New("member has lending history and cannot be deleted")
	errDuplicateMember = errors.New("a member with this email or membership number already exists")
)

type createMemberRequest struct {
	Name             string `json:"name" binding:"required"`
	Email            string `json:"email" binding:"required,email"`
	MembershipNumber string `json:"membership_number" binding:"required"`
}

// updateMemberRequest also carries status, which is how an administrator
// reactivates a suspended member.
type updateMemberRequest struct {
	Name             *string `json:"name" binding:"omitempty,min=1"`
	Email            *string `json:"email" binding:"omitempty,email"`
	MembershipNumber *string `json:"membership_number" binding:"omitempty,min=1"`
	Status           *string `json:"status" binding:"omitempty,oneof=active suspended"`
}

func (h *Handler) createMember(c *gin.Context) {
	var req createMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondInvalid(c, err)
		return
	}

	member := models.Member{
		Name:             req.Name,
		Email:            req.Email,
		MembershipNumber: req.MembershipNumber,
		Status:           models.MemberActive,
	}
	if err := h.db.WithContext(c.Request.Context()).Create(&member).Error; err != nil {
		if ledger.IsUniqueViolation(err) {
			respondConflict(c, errDuplicateMember.Error())
			return
		}
		h.respondStoreError(c, err)
		return
	}

	c.JSON(http.StatusCreated, member)
}

func (h *Handler) listMembers(c *gin.Context) {
	var members []models.Member
	if err := h.db.WithContext(c.Request.Context()).Order("created_at").Find(&members).Error; err != nil {
		h.respondStoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, members)
}

func (h *Handler) getMember(c *gin.Context) {
	var member models.Member
	err := h.db.WithContext(c.Request.Context()).Where("id = ?", c.Param("id")).First(&member).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		h.respondError(c, lending.ErrMemberNotFound)
		return
	}
	if err != nil {
		h.respondStoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, member)
}

func (h *Handler) updateMember(c *gin.Context) {
	var req updateMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondInvalid(c, err)
		return
	}

	var member models.Member
	err := h.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.Locking{Strength: clause.LockingStrengthUpdate}).
			Where("id = ?", c.Param("id")).First(&member).Error
		if err != nil {
			return err
		}

		if req.Name != nil {
			member.Name = *req.Name
		}
		if req.Email != nil {
			member.Email = *req.Email
		}
		if req.MembershipNumber != nil {
			member.MembershipNumber = *req.MembershipNumber
		}
		if req.Status != nil {
			member.Status = *req.Status
		}

		return tx.Save(&member).Error
	})

	switch {
	case err == nil:
		c.JSON(http.StatusOK, member)
	case errors.Is(err, gorm.ErrRecordNotFound):
		h.respondError(c, lending.ErrMemberNotFound)
	case ledger.IsUniqueViolation(err):
		respondConflict(c, errDuplicateMember.Error())
	default:
		h.respondStoreError(c, err)
	}
}

// deleteMember refuses while the member holds loans, owes fines or has any
// loan history.
func (h *Handler) deleteMember(c *gin.Context) {
	err := h.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		var member models.Member
		err := tx.Clauses(clause.Locking{Strength: clause.LockingStrengthUpdate}).
			Where("id = ?", c.Param("id")).First(&member).Error
		if err != nil {
			return err
		}

		var open, unpaid, history int64
		err = tx.Model(&models.Transaction{}).
			Where("member_id = ? AND status IN ?", member.ID, models.OpenTransactionStatuses).
			Count(&open).Error
		if err != nil {
			return err
		}
		if open > 0 {
			return errMemberHasLoans
		}

		err = tx.Model(&models.Fine{}).Where("member_id = ? AND paid_at IS NULL", member.ID).Count(&unpaid).Error
		if err != nil {
			return err
		}
		if unpaid > 0 {
			return errMemberOwesFines
		}

		if err := tx.Model(&models.Transaction{}).Where("member_id = ?", member.ID).Count(&history).Error; err != nil {
			return err
		}
		if history > 0 {
			return errMemberInUse
		}

		return tx.Delete(&member).Error
	})

	switch {
	case err == nil:
		c.Status(http.StatusNoContent)
	case errors.Is(err, gorm.ErrRecordNotFound):
		h.respondError(c, lending.ErrMemberNotFound)
	case errors.Is(err, errMemberHasLoans), errors.Is(err, errMemberOwesFines), errors.Is(err, errMemberInUse):
		respondConflict(c, err.Error())
	default:
		h.respondStoreError(c, err)
	}
}
