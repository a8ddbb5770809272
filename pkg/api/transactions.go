package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type borrowRequest struct {
	MemberID string `json:"memberId" binding:"required"`
	BookID   string `json:"bookId" binding:"required"`
}

func (h *Handler) borrowBook(c *gin.Context) {
	var req borrowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondInvalid(c, err)
		return
	}

	trx, err := h.lending.BorrowBook(c.Request.Context(), req.MemberID, req.BookID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, trx)
}

func (h *Handler) returnBook(c *gin.Context) {
	summary, err := h.lending.ReturnBook(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (h *Handler) overdueReport(c *gin.Context) {
	overdue, err := h.lending.OverdueSweepAndReport(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, overdue)
}

func (h *Handler) payFine(c *gin.Context) {
	fine, err := h.lending.PayFine(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "Payment successful",
		"data":    fine,
	})
}

func (h *Handler) borrowedBooks(c *gin.Context) {
	loans, err := h.lending.BorrowedBooks(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, loans)
}
