package server

import (
	"github.com/gin-gonic/gin"
	accountdomain "github.com/zyalhor1961/corematch-web-sub006/internal/account/domain"
)

func (s *Server) CreateAccount(c *gin.Context) {
	var req accountdomain.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	account, err := s.accountSvc.Create(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.auditAction(c, "account.created", "account", account.ID.String(), map[string]any{
		"code": account.Code,
	})

	respondCreated(c, account)
}

func (s *Server) ListAccounts(c *gin.Context) {
	var req accountdomain.ListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	accounts, err := s.accountSvc.List(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respondOK(c, accounts)
}

func (s *Server) GetAccount(c *gin.Context) {
	account, err := s.accountSvc.GetByID(c.Request.Context(), c.Param("account_id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respondOK(c, account)
}

func (s *Server) UpdateAccount(c *gin.Context) {
	var req accountdomain.UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.ID = c.Param("account_id")

	account, err := s.accountSvc.Update(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.auditAction(c, "account.updated", "account", account.ID.String(), nil)

	respondOK(c, account)
}

func (s *Server) DeactivateAccount(c *gin.Context) {
	account, err := s.accountSvc.Deactivate(c.Request.Context(), c.Param("account_id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.auditAction(c, "account.deactivated", "account", account.ID.String(), nil)

	respondOK(c, account)
}

func isAccountValidationError(err error) bool {
	switch err {
	case accountdomain.ErrInvalidOrganization,
		accountdomain.ErrInvalidID,
		accountdomain.ErrInvalidCode,
		accountdomain.ErrInvalidName,
		accountdomain.ErrInvalidType:
		return true
	default:
		return false
	}
}
