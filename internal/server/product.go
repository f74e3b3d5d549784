package server

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	productdomain "github.com/zyalhor1961/corematch-web-sub006/internal/product/domain"
)

type createProductRequest struct {
	SKU         string          `json:"sku"`
	Name        string          `json:"name"`
	Description *string         `json:"description"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Currency    string          `json:"currency"`
	VATRate     *float64        `json:"vat_rate"`
	HSCode      *string         `json:"hs_code"`
}

func (s *Server) CreateProduct(c *gin.Context) {
	var req createProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.productSvc.Create(c.Request.Context(), productdomain.CreateRequest{
		SKU:         strings.TrimSpace(req.SKU),
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
		UnitPrice:   req.UnitPrice,
		Currency:    strings.TrimSpace(req.Currency),
		VATRate:     req.VATRate,
		HSCode:      req.HSCode,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.auditAction(c, "product.created", "product", resp.ID, map[string]any{
		"sku": resp.SKU,
	})

	respondCreated(c, resp)
}

func (s *Server) ListProducts(c *gin.Context) {
	var req productdomain.ListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.productSvc.List(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respondOK(c, resp)
}

func (s *Server) GetProductByID(c *gin.Context) {
	resp, err := s.productSvc.Get(c.Request.Context(), strings.TrimSpace(c.Param("product_id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respondOK(c, resp)
}

func (s *Server) UpdateProduct(c *gin.Context) {
	var req productdomain.UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.ID = strings.TrimSpace(c.Param("product_id"))

	resp, err := s.productSvc.Update(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.auditAction(c, "product.updated", "product", resp.ID, nil)

	respondOK(c, resp)
}

func (s *Server) ArchiveProduct(c *gin.Context) {
	resp, err := s.productSvc.Archive(c.Request.Context(), strings.TrimSpace(c.Param("product_id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.auditAction(c, "product.archived", "product", resp.ID, nil)

	respondOK(c, resp)
}

func isProductValidationError(err error) bool {
	switch err {
	case productdomain.ErrInvalidOrganization,
		productdomain.ErrInvalidSKU,
		productdomain.ErrInvalidName,
		productdomain.ErrInvalidPrice,
		productdomain.ErrInvalidID:
		return true
	default:
		return false
	}
}
