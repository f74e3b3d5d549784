package server

import (
	"github.com/gin-gonic/gin"
	hscodedomain "github.com/zyalhor1961/corematch-web-sub006/internal/hscode/domain"
)

func (s *Server) SuggestHSCode(c *gin.Context) {
	var req hscodedomain.SuggestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	suggestion, err := s.hscodeSvc.Suggest(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respondOK(c, suggestion)
}

func (s *Server) ListHSCodes(c *gin.Context) {
	var req hscodedomain.ListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.hscodeSvc.List(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respondList(c, resp.Codes, resp.PageInfo)
}
