package server

import "github.com/gin-gonic/gin"

func (s *Server) BIOverview(c *gin.Context) {
	overview, err := s.biSvc.Overview(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respondOK(c, overview)
}
