package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/zyalhor1961/corematch-web-sub006/pkg/db/pagination"
)

// Every success body follows the same envelope so clients parse one
// shape: {"success":true,"data":...} plus page_info on lists. Failure
// bodies come out of ErrorHandlingMiddleware, never from handlers.
func respondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, gin.H{"success": true, "data": payload})
}

func respondCreated(c *gin.Context, payload any) {
	c.JSON(http.StatusCreated, gin.H{"success": true, "data": payload})
}

func respondList(c *gin.Context, payload any, pageInfo pagination.PageInfo) {
	c.JSON(http.StatusOK, gin.H{"success": true, "data": payload, "page_info": pageInfo})
}

func respondNoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}
