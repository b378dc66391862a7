package httpserver

import (
	"net/http"

	downloadsvc "atomovision-editorial/internal/service/download"
	"github.com/gin-gonic/gin"
)

// downloadHandler runs the download gate and redirects to the stored file on
// success.
func downloadHandler(downloads DownloadService) gin.HandlerFunc {
	return func(c *gin.Context) {
		fileURL, err := downloads.Authorize(c.Request.Context(), downloadsvc.Request{
			Token:     c.Param("token"),
			BookID:    c.Query("book"),
			IPAddress: c.ClientIP(),
			UserAgent: c.Request.UserAgent(),
		})
		if err != nil {
			respondError(c, err)
			return
		}
		c.Redirect(http.StatusSeeOther, fileURL)
	}
}
