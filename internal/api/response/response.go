package response

import "github.com/gin-gonic/gin"

// Success writes the payload as the response body with no envelope; list
// endpoints already shape their own {records, count, hasMore} objects.
func Success(c *gin.Context, data any) {
	c.JSON(200, data)
}

func Created(c *gin.Context, data any) {
	c.JSON(201, data)
}

func Message(c *gin.Context, message string) {
	c.JSON(200, gin.H{"message": message})
}

func Fail(c *gin.Context, httpStatus int, message string) {
	c.JSON(httpStatus, gin.H{"error": message})
}
