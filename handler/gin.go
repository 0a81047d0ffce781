package handler

import (
	"io"
	"net/http"

	"github.com/aws/aws-lambda-go/events"
	"github.com/gin-gonic/gin"
)

// Gin adapts the handler to a gin route so the echo endpoint can run locally
// without API Gateway.
func Gin(h *Handler) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.String(http.StatusBadRequest, "unreadable body")
			return
		}

		headers := make(map[string]string, len(c.Request.Header))
		for k := range c.Request.Header {
			headers[k] = c.Request.Header.Get(k)
		}
		query := make(map[string]string)
		for k := range c.Request.URL.Query() {
			query[k] = c.Query(k)
		}

		resp, err := h.Handle(c.Request.Context(), events.APIGatewayProxyRequest{
			HTTPMethod:            c.Request.Method,
			Path:                  c.Request.URL.Path,
			Headers:               headers,
			QueryStringParameters: query,
			Body:                  string(body),
		})
		if err != nil {
			c.String(http.StatusInternalServerError, "internal error")
			return
		}

		contentType := resp.Headers["Content-Type"]
		for k, v := range resp.Headers {
			if k != "Content-Type" {
				c.Header(k, v)
			}
		}
		c.Data(resp.StatusCode, contentType, []byte(resp.Body))
	}
}

// NewRouter returns a gin engine serving the echo endpoint at path.
func NewRouter(h *Handler, path string) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Any(path, Gin(h))
	return router
}
