package broker

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// paginationHeaders is the allow-list of upstream response headers
// forwarded to the client; everything else is dropped.
var paginationHeaders = []string{
	"X-Total-Count",
	"X-Page",
	"X-Per-Page",
	"X-Total-Pages",
	"Link",
}

var binaryContentTypes = []string{
	"application/pdf",
	"application/zip",
	"application/octet-stream",
	"image/",
}

func isBinaryContentType(contentType string) bool {
	contentType = strings.ToLower(strings.TrimSpace(contentType))
	for _, prefix := range binaryContentTypes {
		if strings.HasPrefix(contentType, prefix) {
			return true
		}
	}
	return false
}

// relayResponse writes the upstream response back to the client. Binary
// bodies stream through byte-for-byte; everything else is re-emitted as
// JSON when it parses, raw text otherwise. Upstream status codes pass
// through unchanged.
func relayResponse(c *gin.Context, resp *http.Response) {
	forwardPaginationHeaders(c, resp.Header)

	contentType := resp.Header.Get("Content-Type")
	if isBinaryContentType(contentType) {
		c.Header("Content-Type", contentType)
		if length := resp.Header.Get("Content-Length"); length != "" {
			c.Header("Content-Length", length)
		}
		if disposition := resp.Header.Get("Content-Disposition"); disposition != "" {
			c.Header("Content-Disposition", disposition)
		}
		c.Status(resp.StatusCode)
		_, _ = io.Copy(c.Writer, resp.Body)
		return
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.Status(http.StatusBadGateway)
		return
	}

	if len(body) == 0 {
		c.Status(resp.StatusCode)
		return
	}

	if json.Valid(body) {
		c.Data(resp.StatusCode, "application/json", body)
		return
	}
	c.Data(resp.StatusCode, "text/plain; charset=utf-8", body)
}

func forwardPaginationHeaders(c *gin.Context, upstream http.Header) {
	for _, name := range paginationHeaders {
		for _, value := range upstream.Values(name) {
			c.Writer.Header().Add(name, value)
		}
	}
}
