package handlers

import (
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/verityops/compliance-backend/internal/http/response"
	"github.com/verityops/compliance-backend/internal/platform/reqctx"
)

// maxUploadBytes caps document uploads at 32 MiB.
const maxUploadBytes = 32 << 20

// requestOrg pulls the authenticated organization out of the request
// context. A missing identity aborts with 401.
func requestOrg(c *gin.Context) (uuid.UUID, bool) {
	rd := reqctx.GetRequestData(c.Request.Context())
	if rd == nil || rd.OrganizationID == uuid.Nil {
		response.RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return uuid.Nil, false
	}
	return rd.OrganizationID, true
}

func uuidParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_id", fmt.Errorf("invalid %s", name))
		return uuid.Nil, false
	}
	return id, true
}

// readUploadedPDF reads the single "file" part of a multipart upload and
// enforces the .pdf extension. Content sniffing happens later in the
// extractor; the extension check just rejects the obvious mistakes early.
func readUploadedPDF(c *gin.Context) (string, []byte, bool) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "missing_file", err)
		return "", nil, false
	}
	if fileHeader.Size > maxUploadBytes {
		response.RespondError(c, http.StatusBadRequest, "file_too_large", nil)
		return "", nil, false
	}

	filename := filepath.Base(fileHeader.Filename)
	if !strings.EqualFold(filepath.Ext(filename), ".pdf") {
		response.RespondError(c, http.StatusBadRequest, "unsupported_file_type",
			fmt.Errorf("only PDF files are supported"))
		return "", nil, false
	}

	f, err := fileHeader.Open()
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "unreadable_file", err)
		return "", nil, false
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxUploadBytes+1))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "unreadable_file", err)
		return "", nil, false
	}
	if len(data) == 0 {
		response.RespondError(c, http.StatusBadRequest, "empty_file", nil)
		return "", nil, false
	}
	return filename, data, true
}
