package artifact

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"

	portstorage "github.com/alanyang/annotation-desk/internal/port/storage"
	artifactsvc "github.com/alanyang/annotation-desk/internal/service/artifact"
	"github.com/alanyang/annotation-desk/internal/transport/httperr"
)

const (
	editField = "xcf_file"
	maskField = "mask_file"
)

// Register mounts per-image routes. rg must carry :worker and :filename.
func Register(rg *gin.RouterGroup, svc *artifactsvc.Service, maxUploadBytes int64) {
	rg.GET("/status", getStatus(svc))
	rg.GET("/download", serveOriginal(svc, true))
	rg.GET("/original", serveOriginal(svc, false))
	rg.GET("/mask", serveMask(svc))
	rg.GET("/binary-mask", serveRender(svc.BinaryMask))
	rg.GET("/overlay", serveRender(svc.Overlay))
	rg.POST("/upload", upload(svc, maxUploadBytes))
}

func getStatus(svc *artifactsvc.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		st, err := svc.Status(c.Request.Context(), c.Param("worker"), c.Param("filename"))
		if err != nil {
			httperr.Abort(c, err)
			return
		}
		c.JSON(http.StatusOK, st)
	}
}

func serveOriginal(svc *artifactsvc.Service, attachment bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		rc, info, err := svc.OpenOriginal(c.Request.Context(), c.Param("worker"), c.Param("filename"))
		if err != nil {
			httperr.Abort(c, err)
			return
		}
		defer rc.Close()
		stream(c, rc, info, attachment)
	}
}

func serveMask(svc *artifactsvc.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		rc, info, err := svc.OpenMask(c.Request.Context(), c.Param("worker"), c.Param("filename"))
		if err != nil {
			httperr.Abort(c, err)
			return
		}
		defer rc.Close()
		stream(c, rc, info, false)
	}
}

type renderFunc func(ctx context.Context, worker, filename string) ([]byte, error)

func serveRender(render renderFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		data, err := render(c.Request.Context(), c.Param("worker"), c.Param("filename"))
		if err != nil {
			httperr.Abort(c, err)
			return
		}
		c.Header("Cache-Control", "no-cache")
		c.Data(http.StatusOK, "image/png", data)
	}
}

func stream(c *gin.Context, r io.Reader, info portstorage.Info, attachment bool) {
	contentType := mime.TypeByExtension(filepath.Ext(info.Name))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	disposition := "inline"
	if attachment {
		disposition = "attachment"
	}
	headers := map[string]string{
		"Content-Disposition": mime.FormatMediaType(disposition, map[string]string{"filename": info.Name}),
	}
	c.DataFromReader(http.StatusOK, info.Size, contentType, r, headers)
}

// ── upload ────────────────────────────────────────────────────────────────────

type uploadResponse struct {
	Error string                   `json:"error,omitempty"`
	Parts []artifactsvc.PartResult `json:"parts"`
}

func upload(svc *artifactsvc.Service, maxUploadBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		worker, filename := c.Param("worker"), c.Param("filename")

		// Authorize before reading the body.
		if err := svc.Authorize(worker, filename); err != nil {
			httperr.Abort(c, err)
			return
		}

		if maxUploadBytes > 0 && c.Request.ContentLength > maxUploadBytes {
			httperr.Abort(c, fmt.Errorf("upload exceeds %d bytes: %w", maxUploadBytes, &http.MaxBytesError{Limit: maxUploadBytes}))
			return
		}
		if maxUploadBytes > 0 {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadBytes)
		}
		form, err := c.MultipartForm()
		if err != nil {
			var maxBytes *http.MaxBytesError
			if errors.As(err, &maxBytes) {
				httperr.Abort(c, fmt.Errorf("upload exceeds %d bytes: %w", maxUploadBytes, err))
				return
			}
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid multipart form: " + err.Error()})
			return
		}
		defer form.RemoveAll() //nolint:errcheck

		var req artifactsvc.UploadRequest
		edit, closeEdit, err := openPart(form, editField)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		defer closeEdit()
		mask, closeMask, err := openPart(form, maskField)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		defer closeMask()
		req.Edit, req.Mask = edit, mask

		res, err := svc.Upload(c.Request.Context(), worker, filename, req)
		if err != nil {
			httperr.Abort(c, err)
			return
		}
		if res.Saved() == 0 {
			partErr := res.Err()
			c.JSON(httperr.Status(partErr), uploadResponse{Error: partErr.Error(), Parts: res.Parts})
			return
		}
		c.JSON(http.StatusOK, uploadResponse{Parts: res.Parts})
	}
}

// openPart returns nil when field is absent or sent without a file name,
// which is how browsers submit an empty file input.
func openPart(form *multipart.Form, field string) (*artifactsvc.Part, func(), error) {
	noop := func() {}
	headers := form.File[field]
	if len(headers) == 0 || headers[0].Filename == "" {
		return nil, noop, nil
	}
	f, err := headers[0].Open()
	if err != nil {
		return nil, noop, fmt.Errorf("open %s: %w", field, err)
	}
	return &artifactsvc.Part{Filename: headers[0].Filename, Content: f}, func() { f.Close() }, nil
}
