package coyoteapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
)

// UploadFile streams a local file to the backend as the multipart field "file"
// and returns the stored file URL.
func (c *Client) UploadFile(ctx context.Context, f FileRef) (string, error) {
	const op = "files.upload"

	f, err := f.validate(op)
	if err != nil {
		return "", err
	}
	// Fail fast before opening the file.
	if _, err := c.bearer(ctx, request{op: op, auth: authRequired}); err != nil {
		return "", err
	}

	file, err := os.Open(f.Path)
	if err != nil {
		return "", &Error{Op: op, Kind: ErrInvalidInput, Message: "file is not readable", Err: err}
	}
	defer func() { _ = file.Close() }()

	name := strings.TrimSpace(f.Name)
	if name == "" {
		name = filepath.Base(f.Path)
	}
	contentType := strings.TrimSpace(f.ContentType)
	if contentType == "" {
		contentType = mime.TypeByExtension(filepath.Ext(name))
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		_ = pw.CloseWithError(writeFilePart(mw, name, contentType, file))
	}()

	var resp uploadResponse
	err = c.doJSON(ctx, request{
		op:          op,
		method:      http.MethodPost,
		path:        "/files/upload",
		auth:        authRequired,
		body:        pr,
		contentType: mw.FormDataContentType(),
	}, &resp)
	_ = pr.Close()
	if err != nil {
		return "", err
	}

	if resp.FileURL == nil || strings.TrimSpace(*resp.FileURL) == "" {
		return "", malformed(op, http.StatusOK, errors.New(`missing "fileUrl"`))
	}
	fileURL := strings.TrimSpace(*resp.FileURL)
	c.log.Info("files.upload.success", "name", name, "content_type", contentType)
	return fileURL, nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func writeFilePart(mw *multipart.Writer, name, contentType string, r io.Reader) error {
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, quoteEscaper.Replace(name)))
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, r); err != nil {
		return err
	}
	return mw.Close()
}
