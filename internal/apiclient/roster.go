package apiclient

import (
	"context"
	"io"
	"net/http"

	"github.com/go-resty/resty/v2"

	"github.com/noah-isme/studio-api/internal/models"
	appErrors "github.com/noah-isme/studio-api/pkg/errors"
)

// Roster returns the caller's resolved roster, filtered by search when non-empty.
func (c *Client) Roster(ctx context.Context, search string) (*models.RosterView, error) {
	env, _, err := call[models.RosterView](ctx, c, http.MethodGet, "/roster", func(r *resty.Request) {
		if search != "" {
			r.SetQueryParam("search", search)
		}
	})
	if err != nil {
		return nil, err
	}
	return &env.Data, nil
}

// AddStudentByEmail adds a student to the caller's roster. An ALREADY_ASSIGNED error
// means the student was on the roster before the call.
func (c *Client) AddStudentByEmail(ctx context.Context, email string) (*models.RosterView, error) {
	env, _, err := call[models.RosterView](ctx, c, http.MethodPost, "/roster", func(r *resty.Request) {
		r.SetBody(models.AddStudentRequest{Email: email})
	})
	if err != nil {
		return nil, err
	}
	return &env.Data, nil
}

// RemoveStudent removes a student from the caller's roster.
func (c *Client) RemoveStudent(ctx context.Context, studentID string) (*models.RosterView, error) {
	env, _, err := call[models.RosterView](ctx, c, http.MethodDelete, "/roster/{studentId}", func(r *resty.Request) {
		r.SetPathParam("studentId", studentID)
	})
	if err != nil {
		return nil, err
	}
	return &env.Data, nil
}

// StudentDetail returns a student on the caller's roster.
func (c *Client) StudentDetail(ctx context.Context, studentID string) (*models.User, error) {
	env, _, err := call[models.User](ctx, c, http.MethodGet, "/roster/{studentId}", func(r *resty.Request) {
		r.SetPathParam("studentId", studentID)
	})
	if err != nil {
		return nil, err
	}
	return &env.Data, nil
}

// UploadMedia stores an attachment and returns its media URI and a signed URL.
func (c *Client) UploadMedia(ctx context.Context, filename string, r io.Reader) (*models.MediaUpload, error) {
	env, _, err := call[models.MediaUpload](ctx, c, http.MethodPost, "/media", func(req *resty.Request) {
		req.SetFileReader("file", filename, r)
	})
	if err != nil {
		return nil, err
	}
	return &env.Data, nil
}

// SignMedia refreshes the download link of an attachment.
func (c *Client) SignMedia(ctx context.Context, uri string) (*models.SignedMediaURL, error) {
	env, _, err := call[models.SignedMediaURL](ctx, c, http.MethodPost, "/media/sign", func(r *resty.Request) {
		r.SetBody(map[string]string{"uri": uri})
	})
	if err != nil {
		return nil, err
	}
	return &env.Data, nil
}

// DownloadMedia fetches an attachment by its signed token.
func (c *Client) DownloadMedia(ctx context.Context, token string) ([]byte, string, error) {
	var failure envelope[struct{}]
	resp, err := c.request(ctx).
		SetError(&failure).
		SetPathParam("token", token).
		Get("/media/{token}")
	if err != nil {
		return nil, "", appErrors.Remote(err, "transport", "media download failed")
	}
	if resp.IsError() {
		return nil, "", responseError(resp, failure.Error)
	}
	return resp.Body(), resp.Header().Get("Content-Type"), nil
}
