package apiclient

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-resty/resty/v2"

	"github.com/noah-isme/studio-api/internal/models"
	appErrors "github.com/noah-isme/studio-api/pkg/errors"
)

type assignPayload struct {
	StudentID   string             `json:"studentId,omitempty"`
	StudentIDs  []string           `json:"studentIds,omitempty"`
	ContentID   string             `json:"contentId"`
	ContentType models.ContentType `json:"contentType"`
	DueDate     string             `json:"dueDate,omitempty"`
}

// Assign assigns one item to one student. TeacherID is taken from the token.
func (c *Client) Assign(ctx context.Context, req models.AssignRequest) (*models.Assignment, error) {
	env, _, err := call[models.Assignment](ctx, c, http.MethodPost, "/assignments", func(r *resty.Request) {
		r.SetBody(assignPayload{
			StudentID:   req.StudentID,
			ContentID:   req.ContentID,
			ContentType: req.ContentType,
			DueDate:     req.DueDate,
		})
	})
	if err != nil {
		return nil, err
	}
	return &env.Data, nil
}

// AssignMany assigns one item to several students. When the batch stopped part way the
// result lists what was assigned and the error describes the failure.
func (c *Client) AssignMany(ctx context.Context, req models.BulkAssignRequest) (*models.BulkAssignResult, error) {
	env, status, err := call[models.BulkAssignResult](ctx, c, http.MethodPost, "/assignments", func(r *resty.Request) {
		r.SetBody(assignPayload{
			StudentIDs:  req.StudentIDs,
			ContentID:   req.ContentID,
			ContentType: req.ContentType,
			DueDate:     req.DueDate,
		})
	})
	if err != nil {
		return nil, err
	}
	if status == http.StatusMultiStatus {
		msg, _ := env.Meta["error"].(string)
		if msg == "" {
			msg = fmt.Sprintf("assignment stopped at student %s", env.Data.FailedAt)
		}
		e := appErrors.Clone(appErrors.ErrRemoteOperation, msg)
		e.ResourceID = env.Data.FailedAt
		return &env.Data, e
	}
	return &env.Data, nil
}

// StudentAssignments lists the assignments addressed to a student.
func (c *Client) StudentAssignments(ctx context.Context, studentID string) ([]models.Assignment, error) {
	env, _, err := call[[]models.Assignment](ctx, c, http.MethodGet, "/students/{id}/assignments", func(r *resty.Request) {
		r.SetPathParam("id", studentID)
	})
	if err != nil {
		return nil, err
	}
	return env.Data, nil
}

// UpdateAssignmentStatus changes the status of an assignment.
func (c *Client) UpdateAssignmentStatus(ctx context.Context, id string, status models.AssignmentStatus) (*models.Assignment, error) {
	env, _, err := call[models.Assignment](ctx, c, http.MethodPatch, "/assignments/{id}/status", func(r *resty.Request) {
		r.SetPathParam("id", id).SetBody(models.UpdateStatusRequest{Status: status})
	})
	if err != nil {
		return nil, err
	}
	return &env.Data, nil
}

// Library returns the pending content of kind assigned to a student.
func (c *Client) Library(ctx context.Context, studentID string, kind models.ContentType) ([]models.AssignedContent, error) {
	env, _, err := call[[]models.AssignedContent](ctx, c, http.MethodGet, "/students/{id}/library", func(r *resty.Request) {
		r.SetPathParam("id", studentID).SetQueryParam("type", string(kind))
	})
	if err != nil {
		return nil, err
	}
	return env.Data, nil
}

// ExportAssignments downloads a student's assignment report in format (csv, pdf or xlsx).
func (c *Client) ExportAssignments(ctx context.Context, studentID, format string) ([]byte, string, error) {
	var failure envelope[struct{}]
	resp, err := c.request(ctx).
		SetError(&failure).
		SetPathParam("id", studentID).
		SetQueryParam("format", format).
		Get("/students/{id}/assignments/export")
	if err != nil {
		return nil, "", appErrors.Remote(err, "transport", "export request failed")
	}
	if resp.IsError() {
		return nil, "", responseError(resp, failure.Error)
	}
	return resp.Body(), resp.Header().Get("Content-Type"), nil
}
