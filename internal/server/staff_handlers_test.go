package server

import (
	"context"
	"net/http"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stashkeeper/internal/models"
	"stashkeeper/internal/service"
)

// submitCommon drives a full session flow and returns the placed request.
func submitCommon(t *testing.T, app *fiber.App, bearer, resource string, qty int) *models.Request {
	t.Helper()
	sess := openSession(t, app, bearer)
	resp := doJSON(t, app, http.MethodPost, "/api/sessions/resource", bearer, fiber.Map{
		"token": sess.Token, "resource_key": resource,
	})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	resp = doJSON(t, app, http.MethodPost, "/api/sessions/form", bearer, fiber.Map{
		"token": sess.Token, "quantity": qty,
	})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	var result service.SubmitResult
	decode(t, resp, &result)
	return result.Request
}

func submitRare(t *testing.T, app *fiber.App, bearer, resource string, qty int) *models.Request {
	t.Helper()
	sess := openSession(t, app, bearer)
	resp := doJSON(t, app, http.MethodPost, "/api/sessions/resource", bearer, fiber.Map{
		"token": sess.Token, "resource_key": resource,
	})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	resp = doJSON(t, app, http.MethodPost, "/api/sessions/form", bearer, fiber.Map{
		"token": sess.Token, "quantity": qty,
	})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	resp = doMultipart(t, app, "/api/sessions/evidence", bearer,
		map[string]string{"token": sess.Token}, "evidence", "proof.png", screenshot(t))
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	var result service.SubmitResult
	decode(t, resp, &result)
	return result.Request
}

func TestStaffRoutesRequireStaffRole(t *testing.T) {
	_, app, _ := newTestServer(t)
	alice := token(t, "alice")

	resp := doJSON(t, app, http.MethodGet, "/api/staff/queue", alice, nil)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}

func TestStaffQueueListing(t *testing.T) {
	_, app, _ := newTestServer(t)
	staff := token(t, "marta", "staff")

	submitCommon(t, app, token(t, "alice"), "iron_ingot", 2)
	submitCommon(t, app, token(t, "bob"), "iron_ingot", 1)

	resp := doJSON(t, app, http.MethodGet, "/api/staff/queue?resource=iron_ingot", staff, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body struct {
		Requests []*models.Request `json:"requests"`
		Count    int               `json:"count"`
	}
	decode(t, resp, &body)
	require.Equal(t, 2, body.Count)
	assert.Equal(t, 1, body.Requests[0].QueuePosition)
	assert.Equal(t, 2, body.Requests[1].QueuePosition)
}

func TestApproveAndDenyFlow(t *testing.T) {
	_, app, _ := newTestServer(t)
	staff := token(t, "marta", "staff")

	pending := submitRare(t, app, token(t, "alice"), "dragon_scale", 2)
	other := submitRare(t, app, token(t, "bob"), "dragon_scale", 1)

	resp := doJSON(t, app, http.MethodPost, "/api/staff/requests/"+pending.ID+"/approve", staff, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var approved models.Request
	decode(t, resp, &approved)
	assert.Equal(t, models.StatusActive, approved.Status)
	assert.Equal(t, 1, approved.QueuePosition)

	// Double approval is a conflict.
	resp = doJSON(t, app, http.MethodPost, "/api/staff/requests/"+pending.ID+"/approve", staff, nil)
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)

	resp = doJSON(t, app, http.MethodPost, "/api/staff/requests/"+other.ID+"/deny", staff, fiber.Map{
		"reason": "no proof",
	})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var denied models.Request
	decode(t, resp, &denied)
	assert.Equal(t, models.StatusCancelled, denied.Status)
	assert.Equal(t, models.ApprovalDenied, denied.ApprovalState)
}

func TestIssueReturnCompleteFlow(t *testing.T) {
	_, app, _ := newTestServer(t)
	staff := token(t, "marta", "staff")

	req := submitCommon(t, app, token(t, "alice"), "iron_ingot", 10)

	resp := doJSON(t, app, http.MethodPost, "/api/staff/requests/"+req.ID+"/issue", staff, fiber.Map{
		"delta": 4,
	})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var issued service.IssueResult
	decode(t, resp, &issued)
	assert.Equal(t, 4, issued.Issued)
	assert.Equal(t, 6, issued.Remaining)
	assert.False(t, issued.Completed)

	resp = doJSON(t, app, http.MethodPost, "/api/staff/requests/"+req.ID+"/return", staff, fiber.Map{
		"amount": 1,
	})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var returned service.IssueResult
	decode(t, resp, &returned)
	assert.Equal(t, 3, returned.Issued)

	resp = doJSON(t, app, http.MethodPost, "/api/staff/requests/"+req.ID+"/complete", staff, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var completed service.IssueResult
	decode(t, resp, &completed)
	assert.True(t, completed.Completed)
	assert.Equal(t, 10, completed.Issued)
	assert.Equal(t, models.StatusCompleted, completed.Request.Status)
}

func TestIssueValidation(t *testing.T) {
	_, app, _ := newTestServer(t)
	staff := token(t, "marta", "staff")
	req := submitCommon(t, app, token(t, "alice"), "iron_ingot", 5)

	resp := doJSON(t, app, http.MethodPost, "/api/staff/requests/"+req.ID+"/issue", staff, fiber.Map{})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp = doJSON(t, app, http.MethodPost, "/api/staff/requests/unknown/issue", staff, fiber.Map{
		"delta": 1,
	})
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestPriorityAdministration(t *testing.T) {
	_, app, _ := newTestServer(t)
	staff := token(t, "marta", "staff")

	resp := doJSON(t, app, http.MethodPut, "/api/staff/priority", staff, fiber.Map{
		"user_ids": []string{"alice", "bob"}, "level": 2,
	})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp = doJSON(t, app, http.MethodGet, "/api/staff/priority", staff, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var listing struct {
		Levels       map[string]int `json:"levels"`
		DefaultLevel int            `json:"default_level"`
	}
	decode(t, resp, &listing)
	assert.Equal(t, map[string]int{"alice": 2, "bob": 2}, listing.Levels)
	assert.Equal(t, 1, listing.DefaultLevel)

	resp = doJSON(t, app, http.MethodDelete, "/api/staff/priority", staff, fiber.Map{
		"user_ids": []string{"alice"},
	})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp = doJSON(t, app, http.MethodPost, "/api/staff/priority/clear", staff, nil)
	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)

	resp = doJSON(t, app, http.MethodGet, "/api/staff/priority", staff, nil)
	listing.Levels = nil // json.Decode merges into a non-nil map instead of replacing it
	decode(t, resp, &listing)
	assert.Empty(t, listing.Levels)
}

func TestPriorityValidation(t *testing.T) {
	_, app, _ := newTestServer(t)
	staff := token(t, "marta", "staff")

	resp := doJSON(t, app, http.MethodPut, "/api/staff/priority", staff, fiber.Map{
		"user_ids": []string{}, "level": 2,
	})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp = doJSON(t, app, http.MethodPut, "/api/staff/priority", staff, fiber.Map{
		"user_ids": []string{"alice"}, "level": 99,
	})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestPriorityAffectsPlacement(t *testing.T) {
	s, app, _ := newTestServer(t)
	staff := token(t, "marta", "staff")

	resp := doJSON(t, app, http.MethodPut, "/api/staff/priority", staff, fiber.Map{
		"user_ids": []string{"vip"}, "level": 3,
	})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	first := submitCommon(t, app, token(t, "alice"), "iron_ingot", 1)
	second := submitCommon(t, app, token(t, "vip"), "iron_ingot", 1)
	assert.Equal(t, 1, second.QueuePosition)

	current, err := s.requests.GetRequest(context.Background(), first.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, current.QueuePosition)
}
