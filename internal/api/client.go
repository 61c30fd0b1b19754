package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/assesshub/attempt-runner/internal/model"
	"github.com/assesshub/attempt-runner/internal/validate"
)

// Client is the REST client for the assessment platform backend.
// All durable attempt and answer state lives behind it; the runner only
// holds read-through copies of what it returns.
type Client struct {
	baseURL string
	httpc   *http.Client
	token   string
	log     zerolog.Logger
}

// New creates a Client for the given base URL (e.g. "https://host/api").
func New(baseURL string, log zerolog.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		httpc:   &http.Client{Timeout: 30 * time.Second},
		log:     log.With().Str("component", "api_client").Logger(),
	}
}

// SetToken installs the bearer token used on subsequent calls.
func (c *Client) SetToken(token string) {
	c.token = token
}

// Token returns the currently installed bearer token.
func (c *Client) Token() string {
	return c.token
}

// LoginRequest is the credentials payload for the login endpoint.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse is the authentication result.
type LoginResponse struct {
	Token  string `json:"token" validate:"required"`
	UserID int    `json:"userId"`
	Role   string `json:"role"`
}

// Login authenticates and installs the returned token on the client.
func (c *Client) Login(ctx context.Context, email, password string) (*LoginResponse, error) {
	var out LoginResponse
	err := c.do(ctx, "login", http.MethodPost, "/auth/login", LoginRequest{Email: email, Password: password}, &out)
	if err != nil {
		var apiErr *Error
		if errors.As(err, &apiErr) && (apiErr.Status == http.StatusUnauthorized || apiErr.Status == http.StatusBadRequest) {
			apiErr.Code = ErrInvalidCredentials
		}
		return nil, err
	}
	if fields := validate.Struct(&out); fields != nil {
		return nil, &Error{Code: ErrValidation, Op: "login", Detail: fmt.Sprint(fields)}
	}
	c.token = out.Token
	return &out, nil
}

// Attempt fetches a single attempt by id.
func (c *Client) Attempt(ctx context.Context, attemptID int) (*model.Attempt, error) {
	var out model.Attempt
	path := fmt.Sprintf("/userassessments/%d", attemptID)
	if err := c.do(ctx, "get attempt", http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	if fields := validate.Struct(&out); fields != nil {
		return nil, &Error{Code: ErrValidation, Op: "get attempt", Detail: fmt.Sprint(fields)}
	}
	return &out, nil
}

// StartAttempt transitions a NotStarted attempt to InProgress. The backend
// rejects starts outside the scheduled window.
func (c *Client) StartAttempt(ctx context.Context, attemptID int) error {
	path := fmt.Sprintf("/userassessments/%d/start", attemptID)
	err := c.do(ctx, "start attempt", http.MethodPost, path, struct{}{}, nil)
	if err != nil {
		var apiErr *Error
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusBadRequest {
			apiErr.Code = ErrScheduleWindow
		}
	}
	return err
}

// Questions fetches the question set for an assessment, validating each
// question's variant invariants before it enters the core.
func (c *Client) Questions(ctx context.Context, assessmentID int) ([]model.Question, error) {
	var out []model.Question
	path := fmt.Sprintf("/assessments/%d/questions", assessmentID)
	if err := c.do(ctx, "get questions", http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	for i := range out {
		if fields := validate.Struct(&out[i]); fields != nil {
			return nil, &Error{Code: ErrValidation, Op: "get questions", Detail: fmt.Sprint(fields)}
		}
		if err := out[i].Validate(); err != nil {
			return nil, &Error{Code: ErrValidation, Op: "get questions", Detail: err.Error()}
		}
	}
	return out, nil
}

// SubmissionsByAttempt fetches the server-confirmed answers for an attempt.
func (c *Client) SubmissionsByAttempt(ctx context.Context, attemptID int) ([]model.Submission, error) {
	var out []model.Submission
	path := fmt.Sprintf("/submissions/by-user-assessment/%d", attemptID)
	if err := c.do(ctx, "get submissions", http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// UpsertSubmission persists one answer. The backend creates or updates on
// the (attempt, question) pair.
func (c *Client) UpsertSubmission(ctx context.Context, sub model.Submission) (*model.Submission, error) {
	if fields := validate.Struct(&sub); fields != nil {
		return nil, &Error{Code: ErrValidation, Op: "save answer", Detail: fmt.Sprint(fields)}
	}
	var out model.Submission
	if err := c.do(ctx, "save answer", http.MethodPost, "/submissions", sub, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SubmitAttempt performs the terminal transition to Submitted. Safe to
// retry: a repeat call after success fails with ALREADY_SUBMITTED, which
// callers treat as terminal, not as an error to surface.
func (c *Client) SubmitAttempt(ctx context.Context, attemptID int) error {
	path := fmt.Sprintf("/userassessments/%d/submit", attemptID)
	return c.do(ctx, "submit attempt", http.MethodPost, path, struct{}{}, nil)
}

// errorBody is the backend's error envelope. Both {"message": ...} and
// {"error": {"message": ...}} shapes appear across endpoints.
type errorBody struct {
	Message string `json:"message"`
	Error   *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Client) do(ctx context.Context, op, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return &Error{Code: ErrInvalidPayload, Op: op, Detail: err.Error()}
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return &Error{Code: ErrInvalidPayload, Op: op, Detail: err.Error()}
	}

	reqID := uuid.New().String()
	req.Header.Set("X-Request-ID", reqID)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		c.log.Warn().Err(err).Str("op", op).Str("request_id", reqID).Msg("Request failed")
		return &Error{Code: ErrUnavailable, Op: op, RequestID: reqID, Detail: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		detail := readErrorDetail(resp.Body)
		apiErr := &Error{
			Code:      classify(resp.StatusCode),
			Status:    resp.StatusCode,
			Op:        op,
			RequestID: reqID,
			Detail:    detail,
		}
		c.log.Warn().
			Int("status", resp.StatusCode).
			Str("op", op).
			Str("code", string(apiErr.Code)).
			Str("request_id", reqID).
			Msg("Request rejected")
		return apiErr
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return &Error{Code: ErrInvalidPayload, Status: resp.StatusCode, Op: op, RequestID: reqID, Detail: err.Error()}
		}
	}
	return nil
}

func readErrorDetail(r io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(r, 4096))
	if err != nil || len(raw) == 0 {
		return ""
	}
	var eb errorBody
	if err := json.Unmarshal(raw, &eb); err == nil {
		if eb.Message != "" {
			return eb.Message
		}
		if eb.Error != nil && eb.Error.Message != "" {
			return eb.Error.Message
		}
	}
	return string(raw)
}
