package diary

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	botctx "github.com/fadeni/school-diary-bot/internal/context"
)

const dateLayout = "2006-01-02"

type (
	HTTPService struct {
		baseURL string
		client  *http.Client
		limiter *rate.Limiter
		log     *slog.Logger
	}

	httpClient struct {
		service *HTTPService
		token   string
	}

	loginRequest struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}

	loginResponse struct {
		Token       string `json:"token"`
		ChallengeID string `json:"challenge_id"`
	}

	smsRequest struct {
		ChallengeID string `json:"challenge_id"`
		Code        string `json:"code"`
	}

	profilePayload struct {
		ID int64 `json:"id"`
	}

	familyPayload struct {
		Role     string `json:"role"`
		Children []struct {
			ID         int64  `json:"id"`
			PersonGUID string `json:"person_guid"`
			Name       string `json:"name"`
		} `json:"children"`
	}

	eventPayload struct {
		SubjectName string    `json:"subject_name"`
		StartAt     time.Time `json:"start_at"`
		FinishAt    time.Time `json:"finish_at"`
		RoomNumber  string    `json:"room_number"`
		LessonTheme string    `json:"lesson_theme"`
		Homework    struct {
			Descriptions []string `json:"descriptions"`
		} `json:"homework"`
		Materials []json.RawMessage `json:"materials"`
	}

	markPayload struct {
		SubjectName string `json:"subject_name"`
		Value       string `json:"value"`
		Date        string `json:"date"`
		Comment     string `json:"comment"`
	}
)

func NewHTTPService(baseURL string, requestsPerSecond float64, log *slog.Logger) *HTTPService {
	return &HTTPService{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), 1),
		log:     log,
	}
}

func (s *HTTPService) ExchangeCredentials(ctx context.Context, username, password string) (*LoginResult, error) {
	var resp loginResponse
	err := s.doJSON(ctx, http.MethodPost, "/v1/auth/login", nil, loginRequest{
		Username: username,
		Password: password,
	}, "", &resp)
	if err != nil {
		return nil, err
	}

	if resp.ChallengeID != "" {
		return &LoginResult{Challenge: &Challenge{ID: resp.ChallengeID}}, nil
	}
	if resp.Token == "" {
		return nil, fmt.Errorf("login response carries neither token nor challenge")
	}
	return &LoginResult{Token: resp.Token}, nil
}

func (s *HTTPService) SubmitChallenge(ctx context.Context, challenge *Challenge, code string) (string, error) {
	var resp loginResponse
	err := s.doJSON(ctx, http.MethodPost, "/v1/auth/sms", nil, smsRequest{
		ChallengeID: challenge.ID,
		Code:        code,
	}, "", &resp)
	if err != nil {
		return "", err
	}
	if resp.Token == "" {
		return "", fmt.Errorf("sms response carries no token")
	}
	return resp.Token, nil
}

func (s *HTTPService) BindToken(token string) Client {
	return &httpClient{service: s, token: token}
}

func (c *httpClient) Profiles(ctx context.Context) ([]Profile, error) {
	var payload []profilePayload
	if err := c.service.doJSON(ctx, http.MethodGet, "/v1/profiles", nil, nil, c.token, &payload); err != nil {
		return nil, err
	}

	res := make([]Profile, 0, len(payload))
	for _, p := range payload {
		res = append(res, Profile{ID: p.ID})
	}
	return res, nil
}

func (c *httpClient) FamilyProfile(ctx context.Context, profileID int64) (*FamilyProfile, error) {
	var payload familyPayload
	path := fmt.Sprintf("/v1/family/%d", profileID)
	if err := c.service.doJSON(ctx, http.MethodGet, path, nil, nil, c.token, &payload); err != nil {
		return nil, err
	}

	res := &FamilyProfile{Role: payload.Role, Children: make([]Child, 0, len(payload.Children))}
	for _, ch := range payload.Children {
		res.Children = append(res.Children, Child{ID: ch.ID, PersonGUID: ch.PersonGUID, Name: ch.Name})
	}
	return res, nil
}

func (c *httpClient) Events(ctx context.Context, personGUID, role string, from, to time.Time) ([]Event, error) {
	params := url.Values{}
	params.Set("person_id", personGUID)
	params.Set("role", role)
	params.Set("from", from.Format(dateLayout))
	params.Set("to", to.Format(dateLayout))

	var payload []eventPayload
	if err := c.service.doJSON(ctx, http.MethodGet, "/v1/events", params, nil, c.token, &payload); err != nil {
		return nil, err
	}

	res := make([]Event, 0, len(payload))
	for _, e := range payload {
		res = append(res, Event{
			SubjectName:  e.SubjectName,
			StartAt:      e.StartAt,
			FinishAt:     e.FinishAt,
			RoomNumber:   e.RoomNumber,
			LessonTheme:  e.LessonTheme,
			Homework:     e.Homework.Descriptions,
			HasMaterials: len(e.Materials) > 0,
		})
	}
	return res, nil
}

func (c *httpClient) Marks(ctx context.Context, studentID, profileID int64, from, to time.Time) ([]Mark, error) {
	params := url.Values{}
	params.Set("student_id", strconv.FormatInt(studentID, 10))
	params.Set("profile_id", strconv.FormatInt(profileID, 10))
	params.Set("from", from.Format(dateLayout))
	params.Set("to", to.Format(dateLayout))

	var payload []markPayload
	if err := c.service.doJSON(ctx, http.MethodGet, "/v1/marks", params, nil, c.token, &payload); err != nil {
		return nil, err
	}

	res := make([]Mark, 0, len(payload))
	for _, m := range payload {
		date, err := time.Parse(dateLayout, m.Date)
		if err != nil {
			c.service.log.WarnContext(ctx, "skipping mark with invalid date", "date", m.Date)
			continue
		}
		res = append(res, Mark{SubjectName: m.SubjectName, Value: m.Value, Date: date, Comment: m.Comment})
	}
	return res, nil
}

func (s *HTTPService) doJSON(ctx context.Context, method, path string, params url.Values, body any, token string, out any) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit: %w", err)
	}

	var reqBody *bytes.Reader
	if body != nil {
		marshal, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(marshal)
	} else {
		reqBody = bytes.NewReader(nil)
	}

	target := s.baseURL + path
	if len(params) > 0 {
		target += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reqBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if err := classifyStatus(path, resp.StatusCode); err != nil {
		tags := []any{"status", resp.StatusCode, "path", path}
		if userID, ok := botctx.UserIDFromContext(ctx); ok {
			tags = append(tags, "user_id", userID)
		}
		s.log.WarnContext(ctx, "diary request rejected", tags...)
		return err
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func classifyStatus(path string, status int) error {
	if status < 300 {
		return nil
	}

	switch path {
	case "/v1/auth/login":
		if status == http.StatusUnauthorized || status == http.StatusForbidden {
			return ErrBadCredentials
		}
	case "/v1/auth/sms":
		if status == http.StatusUnauthorized || status == http.StatusForbidden || status == http.StatusGone {
			return ErrInvalidCode
		}
	default:
		if status == http.StatusUnauthorized || status == http.StatusForbidden {
			return ErrUnauthorized
		}
	}

	return fmt.Errorf("unexpected status code: %d", status)
}
