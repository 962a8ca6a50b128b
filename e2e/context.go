package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TestContext holds shared state for a scenario: the HTTP client, the last
// response, minted tokens, and the IDs captured along the way. Steps talk to
// a server that is already running; the context never starts one.
type TestContext struct {
	baseURL    string
	signingKey []byte
	client     *http.Client

	lastStatus int
	lastBody   interface{}
	aggregate  interface{}

	users     map[string]testUser // keyed by email
	typeID    string
	docID     string
	versionID string
	runID     string
	stepIDs   map[int]string // step order -> step id
}

type testUser struct {
	id       string
	role     string
	password string
	token    string
}

func NewTestContext() (*TestContext, error) {
	baseURL := os.Getenv("E2E_BASE_URL")
	if baseURL == "" {
		return nil, fmt.Errorf("E2E_BASE_URL is not set")
	}
	signingKey := os.Getenv("JWT_SIGNING_KEY")
	if signingKey == "" {
		return nil, fmt.Errorf("JWT_SIGNING_KEY is not set")
	}
	return &TestContext{
		baseURL:    strings.TrimRight(baseURL, "/"),
		signingKey: []byte(signingKey),
		client:     &http.Client{Timeout: 15 * time.Second},
		users:      make(map[string]testUser),
		stepIDs:    make(map[int]string),
	}, nil
}

// Reset clears per-scenario state while keeping users and reference data, so
// a Background that creates users is idempotent across scenarios.
func (tc *TestContext) Reset() {
	tc.lastStatus = 0
	tc.lastBody = nil
	tc.aggregate = nil
	tc.docID = ""
	tc.versionID = ""
	tc.runID = ""
	tc.stepIDs = make(map[int]string)
}

func (tc *TestContext) mintToken(userID, role string) (string, error) {
	claims := jwt.MapClaims{
		"user_id": userID,
		"role":    role,
		"iss":     "doccontrol",
		"iat":     jwt.NewNumericDate(time.Now()),
		"exp":     jwt.NewNumericDate(time.Now().Add(time.Hour)),
		"jti":     uuid.NewString(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(tc.signingKey)
}

// AdminToken mints a token for a synthetic ADMIN actor used to seed users and
// reference data. The actor does not need a user row; the API trusts the
// bearer token for identity.
func (tc *TestContext) AdminToken() (string, error) {
	return tc.mintToken(uuid.NewString(), "ADMIN")
}

func (tc *TestContext) request(method, path string, body interface{}, token string) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequest(method, tc.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := tc.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	tc.lastStatus = resp.StatusCode
	tc.lastBody = nil
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if len(raw) > 0 {
		var decoded interface{}
		if err := json.Unmarshal(raw, &decoded); err == nil {
			tc.lastBody = decoded
		}
	}
	return nil
}

func (tc *TestContext) POST(path string, body interface{}, token string) error {
	return tc.request(http.MethodPost, path, body, token)
}

func (tc *TestContext) GET(path string, token string) error {
	return tc.request(http.MethodGet, path, nil, token)
}

func (tc *TestContext) PATCH(path string, body interface{}, token string) error {
	return tc.request(http.MethodPatch, path, body, token)
}

func (tc *TestContext) LastStatus() int { return tc.lastStatus }

// GetResponseField looks up a dotted path in the last JSON response body.
// Numeric path parts index into arrays.
func (tc *TestContext) GetResponseField(field string) (interface{}, error) {
	if tc.lastBody == nil {
		return nil, fmt.Errorf("no response body captured")
	}
	return lookupField(tc.lastBody, field)
}

// AggregateField looks up a dotted path in the most recently refreshed
// document aggregate, without disturbing the last response.
func (tc *TestContext) AggregateField(field string) (interface{}, error) {
	if tc.aggregate == nil {
		return nil, fmt.Errorf("no document aggregate captured")
	}
	return lookupField(tc.aggregate, field)
}

func lookupField(root interface{}, field string) (interface{}, error) {
	current := root
	for _, part := range strings.Split(field, ".") {
		switch node := current.(type) {
		case map[string]interface{}:
			value, ok := node[part]
			if !ok {
				return nil, fmt.Errorf("field %q not found in response", field)
			}
			current = value
		case []interface{}:
			index, err := strconv.Atoi(part)
			if err != nil || index < 0 || index >= len(node) {
				return nil, fmt.Errorf("field %q: %q is not a valid index", field, part)
			}
			current = node[index]
		default:
			return nil, fmt.Errorf("field %q: cannot descend into %q", field, part)
		}
	}
	return current, nil
}

// EnsureUser creates the user through the admin API if it does not exist yet
// and mints a token for it. Existing users (409 from a previous run) are
// resolved through the user listing.
func (tc *TestContext) EnsureUser(email, role, password string) error {
	if _, ok := tc.users[email]; ok {
		return nil
	}
	adminToken, err := tc.AdminToken()
	if err != nil {
		return err
	}
	name := strings.Split(email, "@")[0]
	err = tc.POST("/admin/users", map[string]interface{}{
		"name":     name,
		"email":    email,
		"password": password,
		"role":     role,
	}, adminToken)
	if err != nil {
		return err
	}

	var userID string
	switch tc.lastStatus {
	case http.StatusCreated:
		id, err := tc.GetResponseField("id")
		if err != nil {
			return err
		}
		userID = id.(string)
	case http.StatusConflict:
		userID, err = tc.findUserID(email, adminToken)
		if err != nil {
			return err
		}
	default:
		return fmt.Errorf("create user %s: unexpected status %d", email, tc.lastStatus)
	}

	token, err := tc.mintToken(userID, role)
	if err != nil {
		return err
	}
	tc.users[email] = testUser{id: userID, role: role, password: password, token: token}
	return nil
}

func (tc *TestContext) findUserID(email, token string) (string, error) {
	if err := tc.GET("/admin/users", token); err != nil {
		return "", err
	}
	list, ok := tc.lastBody.([]interface{})
	if !ok {
		return "", fmt.Errorf("user listing is not an array")
	}
	for _, entry := range list {
		user, ok := entry.(map[string]interface{})
		if !ok {
			continue
		}
		if user["email"] == email {
			return user["id"].(string), nil
		}
	}
	return "", fmt.Errorf("user %s not found", email)
}

func (tc *TestContext) TokenFor(email string) (string, error) {
	user, ok := tc.users[email]
	if !ok {
		return "", fmt.Errorf("no user registered for %s", email)
	}
	return user.token, nil
}

func (tc *TestContext) PasswordFor(email string) (string, error) {
	user, ok := tc.users[email]
	if !ok {
		return "", fmt.Errorf("no user registered for %s", email)
	}
	return user.password, nil
}

func (tc *TestContext) SetTypeID(id string)     { tc.typeID = id }
func (tc *TestContext) TypeID() string          { return tc.typeID }
func (tc *TestContext) SetDocumentID(id string) { tc.docID = id }
func (tc *TestContext) DocumentID() string      { return tc.docID }
func (tc *TestContext) VersionID() string       { return tc.versionID }

func (tc *TestContext) StepID(order int) (string, error) {
	id, ok := tc.stepIDs[order]
	if !ok {
		return "", fmt.Errorf("no step captured for order %d", order)
	}
	return id, nil
}

// RefreshAggregate re-reads the current document and captures version, run
// and step identifiers from the aggregate response. The last response seen
// by the scenario is preserved so status assertions still refer to the step
// that preceded them.
func (tc *TestContext) RefreshAggregate(token string) error {
	if tc.docID == "" {
		return fmt.Errorf("no document in scope")
	}
	savedStatus, savedBody := tc.lastStatus, tc.lastBody
	err := tc.GET("/documents/"+tc.docID, token)
	status, body := tc.lastStatus, tc.lastBody
	tc.lastStatus, tc.lastBody = savedStatus, savedBody
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("get document: unexpected status %d", status)
	}
	tc.aggregate = body

	versionID, err := tc.AggregateField("document.currentVersionId")
	if err != nil {
		return err
	}
	tc.versionID = versionID.(string)

	runs, err := tc.AggregateField("workflowRuns")
	if err != nil {
		// A document without any workflow run is valid.
		return nil
	}
	runList, ok := runs.([]interface{})
	if !ok || len(runList) == 0 {
		return nil
	}
	run, ok := runList[0].(map[string]interface{})
	if !ok {
		return fmt.Errorf("workflow run is not an object")
	}
	tc.runID = run["id"].(string)
	steps, ok := run["steps"].([]interface{})
	if !ok {
		return nil
	}
	for _, entry := range steps {
		step, ok := entry.(map[string]interface{})
		if !ok {
			continue
		}
		order := int(step["order"].(float64))
		tc.stepIDs[order] = step["id"].(string)
	}
	return nil
}
