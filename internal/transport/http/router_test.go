package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"doccontrol/internal/audit"
	"doccontrol/internal/document"
	"doccontrol/internal/identity"
	"doccontrol/internal/platform/middleware"
	"doccontrol/internal/signature"
	"doccontrol/internal/view"
	"doccontrol/internal/workflow"
	id "doccontrol/pkg/domain"
	"doccontrol/pkg/platform/storetx"
)

// stubValidator maps bearer tokens straight to claims.
type stubValidator struct {
	tokens map[string]*middleware.JWTClaims
}

func (v *stubValidator) ValidateToken(token string) (*middleware.JWTClaims, error) {
	claims, ok := v.tokens[token]
	if !ok {
		return nil, errors.New("unknown token")
	}
	return claims, nil
}

type env struct {
	server     *httptest.Server
	validator  *stubValidator
	documents  *document.Service
	identities *identity.Service
	runs       *workflow.InMemoryRunStore
	typeID     id.DocumentTypeID
}

func newEnv(t *testing.T) *env {
	t.Helper()
	recorder := audit.NewService(audit.NewInMemoryStore())
	uow := storetx.NewInMemory()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	identities := identity.NewService(identity.NewInMemory(), recorder, uow)
	documents := document.NewService(document.NewInMemoryStore(),
		document.NewInMemoryVersionStore(), document.NewInMemoryTypeStore(), recorder, uow)
	templateStore := workflow.NewInMemoryTemplateStore()
	runs := workflow.NewInMemoryRunStore()
	orch := workflow.NewOrchestrator(templateStore, runs, documents)
	documents.SetWorkflowStarter(orch)
	templates := workflow.NewTemplateService(templateStore, recorder, uow)
	sigStore := signature.NewInMemoryStore()
	gate := signature.NewGate(sigStore, documents, identities, runs, orch, recorder, uow)
	views := view.NewService(documents, orch, sigStore, recorder)

	validator := &stubValidator{tokens: map[string]*middleware.JWTClaims{}}
	router := NewRouter(Deps{
		Logger:     logger,
		Validator:  validator,
		Documents:  documents,
		Templates:  templates,
		Gate:       gate,
		View:       views,
		Identities: identities,
		Audit:      recorder,
	})

	e := &env{
		server:     httptest.NewServer(router),
		validator:  validator,
		documents:  documents,
		identities: identities,
		runs:       runs,
	}
	t.Cleanup(e.server.Close)

	docType, err := documents.CreateType(context.Background(),
		document.CreateTypeInput{Name: "SOP"}, id.NewUserID())
	require.NoError(t, err)
	e.typeID = docType.ID
	return e
}

// token registers a synthetic actor and returns its bearer token.
func (e *env) token(role string) string {
	userID := id.NewUserID()
	token := fmt.Sprintf("token-%s-%s", role, userID)
	e.validator.tokens[token] = &middleware.JWTClaims{UserID: userID.String(), Role: role}
	return token
}

func (e *env) do(t *testing.T, method, path, token string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, e.server.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestAuthRequired(t *testing.T) {
	e := newEnv(t)
	resp := e.do(t, http.MethodGet, "/documents", "", nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestHealthz(t *testing.T) {
	e := newEnv(t)
	resp := e.do(t, http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestCreateDocumentRoundTrip(t *testing.T) {
	e := newEnv(t)
	token := e.token("AUTHOR")

	resp := e.do(t, http.MethodPost, "/documents", token, map[string]any{
		"title":    "Line Clearance",
		"number":   "SOP-010",
		"category": "MANUFACTURING",
		"security": "INTERNAL",
		"typeId":   e.typeID.String(),
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decode[documentResponse](t, resp)
	require.Equal(t, "DRAFT", created.Status)
	require.NotEmpty(t, created.CurrentVersionID)

	resp = e.do(t, http.MethodGet, "/documents/"+created.ID, token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	aggregate := decode[aggregateResponse](t, resp)
	require.Equal(t, created.ID, aggregate.Document.ID)
	require.Len(t, aggregate.Versions, 1)
	require.NotEmpty(t, aggregate.Events)
}

func TestRoleGates(t *testing.T) {
	e := newEnv(t)
	viewer := e.token("VIEWER")

	resp := e.do(t, http.MethodPost, "/documents", viewer, map[string]any{})
	require.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = e.do(t, http.MethodGet, "/audit-log", viewer, nil)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = e.do(t, http.MethodGet, "/admin/users", viewer, nil)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = e.do(t, http.MethodGet, "/documents", viewer, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestSignatureEndpoint(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	admin := e.token("ADMIN")

	// Real user so the credential check has a hash to verify.
	resp := e.do(t, http.MethodPost, "/admin/users", admin, map[string]any{
		"name":     "Quinn Reviewer",
		"email":    "quinn@example.com",
		"password": "CorrectHorseBattery1",
		"role":     "QA",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	user := decode[userResponse](t, resp)
	qaToken := "token-qa-real"
	e.validator.tokens[qaToken] = &middleware.JWTClaims{UserID: user.ID, Role: user.Role}

	doc, err := e.documents.CreateDocument(ctx, document.CreateDocumentInput{
		Title:    "Sampling Plan",
		Number:   "SOP-020",
		Category: "QUALITY",
		Security: "INTERNAL",
		TypeID:   e.typeID,
	}, id.NewUserID(), identity.RoleAuthor)
	require.NoError(t, err)

	resp = e.do(t, http.MethodPost, "/document-versions/"+doc.CurrentVersionID.String()+"/signatures", qaToken, map[string]any{
		"purpose":    "REVIEW",
		"credential": "CorrectHorseBattery1",
		"comment":    "reviewed",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	sig := decode[signatureResponse](t, resp)
	require.Equal(t, "REVIEW", sig.Purpose)

	resp = e.do(t, http.MethodPost, "/document-versions/"+doc.CurrentVersionID.String()+"/signatures", qaToken, map[string]any{
		"purpose":    "REVIEW",
		"credential": "wrong-password",
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAuditLogEndpoint(t *testing.T) {
	e := newEnv(t)
	author := e.token("AUTHOR")
	qa := e.token("QA")

	resp := e.do(t, http.MethodPost, "/documents", author, map[string]any{
		"title":    "Receiving Inspection",
		"number":   "SOP-030",
		"category": "QUALITY",
		"security": "INTERNAL",
		"typeId":   e.typeID.String(),
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = e.do(t, http.MethodGet, "/audit-log?limit=5", qa, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	events := decode[[]auditEventResponse](t, resp)
	require.NotEmpty(t, events)
	require.Equal(t, "DOCUMENT_CREATED", events[0].Action)
}
