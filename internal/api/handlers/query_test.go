package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gridpoint-ai/gridpoint/internal/domain"
	"github.com/gridpoint-ai/gridpoint/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockRetrieverService struct {
	mock.Mock
}

func (m *MockRetrieverService) Retrieve(ctx context.Context, input service.RetrieveInput) ([]*service.RetrievedChunk, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*service.RetrievedChunk), args.Error(1)
}

func TestQueryHandler_Query_Success(t *testing.T) {
	mockSvc := new(MockRetrieverService)
	handler := NewQueryHandler(mockSvc)

	results := []*service.RetrievedChunk{
		{
			Chunk: &domain.Chunk{
				ID:         "chunk-1",
				DocumentID: "doc-1",
				ChunkIndex: 0,
				Content:    "Curtailment is expected during spring hours.",
			},
			DocumentFilename: "grid-study.pdf",
			Score:            0.92,
		},
		{
			Chunk: &domain.Chunk{
				ID:         "chunk-2",
				DocumentID: "doc-1",
				ChunkIndex: 3,
				Content:    "The interconnection queue position was confirmed.",
			},
			DocumentFilename: "grid-study.pdf",
			Score:            0.71,
		},
	}
	mockSvc.On("Retrieve", mock.Anything, mock.MatchedBy(func(input service.RetrieveInput) bool {
		return input.OwnerID == "user-456" &&
			input.Query == "curtailment" &&
			len(input.ProjectIDs) == 1 &&
			input.Limit == 3 &&
			input.Threshold == 0.5
	})).Return(results, nil)

	body := `{"query":"curtailment","project_ids":["proj-789"],"k":3,"threshold":0.5}`
	req := requestWithUserID(http.MethodPost, "/documents/query", []byte(body))
	w := httptest.NewRecorder()

	handler.Query(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data QueryResponse `json:"data"`
	}
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	require.NoError(t, err)
	require.Len(t, resp.Data.Results, 2)
	assert.Equal(t, "chunk-1", resp.Data.Results[0].ChunkID)
	assert.Equal(t, "grid-study.pdf", resp.Data.Results[0].Filename)
	assert.InDelta(t, 0.92, resp.Data.Results[0].Score, 0.001)
	assert.Equal(t, 3, resp.Data.Results[1].ChunkIndex)
	mockSvc.AssertExpectations(t)
}

func TestQueryHandler_Query_Defaults(t *testing.T) {
	mockSvc := new(MockRetrieverService)
	handler := NewQueryHandler(mockSvc)

	mockSvc.On("Retrieve", mock.Anything, mock.MatchedBy(func(input service.RetrieveInput) bool {
		return input.Limit == 5 && input.Threshold == 0.3
	})).Return([]*service.RetrievedChunk{}, nil)

	body := `{"query":"noise study","project_ids":["proj-789"]}`
	req := requestWithUserID(http.MethodPost, "/documents/query", []byte(body))
	w := httptest.NewRecorder()

	handler.Query(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data QueryResponse `json:"data"`
	}
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	require.NoError(t, err)
	assert.Empty(t, resp.Data.Results)
	mockSvc.AssertExpectations(t)
}

func TestQueryHandler_Query_EmptyScope(t *testing.T) {
	mockSvc := new(MockRetrieverService)
	handler := NewQueryHandler(mockSvc)

	mockSvc.On("Retrieve", mock.Anything, mock.MatchedBy(func(input service.RetrieveInput) bool {
		return len(input.ProjectIDs) == 0
	})).Return([]*service.RetrievedChunk{}, nil)

	body := `{"query":"setback requirements"}`
	req := requestWithUserID(http.MethodPost, "/documents/query", []byte(body))
	w := httptest.NewRecorder()

	handler.Query(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"results":[]`)
}

func TestQueryHandler_Query_MissingQuery(t *testing.T) {
	mockSvc := new(MockRetrieverService)
	handler := NewQueryHandler(mockSvc)

	body := `{"project_ids":["proj-789"]}`
	req := requestWithUserID(http.MethodPost, "/documents/query", []byte(body))
	w := httptest.NewRecorder()

	handler.Query(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "query is required")
	mockSvc.AssertNotCalled(t, "Retrieve")
}

func TestQueryHandler_Query_ScopeForbidden(t *testing.T) {
	mockSvc := new(MockRetrieverService)
	handler := NewQueryHandler(mockSvc)

	mockSvc.On("Retrieve", mock.Anything, mock.Anything).Return(nil, domain.ErrScopeForbidden)

	body := `{"query":"hi","project_ids":["someone-elses"]}`
	req := requestWithUserID(http.MethodPost, "/documents/query", []byte(body))
	w := httptest.NewRecorder()

	handler.Query(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestQueryHandler_Query_Unauthorized(t *testing.T) {
	handler := NewQueryHandler(new(MockRetrieverService))

	req := httptest.NewRequest(http.MethodPost, "/documents/query", nil)
	w := httptest.NewRecorder()

	handler.Query(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
