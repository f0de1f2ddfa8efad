package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"post-server/internal/model"
)

// fakePostOperations - управляемая тестовая реализация PostOperations.
type fakePostOperations struct {
	createPost        func(ctx context.Context, text, description string, image *string) (model.Post, error)
	getPost           func(ctx context.Context, id string) (model.Post, error)
	updatePost        func(ctx context.Context, id string, upd model.PostUpdate) (model.Post, error)
	generateImage     func(ctx context.Context, description string) (string, error)
	putReferenceTexts func(ctx context.Context, key string, texts model.ReferenceTexts) error

	lastUpdate model.PostUpdate
}

func (f *fakePostOperations) CreatePost(ctx context.Context, text, description string, image *string) (model.Post, error) {
	return f.createPost(ctx, text, description, image)
}

func (f *fakePostOperations) GetPost(ctx context.Context, id string) (model.Post, error) {
	return f.getPost(ctx, id)
}

func (f *fakePostOperations) UpdatePost(ctx context.Context, id string, upd model.PostUpdate) (model.Post, error) {
	f.lastUpdate = upd
	return f.updatePost(ctx, id, upd)
}

func (f *fakePostOperations) GenerateImage(ctx context.Context, description string) (string, error) {
	return f.generateImage(ctx, description)
}

func (f *fakePostOperations) PutReferenceTexts(ctx context.Context, key string, texts model.ReferenceTexts) error {
	return f.putReferenceTexts(ctx, key, texts)
}

func newTestRouter(ops *fakePostOperations) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	NewHTTPHandler(ops, zerolog.Nop()).RegisterRoutes(router)
	return router
}

func doRequest(t *testing.T, router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestCreatePost_Returns201(t *testing.T) {
	ops := &fakePostOperations{
		createPost: func(ctx context.Context, text, description string, image *string) (model.Post, error) {
			return model.Post{ID: "p1", Text: text, Description: description, Image: image}, nil
		},
	}
	router := newTestRouter(ops)

	rec := doRequest(t, router, http.MethodPost, "/api/posts", gin.H{
		"text":        "<p>hello</p>",
		"description": "greeting",
	})

	assert.Equal(t, http.StatusCreated, rec.Code)
	var post model.Post
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &post))
	assert.Equal(t, "p1", post.ID)
}

func TestUpdatePost_TruthyImageVariantsTriggerRegeneration(t *testing.T) {
	testCases := []struct {
		name       string
		image      any
		regenerate bool
	}{
		{"bool true", true, true},
		{"bool false", false, false},
		{"absent", nil, false},
		{"non-empty string", "https://whatever.example/x.jpg", true},
		{"empty string", "", false},
		{"number 1", 1, true},
		{"number 0", 0, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ops := &fakePostOperations{
				updatePost: func(ctx context.Context, id string, upd model.PostUpdate) (model.Post, error) {
					return model.Post{ID: id}, nil
				},
			}
			router := newTestRouter(ops)

			body := gin.H{"text": "updated"}
			if tc.image != nil {
				body["image"] = tc.image
			}
			rec := doRequest(t, router, http.MethodPatch, "/api/posts/p1", body)

			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, tc.regenerate, ops.lastUpdate.RegenerateImage)
			require.NotNil(t, ops.lastUpdate.Text)
			assert.Equal(t, "updated", *ops.lastUpdate.Text)
		})
	}
}

func TestUpdatePost_UnknownID_Returns404(t *testing.T) {
	ops := &fakePostOperations{
		updatePost: func(ctx context.Context, id string, upd model.PostUpdate) (model.Post, error) {
			return model.Post{}, model.ErrPostNotFound
		},
	}
	router := newTestRouter(ops)

	rec := doRequest(t, router, http.MethodPatch, "/api/posts/missing", gin.H{"text": "x"})

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpdatePost_ValidationError_Returns400(t *testing.T) {
	ops := &fakePostOperations{
		updatePost: func(ctx context.Context, id string, upd model.PostUpdate) (model.Post, error) {
			return model.Post{}, model.ErrValidation
		},
	}
	router := newTestRouter(ops)

	rec := doRequest(t, router, http.MethodPatch, "/api/posts/p1", gin.H{})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetPost_Found(t *testing.T) {
	ops := &fakePostOperations{
		getPost: func(ctx context.Context, id string) (model.Post, error) {
			return model.Post{ID: id, Text: "<p>t</p>"}, nil
		},
	}
	router := newTestRouter(ops)

	rec := doRequest(t, router, http.MethodGet, "/api/posts/p1", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestGenerateImage_UpstreamFailure_Returns502(t *testing.T) {
	ops := &fakePostOperations{
		generateImage: func(ctx context.Context, description string) (string, error) {
			return "", model.ErrUpstreamService
		},
	}
	router := newTestRouter(ops)

	rec := doRequest(t, router, http.MethodPost, "/api/images", gin.H{"description": "a cat"})

	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestGenerateImage_Returns201WithURL(t *testing.T) {
	ops := &fakePostOperations{
		generateImage: func(ctx context.Context, description string) (string, error) {
			return "https://img.example/cat.jpg", nil
		},
	}
	router := newTestRouter(ops)

	rec := doRequest(t, router, http.MethodPost, "/api/images", gin.H{"description": "a cat"})

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), "https://img.example/cat.jpg")
}

func TestPutReferenceTexts_Returns204(t *testing.T) {
	var gotKey string
	var gotTexts model.ReferenceTexts
	ops := &fakePostOperations{
		putReferenceTexts: func(ctx context.Context, key string, texts model.ReferenceTexts) error {
			gotKey = key
			gotTexts = texts
			return nil
		},
	}
	router := newTestRouter(ops)

	rec := doRequest(t, router, http.MethodPut, "/api/reference-texts", gin.H{
		"key":         "k1",
		"infoContent": "facts",
	})

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "k1", gotKey)
	assert.Equal(t, "facts", gotTexts.InfoContent)
}

func TestIsTruthy(t *testing.T) {
	assert.False(t, isTruthy(nil))
	assert.False(t, isTruthy(false))
	assert.False(t, isTruthy(""))
	assert.False(t, isTruthy(float64(0)))
	assert.False(t, isTruthy([]any{}))
	assert.True(t, isTruthy(true))
	assert.True(t, isTruthy("x"))
	assert.True(t, isTruthy(float64(2)))
	assert.True(t, isTruthy(map[string]any{"a": 1}))
}
