package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"post-server/internal/mocks"
	"post-server/internal/model"
	"post-server/internal/service"
)

func strPtr(s string) *string { return &s }

func newPostService(t *testing.T) (*service.PostService, *mocks.MockPostRepository, *mocks.MockImageGenerator, *mocks.MockArticleGenerator, *mocks.MockReferenceTextStore, *mocks.MockNotifier) {
	repo := mocks.NewMockPostRepository(t)
	images := mocks.NewMockImageGenerator(t)
	generator := mocks.NewMockArticleGenerator(t)
	refTexts := mocks.NewMockReferenceTextStore(t)
	notifier := mocks.NewMockNotifier(t)
	svc := service.NewPostService(repo, images, generator, refTexts, notifier, zerolog.Nop())
	return svc, repo, images, generator, refTexts, notifier
}

func storedPost() model.Post {
	return model.Post{
		ID:          "11111111-1111-1111-1111-111111111111",
		Text:        "<p>old text</p>",
		Image:       strPtr("https://img.example/old.jpg"),
		Description: "Espresso machines through the ages",
	}
}

func TestUpdatePost_TextOnly_ReplacesVerbatim(t *testing.T) {
	svc, repo, images, _, _, _ := newPostService(t)
	post := storedPost()

	repo.On("GetByID", mock.Anything, post.ID).Return(post, nil).Once()
	newText := "<p>brand new text</p>"
	updated := post
	updated.Text = newText
	repo.On("Update", mock.Anything, post.ID, &newText, (*string)(nil)).Return(updated, nil).Once()

	result, err := svc.UpdatePost(context.Background(), post.ID, model.PostUpdate{Text: &newText})

	require.NoError(t, err)
	assert.Equal(t, newText, result.Text)
	// Генератор изображений не вызывался.
	images.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)
	repo.AssertExpectations(t)
}

func TestUpdatePost_RegenerateImage_UsesStoredDescription(t *testing.T) {
	svc, repo, images, _, _, _ := newPostService(t)
	post := storedPost()

	repo.On("GetByID", mock.Anything, post.ID).Return(post, nil).Once()
	// Промпт строится из СОХРАНЕННОГО description, не из значения image запроса.
	images.On("Generate", mock.Anything, post.Description).
		Return("https://img.example/new.jpg", nil).Once()
	repo.On("Update", mock.Anything, post.ID, (*string)(nil), strPtr("https://img.example/new.jpg")).
		Return(post, nil).Once()

	_, err := svc.UpdatePost(context.Background(), post.ID, model.PostUpdate{RegenerateImage: true})

	require.NoError(t, err)
	repo.AssertExpectations(t)
	images.AssertExpectations(t)
}

func TestUpdatePost_TextAndImage_Combined(t *testing.T) {
	svc, repo, images, _, _, _ := newPostService(t)
	post := storedPost()
	newText := "<p>updated</p>"

	repo.On("GetByID", mock.Anything, post.ID).Return(post, nil).Once()
	images.On("Generate", mock.Anything, post.Description).
		Return("https://img.example/new.jpg", nil).Once()
	repo.On("Update", mock.Anything, post.ID, &newText, strPtr("https://img.example/new.jpg")).
		Return(post, nil).Once()

	_, err := svc.UpdatePost(context.Background(), post.ID, model.PostUpdate{Text: &newText, RegenerateImage: true})
	require.NoError(t, err)
}

func TestUpdatePost_UnknownID_NoUpstreamCalls(t *testing.T) {
	svc, repo, images, _, _, _ := newPostService(t)

	repo.On("GetByID", mock.Anything, "missing").
		Return(model.Post{}, model.ErrPostNotFound).Once()

	_, err := svc.UpdatePost(context.Background(), "missing", model.PostUpdate{RegenerateImage: true})

	assert.ErrorIs(t, err, model.ErrPostNotFound)
	images.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)
	repo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestUpdatePost_EmptyUpdate_Rejected(t *testing.T) {
	svc, repo, _, _, _, _ := newPostService(t)

	_, err := svc.UpdatePost(context.Background(), "any", model.PostUpdate{})

	assert.ErrorIs(t, err, model.ErrValidation)
	repo.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)
}

func TestUpdatePost_ImageFailure_PropagatedWithoutUpdate(t *testing.T) {
	svc, repo, images, _, _, _ := newPostService(t)
	post := storedPost()

	repo.On("GetByID", mock.Anything, post.ID).Return(post, nil).Once()
	images.On("Generate", mock.Anything, post.Description).
		Return("", service.ErrImageGenerationFailed).Once()

	_, err := svc.UpdatePost(context.Background(), post.ID, model.PostUpdate{RegenerateImage: true})

	assert.ErrorIs(t, err, model.ErrUpstreamService)
	repo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestGeneratePost_HappyPath(t *testing.T) {
	svc, repo, images, generator, _, notifier := newPostService(t)

	req := model.GenerationRequest{
		Description:     "City gardens",
		ArticleLength:   4,
		LayoutStructure: "intro, body, conclusion",
	}

	generator.On("Run", mock.Anything, req, mock.Anything).
		Return("<p>article</p>", nil).Once()
	images.On("Generate", mock.Anything, req.Description).
		Return("https://img.example/a.jpg", nil).Once()
	repo.On("Create", mock.Anything, mock.MatchedBy(func(p model.Post) bool {
		return p.Text == "<p>article</p>" && p.Description == req.Description && p.Image != nil
	})).Return(model.Post{ID: "new-id", Text: "<p>article</p>"}, nil).Once()
	notifier.On("Notify", mock.Anything, mock.MatchedBy(func(n service.PostGeneratedNotification) bool {
		return n.Status == service.NotificationStatusSuccess && n.PostID == "new-id"
	})).Return(nil).Once()

	post, err := svc.GeneratePost(context.Background(), "run-1", req, service.DiscardSink{})

	require.NoError(t, err)
	assert.Equal(t, "new-id", post.ID)
	notifier.AssertExpectations(t)
}

func TestGeneratePost_ConsumesReferenceTexts(t *testing.T) {
	svc, repo, images, generator, refTexts, notifier := newPostService(t)

	req := model.GenerationRequest{
		Description:       "City gardens",
		ArticleLength:     4,
		LayoutStructure:   "intro, body, conclusion",
		ReferenceTextsKey: "key-1",
	}
	texts := model.ReferenceTexts{InfoContent: "background info"}

	refTexts.On("Consume", mock.Anything, "key-1").Return(texts, nil).Once()
	// Пайплайн получает запрос уже с заполненными справочными текстами.
	generator.On("Run", mock.Anything, mock.MatchedBy(func(r model.GenerationRequest) bool {
		return r.ReferenceTexts == texts
	}), mock.Anything).Return("<p>a</p>", nil).Once()
	images.On("Generate", mock.Anything, req.Description).Return("u", nil).Once()
	repo.On("Create", mock.Anything, mock.Anything).Return(model.Post{ID: "id"}, nil).Once()
	notifier.On("Notify", mock.Anything, mock.Anything).Return(nil).Once()

	_, err := svc.GeneratePost(context.Background(), "run-2", req, nil)
	require.NoError(t, err)
	refTexts.AssertExpectations(t)
}

func TestGeneratePost_PipelineFailure_NotifiesError(t *testing.T) {
	svc, repo, images, generator, _, notifier := newPostService(t)

	req := model.GenerationRequest{
		Description:     "City gardens",
		ArticleLength:   4,
		LayoutStructure: "intro, body, conclusion",
	}

	generator.On("Run", mock.Anything, req, mock.Anything).
		Return("", model.ErrPipelineAborted).Once()
	notifier.On("Notify", mock.Anything, mock.MatchedBy(func(n service.PostGeneratedNotification) bool {
		return n.Status == service.NotificationStatusError && n.PostID == ""
	})).Return(nil).Once()

	_, err := svc.GeneratePost(context.Background(), "run-3", req, service.DiscardSink{})

	assert.ErrorIs(t, err, model.ErrPipelineAborted)
	// Частичный результат не сохраняется, изображение не генерируется.
	repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	images.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)
	notifier.AssertExpectations(t)
}

func TestGeneratePost_NotifierFailureDoesNotFailRun(t *testing.T) {
	svc, repo, images, generator, _, notifier := newPostService(t)

	req := model.GenerationRequest{
		Description:     "City gardens",
		ArticleLength:   4,
		LayoutStructure: "intro, body, conclusion",
	}

	generator.On("Run", mock.Anything, req, mock.Anything).Return("<p>a</p>", nil).Once()
	images.On("Generate", mock.Anything, req.Description).Return("u", nil).Once()
	repo.On("Create", mock.Anything, mock.Anything).Return(model.Post{ID: "id"}, nil).Once()
	notifier.On("Notify", mock.Anything, mock.Anything).Return(errors.New("broker down")).Once()

	post, err := svc.GeneratePost(context.Background(), "run-4", req, nil)

	require.NoError(t, err)
	assert.Equal(t, "id", post.ID)
}

func TestGenerateImage_EmptyDescriptionRejected(t *testing.T) {
	svc, _, images, _, _, _ := newPostService(t)

	_, err := svc.GenerateImage(context.Background(), "")

	assert.ErrorIs(t, err, model.ErrValidation)
	images.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)
}

func TestCreatePost_RequiresDescription(t *testing.T) {
	svc, repo, _, _, _, _ := newPostService(t)

	_, err := svc.CreatePost(context.Background(), "text", "", nil)

	assert.ErrorIs(t, err, model.ErrValidation)
	repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}
