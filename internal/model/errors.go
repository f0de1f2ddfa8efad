package model

import "errors"

// Ошибки уровня домена. Сравнивать через errors.Is.
var (
	// ErrValidation - входной запрос не прошел валидацию (пустые обязательные поля и т.п.).
	ErrValidation = errors.New("validation error")
	// ErrPostNotFound - пост с указанным ID не найден в хранилище.
	ErrPostNotFound = errors.New("post not found")
	// ErrUpstreamService - внешний AI сервис (текст или изображение) вернул ошибку
	// или ответ в форме ошибки вместо контента.
	ErrUpstreamService = errors.New("upstream service error")
	// ErrPipelineAborted - один из этапов пайплайна генерации завершился с ошибкой,
	// весь прогон прерван, частичный пост не сохраняется.
	ErrPipelineAborted = errors.New("generation pipeline aborted")
)
