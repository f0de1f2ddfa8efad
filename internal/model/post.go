package model

import "time"

// Post - сохраненная сущность поста: сгенерированный текст + изображение.
// Description фиксируется при создании и больше не изменяется: он используется
// только как источник промпта при повторной генерации изображения.
type Post struct {
	ID          string    `json:"id" db:"id"`
	Text        string    `json:"text" db:"text"`
	Image       *string   `json:"image" db:"image"`
	Description string    `json:"description" db:"description"`
	CreatedAt   time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt   time.Time `json:"updatedAt" db:"updated_at"`
}

// PostUpdate - частичное обновление поста.
// Text, если задан, заменяет сохраненный текст дословно.
// RegenerateImage=true означает "перегенерировать изображение по сохраненному
// Description"; буквальное значение image из запроса никогда не используется.
type PostUpdate struct {
	Text            *string
	RegenerateImage bool
}
