package session

import (
	"github.com/google/uuid"
	"github.com/pkoukk/tiktoken-go"
)

// Роли сообщений в контексте.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn - одна запись лога беседы: роль и содержимое.
type Turn struct {
	Role    string
	Content string
}

// Session - упорядоченный append-only лог (инструкция, ответ) одного прогона
// генерации. Создается заново на каждый прогон со свежим уникальным ID и
// никогда не переиспользуется между прогонами.
type Session struct {
	id    string
	turns []Turn

	// Защитная граница на размер контекста: контекст пересылается внешнему
	// сервису целиком на каждом этапе, поэтому старые пары реплик
	// вытесняются из представления Messages(), когда бюджет исчерпан.
	// Сам лог при этом не усекается.
	maxContextTokens int
	encoder          *tiktoken.Tiktoken
}

// New создает пустую сессию для одного прогона.
// model используется для подбора токенизатора; если токенизатор для модели
// недоступен, граница контекста не применяется (бюджет пайплайна ограничен
// числом этапов).
func New(model string, maxContextTokens int) *Session {
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc = nil
	}
	return &Session{
		id:               uuid.NewString(),
		maxContextTokens: maxContextTokens,
		encoder:          enc,
	}
}

// ID возвращает уникальный идентификатор прогона.
func (s *Session) ID() string {
	return s.id
}

// Append добавляет одну реплику в конец лога.
func (s *Session) Append(role, content string) {
	s.turns = append(s.turns, Turn{Role: role, Content: content})
}

// AppendExchange добавляет пару (инструкция этапа, агрегированный ответ этапа).
func (s *Session) AppendExchange(instruction, response string) {
	s.Append(RoleUser, instruction)
	s.Append(RoleAssistant, response)
}

// Len возвращает количество реплик в логе.
func (s *Session) Len() int {
	return len(s.turns)
}

// Messages возвращает контекст для следующего вызова внешнего сервиса:
// реплики в порядке добавления. Если суммарный размер превышает границу,
// отбрасываются самые старые ПАРЫ реплик (порядок оставшихся сохраняется).
func (s *Session) Messages() []Turn {
	if s.encoder == nil || s.maxContextTokens <= 0 {
		return append([]Turn(nil), s.turns...)
	}

	total := 0
	// Идем с конца: свежие реплики важнее для связности продолжения.
	cut := 0
	for i := len(s.turns) - 1; i >= 0; i-- {
		total += len(s.encoder.Encode(s.turns[i].Content, nil, nil))
		if total > s.maxContextTokens {
			cut = i + 1
			break
		}
	}
	// Срез по границе пары: user-реплика без ответа контекст только портит.
	if cut%2 != 0 {
		cut++
	}
	if cut > len(s.turns) {
		cut = len(s.turns)
	}
	return append([]Turn(nil), s.turns[cut:]...)
}
