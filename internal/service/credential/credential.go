package credential

import (
	"context"
	"sync"
)

// Key фиксированное имя записи с API-ключом во всех бэкендах.
const Key = "openai_api_key"

// Store хранит единственный секрет. Формат секрета не проверяется: валидность
// определяет только удалённый сервис. Шифрования и срока жизни нет.
type Store interface {
	// Save перезаписывает текущее значение.
	Save(ctx context.Context, secret string) error
	// Load возвращает сохранённое значение; ok=false, если его нет (это не ошибка).
	Load(ctx context.Context) (secret string, ok bool, err error)
}

// MemoryStore хранилище в памяти процесса, живёт до перезапуска.
type MemoryStore struct {
	mu     sync.Mutex
	secret string
	set    bool
}

func NewMemoryStore() *MemoryStore { return &MemoryStore{} }

func (m *MemoryStore) Save(_ context.Context, secret string) error {
	m.mu.Lock()
	m.secret, m.set = secret, true
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Load(_ context.Context) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.secret, m.set, nil
}
