package web

import (
	"SpeechStudio/internal/app/generator"
	"context"
	"sync"
)

var _ generator.CredentialPrompter = (*Prompter)(nil)

// Prompter запрашивает ключ через модальное окно страницы: шлёт событие и ждёт
// POST /api/credential (ввод) или DELETE /api/credential/prompt (отказ).
type Prompter struct {
	hub *Hub

	mu      sync.Mutex
	pending chan string
	done    chan struct{}
	stopped bool
}

func NewPrompter(hub *Hub) *Prompter {
	return &Prompter{hub: hub, done: make(chan struct{})}
}

func (p *Prompter) PromptCredential(ctx context.Context) (string, error) {
	ch := make(chan string, 1)
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return "", generator.ErrAbandoned
	}
	p.pending = ch
	p.mu.Unlock()

	p.hub.Broadcast(Event{Type: EventCredentialRequired})
	defer func() {
		p.mu.Lock()
		if p.pending == ch {
			p.pending = nil
		}
		p.mu.Unlock()
		p.hub.Broadcast(Event{Type: EventCredentialClosed})
	}()

	select {
	case secret, ok := <-ch:
		if !ok || secret == "" {
			return "", generator.ErrAbandoned
		}
		return secret, nil
	case <-ctx.Done():
		return "", generator.ErrAbandoned
	case <-p.done:
		return "", generator.ErrAbandoned
	}
}

// Submit передаёт ключ ожидающему запросу. false — никто не ждёт.
func (p *Prompter) Submit(secret string) bool {
	return p.resolve(secret)
}

// Abandon закрывает ожидающий запрос без ключа.
func (p *Prompter) Abandon() bool {
	return p.resolve("")
}

func (p *Prompter) Pending() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pending != nil
}

// Stop прерывает ожидание при остановке сервера.
func (p *Prompter) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.stopped {
		p.stopped = true
		close(p.done)
	}
}

func (p *Prompter) resolve(secret string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pending == nil {
		return false
	}
	p.pending <- secret
	p.pending = nil
	return true
}
