package ws

import (
	"errors"
	"sync"
)

type Conn interface {
	Send(ev Event) error
	Close() error
	UserID() int64
}

// Hub — реестр подписок: имя канала -> множество живых соединений.
// Один пользователь может держать несколько соединений (устройства/вкладки).
type Hub struct {
	mu       sync.RWMutex
	channels map[string]map[Conn]struct{}
	conns    map[Conn]map[string]struct{} // обратный индекс для быстрого Remove
}

func NewHub() *Hub {
	return &Hub{
		channels: make(map[string]map[Conn]struct{}),
		conns:    make(map[Conn]map[string]struct{}),
	}
}

func (h *Hub) Subscribe(c Conn, channel string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	cs, ok := h.channels[channel]
	if !ok {
		cs = make(map[Conn]struct{})
		h.channels[channel] = cs
	}
	cs[c] = struct{}{}

	chs, ok := h.conns[c]
	if !ok {
		chs = make(map[string]struct{})
		h.conns[c] = chs
	}
	chs[channel] = struct{}{}
}

func (h *Hub) Unsubscribe(c Conn, channel string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.dropLocked(c, channel)
}

// Remove снимает соединение со всех каналов (disconnect).
func (h *Hub) Remove(c Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for channel := range h.conns[c] {
		h.dropLocked(c, channel)
	}
	delete(h.conns, c)
}

func (h *Hub) dropLocked(c Conn, channel string) {
	if cs, ok := h.channels[channel]; ok {
		delete(cs, c)
		if len(cs) == 0 {
			delete(h.channels, channel)
		}
	}
	if chs, ok := h.conns[c]; ok {
		delete(chs, channel)
	}
}

// Publish доставляет событие всем текущим подписчикам канала (at-least-once,
// без реплея: отвалившийся клиент перечитает историю через Message Store).
// Возвращает ошибку, если хотя бы одна доставка не удалась.
func (h *Hub) Publish(channel string, ev Event) error {
	h.mu.RLock()
	conns := make([]Conn, 0, 4)
	for c := range h.channels[channel] {
		conns = append(conns, c)
	}
	h.mu.RUnlock()

	var errs []error
	for _, c := range conns {
		if err := c.Send(ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Subscribers — число живых подписчиков канала.
func (h *Hub) Subscribers(channel string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.channels[channel])
}
