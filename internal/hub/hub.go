package hub

import (
	"fmt"
	"sync"

	"github.com/shenikar/guardian_tracking_system/internal/models"
	"github.com/sirupsen/logrus"
)

// Subscriber - приёмник событий хаба, принадлежащий одному соединению.
// События читаются из Events(); при переполнении буфера хаб закрывает канал
// и снимает все подписки соединения (backpressure через отключение).
type Subscriber struct {
	connID string
	ch     chan models.LocationSample

	mu     sync.Mutex
	closed bool
}

// ConnID возвращает идентификатор соединения-владельца
func (s *Subscriber) ConnID() string {
	return s.connID
}

// Events возвращает канал доставки сэмплов. Канал закрывается,
// когда хаб отключает подписчика.
func (s *Subscriber) Events() <-chan models.LocationSample {
	return s.ch
}

// deliver пытается положить сэмпл в буфер подписчика, не блокируясь.
// Возвращает false при переполнении буфера.
func (s *Subscriber) deliver(sample models.LocationSample) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return true
	}
	select {
	case s.ch <- sample:
		return true
	default:
		return false
	}
}

func (s *Subscriber) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.ch)
}

// subjectEntry - состояние одного субъекта: последний сэмпл и подписчики.
// Мьютекс сериализует Publish и рассылку по этому субъекту, что даёт
// монотонность доставки по capturedAt для каждого подписчика.
type subjectEntry struct {
	mu   sync.Mutex
	last *models.LocationSample
	subs map[string]*Subscriber
}

// Hub - брокер подписок на обновления местоположения.
// Хранит не более одного сэмпла на субъект (last-write-wins по capturedAt).
type Hub struct {
	mu          sync.RWMutex
	subscribers map[string]*Subscriber         // connID -> подписчик
	subjects    map[string]*subjectEntry       // subjectID -> состояние субъекта
	interests   map[string]map[string]struct{} // connID -> множество subjectID

	bufferSize int
	logger     *logrus.Logger
}

// NewHub создает новый хаб с заданным размером буфера на подписчика
func NewHub(bufferSize int, logger *logrus.Logger) *Hub {
	if bufferSize <= 0 {
		bufferSize = 64
	}
	return &Hub{
		subscribers: make(map[string]*Subscriber),
		subjects:    make(map[string]*subjectEntry),
		interests:   make(map[string]map[string]struct{}),
		bufferSize:  bufferSize,
		logger:      logger,
	}
}

// Register регистрирует соединение как подписчика. Повторная регистрация
// того же connID возвращает уже существующего подписчика.
func (h *Hub) Register(connID string) *Subscriber {
	h.mu.Lock()
	defer h.mu.Unlock()

	if sub, ok := h.subscribers[connID]; ok {
		return sub
	}
	sub := &Subscriber{
		connID: connID,
		ch:     make(chan models.LocationSample, h.bufferSize),
	}
	h.subscribers[connID] = sub
	h.interests[connID] = make(map[string]struct{})
	return sub
}

// Subscribe регистрирует интерес соединения к субъектам и сразу доставляет
// последний известный сэмпл каждого субъекта, чтобы поздний подписчик
// не оставался слепым до следующего обновления.
func (h *Hub) Subscribe(connID string, subjectIDs []string) error {
	h.mu.Lock()
	sub, ok := h.subscribers[connID]
	if !ok {
		h.mu.Unlock()
		return fmt.Errorf("hub: connection %s is not registered", connID)
	}
	entries := make([]*subjectEntry, 0, len(subjectIDs))
	for _, subjectID := range subjectIDs {
		entry, exists := h.subjects[subjectID]
		if !exists {
			entry = &subjectEntry{subs: make(map[string]*Subscriber)}
			h.subjects[subjectID] = entry
		}
		h.interests[connID][subjectID] = struct{}{}
		entries = append(entries, entry)
	}
	h.mu.Unlock()

	overflow := false
	for _, entry := range entries {
		entry.mu.Lock()
		entry.subs[connID] = sub
		if entry.last != nil && !sub.deliver(*entry.last) {
			overflow = true
		}
		entry.mu.Unlock()
	}

	if overflow {
		h.logger.WithField("conn_id", connID).Warn("Subscriber backlog overflow on snapshot delivery, disconnecting")
		h.Disconnect(connID)
	}
	return nil
}

// Unsubscribe снимает интерес соединения к перечисленным субъектам
func (h *Hub) Unsubscribe(connID string, subjectIDs []string) {
	h.mu.Lock()
	entries := make([]*subjectEntry, 0, len(subjectIDs))
	for _, subjectID := range subjectIDs {
		if entry, ok := h.subjects[subjectID]; ok {
			entries = append(entries, entry)
		}
		if interests, ok := h.interests[connID]; ok {
			delete(interests, subjectID)
		}
	}
	h.mu.Unlock()

	for _, entry := range entries {
		entry.mu.Lock()
		delete(entry.subs, connID)
		entry.mu.Unlock()
	}
}

// Disconnect снимает все подписки соединения и закрывает его канал событий.
// Идемпотентен: повторные вызовы безопасны.
func (h *Hub) Disconnect(connID string) {
	h.mu.Lock()
	sub, ok := h.subscribers[connID]
	if !ok {
		h.mu.Unlock()
		return
	}
	delete(h.subscribers, connID)

	entries := make([]*subjectEntry, 0, len(h.interests[connID]))
	for subjectID := range h.interests[connID] {
		if entry, exists := h.subjects[subjectID]; exists {
			entries = append(entries, entry)
		}
	}
	delete(h.interests, connID)
	h.mu.Unlock()

	for _, entry := range entries {
		entry.mu.Lock()
		delete(entry.subs, connID)
		entry.mu.Unlock()
	}

	sub.close()
}

// Publish принимает сэмпл, если для субъекта нет сохраненного сэмпла или новый
// строго новее по capturedAt; иначе сэмпл молча отбрасывается (stale-update).
// Рассылка подписчикам не блокирует издателя: медленный подписчик при
// переполнении своего буфера отключается.
func (h *Hub) Publish(sample models.LocationSample) bool {
	h.mu.Lock()
	entry, ok := h.subjects[sample.SubjectID]
	if !ok {
		entry = &subjectEntry{subs: make(map[string]*Subscriber)}
		h.subjects[sample.SubjectID] = entry
	}
	h.mu.Unlock()

	entry.mu.Lock()
	if entry.last != nil && !sample.CapturedAt.After(entry.last.CapturedAt) {
		entry.mu.Unlock()
		return false
	}
	stored := sample
	entry.last = &stored

	var overflowed []*Subscriber
	for _, sub := range entry.subs {
		if !sub.deliver(stored) {
			overflowed = append(overflowed, sub)
		}
	}
	entry.mu.Unlock()

	for _, sub := range overflowed {
		h.logger.WithFields(logrus.Fields{
			"conn_id":    sub.ConnID(),
			"subject_id": sample.SubjectID,
		}).Warn("Subscriber backlog overflow, disconnecting")
		h.Disconnect(sub.ConnID())
	}
	return true
}

// LastSample возвращает копию последнего известного сэмпла субъекта или nil
func (h *Hub) LastSample(subjectID string) *models.LocationSample {
	h.mu.RLock()
	entry, ok := h.subjects[subjectID]
	h.mu.RUnlock()
	if !ok {
		return nil
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	if entry.last == nil {
		return nil
	}
	sample := *entry.last
	return &sample
}

// SubscriberCount возвращает число зарегистрированных подписчиков
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

// SubjectCount возвращает число субъектов с известным местоположением
func (h *Hub) SubjectCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	count := 0
	for _, entry := range h.subjects {
		entry.mu.Lock()
		if entry.last != nil {
			count++
		}
		entry.mu.Unlock()
	}
	return count
}
