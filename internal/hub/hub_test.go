package hub

import (
	"bytes"
	"testing"
	"time"

	"github.com/shenikar/guardian_tracking_system/internal/models"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestHub создает хаб с тихим логгером
func newTestHub(bufferSize int) *Hub {
	logger := logrus.New()
	logger.SetOutput(&bytes.Buffer{}) // Отключаем вывод логов в тестах
	return NewHub(bufferSize, logger)
}

func sampleAt(subjectID string, ts time.Time) models.LocationSample {
	return models.LocationSample{
		SubjectID:  subjectID,
		Latitude:   55.75,
		Longitude:  37.61,
		CapturedAt: ts,
	}
}

// recvSample читает один сэмпл из канала подписчика с таймаутом
func recvSample(t *testing.T, sub *Subscriber) models.LocationSample {
	t.Helper()
	select {
	case sample, ok := <-sub.Events():
		require.True(t, ok, "events channel closed unexpectedly")
		return sample
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for sample")
		return models.LocationSample{}
	}
}

func requireNoSample(t *testing.T, sub *Subscriber) {
	t.Helper()
	select {
	case sample := <-sub.Events():
		t.Fatalf("unexpected sample delivered: %+v", sample)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestPublish_DeliversToSubscriber(t *testing.T) {
	h := newTestHub(8)
	sub := h.Register("conn-1")
	require.NoError(t, h.Subscribe("conn-1", []string{"U1"}))

	now := time.Now()
	accepted := h.Publish(sampleAt("U1", now))

	assert.True(t, accepted)
	got := recvSample(t, sub)
	assert.Equal(t, "U1", got.SubjectID)
	assert.Equal(t, now, got.CapturedAt)

	stored := h.LastSample("U1")
	require.NotNil(t, stored)
	assert.Equal(t, now, stored.CapturedAt)
}

func TestPublish_StaleRejected(t *testing.T) {
	h := newTestHub(8)
	sub := h.Register("conn-1")
	require.NoError(t, h.Subscribe("conn-1", []string{"U1"}))

	now := time.Now()
	require.True(t, h.Publish(sampleAt("U1", now)))
	recvSample(t, sub)

	// Более старый и равный по времени сэмплы не принимаются и не доставляются
	assert.False(t, h.Publish(sampleAt("U1", now.Add(-time.Second))))
	assert.False(t, h.Publish(sampleAt("U1", now)))
	requireNoSample(t, sub)

	stored := h.LastSample("U1")
	require.NotNil(t, stored)
	assert.Equal(t, now, stored.CapturedAt)
}

func TestSubscribe_SnapshotDelivery(t *testing.T) {
	h := newTestHub(8)
	now := time.Now()
	require.True(t, h.Publish(sampleAt("U1", now)))

	// Поздний подписчик сразу получает последний известный сэмпл
	sub := h.Register("conn-late")
	require.NoError(t, h.Subscribe("conn-late", []string{"U1", "U2"}))

	got := recvSample(t, sub)
	assert.Equal(t, "U1", got.SubjectID)
	assert.Equal(t, now, got.CapturedAt)
	// Для U2 сэмпла нет - снапшот не доставляется
	requireNoSample(t, sub)
}

func TestSubscribe_NotRegistered(t *testing.T) {
	h := newTestHub(8)
	err := h.Subscribe("ghost", []string{"U1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not registered")
}

func TestPublish_FanOutToTwoSubscribers(t *testing.T) {
	h := newTestHub(8)
	sub1 := h.Register("conn-1")
	sub2 := h.Register("conn-2")
	require.NoError(t, h.Subscribe("conn-1", []string{"U1"}))
	require.NoError(t, h.Subscribe("conn-2", []string{"U1"}))

	now := time.Now()
	require.True(t, h.Publish(sampleAt("U1", now)))

	got1 := recvSample(t, sub1)
	got2 := recvSample(t, sub2)
	assert.Equal(t, got1, got2)

	// Отключение одного подписчика не влияет на доставку другому
	h.Disconnect("conn-1")
	require.True(t, h.Publish(sampleAt("U1", now.Add(time.Second))))
	got2 = recvSample(t, sub2)
	assert.Equal(t, now.Add(time.Second), got2.CapturedAt)
}

func TestPublish_MonotonicDelivery(t *testing.T) {
	h := newTestHub(64)
	sub := h.Register("conn-1")
	require.NoError(t, h.Subscribe("conn-1", []string{"U1"}))

	base := time.Now()
	const n = 20
	for i := 0; i < n; i++ {
		require.True(t, h.Publish(sampleAt("U1", base.Add(time.Duration(i)*time.Millisecond))))
	}

	prev := time.Time{}
	for i := 0; i < n; i++ {
		got := recvSample(t, sub)
		assert.True(t, got.CapturedAt.After(prev), "delivery is not monotonic")
		prev = got.CapturedAt
	}

	stored := h.LastSample("U1")
	require.NotNil(t, stored)
	assert.Equal(t, base.Add((n-1)*time.Millisecond), stored.CapturedAt)
}

func TestPublish_OverflowDisconnectsSlowSubscriber(t *testing.T) {
	h := newTestHub(1)
	sub := h.Register("conn-slow")
	require.NoError(t, h.Subscribe("conn-slow", []string{"U1"}))

	base := time.Now()
	// Первый сэмпл занимает буфер, второй переполняет его
	require.True(t, h.Publish(sampleAt("U1", base)))
	require.True(t, h.Publish(sampleAt("U1", base.Add(time.Second))))

	// Подписчик отключен: буферизованный сэмпл дочитывается, затем канал закрыт
	recvSample(t, sub)
	select {
	case _, ok := <-sub.Events():
		assert.False(t, ok, "events channel must be closed after overflow")
	case <-time.After(time.Second):
		t.Fatal("events channel was not closed after overflow")
	}
	assert.Equal(t, 0, h.SubscriberCount())

	// Хаб продолжает принимать обновления после отключения подписчика
	assert.True(t, h.Publish(sampleAt("U1", base.Add(2*time.Second))))
}

func TestUnsubscribe_StopsDelivery(t *testing.T) {
	h := newTestHub(8)
	sub := h.Register("conn-1")
	require.NoError(t, h.Subscribe("conn-1", []string{"U1"}))

	h.Unsubscribe("conn-1", []string{"U1"})
	require.True(t, h.Publish(sampleAt("U1", time.Now())))
	requireNoSample(t, sub)
}

func TestDisconnect_Idempotent(t *testing.T) {
	h := newTestHub(8)
	h.Register("conn-1")
	require.NoError(t, h.Subscribe("conn-1", []string{"U1"}))

	h.Disconnect("conn-1")
	h.Disconnect("conn-1") // Повторный вызов безопасен
	assert.Equal(t, 0, h.SubscriberCount())
}

func TestCounters(t *testing.T) {
	h := newTestHub(8)
	h.Register("conn-1")
	require.NoError(t, h.Subscribe("conn-1", []string{"U1"}))

	assert.Equal(t, 1, h.SubscriberCount())
	assert.Equal(t, 0, h.SubjectCount())

	require.True(t, h.Publish(sampleAt("U1", time.Now())))
	assert.Equal(t, 1, h.SubjectCount())
}
