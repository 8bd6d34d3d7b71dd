package broadcast

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/unkn0wn-root/tagcache/internal/domain"
)

var (
	created = time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)
	author  = domain.User{ID: "u1", Name: "Ada", Email: "ada@example.com"}
)

type recorder struct {
	mu   sync.Mutex
	msgs []Message
	err  error
}

func (r *recorder) Publish(_ context.Context, channel, event string, payload map[string]any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, Message{Channel: channel, Event: event, Payload: payload})
	return r.err
}

func (r *recorder) all() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Message(nil), r.msgs...)
}

func assertPrimitive(t *testing.T, p map[string]any) {
	t.Helper()
	for k, v := range p {
		switch v.(type) {
		case string, bool, int, int64, float64:
		default:
			t.Errorf("field %q is %T, want a primitive", k, v)
		}
	}
}

func TestProjectionsAreFlat(t *testing.T) {
	q := domain.Question{ID: "q1", UserID: "u1", Title: "Why Go?", Body: "b", Tags: "go, lang", AnswerCount: 2, CreatedAt: created}
	p := QuestionCreated(q, author)
	assert.Equal(t, "q1", p["id"])
	assert.Equal(t, "Ada", p["user_name"])
	assert.Equal(t, "go,lang", p["tags"])
	assert.Equal(t, "2024-05-01T09:30:00Z", p["created_at"])
	assert.NotContains(t, p, "email")
	assertPrimitive(t, p)

	a := domain.Answer{ID: "a1", QuestionID: "q1", UserID: "u1", Body: "because", CreatedAt: created}
	p = AnswerCreated(a, author)
	assert.Equal(t, "q1", p["question_id"])
	assert.Equal(t, false, p["is_accepted"])
	assertPrimitive(t, p)

	_, err := json.Marshal(p)
	require.NoError(t, err)
}

func TestAnnounceChannels(t *testing.T) {
	rec := &recorder{}
	ctx := context.Background()
	require.NoError(t, AnnounceQuestion(ctx, rec, domain.Question{ID: "q1"}, author))
	require.NoError(t, AnnounceAnswer(ctx, rec, domain.Answer{ID: "a1", QuestionID: "q1"}, author))

	msgs := rec.all()
	require.Len(t, msgs, 2)
	assert.Equal(t, ChannelQuestions, msgs[0].Channel)
	assert.Equal(t, EventQuestionCreated, msgs[0].Event)
	assert.Equal(t, "question.q1", msgs[1].Channel)
	assert.Equal(t, EventAnswerCreated, msgs[1].Event)
}

func TestMultiJoinsErrors(t *testing.T) {
	boom := errors.New("boom")
	ok, bad := &recorder{}, &recorder{err: boom}
	err := Multi{bad, ok}.Publish(context.Background(), "c", "e", nil)
	require.ErrorIs(t, err, boom)
	assert.Len(t, ok.all(), 1, "later publishers still run")
}

func TestAsyncDeliversAndDrainsOnClose(t *testing.T) {
	rec := &recorder{err: errors.New("ignored")}
	a := NewAsync(rec, 8, time.Second, zaptest.NewLogger(t))
	for i := 0; i < 5; i++ {
		require.NoError(t, a.Publish(context.Background(), "questions", "e", nil))
	}
	a.Close()
	assert.Len(t, rec.all(), 5)

	require.NoError(t, a.Publish(context.Background(), "questions", "e", nil))
	assert.Equal(t, uint64(1), a.Dropped())
	a.Close()
}

type blocking struct{ release chan struct{} }

func (b blocking) Publish(context.Context, string, string, map[string]any) error {
	<-b.release
	return nil
}

func TestAsyncDropsWhenFull(t *testing.T) {
	b := blocking{release: make(chan struct{})}
	a := NewAsync(b, 1, time.Second, nil)
	for i := 0; i < 10; i++ {
		_ = a.Publish(context.Background(), "c", "e", nil)
	}
	assert.NotZero(t, a.Dropped())
	close(b.release)
	a.Close()
}

func dialHub(t *testing.T, h *Hub, query string) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(h.ServeWS))
	t.Cleanup(srv.Close)
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var m Message
	require.NoError(t, conn.ReadJSON(&m))
	return m
}

func TestHubRoutesByChannel(t *testing.T) {
	h := NewHub(zaptest.NewLogger(t))
	go h.Run()
	t.Cleanup(h.Stop)

	all := dialHub(t, h, "")
	q1 := dialHub(t, h, "/?channels=question.q1")
	require.Eventually(t, func() bool { return h.Clients() == 2 }, 2*time.Second, 10*time.Millisecond)

	ctx := context.Background()
	require.NoError(t, AnnounceAnswer(ctx, h, domain.Answer{ID: "a1", QuestionID: "q1"}, author))
	require.NoError(t, AnnounceQuestion(ctx, h, domain.Question{ID: "q2", Title: "t"}, author))

	m := readMessage(t, q1)
	assert.Equal(t, EventAnswerCreated, m.Event)
	assert.Equal(t, "a1", m.Payload["id"])

	m = readMessage(t, all)
	assert.Equal(t, EventQuestionCreated, m.Event)
	assert.Equal(t, "q2", m.Payload["id"])
}

func TestHubSubscribeCommand(t *testing.T) {
	h := NewHub(zaptest.NewLogger(t))
	go h.Run()
	t.Cleanup(h.Stop)

	conn := dialHub(t, h, "")
	require.Eventually(t, func() bool { return h.Clients() == 1 }, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, conn.WriteJSON(command{Action: "subscribe", Channel: "question.q9"}))
	require.Eventually(t, func() bool { return h.Subscribers("question.q9") == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, h.Publish(context.Background(), "question.q9", EventAnswerCreated, map[string]any{"id": "a9"}))
	assert.Equal(t, "a9", readMessage(t, conn).Payload["id"])

	require.NoError(t, conn.WriteJSON(command{Action: "unsubscribe", Channel: "question.q9"}))
	require.Eventually(t, func() bool { return h.Subscribers("question.q9") == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestHubUnregistersOnDisconnect(t *testing.T) {
	h := NewHub(nil)
	go h.Run()
	t.Cleanup(h.Stop)

	conn := dialHub(t, h, "")
	require.Eventually(t, func() bool { return h.Clients() == 1 }, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return h.Clients() == 0 }, 2*time.Second, 10*time.Millisecond)
	assert.Zero(t, h.Subscribers(ChannelQuestions))
}

func TestHubStopped(t *testing.T) {
	h := NewHub(nil)
	h.Stop()
	assert.ErrorIs(t, h.Publish(context.Background(), "questions", "e", nil), ErrHubStopped)
}

func TestRedisPublishAndRelay(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	ctx := context.Background()

	sub := rdb.Subscribe(ctx, "infodot:questions")
	t.Cleanup(func() { _ = sub.Close() })
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	pub := NewRedis(rdb, "")
	require.NoError(t, AnnounceQuestion(ctx, pub, domain.Question{ID: "q1"}, author))

	msg, err := sub.ReceiveMessage(ctx)
	require.NoError(t, err)
	var m Message
	require.NoError(t, json.Unmarshal([]byte(msg.Payload), &m))
	assert.Equal(t, ChannelQuestions, m.Channel)
	assert.Equal(t, "q1", m.Payload["id"])

	rec := &recorder{}
	rctx, cancel := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- pub.Relay(rctx, rec) }()
	require.Eventually(t, func() bool { return mr.PubSubNumPat() == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, AnnounceAnswer(ctx, pub, domain.Answer{ID: "a1", QuestionID: "q1"}, author))
	require.Eventually(t, func() bool { return len(rec.all()) == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, "question.q1", rec.all()[0].Channel)

	cancel()
	require.NoError(t, <-done)
}

func TestRelayEndsQuietlyWhenHubStops(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	ctx := context.Background()

	hub := NewHub(zaptest.NewLogger(t))
	hub.Stop()

	pub := NewRedis(rdb, "")
	done := make(chan error, 1)
	go func() { done <- pub.Relay(ctx, hub) }()
	require.Eventually(t, func() bool { return mr.PubSubNumPat() == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, AnnounceQuestion(ctx, pub, domain.Question{ID: "q1"}, author))
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("relay kept running after its hub stopped")
	}
}

func TestRedisPublishFailure(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = rdb.Close() })
	mr.Close()
	assert.Error(t, NewRedis(rdb, "x:").Publish(context.Background(), "c", "e", nil))
}

type fakeEvents struct {
	in  []*eventbridge.PutEventsInput
	out *eventbridge.PutEventsOutput
	err error
}

func (f *fakeEvents) PutEvents(_ context.Context, in *eventbridge.PutEventsInput, _ ...func(*eventbridge.Options)) (*eventbridge.PutEventsOutput, error) {
	f.in = append(f.in, in)
	if f.err != nil {
		return nil, f.err
	}
	if f.out != nil {
		return f.out, nil
	}
	return &eventbridge.PutEventsOutput{}, nil
}

func TestEventBridgePublish(t *testing.T) {
	api := &fakeEvents{}
	pub := NewEventBridge(api, "infodot-bus", "")
	require.NoError(t, AnnounceQuestion(context.Background(), pub, domain.Question{ID: "q1"}, author))

	require.Len(t, api.in, 1)
	entry := api.in[0].Entries[0]
	assert.Equal(t, "infodot-bus", aws.ToString(entry.EventBusName))
	assert.Equal(t, "infodot.api", aws.ToString(entry.Source))
	assert.Equal(t, EventQuestionCreated, aws.ToString(entry.DetailType))

	var m Message
	require.NoError(t, json.Unmarshal([]byte(aws.ToString(entry.Detail)), &m))
	assert.Equal(t, ChannelQuestions, m.Channel)
}

func TestEventBridgeFailures(t *testing.T) {
	boom := errors.New("throttled")
	err := NewEventBridge(&fakeEvents{err: boom}, "", "").Publish(context.Background(), "c", "e", nil)
	assert.ErrorIs(t, err, boom)

	rejected := &fakeEvents{out: &eventbridge.PutEventsOutput{
		FailedEntryCount: 1,
		Entries:          []types.PutEventsResultEntry{{ErrorCode: aws.String("InternalFailure")}},
	}}
	err = NewEventBridge(rejected, "", "").Publish(context.Background(), "c", "e", nil)
	assert.ErrorIs(t, err, ErrEventRejected)
	assert.Contains(t, err.Error(), "InternalFailure")
}
