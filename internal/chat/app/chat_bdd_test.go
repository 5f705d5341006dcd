package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"regexp"
	"testing"
	"time"

	"realtime_chat_service/internal/chat/domain"
	"realtime_chat_service/internal/chat/presence"
	"realtime_chat_service/internal/chat/registry"
	"realtime_chat_service/internal/chat/repository"

	"github.com/cucumber/godog"
	"github.com/gofiber/websocket/v2"
)

func TestFeatures(t *testing.T) {
	suite := godog.TestSuite{
		ScenarioInitializer: InitializeScenario,
		Options: &godog.Options{
			Paths:    []string{"./features"}, // 指向 feature 檔相對路徑
			Format:   "pretty",
			Output:   os.Stdout,
			Strict:   true,
			TestingT: t,
		},
	}

	if suite.Run() != 0 {
		t.Fail()
	}
}

// chatWorld 每個 scenario 一份
type chatWorld struct {
	ctx     context.Context
	cancel  context.CancelFunc
	users   repository.UserRepository
	threads repository.ThreadRepository
	reg     *registry.Registry
	handler *ChatWebsocketHandler
	conns   map[string][]*fakeConn
	done    map[*fakeConn]chan struct{}
}

func newChatWorld() *chatWorld {
	ctx, cancel := context.WithCancel(context.Background())
	w := &chatWorld{
		ctx:     ctx,
		cancel:  cancel,
		threads: repository.NewMemoryThreadRepository(),
		conns:   make(map[string][]*fakeConn),
		done:    make(map[*fakeConn]chan struct{}),
	}

	var broadcaster *PresenceBroadcaster
	tracker := presence.NewTracker(func(ctx context.Context, change domain.StatusChange) {
		broadcaster.Notify(ctx, change)
	}, nil)
	w.reg = registry.New(registry.WithListener(tracker))
	deliverer := NewLocalDeliverer(w.reg)
	broadcaster = NewPresenceBroadcaster(w.threads, deliverer)
	go tracker.Run(ctx)

	w.users = repository.NewMemoryUserRepository()
	messages := NewMessageUseCase(w.threads, w.users, deliverer, nil, 0)
	w.handler = NewChatWebsocketHandler(w.reg, messages, WebsocketOptions{})
	return w
}

var quoted = regexp.MustCompile(`"([^"]*)"`)

func (w *chatWorld) usersExist(list string) error {
	for _, m := range quoted.FindAllStringSubmatch(list, -1) {
		name := m[1]
		if err := w.users.Save(w.ctx, &domain.User{ID: name, Username: name, DisplayName: name}); err != nil {
			return err
		}
	}
	return nil
}

func (w *chatWorld) shareThread(a, b string) error {
	_, err := w.threads.GetOrCreateThread(w.ctx, a, b)
	return err
}

func (w *chatWorld) connect(userID string) error {
	conn := newFakeConn()
	before := len(w.reg.ConnectionsFor(userID))
	done := make(chan struct{})
	go func() {
		defer close(done)
		w.handler.serve(w.ctx, conn, userID)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for len(w.reg.ConnectionsFor(userID)) <= before {
		if time.Now().After(deadline) {
			return fmt.Errorf("%s did not register", userID)
		}
		time.Sleep(5 * time.Millisecond)
	}
	w.conns[userID] = append(w.conns[userID], conn)
	w.done[conn] = done
	return nil
}

func (w *chatWorld) connectDevices(userID string, n int) error {
	for i := 0; i < n; i++ {
		if err := w.connect(userID); err != nil {
			return err
		}
	}
	return nil
}

func (w *chatWorld) disconnect(userID string) error {
	for _, conn := range w.conns[userID] {
		close(conn.in)
		select {
		case <-w.done[conn]:
		case <-time.After(2 * time.Second):
			return fmt.Errorf("%s did not disconnect", userID)
		}
	}
	delete(w.conns, userID)
	return nil
}

func (w *chatWorld) firstConn(userID string) (*fakeConn, error) {
	conns := w.conns[userID]
	if len(conns) == 0 {
		return nil, fmt.Errorf("%s is not connected", userID)
	}
	return conns[0], nil
}

func (w *chatWorld) sendTo(sender, text, other string) error {
	thread, err := w.threads.GetOrCreateThread(w.ctx, sender, other)
	if err != nil {
		return err
	}
	return w.sendOnThread(sender, text, thread.ID)
}

func (w *chatWorld) sendOnThreadOf(sender, text, a, b string) error {
	thread, err := w.threads.GetOrCreateThread(w.ctx, a, b)
	if err != nil {
		return err
	}
	return w.sendOnThread(sender, text, thread.ID)
}

func (w *chatWorld) sendOnThread(sender, text string, threadID int64) error {
	conn, err := w.firstConn(sender)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(map[string]interface{}{"type": "chat_message", "thread_id": threadID, "message": text})
	if err != nil {
		return err
	}
	conn.in <- inboundFrame{mt: websocket.TextMessage, data: raw}
	return nil
}

func nextFrame(conn *fakeConn) (domain.EnvelopeType, json.RawMessage, error) {
	select {
	case payload := <-conn.out:
		var f frame
		if err := json.Unmarshal(payload, &f); err != nil {
			return "", nil, err
		}
		return f.Type, f.Data, nil
	case <-time.After(2 * time.Second):
		return "", nil, errors.New("no frame received")
	}
}

// nextNonStatus 略過非同步送達的 user_status
func nextNonStatus(conn *fakeConn) (domain.EnvelopeType, json.RawMessage, error) {
	for {
		typ, data, err := nextFrame(conn)
		if err != nil || typ != domain.UserStatus {
			return typ, data, err
		}
	}
}

func expectMessage(conn *fakeConn, want domain.EnvelopeType, text string) error {
	typ, data, err := nextNonStatus(conn)
	if err != nil {
		return err
	}
	if typ != want {
		return fmt.Errorf("expected %s, got %s", want, typ)
	}
	var p domain.MessagePayload
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	if p.Message != text {
		return fmt.Errorf("expected %q, got %q", text, p.Message)
	}
	return nil
}

func (w *chatWorld) receivesAck(userID, typ, text string) error {
	conn, err := w.firstConn(userID)
	if err != nil {
		return err
	}
	return expectMessage(conn, domain.EnvelopeType(typ), text)
}

func (w *chatWorld) everyDeviceReceives(userID, text string) error {
	conns := w.conns[userID]
	if len(conns) == 0 {
		return fmt.Errorf("%s is not connected", userID)
	}
	for i, conn := range conns {
		if err := expectMessage(conn, domain.NewMessage, text); err != nil {
			return fmt.Errorf("device %d: %w", i, err)
		}
	}
	return nil
}

func (w *chatWorld) receivesError(userID, code string) error {
	conn, err := w.firstConn(userID)
	if err != nil {
		return err
	}
	typ, data, err := nextNonStatus(conn)
	if err != nil {
		return err
	}
	if typ != domain.Error {
		return fmt.Errorf("expected error, got %s", typ)
	}
	var p domain.ErrorPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	if p.Code != code {
		return fmt.Errorf("expected code %q, got %q", code, p.Code)
	}
	return nil
}

func (w *chatWorld) history(a, b string) ([]string, error) {
	thread, err := w.threads.GetOrCreateThread(w.ctx, a, b)
	if err != nil {
		return nil, err
	}
	page, err := w.threads.ListMessages(w.ctx, thread.ID, "", repository.MaxPageSize)
	if err != nil {
		return nil, err
	}
	bodies := make([]string, 0, len(page.Messages))
	for _, m := range page.Messages {
		bodies = append(bodies, m.Body)
	}
	return bodies, nil
}

func (w *chatWorld) historyIs(a, b, text string) error {
	bodies, err := w.history(a, b)
	if err != nil {
		return err
	}
	if len(bodies) != 1 || bodies[0] != text {
		return fmt.Errorf("expected history [%s], got %v", text, bodies)
	}
	return nil
}

func (w *chatWorld) historyEmpty(a, b string) error {
	bodies, err := w.history(a, b)
	if err != nil {
		return err
	}
	if len(bodies) != 0 {
		return fmt.Errorf("expected empty history, got %v", bodies)
	}
	return nil
}

func (w *chatWorld) seesStatus(watcher, userID string, online bool) error {
	conn, err := w.firstConn(watcher)
	if err != nil {
		return err
	}
	typ, data, err := nextFrame(conn)
	if err != nil {
		return err
	}
	if typ != domain.UserStatus {
		return fmt.Errorf("expected user_status, got %s", typ)
	}
	var p domain.StatusPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	if p.UserID != userID || p.IsOnline != online {
		return fmt.Errorf("unexpected status %+v", p)
	}
	if !online && p.LastSeen == nil {
		return errors.New("offline status without last_seen")
	}
	return nil
}

// InitializeScenario 註冊 Gherkin 與 Step Definition 的對應
func InitializeScenario(s *godog.ScenarioContext) {
	var w *chatWorld

	s.Before(func(ctx context.Context, sc *godog.Scenario) (context.Context, error) {
		w = newChatWorld()
		return ctx, nil
	})
	s.After(func(ctx context.Context, sc *godog.Scenario, err error) (context.Context, error) {
		w.reg.CloseAll()
		w.cancel()
		return ctx, nil
	})

	s.Step(`^users (.+) exist$`, func(list string) error { return w.usersExist(list) })
	s.Step(`^"([^"]*)" and "([^"]*)" share a thread$`, func(a, b string) error { return w.shareThread(a, b) })
	s.Step(`^"([^"]*)" is connected$`, func(u string) error { return w.connect(u) })
	s.Step(`^"([^"]*)" connects$`, func(u string) error { return w.connect(u) })
	s.Step(`^"([^"]*)" is connected on (\d+) devices$`, func(u string, n int) error { return w.connectDevices(u, n) })
	s.Step(`^"([^"]*)" disconnects$`, func(u string) error { return w.disconnect(u) })
	s.Step(`^"([^"]*)" sends "([^"]*)" to "([^"]*)"$`, func(from, text, to string) error { return w.sendTo(from, text, to) })
	s.Step(`^"([^"]*)" sends "([^"]*)" to the thread of "([^"]*)" and "([^"]*)"$`, func(from, text, a, b string) error {
		return w.sendOnThreadOf(from, text, a, b)
	})
	s.Step(`^"([^"]*)" receives a "([^"]*)" for "([^"]*)"$`, func(u, typ, text string) error { return w.receivesAck(u, typ, text) })
	s.Step(`^every device of "([^"]*)" receives "([^"]*)"$`, func(u, text string) error { return w.everyDeviceReceives(u, text) })
	s.Step(`^"([^"]*)" receives the error "([^"]*)"$`, func(u, code string) error { return w.receivesError(u, code) })
	s.Step(`^the history between "([^"]*)" and "([^"]*)" is "([^"]*)"$`, func(a, b, text string) error { return w.historyIs(a, b, text) })
	s.Step(`^the history between "([^"]*)" and "([^"]*)" is empty$`, func(a, b string) error { return w.historyEmpty(a, b) })
	s.Step(`^"([^"]*)" sees "([^"]*)" online$`, func(watcher, u string) error { return w.seesStatus(watcher, u, true) })
	s.Step(`^"([^"]*)" sees "([^"]*)" offline with a last seen time$`, func(watcher, u string) error {
		return w.seesStatus(watcher, u, false)
	})
}
