package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/lingvo-chat/chat-service/internal/domain"
	"github.com/lingvo-chat/chat-service/internal/transport/ws"
)

// --- fakes ---

type fakeStore struct {
	mu           sync.Mutex
	seq          map[string]int64
	appended     []*domain.Message
	translations map[string]map[string]string
	failAppend   bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		seq:          make(map[string]int64),
		translations: make(map[string]map[string]string),
	}
}

func (s *fakeStore) Append(_ context.Context, m *domain.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAppend {
		return errors.New("db down")
	}
	s.seq[m.RoomID]++
	m.Seq = s.seq[m.RoomID]
	m.ID = "m" + strconv.FormatInt(int64(len(s.appended)+1), 10)
	m.CreatedAt = time.Now()
	cp := *m
	s.appended = append(s.appended, &cp)
	return nil
}

func (s *fakeStore) SetTranslations(_ context.Context, id string, tr map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.translations[id] = tr
	return nil
}

type fakeResolver struct {
	recipients []domain.Recipient
	err        error
}

func (r *fakeResolver) Resolve(context.Context, string, domain.RoomKind) ([]domain.Recipient, error) {
	return r.recipients, r.err
}

type translateCall struct{ source, target string }

type fakeTranslator struct {
	mu        sync.Mutex
	calls     []translateCall
	failLangs map[string]bool
	detected  string
	delay     time.Duration
}

func (t *fakeTranslator) Translate(_ context.Context, text, src, dst string) (string, error) {
	t.mu.Lock()
	t.calls = append(t.calls, translateCall{source: src, target: dst})
	t.mu.Unlock()
	if t.delay > 0 {
		time.Sleep(t.delay)
	}
	if t.failLangs[dst] {
		return text, errors.New("backend down")
	}
	return "[" + dst + "] " + text, nil
}

func (t *fakeTranslator) DetectLanguage(context.Context, string) (string, error) {
	if t.detected == "" {
		return "", errors.New("detect unavailable")
	}
	return t.detected, nil
}

func (t *fakeTranslator) callCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.calls)
}

type published struct {
	channel string
	ev      ws.Event
}

type fakePublisher struct {
	mu     sync.Mutex
	events []published
	fail   map[string]bool // channel -> fail
}

func (p *fakePublisher) Publish(channel string, ev ws.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail[channel] {
		return errors.New("publish failed")
	}
	p.events = append(p.events, published{channel: channel, ev: ev})
	return nil
}

func (p *fakePublisher) onChannel(channel string) []published {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []published
	for _, e := range p.events {
		if e.channel == channel {
			out = append(out, e)
		}
	}
	return out
}

type fakeResponder struct {
	reply string
	err   error
}

func (r *fakeResponder) Reply(_ context.Context, prompt, _ string) (string, error) {
	if r.err != nil {
		return "", r.err
	}
	return r.reply + " (" + prompt + ")", nil
}

// --- tests ---

func groupRecipients() []domain.Recipient {
	return []domain.Recipient{
		{UserID: 1, Language: "en"}, // отправитель
		{UserID: 2, Language: "fr"},
		{UserID: 3, Language: "es"},
	}
}

func TestDispatch_GroupScenario(t *testing.T) {
	store := newFakeStore()
	tr := &fakeTranslator{}
	pub := &fakePublisher{}
	d := New(store, &fakeResolver{recipients: groupRecipients()}, tr, pub, nil)

	msg, err := d.Dispatch(context.Background(), 1, "r1", domain.KindGroup, "Hello", "en", nil)
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	// ровно 2 вызова перевода: en->fr, en->es; не по числу получателей
	if got := tr.callCount(); got != 2 {
		t.Fatalf("translation calls = %d, want 2", got)
	}

	// оригинальный слот никогда не переводится
	if _, ok := msg.Translations["en"]; ok {
		t.Fatal("original language must never appear in translations")
	}
	if msg.OriginalContent != "Hello" {
		t.Fatalf("original content mutated: %q", msg.OriginalContent)
	}

	checks := []struct {
		userID  int64
		lang    string
		content string
	}{
		{1, "en", "Hello"},
		{2, "fr", "[fr] Hello"},
		{3, "es", "[es] Hello"},
	}
	for _, c := range checks {
		evs := pub.onChannel(ws.UserChannel(c.userID))
		if len(evs) != 1 {
			t.Fatalf("user %d got %d events, want 1", c.userID, len(evs))
		}
		p := evs[0].ev.Payload.(ws.MessagePayload)
		if p.Language != c.lang || p.Content != c.content {
			t.Errorf("user %d payload = %s/%q, want %s/%q", c.userID, p.Language, p.Content, c.lang, c.content)
		}
	}
}

func TestDispatch_SharedLanguagesTranslatedOnce(t *testing.T) {
	// 5 получателей, но только 2 различных не-исходных языка
	recipients := []domain.Recipient{
		{UserID: 1, Language: "en"},
		{UserID: 2, Language: "fr"},
		{UserID: 3, Language: "fr"},
		{UserID: 4, Language: "de"},
		{UserID: 5, Language: "de"},
	}
	store := newFakeStore()
	tr := &fakeTranslator{}
	pub := &fakePublisher{}
	d := New(store, &fakeResolver{recipients: recipients}, tr, pub, nil)

	if _, err := d.Dispatch(context.Background(), 1, "r1", domain.KindGroup, "hi", "en", nil); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	if got := tr.callCount(); got != 2 {
		t.Fatalf("translation calls = %d, want 2 (distinct languages, not recipients)", got)
	}
	if len(pub.events) != 5 {
		t.Fatalf("published events = %d, want 5 (one per recipient)", len(pub.events))
	}
}

func TestDispatch_TranslationFailureFallsBackToOriginal(t *testing.T) {
	store := newFakeStore()
	tr := &fakeTranslator{failLangs: map[string]bool{"fr": true}}
	pub := &fakePublisher{}
	d := New(store, &fakeResolver{recipients: groupRecipients()}, tr, pub, nil)

	msg, err := d.Dispatch(context.Background(), 1, "r1", domain.KindGroup, "Hello", "en", nil)
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	if _, ok := msg.Translations["fr"]; ok {
		t.Fatal("failed language must not be stored")
	}

	// получатель с упавшим языком видит оригинал, не пустоту
	evs := pub.onChannel(ws.UserChannel(2))
	if len(evs) != 1 {
		t.Fatalf("fr recipient got %d events, want 1", len(evs))
	}
	p := evs[0].ev.Payload.(ws.MessagePayload)
	if p.Content != "Hello" {
		t.Fatalf("fallback content = %q, want original", p.Content)
	}
	if p.Language != "en" {
		t.Fatalf("fallback language = %q, want en", p.Language)
	}

	// остальные получатели не пострадали
	evs = pub.onChannel(ws.UserChannel(3))
	if len(evs) != 1 || evs[0].ev.Payload.(ws.MessagePayload).Content != "[es] Hello" {
		t.Fatal("es recipient must still get the translation")
	}
}

func TestDispatch_PersistenceFailureIsFatal(t *testing.T) {
	store := newFakeStore()
	store.failAppend = true
	tr := &fakeTranslator{}
	pub := &fakePublisher{}
	d := New(store, &fakeResolver{recipients: groupRecipients()}, tr, pub, nil)

	msg, err := d.Dispatch(context.Background(), 1, "r1", domain.KindGroup, "Hello", "en", nil)
	if err == nil {
		t.Fatal("expected persistence error")
	}
	if msg != nil {
		t.Fatal("no message must be reported when it was not stored")
	}
	if len(pub.events) != 0 {
		t.Fatalf("nothing must be published on persistence failure, got %d", len(pub.events))
	}
	if tr.callCount() != 0 {
		t.Fatal("no translations on persistence failure")
	}
}

func TestDispatch_RoomNotReadyStoredButUndelivered(t *testing.T) {
	store := newFakeStore()
	tr := &fakeTranslator{}
	pub := &fakePublisher{}
	d := New(store, &fakeResolver{err: domain.ErrRoomNotReady}, tr, pub, nil)

	msg, err := d.Dispatch(context.Background(), 1, "half-open", domain.KindDirect, "Hello", "en", nil)
	if !errors.Is(err, domain.ErrRoomNotReady) {
		t.Fatalf("err = %v, want ErrRoomNotReady", err)
	}
	if msg == nil || msg.ID == "" {
		t.Fatal("message must still be durably stored")
	}
	if len(store.appended) != 1 {
		t.Fatalf("stored messages = %d, want 1", len(store.appended))
	}
	if len(pub.events) != 0 {
		t.Fatalf("no delivery events expected, got %d", len(pub.events))
	}
}

func TestDispatch_PublishFailureNotifiesSenderOnly(t *testing.T) {
	store := newFakeStore()
	tr := &fakeTranslator{}
	pub := &fakePublisher{fail: map[string]bool{ws.UserChannel(3): true}}
	d := New(store, &fakeResolver{recipients: groupRecipients()}, tr, pub, nil)

	if _, err := d.Dispatch(context.Background(), 1, "r1", domain.KindGroup, "Hello", "en", nil); err != nil {
		t.Fatalf("publish failure must not fail the dispatch: %v", err)
	}

	// остальные получатели доставлены
	if len(pub.onChannel(ws.UserChannel(2))) != 1 {
		t.Fatal("recipient 2 must be delivered")
	}

	// отправителю — его событие + error-событие
	senderEvents := pub.onChannel(ws.UserChannel(1))
	var sawError bool
	for _, e := range senderEvents {
		if e.ev.Type == ws.TypeError {
			sawError = true
		}
	}
	if !sawError {
		t.Fatal("sender must receive an error event for the failed recipient")
	}
}

func TestDispatch_DetectWhenSourceUnknown(t *testing.T) {
	store := newFakeStore()
	tr := &fakeTranslator{detected: "es"}
	pub := &fakePublisher{}
	d := New(store, &fakeResolver{recipients: []domain.Recipient{{UserID: 1, Language: "es"}, {UserID: 2, Language: "en"}}}, tr, pub, nil)

	msg, err := d.Dispatch(context.Background(), 1, "r1", domain.KindGroup, "hola", "", nil)
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if msg.OriginalLanguage != "es" {
		t.Fatalf("detected language = %q, want es", msg.OriginalLanguage)
	}
}

func TestDispatch_AssistantBranch(t *testing.T) {
	store := newFakeStore()
	tr := &fakeTranslator{}
	pub := &fakePublisher{}
	resolver := &fakeResolver{recipients: []domain.Recipient{{UserID: 42, Language: "fr"}}}
	d := New(store, resolver, tr, pub, &fakeResponder{reply: "bonjour"})

	if _, err := d.Dispatch(context.Background(), 42, "a1", domain.KindAssistant, "salut", "fr", nil); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	// два сохранённых сообщения: человека и бота
	if len(store.appended) != 2 {
		t.Fatalf("stored messages = %d, want 2", len(store.appended))
	}
	bot := store.appended[1]
	if bot.SenderID != domain.AssistantUserID {
		t.Fatalf("reply sender = %d, want assistant sentinel", bot.SenderID)
	}
	if bot.Seq != 2 {
		t.Fatalf("reply seq = %d, want 2", bot.Seq)
	}

	// человеку доставлены эхо и ответ, в порядке seq
	evs := pub.onChannel(ws.UserChannel(42))
	if len(evs) != 2 {
		t.Fatalf("human got %d events, want 2", len(evs))
	}
	first := evs[0].ev.Payload.(ws.MessagePayload)
	second := evs[1].ev.Payload.(ws.MessagePayload)
	if first.SenderID != "42" || second.SenderID != strconv.FormatInt(domain.AssistantUserID, 10) {
		t.Fatalf("event order wrong: %s then %s", first.SenderID, second.SenderID)
	}
	if second.Seq <= first.Seq {
		t.Fatalf("reply seq %d must follow message seq %d", second.Seq, first.Seq)
	}
}

func TestDispatch_AssistantFailureNotifiesHuman(t *testing.T) {
	store := newFakeStore()
	pub := &fakePublisher{}
	resolver := &fakeResolver{recipients: []domain.Recipient{{UserID: 42, Language: "en"}}}
	d := New(store, resolver, &fakeTranslator{}, pub, &fakeResponder{err: errors.New("llm down")})

	if _, err := d.Dispatch(context.Background(), 42, "a1", domain.KindAssistant, "hi", "en", nil); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	var sawError bool
	for _, e := range pub.onChannel(ws.UserChannel(42)) {
		if e.ev.Type == ws.TypeError {
			sawError = true
		}
	}
	if !sawError {
		t.Fatal("human must get an error event when the assistant fails")
	}
	if len(store.appended) != 1 {
		t.Fatalf("only the human message must be stored, got %d", len(store.appended))
	}
}

// Конкурентные send-ы одной комнаты: порядок публикации совпадает с seq,
// даже когда латентность перевода у сообщений разная.
func TestDispatch_PerRoomOrdering(t *testing.T) {
	store := newFakeStore()
	tr := &fakeTranslator{delay: 5 * time.Millisecond}
	pub := &fakePublisher{}
	recipients := []domain.Recipient{{UserID: 1, Language: "en"}, {UserID: 2, Language: "fr"}}
	d := New(store, &fakeResolver{recipients: recipients}, tr, pub, nil)

	const n = 8
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _ = d.Dispatch(context.Background(), 1, "r1", domain.KindGroup, fmt.Sprintf("msg-%d", i), "en", nil)
		}(i)
	}
	wg.Wait()

	evs := pub.onChannel(ws.UserChannel(2))
	if len(evs) != n {
		t.Fatalf("recipient got %d events, want %d", len(evs), n)
	}
	var prev int64
	for i, e := range evs {
		seq := e.ev.Payload.(ws.MessagePayload).Seq
		if seq <= prev {
			t.Fatalf("event %d out of order: seq %d after %d", i, seq, prev)
		}
		prev = seq
	}
}
