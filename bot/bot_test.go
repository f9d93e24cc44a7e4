package bot

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/RamiroMoyano/whatsapp-bot/models"
)

const (
	testAdmin    = "whatsapp:+5491100000000"
	testCustomer = "whatsapp:+5491155554444"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(
		&models.Company{},
		&models.CustomerCompany{},
		models.SessionModel(),
		&models.Order{},
		&models.Setting{},
		&models.AIMessage{},
		&models.Admin{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	companies := []models.Company{
		{
			ID:          "babystepsbots",
			Name:        "Babystepsbots",
			Prompt:      "Sos el asistente comercial de Babystepsbots.",
			CatalogJSON: `[{"id":1,"name":"Bot WhatsApp","price":100},{"id":2,"name":"Bot Instagram","price":80}]`,
			RulesJSON:   `{"tone":"comercial","allowHuman":true}`,
		},
		{
			ID:          "veterinaria_sm",
			Name:        "Veterinaria San Miguel",
			Prompt:      "Sos asistente de una veterinaria.",
			CatalogJSON: `[{"id":1,"name":"Consulta","price":5000}]`,
			RulesJSON:   `{"tone":"empatico","allowHuman":true}`,
		},
	}
	if err := db.Create(&companies).Error; err != nil {
		t.Fatalf("seed companies: %v", err)
	}
	return db
}

type fakeReplier struct {
	mu    sync.Mutex
	reply string
	err   error
	calls int
}

func (f *fakeReplier) Reply(ctx context.Context, company *models.Company, history []models.AIMessage, userText string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.reply, f.err
}

func (f *fakeReplier) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeNotifier struct {
	ch chan string
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{ch: make(chan string, 16)}
}

func (f *fakeNotifier) Notify(ctx context.Context, text string) {
	f.ch <- text
}

// waitOne blocks until one notification arrives or the deadline passes.
func (f *fakeNotifier) waitOne(t *testing.T) string {
	t.Helper()
	select {
	case msg := <-f.ch:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatalf("expected a notification, got none")
		return ""
	}
}

// assertNone verifies no notification arrives within a short grace period.
func (f *fakeNotifier) assertNone(t *testing.T) {
	t.Helper()
	select {
	case msg := <-f.ch:
		t.Fatalf("unexpected notification: %q", msg)
	case <-time.After(100 * time.Millisecond):
	}
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestDispatcher(t *testing.T) (*Dispatcher, *fakeReplier, *fakeNotifier, *testClock) {
	t.Helper()
	db := testDB(t)
	replier := &fakeReplier{reply: "respuesta generada"}
	notifier := newFakeNotifier()
	clock := newTestClock()
	d := New(db, replier, notifier, Config{
		AdminNumber:   testAdmin,
		LiteDailyCap:  40,
		ProDailyCap:   120,
		MinAIInterval: 6 * time.Second,
	})
	d.SetNow(clock.Now)
	return d, replier, notifier, clock
}
