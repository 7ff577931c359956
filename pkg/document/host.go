package document

import (
	"sync"

	"github.com/charmbracelet/log"
)

// Messages collects notifications in order. It is safe for concurrent use.
type Messages struct {
	mu   sync.Mutex
	list []string
}

// Message implements Notifier.
func (m *Messages) Message(text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.list = append(m.list, text)
}

// All returns a copy of the collected messages.
func (m *Messages) All() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.list...)
}

// Last returns the most recent message, or "" when there is none.
func (m *Messages) Last() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.list) == 0 {
		return ""
	}
	return m.list[len(m.list)-1]
}

// LogNotifier forwards notifications to a logger at info level.
type LogNotifier struct {
	Logger *log.Logger
}

// Message implements Notifier.
func (n LogNotifier) Message(text string) {
	n.Logger.Info(text)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(text string)

// Message implements Notifier.
func (f NotifierFunc) Message(text string) { f(text) }

// Tee fans a notification out to several notifiers.
type Tee []Notifier

// Message implements Notifier.
func (t Tee) Message(text string) {
	for _, n := range t {
		n.Message(text)
	}
}

// docHost binds a Document to a Notifier.
type docHost struct {
	*Document
	Notifier
}

// NewHost returns a Host backed by doc that reports messages to n.
// A nil n discards messages.
func NewHost(doc *Document, n Notifier) Host {
	if n == nil {
		n = NotifierFunc(func(string) {})
	}
	return docHost{Document: doc, Notifier: n}
}

var (
	_ Notifier = (*Messages)(nil)
	_ Notifier = LogNotifier{}
	_ Notifier = Tee(nil)
)
