package flow

import (
	"log"
	"strconv"
	"strings"
	"sync"

	"linkscout/internal/catalog"
)

// Sender is the outbound side of the machine; enqueueing must not block on
// network I/O.
type Sender interface {
	Send(chatID, text string)
}

type searchRequest struct {
	chatID      string
	siteID      string
	categoryKey string
	query       string
	direct      bool
}

// Machine drives one finite-state session per chat. OnMessage never blocks:
// the final lookup and answer composition run on a bounded task pool and the
// messages they produce go out through the Sender.
type Machine struct {
	sessions *Sessions
	store    *catalog.Store
	sender   Sender

	tasks     chan searchRequest
	wg        sync.WaitGroup
	closeOnce sync.Once
}

func NewMachine(store *catalog.Store, sender Sender, searchWorkers int) *Machine {
	if searchWorkers <= 0 {
		searchWorkers = 4
	}
	m := &Machine{
		sessions: NewSessions(),
		store:    store,
		sender:   sender,
		tasks:    make(chan searchRequest, 32),
	}
	for i := 0; i < searchWorkers; i++ {
		m.wg.Add(1)
		go m.searchWorker()
	}
	return m
}

// Start resets the chat and greets it with the site menu. Used for the
// transport's reset command.
func (m *Machine) Start(chatID string) {
	m.sessions.Reset(chatID)
	m.sender.Send(chatID, welcomeText)
	m.OnMessage(chatID, "")
}

// BeginSearch is the facade entry point: a fresh flow seeded by an external
// request. The query rides along as the first message.
func (m *Machine) BeginSearch(chatID, query string) {
	m.sessions.Reset(chatID)
	m.OnMessage(chatID, query)
}

// OnMessage consumes one inbound text and advances the chat's session.
// It returns immediately; outbound messages are enqueued and the search
// step, when reached, is handed to the task pool.
func (m *Machine) OnMessage(chatID, text string) {
	defer m.recoverTo(chatID)

	text = strings.TrimSpace(text)
	var outbound []string
	var search *searchRequest
	m.sessions.Update(chatID, func(s *Session) {
		outbound, search = m.transition(s, text)
	})
	for _, msg := range outbound {
		m.sender.Send(chatID, msg)
	}
	if search != nil {
		m.tasks <- *search
	}
}

// transition applies the state table. It runs under the session lock and
// must stay free of I/O; it only mutates the session and decides what to
// send afterwards.
func (m *Machine) transition(s *Session, text string) ([]string, *searchRequest) {
	switch s.State {
	case StateSearching:
		// A search is in flight; input is ignored until it completes.
		return nil, nil

	case StateAwaitingSite:
		sites := m.store.Sites()
		n, err := strconv.Atoi(text)
		if err != nil || n < 1 || n > len(sites) {
			return []string{invalidChoiceText + siteMenu(sites)}, nil
		}
		s.SelectedSite = sites[n-1].ID
		s.State = StateAwaitingCategory
		return []string{categoryMenu(sites[n-1])}, nil

	case StateAwaitingCategory:
		site, ok := m.store.SiteByID(s.SelectedSite)
		if !ok {
			return m.enterIdle(s)
		}
		n, err := strconv.Atoi(text)
		if err != nil || n < 1 || n > len(site.Categories) {
			return []string{invalidChoiceText + categoryMenu(site)}, nil
		}
		cat := site.Categories[n-1]
		s.SelectedCategory = cat.Key
		confirmation := selectedCategoryText(site.CategoryLabel(cat.Key))
		if site.DirectCategories && cat.Key != site.SearchCategory {
			// Direct-link category: no query step, answer is the bare URL.
			s.PendingQuery = ""
			s.State = StateSearching
			req := &searchRequest{chatID: s.ChatID, siteID: site.ID, categoryKey: cat.Key, direct: true}
			return []string{confirmation, searchingText}, req
		}
		s.State = StateAwaitingQuery
		return []string{confirmation, queryPromptText}, nil

	case StateAwaitingQuery:
		if text == "" {
			return []string{queryPromptText}, nil
		}
		s.PendingQuery = text
		s.State = StateSearching
		req := &searchRequest{chatID: s.ChatID, siteID: s.SelectedSite, categoryKey: s.SelectedCategory, query: text}
		return []string{searchingText}, req

	case StateAwaitingMenuChoice:
		switch text {
		case "1", "3":
			s.clearSelection()
			return m.enterIdle(s)
		case "2":
			s.clearSelection()
			s.State = StateIdle
			return []string{clearedText}, nil
		default:
			if _, err := strconv.Atoi(text); err == nil {
				return []string{invalidChoiceText + completionMenuText}, nil
			}
			// Non-numeric input starts a brand-new flow.
			s.clearSelection()
			return m.enterIdle(s)
		}

	case StateIdle:
		return m.enterIdle(s)

	default:
		// Unknown state: fall back to idle handling, never drop a message.
		s.clearSelection()
		return m.enterIdle(s)
	}
}

func (m *Machine) enterIdle(s *Session) ([]string, *searchRequest) {
	s.State = StateAwaitingSite
	return []string{siteMenu(m.store.Sites())}, nil
}

func (m *Machine) searchWorker() {
	defer m.wg.Done()
	for req := range m.tasks {
		m.performSearch(req)
	}
}

// performSearch is the background half of the Searching step: look up the
// live URL, compose the answer, deliver it with the completion menu and
// advance the session.
func (m *Machine) performSearch(req searchRequest) {
	defer m.recoverTo(req.chatID)

	lookup := m.store.LookupURL(req.siteID, req.categoryKey)
	answer := lookup
	if !req.direct {
		answer = composeSearchURL(lookup, req.query)
	}
	m.sender.Send(req.chatID, resultMessage(answer))
	m.sender.Send(req.chatID, completionMenuText)
	m.sessions.Update(req.chatID, func(s *Session) {
		s.State = StateAwaitingMenuChoice
	})
}

// recoverTo converts an escaped panic into a generic apology and a clean
// idle session.
func (m *Machine) recoverTo(chatID string) {
	if r := recover(); r != nil {
		log.Printf("flow handler panic chat_id=%s err=%v", chatID, r)
		m.sessions.Reset(chatID)
		m.sender.Send(chatID, apologyText)
	}
}

// Session exposes a copy of the chat's session, mainly for tests and the
// facade's status responses.
func (m *Machine) Session(chatID string) (Session, bool) {
	return m.sessions.Peek(chatID)
}

// Close stops the task pool after draining queued searches.
func (m *Machine) Close() {
	m.closeOnce.Do(func() {
		close(m.tasks)
		m.wg.Wait()
	})
}
