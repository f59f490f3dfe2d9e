// Package testutil provides shared test helpers: an in-memory fake of the
// remote mail server's envelope protocol and a disposable Postgres.
package testutil

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// Default administrative credentials the fake accepts.
const (
	FakeAdminAccount  = "admin@example.net"
	FakeAdminPassword = "admin-secret"
)

// FakeAccount is one account held by the fake server.
type FakeAccount struct {
	ID      string
	Name    string
	Aliases []string
	Attrs   map[string]string
}

// RecallCall records one RecallMessageRequest the fake served.
type RecallCall struct {
	Account   string
	MessageID string
	Comment   string
}

// CalendarCall records one SendCalendarRequest the fake served.
type CalendarCall struct {
	Account string
	Content string
}

type fakeToken struct {
	account string
	admin   bool
	expired bool
}

// FakeRemote is an httptest-backed fake of the remote protocol endpoint.
// It implements enough of the contract for synchronizer, queue, and
// protocol tests: auth and delegated auth, account CRUD with name
// collisions, aliases, recall and calendar operations, plus fault
// injection and token expiry for the failure paths.
type FakeRemote struct {
	server *httptest.Server

	mu        sync.Mutex
	accounts  map[string]*FakeAccount // by name
	byID      map[string]*FakeAccount
	tokens    map[string]*fakeToken
	failures  map[string]string // op element name -> fault code, one-shot
	recalls   []RecallCall
	calendars []CalendarCall
	nextID    int
	nextToken int
}

// NewFakeRemote starts a fake server. It is shut down with the test.
func NewFakeRemote(t *testing.T) *FakeRemote {
	t.Helper()

	f := &FakeRemote{
		accounts: make(map[string]*FakeAccount),
		byID:     make(map[string]*FakeAccount),
		tokens:   make(map[string]*fakeToken),
		failures: make(map[string]string),
	}
	f.server = httptest.NewServer(http.HandlerFunc(f.handle))
	t.Cleanup(f.server.Close)
	return f
}

// URL is the base URL clients should be pointed at.
func (f *FakeRemote) URL() string {
	return f.server.URL
}

// SeedAccount registers an existing account by name.
func (f *FakeRemote) SeedAccount(name string) *FakeAccount {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.addAccountLocked(name, nil)
}

// Account returns the account with the given primary name, if present.
func (f *FakeRemote) Account(name string) (*FakeAccount, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	acc, ok := f.accounts[name]
	return acc, ok
}

// FailNextOp makes the next request of the given operation fail with the
// fault code. The injection is one-shot.
func (f *FakeRemote) FailNextOp(op, code string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[op] = code
}

// ExpireAllTokens invalidates every issued token, so the next use of each
// fails with AUTH_EXPIRED and forces a re-authentication.
func (f *FakeRemote) ExpireAllTokens() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, tok := range f.tokens {
		tok.expired = true
	}
}

// Recalls returns the recall operations served so far.
func (f *FakeRemote) Recalls() []RecallCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]RecallCall, len(f.recalls))
	copy(out, f.recalls)
	return out
}

// CalendarRequests returns the calendar operations served so far.
func (f *FakeRemote) CalendarRequests() []CalendarCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]CalendarCall, len(f.calendars))
	copy(out, f.calendars)
	return out
}

func (f *FakeRemote) addAccountLocked(name string, attrs map[string]string) *FakeAccount {
	f.nextID++
	if attrs == nil {
		attrs = make(map[string]string)
	}
	acc := &FakeAccount{
		ID:    fmt.Sprintf("acc-%d", f.nextID),
		Name:  name,
		Attrs: attrs,
	}
	f.accounts[name] = acc
	f.byID[acc.ID] = acc
	return acc
}

func (f *FakeRemote) nameTakenLocked(name string) bool {
	if _, ok := f.accounts[name]; ok {
		return true
	}
	for _, acc := range f.accounts {
		for _, alias := range acc.Aliases {
			if alias == name {
				return true
			}
		}
	}
	return false
}

func (f *FakeRemote) issueTokenLocked(account string, admin bool) string {
	f.nextToken++
	tok := fmt.Sprintf("tok-%d", f.nextToken)
	f.tokens[tok] = &fakeToken{account: account, admin: admin}
	return tok
}

// --- wire handling ---

type fakeEnvelope struct {
	XMLName xml.Name `xml:"Envelope"`
	Header  struct {
		Context struct {
			AuthToken string `xml:"authToken"`
		} `xml:"context"`
	} `xml:"Header"`
	Body struct {
		Inner []byte `xml:",innerxml"`
	} `xml:"Body"`
}

type fakeAttr struct {
	N     string `xml:"n,attr"`
	Value string `xml:",chardata"`
}

type fakeAccountBy struct {
	By    string `xml:"by,attr"`
	Value string `xml:",chardata"`
}

type fakeAuthRequest struct {
	Name     string `xml:"name"`
	Password string `xml:"password"`
}

type fakeDelegateRequest struct {
	Account fakeAccountBy `xml:"account"`
}

type fakeCreateRequest struct {
	Name     string     `xml:"name"`
	Password string     `xml:"password"`
	Attrs    []fakeAttr `xml:"a"`
}

type fakeModifyRequest struct {
	ID    string     `xml:"id"`
	Attrs []fakeAttr `xml:"a"`
}

type fakeGetInfoRequest struct {
	Account fakeAccountBy `xml:"account"`
}

type fakeAliasRequest struct {
	ID    string `xml:"id"`
	Alias string `xml:"alias"`
}

type fakeRecallRequest struct {
	MessageID string `xml:"messageId"`
	Comment   string `xml:"comment"`
}

type fakeCalendarRequest struct {
	Content string `xml:"content"`
}

func (f *FakeRemote) handle(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var env fakeEnvelope
	if err := xml.Unmarshal(body, &env); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	op, err := firstElementName(env.Body.Inner)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if code, ok := f.failures[op]; ok {
		delete(f.failures, op)
		writeFault(w, code, "injected fault")
		return
	}

	switch op {
	case "AuthRequest":
		f.handleAuth(w, env.Body.Inner)
	case "DelegateAuthRequest":
		if !f.requireAdmin(w, env.Header.Context.AuthToken) {
			return
		}
		f.handleDelegate(w, env.Body.Inner)
	case "CreateAccountRequest":
		if !f.requireAdmin(w, env.Header.Context.AuthToken) {
			return
		}
		f.handleCreate(w, env.Body.Inner)
	case "ModifyAccountRequest":
		if !f.requireAdmin(w, env.Header.Context.AuthToken) {
			return
		}
		f.handleModify(w, env.Body.Inner)
	case "GetAccountInfoRequest":
		if !f.requireAdmin(w, env.Header.Context.AuthToken) {
			return
		}
		f.handleGetInfo(w, env.Body.Inner)
	case "AddAccountAliasRequest":
		if !f.requireAdmin(w, env.Header.Context.AuthToken) {
			return
		}
		f.handleAlias(w, env.Body.Inner)
	case "RecallMessageRequest":
		tok, ok := f.requireUser(w, env.Header.Context.AuthToken)
		if !ok {
			return
		}
		f.handleRecall(w, env.Body.Inner, tok.account)
	case "SendCalendarRequest":
		tok, ok := f.requireUser(w, env.Header.Context.AuthToken)
		if !ok {
			return
		}
		f.handleCalendar(w, env.Body.Inner, tok.account)
	default:
		writeFault(w, "UNKNOWN_OPERATION", "unsupported operation "+op)
	}
}

func (f *FakeRemote) lookupToken(value string) (*fakeToken, bool) {
	tok, ok := f.tokens[value]
	if !ok || tok.expired {
		return nil, false
	}
	return tok, true
}

func (f *FakeRemote) requireAdmin(w http.ResponseWriter, token string) bool {
	tok, ok := f.lookupToken(token)
	if !ok || !tok.admin {
		writeFault(w, "AUTH_EXPIRED", "admin session missing or expired")
		return false
	}
	return true
}

func (f *FakeRemote) requireUser(w http.ResponseWriter, token string) (*fakeToken, bool) {
	tok, ok := f.lookupToken(token)
	if !ok {
		writeFault(w, "AUTH_EXPIRED", "session missing or expired")
		return nil, false
	}
	return tok, true
}

func (f *FakeRemote) handleAuth(w http.ResponseWriter, inner []byte) {
	var req fakeAuthRequest
	if err := xml.Unmarshal(inner, &req); err != nil {
		writeFault(w, "PARSE_ERROR", err.Error())
		return
	}
	if req.Name != FakeAdminAccount || req.Password != FakeAdminPassword {
		writeFault(w, "AUTH_FAILED", "bad admin credentials")
		return
	}
	tok := f.issueTokenLocked("", true)
	writeResponse(w, fmt.Sprintf(
		`<AuthResponse xmlns="urn:mailadmin"><authToken>%s</authToken><lifetime>3600000</lifetime></AuthResponse>`, tok))
}

func (f *FakeRemote) handleDelegate(w http.ResponseWriter, inner []byte) {
	var req fakeDelegateRequest
	if err := xml.Unmarshal(inner, &req); err != nil {
		writeFault(w, "PARSE_ERROR", err.Error())
		return
	}
	if !f.nameTakenLocked(req.Account.Value) {
		writeFault(w, "NO_SUCH_ACCOUNT", "no account "+req.Account.Value)
		return
	}
	tok := f.issueTokenLocked(req.Account.Value, false)
	writeResponse(w, fmt.Sprintf(
		`<DelegateAuthResponse xmlns="urn:mailadmin"><authToken>%s</authToken><lifetime>3600000</lifetime></DelegateAuthResponse>`, tok))
}

func (f *FakeRemote) handleCreate(w http.ResponseWriter, inner []byte) {
	var req fakeCreateRequest
	if err := xml.Unmarshal(inner, &req); err != nil {
		writeFault(w, "PARSE_ERROR", err.Error())
		return
	}
	if f.nameTakenLocked(req.Name) {
		writeFault(w, "ACCOUNTEXISTS", "account "+req.Name+" already exists")
		return
	}

	attrs := make(map[string]string, len(req.Attrs))
	for _, a := range req.Attrs {
		attrs[a.N] = a.Value
	}
	acc := f.addAccountLocked(req.Name, attrs)
	writeResponse(w, fmt.Sprintf(
		`<CreateAccountResponse xmlns="urn:mailadmin"><account id="%s" name="%s"/></CreateAccountResponse>`, acc.ID, acc.Name))
}

func (f *FakeRemote) handleModify(w http.ResponseWriter, inner []byte) {
	var req fakeModifyRequest
	if err := xml.Unmarshal(inner, &req); err != nil {
		writeFault(w, "PARSE_ERROR", err.Error())
		return
	}
	acc, ok := f.byID[req.ID]
	if !ok {
		writeFault(w, "NO_SUCH_ACCOUNT", "no account with id "+req.ID)
		return
	}
	for _, a := range req.Attrs {
		acc.Attrs[a.N] = a.Value
	}
	writeResponse(w, `<ModifyAccountResponse xmlns="urn:mailadmin"/>`)
}

func (f *FakeRemote) handleGetInfo(w http.ResponseWriter, inner []byte) {
	var req fakeGetInfoRequest
	if err := xml.Unmarshal(inner, &req); err != nil {
		writeFault(w, "PARSE_ERROR", err.Error())
		return
	}

	var acc *FakeAccount
	switch req.Account.By {
	case "id":
		acc = f.byID[req.Account.Value]
	default:
		acc = f.accounts[req.Account.Value]
		if acc == nil {
			for _, candidate := range f.accounts {
				for _, alias := range candidate.Aliases {
					if alias == req.Account.Value {
						acc = candidate
					}
				}
			}
		}
	}
	if acc == nil {
		writeFault(w, "NO_SUCH_ACCOUNT", "no account "+req.Account.Value)
		return
	}

	attrsXML := ""
	for n, v := range acc.Attrs {
		attrsXML += fmt.Sprintf(`<a n="%s">%s</a>`, n, v)
	}
	writeResponse(w, fmt.Sprintf(
		`<GetAccountInfoResponse xmlns="urn:mailadmin"><account id="%s" name="%s">%s</account></GetAccountInfoResponse>`,
		acc.ID, acc.Name, attrsXML))
}

func (f *FakeRemote) handleAlias(w http.ResponseWriter, inner []byte) {
	var req fakeAliasRequest
	if err := xml.Unmarshal(inner, &req); err != nil {
		writeFault(w, "PARSE_ERROR", err.Error())
		return
	}
	acc, ok := f.byID[req.ID]
	if !ok {
		writeFault(w, "NO_SUCH_ACCOUNT", "no account with id "+req.ID)
		return
	}
	// An alias equal to the account's own primary name is accepted and
	// recorded, so delivery at the unmodified address always works.
	if req.Alias != acc.Name && f.nameTakenLocked(req.Alias) {
		writeFault(w, "ACCOUNTEXISTS", "alias "+req.Alias+" already in use")
		return
	}
	acc.Aliases = append(acc.Aliases, req.Alias)
	writeResponse(w, `<AddAccountAliasResponse xmlns="urn:mailadmin"/>`)
}

func (f *FakeRemote) handleRecall(w http.ResponseWriter, inner []byte, account string) {
	var req fakeRecallRequest
	if err := xml.Unmarshal(inner, &req); err != nil {
		writeFault(w, "PARSE_ERROR", err.Error())
		return
	}
	f.recalls = append(f.recalls, RecallCall{Account: account, MessageID: req.MessageID, Comment: req.Comment})
	writeResponse(w, `<RecallMessageResponse xmlns="urn:mailacct"/>`)
}

func (f *FakeRemote) handleCalendar(w http.ResponseWriter, inner []byte, account string) {
	var req fakeCalendarRequest
	if err := xml.Unmarshal(inner, &req); err != nil {
		writeFault(w, "PARSE_ERROR", err.Error())
		return
	}
	f.calendars = append(f.calendars, CalendarCall{Account: account, Content: req.Content})
	writeResponse(w, `<SendCalendarRequestResponse xmlns="urn:mailacct"/>`)
}

func firstElementName(inner []byte) (string, error) {
	dec := xml.NewDecoder(bytes.NewReader(inner))
	for {
		tok, err := dec.Token()
		if err != nil {
			return "", fmt.Errorf("no operation element in body: %w", err)
		}
		if start, ok := tok.(xml.StartElement); ok {
			return start.Name.Local, nil
		}
	}
}

func writeResponse(w http.ResponseWriter, inner string) {
	w.Header().Set("Content-Type", "application/soap+xml; charset=utf-8")
	fmt.Fprintf(w,
		`<soap:Envelope xmlns:soap="http://www.w3.org/2003/05/soap-envelope"><soap:Body>%s</soap:Body></soap:Envelope>`, inner)
}

func writeFault(w http.ResponseWriter, code, message string) {
	w.Header().Set("Content-Type", "application/soap+xml; charset=utf-8")
	w.WriteHeader(http.StatusInternalServerError)
	fmt.Fprintf(w,
		`<soap:Envelope xmlns:soap="http://www.w3.org/2003/05/soap-envelope"><soap:Body><soap:Fault>`+
			`<soap:Reason><soap:Text>%s</soap:Text></soap:Reason>`+
			`<soap:Detail><Error><Code>%s</Code></Error></soap:Detail>`+
			`</soap:Fault></soap:Body></soap:Envelope>`, message, code)
}
