package protocol

import (
	"context"
	"encoding/xml"

	"github.com/scolarite/mailsync/internal/models"
)

type authRequest struct {
	XMLName  xml.Name `xml:"urn:mailadmin AuthRequest"`
	Name     string   `xml:"name"`
	Password string   `xml:"password"`
}

type authResponse struct {
	XMLName   xml.Name `xml:"AuthResponse"`
	AuthToken string   `xml:"authToken"`
	Lifetime  int64    `xml:"lifetime"` // milliseconds
}

type delegateAuthRequest struct {
	XMLName xml.Name  `xml:"urn:mailadmin DelegateAuthRequest"`
	Account accountBy `xml:"account"`
}

type delegateAuthResponse struct {
	XMLName   xml.Name `xml:"DelegateAuthResponse"`
	AuthToken string   `xml:"authToken"`
	Lifetime  int64    `xml:"lifetime"`
}

type createAccountRequest struct {
	XMLName  xml.Name `xml:"urn:mailadmin CreateAccountRequest"`
	Name     string   `xml:"name"`
	Password string   `xml:"password,omitempty"`
	Attrs    []Attr   `xml:"a"`
}

type createAccountResponse struct {
	XMLName xml.Name       `xml:"CreateAccountResponse"`
	Account accountElement `xml:"account"`
}

type modifyAccountRequest struct {
	XMLName xml.Name `xml:"urn:mailadmin ModifyAccountRequest"`
	ID      string   `xml:"id"`
	Attrs   []Attr   `xml:"a"`
}

type modifyAccountResponse struct {
	XMLName xml.Name `xml:"ModifyAccountResponse"`
}

type getAccountInfoRequest struct {
	XMLName xml.Name  `xml:"urn:mailadmin GetAccountInfoRequest"`
	Account accountBy `xml:"account"`
}

type getAccountInfoResponse struct {
	XMLName xml.Name       `xml:"GetAccountInfoResponse"`
	Account accountElement `xml:"account"`
}

type addAccountAliasRequest struct {
	XMLName xml.Name `xml:"urn:mailadmin AddAccountAliasRequest"`
	ID      string   `xml:"id"`
	Alias   string   `xml:"alias"`
}

type addAccountAliasResponse struct {
	XMLName xml.Name `xml:"AddAccountAliasResponse"`
}

type recallMessageRequest struct {
	XMLName   xml.Name `xml:"urn:mailacct RecallMessageRequest"`
	MessageID string   `xml:"messageId"`
	Comment   string   `xml:"comment,omitempty"`
}

type recallMessageResponse struct {
	XMLName xml.Name `xml:"RecallMessageResponse"`
}

type sendCalendarRequestRequest struct {
	XMLName xml.Name `xml:"urn:mailacct SendCalendarRequest"`
	Content string   `xml:"content"`
}

type sendCalendarRequestResponse struct {
	XMLName xml.Name `xml:"SendCalendarRequestResponse"`
}

// CreateAccount creates a remote account with the given primary name and
// attribute set, returning the new remote account id. A naming collision
// surfaces as a *Fault with code ACCOUNTEXISTS.
func (c *Client) CreateAccount(ctx context.Context, name, password string, attrs map[string]string) (string, error) {
	var resp createAccountResponse
	req := createAccountRequest{Name: name, Password: password, Attrs: attrsFromMap(attrs)}
	if err := c.invokeAdmin(ctx, req, &resp); err != nil {
		return "", err
	}
	return resp.Account.ID, nil
}

// ModifyAccount pushes the full attribute set to an existing remote account.
func (c *Client) ModifyAccount(ctx context.Context, accountID string, attrs map[string]string) error {
	var resp modifyAccountResponse
	req := modifyAccountRequest{ID: accountID, Attrs: attrsFromMap(attrs)}
	return c.invokeAdmin(ctx, req, &resp)
}

// GetAccountInfo looks up a remote account by one of its identifying
// attributes ("name" or "id").
func (c *Client) GetAccountInfo(ctx context.Context, by, value string) (*models.RemoteAccount, error) {
	var resp getAccountInfoResponse
	req := getAccountInfoRequest{Account: accountBy{By: by, Value: value}}
	if err := c.invokeAdmin(ctx, req, &resp); err != nil {
		return nil, err
	}

	attrs := attrsToMap(resp.Account.Attrs)
	account := &models.RemoteAccount{
		ID:     resp.Account.ID,
		Name:   resp.Account.Name,
		Status: models.AccountStatus(attrs["accountStatus"]),
		Attrs:  attrs,
	}
	return account, nil
}

// AddAccountAlias registers an additional address on an existing account.
func (c *Client) AddAccountAlias(ctx context.Context, accountID, alias string) error {
	var resp addAccountAliasResponse
	req := addAccountAliasRequest{ID: accountID, Alias: alias}
	return c.invokeAdmin(ctx, req, &resp)
}

// SetAccountStatus changes the remote account status. Deactivation is a
// status change to "locked", never a removal.
func (c *Client) SetAccountStatus(ctx context.Context, accountID string, status models.AccountStatus) error {
	return c.ModifyAccount(ctx, accountID, map[string]string{"accountStatus": string(status)})
}

// RecallMessage asks the server to recall a message from the session
// account's mailbox.
func (c *Client) RecallMessage(ctx context.Context, sess Session, messageID, comment string) error {
	var resp recallMessageResponse
	req := recallMessageRequest{MessageID: messageID, Comment: comment}
	return c.invokeAs(ctx, sess, req, &resp)
}

// SendCalendarRequest submits a calendar request document as the session
// account.
func (c *Client) SendCalendarRequest(ctx context.Context, sess Session, content string) error {
	var resp sendCalendarRequestResponse
	req := sendCalendarRequestRequest{Content: content}
	return c.invokeAs(ctx, sess, req, &resp)
}
