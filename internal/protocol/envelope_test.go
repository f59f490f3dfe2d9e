package protocol

import (
	"encoding/xml"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAttrsRoundTrip(t *testing.T) {
	in := map[string]string{
		"sn":            "Doe",
		"givenName":     "Jane",
		"displayName":   "Doe, Jane",
		"accountStatus": "active",
	}

	attrs := attrsFromMap(in)
	require.Len(t, attrs, 4)
	// Deterministic order keeps request payloads stable across runs.
	assert.Equal(t, "accountStatus", attrs[0].N)
	assert.Equal(t, "sn", attrs[3].N)

	assert.Equal(t, in, attrsToMap(attrs))
}

func TestResponseEnvelopeFaultParsing(t *testing.T) {
	body := `<soap:Envelope xmlns:soap="http://www.w3.org/2003/05/soap-envelope"><soap:Body><soap:Fault>` +
		`<soap:Reason><soap:Text>account jdoe@example.net already exists</soap:Text></soap:Reason>` +
		`<soap:Detail><Error><Code>ACCOUNTEXISTS</Code></Error></soap:Detail>` +
		`</soap:Fault></soap:Body></soap:Envelope>`

	var resp responseEnvelope
	require.NoError(t, xml.Unmarshal([]byte(body), &resp))
	require.NotNil(t, resp.Body.Fault)
	assert.Equal(t, "ACCOUNTEXISTS", resp.Body.Fault.Detail.Error.Code)
	assert.Equal(t, "account jdoe@example.net already exists", resp.Body.Fault.Reason.Text)
}

func TestResponseEnvelopeBodyCapture(t *testing.T) {
	body := `<soap:Envelope xmlns:soap="http://www.w3.org/2003/05/soap-envelope"><soap:Body>` +
		`<GetAccountInfoResponse xmlns="urn:mailadmin"><account id="acc-1" name="jdoe@example.net"><a n="sn">Doe</a></account></GetAccountInfoResponse>` +
		`</soap:Body></soap:Envelope>`

	var resp responseEnvelope
	require.NoError(t, xml.Unmarshal([]byte(body), &resp))
	require.Nil(t, resp.Body.Fault)

	var op getAccountInfoResponse
	require.NoError(t, xml.Unmarshal(resp.Body.Inner, &op))
	assert.Equal(t, "acc-1", op.Account.ID)
	assert.Equal(t, "jdoe@example.net", op.Account.Name)
	require.Len(t, op.Account.Attrs, 1)
	assert.Equal(t, "Doe", op.Account.Attrs[0].Value)
}
