package protocol

import (
	"encoding/xml"
	"sort"
)

const (
	nsSOAP  = "http://www.w3.org/2003/05/soap-envelope"
	nsAdmin = "urn:mailadmin"
)

// Attr is the protocol's named-attribute element: <a n="key">value</a>.
// Every account operation carries its payload as a flat list of these.
type Attr struct {
	N     string `xml:"n,attr"`
	Value string `xml:",chardata"`
}

// attrsFromMap converts an attribute map to wire form. Keys are sorted so
// request envelopes are deterministic.
func attrsFromMap(m map[string]string) []Attr {
	if len(m) == 0 {
		return nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	attrs := make([]Attr, 0, len(keys))
	for _, k := range keys {
		attrs = append(attrs, Attr{N: k, Value: m[k]})
	}
	return attrs
}

// attrsToMap converts wire-form attributes back to a map.
func attrsToMap(attrs []Attr) map[string]string {
	m := make(map[string]string, len(attrs))
	for _, a := range attrs {
		m[a.N] = a.Value
	}
	return m
}

type requestEnvelope struct {
	XMLName xml.Name       `xml:"soap:Envelope"`
	NS      string         `xml:"xmlns:soap,attr"`
	Header  *requestHeader `xml:"soap:Header,omitempty"`
	Body    requestBody    `xml:"soap:Body"`
}

type requestHeader struct {
	Context requestContext `xml:"context"`
}

type requestContext struct {
	NS        string `xml:"xmlns,attr"`
	AuthToken string `xml:"authToken,omitempty"`
}

type requestBody struct {
	Inner []byte `xml:",innerxml"`
}

type responseEnvelope struct {
	XMLName xml.Name     `xml:"Envelope"`
	Body    responseBody `xml:"Body"`
}

type responseBody struct {
	Fault *faultElement `xml:"Fault"`
	Inner []byte        `xml:",innerxml"`
}

type faultElement struct {
	Reason struct {
		Text string `xml:"Text"`
	} `xml:"Reason"`
	Detail struct {
		Error struct {
			Code string `xml:"Code"`
		} `xml:"Error"`
	} `xml:"Detail"`
}

// accountBy addresses an account by one of its identifying attributes:
// <account by="name">user@domain</account>.
type accountBy struct {
	By    string `xml:"by,attr"`
	Value string `xml:",chardata"`
}

type accountElement struct {
	ID    string `xml:"id,attr"`
	Name  string `xml:"name,attr"`
	Attrs []Attr `xml:"a"`
}
