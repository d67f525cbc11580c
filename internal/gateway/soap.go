package gateway

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"mftransact/internal/domain"
)

// Compile-time interface check.
var _ Transport = (*SOAPTransport)(nil)

// SOAPTransport carries gateway calls over the vendor's SOAP services. Each
// call wraps the positional arguments in a SOAP 1.2 envelope with
// WS-Addressing headers and extracts the delimited payload from the
// response's Result element. Network and HTTP failures come back as
// *domain.TransportError; everything above this type deals only in the
// delimited payload strings.
type SOAPTransport struct {
	client  *http.Client
	timeout time.Duration
}

// NewSOAPTransport creates a SOAPTransport with the given per-call timeout.
func NewSOAPTransport(timeout time.Duration) *SOAPTransport {
	return &SOAPTransport{
		client:  &http.Client{Timeout: timeout},
		timeout: timeout,
	}
}

// paramNames maps each wire method to the element names of its positional
// parameters, in order.
var paramNames = map[string][]string{
	methodGetPassword: {"MemberId", "UserId", "Password", "PassKey"},
	methodGeneric:     {"Flag", "UserId", "EncryptedPassword", "param"},
	methodOrderEntry: {
		"TransCode", "TransNo", "OrderId", "UserID", "MemberId", "ClientCode",
		"SchemeCd", "BuySell", "BuySellType", "DPTxn", "OrderVal", "Qty",
		"AllRedeem", "FolioNo", "Remarks", "KYCStatus", "RefNo", "SubBrCode",
		"EUIN", "EUINVal", "MinRedeem", "DPC", "IPAdd", "Password", "PassKey",
		"Param1", "Param2", "Param3",
	},
	methodRecurringEntry: {
		"TransactionCode", "TransNo", "SchemeCode", "MemberCode", "ClientCode",
		"UserID", "InternalRefNo", "TransMode", "DpTxnMode", "StartDate",
		"FrequencyType", "FrequencyAllowed", "InstallmentAmount",
		"NoOfInstallment", "Remarks", "FolioNo", "FirstOrderFlag", "Brokerage",
		"MandateID", "SubberCode", "Euin", "EuinVal", "DPC", "XsipRegID",
		"IPAdd", "Password", "PassKey", "Param1", "Param2", "Param3",
	},
}

var resultPattern = regexp.MustCompile(`(?s)<[A-Za-z]*Result[^>]*>(.*?)</[A-Za-z]*Result>`)

// Call posts one SOAP request and returns the delimited response payload.
func (t *SOAPTransport) Call(ctx context.Context, endpoint, method string, args []string) (string, error) {
	names, ok := paramNames[method]
	if !ok {
		return "", fmt.Errorf("unknown gateway method %q", method)
	}
	// getPassword on the order endpoint omits the member id.
	if method == methodGetPassword && len(args) == 3 {
		names = names[1:]
	}
	if len(args) != len(names) {
		return "", fmt.Errorf("method %s wants %d arguments, got %d", method, len(names), len(args))
	}

	body := buildEnvelope(endpoint, method, names, args)

	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("building %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", `application/soap+xml; charset=utf-8`)

	resp, err := t.client.Do(req)
	if err != nil {
		return "", &domain.TransportError{Op: method, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &domain.TransportError{Op: method, Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return "", &domain.TransportError{
			Op:  method,
			Err: fmt.Errorf("http status %d: %s", resp.StatusCode, truncate(string(raw), 200)),
		}
	}

	m := resultPattern.FindSubmatch(raw)
	if m == nil {
		return "", fmt.Errorf("no result element in %s response: %s", method, truncate(string(raw), 200))
	}
	return xmlUnescape(string(m[1])), nil
}

// buildEnvelope renders a SOAP 1.2 envelope with the WS-Addressing headers
// the vendor requires on every call.
func buildEnvelope(endpoint, method string, names, args []string) string {
	var b bytes.Buffer
	b.WriteString(`<soap:Envelope xmlns:soap="http://www.w3.org/2003/05/soap-envelope"`)
	b.WriteString(` xmlns:wsa="http://www.w3.org/2005/08/addressing">`)
	b.WriteString(`<soap:Header>`)
	fmt.Fprintf(&b, `<wsa:Action>%s/%s</wsa:Action>`, xmlEscape(endpoint), method)
	fmt.Fprintf(&b, `<wsa:To>%s</wsa:To>`, xmlEscape(endpoint))
	b.WriteString(`</soap:Header><soap:Body>`)
	fmt.Fprintf(&b, `<%s>`, method)
	for i, name := range names {
		fmt.Fprintf(&b, `<%s>%s</%s>`, name, xmlEscape(args[i]), name)
	}
	fmt.Fprintf(&b, `</%s>`, method)
	b.WriteString(`</soap:Body></soap:Envelope>`)
	return b.String()
}

func xmlEscape(s string) string {
	var b bytes.Buffer
	xml.EscapeText(&b, []byte(s)) //nolint:errcheck // bytes.Buffer does not fail
	return b.String()
}

func xmlUnescape(s string) string {
	r := strings.NewReplacer(
		"&lt;", "<",
		"&gt;", ">",
		"&quot;", `"`,
		"&apos;", "'",
		"&amp;", "&",
	)
	return r.Replace(s)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
