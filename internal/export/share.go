package export

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/hmaji/billfold/internal/bill"
)

// ShareText builds the plain-text bill summary used as the prefilled
// WhatsApp message body.
func ShareText(snap bill.Snapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Bill for %s\n", snap.ClientName)
	fmt.Fprintf(&b, "Generated: %s\n\n", snap.GeneratedAt.Format("2006-01-02 15:04"))
	for _, l := range snap.Lines {
		fmt.Fprintf(&b, "%d x %s @ %s = %s\n", l.Quantity, l.Name, Money(l.UnitPrice), Money(l.Total))
	}
	fmt.Fprintf(&b, "\nTotal Amount: %s", Money(snap.TotalAmount))
	return b.String()
}

// WhatsAppLink builds a wa.me link with the bill summary prefilled. phone is
// optional; when given, everything except digits is stripped so numbers may
// be pasted as "+1 (555) 010-0000".
func WhatsAppLink(snap bill.Snapshot, phone string) string {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, phone)
	u := url.URL{
		Scheme:   "https",
		Host:     "wa.me",
		Path:     "/" + digits,
		RawQuery: url.Values{"text": {ShareText(snap)}}.Encode(),
	}
	if digits == "" {
		u.Path = "/"
	}
	return u.String()
}
