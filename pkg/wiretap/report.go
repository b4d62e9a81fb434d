package wiretap

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/doodlesbykumbi/msl-wiretap/pkg/tokens"
)

// Report is the result of inspecting one message header.
type Report struct {
	RequestID string
	// Header is the inspected header with every token envelope replaced by
	// its decoded view.
	Header                 tokens.Tree
	ErrorHeader            bool
	MasterToken            *tokens.MasterToken
	KeyResponseMasterToken *tokens.MasterToken
	UserIDToken            *tokens.UserIDToken
}

// Tokens returns how many tokens were decoded.
func (r *Report) Tokens() int {
	n := 0
	for _, ok := range []bool{r.MasterToken != nil, r.KeyResponseMasterToken != nil, r.UserIDToken != nil} {
		if ok {
			n++
		}
	}
	return n
}

func (r *Report) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Header)
}

// WriteText prints a human readable summary followed by the decoded header.
func (r *Report) WriteText(w io.Writer, now time.Time) error {
	var sb strings.Builder

	if r.ErrorHeader {
		errorData, _ := r.Header.Object(KeyErrorData)
		sb.WriteString("error header\n")
		for _, k := range sortedKeys(errorData) {
			fmt.Fprintf(&sb, "  %-14s %v\n", k, errorData[k])
		}
		_, err := io.WriteString(w, sb.String())
		return err
	}

	writeMasterToken(&sb, "master token", r.MasterToken, now)
	writeMasterToken(&sb, "key response master token", r.KeyResponseMasterToken, now)
	if u := r.UserIDToken; u != nil {
		fmt.Fprintf(&sb, "user ID token %d (%s)\n", u.SerialNumber, trust(u.Verified))
		fmt.Fprintf(&sb, "  bound to       master token %d\n", u.MasterTokenSerialNumber)
		fmt.Fprintf(&sb, "  renewal window %s\n", time.Unix(u.RenewalWindow, 0).UTC().Format(time.RFC3339))
		fmt.Fprintf(&sb, "  expiration     %s%s\n", time.Unix(u.Expiration, 0).UTC().Format(time.RFC3339), expired(u.IsExpired(now)))
		if id := u.Identity(); id != "" {
			fmt.Fprintf(&sb, "  identity       %s\n", id)
		}
	}
	if r.Tokens() == 0 {
		sb.WriteString("no tokens\n")
	}

	body, err := json.MarshalIndent(r.Header, "", "  ")
	if err != nil {
		return err
	}
	sb.Write(body)
	sb.WriteString("\n")

	_, err = io.WriteString(w, sb.String())
	return err
}

func writeMasterToken(sb *strings.Builder, label string, m *tokens.MasterToken, now time.Time) {
	if m == nil {
		return
	}
	fmt.Fprintf(sb, "%s %d (%s)\n", label, m.SerialNumber, trust(m.Verified))
	fmt.Fprintf(sb, "  sequence       %d\n", m.SequenceNumber)
	fmt.Fprintf(sb, "  renewal window %s\n", m.RenewalWindowTime().UTC().Format(time.RFC3339))
	fmt.Fprintf(sb, "  expiration     %s%s\n", m.ExpirationTime().UTC().Format(time.RFC3339), expired(m.IsExpired(now)))
	if id := m.Identity(); id != "" {
		fmt.Fprintf(sb, "  identity       %s\n", id)
	}
}

func trust(verified bool) string {
	if verified {
		return "verified"
	}
	return "unverified"
}

func expired(yes bool) string {
	if yes {
		return " (expired)"
	}
	return ""
}

func sortedKeys(t tokens.Tree) []string {
	keys := make([]string, 0, len(t))
	for k := range t {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
