// Package display renders exchange results for the interactive prompt and
// the one-shot mode.
package display

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/maximewewer/ntp-offset/internal/ntp"
	"github.com/maximewewer/ntp-offset/internal/packet"
)

// TimeLayout formats wall-clock times with microsecond precision
const TimeLayout = "2006-01-02 15:04:05.000000"

// PromptText asks for a server name
const PromptText = "Enter an NTP server or just press Enter"

// Printer writes human-readable output to a terminal or any writer.
// Styling is dropped when the writer is not a terminal.
type Printer struct {
	w     io.Writer
	loc   *time.Location
	label lipgloss.Style
	fail  lipgloss.Style
}

// NewPrinter creates a printer writing times in the local zone
func NewPrinter(w io.Writer) *Printer {
	renderer := lipgloss.NewRenderer(w)
	return &Printer{
		w:     w,
		loc:   time.Local,
		label: renderer.NewStyle().Bold(true),
		fail:  renderer.NewStyle().Foreground(lipgloss.Color("9")),
	}
}

// WithLocation sets the zone used for server and local times
func (p *Printer) WithLocation(loc *time.Location) *Printer {
	if loc != nil {
		p.loc = loc
	}
	return p
}

// Prompt writes the server prompt
func (p *Printer) Prompt() error {
	_, err := fmt.Fprintln(p.w, PromptText)
	return err
}

// Announce writes the name of the server about to be queried
func (p *Printer) Announce(server string) error {
	_, err := fmt.Fprintln(p.w, p.label.Render("NTP server:"), server)
	return err
}

// Render writes the server clock estimate, the local arrival time and the
// reply header. The server time is offset-adjusted, the local time is raw.
func (p *Printer) Render(server string, resp *ntp.Response) error {
	reply := resp.Reply

	var b strings.Builder
	p.line(&b, "Server time", p.formatTime(resp.ServerTime))
	p.line(&b, "Local time", p.formatTime(resp.ArrivalTime))
	p.line(&b, "Offset", FormatSeconds(resp.Offset)+" s")
	p.line(&b, "Delay", FormatSeconds(resp.Delay)+" s")
	b.WriteString("\n")

	p.line(&b, "Leap indicator", strconv.Itoa(int(reply.Leap))+" ("+reply.Leap.String()+")")
	p.line(&b, "Version number", strconv.Itoa(int(reply.Version)))
	p.line(&b, "Mode", strconv.Itoa(int(reply.Mode))+" ("+reply.Mode.String()+")")
	p.line(&b, "Stratum", strconv.Itoa(int(reply.Stratum)))
	p.line(&b, "Poll", strconv.Itoa(int(reply.Poll)))
	p.line(&b, "Precision", strconv.Itoa(int(reply.Precision)))
	p.line(&b, "Root delay", formatFloat(reply.RootDelay.Seconds()))
	p.line(&b, "Root dispersion", formatFloat(reply.RootDispersion.Seconds()))
	p.line(&b, "Ref id", packet.FormatReferenceID(reply.Stratum, reply.ReferenceID))
	p.line(&b, "Reference", formatFloat(reply.ReferenceTime.Seconds()))
	p.line(&b, "Originate", formatFloat(reply.OriginTime.Seconds()))
	p.line(&b, "Receive", formatFloat(reply.ReceiveTime.Seconds()))
	p.line(&b, "Transmit", formatFloat(reply.TransmitTime.Seconds()))

	if code := resp.KissCode(); code != "" {
		p.line(&b, "Kiss code", code)
	}
	if reasons := resp.SuspicionReasons(); len(reasons) > 0 {
		p.line(&b, "Warning", "reply looks untrustworthy ("+strings.Join(reasons, ", ")+")")
	}
	if ref := resp.Reference; ref != nil {
		if ref.Err != nil {
			p.line(&b, "Reference check", "failed: "+ref.Err.Error())
		} else {
			p.line(&b, "Reference check", FormatSeconds(ref.Offset)+" s (divergence "+FormatSeconds(ref.Divergence)+" s)")
		}
	}

	_, err := io.WriteString(p.w, b.String())
	return err
}

// RenderError writes a user-facing explanation of a failed exchange
func (p *Printer) RenderError(server string, err error) error {
	_, werr := fmt.Fprintln(p.w, p.fail.Render(ErrorMessage(server, err)))
	return werr
}

// ErrorMessage maps an exchange error to the text shown to the user
func ErrorMessage(server string, err error) string {
	switch {
	case errors.Is(err, ErrNoServers):
		return "No NTP server is configured. Enter an address."
	case errors.Is(err, ntp.ErrCircuitOpen):
		return "NTP server " + server + " failed repeatedly and is paused for now. Try entering another address."
	case errors.Is(err, ntp.ErrRateLimited):
		return "Too many queries to NTP server " + server + " right now. Try again later or enter another address."
	case errors.Is(err, ntp.ErrTimeout):
		return "No reply from NTP server " + server + " before the timeout. Try entering another address."
	case errors.Is(err, ntp.ErrUnreachable):
		return "Cannot reach NTP server " + server + ". Try entering another address."
	case errors.Is(err, packet.ErrMalformedPacket):
		return "NTP server " + server + " sent a reply that is not a valid NTP packet."
	default:
		return "Query to NTP server " + server + " failed: " + err.Error()
	}
}

// Render writes resp to w using a local-time printer
func Render(w io.Writer, server string, resp *ntp.Response) error {
	return NewPrinter(w).Render(server, resp)
}

// RenderError writes the message for err to w
func RenderError(w io.Writer, server string, err error) error {
	return NewPrinter(w).RenderError(server, err)
}

// FormatSeconds renders a signed duration in seconds, with an explicit
// plus sign for positive values
func FormatSeconds(d time.Duration) string {
	s := strconv.FormatFloat(d.Seconds(), 'G', 6, 64)
	if d > 0 {
		s = "+" + s
	}
	return s
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func (p *Printer) formatTime(t packet.Timestamp) string {
	return t.Time().In(p.loc).Format(TimeLayout)
}

func (p *Printer) line(b *strings.Builder, label, value string) {
	b.WriteString(p.label.Render(label + ":"))
	b.WriteString(" ")
	b.WriteString(value)
	b.WriteString("\n")
}
