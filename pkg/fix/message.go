package fix

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Message is a parsed inbound tag=value message. Top-level fields live in
// one map; repeating leg groups are split out in arrival order, with a new
// leg opening at each LegSymbol (600).
type Message struct {
	fields map[int]string
	legs   []LegFields
	raw    string
}

// LegFields holds one leg group's fields.
type LegFields map[int]string

// Parse splits a SOH-delimited message into fields and leg groups. It does
// not validate framing; use Verify for that.
func Parse(raw string) (*Message, error) {
	m := &Message{fields: make(map[int]string), raw: raw}
	inLegs := false
	var cur LegFields

	for _, part := range strings.Split(raw, SOH) {
		if part == "" {
			continue
		}
		eq := strings.IndexByte(part, '=')
		if eq <= 0 {
			return nil, fmt.Errorf("malformed field %q", part)
		}
		tag, err := strconv.Atoi(part[:eq])
		if err != nil {
			return nil, fmt.Errorf("malformed tag in %q", part)
		}
		val := part[eq+1:]

		switch {
		case tag == TagNoLegs:
			m.fields[tag] = val
			inLegs = true
		case tag == TagCheckSum:
			m.fields[tag] = val
			inLegs = false
		case inLegs && tag == TagLegSymbol:
			cur = LegFields{tag: val}
			m.legs = append(m.legs, cur)
		case inLegs && cur != nil:
			cur[tag] = val
		default:
			m.fields[tag] = val
		}
	}
	return m, nil
}

func (m *Message) Raw() string { return m.raw }

func (m *Message) MsgType() string { return m.fields[TagMsgType] }

func (m *Message) Get(tag int) string { return m.fields[tag] }

func (m *Message) Has(tag int) bool {
	_, ok := m.fields[tag]
	return ok
}

func (m *Message) GetInt(tag int) (int, bool) {
	n, err := strconv.Atoi(m.fields[tag])
	if err != nil {
		return 0, false
	}
	return n, true
}

func (m *Message) GetDecimal(tag int) (decimal.Decimal, bool) {
	d, err := decimal.NewFromString(m.fields[tag])
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

func (m *Message) Legs() []LegFields { return m.legs }

func (f LegFields) Get(tag int) string { return f[tag] }

func (f LegFields) GetDecimal(tag int) (decimal.Decimal, bool) {
	d, err := decimal.NewFromString(f[tag])
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// Verify recomputes the body length and checksum of a framed message and
// compares them with the embedded values.
func Verify(raw string) error {
	ckIdx := strings.LastIndex(raw, SOH+"10=")
	if ckIdx < 0 || !strings.HasPrefix(raw, "8=") {
		return fmt.Errorf("message is not framed")
	}
	withoutChecksum := raw[:ckIdx+1]
	embedded := strings.TrimSuffix(raw[ckIdx+4:], SOH)
	if got := Checksum(withoutChecksum); got != embedded {
		return fmt.Errorf("checksum mismatch: computed %s, embedded %s", got, embedded)
	}

	lenIdx := strings.Index(raw, SOH+"9=")
	if lenIdx < 0 {
		return fmt.Errorf("missing body length field")
	}
	bodyStart := strings.Index(raw[lenIdx+1:], SOH)
	if bodyStart < 0 {
		return fmt.Errorf("missing body length terminator")
	}
	bodyStart += lenIdx + 2
	declared := raw[lenIdx+3 : bodyStart-1]
	if got := strconv.Itoa(len(raw[bodyStart : ckIdx+1])); got != declared {
		return fmt.Errorf("body length mismatch: computed %s, declared %s", got, declared)
	}
	return nil
}

// Checksum sums every byte of the message up to the checksum field, modulo
// 256, formatted as the wire's fixed three digits.
func Checksum(s string) string {
	sum := 0
	for i := 0; i < len(s); i++ {
		sum += int(s[i])
	}
	return fmt.Sprintf("%03d", sum%256)
}
