package codec

import "errors"

// Record types and classes handled by this server (RFC 1035).
const (
	TypeA   uint16 = 1
	TypePTR uint16 = 12
	ClassIN uint16 = 1
)

const (
	// HeaderSize is the fixed DNS header length; anything shorter is not a
	// message at all.
	HeaderSize = 12

	// FlagQR marks a message as a response.
	FlagQR uint16 = 1 << 15

	// responseFlags is the fixed flag word of every cache-built answer:
	// standard response, recursion desired+available, no error.
	responseFlags uint16 = 0x8180

	// answerTTL is the ttl written into every cache-built answer record,
	// independent of the entry's real remaining lifetime.
	answerTTL uint32 = 60

	maxLabelLength = 63
	maxNameLength  = 255

	// maxPointerHops bounds compression-pointer chasing so a
	// self-referential pointer fails cleanly instead of looping.
	maxPointerHops = 16
)

var (
	ErrTruncatedMessage = errors.New("truncated message")
	ErrMalformedMessage = errors.New("malformed message")
	ErrInvalidLabel     = errors.New("invalid label")
)

type Header struct {
	ID                                 uint16
	Flags                              uint16
	QDCount, ANCount, NSCount, ARCount uint16
}

// IsResponse reports whether the QR bit is set, i.e. this message claims to
// be a response rather than a query.
func (h Header) IsResponse() bool {
	return h.Flags&FlagQR != 0
}

type Question struct {
	Name  string
	Type  uint16
	Class uint16
}

// Resource is one parsed answer record. RData aliases the message buffer;
// RDataOffset is its absolute position, needed to decode compressed names
// inside the rdata in message context.
type Resource struct {
	Name        string
	Type        uint16
	Class       uint16
	TTL         uint32
	RData       []byte
	RDataOffset int
}
