package codec

import (
	"encoding/binary"
	"fmt"
	"net"
	"strings"
)

// DecodeName reads a possibly-compressed domain name starting at offset and
// returns it in dotted form along with the offset of the first byte after
// the name as it appears at offset (a compression pointer ends the name in
// place, so nextOffset advances past the 2-byte pointer, not the pointee).
func DecodeName(message []byte, offset int) (string, int, error) {
	labels := make([]string, 0, 8)
	nextOffset := -1
	hops := 0
	for {
		if offset >= len(message) {
			return "", 0, fmt.Errorf("%w: name runs past message end", ErrMalformedMessage)
		}
		length := int(message[offset])
		if length == 0 {
			offset++
			break
		}
		if length&0xC0 == 0xC0 {
			if offset+2 > len(message) {
				return "", 0, fmt.Errorf("%w: truncated compression pointer", ErrMalformedMessage)
			}
			hops++
			if hops > maxPointerHops {
				return "", 0, fmt.Errorf("%w: compression pointer loop", ErrMalformedMessage)
			}
			if nextOffset < 0 {
				nextOffset = offset + 2
			}
			offset = int(binary.BigEndian.Uint16(message[offset:offset+2]) & 0x3FFF)
			continue
		}
		if length&0xC0 != 0 {
			return "", 0, fmt.Errorf("%w: reserved label type 0x%02x", ErrMalformedMessage, length&0xC0)
		}
		offset++
		if offset+length > len(message) {
			return "", 0, fmt.Errorf("%w: label runs past message end", ErrMalformedMessage)
		}
		labels = append(labels, string(message[offset:offset+length]))
		offset += length
	}
	if nextOffset < 0 {
		nextOffset = offset
	}
	return strings.Join(labels, "."), nextOffset, nil
}

// EncodeName emits the length-prefixed wire form of a dotted name, enforcing
// the RFC 1035 limits of 63 bytes per label and 255 bytes total.
func EncodeName(name string) ([]byte, error) {
	encoded := make([]byte, 0, len(name)+2)
	if name != "" {
		for _, label := range strings.Split(name, ".") {
			if len(label) == 0 || len(label) > maxLabelLength {
				return nil, fmt.Errorf("%w: %q", ErrInvalidLabel, label)
			}
			encoded = append(encoded, byte(len(label)))
			encoded = append(encoded, label...)
		}
	}
	encoded = append(encoded, 0)
	if len(encoded) > maxNameLength {
		return nil, fmt.Errorf("%w: name exceeds %d bytes", ErrInvalidLabel, maxNameLength)
	}
	return encoded, nil
}

func ParseHeader(message []byte) (Header, error) {
	if len(message) < HeaderSize {
		return Header{}, fmt.Errorf("%w: %d bytes", ErrTruncatedMessage, len(message))
	}
	return Header{
		ID:      binary.BigEndian.Uint16(message[0:2]),
		Flags:   binary.BigEndian.Uint16(message[2:4]),
		QDCount: binary.BigEndian.Uint16(message[4:6]),
		ANCount: binary.BigEndian.Uint16(message[6:8]),
		NSCount: binary.BigEndian.Uint16(message[8:10]),
		ARCount: binary.BigEndian.Uint16(message[10:12]),
	}, nil
}

// ParseQuestion decodes the question section that follows the header and
// returns the offset of the first byte after it.
func ParseQuestion(message []byte) (Question, int, error) {
	if len(message) < HeaderSize {
		return Question{}, 0, fmt.Errorf("%w: %d bytes", ErrTruncatedMessage, len(message))
	}
	name, offset, err := DecodeName(message, HeaderSize)
	if err != nil {
		return Question{}, 0, err
	}
	if offset+4 > len(message) {
		return Question{}, 0, fmt.Errorf("%w: truncated question", ErrMalformedMessage)
	}
	question := Question{
		Name:  name,
		Type:  binary.BigEndian.Uint16(message[offset : offset+2]),
		Class: binary.BigEndian.Uint16(message[offset+2 : offset+4]),
	}
	return question, offset + 4, nil
}

// BuildAnswerMessage assembles a complete response for a cache hit: the
// query's transaction id, a fixed flag word, the question re-encoded at
// offset 12, and one answer per value. Answer names are compression
// pointers to offset 12, which is only valid because the question sits
// there with no preceding records. Every answer carries a fixed 60s ttl.
func BuildAnswerMessage(transactionID uint16, name string, qtype uint16, values []string) ([]byte, error) {
	encodedName, err := EncodeName(name)
	if err != nil {
		return nil, err
	}

	message := make([]byte, HeaderSize, HeaderSize+len(encodedName)+4+len(values)*16)
	binary.BigEndian.PutUint16(message[0:2], transactionID)
	binary.BigEndian.PutUint16(message[2:4], responseFlags)
	binary.BigEndian.PutUint16(message[4:6], 1)
	binary.BigEndian.PutUint16(message[6:8], uint16(len(values)))

	message = append(message, encodedName...)
	message = binary.BigEndian.AppendUint16(message, qtype)
	message = binary.BigEndian.AppendUint16(message, ClassIN)

	for _, value := range values {
		message = append(message, 0xC0, HeaderSize) // pointer to the question name
		message = binary.BigEndian.AppendUint16(message, qtype)
		message = binary.BigEndian.AppendUint16(message, ClassIN)
		message = binary.BigEndian.AppendUint32(message, answerTTL)
		switch qtype {
		case TypeA:
			ip := net.ParseIP(value)
			if ip != nil {
				ip = ip.To4()
			}
			if ip == nil {
				return nil, fmt.Errorf("not an IPv4 address: %q", value)
			}
			message = binary.BigEndian.AppendUint16(message, 4)
			message = append(message, ip...)
		case TypePTR:
			encodedValue, err := EncodeName(value)
			if err != nil {
				return nil, err
			}
			message = binary.BigEndian.AppendUint16(message, uint16(len(encodedValue)))
			message = append(message, encodedValue...)
		default:
			return nil, fmt.Errorf("%w: unsupported answer type %d", ErrMalformedMessage, qtype)
		}
	}
	return message, nil
}

// ParseAnswerRecords walks the answer section of a response. Records of any
// type are parsed structurally so offsets stay correct; interpretation of
// the rdata is the caller's concern.
func ParseAnswerRecords(message []byte) ([]Resource, error) {
	header, err := ParseHeader(message)
	if err != nil {
		return nil, err
	}
	offset := HeaderSize
	for i := 0; i < int(header.QDCount); i++ {
		_, afterName, err := DecodeName(message, offset)
		if err != nil {
			return nil, err
		}
		offset = afterName + 4
		if offset > len(message) {
			return nil, fmt.Errorf("%w: truncated question", ErrMalformedMessage)
		}
	}

	records := make([]Resource, 0, header.ANCount)
	for i := 0; i < int(header.ANCount); i++ {
		name, afterName, err := DecodeName(message, offset)
		if err != nil {
			return nil, err
		}
		if afterName+10 > len(message) {
			return nil, fmt.Errorf("%w: truncated resource record", ErrMalformedMessage)
		}
		rdataLength := int(binary.BigEndian.Uint16(message[afterName+8 : afterName+10]))
		rdataOffset := afterName + 10
		if rdataOffset+rdataLength > len(message) {
			return nil, fmt.Errorf("%w: rdata runs past message end", ErrMalformedMessage)
		}
		records = append(records, Resource{
			Name:        name,
			Type:        binary.BigEndian.Uint16(message[afterName : afterName+2]),
			Class:       binary.BigEndian.Uint16(message[afterName+2 : afterName+4]),
			TTL:         binary.BigEndian.Uint32(message[afterName+4 : afterName+8]),
			RData:       message[rdataOffset : rdataOffset+rdataLength],
			RDataOffset: rdataOffset,
		})
		offset = rdataOffset + rdataLength
	}
	return records, nil
}
