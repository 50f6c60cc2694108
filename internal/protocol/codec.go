package protocol

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/multiformats/go-varint"
	"google.golang.org/protobuf/encoding/protowire"
)

const (
	fieldType protowire.Number = 1
	fieldText protowire.Number = 2
	fieldCode protowire.Number = 3
)

var (
	ErrMalformed       = errors.New("malformed message")
	ErrMessageTooLarge = errors.New("message exceeds maximum size")
	ErrUnknownType     = errors.New("unknown message type")
)

// Codec writes one uvarint length prefix followed by a protobuf encoded body
// per message.
type Codec struct {
	maxSize int
}

func NewCodec() *Codec {
	return &Codec{maxSize: MaxMessageSize}
}

func (c *Codec) Encode(w io.Writer, msg Message) error {
	body, err := Marshal(msg)
	if err != nil {
		return err
	}
	if len(body) > c.maxSize {
		return fmt.Errorf("%w: %d bytes", ErrMessageTooLarge, len(body))
	}

	frame := make([]byte, 0, varint.UvarintSize(uint64(len(body)))+len(body))
	frame = append(frame, varint.ToUvarint(uint64(len(body)))...)
	frame = append(frame, body...)

	_, err = w.Write(frame)
	return err
}

func (c *Codec) Decode(r io.Reader) (Message, error) {
	size, err := varint.ReadUvarint(asByteReader(r))
	if err != nil {
		return nil, err
	}
	if size > uint64(c.maxSize) {
		return nil, fmt.Errorf("%w: %d bytes", ErrMessageTooLarge, size)
	}

	body := make([]byte, size)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, err
	}
	return Unmarshal(body)
}

func (c *Codec) EncodeToBytes(msg Message) ([]byte, error) {
	var buf bytes.Buffer
	if err := c.Encode(&buf, msg); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (c *Codec) DecodeFromBytes(data []byte) (Message, error) {
	return c.Decode(bytes.NewReader(data))
}

// Marshal encodes the message body without framing.
func Marshal(msg Message) ([]byte, error) {
	var text string
	var code ErrorCode

	switch m := msg.(type) {
	case *FileReq:
		text = m.Name
	case FileReq:
		text = m.Name
	case *FileRes:
		text = m.Content
	case FileRes:
		text = m.Content
	case *Error:
		text, code = m.Message, m.Code
	case Error:
		text, code = m.Message, m.Code
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownType, msg)
	}

	var b []byte
	b = protowire.AppendTag(b, fieldType, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(msg.Type()))
	if text != "" {
		b = protowire.AppendTag(b, fieldText, protowire.BytesType)
		b = protowire.AppendString(b, text)
	}
	if code != 0 {
		b = protowire.AppendTag(b, fieldCode, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(code))
	}
	return b, nil
}

// Unmarshal decodes a body produced by Marshal. Unknown fields are skipped.
func Unmarshal(b []byte) (Message, error) {
	var (
		typ     MessageType
		hasType bool
		text    string
		code    ErrorCode
	)

	for len(b) > 0 {
		num, wtyp, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, protowire.ParseError(n))
		}
		b = b[n:]

		switch {
		case num == fieldType && wtyp == protowire.VarintType:
			v, m := protowire.ConsumeVarint(b)
			if m < 0 {
				return nil, fmt.Errorf("%w: %v", ErrMalformed, protowire.ParseError(m))
			}
			typ, hasType = MessageType(v), true
			n = m
		case num == fieldText && wtyp == protowire.BytesType:
			s, m := protowire.ConsumeString(b)
			if m < 0 {
				return nil, fmt.Errorf("%w: %v", ErrMalformed, protowire.ParseError(m))
			}
			text = s
			n = m
		case num == fieldCode && wtyp == protowire.VarintType:
			v, m := protowire.ConsumeVarint(b)
			if m < 0 {
				return nil, fmt.Errorf("%w: %v", ErrMalformed, protowire.ParseError(m))
			}
			code = ErrorCode(v)
			n = m
		default:
			m := protowire.ConsumeFieldValue(num, wtyp, b)
			if m < 0 {
				return nil, fmt.Errorf("%w: %v", ErrMalformed, protowire.ParseError(m))
			}
			n = m
		}
		b = b[n:]
	}

	if !hasType {
		return nil, fmt.Errorf("%w: missing type", ErrMalformed)
	}

	switch typ {
	case MsgFileReq:
		return &FileReq{Name: text}, nil
	case MsgFileRes:
		return &FileRes{Content: text}, nil
	case MsgError:
		return &Error{Code: code, Message: text}, nil
	default:
		return nil, fmt.Errorf("%w: 0x%04x", ErrUnknownType, uint16(typ))
	}
}

type byteReader struct {
	r   io.Reader
	buf [1]byte
}

func (b *byteReader) ReadByte() (byte, error) {
	if _, err := io.ReadFull(b.r, b.buf[:]); err != nil {
		return 0, err
	}
	return b.buf[0], nil
}

// asByteReader reads the length prefix one byte at a time so that no bytes of
// the body are buffered away from r.
func asByteReader(r io.Reader) io.ByteReader {
	if br, ok := r.(io.ByteReader); ok {
		return br
	}
	return &byteReader{r: r}
}
